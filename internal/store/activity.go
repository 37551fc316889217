package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/rfpdesk/internal/model"
)

// ActivityLogger appends to a project's audit log.
type ActivityLogger interface {
	LogActivity(ctx context.Context, a *model.Activity) error
}

// RecordActivity appends an activity row. The audit log never fails the
// action it describes, so errors are only logged.
func RecordActivity(ctx context.Context, l ActivityLogger, projectID, action, detail string) {
	err := l.LogActivity(ctx, &model.Activity{ProjectID: projectID, Action: action, Detail: detail})
	if err != nil {
		zap.L().Warn("store: record activity failed",
			zap.String("project_id", projectID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
