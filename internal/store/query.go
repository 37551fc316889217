package store

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"github.com/sells-group/rfpdesk/internal/model"
)

const projectColumns = `id, organization_id, name, project_type, organization_name, description, due_date, active_draft_id, archived_at, archive_reason, created_at, updated_at`

// listProjectsQuery builds the filtered project listing for either dialect.
// Postgres uses ILIKE; SQLite LIKE is already case-insensitive for ASCII.
func listProjectsQuery(f model.ProjectFilter, placeholder sq.PlaceholderFormat, ilike bool) (string, []any, error) {
	q := sq.Select(projectColumns).From("projects").OrderBy("created_at DESC")

	if f.Archived != nil {
		if *f.Archived {
			q = q.Where(sq.NotEq{"archived_at": nil})
		} else {
			q = q.Where(sq.Eq{"archived_at": nil})
		}
	}
	if f.ProjectType != "" {
		q = q.Where(sq.Eq{"project_type": string(f.ProjectType)})
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		if ilike {
			q = q.Where(sq.ILike{"name": pattern})
		} else {
			q = q.Where(sq.Like{"name": pattern})
		}
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	sqlStr, args, err := q.PlaceholderFormat(placeholder).ToSql()
	if err != nil {
		return "", nil, eris.Wrap(err, "store: build project list query")
	}
	return sqlStr, args, nil
}

// summaryTable maps an entity kind to the table holding its cache columns.
func summaryTable(kind model.EntityKind) (string, error) {
	switch kind {
	case model.EntityDocument:
		return "documents", nil
	case model.EntityWebSource:
		return "web_sources", nil
	default:
		return "", model.NewValidationError("unknown entity kind %q", kind)
	}
}

func resourceName(kind model.EntityKind) string {
	if kind == model.EntityWebSource {
		return "web source"
	}
	return "document"
}
