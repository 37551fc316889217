// Package storetest provides SQLite-backed stores for tests in other packages.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/internal/store"
)

// New opens a migrated SQLite store in a temp dir, closed on cleanup.
func New(t testing.TB) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// Project inserts a project of the given type.
func Project(t testing.TB, st store.Store, name string, pt model.ProjectType) *model.Project {
	t.Helper()
	p := &model.Project{Name: name, ProjectType: pt}
	require.NoError(t, st.CreateProject(context.Background(), p))
	return p
}

// Document inserts a document with content into the project.
func Document(t testing.TB, st store.Store, projectID, filename, content string) *model.Document {
	t.Helper()
	d := &model.Document{ProjectID: projectID, Filename: filename, MimeType: "text/plain", Content: content, SizeBytes: int64(len(content))}
	require.NoError(t, st.CreateDocument(context.Background(), d))
	return d
}
