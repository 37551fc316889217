package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/rfpdesk/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode
// and foreign-key enforcement.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if !strings.Contains(dsn, "foreign_keys") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection keeps pragmas and write ordering consistent.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS organizations (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

INSERT OR IGNORE INTO organizations (id, name) VALUES ('default', 'Default');

CREATE TABLE IF NOT EXISTS projects (
	id                TEXT PRIMARY KEY,
	organization_id   TEXT NOT NULL REFERENCES organizations(id),
	name              TEXT NOT NULL,
	project_type      TEXT NOT NULL,
	organization_name TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	due_date          DATETIME,
	active_draft_id   TEXT,
	archived_at       DATETIME,
	archive_reason    TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS documents (
	id                   TEXT PRIMARY KEY,
	project_id           TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	filename             TEXT NOT NULL,
	mime_type            TEXT NOT NULL DEFAULT '',
	size_bytes           INTEGER NOT NULL DEFAULT 0,
	content              TEXT NOT NULL DEFAULT '',
	page_count           INTEGER NOT NULL DEFAULT 0,
	sheet_count          INTEGER NOT NULL DEFAULT 0,
	word_count           INTEGER NOT NULL DEFAULT 0,
	summary_cache        TEXT,
	summary_generated_at DATETIME,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_documents_project_id ON documents(project_id);

CREATE TABLE IF NOT EXISTS web_sources (
	id                   TEXT PRIMARY KEY,
	project_id           TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	url                  TEXT NOT NULL,
	title                TEXT NOT NULL DEFAULT '',
	content              TEXT NOT NULL DEFAULT '',
	fetch_method         TEXT NOT NULL DEFAULT '',
	summary_cache        TEXT,
	summary_generated_at DATETIME,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_web_sources_project_id ON web_sources(project_id);

CREATE TABLE IF NOT EXISTS company_info (
	organization_id TEXT PRIMARY KEY REFERENCES organizations(id),
	name            TEXT NOT NULL DEFAULT '',
	overview        TEXT NOT NULL DEFAULT '',
	capabilities    TEXT NOT NULL DEFAULT '[]',
	differentiators TEXT NOT NULL DEFAULT '[]',
	certifications  TEXT NOT NULL DEFAULT '[]',
	contact_name    TEXT NOT NULL DEFAULT '',
	contact_email   TEXT NOT NULL DEFAULT '',
	contact_phone   TEXT NOT NULL DEFAULT '',
	website         TEXT NOT NULL DEFAULT '',
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS rfi_questions (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	text       TEXT NOT NULL,
	category   TEXT NOT NULL DEFAULT 'general',
	answer     TEXT NOT NULL DEFAULT '',
	position   INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_rfi_questions_project_position ON rfi_questions(project_id, position);

CREATE TABLE IF NOT EXISTS company_knowledge (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	category   TEXT NOT NULL DEFAULT 'other',
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS drafts (
	id              TEXT PRIMARY KEY,
	project_id      TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	content         TEXT NOT NULL,
	current_version INTEGER NOT NULL DEFAULT 1,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS draft_revisions (
	id         TEXT PRIMARY KEY,
	draft_id   TEXT NOT NULL REFERENCES drafts(id) ON DELETE CASCADE,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	version    INTEGER NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (draft_id, version)
);

CREATE TABLE IF NOT EXISTS project_activity (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	action     TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_project_activity_project ON project_activity(project_id, created_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx runs fn in a transaction, rolling back on error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// checkRowsAffected returns a NotFoundError if no rows were affected.
func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", resource, id)
	}
	if n == 0 {
		return model.NotFound(resource, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullString(raw []byte) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

// --- Projects ---

func (s *SQLiteStore) CreateProject(ctx context.Context, p *model.Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.OrganizationID == "" {
		p.OrganizationID = DefaultOrganizationID
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	var due sql.NullTime
	if p.DueDate != nil {
		due = sql.NullTime{Time: p.DueDate.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, organization_id, name, project_type, organization_name, description, due_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrganizationID, p.Name, string(p.ProjectType), p.OrganizationName, p.Description, due, now, now,
	)
	return eris.Wrap(err, "sqlite: insert project")
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanSQLiteProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("project", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get project %s", id)
	}
	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context, filter model.ProjectFilter) ([]model.Project, error) {
	query, args, err := listProjectsQuery(filter, sq.Question, false)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list projects")
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		p, err := scanSQLiteProject(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan project")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate projects")
}

func (s *SQLiteStore) SetProjectArchive(ctx context.Context, id string, archivedAt *time.Time, reason string) error {
	var at sql.NullTime
	if archivedAt != nil {
		at = sql.NullTime{Time: archivedAt.UTC(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET archived_at = ?, archive_reason = ?, updated_at = ? WHERE id = ?`,
		at, reason, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: archive project %s", id)
	}
	return checkRowsAffected(res, "project", id)
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete project %s", id)
	}
	return checkRowsAffected(res, "project", id)
}

func scanSQLiteProject(row scanner) (*model.Project, error) {
	var p model.Project
	var projectType string
	var due, archived sql.NullTime
	var activeDraft sql.NullString
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &projectType, &p.OrganizationName, &p.Description,
		&due, &activeDraft, &archived, &p.ArchiveReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ProjectType = model.ProjectType(projectType)
	p.DueDate = nullTimePtr(due)
	p.ArchivedAt = nullTimePtr(archived)
	if activeDraft.Valid {
		p.ActiveDraftID = &activeDraft.String
	}
	return &p, nil
}

// --- Activity ---

func (s *SQLiteStore) LogActivity(ctx context.Context, a *model.Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO project_activity (id, project_id, action, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.ProjectID, a.Action, a.Detail, a.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert activity")
}

func (s *SQLiteStore) ListActivity(ctx context.Context, projectID string, limit int) ([]model.Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, action, detail, created_at FROM project_activity
		 WHERE project_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		projectID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list activity")
	}
	defer rows.Close()

	var out []model.Activity
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.Action, &a.Detail, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan activity")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate activity")
}

// --- Documents ---

func (s *SQLiteStore) CreateDocument(ctx context.Context, d *model.Document) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	d.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, project_id, filename, mime_type, size_bytes, content, page_count, sheet_count, word_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ProjectID, d.Filename, d.MimeType, d.SizeBytes, d.Content, d.PageCount, d.SheetCount, d.WordCount, d.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert document")
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanSQLiteDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("document", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document %s", id)
	}
	return d, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, projectID string) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE project_id = ? ORDER BY created_at, rowid`, projectID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		d, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate documents")
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, projectID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ? AND project_id = ?`, id, projectID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete document %s", id)
	}
	return checkRowsAffected(res, "document", id)
}

func scanSQLiteDocument(row scanner) (*model.Document, error) {
	var d model.Document
	var cache sql.NullString
	var generated sql.NullTime
	err := row.Scan(&d.ID, &d.ProjectID, &d.Filename, &d.MimeType, &d.SizeBytes, &d.Content,
		&d.PageCount, &d.SheetCount, &d.WordCount, &cache, &generated, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	if cache.Valid {
		d.SummaryCache = []byte(cache.String)
	}
	d.SummaryGeneratedAt = nullTimePtr(generated)
	return &d, nil
}

// --- Web sources ---

func (s *SQLiteStore) CreateWebSource(ctx context.Context, w *model.WebSource) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO web_sources (id, project_id, url, title, content, fetch_method, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.ProjectID, w.URL, w.Title, w.Content, string(w.FetchMethod), now, now,
	)
	return eris.Wrap(err, "sqlite: insert web source")
}

func (s *SQLiteStore) GetWebSource(ctx context.Context, id string) (*model.WebSource, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+webSourceColumns+` FROM web_sources WHERE id = ?`, id)
	w, err := scanSQLiteWebSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("web source", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get web source %s", id)
	}
	return w, nil
}

func (s *SQLiteStore) ListWebSources(ctx context.Context, projectID string) ([]model.WebSource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+webSourceColumns+` FROM web_sources WHERE project_id = ? ORDER BY created_at, rowid`, projectID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list web sources")
	}
	defer rows.Close()

	var out []model.WebSource
	for rows.Next() {
		w, err := scanSQLiteWebSource(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan web source")
		}
		out = append(out, *w)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate web sources")
}

func (s *SQLiteStore) UpdateWebSourceContent(ctx context.Context, id, title, content string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE web_sources SET title = ?, content = ?, summary_cache = NULL, summary_generated_at = NULL, updated_at = ?
		 WHERE id = ?`,
		title, content, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update web source %s", id)
	}
	return checkRowsAffected(res, "web source", id)
}

func (s *SQLiteStore) DeleteWebSource(ctx context.Context, projectID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM web_sources WHERE id = ? AND project_id = ?`, id, projectID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete web source %s", id)
	}
	return checkRowsAffected(res, "web source", id)
}

func scanSQLiteWebSource(row scanner) (*model.WebSource, error) {
	var w model.WebSource
	var method string
	var cache sql.NullString
	var generated sql.NullTime
	err := row.Scan(&w.ID, &w.ProjectID, &w.URL, &w.Title, &w.Content, &method,
		&cache, &generated, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.FetchMethod = model.FetchMethod(method)
	if cache.Valid {
		w.SummaryCache = []byte(cache.String)
	}
	w.SummaryGeneratedAt = nullTimePtr(generated)
	return &w, nil
}

// --- Summary cache ---

func (s *SQLiteStore) GetSummaryCache(ctx context.Context, kind model.EntityKind, id string) (*model.CachedSummary, error) {
	table, err := summaryTable(kind)
	if err != nil {
		return nil, err
	}
	var cache sql.NullString
	var generated sql.NullTime
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT summary_cache, summary_generated_at FROM %s WHERE id = ?`, table), id,
	).Scan(&cache, &generated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound(resourceName(kind), id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get summary cache %s", id)
	}
	cs := &model.CachedSummary{GeneratedAt: nullTimePtr(generated)}
	if cache.Valid {
		cs.Data = []byte(cache.String)
	}
	return cs, nil
}

func (s *SQLiteStore) SetSummaryCache(ctx context.Context, kind model.EntityKind, id string, data []byte, generatedAt time.Time) error {
	table, err := summaryTable(kind)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET summary_cache = ?, summary_generated_at = ? WHERE id = ?`, table),
		nullString(data), generatedAt.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set summary cache %s", id)
	}
	return checkRowsAffected(res, resourceName(kind), id)
}

func (s *SQLiteStore) ClearSummaryCache(ctx context.Context, kind model.EntityKind, id string) error {
	table, err := summaryTable(kind)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET summary_cache = NULL, summary_generated_at = NULL WHERE id = ?`, table), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: clear summary cache %s", id)
	}
	return checkRowsAffected(res, resourceName(kind), id)
}

// --- Company profile ---

func (s *SQLiteStore) GetCompanyInfo(ctx context.Context) (*model.CompanyInfo, error) {
	var c model.CompanyInfo
	var caps, diffs, certs string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, overview, capabilities, differentiators, certifications, contact_name, contact_email, contact_phone, website, updated_at
		 FROM company_info WHERE organization_id = ?`,
		DefaultOrganizationID,
	).Scan(&c.Name, &c.Overview, &caps, &diffs, &certs, &c.ContactName, &c.ContactEmail, &c.ContactPhone, &c.Website, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.CompanyInfo{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get company info")
	}
	if err := unmarshalLists(&c, []byte(caps), []byte(diffs), []byte(certs)); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal company lists")
	}
	return &c, nil
}

func (s *SQLiteStore) UpsertCompanyInfo(ctx context.Context, c *model.CompanyInfo) error {
	caps, diffs, certs, err := marshalLists(c)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal company lists")
	}
	c.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO company_info (organization_id, name, overview, capabilities, differentiators, certifications, contact_name, contact_email, contact_phone, website, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (organization_id) DO UPDATE SET
		   name = excluded.name, overview = excluded.overview, capabilities = excluded.capabilities,
		   differentiators = excluded.differentiators, certifications = excluded.certifications,
		   contact_name = excluded.contact_name, contact_email = excluded.contact_email,
		   contact_phone = excluded.contact_phone, website = excluded.website, updated_at = excluded.updated_at`,
		DefaultOrganizationID, c.Name, c.Overview, string(caps), string(diffs), string(certs),
		c.ContactName, c.ContactEmail, c.ContactPhone, c.Website, c.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: upsert company info")
}

// --- Knowledge base ---

func (s *SQLiteStore) CreateKnowledge(ctx context.Context, e *model.KnowledgeEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO company_knowledge (id, title, category, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Title, string(e.Category), e.Content, e.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert knowledge")
}

func (s *SQLiteStore) ListKnowledge(ctx context.Context) ([]model.KnowledgeEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, category, content, created_at FROM company_knowledge ORDER BY created_at, rowid`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list knowledge")
	}
	defer rows.Close()

	var out []model.KnowledgeEntry
	for rows.Next() {
		var e model.KnowledgeEntry
		var category string
		if err := rows.Scan(&e.ID, &e.Title, &category, &e.Content, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan knowledge")
		}
		e.Category = model.KnowledgeCategory(category)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate knowledge")
}

func (s *SQLiteStore) DeleteKnowledge(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM company_knowledge WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete knowledge %s", id)
	}
	return checkRowsAffected(res, "knowledge entry", id)
}

// --- Questions ---

func (s *SQLiteStore) CreateQuestions(ctx context.Context, qs []model.Question) error {
	if len(qs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO rfi_questions (id, project_id, text, category, answer, position, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare question insert")
		}
		defer stmt.Close()

		for i := range qs {
			if qs[i].ID == "" {
				qs[i].ID = uuid.New().String()
			}
			qs[i].CreatedAt, qs[i].UpdatedAt = now, now
			q := qs[i]
			if _, err := stmt.ExecContext(ctx, q.ID, q.ProjectID, q.Text, string(q.Category), q.Answer, q.Position, now, now); err != nil {
				return eris.Wrapf(err, "sqlite: insert question %d", i)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListQuestions(ctx context.Context, projectID string) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM rfi_questions WHERE project_id = ? ORDER BY position, created_at, rowid`, projectID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list questions")
	}
	defer rows.Close()

	var out []model.Question
	for rows.Next() {
		q, err := scanSQLiteQuestion(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan question")
		}
		out = append(out, *q)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate questions")
}

func (s *SQLiteStore) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM rfi_questions WHERE id = ?`, id)
	q, err := scanSQLiteQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("question", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get question %s", id)
	}
	return q, nil
}

func (s *SQLiteStore) UpdateQuestion(ctx context.Context, q *model.Question) error {
	q.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE rfi_questions SET text = ?, category = ?, answer = ?, updated_at = ? WHERE id = ? AND project_id = ?`,
		q.Text, string(q.Category), q.Answer, q.UpdatedAt, q.ID, q.ProjectID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update question %s", q.ID)
	}
	return checkRowsAffected(res, "question", q.ID)
}

func (s *SQLiteStore) DeleteQuestion(ctx context.Context, projectID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rfi_questions WHERE id = ? AND project_id = ?`, id, projectID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete question %s", id)
	}
	return checkRowsAffected(res, "question", id)
}

func (s *SQLiteStore) ReorderQuestions(ctx context.Context, projectID string, order []model.QuestionPosition) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, item := range order {
			res, err := tx.ExecContext(ctx,
				`UPDATE rfi_questions SET position = ?, updated_at = ? WHERE id = ? AND project_id = ?`,
				item.Position, now, item.ID, projectID,
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: reorder question %s", item.ID)
			}
			if err := checkRowsAffected(res, "question", item.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) SetAnswers(ctx context.Context, projectID string, answers []model.Answer) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, a := range answers {
			if _, err := tx.ExecContext(ctx,
				`UPDATE rfi_questions SET answer = ?, updated_at = ? WHERE id = ? AND project_id = ?`,
				a.Text, now, a.QuestionID, projectID,
			); err != nil {
				return eris.Wrapf(err, "sqlite: set answer %s", a.QuestionID)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) NextQuestionPosition(ctx context.Context, projectID string) (int, error) {
	var next int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM rfi_questions WHERE project_id = ?`, projectID,
	).Scan(&next)
	return next, eris.Wrap(err, "sqlite: next question position")
}

func scanSQLiteQuestion(row scanner) (*model.Question, error) {
	var q model.Question
	var category string
	err := row.Scan(&q.ID, &q.ProjectID, &q.Text, &category, &q.Answer, &q.Position, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	q.Category = model.QuestionCategory(category)
	return &q, nil
}

// --- Drafts ---

func (s *SQLiteStore) GetActiveDraft(ctx context.Context, projectID string) (*model.Draft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT d.id, d.project_id, d.content, d.current_version, d.created_at, d.updated_at
		 FROM drafts d JOIN projects p ON p.active_draft_id = d.id WHERE p.id = ?`, projectID)
	var d model.Draft
	var content string
	err := row.Scan(&d.ID, &d.ProjectID, &content, &d.CurrentVersion, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("draft", projectID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get active draft %s", projectID)
	}
	d.Content = json.RawMessage(content)
	return &d, nil
}

// CreateDraft claims the project's active_draft_id while it is unset and
// inserts the draft with its first revision. A project that already has a
// draft yields model.ErrConflict.
func (s *SQLiteStore) CreateDraft(ctx context.Context, projectID string, content, metadata json.RawMessage) (*model.Draft, error) {
	now := time.Now().UTC()
	d := &model.Draft{
		ID:             uuid.New().String(),
		ProjectID:      projectID,
		Content:        content,
		CurrentVersion: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE projects SET active_draft_id = ?, updated_at = ? WHERE id = ? AND active_draft_id IS NULL`,
			d.ID, now, projectID)
		if err != nil {
			return eris.Wrap(err, "sqlite: set active draft")
		}
		if n, err := res.RowsAffected(); err != nil {
			return eris.Wrap(err, "sqlite: rows affected for active draft")
		} else if n == 0 {
			var exists int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE id = ?`, projectID).Scan(&exists); err != nil {
				return eris.Wrapf(err, "sqlite: check project %s", projectID)
			}
			if exists == 0 {
				return model.NotFound("project", projectID)
			}
			return eris.Wrapf(model.ErrConflict, "sqlite: project %s already has an active draft", projectID)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO drafts (id, project_id, content, current_version, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			d.ID, projectID, string(content), 1, now, now,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert draft")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO draft_revisions (id, draft_id, project_id, version, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), d.ID, projectID, 1, string(content), nullString(metadata), now,
		)
		return eris.Wrap(err, "sqlite: insert first revision")
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *SQLiteStore) AppendRevision(ctx context.Context, draftID string, content, metadata json.RawMessage) (*model.DraftRevision, error) {
	rev, _, err := s.SaveRevision(ctx, draftID, content, metadata, nil)
	return rev, err
}

// SaveRevision appends content unless equal reports it matches the stored
// content. The single connection serializes transactions, so the compare
// and the append cannot interleave with another save.
func (s *SQLiteStore) SaveRevision(ctx context.Context, draftID string, content, metadata json.RawMessage, equal ContentEqual) (*model.DraftRevision, bool, error) {
	var (
		rev     *model.DraftRevision
		changed bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if equal != nil {
			var stored string
			err := tx.QueryRowContext(ctx, `SELECT content FROM drafts WHERE id = ?`, draftID).Scan(&stored)
			if errors.Is(err, sql.ErrNoRows) {
				return model.NotFound("draft", draftID)
			}
			if err != nil {
				return eris.Wrapf(err, "sqlite: read draft %s", draftID)
			}
			same, err := equal(json.RawMessage(stored), content)
			if err != nil {
				return err
			}
			if same {
				rev, err = scanSQLiteRevision(tx.QueryRowContext(ctx,
					`SELECT `+revisionColumns+` FROM draft_revisions WHERE draft_id = ? ORDER BY version DESC LIMIT 1`, draftID))
				return eris.Wrapf(err, "sqlite: latest revision %s", draftID)
			}
		}

		now := time.Now().UTC()
		rev = &model.DraftRevision{
			ID:        uuid.New().String(),
			DraftID:   draftID,
			Content:   content,
			Metadata:  metadata,
			CreatedAt: now,
		}
		err := tx.QueryRowContext(ctx,
			`UPDATE drafts SET content = ?, current_version = current_version + 1, updated_at = ?
			 WHERE id = ? RETURNING current_version, project_id`,
			string(content), now, draftID,
		).Scan(&rev.Version, &rev.ProjectID)
		if errors.Is(err, sql.ErrNoRows) {
			return model.NotFound("draft", draftID)
		}
		if err != nil {
			return eris.Wrapf(err, "sqlite: bump draft version %s", draftID)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO draft_revisions (id, draft_id, project_id, version, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rev.ID, draftID, rev.ProjectID, rev.Version, string(content), nullString(metadata), now,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert revision")
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return rev, changed, nil
}

func (s *SQLiteStore) LatestRevision(ctx context.Context, draftID string) (*model.DraftRevision, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+revisionColumns+` FROM draft_revisions WHERE draft_id = ? ORDER BY version DESC LIMIT 1`, draftID)
	rev, err := scanSQLiteRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("revision", draftID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest revision %s", draftID)
	}
	return rev, nil
}

func (s *SQLiteStore) GetRevision(ctx context.Context, id string) (*model.DraftRevision, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+revisionColumns+` FROM draft_revisions WHERE id = ?`, id)
	rev, err := scanSQLiteRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("revision", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get revision %s", id)
	}
	return rev, nil
}

func (s *SQLiteStore) ListRevisions(ctx context.Context, draftID string) ([]model.DraftRevision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+revisionColumns+` FROM draft_revisions WHERE draft_id = ? ORDER BY version DESC`, draftID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list revisions")
	}
	defer rows.Close()

	var out []model.DraftRevision
	for rows.Next() {
		rev, err := scanSQLiteRevision(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan revision")
		}
		out = append(out, *rev)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate revisions")
}

func (s *SQLiteStore) DeleteDrafts(ctx context.Context, projectID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE projects SET active_draft_id = NULL, updated_at = ? WHERE id = ?`, time.Now().UTC(), projectID,
		); err != nil {
			return eris.Wrap(err, "sqlite: clear active draft")
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM drafts WHERE project_id = ?`, projectID)
		return eris.Wrap(err, "sqlite: delete drafts")
	})
}

func scanSQLiteRevision(row scanner) (*model.DraftRevision, error) {
	var r model.DraftRevision
	var content string
	var metadata sql.NullString
	if err := row.Scan(&r.ID, &r.DraftID, &r.ProjectID, &r.Version, &content, &metadata, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Content = json.RawMessage(content)
	if metadata.Valid && metadata.String != "" {
		r.Metadata = json.RawMessage(metadata.String)
	}
	return &r, nil
}
