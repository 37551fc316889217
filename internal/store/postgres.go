package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/rfpdesk/internal/db"
	"github.com/sells-group/rfpdesk/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS organizations (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

INSERT INTO organizations (id, name) VALUES ('default', 'Default') ON CONFLICT (id) DO NOTHING;

CREATE TABLE IF NOT EXISTS projects (
	id                TEXT PRIMARY KEY,
	organization_id   TEXT NOT NULL REFERENCES organizations(id),
	name              TEXT NOT NULL,
	project_type      TEXT NOT NULL,
	organization_name TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	due_date          TIMESTAMPTZ,
	active_draft_id   TEXT,
	archived_at       TIMESTAMPTZ,
	archive_reason    TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_projects_archived_at ON projects(archived_at);

CREATE TABLE IF NOT EXISTS documents (
	id                   TEXT PRIMARY KEY,
	project_id           TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	filename             TEXT NOT NULL,
	mime_type            TEXT NOT NULL DEFAULT '',
	size_bytes           BIGINT NOT NULL DEFAULT 0,
	content              TEXT NOT NULL DEFAULT '',
	page_count           INTEGER NOT NULL DEFAULT 0,
	sheet_count          INTEGER NOT NULL DEFAULT 0,
	word_count           INTEGER NOT NULL DEFAULT 0,
	summary_cache        JSONB,
	summary_generated_at TIMESTAMPTZ,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_project_id ON documents(project_id);

CREATE TABLE IF NOT EXISTS web_sources (
	id                   TEXT PRIMARY KEY,
	project_id           TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	url                  TEXT NOT NULL,
	title                TEXT NOT NULL DEFAULT '',
	content              TEXT NOT NULL DEFAULT '',
	fetch_method         TEXT NOT NULL DEFAULT '',
	summary_cache        JSONB,
	summary_generated_at TIMESTAMPTZ,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_web_sources_project_id ON web_sources(project_id);

CREATE TABLE IF NOT EXISTS company_info (
	organization_id TEXT PRIMARY KEY REFERENCES organizations(id),
	name            TEXT NOT NULL DEFAULT '',
	overview        TEXT NOT NULL DEFAULT '',
	capabilities    JSONB NOT NULL DEFAULT '[]',
	differentiators JSONB NOT NULL DEFAULT '[]',
	certifications  JSONB NOT NULL DEFAULT '[]',
	contact_name    TEXT NOT NULL DEFAULT '',
	contact_email   TEXT NOT NULL DEFAULT '',
	contact_phone   TEXT NOT NULL DEFAULT '',
	website         TEXT NOT NULL DEFAULT '',
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rfi_questions (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	text       TEXT NOT NULL,
	category   TEXT NOT NULL DEFAULT 'general',
	answer     TEXT NOT NULL DEFAULT '',
	position   INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_rfi_questions_project_position ON rfi_questions(project_id, position);

CREATE TABLE IF NOT EXISTS company_knowledge (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	category   TEXT NOT NULL DEFAULT 'other',
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS drafts (
	id              TEXT PRIMARY KEY,
	project_id      TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	content         JSONB NOT NULL,
	current_version INTEGER NOT NULL DEFAULT 1,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_drafts_project_id ON drafts(project_id);

CREATE TABLE IF NOT EXISTS draft_revisions (
	id         TEXT PRIMARY KEY,
	draft_id   TEXT NOT NULL REFERENCES drafts(id) ON DELETE CASCADE,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	version    INTEGER NOT NULL,
	content    JSONB NOT NULL,
	metadata   JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (draft_id, version)
);

CREATE TABLE IF NOT EXISTS project_activity (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	action     TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_project_activity_project ON project_activity(project_id, created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Projects ---

func (s *PostgresStore) CreateProject(ctx context.Context, p *model.Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.OrganizationID == "" {
		p.OrganizationID = DefaultOrganizationID
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, organization_id, name, project_type, organization_name, description, due_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.OrganizationID, p.Name, string(p.ProjectType), p.OrganizationName, p.Description, p.DueDate, now, now,
	)
	return eris.Wrap(err, "postgres: insert project")
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	p, err := scanPgProject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NotFound("project", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get project %s", id)
	}
	return p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, filter model.ProjectFilter) ([]model.Project, error) {
	query, args, err := listProjectsQuery(filter, sq.Dollar, true)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list projects")
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		p, err := scanPgProject(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan project")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate projects")
}

func (s *PostgresStore) SetProjectArchive(ctx context.Context, id string, archivedAt *time.Time, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET archived_at = $1, archive_reason = $2, updated_at = $3 WHERE id = $4`,
		archivedAt, reason, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: archive project %s", id)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound("project", id)
	}
	return nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete project %s", id)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound("project", id)
	}
	return nil
}

func scanPgProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	var projectType string
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &projectType, &p.OrganizationName, &p.Description,
		&p.DueDate, &p.ActiveDraftID, &p.ArchivedAt, &p.ArchiveReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ProjectType = model.ProjectType(projectType)
	return &p, nil
}

// --- Activity ---

func (s *PostgresStore) LogActivity(ctx context.Context, a *model.Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO project_activity (id, project_id, action, detail, created_at) VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.ProjectID, a.Action, a.Detail, a.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert activity")
}

func (s *PostgresStore) ListActivity(ctx context.Context, projectID string, limit int) ([]model.Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, action, detail, created_at FROM project_activity
		 WHERE project_id = $1 ORDER BY created_at DESC LIMIT $2`,
		projectID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list activity")
	}
	defer rows.Close()

	var out []model.Activity
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.Action, &a.Detail, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan activity")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate activity")
}

// --- Documents ---

const documentColumns = `id, project_id, filename, mime_type, size_bytes, content, page_count, sheet_count, word_count, summary_cache, summary_generated_at, created_at`

func (s *PostgresStore) CreateDocument(ctx context.Context, d *model.Document) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	d.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, project_id, filename, mime_type, size_bytes, content, page_count, sheet_count, word_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.ProjectID, d.Filename, d.MimeType, d.SizeBytes, d.Content, d.PageCount, d.SheetCount, d.WordCount, d.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert document")
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	d, err := scanPgDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NotFound("document", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get document %s", id)
	}
	return d, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, projectID string) ([]model.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		d, err := scanPgDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate documents")
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, projectID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete document %s", id)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound("document", id)
	}
	return nil
}

func scanPgDocument(row pgx.Row) (*model.Document, error) {
	var d model.Document
	err := row.Scan(&d.ID, &d.ProjectID, &d.Filename, &d.MimeType, &d.SizeBytes, &d.Content,
		&d.PageCount, &d.SheetCount, &d.WordCount, &d.SummaryCache, &d.SummaryGeneratedAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// --- Web sources ---

const webSourceColumns = `id, project_id, url, title, content, fetch_method, summary_cache, summary_generated_at, created_at, updated_at`

func (s *PostgresStore) CreateWebSource(ctx context.Context, w *model.WebSource) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now
	_, err := s.pool.Exec(ctx,
		`INSERT INTO web_sources (id, project_id, url, title, content, fetch_method, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, w.ProjectID, w.URL, w.Title, w.Content, string(w.FetchMethod), now, now,
	)
	return eris.Wrap(err, "postgres: insert web source")
}

func (s *PostgresStore) GetWebSource(ctx context.Context, id string) (*model.WebSource, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+webSourceColumns+` FROM web_sources WHERE id = $1`, id)
	w, err := scanPgWebSource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NotFound("web source", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get web source %s", id)
	}
	return w, nil
}

func (s *PostgresStore) ListWebSources(ctx context.Context, projectID string) ([]model.WebSource, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+webSourceColumns+` FROM web_sources WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list web sources")
	}
	defer rows.Close()

	var out []model.WebSource
	for rows.Next() {
		w, err := scanPgWebSource(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan web source")
		}
		out = append(out, *w)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate web sources")
}

// UpdateWebSourceContent replaces the text and clears the summary cache in
// the same statement.
func (s *PostgresStore) UpdateWebSourceContent(ctx context.Context, id, title, content string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE web_sources SET title = $1, content = $2, summary_cache = NULL, summary_generated_at = NULL, updated_at = $3
		 WHERE id = $4`,
		title, content, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update web source %s", id)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound("web source", id)
	}
	return nil
}

func (s *PostgresStore) DeleteWebSource(ctx context.Context, projectID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM web_sources WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete web source %s", id)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound("web source", id)
	}
	return nil
}

func scanPgWebSource(row pgx.Row) (*model.WebSource, error) {
	var w model.WebSource
	var method string
	err := row.Scan(&w.ID, &w.ProjectID, &w.URL, &w.Title, &w.Content, &method,
		&w.SummaryCache, &w.SummaryGeneratedAt, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.FetchMethod = model.FetchMethod(method)
	return &w, nil
}

// --- Summary cache ---

func (s *PostgresStore) GetSummaryCache(ctx context.Context, kind model.EntityKind, id string) (*model.CachedSummary, error) {
	table, err := summaryTable(kind)
	if err != nil {
		return nil, err
	}
	var cs model.CachedSummary
	err = s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT summary_cache, summary_generated_at FROM %s WHERE id = $1`, table), id,
	).Scan(&cs.Data, &cs.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NotFound(resourceName(kind), id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get summary cache %s", id)
	}
	return &cs, nil
}

func (s *PostgresStore) SetSummaryCache(ctx context.Context, kind model.EntityKind, id string, data []byte, generatedAt time.Time) error {
	table, err := summaryTable(kind)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET summary_cache = $1, summary_generated_at = $2 WHERE id = $3`, table),
		data, generatedAt, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set summary cache %s", id)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound(resourceName(kind), id)
	}
	return nil
}

func (s *PostgresStore) ClearSummaryCache(ctx context.Context, kind model.EntityKind, id string) error {
	table, err := summaryTable(kind)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET summary_cache = NULL, summary_generated_at = NULL WHERE id = $1`, table), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: clear summary cache %s", id)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound(resourceName(kind), id)
	}
	return nil
}

// --- Company profile ---

func (s *PostgresStore) GetCompanyInfo(ctx context.Context) (*model.CompanyInfo, error) {
	var c model.CompanyInfo
	var caps, diffs, certs []byte
	err := s.pool.QueryRow(ctx,
		`SELECT name, overview, capabilities, differentiators, certifications, contact_name, contact_email, contact_phone, website, updated_at
		 FROM company_info WHERE organization_id = $1`,
		DefaultOrganizationID,
	).Scan(&c.Name, &c.Overview, &caps, &diffs, &certs, &c.ContactName, &c.ContactEmail, &c.ContactPhone, &c.Website, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &model.CompanyInfo{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get company info")
	}
	if err := unmarshalLists(&c, caps, diffs, certs); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal company lists")
	}
	return &c, nil
}

func (s *PostgresStore) UpsertCompanyInfo(ctx context.Context, c *model.CompanyInfo) error {
	caps, diffs, certs, err := marshalLists(c)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal company lists")
	}
	c.UpdatedAt = time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO company_info (organization_id, name, overview, capabilities, differentiators, certifications, contact_name, contact_email, contact_phone, website, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (organization_id) DO UPDATE SET
		   name = EXCLUDED.name, overview = EXCLUDED.overview, capabilities = EXCLUDED.capabilities,
		   differentiators = EXCLUDED.differentiators, certifications = EXCLUDED.certifications,
		   contact_name = EXCLUDED.contact_name, contact_email = EXCLUDED.contact_email,
		   contact_phone = EXCLUDED.contact_phone, website = EXCLUDED.website, updated_at = EXCLUDED.updated_at`,
		DefaultOrganizationID, c.Name, c.Overview, caps, diffs, certs, c.ContactName, c.ContactEmail, c.ContactPhone, c.Website, c.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: upsert company info")
}

func marshalLists(c *model.CompanyInfo) (caps, diffs, certs []byte, err error) {
	lists := [][]string{c.Capabilities, c.Differentiators, c.Certifications}
	out := make([][]byte, len(lists))
	for i, l := range lists {
		if l == nil {
			l = []string{}
		}
		if out[i], err = json.Marshal(l); err != nil {
			return nil, nil, nil, err
		}
	}
	return out[0], out[1], out[2], nil
}

func unmarshalLists(c *model.CompanyInfo, caps, diffs, certs []byte) error {
	for _, pair := range []struct {
		data []byte
		dst  *[]string
	}{{caps, &c.Capabilities}, {diffs, &c.Differentiators}, {certs, &c.Certifications}} {
		if len(pair.data) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.data, pair.dst); err != nil {
			return err
		}
	}
	return nil
}

// --- Knowledge base ---

func (s *PostgresStore) CreateKnowledge(ctx context.Context, e *model.KnowledgeEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO company_knowledge (id, title, category, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.Title, string(e.Category), e.Content, e.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert knowledge")
}

func (s *PostgresStore) ListKnowledge(ctx context.Context) ([]model.KnowledgeEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, category, content, created_at FROM company_knowledge ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list knowledge")
	}
	defer rows.Close()

	var out []model.KnowledgeEntry
	for rows.Next() {
		var e model.KnowledgeEntry
		var category string
		if err := rows.Scan(&e.ID, &e.Title, &category, &e.Content, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan knowledge")
		}
		e.Category = model.KnowledgeCategory(category)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate knowledge")
}

func (s *PostgresStore) DeleteKnowledge(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM company_knowledge WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete knowledge %s", id)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound("knowledge entry", id)
	}
	return nil
}

// --- Questions ---

var questionCopyColumns = []string{"id", "project_id", "text", "category", "answer", "position", "created_at", "updated_at"}

// CreateQuestions bulk-inserts questions with COPY inside a transaction.
func (s *PostgresStore) CreateQuestions(ctx context.Context, qs []model.Question) error {
	if len(qs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range qs {
		if qs[i].ID == "" {
			qs[i].ID = uuid.New().String()
		}
		qs[i].CreatedAt, qs[i].UpdatedAt = now, now
	}

	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := db.CopyFrom(ctx, tx, "rfi_questions", questionCopyColumns, qs, func(q model.Question) []any {
			return []any{q.ID, q.ProjectID, q.Text, string(q.Category), q.Answer, q.Position, q.CreatedAt, q.UpdatedAt}
		})
		return eris.Wrap(err, "postgres: insert questions")
	})
}

const questionColumns = `id, project_id, text, category, answer, position, created_at, updated_at`

func (s *PostgresStore) ListQuestions(ctx context.Context, projectID string) ([]model.Question, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM rfi_questions WHERE project_id = $1 ORDER BY position, created_at`, projectID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list questions")
	}
	defer rows.Close()

	var out []model.Question
	for rows.Next() {
		q, err := scanPgQuestion(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan question")
		}
		out = append(out, *q)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate questions")
}

func (s *PostgresStore) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM rfi_questions WHERE id = $1`, id)
	q, err := scanPgQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NotFound("question", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get question %s", id)
	}
	return q, nil
}

func (s *PostgresStore) UpdateQuestion(ctx context.Context, q *model.Question) error {
	q.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE rfi_questions SET text = $1, category = $2, answer = $3, updated_at = $4 WHERE id = $5 AND project_id = $6`,
		q.Text, string(q.Category), q.Answer, q.UpdatedAt, q.ID, q.ProjectID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update question %s", q.ID)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound("question", q.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteQuestion(ctx context.Context, projectID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rfi_questions WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete question %s", id)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound("question", id)
	}
	return nil
}

// ReorderQuestions applies every position in one transaction. An id that
// does not belong to the project rolls the whole batch back.
func (s *PostgresStore) ReorderQuestions(ctx context.Context, projectID string, order []model.QuestionPosition) error {
	now := time.Now().UTC()
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, item := range order {
			tag, err := tx.Exec(ctx,
				`UPDATE rfi_questions SET position = $1, updated_at = $2 WHERE id = $3 AND project_id = $4`,
				item.Position, now, item.ID, projectID,
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: reorder question %s", item.ID)
			}
			if tag.RowsAffected() == 0 {
				return model.NotFound("question", item.ID)
			}
		}
		return nil
	})
}

// SetAnswers stores generated answers in one transaction.
func (s *PostgresStore) SetAnswers(ctx context.Context, projectID string, answers []model.Answer) error {
	now := time.Now().UTC()
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, a := range answers {
			_, err := tx.Exec(ctx,
				`UPDATE rfi_questions SET answer = $1, updated_at = $2 WHERE id = $3 AND project_id = $4`,
				a.Text, now, a.QuestionID, projectID,
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: set answer %s", a.QuestionID)
			}
		}
		return nil
	})
}

func (s *PostgresStore) NextQuestionPosition(ctx context.Context, projectID string) (int, error) {
	var next int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM rfi_questions WHERE project_id = $1`, projectID,
	).Scan(&next)
	return next, eris.Wrap(err, "postgres: next question position")
}

func scanPgQuestion(row pgx.Row) (*model.Question, error) {
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

const draftColumns = `id, project_id, content, current_version, created_at, updated_at`
const revisionColumns = `id, draft_id, project_id, version, content, metadata, created_at`

// GetActiveDraft follows the project's active_draft_id pointer.
func (s *PostgresStore) GetActiveDraft(ctx context.Context, projectID string) (*model.Draft, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT d.id, d.project_id, d.content, d.current_version, d.created_at, d.updated_at
		 FROM drafts d JOIN projects p ON p.active_draft_id = d.id WHERE p.id = $1`, projectID)
	d, err := scanPgDraft(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NotFound("draft", projectID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get active draft %s", projectID)
	}
	return d, nil
}

// CreateDraft points the project at a new draft, then inserts the draft at
// version 1 and its first revision, all in one transaction. The pointer is
// only claimed while unset; a project that already has a draft yields
// model.ErrConflict.
func (s *PostgresStore) CreateDraft(ctx context.Context, projectID string, content, metadata json.RawMessage) (*model.Draft, error) {
	now := time.Now().UTC()
	d := &model.Draft{
		ID:             uuid.New().String(),
		ProjectID:      projectID,
		Content:        content,
		CurrentVersion: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE projects SET active_draft_id = $1, updated_at = $2 WHERE id = $3 AND active_draft_id IS NULL`,
			d.ID, now, projectID)
		if err != nil {
			return eris.Wrap(err, "postgres: set active draft")
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, projectID).Scan(&exists); err != nil {
				return eris.Wrapf(err, "postgres: check project %s", projectID)
			}
			if !exists {
				return model.NotFound("project", projectID)
			}
			return eris.Wrapf(model.ErrConflict, "postgres: project %s already has an active draft", projectID)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO drafts (id, project_id, content, current_version, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			d.ID, projectID, []byte(content), 1, now, now,
		); err != nil {
			return eris.Wrap(err, "postgres: insert draft")
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO draft_revisions (id, draft_id, project_id, version, content, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New().String(), d.ID, projectID, 1, []byte(content), nullableJSON(metadata), now,
		)
		return eris.Wrap(err, "postgres: insert first revision")
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// AppendRevision bumps current_version atomically and records the revision
// under the new version.
func (s *PostgresStore) AppendRevision(ctx context.Context, draftID string, content, metadata json.RawMessage) (*model.DraftRevision, error) {
	rev, _, err := s.SaveRevision(ctx, draftID, content, metadata, nil)
	return rev, err
}

// SaveRevision appends content unless equal reports it matches the stored
// content. The draft row is locked FOR UPDATE during the comparison. When
// nothing changes the newest revision is returned with changed=false.
func (s *PostgresStore) SaveRevision(ctx context.Context, draftID string, content, metadata json.RawMessage, equal ContentEqual) (*model.DraftRevision, bool, error) {
	var (
		rev     *model.DraftRevision
		changed bool
	)
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if equal != nil {
			var stored []byte
			err := tx.QueryRow(ctx, `SELECT content FROM drafts WHERE id = $1 FOR UPDATE`, draftID).Scan(&stored)
			if errors.Is(err, pgx.ErrNoRows) {
				return model.NotFound("draft", draftID)
			}
			if err != nil {
				return eris.Wrapf(err, "postgres: lock draft %s", draftID)
			}
			same, err := equal(stored, content)
			if err != nil {
				return err
			}
			if same {
				rev, err = scanPgRevision(tx.QueryRow(ctx,
					`SELECT `+revisionColumns+` FROM draft_revisions WHERE draft_id = $1 ORDER BY version DESC LIMIT 1`, draftID))
				return eris.Wrapf(err, "postgres: latest revision %s", draftID)
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
		err := tx.QueryRow(ctx,
			`UPDATE drafts SET content = $1, current_version = current_version + 1, updated_at = $2
			 WHERE id = $3 RETURNING current_version, project_id`,
			[]byte(content), now, draftID,
		).Scan(&rev.Version, &rev.ProjectID)
		if errors.Is(err, pgx.ErrNoRows) {
			return model.NotFound("draft", draftID)
		}
		if err != nil {
			return eris.Wrapf(err, "postgres: bump draft version %s", draftID)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO draft_revisions (id, draft_id, project_id, version, content, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			rev.ID, draftID, rev.ProjectID, rev.Version, []byte(content), nullableJSON(metadata), now,
		); err != nil {
			return eris.Wrap(err, "postgres: insert revision")
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return rev, changed, nil
}

func (s *PostgresStore) LatestRevision(ctx context.Context, draftID string) (*model.DraftRevision, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+revisionColumns+` FROM draft_revisions WHERE draft_id = $1 ORDER BY version DESC LIMIT 1`, draftID)
	rev, err := scanPgRevision(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NotFound("revision", draftID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest revision %s", draftID)
	}
	return rev, nil
}

func (s *PostgresStore) GetRevision(ctx context.Context, id string) (*model.DraftRevision, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+revisionColumns+` FROM draft_revisions WHERE id = $1`, id)
	rev, err := scanPgRevision(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NotFound("revision", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get revision %s", id)
	}
	return rev, nil
}

func (s *PostgresStore) ListRevisions(ctx context.Context, draftID string) ([]model.DraftRevision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+revisionColumns+` FROM draft_revisions WHERE draft_id = $1 ORDER BY version DESC`, draftID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list revisions")
	}
	defer rows.Close()

	var out []model.DraftRevision
	for rows.Next() {
		rev, err := scanPgRevision(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan revision")
		}
		out = append(out, *rev)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate revisions")
}

// DeleteDrafts removes every draft of the project and clears its pointer.
func (s *PostgresStore) DeleteDrafts(ctx context.Context, projectID string) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE projects SET active_draft_id = NULL, updated_at = $1 WHERE id = $2`, time.Now().UTC(), projectID,
		); err != nil {
			return eris.Wrap(err, "postgres: clear active draft")
		}
		_, err := tx.Exec(ctx, `DELETE FROM drafts WHERE project_id = $1`, projectID)
		return eris.Wrap(err, "postgres: delete drafts")
	})
}

func scanPgDraft(row pgx.Row) (*model.Draft, error) {
	var d model.Draft
	var content []byte
	if err := row.Scan(&d.ID, &d.ProjectID, &content, &d.CurrentVersion, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Content = content
	return &d, nil
}

func scanPgRevision(row pgx.Row) (*model.DraftRevision, error) {
	var r model.DraftRevision
	var content, metadata []byte
	if err := row.Scan(&r.ID, &r.DraftID, &r.ProjectID, &r.Version, &content, &metadata, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Content = content
	if len(metadata) > 0 {
		r.Metadata = metadata
	}
	return &r, nil
}

// nullableJSON maps empty metadata to SQL NULL.
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
