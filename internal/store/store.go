package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yangwenmai/pmgenie/internal/model"
)

// Verify at compile time that Store implements all interfaces.
var (
	_ MockupReader      = (*Store)(nil)
	_ MockupWriter      = (*Store)(nil)
	_ RenderClaimer     = (*Store)(nil)
	_ FeedbackStore     = (*Store)(nil)
	_ ConversationStore = (*Store)(nil)
)

// Store provides data access to the SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: mockups and feedback
		s.migrateV2, // v1 → v2: render tracking columns
		s.migrateV3, // v2 → v3: conversations
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Store) migrateV1() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS mockups (
		id                  TEXT PRIMARY KEY,
		project_name        TEXT NOT NULL DEFAULT '',
		prompt              TEXT NOT NULL,
		html_content        TEXT NOT NULL,
		html_filename       TEXT NOT NULL,
		screenshot_filename TEXT NOT NULL,
		github_repo_url     TEXT,
		created_at          TEXT NOT NULL,
		updated_at          TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_mockups_created ON mockups(created_at DESC);

	CREATE TABLE IF NOT EXISTS feedback (
		mockup_id TEXT NOT NULL REFERENCES mockups(id) ON DELETE CASCADE,
		id        INTEGER NOT NULL,
		author    TEXT NOT NULL,
		text      TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		PRIMARY KEY (mockup_id, id)
	);
	`)
	return err
}

func (s *Store) migrateV2() error {
	_, err := s.db.Exec(`
	ALTER TABLE mockups ADD COLUMN render_status TEXT NOT NULL DEFAULT 'PENDING';
	ALTER TABLE mockups ADD COLUMN render_attempts INTEGER NOT NULL DEFAULT 0;
	ALTER TABLE mockups ADD COLUMN render_error TEXT;
	CREATE INDEX IF NOT EXISTS idx_mockups_render ON mockups(render_status, created_at);
	`)
	return err
}

func (s *Store) migrateV3() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS conversations (
		id                TEXT PRIMARY KEY,
		state             TEXT NOT NULL,
		ready_to_generate INTEGER NOT NULL DEFAULT 0,
		project_name      TEXT NOT NULL DEFAULT '',
		github_repo_url   TEXT NOT NULL DEFAULT '',
		repository_readme TEXT NOT NULL DEFAULT '',
		mockup_id         TEXT NOT NULL DEFAULT '',
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversation_messages (
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		seq             INTEGER NOT NULL,
		role            TEXT NOT NULL,
		content         TEXT NOT NULL,
		PRIMARY KEY (conversation_id, seq)
	);
	`)
	return err
}

// ---------------------------------------------------------------------------
// Mockups
// ---------------------------------------------------------------------------

const mockupColumns = `id, project_name, prompt, html_content, html_filename, screenshot_filename,
	COALESCE(github_repo_url, ''), render_status, render_attempts, COALESCE(render_error, ''), created_at, updated_at`

// CreateMockup inserts a new mockup record.
func (s *Store) CreateMockup(ctx context.Context, m model.Mockup) error {
	if m.RenderStatus == "" {
		m.RenderStatus = model.RenderPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mockups (id, project_name, prompt, html_content, html_filename, screenshot_filename, github_repo_url, render_status, render_attempts, render_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProjectName, m.Prompt, m.HTMLContent, m.HTMLFilename, m.ScreenshotFilename,
		nullString(m.GitHubRepoURL), m.RenderStatus, m.RenderAttempts, nullString(m.RenderError),
		m.CreatedAt, m.UpdatedAt,
	)
	return err
}

// GetMockup returns a mockup with its HTML and feedback thread.
func (s *Store) GetMockup(ctx context.Context, id string) (*model.Mockup, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mockupColumns+` FROM mockups WHERE id = ?`, id)
	m, err := scanMockup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mockup %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	fb, err := s.listFeedback(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Feedback = fb
	return m, nil
}

// ListMockups returns mockups newest first. HTML is only loaded when the
// filter asks for it.
func (s *Store) ListMockups(ctx context.Context, f model.MockupFilter) ([]model.Mockup, error) {
	cols := mockupColumns
	if !f.IncludeHTML {
		cols = `id, project_name, prompt, '', html_filename, screenshot_filename,
	COALESCE(github_repo_url, ''), render_status, render_attempts, COALESCE(render_error, ''), created_at, updated_at`
	}
	query := `SELECT ` + cols + ` FROM mockups ORDER BY created_at DESC, id DESC`
	var args []any
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mockups := []model.Mockup{}
	for rows.Next() {
		m, err := scanMockup(rows)
		if err != nil {
			return nil, err
		}
		mockups = append(mockups, *m)
	}
	return mockups, rows.Err()
}

// UpdateMockupContent replaces the HTML and queues the mockup for a fresh
// render.
func (s *Store) UpdateMockupContent(ctx context.Context, id, html string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE mockups SET html_content = ?, render_status = ?, render_attempts = 0, render_error = NULL, updated_at = ?
		WHERE id = ?`,
		html, model.RenderPending, model.Now(), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res, "mockup", id)
}

// SetRenderResult records the outcome of one render attempt.
func (s *Store) SetRenderResult(ctx context.Context, id, status string, errorInfo *string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE mockups SET render_status = ?, render_error = ?, render_attempts = render_attempts + 1, updated_at = ?
		WHERE id = ?`,
		status, errorInfo, model.Now(), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res, "mockup", id)
}

// ClaimNextRender atomically picks the oldest mockup that still needs a
// preview and marks it RENDERING. Mockups with a previous attempt are only
// eligible once their last attempt is older than retryBefore. Returns nil
// if none is available.
func (s *Store) ClaimNextRender(ctx context.Context, maxAttempts int, retryBefore time.Time) (*model.Mockup, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE mockups SET render_status = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM mockups
			WHERE render_status IN (?, ?) AND render_attempts < ?
			  AND (render_attempts = 0 OR updated_at <= ?)
			ORDER BY created_at ASC LIMIT 1
		)
		RETURNING `+mockupColumns,
		model.RenderRendering, model.Now(), model.RenderPending, model.RenderFailed, maxAttempts,
		retryBefore.UTC().Format(model.TimeFormat),
	)
	m, err := scanMockup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// ResetStaleRenders puts RENDERING mockups back to PENDING (for server restart).
func (s *Store) ResetStaleRenders(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE mockups SET render_status = ?, updated_at = ? WHERE render_status = ?`,
		model.RenderPending, model.Now(), model.RenderRendering)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---------------------------------------------------------------------------
// Feedback
// ---------------------------------------------------------------------------

// AddFeedback appends a feedback entry, numbering it after the mockup's
// previous entries. Unknown mockups yield model.ErrNotFound and write nothing.
func (s *Store) AddFeedback(ctx context.Context, fb model.Feedback) (model.Feedback, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fb, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM mockups WHERE id = ?`, fb.MockupID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fb, fmt.Errorf("mockup %s: %w", fb.MockupID, model.ErrNotFound)
	}
	if err != nil {
		return fb, err
	}

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM feedback WHERE mockup_id = ?`, fb.MockupID).Scan(&fb.ID); err != nil {
		return fb, err
	}
	if fb.Timestamp == "" {
		fb.Timestamp = model.Now()
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO feedback (mockup_id, id, author, text, timestamp) VALUES (?, ?, ?, ?, ?)`,
		fb.MockupID, fb.ID, fb.Author, fb.Text, fb.Timestamp); err != nil {
		return fb, err
	}
	return fb, tx.Commit()
}

// ListFeedback returns a mockup's feedback in timestamp order.
func (s *Store) ListFeedback(ctx context.Context, mockupID string) ([]model.Feedback, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM mockups WHERE id = ?`, mockupID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mockup %s: %w", mockupID, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s.listFeedback(ctx, mockupID)
}

func (s *Store) listFeedback(ctx context.Context, mockupID string) ([]model.Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mockup_id, author, text, timestamp FROM feedback WHERE mockup_id = ? ORDER BY timestamp ASC, id ASC`, mockupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Feedback{}
	for rows.Next() {
		var fb model.Feedback
		if err := rows.Scan(&fb.ID, &fb.MockupID, &fb.Author, &fb.Text, &fb.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Conversations
// ---------------------------------------------------------------------------

// GetConversation loads a conversation with its messages in order.
func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	c := &model.Conversation{}
	var ready int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, state, ready_to_generate, project_name, github_repo_url, repository_readme, mockup_id, created_at, updated_at
		FROM conversations WHERE id = ?`, id,
	).Scan(&c.ID, &c.State, &ready, &c.ProjectName, &c.GitHubRepoURL, &c.RepositoryReadme, &c.MockupID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	c.ReadyToGenerate = ready != 0

	rows, err := s.db.QueryContext(ctx, `SELECT role, content FROM conversation_messages WHERE conversation_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c.Messages = []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, err
		}
		c.Messages = append(c.Messages, m)
	}
	return c, rows.Err()
}

// SaveConversation upserts the conversation row and appends any messages
// beyond those already stored. Messages are never rewritten.
func (s *Store) SaveConversation(ctx context.Context, c *model.Conversation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ready := 0
	if c.ReadyToGenerate {
		ready = 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, state, ready_to_generate, project_name, github_repo_url, repository_readme, mockup_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			ready_to_generate = excluded.ready_to_generate,
			project_name = excluded.project_name,
			github_repo_url = excluded.github_repo_url,
			repository_readme = excluded.repository_readme,
			mockup_id = excluded.mockup_id,
			updated_at = excluded.updated_at`,
		c.ID, c.State, ready, c.ProjectName, c.GitHubRepoURL, c.RepositoryReadme, c.MockupID, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		return err
	}

	var stored int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversation_messages WHERE conversation_id = ?`, c.ID).Scan(&stored); err != nil {
		return err
	}
	for i := stored; i < len(c.Messages); i++ {
		if _, err := tx.ExecContext(ctx, `INSERT INTO conversation_messages (conversation_id, seq, role, content) VALUES (?, ?, ?, ?)`,
			c.ID, i, c.Messages[i].Role, c.Messages[i].Content); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...any) error
}

func scanMockup(row scanner) (*model.Mockup, error) {
	var m model.Mockup
	err := row.Scan(&m.ID, &m.ProjectName, &m.Prompt, &m.HTMLContent, &m.HTMLFilename, &m.ScreenshotFilename,
		&m.GitHubRepoURL, &m.RenderStatus, &m.RenderAttempts, &m.RenderError, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Feedback = []model.Feedback{}
	return &m, nil
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, model.ErrNotFound)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
