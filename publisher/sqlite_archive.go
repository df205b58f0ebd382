package publisher

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteArchive keeps exports in a SQLite database: one row per session plus
// one row per blog revision.
type SQLiteArchive struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

// OpenSQLiteArchive opens (creating if needed) the database at path and applies the schema.
func OpenSQLiteArchive(path string) (*SQLiteArchive, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteArchive{db: db}, nil
}

func (a *SQLiteArchive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Save upserts the session row and replaces its revisions in one transaction.
func (a *SQLiteArchive) Save(ctx context.Context, rec Record) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	title, blog := "", ""
	if rec.Article != nil {
		title, blog = rec.Article.Title, rec.Article.Markdown
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO session_exports (session_id, state, raw_idea, title, final_blog, record_json, exported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   state = excluded.state,
		   raw_idea = excluded.raw_idea,
		   title = excluded.title,
		   final_blog = excluded.final_blog,
		   record_json = excluded.record_json,
		   exported_at = excluded.exported_at`,
		rec.SessionID,
		rec.Session.State.String(),
		rec.Session.RawIdea,
		title,
		blog,
		string(payload),
		toMillis(rec.ExportedAt),
	); err != nil {
		return fmt.Errorf("upsert session export: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM blog_revisions WHERE session_id = ?`, rec.SessionID); err != nil {
		return fmt.Errorf("clear blog revisions: %w", err)
	}
	for i, b := range rec.Session.Blogs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO blog_revisions (session_id, revision, styled_draft, created_at) VALUES (?, ?, ?, ?)`,
			rec.SessionID, i+1, b.StyledDraft, toMillis(b.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert blog revision %d: %w", i+1, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (a *SQLiteArchive) Load(ctx context.Context, sessionID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	var payload string
	err := a.db.QueryRowContext(ctx,
		`SELECT record_json FROM session_exports WHERE session_id = ?`, sessionID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("load session export: %w", err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
