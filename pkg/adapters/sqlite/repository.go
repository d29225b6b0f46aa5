// Package sqlite implements core.Repository on a SQLite database using the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aretw0/scribe/pkg/core"
)

// Repository stores subjects and notes in SQLite.
type Repository struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger of the repository.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Open opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for a throwaway database.
func Open(path string, opts ...Option) (*Repository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them in force.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}

	r := &Repository{
		db:     db,
		path:   path,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migration: %w", err)
	}
	r.logger.Debug("database ready", "path", path)
	return r, nil
}

func (r *Repository) migrate() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS subjects (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS notes (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			subject_id   INTEGER NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
			title        TEXT NOT NULL,
			content_json TEXT NOT NULL DEFAULT '{}',
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_notes_subject ON notes(subject_id);
	`)
	return err
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// CreateSubject inserts a subject and returns its id.
func (r *Repository) CreateSubject(ctx context.Context, name string) (core.SubjectID, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO subjects (name, created_at) VALUES (?, ?)`, name, now())
	if err != nil {
		return 0, fmt.Errorf("insert subject: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert subject: %w", err)
	}
	return core.SubjectID(id), nil
}

// DeleteSubject removes a subject and, by cascade, its notes.
func (r *Repository) DeleteSubject(ctx context.Context, id core.SubjectID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete subject %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("subject %d: %w", id, core.ErrSubjectNotFound)
	}
	return nil
}

func (r *Repository) Create(ctx context.Context, subjectID core.SubjectID, title, doc string) (core.Note, error) {
	if err := r.requireSubject(ctx, subjectID); err != nil {
		return core.Note{}, err
	}
	if doc == "" {
		doc = core.EmptyDocument
	}
	ts := now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (subject_id, title, content_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		subjectID, title, doc, ts, ts)
	if err != nil {
		return core.Note{}, fmt.Errorf("insert note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Note{}, fmt.Errorf("insert note: %w", err)
	}
	return core.Note{ID: core.NoteID(id), SubjectID: subjectID, Title: title, Document: doc}, nil
}

func (r *Repository) Get(ctx context.Context, id core.NoteID) (core.Note, error) {
	var n core.Note
	err := r.db.QueryRowContext(ctx,
		`SELECT id, subject_id, title, content_json FROM notes WHERE id = ?`, id,
	).Scan(&n.ID, &n.SubjectID, &n.Title, &n.Document)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Note{}, fmt.Errorf("note %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Note{}, fmt.Errorf("query note %d: %w", id, err)
	}
	return n, nil
}

func (r *Repository) Update(ctx context.Context, id core.NoteID, patch core.NotePatch) (core.Note, error) {
	if patch.IsEmpty() {
		return r.Get(ctx, id)
	}

	sets := []string{"updated_at = ?"}
	args := []any{now()}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Document != nil {
		sets = append(sets, "content_json = ?")
		args = append(args, *patch.Document)
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, `UPDATE notes SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return core.Note{}, fmt.Errorf("update note %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Note{}, fmt.Errorf("note %d: %w", id, core.ErrNotFound)
	}
	return r.Get(ctx, id)
}

func (r *Repository) Remove(ctx context.Context, id core.NoteID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("note %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) ListBySubject(ctx context.Context, subjectID core.SubjectID) (core.NoteList, error) {
	if err := r.requireSubject(ctx, subjectID); err != nil {
		return core.NoteList{}, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, subject_id, title, content_json FROM notes WHERE subject_id = ? ORDER BY id`, subjectID)
	if err != nil {
		return core.NoteList{}, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	list := core.NoteList{SubjectID: subjectID, Notes: []core.Note{}}
	for rows.Next() {
		var n core.Note
		if err := rows.Scan(&n.ID, &n.SubjectID, &n.Title, &n.Document); err != nil {
			return core.NoteList{}, fmt.Errorf("scan note: %w", err)
		}
		list.Notes = append(list.Notes, n)
	}
	if err := rows.Err(); err != nil {
		return core.NoteList{}, fmt.Errorf("query notes: %w", err)
	}
	list.Total = len(list.Notes)
	return list, nil
}

func (r *Repository) requireSubject(ctx context.Context, id core.SubjectID) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM subjects WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("subject %d: %w", id, core.ErrSubjectNotFound)
	}
	if err != nil {
		return fmt.Errorf("query subject %d: %w", id, err)
	}
	return nil
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "sqlite"
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

var _ core.Repository = (*Repository)(nil)
