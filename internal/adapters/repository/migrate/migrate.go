// Package migrate applies embedded, ordered SQL migrations and records them
// in a schema_migrations table.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/okian/rollcall/pkg/logger"
)

// Placeholder styles for the version insert.
const (
	Dollar   = "$1"
	Question = "?"
)

// Runner applies migrations from a filesystem directory.
type Runner struct {
	db          *sql.DB
	fsys        fs.FS
	dir         string
	placeholder string
	log         logger.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithPlaceholder sets the bind parameter style of the driver.
func WithPlaceholder(p string) Option {
	return func(r *Runner) {
		if p != "" {
			r.placeholder = p
		}
	}
}

// WithLogger sets the logger applied migrations are reported to.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// New returns a runner over the *.sql files in dir of fsys.
func New(db *sql.DB, fsys fs.FS, dir string, opts ...Option) *Runner {
	r := &Runner{
		db:          db,
		fsys:        fsys,
		dir:         dir,
		placeholder: Dollar,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) applied(ctx context.Context) (map[string]bool, error) {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := r.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

// Pending returns sorted migration filenames not yet applied.
func (r *Runner) Pending(ctx context.Context) ([]string, error) {
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(r.fsys, r.dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") && !applied[e.Name()] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Up applies every pending migration, each in its own transaction.
func (r *Runner) Up(ctx context.Context) error {
	files, err := r.Pending(ctx)
	if err != nil {
		return err
	}

	insert := "INSERT INTO schema_migrations (version, applied_at) VALUES (" +
		r.placeholder + ", " + r.second() + ")"

	for _, file := range files {
		content, err := fs.ReadFile(r.fsys, path.Join(r.dir, file))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction for %s: %w", file, err)
		}

		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", file, err)
		}

		if _, err := tx.ExecContext(ctx, insert, file, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}

		r.log.Info(ctx, "applied migration", logger.String("version", file))
	}
	return nil
}

// Applied returns applied migration versions in order.
func (r *Runner) Applied(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration versions: %w", err)
	}
	return versions, nil
}

func (r *Runner) second() string {
	if r.placeholder == Dollar {
		return "$2"
	}
	return r.placeholder
}
