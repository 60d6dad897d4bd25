// Package sqlite implements repository.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/adapters/repository/migrate"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const busyTimeoutMs = 5000

// Store is a SQLite-backed repository.Store. SQLite allows one writer at a
// time, so the pool is capped at a single connection.
type Store struct {
	db  *sql.DB
	log logger.Logger
}

var _ repository.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// New opens (creating if needed) the database at path and applies migrations.
// Use ":memory:" for a throwaway database.
func New(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	s.db = db

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	runner := migrate.New(db, migrationsFS, "migrations",
		migrate.WithPlaceholder(migrate.Question),
		migrate.WithLogger(s.log),
	)
	if err := runner.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d", path, sep, busyTimeoutMs)
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

type scanner interface {
	Scan(dest ...any) error
}

const sampleColumns = "sample_id, external_id, display_name, scope, dim, embedding, created_at"

func scanSample(row scanner) (model.EnrollmentSample, error) {
	var (
		sm      model.EnrollmentSample
		dim     int
		blob    []byte
		created int64
	)
	if err := row.Scan(&sm.SampleID, &sm.ExternalID, &sm.DisplayName, &sm.Scope, &dim, &blob, &created); err != nil {
		return model.EnrollmentSample{}, fmt.Errorf("scan enrollment: %w", err)
	}
	emb, err := decodeEmbedding(blob, dim)
	if err != nil {
		return model.EnrollmentSample{}, fmt.Errorf("sample %s: %w", sm.SampleID, err)
	}
	sm.Embedding = emb
	sm.CreatedAt = fromNanos(created)
	return sm, nil
}

func (s *Store) querySamples(ctx context.Context, query string, args ...any) ([]model.EnrollmentSample, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	out := make([]model.EnrollmentSample, 0)
	for rows.Next() {
		sm, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return out, nil
}

// LoadEnrollments returns samples for scope plus unscoped samples, oldest first.
func (s *Store) LoadEnrollments(ctx context.Context, scope string) (_ []model.EnrollmentSample, err error) {
	defer repository.Observe("sqlite.load_enrollments", time.Now(), &err)
	return s.querySamples(ctx,
		"SELECT "+sampleColumns+" FROM enrollments WHERE scope = ? OR scope = '' ORDER BY seq", scope)
}

// ListEnrollments returns samples for scope; empty scope lists all.
func (s *Store) ListEnrollments(ctx context.Context, scope string) ([]model.EnrollmentSample, error) {
	if scope == "" {
		return s.querySamples(ctx, "SELECT "+sampleColumns+" FROM enrollments ORDER BY seq")
	}
	return s.querySamples(ctx, "SELECT "+sampleColumns+" FROM enrollments WHERE scope = ? ORDER BY seq", scope)
}

// CreateEnrollment inserts a sample and bumps the enrollment revision.
func (s *Store) CreateEnrollment(ctx context.Context, sm model.EnrollmentSample) (err error) {
	defer repository.Observe("sqlite.create_enrollment", time.Now(), &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var existing string
	err = tx.QueryRowContext(ctx,
		"SELECT display_name FROM enrollments WHERE external_id = ? LIMIT 1", sm.ExternalID).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = nil
	case err != nil:
		return fmt.Errorf("check display name: %w", err)
	case existing != sm.DisplayName:
		return model.NewKind("sqlite.create_enrollment", model.ErrNameConflict)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO enrollments ("+sampleColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		sm.SampleID, sm.ExternalID, sm.DisplayName, sm.Scope, sm.Embedding.Dim(),
		encodeEmbedding(sm.Embedding), toNanos(orNow(sm.CreatedAt)))
	if err != nil {
		if isUniqueViolation(err) {
			return model.WrapKind("sqlite.create_enrollment", model.ErrInvalidSample, err)
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}

	if err = bumpRevision(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

func bumpRevision(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx,
		"UPDATE store_meta SET value = value + 1 WHERE key = 'enrollment_revision'"); err != nil {
		return fmt.Errorf("bump enrollment revision: %w", err)
	}
	return nil
}

// DeleteEnrollment removes a sample and bumps the enrollment revision.
func (s *Store) DeleteEnrollment(ctx context.Context, sampleID string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete enrollment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, "DELETE FROM enrollments WHERE sample_id = ?", sampleID)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment rows: %w", err)
	}
	if n == 0 {
		return model.NewKind("sqlite.delete_enrollment", model.ErrSampleNotFound)
	}
	if err = bumpRevision(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete enrollment: %w", err)
	}
	return nil
}

// EnrollmentRevision returns the enrollment change counter.
func (s *Store) EnrollmentRevision(ctx context.Context) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM store_meta WHERE key = 'enrollment_revision'").Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("read enrollment revision: %w", err)
	}
	return rev, nil
}

const sessionColumns = "session_id, scope_key, start_at, end_at, late_grace_ns, max_score, created_at"

func scanSession(row scanner) (model.SessionWindow, error) {
	var (
		w                   model.SessionWindow
		start, end, created int64
		grace               int64
	)
	if err := row.Scan(&w.SessionID, &w.ScopeKey, &start, &end, &grace, &w.MaxScore, &created); err != nil {
		return model.SessionWindow{}, err
	}
	w.Start = fromNanos(start)
	w.End = fromNanos(end)
	w.LateGrace = time.Duration(grace)
	w.CreatedAt = fromNanos(created)
	return w, nil
}

// CreateSession stores a session window.
func (s *Store) CreateSession(ctx context.Context, w model.SessionWindow) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions ("+sessionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		w.SessionID, w.ScopeKey, toNanos(w.Start), toNanos(w.End), int64(w.LateGrace), w.MaxScore, toNanos(orNow(w.CreatedAt)))
	if err != nil {
		if isUniqueViolation(err) {
			return model.WrapKind("sqlite.create_session", model.ErrInvalidSession, err)
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession returns a session window.
func (s *Store) GetSession(ctx context.Context, sessionID string) (model.SessionWindow, error) {
	w, err := scanSession(s.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE session_id = ?", sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.SessionWindow{}, model.NewKind("sqlite.get_session", model.ErrSessionNotFound)
	}
	if err != nil {
		return model.SessionWindow{}, fmt.Errorf("query session: %w", err)
	}
	return w, nil
}

// ListSessions returns sessions ordered by start.
func (s *Store) ListSessions(ctx context.Context) ([]model.SessionWindow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions ORDER BY start_at, session_id")
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := make([]model.SessionWindow, 0)
	for rows.Next() {
		w, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// HasAttendance reports whether an event exists for the pair.
func (s *Store) HasAttendance(ctx context.Context, sessionID, externalID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM attendance WHERE session_id = ? AND external_id = ?)",
		sessionID, externalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return exists, nil
}

// InsertAttendance writes ev unless the pair already has an event. The
// primary key on (session_id, external_id) makes the check and write atomic.
func (s *Store) InsertAttendance(ctx context.Context, ev model.AttendanceEvent) (_ bool, err error) {
	defer repository.Observe("sqlite.insert_attendance", time.Now(), &err)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance (event_id, session_id, external_id, ts, score, note)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, external_id) DO NOTHING`,
		ev.EventID, ev.SessionID, ev.ExternalID, toNanos(ev.Timestamp), ev.Score, string(ev.Note))
	if err != nil {
		return false, fmt.Errorf("insert attendance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert attendance rows: %w", err)
	}
	return n == 1, nil
}

const eventColumns = "event_id, session_id, external_id, ts, score, note"

func scanEvent(row scanner) (model.AttendanceEvent, error) {
	var (
		ev   model.AttendanceEvent
		ts   int64
		note string
	)
	if err := row.Scan(&ev.EventID, &ev.SessionID, &ev.ExternalID, &ts, &ev.Score, &note); err != nil {
		return model.AttendanceEvent{}, err
	}
	ev.Timestamp = fromNanos(ts)
	ev.Note = model.Note(note)
	return ev, nil
}

// GetAttendance returns the event for the pair.
func (s *Store) GetAttendance(ctx context.Context, sessionID, externalID string) (model.AttendanceEvent, error) {
	ev, err := scanEvent(s.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM attendance WHERE session_id = ? AND external_id = ?",
		sessionID, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.AttendanceEvent{}, model.NewKind("sqlite.get_attendance", model.ErrEventNotFound)
	}
	if err != nil {
		return model.AttendanceEvent{}, fmt.Errorf("query attendance: %w", err)
	}
	return ev, nil
}

// ListAttendance returns a session's events ordered by timestamp.
func (s *Store) ListAttendance(ctx context.Context, sessionID string) ([]model.AttendanceEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM attendance WHERE session_id = ? ORDER BY ts, external_id", sessionID)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	out := make([]model.AttendanceEvent, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return out, nil
}

// DeleteAttendance removes the pair's event.
func (s *Store) DeleteAttendance(ctx context.Context, sessionID, externalID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM attendance WHERE session_id = ? AND external_id = ?", sessionID, externalID)
	if err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete attendance rows: %w", err)
	}
	if n == 0 {
		return model.NewKind("sqlite.delete_attendance", model.ErrEventNotFound)
	}
	return nil
}
