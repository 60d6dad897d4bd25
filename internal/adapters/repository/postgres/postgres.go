// Package postgres implements repository.Store on PostgreSQL with pgvector
// columns for embeddings.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/adapters/repository/migrate"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/pgvector/pgvector-go"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	defaultMaxOpenConns = 10
	pingTimeout         = 10 * time.Second
)

// Store is a PostgreSQL-backed repository.Store.
type Store struct {
	db           *sql.DB
	log          logger.Logger
	maxOpenConns int
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

// WithMaxOpenConns caps the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// New connects to dsn and applies migrations.
func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("database URL is required")
	}
	s := &Store{log: logger.Nop(), maxOpenConns: defaultMaxOpenConns}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)
	db.SetMaxIdleConns(s.maxOpenConns / 2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)
	s.db = db

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	runner := migrate.New(db, migrationsFS, "migrations",
		migrate.WithPlaceholder(migrate.Dollar),
		migrate.WithLogger(s.log),
	)
	if err := runner.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// DB exposes the pool for maintenance tasks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
}

type scanner interface {
	Scan(dest ...any) error
}

const sampleColumns = "sample_id, external_id, display_name, scope, dim, embedding, created_at"

func scanSample(row scanner) (model.EnrollmentSample, error) {
	var (
		sm  model.EnrollmentSample
		dim int
		vec pgvector.Vector
	)
	if err := row.Scan(&sm.SampleID, &sm.ExternalID, &sm.DisplayName, &sm.Scope, &dim, &vec, &sm.CreatedAt); err != nil {
		return model.EnrollmentSample{}, fmt.Errorf("scan enrollment: %w", err)
	}
	emb := vec.Slice()
	if len(emb) != dim {
		return model.EnrollmentSample{}, fmt.Errorf("sample %s: %w: %d components, dim %d",
			sm.SampleID, repository.ErrInvalidEmbedding, len(emb), dim)
	}
	sm.Embedding = emb
	sm.CreatedAt = sm.CreatedAt.UTC()
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
	defer repository.Observe("postgres.load_enrollments", time.Now(), &err)
	return s.querySamples(ctx,
		"SELECT "+sampleColumns+" FROM enrollments WHERE scope = ANY($1) ORDER BY seq",
		pq.Array([]string{scope, ""}))
}

// ListEnrollments returns samples for scope; empty scope lists all.
func (s *Store) ListEnrollments(ctx context.Context, scope string) ([]model.EnrollmentSample, error) {
	if scope == "" {
		return s.querySamples(ctx, "SELECT "+sampleColumns+" FROM enrollments ORDER BY seq")
	}
	return s.querySamples(ctx, "SELECT "+sampleColumns+" FROM enrollments WHERE scope = $1 ORDER BY seq", scope)
}

// bumpRevision increments the revision row, which also serializes
// concurrent enrollment writers for the rest of the transaction.
func bumpRevision(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx,
		"UPDATE store_meta SET value = value + 1 WHERE key = 'enrollment_revision'"); err != nil {
		return fmt.Errorf("bump enrollment revision: %w", err)
	}
	return nil
}

// CreateEnrollment inserts a sample and bumps the enrollment revision.
func (s *Store) CreateEnrollment(ctx context.Context, sm model.EnrollmentSample) (err error) {
	defer repository.Observe("postgres.create_enrollment", time.Now(), &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = bumpRevision(ctx, tx); err != nil {
		return err
	}

	var existing string
	err = tx.QueryRowContext(ctx,
		"SELECT display_name FROM enrollments WHERE external_id = $1 LIMIT 1", sm.ExternalID).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = nil
	case err != nil:
		return fmt.Errorf("check display name: %w", err)
	case existing != sm.DisplayName:
		return model.NewKind("postgres.create_enrollment", model.ErrNameConflict)
	}

	created := sm.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO enrollments ("+sampleColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		sm.SampleID, sm.ExternalID, sm.DisplayName, sm.Scope, sm.Embedding.Dim(),
		pgvector.NewVector(sm.Embedding), created.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return model.WrapKind("postgres.create_enrollment", model.ErrInvalidSample, err)
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
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

	res, err := tx.ExecContext(ctx, "DELETE FROM enrollments WHERE sample_id = $1", sampleID)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment rows: %w", err)
	}
	if n == 0 {
		return model.NewKind("postgres.delete_enrollment", model.ErrSampleNotFound)
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
		w     model.SessionWindow
		grace int64
	)
	if err := row.Scan(&w.SessionID, &w.ScopeKey, &w.Start, &w.End, &grace, &w.MaxScore, &w.CreatedAt); err != nil {
		return model.SessionWindow{}, err
	}
	w.Start = w.Start.UTC()
	w.End = w.End.UTC()
	w.CreatedAt = w.CreatedAt.UTC()
	w.LateGrace = time.Duration(grace)
	return w, nil
}

// CreateSession stores a session window.
func (s *Store) CreateSession(ctx context.Context, w model.SessionWindow) error {
	created := w.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions ("+sessionColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		w.SessionID, w.ScopeKey, w.Start.UTC(), w.End.UTC(), int64(w.LateGrace), w.MaxScore, created.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return model.WrapKind("postgres.create_session", model.ErrInvalidSession, err)
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession returns a session window.
func (s *Store) GetSession(ctx context.Context, sessionID string) (model.SessionWindow, error) {
	w, err := scanSession(s.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE session_id = $1", sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.SessionWindow{}, model.NewKind("postgres.get_session", model.ErrSessionNotFound)
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
		"SELECT EXISTS(SELECT 1 FROM attendance WHERE session_id = $1 AND external_id = $2)",
		sessionID, externalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return exists, nil
}

// InsertAttendance writes ev unless the pair already has an event.
func (s *Store) InsertAttendance(ctx context.Context, ev model.AttendanceEvent) (_ bool, err error) {
	defer repository.Observe("postgres.insert_attendance", time.Now(), &err)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance (event_id, session_id, external_id, ts, score, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, external_id) DO NOTHING`,
		ev.EventID, ev.SessionID, ev.ExternalID, ev.Timestamp.UTC().Truncate(time.Microsecond), ev.Score, string(ev.Note))
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
		note string
	)
	if err := row.Scan(&ev.EventID, &ev.SessionID, &ev.ExternalID, &ev.Timestamp, &ev.Score, &note); err != nil {
		return model.AttendanceEvent{}, err
	}
	ev.Timestamp = ev.Timestamp.UTC()
	ev.Note = model.Note(note)
	return ev, nil
}

// GetAttendance returns the event for the pair.
func (s *Store) GetAttendance(ctx context.Context, sessionID, externalID string) (model.AttendanceEvent, error) {
	ev, err := scanEvent(s.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM attendance WHERE session_id = $1 AND external_id = $2",
		sessionID, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.AttendanceEvent{}, model.NewKind("postgres.get_attendance", model.ErrEventNotFound)
	}
	if err != nil {
		return model.AttendanceEvent{}, fmt.Errorf("query attendance: %w", err)
	}
	return ev, nil
}

// ListAttendance returns a session's events ordered by timestamp.
func (s *Store) ListAttendance(ctx context.Context, sessionID string) ([]model.AttendanceEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM attendance WHERE session_id = $1 ORDER BY ts, external_id", sessionID)
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
		"DELETE FROM attendance WHERE session_id = $1 AND external_id = $2", sessionID, externalID)
	if err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete attendance rows: %w", err)
	}
	if n == 0 {
		return model.NewKind("postgres.delete_attendance", model.ErrEventNotFound)
	}
	return nil
}
