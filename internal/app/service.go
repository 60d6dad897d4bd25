// Package service provides the attendance pipeline and the administrative
// operations the HTTP API and the CLI are built on.
package service

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/domain/catalog"
	"github.com/okian/rollcall/internal/domain/ledger"
	"github.com/okian/rollcall/internal/domain/matching"
	"github.com/okian/rollcall/internal/domain/scoring"
	"github.com/okian/rollcall/pkg/logger"
)

const (
	defaultDimension = 512
	defaultMaxScore  = 10
	defaultLateGrace = 15 * time.Minute
)

// Service composes catalog, matcher, window policy and ledger over one store.
type Service struct {
	store   repository.Store
	catalog catalog.Loader
	matcher *matching.Matcher
	policy  *scoring.Policy
	ledger  *ledger.Ledger

	// Configuration
	dimension        int
	cacheCatalog     bool
	location         *time.Location
	defaultLateGrace time.Duration
	defaultMaxScore  int

	now   func() time.Time
	newID func() string

	started time.Time
	counts  counters

	logger logger.Logger
}

type counters struct {
	recorded      atomic.Int64
	duplicate     atomic.Int64
	unrecognized  atomic.Int64
	noEnrollment  atomic.Int64
	invalidFaces  atomic.Int64
	enrollments   atomic.Int64
	unenrollments atomic.Int64
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDimension sets D, the embedding length every query and sample must have.
func WithDimension(d int) Option {
	return func(s *Service) {
		if d > 0 {
			s.dimension = d
		}
	}
}

// WithMatcher replaces the default matcher.
func WithMatcher(m *matching.Matcher) Option {
	return func(s *Service) {
		if m != nil {
			s.matcher = m
		}
	}
}

// WithPolicy replaces the default window policy.
func WithPolicy(p *scoring.Policy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithCatalogCache toggles the revision-checked catalog cache.
func WithCatalogCache(enabled bool) Option {
	return func(s *Service) {
		s.cacheCatalog = enabled
	}
}

// WithLocation sets the location session dates and times are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithDefaultLateGrace sets the grace used when a session request omits one.
func WithDefaultLateGrace(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.defaultLateGrace = d
		}
	}
}

// WithDefaultMaxScore sets the max score used when a session request omits one.
func WithDefaultMaxScore(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultMaxScore = n
		}
	}
}

// WithClock sets the time source used when a request carries no timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets the generator for sample, session and event ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// New constructs a Service over store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:            store,
		matcher:          matching.NewMatcher(),
		policy:           scoring.NewPolicy(),
		dimension:        defaultDimension,
		cacheCatalog:     true,
		location:         time.Local,
		defaultLateGrace: defaultLateGrace,
		defaultMaxScore:  defaultMaxScore,
		now:              time.Now,
		newID:            uuid.NewString,
		logger:           logger.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cacheCatalog {
		s.catalog = catalog.NewCached(store)
	} else {
		s.catalog = catalog.NewDirect(store)
	}
	s.ledger = ledger.New(store)
	s.started = s.now()
	return s
}

// Dimension returns D.
func (s *Service) Dimension() int { return s.dimension }

// Location returns the location session times are read in.
func (s *Service) Location() *time.Location { return s.location }
