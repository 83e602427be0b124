// Package service provides the contest business service that implements
// the dependencies required by the HTTP API, the MCP tools and the CLI.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/okian/predictor/internal/adapters/repository"
	"github.com/okian/predictor/internal/domain/scoring"
	"github.com/okian/predictor/internal/domain/standings"
	"github.com/okian/predictor/pkg/logger"
)

// Service implements the contest operations on top of a store and the
// standings engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	store  repository.Store
	engine *standings.Engine

	// Configuration
	rubric scoring.Rubric
	cutoff time.Time
	now    func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the backing store. The default is an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRubric sets the point values used for scoring.
func WithRubric(r scoring.Rubric) Option {
	return func(s *Service) {
		s.rubric = r
	}
}

// WithCutoff sets the instant after which predictions are locked.
// The zero time never locks.
func WithCutoff(cutoff time.Time) Option {
	return func(s *Service) {
		s.cutoff = cutoff
	}
}

// WithClock overrides the time source used for the prediction lock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a new service with the given options.
func New(opts ...Option) *Service {
	s := &Service{
		rubric: scoring.DefaultRubric(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = repository.NewMemStore()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.engine = standings.NewEngine(s.store, s.rubric)

	return s
}

// Start prepares the store schema and marks the service as running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if err := s.store.Migrate(ctx); err != nil {
		return err
	}

	s.started = true
	s.logger.Info(ctx, "contest service started",
		logger.String("store", s.store.Backend()),
		logger.Int("matchWinnerPoints", s.rubric.MatchWinner),
		logger.Int("playoffTeamPoints", s.rubric.PlayoffTeam),
		logger.Int("finalistPoints", s.rubric.Finalist),
		logger.Int("championPoints", s.rubric.Champion),
		logger.Bool("cutoffSet", !s.cutoff.IsZero()),
	)

	return nil
}

// Stop closes the store. It is safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping contest service...")
	if err := s.store.Close(); err != nil {
		s.logger.Warn(context.Background(), "failed to close store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(context.Background(), "contest service stopped")
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Rubric returns the point values in use.
func (s *Service) Rubric() scoring.Rubric { return s.rubric }

// Cutoff returns the prediction cutoff and whether one is configured.
func (s *Service) Cutoff() (time.Time, bool) {
	return s.cutoff, !s.cutoff.IsZero()
}

// Locked reports whether predictions are closed at the current time.
func (s *Service) Locked() bool {
	if s.cutoff.IsZero() {
		return false
	}
	return !s.now().Before(s.cutoff)
}
