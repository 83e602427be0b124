// Package repository persists contest data and serves it to the standings
// engine. Backends: in-memory, PostgreSQL (pgx) and SQLite (modernc).
package repository

import (
	"context"

	"github.com/okian/predictor/internal/domain/model"
	"github.com/okian/predictor/internal/domain/standings"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Counts summarises the stored rows.
type Counts struct {
	Users            int `json:"users"`
	Fixtures         int `json:"fixtures"`
	Results          int `json:"results"`
	MatchPredictions int `json:"match_predictions"`
	MetaPredictions  int `json:"meta_predictions"`
}

// Store provides read/write access to the contest state.
type Store interface {
	standings.DataSource
	standings.Snapshotter

	// UpsertUser creates the user or updates its name. CreatedAt is kept
	// from the first sign-in.
	UpsertUser(ctx context.Context, u model.User) error
	// GetUser returns ErrNotFound for unknown emails.
	GetUser(ctx context.Context, email string) (model.User, error)

	// UpsertFixtures replaces fixtures by match id and returns the row count.
	UpsertFixtures(ctx context.Context, fixtures []model.Fixture) (int, error)
	// UpsertResults replaces results by match id and returns the row count.
	UpsertResults(ctx context.Context, results []model.Result) (int, error)

	// SaveMatchPredictions upserts picks keyed by (email, match id).
	SaveMatchPredictions(ctx context.Context, preds []model.MatchPrediction) error
	UserMatchPredictions(ctx context.Context, email string) ([]model.MatchPrediction, error)

	// SaveMetaPrediction replaces the user's season picks.
	SaveMetaPrediction(ctx context.Context, p model.MetaPrediction) error
	// GetMetaPrediction returns ErrNotFound when the user has none.
	GetMetaPrediction(ctx context.Context, email string) (model.MetaPrediction, error)

	// SetActualOutcome stores the truth for key. An empty set clears it.
	SetActualOutcome(ctx context.Context, key model.OutcomeKey, set model.TeamSet) error

	// ListWeeks returns distinct non-null fixture weeks ascending.
	ListWeeks(ctx context.Context) ([]int, error)
	// ListTeams returns distinct team names, case-insensitively ordered.
	ListTeams(ctx context.Context) ([]string, error)
	Counts(ctx context.Context) (Counts, error)

	// Migrate creates the schema when missing.
	Migrate(ctx context.Context) error
	Backend() string
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*MemStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
