package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/predictor/internal/domain/model"
	"github.com/okian/predictor/internal/domain/standings"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	email      TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS fixtures (
	match_id   TEXT PRIMARY KEY,
	match_date TIMESTAMPTZ NOT NULL,
	team_a     TEXT NOT NULL,
	team_b     TEXT NOT NULL,
	week       INTEGER
);

CREATE TABLE IF NOT EXISTS results (
	match_id TEXT PRIMARY KEY,
	winner   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS predictions_match (
	email            TEXT NOT NULL,
	match_id         TEXT NOT NULL,
	predicted_winner TEXT NOT NULL,
	PRIMARY KEY (email, match_id)
);

CREATE TABLE IF NOT EXISTS predictions_meta (
	email         TEXT PRIMARY KEY,
	playoff_teams TEXT NOT NULL DEFAULT '[]',
	finalists     TEXT NOT NULL DEFAULT '[]',
	champion      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS meta_actuals (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS fixtures_week_idx ON fixtures (week);
`

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a Store backed by a pgx connection pool.
type PostgresStore struct {
	pgReader
	pool *pgxpool.Pool
	opts storeOptions
}

// NewPostgresStore connects to databaseURL and verifies the connection.
func NewPostgresStore(ctx context.Context, databaseURL string, opts ...Option) (*PostgresStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, ErrMissingDSN
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = o.maxConns
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pgReader: pgReader{q: pool}, pool: pool, opts: o}, nil
}

// Backend implements Store.
func (s *PostgresStore) Backend() string { return BackendPostgres }

// Migrate implements Store.
func (s *PostgresStore) Migrate(ctx context.Context) (err error) {
	defer observe(BackendPostgres, "migrate", time.Now(), &err)
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Snapshot runs fn inside a read-only repeatable-read transaction.
func (s *PostgresStore) Snapshot(ctx context.Context, fn func(standings.DataSource) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, func(tx pgx.Tx) error {
		return fn(pgReader{q: tx})
	})
}

// UpsertUser implements Store.
func (s *PostgresStore) UpsertUser(ctx context.Context, u model.User) (err error) {
	defer observe(BackendPostgres, "upsert_user", time.Now(), &err)
	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (email, name, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name`,
		model.NormalizeEmail(u.Email), strings.TrimSpace(u.Name), s.opts.now())
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUser implements Store.
func (s *PostgresStore) GetUser(ctx context.Context, email string) (u model.User, err error) {
	defer observe(BackendPostgres, "get_user", time.Now(), &err)
	err = s.pool.QueryRow(ctx, `SELECT email, name, created_at FROM users WHERE email = $1`,
		model.NormalizeEmail(email)).Scan(&u.Email, &u.Name, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UpsertFixtures implements Store.
func (s *PostgresStore) UpsertFixtures(ctx context.Context, fixtures []model.Fixture) (n int, err error) {
	defer observe(BackendPostgres, "upsert_fixtures", time.Now(), &err)
	b := &pgx.Batch{}
	for _, f := range fixtures {
		b.Queue(`
			INSERT INTO fixtures (match_id, match_date, team_a, team_b, week) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (match_id) DO UPDATE SET match_date = EXCLUDED.match_date,
				team_a = EXCLUDED.team_a, team_b = EXCLUDED.team_b, week = EXCLUDED.week`,
			f.MatchID, f.MatchDate, f.TeamA, f.TeamB, f.Week)
	}
	if err := s.sendBatch(ctx, b); err != nil {
		return 0, fmt.Errorf("upsert fixtures: %w", err)
	}
	return len(fixtures), nil
}

// UpsertResults implements Store.
func (s *PostgresStore) UpsertResults(ctx context.Context, results []model.Result) (n int, err error) {
	defer observe(BackendPostgres, "upsert_results", time.Now(), &err)
	b := &pgx.Batch{}
	for _, r := range results {
		b.Queue(`
			INSERT INTO results (match_id, winner) VALUES ($1, $2)
			ON CONFLICT (match_id) DO UPDATE SET winner = EXCLUDED.winner`,
			r.MatchID, r.Winner)
	}
	if err := s.sendBatch(ctx, b); err != nil {
		return 0, fmt.Errorf("upsert results: %w", err)
	}
	return len(results), nil
}

// SaveMatchPredictions implements Store.
func (s *PostgresStore) SaveMatchPredictions(ctx context.Context, preds []model.MatchPrediction) (err error) {
	defer observe(BackendPostgres, "save_match_predictions", time.Now(), &err)
	b := &pgx.Batch{}
	for _, p := range preds {
		b.Queue(`
			INSERT INTO predictions_match (email, match_id, predicted_winner) VALUES ($1, $2, $3)
			ON CONFLICT (email, match_id) DO UPDATE SET predicted_winner = EXCLUDED.predicted_winner`,
			model.NormalizeEmail(p.Email), p.MatchID, p.PredictedWinner)
	}
	if err := s.sendBatch(ctx, b); err != nil {
		return fmt.Errorf("save match predictions: %w", err)
	}
	return nil
}

// UserMatchPredictions implements Store.
func (s *PostgresStore) UserMatchPredictions(ctx context.Context, email string) (out []model.MatchPrediction, err error) {
	defer observe(BackendPostgres, "user_match_predictions", time.Now(), &err)
	rows, err := s.pool.Query(ctx, `
		SELECT email, match_id, predicted_winner FROM predictions_match
		WHERE email = $1 ORDER BY match_id`, model.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("user match predictions: %w", err)
	}
	return scanMatchPredictions(rows)
}

// SaveMetaPrediction implements Store.
func (s *PostgresStore) SaveMetaPrediction(ctx context.Context, p model.MetaPrediction) (err error) {
	defer observe(BackendPostgres, "save_meta_prediction", time.Now(), &err)
	_, err = s.pool.Exec(ctx, `
		INSERT INTO predictions_meta (email, playoff_teams, finalists, champion) VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET playoff_teams = EXCLUDED.playoff_teams,
			finalists = EXCLUDED.finalists, champion = EXCLUDED.champion`,
		model.NormalizeEmail(p.Email), model.EncodeTeamList(p.PlayoffTeams),
		model.EncodeTeamList(p.Finalists), p.Champion)
	if err != nil {
		return fmt.Errorf("save meta prediction: %w", err)
	}
	return nil
}

// GetMetaPrediction implements Store.
func (s *PostgresStore) GetMetaPrediction(ctx context.Context, email string) (p model.MetaPrediction, err error) {
	defer observe(BackendPostgres, "get_meta_prediction", time.Now(), &err)
	var e, playoffs, finalists, champion string
	err = s.pool.QueryRow(ctx, `
		SELECT email, playoff_teams, finalists, champion FROM predictions_meta WHERE email = $1`,
		model.NormalizeEmail(email)).Scan(&e, &playoffs, &finalists, &champion)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.MetaPrediction{}, ErrNotFound
	}
	if err != nil {
		return model.MetaPrediction{}, fmt.Errorf("get meta prediction: %w", err)
	}
	return model.DecodeMetaPrediction(e, playoffs, finalists, champion), nil
}

// SetActualOutcome implements Store.
func (s *PostgresStore) SetActualOutcome(ctx context.Context, key model.OutcomeKey, set model.TeamSet) (err error) {
	defer observe(BackendPostgres, "set_outcome", time.Now(), &err)
	if !key.Valid() {
		return ErrInvalidOutcome
	}
	if set.Empty() {
		_, err = s.pool.Exec(ctx, `DELETE FROM meta_actuals WHERE key = $1`, string(key))
	} else {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO meta_actuals (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
			string(key), model.EncodeOutcome(key, set))
	}
	if err != nil {
		return fmt.Errorf("set outcome %s: %w", key, err)
	}
	return nil
}

// ListWeeks implements Store.
func (s *PostgresStore) ListWeeks(ctx context.Context) (out []int, err error) {
	defer observe(BackendPostgres, "list_weeks", time.Now(), &err)
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT week FROM fixtures WHERE week IS NOT NULL ORDER BY week`)
	if err != nil {
		return nil, fmt.Errorf("list weeks: %w", err)
	}
	weeks, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		return nil, fmt.Errorf("list weeks: %w", err)
	}
	out = make([]int, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, int(w))
	}
	return out, nil
}

// ListTeams implements Store.
func (s *PostgresStore) ListTeams(ctx context.Context) (out []string, err error) {
	defer observe(BackendPostgres, "list_teams", time.Now(), &err)
	rows, err := s.pool.Query(ctx, `SELECT team_a FROM fixtures UNION SELECT team_b FROM fixtures`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	out, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	if out == nil {
		out = make([]string, 0)
	}
	sortTeams(out)
	return out, nil
}

// Counts implements Store.
func (s *PostgresStore) Counts(ctx context.Context) (c Counts, err error) {
	defer observe(BackendPostgres, "counts", time.Now(), &err)
	err = s.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM users),
		       (SELECT COUNT(*) FROM fixtures),
		       (SELECT COUNT(*) FROM results),
		       (SELECT COUNT(*) FROM predictions_match),
		       (SELECT COUNT(*) FROM predictions_meta)`).
		Scan(&c.Users, &c.Fixtures, &c.Results, &c.MatchPredictions, &c.MetaPredictions)
	if err != nil {
		return Counts{}, fmt.Errorf("counts: %w", err)
	}
	return c, nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) (err error) {
	defer observe(BackendPostgres, "ping", time.Now(), &err)
	return s.pool.Ping(ctx)
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// sendBatch runs b in one transaction.
func (s *PostgresStore) sendBatch(ctx context.Context, b *pgx.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, b)
		for range b.Len() {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return err
			}
		}
		return br.Close()
	})
}

// pgReader implements standings.DataSource over a pool or a transaction.
type pgReader struct {
	q pgQuerier
}

func (r pgReader) ListUsers(ctx context.Context) (out []model.User, err error) {
	defer observe(BackendPostgres, "list_users", time.Now(), &err)
	rows, err := r.q.Query(ctx, `SELECT email, name, created_at FROM users ORDER BY LOWER(name), email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	out = make([]model.User, 0)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.Email, &u.Name, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r pgReader) ListFixturesWithResults(ctx context.Context) (out []model.FixtureResult, err error) {
	defer observe(BackendPostgres, "list_fixtures", time.Now(), &err)
	rows, err := r.q.Query(ctx, `
		SELECT f.match_id, f.match_date, f.team_a, f.team_b, f.week, COALESCE(r.winner, '')
		FROM fixtures f
		LEFT JOIN results r ON r.match_id = f.match_id
		ORDER BY f.match_date, f.match_id`)
	if err != nil {
		return nil, fmt.Errorf("list fixtures: %w", err)
	}
	defer rows.Close()
	out = make([]model.FixtureResult, 0)
	for rows.Next() {
		var (
			f    model.FixtureResult
			week *int32
		)
		if err := rows.Scan(&f.MatchID, &f.MatchDate, &f.TeamA, &f.TeamB, &week, &f.Winner); err != nil {
			return nil, fmt.Errorf("scan fixture: %w", err)
		}
		if week != nil {
			w := int(*week)
			f.Week = &w
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r pgReader) ListMatchPredictions(ctx context.Context) (out []model.MatchPrediction, err error) {
	defer observe(BackendPostgres, "list_match_predictions", time.Now(), &err)
	rows, err := r.q.Query(ctx, `
		SELECT email, match_id, predicted_winner FROM predictions_match ORDER BY email, match_id`)
	if err != nil {
		return nil, fmt.Errorf("list match predictions: %w", err)
	}
	return scanMatchPredictions(rows)
}

func (r pgReader) ListMetaPredictions(ctx context.Context) (out []model.MetaPrediction, err error) {
	defer observe(BackendPostgres, "list_meta_predictions", time.Now(), &err)
	rows, err := r.q.Query(ctx, `
		SELECT email, playoff_teams, finalists, champion FROM predictions_meta ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list meta predictions: %w", err)
	}
	defer rows.Close()
	out = make([]model.MetaPrediction, 0)
	for rows.Next() {
		var email, playoffs, finalists, champion string
		if err := rows.Scan(&email, &playoffs, &finalists, &champion); err != nil {
			return nil, fmt.Errorf("scan meta prediction: %w", err)
		}
		out = append(out, model.DecodeMetaPrediction(email, playoffs, finalists, champion))
	}
	return out, rows.Err()
}

func (r pgReader) GetActualOutcome(ctx context.Context, key model.OutcomeKey) (out model.TeamSet, err error) {
	defer observe(BackendPostgres, "get_outcome", time.Now(), &err)
	if !key.Valid() {
		return nil, ErrInvalidOutcome
	}
	var raw string
	err = r.q.QueryRow(ctx, `SELECT value FROM meta_actuals WHERE key = $1`, string(key)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.TeamSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get outcome %s: %w", key, err)
	}
	return model.DecodeOutcome(key, raw), nil
}

func scanMatchPredictions(rows pgx.Rows) ([]model.MatchPrediction, error) {
	defer rows.Close()
	out := make([]model.MatchPrediction, 0)
	for rows.Next() {
		var p model.MatchPrediction
		if err := rows.Scan(&p.Email, &p.MatchID, &p.PredictedWinner); err != nil {
			return nil, fmt.Errorf("scan match prediction: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
