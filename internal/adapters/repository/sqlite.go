package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/predictor/internal/domain/model"
	"github.com/okian/predictor/internal/domain/standings"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	email      TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fixtures (
	match_id   TEXT PRIMARY KEY,
	match_date TEXT NOT NULL,
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
`

// Dates are stored as fixed-width UTC text so they order lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05Z"

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore is a Store backed by an embedded SQLite file.
type SQLiteStore struct {
	sqliteReader
	db   *sql.DB
	opts storeOptions
}

// NewSQLiteStore opens the database at path, creating its directory.
// ":memory:" opens a private in-memory database.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps :memory: databases shared and writes serialised.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}
	return &SQLiteStore{sqliteReader: sqliteReader{q: db}, db: db, opts: o}, nil
}

// Backend implements Store.
func (s *SQLiteStore) Backend() string { return BackendSQLite }

// Migrate implements Store.
func (s *SQLiteStore) Migrate(ctx context.Context) (err error) {
	defer observe(BackendSQLite, "migrate", time.Now(), &err)
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Snapshot runs fn inside one transaction.
func (s *SQLiteStore) Snapshot(ctx context.Context, fn func(standings.DataSource) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only transaction
	return fn(sqliteReader{q: tx})
}

// UpsertUser implements Store.
func (s *SQLiteStore) UpsertUser(ctx context.Context, u model.User) (err error) {
	defer observe(BackendSQLite, "upsert_user", time.Now(), &err)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (email, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET name = excluded.name`,
		model.NormalizeEmail(u.Email), strings.TrimSpace(u.Name), s.opts.now().UTC().Format(sqliteTimeLayout))
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUser implements Store.
func (s *SQLiteStore) GetUser(ctx context.Context, email string) (u model.User, err error) {
	defer observe(BackendSQLite, "get_user", time.Now(), &err)
	var created string
	err = s.db.QueryRowContext(ctx, `SELECT email, name, created_at FROM users WHERE email = ?`,
		model.NormalizeEmail(email)).Scan(&u.Email, &u.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = parseSQLiteTime(created)
	return u, nil
}

// UpsertFixtures implements Store.
func (s *SQLiteStore) UpsertFixtures(ctx context.Context, fixtures []model.Fixture) (n int, err error) {
	defer observe(BackendSQLite, "upsert_fixtures", time.Now(), &err)
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		for _, f := range fixtures {
			var week any
			if f.Week != nil {
				week = *f.Week
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO fixtures (match_id, match_date, team_a, team_b, week) VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (match_id) DO UPDATE SET match_date = excluded.match_date,
					team_a = excluded.team_a, team_b = excluded.team_b, week = excluded.week`,
				f.MatchID, f.MatchDate.UTC().Format(sqliteTimeLayout), f.TeamA, f.TeamB, week); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert fixtures: %w", err)
	}
	return len(fixtures), nil
}

// UpsertResults implements Store.
func (s *SQLiteStore) UpsertResults(ctx context.Context, results []model.Result) (n int, err error) {
	defer observe(BackendSQLite, "upsert_results", time.Now(), &err)
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range results {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO results (match_id, winner) VALUES (?, ?)
				ON CONFLICT (match_id) DO UPDATE SET winner = excluded.winner`,
				r.MatchID, r.Winner); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert results: %w", err)
	}
	return len(results), nil
}

// SaveMatchPredictions implements Store.
func (s *SQLiteStore) SaveMatchPredictions(ctx context.Context, preds []model.MatchPrediction) (err error) {
	defer observe(BackendSQLite, "save_match_predictions", time.Now(), &err)
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		for _, p := range preds {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO predictions_match (email, match_id, predicted_winner) VALUES (?, ?, ?)
				ON CONFLICT (email, match_id) DO UPDATE SET predicted_winner = excluded.predicted_winner`,
				model.NormalizeEmail(p.Email), p.MatchID, p.PredictedWinner); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save match predictions: %w", err)
	}
	return nil
}

// UserMatchPredictions implements Store.
func (s *SQLiteStore) UserMatchPredictions(ctx context.Context, email string) (out []model.MatchPrediction, err error) {
	defer observe(BackendSQLite, "user_match_predictions", time.Now(), &err)
	rows, err := s.db.QueryContext(ctx, `
		SELECT email, match_id, predicted_winner FROM predictions_match
		WHERE email = ? ORDER BY match_id`, model.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("user match predictions: %w", err)
	}
	return scanSQLMatchPredictions(rows)
}

// SaveMetaPrediction implements Store.
func (s *SQLiteStore) SaveMetaPrediction(ctx context.Context, p model.MetaPrediction) (err error) {
	defer observe(BackendSQLite, "save_meta_prediction", time.Now(), &err)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO predictions_meta (email, playoff_teams, finalists, champion) VALUES (?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET playoff_teams = excluded.playoff_teams,
			finalists = excluded.finalists, champion = excluded.champion`,
		model.NormalizeEmail(p.Email), model.EncodeTeamList(p.PlayoffTeams),
		model.EncodeTeamList(p.Finalists), p.Champion)
	if err != nil {
		return fmt.Errorf("save meta prediction: %w", err)
	}
	return nil
}

// GetMetaPrediction implements Store.
func (s *SQLiteStore) GetMetaPrediction(ctx context.Context, email string) (p model.MetaPrediction, err error) {
	defer observe(BackendSQLite, "get_meta_prediction", time.Now(), &err)
	var e, playoffs, finalists, champion string
	err = s.db.QueryRowContext(ctx, `
		SELECT email, playoff_teams, finalists, champion FROM predictions_meta WHERE email = ?`,
		model.NormalizeEmail(email)).Scan(&e, &playoffs, &finalists, &champion)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MetaPrediction{}, ErrNotFound
	}
	if err != nil {
		return model.MetaPrediction{}, fmt.Errorf("get meta prediction: %w", err)
	}
	return model.DecodeMetaPrediction(e, playoffs, finalists, champion), nil
}

// SetActualOutcome implements Store.
func (s *SQLiteStore) SetActualOutcome(ctx context.Context, key model.OutcomeKey, set model.TeamSet) (err error) {
	defer observe(BackendSQLite, "set_outcome", time.Now(), &err)
	if !key.Valid() {
		return ErrInvalidOutcome
	}
	if set.Empty() {
		_, err = s.db.ExecContext(ctx, `DELETE FROM meta_actuals WHERE key = ?`, string(key))
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO meta_actuals (key, value) VALUES (?, ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
			string(key), model.EncodeOutcome(key, set))
	}
	if err != nil {
		return fmt.Errorf("set outcome %s: %w", key, err)
	}
	return nil
}

// ListWeeks implements Store.
func (s *SQLiteStore) ListWeeks(ctx context.Context) (out []int, err error) {
	defer observe(BackendSQLite, "list_weeks", time.Now(), &err)
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT week FROM fixtures WHERE week IS NOT NULL ORDER BY week`)
	if err != nil {
		return nil, fmt.Errorf("list weeks: %w", err)
	}
	defer rows.Close()
	out = make([]int, 0)
	for rows.Next() {
		var w int
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("scan week: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListTeams implements Store.
func (s *SQLiteStore) ListTeams(ctx context.Context) (out []string, err error) {
	defer observe(BackendSQLite, "list_teams", time.Now(), &err)
	rows, err := s.db.QueryContext(ctx, `SELECT team_a FROM fixtures UNION SELECT team_b FROM fixtures`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()
	out = make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortTeams(out)
	return out, nil
}

// Counts implements Store.
func (s *SQLiteStore) Counts(ctx context.Context) (c Counts, err error) {
	defer observe(BackendSQLite, "counts", time.Now(), &err)
	err = s.db.QueryRowContext(ctx, `
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
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// sqliteReader implements standings.DataSource over a DB or a transaction.
type sqliteReader struct {
	q sqlQuerier
}

func (r sqliteReader) ListUsers(ctx context.Context) (out []model.User, err error) {
	defer observe(BackendSQLite, "list_users", time.Now(), &err)
	rows, err := r.q.QueryContext(ctx, `SELECT email, name, created_at FROM users ORDER BY name COLLATE NOCASE, email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	out = make([]model.User, 0)
	for rows.Next() {
		var (
			u       model.User
			created string
		)
		if err := rows.Scan(&u.Email, &u.Name, &created); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.CreatedAt = parseSQLiteTime(created)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r sqliteReader) ListFixturesWithResults(ctx context.Context) (out []model.FixtureResult, err error) {
	defer observe(BackendSQLite, "list_fixtures", time.Now(), &err)
	rows, err := r.q.QueryContext(ctx, `
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
			date string
			week sql.NullInt64
		)
		if err := rows.Scan(&f.MatchID, &date, &f.TeamA, &f.TeamB, &week, &f.Winner); err != nil {
			return nil, fmt.Errorf("scan fixture: %w", err)
		}
		f.MatchDate = parseSQLiteTime(date)
		if week.Valid {
			w := int(week.Int64)
			f.Week = &w
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r sqliteReader) ListMatchPredictions(ctx context.Context) (out []model.MatchPrediction, err error) {
	defer observe(BackendSQLite, "list_match_predictions", time.Now(), &err)
	rows, err := r.q.QueryContext(ctx, `
		SELECT email, match_id, predicted_winner FROM predictions_match ORDER BY email, match_id`)
	if err != nil {
		return nil, fmt.Errorf("list match predictions: %w", err)
	}
	return scanSQLMatchPredictions(rows)
}

func (r sqliteReader) ListMetaPredictions(ctx context.Context) (out []model.MetaPrediction, err error) {
	defer observe(BackendSQLite, "list_meta_predictions", time.Now(), &err)
	rows, err := r.q.QueryContext(ctx, `
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

func (r sqliteReader) GetActualOutcome(ctx context.Context, key model.OutcomeKey) (out model.TeamSet, err error) {
	defer observe(BackendSQLite, "get_outcome", time.Now(), &err)
	if !key.Valid() {
		return nil, ErrInvalidOutcome
	}
	var raw string
	err = r.q.QueryRowContext(ctx, `SELECT value FROM meta_actuals WHERE key = ?`, string(key)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TeamSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get outcome %s: %w", key, err)
	}
	return model.DecodeOutcome(key, raw), nil
}

func scanSQLMatchPredictions(rows *sql.Rows) ([]model.MatchPrediction, error) {
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

// parseSQLiteTime accepts the stored layout plus RFC3339 written by hand.
func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
