package repository

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/predictor/internal/domain/model"
	"github.com/okian/predictor/internal/domain/standings"
)

type metaRecord struct {
	playoffs  string
	finalists string
	champion  string
}

type predKey struct {
	email   string
	matchID string
}

// MemStore is an in-memory Store guarded by a single RWMutex. Season
// payloads are kept in their stored JSON form so reads go through the same
// decoding as the SQL backends.
type MemStore struct {
	mu       sync.RWMutex
	opts     storeOptions
	closed   bool
	users    map[string]model.User
	fixtures map[string]model.Fixture
	results  map[string]string
	preds    map[predKey]string
	metas    map[string]metaRecord
	actuals  map[model.OutcomeKey]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(opts ...Option) *MemStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemStore{
		opts:     o,
		users:    make(map[string]model.User),
		fixtures: make(map[string]model.Fixture),
		results:  make(map[string]string),
		preds:    make(map[predKey]string),
		metas:    make(map[string]metaRecord),
		actuals:  make(map[model.OutcomeKey]string),
	}
}

// Backend implements Store.
func (s *MemStore) Backend() string { return BackendMemory }

// Snapshot runs fn under the read lock so every read sees one state.
func (s *MemStore) Snapshot(ctx context.Context, fn func(standings.DataSource) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return fn(memView{s})
}

// ListUsers implements standings.DataSource.
func (s *MemStore) ListUsers(ctx context.Context) (out []model.User, err error) {
	defer observe(BackendMemory, "list_users", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memView{s}.ListUsers(ctx)
}

// ListFixturesWithResults implements standings.DataSource.
func (s *MemStore) ListFixturesWithResults(ctx context.Context) (out []model.FixtureResult, err error) {
	defer observe(BackendMemory, "list_fixtures", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memView{s}.ListFixturesWithResults(ctx)
}

// ListMatchPredictions implements standings.DataSource.
func (s *MemStore) ListMatchPredictions(ctx context.Context) (out []model.MatchPrediction, err error) {
	defer observe(BackendMemory, "list_match_predictions", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memView{s}.ListMatchPredictions(ctx)
}

// ListMetaPredictions implements standings.DataSource.
func (s *MemStore) ListMetaPredictions(ctx context.Context) (out []model.MetaPrediction, err error) {
	defer observe(BackendMemory, "list_meta_predictions", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memView{s}.ListMetaPredictions(ctx)
}

// GetActualOutcome implements standings.DataSource.
func (s *MemStore) GetActualOutcome(ctx context.Context, key model.OutcomeKey) (out model.TeamSet, err error) {
	defer observe(BackendMemory, "get_outcome", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memView{s}.GetActualOutcome(ctx, key)
}

// UpsertUser implements Store.
func (s *MemStore) UpsertUser(ctx context.Context, u model.User) (err error) {
	defer observe(BackendMemory, "upsert_user", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	u.Email = model.NormalizeEmail(u.Email)
	u.Name = strings.TrimSpace(u.Name)
	if old, ok := s.users[u.Email]; ok {
		u.CreatedAt = old.CreatedAt
	} else {
		u.CreatedAt = s.opts.now()
	}
	s.users[u.Email] = u
	return nil
}

// GetUser implements Store.
func (s *MemStore) GetUser(ctx context.Context, email string) (u model.User, err error) {
	defer observe(BackendMemory, "get_user", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.User{}, ErrClosed
	}
	u, ok := s.users[model.NormalizeEmail(email)]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

// UpsertFixtures implements Store.
func (s *MemStore) UpsertFixtures(ctx context.Context, fixtures []model.Fixture) (n int, err error) {
	defer observe(BackendMemory, "upsert_fixtures", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	for _, f := range fixtures {
		s.fixtures[f.MatchID] = f
	}
	return len(fixtures), nil
}

// UpsertResults implements Store.
func (s *MemStore) UpsertResults(ctx context.Context, results []model.Result) (n int, err error) {
	defer observe(BackendMemory, "upsert_results", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	for _, r := range results {
		s.results[r.MatchID] = r.Winner
	}
	return len(results), nil
}

// SaveMatchPredictions implements Store.
func (s *MemStore) SaveMatchPredictions(ctx context.Context, preds []model.MatchPrediction) (err error) {
	defer observe(BackendMemory, "save_match_predictions", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, p := range preds {
		s.preds[predKey{email: model.NormalizeEmail(p.Email), matchID: p.MatchID}] = p.PredictedWinner
	}
	return nil
}

// UserMatchPredictions implements Store.
func (s *MemStore) UserMatchPredictions(ctx context.Context, email string) (out []model.MatchPrediction, err error) {
	defer observe(BackendMemory, "user_match_predictions", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	email = model.NormalizeEmail(email)
	out = make([]model.MatchPrediction, 0)
	for k, winner := range s.preds {
		if k.email == email {
			out = append(out, model.MatchPrediction{Email: k.email, MatchID: k.matchID, PredictedWinner: winner})
		}
	}
	slices.SortFunc(out, func(a, b model.MatchPrediction) int { return cmp.Compare(a.MatchID, b.MatchID) })
	return out, nil
}

// SaveMetaPrediction implements Store.
func (s *MemStore) SaveMetaPrediction(ctx context.Context, p model.MetaPrediction) (err error) {
	defer observe(BackendMemory, "save_meta_prediction", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.metas[model.NormalizeEmail(p.Email)] = metaRecord{
		playoffs:  model.EncodeTeamList(p.PlayoffTeams),
		finalists: model.EncodeTeamList(p.Finalists),
		champion:  p.Champion,
	}
	return nil
}

// GetMetaPrediction implements Store.
func (s *MemStore) GetMetaPrediction(ctx context.Context, email string) (p model.MetaPrediction, err error) {
	defer observe(BackendMemory, "get_meta_prediction", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.MetaPrediction{}, ErrClosed
	}
	email = model.NormalizeEmail(email)
	rec, ok := s.metas[email]
	if !ok {
		return model.MetaPrediction{}, ErrNotFound
	}
	return model.DecodeMetaPrediction(email, rec.playoffs, rec.finalists, rec.champion), nil
}

// SetActualOutcome implements Store.
func (s *MemStore) SetActualOutcome(ctx context.Context, key model.OutcomeKey, set model.TeamSet) (err error) {
	defer observe(BackendMemory, "set_outcome", time.Now(), &err)
	if !key.Valid() {
		return ErrInvalidOutcome
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if set.Empty() {
		delete(s.actuals, key)
		return nil
	}
	s.actuals[key] = model.EncodeOutcome(key, set)
	return nil
}

// ListWeeks implements Store.
func (s *MemStore) ListWeeks(ctx context.Context) (out []int, err error) {
	defer observe(BackendMemory, "list_weeks", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	seen := make(map[int]bool)
	out = make([]int, 0)
	for _, f := range s.fixtures {
		if f.Week != nil && !seen[*f.Week] {
			seen[*f.Week] = true
			out = append(out, *f.Week)
		}
	}
	slices.Sort(out)
	return out, nil
}

// ListTeams implements Store.
func (s *MemStore) ListTeams(ctx context.Context) (out []string, err error) {
	defer observe(BackendMemory, "list_teams", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	seen := make(map[string]bool)
	out = make([]string, 0)
	for _, f := range s.fixtures {
		for _, t := range []string{f.TeamA, f.TeamB} {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sortTeams(out)
	return out, nil
}

// Counts implements Store.
func (s *MemStore) Counts(ctx context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Counts{}, ErrClosed
	}
	return Counts{
		Users:            len(s.users),
		Fixtures:         len(s.fixtures),
		Results:          len(s.results),
		MatchPredictions: len(s.preds),
		MetaPredictions:  len(s.metas),
	}, nil
}

// Ping implements Store.
func (s *MemStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return ctx.Err()
}

// Close implements Store. Further calls fail with ErrClosed.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// memView reads MemStore state; the caller holds the lock.
type memView struct{ s *MemStore }

func (v memView) ListUsers(context.Context) ([]model.User, error) {
	if v.s.closed {
		return nil, ErrClosed
	}
	out := make([]model.User, 0, len(v.s.users))
	for _, u := range v.s.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b model.User) int {
		if c := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.Email, b.Email)
	})
	return out, nil
}

func (v memView) ListFixturesWithResults(context.Context) ([]model.FixtureResult, error) {
	if v.s.closed {
		return nil, ErrClosed
	}
	out := make([]model.FixtureResult, 0, len(v.s.fixtures))
	for id, f := range v.s.fixtures {
		out = append(out, model.FixtureResult{Fixture: f, Winner: v.s.results[id]})
	}
	slices.SortFunc(out, func(a, b model.FixtureResult) int {
		if c := a.MatchDate.Compare(b.MatchDate); c != 0 {
			return c
		}
		return cmp.Compare(a.MatchID, b.MatchID)
	})
	return out, nil
}

func (v memView) ListMatchPredictions(context.Context) ([]model.MatchPrediction, error) {
	if v.s.closed {
		return nil, ErrClosed
	}
	out := make([]model.MatchPrediction, 0, len(v.s.preds))
	for k, winner := range v.s.preds {
		out = append(out, model.MatchPrediction{Email: k.email, MatchID: k.matchID, PredictedWinner: winner})
	}
	slices.SortFunc(out, func(a, b model.MatchPrediction) int {
		if c := cmp.Compare(a.Email, b.Email); c != 0 {
			return c
		}
		return cmp.Compare(a.MatchID, b.MatchID)
	})
	return out, nil
}

func (v memView) ListMetaPredictions(context.Context) ([]model.MetaPrediction, error) {
	if v.s.closed {
		return nil, ErrClosed
	}
	out := make([]model.MetaPrediction, 0, len(v.s.metas))
	for email, rec := range v.s.metas {
		out = append(out, model.DecodeMetaPrediction(email, rec.playoffs, rec.finalists, rec.champion))
	}
	slices.SortFunc(out, func(a, b model.MetaPrediction) int { return cmp.Compare(a.Email, b.Email) })
	return out, nil
}

func (v memView) GetActualOutcome(_ context.Context, key model.OutcomeKey) (model.TeamSet, error) {
	if v.s.closed {
		return nil, ErrClosed
	}
	if !key.Valid() {
		return nil, ErrInvalidOutcome
	}
	raw, ok := v.s.actuals[key]
	if !ok {
		return model.TeamSet{}, nil
	}
	return model.DecodeOutcome(key, raw), nil
}

// sortTeams orders names case-insensitively with a byte-wise fallback.
func sortTeams(teams []string) {
	slices.SortFunc(teams, func(a, b string) int {
		if c := cmp.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
}

// Migrate implements Store; there is no schema to create.
func (s *MemStore) Migrate(ctx context.Context) error { return s.Ping(ctx) }
