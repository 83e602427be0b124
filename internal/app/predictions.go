package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/okian/predictor/internal/adapters/repository"
	"github.com/okian/predictor/internal/domain/model"
	"github.com/okian/predictor/pkg/logger"
	"github.com/okian/predictor/pkg/metrics"
)

// UserPredictions is everything a user has picked so far.
type UserPredictions struct {
	User    model.User              `json:"user"`
	Matches []model.MatchPrediction `json:"matches"`
	Meta    *model.MetaPrediction   `json:"meta,omitempty"`
	Locked  bool                    `json:"locked"`
}

// SeasonPicks is a set of season picks: a prediction or the actual outcome.
type SeasonPicks struct {
	PlayoffTeams []string `json:"playoff_teams"`
	Finalists    []string `json:"finalists"`
	Champion     string   `json:"champion"`
}

// SignIn registers the user or refreshes their display name.
func (s *Service) SignIn(ctx context.Context, email, name string) (model.User, error) {
	email = model.NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if !strings.Contains(email, "@") {
		return model.User{}, fmt.Errorf("%w: email %q", ErrInvalidInput, email)
	}
	if name == "" {
		return model.User{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	if err := s.store.UpsertUser(ctx, model.User{Email: email, Name: name}); err != nil {
		return model.User{}, err
	}
	u, err := s.store.GetUser(ctx, email)
	if err != nil {
		return model.User{}, err
	}

	metrics.RecordSignIn()
	s.logger.Debug(ctx, "user signed in", logger.String("email", email))
	return u, nil
}

// SaveMatchPicks stores the user's winners keyed by match id. Every pick
// must name an existing fixture and one of its two teams; otherwise nothing
// is saved.
func (s *Service) SaveMatchPicks(ctx context.Context, email string, picks map[string]string) (int, error) {
	email = model.NormalizeEmail(email)
	if err := s.checkOpen(ctx, email); err != nil {
		return 0, err
	}
	if len(picks) == 0 {
		return 0, nil
	}

	fixtures, err := s.fixtureIndex(ctx)
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(picks))
	for id := range picks {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	preds := make([]model.MatchPrediction, 0, len(ids))
	for _, id := range ids {
		winner := strings.TrimSpace(picks[id])
		f, ok := fixtures[id]
		if !ok {
			return 0, fmt.Errorf("%w: %w %q", ErrInvalidInput, ErrUnknownMatch, id)
		}
		if !f.Involves(winner) {
			return 0, fmt.Errorf("%w: match %s is %s vs %s, got %q", ErrInvalidInput, id, f.TeamA, f.TeamB, winner)
		}
		preds = append(preds, model.MatchPrediction{Email: email, MatchID: id, PredictedWinner: winner})
	}

	if err := s.store.SaveMatchPredictions(ctx, preds); err != nil {
		return 0, err
	}

	metrics.RecordPredictionsSaved("match", len(preds))
	s.logger.Debug(ctx, "match picks saved",
		logger.String("email", email),
		logger.Int("count", len(preds)),
	)
	return len(preds), nil
}

// SaveMetaPrediction replaces the user's season picks. It needs exactly
// four distinct playoff teams, two distinct finalists and a champion.
func (s *Service) SaveMetaPrediction(ctx context.Context, email string, in SeasonPicks) (model.MetaPrediction, error) {
	email = model.NormalizeEmail(email)
	if err := s.checkOpen(ctx, email); err != nil {
		return model.MetaPrediction{}, err
	}

	out, err := validateOutcome(in.PlayoffTeams, in.Finalists, in.Champion)
	if err != nil {
		return model.MetaPrediction{}, err
	}
	p := model.MetaPrediction{
		Email:        email,
		PlayoffTeams: out.PlayoffTeams,
		Finalists:    out.Finalists,
		Champion:     out.Champion,
	}
	if err := s.store.SaveMetaPrediction(ctx, p); err != nil {
		return model.MetaPrediction{}, err
	}

	metrics.RecordPredictionsSaved("meta", 1)
	s.logger.Debug(ctx, "season picks saved", logger.String("email", email))
	return p, nil
}

// UserPredictions returns the user's stored picks.
func (s *Service) UserPredictions(ctx context.Context, email string) (UserPredictions, error) {
	email = model.NormalizeEmail(email)
	u, err := s.lookupUser(ctx, email)
	if err != nil {
		return UserPredictions{}, err
	}

	matches, err := s.store.UserMatchPredictions(ctx, email)
	if err != nil {
		return UserPredictions{}, err
	}
	out := UserPredictions{User: u, Matches: matches, Locked: s.Locked()}

	meta, err := s.store.GetMetaPrediction(ctx, email)
	switch {
	case err == nil:
		out.Meta = &meta
	case errors.Is(err, repository.ErrNotFound):
	default:
		return UserPredictions{}, err
	}
	return out, nil
}

// checkOpen rejects writes after the cutoff and from unknown users.
func (s *Service) checkOpen(ctx context.Context, email string) error {
	if s.Locked() {
		metrics.RecordPredictionLocked()
		s.logger.Info(ctx, "prediction rejected after cutoff", logger.String("email", email))
		return ErrLocked
	}
	_, err := s.lookupUser(ctx, email)
	return err
}

func (s *Service) lookupUser(ctx context.Context, email string) (model.User, error) {
	u, err := s.store.GetUser(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, fmt.Errorf("%w: user %s", ErrNotFound, email)
	}
	return u, err
}

func (s *Service) fixtureIndex(ctx context.Context) (map[string]model.FixtureResult, error) {
	fixtures, err := s.store.ListFixturesWithResults(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]model.FixtureResult, len(fixtures))
	for _, f := range fixtures {
		idx[f.MatchID] = f
	}
	return idx, nil
}

// validateOutcome checks the 4/2/1 shape shared by predictions and actual
// outcomes.
func validateOutcome(playoffs, finalists []string, champion string) (model.ActualOutcome, error) {
	p := model.NewTeamSet(trimAll(playoffs)...)
	if len(p) != model.PlayoffTeamCount || len(p) != len(playoffs) {
		return model.ActualOutcome{}, fmt.Errorf("%w: pick exactly %d distinct playoff teams", ErrInvalidInput, model.PlayoffTeamCount)
	}
	f := model.NewTeamSet(trimAll(finalists)...)
	if len(f) != model.FinalistCount || len(f) != len(finalists) {
		return model.ActualOutcome{}, fmt.Errorf("%w: pick exactly %d distinct finalists", ErrInvalidInput, model.FinalistCount)
	}
	champion = strings.TrimSpace(champion)
	if champion == "" {
		return model.ActualOutcome{}, fmt.Errorf("%w: champion is required", ErrInvalidInput)
	}
	return model.ActualOutcome{PlayoffTeams: p, Finalists: f, Champion: champion}, nil
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
