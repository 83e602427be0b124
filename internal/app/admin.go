package service

import (
	"context"
	"fmt"
	"io"

	"github.com/okian/predictor/internal/adapters/csvimport"
	"github.com/okian/predictor/internal/domain/model"
	"github.com/okian/predictor/internal/domain/standings"
	"github.com/okian/predictor/pkg/logger"
	"github.com/okian/predictor/pkg/metrics"
)

// ImportFixturesCSV parses a fixtures file and upserts every row.
func (s *Service) ImportFixturesCSV(ctx context.Context, r io.Reader) (int, error) {
	fixtures, err := csvimport.ParseFixtures(r)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return s.ImportFixtures(ctx, fixtures)
}

// ImportFixtures upserts fixtures by match id.
func (s *Service) ImportFixtures(ctx context.Context, fixtures []model.Fixture) (int, error) {
	for _, f := range fixtures {
		if f.MatchID == "" || f.TeamA == "" || f.TeamB == "" || f.TeamA == f.TeamB {
			return 0, fmt.Errorf("%w: fixture %q needs two different teams", ErrInvalidInput, f.MatchID)
		}
	}
	n, err := s.store.UpsertFixtures(ctx, fixtures)
	if err != nil {
		return 0, err
	}

	metrics.RecordImport("fixtures", n)
	s.logger.Info(ctx, "fixtures imported", logger.Int("rows", n))
	return n, nil
}

// ImportResultsCSV parses a results file and upserts every row.
func (s *Service) ImportResultsCSV(ctx context.Context, r io.Reader) (int, error) {
	results, err := csvimport.ParseResults(r)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return s.ImportResults(ctx, results)
}

// ImportResults upserts results. Each result must belong to a known fixture
// and name one of its teams.
func (s *Service) ImportResults(ctx context.Context, results []model.Result) (int, error) {
	fixtures, err := s.fixtureIndex(ctx)
	if err != nil {
		return 0, err
	}
	for _, r := range results {
		f, ok := fixtures[r.MatchID]
		if !ok {
			return 0, fmt.Errorf("%w: %w %q", ErrInvalidInput, ErrUnknownMatch, r.MatchID)
		}
		if !f.Involves(r.Winner) {
			return 0, fmt.Errorf("%w: match %s is %s vs %s, got winner %q", ErrInvalidInput, r.MatchID, f.TeamA, f.TeamB, r.Winner)
		}
	}

	n, err := s.store.UpsertResults(ctx, results)
	if err != nil {
		return 0, err
	}

	metrics.RecordImport("results", n)
	s.logger.Info(ctx, "results imported", logger.Int("rows", n))
	return n, nil
}

// SetOutcomes records the actual playoff teams, finalists and champion.
// All three are required together.
func (s *Service) SetOutcomes(ctx context.Context, in SeasonPicks) (model.ActualOutcome, error) {
	out, err := validateOutcome(in.PlayoffTeams, in.Finalists, in.Champion)
	if err != nil {
		return model.ActualOutcome{}, err
	}

	values := map[model.OutcomeKey]model.TeamSet{
		model.OutcomePlayoffTeams: out.PlayoffTeams,
		model.OutcomeFinalists:    out.Finalists,
		model.OutcomeChampion:     model.NewTeamSet(out.Champion),
	}
	for _, key := range model.OutcomeKeys {
		if err := s.store.SetActualOutcome(ctx, key, values[key]); err != nil {
			return model.ActualOutcome{}, err
		}
		metrics.RecordOutcomeSet(string(key))
	}

	s.logger.Info(ctx, "season outcomes set",
		logger.Any("playoffTeams", out.PlayoffTeams),
		logger.Any("finalists", out.Finalists),
		logger.String("champion", out.Champion),
	)
	return out, nil
}

// ClearOutcomes unsets every season outcome.
func (s *Service) ClearOutcomes(ctx context.Context) error {
	for _, key := range model.OutcomeKeys {
		if err := s.store.SetActualOutcome(ctx, key, model.TeamSet{}); err != nil {
			return err
		}
	}
	s.logger.Info(ctx, "season outcomes cleared")
	return nil
}

// Outcomes returns the stored season outcomes. Unset parts are empty.
func (s *Service) Outcomes(ctx context.Context) (model.ActualOutcome, error) {
	return standings.ReadActualOutcome(ctx, s.store)
}
