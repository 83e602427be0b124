package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/okian/predictor/internal/adapters/repository"
	"github.com/okian/predictor/internal/domain/model"
	"github.com/okian/predictor/internal/domain/scoring"
	"github.com/okian/predictor/internal/domain/standings"
	"github.com/okian/predictor/pkg/logger"
	"github.com/okian/predictor/pkg/metrics"
)

// WeekSummary is one week of the weekly standings. Decided is false until
// at least one of the week's matches has a result.
type WeekSummary struct {
	Week    int                   `json:"week"`
	Decided bool                  `json:"decided"`
	Winners []standings.WeeklyRow `json:"winners"`
	Scores  []standings.WeeklyRow `json:"scores"`
}

// Stats summarises the contest state.
type Stats struct {
	Store  string            `json:"store"`
	Counts repository.Counts `json:"counts"`
	Rubric scoring.Rubric    `json:"points"`
	Locked bool              `json:"locked"`
	Cutoff *time.Time        `json:"cutoff,omitempty"`
}

// Leaderboard returns the ranked standings. A positive limit keeps only the
// first limit rows.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]standings.LeaderboardRow, error) {
	start := time.Now()
	rows, err := s.engine.ComputeLeaderboard(ctx)
	if err != nil {
		metrics.RecordComputationError("leaderboard")
		s.logger.Error(ctx, "leaderboard computation failed", logger.Error(err))
		return nil, err
	}
	metrics.RecordComputation("leaderboard", time.Since(start).Seconds())
	metrics.UpdateParticipants(len(rows))

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// Weekly returns a summary for every fixture week, ascending.
func (s *Service) Weekly(ctx context.Context) ([]WeekSummary, error) {
	start := time.Now()
	result, err := s.engine.ComputeWeeklyWinners(ctx)
	if err != nil {
		metrics.RecordComputationError("weekly")
		s.logger.Error(ctx, "weekly computation failed", logger.Error(err))
		return nil, err
	}
	weeks, err := s.store.ListWeeks(ctx)
	if err != nil {
		metrics.RecordComputationError("weekly")
		return nil, err
	}
	metrics.RecordComputation("weekly", time.Since(start).Seconds())

	out := make([]WeekSummary, 0, len(weeks))
	decided := 0
	for _, w := range weeks {
		sum := summarize(result, w)
		if sum.Decided {
			decided++
		}
		out = append(out, sum)
	}
	metrics.UpdateScoredWeeks(decided)
	return out, nil
}

// Week returns the summary of a single week, or ErrNotFound when no fixture
// is scheduled in it.
func (s *Service) Week(ctx context.Context, week int) (WeekSummary, error) {
	all, err := s.Weekly(ctx)
	if err != nil {
		return WeekSummary{}, err
	}
	i := slices.IndexFunc(all, func(w WeekSummary) bool { return w.Week == week })
	if i < 0 {
		return WeekSummary{}, fmt.Errorf("%w: week %d", ErrNotFound, week)
	}
	return all[i], nil
}

func summarize(result standings.WeeklyResult, week int) WeekSummary {
	winners, ok := result.WinnersFor(week)
	sum := WeekSummary{
		Week:    week,
		Decided: ok,
		Winners: []standings.WeeklyRow{},
		Scores:  []standings.WeeklyRow{},
	}
	if ok {
		sum.Winners = winners
		sum.Scores = result.TotalsFor(week)
	}
	return sum
}

// Fixtures lists every fixture with its result, by date.
func (s *Service) Fixtures(ctx context.Context) ([]model.FixtureResult, error) {
	return s.store.ListFixturesWithResults(ctx)
}

// Teams lists the distinct team names found in fixtures.
func (s *Service) Teams(ctx context.Context) ([]string, error) {
	return s.store.ListTeams(ctx)
}

// Weeks lists the distinct fixture weeks.
func (s *Service) Weeks(ctx context.Context) ([]int, error) {
	return s.store.ListWeeks(ctx)
}

// Users lists every participant.
func (s *Service) Users(ctx context.Context) ([]model.User, error) {
	return s.store.ListUsers(ctx)
}

// Stats returns row counts and the contest settings.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{
		Store:  s.store.Backend(),
		Counts: counts,
		Rubric: s.rubric,
		Locked: s.Locked(),
	}
	if cutoff, ok := s.Cutoff(); ok {
		st.Cutoff = &cutoff
	}
	return st, nil
}
