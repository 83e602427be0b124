package standings

import (
	"context"
	"fmt"

	"github.com/okian/predictor/internal/domain/model"
	"github.com/okian/predictor/internal/domain/scoring"
)

// DataSource is the read side the engine consumes.
type DataSource interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	// ListFixturesWithResults returns every fixture left-joined with its result.
	ListFixturesWithResults(ctx context.Context) ([]model.FixtureResult, error)
	ListMatchPredictions(ctx context.Context) ([]model.MatchPrediction, error)
	// ListMetaPredictions returns validated predictions; malformed payloads
	// arrive as empty sets.
	ListMetaPredictions(ctx context.Context) ([]model.MetaPrediction, error)
	// GetActualOutcome returns an empty set while key is unset. The champion
	// is a one-element set.
	GetActualOutcome(ctx context.Context, key model.OutcomeKey) (model.TeamSet, error)
}

// Snapshotter is implemented by sources that can run several reads against
// one consistent view (a read transaction or a read lock).
type Snapshotter interface {
	Snapshot(ctx context.Context, fn func(DataSource) error) error
}

// Engine computes scores and standings on demand. It holds no state besides
// its source and rubric, so one Engine may serve concurrent callers.
type Engine struct {
	src    DataSource
	rubric scoring.Rubric
}

// NewEngine creates an engine reading from src and scoring with rubric.
func NewEngine(src DataSource, rubric scoring.Rubric) *Engine {
	return &Engine{src: src, rubric: rubric}
}

// Rubric returns the point values in use.
func (e *Engine) Rubric() scoring.Rubric { return e.rubric }

// ComputeMatchScores scores every match prediction.
func (e *Engine) ComputeMatchScores(ctx context.Context) ([]scoring.MatchScore, error) {
	var out []scoring.MatchScore
	err := e.read(ctx, func(src DataSource) error {
		var err error
		out, err = e.matchScores(ctx, src)
		return err
	})
	return out, err
}

// ComputeMetaScores scores every season prediction.
func (e *Engine) ComputeMetaScores(ctx context.Context) ([]scoring.MetaScore, error) {
	var out []scoring.MetaScore
	err := e.read(ctx, func(src DataSource) error {
		var err error
		out, err = e.metaScores(ctx, src)
		return err
	})
	return out, err
}

// ComputeLeaderboard returns the ranked overall standings.
func (e *Engine) ComputeLeaderboard(ctx context.Context) ([]LeaderboardRow, error) {
	var out []LeaderboardRow
	err := e.read(ctx, func(src DataSource) error {
		users, err := src.ListUsers(ctx)
		if err != nil {
			return wrapRead("users", err)
		}
		fixtures, err := src.ListFixturesWithResults(ctx)
		if err != nil {
			return wrapRead("fixtures", err)
		}
		preds, err := src.ListMatchPredictions(ctx)
		if err != nil {
			return wrapRead("match predictions", err)
		}
		metas, err := e.metaScores(ctx, src)
		if err != nil {
			return err
		}
		matches := scoring.ScoreMatches(e.rubric, preds, fixtures, users)
		out = Leaderboard(matches, metas, users)
		return nil
	})
	return out, err
}

// ComputeWeeklyWinners returns weekly totals and winners.
func (e *Engine) ComputeWeeklyWinners(ctx context.Context) (WeeklyResult, error) {
	var out WeeklyResult
	err := e.read(ctx, func(src DataSource) error {
		matches, err := e.matchScores(ctx, src)
		if err != nil {
			return err
		}
		out = Weekly(matches)
		return nil
	})
	return out, err
}

func (e *Engine) read(ctx context.Context, fn func(DataSource) error) error {
	if s, ok := e.src.(Snapshotter); ok {
		return s.Snapshot(ctx, fn)
	}
	return fn(e.src)
}

func (e *Engine) matchScores(ctx context.Context, src DataSource) ([]scoring.MatchScore, error) {
	users, err := src.ListUsers(ctx)
	if err != nil {
		return nil, wrapRead("users", err)
	}
	fixtures, err := src.ListFixturesWithResults(ctx)
	if err != nil {
		return nil, wrapRead("fixtures", err)
	}
	preds, err := src.ListMatchPredictions(ctx)
	if err != nil {
		return nil, wrapRead("match predictions", err)
	}
	return scoring.ScoreMatches(e.rubric, preds, fixtures, users), nil
}

func (e *Engine) metaScores(ctx context.Context, src DataSource) ([]scoring.MetaScore, error) {
	preds, err := src.ListMetaPredictions(ctx)
	if err != nil {
		return nil, wrapRead("meta predictions", err)
	}
	if len(preds) == 0 {
		return []scoring.MetaScore{}, nil
	}
	actual, err := ReadActualOutcome(ctx, src)
	if err != nil {
		return nil, err
	}
	return scoring.ScoreMeta(e.rubric, preds, actual), nil
}

// ReadActualOutcome loads all outcome keys from src.
func ReadActualOutcome(ctx context.Context, src DataSource) (model.ActualOutcome, error) {
	var actual model.ActualOutcome
	for _, key := range model.OutcomeKeys {
		set, err := src.GetActualOutcome(ctx, key)
		if err != nil {
			return model.ActualOutcome{}, wrapRead(string(key), err)
		}
		switch key {
		case model.OutcomePlayoffTeams:
			actual.PlayoffTeams = set
		case model.OutcomeFinalists:
			actual.Finalists = set
		case model.OutcomeChampion:
			actual.Champion = set.Single()
		}
	}
	return actual, nil
}

func wrapRead(what string, err error) error {
	return fmt.Errorf("%w: read %s: %w", ErrDataAccess, what, err)
}
