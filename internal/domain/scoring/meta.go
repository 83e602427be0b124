package scoring

import (
	"github.com/okian/predictor/internal/domain/model"
)

// MetaScore is one user's season-prediction points.
type MetaScore struct {
	Email          string `json:"email"`
	PlayoffPoints  int    `json:"playoff_points"`
	FinalistPoints int    `json:"finalist_points"`
	ChampionPoints int    `json:"champion_points"`
	MetaTotal      int    `json:"meta_total"`
}

// ScoreMeta scores each season prediction against the actual outcome.
// Unset outcome parts score nothing. The result is never nil.
func ScoreMeta(r Rubric, preds []model.MetaPrediction, actual model.ActualOutcome) []MetaScore {
	out := make([]MetaScore, 0, len(preds))
	for _, p := range preds {
		out = append(out, scoreOne(r, p, actual))
	}
	return out
}

func scoreOne(r Rubric, p model.MetaPrediction, actual model.ActualOutcome) MetaScore {
	s := MetaScore{
		Email:          p.Email,
		PlayoffPoints:  r.PlayoffTeam * p.PlayoffTeams.IntersectCount(actual.PlayoffTeams),
		FinalistPoints: r.Finalist * p.Finalists.IntersectCount(actual.Finalists),
	}
	if p.Champion != "" && actual.Champion != "" && p.Champion == actual.Champion {
		s.ChampionPoints = r.Champion
	}
	s.MetaTotal = s.PlayoffPoints + s.FinalistPoints + s.ChampionPoints
	return s
}
