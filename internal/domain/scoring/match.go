package scoring

import (
	"github.com/okian/predictor/internal/domain/model"
)

// MatchScore is one user's pick for one fixture, joined with the result.
type MatchScore struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	MatchID         string `json:"match_id"`
	Week            *int   `json:"week"`
	PredictedWinner string `json:"predicted_winner"`
	Winner          string `json:"winner,omitempty"`
	// Scored is true once the fixture has a result.
	Scored      bool `json:"scored"`
	MatchPoints int  `json:"match_points"`
}

// ScoreMatches scores every prediction against its fixture's result.
//
// Predictions whose fixture is unknown are dropped. A fixture without a
// result scores 0. Names come from users and stay blank when the email is
// unknown. Output follows the prediction order.
func ScoreMatches(r Rubric, preds []model.MatchPrediction, fixtures []model.FixtureResult, users []model.User) []MatchScore {
	byID := make(map[string]model.FixtureResult, len(fixtures))
	for _, f := range fixtures {
		byID[f.MatchID] = f
	}
	names := userNames(users)

	out := make([]MatchScore, 0, len(preds))
	for _, p := range preds {
		f, ok := byID[p.MatchID]
		if !ok {
			continue
		}
		row := MatchScore{
			Email:           p.Email,
			Name:            names[p.Email],
			MatchID:         p.MatchID,
			Week:            f.Week,
			PredictedWinner: p.PredictedWinner,
			Winner:          f.Winner,
			Scored:          f.Completed(),
		}
		if row.Scored && p.PredictedWinner == f.Winner {
			row.MatchPoints = r.MatchWinner
		}
		out = append(out, row)
	}
	return out
}

func userNames(users []model.User) map[string]string {
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.Email] = u.Name
	}
	return names
}
