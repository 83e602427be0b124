// Package model contains the contest entities passed between layers.
package model

import (
	"strings"
	"time"
)

// Required set sizes for season predictions and outcomes.
const (
	PlayoffTeamCount = 4
	FinalistCount    = 2
)

// User is a contest participant identified by email.
type User struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Fixture is a scheduled match between two teams.
type Fixture struct {
	MatchID   string    `json:"match_id"`
	MatchDate time.Time `json:"match_date"`
	TeamA     string    `json:"team_a"`
	TeamB     string    `json:"team_b"`
	Week      *int      `json:"week"`
}

// Involves reports whether team plays in the fixture.
func (f Fixture) Involves(team string) bool {
	return team == f.TeamA || team == f.TeamB
}

// Result records the winner of a completed fixture.
type Result struct {
	MatchID string `json:"match_id"`
	Winner  string `json:"winner"`
}

// FixtureResult is a fixture joined with its result, if any.
// Winner is empty until a result has been imported.
type FixtureResult struct {
	Fixture
	Winner string `json:"winner,omitempty"`
}

// Completed reports whether a result exists for the fixture.
func (f FixtureResult) Completed() bool {
	return f.Winner != ""
}

// MatchPrediction is one user's pick for one fixture.
type MatchPrediction struct {
	Email           string `json:"email"`
	MatchID         string `json:"match_id"`
	PredictedWinner string `json:"predicted_winner"`
}

// MetaPrediction is a user's season-level picks. Sets are either of the
// required size or empty; Champion is empty when not picked.
type MetaPrediction struct {
	Email        string  `json:"email"`
	PlayoffTeams TeamSet `json:"playoff_teams"`
	Finalists    TeamSet `json:"finalists"`
	Champion     string  `json:"champion"`
}

// OutcomeKey names one of the admin-set season outcomes.
type OutcomeKey string

// Outcome keys as stored.
const (
	OutcomePlayoffTeams OutcomeKey = "playoff_teams"
	OutcomeFinalists    OutcomeKey = "finalists"
	OutcomeChampion     OutcomeKey = "champion"
)

// OutcomeKeys lists every outcome key in a stable order.
var OutcomeKeys = []OutcomeKey{OutcomePlayoffTeams, OutcomeFinalists, OutcomeChampion}

// Valid reports whether k is a known outcome key.
func (k OutcomeKey) Valid() bool {
	switch k {
	case OutcomePlayoffTeams, OutcomeFinalists, OutcomeChampion:
		return true
	}
	return false
}

// ActualOutcome is the admin-confirmed truth for season predictions.
// Any part may be empty while unset.
type ActualOutcome struct {
	PlayoffTeams TeamSet `json:"playoff_teams"`
	Finalists    TeamSet `json:"finalists"`
	Champion     string  `json:"champion"`
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
