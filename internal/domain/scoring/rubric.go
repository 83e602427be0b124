// Package scoring turns predictions into points under a fixed rubric.
//
// Every function here is pure: callers hand in the rows they read from the
// store and get fresh score rows back. Nothing is cached between calls.
package scoring

import "fmt"

// Default point values.
const (
	defaultMatchWinnerPoints = 5
	defaultPlayoffTeamPoints = 10
	defaultFinalistPoints    = 15
	defaultChampionPoints    = 20
)

// Rubric holds the point value of each kind of correct pick.
type Rubric struct {
	MatchWinner int `koanf:"match_winner" json:"match_winner"`
	PlayoffTeam int `koanf:"playoff_team" json:"playoff_team"`
	Finalist    int `koanf:"finalist" json:"finalist"`
	Champion    int `koanf:"champion" json:"champion"`
}

// DefaultRubric returns the standard 5/10/15/20 rubric.
func DefaultRubric() Rubric {
	return Rubric{
		MatchWinner: defaultMatchWinnerPoints,
		PlayoffTeam: defaultPlayoffTeamPoints,
		Finalist:    defaultFinalistPoints,
		Champion:    defaultChampionPoints,
	}
}

// Validate rejects negative point values.
func (r Rubric) Validate() error {
	switch {
	case r.MatchWinner < 0:
		return fmt.Errorf("%w: match_winner=%d", ErrInvalidRubric, r.MatchWinner)
	case r.PlayoffTeam < 0:
		return fmt.Errorf("%w: playoff_team=%d", ErrInvalidRubric, r.PlayoffTeam)
	case r.Finalist < 0:
		return fmt.Errorf("%w: finalist=%d", ErrInvalidRubric, r.Finalist)
	case r.Champion < 0:
		return fmt.Errorf("%w: champion=%d", ErrInvalidRubric, r.Champion)
	}
	return nil
}
