// Package standings aggregates score rows into the overall leaderboard and
// the weekly winners, and hosts the Engine that feeds them from a DataSource.
package standings

import (
	"cmp"
	"slices"

	"github.com/okian/predictor/internal/domain/model"
	"github.com/okian/predictor/internal/domain/scoring"
)

// LeaderboardRow is one participant's standing.
type LeaderboardRow struct {
	Rank           int    `json:"rank"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	MatchPoints    int    `json:"match_points"`
	PlayoffPoints  int    `json:"playoff_points"`
	FinalistPoints int    `json:"finalist_points"`
	ChampionPoints int    `json:"champion_points"`
	TotalPoints    int    `json:"total_points"`
}

// Leaderboard joins match and meta scores per email and ranks the result.
//
// Participants are every email seen in either input; a missing side counts
// as zero. Rows are ordered by total, then match points, then playoff
// points, all descending, with email as the final key. Rank only looks at
// the total: equal totals share the lowest rank of their group and the next
// total skips ahead (1, 1, 3).
func Leaderboard(matches []scoring.MatchScore, metas []scoring.MetaScore, users []model.User) []LeaderboardRow {
	byEmail := make(map[string]*LeaderboardRow)
	get := func(email string) *LeaderboardRow {
		row, ok := byEmail[email]
		if !ok {
			row = &LeaderboardRow{Email: email}
			byEmail[email] = row
		}
		return row
	}

	for _, m := range matches {
		get(m.Email).MatchPoints += m.MatchPoints
	}
	for _, m := range metas {
		row := get(m.Email)
		row.PlayoffPoints += m.PlayoffPoints
		row.FinalistPoints += m.FinalistPoints
		row.ChampionPoints += m.ChampionPoints
	}

	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.Email] = u.Name
	}

	out := make([]LeaderboardRow, 0, len(byEmail))
	for _, row := range byEmail {
		row.Name = names[row.Email]
		row.TotalPoints = row.MatchPoints + row.PlayoffPoints + row.FinalistPoints + row.ChampionPoints
		out = append(out, *row)
	}

	slices.SortFunc(out, compareStanding)
	assignMinRanks(out)
	return out
}

func compareStanding(a, b LeaderboardRow) int {
	if c := cmp.Compare(b.TotalPoints, a.TotalPoints); c != 0 {
		return c
	}
	if c := cmp.Compare(b.MatchPoints, a.MatchPoints); c != 0 {
		return c
	}
	if c := cmp.Compare(b.PlayoffPoints, a.PlayoffPoints); c != 0 {
		return c
	}
	return cmp.Compare(a.Email, b.Email)
}

// assignMinRanks expects rows sorted by total descending.
func assignMinRanks(rows []LeaderboardRow) {
	for i := range rows {
		if i > 0 && rows[i].TotalPoints == rows[i-1].TotalPoints {
			rows[i].Rank = rows[i-1].Rank
			continue
		}
		rows[i].Rank = i + 1
	}
}
