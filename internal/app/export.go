package service

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/okian/predictor/internal/domain/standings"
)

// LeaderboardCSVHeader is the header row of the leaderboard export.
var LeaderboardCSVHeader = []string{
	"rank", "name", "email", "match_points", "playoff_points",
	"finalist_points", "champion_points", "total_points",
}

// WriteLeaderboardCSV writes rows as CSV with a header line.
func WriteLeaderboardCSV(w io.Writer, rows []standings.LeaderboardRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LeaderboardCSVHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.Rank),
			r.Name,
			r.Email,
			strconv.Itoa(r.MatchPoints),
			strconv.Itoa(r.PlayoffPoints),
			strconv.Itoa(r.FinalistPoints),
			strconv.Itoa(r.ChampionPoints),
			strconv.Itoa(r.TotalPoints),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
