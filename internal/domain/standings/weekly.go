package standings

import (
	"cmp"
	"slices"

	"github.com/okian/predictor/internal/domain/scoring"
)

// WeeklyRow is one user's match points within one week.
type WeeklyRow struct {
	Week        int    `json:"week"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	MatchPoints int    `json:"match_points"`
}

// WeeklyResult holds per-user-per-week totals and each week's winners.
type WeeklyResult struct {
	// Totals is sorted by week ascending, then points descending.
	Totals []WeeklyRow `json:"totals"`
	// Winners maps a week to everyone tied on its top score, by name.
	// Weeks without a completed match are absent.
	Winners map[int][]WeeklyRow `json:"winners"`
}

// WinnersFor returns the winners of week and whether the week has any.
func (w WeeklyResult) WinnersFor(week int) ([]WeeklyRow, bool) {
	rows, ok := w.Winners[week]
	return rows, ok && len(rows) > 0
}

// TotalsFor returns the totals of a single week in display order.
func (w WeeklyResult) TotalsFor(week int) []WeeklyRow {
	out := make([]WeeklyRow, 0)
	for _, r := range w.Totals {
		if r.Week == week {
			out = append(out, r)
		}
	}
	return out
}

type weekKey struct {
	email string
	name  string
	week  int
}

// Weekly groups match scores by user and week and picks each week's winners.
// Rows without a week are ignored.
func Weekly(matches []scoring.MatchScore) WeeklyResult {
	totals := make(map[weekKey]int)
	scoredWeeks := make(map[int]bool)
	for _, m := range matches {
		if m.Week == nil {
			continue
		}
		k := weekKey{email: m.Email, name: m.Name, week: *m.Week}
		totals[k] += m.MatchPoints
		if m.Scored {
			scoredWeeks[k.week] = true
		}
	}

	res := WeeklyResult{
		Totals:  make([]WeeklyRow, 0, len(totals)),
		Winners: make(map[int][]WeeklyRow),
	}
	best := make(map[int]int)
	for k, pts := range totals {
		res.Totals = append(res.Totals, WeeklyRow{Week: k.week, Name: k.name, Email: k.email, MatchPoints: pts})
		if cur, ok := best[k.week]; !ok || pts > cur {
			best[k.week] = pts
		}
	}

	slices.SortFunc(res.Totals, func(a, b WeeklyRow) int {
		if c := cmp.Compare(a.Week, b.Week); c != 0 {
			return c
		}
		if c := cmp.Compare(b.MatchPoints, a.MatchPoints); c != 0 {
			return c
		}
		return byNameThenEmail(a, b)
	})

	for _, row := range res.Totals {
		if !scoredWeeks[row.Week] || row.MatchPoints != best[row.Week] {
			continue
		}
		res.Winners[row.Week] = append(res.Winners[row.Week], row)
	}
	for week := range res.Winners {
		slices.SortStableFunc(res.Winners[week], byNameThenEmail)
	}
	return res
}

func byNameThenEmail(a, b WeeklyRow) int {
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.Email, b.Email)
}
