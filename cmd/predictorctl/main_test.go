package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"github.com/spf13/cobra"

	service "github.com/okian/predictor/internal/app"
)

const (
	fixturesCSV = "match_id,match_date,team_a,team_b,week\n" +
		"M1,2026-03-21,CSK,MI,1\n" +
		"M2,2026-03-22,RCB,KKR,1\n" +
		"M3,2026-03-28,CSK,RCB,2\n"
	resultsCSV = "match_id,winner\nM1,CSK\n"
)

func execute(args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(dir, name, body string) string {
	path := filepath.Join(dir, name)
	convey.So(os.WriteFile(path, []byte(body), 0o600), convey.ShouldBeNil)
	return path
}

func TestPredictorctl(t *testing.T) {
	convey.Convey("Given a CLI over a SQLite database", t, func() {
		dir := t.TempDir()
		t.Setenv("PREDICTOR_STORE", "sqlite")
		t.Setenv("PREDICTOR_SQLITE_PATH", filepath.Join(dir, "contest.db"))
		t.Setenv("PREDICTOR_LOG_LEVEL", "error")

		out, err := execute("migrate")
		convey.So(err, convey.ShouldBeNil)
		convey.So(out, convey.ShouldEqual, "schema up to date\n")

		out, err = execute("import", "fixtures", writeFile(dir, "fixtures.csv", fixturesCSV))
		convey.So(err, convey.ShouldBeNil)
		convey.So(out, convey.ShouldEqual, "imported 3 fixtures\n")

		// Participants sign in over HTTP; seed one directly.
		cmd := &cobra.Command{}
		cmd.SetErr(io.Discard)
		err = runWith(cmd, func(ctx context.Context, svc *service.Service) error {
			if _, err := svc.SignIn(ctx, "alice@example.com", "Alice"); err != nil {
				return err
			}
			_, err := svc.SaveMatchPicks(ctx, "alice@example.com", map[string]string{"M1": "CSK", "M2": "KKR"})
			return err
		})
		convey.So(err, convey.ShouldBeNil)

		out, err = execute("import", "results", writeFile(dir, "results.csv", resultsCSV))
		convey.So(err, convey.ShouldBeNil)
		convey.So(out, convey.ShouldEqual, "imported 1 results\n")

		convey.Convey("When printing the leaderboard as CSV", func() {
			out, err := execute("leaderboard", "--csv")

			convey.Convey("Then scored rows follow the header", func() {
				convey.So(err, convey.ShouldBeNil)
				lines := strings.Split(strings.TrimSpace(out), "\n")
				convey.So(lines, convey.ShouldResemble, []string{
					strings.Join(service.LeaderboardCSVHeader, ","),
					"1,Alice,alice@example.com,5,0,0,0,5",
				})
			})
		})

		convey.Convey("When printing the leaderboard as a table", func() {
			out, err := execute("leaderboard", "--limit", "1")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldStartWith, "RANK")
			convey.So(out, convey.ShouldContainSubstring, "alice@example.com")
		})

		convey.Convey("When asking for CSV and JSON at once", func() {
			_, err := execute("leaderboard", "--csv", "--json")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When setting the season outcomes", func() {
			out, err := execute("outcomes", "set",
				"--playoffs", "CSK,MI,RCB,KKR", "--finalists", "CSK,RCB", "--champion", "CSK")

			convey.Convey("Then they are stored and shown", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, `"champion": "CSK"`)

				shown, err := execute("outcomes")
				convey.So(err, convey.ShouldBeNil)
				convey.So(shown, convey.ShouldContainSubstring, `"champion": "CSK"`)
			})

			convey.Convey("And clearing unsets them", func() {
				out, err := execute("outcomes", "clear")
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldEqual, "outcomes cleared\n")

				shown, err := execute("outcomes")
				convey.So(err, convey.ShouldBeNil)
				convey.So(shown, convey.ShouldContainSubstring, `"champion": ""`)
			})
		})

		convey.Convey("When the outcome sets have the wrong size", func() {
			_, err := execute("outcomes", "set",
				"--playoffs", "CSK,MI,RCB", "--finalists", "CSK,RCB", "--champion", "CSK")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When printing weekly winners", func() {
			out, err := execute("weekly", "--week", "1")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, `"decided": true`)
			convey.So(out, convey.ShouldContainSubstring, `"name": "Alice"`)

			_, err = execute("weekly", "--week", "9")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the import file is missing", func() {
			_, err := execute("import", "fixtures", filepath.Join(dir, "missing.csv"))
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
