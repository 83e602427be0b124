package scoring_test

import (
	"errors"
	"testing"

	"github.com/okian/predictor/internal/domain/model"
	"github.com/okian/predictor/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func intp(v int) *int { return &v }

func TestRubric(t *testing.T) {
	Convey("Given the default rubric", t, func() {
		r := scoring.DefaultRubric()

		Convey("Then it uses 5/10/15/20", func() {
			So(r, ShouldResemble, scoring.Rubric{MatchWinner: 5, PlayoffTeam: 10, Finalist: 15, Champion: 20})
			So(r.Validate(), ShouldBeNil)
		})

		Convey("When a value is negative", func() {
			r.Finalist = -1
			err := r.Validate()
			So(errors.Is(err, scoring.ErrInvalidRubric), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "finalist=-1")
		})
	})
}

func TestScoreMatches(t *testing.T) {
	Convey("Given fixture M1 TeamA vs TeamB", t, func() {
		r := scoring.DefaultRubric()
		users := []model.User{{Email: "u1@x.io", Name: "Asha"}}
		fixture := model.Fixture{MatchID: "M1", TeamA: "TeamA", TeamB: "TeamB", Week: intp(1)}

		Convey("When TeamA won", func() {
			fixtures := []model.FixtureResult{{Fixture: fixture, Winner: "TeamA"}}

			Convey("Then a correct pick earns match_winner points", func() {
				rows := scoring.ScoreMatches(r, []model.MatchPrediction{{Email: "u1@x.io", MatchID: "M1", PredictedWinner: "TeamA"}}, fixtures, users)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].MatchPoints, ShouldEqual, 5)
				So(rows[0].Scored, ShouldBeTrue)
				So(rows[0].Name, ShouldEqual, "Asha")
				So(*rows[0].Week, ShouldEqual, 1)
			})

			Convey("And a wrong pick earns nothing", func() {
				rows := scoring.ScoreMatches(r, []model.MatchPrediction{{Email: "u1@x.io", MatchID: "M1", PredictedWinner: "TeamB"}}, fixtures, users)
				So(rows[0].MatchPoints, ShouldEqual, 0)
			})

			Convey("And matching is exact", func() {
				rows := scoring.ScoreMatches(r, []model.MatchPrediction{{Email: "u1@x.io", MatchID: "M1", PredictedWinner: "teama"}}, fixtures, users)
				So(rows[0].MatchPoints, ShouldEqual, 0)
			})
		})

		Convey("When the match has no result yet", func() {
			fixtures := []model.FixtureResult{{Fixture: fixture}}
			rows := scoring.ScoreMatches(r, []model.MatchPrediction{{Email: "u1@x.io", MatchID: "M1", PredictedWinner: "TeamA"}}, fixtures, users)
			So(rows[0].MatchPoints, ShouldEqual, 0)
			So(rows[0].Scored, ShouldBeFalse)
		})

		Convey("When a prediction references an unknown fixture", func() {
			fixtures := []model.FixtureResult{{Fixture: fixture, Winner: "TeamA"}}
			rows := scoring.ScoreMatches(r, []model.MatchPrediction{
				{Email: "u1@x.io", MatchID: "M9", PredictedWinner: "TeamA"},
				{Email: "ghost@x.io", MatchID: "M1", PredictedWinner: "TeamA"},
			}, fixtures, users)

			Convey("Then it is dropped and unknown users keep a blank name", func() {
				So(rows, ShouldHaveLength, 1)
				So(rows[0].Email, ShouldEqual, "ghost@x.io")
				So(rows[0].Name, ShouldEqual, "")
				So(rows[0].MatchPoints, ShouldEqual, 5)
			})
		})

		Convey("When there are no predictions", func() {
			rows := scoring.ScoreMatches(r, nil, nil, nil)
			So(rows, ShouldNotBeNil)
			So(rows, ShouldBeEmpty)
		})
	})
}

func TestScoreMeta(t *testing.T) {
	Convey("Given actual playoffs {A,B,C,D}, finalists {A,B} and champion A", t, func() {
		r := scoring.DefaultRubric()
		actual := model.ActualOutcome{
			PlayoffTeams: model.NewTeamSet("A", "B", "C", "D"),
			Finalists:    model.NewTeamSet("A", "B"),
			Champion:     "A",
		}

		Convey("When a user predicts {A,B,X,Y}, finalists {A,X} and champion A", func() {
			rows := scoring.ScoreMeta(r, []model.MetaPrediction{{
				Email:        "u1@x.io",
				PlayoffTeams: model.NewTeamSet("Y", "X", "B", "A"),
				Finalists:    model.NewTeamSet("A", "X"),
				Champion:     "A",
			}}, actual)

			Convey("Then each correct pick is counted once", func() {
				So(rows, ShouldHaveLength, 1)
				So(rows[0].PlayoffPoints, ShouldEqual, 20)
				So(rows[0].FinalistPoints, ShouldEqual, 15)
				So(rows[0].ChampionPoints, ShouldEqual, 20)
				So(rows[0].MetaTotal, ShouldEqual, 55)
			})
		})

		Convey("When the champion pick is blank", func() {
			rows := scoring.ScoreMeta(r, []model.MetaPrediction{{Email: "u1@x.io", Champion: ""}}, actual)
			So(rows[0].ChampionPoints, ShouldEqual, 0)
			So(rows[0].MetaTotal, ShouldEqual, 0)
		})

		Convey("When the payload degraded to empty sets", func() {
			mp := model.DecodeMetaPrediction("u1@x.io", "not json", "[]", "A")
			rows := scoring.ScoreMeta(r, []model.MetaPrediction{mp}, actual)
			So(rows[0].MetaTotal, ShouldEqual, 0)
		})
	})

	Convey("Given no actual outcome yet", t, func() {
		rows := scoring.ScoreMeta(scoring.DefaultRubric(), []model.MetaPrediction{{
			Email:        "u1@x.io",
			PlayoffTeams: model.NewTeamSet("A", "B", "C", "D"),
			Finalists:    model.NewTeamSet("A", "B"),
			Champion:     "A",
		}}, model.ActualOutcome{})

		Convey("Then every meta score is zero", func() {
			So(rows[0], ShouldResemble, scoring.MetaScore{Email: "u1@x.io"})
		})
	})

	Convey("Given no meta predictions at all", t, func() {
		rows := scoring.ScoreMeta(scoring.DefaultRubric(), nil, model.ActualOutcome{Champion: "A"})
		So(rows, ShouldNotBeNil)
		So(rows, ShouldBeEmpty)
	})
}
