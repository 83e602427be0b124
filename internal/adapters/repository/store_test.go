package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/predictor/internal/domain/model"
	"github.com/okian/predictor/internal/domain/scoring"
	"github.com/okian/predictor/internal/domain/standings"
	. "github.com/smartystreets/goconvey/convey"
)

func intp(v int) *int { return &v }

var (
	day1 = time.Date(2025, 3, 22, 14, 0, 0, 0, time.UTC)
	day2 = time.Date(2025, 3, 23, 14, 0, 0, 0, time.UTC)
)

// storeFactories lists every backend that runs without external services,
// plus PostgreSQL when PREDICTOR_TEST_DATABASE_URL points at a scratch database.
func storeFactories(t *testing.T) map[string]func(opts ...Option) Store {
	factories := map[string]func(opts ...Option) Store{
		BackendMemory: func(opts ...Option) Store {
			return NewMemStore(opts...)
		},
		BackendSQLite: func(opts ...Option) Store {
			s, err := NewSQLiteStore(context.Background(), ":memory:", opts...)
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			if err := s.Migrate(context.Background()); err != nil {
				t.Fatalf("migrate sqlite: %v", err)
			}
			return s
		},
	}
	if url := os.Getenv("PREDICTOR_TEST_DATABASE_URL"); url != "" {
		factories[BackendPostgres] = func(opts ...Option) Store {
			ctx := context.Background()
			s, err := NewPostgresStore(ctx, url, opts...)
			if err != nil {
				t.Fatalf("open postgres: %v", err)
			}
			if _, err := s.pool.Exec(ctx, `DROP TABLE IF EXISTS
				predictions_match, predictions_meta, meta_actuals, results, fixtures, users`); err != nil {
				t.Fatalf("reset postgres: %v", err)
			}
			if err := s.Migrate(ctx); err != nil {
				t.Fatalf("migrate postgres: %v", err)
			}
			return s
		}
	}
	return factories
}

func TestStoreContract(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		Convey("Given an empty "+name+" store", t, func() {
			ctx := context.Background()
			clock := day1
			store := newStore(WithClock(func() time.Time { return clock }))
			Reset(func() { _ = store.Close() })

			So(store.Backend(), ShouldEqual, name)
			So(store.Ping(ctx), ShouldBeNil)

			Convey("When a user signs in twice", func() {
				So(store.UpsertUser(ctx, model.User{Email: "  Asha@X.io ", Name: " Asha "}), ShouldBeNil)
				clock = day2
				So(store.UpsertUser(ctx, model.User{Email: "asha@x.io", Name: "Asha K"}), ShouldBeNil)

				Convey("Then the email is normalised and the name updated", func() {
					u, err := store.GetUser(ctx, "ASHA@x.io")
					So(err, ShouldBeNil)
					So(u.Email, ShouldEqual, "asha@x.io")
					So(u.Name, ShouldEqual, "Asha K")
					So(u.CreatedAt.Equal(day1), ShouldBeTrue)
				})
			})

			Convey("When an unknown user is requested", func() {
				_, err := store.GetUser(ctx, "nobody@x.io")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})

			Convey("When fixtures and results are imported", func() {
				n, err := store.UpsertFixtures(ctx, []model.Fixture{
					{MatchID: "M2", MatchDate: day2, TeamA: "delhi", TeamB: "Mumbai", Week: intp(2)},
					{MatchID: "M1", MatchDate: day1, TeamA: "Chennai", TeamB: "Bengaluru", Week: intp(1)},
					{MatchID: "M0", MatchDate: day1, TeamA: "Chennai", TeamB: "Mumbai"},
				})
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)
				_, err = store.UpsertResults(ctx, []model.Result{{MatchID: "M1", Winner: "Chennai"}})
				So(err, ShouldBeNil)

				Convey("Then fixtures come back by date and id with results joined", func() {
					fx, err := store.ListFixturesWithResults(ctx)
					So(err, ShouldBeNil)
					So(fx, ShouldHaveLength, 3)
					So(fx[0].MatchID, ShouldEqual, "M0")
					So(fx[0].Week, ShouldBeNil)
					So(fx[1].MatchID, ShouldEqual, "M1")
					So(fx[1].Winner, ShouldEqual, "Chennai")
					So(*fx[1].Week, ShouldEqual, 1)
					So(fx[1].MatchDate.Equal(day1), ShouldBeTrue)
					So(fx[2].Completed(), ShouldBeFalse)
				})

				Convey("Then weeks skip nulls and teams sort without case", func() {
					weeks, err := store.ListWeeks(ctx)
					So(err, ShouldBeNil)
					So(weeks, ShouldResemble, []int{1, 2})

					teams, err := store.ListTeams(ctx)
					So(err, ShouldBeNil)
					So(teams, ShouldResemble, []string{"Bengaluru", "Chennai", "delhi", "Mumbai"})
				})

				Convey("Then re-importing replaces rows by match id", func() {
					_, err := store.UpsertFixtures(ctx, []model.Fixture{
						{MatchID: "M1", MatchDate: day1, TeamA: "Chennai", TeamB: "Bengaluru", Week: intp(3)},
					})
					So(err, ShouldBeNil)
					_, err = store.UpsertResults(ctx, []model.Result{{MatchID: "M1", Winner: "Bengaluru"}})
					So(err, ShouldBeNil)

					fx, _ := store.ListFixturesWithResults(ctx)
					So(fx, ShouldHaveLength, 3)
					So(*fx[1].Week, ShouldEqual, 3)
					So(fx[1].Winner, ShouldEqual, "Bengaluru")

					c, err := store.Counts(ctx)
					So(err, ShouldBeNil)
					So(c.Fixtures, ShouldEqual, 3)
					So(c.Results, ShouldEqual, 1)
				})
			})

			Convey("When match picks are saved and re-saved", func() {
				So(store.SaveMatchPredictions(ctx, []model.MatchPrediction{
					{Email: "A@x.io", MatchID: "M2", PredictedWinner: "Mumbai"},
					{Email: "a@x.io", MatchID: "M1", PredictedWinner: "Chennai"},
				}), ShouldBeNil)
				So(store.SaveMatchPredictions(ctx, []model.MatchPrediction{
					{Email: "a@x.io", MatchID: "M1", PredictedWinner: "Bengaluru"},
				}), ShouldBeNil)

				Convey("Then the latest pick wins", func() {
					picks, err := store.UserMatchPredictions(ctx, "a@x.io")
					So(err, ShouldBeNil)
					So(picks, ShouldResemble, []model.MatchPrediction{
						{Email: "a@x.io", MatchID: "M1", PredictedWinner: "Bengaluru"},
						{Email: "a@x.io", MatchID: "M2", PredictedWinner: "Mumbai"},
					})

					all, err := store.ListMatchPredictions(ctx)
					So(err, ShouldBeNil)
					So(all, ShouldHaveLength, 2)
				})
			})

			Convey("When a season prediction is saved", func() {
				So(store.SaveMetaPrediction(ctx, model.MetaPrediction{
					Email:        "a@x.io",
					PlayoffTeams: model.NewTeamSet("D", "C", "B", "A"),
					Finalists:    model.NewTeamSet("A", "B"),
					Champion:     "A",
				}), ShouldBeNil)

				Convey("Then it reads back as sets", func() {
					p, err := store.GetMetaPrediction(ctx, "a@x.io")
					So(err, ShouldBeNil)
					So(p.PlayoffTeams, ShouldResemble, model.TeamSet{"A", "B", "C", "D"})
					So(p.Finalists, ShouldResemble, model.TeamSet{"A", "B"})
					So(p.Champion, ShouldEqual, "A")
				})

				Convey("And a wrong-sized set degrades to empty", func() {
					So(store.SaveMetaPrediction(ctx, model.MetaPrediction{
						Email:        "a@x.io",
						PlayoffTeams: model.NewTeamSet("A", "B", "C"),
						Finalists:    model.NewTeamSet("A", "B"),
						Champion:     "A",
					}), ShouldBeNil)
					metas, err := store.ListMetaPredictions(ctx)
					So(err, ShouldBeNil)
					So(metas, ShouldHaveLength, 1)
					So(metas[0].PlayoffTeams, ShouldBeEmpty)
					So(metas[0].Finalists, ShouldHaveLength, 2)
				})
			})

			Convey("When no season prediction exists", func() {
				_, err := store.GetMetaPrediction(ctx, "a@x.io")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})

			Convey("When actual outcomes are set and cleared", func() {
				set, err := store.GetActualOutcome(ctx, model.OutcomeChampion)
				So(err, ShouldBeNil)
				So(set, ShouldBeEmpty)

				So(store.SetActualOutcome(ctx, model.OutcomeChampion, model.NewTeamSet("Chennai")), ShouldBeNil)
				So(store.SetActualOutcome(ctx, model.OutcomeFinalists, model.NewTeamSet("Mumbai", "Chennai")), ShouldBeNil)

				set, err = store.GetActualOutcome(ctx, model.OutcomeChampion)
				So(err, ShouldBeNil)
				So(set.Single(), ShouldEqual, "Chennai")

				set, err = store.GetActualOutcome(ctx, model.OutcomeFinalists)
				So(err, ShouldBeNil)
				So(set, ShouldResemble, model.TeamSet{"Chennai", "Mumbai"})

				So(store.SetActualOutcome(ctx, model.OutcomeChampion, nil), ShouldBeNil)
				set, err = store.GetActualOutcome(ctx, model.OutcomeChampion)
				So(err, ShouldBeNil)
				So(set, ShouldBeEmpty)
			})

			Convey("When an unknown outcome key is used", func() {
				err := store.SetActualOutcome(ctx, model.OutcomeKey("mvp"), model.NewTeamSet("x"))
				So(errors.Is(err, ErrInvalidOutcome), ShouldBeTrue)
			})

			Convey("When the engine reads through a snapshot", func() {
				So(store.UpsertUser(ctx, model.User{Email: "a@x.io", Name: "Ann"}), ShouldBeNil)
				_, err := store.UpsertFixtures(ctx, []model.Fixture{
					{MatchID: "M1", MatchDate: day1, TeamA: "A", TeamB: "B", Week: intp(1)},
				})
				So(err, ShouldBeNil)
				_, err = store.UpsertResults(ctx, []model.Result{{MatchID: "M1", Winner: "A"}})
				So(err, ShouldBeNil)
				So(store.SaveMatchPredictions(ctx, []model.MatchPrediction{
					{Email: "a@x.io", MatchID: "M1", PredictedWinner: "A"},
				}), ShouldBeNil)

				eng := standings.NewEngine(store, scoring.DefaultRubric())
				rows, err := eng.ComputeLeaderboard(ctx)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].Name, ShouldEqual, "Ann")
				So(rows[0].TotalPoints, ShouldEqual, 5)
			})
		})
	}
}

func TestMemStoreClosed(t *testing.T) {
	Convey("Given a closed memory store", t, func() {
		ctx := context.Background()
		s := NewMemStore()
		So(s.Close(), ShouldBeNil)

		Convey("Then every call fails with ErrClosed", func() {
			So(errors.Is(s.Ping(ctx), ErrClosed), ShouldBeTrue)
			_, err := s.ListUsers(ctx)
			So(errors.Is(err, ErrClosed), ShouldBeTrue)
			So(errors.Is(s.UpsertUser(ctx, model.User{Email: "a@x.io"}), ErrClosed), ShouldBeTrue)

			eng := standings.NewEngine(s, scoring.DefaultRubric())
			_, err = eng.ComputeLeaderboard(ctx)
			So(errors.Is(err, ErrClosed), ShouldBeTrue)
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Given store configs", t, func() {
		ctx := context.Background()

		Convey("When the backend is empty or memory", func() {
			for _, backend := range []string{"", BackendMemory} {
				s, err := Open(ctx, Config{Backend: backend})
				So(err, ShouldBeNil)
				So(s.Backend(), ShouldEqual, BackendMemory)
			}
		})

		Convey("When the backend is sqlite", func() {
			s, err := Open(ctx, Config{Backend: BackendSQLite, SQLitePath: ":memory:"})
			So(err, ShouldBeNil)
			So(s.Migrate(ctx), ShouldBeNil)
			So(s.Close(), ShouldBeNil)
		})

		Convey("When postgres has no database url", func() {
			s, err := Open(ctx, Config{Backend: BackendPostgres})
			So(errors.Is(err, ErrMissingDSN), ShouldBeTrue)
			So(s, ShouldBeNil)
		})

		Convey("When the backend is unknown", func() {
			_, err := Open(ctx, Config{Backend: "mongo"})
			So(errors.Is(err, ErrUnknownBackend), ShouldBeTrue)
		})
	})
}
