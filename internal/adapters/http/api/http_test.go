package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/predictor/internal/adapters/http/api"
	"github.com/okian/predictor/internal/adapters/repository"
	service "github.com/okian/predictor/internal/app"
	"github.com/okian/predictor/internal/domain/standings"
	"github.com/okian/predictor/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

const (
	adminCode   = "s3cret"
	fixturesCSV = "match_id,match_date,team_a,team_b,week\n" +
		"M1,2026-03-21,CSK,MI,1\n" +
		"M2,2026-03-22,RCB,KKR,1\n" +
		"M3,2026-03-28,CSK,RCB,2\n"
	resultsCSV = "match_id,winner\nM1,CSK\nM2,KKR\n"
)

// failingDeps breaks the leaderboard read to exercise the 500 path.
type failingDeps struct {
	*service.Service
}

func (failingDeps) Leaderboard(context.Context, int) ([]standings.LeaderboardRow, error) {
	return nil, fmt.Errorf("%w: read users: connection reset", standings.ErrDataAccess)
}

func newService(opts ...service.Option) *service.Service {
	svc := service.New(append([]service.Option{service.WithStore(repository.NewMemStore())}, opts...)...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func do(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader = http.NoBody
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func admin() map[string]string { return map[string]string{api.AdminCodeHeader: adminCode} }

func errorCode(w *httptest.ResponseRecorder) string {
	var e struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	return e.Code
}

// seed imports fixtures, signs in two users and saves picks through the API.
func seed(h http.Handler) {
	So(do(h, "POST", "/api/v1/admin/fixtures", fixturesCSV, admin()).Code, ShouldEqual, http.StatusOK)
	So(do(h, "POST", "/api/v1/users", `{"email":"alice@example.com","name":"Alice"}`, nil).Code, ShouldEqual, http.StatusOK)
	So(do(h, "POST", "/api/v1/users", `{"email":"bob@example.com","name":"Bob"}`, nil).Code, ShouldEqual, http.StatusOK)
	So(do(h, "PUT", "/api/v1/users/alice@example.com/predictions/matches", `{"picks":{"M1":"CSK","M2":"KKR"}}`, nil).Code, ShouldEqual, http.StatusOK)
	So(do(h, "PUT", "/api/v1/users/bob@example.com/predictions/matches", `{"picks":{"M1":"CSK","M2":"RCB"}}`, nil).Code, ShouldEqual, http.StatusOK)
	So(do(h, "POST", "/api/v1/admin/results", resultsCSV, admin()).Code, ShouldEqual, http.StatusOK)
}

func TestHealthAndMetrics(t *testing.T) {
	Convey("Given an API server", t, func() {
		svc := newService()
		h := api.NewServer(svc).Handler()

		Convey("When the store is up", func() {
			w := do(h, "GET", "/healthz", "", nil)

			Convey("Then health is ok", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
			})
		})

		Convey("When the store is closed", func() {
			svc.Stop()
			w := do(h, "GET", "/healthz", "", nil)

			Convey("Then health is unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(w.Body.String(), ShouldContainSubstring, `"status":"unavailable"`)
			})
		})

		Convey("When scraping metrics after a request", func() {
			do(h, "GET", "/api/v1/leaderboard", "", nil)
			w := do(h, "GET", "/metrics", "", nil)

			Convey("Then HTTP metrics are exposed by route pattern", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "predictor_contest_http_requests_total")
				So(w.Body.String(), ShouldContainSubstring, `endpoint="/api/v1/leaderboard"`)
			})
		})

		Convey("Then every response carries a request id", func() {
			w := do(h, "GET", "/healthz", "", nil)
			So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)

			w = do(h, "GET", "/healthz", "", map[string]string{api.RequestIDHeader: "req-42"})
			So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "req-42")
		})

		Convey("Then CORS preflight is answered", func() {
			w := do(h, "OPTIONS", "/api/v1/leaderboard", "", map[string]string{
				"Origin":                        "https://example.com",
				"Access-Control-Request-Method": "GET",
			})
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})
	})
}

func TestUserRoutes(t *testing.T) {
	Convey("Given a server with fixtures loaded", t, func() {
		svc := newService()
		defer svc.Stop()
		h := api.NewServer(svc, api.WithAdminCode(adminCode)).Handler()
		seed(h)

		Convey("When signing in with a bad email", func() {
			w := do(h, "POST", "/api/v1/users", `{"email":"nobody","name":"X"}`, nil)

			Convey("Then the request is invalid", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(w), ShouldEqual, "invalid_request")
			})
		})

		Convey("When the body has unknown fields", func() {
			w := do(h, "POST", "/api/v1/users", `{"email":"a@b.c","name":"A","admin":true}`, nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When reading a user's picks with an escaped email", func() {
			w := do(h, "GET", "/api/v1/users/alice%40example.com/predictions", "", nil)

			Convey("Then the picks are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var up service.UserPredictions
				So(json.Unmarshal(w.Body.Bytes(), &up), ShouldBeNil)
				So(up.User.Name, ShouldEqual, "Alice")
				So(up.Matches, ShouldHaveLength, 2)
				So(up.Meta, ShouldBeNil)
			})
		})

		Convey("When picking a team outside the fixture", func() {
			w := do(h, "PUT", "/api/v1/users/alice@example.com/predictions/matches", `{"picks":{"M3":"MI"}}`, nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When an unknown user saves picks", func() {
			w := do(h, "PUT", "/api/v1/users/eve@example.com/predictions/matches", `{"picks":{"M1":"CSK"}}`, nil)
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, "not_found")
		})

		Convey("When saving season picks", func() {
			body := `{"playoff_teams":["CSK","MI","RCB","KKR"],"finalists":["CSK","MI"],"champion":"CSK"}`
			w := do(h, "PUT", "/api/v1/users/alice@example.com/predictions/meta", body, nil)

			Convey("Then they are stored", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"champion":"CSK"`)
			})
		})

		Convey("When season picks have three finalists", func() {
			body := `{"playoff_teams":["CSK","MI","RCB","KKR"],"finalists":["CSK","MI","RCB"],"champion":"CSK"}`
			w := do(h, "PUT", "/api/v1/users/alice@example.com/predictions/meta", body, nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})

	Convey("Given a server past the cutoff", t, func() {
		svc := newService(service.WithCutoff(time.Now().Add(-time.Hour)))
		defer svc.Stop()
		h := api.NewServer(svc, api.WithAdminCode(adminCode)).Handler()
		So(do(h, "POST", "/api/v1/admin/fixtures", fixturesCSV, admin()).Code, ShouldEqual, http.StatusOK)
		So(do(h, "POST", "/api/v1/users", `{"email":"alice@example.com","name":"Alice"}`, nil).Code, ShouldEqual, http.StatusOK)

		Convey("Then saving picks conflicts", func() {
			w := do(h, "PUT", "/api/v1/users/alice@example.com/predictions/matches", `{"picks":{"M1":"CSK"}}`, nil)
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(errorCode(w), ShouldEqual, "locked")
		})
	})
}

func TestAdminRoutes(t *testing.T) {
	Convey("Given a server without an admin code", t, func() {
		svc := newService()
		defer svc.Stop()
		h := api.NewServer(svc).Handler()

		Convey("Then admin routes are disabled", func() {
			w := do(h, "POST", "/api/v1/admin/fixtures", fixturesCSV, admin())
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(errorCode(w), ShouldEqual, "admin_disabled")
		})
	})

	Convey("Given a server with an admin code", t, func() {
		svc := newService()
		defer svc.Stop()
		h := api.NewServer(svc, api.WithAdminCode(adminCode)).Handler()

		Convey("When the code is wrong", func() {
			w := do(h, "POST", "/api/v1/admin/fixtures", fixturesCSV, map[string]string{api.AdminCodeHeader: "guess"})
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When importing fixtures", func() {
			w := do(h, "POST", "/api/v1/admin/fixtures", fixturesCSV, admin())

			Convey("Then every row is imported", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"imported":3`)
			})

			Convey("And the reference routes reflect them", func() {
				So(do(h, "GET", "/api/v1/teams", "", nil).Body.String(), ShouldContainSubstring, `["CSK","KKR","MI","RCB"]`)
				So(do(h, "GET", "/api/v1/weeks", "", nil).Body.String(), ShouldContainSubstring, `[1,2]`)
				So(do(h, "GET", "/api/v1/fixtures", "", nil).Body.String(), ShouldContainSubstring, `"match_id":"M3"`)
				So(do(h, "GET", "/api/v1/stats", "", nil).Body.String(), ShouldContainSubstring, `"fixtures":3`)
			})

			Convey("And results for unknown matches are rejected", func() {
				w := do(h, "POST", "/api/v1/admin/results", "match_id,winner\nM9,CSK\n", admin())
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the CSV is missing columns", func() {
			w := do(h, "POST", "/api/v1/admin/fixtures", "match_id,team_a\nM1,CSK\n", admin())
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "match_date")
		})

		Convey("When setting and clearing outcomes", func() {
			body := `{"playoff_teams":["CSK","MI","RCB","KKR"],"finalists":["CSK","RCB"],"champion":"CSK"}`
			w := do(h, "PUT", "/api/v1/admin/outcomes", body, admin())
			So(w.Code, ShouldEqual, http.StatusOK)
			So(do(h, "GET", "/api/v1/outcomes", "", nil).Body.String(), ShouldContainSubstring, `"champion":"CSK"`)

			w = do(h, "DELETE", "/api/v1/admin/outcomes", "", admin())
			So(w.Code, ShouldEqual, http.StatusNoContent)
			So(do(h, "GET", "/api/v1/outcomes", "", nil).Body.String(), ShouldContainSubstring, `"champion":""`)
		})
	})
}

func TestStandingsRoutes(t *testing.T) {
	Convey("Given a seeded server", t, func() {
		svc := newService()
		defer svc.Stop()
		h := api.NewServer(svc, api.WithAdminCode(adminCode), api.WithMaxLimit(10)).Handler()
		seed(h)

		Convey("When fetching the leaderboard", func() {
			w := do(h, "GET", "/api/v1/leaderboard", "", nil)

			Convey("Then rows are ranked", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var rows []standings.LeaderboardRow
				So(json.Unmarshal(w.Body.Bytes(), &rows), ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(rows[0].Email, ShouldEqual, "alice@example.com")
				So(rows[0].TotalPoints, ShouldEqual, 10)
				So(rows[1].TotalPoints, ShouldEqual, 5)
			})
		})

		Convey("When asking for CSV", func() {
			w := do(h, "GET", "/api/v1/leaderboard?format=csv", "", nil)

			Convey("Then a file is downloaded", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "text/csv")
				So(w.Header().Get("Content-Disposition"), ShouldContainSubstring, "leaderboard.csv")
				So(w.Body.String(), ShouldStartWith, "rank,name,email,")
			})
		})

		Convey("When the limit is invalid", func() {
			So(do(h, "GET", "/api/v1/leaderboard?limit=0", "", nil).Code, ShouldEqual, http.StatusBadRequest)
			w := do(h, "GET", "/api/v1/leaderboard?limit=11", "", nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "limit_exceeded")
			So(do(h, "GET", "/api/v1/leaderboard?format=xml", "", nil).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When fetching the weekly standings", func() {
			w := do(h, "GET", "/api/v1/weekly", "", nil)

			Convey("Then week 1 has a winner and week 2 does not", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var weeks []service.WeekSummary
				So(json.Unmarshal(w.Body.Bytes(), &weeks), ShouldBeNil)
				So(weeks, ShouldHaveLength, 2)
				So(weeks[0].Decided, ShouldBeTrue)
				So(weeks[0].Winners[0].Name, ShouldEqual, "Alice")
				So(weeks[1].Decided, ShouldBeFalse)
			})
		})

		Convey("When fetching a single week", func() {
			So(do(h, "GET", "/api/v1/weekly?week=1", "", nil).Code, ShouldEqual, http.StatusOK)
			So(do(h, "GET", "/api/v1/weekly?week=9", "", nil).Code, ShouldEqual, http.StatusNotFound)
			So(do(h, "GET", "/api/v1/weekly?week=one", "", nil).Code, ShouldEqual, http.StatusBadRequest)
		})
	})

	Convey("Given a store that fails on read", t, func() {
		svc := newService()
		defer svc.Stop()
		h := api.NewServer(failingDeps{svc}).Handler()

		Convey("Then the leaderboard answers 500 without leaking details", func() {
			w := do(h, "GET", "/api/v1/leaderboard", "", nil)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(errorCode(w), ShouldEqual, "data_access")
			So(w.Body.String(), ShouldNotContainSubstring, "connection reset")
		})
	})
}

func TestRateLimit(t *testing.T) {
	Convey("Given a server allowing two requests per minute", t, func() {
		svc := newService()
		defer svc.Stop()
		h := api.NewServer(svc, api.WithRateLimit(2, time.Minute)).Handler()

		Convey("When a client bursts", func() {
			first := do(h, "GET", "/healthz", "", nil)
			second := do(h, "GET", "/healthz", "", nil)

			Convey("Then the excess request is throttled", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(second.Code, ShouldEqual, http.StatusTooManyRequests)
				So(second.Header().Get("Retry-After"), ShouldEqual, "60")
			})
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given wrapped API errors", t, func() {
		err := api.WrapKind("api.op", api.ErrBadRequest, errors.New("boom"))

		Convey("Then both the kind and the cause match", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
			So(api.Wrap("api.op", nil), ShouldBeNil)
			So(api.NewKind("api.op", api.ErrUnauthorized).Error(), ShouldEqual, "api.op: invalid admin code")
		})
	})
}
