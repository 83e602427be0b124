package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/predictor/internal/config"
	"github.com/okian/predictor/internal/domain/scoring"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Store, convey.ShouldEqual, "memory")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.Points, convey.ShouldResemble, scoring.DefaultRubric())
			convey.So(cfg.RateLimitWindow, convey.ShouldEqual, time.Minute)
			convey.So(cfg.MCPEnabled, convey.ShouldBeTrue)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then no cutoff is configured", func() {
			_, ok, err := cfg.CutoffTime()
			convey.So(err, convey.ShouldBeNil)
			convey.So(ok, convey.ShouldBeFalse)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New()

		cases := []struct {
			name   string
			mutate func()
		}{
			{"empty addr", func() { cfg.Addr = "" }},
			{"unknown store", func() { cfg.Store = "mongo" }},
			{"postgres without url", func() { cfg.Store = "postgres" }},
			{"sqlite without path", func() { cfg.Store, cfg.SQLitePath = "sqlite", "" }},
			{"unknown log format", func() { cfg.LogFormat = "xml" }},
			{"negative points", func() { cfg.Points.Champion = -5 }},
			{"negative rate limit", func() { cfg.RateLimitRequests = -1 }},
			{"zero rate limit window", func() { cfg.RateLimitWindow = 0 }},
			{"zero leaderboard limit", func() { cfg.MaxLeaderboardLimit = 0 }},
			{"unparseable cutoff", func() { cfg.Cutoff = "next tuesday" }},
		}
		for _, tc := range cases {
			convey.Convey("When it has "+tc.name, func() {
				tc.mutate()
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("When a cutoff is set", func() {
			cfg.Cutoff = "2025-03-22T14:00:00Z"
			at, ok, err := cfg.CutoffTime()
			convey.So(err, convey.ShouldBeNil)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(at.Equal(time.Date(2025, 3, 22, 14, 0, 0, 0, time.UTC)), convey.ShouldBeTrue)
		})

		convey.Convey("When postgres has a url", func() {
			cfg.Store = "postgres"
			cfg.DatabaseURL = "postgres://localhost/predictor"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
