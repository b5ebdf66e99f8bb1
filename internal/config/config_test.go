package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/toolrank/internal/config"
	"github.com/okian/toolrank/internal/domain/algorithm"
	"github.com/okian/toolrank/internal/domain/tier"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given config.New", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should return the defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.EventQueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 100_000)
			convey.So(cfg.ActiveAlgorithm, convey.ShouldEqual, algorithm.Latest)
			convey.So(cfg.PeriodGranularity, convey.ShouldEqual, config.GranularityWeek)
			convey.So(cfg.DecayHorizonDays, convey.ShouldEqual, 365)
			convey.So(cfg.DecayDiminishingFactor, convey.ShouldEqual, 0.7)
			convey.So(cfg.DeltaCap, convey.ShouldEqual, algorithm.DefaultDeltaCap)
			convey.So(cfg.ShutdownTimeout, convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Tiers, convey.ShouldResemble, tier.DefaultPolicy)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		ctx := context.Background()

		cases := []struct {
			name   string
			mutate func(*config.Config)
			msg    string
		}{
			{"empty addr", func(c *config.Config) { c.Addr = " " }, "addr must not be empty"},
			{"daily granularity", func(c *config.Config) { c.PeriodGranularity = "day" }, "period_granularity"},
			{"zero horizon", func(c *config.Config) { c.DecayHorizonDays = 0 }, "decay_horizon_days"},
			{"no algorithm", func(c *config.Config) { c.ActiveAlgorithm = "" }, "active_algorithm"},
			{"diminishing above one", func(c *config.Config) { c.DecayDiminishingFactor = 1.5 }, "decay_diminishing_factor"},
			{"negative cap", func(c *config.Config) { c.DeltaCap = -1 }, "delta_cap"},
			{"negative epsilon", func(c *config.Config) { c.TieEpsilon = -0.1 }, "tie_epsilon"},
			{"unknown timezone", func(c *config.Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
			{"unordered tiers", func(c *config.Config) { c.Tiers.Boundaries[1].MaxPosition = 3 }, "tiers"},
			{"no remainder tier", func(c *config.Config) { c.Tiers.Rest = tier.Unranked }, "tiers"},
		}

		for _, tc := range cases {
			convey.Convey("When it has "+tc.name, func() {
				cfg := config.New(ctx)
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then validation fails with ErrInvalidConfig", func() {
					convey.So(err, convey.ShouldNotBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(err.Error(), convey.ShouldContainSubstring, tc.msg)
				})
			})
		}
	})
}
