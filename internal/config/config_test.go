package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/prefrank/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.MaxSelection, convey.ShouldEqual, 5)
			convey.So(cfg.SelectionPolicy, convey.ShouldEqual, "default_all")
			convey.So(cfg.RetryMaxAttempts, convey.ShouldEqual, 4)
			convey.So(cfg.HTTPTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.RetryInitialBackoff(), convey.ShouldEqual, 200*time.Millisecond)
			convey.So(cfg.SessionTTL(), convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given configs that break an invariant", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":     func(c *config.Config) { c.Addr = "" },
			"empty base url": func(c *config.Config) { c.APIBaseURL = "" },
			"zero selection": func(c *config.Config) { c.MaxSelection = 0 },
			"unknown policy": func(c *config.Config) { c.SelectionPolicy = "random" },
			"no attempts":    func(c *config.Config) { c.RetryMaxAttempts = 0 },
			"no timeout":     func(c *config.Config) { c.HTTPTimeoutMS = 0 },
			"no annotation":  func(c *config.Config) { c.MaxAnnotationLength = -1 },
			"no session ttl": func(c *config.Config) { c.SessionTTLMinutes = 0 },
			"xml log format": func(c *config.Config) { c.LogFormat = "xml" },
		}

		convey.Convey("Then each should fail validation", func() {
			for _, mutate := range cases {
				cfg := config.New()
				mutate(cfg)
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			}
		})
	})
}
