package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/prefrank/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.MaxSelection, convey.ShouldEqual, 5)
				convey.So(cfg.StorePath, convey.ShouldEqual, "")
				convey.So(cfg.IdempotencyCacheSize, convey.ShouldEqual, 50_000)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PREFRANK_ADDR", ":8080")
			_ = os.Setenv("PREFRANK_MAX_SELECTION", "3")
			_ = os.Setenv("PREFRANK_SELECTION_POLICY", "explicit")
			_ = os.Setenv("PREFRANK_RETRY_MAX_ATTEMPTS", "7")
			_ = os.Setenv("PREFRANK_API_BASE_URL", "http://store:9080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.MaxSelection, convey.ShouldEqual, 3)
				convey.So(cfg.SelectionPolicy, convey.ShouldEqual, "explicit")
				convey.So(cfg.RetryMaxAttempts, convey.ShouldEqual, 7)
				convey.So(cfg.APIBaseURL, convey.ShouldEqual, "http://store:9080")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
program_id: "gsoc-2025"
store_path: "/var/lib/prefrank/store.db"
max_annotation_length: 2000
`
			tmpFile := createTempConfigFile("prefrank-config-*.yaml", yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PREFRANK_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.ProgramID, convey.ShouldEqual, "gsoc-2025")
				convey.So(cfg.StorePath, convey.ShouldEqual, "/var/lib/prefrank/store.db")
				convey.So(cfg.MaxAnnotationLength, convey.ShouldEqual, 2000)
				convey.So(cfg.MaxSelection, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
program_id: "gsoc-2025"
`
			tmpFile := createTempConfigFile("prefrank-config-*.yaml", yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PREFRANK_CONFIG", tmpFile)
			_ = os.Setenv("PREFRANK_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")          // env
				convey.So(cfg.ProgramID, convey.ShouldEqual, "gsoc-2025") // file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile("prefrank-config-*.yaml", `invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PREFRANK_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("PREFRANK_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an unknown selection policy", func() {
			_ = os.Setenv("PREFRANK_SELECTION_POLICY", "random")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "selection_policy")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigLoaderDotenv(t *testing.T) {
	convey.Convey("Given a dotenv file", t, func() {
		ctx := context.Background()
		tmpFile := createTempConfigFile("prefrank-*.env", "PREFRANK_PROGRAM_ID=gsoc-2025\nPREFRANK_MAX_SELECTION=3\n")
		defer func() { _ = os.Remove(tmpFile) }()

		convey.Convey("When PREFRANK_DOTENV points at it", func() {
			_ = os.Setenv("PREFRANK_DOTENV", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then its variables should be applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.ProgramID, convey.ShouldEqual, "gsoc-2025")
				convey.So(cfg.MaxSelection, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the process environment already sets a key", func() {
			_ = os.Setenv("PREFRANK_DOTENV", tmpFile)
			_ = os.Setenv("PREFRANK_PROGRAM_ID", "from-env")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then the process environment should win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.ProgramID, convey.ShouldEqual, "from-env")
				convey.So(cfg.MaxSelection, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When PREFRANK_DOTENV points at a missing file", func() {
			_ = os.Setenv("PREFRANK_DOTENV", "/non/existent/.env")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then loading should fail", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"PREFRANK_CONFIG",
		"PREFRANK_DOTENV",
		"PREFRANK_ADDR",
		"PREFRANK_PROGRAM_ID",
		"PREFRANK_MAX_SELECTION",
		"PREFRANK_SELECTION_POLICY",
		"PREFRANK_RETRY_MAX_ATTEMPTS",
		"PREFRANK_API_BASE_URL",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(pattern, content string) string {
	tmpFile, err := os.CreateTemp("", pattern)
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
