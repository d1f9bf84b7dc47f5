package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/descent/internal/optimization"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		WorkerCount       int           `env:"OPT_WORKER_COUNT" envDefault:"10"`
		MaxIterations     int           `env:"OPT_MAX_ITERATIONS" envDefault:"100"`
		ObjTol            float64       `env:"OPT_OBJ_TOL" envDefault:"1e-12"`
		ParamTol          float64       `env:"OPT_PARAM_TOL" envDefault:"1e-8"`
		WolfeConst        float64       `env:"OPT_WOLFE_CONST" envDefault:"0.01"`
		BacktrackingConst float64       `env:"OPT_BACKTRACKING_CONST" envDefault:"0.5"`
		MaxBacktracks     int           `env:"OPT_MAX_BACKTRACKS" envDefault:"64"`
		JobRetention      time.Duration `env:"OPT_JOB_RETENTION" envDefault:"1h"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Logging.Level == "" {
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		} else {
			cfg.Logging.Level = "info"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values env.Parse cannot.
func (c *Config) Validate() error {
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP_PORT %d out of range", c.HTTP.Port)
	}
	if c.Optimization.WorkerCount < 1 {
		return fmt.Errorf("OPT_WORKER_COUNT must be at least 1, got %d", c.Optimization.WorkerCount)
	}
	if c.Optimization.MaxIterations < 0 {
		return fmt.Errorf("OPT_MAX_ITERATIONS must not be negative, got %d", c.Optimization.MaxIterations)
	}
	if c.Optimization.JobRetention <= 0 {
		return fmt.Errorf("OPT_JOB_RETENTION must be positive, got %s", c.Optimization.JobRetention)
	}
	return c.EngineSettings().Validate()
}

// EngineSettings returns the engine tolerances and line-search constants.
func (c *Config) EngineSettings() optimization.Settings {
	return optimization.Settings{
		ObjTol:            c.Optimization.ObjTol,
		ParamTol:          c.Optimization.ParamTol,
		WolfeConst:        c.Optimization.WolfeConst,
		BacktrackingConst: c.Optimization.BacktrackingConst,
		MaxBacktracks:     c.Optimization.MaxBacktracks,
	}
}
