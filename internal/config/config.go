package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/railqr/railqr-service/internal/prediction"
)

type Config struct {
	LogLevel string `envconfig:"RAILQR_LOG_LEVEL" default:"info"`

	HTTP struct {
		Addr        string   `envconfig:"RAILQR_HTTP_ADDR" default:":5000"`
		CORSOrigins []string `envconfig:"RAILQR_CORS_ORIGINS" default:"*"`
	}

	Database struct {
		Driver         string        `envconfig:"RAILQR_DB_DRIVER" default:"sqlite3"`
		DSN            string        `envconfig:"RAILQR_DB_DSN" default:"data/inventory.sqlite"`
		Name           string        `envconfig:"RAILQR_DB_NAME" default:"railqr"`
		ConnectTimeout time.Duration `envconfig:"RAILQR_DB_CONNECT_TIMEOUT" default:"30s"`
	}

	Audit struct {
		Path string `envconfig:"RAILQR_AUDIT_DB_PATH" default:"data/audit.sqlite"`
	}

	Engine struct {
		Interpreter      string        `envconfig:"RAILQR_ENGINE_INTERPRETER" default:"python"`
		Dir              string        `envconfig:"RAILQR_ENGINE_DIR" default:"engine"`
		Timeout          time.Duration `envconfig:"RAILQR_ENGINE_TIMEOUT" default:"5s"`
		TerminationGrace time.Duration `envconfig:"RAILQR_ENGINE_TERMINATION_GRACE" default:"2s"`
		MaxConcurrency   int           `envconfig:"RAILQR_ENGINE_MAX_CONCURRENCY" default:"64"`
		MaxOutputBytes   int           `envconfig:"RAILQR_ENGINE_MAX_OUTPUT_BYTES" default:"1048576"`
		TempDir          string        `envconfig:"RAILQR_ENGINE_TEMP_DIR"`
		Manifest         string        `envconfig:"RAILQR_ENGINE_MANIFEST"`
	}

	// NATS is disabled when URL is empty.
	NATS struct {
		URL           string        `envconfig:"RAILQR_NATS_URL"`
		Stream        string        `envconfig:"RAILQR_NATS_STREAM" default:"PREDICT"`
		Subject       string        `envconfig:"RAILQR_NATS_SUBJECT" default:"rail.predict.*"`
		Durable       string        `envconfig:"RAILQR_NATS_DURABLE" default:"predict-wq"`
		MaxMsgs       int           `envconfig:"RAILQR_NATS_MAX_MSGS" default:"2000"`
		MaxAge        time.Duration `envconfig:"RAILQR_NATS_MAX_AGE" default:"30s"`
		AckWait       time.Duration `envconfig:"RAILQR_NATS_ACK_WAIT" default:"30s"`
		Concurrency   int           `envconfig:"RAILQR_NATS_CONCURRENCY" default:"2"`
		AlertPrefix   string        `envconfig:"RAILQR_NATS_ALERT_PREFIX" default:"alerts"`
		HealthSubject string        `envconfig:"RAILQR_NATS_HEALTH_SUBJECT" default:"railqr.health"`
	}

	Auth struct {
		InspectorPassword     string `envconfig:"RAILQR_INSPECTOR_PASSWORD"`
		InspectorPasswordHash string `envconfig:"RAILQR_INSPECTOR_PASSWORD_HASH"`
	}
}

// Load reads an optional env file and then the process environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			slog.Warn("Could not load env file", "file", envFile, "error", err)
		} else {
			slog.Info("Environment loaded", "file", envFile)
		}
	}

	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres", "mysql", "mongodb":
	default:
		return fmt.Errorf("unsupported RAILQR_DB_DRIVER %q", c.Database.Driver)
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("RAILQR_ENGINE_TIMEOUT must be positive")
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Prediction builds the engine configuration, applying the YAML manifest
// when one is configured.
func (c *Config) Prediction() (prediction.Config, error) {
	pc := prediction.Config{
		Interpreter:      c.Engine.Interpreter,
		EngineDir:        c.Engine.Dir,
		Timeout:          c.Engine.Timeout,
		TerminationGrace: c.Engine.TerminationGrace,
		MaxConcurrency:   c.Engine.MaxConcurrency,
		MaxOutputBytes:   c.Engine.MaxOutputBytes,
		TempDir:          c.Engine.TempDir,
	}
	if c.Engine.Manifest == "" {
		return pc, nil
	}
	m, err := prediction.LoadManifest(c.Engine.Manifest)
	if err != nil {
		return prediction.Config{}, err
	}
	m.Apply(&pc)
	slog.Info("Engine manifest applied", "file", c.Engine.Manifest, "operations", len(m.Operations))
	return pc, nil
}

// NATSEnabled reports whether a NATS server is configured.
func (c *Config) NATSEnabled() bool {
	return c.NATS.URL != ""
}
