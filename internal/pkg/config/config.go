package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments, security settings
// - default: Values common across all environments (timeouts, thresholds)
// -----------------------------------------------------------------------------

type Config struct {
	Server ServerConfig
	Auth   AuthConfig
	CORS   CORSConfig
	Log    LogConfig
	Tester TesterConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
}

type AuthConfig struct {
	// Shared secret suppliers must send in the API-Key header.
	APIKey string `envconfig:"API_KEY" default:"secret"`
}

type CORSConfig struct {
	AllowOrigins     []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000,http://localhost:8000"`
	AllowMethods     []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,DELETE,OPTIONS"`
	AllowHeaders     []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,API-Key"`
	ExposeHeaders    []string      `envconfig:"CORS_EXPOSE_HEADERS" default:"Content-Length"`
	AllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"false"`
	MaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

type TesterConfig struct {
	// Per-call timeout of the HTTP client used by the probes.
	CallTimeout time.Duration `envconfig:"TESTER_CALL_TIMEOUT" default:"30s"`
	// Distinct variant IDs tolerated per 7-day window before the
	// availability probe reports a warning.
	VariantWarnThreshold int `envconfig:"TESTER_VARIANT_WARN_THRESHOLD" default:"20"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: "8889", // Test port
		},
		Auth: AuthConfig{
			APIKey: "secret",
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"http://localhost:3000"},
			AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept", "API-Key"},
			MaxAge:       12 * time.Hour,
		},
		Log: LogConfig{
			Level: "error", // Error level only for tests
		},
		Tester: TesterConfig{
			CallTimeout:          5 * time.Second,
			VariantWarnThreshold: 20,
		},
	}
}
