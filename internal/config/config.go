package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	LogLevel    string   `mapstructure:"LOG_LEVEL"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	PollingIntervalSeconds int    `mapstructure:"POLLING_INTERVAL_SECONDS"`
	PracticeID             string `mapstructure:"PRACTICE_ID"`

	FHIRBaseURL      string `mapstructure:"FHIR_BASE_URL"`
	FHIRTokenURL     string `mapstructure:"FHIR_TOKEN_URL"`
	FHIRClientID     string `mapstructure:"FHIR_CLIENT_ID"`
	FHIRClientSecret string `mapstructure:"FHIR_CLIENT_SECRET"`
	FHIRSigningKey   string `mapstructure:"FHIR_SIGNING_KEY"`

	IntelligenceURL string `mapstructure:"INTELLIGENCE_URL"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
	"POLLING_INTERVAL_SECONDS", "PRACTICE_ID",
	"FHIR_BASE_URL", "FHIR_TOKEN_URL", "FHIR_CLIENT_ID", "FHIR_CLIENT_SECRET", "FHIR_SIGNING_KEY",
	"INTELLIGENCE_URL",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
}

// Load reads configuration from the environment, with an optional .env file
// in the working directory underneath it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("POLLING_INTERVAL_SECONDS", 30)
	v.SetDefault("INTELLIGENCE_URL", "http://localhost:8000")

	// Bind explicitly so Unmarshal sees env-only keys.
	for _, k := range keys {
		v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Comma-separated; entries are trimmed.
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesPostgres reports whether repositories should be backed by DATABASE_URL
// rather than process memory.
func (c *Config) UsesPostgres() bool {
	return c.DatabaseURL != ""
}

// PollingInterval converts POLLING_INTERVAL_SECONDS. Non-positive values are
// passed through; the poller clamps them.
func (c *Config) PollingInterval() time.Duration {
	return time.Duration(c.PollingIntervalSeconds) * time.Second
}

// FHIRAssertionKey is the HMAC key used to sign client assertions.
// FHIR_SIGNING_KEY wins over FHIR_CLIENT_SECRET.
func (c *Config) FHIRAssertionKey() []byte {
	if c.FHIRSigningKey != "" {
		return []byte(c.FHIRSigningKey)
	}
	return []byte(c.FHIRClientSecret)
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "production" && c.Env != "test" {
		return fmt.Errorf("ENV must be \"development\", \"test\", or \"production\", got %q", c.Env)
	}
	if c.IsProduction() {
		if c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is required in production")
		}
		if c.FHIRBaseURL == "" {
			return fmt.Errorf("FHIR_BASE_URL is required in production")
		}
	}
	if c.FHIRTokenURL != "" {
		if c.FHIRClientID == "" {
			return fmt.Errorf("FHIR_CLIENT_ID is required when FHIR_TOKEN_URL is set")
		}
		if len(c.FHIRAssertionKey()) == 0 {
			return fmt.Errorf("FHIR_SIGNING_KEY or FHIR_CLIENT_SECRET is required when FHIR_TOKEN_URL is set")
		}
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
