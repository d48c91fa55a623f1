package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ehr/ehrbridge/internal/ehr/athena"
	"github.com/ehr/ehrbridge/internal/ehr/modmed"
)

type Config struct {
	Port                  string   `mapstructure:"PORT"`
	Env                   string   `mapstructure:"ENV"`
	DatabaseURL           string   `mapstructure:"DATABASE_URL"`
	DBMaxConns            int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns            int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins           []string `mapstructure:"CORS_ORIGINS"`
	SessionSecret         string   `mapstructure:"SESSION_SECRET"`
	SessionIssuer         string   `mapstructure:"SESSION_ISSUER"`
	EncryptionKeyBase64   string   `mapstructure:"ENCRYPTION_KEY_BASE64"`
	RateLimitRPS          float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst        int      `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit             string   `mapstructure:"BODY_LIMIT"`
	MigrationsDir         string   `mapstructure:"MIGRATIONS_DIR"`
	OutboxIntervalSeconds int      `mapstructure:"OUTBOX_INTERVAL_SECONDS"`
	OutboxBatchSize       int      `mapstructure:"OUTBOX_BATCH_SIZE"`
	OutboxMaxAttempts     int      `mapstructure:"OUTBOX_MAX_ATTEMPTS"`

	ModMedBaseURL        string `mapstructure:"MODMED_BASE_URL"`
	ModMedSandboxBaseURL string `mapstructure:"MODMED_SANDBOX_BASE_URL"`
	ModMedFirmPrefix     string `mapstructure:"MODMED_FIRM_PREFIX"`
	ModMedAPIKey         string `mapstructure:"MODMED_API_KEY"`
	ModMedUsername       string `mapstructure:"MODMED_USERNAME"`
	ModMedPassword       string `mapstructure:"MODMED_PASSWORD"`
	ModMedClientID       string `mapstructure:"MODMED_CLIENT_ID"`
	ModMedClientSecret   string `mapstructure:"MODMED_CLIENT_SECRET"`
	ModMedUseSandbox     bool   `mapstructure:"MODMED_USE_SANDBOX"`
	ModMedTimeoutSeconds int    `mapstructure:"MODMED_TIMEOUT_SECONDS"`

	AthenaBaseURL        string `mapstructure:"ATHENA_BASE_URL"`
	AthenaSandboxBaseURL string `mapstructure:"ATHENA_SANDBOX_BASE_URL"`
	AthenaPracticeID     string `mapstructure:"ATHENA_PRACTICE_ID"`
	AthenaTokenURL       string `mapstructure:"ATHENA_TOKEN_URL"`
	AthenaClientID       string `mapstructure:"ATHENA_CLIENT_ID"`
	AthenaClientSecret   string `mapstructure:"ATHENA_CLIENT_SECRET"`
	AthenaAuthMode       string `mapstructure:"ATHENA_AUTH_MODE"`
	AthenaUsername       string `mapstructure:"ATHENA_USERNAME"`
	AthenaPassword       string `mapstructure:"ATHENA_PASSWORD"`
	AthenaAPIKey         string `mapstructure:"ATHENA_API_KEY"`
	AthenaUseSandbox     bool   `mapstructure:"ATHENA_USE_SANDBOX"`
	AthenaTimeZone       string `mapstructure:"ATHENA_TIME_ZONE"`
	AthenaTimeoutSeconds int    `mapstructure:"ATHENA_TIMEOUT_SECONDS"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
	"SESSION_SECRET", "SESSION_ISSUER", "ENCRYPTION_KEY_BASE64",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT", "MIGRATIONS_DIR",
	"OUTBOX_INTERVAL_SECONDS", "OUTBOX_BATCH_SIZE", "OUTBOX_MAX_ATTEMPTS",

	"MODMED_BASE_URL", "MODMED_SANDBOX_BASE_URL", "MODMED_FIRM_PREFIX", "MODMED_API_KEY",
	"MODMED_USERNAME", "MODMED_PASSWORD", "MODMED_CLIENT_ID", "MODMED_CLIENT_SECRET",
	"MODMED_USE_SANDBOX", "MODMED_TIMEOUT_SECONDS",

	"ATHENA_BASE_URL", "ATHENA_SANDBOX_BASE_URL", "ATHENA_PRACTICE_ID",
	"ATHENA_CLIENT_ID", "ATHENA_CLIENT_SECRET", "ATHENA_AUTH_MODE",
	"ATHENA_USERNAME", "ATHENA_PASSWORD", "ATHENA_API_KEY", "ATHENA_USE_SANDBOX",
	"ATHENA_TIME_ZONE", "ATHENA_TIMEOUT_SECONDS",
}

// Load reads an optional .env file and the environment. Validation is left
// to Validate so commands that need no vendor can still start.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("SESSION_ISSUER", "ehrbridge")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("OUTBOX_INTERVAL_SECONDS", 30)
	v.SetDefault("OUTBOX_BATCH_SIZE", 50)
	v.SetDefault("OUTBOX_MAX_ATTEMPTS", 10)
	v.SetDefault("MODMED_TIMEOUT_SECONDS", 15)
	v.SetDefault("ATHENA_AUTH_MODE", athena.AuthOAuth)
	v.SetDefault("ATHENA_TIME_ZONE", "UTC")
	v.SetDefault("ATHENA_TIMEOUT_SECONDS", 30)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
	_ = v.BindEnv("ATHENA_TOKEN_URL", "ATHENA_TOKEN_URL", "ATHENA_OAUTH_TOKEN_URL")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to serve with.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if !c.IsDev() && c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required when ENV is %q", c.Env)
	}
	if c.EncryptionKeyBase64 != "" {
		if _, err := c.EncryptionKey(); err != nil {
			return err
		}
	}
	switch strings.ToLower(c.AthenaAuthMode) {
	case athena.AuthOAuth, athena.AuthBasic:
	default:
		return fmt.Errorf("ATHENA_AUTH_MODE must be %q or %q, got %q", athena.AuthOAuth, athena.AuthBasic, c.AthenaAuthMode)
	}
	if _, err := time.LoadLocation(c.AthenaTimeZone); err != nil {
		return fmt.Errorf("ATHENA_TIME_ZONE: %w", err)
	}
	return nil
}

// EncryptionKey decodes ENCRYPTION_KEY_BASE64. It returns nil when unset.
func (c *Config) EncryptionKey() ([]byte, error) {
	if c.EncryptionKeyBase64 == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.EncryptionKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY_BASE64 is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY_BASE64 must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// ModMedEnabled reports whether enough is configured to build a client.
func (c *Config) ModMedEnabled() bool {
	return c.ModMedBaseURL != "" && c.ModMedFirmPrefix != ""
}

func (c *Config) AthenaEnabled() bool {
	return c.AthenaBaseURL != "" && c.AthenaPracticeID != ""
}

func (c *Config) ModMedConfig() modmed.Config {
	return modmed.Config{
		BaseURL:        c.ModMedBaseURL,
		SandboxBaseURL: c.ModMedSandboxBaseURL,
		FirmPrefix:     c.ModMedFirmPrefix,
		APIKey:         c.ModMedAPIKey,
		Username:       c.ModMedUsername,
		Password:       c.ModMedPassword,
		ClientID:       c.ModMedClientID,
		ClientSecret:   c.ModMedClientSecret,
		UseSandbox:     c.ModMedUseSandbox,
		Timeout:        time.Duration(c.ModMedTimeoutSeconds) * time.Second,
	}
}

// AthenaConfig assumes Validate has accepted the time zone.
func (c *Config) AthenaConfig() athena.Config {
	loc, err := time.LoadLocation(c.AthenaTimeZone)
	if err != nil {
		loc = time.UTC
	}
	return athena.Config{
		BaseURL:        c.AthenaBaseURL,
		SandboxBaseURL: c.AthenaSandboxBaseURL,
		PracticeID:     c.AthenaPracticeID,
		TokenURL:       c.AthenaTokenURL,
		AuthMode:       strings.ToLower(c.AthenaAuthMode),
		ClientID:       c.AthenaClientID,
		ClientSecret:   c.AthenaClientSecret,
		Username:       c.AthenaUsername,
		Password:       c.AthenaPassword,
		APIKey:         c.AthenaAPIKey,
		UseSandbox:     c.AthenaUseSandbox,
		Timeout:        time.Duration(c.AthenaTimeoutSeconds) * time.Second,
		Location:       loc,
	}
}

func (c *Config) OutboxInterval() time.Duration {
	if c.OutboxIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.OutboxIntervalSeconds) * time.Second
}
