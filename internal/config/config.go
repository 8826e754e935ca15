package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	MRNSystemCode string `mapstructure:"MRN_SYSTEM_CODE"`
	SSNSystemCode string `mapstructure:"SSN_SYSTEM_CODE"`

	PaginationDefaultSize int `mapstructure:"PAGINATION_DEFAULT_SIZE"`
	PaginationMaxSize     int `mapstructure:"PAGINATION_MAX_SIZE"`

	PublishEnabled bool   `mapstructure:"PUBLISH_ENABLED"`
	FHIRPublishURL string `mapstructure:"FHIR_PUBLISH_URL"`
	SCIMURL        string `mapstructure:"SCIM_URL"`

	AuthIssuer   string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL  string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience string   `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins  []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MRN_SYSTEM_CODE", "MRN")
	v.SetDefault("SSN_SYSTEM_CODE", "SSN")
	v.SetDefault("PAGINATION_DEFAULT_SIZE", 20)
	v.SetDefault("PAGINATION_MAX_SIZE", 100)
	v.SetDefault("PUBLISH_ENABLED", false)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("MRN_SYSTEM_CODE")
	v.BindEnv("SSN_SYSTEM_CODE")
	v.BindEnv("PAGINATION_DEFAULT_SIZE")
	v.BindEnv("PAGINATION_MAX_SIZE")
	v.BindEnv("PUBLISH_ENABLED")
	v.BindEnv("FHIR_PUBLISH_URL")
	v.BindEnv("SCIM_URL")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active and all requests get admin access.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run with.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" {
		return fmt.Errorf("AUTH_ISSUER must be set when ENV is not development; " +
			"refusing to start without authentication configuration")
	}
	if c.MRNSystemCode == "" {
		return fmt.Errorf("MRN_SYSTEM_CODE must not be empty")
	}
	if c.SSNSystemCode == "" {
		return fmt.Errorf("SSN_SYSTEM_CODE must not be empty")
	}
	if c.MRNSystemCode == c.SSNSystemCode {
		return fmt.Errorf("MRN_SYSTEM_CODE and SSN_SYSTEM_CODE must differ, both are %q", c.MRNSystemCode)
	}
	if c.PaginationDefaultSize <= 0 || c.PaginationMaxSize <= 0 {
		return fmt.Errorf("pagination sizes must be positive")
	}
	if c.PaginationDefaultSize > c.PaginationMaxSize {
		return fmt.Errorf("PAGINATION_DEFAULT_SIZE (%d) exceeds PAGINATION_MAX_SIZE (%d)",
			c.PaginationDefaultSize, c.PaginationMaxSize)
	}
	if c.PublishEnabled && c.FHIRPublishURL == "" {
		return fmt.Errorf("FHIR_PUBLISH_URL is required when PUBLISH_ENABLED is true")
	}
	return nil
}
