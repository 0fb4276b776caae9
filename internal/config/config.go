package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string        `mapstructure:"PORT"`
	Env                  string        `mapstructure:"ENV"`
	LogLevel             string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir        string        `mapstructure:"MIGRATIONS_DIR"`
	LocalStoreDir        string        `mapstructure:"LOCAL_STORE_DIR"`
	JWTSecret            string        `mapstructure:"JWT_SECRET"`
	JWTIssuer            string        `mapstructure:"JWT_ISSUER"`
	TokenTTL             time.Duration `mapstructure:"TOKEN_TTL"`
	CORSOrigins          []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS         float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst       int           `mapstructure:"RATE_LIMIT_BURST"`
	AuthRateLimitRPS     float64       `mapstructure:"AUTH_RATE_LIMIT_RPS"`
	AuthRateLimitBurst   int           `mapstructure:"AUTH_RATE_LIMIT_BURST"`
	FacilitySource       string        `mapstructure:"FACILITY_SOURCE"`
	FacilityFetchTimeout time.Duration `mapstructure:"FACILITY_FETCH_TIMEOUT"`
	KafkaBrokers         []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaReferralTopic   string        `mapstructure:"KAFKA_REFERRAL_TOPIC"`
	WebhookURL           string        `mapstructure:"REFERRAL_WEBHOOK_URL"`
	WebhookSecret        string        `mapstructure:"REFERRAL_WEBHOOK_SECRET"`
	DemoMode             bool          `mapstructure:"DEMO_MODE"`
	DemoClinicIdentifier string        `mapstructure:"DEMO_CLINIC_IDENTIFIER"`
	DemoClinicPassword   string        `mapstructure:"DEMO_CLINIC_PASSWORD"`
}

// devJWTSecret signs tokens when no secret is configured outside production.
const devJWTSecret = "medibridge-development-secret-change-me"

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR", "LOCAL_STORE_DIR",
	"JWT_SECRET", "JWT_ISSUER", "TOKEN_TTL",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "AUTH_RATE_LIMIT_RPS", "AUTH_RATE_LIMIT_BURST",
	"FACILITY_SOURCE", "FACILITY_FETCH_TIMEOUT",
	"KAFKA_BROKERS", "KAFKA_REFERRAL_TOPIC", "REFERRAL_WEBHOOK_URL", "REFERRAL_WEBHOOK_SECRET",
	"DEMO_MODE", "DEMO_CLINIC_IDENTIFIER", "DEMO_CLINIC_PASSWORD",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "4000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("LOCAL_STORE_DIR", "./data/local")
	v.SetDefault("JWT_ISSUER", "medibridge")
	v.SetDefault("TOKEN_TTL", "8h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("AUTH_RATE_LIMIT_RPS", 2)
	v.SetDefault("AUTH_RATE_LIMIT_BURST", 10)
	v.SetDefault("FACILITY_FETCH_TIMEOUT", "5s")
	v.SetDefault("KAFKA_REFERRAL_TOPIC", "medibridge.referrals")
	v.SetDefault("DEMO_CLINIC_IDENTIFIER", "demo@clinic")
	v.SetDefault("DEMO_CLINIC_PASSWORD", "demo123")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	// Demo mode follows the environment unless set explicitly.
	if !v.IsSet("DEMO_MODE") {
		v.Set("DEMO_MODE", v.GetString("ENV") == "development")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers)

	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		cfg.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

// splitList normalises list values that arrive either pre-split or as a
// single comma separated string.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LocalMode reports whether the server runs without PostgreSQL, keeping all
// records in the local store.
func (c *Config) LocalMode() bool {
	return c.DatabaseURL == ""
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 bytes in production")
		}
		if c.JWTSecret == devJWTSecret {
			return fmt.Errorf("JWT_SECRET must not use the development default in production")
		}
		if c.DemoMode {
			return fmt.Errorf("DEMO_MODE must be disabled in production")
		}
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.DemoMode && (c.DemoClinicIdentifier == "" || c.DemoClinicPassword == "") {
		return fmt.Errorf("DEMO_CLINIC_IDENTIFIER and DEMO_CLINIC_PASSWORD are required when DEMO_MODE is enabled")
	}
	return nil
}
