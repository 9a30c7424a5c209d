package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	shutdownSecondsEnvVar = "SHUTDOWN_TIMEOUT_SECONDS"
	minSecretLength       = 32
	ephemeralSecretBytes  = 32
)

var supportedAlgorithms = map[string]struct{}{
	"HS256": {},
	"HS384": {},
	"HS512": {},
}

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName          string        `env:"APP_NAME"           envDefault:"authfront"`
	AppEnv           string        `env:"APP_ENV"            envDefault:"development"`
	Port             string        `env:"PORT"               envDefault:"8000"`
	LogLevel         string        `env:"LOG_LEVEL"          envDefault:"info"`
	DatabaseURL      string        `env:"DATABASE_URL"`
	RedisURL         string        `env:"REDIS_URL"`
	AutoMigrate      bool          `env:"AUTO_MIGRATE"       envDefault:"true"`
	ShutdownPeriod   time.Duration `env:"SHUTDOWN_TIMEOUT"   envDefault:"10s"`
	IdempotencyTTL   time.Duration `env:"IDEMPOTENCY_TTL"    envDefault:"24h"`
	JWTSecret        string        `env:"JWT_SECRET"`
	JWTAlgorithm     string        `env:"JWT_ALGORITHM"      envDefault:"HS256"`
	AccessTokenTTL   time.Duration `env:"ACCESS_TOKEN_TTL"   envDefault:"30m"`
	BcryptCost       int           `env:"BCRYPT_COST"        envDefault:"10"`
	CORSAllowOrigins []string      `env:"CORS_ALLOW_ORIGINS" envDefault:"https://localhost:3000" envSeparator:","`

	// EphemeralSecret reports that JWT_SECRET was absent in development and a
	// random per-process secret was generated instead.
	EphemeralSecret bool
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse(nil)
}

// Parse builds a Config from the given variables. A nil map reads the process
// environment.
func Parse(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	lookup := os.Getenv
	if environ != nil {
		lookup = func(key string) string { return environ[key] }
	}
	if v := lookup(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.JWTAlgorithm = strings.ToUpper(strings.TrimSpace(cfg.JWTAlgorithm))

	if cfg.JWTSecret == "" && cfg.IsDevelopment() {
		secret, err := randomSecret()
		if err != nil {
			return Config{}, err
		}
		cfg.JWTSecret = secret
		cfg.EphemeralSecret = true
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set when APP_ENV=%s", c.AppEnv)
	}
	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters long (got %d)", minSecretLength, len(c.JWTSecret))
	}
	if _, ok := supportedAlgorithms[c.JWTAlgorithm]; !ok {
		return fmt.Errorf("unsupported JWT_ALGORITHM %q", c.JWTAlgorithm)
	}
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.DatabaseURL == "" && !c.IsDevelopment() {
		return fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	return nil
}

// IsDevelopment reports whether the app runs in a local/dev environment,
// where an in-memory store and an ephemeral signing secret are allowed.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func randomSecret() (string, error) {
	buf := make([]byte, ephemeralSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate ephemeral secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
