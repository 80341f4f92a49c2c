package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"yello-auth/internal/model"
)

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"

	TokenModeMock = "mock"
	TokenModeJWT  = "jwt"

	minJWTSecretLength = 16
)

type Config struct {
	Server    Server    `envPrefix:"SERVER_"`
	CORS      CORS      `envPrefix:"CORS_"`
	RateLimit RateLimit `envPrefix:"RATE_LIMIT_"`
	Log       Log       `envPrefix:"LOG_"`
	Storage   Storage   `envPrefix:"STORAGE_"`
	Database  Database  `envPrefix:"DATABASE_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	Identity  Identity  `envPrefix:"IDENTITY_"`
	Auth      Auth      `envPrefix:"AUTH_"`
	Audit     Audit     `envPrefix:"AUDIT_"`
}

type Server struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"120s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type CORS struct {
	Origins []string `env:"ORIGINS" envSeparator:"," envDefault:"*"`
}

type RateLimit struct {
	RPM     int `env:"RPM" envDefault:"100"`
	AuthRPM int `env:"AUTH_RPM" envDefault:"10"`
}

type Log struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"pretty"`
}

// Storage selects where the persisted session keys live.
type Storage struct {
	Backend   string `env:"BACKEND" envDefault:"memory"`
	Path      string `env:"PATH" envDefault:"./state/session.json"`
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"yello-"`
}

type Database struct {
	URL      string `env:"URL"`
	MaxConns int32  `env:"MAX_CONNS" envDefault:"10"`
	MinConns int32  `env:"MIN_CONNS" envDefault:"1"`
}

type Redis struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type Identity struct {
	Directory     string        `env:"DIRECTORY" envDefault:"memory"`
	TokenMode     string        `env:"TOKEN_MODE" envDefault:"mock"`
	JWTSecret     string        `env:"JWT_SECRET"`
	AccessTTL     time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
	LatencyMin    time.Duration `env:"LATENCY_MIN" envDefault:"500ms"`
	LatencyMax    time.Duration `env:"LATENCY_MAX" envDefault:"1500ms"`
	BcryptCost    int           `env:"BCRYPT_COST" envDefault:"10"`
	DefaultSchool string        `env:"DEFAULT_SCHOOL_ID" envDefault:"school_mock_001"`
	Seed          bool          `env:"SEED" envDefault:"true"`
}

type Auth struct {
	OperationTimeout time.Duration `env:"OPERATION_TIMEOUT" envDefault:"10s"`
	Locale           string        `env:"LOCALE" envDefault:"fr"`
	CheckOnStart     bool          `env:"CHECK_ON_START" envDefault:"true"`
}

// Audit controls the JSON lines trail of auth events.
type Audit struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	File    string `env:"FILE" envDefault:"./state/audit.log"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse(env.Options{})
}

// FromMap builds a configuration from explicit variables only.
func FromMap(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Identity.Directory = strings.ToLower(strings.TrimSpace(c.Identity.Directory))
	c.Identity.TokenMode = strings.ToLower(strings.TrimSpace(c.Identity.TokenMode))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Auth.Locale = strings.ToLower(strings.TrimSpace(c.Auth.Locale))
	c.Audit.File = strings.TrimSpace(c.Audit.File)

	origins := c.CORS.Origins[:0]
	for _, origin := range c.CORS.Origins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.CORS.Origins = origins
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("SERVER_REQUEST_TIMEOUT must be positive")
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}

	if !slices.Contains([]string{"pretty", "json", "text"}, c.Log.Format) {
		return fmt.Errorf("LOG_FORMAT must be one of pretty, json, text")
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendRedis:
	case BackendFile:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("STORAGE_PATH is required for the file backend")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres storage backend")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of memory, file, redis, postgres")
	}

	if c.Storage.Backend == BackendRedis && strings.TrimSpace(c.Redis.Addr) == "" {
		return fmt.Errorf("REDIS_ADDR is required for the redis storage backend")
	}

	switch c.Identity.Directory {
	case BackendMemory:
	case BackendPostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres directory")
		}
	default:
		return fmt.Errorf("IDENTITY_DIRECTORY must be memory or postgres")
	}

	switch c.Identity.TokenMode {
	case TokenModeMock:
	case TokenModeJWT:
		if len(strings.TrimSpace(c.Identity.JWTSecret)) < minJWTSecretLength {
			return fmt.Errorf("IDENTITY_JWT_SECRET must be at least %d characters in jwt mode", minJWTSecretLength)
		}
		if c.Identity.AccessTTL <= 0 || c.Identity.RefreshTTL <= 0 {
			return fmt.Errorf("IDENTITY_ACCESS_TTL and IDENTITY_REFRESH_TTL must be positive")
		}
	default:
		return fmt.Errorf("IDENTITY_TOKEN_MODE must be mock or jwt")
	}

	if c.Identity.LatencyMin < 0 || c.Identity.LatencyMax < c.Identity.LatencyMin {
		return fmt.Errorf("IDENTITY_LATENCY_MIN must be >= 0 and <= IDENTITY_LATENCY_MAX")
	}

	if c.Identity.BcryptCost < bcrypt.MinCost || c.Identity.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("IDENTITY_BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if c.Auth.OperationTimeout <= 0 {
		return fmt.Errorf("AUTH_OPERATION_TIMEOUT must be positive")
	}

	if !model.SupportedLocale(c.Auth.Locale) {
		return fmt.Errorf("AUTH_LOCALE %q is not supported", c.Auth.Locale)
	}

	return nil
}

func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.Log.Level))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

// UsesPostgres reports whether any component needs the database pool.
func (c *Config) UsesPostgres() bool {
	return c.Storage.Backend == BackendPostgres || c.Identity.Directory == BackendPostgres
}
