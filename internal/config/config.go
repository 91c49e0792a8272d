package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	HTTPAddr       string        `validate:"required"`
	GRPCAddr       string        `validate:"required"`
	BackendURL     string        `validate:"required,url"`
	BackendTimeout time.Duration `validate:"gt=0"`

	SessionSecret string        `validate:"required,min=16"`
	SessionTTL    time.Duration `validate:"gt=0"`
	DatabaseURL   string
	Migrations    string

	CalendarTZ              string         `validate:"required"`
	Location                *time.Location `validate:"-"`
	StrictStatusTransitions bool

	StaticDir    string   `validate:"required"`
	AllowOrigins []string `validate:"dive,url"`

	SignInRPS   float64 `validate:"gt=0"`
	SignInBurst int     `validate:"gt=0"`

	LogLevel  string `validate:"oneof=trace debug info warn error"`
	LogFormat string `validate:"oneof=console json"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		GRPCAddr:      env("GRPC_ADDR", ":50051"),
		BackendURL:    strings.TrimRight(os.Getenv("BACKEND_URL"), "/"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Migrations:    env("MIGRATIONS", "db/migrations/001_init.sql"),
		CalendarTZ:    env("CALENDAR_TZ", "UTC"),
		StaticDir:     env("STATIC_DIR", "./web"),
		LogLevel:      strings.ToLower(env("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(env("LOG_FORMAT", "console")),
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowOrigins = append(cfg.AllowOrigins, o)
			}
		}
	}

	var err error
	if cfg.BackendTimeout, err = duration("BACKEND_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = duration("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.StrictStatusTransitions, err = boolean("STRICT_STATUS_TRANSITIONS", false); err != nil {
		return nil, err
	}
	if cfg.SignInRPS, err = number("SIGNIN_RPS", 5); err != nil {
		return nil, err
	}
	burst, err := number("SIGNIN_BURST", 10)
	if err != nil {
		return nil, err
	}
	cfg.SignInBurst = int(burst)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.Location, err = time.LoadLocation(cfg.CalendarTZ); err != nil {
		return nil, fmt.Errorf("config: CALENDAR_TZ: %w", err)
	}
	return cfg, nil
}

// Logger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) Logger() zerolog.Logger {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	var l zerolog.Logger
	if c.LogFormat == "json" {
		l = zerolog.New(os.Stdout)
	} else {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return l.Level(lvl).With().Timestamp().Logger()
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func boolean(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func number(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}
