package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/hamitb/allbadcards/internal/obslog"
)

type LogConfig struct {
	Level   string `env:"LOG_LEVEL" envDefault:"info"`
	Format  string `env:"LOG_FORMAT" envDefault:"legacy"`
	Console bool   `env:"LOG_TO_CONSOLE" envDefault:"true"`
	ToFile  bool   `env:"LOG_TO_FILE" envDefault:"false"`
	File    string `env:"LOG_FILE" envDefault:"logs/allbadcards.log"`
	Caller  bool   `env:"LOG_CALLER" envDefault:"false"`
}

// Options converts the settings for obslog.Init.
func (l LogConfig) Options() obslog.Options {
	return obslog.Options{Level: l.Level, Format: l.Format, Console: l.Console, ToFile: l.ToFile, FilePath: l.File, Caller: l.Caller}
}

type AppConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":5000"`
	WSAddr   string `env:"WS_ADDR" envDefault:":5001"`

	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	GameTTL           time.Duration `env:"GAME_TTL" envDefault:"24h"`
	HandSize          int           `env:"HAND_SIZE" envDefault:"10"`
	MinPlayers        int           `env:"MIN_PLAYERS" envDefault:"3"`
	PlayersCanAdvance bool          `env:"PLAYERS_CAN_ADVANCE" envDefault:"false"`

	PackDir         string   `env:"PACK_DIR"`
	ExternalPackURL string   `env:"EXTERNAL_PACK_URL"`
	AllowedOrigins  []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	Log LogConfig
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.PackDir = strings.TrimSpace(cfg.PackDir)
	cfg.ExternalPackURL = strings.TrimRight(strings.TrimSpace(cfg.ExternalPackURL), "/")

	origins := cfg.AllowedOrigins[:0]
	for _, o := range cfg.AllowedOrigins {
		if s := strings.TrimSpace(o); s != "" {
			origins = append(origins, s)
		}
	}
	cfg.AllowedOrigins = origins

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) Validate() error {
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.HandSize < 1 {
		return fmt.Errorf("HAND_SIZE must be >= 1 (got %d)", c.HandSize)
	}
	if c.MinPlayers < 2 {
		return fmt.Errorf("MIN_PLAYERS must be >= 2 (got %d)", c.MinPlayers)
	}
	if c.GameTTL <= 0 {
		return fmt.Errorf("GAME_TTL must be positive")
	}
	return nil
}

// HistoryEnabled reports whether finished games should be written to Postgres.
func (c *AppConfig) HistoryEnabled() bool { return c.DatabaseURL != "" }
