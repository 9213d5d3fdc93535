package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REDIS_URL", " redis://localhost:6379/0 ")
	cfg, err := Load()
	if err != nil { t.Fatalf("Load: %v", err) }
	if cfg.RedisURL != "redis://localhost:6379/0" { t.Fatalf("redis url not trimmed: %q", cfg.RedisURL) }
	if cfg.HTTPAddr != ":5000" || cfg.WSAddr != ":5001" { t.Fatalf("addrs = %q %q", cfg.HTTPAddr, cfg.WSAddr) }
	if cfg.GameTTL != 24*time.Hour || cfg.HandSize != 10 || cfg.MinPlayers != 3 || cfg.PlayersCanAdvance {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.HistoryEnabled() { t.Fatalf("history should be disabled without DATABASE_URL") }
	if cfg.Log.Level != "info" || !cfg.Log.Console || cfg.Log.ToFile { t.Fatalf("unexpected log defaults: %+v", cfg.Log) }
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://r:6379/1")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/abc?sslmode=disable")
	t.Setenv("GAME_TTL", "90m")
	t.Setenv("HAND_SIZE", "7")
	t.Setenv("PLAYERS_CAN_ADVANCE", "true")
	t.Setenv("ALLOWED_ORIGINS", "a.example, ,b.example")
	t.Setenv("EXTERNAL_PACK_URL", "https://decks.example/api/")
	t.Setenv("LOG_FORMAT", "json")
	cfg, err := Load()
	if err != nil { t.Fatalf("Load: %v", err) }
	if cfg.GameTTL != 90*time.Minute || cfg.HandSize != 7 || !cfg.PlayersCanAdvance || !cfg.HistoryEnabled() {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "b.example" { t.Fatalf("origins = %v", cfg.AllowedOrigins) }
	if cfg.ExternalPackURL != "https://decks.example/api" { t.Fatalf("external url = %q", cfg.ExternalPackURL) }
	if cfg.Log.Options().Format != "json" { t.Fatalf("log format not propagated") }
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	if _, err := Load(); err == nil { t.Fatalf("expected REDIS_URL error") }

	t.Setenv("REDIS_URL", "redis://r:6379/0")
	t.Setenv("MIN_PLAYERS", "1")
	if _, err := Load(); err == nil { t.Fatalf("expected MIN_PLAYERS error") }

	t.Setenv("MIN_PLAYERS", "3")
	t.Setenv("HAND_SIZE", "abc")
	if _, err := Load(); err == nil { t.Fatalf("expected parse error") }
}
