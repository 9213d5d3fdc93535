package appbuilder

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/hamitb/allbadcards/internal/config"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	return &config.AppConfig{
		RedisURL:   fmt.Sprintf("redis://%s/0", mr.Addr()),
		GameTTL:    time.Hour,
		HandSize:   7,
		MinPlayers: 2,
	}
}

func TestNewWiresDeps(t *testing.T) {
	cfg := testConfig(t)
	deps, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = deps.Close() })

	if deps.History != nil {
		t.Fatalf("history should be disabled without DATABASE_URL")
	}
	if deps.API == nil || deps.Hub == nil || deps.Manager == nil {
		t.Fatalf("missing deps: %+v", deps)
	}

	ctx := context.Background()
	v, err := deps.Manager.CreateGame(ctx, "owner", "Owner")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if _, err := deps.Manager.JoinGame(ctx, "p1", v.ID, "One", false, false, ""); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	started, err := deps.Manager.StartGame(ctx, v.ID, "owner", []string{"base"}, nil, 3, "", "")
	if err != nil {
		t.Fatalf("StartGame with MIN_PLAYERS=2: %v", err)
	}
	for _, p := range started.Players {
		if p.Guid == "p1" && p.HandSize != 7 {
			t.Fatalf("hand size = %d, want 7", p.HandSize)
		}
	}
}

func TestNewFailsWithoutRedis(t *testing.T) {
	cfg := &config.AppConfig{RedisURL: "redis://127.0.0.1:1/0", GameTTL: time.Hour, HandSize: 10, MinPlayers: 3}
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unreachable redis")
	}
	if _, err := New(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestNewRejectsBadPackDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.PackDir = t.TempDir() + "/missing"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for missing pack dir")
	}
}
