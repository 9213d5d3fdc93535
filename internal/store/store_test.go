package store

import (
    "context"
    "errors"
    "fmt"
    "sort"
    "testing"
    "time"

    miniredis "github.com/alicebob/miniredis/v2"

    "github.com/hamitb/allbadcards/internal/game"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
    t.Helper()
    mr, err := miniredis.Run()
    if err != nil { t.Fatalf("miniredis: %v", err) }
    t.Cleanup(func() { mr.Close() })
    s, err := Connect(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()), time.Hour)
    if err != nil { t.Fatalf("Connect: %v", err) }
    t.Cleanup(func() { _ = s.Close() })
    return s, mr
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
    t.Run("redis", func(t *testing.T) {
        s, _ := newRedisStore(t)
        fn(t, s)
    })
    t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
}

func sampleGame(id string) *game.Game {
    return &game.Game{
        ID:        id,
        OwnerGuid: "owner",
        State:     game.StateLobby,
        Players:   []*game.Player{{Guid: "owner", Nickname: "Alice", Connected: true}},
        CreatedAt: time.Now().UTC(),
    }
}

func TestCreateGetRoundTrip(t *testing.T) {
    forEachStore(t, func(t *testing.T, s Store) {
        ctx := context.Background()
        if err := s.Create(ctx, sampleGame("g1")); err != nil { t.Fatalf("Create: %v", err) }
        g, err := s.Get(ctx, "g1")
        if err != nil { t.Fatalf("Get: %v", err) }
        if g.OwnerGuid != "owner" || len(g.Players) != 1 || g.Players[0].Nickname != "Alice" {
            t.Fatalf("unexpected game: %+v", g)
        }
        if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
            t.Fatalf("expected ErrNotFound, got %v", err)
        }
    })
}

func TestCreateRejectsDuplicateID(t *testing.T) {
    forEachStore(t, func(t *testing.T, s Store) {
        ctx := context.Background()
        if err := s.Create(ctx, sampleGame("dup")); err != nil { t.Fatalf("Create: %v", err) }
        if err := s.Create(ctx, sampleGame("dup")); !errors.Is(err, ErrDuplicate) {
            t.Fatalf("expected ErrDuplicate, got %v", err)
        }
    })
}

func TestPutChecksVersion(t *testing.T) {
    forEachStore(t, func(t *testing.T, s Store) {
        ctx := context.Background()
        g := sampleGame("g2")
        if err := s.Create(ctx, g); err != nil { t.Fatalf("Create: %v", err) }

        next := g.Clone()
        next.Version = 1
        next.State = game.StatePlaying
        if err := s.Put(ctx, next, 0); err != nil { t.Fatalf("Put v1: %v", err) }

        stale := g.Clone()
        stale.Version = 1
        stale.State = game.StateGameComplete
        if err := s.Put(ctx, stale, 0); !errors.Is(err, ErrConflict) {
            t.Fatalf("expected ErrConflict on stale write, got %v", err)
        }
        got, _ := s.Get(ctx, "g2")
        if got.State != game.StatePlaying || got.Version != 1 {
            t.Fatalf("stale write leaked: state=%s version=%d", got.State, got.Version)
        }
        if err := s.Put(ctx, sampleGame("nope"), 0); !errors.Is(err, ErrNotFound) {
            t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
        }
    })
}

func TestJoinableIndex(t *testing.T) {
    forEachStore(t, func(t *testing.T, s Store) {
        ctx := context.Background()
        for _, id := range []string{"a", "b"} {
            if err := s.Create(ctx, sampleGame(id)); err != nil { t.Fatalf("Create: %v", err) }
            if err := s.SetJoinable(ctx, id, true); err != nil { t.Fatalf("SetJoinable: %v", err) }
        }
        if err := s.SetJoinable(ctx, "a", false); err != nil { t.Fatalf("SetJoinable: %v", err) }
        ids, err := s.JoinableIDs(ctx)
        if err != nil { t.Fatalf("JoinableIDs: %v", err) }
        sort.Strings(ids)
        if len(ids) != 1 || ids[0] != "b" { t.Fatalf("joinable = %v, want [b]", ids) }
    })
}

func TestJoinableIndexPrunesExpiredGames(t *testing.T) {
    s, mr := newRedisStore(t)
    ctx := context.Background()
    if err := s.Create(ctx, sampleGame("old")); err != nil { t.Fatalf("Create: %v", err) }
    if err := s.SetJoinable(ctx, "old", true); err != nil { t.Fatalf("SetJoinable: %v", err) }
    mr.Del(gameKey("old"))
    ids, err := s.JoinableIDs(ctx)
    if err != nil { t.Fatalf("JoinableIDs: %v", err) }
    if len(ids) != 0 { t.Fatalf("expected expired game pruned, got %v", ids) }
    if ok, _ := mr.SIsMember(joinableKey(), "old"); ok { t.Fatalf("index still references expired game") }
}

func TestRedisTTLApplied(t *testing.T) {
    s, mr := newRedisStore(t)
    if err := s.Create(context.Background(), sampleGame("ttl")); err != nil { t.Fatalf("Create: %v", err) }
    if ttl := mr.TTL(gameKey("ttl")); ttl != time.Hour { t.Fatalf("ttl = %v, want 1h", ttl) }
}

func TestParseRedisURL(t *testing.T) {
    opts, err := ParseRedisURL("redis://:secret@localhost:6380/2")
    if err != nil { t.Fatalf("ParseRedisURL: %v", err) }
    if opts.Addr != "localhost:6380" || opts.Password != "secret" || opts.DB != 2 {
        t.Fatalf("unexpected options: %+v", opts)
    }
    if _, err := ParseRedisURL("http://localhost"); err == nil { t.Fatalf("expected scheme error") }
    if _, err := ParseRedisURL("redis://localhost/abc"); err == nil { t.Fatalf("expected db error") }
}

func TestConnectFailsFast(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if _, err := Connect(ctx, "redis://127.0.0.1:1/0", time.Hour); err == nil {
        t.Fatalf("expected Connect to fail against a closed port")
    }
    if _, err := Connect(ctx, "", time.Hour); err == nil {
        t.Fatalf("expected Connect to require a URL")
    }
}
