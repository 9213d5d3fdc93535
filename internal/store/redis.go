package store

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/url"
    "strconv"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/hamitb/allbadcards/internal/game"
)

const defaultTTL = 24 * time.Hour

// RedisStore keeps each game as a JSON document under abc:game:<id>. The key TTL is the
// retention policy; the core never deletes games itself.
type RedisStore struct {
    rdb *redis.Client
    ttl time.Duration
}

// Connect parses a redis:// URL, opens a client and pings it so a bad address fails startup.
func Connect(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
    if strings.TrimSpace(redisURL) == "" {
        return nil, fmt.Errorf("REDIS_URL required for game store")
    }
    opts, err := ParseRedisURL(redisURL)
    if err != nil { return nil, err }
    rdb := redis.NewClient(opts)
    if err := rdb.Ping(ctx).Err(); err != nil {
        _ = rdb.Close()
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    return NewRedisStore(rdb, ttl), nil
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
    if ttl <= 0 { ttl = defaultTTL }
    return &RedisStore{rdb: rdb, ttl: ttl}
}

// Client exposes the underlying connection for components sharing it (events publisher).
func (s *RedisStore) Client() *redis.Client { return s.rdb }

func (s *RedisStore) Ping(ctx context.Context) error {
    if s == nil || s.rdb == nil { return fmt.Errorf("redis store not initialized") }
    return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
    if s == nil || s.rdb == nil { return nil }
    return s.rdb.Close()
}

func (s *RedisStore) Get(ctx context.Context, id string) (*game.Game, error) {
    raw, err := s.rdb.Get(ctx, gameKey(id)).Bytes()
    if err == redis.Nil { return nil, ErrNotFound }
    if err != nil { return nil, err }
    var g game.Game
    if err := json.Unmarshal(raw, &g); err != nil { return nil, fmt.Errorf("decode game %s: %w", id, err) }
    return &g, nil
}

func (s *RedisStore) Create(ctx context.Context, g *game.Game) error {
    raw, err := json.Marshal(g)
    if err != nil { return err }
    ok, err := s.rdb.SetNX(ctx, gameKey(g.ID), raw, s.ttl).Result()
    if err != nil { return err }
    if !ok { return ErrDuplicate }
    return nil
}

// Put writes under WATCH so another process bumping the version in between aborts the write.
func (s *RedisStore) Put(ctx context.Context, g *game.Game, expected int64) error {
    key := gameKey(g.ID)
    raw, err := json.Marshal(g)
    if err != nil { return err }
    err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
        cur, err := tx.Get(ctx, key).Bytes()
        if err == redis.Nil { return ErrNotFound }
        if err != nil { return err }
        var head struct {
            Version int64 `json:"version"`
        }
        if jerr := json.Unmarshal(cur, &head); jerr != nil { return jerr }
        if head.Version != expected { return ErrConflict }
        _, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
            pipe.Set(ctx, key, raw, s.ttl)
            return nil
        })
        return err
    }, key)
    if errors.Is(err, redis.TxFailedErr) { return ErrConflict }
    return err
}

func (s *RedisStore) SetJoinable(ctx context.Context, id string, joinable bool) error {
    if strings.TrimSpace(id) == "" { return nil }
    if !joinable {
        return s.rdb.SRem(ctx, joinableKey(), id).Err()
    }
    if err := s.rdb.SAdd(ctx, joinableKey(), id).Err(); err != nil { return err }
    // refresh TTL of the index alongside the games it points to
    _ = s.rdb.Expire(ctx, joinableKey(), s.ttl).Err()
    return nil
}

// JoinableIDs lists indexed ids, pruning the ones whose documents already expired.
func (s *RedisStore) JoinableIDs(ctx context.Context) ([]string, error) {
    ids, err := s.rdb.SMembers(ctx, joinableKey()).Result()
    if err != nil { return nil, err }
    out := make([]string, 0, len(ids))
    for _, id := range ids {
        n, err := s.rdb.Exists(ctx, gameKey(id)).Result()
        if err != nil { return nil, err }
        if n == 0 {
            _ = s.rdb.SRem(ctx, joinableKey(), id).Err()
            continue
        }
        out = append(out, id)
    }
    return out, nil
}

func gameKey(id string) string { return "abc:game:" + strings.TrimSpace(id) }
func joinableKey() string     { return "abc:index:joinable" }

// ParseRedisURL accepts redis:// and rediss:// URLs with an optional /<db> path.
func ParseRedisURL(raw string) (*redis.Options, error) {
    u, err := url.Parse(raw)
    if err != nil { return nil, err }
    if u.Scheme != "redis" && u.Scheme != "rediss" { return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme) }
    db := 0
    if p := strings.TrimPrefix(u.Path, "/"); p != "" {
        n, err := strconv.Atoi(p)
        if err != nil { return nil, fmt.Errorf("invalid redis db %q", p) }
        db = n
    }
    pass, _ := u.User.Password()
    return &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}, nil
}
