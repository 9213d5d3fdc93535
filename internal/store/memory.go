package store

import (
    "context"
    "sort"
    "strings"
    "sync"

    "github.com/hamitb/allbadcards/internal/game"
)

// MemoryStore is an in-process Store for tests and single-node development.
// Documents are cloned on the way in and out so callers never share state with it.
type MemoryStore struct {
    mu       sync.RWMutex
    games    map[string]*game.Game
    joinable map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
    return &MemoryStore{
        games:    make(map[string]*game.Game),
        joinable: make(map[string]struct{}),
    }
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*game.Game, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()
    g, ok := m.games[strings.TrimSpace(id)]
    if !ok || g == nil {
        return nil, ErrNotFound
    }
    return g.Clone(), nil
}

func (m *MemoryStore) Create(ctx context.Context, g *game.Game) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, exists := m.games[g.ID]; exists {
        return ErrDuplicate
    }
    m.games[g.ID] = g.Clone()
    return nil
}

func (m *MemoryStore) Put(ctx context.Context, g *game.Game, expected int64) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    cur, ok := m.games[g.ID]
    if !ok {
        return ErrNotFound
    }
    if cur.Version != expected {
        return ErrConflict
    }
    m.games[g.ID] = g.Clone()
    return nil
}

func (m *MemoryStore) SetJoinable(ctx context.Context, id string, joinable bool) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if joinable {
        m.joinable[id] = struct{}{}
    } else {
        delete(m.joinable, id)
    }
    return nil
}

func (m *MemoryStore) JoinableIDs(ctx context.Context) ([]string, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()
    out := make([]string, 0, len(m.joinable))
    for id := range m.joinable {
        if _, ok := m.games[id]; ok {
            out = append(out, id)
        }
    }
    sort.Strings(out)
    return out, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
func (m *MemoryStore) Close() error                    { return nil }
