package store

import (
    "context"

    "github.com/hamitb/allbadcards/internal/game"
)

// Store persists game documents keyed by id. It does no locking of its own beyond the
// version check in Put; callers serialize mutations per game.
type Store interface {
    // Get returns ErrNotFound when no document exists.
    Get(ctx context.Context, id string) (*game.Game, error)
    // Create stores a new document; ErrDuplicate when the id is taken.
    Create(ctx context.Context, g *game.Game) error
    // Put replaces the document only if the stored version equals expected; ErrConflict otherwise.
    Put(ctx context.Context, g *game.Game, expected int64) error
    // SetJoinable adds or removes the game from the open-lobby index.
    SetJoinable(ctx context.Context, id string, joinable bool) error
    JoinableIDs(ctx context.Context) ([]string, error)
    Ping(ctx context.Context) error
    Close() error
}

// Errors
var (
    ErrNotFound  = errf("game not found")
    ErrDuplicate = errf("game id already exists")
    ErrConflict  = errf("game was modified concurrently")
)

type staticErr string
func (e staticErr) Error() string { return string(e) }
func errf(s string) error { return staticErr(s) }
