package session

import (
    "context"
    "errors"
    "strings"
    "time"

    "github.com/google/uuid"
    "go.uber.org/zap"

    "github.com/hamitb/allbadcards/internal/cardcat"
    "github.com/hamitb/allbadcards/internal/game"
    "github.com/hamitb/allbadcards/internal/obslog"
    "github.com/hamitb/allbadcards/internal/store"
)

const (
    DefaultHandSize   = 10
    DefaultMinPlayers = 3
)

// Catalog is the part of the card catalog the manager reads.
type Catalog interface {
    ResolvePack(ctx context.Context, packID string) (*cardcat.Pack, error)
    BlackCard(ctx context.Context, ref game.CardRef) (cardcat.BlackCard, error)
    WhiteCard(ctx context.Context, ref game.CardRef) (string, error)
}

// Notifier is told about every persisted mutation, in order, while the game is still locked.
type Notifier interface {
    GameUpdated(ctx context.Context, g *game.Game) error
}

// ResultRecorder stores finished games.
type ResultRecorder interface {
    SaveResult(ctx context.Context, g *game.Game) error
}

type Manager struct {
    store    store.Store
    cards    Catalog
    locks    *keyedLocks
    rng      *lockedRand
    notifier Notifier
    recorder ResultRecorder
    now      func() time.Time
    newID    func() string

    handSize          int
    minPlayers        int
    playersCanAdvance bool
}

type Option func(*Manager)

func WithNotifier(n Notifier) Option { return func(m *Manager) { m.notifier = n } }

func WithRecorder(r ResultRecorder) Option { return func(m *Manager) { m.recorder = r } }

// WithSeed makes shuffles and bot choices reproducible.
func WithSeed(seed uint64) Option { return func(m *Manager) { m.rng = newLockedRand(seed) } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithIDGenerator(f func() string) Option { return func(m *Manager) { m.newID = f } }

func WithHandSize(n int) Option {
    return func(m *Manager) {
        if n > 0 {
            m.handSize = n
        }
    }
}

func WithMinPlayers(n int) Option {
    return func(m *Manager) {
        if n > 1 {
            m.minPlayers = n
        }
    }
}

// WithPlayersCanAdvance lets any player, not just the owner, start the next round.
func WithPlayersCanAdvance(v bool) Option { return func(m *Manager) { m.playersCanAdvance = v } }

func NewManager(st store.Store, cards Catalog, opts ...Option) *Manager {
    m := &Manager{
        store:      st,
        cards:      cards,
        locks:      newKeyedLocks(),
        now:        func() time.Time { return time.Now().UTC() },
        newID:      newGameID,
        handSize:   DefaultHandSize,
        minPlayers: DefaultMinPlayers,
    }
    for _, opt := range opts {
        opt(m)
    }
    if m.rng == nil {
        m.rng = newLockedRand(cryptoSeed())
    }
    return m
}

// newGameID returns a short upper-case code suitable for invite links.
func newGameID() string {
    return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// errUnchanged lets a mutation finish without persisting anything.
var errUnchanged = errors.New("unchanged")

// mutate runs fn against a freshly loaded copy of the game under the game's lock, then
// persists it with a version check. Nothing is written if fn fails.
func (m *Manager) mutate(ctx context.Context, op, gameID, actor string, fn func(g *game.Game) error) (*game.Game, error) {
    gameID = strings.TrimSpace(gameID)
    log := obslog.Op(op, gameID, actor)
    if gameID == "" {
        return nil, m.reject(log, op, game.InvalidInput("game id required"))
    }

    unlock := m.locks.Lock(gameID)
    defer unlock()

    g, err := m.load(ctx, gameID)
    if err != nil {
        return nil, m.reject(log, op, err)
    }
    prev := g.State
    if err := fn(g); err != nil {
        if errors.Is(err, errUnchanged) {
            return g, nil
        }
        return nil, m.reject(log, op, err)
    }

    expected := g.Version
    g.Version++
    g.UpdatedAt = m.now()
    if err := m.store.Put(ctx, g, expected); err != nil {
        return nil, m.reject(log, op, m.storeErr(op, gameID, err))
    }
    if prev != g.State {
        log.Info("game_state", zap.String("from", string(prev)), zap.String("to", string(g.State)), zap.Int64("version", g.Version))
    } else {
        log.Debug("game_update", zap.Int64("version", g.Version))
    }
    m.afterPersist(ctx, log, prev, g)
    return g, nil
}

func (m *Manager) afterPersist(ctx context.Context, log *zap.Logger, prev game.State, g *game.Game) {
    if err := m.store.SetJoinable(ctx, g.ID, joinable(g)); err != nil {
        log.Warn("joinable_index_failed", zap.Error(err))
    }
    if m.notifier != nil {
        if err := m.notifier.GameUpdated(ctx, g); err != nil {
            log.Warn("notify_failed", zap.Error(err))
        }
    }
    if m.recorder != nil && prev != game.StateGameComplete && g.State == game.StateGameComplete {
        if err := m.recorder.SaveResult(ctx, g); err != nil {
            log.Error("history_save_failed", zap.Error(err))
        } else {
            log.Info("history_saved")
        }
    }
}

func joinable(g *game.Game) bool {
    return g.State == game.StateLobby && g.Settings.Password == "" && len(g.Players) > 0
}

func (m *Manager) load(ctx context.Context, gameID string) (*game.Game, error) {
    g, err := m.store.Get(ctx, gameID)
    if err != nil {
        return nil, m.storeErr("load", gameID, err)
    }
    return g, nil
}

func (m *Manager) storeErr(op, gameID string, err error) error {
    switch {
    case errors.Is(err, store.ErrNotFound):
        return game.NotFound("game %s not found", gameID)
    default:
        return game.Failure(op, err)
    }
}

// reject tags err with op and logs it; failures at error level, rule violations at debug.
func (m *Manager) reject(log *zap.Logger, op string, err error) error {
    err = game.WithOp(op, err)
    if game.KindOf(err) == game.KindFailure {
        log.Error("op_failed", zap.Error(err))
    } else {
        log.Debug("op_rejected", zap.String("kind", string(game.KindOf(err))), zap.Error(err))
    }
    return err
}
