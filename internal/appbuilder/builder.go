package appbuilder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamitb/allbadcards/internal/cardcat"
	"github.com/hamitb/allbadcards/internal/config"
	"github.com/hamitb/allbadcards/internal/events"
	"github.com/hamitb/allbadcards/internal/history"
	"github.com/hamitb/allbadcards/internal/httpapi"
	"github.com/hamitb/allbadcards/internal/obslog"
	"github.com/hamitb/allbadcards/internal/remote"
	"github.com/hamitb/allbadcards/internal/session"
	"github.com/hamitb/allbadcards/internal/store"
)

type Deps struct {
	Store   *store.RedisStore
	Catalog *cardcat.Catalog
	History *history.Repository
	Manager *session.Manager
	API     *httpapi.Server
	Hub     *events.Hub
}

func New(ctx context.Context, cfg *config.AppConfig) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger := obslog.L()

	// Store (Redis required)
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	st, err := store.Connect(connectCtx, cfg.RedisURL, cfg.GameTTL)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	deps := &Deps{Store: st}

	// Catalog, with external packs when a deck API is configured
	var external cardcat.ExternalSource
	if cfg.ExternalPackURL != "" {
		external = cardcat.NewHTTPSource(remote.NewClient(cfg.ExternalPackURL, remote.WithTimeout(5*time.Second)))
	}
	deps.Catalog, err = cardcat.New(cfg.PackDir, external)
	if err != nil {
		_ = deps.Close()
		return nil, fmt.Errorf("init catalog: %w", err)
	}

	opts := []session.Option{
		session.WithNotifier(events.NewPublisher(st.Client())),
		session.WithHandSize(cfg.HandSize),
		session.WithMinPlayers(cfg.MinPlayers),
		session.WithPlayersCanAdvance(cfg.PlayersCanAdvance),
	}

	// History (Postgres optional)
	if cfg.HistoryEnabled() {
		repo, err := history.NewRepository(cfg.DatabaseURL)
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("init history: %w", err)
		}
		deps.History = repo
		schemaCtx, cancelSchema := context.WithTimeout(ctx, 10*time.Second)
		err = repo.EnsureSchema(schemaCtx)
		cancelSchema()
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("history schema: %w", err)
		}
		opts = append(opts, session.WithRecorder(repo))
	} else {
		logger.Info("history_disabled", zap.String("reason", "DATABASE_URL not set"))
	}

	deps.Manager = session.NewManager(st, deps.Catalog, opts...)

	deps.API, err = httpapi.NewServer(deps.Manager, deps.Catalog, httpapi.WithAllowedOrigins(cfg.AllowedOrigins))
	if err != nil {
		_ = deps.Close()
		return nil, fmt.Errorf("init api: %w", err)
	}
	deps.Hub = events.NewHub(st.Client(), deps.Manager, cfg.AllowedOrigins)

	packs := deps.Catalog.ListPackTypes()
	logger.Info("deps_ready",
		zap.Int("official_packs", len(packs.Official)),
		zap.Int("third_party_packs", len(packs.ThirdParty)),
		zap.Bool("external_packs", external != nil),
		zap.Bool("history", deps.History != nil),
		zap.Duration("game_ttl", cfg.GameTTL),
	)
	return deps, nil
}

// Close releases the Redis and Postgres connections.
func (d *Deps) Close() error {
	var errs []error
	if d.History != nil {
		errs = append(errs, d.History.Close())
	}
	if d.Store != nil {
		errs = append(errs, d.Store.Close())
	}
	return errors.Join(errs...)
}
