package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/hamitb/allbadcards/internal/game"
	"github.com/hamitb/allbadcards/pkg/abcdto"
)

// Channel is the Pub/Sub channel carrying updates for one game.
func Channel(gameID string) string { return "abc:events:" + gameID }

// Publisher announces persisted game changes over Redis Pub/Sub so every process's
// websocket hub can push fresh views.
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher { return &Publisher{rdb: rdb} }

func (p *Publisher) GameUpdated(ctx context.Context, g *game.Game) error {
	payload, err := json.Marshal(abcdto.Event{GameID: g.ID, Version: g.Version, State: string(g.State)})
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, Channel(g.ID), payload).Err()
}
