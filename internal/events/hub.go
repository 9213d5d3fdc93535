package events

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/hamitb/allbadcards/internal/game"
	"github.com/hamitb/allbadcards/internal/obslog"
	"github.com/hamitb/allbadcards/pkg/abcdto"
)

// Sessions is what the hub needs from the session manager.
type Sessions interface {
	View(ctx context.Context, gameID, viewerGuid string) (*abcdto.GameView, error)
	SetConnected(ctx context.Context, gameID, playerGuid string, connected bool) (*abcdto.GameView, error)
}

// Hub serves /ws/games/{id}?guid=: the viewer gets their view on connect and again after
// every event published for the game.
type Hub struct {
	rdb      *redis.Client
	sessions Sessions
	origins  []string

	writeTimeout time.Duration

	mu       sync.Mutex
	presence map[string]int // gameID|guid -> open sockets
}

func NewHub(rdb *redis.Client, sessions Sessions, allowedOrigins []string) *Hub {
	return &Hub{
		rdb:          rdb,
		sessions:     sessions,
		origins:      allowedOrigins,
		writeTimeout: 5 * time.Second,
		presence:     make(map[string]int),
	}
}

// Handler returns a mux with the websocket route mounted.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/games/{id}", h.serveGame)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	return mux
}

func (h *Hub) serveGame(w http.ResponseWriter, r *http.Request) {
	gameID := strings.TrimSpace(r.PathValue("id"))
	guid := strings.TrimSpace(r.URL.Query().Get("guid"))
	log := obslog.Op("ws_stream", gameID, guid)

	first, err := h.sessions.View(r.Context(), gameID, guid)
	if err != nil {
		status := http.StatusInternalServerError
		if game.KindOf(err) == game.KindNotFound {
			status = http.StatusNotFound
		}
		http.Error(w, game.Message(err), status)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.origins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		log.Warn("ws_accept_failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	// readers are not expected; CloseRead cancels ctx when the peer goes away
	ctx := conn.CloseRead(context.Background())

	sub := h.rdb.Subscribe(ctx, Channel(gameID))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		log.Warn("ws_subscribe_failed", zap.Error(err))
		conn.Close(websocket.StatusTryAgainLater, "subscribe failed")
		return
	}

	seated := isSeated(first, guid)
	if seated {
		h.arrive(gameID, guid)
		defer h.depart(gameID, guid)
	}
	log.Info("ws_open", zap.Bool("seated", seated))

	if err := h.write(ctx, conn, first); err != nil {
		return
	}
	lastVersion := first.Version
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Info("ws_closed")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case msg, ok := <-msgs:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "subscription closed")
				return
			}
			var ev abcdto.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err == nil && ev.Version != 0 && ev.Version <= lastVersion {
				continue
			}
			v, err := h.sessions.View(ctx, gameID, guid)
			if err != nil {
				log.Warn("ws_view_failed", zap.Error(err))
				continue
			}
			if v.Version <= lastVersion {
				continue
			}
			lastVersion = v.Version
			if err := h.write(ctx, conn, v); err != nil {
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, v *abcdto.GameView) error {
	wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, v)
}

func isSeated(v *abcdto.GameView, guid string) bool {
	if guid == "" {
		return false
	}
	for _, p := range v.Players {
		if p.Guid == guid {
			return true
		}
	}
	return false
}

func presenceKey(gameID, guid string) string { return gameID + "|" + guid }

// arrive and depart count sockets per player so a second tab closing does not mark the
// player away.
func (h *Hub) arrive(gameID, guid string) {
	h.mu.Lock()
	h.presence[presenceKey(gameID, guid)]++
	n := h.presence[presenceKey(gameID, guid)]
	h.mu.Unlock()
	if n == 1 {
		h.setConnected(gameID, guid, true)
	}
}

func (h *Hub) depart(gameID, guid string) {
	h.mu.Lock()
	key := presenceKey(gameID, guid)
	h.presence[key]--
	n := h.presence[key]
	if n <= 0 {
		delete(h.presence, key)
	}
	h.mu.Unlock()
	if n <= 0 {
		h.setConnected(gameID, guid, false)
	}
}

func (h *Hub) setConnected(gameID, guid string, connected bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := h.sessions.SetConnected(ctx, gameID, guid, connected); err != nil && game.KindOf(err) == game.KindFailure {
		obslog.Op("set_connected", gameID, guid).Warn("presence_update_failed", zap.Error(err))
	}
}
