package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/hamitb/allbadcards/internal/cardcat"
	"github.com/hamitb/allbadcards/internal/game"
	"github.com/hamitb/allbadcards/internal/session"
	"github.com/hamitb/allbadcards/internal/store"
	"github.com/hamitb/allbadcards/pkg/abcdto"
)

type fixture struct {
	rdb *redis.Client
	mgr *session.Manager
	srv *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil { t.Fatalf("miniredis: %v", err) }
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cards, err := cardcat.New("", nil)
	if err != nil { t.Fatalf("cardcat.New: %v", err) }
	mgr := session.NewManager(store.NewRedisStore(rdb, time.Hour), cards, session.WithSeed(7), session.WithNotifier(NewPublisher(rdb)))
	srv := httptest.NewServer(NewHub(rdb, mgr, nil).Handler())
	t.Cleanup(srv.Close)
	return &fixture{rdb: rdb, mgr: mgr, srv: srv}
}

func (f *fixture) dial(t *testing.T, ctx context.Context, gameID, guid string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/games/" + gameID + "?guid=" + guid
	conn, _, err := websocket.Dial(ctx, u, nil)
	if err != nil { t.Fatalf("dial: %v", err) }
	return conn
}

func TestPublisherPublishesEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.rdb.Subscribe(ctx, Channel("G1"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil { t.Fatalf("subscribe: %v", err) }

	if err := NewPublisher(f.rdb).GameUpdated(ctx, &game.Game{ID: "G1", Version: 3, State: game.StatePlaying}); err != nil {
		t.Fatalf("GameUpdated: %v", err)
	}
	select {
	case msg := <-sub.Channel():
		var ev abcdto.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil { t.Fatalf("decode: %v", err) }
		if ev.GameID != "G1" || ev.Version != 3 || ev.State != "PLAYING" { t.Fatalf("unexpected event: %+v", ev) }
	case <-time.After(2 * time.Second):
		t.Fatalf("no message published")
	}
}

func TestHubStreamsViews(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := f.mgr.CreateGame(ctx, "owner", "Owner")
	if err != nil { t.Fatalf("CreateGame: %v", err) }

	conn := f.dial(t, ctx, v.ID, "owner")
	defer conn.Close(websocket.StatusNormalClosure, "")

	var first abcdto.GameView
	if err := wsjson.Read(ctx, conn, &first); err != nil { t.Fatalf("read first view: %v", err) }
	if first.ID != v.ID || len(first.Players) != 1 { t.Fatalf("unexpected first view: %+v", first) }

	if _, err := f.mgr.JoinGame(ctx, "p1", v.ID, "One", false, false, ""); err != nil { t.Fatalf("JoinGame: %v", err) }
	var next abcdto.GameView
	if err := wsjson.Read(ctx, conn, &next); err != nil { t.Fatalf("read update: %v", err) }
	if len(next.Players) != 2 || next.Version <= first.Version || next.Viewer != "owner" {
		t.Fatalf("unexpected update: %+v", next)
	}
}

func TestHubTracksPresence(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := f.mgr.CreateGame(ctx, "owner", "Owner")
	if err != nil { t.Fatalf("CreateGame: %v", err) }
	if _, err := f.mgr.JoinGame(ctx, "p1", v.ID, "One", false, false, ""); err != nil { t.Fatalf("JoinGame: %v", err) }

	conn := f.dial(t, ctx, v.ID, "p1")
	var first abcdto.GameView
	if err := wsjson.Read(ctx, conn, &first); err != nil { t.Fatalf("read: %v", err) }
	conn.Close(websocket.StatusNormalClosure, "bye")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		g, err := f.mgr.Load(ctx, v.ID)
		if err != nil { t.Fatalf("Load: %v", err) }
		if p := g.Player("p1"); p != nil && !p.Connected {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("p1 still marked connected after closing the socket")
}

func TestHubUnknownGame(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/ws/games/NOPE?guid=x")
	if err != nil { t.Fatalf("GET: %v", err) }
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound { t.Fatalf("status = %d, want 404", resp.StatusCode) }
}
