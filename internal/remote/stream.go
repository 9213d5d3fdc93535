package remote

import (
    "context"
    "net/http"
    "strings"
    "sync"
    "time"

    "nhooyr.io/websocket"
    "nhooyr.io/websocket/wsjson"

    "github.com/hamitb/allbadcards/pkg/abcdto"
)

type StreamState int

const (
    StreamDisconnected StreamState = iota
    StreamConnecting
    StreamConnected
    StreamReconnecting
    StreamFailed
)

func (s StreamState) String() string {
    switch s {
    case StreamConnecting:
        return "connecting"
    case StreamConnected:
        return "connected"
    case StreamReconnecting:
        return "reconnecting"
    case StreamFailed:
        return "failed"
    default:
        return "disconnected"
    }
}

type ViewCallback func(view *abcdto.GameView)

type StateCallback func(state StreamState)

// GameStream follows /ws/games/{id} and hands every pushed view to its callbacks.
// Dropped connections are redialled up to maxReconnect times.
type GameStream struct {
    url string

    mu    sync.Mutex
    conn  *websocket.Conn
    state StreamState

    cbM      sync.RWMutex
    viewCbs  []ViewCallback
    stateCbs []StateCallback

    maxReconnect int
    pingInterval time.Duration
    headers      HeaderProvider

    stopCh   chan struct{}
    stopOnce sync.Once
    wg       sync.WaitGroup

    rootCtx    context.Context
    rootCancel context.CancelFunc
}

// NewGameStream builds a stream for wsBase (ws://host:port) and the given game and viewer.
func NewGameStream(wsBase, gameID, guid string, maxReconnect int) *GameStream {
    u := strings.TrimRight(wsBase, "/") + "/ws/games/" + gameID + "?guid=" + guid
    return &GameStream{
        url:          u,
        state:        StreamDisconnected,
        maxReconnect: maxReconnect,
        pingInterval: 30 * time.Second,
        stopCh:       make(chan struct{}),
    }
}

func (s *GameStream) SetHeaderProvider(h HeaderProvider) { s.headers = h }

func (s *GameStream) OnView(cb ViewCallback) {
    s.cbM.Lock()
    s.viewCbs = append(s.viewCbs, cb)
    s.cbM.Unlock()
}

func (s *GameStream) OnStateChange(cb StateCallback) {
    s.cbM.Lock()
    s.stateCbs = append(s.stateCbs, cb)
    s.cbM.Unlock()
}

func (s *GameStream) State() StreamState {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.state
}

func (s *GameStream) Connect(ctx context.Context) error {
    s.mu.Lock()
    if s.state == StreamConnected || s.state == StreamConnecting {
        s.mu.Unlock()
        return nil
    }
    s.mu.Unlock()

    s.rootCtx, s.rootCancel = context.WithCancel(context.Background())
    s.setState(StreamConnecting)

    conn, err := s.dial(ctx)
    if err != nil {
        s.setState(StreamFailed)
        s.scheduleReconnect()
        return err
    }
    s.attach(conn)
    return nil
}

func (s *GameStream) dial(ctx context.Context) (*websocket.Conn, error) {
    dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
    defer cancel()
    conn, _, err := websocket.Dial(dialCtx, s.url, &websocket.DialOptions{
        CompressionMode: websocket.CompressionNoContextTakeover,
        HTTPHeader:      s.buildHeaders(),
    })
    return conn, err
}

func (s *GameStream) attach(conn *websocket.Conn) {
    s.mu.Lock()
    s.conn = conn
    s.mu.Unlock()
    s.setState(StreamConnected)
    s.wg.Add(2)
    go s.listen(conn)
    go s.pingLoop(conn)
}

func (s *GameStream) listen(conn *websocket.Conn) {
    defer s.wg.Done()
    for {
        var view abcdto.GameView
        if err := wsjson.Read(s.rootCtx, conn, &view); err != nil {
            if s.isStopping() {
                return
            }
            s.drop(conn, "read failure")
            return
        }
        s.cbM.RLock()
        cbs := append([]ViewCallback(nil), s.viewCbs...)
        s.cbM.RUnlock()
        for _, cb := range cbs {
            cb(&view)
        }
    }
}

func (s *GameStream) pingLoop(conn *websocket.Conn) {
    defer s.wg.Done()
    t := time.NewTicker(s.pingInterval)
    defer t.Stop()
    failures := 0
    for {
        select {
        case <-s.stopCh:
            return
        case <-s.rootCtx.Done():
            return
        case <-t.C:
            s.mu.Lock()
            current := s.conn == conn
            s.mu.Unlock()
            if !current {
                return
            }
            ctx, cancel := context.WithTimeout(s.rootCtx, 3*time.Second)
            err := conn.Ping(ctx)
            cancel()
            if err == nil {
                failures = 0
                continue
            }
            failures++
            if failures >= 2 {
                if !s.isStopping() {
                    s.drop(conn, "ping failure")
                }
                return
            }
        }
    }
}

// drop closes conn if it is still current and starts reconnecting.
func (s *GameStream) drop(conn *websocket.Conn, reason string) {
    s.mu.Lock()
    if s.conn != conn {
        s.mu.Unlock()
        return
    }
    s.conn = nil
    s.mu.Unlock()
    _ = conn.Close(websocket.StatusGoingAway, reason)
    s.setState(StreamDisconnected)
    s.scheduleReconnect()
}

func (s *GameStream) scheduleReconnect() {
    if s.maxReconnect <= 0 {
        return
    }
    s.setState(StreamReconnecting)

    go func() {
        for attempt := 1; attempt <= s.maxReconnect; attempt++ {
            select {
            case <-s.stopCh:
                return
            case <-time.After(backoffDuration(attempt)):
            }
            conn, err := s.dial(s.rootCtx)
            if err != nil {
                continue
            }
            if s.isStopping() {
                _ = conn.Close(websocket.StatusNormalClosure, "close")
                return
            }
            s.attach(conn)
            return
        }
        s.setState(StreamFailed)
    }()
}

func (s *GameStream) setState(state StreamState) {
    s.mu.Lock()
    s.state = state
    s.mu.Unlock()

    s.cbM.RLock()
    cbs := append([]StateCallback(nil), s.stateCbs...)
    s.cbM.RUnlock()
    for _, cb := range cbs {
        cb(state)
    }
}

func (s *GameStream) Close(ctx context.Context) error {
    s.stopOnce.Do(func() { close(s.stopCh) })
    s.mu.Lock()
    conn := s.conn
    s.conn = nil
    s.mu.Unlock()
    if conn != nil {
        _ = conn.Close(websocket.StatusNormalClosure, "close")
    }
    if s.rootCancel != nil {
        s.rootCancel()
    }

    done := make(chan struct{})
    go func() {
        s.wg.Wait()
        close(done)
    }()
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-done:
        s.setState(StreamDisconnected)
        return nil
    }
}

func (s *GameStream) isStopping() bool {
    select {
    case <-s.stopCh:
        return true
    default:
        return false
    }
}

func (s *GameStream) buildHeaders() http.Header {
    hdr := http.Header{}
    if s.headers == nil {
        return hdr
    }
    for k, v := range s.headers() {
        if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
            continue
        }
        hdr.Set(k, v)
    }
    return hdr
}
