package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/hamitb/allbadcards/internal/cardcat"
	"github.com/hamitb/allbadcards/internal/obslog"
	"github.com/hamitb/allbadcards/pkg/abcdto"
)

// Sessions is the part of session.Manager the API drives.
type Sessions interface {
	CreateGame(ctx context.Context, ownerGuid, nickname string) (*abcdto.GameView, error)
	JoinGame(ctx context.Context, playerGuid, gameID, nickname string, isSpectating, isReconnect bool, password string) (*abcdto.GameView, error)
	KickPlayer(ctx context.Context, gameID, targetGuid, actingGuid string) (*abcdto.GameView, error)
	LeaveGame(ctx context.Context, gameID, playerGuid string) (*abcdto.GameView, error)
	StartGame(ctx context.Context, gameID, ownerGuid string, includedPacks, includedExternalPacks []string, requiredRounds int, inviteLink, password string) (*abcdto.GameView, error)
	RestartGame(ctx context.Context, gameID, playerGuid string) (*abcdto.GameView, error)
	PlayCard(ctx context.Context, gameID, playerGuid string, cardIDs []string) (*abcdto.GameView, error)
	Forfeit(ctx context.Context, gameID, playerGuid string, playedCards []string) (*abcdto.GameView, error)
	RevealNext(ctx context.Context, gameID, ownerGuid string) (*abcdto.GameView, error)
	SkipBlack(ctx context.Context, gameID, ownerGuid string) (*abcdto.GameView, error)
	StartRound(ctx context.Context, gameID, ownerGuid string) (*abcdto.GameView, error)
	NextRound(ctx context.Context, gameID, playerGuid string) (*abcdto.GameView, error)
	AddRandomPlayer(ctx context.Context, gameID, ownerGuid string) (*abcdto.GameView, error)
	SelectWinnerCard(ctx context.Context, gameID, judgeGuid, winningPlayerGuid string) (*abcdto.GameView, error)
	View(ctx context.Context, gameID, viewerGuid string) (*abcdto.GameView, error)
	ListJoinable(ctx context.Context) ([]abcdto.JoinableGame, error)
}

// Packs lists the local card packs.
type Packs interface {
	ListPackTypes() cardcat.PackTypes
}

const (
	defaultRequestTimeout = 10 * time.Second
	maxRequestBody        = 64 << 10
	gamesPrefix           = "/api/games/"
)

type Server struct {
	sessions  Sessions
	packsJSON []byte
	actions   map[string]action
	origins   map[string]bool
	timeout   time.Duration
}

type Option func(*Server)

// WithAllowedOrigins enables CORS for the listed origins. "*" allows any.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		for _, o := range origins {
			if o = strings.TrimSpace(o); o != "" {
				s.origins[o] = true
			}
		}
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewServer pre-renders the pack list; the catalog does not change while the process runs.
func NewServer(sessions Sessions, packs Packs, opts ...Option) (*Server, error) {
	s := &Server{
		sessions: sessions,
		origins:  make(map[string]bool),
		timeout:  defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	raw, err := json.Marshal(packList(packs.ListPackTypes()))
	if err != nil {
		return nil, fmt.Errorf("encode pack list: %w", err)
	}
	s.packsJSON = raw
	s.actions = s.routes()
	return s, nil
}

func packList(pt cardcat.PackTypes) abcdto.PackList {
	convert := func(in []cardcat.PackInfo) []abcdto.PackInfo {
		out := make([]abcdto.PackInfo, 0, len(in))
		for _, p := range in {
			out = append(out, abcdto.PackInfo{ID: p.ID, Name: p.Name, Black: p.Black, White: p.White})
		}
		return out
	}
	return abcdto.PackList{Official: convert(pt.Official), ThirdParty: convert(pt.ThirdParty)}
}

// HTTPServer wraps Handler with the listener limits used in production.
func (s *Server) HTTPServer() *fasthttp.Server {
	return &fasthttp.Server{
		Handler:            s.Handler,
		Name:               "allbadcards",
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxRequestBodySize: maxRequestBody,
		Logger:             zap.NewStdLog(obslog.L().Named("fasthttp")),
	}
}

// Handler routes by hand: the route table is small and fixed.
func (s *Server) Handler(rc *fasthttp.RequestCtx) {
	start := time.Now()
	if s.cors(rc) {
		return
	}
	path := string(rc.Path())
	method := string(rc.Method())

	switch {
	case path == "/healthz":
		rc.SetContentType("text/plain; charset=utf-8")
		rc.SetBodyString("ok")
	case path == "/api/packs":
		if s.allow(rc, method, fasthttp.MethodGet) {
			s.writeRaw(rc, fasthttp.StatusOK, s.packsJSON)
		}
	case path == "/api/games" || path == "/api/games/":
		switch method {
		case fasthttp.MethodGet:
			s.listGames(rc)
		case fasthttp.MethodPost:
			s.createGame(rc)
		default:
			s.methodNotAllowed(rc)
		}
	case strings.HasPrefix(path, gamesPrefix):
		s.gameRoute(rc, method, strings.TrimPrefix(path, gamesPrefix))
	default:
		s.writeError(rc, routeError(fasthttp.StatusNotFound, "no such route"))
	}

	obslog.L().Debug("http_request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", rc.Response.StatusCode()),
		zap.Duration("latency", time.Since(start)),
	)
}

func (s *Server) gameRoute(rc *fasthttp.RequestCtx, method, rest string) {
	id, sub, _ := strings.Cut(rest, "/")
	if strings.TrimSpace(id) == "" || strings.Contains(sub, "/") {
		s.writeError(rc, routeError(fasthttp.StatusNotFound, "no such route"))
		return
	}
	switch sub {
	case "":
		if s.allow(rc, method, fasthttp.MethodGet) {
			s.viewGame(rc, id)
		}
	case "prompt.png":
		if s.allow(rc, method, fasthttp.MethodGet) {
			s.promptImage(rc, id)
		}
	default:
		act, ok := s.actions[sub]
		if !ok {
			s.writeError(rc, routeError(fasthttp.StatusNotFound, "no such route"))
			return
		}
		if s.allow(rc, method, fasthttp.MethodPost) {
			s.runAction(rc, id, act)
		}
	}
}

func (s *Server) allow(rc *fasthttp.RequestCtx, method, want string) bool {
	if method == want {
		return true
	}
	s.methodNotAllowed(rc)
	return false
}

func (s *Server) methodNotAllowed(rc *fasthttp.RequestCtx) {
	s.writeError(rc, routeError(fasthttp.StatusMethodNotAllowed, "method not allowed"))
}

// cors sets CORS headers for allowed origins and answers preflight requests. It reports
// whether the request was fully handled.
func (s *Server) cors(rc *fasthttp.RequestCtx) bool {
	origin := string(rc.Request.Header.Peek(fasthttp.HeaderOrigin))
	if origin == "" || !(s.origins["*"] || s.origins[origin]) {
		return false
	}
	rc.Response.Header.Set(fasthttp.HeaderAccessControlAllowOrigin, origin)
	rc.Response.Header.Set(fasthttp.HeaderVary, fasthttp.HeaderOrigin)
	if !rc.IsOptions() {
		return false
	}
	rc.Response.Header.Set(fasthttp.HeaderAccessControlAllowMethods, "GET, POST, OPTIONS")
	rc.Response.Header.Set(fasthttp.HeaderAccessControlAllowHeaders, "Content-Type")
	rc.Response.Header.Set(fasthttp.HeaderAccessControlMaxAge, "600")
	rc.SetStatusCode(fasthttp.StatusNoContent)
	return true
}

func (s *Server) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *Server) writeJSON(rc *fasthttp.RequestCtx, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.writeError(rc, fmt.Errorf("encode response: %w", err))
		return
	}
	s.writeRaw(rc, status, raw)
}

func (s *Server) writeRaw(rc *fasthttp.RequestCtx, status int, raw []byte) {
	rc.SetContentType("application/json")
	rc.SetStatusCode(status)
	rc.SetBody(raw)
}
