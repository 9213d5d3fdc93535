package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/hamitb/allbadcards/internal/cardimg"
	"github.com/hamitb/allbadcards/internal/game"
	"github.com/hamitb/allbadcards/pkg/abcdto"
)

type action func(ctx context.Context, gameID string, body []byte) (*abcdto.GameView, error)

type validator interface {
	Validate() error
}

// bind decodes and validates the body into T before calling fn.
func bind[T validator](fn func(ctx context.Context, gameID string, req T) (*abcdto.GameView, error)) action {
	return func(ctx context.Context, gameID string, body []byte) (*abcdto.GameView, error) {
		var req T
		if err := decodeBody(body, &req); err != nil {
			return nil, err
		}
		if err := req.Validate(); err != nil {
			return nil, err
		}
		return fn(ctx, gameID, req)
	}
}

func decodeBody(body []byte, out any) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return abcdto.ValidationError{Field: "body", Reason: "required"}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return abcdto.ValidationError{Field: "body", Reason: "malformed json"}
	}
	return nil
}

func (s *Server) routes() map[string]action {
	m := s.sessions
	actor := func(fn func(ctx context.Context, gameID, guid string) (*abcdto.GameView, error)) action {
		return bind(func(ctx context.Context, id string, r abcdto.ActorRequest) (*abcdto.GameView, error) {
			return fn(ctx, id, r.Guid)
		})
	}
	return map[string]action{
		"join": bind(func(ctx context.Context, id string, r abcdto.JoinGameRequest) (*abcdto.GameView, error) {
			return m.JoinGame(ctx, r.Guid, id, r.Nickname, r.Spectating, r.IsReconnect, r.Password)
		}),
		"kick": bind(func(ctx context.Context, id string, r abcdto.KickPlayerRequest) (*abcdto.GameView, error) {
			return m.KickPlayer(ctx, id, r.Target, r.Guid)
		}),
		"start": bind(func(ctx context.Context, id string, r abcdto.StartGameRequest) (*abcdto.GameView, error) {
			return m.StartGame(ctx, id, r.Guid, r.IncludedPacks, r.IncludedExternalPacks, r.RoundsToWin, r.InviteLink, r.Password)
		}),
		"play": bind(func(ctx context.Context, id string, r abcdto.PlayCardRequest) (*abcdto.GameView, error) {
			return m.PlayCard(ctx, id, r.Guid, r.Cards)
		}),
		"forfeit": bind(func(ctx context.Context, id string, r abcdto.ForfeitRequest) (*abcdto.GameView, error) {
			return m.Forfeit(ctx, id, r.Guid, r.Cards)
		}),
		"select-winner": bind(func(ctx context.Context, id string, r abcdto.SelectWinnerRequest) (*abcdto.GameView, error) {
			return m.SelectWinnerCard(ctx, id, r.Guid, r.Winner)
		}),
		"leave":       actor(m.LeaveGame),
		"restart":     actor(m.RestartGame),
		"reveal":      actor(m.RevealNext),
		"skip-black":  actor(m.SkipBlack),
		"start-round": actor(m.StartRound),
		"next-round":  actor(m.NextRound),
		"add-random":  actor(m.AddRandomPlayer),
	}
}

func (s *Server) runAction(rc *fasthttp.RequestCtx, gameID string, act action) {
	ctx, cancel := s.requestContext()
	defer cancel()
	v, err := act(ctx, gameID, rc.PostBody())
	if err != nil {
		s.writeError(rc, err)
		return
	}
	s.writeJSON(rc, fasthttp.StatusOK, v)
}

func (s *Server) createGame(rc *fasthttp.RequestCtx) {
	var req abcdto.CreateGameRequest
	if err := decodeBody(rc.PostBody(), &req); err != nil {
		s.writeError(rc, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(rc, err)
		return
	}
	ctx, cancel := s.requestContext()
	defer cancel()
	v, err := s.sessions.CreateGame(ctx, req.Guid, req.Nickname)
	if err != nil {
		s.writeError(rc, err)
		return
	}
	s.writeJSON(rc, fasthttp.StatusCreated, v)
}

func (s *Server) listGames(rc *fasthttp.RequestCtx) {
	ctx, cancel := s.requestContext()
	defer cancel()
	games, err := s.sessions.ListJoinable(ctx)
	if err != nil {
		s.writeError(rc, err)
		return
	}
	s.writeJSON(rc, fasthttp.StatusOK, games)
}

func (s *Server) viewGame(rc *fasthttp.RequestCtx, gameID string) {
	ctx, cancel := s.requestContext()
	defer cancel()
	v, err := s.sessions.View(ctx, gameID, string(rc.QueryArgs().Peek("guid")))
	if err != nil {
		s.writeError(rc, err)
		return
	}
	s.writeJSON(rc, fasthttp.StatusOK, v)
}

// promptImage renders the current black card; once the round is decided the winning
// answer is drawn next to it.
func (s *Server) promptImage(rc *fasthttp.RequestCtx, gameID string) {
	ctx, cancel := s.requestContext()
	defer cancel()
	v, err := s.sessions.View(ctx, gameID, "")
	if err != nil {
		s.writeError(rc, err)
		return
	}
	if v.Round == nil {
		s.writeError(rc, game.InvalidState("game %s has no round in play", gameID))
		return
	}
	png, err := cardimg.Render(promptOf(v))
	if err != nil {
		s.writeError(rc, game.Failure("render_prompt", err))
		return
	}
	rc.SetContentType("image/png")
	rc.Response.Header.Set(fasthttp.HeaderCacheControl, "no-store")
	rc.SetBody(png)
}

func promptOf(v *abcdto.GameView) cardimg.Prompt {
	r := v.Round
	p := cardimg.Prompt{Black: r.BlackCard.Text, Pick: r.BlackCard.Pick}
	if p.Black == "" {
		p.Black = r.BlackCard.ID
	}
	if r.WinnerGuid == "" {
		p.Footer = fmt.Sprintf("Round %d", r.Number)
		return p
	}
	for _, rev := range r.Revealed {
		if !rev.Winner {
			continue
		}
		for _, c := range rev.Cards {
			p.Answers = append(p.Answers, c.Text)
		}
	}
	winner := r.WinnerGuid
	for _, pl := range v.Players {
		if pl.Guid == r.WinnerGuid {
			winner = pl.Nickname
		}
	}
	p.Footer = fmt.Sprintf("Round %d: %s wins", r.Number, winner)
	return p
}
