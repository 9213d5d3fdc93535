package game

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// State represents the game lifecycle.
type State string

const (
	StateLobby         State = "LOBBY"
	StatePlaying       State = "PLAYING"
	StateJudgingRound  State = "JUDGING_ROUND"
	StateRoundComplete State = "ROUND_COMPLETE"
	StateGameComplete  State = "GAME_COMPLETE"
)

// CardRef addresses a single card inside a pack.
type CardRef struct {
	Pack  string `json:"pack"`
	Index int    `json:"index"`
}

func (r CardRef) String() string { return r.Pack + ":" + strconv.Itoa(r.Index) }

// ParseCardRef parses "<pack>:<index>". Pack ids may contain colons (external packs),
// so the index is taken after the last one.
func ParseCardRef(s string) (CardRef, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return CardRef{}, fmt.Errorf("malformed card id %q", s)
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil || n < 0 {
		return CardRef{}, fmt.Errorf("malformed card index in %q", s)
	}
	return CardRef{Pack: s[:i], Index: n}, nil
}

// BlackCard is the round prompt; Pick is the number of white cards each player submits.
type BlackCard struct {
	Ref  CardRef `json:"ref"`
	Pick int     `json:"pick"`
}

// Settings are chosen by the owner at StartGame and survive RestartGame.
type Settings struct {
	IncludedPacks         []string `json:"included_packs"`
	IncludedExternalPacks []string `json:"included_external_packs"`
	RoundsToWin           int      `json:"rounds_to_win"`
	InviteLink            string   `json:"invite_link,omitempty"`
	Password              string   `json:"password,omitempty"`
}

type Player struct {
	Guid       string    `json:"guid"`
	Nickname   string    `json:"nickname"`
	Spectating bool      `json:"spectating"`
	Score      int       `json:"score"`
	Hand       []CardRef `json:"hand"`
	Connected  bool      `json:"connected"`
	Forfeits   int       `json:"forfeits"`
	IsRandom   bool      `json:"is_random,omitempty"`
	// Waiting marks a player who joined mid-round; cleared when the next round starts.
	Waiting  bool      `json:"waiting,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

type Round struct {
	Number      int                  `json:"number"`
	BlackCard   BlackCard            `json:"black_card"`
	Submissions map[string][]CardRef `json:"submissions"`
	RevealOrder []string             `json:"reveal_order,omitempty"`
	Revealed    []string             `json:"revealed,omitempty"`
	WinnerGuid  string               `json:"winner_guid,omitempty"`
}

// Game is the persisted aggregate. Version increases by one on every stored mutation.
type Game struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	OwnerGuid string    `json:"owner_guid"`
	Players   []*Player `json:"players"`
	Settings  Settings  `json:"settings"`
	State     State     `json:"state"`
	Round     *Round    `json:"round,omitempty"`
	Deck      Deck      `json:"deck"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// Player returns the player with guid or nil.
func (g *Game) Player(guid string) *Player {
	if g == nil {
		return nil
	}
	for _, p := range g.Players {
		if p.Guid == guid {
			return p
		}
	}
	return nil
}

func (g *Game) IsOwner(guid string) bool { return g != nil && guid != "" && g.OwnerGuid == guid }

// ActivePlayers counts non-spectating players.
func (g *Game) ActivePlayers() int {
	n := 0
	for _, p := range g.Players {
		if !p.Spectating {
			n++
		}
	}
	return n
}

// RemovePlayer drops the player from the roster and reports whether it was present.
func (g *Game) RemovePlayer(guid string) (*Player, bool) {
	for i, p := range g.Players {
		if p.Guid == guid {
			g.Players = append(g.Players[:i], g.Players[i+1:]...)
			return p, true
		}
	}
	return nil, false
}

// Successor picks the next owner: earliest-joined non-spectator, then earliest spectator.
// Players is kept in join order so the first match wins.
func (g *Game) Successor() *Player {
	for _, p := range g.Players {
		if !p.Spectating {
			return p
		}
	}
	if len(g.Players) > 0 {
		return g.Players[0]
	}
	return nil
}

// Leader returns the first player whose score reached RoundsToWin.
func (g *Game) Leader() *Player {
	if g.Settings.RoundsToWin <= 0 {
		return nil
	}
	for _, p := range g.Players {
		if p.Score >= g.Settings.RoundsToWin {
			return p
		}
	}
	return nil
}

// InProgress reports whether rounds are being played (hands are live).
func (g *Game) InProgress() bool {
	switch g.State {
	case StatePlaying, StateJudgingRound, StateRoundComplete:
		return true
	}
	return false
}

// Clone deep-copies the aggregate so callers can mutate freely.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	c := *g
	c.Settings.IncludedPacks = append([]string(nil), g.Settings.IncludedPacks...)
	c.Settings.IncludedExternalPacks = append([]string(nil), g.Settings.IncludedExternalPacks...)
	c.Players = make([]*Player, len(g.Players))
	for i, p := range g.Players {
		cp := *p
		cp.Hand = append([]CardRef(nil), p.Hand...)
		c.Players[i] = &cp
	}
	if g.Round != nil {
		r := *g.Round
		r.Submissions = make(map[string][]CardRef, len(g.Round.Submissions))
		for k, v := range g.Round.Submissions {
			r.Submissions[k] = append([]CardRef(nil), v...)
		}
		r.RevealOrder = append([]string(nil), g.Round.RevealOrder...)
		r.Revealed = append([]string(nil), g.Round.Revealed...)
		c.Round = &r
	}
	c.Deck = g.Deck.clone()
	return &c
}
