package session

import (
    "context"

    "go.uber.org/zap"

    "github.com/hamitb/allbadcards/internal/game"
    "github.com/hamitb/allbadcards/internal/obslog"
    "github.com/hamitb/allbadcards/pkg/abcdto"
)

// project builds what viewer may see: their own hand only, and submission authors only
// for the judge while judging and for everyone once the round is decided.
func (m *Manager) project(ctx context.Context, g *game.Game, viewer string) *abcdto.GameView {
    v := &abcdto.GameView{
        ID:        g.ID,
        Version:   g.Version,
        State:     string(g.State),
        OwnerGuid: g.OwnerGuid,
        Viewer:    viewer,
        Players:   make([]abcdto.PlayerView, 0, len(g.Players)),
        Settings: abcdto.SettingsView{
            IncludedPacks:         nonNil(g.Settings.IncludedPacks),
            IncludedExternalPacks: nonNil(g.Settings.IncludedExternalPacks),
            RoundsToWin:           g.Settings.RoundsToWin,
            InviteLink:            g.Settings.InviteLink,
            HasPassword:           g.Settings.Password != "",
        },
        Deck: abcdto.DeckView{
            WhiteRemaining:  g.Deck.White.Remaining(),
            WhiteGeneration: g.Deck.White.Generation,
            BlackRemaining:  g.Deck.Black.Remaining(),
            BlackGeneration: g.Deck.Black.Generation,
        },
        CreatedAt: g.CreatedAt,
        UpdatedAt: g.UpdatedAt,
    }
    for _, p := range g.Players {
        submitted := false
        if g.Round != nil {
            _, submitted = g.Round.Submissions[p.Guid]
        }
        v.Players = append(v.Players, abcdto.PlayerView{
            Guid:         p.Guid,
            Nickname:     p.Nickname,
            IsOwner:      p.Guid == g.OwnerGuid,
            Spectating:   p.Spectating,
            Score:        p.Score,
            Connected:    p.Connected,
            IsRandom:     p.IsRandom,
            Waiting:      p.Waiting,
            HasSubmitted: submitted,
            Forfeits:     p.Forfeits,
            HandSize:     len(p.Hand),
        })
    }
    if p := g.Player(viewer); p != nil {
        v.Hand = m.whiteViews(ctx, g.ID, p.Hand)
    }
    if g.State == game.StateGameComplete {
        if w := g.Leader(); w != nil {
            v.WinnerGuid = w.Guid
        }
    }
    if g.Round != nil && g.State != game.StateLobby {
        v.Round = m.projectRound(ctx, g, viewer)
    }
    return v
}

func (m *Manager) projectRound(ctx context.Context, g *game.Game, viewer string) *abcdto.RoundView {
    r := g.Round
    rv := &abcdto.RoundView{
        Number:    r.Number,
        BlackCard: abcdto.BlackCardView{ID: r.BlackCard.Ref.String(), Pick: r.BlackCard.Pick},
        Submitted: len(r.Submissions),
        Expected:  expectedSubmitters(g),
        Revealed:  []abcdto.RevealedView{},
    }
    if bc, err := m.cards.BlackCard(ctx, r.BlackCard.Ref); err == nil {
        rv.BlackCard.Text = bc.Text
    } else {
        obslog.L().Warn("card_lookup_failed", zap.String("game_id", g.ID), zap.String("card", rv.BlackCard.ID), zap.Error(err))
    }
    if g.State == game.StateJudgingRound {
        rv.Unrevealed = len(r.RevealOrder) - len(r.Revealed)
    }
    decided := g.State == game.StateRoundComplete || g.State == game.StateGameComplete
    showAuthors := decided || (g.State == game.StateJudgingRound && g.IsOwner(viewer))
    for _, guid := range r.Revealed {
        cards, ok := r.Submissions[guid]
        if !ok {
            continue
        }
        entry := abcdto.RevealedView{Cards: m.whiteViews(ctx, g.ID, cards)}
        if showAuthors {
            entry.PlayerGuid = guid
        }
        if decided && guid == r.WinnerGuid {
            entry.Winner = true
        }
        rv.Revealed = append(rv.Revealed, entry)
    }
    if decided {
        rv.WinnerGuid = r.WinnerGuid
    }
    if own, ok := r.Submissions[viewer]; ok {
        rv.Played = m.whiteViews(ctx, g.ID, own)
    }
    return rv
}

func (m *Manager) whiteViews(ctx context.Context, gameID string, refs []game.CardRef) []abcdto.CardView {
    out := make([]abcdto.CardView, 0, len(refs))
    for _, ref := range refs {
        cv := abcdto.CardView{ID: ref.String()}
        text, err := m.cards.WhiteCard(ctx, ref)
        if err != nil {
            obslog.L().Warn("card_lookup_failed", zap.String("game_id", gameID), zap.String("card", cv.ID), zap.Error(err))
        }
        cv.Text = text
        out = append(out, cv)
    }
    return out
}

func nonNil(s []string) []string {
    if s == nil {
        return []string{}
    }
    return s
}
