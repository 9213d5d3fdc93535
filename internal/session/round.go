package session

import (
    "context"
    "fmt"
    "sort"

    "github.com/hamitb/allbadcards/internal/game"
)

// eligible reports whether p must submit in the current round. The owner judges.
func eligible(g *game.Game, p *game.Player) bool {
    return p != nil && !p.Spectating && !p.Waiting && p.Connected && p.Guid != g.OwnerGuid
}

// allSubmitted is recomputed from the roster each time; it never trusts a cached count.
func allSubmitted(g *game.Game) bool {
    if g.Round == nil {
        return false
    }
    n := 0
    for _, p := range g.Players {
        if !eligible(g, p) {
            continue
        }
        n++
        if _, ok := g.Round.Submissions[p.Guid]; !ok {
            return false
        }
    }
    return n > 0
}

func expectedSubmitters(g *game.Game) int {
    n := 0
    for _, p := range g.Players {
        if eligible(g, p) {
            n++
        }
    }
    return n
}

// reevaluate moves the round forward or back after anything that touches submissions or
// the roster. Calling it twice in a row is a no-op.
func (m *Manager) reevaluate(g *game.Game) {
    switch g.State {
    case game.StatePlaying:
        if allSubmitted(g) {
            m.enterJudging(g)
        }
    case game.StateJudgingRound:
        if len(g.Round.Submissions) == 0 {
            g.State = game.StatePlaying
            g.Round.RevealOrder = nil
            g.Round.Revealed = nil
        }
    }
}

// enterJudging fixes a random reveal order for the current submitters.
func (m *Manager) enterJudging(g *game.Game) {
    order := make([]string, 0, len(g.Round.Submissions))
    for guid := range g.Round.Submissions {
        order = append(order, guid)
    }
    sort.Strings(order)
    m.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
    g.Round.RevealOrder = order
    g.Round.Revealed = nil
    g.State = game.StateJudgingRound
}

// withdraw cancels guid's submission, returning the cards to the hand if the player is
// still seated, and drops it from the reveal order.
func withdraw(g *game.Game, guid string) {
    if g.Round == nil {
        return
    }
    cards, ok := g.Round.Submissions[guid]
    if !ok {
        return
    }
    delete(g.Round.Submissions, guid)
    if p := g.Player(guid); p != nil {
        p.Hand = append(p.Hand, cards...)
    }
    g.Round.RevealOrder = without(g.Round.RevealOrder, guid)
    g.Round.Revealed = without(g.Round.Revealed, guid)
}

func without(list []string, s string) []string {
    out := list[:0]
    for _, v := range list {
        if v != s {
            out = append(out, v)
        }
    }
    if len(out) == 0 {
        return nil
    }
    return out
}

// dropPlayer removes guid from the roster, hands ownership on when needed and
// re-evaluates the round.
func (m *Manager) dropPlayer(g *game.Game, guid string) {
    withdraw(g, guid)
    g.RemovePlayer(guid)
    if g.OwnerGuid == guid {
        m.transferOwnership(g)
    }
    m.reevaluate(g)
}

func (m *Manager) transferOwnership(g *game.Game) {
    next := g.Successor()
    if next == nil {
        g.OwnerGuid = ""
        return
    }
    g.OwnerGuid = next.Guid
    next.Spectating = false
    next.Waiting = false
    // the new judge cannot also be a submitter
    withdraw(g, next.Guid)
}

// deal tops hand up to the configured size, skipping cards the player already holds.
func (m *Manager) deal(g *game.Game, p *game.Player) {
    held := make(map[game.CardRef]bool, len(p.Hand))
    for _, c := range p.Hand {
        held[c] = true
    }
    misses := 0
    for len(p.Hand) < m.handSize && misses < len(g.Deck.White.Pool) {
        c, ok := g.Deck.White.Draw(m.rng)
        if !ok {
            return
        }
        if held[c] {
            misses++
            continue
        }
        held[c] = true
        p.Hand = append(p.Hand, c)
    }
}

func (m *Manager) drawBlack(ctx context.Context, g *game.Game) (game.BlackCard, error) {
    ref, ok := g.Deck.Black.Draw(m.rng)
    if !ok {
        return game.BlackCard{}, game.InvalidState("no black cards in deck")
    }
    bc, err := m.cards.BlackCard(ctx, ref)
    if err != nil {
        return game.BlackCard{}, game.Failure("draw_black", fmt.Errorf("lookup %s: %w", ref, err))
    }
    pick := bc.Pick
    if pick < 1 {
        pick = 1
    }
    return game.BlackCard{Ref: ref, Pick: pick}, nil
}

// beginRound starts the next round: waiting players join in, hands are refilled, a new
// prompt is drawn and bots submit.
func (m *Manager) beginRound(ctx context.Context, g *game.Game) error {
    black, err := m.drawBlack(ctx, g)
    if err != nil {
        return err
    }
    number := 1
    if g.Round != nil {
        number = g.Round.Number + 1
    }
    for _, p := range g.Players {
        p.Waiting = false
        if !p.Spectating {
            m.deal(g, p)
        }
    }
    g.Round = &game.Round{Number: number, BlackCard: black, Submissions: map[string][]game.CardRef{}}
    g.State = game.StatePlaying
    m.botsSubmit(g)
    m.reevaluate(g)
    return nil
}

// botsSubmit plays random cards for every bot that still owes a submission.
func (m *Manager) botsSubmit(g *game.Game) {
    pick := g.Round.BlackCard.Pick
    for _, p := range g.Players {
        if !p.IsRandom || !eligible(g, p) {
            continue
        }
        if _, done := g.Round.Submissions[p.Guid]; done || len(p.Hand) < pick {
            continue
        }
        idx := m.rng.Perm(len(p.Hand))[:pick]
        sort.Ints(idx)
        cards := make([]game.CardRef, 0, pick)
        for _, i := range idx {
            cards = append(cards, p.Hand[i])
        }
        p.Hand = removeCards(p.Hand, cards)
        g.Round.Submissions[p.Guid] = cards
    }
}

// takeFromHand validates ids against the hand and returns the parsed refs in order.
func takeFromHand(p *game.Player, ids []string) ([]game.CardRef, error) {
    held := make(map[game.CardRef]int, len(p.Hand))
    for _, c := range p.Hand {
        held[c]++
    }
    refs := make([]game.CardRef, 0, len(ids))
    for _, id := range ids {
        ref, err := game.ParseCardRef(id)
        if err != nil {
            return nil, game.InvalidInput("%v", err)
        }
        if held[ref] == 0 {
            return nil, game.InvalidInput("card %s is not in hand", id)
        }
        held[ref]--
        refs = append(refs, ref)
    }
    return refs, nil
}

func removeCards(hand, cards []game.CardRef) []game.CardRef {
    drop := make(map[game.CardRef]int, len(cards))
    for _, c := range cards {
        drop[c]++
    }
    out := make([]game.CardRef, 0, len(hand))
    for _, c := range hand {
        if drop[c] > 0 {
            drop[c]--
            continue
        }
        out = append(out, c)
    }
    return out
}
