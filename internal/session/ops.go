package session

import (
    "context"
    "errors"
    "fmt"
    "sort"
    "strings"
    "time"

    "go.uber.org/zap"

    "github.com/hamitb/allbadcards/internal/cardcat"
    "github.com/hamitb/allbadcards/internal/game"
    "github.com/hamitb/allbadcards/internal/obslog"
    "github.com/hamitb/allbadcards/internal/store"
    "github.com/hamitb/allbadcards/pkg/abcdto"
)

const createAttempts = 3

// CreateGame opens a lobby with the caller as owner and only player.
func (m *Manager) CreateGame(ctx context.Context, ownerGuid, nickname string) (*abcdto.GameView, error) {
    const op = "create_game"
    ownerGuid, nickname = strings.TrimSpace(ownerGuid), strings.TrimSpace(nickname)
    log := obslog.Op(op, "", ownerGuid)
    if ownerGuid == "" || nickname == "" {
        return nil, m.reject(log, op, game.InvalidInput("guid and nickname required"))
    }
    now := m.now()
    g := &game.Game{
        OwnerGuid: ownerGuid,
        Players:   []*game.Player{{Guid: ownerGuid, Nickname: nickname, Connected: true, JoinedAt: now}},
        State:     game.StateLobby,
        CreatedAt: now,
        UpdatedAt: now,
    }
    var err error
    for attempt := 0; attempt < createAttempts; attempt++ {
        g.ID = m.newID()
        if err = m.store.Create(ctx, g); !errors.Is(err, store.ErrDuplicate) {
            break
        }
    }
    if err != nil {
        return nil, m.reject(log, op, game.Failure(op, err))
    }
    log = obslog.Op(op, g.ID, ownerGuid)
    log.Info("game_create", zap.String("nickname", nickname))
    m.afterPersist(ctx, log, game.StateLobby, g)
    return m.project(ctx, g, ownerGuid), nil
}

// JoinGame seats a player. A guid already in the game is treated as a reconnect and only
// refreshes nickname, spectating flag and presence.
func (m *Manager) JoinGame(ctx context.Context, playerGuid, gameID, nickname string, isSpectating, isReconnect bool, password string) (*abcdto.GameView, error) {
    playerGuid, nickname = strings.TrimSpace(playerGuid), strings.TrimSpace(nickname)
    if playerGuid == "" || nickname == "" {
        return nil, m.reject(obslog.Op("join_game", gameID, playerGuid), "join_game", game.InvalidInput("guid and nickname required"))
    }
    g, err := m.mutate(ctx, "join_game", gameID, playerGuid, func(g *game.Game) error {
        if g.State == game.StateGameComplete {
            return game.InvalidState("game is over")
        }
        if p := g.Player(playerGuid); p != nil {
            p.Nickname = nickname
            p.Connected = true
            if p.Guid != g.OwnerGuid && p.Spectating != isSpectating {
                m.setSpectating(g, p, isSpectating)
            }
            return nil
        }
        if g.Settings.Password != "" && password != g.Settings.Password {
            return game.Forbidden("wrong password")
        }
        p := &game.Player{Guid: playerGuid, Nickname: nickname, Spectating: isSpectating, Connected: true, JoinedAt: m.now()}
        g.Players = append(g.Players, p)
        if g.OwnerGuid == "" {
            g.OwnerGuid = p.Guid
            p.Spectating = false
        }
        if g.InProgress() && !p.Spectating {
            m.deal(g, p)
            p.Waiting = true
        }
        obslog.Op("join_game", g.ID, playerGuid).Info("player_join",
            zap.Bool("spectating", p.Spectating), zap.Bool("reconnect_flag", isReconnect), zap.Bool("waiting", p.Waiting))
        return nil
    })
    if err != nil {
        return nil, err
    }
    return m.project(ctx, g, playerGuid), nil
}

// setSpectating switches a seated player between playing and watching mid-game.
func (m *Manager) setSpectating(g *game.Game, p *game.Player, spectating bool) {
    p.Spectating = spectating
    if !g.InProgress() {
        return
    }
    if spectating {
        withdraw(g, p.Guid)
        p.Waiting = false
        m.reevaluate(g)
        return
    }
    m.deal(g, p)
    p.Waiting = true
}

func (m *Manager) KickPlayer(ctx context.Context, gameID, targetGuid, actingGuid string) (*abcdto.GameView, error) {
    g, err := m.mutate(ctx, "kick_player", gameID, actingGuid, func(g *game.Game) error {
        if !g.IsOwner(actingGuid) {
            return game.Forbidden("only the owner can kick")
        }
        if g.State == game.StateGameComplete {
            return game.InvalidState("game is over")
        }
        if targetGuid == actingGuid {
            return game.InvalidInput("cannot kick yourself")
        }
        if g.Player(targetGuid) == nil {
            return game.NotFound("player %s not in game", targetGuid)
        }
        m.dropPlayer(g, targetGuid)
        return nil
    })
    if err != nil {
        return nil, err
    }
    return m.project(ctx, g, actingGuid), nil
}

// LeaveGame removes the caller. An owner leaving hands the game to the earliest-joined player.
// A finished game keeps its roster until it is restarted.
func (m *Manager) LeaveGame(ctx context.Context, gameID, playerGuid string) (*abcdto.GameView, error) {
    g, err := m.mutate(ctx, "leave_game", gameID, playerGuid, func(g *game.Game) error {
        if g.Player(playerGuid) == nil {
            return game.NotFound("player %s not in game", playerGuid)
        }
        if g.State == game.StateGameComplete {
            return game.InvalidState("game is over")
        }
        m.dropPlayer(g, playerGuid)
        return nil
    })
    if err != nil {
        return nil, err
    }
    return m.project(ctx, g, playerGuid), nil
}

// SetConnected records presence. Disconnected players stop holding up the round.
func (m *Manager) SetConnected(ctx context.Context, gameID, playerGuid string, connected bool) (*abcdto.GameView, error) {
    g, err := m.mutate(ctx, "set_connected", gameID, playerGuid, func(g *game.Game) error {
        p := g.Player(playerGuid)
        if p == nil {
            return game.NotFound("player %s not in game", playerGuid)
        }
        if g.State == game.StateGameComplete {
            return game.InvalidState("game is over")
        }
        if p.Connected == connected || p.IsRandom {
            return errUnchanged
        }
        p.Connected = connected
        m.reevaluate(g)
        return nil
    })
    if err != nil {
        return nil, err
    }
    return m.project(ctx, g, playerGuid), nil
}

func (m *Manager) StartGame(ctx context.Context, gameID, ownerGuid string, includedPacks, includedExternalPacks []string, requiredRounds int, inviteLink, password string) (*abcdto.GameView, error) {
    const op = "start_game"
    gameID = strings.TrimSpace(gameID)
    log := obslog.Op(op, gameID, ownerGuid)
    if gameID == "" {
        return nil, m.reject(log, op, game.InvalidInput("game id required"))
    }
    // unlocked pre-check so strangers cannot trigger pack fetches; repeated under the lock
    current, err := m.load(ctx, gameID)
    if err != nil {
        return nil, m.reject(log, op, err)
    }
    if err := startable(current, ownerGuid); err != nil {
        return nil, m.reject(log, op, err)
    }
    if requiredRounds < 1 {
        return nil, m.reject(log, op, game.InvalidInput("rounds to win must be at least 1"))
    }
    pools, err := m.buildPools(ctx, dedupe(includedPacks), dedupe(includedExternalPacks))
    if err != nil {
        return nil, m.reject(log, op, err)
    }
    if len(pools.black) == 0 {
        return nil, m.reject(log, op, game.InvalidInput("selected packs have no black cards"))
    }
    if len(pools.white) < m.handSize {
        return nil, m.reject(log, op, game.InvalidInput("selected packs have %d white cards, need at least %d", len(pools.white), m.handSize))
    }

    g, err := m.mutate(ctx, op, gameID, ownerGuid, func(g *game.Game) error {
        if err := startable(g, ownerGuid); err != nil {
            return err
        }
        if n := g.ActivePlayers(); n < m.minPlayers {
            return game.InvalidInput("need at least %d players, have %d", m.minPlayers, n)
        }
        g.Settings = game.Settings{
            IncludedPacks:         pools.packs,
            IncludedExternalPacks: pools.external,
            RoundsToWin:           requiredRounds,
            InviteLink:            strings.TrimSpace(inviteLink),
            Password:              password,
        }
        g.Deck = game.Deck{White: game.NewPile(pools.white, m.rng), Black: game.NewPile(pools.black, m.rng)}
        for _, p := range g.Players {
            p.Score = 0
            p.Hand = nil
            p.Forfeits = 0
        }
        g.Round = nil
        g.StartedAt = m.now()
        return m.beginRound(ctx, g)
    })
    if err != nil {
        return nil, err
    }
    return m.project(ctx, g, ownerGuid), nil
}

func startable(g *game.Game, ownerGuid string) error {
    if !g.IsOwner(ownerGuid) {
        return game.Forbidden("only the owner can start the game")
    }
    if g.State != game.StateLobby {
        return game.InvalidState("game already started")
    }
    return nil
}

// cardPools holds the resolved pack selection: canonical ids plus every card reference.
type cardPools struct {
    packs    []string
    external []string
    white    []game.CardRef
    black    []game.CardRef
}

// buildPools resolves the selected packs. Duplicates are detected on the resolved pack id,
// so "abc", "ABC" and "ext:abc" all count as one external deck.
func (m *Manager) buildPools(ctx context.Context, packs, external []string) (*cardPools, error) {
    ids := append([]string(nil), packs...)
    for _, code := range external {
        ids = append(ids, cardcat.ExternalPrefix+code)
    }
    out := &cardPools{}
    seen := make(map[string]bool, len(ids))
    for _, id := range ids {
        p, err := m.cards.ResolvePack(ctx, id)
        if err != nil {
            if errors.Is(err, cardcat.ErrUnknownPack) {
                return nil, game.InvalidInput("unknown pack %s", id)
            }
            return nil, game.Failure("resolve_pack", err)
        }
        if seen[p.ID] {
            continue
        }
        seen[p.ID] = true
        if code, ok := strings.CutPrefix(p.ID, cardcat.ExternalPrefix); ok {
            out.external = append(out.external, code)
        } else {
            out.packs = append(out.packs, p.ID)
        }
        for i := range p.White {
            out.white = append(out.white, game.CardRef{Pack: p.ID, Index: i})
        }
        for i := range p.Black {
            out.black = append(out.black, game.CardRef{Pack: p.ID, Index: i})
        }
    }
    if len(seen) == 0 {
        return nil, game.InvalidInput("select at least one pack")
    }
    return out, nil
}

// RestartGame sends the game back to the lobby keeping roster and settings. Non-owners may
// only do this once the game is over.
func (m *Manager) RestartGame(ctx context.Context, gameID, playerGuid string) (*abcdto.GameView, error) {
    g, err := m.mutate(ctx, "restart_game", gameID, playerGuid, func(g *game.Game) error {
        if g.Player(playerGuid) == nil {
            return game.NotFound("player %s not in game", playerGuid)
        }
        if !g.IsOwner(playerGuid) && g.State != game.StateGameComplete {
            return game.Forbidden("only the owner can restart a running game")
        }
        g.State = game.StateLobby
        g.Round = nil
        g.Deck = game.Deck{}
        g.StartedAt = time.Time{}
        for _, p := range g.Players {
            p.Score = 0
            p.Hand = nil
            p.Waiting = false
            p.Forfeits = 0
        }
        return nil
    })
    if err != nil {
        return nil, err
    }
    return m.project(ctx, g, playerGuid), nil
}

// checkSubmitter returns the player if they may submit in the current round.
func checkSubmitter(g *game.Game, guid string) (*game.Player, error) {
    if g.State != game.StatePlaying {
        return nil, game.InvalidState("not accepting cards in state %s", g.State)
    }
    p := g.Player(guid)
    if p == nil {
        return nil, game.NotFound("player %s not in game", guid)
    }
    switch {
    case g.IsOwner(guid):
        return nil, game.Forbidden("the judge does not play cards")
    case p.Spectating:
        return nil, game.Forbidden("spectators do not play cards")
    case p.Waiting:
        return nil, game.Forbidden("wait for the next round")
    }
    if _, done := g.Round.Submissions[guid]; done {
        return nil, game.InvalidState("cards already submitted this round")
    }
    return p, nil
}

func (m *Manager) submit(g *game.Game, p *game.Player, ids []string) error {
    pick := g.Round.BlackCard.Pick
    if len(ids) != pick {
        return game.InvalidState("this prompt takes %d card(s), got %d", pick, len(ids))
    }
    refs, err := takeFromHand(p, ids)
    if err != nil {
        return err
    }
    p.Connected = true
    p.Hand = removeCards(p.Hand, refs)
    g.Round.Submissions[p.Guid] = refs
    return nil
}

func (m *Manager) PlayCard(ctx context.Context, gameID, playerGuid string, cardIDs []string) (*abcdto.GameView, error) {
    g, err := m.mutate(ctx, "play_card", gameID, playerGuid, func(g *game.Game) error {
        p, err := checkSubmitter(g, playerGuid)
        if err != nil {
            return err
        }
        if err := m.submit(g, p, cardIDs); err != nil {
            return err
        }
        m.reevaluate(g)
        return nil
    })
    if err != nil {
        return nil, err
    }
    return m.project(ctx, g, playerGuid), nil
}

// Forfeit submits (or auto-picks) cards and throws away the rest of the hand; a fresh hand
// is dealt when the next round starts.
func (m *Manager) Forfeit(ctx context.Context, gameID, playerGuid string, playedCards []string) (*abcdto.GameView, error) {
    g, err := m.mutate(ctx, "forfeit", gameID, playerGuid, func(g *game.Game) error {
        p, err := checkSubmitter(g, playerGuid)
        if err != nil {
            return err
        }
        ids := playedCards
        if len(ids) == 0 {
            pick := g.Round.BlackCard.Pick
            if len(p.Hand) < pick {
                return game.InvalidState("hand has fewer than %d cards", pick)
            }
            for _, c := range p.Hand[:pick] {
                ids = append(ids, c.String())
            }
        }
        if err := m.submit(g, p, ids); err != nil {
            return err
        }
        p.Hand = nil
        p.Forfeits++
        m.reevaluate(g)
        return nil
    })
    if err != nil {
        return nil, err
    }
    return m.project(ctx, g, playerGuid), nil
}

func (m *Manager) RevealNext(ctx context.Context, gameID, ownerGuid string) (*abcdto.GameView, error) {
    g, err := m.mutate(ctx, "reveal_next", gameID, ownerGuid, func(g *game.Game) error {
        if !g.IsOwner(ownerGuid) {
            return game.Forbidden("only the judge can reveal")
        }
        if g.State != game.StateJudgingRound {
            return game.InvalidState("not judging")
        }
        r := g.Round
        if len(r.Revealed) >= len(r.RevealOrder) {
            return game.InvalidState("all submissions revealed")
        }
        r.Revealed = append(r.Revealed, r.RevealOrder[len(r.Revealed)])
        return nil
    })
    if err != nil {
        return nil, err
    }
    return m.project(ctx, g, ownerGuid), nil
}

// SkipBlack swaps the prompt before any player has submitted. Bot submissions made for the
// old prompt are taken back and redone.
func (m *Manager) SkipBlack(ctx context.Context, gameID, ownerGuid string) (*abcdto.GameView, error) {
    g, err := m.mutate(ctx, "skip_black", gameID, ownerGuid, func(g *game.Game) error {
        if !g.IsOwner(ownerGuid) {
            return game.Forbidden("only the judge can skip the prompt")
        }
        if g.State != game.StatePlaying {
            return game.InvalidState("can only skip while cards are being played")
        }
        for guid := range g.Round.Submissions {
            if p := g.Player(guid); p == nil || !p.IsRandom {
                return game.InvalidState("cards were already submitted")
            }
        }
        for guid := range g.Round.Submissions {
            withdraw(g, guid)
        }
        black, err := m.drawBlack(ctx, g)
        if err != nil {
            return err
        }
        g.Round.BlackCard = black
        for _, p := range g.Players {
            if p.Waiting {
                p.Waiting = false
                m.deal(g, p)
            }
        }
        m.botsSubmit(g)
        m.reevaluate(g)
        return nil
    })
    if err != nil {
        return nil, err
    }
    return m.project(ctx, g, ownerGuid), nil
}

// StartRound and NextRound are the two entry points clients use to leave RoundComplete.
func (m *Manager) StartRound(ctx context.Context, gameID, ownerGuid string) (*abcdto.GameView, error) {
    return m.AdvanceRound(ctx, "start_round", gameID, ownerGuid)
}

func (m *Manager) NextRound(ctx context.Context, gameID, playerGuid string) (*abcdto.GameView, error) {
    return m.AdvanceRound(ctx, "next_round", gameID, playerGuid)
}

func (m *Manager) AdvanceRound(ctx context.Context, op, gameID, actor string) (*abcdto.GameView, error) {
    g, err := m.mutate(ctx, op, gameID, actor, func(g *game.Game) error {
        if g.Player(actor) == nil {
            return game.NotFound("player %s not in game", actor)
        }
        if !g.IsOwner(actor) && !m.playersCanAdvance {
            return game.Forbidden("only the owner can start the next round")
        }
        if g.State != game.StateRoundComplete {
            return game.InvalidState("round still in progress")
        }
        return m.beginRound(ctx, g)
    })
    if err != nil {
        return nil, err
    }
    return m.project(ctx, g, actor), nil
}

func (m *Manager) AddRandomPlayer(ctx context.Context, gameID, ownerGuid string) (*abcdto.GameView, error) {
    g, err := m.mutate(ctx, "add_random_player", gameID, ownerGuid, func(g *game.Game) error {
        if !g.IsOwner(ownerGuid) {
            return game.Forbidden("only the owner can add bots")
        }
        if g.State == game.StateGameComplete {
            return game.InvalidState("game is over")
        }
        bot := &game.Player{
            Guid:      botGuid(),
            Nickname:  m.botName(g),
            Connected: true,
            IsRandom:  true,
            JoinedAt:  m.now(),
        }
        g.Players = append(g.Players, bot)
        if g.InProgress() {
            m.deal(g, bot)
            bot.Waiting = true
        }
        return nil
    })
    if err != nil {
        return nil, err
    }
    return m.project(ctx, g, ownerGuid), nil
}

func (m *Manager) SelectWinnerCard(ctx context.Context, gameID, judgeGuid, winningPlayerGuid string) (*abcdto.GameView, error) {
    g, err := m.mutate(ctx, "select_winner", gameID, judgeGuid, func(g *game.Game) error {
        if !g.IsOwner(judgeGuid) {
            return game.Forbidden("only the judge can pick the winner")
        }
        if g.State != game.StateJudgingRound {
            return game.InvalidState("not judging")
        }
        r := g.Round
        if len(r.Revealed) < len(r.RevealOrder) {
            return game.InvalidState("reveal every submission first")
        }
        if _, ok := r.Submissions[winningPlayerGuid]; !ok {
            return game.InvalidInput("%s did not submit this round", winningPlayerGuid)
        }
        winner := g.Player(winningPlayerGuid)
        if winner == nil {
            return game.InvalidInput("%s is no longer in the game", winningPlayerGuid)
        }
        winner.Score++
        r.WinnerGuid = winner.Guid
        if g.Leader() != nil {
            g.State = game.StateGameComplete
        } else {
            g.State = game.StateRoundComplete
        }
        return nil
    })
    if err != nil {
        return nil, err
    }
    return m.project(ctx, g, judgeGuid), nil
}

// View projects the stored game for viewerGuid without locking.
func (m *Manager) View(ctx context.Context, gameID, viewerGuid string) (*abcdto.GameView, error) {
    g, err := m.Load(ctx, gameID)
    if err != nil {
        return nil, err
    }
    return m.project(ctx, g, viewerGuid), nil
}

// Load returns the stored document.
func (m *Manager) Load(ctx context.Context, gameID string) (*game.Game, error) {
    g, err := m.load(ctx, strings.TrimSpace(gameID))
    if err != nil {
        return nil, game.WithOp("view", err)
    }
    return g, nil
}

// ListJoinable lists open lobbies without a password, newest first.
func (m *Manager) ListJoinable(ctx context.Context) ([]abcdto.JoinableGame, error) {
    ids, err := m.store.JoinableIDs(ctx)
    if err != nil {
        return nil, game.Failure("list_joinable", err)
    }
    out := make([]abcdto.JoinableGame, 0, len(ids))
    for _, id := range ids {
        g, err := m.store.Get(ctx, id)
        if err != nil {
            if errors.Is(err, store.ErrNotFound) {
                continue
            }
            return nil, game.Failure("list_joinable", fmt.Errorf("load %s: %w", id, err))
        }
        if !joinable(g) {
            continue
        }
        owner := ""
        if p := g.Player(g.OwnerGuid); p != nil {
            owner = p.Nickname
        }
        out = append(out, abcdto.JoinableGame{ID: g.ID, OwnerNickname: owner, Players: len(g.Players), CreatedAt: g.CreatedAt})
    }
    sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
    return out, nil
}

func dedupe(in []string) []string {
    seen := make(map[string]bool, len(in))
    out := make([]string, 0, len(in))
    for _, s := range in {
        s = strings.TrimSpace(s)
        if s == "" || seen[s] {
            continue
        }
        seen[s] = true
        out = append(out, s)
    }
    return out
}
