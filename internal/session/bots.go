package session

import (
    "strconv"

    "github.com/google/uuid"

    "github.com/hamitb/allbadcards/internal/game"
)

var (
    botAdjectives = []string{"Sleepy", "Grumpy", "Sneaky", "Fancy", "Soggy", "Mighty", "Nervous", "Shiny", "Wobbly", "Salty"}
    botNouns      = []string{"Toaster", "Walrus", "Pickle", "Robot", "Penguin", "Cactus", "Llama", "Muffin", "Goblin", "Teapot"}
)

func botGuid() string { return "bot-" + uuid.NewString() }

// botName picks an unused "<Adjective> <Noun>" nickname, numbering it if all are taken.
func (m *Manager) botName(g *game.Game) string {
    taken := make(map[string]bool, len(g.Players))
    for _, p := range g.Players {
        taken[p.Nickname] = true
    }
    var name string
    for i := 0; i < 8; i++ {
        name = botAdjectives[m.rng.IntN(len(botAdjectives))] + " " + botNouns[m.rng.IntN(len(botNouns))]
        if !taken[name] {
            return name
        }
    }
    base := name
    for n := 2; ; n++ {
        name = base + " " + strconv.Itoa(n)
        if !taken[name] {
            return name
        }
    }
}
