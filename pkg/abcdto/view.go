package abcdto

import "time"

type CardView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type BlackCardView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Pick int    `json:"pick"`
}

type PlayerView struct {
	Guid         string `json:"guid"`
	Nickname     string `json:"nickname"`
	IsOwner      bool   `json:"is_owner"`
	Spectating   bool   `json:"spectating"`
	Score        int    `json:"score"`
	Connected    bool   `json:"connected"`
	IsRandom     bool   `json:"is_random"`
	Waiting      bool   `json:"waiting"`
	HasSubmitted bool   `json:"has_submitted"`
	Forfeits     int    `json:"forfeits"`
	HandSize     int    `json:"hand_size"`
}

// RevealedView is one revealed submission. PlayerGuid is empty while the
// submission is still anonymous to the viewer.
type RevealedView struct {
	Cards      []CardView `json:"cards"`
	PlayerGuid string     `json:"player_guid,omitempty"`
	Winner     bool       `json:"winner,omitempty"`
}

type RoundView struct {
	Number     int            `json:"number"`
	BlackCard  BlackCardView  `json:"black_card"`
	Submitted  int            `json:"submitted"`
	Expected   int            `json:"expected"`
	Unrevealed int            `json:"unrevealed"`
	Revealed   []RevealedView `json:"revealed"`
	WinnerGuid string         `json:"winner_guid,omitempty"`
	// Played holds the viewer's own submission for this round.
	Played []CardView `json:"played,omitempty"`
}

type SettingsView struct {
	IncludedPacks         []string `json:"included_packs"`
	IncludedExternalPacks []string `json:"included_external_packs"`
	RoundsToWin           int      `json:"rounds_to_win"`
	InviteLink            string   `json:"invite_link,omitempty"`
	HasPassword           bool     `json:"has_password"`
}

type DeckView struct {
	WhiteRemaining  int `json:"white_remaining"`
	WhiteGeneration int `json:"white_generation"`
	BlackRemaining  int `json:"black_remaining"`
	BlackGeneration int `json:"black_generation"`
}

// GameView is a game projected for one viewer. Hand is only ever the viewer's own.
type GameView struct {
	ID         string       `json:"id"`
	Version    int64        `json:"version"`
	State      string       `json:"state"`
	OwnerGuid  string       `json:"owner_guid"`
	Viewer     string       `json:"viewer,omitempty"`
	Players    []PlayerView `json:"players"`
	Settings   SettingsView `json:"settings"`
	Round      *RoundView   `json:"round,omitempty"`
	Hand       []CardView   `json:"hand,omitempty"`
	Deck       DeckView     `json:"deck"`
	WinnerGuid string       `json:"winner_guid,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

type JoinableGame struct {
	ID            string    `json:"id"`
	OwnerNickname string    `json:"owner_nickname"`
	Players       int       `json:"players"`
	CreatedAt     time.Time `json:"created_at"`
}

type PackInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Black int    `json:"black"`
	White int    `json:"white"`
}

type PackList struct {
	Official   []PackInfo `json:"official"`
	ThirdParty []PackInfo `json:"third_party"`
}

// Event is published after every persisted mutation.
type Event struct {
	GameID  string `json:"game_id"`
	Version int64  `json:"version"`
	State   string `json:"state"`
}
