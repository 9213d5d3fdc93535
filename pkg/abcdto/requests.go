package abcdto

import "strings"

const (
	maxNicknameLen  = 32
	maxCardsPerPlay = 3
)

type CreateGameRequest struct {
	Guid     string `json:"guid"`
	Nickname string `json:"nickname"`
}

func (r CreateGameRequest) Validate() error {
	if err := requireGuid(r.Guid); err != nil {
		return err
	}
	return checkNickname(r.Nickname)
}

type JoinGameRequest struct {
	Guid        string `json:"guid"`
	Nickname    string `json:"nickname"`
	Spectating  bool   `json:"spectating"`
	IsReconnect bool   `json:"is_reconnect"`
	Password    string `json:"password,omitempty"`
}

func (r JoinGameRequest) Validate() error {
	if err := requireGuid(r.Guid); err != nil {
		return err
	}
	return checkNickname(r.Nickname)
}

// ActorRequest covers every operation whose only argument is the acting player.
type ActorRequest struct {
	Guid string `json:"guid"`
}

func (r ActorRequest) Validate() error { return requireGuid(r.Guid) }

type KickPlayerRequest struct {
	Guid   string `json:"guid"`
	Target string `json:"target_guid"`
}

func (r KickPlayerRequest) Validate() error {
	if err := requireGuid(r.Guid); err != nil {
		return err
	}
	if strings.TrimSpace(r.Target) == "" {
		return invalid("target_guid", "required")
	}
	return nil
}

type StartGameRequest struct {
	Guid                  string   `json:"guid"`
	IncludedPacks         []string `json:"included_packs"`
	IncludedExternalPacks []string `json:"included_external_packs"`
	RoundsToWin           int      `json:"rounds_to_win"`
	InviteLink            string   `json:"invite_link,omitempty"`
	Password              string   `json:"password,omitempty"`
}

func (r StartGameRequest) Validate() error {
	if err := requireGuid(r.Guid); err != nil {
		return err
	}
	if len(r.IncludedPacks)+len(r.IncludedExternalPacks) == 0 {
		return invalid("included_packs", "at least one pack required")
	}
	if r.RoundsToWin < 1 {
		return invalid("rounds_to_win", "must be at least 1")
	}
	return nil
}

type PlayCardRequest struct {
	Guid  string   `json:"guid"`
	Cards []string `json:"cards"`
}

func (r PlayCardRequest) Validate() error {
	if err := requireGuid(r.Guid); err != nil {
		return err
	}
	if len(r.Cards) == 0 {
		return invalid("cards", "required")
	}
	return checkCards(r.Cards)
}

// ForfeitRequest may carry no cards; the server then picks for the player.
type ForfeitRequest struct {
	Guid  string   `json:"guid"`
	Cards []string `json:"cards,omitempty"`
}

func (r ForfeitRequest) Validate() error {
	if err := requireGuid(r.Guid); err != nil {
		return err
	}
	return checkCards(r.Cards)
}

type SelectWinnerRequest struct {
	Guid   string `json:"guid"`
	Winner string `json:"winner_guid"`
}

func (r SelectWinnerRequest) Validate() error {
	if err := requireGuid(r.Guid); err != nil {
		return err
	}
	if strings.TrimSpace(r.Winner) == "" {
		return invalid("winner_guid", "required")
	}
	return nil
}

func requireGuid(g string) error {
	if strings.TrimSpace(g) == "" {
		return invalid("guid", "required")
	}
	return nil
}

func checkNickname(n string) error {
	n = strings.TrimSpace(n)
	if n == "" {
		return invalid("nickname", "required")
	}
	if len([]rune(n)) > maxNicknameLen {
		return invalid("nickname", "too long")
	}
	return nil
}

func checkCards(cards []string) error {
	if len(cards) > maxCardsPerPlay {
		return invalid("cards", "too many cards")
	}
	seen := make(map[string]bool, len(cards))
	for _, c := range cards {
		if strings.TrimSpace(c) == "" {
			return invalid("cards", "empty card id")
		}
		if seen[c] {
			return invalid("cards", "duplicate card "+c)
		}
		seen[c] = true
	}
	return nil
}
