package cardcat

import (
    "context"
    "fmt"
    "net/url"
    "strings"

    "github.com/hamitb/allbadcards/internal/remote"
)

// HTTPSource fetches third-party decks from a cardcast-style API:
// GET <base>/decks/<code> -> {"name": ..., "calls": [{"text", "pick"}], "responses": [...]}.
type HTTPSource struct {
    client *remote.Client
}

func NewHTTPSource(client *remote.Client) *HTTPSource {
    return &HTTPSource{client: client}
}

type deckDoc struct {
    Name  string `json:"name"`
    Calls []struct {
        Text string `json:"text"`
        Pick int    `json:"pick"`
    } `json:"calls"`
    Responses []string `json:"responses"`
}

func (s *HTTPSource) FetchPack(ctx context.Context, code string) (*Pack, error) {
    if s == nil || s.client == nil {
        return nil, fmt.Errorf("external source not configured")
    }
    var doc deckDoc
    if err := s.client.GetJSON(ctx, "/decks/"+url.PathEscape(code), &doc); err != nil {
        if remote.IsStatus(err, 404) {
            return nil, fmt.Errorf("%w: external deck %s", ErrUnknownPack, code)
        }
        return nil, fmt.Errorf("fetch deck %s: %w", code, err)
    }
    p := &Pack{Name: strings.TrimSpace(doc.Name)}
    if p.Name == "" {
        p.Name = code
    }
    for _, c := range doc.Calls {
        if strings.TrimSpace(c.Text) == "" {
            continue
        }
        p.Black = append(p.Black, BlackCard{Text: c.Text, Pick: c.Pick})
    }
    for _, r := range doc.Responses {
        if strings.TrimSpace(r) != "" {
            p.White = append(p.White, r)
        }
    }
    if len(p.Black) == 0 && len(p.White) == 0 {
        return nil, fmt.Errorf("%w: external deck %s is empty", ErrUnknownPack, code)
    }
    return p, nil
}
