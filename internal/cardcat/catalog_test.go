package cardcat

import (
    "context"
    "errors"
    "net"
    "os"
    "path/filepath"
    "testing"

    "github.com/valyala/fasthttp"
    "github.com/valyala/fasthttp/fasthttputil"

    "github.com/hamitb/allbadcards/internal/game"
    "github.com/hamitb/allbadcards/internal/remote"
)

type fakeSource struct {
    calls int
    pack  *Pack
    err   error
}

func (f *fakeSource) FetchPack(ctx context.Context, code string) (*Pack, error) {
    f.calls++
    if f.err != nil { return nil, f.err }
    cp := *f.pack
    return &cp, nil
}

func TestEmbeddedPacksLoad(t *testing.T) {
    c, err := New("", nil)
    if err != nil { t.Fatalf("New: %v", err) }
    types := c.ListPackTypes()
    if len(types.Official) != 2 || len(types.ThirdParty) != 1 {
        t.Fatalf("unexpected pack types: %+v", types)
    }
    if types.Official[0].ID != "base" || types.Official[0].Black != 10 || types.Official[0].White != 30 {
        t.Fatalf("unexpected base info: %+v", types.Official[0])
    }
    b, err := c.BlackCard(context.Background(), game.CardRef{Pack: "base", Index: 7})
    if err != nil { t.Fatalf("BlackCard: %v", err) }
    if b.Pick != 2 { t.Fatalf("pick = %d, want 2", b.Pick) }
    if _, err := c.WhiteCard(context.Background(), game.CardRef{Pack: "base", Index: 30}); !errors.Is(err, ErrUnknownCard) {
        t.Fatalf("expected ErrUnknownCard, got %v", err)
    }
    if _, err := c.ResolvePack(context.Background(), "nope"); !errors.Is(err, ErrUnknownPack) {
        t.Fatalf("expected ErrUnknownPack, got %v", err)
    }
}

func TestPickInferredFromBlanks(t *testing.T) {
    c, err := FromYAML([]byte(`
packs:
  - id: mini
    black:
      - text: "_ and _ walk into a bar."
      - text: "Why?"
    white: ["a", "b"]
`), nil)
    if err != nil { t.Fatalf("FromYAML: %v", err) }
    p, _ := c.ResolvePack(context.Background(), "mini")
    if p.Black[0].Pick != 2 || p.Black[1].Pick != 1 { t.Fatalf("picks = %d,%d", p.Black[0].Pick, p.Black[1].Pick) }
    if p.Type != PackOfficial || p.Name != "mini" { t.Fatalf("defaults not applied: %+v", p) }
}

func TestRejectsBadPacks(t *testing.T) {
    bad := []string{
        "packs:\n  - name: no id\n",
        "packs:\n  - id: ext:x\n",
        "packs:\n  - id: a\n    type: weird\n",
        "packs:\n  - id: a\n  - id: a\n",
    }
    for _, doc := range bad {
        if _, err := FromYAML([]byte(doc), nil); err == nil { t.Fatalf("expected error for %q", doc) }
    }
}

func TestOverrideDir(t *testing.T) {
    dir := t.TempDir()
    write := func(name, body string) {
        if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil { t.Fatalf("write: %v", err) }
    }
    write("10-base.yaml", "packs:\n  - id: base\n    name: Replaced\n    black: [{text: \"Only _.\"}]\n    white: [\"one\"]\n")
    write("20-house.yml", "packs:\n  - id: house\n    type: third_party\n    white: [\"x\"]\n")
    write("notes.txt", "ignored")

    c, err := New(dir, nil)
    if err != nil { t.Fatalf("New: %v", err) }
    p, _ := c.ResolvePack(context.Background(), "base")
    if p.Name != "Replaced" || len(p.White) != 1 { t.Fatalf("override not applied: %+v", p) }
    if len(c.ListPackTypes().ThirdParty) != 2 { t.Fatalf("house pack missing") }

    write("30-dup.yaml", "packs:\n  - id: house\n")
    if _, err := New(dir, nil); err == nil { t.Fatalf("expected duplicate override error") }
}

func TestExternalPacksCached(t *testing.T) {
    src := &fakeSource{pack: &Pack{Name: "Deck", Black: []BlackCard{{Text: "_?"}}, White: []string{"w1", "w2"}}}
    c, err := FromYAML([]byte("packs: []\n"), src)
    if err != nil { t.Fatalf("FromYAML: %v", err) }
    ctx := context.Background()
    for i := 0; i < 3; i++ {
        p, err := c.ResolvePack(ctx, "ext:abc12")
        if err != nil { t.Fatalf("ResolvePack: %v", err) }
        if p.ID != "ext:ABC12" || p.Type != PackThirdParty || p.Black[0].Pick != 1 { t.Fatalf("unexpected pack: %+v", p) }
    }
    if src.calls != 1 { t.Fatalf("external fetched %d times, want 1", src.calls) }
    w, err := c.WhiteCard(ctx, game.CardRef{Pack: "ext:ABC12", Index: 1})
    if err != nil || w != "w2" { t.Fatalf("WhiteCard = %q, %v", w, err) }

    disabled, _ := FromYAML([]byte("packs: []\n"), nil)
    if _, err := disabled.ResolvePack(ctx, "ext:abc12"); !errors.Is(err, ErrUnknownPack) {
        t.Fatalf("expected ErrUnknownPack without source, got %v", err)
    }
}

func TestHTTPSource(t *testing.T) {
    ln := fasthttputil.NewInmemoryListener()
    srv := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
        switch string(ctx.Path()) {
        case "/decks/ABC12":
            ctx.SetContentType("application/json")
            ctx.SetBodyString(`{"name":"Office","calls":[{"text":"_ is why I quit.","pick":1},{"text":" "}],"responses":["Meetings.","", "Reply-all."]}`)
        default:
            ctx.SetStatusCode(fasthttp.StatusNotFound)
        }
    }}
    go func() { _ = srv.Serve(ln) }()
    t.Cleanup(func() { _ = srv.Shutdown(); _ = ln.Close() })

    client := remote.NewClient("http://decks.test", remote.WithDial(func(string) (net.Conn, error) { return ln.Dial() }))
    src := NewHTTPSource(client)
    p, err := src.FetchPack(context.Background(), "ABC12")
    if err != nil { t.Fatalf("FetchPack: %v", err) }
    if p.Name != "Office" || len(p.Black) != 1 || len(p.White) != 2 { t.Fatalf("unexpected pack: %+v", p) }
    if _, err := src.FetchPack(context.Background(), "NOPE1"); !errors.Is(err, ErrUnknownPack) {
        t.Fatalf("expected ErrUnknownPack for 404, got %v", err)
    }
}
