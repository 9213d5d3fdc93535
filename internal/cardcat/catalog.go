package cardcat

import (
    "context"
    "embed"
    "fmt"
    "io/fs"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "sync"

    yaml "gopkg.in/yaml.v3"

    "github.com/hamitb/allbadcards/internal/game"
)

//go:embed packs.yaml
var defaultFiles embed.FS

// ExternalPrefix marks pack ids served by an ExternalSource rather than the yaml files.
const ExternalPrefix = "ext:"

type PackType string

const (
    PackOfficial   PackType = "official"
    PackThirdParty PackType = "third_party"
)

type BlackCard struct {
    Text string `yaml:"text" json:"text"`
    Pick int    `yaml:"pick" json:"pick"`
}

type Pack struct {
    ID    string      `yaml:"id" json:"id"`
    Name  string      `yaml:"name" json:"name"`
    Type  PackType    `yaml:"type" json:"type"`
    Black []BlackCard `yaml:"black" json:"black"`
    White []string    `yaml:"white" json:"white"`
}

type PackInfo struct {
    ID    string `json:"id"`
    Name  string `json:"name"`
    Black int    `json:"black"`
    White int    `json:"white"`
}

type PackTypes struct {
    Official   []PackInfo `json:"official"`
    ThirdParty []PackInfo `json:"third_party"`
}

// ExternalSource resolves cardcast-style deck codes.
type ExternalSource interface {
    FetchPack(ctx context.Context, code string) (*Pack, error)
}

// Catalog is the read-only card index. Local packs are fixed after New; external packs
// are fetched once and cached.
type Catalog struct {
    mu       sync.RWMutex
    packs    map[string]*Pack
    external ExternalSource
    fetched  map[string]*Pack
}

type packFile struct {
    Packs []*Pack `yaml:"packs"`
}

// New loads the embedded packs, then applies *.yaml files from overrideDir if provided.
func New(overrideDir string, external ExternalSource) (*Catalog, error) {
    c := &Catalog{packs: make(map[string]*Pack), external: external, fetched: make(map[string]*Pack)}
    raw, err := fs.ReadFile(defaultFiles, "packs.yaml")
    if err != nil {
        return nil, fmt.Errorf("read embedded packs: %w", err)
    }
    if err := c.applyYAML(raw); err != nil {
        return nil, fmt.Errorf("embedded packs: %w", err)
    }
    if strings.TrimSpace(overrideDir) != "" {
        if err := c.applyDir(overrideDir); err != nil {
            return nil, err
        }
    }
    return c, nil
}

// FromYAML builds a catalog from a single document, without the embedded defaults.
func FromYAML(b []byte, external ExternalSource) (*Catalog, error) {
    c := &Catalog{packs: make(map[string]*Pack), external: external, fetched: make(map[string]*Pack)}
    if err := c.applyYAML(b); err != nil {
        return nil, err
    }
    return c, nil
}

func (c *Catalog) applyDir(dir string) error {
    entries, err := os.ReadDir(dir)
    if err != nil {
        return fmt.Errorf("read pack dir: %w", err)
    }
    files := make([]string, 0, len(entries))
    for _, e := range entries {
        if e.IsDir() { continue }
        ext := strings.ToLower(filepath.Ext(e.Name()))
        if ext == ".yaml" || ext == ".yml" { files = append(files, e.Name()) }
    }
    sort.Strings(files)
    seen := make(map[string]string) // pack id -> filename
    for _, name := range files {
        b, err := os.ReadFile(filepath.Join(dir, name))
        if err != nil { return fmt.Errorf("read %s: %w", name, err) }
        packs, err := parsePacks(b)
        if err != nil { return fmt.Errorf("parse %s: %w", name, err) }
        for _, p := range packs {
            if prev, ok := seen[p.ID]; ok {
                return fmt.Errorf("duplicate override pack %q in %s and %s", p.ID, prev, name)
            }
            seen[p.ID] = name
        }
        c.install(packs)
    }
    return nil
}

func (c *Catalog) applyYAML(b []byte) error {
    packs, err := parsePacks(b)
    if err != nil { return err }
    c.install(packs)
    return nil
}

func (c *Catalog) install(packs []*Pack) {
    c.mu.Lock()
    defer c.mu.Unlock()
    for _, p := range packs {
        c.packs[p.ID] = p
    }
}

func parsePacks(b []byte) ([]*Pack, error) {
    var f packFile
    if err := yaml.Unmarshal(b, &f); err != nil {
        return nil, err
    }
    ids := make(map[string]bool, len(f.Packs))
    for _, p := range f.Packs {
        if err := normalize(p); err != nil { return nil, err }
        if ids[p.ID] { return nil, fmt.Errorf("pack %q defined twice", p.ID) }
        ids[p.ID] = true
    }
    return f.Packs, nil
}

func normalize(p *Pack) error {
    if p == nil { return fmt.Errorf("empty pack entry") }
    p.ID = strings.TrimSpace(p.ID)
    if p.ID == "" { return fmt.Errorf("pack without id") }
    if strings.HasPrefix(p.ID, ExternalPrefix) { return fmt.Errorf("pack id %q uses reserved prefix %q", p.ID, ExternalPrefix) }
    if p.Name == "" { p.Name = p.ID }
    switch p.Type {
    case PackOfficial, PackThirdParty:
    case "":
        p.Type = PackOfficial
    default:
        return fmt.Errorf("pack %q: unknown type %q", p.ID, p.Type)
    }
    for i := range p.Black {
        if p.Black[i].Pick <= 0 {
            p.Black[i].Pick = blanks(p.Black[i].Text)
        }
    }
    return nil
}

// blanks counts "_" placeholders; a prompt without any still takes one card.
func blanks(text string) int {
    if n := strings.Count(text, "_"); n > 0 {
        return n
    }
    return 1
}

// ResolvePack returns the pack by id. Ids starting with ExternalPrefix go to the external source.
func (c *Catalog) ResolvePack(ctx context.Context, packID string) (*Pack, error) {
    packID = strings.TrimSpace(packID)
    if code, ok := strings.CutPrefix(packID, ExternalPrefix); ok {
        return c.resolveExternal(ctx, code)
    }
    c.mu.RLock()
    p, ok := c.packs[packID]
    c.mu.RUnlock()
    if !ok {
        return nil, fmt.Errorf("%w: %s", ErrUnknownPack, packID)
    }
    return p, nil
}

func (c *Catalog) resolveExternal(ctx context.Context, code string) (*Pack, error) {
    code = strings.ToUpper(strings.TrimSpace(code))
    if code == "" { return nil, fmt.Errorf("%w: empty external code", ErrUnknownPack) }
    c.mu.RLock()
    p, ok := c.fetched[code]
    c.mu.RUnlock()
    if ok { return p, nil }
    if c.external == nil {
        return nil, fmt.Errorf("%w: external packs disabled (%s)", ErrUnknownPack, code)
    }
    p, err := c.external.FetchPack(ctx, code)
    if err != nil { return nil, err }
    p.ID = ExternalPrefix + code
    p.Type = PackThirdParty
    for i := range p.Black {
        if p.Black[i].Pick <= 0 { p.Black[i].Pick = blanks(p.Black[i].Text) }
    }
    c.mu.Lock()
    if prev, ok := c.fetched[code]; ok {
        p = prev
    } else {
        c.fetched[code] = p
    }
    c.mu.Unlock()
    return p, nil
}

// ListPackTypes enumerates local packs grouped by type, sorted by id.
func (c *Catalog) ListPackTypes() PackTypes {
    c.mu.RLock()
    defer c.mu.RUnlock()
    ids := make([]string, 0, len(c.packs))
    for id := range c.packs { ids = append(ids, id) }
    sort.Strings(ids)
    out := PackTypes{Official: []PackInfo{}, ThirdParty: []PackInfo{}}
    for _, id := range ids {
        p := c.packs[id]
        info := PackInfo{ID: p.ID, Name: p.Name, Black: len(p.Black), White: len(p.White)}
        if p.Type == PackThirdParty {
            out.ThirdParty = append(out.ThirdParty, info)
        } else {
            out.Official = append(out.Official, info)
        }
    }
    return out
}

func (c *Catalog) BlackCard(ctx context.Context, ref game.CardRef) (BlackCard, error) {
    p, err := c.ResolvePack(ctx, ref.Pack)
    if err != nil { return BlackCard{}, err }
    if ref.Index < 0 || ref.Index >= len(p.Black) {
        return BlackCard{}, fmt.Errorf("%w: black %s", ErrUnknownCard, ref)
    }
    return p.Black[ref.Index], nil
}

func (c *Catalog) WhiteCard(ctx context.Context, ref game.CardRef) (string, error) {
    p, err := c.ResolvePack(ctx, ref.Pack)
    if err != nil { return "", err }
    if ref.Index < 0 || ref.Index >= len(p.White) {
        return "", fmt.Errorf("%w: white %s", ErrUnknownCard, ref)
    }
    return p.White[ref.Index], nil
}

// Errors
var (
    ErrUnknownPack = errf("unknown pack")
    ErrUnknownCard = errf("unknown card")
)

type staticErr string
func (e staticErr) Error() string { return string(e) }
func errf(s string) error { return staticErr(s) }
