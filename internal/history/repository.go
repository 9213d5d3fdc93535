package history

import (
    "context"
    "database/sql"
    "encoding/json"
    "fmt"
    "sort"
    "strings"
    "time"

    "github.com/lib/pq"

    "github.com/hamitb/allbadcards/internal/game"
)

const schema = `CREATE TABLE IF NOT EXISTS game_results (
    game_id         TEXT PRIMARY KEY,
    winner_guid     TEXT NOT NULL,
    winner_nickname TEXT NOT NULL,
    rounds_played   INTEGER NOT NULL,
    rounds_to_win   INTEGER NOT NULL,
    packs           TEXT[] NOT NULL DEFAULT '{}',
    scoreboard      JSONB NOT NULL,
    started_at      TIMESTAMPTZ,
    ended_at        TIMESTAMPTZ NOT NULL
)`

// Repository keeps a row per finished game.
type Repository struct {
    db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
    if strings.TrimSpace(databaseURL) == "" {
        return nil, fmt.Errorf("DATABASE_URL is required")
    }
    db, err := sql.Open("postgres", databaseURL)
    if err != nil {
        return nil, err
    }
    db.SetMaxOpenConns(16)
    db.SetMaxIdleConns(8)
    db.SetConnMaxLifetime(30 * time.Minute)
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := db.PingContext(ctx); err != nil {
        _ = db.Close()
        return nil, err
    }
    return &Repository{db: db}, nil
}

// NewWithDB wraps an existing handle.
func NewWithDB(db *sql.DB) *Repository { return &Repository{db: db} }

func (r *Repository) Close() error {
    if r == nil || r.db == nil { return nil }
    return r.db.Close()
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
    _, err := r.db.ExecContext(ctx, schema)
    return err
}

// ScoreLine is one entry of the stored scoreboard.
type ScoreLine struct {
    Guid     string `json:"guid"`
    Nickname string `json:"nickname"`
    Score    int    `json:"score"`
    Forfeits int    `json:"forfeits,omitempty"`
    IsRandom bool   `json:"is_random,omitempty"`
}

type Result struct {
    GameID         string
    WinnerGuid     string
    WinnerNickname string
    RoundsPlayed   int
    RoundsToWin    int
    Packs          []string
    Scoreboard     []ScoreLine
    StartedAt      time.Time
    EndedAt        time.Time
}

// ResultOf summarizes a finished game. Spectators are left off the scoreboard.
func ResultOf(g *game.Game) Result {
    res := Result{
        GameID:      g.ID,
        RoundsToWin: g.Settings.RoundsToWin,
        StartedAt:   g.StartedAt,
        EndedAt:     g.UpdatedAt,
    }
    if g.Round != nil {
        res.RoundsPlayed = g.Round.Number
    }
    res.Packs = append(res.Packs, g.Settings.IncludedPacks...)
    for _, code := range g.Settings.IncludedExternalPacks {
        res.Packs = append(res.Packs, "ext:"+code)
    }
    if w := g.Leader(); w != nil {
        res.WinnerGuid, res.WinnerNickname = w.Guid, w.Nickname
    }
    for _, p := range g.Players {
        if p.Spectating { continue }
        res.Scoreboard = append(res.Scoreboard, ScoreLine{Guid: p.Guid, Nickname: p.Nickname, Score: p.Score, Forfeits: p.Forfeits, IsRandom: p.IsRandom})
    }
    sort.SliceStable(res.Scoreboard, func(i, j int) bool { return res.Scoreboard[i].Score > res.Scoreboard[j].Score })
    if res.EndedAt.IsZero() {
        res.EndedAt = time.Now().UTC()
    }
    return res
}

// SaveResult upserts the final result of g.
func (r *Repository) SaveResult(ctx context.Context, g *game.Game) error {
    if r == nil || r.db == nil || g == nil {
        return nil
    }
    res := ResultOf(g)
    board, err := json.Marshal(res.Scoreboard)
    if err != nil {
        return err
    }
    var started any
    if !res.StartedAt.IsZero() {
        started = res.StartedAt
    }

    q := `INSERT INTO game_results (
        game_id, winner_guid, winner_nickname, rounds_played, rounds_to_win,
        packs, scoreboard, started_at, ended_at
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
      ON CONFLICT (game_id) DO UPDATE SET
        winner_guid=EXCLUDED.winner_guid,
        winner_nickname=EXCLUDED.winner_nickname,
        rounds_played=EXCLUDED.rounds_played,
        rounds_to_win=EXCLUDED.rounds_to_win,
        packs=EXCLUDED.packs,
        scoreboard=EXCLUDED.scoreboard,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at`

    _, err = r.db.ExecContext(ctx, q,
        res.GameID, res.WinnerGuid, res.WinnerNickname, res.RoundsPlayed, res.RoundsToWin,
        pq.Array(res.Packs), string(board), started, res.EndedAt,
    )
    return err
}

// Recent returns the latest finished games, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Result, error) {
    if limit <= 0 || limit > 100 { limit = 20 }
    rows, err := r.db.QueryContext(ctx, `SELECT game_id, winner_guid, winner_nickname, rounds_played, rounds_to_win,
        packs, scoreboard, started_at, ended_at FROM game_results ORDER BY ended_at DESC LIMIT $1`, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []Result
    for rows.Next() {
        var (
            res     Result
            board   []byte
            started sql.NullTime
        )
        if err := rows.Scan(&res.GameID, &res.WinnerGuid, &res.WinnerNickname, &res.RoundsPlayed, &res.RoundsToWin,
            pq.Array(&res.Packs), &board, &started, &res.EndedAt); err != nil {
            return nil, err
        }
        if started.Valid { res.StartedAt = started.Time }
        if err := json.Unmarshal(board, &res.Scoreboard); err != nil {
            return nil, fmt.Errorf("decode scoreboard %s: %w", res.GameID, err)
        }
        out = append(out, res)
    }
    return out, rows.Err()
}
