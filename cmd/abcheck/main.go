package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hamitb/allbadcards/internal/remote"
	"github.com/hamitb/allbadcards/pkg/abcdto"
)

func main() {
	baseURL := flag.String("api", envOr("ABC_API_URL", "http://localhost:5000"), "API base URL")
	wsURL := flag.String("ws", os.Getenv("ABC_WS_URL"), "websocket base URL, e.g. ws://localhost:5001")
	gameID := flag.String("game", "", "game id to follow")
	guid := flag.String("guid", "", "viewer guid for the followed game")
	window := flag.Duration("window", 10*time.Second, "how long to follow the game stream")
	flag.Parse()

	client := remote.NewClient(*baseURL, remote.WithTimeout(8*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	packs, err := client.Packs(ctx)
	if err != nil {
		log.Printf("/api/packs error: %v", err)
	} else {
		log.Printf("/api/packs ok: official=%d third_party=%d", len(packs.Official), len(packs.ThirdParty))
		for _, p := range append(packs.Official, packs.ThirdParty...) {
			fmt.Printf("  %-16s %-32s black=%d white=%d\n", p.ID, p.Name, p.Black, p.White)
		}
	}

	var games []abcdto.JoinableGame
	if err := client.GetJSON(ctx, "/api/games", &games); err != nil {
		log.Printf("/api/games error: %v (code=%s)", err, remote.ErrorCode(err))
	} else {
		log.Printf("/api/games ok: %d joinable", len(games))
	}

	if *wsURL == "" || *gameID == "" {
		log.Println("ws or game not set; skipping stream check")
		return
	}

	stream := remote.NewGameStream(*wsURL, *gameID, *guid, 5)
	stream.OnStateChange(func(state remote.StreamState) {
		log.Printf("stream state: %s", state)
	})
	stream.OnView(func(v *abcdto.GameView) {
		round := 0
		if v.Round != nil {
			round = v.Round.Number
		}
		fmt.Printf("view game=%s version=%d state=%s round=%d players=%d\n", v.ID, v.Version, v.State, round, len(v.Players))
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := stream.Connect(cctx); err != nil {
		log.Printf("stream connect error: %v", err)
		return
	}

	// Observe for a short window
	t := time.NewTimer(*window)
	<-t.C

	_ = stream.Close(context.Background())
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
