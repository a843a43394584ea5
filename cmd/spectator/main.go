package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"puppet-arena/server/internal/spectator"
	"puppet-arena/server/internal/world"
)

func main() {
	var (
		url    string
		gameID string
		start  int
		kind   string
	)
	flag.StringVar(&url, "url", "ws://localhost:8080/ws", "arena WebSocket endpoint")
	flag.StringVar(&gameID, "game", "", "match id to follow")
	flag.IntVar(&start, "start", 0, "start a new match with this many puppets")
	flag.StringVar(&kind, "kind", "hunter", "agent type for puppets of a new match")
	flag.Parse()

	if gameID == "" && start <= 0 {
		fmt.Fprintln(os.Stderr, "either -game or -start is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	client, err := spectator.Dial(ctx, url)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if start > 0 {
		cfg := world.MatchConfig{}
		for i := 0; i < start; i++ {
			cfg.Puppets = append(cfg.Puppets, world.PuppetConfig{Type: kind})
		}
		err = client.StartGame(cfg)
	} else {
		err = client.Subscribe(gameID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if err := spectator.Run(client.Frames()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
