// Package main provides the dex importer: it loads YAML species and move
// content and upserts it into the PostgreSQL catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cassieroh/bulkcalc/internal/config"
	"github.com/cassieroh/bulkcalc/internal/game/dex"
	"github.com/cassieroh/bulkcalc/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	sourceDir := flag.String("source", "content/dex", "path to YAML dex content directory")
	flag.Parse()

	if *sourceDir == "" {
		fmt.Fprintln(os.Stderr, "usage: import-dex -config <file> -source <dir>")
		os.Exit(1)
	}

	start := time.Now()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	registry, err := dex.LoadDir(*sourceDir)
	if err != nil {
		log.Fatalf("loading dex content: %v", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewDexRepository(pool.DB())
	for _, s := range registry.AllSpecies() {
		if err := repo.UpsertSpecies(ctx, s); err != nil {
			log.Fatalf("importing species %q: %v", s.Name, err)
		}
	}
	for _, m := range registry.AllMoves() {
		if err := repo.UpsertMove(ctx, m); err != nil {
			log.Fatalf("importing move %q: %v", m.Name, err)
		}
	}

	fmt.Printf("imported %d species and %d moves in %s\n",
		registry.SpeciesCount(), registry.MoveCount(),
		time.Since(start).Round(time.Millisecond))
}
