package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"event-scheduler/internal/api"
	"event-scheduler/internal/config"
	"event-scheduler/internal/db"
	"event-scheduler/pkg/event"
	"event-scheduler/pkg/notify"
	"event-scheduler/pkg/permission"
	"event-scheduler/pkg/user"
	"event-scheduler/pkg/version"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	pool, err := db.ConnectURL(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	users := user.NewPgStore(pool)
	events := event.NewPgStore(pool)
	grants := permission.NewPgStore(pool)
	versions := version.NewPgStore(pool)

	// Ensure tables exist
	if err := users.EnsureTable(ctx); err != nil {
		log.Fatalf("ensure users table: %v", err)
	}
	if err := events.EnsureTable(ctx); err != nil {
		log.Fatalf("ensure events table: %v", err)
	}
	if err := grants.EnsureTable(ctx); err != nil {
		log.Fatalf("ensure permissions table: %v", err)
	}
	if err := versions.EnsureTable(ctx); err != nil {
		log.Fatalf("ensure versions table: %v", err)
	}

	hub := notify.NewHub()
	server := api.New(events, versions, grants, users, hub, cfg.PerPage)

	log.Printf("event-scheduler listening on %s", cfg.Listen)
	if err := http.ListenAndServe(cfg.Listen, server); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
