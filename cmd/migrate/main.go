package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"designlens/internal/config"
	"designlens/internal/repository"
)

const usage = `
designlens - Database CLI Tool

Usage:
  migrate [command]

Commands:
  up          Apply every pending migration
  down        Revert the most recent migration
  status      List migrations and when they were applied

Examples:
  go run ./cmd/migrate up
  go run ./cmd/migrate status
`

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := repository.NewPool(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	migrator, err := repository.NewMigrator(pool)
	if err != nil {
		log.Fatalf("load migrations: %v", err)
	}

	switch command := flag.Arg(0); command {
	case "up":
		runUp(ctx, migrator)
	case "down":
		runDown(ctx, migrator)
	case "status":
		showStatus(ctx, migrator)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runUp(ctx context.Context, m *repository.Migrator) {
	log.Println("Running migrations UP...")
	applied, err := m.Up(ctx)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	if len(applied) == 0 {
		log.Println("Nothing to apply")
		return
	}
	for _, v := range applied {
		log.Printf("applied %s", v)
	}
	log.Println("Migrations completed successfully")
}

func runDown(ctx context.Context, m *repository.Migrator) {
	log.Println("Rolling back the latest migration...")
	reverted, err := m.Down(ctx)
	if err != nil {
		log.Fatalf("Rollback failed: %v", err)
	}
	if reverted == "" {
		log.Println("Nothing to roll back")
		return
	}
	log.Printf("reverted %s", reverted)
}

func showStatus(ctx context.Context, m *repository.Migrator) {
	statuses, err := m.Status(ctx)
	if err != nil {
		log.Fatalf("Status failed: %v", err)
	}
	for _, s := range statuses {
		if s.Applied && s.AppliedAt != nil {
			log.Printf("%-28s applied %s", s.Version, s.AppliedAt.Format(time.RFC3339))
			continue
		}
		log.Printf("%-28s pending", s.Version)
	}
}
