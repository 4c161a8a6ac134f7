// Sweeper periodically revokes expired sessions and soft-deletes session rows
// past the retention window. Set DATABASE_URL; SWEEP_INTERVAL and
// SESSION_RETENTION tune the cadence.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collection-vault/internal/config"
	"collection-vault/internal/db"
	sessionrepo "collection-vault/internal/session/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("sweeper: DATABASE_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("sweeper: shutting down...")
		cancel()
	}()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	sessions := sessionrepo.NewPostgresRepository(pool)
	interval := cfg.SweepEvery()
	retention := cfg.Retention()
	log.Printf("sweeper: every %s, retention %s", interval, retention)

	sweep(ctx, sessions, retention)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("sweeper: stopped")
			return
		case <-ticker.C:
			sweep(ctx, sessions, retention)
		}
	}
}

func sweep(ctx context.Context, sessions sessionrepo.Repository, retention time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	now := time.Now().UTC()
	revoked, deleted, err := sessions.SweepExpired(runCtx, now, now.Add(-retention))
	if err != nil {
		log.Printf("sweeper: sweep failed: %v", err)
		return
	}
	if revoked > 0 || deleted > 0 {
		log.Printf("sweeper: revoked=%d deleted=%d", revoked, deleted)
	}
}
