// seed inserts development sample accounts for local testing.
// Idempotent: exits early when the dev account (dev@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"collection-vault/internal/account/domain"
	accountrepo "collection-vault/internal/account/repository"
	"collection-vault/internal/config"
	"collection-vault/internal/db"
	"collection-vault/internal/security"
)

const (
	devEmail    = "dev@example.com"
	adminEmail  = "admin@example.com"
	devPassword = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	accounts := accountrepo.NewPostgresRepository(pool)

	existing, err := accounts.GetByEmail(ctx, devEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	for email, role := range map[string]domain.Role{
		devEmail:   domain.RoleMember,
		adminEmail: domain.RoleAdmin,
	} {
		a := &domain.Account{
			ID:           uuid.New().String(),
			Email:        email,
			PasswordHash: passwordHash,
			Role:         role,
			Version:      1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := a.Validate(); err != nil {
			log.Fatalf("validate %s: %v", email, err)
		}
		if err := accounts.Create(ctx, a); err != nil {
			log.Fatalf("create %s: %v", email, err)
		}
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Member login: %s / %s\n", devEmail, devPassword)
	fmt.Printf("Admin login: %s / %s\n", adminEmail, devPassword)
}
