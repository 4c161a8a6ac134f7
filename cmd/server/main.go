package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	accountrepo "collection-vault/internal/account/repository"
	"collection-vault/internal/audit"
	auditrepo "collection-vault/internal/audit/repository"
	"collection-vault/internal/auth/handler"
	"collection-vault/internal/auth/service"
	"collection-vault/internal/config"
	"collection-vault/internal/db"
	"collection-vault/internal/notify"
	"collection-vault/internal/permission"
	"collection-vault/internal/security"
	sessionrepo "collection-vault/internal/session/repository"
	appotel "collection-vault/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := appotel.NewProviders(ctx, cfg.OTLPEndpoint, "collection-vault", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}

	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	hasher := security.NewHasher(cfg.BcryptCost)
	auditor := audit.NewLogger(auditrepo.NewPostgresRepository(pool))

	svc := service.NewAuthService(
		accountrepo.NewPostgresRepository(pool),
		sessionrepo.NewPostgresRepository(pool),
		hasher,
		tokens,
		permission.Default(),
		auditor,
		notify.NewLogNotifier(),
		providers.TracerProvider.Tracer("collection-vault/auth"),
		cfg.RefreshTTL(),
		cfg.ResetTTL(),
		cfg.LockoutThreshold,
		cfg.LockoutFor(),
	)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	handler.RegisterRoutes(app, handler.NewAuthHandler(svc))

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
