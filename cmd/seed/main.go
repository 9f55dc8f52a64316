// seed inserts development credentials for local testing.
// Idempotent: skips inserts if the dev identity already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Jeffr-K/metagate/internal/config"
	"github.com/Jeffr-K/metagate/internal/db"
	"github.com/Jeffr-K/metagate/internal/identity/domain"
	"github.com/Jeffr-K/metagate/internal/identity/repository"
	"github.com/Jeffr-K/metagate/internal/security"
)

const (
	devIdentity = "dev@example.com"
	devSecret   = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	creds := repository.NewPostgresRepository(conn)
	ctx := context.Background()

	existing, err := creds.GetByIdentity(ctx, devIdentity)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Printf("Seed already applied (%s exists). Skipping.", devIdentity)
		os.Exit(0)
	}

	verifier, err := security.NewVerifier(cfg.BcryptCost, cfg.MaxConcurrentHashes)
	if err != nil {
		log.Fatalf("verifier: %v", err)
	}
	hash, err := verifier.Hash(ctx, []byte(devSecret))
	if err != nil {
		log.Fatalf("hash secret: %v", err)
	}

	if err := creds.Upsert(ctx, &domain.Credential{
		Identity:   devIdentity,
		SecretHash: hash,
		UpdatedAt:  time.Now().UTC(),
	}); err != nil {
		log.Fatalf("create dev credential: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev login: %s / %s\n", devIdentity, devSecret)
}
