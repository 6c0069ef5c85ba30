// Seed creates the first system admin account.
// Set SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD along with the usual server
// environment. Exits cleanly if the email already exists.
package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"merchant-docs/backend/internal/config"
	"merchant-docs/backend/internal/db"
	"merchant-docs/backend/internal/security"
	"merchant-docs/backend/internal/user/domain"
	userrepo "merchant-docs/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	email := strings.ToLower(strings.TrimSpace(os.Getenv("SEED_ADMIN_EMAIL")))
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("seed: SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD are required")
	}
	if len(password) < 8 {
		log.Fatal("seed: SEED_ADMIN_PASSWORD must be at least 8 characters")
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users := userrepo.NewPostgresRepository(database)
	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		log.Fatalf("seed: lookup: %v", err)
	}
	if existing != nil {
		log.Printf("seed: %s already exists, nothing to do", email)
		return
	}

	hasher := security.NewHasher(cfg.Argon2MemoryKB, cfg.Argon2Time, cfg.Argon2Parallelism)
	digest, err := hasher.Hash([]byte(password))
	if err != nil {
		log.Fatalf("seed: hash: %v", err)
	}

	now := time.Now().UTC()
	admin := &domain.User{
		ID:             uuid.New().String(),
		Email:          email,
		Name:           "System Admin",
		PasswordDigest: digest,
		Role:           domain.RoleSystemAdmin,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := admin.Validate(); err != nil {
		log.Fatalf("seed: %v", err)
	}
	if err := users.Create(ctx, admin); err != nil {
		log.Fatalf("seed: create: %v", err)
	}
	log.Printf("seed: created system admin %s", email)
}
