// Migrate applies or rolls back the embedded SQL migrations.
// Usage: migrate [up|down]. Reads DATABASE_URL from the environment or .env.
package main

import (
	"log"
	"os"

	"merchant-docs/backend/internal/config"
	"merchant-docs/backend/internal/db/migrate"
)

func main() {
	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := migrate.Run(cfg.DatabaseURL, direction); err != nil {
		log.Fatalf("migrate %s: %v", direction, err)
	}
	log.Printf("migrate %s: done", direction)
}
