package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/bizgraph/registry-analytics/internal/config"
	"github.com/bizgraph/registry-analytics/internal/database"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.NewDefaultLoader().Load(context.Background())
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	wh := cfg.Warehouse

	fmt.Println("=== Running Warehouse Migrations ===")
	fmt.Printf("Connecting to warehouse: %s@%s:%s/%s\n", wh.Username, wh.Host, wh.Port, wh.Database)

	if err := database.VerifyDatabase(wh.Host, wh.Port, wh.Username, wh.Password, wh.Database); err != nil {
		log.Fatalf("Warehouse connectivity failed: %v", err)
	}
	fmt.Println("Warehouse connectivity verified")

	migrationConfig := database.MigrationConfig{
		DatabaseURL: fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			wh.Username, wh.Password, wh.Host, wh.Port, wh.Database, wh.SSLMode),
		MigrationsPath: migrationsPath(),
	}

	if err := database.RunMigrations(migrationConfig); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	fmt.Println("Warehouse migrations completed")
}

func migrationsPath() string {
	if path := os.Getenv("MIGRATIONS_PATH"); path != "" {
		return path
	}
	return "./migrations"
}
