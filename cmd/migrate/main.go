package main

import (
	"log"
	"os"

	"github.com/gpus/backend/internal/config"
	"github.com/gpus/backend/internal/infrastructure/database"
)

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg := config.Load()
	conn, err := database.Connect(database.Options{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Name:     cfg.DBName,
	})
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer func() { _ = conn.Close() }()

	switch command {
	case "up":
		err = database.Migrate(conn.DB())
	case "down":
		err = database.Rollback(conn.DB())
	case "status":
		err = database.MigrationStatus(conn.DB())
	default:
		log.Fatalf("unknown command %q (use up, down or status)", command)
	}
	if err != nil {
		log.Fatalf("❌ migrate %s failed: %v", command, err)
	}
	log.Printf("✅ migrate %s done", command)
}
