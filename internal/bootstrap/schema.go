package bootstrap

import (
	"log"

	"github.com/gpus/backend/internal/infrastructure/database"
)

// InitializeSchema applies pending migrations
func InitializeSchema(conn *database.Connection) error {
	log.Println("🔧 Applying database migrations...")
	return database.Migrate(conn.DB())
}
