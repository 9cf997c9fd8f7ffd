package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gpus/backend/internal/config"
	"github.com/gpus/backend/internal/infrastructure/database"
	"github.com/gpus/backend/internal/infrastructure/persistence"
	"github.com/gpus/backend/pkg/auth"
)

// devtoken signs a bearer token for an existing team member, for local
// testing against the API without the identity provider.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: devtoken <clerk_user_id> [ttl]")
	}
	clerkID := os.Args[1]
	ttl := time.Hour
	if len(os.Args) > 2 {
		d, err := time.ParseDuration(os.Args[2])
		if err != nil {
			log.Fatalf("Invalid ttl %q: %v", os.Args[2], err)
		}
		ttl = d
	}

	cfg := config.Load()
	if cfg.IsProduction() {
		log.Fatal("devtoken refuses to run in production")
	}

	conn, err := database.Connect(database.Options{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Name:     cfg.DBName,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = conn.Close() }()

	user, err := persistence.NewUserRepository(conn.DB()).GetByClerkID(context.Background(), clerkID)
	if err != nil {
		log.Fatalf("Failed to find user %s: %v", clerkID, err)
	}
	if user == nil {
		log.Fatalf("User %s not found", clerkID)
	}

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, "", cfg.JWTIssuer)
	if err != nil {
		log.Fatalf("Failed to create token manager: %v", err)
	}
	token, err := tokens.GenerateToken(auth.Identity{
		Subject: user.ClerkID,
		Name:    user.Name,
		Email:   user.Email,
		OrgID:   user.OrganizationID,
	}, ttl)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	log.Printf("✅ Token for %s (%s), valid for %s", user.Name, user.Role, ttl)
	fmt.Println(token)
}
