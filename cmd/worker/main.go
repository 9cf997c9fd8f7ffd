package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gpus/backend/internal/bootstrap"
	"github.com/gpus/backend/internal/config"
	"github.com/gpus/backend/internal/infrastructure/queue"
)

func main() {
	cfg := config.Load()
	if cfg.RedisURL == "" {
		log.Fatal("REDIS_URL is required to run the worker")
	}

	app, err := bootstrap.New(cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer app.Close()

	srv, err := queue.NewAsynqServer(cfg.RedisURL, cfg.AsynqConcurrency, cfg.AsynqQueues)
	if err != nil {
		log.Fatalf("Failed to create task server: %v", err)
	}
	app.Services.RegisterTaskHandlers(srv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("⚙️  Task worker started (concurrency %d)", cfg.AsynqConcurrency)
	if err := srv.Run(ctx); err != nil {
		log.Printf("❌ Task worker stopped: %v", err)
		return
	}
	log.Println("Worker exiting")
}
