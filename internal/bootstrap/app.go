// Package bootstrap assembles the process: configuration, storage, cache,
// queue, services and background workers shared by the server and worker.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gpus/backend/internal/application/services"
	"github.com/gpus/backend/internal/config"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/internal/infrastructure/cache"
	"github.com/gpus/backend/internal/infrastructure/database"
	"github.com/gpus/backend/internal/infrastructure/monitoring"
	"github.com/gpus/backend/internal/infrastructure/persistence"
	"github.com/gpus/backend/internal/infrastructure/queue"
	"github.com/gpus/backend/internal/infrastructure/realtime"
	"github.com/gpus/backend/pkg/asaas"
	"github.com/gpus/backend/pkg/auth"
	"github.com/gpus/backend/pkg/encryption"
)

const memorySweepInterval = time.Minute

// store is the cache backend, Redis when configured, memory otherwise
type store interface {
	ports.Cache
	ports.RateLimiter
}

// App holds every long-lived dependency of a process
type App struct {
	Config   *config.Config
	DB       *database.Connection
	Store    store
	Reporter *monitoring.Reporter
	Tokens   *auth.TokenManager
	Hub      *realtime.Hub
	Services *services.ServiceManager

	redis  *cache.RedisCache
	memory *cache.MemoryCache
	asynq  *queue.AsynqClient
	inline *queue.InlineQueue

	scheduler *services.SchedulerService
	stop      chan struct{}
}

// New connects to the database, migrates it and wires the services.
// Redis is optional: without it the rate limiter and role cache live in
// memory and tasks run in-process.
func New(cfg *config.Config) (*App, error) {
	if err := encryption.ValidateConfig(cfg.EncryptionKey); err != nil {
		return nil, fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
	}
	cipher, err := encryption.New(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
	}
	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTPublicKey, cfg.JWTIssuer)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT configuration: %w", err)
	}

	conn, err := database.Connect(database.Options{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Name:     cfg.DBName,
	})
	if err != nil {
		return nil, err
	}
	log.Println("✅ Database connection established")

	if err := InitializeSchema(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	app := &App{
		Config:   cfg,
		DB:       conn,
		Reporter: monitoring.NewReporter(cfg.RollbarToken, cfg.Environment, cfg.Version),
		Tokens:   tokens,
		Hub:      realtime.NewHub(),
		stop:     make(chan struct{}),
	}

	infra := services.Infrastructure{
		Cipher:                cipher,
		DefaultOrganizationID: cfg.DefaultOrganizationID,
	}
	app.connectCache(cfg)
	infra.Cache = app.Store
	infra.Limiter = app.Store

	if cfg.RedisURL != "" {
		client, err := queue.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Warning: task queue unavailable, running tasks inline: %v", err)
		} else {
			app.asynq = client
			infra.Queue = client
		}
	}
	if app.asynq == nil {
		app.inline = queue.NewInlineQueue(false)
		infra.Queue = app.inline
	}

	if cfg.AsaasAPIKey != "" {
		client, err := asaas.NewClient(asaas.Options{APIKey: cfg.AsaasAPIKey, BaseURL: cfg.AsaasBaseURL})
		if err != nil {
			log.Printf("⚠️  Warning: Asaas client disabled: %v", err)
		} else {
			infra.Asaas = client
		}
	}

	app.Services = services.NewServiceManager(conn.DB(), infra)
	if app.inline != nil {
		app.Services.RegisterTaskHandlers(app.inline)
	}
	log.Println("🔧 Service manager initialized")

	if _, err := RunAssertions(conn.DB(), cfg, false); err != nil {
		log.Printf("⚠️  Warning: startup assertions failed: %v", err)
	}
	return app, nil
}

func (a *App) connectCache(cfg *config.Config) {
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.RedisURL)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err = rc.Ping(ctx)
			cancel()
		}
		if err == nil {
			a.redis = rc
			a.Store = rc
			log.Println("✅ Redis cache connected")
			return
		}
		log.Printf("⚠️  Warning: Redis unavailable, falling back to memory cache: %v", err)
	}
	a.memory = cache.NewMemoryCache()
	a.Store = a.memory
	go a.sweepMemory()
}

func (a *App) sweepMemory() {
	ticker := time.NewTicker(memorySweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.memory.Sweep()
		case <-a.stop:
			return
		}
	}
}

// StartBackground subscribes the realtime hub and contact sync to domain
// events and starts the outbox worker and the cron scheduler.
func (a *App) StartBackground() {
	a.Services.SubscribeRealtime(a.Hub, realtime.Encode)
	a.Services.SubscribeContactSync()

	a.Services.StartOutboxWorker(a.Config.OutboxInterval)
	log.Printf("📤 Outbox event worker started (%s polling)", a.Config.OutboxInterval)

	a.scheduler = services.NewSchedulerService(persistence.NewSchedulerRepository(a.DB.DB()), a.Config.SchedulerInterval)
	a.Services.RegisterJobs(a.scheduler)
	go a.scheduler.Start()
	log.Printf("⏰ Scheduler service started (%s polling)", a.Config.SchedulerInterval)
}

// Close stops the workers and releases every connection
func (a *App) Close() {
	close(a.stop)
	if a.scheduler != nil {
		a.scheduler.Stop()
		log.Println("🛑 Scheduler stopped")
	}
	a.Services.StopOutboxWorker()
	a.Hub.Close()
	if a.inline != nil {
		a.inline.Wait()
	}
	if a.asynq != nil {
		_ = a.asynq.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.Reporter.Close()
	if err := a.DB.Close(); err != nil {
		log.Printf("⚠️  Warning: failed to close database: %v", err)
	}
}
