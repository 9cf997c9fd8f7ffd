package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/bootstrap"
	"github.com/gpus/backend/internal/config"
	"github.com/gpus/backend/internal/interfaces/middleware"
	"github.com/gpus/backend/pkg/validator"
)

func main() {
	cfg := config.Load()

	if err := validator.RegisterBindingTags(); err != nil {
		log.Fatalf("Failed to register validators: %v", err)
	}

	app, err := bootstrap.New(cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(middleware.Recovery(app.Reporter))
	router.Use(middleware.ReportErrors(app.Reporter))
	router.Use(middleware.Cors(cfg.CORSAllowedOrigins))

	registerRoutes(router, app)

	app.StartBackground()

	log.Println("\n═══════════════════════════════════════════════════════════════════════════")
	log.Println("🚀 GPUS CRM Backend Started Successfully")
	log.Println("═══════════════════════════════════════════════════════════════════════════")
	log.Printf("\n📍 Server:         http://localhost:%s", cfg.Port)
	log.Printf("📇 CRM API:        http://localhost:%s/api", cfg.Port)
	log.Printf("🌐 Public forms:   http://localhost:%s/public", cfg.Port)
	log.Printf("🔔 Webhooks:       http://localhost:%s/webhooks", cfg.Port)
	log.Printf("💚 Health check:   http://localhost:%s/health\n", cfg.Port)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	app.Close()
	log.Println("Server exiting")
}
