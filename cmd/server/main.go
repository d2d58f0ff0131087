package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jaescalo/property-deployer/internal/api"
	"github.com/jaescalo/property-deployer/internal/config"
	"github.com/jaescalo/property-deployer/internal/papi"
	"github.com/jaescalo/property-deployer/internal/service"
	"github.com/jaescalo/property-deployer/internal/storage/sql"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Create data directory if needed (for SQLite)
	if cfg.Database.Driver == "sqlite3" {
		dir := "data"
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}

	// Initialize storage
	store, err := sql.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Initialize the property API client (or the shim for testing)
	var client papi.PropertyClient
	if cfg.UseFileShim() {
		log.Printf("Using shim for property API: %s", cfg.Edgegrid.FileShim)
		shim, err := papi.NewShim(cfg.Edgegrid.FileShim)
		if err != nil {
			log.Fatalf("Failed to initialize property API shim: %v", err)
		}
		client = shim
	} else {
		c, err := papi.New(cfg.Edgegrid.EdgercPath, cfg.Edgegrid.EdgercSection, papi.Options{
			AccountKey:   cfg.Edgegrid.AccountKey,
			NotifyEmails: cfg.Deploy.GetNotifyEmails(),
			AckWarnings:  cfg.Deploy.AckWarnings,
		})
		if err != nil {
			log.Fatalf("Failed to initialize property API client: %v", err)
		}
		client = c
	}

	// Initialize the orchestration engine
	orch := service.NewOrchestrator(client, service.Options{
		PollInterval:      cfg.Deploy.PollInterval,
		ActivationTimeout: cfg.Deploy.ActivationTimeout,
		Retry: service.RetryPolicy{
			Attempts: cfg.Deploy.RetryAttempts,
			Base:     cfg.Deploy.RetryBase,
		},
	})
	deployments := service.NewDeploymentService(store, orch, 0)

	// Create router
	router := api.NewRouter(store, deployments, orch.Resolver(), cfg.Deploy.BootstrapAPIKey)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting Property Deployer on http://%s", cfg.Server.Addr())
	log.Printf("Press Ctrl+C to stop")

	// Start server in goroutine
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
