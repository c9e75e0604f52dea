package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/expenseflow-go/internal/rbac/server"
	"github.com/expenseflow-go/pkg/config"
	"github.com/expenseflow-go/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("rbac-agent")
	if err != nil {
		panic(err)
	}

	// Initialize logger
	log := logger.New(cfg.Logger.ToLoggerConfig())
	defer log.Sync()

	// Create and start server
	srv, err := server.New(cfg, log)
	if err != nil {
		log.Fatal("Failed to create server", "error", err)
	}

	// Start server in goroutine
	go func() {
		log.Info("Starting rbac agent", "port", cfg.Server.Port)
		if err := srv.Start(); err != nil {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down rbac agent...")

	timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("RBAC agent exited")
}
