package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	internalhttp "github.com/spriteops/key-server/internal/api/http"
	"github.com/spriteops/key-server/internal/batch"
	"github.com/spriteops/key-server/internal/mail"
	"github.com/spriteops/key-server/internal/metrics"
	"github.com/spriteops/key-server/internal/ratelimit"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("Key Server", "version", AppVersion)

	store, err := batch.NewStore(config.Batch.DataFile, config.Batch.CredDir)
	if err != nil {
		slog.Error("Failed to open batch store", "error", err)
		os.Exit(1)
	}

	limiter := ratelimit.NewLimiter(
		config.Http.RateLimit.Max,
		time.Duration(config.Http.RateLimit.WindowMs)*time.Millisecond,
	)

	services := &internalhttp.Services{
		Store:       store,
		Limiter:     limiter,
		Mailer:      mail.NewSender(config.Mail),
		Metrics:     metrics.NewCollector(),
		AdminSecret: config.Http.AdminSecret,
		BaseURL:     config.Http.BaseURL,
		LinkTTL:     time.Duration(config.Batch.LinkTTLHours) * time.Hour,
	}

	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	go store.StartCleanup(cleanupCtx, time.Duration(config.Batch.SweepIntervalMinutes)*time.Minute)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, services)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: engine,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down server...")
	cancelCleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Shutdown complete")
}
