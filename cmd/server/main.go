package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bikestra/paper-tracker/auth"
	"github.com/bikestra/paper-tracker/internal/arxiv"
	"github.com/bikestra/paper-tracker/internal/config"
	"github.com/bikestra/paper-tracker/internal/db"
	"github.com/bikestra/paper-tracker/internal/logging"
	"github.com/bikestra/paper-tracker/internal/worker"
	"github.com/bikestra/paper-tracker/redis"
	"github.com/gin-gonic/gin"
)

const sessionTTL = 7 * 24 * time.Hour

func main() {
	// Load configuration
	config.LoadConfig()
	cfg := config.AppConfig
	logging.Setup(cfg.LogLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	conn, err := db.Open(cfg)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close(conn)

	if err := db.Migrate(conn); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// Redis is optional; without it every cache call is a no-op
	redisClient := redis.Connect(context.Background(), cfg.RedisAddress)
	if redisClient != nil {
		defer redisClient.Close()
	}
	cache := redis.NewCache(redisClient)

	pool := worker.NewWorkerPool(2, 100)

	checker, err := auth.NewPasswordChecker(cfg.AppPassword)
	if err != nil {
		slog.Error("password setup failed", "error", err)
		os.Exit(1)
	}

	fetcher := arxiv.NewClient(
		arxiv.WithBaseURL(cfg.ArxivBaseURL),
		arxiv.WithTimeout(cfg.ArxivTimeout),
	)

	app := newApp(deps{
		db:       conn,
		cache:    cache,
		pool:     pool,
		fetcher:  fetcher,
		password: checker,
		sessions: auth.NewSessions(cfg.SessionSecret, sessionTTL),
		config:   cfg,
	})
	router := newRouter(app)

	// Server configuration
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		slog.Info("server listening", "port", cfg.ServerPort, "env", cfg.Environment, "db", cfg.DBDriver)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	pool.Shutdown()

	slog.Info("server shutdown complete")
}
