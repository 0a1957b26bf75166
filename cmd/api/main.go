package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/rule-horror/internal/config"
	"github.com/jwebster45206/rule-horror/internal/engine"
	"github.com/jwebster45206/rule-horror/internal/game"
	"github.com/jwebster45206/rule-horror/internal/handlers"
	"github.com/jwebster45206/rule-horror/internal/logger"
	"github.com/jwebster45206/rule-horror/internal/middleware"
	"github.com/jwebster45206/rule-horror/internal/services"
	"github.com/jwebster45206/rule-horror/internal/services/events"
	"github.com/jwebster45206/rule-horror/internal/session"
	istorage "github.com/jwebster45206/rule-horror/internal/storage"
	"github.com/jwebster45206/rule-horror/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Rule Horror API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"oracle_provider", cfg.OracleProvider,
		"oracle_model", cfg.OracleModel,
		"storage_backend", cfg.StorageBackend)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var oracle services.Oracle
	switch cfg.OracleProvider {
	case "anthropic":
		oracle = services.NewAnthropicService(cfg.OracleAPIKey, cfg.OracleModel, log)
	case "venice":
		oracle = services.NewVeniceService(cfg.OracleAPIKey, cfg.OracleModel, log)
	case "gemini":
		gemini, err := services.NewGeminiService(ctx, cfg.OracleAPIKey, cfg.OracleModel, log)
		if err != nil {
			log.Error("Failed to create Gemini client", "error", err)
			os.Exit(1)
		}
		oracle = gemini
	default:
		oracle = services.NewOpenAIService(cfg.OracleAPIKey, cfg.OracleModel, cfg.OracleBaseURL, log)
	}
	log.Info("Oracle provider ready", "provider", cfg.OracleProvider)

	var (
		slots       storage.Storage
		broadcaster *events.Broadcaster
	)
	switch cfg.StorageBackend {
	case "sqlite":
		db, err := istorage.OpenSQLite(ctx, cfg.SQLitePath, log)
		if err != nil {
			log.Error("Failed to open slot database", "error", err, "path", cfg.SQLitePath)
			os.Exit(1)
		}
		slots = db
	case "memory":
		log.Warn("Using in-memory slots; saves are lost on restart")
		slots = storage.NewMemoryStorage()
	default:
		rs, err := istorage.NewRedisStorage(cfg.RedisURL, cfg.SlotTTL, log)
		if err != nil {
			log.Error("Failed to configure Redis", "error", err)
			os.Exit(1)
		}
		slots = rs
		if cfg.EventsActive() {
			broadcaster = events.NewBroadcaster(rs.Client(), log)
		}
	}

	if err := slots.Ping(ctx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	eng := engine.New(oracle, log,
		engine.WithParams(services.GenerateParams{
			Model:       cfg.OracleModel,
			Temperature: cfg.OracleTemperature,
			MaxTokens:   cfg.OracleMaxTokens,
			Timeout:     cfg.OracleTimeout,
		}),
		engine.WithFlavorProbability(cfg.FlavorEventProbability),
	)
	store := session.NewStore(slots, log)

	var publisher events.Publisher = events.Nop{}
	if broadcaster != nil {
		publisher = broadcaster
	}
	controller := game.NewController(store, eng, publisher, log)

	mux := http.NewServeMux()
	mux.Handle("GET /health", handlers.NewHealthHandler(slots, cfg.OracleProvider, log))
	mux.Handle("/v1/sessions/{key}", handlers.NewSessionHandler(store, log))
	mux.Handle("/v1/sessions/{key}/commands", handlers.NewCommandHandler(controller, log))
	if broadcaster != nil {
		mux.Handle("/v1/sessions/{key}/events", handlers.NewEventsHandler(broadcaster, log))
		log.Info("Session events enabled")
	}

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(log, mux),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: SSE streams stay open and turns wait on the oracle
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := slots.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
