package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"canvas-studio-backend/internal/api"
	"canvas-studio-backend/internal/api/routes"
	v1 "canvas-studio-backend/internal/api/routes/v1"
	"canvas-studio-backend/internal/canvas/generation"
	"canvas-studio-backend/internal/canvas/persistence"
	"canvas-studio-backend/internal/canvas/session"
	"canvas-studio-backend/internal/config"
	"canvas-studio-backend/internal/faults"
	"canvas-studio-backend/internal/libraries"
	"canvas-studio-backend/internal/providers"
	"canvas-studio-backend/internal/repo"
	"canvas-studio-backend/internal/retry"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx := context.Background()

	// Connect to database
	if err := config.ConnectDB(cfg.DBURL); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer config.CloseDB()

	// Run migrations
	if err := config.MigrateAllModels(cfg.RunMigrations); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Local shape cache
	if err := config.ConnectCache(cfg.CacheDBPath); err != nil {
		log.Fatal("Failed to open cache:", err)
	}
	defer config.CloseCache()
	cache, err := repo.NewLocalCache(ctx, config.CacheDB)
	if err != nil {
		log.Fatal("Failed to prepare cache:", err)
	}

	// Asset storage is optional; thumbnails are refused without it
	var assets *libraries.AssetStorage
	if cfg.GCSBucket != "" {
		assets, err = libraries.NewAssetStorage(ctx, cfg.GCPCredentials, cfg.GCSBucket)
		if err != nil {
			log.Fatalf("failed to init gcp clients: %v", err)
		}
		defer assets.Close()
	}

	provider, subscriber, closeProvider := newProvider(ctx, cfg, assets, logger)
	defer closeProvider()

	hub := libraries.NewHub()
	go hub.Run()
	defer hub.Stop()

	projects := repo.NewProjectRepository(config.DB)
	sessions := session.NewManager(session.Deps{
		Documents: func(userID uuid.UUID) persistence.DocumentStore {
			return repo.NewDocuments(projects, userID)
		},
		Cache:      cache,
		Provider:   provider,
		Subscriber: subscriber,
		Hub:        hub,
		Generation: generationConfig(cfg),
		Sync:       syncConfig(cfg),
		Logger:     logger,
	})

	// Create and configure Fiber app
	app := api.NewServer()

	// Register routes
	svc := v1.Services{Sessions: sessions, Hub: hub}
	if assets != nil {
		svc.Assets = assets
	}
	routes.Register(app, svc)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Println("server shutdown:", err)
		}
	}()

	// Start server
	if err := api.StartServer(app, cfg.Port); err != nil {
		log.Println("Server stopped:", err)
	}

	// flush every open project before the process exits
	closeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := sessions.CloseAll(closeCtx); err != nil {
		log.Println("Failed to save open projects:", err)
	}
}

func newProvider(ctx context.Context, cfg *config.Config, assets *libraries.AssetStorage, logger *slog.Logger) (generation.Provider, generation.Subscriber, func()) {
	switch cfg.Provider {
	case "gemini":
		if assets == nil {
			log.Fatal("the gemini provider needs GCS_BUCKET to store results")
		}
		p, err := providers.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID, assets, logger)
		if err != nil {
			log.Fatal("Failed to init gemini provider:", err)
		}
		return p, p, p.Close
	default:
		p := providers.NewHTTPProvider(cfg.ProviderBaseURL, cfg.ProviderAPIKey)
		if cfg.ProviderWSURL == "" {
			return p, nil, func() {}
		}
		return p, providers.NewWSSubscriber(cfg.ProviderWSURL, cfg.ProviderAPIKey), func() {}
	}
}

func generationConfig(cfg *config.Config) generation.Config {
	gc := generation.DefaultConfig()
	gc.PollInterval = cfg.PollInterval
	gc.MaxPollAttempts = cfg.MaxPollAttempts
	gc.SubmitRetry = retryPolicy(cfg)
	return gc
}

func syncConfig(cfg *config.Config) persistence.Config {
	sc := persistence.DefaultConfig()
	sc.Debounce = cfg.SaveDebounce
	sc.Retry = retryPolicy(cfg)
	return sc
}

func retryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.RetryAttempts,
		BaseDelay:   cfg.RetryBase,
		MaxDelay:    30 * time.Second,
		Retryable:   faults.IsConnectivity,
	}
}
