package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"tradeTracker/config"
	"tradeTracker/internal/adapters/httpapi"
	"tradeTracker/internal/adapters/logger"
	"tradeTracker/internal/app"
	"tradeTracker/internal/bootstrap"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}
	httpCfg, err := httpapi.GetConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load HTTP configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (trade store)
	repo, err := bootstrap.OpenStore(cfg, appLogger.WithComponent("store"))
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trade store")
		log.Fatalf("FATAL: Failed to initialize trade store: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing trade store")
		}
	}()
	appLogger.Info(context.Background(), "Trade store initialized", map[string]interface{}{"driver": cfg.StoreDriver})

	// 4. Initialize Price Feed
	state, poller, err := bootstrap.NewPriceFeed(cfg, appLogger.WithComponent("pricefeed"))
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize price feed")
		log.Fatalf("FATAL: Failed to initialize price feed: %v", err)
	}
	appLogger.Info(context.Background(), "Price feed initialized", map[string]interface{}{"source": cfg.PriceSource})

	// 5. Initialize Application Service
	trackerService, err := app.NewTrackerService(cfg, appLogger.WithComponent("tracker"), repo, state, poller)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize tracker service")
		log.Fatalf("FATAL: Failed to initialize tracker service: %v", err)
	}

	// 6. Initialize HTTP API
	gate, err := httpapi.NewPasswordGate(cfg.SitePassword, cfg.SitePasswordHash)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to configure site password")
		log.Fatalf("FATAL: Failed to configure site password: %v", err)
	}
	if gate == nil {
		appLogger.Warn(context.Background(), "No SITE_PASSWORD configured, API is open")
	}
	server := httpapi.NewServer(httpCfg, trackerService, appLogger.WithComponent("http"), gate)
	trackerService.AddListener(server.Broadcast)

	// 7. Start the Service
	ctx, cancel := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	go func() {
		err := server.Run(ctx)
		if err != nil {
			cancel() // Stop the tracker too when the API cannot serve
		}
		serverDone <- err
	}()

	runErr := trackerService.Start(ctx)
	cancel()
	if err := <-serverDone; err != nil {
		appLogger.Error(context.Background(), err, "HTTP server exited with error")
	}
	if runErr != nil {
		appLogger.Error(context.Background(), runErr, "Tracker service exited with error")
		log.Fatalf("FATAL: Tracker service exited with error: %v", runErr)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
