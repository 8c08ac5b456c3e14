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

	"github.com/lysyi3m/rss-deck/app/api"
	"github.com/lysyi3m/rss-deck/app/cfg"
	"github.com/lysyi3m/rss-deck/app/database"
	"github.com/lysyi3m/rss-deck/app/enrich"
	"github.com/lysyi3m/rss-deck/app/feed"
	"github.com/lysyi3m/rss-deck/app/proxy"
	"github.com/lysyi3m/rss-deck/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting RSS Deck server", "version", appCfg.Version)

	db, err := database.NewConnection(
		appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations applied", "version", version, "dirty", dirty)

	feedRepo := database.NewFeedRepository(db)
	articleRepo := database.NewArticleRepository(db)
	logRepo := database.NewLogRepository(db)

	if seeded, err := feed.SeedSources(appCfg.SourcesDir, feedRepo); err != nil {
		slog.Warn("Failed to seed subscriptions", "dir", appCfg.SourcesDir, "error", err)
	} else if seeded > 0 {
		slog.Info("Seeded subscriptions", "count", seeded)
	}

	proxyResolver := proxy.NewResolver(proxy.Config{
		Enabled: appCfg.ProxyEnabled,
		URL:     appCfg.ProxyURL,
		Auto:    appCfg.ProxyAuto,
	}, 30*time.Second)

	fetchLogger := feed.NewFetchLogger(logRepo)
	parser := feed.NewParser()
	fetcher := feed.NewFetcher(feedRepo, articleRepo, parser, fetchLogger,
		proxyResolver, appCfg.UserAgent, appCfg.GatewayBaseURL)
	extractor := feed.NewContentExtractor(proxyResolver, appCfg.UserAgent)

	cache, err := enrich.NewRedisCache(appCfg.RedisAddr)
	if err != nil {
		slog.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	translator := enrich.NewChatTranslator(enrich.Settings{
		Provider:    appCfg.EnrichProvider,
		BaseURL:     appCfg.EnrichBaseURL,
		Model:       appCfg.EnrichModel,
		APIKey:      appCfg.EnrichAPIKey,
		Temperature: appCfg.EnrichTemperature,
		TargetLang:  appCfg.EnrichTargetLang,
	}, nil)
	queue := enrich.NewQueue(cache, translator, appCfg.EnrichConcurrency)

	runner := tasks.NewRunner(feedRepo, articleRepo, fetcher, extractor, appCfg.WorkerCount)
	runner.Start()
	defer runner.Stop()
	slog.Info("Task runner started", "workers", appCfg.WorkerCount)

	handler := api.NewHandler(feedRepo, articleRepo, logRepo, runner, queue, extractor, proxyResolver)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	queue.Wait()

	slog.Info("Shutdown complete")
}
