package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	cfg "github.com/fendi147258369-dot/omnisafe-web/backend/config"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/clients"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/handlers"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/storage"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/usecases"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/workers"
)

// Server timeout constants.
const (
	readTimeoutSeconds     = 15
	writeTimeoutSeconds    = 15
	idleTimeoutSeconds     = 60
	shutdownTimeoutSeconds = 5

	sessionPruneInterval = 5 * time.Minute
)

func main() {
	time.Local = time.UTC

	configPath := flag.String("config", "", "path to a TOML or JSON config file")
	flag.Parse()

	// Parse configuration
	config, err := cfg.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := newLogger(config)
	logger.Warn("Starting gateway with configuration",
		"debug", config.App.Debug,
		"api_url", config.API.BaseURL,
		"storage", config.Storage.Backend,
		"server_port", config.HTTP.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, logger, config); err != nil {
		logger.Error("Gateway stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server exited properly")
}

func newLogger(config *cfg.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.Log.Level}
	if config.App.Debug {
		opts.Level = slog.LevelDebug
	}

	if config.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(ctx context.Context, logger *slog.Logger, config *cfg.Config) error {
	store, closeStore, err := storage.Open(ctx, logger, config)
	if err != nil {
		return err
	}
	defer closeStore()

	creds := clients.NewCredentials(store, config.API.AccessToken, config.API.AdminAccessToken)
	api := clients.NewOmniSafeClient(logger, creds, clients.Options{
		BaseURL:   config.API.BaseURL,
		Timeout:   config.API.Timeout(),
		RateLimit: config.API.RateLimit,
		RateBurst: config.API.RateBurst,
	})

	sessions := usecases.NewSessionManager(logger, api, store, config.Scan.CacheKey, config.Scan.ExpiryWindow(), usecases.ScanOptions{
		PollInterval:    config.Scan.PollEvery(),
		DefaultLanguage: entities.Language(config.Scan.DefaultLanguage),
	})
	defer sessions.Close()

	userService := usecases.NewUserService(logger, api, creds)
	billingService := usecases.NewBillingService(logger, api, userService)

	// Create handlers
	websocketManager := handlers.NewWebSocketManager(logger, config.HTTP.AllowedOrigins)
	httpHandler := handlers.NewHTTPHandler(logger, sessions, userService, billingService)
	wsHandler := handlers.NewWebSocketHandler(logger, sessions, websocketManager)

	// Create router
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Register WebSocket routes before HTTP routes
	wsHandler.RegisterRoutes(router)
	httpHandler.RegisterRoutes(router)

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   config.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", handlers.SessionHeader},
		ExposedHeaders:   []string{handlers.SessionHeader},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         ":" + config.HTTP.Port,
		Handler:      c.Handler(router),
		ReadTimeout:  readTimeoutSeconds * time.Second,
		WriteTimeout: writeTimeoutSeconds * time.Second,
		IdleTimeout:  idleTimeoutSeconds * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Initialize and run workers
	if sweeper, ok := store.(storage.Sweeper); ok {
		janitor := workers.NewCacheJanitor(logger, sweeper, config.Storage.SweepEvery())
		g.Go(func() error {
			janitor.Start(gctx)
			return nil
		})
	}

	pruner := workers.NewSessionPruner(logger, sessions, sessionPruneInterval)
	g.Go(func() error {
		pruner.Start(gctx)
		return nil
	})

	refresher := workers.NewUserRefresher(logger, userService, config.Scan.UserRefreshEvery())
	g.Go(func() error {
		refresher.Start(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeoutSeconds*time.Second)
		defer cancel()

		websocketManager.CloseAll()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", "error", err)
			return err
		}
		return nil
	})

	return g.Wait()
}
