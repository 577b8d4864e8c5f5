package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"pvyield_simulator/internal/catalog"
	"pvyield_simulator/internal/config"
	"pvyield_simulator/internal/scenario"
	"pvyield_simulator/internal/server"
	"pvyield_simulator/internal/simulator"
	"pvyield_simulator/internal/store"
	"pvyield_simulator/internal/weather"
	"pvyield_simulator/internal/ws"
)

// shutdownTimeout is how long in-flight requests get once a signal arrives.
const shutdownTimeout = 5 * time.Second

func gracefulShutdown(apiServer *http.Server, logger *zap.Logger, done chan<- bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("shutting down gracefully, press Ctrl+C again to force")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}

	done <- true
}

func main() {
	settings, err := config.LoadSettings(viper.New())
	if err != nil {
		fmt.Fprintf(os.Stderr, "config errors: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(settings.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	app, err := build(settings, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}

	srv := app.server.HTTPServer()
	done := make(chan bool, 1)
	go gracefulShutdown(srv, logger, done)

	logger.Info("starting server",
		zap.String("addr", srv.Addr),
		zap.String("version", versioninfo.Short()),
		zap.String("weather_source", settings.Weather.Source),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server error", zap.Error(err))
	}

	<-done
	// Dropping websocket clients cancels the runs they started.
	app.hub.Close()
	app.runs.Wait()
	logger.Info("graceful shutdown complete")
}

// application holds the wired components of the server.
type application struct {
	server *server.Server
	hub    *ws.Hub
	runs   *ws.Handler
	cache  *weather.Cache
}

func build(settings *config.Settings, logger *zap.Logger) (*application, error) {
	cat, err := catalog.LoadDir(settings.CatalogDir)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	logger.Info("catalog loaded",
		zap.String("dir", settings.CatalogDir),
		zap.Int("systems", len(cat.Systems())),
		zap.Int("inverters", len(cat.Inverters())),
		zap.Int("batteries", len(cat.Batteries())),
	)

	source, err := settings.Weather.NewSource()
	if err != nil {
		return nil, err
	}
	cache := weather.NewCache(source,
		weather.WithPrecision(settings.Cache.Precision()),
		weather.WithLogger(logger.Named("weather")),
	)

	engine := simulator.New(cat, cache, simulator.WithLogger(logger.Named("simulator")))
	runner := scenario.New(engine,
		scenario.WithLimit(settings.MaxParallelScenarios),
		scenario.WithLogger(logger.Named("scenario")),
	)

	runs := store.New(0)
	hub := ws.NewHub(logger.Named("ws"))
	handler := ws.NewHandler(hub, runner, runs, logger.Named("ws"))

	srv := server.New(*settings, server.Deps{
		Catalog: cat,
		Runs:    handler,
		Store:   runs,
		Cache:   cache,
		Logger:  logger.Named("http"),
		Version: versioninfo.Short(),
	})
	return &application{server: srv, hub: hub, runs: handler, cache: cache}, nil
}
