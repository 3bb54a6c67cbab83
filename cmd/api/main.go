package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/atharvakonge/paper-brokerage/internal/api"
	"github.com/atharvakonge/paper-brokerage/internal/brokerage"
	"github.com/atharvakonge/paper-brokerage/internal/config"
	"github.com/atharvakonge/paper-brokerage/internal/db"
	"github.com/atharvakonge/paper-brokerage/internal/handlers"
	"github.com/atharvakonge/paper-brokerage/internal/order"
	"github.com/atharvakonge/paper-brokerage/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	flag.Parse()

	bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// Load .env file
	found, err := config.LoadDotEnv()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load .env file")
	}
	if !found {
		bootLog.Info().Msg("No .env file found, using defaults or environment variables")
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := newLogger(cfg.Log)
	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("Server stopped")
		os.Exit(1)
	}
}

// run serves until SIGINT or SIGTERM. It returns instead of exiting so every
// deferred Stop and Close runs on both the clean and the failing path.
func run(cfg *config.Config, logger zerolog.Logger) error {
	journal, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open %s journal: %w", cfg.Journal.Driver, err)
	}
	defer journal.Close()

	client := api.NewClient(cfg.API.BaseURL,
		api.WithToken(cfg.API.Token),
		api.WithTimeout(cfg.API.Timeout),
		api.WithLogger(logger.With().Str("component", "api").Logger()),
	)

	core := brokerage.New(client, brokerage.Options{
		Logger:  logger,
		Journal: journal,
		ErrorSink: func(kind store.Kind, key string, err error) {
			logger.Warn().Err(err).Str("kind", string(kind)).Str("key", key).Msg("refresh failed")
		},
		OnTransition: func(o order.Order, t order.Transition) {
			logger.Debug().
				Str("order_id", o.ID.String()).
				Str("from", string(t.From)).
				Str("to", string(t.To)).
				Msg("order transition")
		},
		Workers:     cfg.Orders.Workers,
		QuoteTTL:    cfg.Cache.QuoteTTL,
		Timeout:     cfg.API.Timeout,
		HistorySize: cfg.Orders.HistorySize,
	})
	core.Start()
	defer core.Stop()

	// Periodic background refresh of everything the UI shows.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Refresh.Cron, core.RefreshAll); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", cfg.Refresh.Cron, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	core.RefreshAll()

	// Set Gin mode based on config
	gin.SetMode(cfg.Server.GinMode)
	var router *gin.Engine
	if cfg.Server.GinMode == gin.ReleaseMode {
		router = gin.New()
		router.Use(gin.Recovery(), handlers.RequestLogger(logger))
	} else {
		router = gin.Default()
	}

	handlers.New(core, logger).Register(router)

	// Serve frontend
	router.GET("/", func(c *gin.Context) {
		c.File("./public/index.html")
	})
	router.NoRoute(func(c *gin.Context) {
		c.File("./public/index.html")
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("api", cfg.API.BaseURL).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("serve: %w", err)
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func openJournal(cfg config.JournalConfig) (db.Journal, error) {
	if cfg.Driver == db.DriverNone {
		return db.NewNoopJournal(), nil
	}
	if cfg.Driver == db.DriverSQLite {
		if dir := filepath.Dir(cfg.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}
	return db.Open(cfg.Driver, cfg.DSN)
}
