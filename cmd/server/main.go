package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"courier/internal/audience"
	"courier/internal/config"
	"courier/internal/dedup"
	"courier/internal/directory"
	"courier/internal/events"
	"courier/internal/gateway"
	"courier/internal/handlers"
	"courier/internal/history"
	"courier/internal/routing"
	"courier/internal/stream"
)

func main() {
	configPath := flag.String("config", "courier.yaml", "path to runtime configuration")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	db, err := sql.Open("sqlite", cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database).Msg("open database")
	}
	defer db.Close()
	if err := history.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate history schema")
	}

	store := audience.NewStore(cfg.RoutingConfig, log)

	cache := dedup.NewCache(cfg.Dedup.TTL)
	if cfg.Dedup.SweepInterval > 0 {
		sweeper, err := dedup.NewSweeper(cache, cfg.Dedup.SweepInterval, log)
		if err != nil {
			log.Fatal().Err(err).Msg("start dedup sweeper")
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	var gw gateway.Gateway
	switch cfg.Gateway.Mode {
	case config.GatewayShoutrrr:
		gw = gateway.NewShoutrrrGateway(cfg.Gateway.Devices, log)
	default:
		gw = gateway.NewLogGateway(log)
	}

	var dir directory.Directory = directory.Static{}
	if cfg.Directory.URL != "" {
		dir = directory.NewHomeAssistant(cfg.Directory.URL, cfg.Directory.Token, log)
	}

	bus := events.NewBus(log)
	hub := stream.NewHub(bus, log)
	router := routing.NewRouter(store, cache, gw, db, bus, log)

	api := &handlers.API{
		Router:    router,
		Store:     store,
		DB:        db,
		Directory: dir,
		Hub:       hub,
		Log:       log,
	}

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: api.Routes(),
	}

	go func() {
		log.Info().Str("addr", cfg.Listen).Str("gateway", cfg.Gateway.Mode).
			Msg("notification router listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
