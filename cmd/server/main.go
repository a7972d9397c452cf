package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"bsky-notifier/internal/application"
	"bsky-notifier/internal/config"
	"bsky-notifier/internal/domain"
	"bsky-notifier/internal/events"
	"bsky-notifier/internal/infrastructure/bluesky"
	"bsky-notifier/internal/infrastructure/memory"
	"bsky-notifier/internal/infrastructure/postgres"
	"bsky-notifier/internal/notify"
	"bsky-notifier/internal/poller"
	transporthttp "bsky-notifier/internal/transport/http"
)

func main() {
	// ── Logging ──────────────────────────────────────────────────────────────
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// ── Config ───────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.Server.Env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("env", cfg.Server.Env).Str("port", cfg.Server.Port).Msg("starting bsky-notifier")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Storage ──────────────────────────────────────────────────────────────
	var (
		store  domain.AccountStore
		ledger domain.Ledger
	)
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping failed")
		}

		pg := postgres.New(pool)
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("schema migration failed")
		}
		store, ledger = pg, pg
		log.Info().Msg("postgres connected")
	} else {
		store, ledger = memory.NewAccountStore(), memory.NewLedger()
		log.Warn().Msg("no database configured, state is in-memory only")
	}

	// ── Feed Client & SSE Hub ────────────────────────────────────────────────
	feed := bluesky.New(cfg.Bluesky.APIBase, cfg.Bluesky.FeedLimit)
	hub := transporthttp.NewHub()

	// ── Notification Channels ────────────────────────────────────────────────
	channels := []notify.Channel{notify.NewBrowserChannel(hub)}
	if cfg.Notify.Headless {
		channels = append(channels, notify.NewConsoleChannel())
	} else {
		channels = append(channels, notify.NewDesktopChannel("bsky-notifier"))
	}
	if cfg.Email.Complete() {
		channels = append(channels, notify.NewEmailChannel(cfg.Email.APIKey, cfg.Email.Domain, cfg.Email.From, cfg.Email.To))
		log.Info().Str("to", cfg.Email.To).Msg("email channel enabled")
	}

	dispatcher := notify.NewDispatcher(channels...)

	// ── Event Publisher (optional) ───────────────────────────────────────────
	var publisher *events.Publisher
	if cfg.Kafka.Enabled() {
		publisher, err = events.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		dispatcher.WithEvents(publisher)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("event publishing enabled")
	}

	// ── Application Service ──────────────────────────────────────────────────
	svc := application.NewService(store, ledger, feed)

	// ── Poll Loop ────────────────────────────────────────────────────────────
	p := poller.New(store, ledger, feed, dispatcher, cfg.Poll.Interval())
	go p.Run(ctx)
	log.Info().Dur("interval", cfg.Poll.Interval()).Msg("poll loop started")

	// ── HTTP Server ──────────────────────────────────────────────────────────
	handler := transporthttp.NewHandler(svc, hub, func() string { return string(p.State()) })
	router := transporthttp.NewRouter(handler, cfg.API.AuthSecret)

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := router.Start(":" + cfg.Server.Port); err != nil {
			log.Info().Msg("HTTP server stopped")
		}
	}()

	// ── Graceful Shutdown ────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info().Msg("shutting down gracefully...")

	p.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := router.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if publisher != nil {
		publisher.Close(shutdownCtx)
	}

	log.Info().Msg("bsky-notifier stopped")
}
