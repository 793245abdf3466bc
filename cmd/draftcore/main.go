package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/openfantasy/draftcore/internal/api"
	"github.com/openfantasy/draftcore/internal/catalog"
	"github.com/openfantasy/draftcore/internal/config"
	"github.com/openfantasy/draftcore/internal/draft"
	"github.com/openfantasy/draftcore/internal/draft/autopick"
	"github.com/openfantasy/draftcore/internal/draft/gateway"
	"github.com/openfantasy/draftcore/internal/draft/outbox"
	"github.com/openfantasy/draftcore/internal/draft/pick"
	"github.com/openfantasy/draftcore/internal/draft/slots"
	"github.com/openfantasy/draftcore/internal/draft/sweeper"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_PRETTY") == "true" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("draftcore exited")
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	log.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.Database).Msg("connected to postgres")

	clock := clockwork.NewRealClock()

	outboxApp := outbox.NewApp(outbox.NewPGRepository(pool))
	draftRepo := draft.NewPGRepository(pool)
	draftApp := draft.NewApp(draftRepo, outboxApp, clock)
	pickApp := pick.NewApp(draftRepo, pick.NewPGRepository(pool), outboxApp, clock)
	slotApp := slots.NewApp(slots.NewPGRepository(pool), outboxApp, clock)
	catalogRepo := catalog.NewPGRepository(pool)

	resolver := autopick.NewResolver(
		draftRepo,
		catalogRepo,
		pickApp,
		autopick.BestAvailable{PositionCaps: cfg.Autopick.PositionCaps},
		clock,
	)
	sw := sweeper.New(draftApp, resolver, sweeper.NewPGLocker(pool, clock), clock, sweeper.Config{
		BatchLimit:  cfg.Sweeper.BatchLimit,
		Concurrency: cfg.Sweeper.Concurrency,
		LockTTL:     cfg.Sweeper.LockTTL,
	})

	hub := gateway.NewHub(gateway.DefaultHubConfig())

	var publisher outbox.Publisher = outbox.LogPublisher{}
	var consumer *gateway.Consumer
	if cfg.NATS.Enabled {
		jsCfg := outbox.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATS.URL
		jsCfg.StreamName = cfg.NATS.StreamName
		jsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		jsPub, err := outbox.NewJetStreamPublisher(jsCfg)
		if err != nil {
			return err
		}
		defer jsPub.Close()
		publisher = jsPub

		conCfg := gateway.DefaultConsumerConfig()
		conCfg.URL = cfg.NATS.URL
		conCfg.StreamName = cfg.NATS.StreamName
		conCfg.SubjectFilter = cfg.NATS.SubjectPrefix + ".>"
		consumer, err = gateway.NewConsumer(hub, conCfg)
		if err != nil {
			return err
		}
		defer consumer.Stop()
	}

	listenerCfg := outbox.DefaultListenerConfig()
	listenerCfg.DatabaseURL = cfg.Database.DSN()
	relay, err := outbox.NewListener(outboxApp, publisher, listenerCfg)
	if err != nil {
		return err
	}

	handler := api.NewHandler(draftApp, pickApp, slotApp, sw, clock)
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewRouter(handler, hub, cfg.Server.AllowedOrigins),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return relay.Start(gctx)
	})
	if consumer != nil {
		g.Go(func() error {
			return consumer.Start(gctx)
		})
	}

	// In-process sweep cadence. The HTTP trigger stays available for external
	// schedulers and for ops poking a stuck draft.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Sweeper.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, err := sw.Sweep(gctx, clock.Now()); err != nil {
					log.Error().Err(err).Msg("sweep cycle failed")
				}
			}
		}
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("draftcore shut down cleanly")
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
