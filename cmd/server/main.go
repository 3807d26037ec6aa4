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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/edustream/liveclass/internal/adapters/http"
	"github.com/edustream/liveclass/internal/adapters/rtc"
	wssignal "github.com/edustream/liveclass/internal/adapters/signal"
	"github.com/edustream/liveclass/internal/adapters/store/memory"
	"github.com/edustream/liveclass/internal/adapters/store/postgres"
	"github.com/edustream/liveclass/internal/app"
	"github.com/edustream/liveclass/internal/app/orch"
	"github.com/edustream/liveclass/internal/config"
	"github.com/edustream/liveclass/internal/core"
)

const shutdownTimeout = 5 * time.Second

type backend struct {
	authorizer core.Authorizer
	identities core.IdentityStore
	attendance core.AttendanceRecorder
	health     func(context.Context) error
	close      func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	if cfg.DatabaseURL == "" {
		store, err := memory.FromSeed(cfg.Seed)
		if err != nil {
			return nil, err
		}
		log.Warn().Str("module", "main").Msg("no database_url, using seeded in-memory store")
		return &backend{authorizer: store, identities: store, attendance: store, close: func() {}}, nil
	}
	store, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &backend{authorizer: store, identities: store, attendance: store, health: store.Ping, close: store.Close}, nil
}

func setupLogger(cfg *config.Config) {
	if cfg.Mode != "debug" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg)

	policy, err := app.ParsePolicy(cfg.Backpressure)
	if err != nil {
		return err
	}
	ice, err := rtc.NewWebRTCConfig(cfg.ICEServers)
	if err != nil {
		return err
	}
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Access:   app.AccessGate{Authorizer: be.authorizer, Timeout: cfg.AuthTimeout},
		Policy:   policy,
	}
	if cfg.Attendance {
		o.Attendance = be.attendance
	}

	ctl := wssignal.NewSignalWSController(o,
		wssignal.NewRoomRateLimiter(cfg.RateLimit.Count, cfg.RateLimit.Interval),
		wssignal.Options{
			SendBuffer:     cfg.SendBuffer,
			ReadLimit:      cfg.ReadLimit,
			PingPeriod:     cfg.PingPeriod,
			AllowedOrigins: cfg.AllowedOrigins,
		})

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:   o,
		Signal: ctl,
		Auth: &router.Authenticator{
			Secret:         []byte(cfg.JWTSecret),
			Identities:     be.identities,
			AllowedOrigins: cfg.AllowedOrigins,
		},
		ICE:    ice,
		Health: be.health,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("module", "main").Str("addr", addr).Msg("signaling server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("module", "main").Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Hijacked WebSockets are not tracked by Shutdown; they close when
		// ctx is canceled.
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("server exited gracefully")
}
