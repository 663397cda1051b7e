package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/connections/internal/auth"
	"github.com/robalobadob/connections/internal/config"
	"github.com/robalobadob/connections/internal/daily"
	"github.com/robalobadob/connections/internal/db"
	"github.com/robalobadob/connections/internal/decks"
	"github.com/robalobadob/connections/internal/httpserver"
	"github.com/robalobadob/connections/internal/store"
	"github.com/robalobadob/connections/internal/users"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	lib, err := decks.Load(cfg.DecksDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load decks")
	}
	if _, err := lib.Get(cfg.DefaultDeck); err != nil {
		log.Fatal().Err(err).Str("deck", cfg.DefaultDeck).Msg("default deck missing")
	}
	log.Info().Interface("decks", lib.Stats()).Msg("decks loaded")

	sqlDB, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	defer sqlDB.Close()
	if err := db.Migrate(sqlDB); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	clock := quartz.NewReal()
	repo := users.NewRepo(sqlDB, clock)
	srv := httpserver.New(httpserver.Deps{
		Store: store.NewMemoryStore(),
		Decks: lib,
		Users: repo,
		Auth: auth.NewManager(auth.Config{
			Secret:     cfg.JWTSecret,
			Expiry:     cfg.JWTExpiry,
			CookieName: cfg.CookieName,
			Secure:     cfg.Production,
		}, repo, clock),
		Daily:  daily.NewStore(sqlDB, clock),
		Config: cfg,
		Clock:  clock,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, srv.Handler()); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

// run serves until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, cfg config.Config, h http.Handler) error {
	hs := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("starting connections server")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return hs.Shutdown(sctx)
	})
	return g.Wait()
}

func setupLogging(cfg config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
