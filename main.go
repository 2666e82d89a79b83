package main

import (
	"context"
	"errors"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"typerace/auth"
	"typerace/config"
	"typerace/game"
	httpserver "typerace/http"
	"typerace/store"
	"typerace/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cobra.CheckErr(config.NewCommand(run).ExecuteContext(ctx))
}

func run(ctx context.Context, cfg *config.Config) error {
	config.SetupLogging(cfg.Verbose)
	log.Info().
		Str("addr", cfg.Addr()).
		Str("db", cfg.DBPath).
		Dur("countdown", cfg.Countdown).
		Bool("strictProgress", cfg.StrictProgress).
		Bool("serverClock", cfg.ServerClock).
		Msg("starting typing race server")

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	// Subscribers are attached once everything that consumes the game
	// services has been built.
	fanout := game.NewFanout()
	texts := game.NewTextPool(cfg.Texts, nil)
	lobby := game.NewLobby(db, texts, fanout)
	engine := game.NewEngine(db, fanout, cfg.Countdown)
	tracker := game.NewTracker(db, fanout, cfg.StrictProgress)

	wsManager := ws.NewManager(lobby, engine, tracker)
	fanout.Add(wsManager)

	if cfg.ServerClock {
		scheduler := game.NewScheduler(db, engine)
		defer scheduler.Stop()
		fanout.Add(scheduler)
		if err := scheduler.Resume(ctx); err != nil {
			return err
		}
	}

	sessions := auth.NewSessionManager([]byte(cfg.SessionSecret))
	server := httpserver.NewServer(sessions, lobby, engine, tracker, wsManager, httpserver.Limits{
		CreatePerMinute: cfg.CreateLimit,
		JoinPerMinute:   cfg.JoinLimit,
	})
	defer server.Close()
	srv := server.GetHTTPServer(cfg.Addr())

	errc := make(chan error, 1)
	go func() {
		log.Info().Msgf("listening on http://%s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
	return nil
}
