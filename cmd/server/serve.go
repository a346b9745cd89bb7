package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fleetdispatch/fleetdispatch/internal/application/syncer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and background tasks",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("server-addr", "", "HTTP listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	httpServer := &http.Server{
		Addr:              a.cfg.ServerAddr,
		Handler:           a.api.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.commandStream.Hub().Start(ctx)
		return nil
	})
	g.Go(func() error {
		a.updateStream.Start(ctx)
		return nil
	})
	g.Go(func() error {
		return a.pusher.Run(ctx, a.cfg.OutboxFlushInterval)
	})
	g.Go(func() error {
		return syncer.Every(ctx, a.cfg.OnlinePullInterval, func(ctx context.Context) {
			a.puller.OnlinePull(ctx)
		})
	})
	g.Go(func() error {
		return syncer.Every(ctx, a.cfg.OfflinePullInterval, func(ctx context.Context) {
			a.puller.OfflinePull(ctx)
		})
	})
	g.Go(func() error {
		return syncer.Every(ctx, a.cfg.SweepInterval, func(ctx context.Context) {
			if _, err := a.sweeper.Sweep(ctx); err != nil {
				a.logger.Error().Err(err).Msg("timeout sweep failed")
			}
		})
	})
	g.Go(func() error {
		a.logger.Info().Str("addr", a.cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info().Msg("shutting down")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctxShutdown)
	})

	return g.Wait()
}
