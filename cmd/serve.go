package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	deps "github.com/bwise1/sosedi/internal/debs"
	api "github.com/bwise1/sosedi/internal/http/rest"
	"github.com/spf13/cobra"
)

const (
	allowConnectionsAfterShutdown = 1 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Bool("migrate", false, "apply database migrations before serving")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		if err := applyMigrations(ctx); err != nil {
			return err
		}
	}

	d, err := deps.New(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer d.Close()
	d.Run(ctx)

	a := &api.API{Config: cfg, Deps: d}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server running", "port", cfg.Port)
		serveErr <- a.Serve()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("request to shutdown server", "grace", allowConnectionsAfterShutdown)
	time.Sleep(allowConnectionsAfterShutdown)

	slog.Info("shutting down server")
	if err := a.Shutdown(); err != nil {
		return err
	}
	return nil
}
