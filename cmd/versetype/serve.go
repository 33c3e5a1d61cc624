package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/versetype/internal/activity"
	"github.com/verte-zerg/versetype/internal/api"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", defaultAddress, "listen address")
	cmd.Flags().DurationVar(&serveShutdown, "shutdown-timeout", defaultShutdown, "graceful shutdown timeout")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "addr", &serveAddr, fileCfg.Server.Address)
	applyDurationConfig(cmd, "shutdown-timeout", &serveShutdown, fileCfg.Server.ShutdownTimeout)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	aggregator := activity.NewAggregator(st, logger)
	recorder := activity.NewRecorder(st, aggregator, logger)
	handler := api.NewHandler(aggregator, recorder, st, logger)

	server := &http.Server{
		Addr:              serveAddr,
		Handler:           api.NewRouter(handler),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "address", serveAddr, "driver", st.Driver())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdown)
	defer cancel()
	logger.Info("shutting down server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logErrln("server forced to shutdown:", err)
		return err
	}
	return nil
}
