package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/egress-lab/evacsim/internal/httpapi"
	"github.com/egress-lab/evacsim/pkg/db"
	apperrors "github.com/egress-lab/evacsim/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the generation and asset API over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen-addr", ":3000", "HTTP listen address")
	viper.BindPFlag("listen-addr", serveCmd.Flags().Lookup("listen-addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		return apperrors.Wrap(err, "config invalid")
	}

	if err := ensureDirectories(cfg.SQLitePath, "", cfg.AssetDir); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return apperrors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	orch, locator, err := newOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.NewRouter(httpapi.NewApp(orch, locator, repo)),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http_server_listening", "addr", cfg.ListenAddr, "asset_dir", cfg.AssetDir)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return apperrors.Wrap(err, "http server failed")
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http_server_shutdown_failed", "error", err)
		return apperrors.Wrap(err, "shutdown failed")
	}
	slog.Info("http_server_stopped")
	return nil
}
