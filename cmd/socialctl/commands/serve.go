package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"socialcore/internal/app"
)

var shutdownTimeout time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health and cache metrics",
	Long: `Open every configured store and serve /healthz and /metrics on
METRICS_ADDR until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 5*time.Second, "graceful shutdown timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if repos, err := a.Repos(); err == nil {
			if err := repos.Features.Refresh(ctx); err != nil {
				a.Logger.Warn().Err(err).Msg("feature config refresh failed")
			}
		}

		srv := a.NewServer(a.Config.MetricsAddr)
		serverDone := make(chan error, 1)
		go func() {
			serverDone <- srv.Start()
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case err := <-serverDone:
			return err
		case <-quit:
		}

		a.Logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		a.Logger.Info().Msg("server stopped")
		return <-serverDone
	})
}
