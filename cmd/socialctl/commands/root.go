// Package commands implements the socialctl command tree.
package commands

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"socialcore/internal/app"
	"socialcore/internal/config"
	"socialcore/internal/logging"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "socialctl",
	Short: "Inspect and operate the social cache and repository core",
	Long: `socialctl reads feeds, profiles and communities through the cached
repositories, edits feature config and manages the cache.

Configuration comes from the environment and an optional .env file.

Use "socialctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(savedCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(communitiesCmd)
	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(commentsCmd)
	rootCmd.AddCommand(moderationCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cacheCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("socialctl %s (commit: %s)\n", Version, Commit)
	},
}

// loadConfig reads configuration and builds the root logger from it.
func loadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("close failed")
		}
	}()
	return fn(ctx, a)
}

// withRepos is withApp for commands that need the database.
func withRepos(cmd *cobra.Command, fn func(ctx context.Context, r *app.Repositories) error) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		repos, err := a.Repos()
		if err != nil {
			return err
		}
		return fn(ctx, repos)
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
