package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"socialcore/internal/app"
	"socialcore/internal/domain"
)

var configDescription string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage remote feature config",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List feature config entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepos(cmd, func(ctx context.Context, r *app.Repositories) error {
			entries, err := r.FeatureConfig.All(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Create or replace a feature config entry",
	Long: `Create or replace a feature config entry. The value is read as JSON when
it parses, otherwise as a plain string.

Examples:
  socialctl config set moderation_blocked_terms '["spam","scam"]'
  socialctl config set terms_version 2024-06`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value := parseConfigArg(args[1])
		var desc *string
		if cmd.Flags().Changed("description") {
			desc = &configDescription
		}
		return withRepos(cmd, func(ctx context.Context, r *app.Repositories) error {
			entry, err := r.Features.Save(ctx, args[0], value, desc)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		})
	},
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a feature config entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepos(cmd, func(ctx context.Context, r *app.Repositories) error {
			if err := r.Features.Remove(ctx, args[0]); err != nil {
				return err
			}
			cmd.Printf("Deleted %s\n", args[0])
			return nil
		})
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check <text>",
	Short: "Evaluate text against the configured moderation terms",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepos(cmd, func(ctx context.Context, r *app.Repositories) error {
			if err := r.Features.Refresh(ctx); err != nil {
				return fmt.Errorf("load feature config: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), r.Features.Moderate(args[0]))
		})
	},
}

func init() {
	configSetCmd.Flags().StringVar(&configDescription, "description", "", "entry description")
	configCmd.AddCommand(configListCmd, configSetCmd, configDeleteCmd, configCheckCmd)
}

// parseConfigArg reads a command-line value as JSON, falling back to a
// plain string.
func parseConfigArg(raw string) domain.ConfigValue {
	var v domain.ConfigValue
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return domain.StringValue(raw)
	}
	return v
}
