package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"socialcore/internal/app"
	"socialcore/internal/domain"
)

var logLimit int

var moderationCmd = &cobra.Command{
	Use:   "moderation",
	Short: "Inspect community moderation",
}

var moderationLogsCmd = &cobra.Command{
	Use:   "logs <community-id>",
	Short: "Print a community's moderation log, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCommunity(cmd, args[0], func(ctx context.Context, r *app.Repositories, id int64) (any, error) {
			return r.Moderation.ModerationLogs(ctx, id, logLimit)
		})
	},
}

var moderationReportsCmd = &cobra.Command{
	Use:   "reports <community-id>",
	Short: "Print the reports filed against a community's posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCommunity(cmd, args[0], func(ctx context.Context, r *app.Repositories, id int64) (any, error) {
			return r.Moderation.CommunityPostReports(ctx, id)
		})
	},
}

var moderationModeratorsCmd = &cobra.Command{
	Use:   "moderators <community-id>",
	Short: "Print a community's moderators",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCommunity(cmd, args[0], func(ctx context.Context, r *app.Repositories, id int64) (any, error) {
			return r.Moderation.Moderators(ctx, id)
		})
	},
}

func withCommunity(cmd *cobra.Command, rawID string, fn func(context.Context, *app.Repositories, int64) (any, error)) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("community id %q: %w", rawID, domain.ErrInvalidArgument)
	}
	return withRepos(cmd, func(ctx context.Context, r *app.Repositories) error {
		out, err := fn(ctx, r, id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	})
}

func init() {
	moderationLogsCmd.Flags().IntVar(&logLimit, "limit", 0, "maximum entries, 0 for the default")
	moderationCmd.AddCommand(moderationLogsCmd, moderationReportsCmd, moderationModeratorsCmd)
}
