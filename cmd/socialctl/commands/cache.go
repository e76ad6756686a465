package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"socialcore/internal/app"
	"socialcore/internal/cache/policy"
	"socialcore/internal/domain"
)

var (
	clearUser      string
	clearCommunity int64
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the entity cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [key...]",
	Short: "Remove cache entries",
	Long: `Remove cache entries by raw key, or the first-page keys derived from
--user and --community.

Examples:
  socialctl cache clear topics
  socialctl cache clear --user 0b6f...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := append([]string{}, args...)
		if clearUser != "" {
			keys = append(keys,
				policy.User(clearUser),
				policy.FeedByUser(clearUser, domain.FirstPage),
				policy.FeedByFollowing(clearUser, domain.FirstPage),
				policy.PostsByUser(clearUser, domain.FirstPage),
				policy.SavedPostsByUser(clearUser, domain.FirstPage),
				policy.CommunitiesByOwner(clearUser),
				policy.CommunitiesBySubscriber(clearUser),
			)
		}
		if cmd.Flags().Changed("community") {
			keys = append(keys,
				policy.Community(clearCommunity),
				policy.PostsByCommunity(clearCommunity, domain.FirstPage),
			)
		}
		if len(keys) == 0 {
			return errors.New("no keys given")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Cache.ClearAll(ctx, keys...); err != nil {
				return err
			}
			cmd.Printf("Cleared %d keys\n", len(keys))
			return nil
		})
	},
}

func init() {
	cacheClearCmd.Flags().StringVar(&clearUser, "user", "", "clear the keys of this user")
	cacheClearCmd.Flags().Int64Var(&clearCommunity, "community", 0, "clear the keys of this community")
	cacheCmd.AddCommand(cacheClearCmd)
}
