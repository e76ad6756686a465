package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"socialcore/internal/app"
	"socialcore/internal/domain"
)

var (
	pageNumber int
	pageSize   int
	following  bool
	publicFeed bool

	searchText string
	sortOrder  string
	topicID    int64
	ownerID    string
	subscriber string

	popularLimit int

	commentAuthor string
)

var feedCmd = &cobra.Command{
	Use:   "feed [user-id]",
	Short: "Print a post feed",
	Long: `Print the feed of a user's subscribed communities, of the users they
follow (--following), or the public feed (--public, no user id).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !publicFeed && len(args) == 0 {
			return fmt.Errorf("a user id is required unless --public is set")
		}
		page := domain.Page{Number: pageNumber, Size: pageSize}
		return withRepos(cmd, func(ctx context.Context, r *app.Repositories) error {
			var posts []domain.Post
			var err error
			switch {
			case publicFeed:
				posts, err = r.Posts.PublicFeed(ctx, page)
			case following:
				posts, err = r.Posts.FollowingFeed(ctx, args[0], page)
			default:
				posts, err = r.Posts.UserFeed(ctx, args[0], page)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), posts)
		})
	},
}

var savedCmd = &cobra.Command{
	Use:   "saved <user-id>",
	Short: "Print a user's saved posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		page := domain.Page{Number: pageNumber, Size: pageSize}
		return withRepos(cmd, func(ctx context.Context, r *app.Repositories) error {
			posts, err := r.Posts.SavedPosts(ctx, args[0], page)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), posts)
		})
	},
}

// userView adds the derived presence flag to a profile.
type userView struct {
	domain.User
	Online bool `json:"online"`
}

var userCmd = &cobra.Command{
	Use:   "user <user-id>",
	Short: "Print a user profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepos(cmd, func(ctx context.Context, r *app.Repositories) error {
			u, err := r.Users.User(ctx, args[0])
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("user %s: %w", args[0], domain.ErrNotFound)
			}
			return printJSON(cmd.OutOrStdout(), userView{User: *u, Online: domain.IsUserOnline(*u, time.Now())})
		})
	},
}

var communitiesCmd = &cobra.Command{
	Use:   "communities",
	Short: "Search the community directory",
	Long: `Search communities by title, optionally restricted to a topic, or list
the communities a user owns (--owner) or subscribes to (--subscriber).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepos(cmd, func(ctx context.Context, r *app.Repositories) error {
			var out []domain.Community
			var err error
			switch {
			case ownerID != "":
				out, err = r.Communities.CommunitiesByOwner(ctx, ownerID)
			case subscriber != "":
				out, err = r.Communities.SubscribedCommunities(ctx, subscriber)
			default:
				q := domain.CommunityQuery{Search: searchText, Sort: domain.CommunitySort(sortOrder)}
				if cmd.Flags().Changed("topic") {
					q.TopicID = &topicID
				}
				out, err = r.Communities.Communities(ctx, q)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		})
	},
}

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List topics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepos(cmd, func(ctx context.Context, r *app.Repositories) error {
			var topics []domain.Topic
			var err error
			if cmd.Flags().Changed("popular") {
				topics, err = r.Topics.PopularTopics(ctx, popularLimit)
			} else {
				topics, err = r.Topics.Topics(ctx)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), topics)
		})
	},
}

var commentsCmd = &cobra.Command{
	Use:   "comments [post-id]",
	Short: "Print the comments on a post",
	Long:  `Print a post's comments oldest first, or a user's comments newest first (--user, no post id).`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if commentAuthor == "" && len(args) == 0 {
			return fmt.Errorf("a post id is required unless --user is set")
		}
		return withRepos(cmd, func(ctx context.Context, r *app.Repositories) error {
			if commentAuthor != "" {
				comments, err := r.Comments.CommentsFromUser(ctx, commentAuthor)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), comments)
			}
			postID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("post id %q: %w", args[0], domain.ErrInvalidArgument)
			}
			comments, err := r.Comments.CommentsForPost(ctx, postID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), comments)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{feedCmd, savedCmd} {
		c.Flags().IntVar(&pageNumber, "page", 0, "zero-based page number")
		c.Flags().IntVar(&pageSize, "page-size", domain.DefaultPageSize, "posts per page")
	}
	feedCmd.Flags().BoolVar(&following, "following", false, "posts by followed users")
	feedCmd.Flags().BoolVar(&publicFeed, "public", false, "public feed")
	feedCmd.MarkFlagsMutuallyExclusive("following", "public")

	communitiesCmd.Flags().StringVar(&searchText, "search", "", "title search text")
	communitiesCmd.Flags().StringVar(&sortOrder, "sort", string(domain.SortMostFollowed), "mostFollowed|leastFollowed|newest|oldest")
	communitiesCmd.Flags().Int64Var(&topicID, "topic", 0, "topic id filter")
	communitiesCmd.Flags().StringVar(&ownerID, "owner", "", "list communities owned by this user")
	communitiesCmd.Flags().StringVar(&subscriber, "subscriber", "", "list communities this user subscribes to")
	communitiesCmd.MarkFlagsMutuallyExclusive("owner", "subscriber", "search")

	commentsCmd.Flags().StringVar(&commentAuthor, "user", "", "list comments written by this user")

	topicsCmd.Flags().IntVar(&popularLimit, "popular", 10, "list the most used topics, up to this many")
}
