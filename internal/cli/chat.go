package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tripstate/internal/sqlite"
	"github.com/mesh-intelligence/tripstate/pkg/types"
)

func newChatCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Append and read chat history",
	}
	cmd.AddCommand(
		newChatAppendCmd(a),
		newChatShowCmd(a),
		newChatRecentCmd(a),
	)
	return cmd
}

func newChatAppendCmd(a *app) *cobra.Command {
	var userID, tripID, role, phase, content, metadata string
	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append a message to a conversation",
		Long: "Append adds a message with the next sequence number. With --trip it\n" +
			"joins that trip's conversation; without it, the user's pre-trip stream.",
		Example: `  tripctl chat append --user 0195f3d2-... --content "I want to see Paris in spring"
  tripctl chat append --user 0195f3d2-... --trip 0195f3d9-... --role assistant \
      --phase phase2_crewai --content "Here is a first draft" --metadata '{"tokens":120}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := types.ParseRole(role)
			if err != nil {
				return err
			}
			req := types.AppendRequest{UserID: userID, Role: r, Content: content}
			if tripID != "" {
				req.TripID = &tripID
			}
			if phase != "" {
				p, err := types.ParsePhase(phase)
				if err != nil {
					return err
				}
				req.Phase = &p
			}
			if metadata != "" {
				req.Metadata = json.RawMessage(metadata)
			}
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				m, err := store.Append(ctx, req)
				if err != nil {
					return err
				}
				return a.emit(cmd, m, func(w io.Writer) {
					fmt.Fprintf(w, "Appended message %s as #%d in %s\n", m.MessageID, m.SequenceNumber, m.ConversationKey())
				})
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "author's user id (required)")
	cmd.Flags().StringVar(&tripID, "trip", "", "trip conversation; omit for the pre-trip stream")
	cmd.Flags().StringVar(&role, "role", string(types.RoleUser), "user, assistant, or system")
	cmd.Flags().StringVar(&phase, "phase", "", "agent pipeline phase")
	cmd.Flags().StringVar(&content, "content", "", "message text (required)")
	cmd.Flags().StringVar(&metadata, "metadata", "", "JSON metadata")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func newChatShowCmd(a *app) *cobra.Command {
	var (
		tripID, userID string
		limit          int
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one conversation in sequence order",
		Example: `  tripctl chat show --trip 0195f3d9-...
  tripctl chat show --user 0195f3d2-... --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var key types.ConversationKey
			switch {
			case tripID != "" && userID != "":
				return usagef("pass --trip or --user, not both")
			case tripID != "":
				key = types.TripConversation(tripID)
			case userID != "":
				key = types.UserConversation(userID)
			default:
				return usagef("pass --trip for a trip conversation or --user for the pre-trip stream")
			}
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				msgs, err := store.Conversation(ctx, key, limit)
				if err != nil {
					return err
				}
				return a.emit(cmd, nonNil(msgs), func(w io.Writer) { printMessages(w, msgs) })
			})
		},
	}
	cmd.Flags().StringVar(&tripID, "trip", "", "trip conversation")
	cmd.Flags().StringVar(&userID, "user", "", "user's pre-trip stream")
	cmd.Flags().IntVar(&limit, "limit", 0, "only the latest N messages (0 = all)")
	return cmd
}

func newChatRecentCmd(a *app) *cobra.Command {
	var (
		limit int
		roles []string
	)
	cmd := &cobra.Command{
		Use:     "recent <user-id>",
		Short:   "Show a user's latest messages across conversations",
		Example: `  tripctl chat recent 0195f3d2-... --role user --limit 5`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := types.RecentFilter{Limit: limit}
			for _, r := range roles {
				role, err := types.ParseRole(r)
				if err != nil {
					return err
				}
				filter.Roles = append(filter.Roles, role)
			}
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				msgs, err := store.RecentMessages(ctx, args[0], filter)
				if err != nil {
					return err
				}
				return a.emit(cmd, nonNil(msgs), func(w io.Writer) { printMessages(w, msgs) })
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", sqlite.DefaultRecentLimit, "number of messages")
	cmd.Flags().StringArrayVar(&roles, "role", nil, "only messages with this role (repeatable)")
	return cmd
}

func printMessages(w io.Writer, msgs []*types.ChatMessage) {
	for _, m := range msgs {
		fmt.Fprintf(w, "[%s #%d] %s %s: %s\n",
			m.ConversationKey(), m.SequenceNumber, m.CreatedAt.Format(timeFormat), m.Role, m.Content)
	}
}
