package commands

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rowanv/stocktalk/internal/agent"
	"github.com/rowanv/stocktalk/internal/logging"
	"github.com/rowanv/stocktalk/internal/provider"
)

// NewAskCmd constructs the `stocktalk ask` command, which sends a single
// natural language question through the full tool-using agent and prints the
// answer to stdout.
func NewAskCmd() *cobra.Command {
	var thread string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the inventory assistant a question",
		Long: `Ask StockTalk a natural language question about the store inventory.

The assistant looks items up in the catalog before answering, so replies
reflect what is actually in stock. Pass --thread to continue an earlier
conversation; without it each question starts a fresh thread.

Examples:
  stocktalk ask "do you have any mid-century armchairs?"
  stocktalk ask --thread showroom-1 "what about in green?"
  stocktalk ask "is the oak dining table on sale?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			stack, err := buildSearchStack(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer stack.Close()

			historyStore, closeHistory := openHistory(log)
			defer closeHistory()

			inventoryAgent, err := agent.New(ctx, &agent.Config{
				ChatModel: chatModel,
				Tools:     buildTools(stack.Retriever),
				History:   historyStore,
			})
			if err != nil {
				return fmt.Errorf("ask: failed to initialise agent: %w", err)
			}

			if thread == "" {
				thread = uuid.NewString()
			}

			question := strings.Join(args, " ")
			answer, err := inventoryAgent.Invoke(ctx, thread, question)
			if err != nil {
				return err //nolint:wrapcheck // CLI entry point — error goes directly to cobra
			}

			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}

	cmd.Flags().StringVarP(&thread, "thread", "t", "", "Conversation thread ID to continue (default: a fresh thread)")

	return cmd
}
