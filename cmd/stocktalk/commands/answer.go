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

// NewAnswerCmd constructs the `stocktalk answer` command, which answers a
// question in a single model call with no inventory access. Useful for
// general furniture-care advice where catalog grounding is not needed.
func NewAnswerCmd() *cobra.Command {
	var thread string
	var temperature float32

	cmd := &cobra.Command{
		Use:   "answer [question]",
		Short: "Get a direct answer without inventory lookup",
		Long: `Answer a general question without consulting the store catalog.

Replies come straight from the model, so they never claim specific items are
in stock. Use 'stocktalk ask' for anything that depends on inventory.

Examples:
  stocktalk answer "how do I get a wine stain out of a linen sofa?"
  stocktalk answer "what sofa depth works for a small living room?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("answer: failed to initialise model provider: %w", err)
			}

			historyStore, closeHistory := openHistory(log)
			defer closeHistory()

			responder, err := agent.NewResponder(&agent.ResponderConfig{
				ChatModel:   chatModel,
				History:     historyStore,
				Temperature: temperature,
			})
			if err != nil {
				return fmt.Errorf("answer: failed to initialise responder: %w", err)
			}

			if thread == "" {
				thread = uuid.NewString()
			}

			question := strings.Join(args, " ")
			reply, err := responder.Respond(ctx, thread, question)
			if err != nil {
				return err //nolint:wrapcheck // CLI entry point — error goes directly to cobra
			}

			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}

	cmd.Flags().StringVarP(&thread, "thread", "t", "", "Conversation thread ID to continue (default: a fresh thread)")
	cmd.Flags().Float32Var(&temperature, "temperature", 0, "Sampling temperature for the answer (default: 0.7)")

	return cmd
}
