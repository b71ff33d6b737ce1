package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/rowanv/stocktalk/internal/agent"
	"github.com/rowanv/stocktalk/internal/logging"
	"github.com/rowanv/stocktalk/internal/provider"
	"github.com/rowanv/stocktalk/internal/server"
	"github.com/rowanv/stocktalk/internal/tracing"
)

// NewServeCmd constructs the `stocktalk serve` command, which starts the
// HTTP server exposing the chat API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the StockTalk HTTP server",
		Long: `Start the StockTalk HTTP server on localhost.

The server exposes POST /api/chat for tool-using inventory conversations,
POST /api/answer for direct answers, and health, readiness, and metrics
endpoints for orchestrators.

Examples:
  stocktalk serve
  stocktalk serve --port 9090
  MODEL_PROVIDER=azure stocktalk serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			stack, err := buildSearchStack(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
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
				return fmt.Errorf("serve: failed to initialise agent: %w", err)
			}

			responder, err := agent.NewResponder(&agent.ResponderConfig{
				ChatModel: chatModel,
				History:   historyStore,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to initialise responder: %w", err)
			}

			pingers := []server.Pinger{
				server.NewQdrantPinger(stack.Index.Client()),
				server.NewDBPinger("catalog", stack.Catalog),
				server.NewLLMPinger(chatModel, string(providerCfg.Backend)),
			}
			if historyStore != nil {
				pingers = append(pingers, server.NewDBPinger("history", historyStore))
			}

			srv, err := server.New(inventoryAgent, responder, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("STOCKTALK_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", getEnvOrDefault("STOCKTALK_HOST", "127.0.0.1"), "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", getEnvInt("STOCKTALK_PORT", 8080), "TCP port to listen on")

	return cmd
}
