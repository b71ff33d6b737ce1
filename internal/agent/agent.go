// Package agent implements the conversational control loop for the StockTalk
// assistant. Each turn runs a small state machine: the model reasons over the
// thread history (REASON), requested tools are executed concurrently (ACT),
// and the loop ends when the model produces a plain answer (DONE). Tool
// failures are fed back to the model as recoverable results; model failures
// are classified into customer-presentable errors.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"github.com/rowanv/stocktalk/internal/budget"
	"github.com/rowanv/stocktalk/internal/history"
	"github.com/rowanv/stocktalk/internal/logging"
	"github.com/rowanv/stocktalk/internal/retry"
)

// DefaultMaxSteps is the reasoning-step ceiling per turn. A turn that is
// still requesting tools after this many model calls is aborted rather than
// left to loop.
const DefaultMaxSteps = 15

// Config holds the dependencies required to construct an Agent.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.ToolCallingChatModel

	// Tools is the list of inventory tools available to the agent.
	Tools []tool.InvokableTool

	// History is the optional conversation store used to persist and replay
	// prior turns. If nil, each turn is stateless.
	History history.Store

	// MaxSteps is the reasoning-step ceiling per turn. Defaults to
	// DefaultMaxSteps if zero.
	MaxSteps int

	// MaxContextTokens is the estimated token budget for the full input
	// context (system prompt + history + current customer message). History
	// is trimmed oldest-first to fit. Defaults to
	// budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int

	// Retry is the backoff policy applied to model calls. The zero value
	// uses the package defaults (3 attempts, exponential from 1s, 30s cap).
	Retry retry.Policy
}

// Agent runs the REASON/ACT/DONE loop over a tool-calling chat model.
type Agent struct {
	// chatModel is the model with the tool schemas already bound.
	chatModel model.ToolCallingChatModel

	// toolsByName resolves a tool-call name to its implementation.
	toolsByName map[string]tool.InvokableTool

	// toolList is the rendered tool description block for the system prompt.
	toolList string

	// history is the optional conversation store for multi-turn context.
	history history.Store

	// maxSteps is the reasoning-step ceiling per turn.
	maxSteps int

	// maxContextTokens is the estimated token budget for the input context.
	maxContextTokens int

	// retryPolicy governs backoff on rate-limited model calls.
	retryPolicy retry.Policy

	// now supplies the timestamp injected into the system prompt.
	now func() time.Time
}

// New constructs an Agent from the provided Config, binding the tool schemas
// to the chat model.
func New(ctx context.Context, cfg *Config) (*Agent, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}
	if len(cfg.Tools) == 0 {
		return nil, fmt.Errorf("agent: at least one tool is required")
	}

	infos := make([]*schema.ToolInfo, 0, len(cfg.Tools))
	byName := make(map[string]tool.InvokableTool, len(cfg.Tools))
	for _, tl := range cfg.Tools {
		info, err := tl.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("agent: tool info: %w", err)
		}
		infos = append(infos, info)
		byName[info.Name] = tl
	}

	bound, err := cfg.ChatModel.WithTools(infos)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to bind tools: %w", err)
	}

	toolList, err := renderToolList(ctx, cfg.Tools)
	if err != nil {
		return nil, err
	}

	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	return &Agent{
		chatModel:        bound,
		toolsByName:      byName,
		toolList:         toolList,
		history:          cfg.History,
		maxSteps:         maxSteps,
		maxContextTokens: maxCtx,
		retryPolicy:      cfg.Retry,
		now:              time.Now,
	}, nil
}

// Invoke runs one conversational turn for the given thread and returns the
// agent's final answer. Prior turns are replayed from the history store;
// the new exchange (customer message, intermediate tool traffic, final
// answer) is persisted only after the turn completes, so a failed turn
// leaves the thread untouched.
//
// Turns for the same thread must not be invoked concurrently; the history
// is append-only and interleaved turns would corrupt the conversation order.
func (a *Agent) Invoke(ctx context.Context, threadID, userMessage string) (string, error) {
	log := logging.FromContext(ctx)

	messages, err := a.buildMessages(ctx, threadID, userMessage)
	if err != nil {
		return "", err
	}

	// delta accumulates this turn's messages for persistence on success.
	delta := []history.Message{{Role: history.RoleHuman, Content: userMessage}}

	for step := 1; step <= a.maxSteps; step++ {
		resp, err := retry.Do(ctx, a.retryPolicy, func(ctx context.Context) (*schema.Message, error) {
			// Inventory answers must be deterministic given the same tool
			// results, so the reasoning loop always samples at zero.
			return a.chatModel.Generate(ctx, messages, model.WithTemperature(0))
		})
		if err != nil {
			return "", presentableError(err)
		}

		if len(resp.ToolCalls) == 0 {
			// DONE — persist the completed exchange and return the answer.
			delta = append(delta, assistantToHistory(resp))
			a.persist(ctx, threadID, delta)
			log.Debug("agent: turn complete",
				slog.String("thread", threadID),
				slog.Int("steps", step),
			)
			return resp.Content, nil
		}

		// ACT — run every requested tool, then feed the results back in
		// request order for the next reasoning step.
		messages = append(messages, resp)
		delta = append(delta, assistantToHistory(resp))

		results := a.dispatchTools(ctx, resp.ToolCalls)
		for _, r := range results {
			messages = append(messages, r)
			delta = append(delta, toolResultToHistory(r))
		}
	}

	return "", fmt.Errorf("agent: no answer after %d reasoning steps — aborting this turn, please rephrase your question", a.maxSteps)
}

// dispatchTools executes the requested tool calls concurrently and returns
// their results in the same order the model requested them. Individual tool
// failures never abort the turn; they are returned as tool messages so the
// model can recover or apologise.
func (a *Agent) dispatchTools(ctx context.Context, calls []schema.ToolCall) []*schema.Message {
	log := logging.FromContext(ctx)

	results := make([]*schema.Message, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = a.runTool(gctx, call)
			return nil
		})
	}
	// Workers never return errors; Wait is only a join point.
	_ = g.Wait()

	log.Debug("agent: executed tool calls", slog.Int("count", len(calls)))
	return results
}

// runTool executes a single tool call, translating every failure mode into a
// tool message addressed back to the model.
func (a *Agent) runTool(ctx context.Context, call schema.ToolCall) *schema.Message {
	log := logging.FromContext(ctx)
	name := call.Function.Name

	tl, ok := a.toolsByName[name]
	if !ok {
		log.Warn("agent: model requested unknown tool", slog.String("tool", name))
		return schema.ToolMessage(
			fmt.Sprintf("unknown tool %q — the only available tools are listed in the system prompt", name),
			call.ID,
		)
	}

	out, err := tl.InvokableRun(ctx, call.Function.Arguments)
	if err != nil {
		log.Warn("agent: tool execution failed",
			slog.String("tool", name),
			slog.Any("error", err),
		)
		return schema.ToolMessage(
			fmt.Sprintf("tool %s failed: %v — tell the customer you could not check the inventory just now", name, err),
			call.ID,
		)
	}
	return schema.ToolMessage(out, call.ID)
}

// buildMessages assembles the model context for a turn: system prompt,
// budget-trimmed thread history, then the current customer message.
func (a *Agent) buildMessages(ctx context.Context, threadID, userMessage string) ([]*schema.Message, error) {
	log := logging.FromContext(ctx)

	system := schema.SystemMessage(buildSystemPrompt(a.now(), a.toolList))

	var historyMsgs []*schema.Message
	if a.history != nil {
		prior, err := a.history.Load(ctx, threadID)
		if err != nil {
			// A broken history store degrades the turn to stateless rather
			// than failing it.
			log.Warn("agent: failed to load thread history",
				slog.String("thread", threadID),
				slog.Any("error", err),
			)
		} else {
			historyMsgs = historyToSchema(prior)
		}
	}

	fixed := []*schema.Message{system, schema.UserMessage(userMessage)}
	before := len(historyMsgs)
	historyMsgs = budget.TrimHistory(fixed, historyMsgs, a.maxContextTokens)
	if dropped := before - len(historyMsgs); dropped > 0 {
		log.Warn("budget: dropped history messages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(historyMsgs)),
			slog.Int("max_tokens", a.maxContextTokens),
		)
	}

	messages := make([]*schema.Message, 0, 2+len(historyMsgs))
	messages = append(messages, system)
	messages = append(messages, historyMsgs...)
	messages = append(messages, schema.UserMessage(userMessage))
	return messages, nil
}

// persist appends the completed turn to the history store. Persistence
// failures are logged, not returned — the customer already has their answer.
func (a *Agent) persist(ctx context.Context, threadID string, delta []history.Message) {
	if a.history == nil {
		return
	}
	if err := a.history.Append(ctx, threadID, delta...); err != nil {
		logging.FromContext(ctx).Warn("agent: failed to persist turn",
			slog.String("thread", threadID),
			slog.Any("error", err),
		)
	}
}

// presentableError maps a model failure onto a message fit to show a
// customer, preserving the cause in the chain for logging and status
// mapping.
func presentableError(err error) error {
	switch retry.Classify(err) {
	case retry.KindRateLimit:
		return fmt.Errorf("the assistant is receiving too many requests right now — please try again in a moment: %w", err)
	case retry.KindAuth:
		return fmt.Errorf("the assistant could not authenticate with its language model provider — please contact the store if this persists: %w", err)
	default:
		return fmt.Errorf("something went wrong while generating a response — please try again: %w", err)
	}
}
