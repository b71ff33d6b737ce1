package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/rowanv/stocktalk/internal/budget"
	"github.com/rowanv/stocktalk/internal/history"
	"github.com/rowanv/stocktalk/internal/logging"
	"github.com/rowanv/stocktalk/internal/retry"
)

// DefaultDirectTemperature is the sampling temperature for direct answers.
// Unlike the tool loop, general advice reads better with some variety.
const DefaultDirectTemperature float32 = 0.7

// ResponderConfig holds the dependencies required to construct a Responder.
type ResponderConfig struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.ToolCallingChatModel

	// History is the optional conversation store. If nil, each answer is
	// stateless.
	History history.Store

	// Temperature is the sampling temperature for answers. Defaults to
	// DefaultDirectTemperature if zero.
	Temperature float32

	// MaxContextTokens is the estimated token budget for the input context.
	// Defaults to budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int

	// Retry is the backoff policy applied to model calls.
	Retry retry.Policy
}

// Responder answers customer questions in a single model call with no tool
// access. It serves the general-advice surface where inventory grounding is
// not needed.
type Responder struct {
	chatModel        model.ToolCallingChatModel
	history          history.Store
	temperature      float32
	maxContextTokens int
	retryPolicy      retry.Policy
}

// NewResponder constructs a Responder from the provided config.
func NewResponder(cfg *ResponderConfig) (*Responder, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}
	temp := cfg.Temperature
	if temp == 0 {
		temp = DefaultDirectTemperature
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}
	return &Responder{
		chatModel:        cfg.ChatModel,
		history:          cfg.History,
		temperature:      temp,
		maxContextTokens: maxCtx,
		retryPolicy:      cfg.Retry,
	}, nil
}

// Respond answers a customer question directly and returns the reply. Prior
// turns are replayed for context; the new exchange is persisted only after
// the model answers.
func (r *Responder) Respond(ctx context.Context, threadID, question string) (string, error) {
	log := logging.FromContext(ctx)

	system := schema.SystemMessage(directSystemPrompt)

	var historyMsgs []*schema.Message
	if r.history != nil {
		prior, err := r.history.Load(ctx, threadID)
		if err != nil {
			log.Warn("agent: failed to load thread history",
				slog.String("thread", threadID),
				slog.Any("error", err),
			)
		} else {
			historyMsgs = historyToSchema(prior)
		}
	}

	fixed := []*schema.Message{system, schema.UserMessage(question)}
	historyMsgs = budget.TrimHistory(fixed, historyMsgs, r.maxContextTokens)

	messages := make([]*schema.Message, 0, 2+len(historyMsgs))
	messages = append(messages, system)
	messages = append(messages, historyMsgs...)
	messages = append(messages, schema.UserMessage(question))

	resp, err := retry.Do(ctx, r.retryPolicy, func(ctx context.Context) (*schema.Message, error) {
		return r.chatModel.Generate(ctx, messages, model.WithTemperature(r.temperature))
	})
	if err != nil {
		return "", presentableError(err)
	}

	if r.history != nil {
		delta := []history.Message{
			{Role: history.RoleHuman, Content: question},
			{Role: history.RoleAI, Content: resp.Content},
		}
		if err := r.history.Append(ctx, threadID, delta...); err != nil {
			log.Warn("agent: failed to persist turn",
				slog.String("thread", threadID),
				slog.Any("error", err),
			)
		}
	}

	return resp.Content, nil
}
