// Package tools contains the Eino tools the agent may invoke during a
// conversation. Each tool implements tool.InvokableTool and serialises its
// result as JSON for the model to read.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/rowanv/stocktalk/internal/search"
)

// defaultLookupCount is the number of items returned when the model omits n.
const defaultLookupCount = 10

// Searcher is the retrieval surface LookupTool depends on. Search never
// returns a Go error; failures are reported inside the envelope.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) *search.Envelope
}

// LookupTool is an Eino tool that searches the store inventory for items
// matching a natural-language query. The result envelope always includes the
// search type used (vector or text) so the model can qualify its answer.
type LookupTool struct {
	// searcher performs the hybrid inventory search.
	searcher Searcher
}

// lookupInput is the JSON-serialisable input schema for LookupTool.
type lookupInput struct {
	// Query is the natural-language description of the items to find.
	Query string `json:"query"`

	// N is the maximum number of items to return (default: 10).
	N int `json:"n,omitempty"`
}

// NewLookupTool constructs a LookupTool using the provided Searcher.
func NewLookupTool(searcher Searcher) *LookupTool {
	return &LookupTool{searcher: searcher}
}

// Name returns the tool name registered with the agent.
func (t *LookupTool) Name() string { return "item_lookup" }

// Description returns the LLM-facing description of this tool.
func (t *LookupTool) Description() string {
	return "Searches the store inventory for items matching a natural-language query. " +
		"Returns matching items with name, description, brand, categories, and prices, " +
		"plus the search strategy used ('vector' for semantic matches, 'text' for literal ones). " +
		"Use this whenever the customer asks about products, availability, or prices."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *LookupTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "Natural-language description of the items to find (e.g. 'blue velvet sofa under $1000').",
				Required: true,
			},
			"n": {
				Type: schema.Integer,
				Desc: "Maximum number of items to return (default: 10).",
			},
		}),
	}, nil
}

// InvokableRun executes the lookup given a JSON-encoded input string. Models
// occasionally emit the bare query instead of the JSON object; that is
// accepted and treated as {"query": <input>}. The returned string is always
// a JSON envelope — retrieval failures are reported inside it rather than as
// a Go error, so a failed lookup never aborts the conversation.
func (t *LookupTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	input := parseLookupInput(argumentsInJSON)
	if input.Query == "" {
		return "", fmt.Errorf("item_lookup: query is required")
	}
	if input.N <= 0 {
		input.N = defaultLookupCount
	}

	env := t.searcher.Search(ctx, input.Query, input.N)

	out, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("item_lookup: failed to encode results: %w", err)
	}
	return string(out), nil
}

// parseLookupInput decodes the tool arguments, falling back to treating the
// whole string as the query when it is not a JSON object. JSON-encoded bare
// strings are unwrapped before the fallback so the query does not carry
// stray quotes.
func parseLookupInput(argumentsInJSON string) lookupInput {
	var input lookupInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err == nil && input.Query != "" {
		return input
	}
	var bare string
	if err := json.Unmarshal([]byte(argumentsInJSON), &bare); err == nil {
		return lookupInput{Query: strings.TrimSpace(bare)}
	}
	return lookupInput{Query: strings.TrimSpace(argumentsInJSON)}
}
