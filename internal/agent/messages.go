package agent

import (
	"github.com/cloudwego/eino/schema"

	"github.com/rowanv/stocktalk/internal/history"
)

// historyToSchema converts persisted thread messages into the eino message
// shape for injection into the model context. Messages with roles the model
// API cannot replay are skipped rather than failing the turn.
func historyToSchema(msgs []history.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case history.RoleHuman:
			out = append(out, schema.UserMessage(m.Content))
		case history.RoleAI:
			am := &schema.Message{
				Role:    schema.Assistant,
				Content: m.Content,
			}
			for _, tc := range m.ToolCalls {
				am.ToolCalls = append(am.ToolCalls, schema.ToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: schema.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, am)
		case history.RoleTool:
			out = append(out, schema.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

// assistantToHistory converts a model response into its persisted form.
func assistantToHistory(m *schema.Message) history.Message {
	hm := history.Message{
		Role:    history.RoleAI,
		Content: m.Content,
	}
	for _, tc := range m.ToolCalls {
		hm.ToolCalls = append(hm.ToolCalls, history.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return hm
}

// toolResultToHistory converts a tool result message into its persisted form.
func toolResultToHistory(m *schema.Message) history.Message {
	return history.Message{
		Role:       history.RoleTool,
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
}
