package claude

import (
	"strings"

	"github.com/go-go-golems/polyagent/pkg/conversation"
	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/claude/api"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/types"
)

// MakeMessageRequest builds a Messages API request. The API has no system
// role, so a system turn reaching this point is sent as a user message.
func MakeMessageRequest(req engine.GenerationRequest, tools []engine.ToolSpec) *api.MessageRequest {
	ret := &api.MessageRequest{
		Model:       req.Model,
		Messages:    messagesFromTurns(req.Messages, req.Prompt),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	for _, tool := range tools {
		ret.Tools = append(ret.Tools, api.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.ParametersOrDefault(),
		})
	}
	return ret
}

func messagesFromTurns(turns []conversation.Turn, prompt string) []api.Message {
	if len(turns) == 0 {
		return []api.Message{{Role: string(conversation.RoleUser), Content: prompt}}
	}
	ret := make([]api.Message, 0, len(turns))
	for _, t := range turns {
		role := t.Role
		if role == conversation.RoleSystem {
			role = conversation.RoleUser
		}
		ret = append(ret, api.Message{Role: string(role), Content: t.Content})
	}
	return ret
}

// TextFromResponse returns content[0].text, trimmed.
func TextFromResponse(op engine.Operation, resp *api.MessageResponse) (string, error) {
	if len(resp.Content) == 0 {
		return "", engine.NewResponseError(types.ApiTypeAnthropic, op, engine.ReasonMissingContent, nil)
	}
	first := resp.Content[0]
	if first.Text == nil {
		return "", engine.NewResponseError(types.ApiTypeAnthropic, op, engine.ReasonMissingContent, nil)
	}
	return strings.TrimSpace(*first.Text), nil
}

// ToolCallsFromResponse normalizes the tool_use blocks. Index is the position
// among tool_use blocks, not in the whole content array.
func ToolCallsFromResponse(resp *api.MessageResponse) []engine.ToolCall {
	uses := resp.ToolUses()
	ret := make([]engine.ToolCall, 0, len(uses))
	for i, use := range uses {
		idx := i
		ret = append(ret, engine.NewToolCall(use.ID, &idx, use.Name, use.Input))
	}
	return ret
}
