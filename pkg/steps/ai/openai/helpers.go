package openai

import (
	"encoding/json"
	"strings"

	"github.com/go-go-golems/polyagent/pkg/conversation"
	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/types"
	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"
)

// DefaultBaseURLs are the API roots of the OpenAI-shaped providers.
// The chat endpoint is always <base>/chat/completions.
var DefaultBaseURLs = map[types.ApiType]string{
	types.ApiTypeOpenAI:     "https://api.openai.com/v1",
	types.ApiTypeDeepSeek:   "https://api.deepseek.com",
	types.ApiTypeOpenRouter: "https://api.openrouter.ai/api/v1",
	types.ApiTypeFireworks:  "https://api.fireworks.ai/inference/v1",
	types.ApiTypeTogether:   "https://api.together.xyz/v1",
	types.ApiTypeDeepInfra:  "https://api.deepinfra.com/v1/openai",
	types.ApiTypeGroq:       "https://api.groq.com/openai/v1",
}

const chatCompletionsPath = "/chat/completions"

// ChatCompletionRequest mirrors go_openai.ChatCompletionRequest but always
// sends max_tokens and temperature, even when zero.
type ChatCompletionRequest struct {
	Model          string                                  `json:"model"`
	Messages       []go_openai.ChatCompletionMessage       `json:"messages"`
	MaxTokens      int                                     `json:"max_tokens"`
	Temperature    float64                                 `json:"temperature"`
	ResponseFormat *go_openai.ChatCompletionResponseFormat `json:"response_format,omitempty"`
	Tools          []go_openai.Tool                        `json:"tools,omitempty"`
}

// MakeCompletionRequest builds the chat completion body for a resolved request.
// The transcript already ends with the prompt; the prompt alone is sent only
// when no transcript was given.
func MakeCompletionRequest(req engine.GenerationRequest, tools []engine.ToolSpec) *ChatCompletionRequest {
	ret := &ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messagesFromTurns(req.Messages, req.Prompt),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.ResponseIsJSON {
		ret.ResponseFormat = &go_openai.ChatCompletionResponseFormat{
			Type: go_openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	if len(tools) > 0 {
		ret.Tools = toolsToOpenAI(tools)
	}
	return ret
}

func messagesFromTurns(turns []conversation.Turn, prompt string) []go_openai.ChatCompletionMessage {
	if len(turns) == 0 {
		return []go_openai.ChatCompletionMessage{{Role: go_openai.ChatMessageRoleUser, Content: prompt}}
	}
	ret := make([]go_openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		ret = append(ret, go_openai.ChatCompletionMessage{
			Role:    string(t.Role),
			Content: t.Content,
		})
	}
	return ret
}

func toolsToOpenAI(tools []engine.ToolSpec) []go_openai.Tool {
	ret := make([]go_openai.Tool, 0, len(tools))
	for _, tool := range tools {
		ret = append(ret, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: &go_openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.ParametersOrDefault(),
			},
		})
	}
	return ret
}

// firstMessage returns choices[0].message.
func firstMessage(provider types.ApiType, op engine.Operation, resp *go_openai.ChatCompletionResponse) (*go_openai.ChatCompletionMessage, error) {
	if len(resp.Choices) == 0 {
		return nil, engine.NewResponseError(provider, op, engine.ReasonMissingChoices, nil)
	}
	return &resp.Choices[0].Message, nil
}

// TextFromResponse returns the trimmed content of the first choice.
func TextFromResponse(provider types.ApiType, op engine.Operation, resp *go_openai.ChatCompletionResponse) (string, error) {
	msg, err := firstMessage(provider, op, resp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(msg.Content), nil
}

// ToolCallsFromResponse converts choices[0].message.tool_calls. Arguments
// stay the JSON-encoded string the vendor sent. No tool calls is not an error.
func ToolCallsFromResponse(provider types.ApiType, resp *go_openai.ChatCompletionResponse) ([]engine.ToolCall, error) {
	msg, err := firstMessage(provider, engine.OperationTools, resp)
	if err != nil {
		return nil, err
	}

	ret := make([]engine.ToolCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		args, err := json.Marshal(tc.Function.Arguments)
		if err != nil {
			return nil, errors.Wrapf(err, "could not encode arguments of %s", tc.Function.Name)
		}
		call := engine.NewToolCall(tc.ID, tc.Index, tc.Function.Name, args)
		if tc.Type != "" {
			call.Type = string(tc.Type)
		}
		ret = append(ret, call)
	}
	return ret, nil
}
