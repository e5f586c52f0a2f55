package gemini

import (
	"net/url"
	"strings"

	"github.com/go-go-golems/polyagent/pkg/conversation"
	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/gemini/api"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/types"
)

func IsGeminiEngine(engine string) bool {
	return strings.HasPrefix(engine, "gemini")
}

// GenerateContentURL returns <base>/models/{model}:generateContent?key={apiKey}.
func GenerateContentURL(base string, model string, apiKey string) string {
	return base + "/models/" + url.PathEscape(model) + ":generateContent?key=" + url.QueryEscape(apiKey)
}

// MakeGenerateContentRequest maps the transcript onto contents and appends the
// prompt as a final user turn. System turns become the systemInstruction.
func MakeGenerateContentRequest(req engine.GenerationRequest, tools []engine.ToolSpec) *api.GenerateContentRequest {
	ret := &api.GenerateContentRequest{
		Contents: make([]api.Content, 0, len(req.Messages)+1),
		GenerationConfig: api.GenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		},
	}

	var system []string
	for _, t := range req.Messages {
		switch t.Role {
		case conversation.RoleSystem:
			if t.Content != "" {
				system = append(system, t.Content)
			}
		case conversation.RoleAssistant:
			ret.Contents = append(ret.Contents, api.NewTextContent(api.RoleModel, t.Content))
		default:
			ret.Contents = append(ret.Contents, api.NewTextContent(api.RoleUser, t.Content))
		}
	}
	ret.Contents = append(ret.Contents, api.NewTextContent(api.RoleUser, req.Prompt))

	if len(system) > 0 {
		instruction := api.Content{Parts: []api.Part{api.NewTextPart(strings.Join(system, "\n\n"))}}
		ret.SystemInstruction = &instruction
	}
	if req.ResponseIsJSON {
		ret.GenerationConfig.ResponseMimeType = api.MimeTypeJSON
	}
	if len(tools) > 0 {
		decls := make([]api.FunctionDeclaration, 0, len(tools))
		for _, tool := range tools {
			decls = append(decls, api.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.ParametersOrDefault(),
			})
		}
		ret.Tools = []api.Tool{{FunctionDeclarations: decls}}
	}
	return ret
}

// firstPart returns candidates[0].content.parts[0].
func firstPart(op engine.Operation, resp *api.GenerateContentResponse) (*api.Part, error) {
	if len(resp.Candidates) == 0 {
		return nil, engine.NewResponseError(types.ApiTypeGemini, op, engine.ReasonMissingCandidates, nil)
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return nil, engine.NewResponseError(types.ApiTypeGemini, op, engine.ReasonMissingContent, nil)
	}
	if len(content.Parts) == 0 {
		return nil, engine.NewResponseError(types.ApiTypeGemini, op, engine.ReasonMissingParts, nil)
	}
	return &content.Parts[0], nil
}

// TextFromResponse returns candidates[0].content.parts[0].text, trimmed.
func TextFromResponse(op engine.Operation, resp *api.GenerateContentResponse) (string, error) {
	part, err := firstPart(op, resp)
	if err != nil {
		return "", err
	}
	if part.Text == nil {
		return "", engine.NewResponseError(types.ApiTypeGemini, op, engine.ReasonMissingContent, nil)
	}
	return strings.TrimSpace(*part.Text), nil
}

// ToolCallsFromResponse wraps the single functionCall of the first part in a
// list. A reply without a function call yields an empty list.
func ToolCallsFromResponse(resp *api.GenerateContentResponse) ([]engine.ToolCall, error) {
	part, err := firstPart(engine.OperationTools, resp)
	if err != nil {
		return nil, err
	}
	if part.FunctionCall == nil {
		return []engine.ToolCall{}, nil
	}
	return []engine.ToolCall{
		engine.NewToolCall("", nil, part.FunctionCall.Name, part.FunctionCall.Args),
	}, nil
}
