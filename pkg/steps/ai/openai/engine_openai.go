package openai

import (
	"context"
	"strings"

	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/types"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// OpenAIEngine implements engine.Engine for every provider speaking the
// OpenAI chat completions wire shape.
type OpenAIEngine struct {
	apiType  types.ApiType
	model    string
	apiKey   string
	endpoint string
	config   *engine.Config
}

var _ engine.Engine = (*OpenAIEngine)(nil)

// NewOpenAIEngine creates an engine for one of types.OpenAICompatible.
func NewOpenAIEngine(apiType types.ApiType, model string, apiKey string, options ...engine.Option) (*OpenAIEngine, error) {
	base, ok := DefaultBaseURLs[apiType]
	if !ok {
		return nil, engine.NewConfigurationError(engine.ReasonUnsupportedProvider, "%s is not OpenAI compatible", apiType)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, engine.NewConfigurationError(engine.ReasonMissingAPIKey, "%s", apiType)
	}

	config := engine.NewConfig()
	if err := engine.ApplyOptions(config, options...); err != nil {
		return nil, err
	}
	base, err := config.BaseURLOrDefault(base)
	if err != nil {
		return nil, err
	}

	return &OpenAIEngine{
		apiType:  apiType,
		model:    model,
		apiKey:   apiKey,
		endpoint: base + chatCompletionsPath,
		config:   config,
	}, nil
}

func (e *OpenAIEngine) Provider() types.ApiType {
	return e.apiType
}

func (e *OpenAIEngine) ModelName() string {
	return e.model
}

// Endpoint returns the chat completions URL requests are posted to.
func (e *OpenAIEngine) Endpoint() string {
	return e.endpoint
}

func (e *OpenAIEngine) GenerateText(ctx context.Context, prompt string, opts engine.Options) (string, error) {
	resp, err := e.complete(ctx, engine.OperationText, opts.Resolve(prompt, e.model, false), nil)
	if err != nil {
		return "", err
	}
	return TextFromResponse(e.apiType, engine.OperationText, resp)
}

func (e *OpenAIEngine) GenerateJSON(ctx context.Context, prompt string, opts engine.Options) (interface{}, error) {
	resp, err := e.complete(ctx, engine.OperationJSON, opts.Resolve(prompt, e.model, true), nil)
	if err != nil {
		return nil, err
	}
	text, err := TextFromResponse(e.apiType, engine.OperationJSON, resp)
	if err != nil {
		return nil, err
	}
	return engine.ParseJSONText(e.apiType, text)
}

func (e *OpenAIEngine) UseTools(ctx context.Context, prompt string, tools []engine.ToolSpec, opts engine.Options) ([]engine.ToolCall, error) {
	resp, err := e.complete(ctx, engine.OperationTools, opts.Resolve(prompt, e.model, false), tools)
	if err != nil {
		return nil, err
	}
	return ToolCallsFromResponse(e.apiType, resp)
}

func (e *OpenAIEngine) complete(
	ctx context.Context,
	op engine.Operation,
	req engine.GenerationRequest,
	tools []engine.ToolSpec,
) (*go_openai.ChatCompletionResponse, error) {
	body := MakeCompletionRequest(req, tools)
	log.Debug().
		Str("provider", string(e.apiType)).
		Str("model", body.Model).
		Str("operation", string(op)).
		Int("messages", len(body.Messages)).
		Int("tools", len(body.Tools)).
		Msg("OpenAI chat completion")

	headers := map[string]string{
		"Authorization": "Bearer " + e.apiKey,
	}
	raw, err := engine.Call(ctx, e.config.Transport, e.apiType, op, e.endpoint, headers, body)
	if err != nil {
		return nil, err
	}

	var resp go_openai.ChatCompletionResponse
	if err := engine.DecodeResponse(e.apiType, op, raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
