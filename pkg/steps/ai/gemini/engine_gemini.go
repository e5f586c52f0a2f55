package gemini

import (
	"context"
	"strings"

	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/gemini/api"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/types"
	"github.com/rs/zerolog/log"
)

// GeminiEngine implements engine.Engine for the Gemini generateContent API.
// The API key travels in the query string, there is no auth header.
type GeminiEngine struct {
	model  string
	apiKey string
	base   string
	config *engine.Config
}

var _ engine.Engine = (*GeminiEngine)(nil)

func NewGeminiEngine(model string, apiKey string, options ...engine.Option) (*GeminiEngine, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, engine.NewConfigurationError(engine.ReasonMissingAPIKey, "%s", types.ApiTypeGemini)
	}
	cfg := engine.NewConfig()
	if err := engine.ApplyOptions(cfg, options...); err != nil {
		return nil, err
	}
	base, err := cfg.BaseURLOrDefault(api.DefaultBaseURL)
	if err != nil {
		return nil, err
	}
	if !IsGeminiEngine(model) {
		log.Debug().Str("model", model).Msg("model name does not look like a Gemini model")
	}
	return &GeminiEngine{model: model, apiKey: apiKey, base: base, config: cfg}, nil
}

func (e *GeminiEngine) Provider() types.ApiType {
	return types.ApiTypeGemini
}

func (e *GeminiEngine) ModelName() string {
	return e.model
}

func (e *GeminiEngine) GenerateText(ctx context.Context, prompt string, opts engine.Options) (string, error) {
	resp, err := e.generate(ctx, engine.OperationText, opts.Resolve(prompt, e.model, false), nil)
	if err != nil {
		return "", err
	}
	return TextFromResponse(engine.OperationText, resp)
}

func (e *GeminiEngine) GenerateJSON(ctx context.Context, prompt string, opts engine.Options) (interface{}, error) {
	resp, err := e.generate(ctx, engine.OperationJSON, opts.Resolve(prompt, e.model, true), nil)
	if err != nil {
		return nil, err
	}
	text, err := TextFromResponse(engine.OperationJSON, resp)
	if err != nil {
		return nil, err
	}
	return engine.ParseJSONText(types.ApiTypeGemini, text)
}

func (e *GeminiEngine) UseTools(ctx context.Context, prompt string, tools []engine.ToolSpec, opts engine.Options) ([]engine.ToolCall, error) {
	resp, err := e.generate(ctx, engine.OperationTools, opts.Resolve(prompt, e.model, false), tools)
	if err != nil {
		return nil, err
	}
	return ToolCallsFromResponse(resp)
}

func (e *GeminiEngine) generate(
	ctx context.Context,
	op engine.Operation,
	req engine.GenerationRequest,
	tools []engine.ToolSpec,
) (*api.GenerateContentResponse, error) {
	body := MakeGenerateContentRequest(req, tools)
	log.Debug().
		Str("model", req.Model).
		Str("operation", string(op)).
		Int("contents", len(body.Contents)).
		Bool("system_instruction", body.SystemInstruction != nil).
		Int("tools", len(tools)).
		Msg("Gemini generateContent")

	url := GenerateContentURL(e.base, req.Model, e.apiKey)
	raw, err := engine.Call(ctx, e.config.Transport, types.ApiTypeGemini, op, url, nil, body)
	if err != nil {
		return nil, err
	}

	var resp api.GenerateContentResponse
	if err := engine.DecodeResponse(types.ApiTypeGemini, op, raw, &resp); err != nil {
		return nil, err
	}
	if resp.UsageMetadata != nil {
		log.Debug().
			Int("prompt_tokens", resp.UsageMetadata.PromptTokenCount).
			Int("candidate_tokens", resp.UsageMetadata.CandidatesTokenCount).
			Msg("Gemini usage")
	}
	return &resp, nil
}
