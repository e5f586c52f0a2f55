package claude

import (
	"context"
	"strings"

	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/claude/api"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/types"
	"github.com/rs/zerolog/log"
)

// ClaudeEngine implements engine.Engine for the Anthropic Messages API.
type ClaudeEngine struct {
	model      string
	apiKey     string
	apiVersion string
	endpoint   string
	config     *engine.Config
}

var _ engine.Engine = (*ClaudeEngine)(nil)

func NewClaudeEngine(model string, apiKey string, options ...engine.Option) (*ClaudeEngine, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, engine.NewConfigurationError(engine.ReasonMissingAPIKey, "%s", types.ApiTypeAnthropic)
	}

	config := engine.NewConfig()
	if err := engine.ApplyOptions(config, options...); err != nil {
		return nil, err
	}
	base, err := config.BaseURLOrDefault(api.DefaultBaseURL)
	if err != nil {
		return nil, err
	}
	version := config.APIVersion
	if version == "" {
		version = api.DefaultAPIVersion
	}

	return &ClaudeEngine{
		model:      model,
		apiKey:     apiKey,
		apiVersion: version,
		endpoint:   base + api.MessagesPath,
		config:     config,
	}, nil
}

func (e *ClaudeEngine) Provider() types.ApiType {
	return types.ApiTypeAnthropic
}

func (e *ClaudeEngine) ModelName() string {
	return e.model
}

func (e *ClaudeEngine) Endpoint() string {
	return e.endpoint
}

func (e *ClaudeEngine) GenerateText(ctx context.Context, prompt string, opts engine.Options) (string, error) {
	resp, err := e.send(ctx, engine.OperationText, opts.Resolve(prompt, e.model, false), nil)
	if err != nil {
		return "", err
	}
	return TextFromResponse(engine.OperationText, resp)
}

// GenerateJSON returns the reply text unparsed: the Messages API has no JSON mode.
func (e *ClaudeEngine) GenerateJSON(ctx context.Context, prompt string, opts engine.Options) (interface{}, error) {
	resp, err := e.send(ctx, engine.OperationJSON, opts.Resolve(prompt, e.model, false), nil)
	if err != nil {
		return nil, err
	}
	return TextFromResponse(engine.OperationJSON, resp)
}

func (e *ClaudeEngine) UseTools(ctx context.Context, prompt string, tools []engine.ToolSpec, opts engine.Options) ([]engine.ToolCall, error) {
	resp, err := e.send(ctx, engine.OperationTools, opts.Resolve(prompt, e.model, false), tools)
	if err != nil {
		return nil, err
	}
	return ToolCallsFromResponse(resp), nil
}

func (e *ClaudeEngine) send(
	ctx context.Context,
	op engine.Operation,
	req engine.GenerationRequest,
	tools []engine.ToolSpec,
) (*api.MessageResponse, error) {
	body := MakeMessageRequest(req, tools)
	log.Debug().
		Str("model", body.Model).
		Str("operation", string(op)).
		Int("messages", len(body.Messages)).
		Int("tools", len(body.Tools)).
		Msg("Claude messages request")

	headers := map[string]string{
		"x-api-key":         e.apiKey,
		"anthropic-version": e.apiVersion,
	}
	raw, err := engine.Call(ctx, e.config.Transport, types.ApiTypeAnthropic, op, e.endpoint, headers, body)
	if err != nil {
		return nil, err
	}

	var resp api.MessageResponse
	if err := engine.DecodeResponse(types.ApiTypeAnthropic, op, raw, &resp); err != nil {
		return nil, err
	}
	log.Debug().
		Str("stop_reason", resp.StopReason).
		Int("input_tokens", resp.Usage.InputTokens).
		Int("output_tokens", resp.Usage.OutputTokens).
		Msg("Claude messages response")
	return &resp, nil
}
