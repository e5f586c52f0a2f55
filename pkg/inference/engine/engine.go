package engine

import (
	"context"

	"github.com/go-go-golems/polyagent/pkg/conversation"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/types"
)

const (
	DefaultMaxTokens   = 50
	DefaultTemperature = 0.7
)

// Engine translates normalized requests into one vendor's wire format and
// normalizes the vendor's response back.
//
// Engines never touch the conversation state: every call gets the full
// transcript in Options.Messages and returns a value, or an error.
type Engine interface {
	// GenerateText returns the trimmed text of the first completion.
	GenerateText(ctx context.Context, prompt string, opts Options) (string, error)
	// GenerateJSON enables the vendor JSON mode and returns the decoded value.
	// Vendors without a JSON mode return the raw text instead.
	GenerateJSON(ctx context.Context, prompt string, opts Options) (interface{}, error)
	// UseTools declares tools and returns the tool calls the model issued.
	UseTools(ctx context.Context, prompt string, tools []ToolSpec, opts Options) ([]ToolCall, error)

	Provider() types.ApiType
	// ModelName returns the model used when Options.Model is empty.
	ModelName() string
}

// CallOptions are the per-call overrides recognized by the agent.
// Zero values mean "use the default".
type CallOptions struct {
	// Model overrides the configured model for this call only.
	Model       string   `json:"model,omitempty" yaml:"model,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// Options is what an engine receives on every call.
type Options struct {
	CallOptions
	Messages []conversation.Turn
}

// GenerationRequest is Options with every default applied.
type GenerationRequest struct {
	Prompt         string
	Messages       []conversation.Turn
	Model          string
	MaxTokens      int
	Temperature    float64
	ResponseIsJSON bool
}

// Resolve applies the defaults shared by all engines.
func (o Options) Resolve(prompt string, defaultModel string, jsonMode bool) GenerationRequest {
	req := GenerationRequest{
		Prompt:         prompt,
		Messages:       o.Messages,
		Model:          defaultModel,
		MaxTokens:      DefaultMaxTokens,
		Temperature:    DefaultTemperature,
		ResponseIsJSON: jsonMode,
	}
	if o.Model != "" {
		req.Model = o.Model
	}
	if o.MaxTokens != nil {
		req.MaxTokens = *o.MaxTokens
	}
	if o.Temperature != nil {
		req.Temperature = *o.Temperature
	}
	return req
}

// Operation names an engine operation, for logs, events and errors.
type Operation string

const (
	OperationText  Operation = "generate_text"
	OperationJSON  Operation = "generate_json"
	OperationTools Operation = "use_tools"
)
