package agent

import (
	"context"
	"sync"
	"time"

	"github.com/go-go-golems/polyagent/pkg/conversation"
	"github.com/go-go-golems/polyagent/pkg/events"
	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/go-go-golems/polyagent/pkg/inference/engine/factory"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/settings"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Config is what a caller needs to build an Agent.
type Config struct {
	// ProviderModel is "<provider>:<model>", e.g. "deepseek:deepseek-chat".
	ProviderModel string `yaml:"provider_model"`
	SystemPrompt  string `yaml:"system_prompt,omitempty"`
	APIKey        string `yaml:"-"`
}

// Result wraps the value returned by every Agent operation.
type Result[T any] struct {
	Data T `json:"data"`
}

// Agent talks to one provider and keeps the conversation it had with it.
//
// Every operation appends the prompt as a user turn, sends the whole
// transcript to the engine and appends the reply as an assistant turn. The
// user turn stays in the transcript when the call fails.
//
// An Agent is safe for concurrent use. Calls are serialized, so two
// concurrent calls never interleave their turns.
type Agent struct {
	mu sync.Mutex

	engine   engine.Engine
	state    *conversation.ConversationState
	chat     *settings.ChatSettings
	sinks    []events.EventSink
	provider types.ApiType
}

// New resolves config.ProviderModel and seeds the transcript with the
// system prompt. Anthropic has no system role, so its seed turn is a user
// turn. Configuration errors are returned before any network call.
func New(config Config, options ...Option) (*Agent, error) {
	o := &agentOptions{
		chat: settings.NewChatSettings(),
	}
	for _, option := range options {
		if err := option(o); err != nil {
			return nil, err
		}
	}

	var (
		e   engine.Engine
		err error
	)
	if o.factory != nil {
		e, err = o.factory.CreateEngine(config.ProviderModel, config.APIKey, o.engineOptions...)
	} else {
		var r *factory.Resolution
		r, err = factory.Resolve(config.ProviderModel)
		if err == nil {
			e, err = r.NewEngine(config.APIKey, o.engineOptions...)
		}
	}
	if err != nil {
		return nil, err
	}

	provider := e.Provider()
	a := &Agent{
		engine:   e,
		state:    conversation.NewConversationState(config.SystemPrompt, !provider.HasSystemRole()),
		chat:     o.chat,
		sinks:    o.sinks,
		provider: provider,
	}

	log.Debug().
		Str("provider", string(provider)).
		Str("model", e.ModelName()).
		Str("conversation_id", a.state.ID).
		Bool("system_prompt", config.SystemPrompt != "").
		Msg("agent created")

	return a, nil
}

// NewFromSettings builds an Agent from loaded settings. Options passed here
// are applied after the ones derived from s.
func NewFromSettings(s *settings.AgentSettings, options ...Option) (*Agent, error) {
	if s == nil {
		return nil, errors.New("settings cannot be nil")
	}
	config := Config{
		ProviderModel: s.ProviderModel,
		SystemPrompt:  s.SystemPrompt,
		APIKey:        s.APIKey(),
	}
	all := []Option{WithEngineOptions(s.EngineOptions()...)}
	if s.Chat != nil {
		all = append(all, WithChatSettings(s.Chat))
	}
	return New(config, append(all, options...)...)
}

func (a *Agent) Provider() types.ApiType {
	return a.provider
}

// Model returns the configured model. Per-call overrides don't change it.
func (a *Agent) Model() string {
	return a.engine.ModelName()
}

// ConversationID identifies this agent's transcript in logs and events.
func (a *Agent) ConversationID() string {
	return a.state.ID
}

// Execute generates text. An identical reply already present as an
// assistant turn is not appended again.
func (a *Agent) Execute(ctx context.Context, prompt interface{}, opts engine.CallOptions) (*Result[string], error) {
	return call(ctx, a, engine.OperationText, prompt, opts, true,
		func(ctx context.Context, p string, o engine.Options) (string, error) {
			return a.engine.GenerateText(ctx, p, o)
		})
}

// ExecuteJSON generates a JSON value in the vendor JSON mode. Anthropic has
// none and returns the reply text instead. The reply is always appended.
func (a *Agent) ExecuteJSON(ctx context.Context, prompt interface{}, opts engine.CallOptions) (*Result[interface{}], error) {
	return call(ctx, a, engine.OperationJSON, prompt, opts, false,
		func(ctx context.Context, p string, o engine.Options) (interface{}, error) {
			return a.engine.GenerateJSON(ctx, p, o)
		})
}

// ExecuteTools declares tools and returns the calls the model issued. The
// calls are stored as one JSON-encoded assistant turn, always appended.
func (a *Agent) ExecuteTools(ctx context.Context, prompt interface{}, tools []engine.ToolSpec, opts engine.CallOptions) (*Result[[]engine.ToolCall], error) {
	return call(ctx, a, engine.OperationTools, prompt, opts, false,
		func(ctx context.Context, p string, o engine.Options) ([]engine.ToolCall, error) {
			return a.engine.UseTools(ctx, p, tools, o)
		})
}

// ClearHistory drops every turn except the seed turn.
func (a *Agent) ClearHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Clear()
}

// GetHistory returns a copy of the transcript.
func (a *Agent) GetHistory() []conversation.Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Snapshot()
}

// HistoryTokens estimates the size of the transcript in cl100k_base tokens.
func (a *Agent) HistoryTokens() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.CountTokens()
}

type engineCall[T any] func(ctx context.Context, prompt string, opts engine.Options) (T, error)

func call[T any](
	ctx context.Context,
	a *Agent,
	op engine.Operation,
	prompt interface{},
	opts engine.CallOptions,
	deduplicate bool,
	f engineCall[T],
) (*Result[T], error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	text, err := conversation.Stringify(prompt)
	if err != nil {
		return nil, err
	}
	if err := a.state.AppendUser(text); err != nil {
		return nil, err
	}

	callOpts := a.chat.Merge(opts)
	resolved := engine.Options{CallOptions: callOpts}.Resolve(text, a.engine.ModelName(), op == engine.OperationJSON)
	meta := events.EventMetadata{
		ID:             uuid.New(),
		ConversationID: a.state.ID,
		Provider:       string(a.provider),
		Model:          resolved.Model,
		Operation:      string(op),
		MaxTokens:      &resolved.MaxTokens,
		Temperature:    &resolved.Temperature,
	}
	events.PublishAll(a.sinks, events.NewCallStartedEvent(meta))

	start := time.Now()
	value, err := f(ctx, text, engine.Options{
		CallOptions: callOpts,
		Messages:    a.state.Snapshot(),
	})
	elapsed := time.Since(start)
	if err != nil {
		log.Debug().Err(err).
			Str("provider", meta.Provider).
			Str("model", meta.Model).
			Str("operation", meta.Operation).
			Dur("duration", elapsed).
			Msg("agent call failed")
		events.PublishAll(a.sinks, events.NewCallFailedEvent(meta, elapsed, err))
		return nil, err
	}

	appended, err := a.state.AppendAssistant(value, deduplicate)
	if err != nil {
		events.PublishAll(a.sinks, events.NewCallFailedEvent(meta, elapsed, err))
		return nil, err
	}

	log.Debug().
		Str("provider", meta.Provider).
		Str("model", meta.Model).
		Str("operation", meta.Operation).
		Dur("duration", elapsed).
		Bool("appended", appended).
		Int("history", a.state.Len()).
		Msg("agent call completed")
	events.PublishAll(a.sinks, events.NewCallCompletedEvent(meta, elapsed, a.state.Len()))

	return &Result[T]{Data: value}, nil
}
