package factory

import (
	"sort"
	"strings"

	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/claude"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/gemini"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/openai"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/types"
)

// Constructor builds an engine for a bare model name.
type Constructor func(model string, apiKey string, options ...engine.Option) (engine.Engine, error)

// EngineFactory creates inference engines from "<provider>:<model>" identifiers.
// Call sites only ever see engine.Engine, so switching providers is a
// configuration change.
type EngineFactory interface {
	// CreateEngine resolves identifier and builds the engine. It fails with a
	// *engine.ConfigurationError before any network call.
	CreateEngine(identifier string, apiKey string, options ...engine.Option) (engine.Engine, error)

	// SupportedProviders returns the provider names, sorted.
	SupportedProviders() []string
}

// Resolution is the result of parsing an identifier.
type Resolution struct {
	Provider types.ApiType
	Model    string
	New      Constructor
}

// NewEngine builds the resolved engine with the resolved model.
func (r *Resolution) NewEngine(apiKey string, options ...engine.Option) (engine.Engine, error) {
	return r.New(r.Model, apiKey, options...)
}

// StandardEngineFactory maps every supported provider to its constructor.
type StandardEngineFactory struct {
	constructors map[types.ApiType]Constructor
}

var _ EngineFactory = (*StandardEngineFactory)(nil)

func openAIConstructor(apiType types.ApiType) Constructor {
	return func(model string, apiKey string, options ...engine.Option) (engine.Engine, error) {
		return openai.NewOpenAIEngine(apiType, model, apiKey, options...)
	}
}

func NewStandardEngineFactory() *StandardEngineFactory {
	f := &StandardEngineFactory{constructors: map[types.ApiType]Constructor{}}
	f.Register(types.ApiTypeGemini, func(model string, apiKey string, options ...engine.Option) (engine.Engine, error) {
		return gemini.NewGeminiEngine(model, apiKey, options...)
	})
	f.Register(types.ApiTypeAnthropic, func(model string, apiKey string, options ...engine.Option) (engine.Engine, error) {
		return claude.NewClaudeEngine(model, apiKey, options...)
	})
	for _, apiType := range types.OpenAICompatible {
		f.Register(apiType, openAIConstructor(apiType))
	}
	return f
}

// Register adds or replaces the constructor for a provider.
func (f *StandardEngineFactory) Register(provider types.ApiType, c Constructor) {
	f.constructors[provider] = c
}

// Resolve parses "<provider>:<model>": exactly one colon, both sides non-empty.
func (f *StandardEngineFactory) Resolve(identifier string) (*Resolution, error) {
	if strings.Count(identifier, ":") != 1 {
		return nil, engine.NewConfigurationError(engine.ReasonInvalidFormat,
			"expected <provider>:<model>, got %q", identifier)
	}
	provider, model, _ := strings.Cut(identifier, ":")
	if provider == "" || model == "" {
		return nil, engine.NewConfigurationError(engine.ReasonInvalidFormat,
			"expected <provider>:<model>, got %q", identifier)
	}

	c, ok := f.constructors[types.ApiType(provider)]
	if !ok {
		return nil, engine.NewConfigurationError(engine.ReasonUnsupportedProvider,
			"%s (supported: %s)", provider, strings.Join(f.SupportedProviders(), ", "))
	}
	return &Resolution{Provider: types.ApiType(provider), Model: model, New: c}, nil
}

func (f *StandardEngineFactory) CreateEngine(identifier string, apiKey string, options ...engine.Option) (engine.Engine, error) {
	r, err := f.Resolve(identifier)
	if err != nil {
		return nil, err
	}
	return r.NewEngine(apiKey, options...)
}

func (f *StandardEngineFactory) SupportedProviders() []string {
	ret := make([]string, 0, len(f.constructors))
	for p := range f.constructors {
		ret = append(ret, string(p))
	}
	sort.Strings(ret)
	return ret
}

var defaultFactory = NewStandardEngineFactory()

// Resolve parses identifier against the built-in providers.
func Resolve(identifier string) (*Resolution, error) {
	return defaultFactory.Resolve(identifier)
}

// SupportedProviders lists the built-in providers.
func SupportedProviders() []string {
	return defaultFactory.SupportedProviders()
}
