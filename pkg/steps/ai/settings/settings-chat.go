package settings

import (
	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/huandu/go-clone"
)

// ChatSettings are the defaults applied to every call of an agent. Unset
// fields fall back to engine.DefaultMaxTokens and engine.DefaultTemperature.
type ChatSettings struct {
	Model             *string  `yaml:"model,omitempty"`
	MaxResponseTokens *int     `yaml:"max_response_tokens,omitempty"`
	Temperature       *float64 `yaml:"temperature,omitempty"`
}

func NewChatSettings() *ChatSettings {
	return &ChatSettings{}
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}

// CallOptions returns the settings as per-call overrides.
func (s *ChatSettings) CallOptions() engine.CallOptions {
	ret := engine.CallOptions{
		MaxTokens:   s.MaxResponseTokens,
		Temperature: s.Temperature,
	}
	if s.Model != nil {
		ret.Model = *s.Model
	}
	return ret
}

// Merge returns opts with every unset field taken from s.
func (s *ChatSettings) Merge(opts engine.CallOptions) engine.CallOptions {
	defaults := s.CallOptions()
	if opts.Model == "" {
		opts.Model = defaults.Model
	}
	if opts.MaxTokens == nil {
		opts.MaxTokens = defaults.MaxTokens
	}
	if opts.Temperature == nil {
		opts.Temperature = defaults.Temperature
	}
	return opts
}
