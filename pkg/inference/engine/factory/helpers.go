package factory

import (
	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/settings"
	"github.com/pkg/errors"
)

// NewEngineFromAgentSettings resolves s.ProviderModel and builds the engine
// with the key, transport and base URL from s. Options passed here win.
func NewEngineFromAgentSettings(s *settings.AgentSettings, options ...engine.Option) (engine.Engine, error) {
	if s == nil {
		return nil, errors.New("settings cannot be nil")
	}
	r, err := Resolve(s.ProviderModel)
	if err != nil {
		return nil, err
	}
	allOptions := append(s.EngineOptions(), options...)
	return r.NewEngine(s.API.APIKeyFor(string(r.Provider)), allOptions...)
}
