package agent

import (
	"github.com/go-go-golems/polyagent/pkg/events"
	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/go-go-golems/polyagent/pkg/inference/engine/factory"
	"github.com/go-go-golems/polyagent/pkg/inference/transport"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/settings"
	"github.com/pkg/errors"
)

type agentOptions struct {
	factory       factory.EngineFactory
	engineOptions []engine.Option
	chat          *settings.ChatSettings
	sinks         []events.EventSink
}

// Option configures an Agent at construction time.
type Option func(*agentOptions) error

// WithTransport replaces the HTTP transport, e.g. with a simulated vendor.
func WithTransport(t transport.Transport) Option {
	return func(o *agentOptions) error {
		if t == nil {
			return errors.New("transport cannot be nil")
		}
		o.engineOptions = append(o.engineOptions, engine.WithTransport(t))
		return nil
	}
}

// WithBaseURL points the engine at a proxy instead of the vendor endpoint.
func WithBaseURL(u string) Option {
	return func(o *agentOptions) error {
		o.engineOptions = append(o.engineOptions, engine.WithBaseURL(u))
		return nil
	}
}

// WithClientSettings builds the HTTP transport from cs.
func WithClientSettings(cs *settings.ClientSettings) Option {
	return func(o *agentOptions) error {
		if cs == nil {
			return errors.New("client settings cannot be nil")
		}
		o.engineOptions = append(o.engineOptions, engine.WithTransport(cs.NewTransport()))
		return nil
	}
}

func WithEngineOptions(options ...engine.Option) Option {
	return func(o *agentOptions) error {
		o.engineOptions = append(o.engineOptions, options...)
		return nil
	}
}

// WithEventSink adds a sink receiving call events. May be given several times.
func WithEventSink(sink events.EventSink) Option {
	return func(o *agentOptions) error {
		if sink == nil {
			return errors.New("event sink cannot be nil")
		}
		o.sinks = append(o.sinks, sink)
		return nil
	}
}

// WithFactory resolves the provider-model identifier with f instead of the
// built-in providers.
func WithFactory(f factory.EngineFactory) Option {
	return func(o *agentOptions) error {
		if f == nil {
			return errors.New("factory cannot be nil")
		}
		o.factory = f
		return nil
	}
}

// WithChatSettings sets the per-call defaults used when a call leaves an
// option unset.
func WithChatSettings(cs *settings.ChatSettings) Option {
	return func(o *agentOptions) error {
		if cs == nil {
			return errors.New("chat settings cannot be nil")
		}
		o.chat = cs.Clone()
		return nil
	}
}
