package settings

import (
	"time"

	"github.com/go-go-golems/polyagent/pkg/inference/transport"
	"github.com/go-go-golems/polyagent/pkg/security"
	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

type ClientSettings struct {
	Timeout            *time.Duration `yaml:"timeout,omitempty"`
	UserAgent          *string        `yaml:"user_agent,omitempty"`
	AllowHTTP          bool           `yaml:"allow_http,omitempty"`
	AllowLocalNetworks bool           `yaml:"allow_local_networks,omitempty"`
}

const DefaultTimeout = 60 * time.Second

func NewClientSettings() *ClientSettings {
	defaultTimeout := DefaultTimeout
	return &ClientSettings{
		Timeout: &defaultTimeout,
	}
}

// UnmarshalYAML reads the timeout as integer seconds.
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	var aux struct {
		Timeout            *int    `yaml:"timeout,omitempty"`
		UserAgent          *string `yaml:"user_agent,omitempty"`
		AllowHTTP          *bool   `yaml:"allow_http,omitempty"`
		AllowLocalNetworks *bool   `yaml:"allow_local_networks,omitempty"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	if aux.UserAgent != nil {
		cs.UserAgent = aux.UserAgent
	}
	if aux.AllowHTTP != nil {
		cs.AllowHTTP = *aux.AllowHTTP
	}
	if aux.AllowLocalNetworks != nil {
		cs.AllowLocalNetworks = *aux.AllowLocalNetworks
	}
	if aux.Timeout != nil {
		t := time.Duration(*aux.Timeout) * time.Second
		cs.Timeout = &t
	}
	return nil
}

func (cs *ClientSettings) Clone() *ClientSettings {
	return clone.Clone(cs).(*ClientSettings)
}

// NewTransport builds the HTTP transport these settings describe.
func (cs *ClientSettings) NewTransport() *transport.HTTPTransport {
	options := []transport.Option{
		transport.WithURLOptions(security.OutboundURLOptions{
			AllowHTTP:          cs.AllowHTTP,
			AllowLocalNetworks: cs.AllowLocalNetworks,
		}),
	}
	if cs.Timeout != nil {
		options = append(options, transport.WithTimeout(*cs.Timeout))
	}
	if cs.UserAgent != nil && *cs.UserAgent != "" {
		options = append(options, transport.WithUserAgent(*cs.UserAgent))
	}
	return transport.NewHTTPTransport(options...)
}
