package engine

import (
	"net/url"
	"strings"

	"github.com/go-go-golems/polyagent/pkg/inference/transport"
)

// Option is a functional option for configuring engines.
type Option func(*Config) error

// Config holds what every engine needs besides its credentials.
type Config struct {
	Transport transport.Transport
	// BaseURL replaces the vendor default endpoint, e.g. for a proxy.
	BaseURL string
	// APIVersion is only used by vendors that version their API in a header.
	APIVersion string
}

func NewConfig() *Config {
	return &Config{}
}

func WithTransport(t transport.Transport) Option {
	return func(c *Config) error {
		c.Transport = t
		return nil
	}
}

func WithBaseURL(u string) Option {
	return func(c *Config) error {
		c.BaseURL = u
		return nil
	}
}

func WithAPIVersion(v string) Option {
	return func(c *Config) error {
		c.APIVersion = v
		return nil
	}
}

// ApplyOptions applies options in order and fills in a default HTTP transport.
func ApplyOptions(config *Config, options ...Option) error {
	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}
	if config.Transport == nil {
		config.Transport = transport.NewHTTPTransport()
	}
	return nil
}

// BaseURLOrDefault returns the configured base URL, or def when none is set.
// The result never ends with a slash.
func (c *Config) BaseURLOrDefault(def string) (string, error) {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		return strings.TrimRight(def, "/"), nil
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", NewConfigurationError(ReasonInvalidBaseURL, "%q", base)
	}
	return strings.TrimRight(base, "/"), nil
}
