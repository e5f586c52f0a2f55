package settings

import (
	"github.com/huandu/go-clone"
)

// APISettings holds credentials and endpoint overrides, keyed
// "<provider>-api-key" and "<provider>-base-url".
type APISettings struct {
	APIKeys  map[string]string `yaml:"api_keys,omitempty"`
	BaseUrls map[string]string `yaml:"base_urls,omitempty"`
}

func NewAPISettings() *APISettings {
	return &APISettings{
		APIKeys:  map[string]string{},
		BaseUrls: map[string]string{},
	}
}

func (s *APISettings) Clone() *APISettings {
	return clone.Clone(s).(*APISettings)
}

func APIKeyName(provider string) string {
	return provider + "-api-key"
}

func BaseURLName(provider string) string {
	return provider + "-base-url"
}

func (s *APISettings) APIKeyFor(provider string) string {
	return s.APIKeys[APIKeyName(provider)]
}

func (s *APISettings) BaseURLFor(provider string) string {
	return s.BaseUrls[BaseURLName(provider)]
}

func (s *APISettings) SetAPIKey(provider string, key string) {
	if s.APIKeys == nil {
		s.APIKeys = map[string]string{}
	}
	s.APIKeys[APIKeyName(provider)] = key
}

func (s *APISettings) SetBaseURL(provider string, url string) {
	if s.BaseUrls == nil {
		s.BaseUrls = map[string]string{}
	}
	s.BaseUrls[BaseURLName(provider)] = url
}
