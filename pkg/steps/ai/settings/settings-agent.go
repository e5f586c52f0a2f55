package settings

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-go-golems/polyagent/pkg/helpers"
	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// AgentSettings is everything needed to build an agent.
type AgentSettings struct {
	// ProviderModel is "<provider>:<model>", e.g. "groq:llama3-8b-8192".
	ProviderModel string          `yaml:"provider_model"`
	SystemPrompt  string          `yaml:"system_prompt,omitempty"`
	Chat          *ChatSettings   `yaml:"chat,omitempty"`
	Client        *ClientSettings `yaml:"client,omitempty"`
	API           *APISettings    `yaml:"api,omitempty"`
}

func NewAgentSettings() *AgentSettings {
	return &AgentSettings{
		Chat:   NewChatSettings(),
		Client: NewClientSettings(),
		API:    NewAPISettings(),
	}
}

func (s *AgentSettings) Clone() *AgentSettings {
	return clone.Clone(s).(*AgentSettings)
}

// NewAgentSettingsFromYAML decodes settings from a YAML document. Sections
// left out keep their defaults.
func NewAgentSettingsFromYAML(r io.Reader) (*AgentSettings, error) {
	s := NewAgentSettings()
	if err := yaml.NewDecoder(r).Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "could not decode agent settings")
	}
	s.ensureSections()
	return s, nil
}

func (s *AgentSettings) ensureSections() {
	if s.Chat == nil {
		s.Chat = NewChatSettings()
	}
	if s.Client == nil {
		s.Client = NewClientSettings()
	}
	if s.API == nil {
		s.API = NewAPISettings()
	}
}

// Provider returns the provider half of ProviderModel, or "" if it has none.
func (s *AgentSettings) Provider() string {
	provider, _, ok := strings.Cut(s.ProviderModel, ":")
	if !ok {
		return ""
	}
	return provider
}

func (s *AgentSettings) APIKey() string {
	if s.API == nil {
		return ""
	}
	return s.API.APIKeyFor(s.Provider())
}

// EngineOptions returns the transport and base URL options for the configured
// provider. Missing sections fall back to their defaults.
func (s *AgentSettings) EngineOptions() []engine.Option {
	client := s.Client
	if client == nil {
		client = NewClientSettings()
	}
	options := []engine.Option{engine.WithTransport(client.NewTransport())}
	if s.API == nil {
		return options
	}
	if u := s.API.BaseURLFor(s.Provider()); u != "" {
		options = append(options, engine.WithBaseURL(u))
	}
	return options
}

// Viper keys read by NewAgentSettingsFromViper.
const (
	KeyConfig             = "config"
	KeyProviderModel      = "provider-model"
	KeySystemPrompt       = "system-prompt"
	KeyAPIKey             = "api-key"
	KeyBaseURL            = "base-url"
	KeyModel              = "model"
	KeyMaxTokens          = "max-tokens"
	KeyTemperature        = "temperature"
	KeyTimeout            = "timeout"
	KeyUserAgent          = "user-agent"
	KeyAllowHTTP          = "allow-http"
	KeyAllowLocalNetworks = "allow-local-networks"
)

// EnvPrefix is the viper environment prefix, POLYAGENT_PROVIDER_MODEL and so on.
const EnvPrefix = "POLYAGENT"

// NewAgentSettingsFromViper loads the YAML file named by "config", if any,
// then overlays every key set in v. The API key falls back to
// "<provider>-api-key", which is also bound to POLYAGENT_<PROVIDER>_API_KEY
// and <PROVIDER>_API_KEY.
func NewAgentSettingsFromViper(v *viper.Viper) (*AgentSettings, error) {
	s := NewAgentSettings()
	if path := v.GetString(KeyConfig); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "could not open config file %s", path)
		}
		defer func() {
			_ = f.Close()
		}()
		s, err = NewAgentSettingsFromYAML(f)
		if err != nil {
			return nil, errors.Wrapf(err, "could not load config file %s", path)
		}
	}

	if v.IsSet(KeyProviderModel) {
		s.ProviderModel = v.GetString(KeyProviderModel)
	}
	if v.IsSet(KeySystemPrompt) {
		s.SystemPrompt = v.GetString(KeySystemPrompt)
	}
	if v.IsSet(KeyModel) {
		s.Chat.Model = helpers.ToPtr(v.GetString(KeyModel))
	}
	if v.IsSet(KeyMaxTokens) {
		s.Chat.MaxResponseTokens = helpers.ToPtr(v.GetInt(KeyMaxTokens))
	}
	if v.IsSet(KeyTemperature) {
		s.Chat.Temperature = helpers.ToPtr(v.GetFloat64(KeyTemperature))
	}
	if v.IsSet(KeyTimeout) {
		s.Client.Timeout = helpers.ToPtr(time.Duration(v.GetInt(KeyTimeout)) * time.Second)
	}
	if v.IsSet(KeyUserAgent) {
		s.Client.UserAgent = helpers.ToPtr(v.GetString(KeyUserAgent))
	}
	if v.IsSet(KeyAllowHTTP) {
		s.Client.AllowHTTP = v.GetBool(KeyAllowHTTP)
	}
	if v.IsSet(KeyAllowLocalNetworks) {
		s.Client.AllowLocalNetworks = v.GetBool(KeyAllowLocalNetworks)
	}

	provider := s.Provider()
	if provider == "" {
		return s, nil
	}

	if u := v.GetString(KeyBaseURL); u != "" {
		s.API.SetBaseURL(provider, u)
	}

	if key := v.GetString(KeyAPIKey); key != "" {
		s.API.SetAPIKey(provider, key)
		return s, nil
	}
	if err := s.LoadAPIKeyFromViper(v); err != nil {
		return nil, err
	}

	return s, nil
}

// LoadAPIKeyFromViper fills in the key of the configured provider when it
// has none yet, from "<provider>-api-key", POLYAGENT_<PROVIDER>_API_KEY or
// <PROVIDER>_API_KEY.
func (s *AgentSettings) LoadAPIKeyFromViper(v *viper.Viper) error {
	provider := s.Provider()
	if provider == "" || s.API.APIKeyFor(provider) != "" {
		return nil
	}
	name := APIKeyName(provider)
	upper := strings.ToUpper(strings.ReplaceAll(provider, "-", "_"))
	if err := v.BindEnv(name, EnvPrefix+"_"+upper+"_API_KEY", upper+"_API_KEY"); err != nil {
		return errors.Wrapf(err, "could not bind %s", name)
	}
	if key := v.GetString(name); key != "" {
		s.API.SetAPIKey(provider, key)
	}
	return nil
}
