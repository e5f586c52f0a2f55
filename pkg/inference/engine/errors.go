package engine

import (
	"fmt"

	"github.com/go-go-golems/polyagent/pkg/inference/transport"
	"github.com/go-go-golems/polyagent/pkg/security"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/types"
	"github.com/pkg/errors"
)

// Configuration error reasons.
const (
	ReasonInvalidFormat       = "invalid format"
	ReasonUnsupportedProvider = "unsupported provider"
	ReasonMissingAPIKey       = "missing api key"
	ReasonInvalidBaseURL      = "invalid base url"
)

// Response error reasons.
const (
	ReasonMissingChoices    = "missing choices"
	ReasonMissingCandidates = "missing candidates"
	ReasonMissingContent    = "missing content"
	ReasonMissingParts      = "missing parts"
	ReasonMalformedResponse = "malformed response"
	ReasonMalformedJSON     = "malformed JSON payload"
)

// ErrMalformedJSON matches, via errors.Is, a JSON-mode reply that did not parse.
var ErrMalformedJSON = errors.New(ReasonMalformedJSON)

// ConfigurationError is raised before any network call: bad identifier,
// unknown provider or missing credentials.
type ConfigurationError struct {
	Reason string
	Detail string
}

func NewConfigurationError(reason string, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Detail == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Reason, e.Detail)
}

// ProviderTransportError wraps a failure of the transport, unchanged.
type ProviderTransportError struct {
	Provider types.ApiType
	// URL is redacted, it never carries the API key.
	URL string
	// StatusCode is 0 when no HTTP response was received.
	StatusCode int
	Err        error
}

// NewTransportError redacts the URL and lifts the status code out of a
// transport.StatusError, if any.
func NewTransportError(provider types.ApiType, url string, err error) *ProviderTransportError {
	ret := &ProviderTransportError{
		Provider: provider,
		URL:      security.RedactURL(url),
		Err:      err,
	}
	var statusErr *transport.StatusError
	if errors.As(err, &statusErr) {
		ret.StatusCode = statusErr.StatusCode
	}
	return ret
}

func (e *ProviderTransportError) Error() string {
	return fmt.Sprintf("%s transport error calling %s: %v", e.Provider, e.URL, e.Err)
}

func (e *ProviderTransportError) Unwrap() error {
	return e.Err
}

// ProviderResponseError is raised when the vendor response lacks the expected shape.
type ProviderResponseError struct {
	Provider  types.ApiType
	Operation Operation
	Reason    string
	Err       error
}

func NewResponseError(provider types.ApiType, op Operation, reason string, err error) *ProviderResponseError {
	return &ProviderResponseError{Provider: provider, Operation: op, Reason: reason, Err: err}
}

func (e *ProviderResponseError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Provider, e.Operation, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderResponseError) Unwrap() error {
	return e.Err
}

func (e *ProviderResponseError) Is(target error) bool {
	return target == ErrMalformedJSON && e.Reason == ReasonMalformedJSON
}

func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

func IsTransportError(err error) bool {
	var target *ProviderTransportError
	return errors.As(err, &target)
}

func IsResponseError(err error) bool {
	var target *ProviderResponseError
	return errors.As(err, &target)
}
