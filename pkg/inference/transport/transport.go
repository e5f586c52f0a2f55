package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-go-golems/polyagent/pkg/security"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Request is a single JSON RPC to a vendor endpoint.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Transport performs the network call and returns the parsed JSON body.
type Transport interface {
	Fetch(ctx context.Context, req Request) (json.RawMessage, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req Request) (json.RawMessage, error)

func (f TransportFunc) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	return f(ctx, req)
}

// StatusError is returned when the vendor answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	// Message is the vendor error message, when the body carried one.
	Message string
	Body    []byte
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("unexpected status code %d", e.StatusCode)
}

// errorEnvelope is the {"error": {...}} shape shared by OpenAI, Anthropic and Gemini.
type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

type HTTPTransport struct {
	Client     *http.Client
	UserAgent  string
	URLOptions security.OutboundURLOptions
}

var _ Transport = (*HTTPTransport)(nil)

type Option func(*HTTPTransport)

func WithTimeout(d time.Duration) Option {
	return func(t *HTTPTransport) {
		t.Client.Timeout = d
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTPTransport) {
		t.Client = c
	}
}

func WithUserAgent(ua string) Option {
	return func(t *HTTPTransport) {
		t.UserAgent = ua
	}
}

func WithURLOptions(opts security.OutboundURLOptions) Option {
	return func(t *HTTPTransport) {
		t.URLOptions = opts
	}
}

const defaultTimeout = 60 * time.Second

func NewHTTPTransport(options ...Option) *HTTPTransport {
	t := &HTTPTransport{
		Client: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range options {
		o(t)
	}
	return t
}

func (t *HTTPTransport) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	redacted := security.RedactURL(req.URL)
	if err := security.ValidateOutboundURL(req.URL, t.URLOptions); err != nil {
		return nil, errors.Wrapf(err, "refusing to call %s", redacted)
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create HTTP request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.UserAgent != "" {
		httpReq.Header.Set("User-Agent", t.UserAgent)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	log.Trace().
		Str("method", method).
		Str("url", redacted).
		Int("body_bytes", len(req.Body)).
		Msg("sending provider request")

	// #nosec G107 -- URL is validated above with ValidateOutboundURL.
	resp, err := t.Client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(err, "request to %s failed", redacted)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: body}
		var envelope errorEnvelope
		if err := json.Unmarshal(body, &envelope); err == nil {
			statusErr.Message = envelope.Error.Message
		}
		log.Debug().
			Int("status", resp.StatusCode).
			Str("url", redacted).
			Str("message", statusErr.Message).
			Msg("provider returned error status")
		return nil, statusErr
	}

	if !json.Valid(body) {
		return nil, errors.Errorf("response from %s is not valid JSON", redacted)
	}

	return json.RawMessage(body), nil
}
