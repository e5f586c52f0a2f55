package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-go-golems/polyagent/pkg/inference/transport"
	"github.com/go-go-golems/polyagent/pkg/security"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/types"
	"github.com/rs/zerolog/log"
)

// Call marshals body and posts it through t. Transport failures come back as
// *ProviderTransportError.
func Call(
	ctx context.Context,
	t transport.Transport,
	provider types.ApiType,
	op Operation,
	url string,
	headers map[string]string,
	body interface{},
) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, NewResponseError(provider, op, "could not encode request", err)
	}

	redacted := security.RedactURL(url)
	log.Trace().
		Str("provider", string(provider)).
		Str("operation", string(op)).
		Str("url", redacted).
		Int("payload_bytes", len(payload)).
		Msg("sending request")

	start := time.Now()
	raw, err := t.Fetch(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     url,
		Headers: headers,
		Body:    payload,
	})
	if err != nil {
		log.Error().Err(err).
			Str("provider", string(provider)).
			Str("operation", string(op)).
			Str("url", redacted).
			Msg("provider call failed")
		return nil, NewTransportError(provider, url, err)
	}

	log.Debug().
		Str("provider", string(provider)).
		Str("operation", string(op)).
		Dur("duration", time.Since(start)).
		Int("response_bytes", len(raw)).
		Msg("provider call completed")
	return raw, nil
}

// DecodeResponse unmarshals a vendor response into v.
func DecodeResponse(provider types.ApiType, op Operation, raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return NewResponseError(provider, op, ReasonMalformedResponse, err)
	}
	return nil
}

// ParseJSONText parses the text a model produced in JSON mode.
func ParseJSONText(provider types.ApiType, text string) (interface{}, error) {
	var ret interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &ret); err != nil {
		log.Debug().Err(err).Str("provider", string(provider)).Msg("JSON mode reply did not parse")
		return nil, NewResponseError(provider, OperationJSON, ReasonMalformedJSON, err)
	}
	return ret, nil
}
