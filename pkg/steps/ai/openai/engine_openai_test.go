package openai

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-go-golems/polyagent/pkg/conversation"
	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/go-go-golems/polyagent/pkg/inference/transport"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	requests []transport.Request
	response string
	err      error
}

func (r *recorder) Fetch(ctx context.Context, req transport.Request) (json.RawMessage, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(r.response), nil
}

func newTestEngine(t *testing.T, apiType types.ApiType, rec *recorder, options ...engine.Option) *OpenAIEngine {
	t.Helper()
	e, err := NewOpenAIEngine(apiType, "test-model", "k", append([]engine.Option{engine.WithTransport(rec)}, options...)...)
	require.NoError(t, err)
	return e
}

func history(prompt string) engine.Options {
	return engine.Options{Messages: []conversation.Turn{
		conversation.NewSystemTurn("You are a helpful assistant."),
		conversation.NewUserTurn(prompt),
	}}
}

func TestEndpoints(t *testing.T) {
	expected := map[types.ApiType]string{
		types.ApiTypeOpenAI:     "https://api.openai.com/v1/chat/completions",
		types.ApiTypeDeepSeek:   "https://api.deepseek.com/chat/completions",
		types.ApiTypeOpenRouter: "https://api.openrouter.ai/api/v1/chat/completions",
		types.ApiTypeFireworks:  "https://api.fireworks.ai/inference/v1/chat/completions",
		types.ApiTypeTogether:   "https://api.together.xyz/v1/chat/completions",
		types.ApiTypeDeepInfra:  "https://api.deepinfra.com/v1/openai/chat/completions",
		types.ApiTypeGroq:       "https://api.groq.com/openai/v1/chat/completions",
	}
	require.Len(t, expected, len(types.OpenAICompatible))
	for apiType, url := range expected {
		e := newTestEngine(t, apiType, &recorder{})
		assert.Equal(t, url, e.Endpoint(), apiType)
	}
}

func TestNewOpenAIEngineRejectsBadConfig(t *testing.T) {
	_, err := NewOpenAIEngine(types.ApiTypeAnthropic, "m", "k")
	assert.True(t, engine.IsConfigurationError(err))

	_, err = NewOpenAIEngine(types.ApiTypeOpenAI, "m", "")
	require.Error(t, err)
	assert.True(t, engine.IsConfigurationError(err))
	assert.Contains(t, err.Error(), engine.ReasonMissingAPIKey)

	_, err = NewOpenAIEngine(types.ApiTypeOpenAI, "m", "k", engine.WithBaseURL("not a url"))
	assert.True(t, engine.IsConfigurationError(err))
}

func TestBaseURLOverride(t *testing.T) {
	rec := &recorder{response: `{"choices":[{"message":{"content":"ok"}}]}`}
	e := newTestEngine(t, types.ApiTypeGroq, rec, engine.WithBaseURL("https://proxy.example.com/v1/"))
	_, err := e.GenerateText(context.Background(), "hi", history("hi"))
	require.NoError(t, err)
	assert.Equal(t, "https://proxy.example.com/v1/chat/completions", rec.requests[0].URL)
}

func TestGenerateText(t *testing.T) {
	rec := &recorder{response: `{"choices":[{"message":{"role":"assistant","content":"  Noted, John. "}}]}`}
	e := newTestEngine(t, types.ApiTypeDeepSeek, rec)

	text, err := e.GenerateText(context.Background(), "Remember my name is John.", history("Remember my name is John."))
	require.NoError(t, err)
	assert.Equal(t, "Noted, John.", text)

	require.Len(t, rec.requests, 1)
	req := rec.requests[0]
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "Bearer k", req.Headers["Authorization"])
	assert.JSONEq(t, `{
		"model": "test-model",
		"messages": [
			{"role": "system", "content": "You are a helpful assistant."},
			{"role": "user", "content": "Remember my name is John."}
		],
		"max_tokens": 50,
		"temperature": 0.7
	}`, string(req.Body))
}

func TestGenerateTextPerCallModel(t *testing.T) {
	rec := &recorder{response: `{"choices":[{"message":{"content":"ok"}}]}`}
	e := newTestEngine(t, types.ApiTypeOpenAI, rec)

	maxTokens := 10
	opts := history("hi")
	opts.Model = "gpt-4o"
	opts.MaxTokens = &maxTokens
	_, err := e.GenerateText(context.Background(), "hi", opts)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.requests[0].Body, &body))
	assert.Equal(t, "gpt-4o", body["model"])
	assert.Equal(t, float64(10), body["max_tokens"])
	assert.Equal(t, "test-model", e.ModelName())
}

func TestGenerateJSON(t *testing.T) {
	rec := &recorder{response: `{"choices":[{"message":{"content":"{\"name\":\"John\",\"age\":30}"}}]}`}
	e := newTestEngine(t, types.ApiTypeOpenAI, rec)

	v, err := e.GenerateJSON(context.Background(), "give json", history("give json"))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "John", "age": float64(30)}, v)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.requests[0].Body, &body))
	assert.Equal(t, map[string]interface{}{"type": "json_object"}, body["response_format"])
}

func TestGenerateJSONMalformedPayload(t *testing.T) {
	rec := &recorder{response: `{"choices":[{"message":{"content":"not json"}}]}`}
	e := newTestEngine(t, types.ApiTypeTogether, rec)

	_, err := e.GenerateJSON(context.Background(), "give json", history("give json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrMalformedJSON))
}

func TestUseToolsRoundTripsParameters(t *testing.T) {
	params := `{"type":"object","properties":{"city":{"type":"string","description":"City name"}},"required":["city"]}`
	tools := []engine.ToolSpec{{
		Name:        "get_weather",
		Description: "Current weather for a city",
		Parameters:  json.RawMessage(params),
	}}

	for _, apiType := range types.OpenAICompatible {
		rec := &recorder{response: `{"choices":[{"message":{"tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{\"city\":\"Paris\"}"}}
		]}}]}`}
		e := newTestEngine(t, apiType, rec)

		calls, err := e.UseTools(context.Background(), "weather?", tools, history("weather?"))
		require.NoError(t, err)
		require.Len(t, calls, 1)
		assert.Equal(t, "get_weather", calls[0].Function.Name)

		var body struct {
			Tools []struct {
				Type     string `json:"type"`
				Function struct {
					Name        string          `json:"name"`
					Description string          `json:"description"`
					Parameters  json.RawMessage `json:"parameters"`
				} `json:"function"`
			} `json:"tools"`
		}
		require.NoError(t, json.Unmarshal(rec.requests[0].Body, &body))
		require.Len(t, body.Tools, 1)
		assert.Equal(t, "function", body.Tools[0].Type)
		assert.Equal(t, "get_weather", body.Tools[0].Function.Name)
		assert.Equal(t, "Current weather for a city", body.Tools[0].Function.Description)
		assert.Equal(t, params, string(body.Tools[0].Function.Parameters), apiType)
	}
}

func TestTransportErrorIsWrapped(t *testing.T) {
	cause := &transport.StatusError{StatusCode: 429, Message: "rate limited"}
	e := newTestEngine(t, types.ApiTypeFireworks, &recorder{err: cause})

	_, err := e.GenerateText(context.Background(), "hi", history("hi"))
	require.Error(t, err)
	assert.True(t, engine.IsTransportError(err))
	assert.False(t, engine.IsResponseError(err))

	var trErr *engine.ProviderTransportError
	require.True(t, errors.As(err, &trErr))
	assert.Equal(t, 429, trErr.StatusCode)
	assert.Equal(t, types.ApiTypeFireworks, trErr.Provider)
}

func TestMalformedResponse(t *testing.T) {
	e := newTestEngine(t, types.ApiTypeDeepInfra, &recorder{response: `{"choices":"nope"}`})
	_, err := e.GenerateText(context.Background(), "hi", history("hi"))
	require.Error(t, err)
	assert.True(t, engine.IsResponseError(err))
}
