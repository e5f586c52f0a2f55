package agent

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/go-go-golems/polyagent/pkg/conversation"
	"github.com/go-go-golems/polyagent/pkg/events"
	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/go-go-golems/polyagent/pkg/inference/transport"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/settings"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vendor replays canned responses and records every request.
type vendor struct {
	mu        sync.Mutex
	responses []string
	err       error
	requests  []transport.Request
}

func (v *vendor) Fetch(ctx context.Context, req transport.Request) (json.RawMessage, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.requests = append(v.requests, req)
	if v.err != nil {
		return nil, v.err
	}
	if len(v.responses) == 0 {
		return nil, errors.New("no canned response left")
	}
	r := v.responses[0]
	v.responses = v.responses[1:]
	return json.RawMessage(r), nil
}

func (v *vendor) lastBody(t *testing.T) map[string]interface{} {
	t.Helper()
	v.mu.Lock()
	defer v.mu.Unlock()
	require.NotEmpty(t, v.requests)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(v.requests[len(v.requests)-1].Body, &body))
	return body
}

func chatCompletion(t *testing.T, content string) string {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{
		"id": "chatcmpl-1",
		"choices": []interface{}{
			map[string]interface{}{
				"index":   0,
				"message": map[string]interface{}{"role": "assistant", "content": content},
			},
		},
	})
	require.NoError(t, err)
	return string(b)
}

type collectingSink struct {
	mu     sync.Mutex
	events []*events.Event
}

func (c *collectingSink) PublishEvent(e *events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func newDeepSeekAgent(t *testing.T, v *vendor, options ...Option) *Agent {
	t.Helper()
	a, err := New(Config{
		ProviderModel: "deepseek:deepseek-chat",
		SystemPrompt:  "You are a helpful assistant.",
		APIKey:        "k",
	}, append([]Option{WithTransport(v)}, options...)...)
	require.NoError(t, err)
	return a
}

func TestExecuteRemembersTurns(t *testing.T) {
	v := &vendor{responses: []string{chatCompletion(t, "Noted, John.")}}
	a := newDeepSeekAgent(t, v)

	res, err := a.Execute(context.Background(), "Remember my name is John.", engine.CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Noted, John.", res.Data)

	assert.Equal(t, []conversation.Turn{
		conversation.NewSystemTurn("You are a helpful assistant."),
		conversation.NewUserTurn("Remember my name is John."),
		conversation.NewAssistantTurn("Noted, John."),
	}, a.GetHistory())

	require.Len(t, v.requests, 1)
	assert.Equal(t, "https://api.deepseek.com/chat/completions", v.requests[0].URL)
	body := v.lastBody(t)
	assert.Equal(t, "deepseek-chat", body["model"])
	assert.EqualValues(t, 50, body["max_tokens"])
	assert.EqualValues(t, 0.7, body["temperature"])
	assert.Len(t, body["messages"], 2)
}

func TestAnthropicSeedsSystemPromptAsUser(t *testing.T) {
	a, err := New(Config{
		ProviderModel: "anthropic:claude-3-haiku-20240307",
		SystemPrompt:  "Be brief.",
		APIKey:        "k",
	}, WithTransport(&vendor{}))
	require.NoError(t, err)

	assert.Equal(t, types.ApiTypeAnthropic, a.Provider())
	assert.Equal(t, "claude-3-haiku-20240307", a.Model())
	assert.Equal(t, []conversation.Turn{conversation.NewUserTurn("Be brief.")}, a.GetHistory())
}

func TestNewWithoutSystemPrompt(t *testing.T) {
	a, err := New(Config{ProviderModel: "groq:llama3-8b-8192", APIKey: "k"}, WithTransport(&vendor{}))
	require.NoError(t, err)
	assert.Empty(t, a.GetHistory())
}

func TestNewConfigurationErrors(t *testing.T) {
	for _, c := range []Config{
		{ProviderModel: "deepseek", APIKey: "k"},
		{ProviderModel: "a:b:c", APIKey: "k"},
		{ProviderModel: ":model", APIKey: "k"},
		{ProviderModel: "mistral:large", APIKey: "k"},
		{ProviderModel: "openai:gpt-4o"},
		{ProviderModel: "openai:gpt-4o", APIKey: "  \t"},
		{ProviderModel: "anthropic:claude-3-haiku-20240307", APIKey: " "},
		{ProviderModel: "gemini:gemini-pro", APIKey: "\n"},
	} {
		v := &vendor{}
		_, err := New(c, WithTransport(v))
		assert.True(t, engine.IsConfigurationError(err), "%+v: %v", c, err)
		assert.Empty(t, v.requests)
	}
}

func TestExecuteDeduplicatesAssistantTurns(t *testing.T) {
	v := &vendor{responses: []string{
		chatCompletion(t, "Hello!"),
		chatCompletion(t, "Hello!"),
		chatCompletion(t, "Bye."),
	}}
	a := newDeepSeekAgent(t, v)
	ctx := context.Background()

	_, err := a.Execute(ctx, "hi", engine.CallOptions{})
	require.NoError(t, err)
	assert.Len(t, a.GetHistory(), 3)

	// identical reply: only the user turn is added
	res, err := a.Execute(ctx, "hi again", engine.CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", res.Data)
	assert.Len(t, a.GetHistory(), 4)

	_, err = a.Execute(ctx, "bye", engine.CallOptions{})
	require.NoError(t, err)
	history := a.GetHistory()
	require.Len(t, history, 6)
	assert.Equal(t, conversation.NewAssistantTurn("Bye."), history[5])
}

func TestExecuteJSONAlwaysAppends(t *testing.T) {
	v := &vendor{responses: []string{
		chatCompletion(t, `{"name":"John"}`),
		chatCompletion(t, `{"name":"John"}`),
	}}
	a := newDeepSeekAgent(t, v)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := a.ExecuteJSON(ctx, "Who am I? Answer in JSON.", engine.CallOptions{})
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"name": "John"}, res.Data)
	}

	history := a.GetHistory()
	require.Len(t, history, 5)
	assert.Equal(t, conversation.NewAssistantTurn(`{"name":"John"}`), history[2])
	assert.Equal(t, conversation.NewAssistantTurn(`{"name":"John"}`), history[4])
	assert.Equal(t, map[string]interface{}{"type": "json_object"}, v.lastBody(t)["response_format"])
}

func TestExecuteJSONMalformed(t *testing.T) {
	v := &vendor{responses: []string{chatCompletion(t, "not json")}}
	a := newDeepSeekAgent(t, v)

	_, err := a.ExecuteJSON(context.Background(), "json please", engine.CallOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrMalformedJSON))
	assert.Len(t, a.GetHistory(), 2)
}

func TestExecuteToolsAnthropic(t *testing.T) {
	v := &vendor{responses: []string{`{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-haiku-20240307",
		"content": [
			{"type": "text", "text": "Let me check."},
			{"type": "tool_use", "id": "toolu_1", "name": "get_weather", "input": {"city": "Paris"}},
			{"type": "tool_use", "id": "toolu_2", "name": "get_weather", "input": {"city": "Oslo"}}
		],
		"stop_reason": "tool_use"
	}`, `{
		"content": [
			{"type": "tool_use", "id": "toolu_3", "name": "get_weather", "input": {"city": "Paris"}}
		]
	}`}}
	a, err := New(Config{ProviderModel: "anthropic:claude-3-haiku-20240307", APIKey: "k"}, WithTransport(v))
	require.NoError(t, err)

	tools := []engine.ToolSpec{{
		Name:        "get_weather",
		Description: "Current weather for a city",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`),
	}}
	res, err := a.ExecuteTools(context.Background(), "Weather in Paris and Oslo?", tools, engine.CallOptions{})
	require.NoError(t, err)

	require.Len(t, res.Data, 2)
	for i, call := range res.Data {
		require.NotNil(t, call.Index)
		assert.Equal(t, i, *call.Index)
		assert.Equal(t, engine.ToolCallTypeFunction, call.Type)
		assert.Equal(t, "get_weather", call.Function.Name)
	}
	assert.Equal(t, "toolu_1", res.Data[0].ID)
	var args struct {
		City string `json:"city"`
	}
	require.NoError(t, res.Data[1].DecodeArguments(&args))
	assert.Equal(t, "Oslo", args.City)

	history := a.GetHistory()
	require.Len(t, history, 2)
	assert.Equal(t, conversation.RoleAssistant, history[1].Role)
	var stored []engine.ToolCall
	require.NoError(t, json.Unmarshal([]byte(history[1].Content), &stored))
	assert.Len(t, stored, 2)

	_, err = a.ExecuteTools(context.Background(), "And Paris again?", tools, engine.CallOptions{})
	require.NoError(t, err)
	assert.Len(t, a.GetHistory(), 4)
}

func TestExecuteToolsAppendsIdenticalReplies(t *testing.T) {
	reply := `{"content": [{"type": "tool_use", "id": "toolu_1", "name": "get_time", "input": {}}]}`
	v := &vendor{responses: []string{reply, reply}}
	a, err := New(Config{ProviderModel: "anthropic:claude-3-haiku-20240307", APIKey: "k"}, WithTransport(v))
	require.NoError(t, err)

	tools := []engine.ToolSpec{{Name: "get_time", Description: "Current time"}}
	first, err := a.ExecuteTools(context.Background(), "What time is it?", tools, engine.CallOptions{})
	require.NoError(t, err)
	second, err := a.ExecuteTools(context.Background(), "What time is it?", tools, engine.CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, first.Data, second.Data)

	history := a.GetHistory()
	require.Len(t, history, 4)
	assert.Equal(t, history[1], history[3])
}

func TestFailedCallKeepsUserTurn(t *testing.T) {
	sink := &collectingSink{}
	v := &vendor{err: &transport.StatusError{StatusCode: 401, Message: "invalid api key"}}
	a := newDeepSeekAgent(t, v, WithEventSink(sink))

	_, err := a.Execute(context.Background(), "hello", engine.CallOptions{})
	require.Error(t, err)
	assert.True(t, engine.IsTransportError(err))

	var te *engine.ProviderTransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 401, te.StatusCode)

	assert.Equal(t, []conversation.Turn{
		conversation.NewSystemTurn("You are a helpful assistant."),
		conversation.NewUserTurn("hello"),
	}, a.GetHistory())

	require.Len(t, sink.events, 2)
	assert.Equal(t, events.EventTypeCallStarted, sink.events[0].Type)
	assert.Equal(t, events.EventTypeCallFailed, sink.events[1].Type)
	assert.Contains(t, sink.events[1].Error, "invalid api key")
}

func TestEventsShareCallID(t *testing.T) {
	sink := &collectingSink{}
	v := &vendor{responses: []string{chatCompletion(t, "ok")}}
	a := newDeepSeekAgent(t, v, WithEventSink(sink), WithEventSink(events.NewNullSink()))

	_, err := a.Execute(context.Background(), "hi", engine.CallOptions{})
	require.NoError(t, err)

	require.Len(t, sink.events, 2)
	started, completed := sink.events[0], sink.events[1]
	assert.Equal(t, events.EventTypeCallCompleted, completed.Type)
	assert.Equal(t, started.Metadata.ID, completed.Metadata.ID)
	assert.Equal(t, a.ConversationID(), completed.Metadata.ConversationID)
	assert.Equal(t, "deepseek", completed.Metadata.Provider)
	assert.Equal(t, "deepseek-chat", completed.Metadata.Model)
	assert.Equal(t, string(engine.OperationText), completed.Metadata.Operation)
	assert.Equal(t, 3, completed.HistoryLength)
	require.NotNil(t, completed.Metadata.MaxTokens)
	assert.Equal(t, 50, *completed.Metadata.MaxTokens)
}

func TestCallOptions(t *testing.T) {
	v := &vendor{responses: []string{chatCompletion(t, "a"), chatCompletion(t, "b")}}
	chat := settings.NewChatSettings()
	temperature := 0.0
	chat.Temperature = &temperature
	a := newDeepSeekAgent(t, v, WithChatSettings(chat))
	ctx := context.Background()

	_, err := a.Execute(ctx, "first", engine.CallOptions{})
	require.NoError(t, err)
	body := v.lastBody(t)
	assert.EqualValues(t, 0, body["temperature"])
	assert.Equal(t, "deepseek-chat", body["model"])

	maxTokens := 200
	_, err = a.Execute(ctx, "second", engine.CallOptions{Model: "deepseek-reasoner", MaxTokens: &maxTokens})
	require.NoError(t, err)
	body = v.lastBody(t)
	assert.Equal(t, "deepseek-reasoner", body["model"])
	assert.EqualValues(t, 200, body["max_tokens"])
	assert.Equal(t, "deepseek-chat", a.Model())
}

func TestNonTextPromptIsSerialized(t *testing.T) {
	v := &vendor{responses: []string{chatCompletion(t, "ok")}}
	a := newDeepSeekAgent(t, v)

	_, err := a.Execute(context.Background(), map[string]int{"n": 1}, engine.CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, conversation.NewUserTurn(`{"n":1}`), a.GetHistory()[1])
}

func TestClearHistory(t *testing.T) {
	v := &vendor{responses: []string{chatCompletion(t, "one"), chatCompletion(t, "two")}}
	a := newDeepSeekAgent(t, v)
	ctx := context.Background()

	_, err := a.Execute(ctx, "1", engine.CallOptions{})
	require.NoError(t, err)
	a.ClearHistory()
	assert.Equal(t, []conversation.Turn{conversation.NewSystemTurn("You are a helpful assistant.")}, a.GetHistory())

	_, err = a.Execute(ctx, "2", engine.CallOptions{})
	require.NoError(t, err)
	assert.Len(t, a.GetHistory(), 3)
	// the replayed transcript starts over after a clear
	assert.Len(t, v.lastBody(t)["messages"], 2)
}

func TestHistoryTokens(t *testing.T) {
	a := newDeepSeekAgent(t, &vendor{})
	n, err := a.HistoryTokens()
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}

func TestGetHistoryIsACopy(t *testing.T) {
	a := newDeepSeekAgent(t, &vendor{})
	h := a.GetHistory()
	h[0].Content = "changed"
	assert.Equal(t, "You are a helpful assistant.", a.GetHistory()[0].Content)
}

func TestConcurrentCallsDoNotInterleave(t *testing.T) {
	const n = 8
	responses := make([]string, n)
	for i := range responses {
		responses[i] = chatCompletion(t, "reply")
	}
	v := &vendor{responses: responses}
	a := newDeepSeekAgent(t, v)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = a.ExecuteJSON(context.Background(), "go", engine.CallOptions{})
		}()
	}
	wg.Wait()

	// ExecuteJSON of "reply" fails to parse, so each call leaves one user turn
	history := a.GetHistory()
	require.Len(t, history, 1+n)
	for _, turn := range history[1:] {
		assert.Equal(t, conversation.RoleUser, turn.Role)
	}
	// every request saw the transcript as it was after its own user turn
	v.mu.Lock()
	defer v.mu.Unlock()
	seen := map[int]bool{}
	for _, req := range v.requests {
		var body struct {
			Messages []json.RawMessage `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(req.Body, &body))
		seen[len(body.Messages)] = true
	}
	assert.Len(t, seen, n)
}

func TestNewFromSettings(t *testing.T) {
	s, err := settings.NewAgentSettingsFromYAML(strings.NewReader(`
provider_model: groq:llama3-8b-8192
system_prompt: Be terse.
chat:
  max_response_tokens: 120
api:
  api_keys:
    groq-api-key: gsk-test
  base_urls:
    groq-base-url: https://proxy.example.com/groq
`))
	require.NoError(t, err)

	v := &vendor{responses: []string{chatCompletion(t, "ok")}}
	a, err := NewFromSettings(s, WithTransport(v))
	require.NoError(t, err)
	assert.Equal(t, types.ApiTypeGroq, a.Provider())

	_, err = a.Execute(context.Background(), "hi", engine.CallOptions{})
	require.NoError(t, err)
	req := v.requests[0]
	assert.Equal(t, "https://proxy.example.com/groq/chat/completions", req.URL)
	assert.Equal(t, "Bearer gsk-test", req.Headers["Authorization"])
	assert.EqualValues(t, 120, v.lastBody(t)["max_tokens"])

	_, err = NewFromSettings(nil)
	assert.Error(t, err)
}

func TestNewFromPartialSettings(t *testing.T) {
	_, err := NewFromSettings(&settings.AgentSettings{ProviderModel: "openai:gpt-4o-mini"})
	assert.True(t, engine.IsConfigurationError(err), "%v", err)

	v := &vendor{responses: []string{chatCompletion(t, "ok")}}
	s := &settings.AgentSettings{ProviderModel: "openai:gpt-4o-mini", API: settings.NewAPISettings()}
	s.API.SetAPIKey("openai", "sk-test")
	a, err := NewFromSettings(s, WithTransport(v))
	require.NoError(t, err)
	res, err := a.Execute(context.Background(), "hi", engine.CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Data)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", v.requests[0].URL)
}
