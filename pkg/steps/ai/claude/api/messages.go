package api

import (
	"encoding/json"
)

const (
	DefaultBaseURL    = "https://api.anthropic.com/v1"
	MessagesPath      = "/messages"
	DefaultAPIVersion = "2023-06-01"
)

type ContentType string

const (
	ContentTypeText    ContentType = "text"
	ContentTypeToolUse ContentType = "tool_use"
)

// MessageRequest represents the Messages API request payload.
type MessageRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature"`
	Tools       []Tool    `json:"tools,omitempty"`
}

// Tool represents a tool that the model can use.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Message is a single conversation message with plain text content.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessageResponse represents the Messages API response payload.
type MessageResponse struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Role         string    `json:"role"`
	Content      []Content `json:"content"`
	Model        string    `json:"model"`
	StopReason   string    `json:"stop_reason,omitempty"`
	StopSequence string    `json:"stop_sequence,omitempty"`
	Usage        Usage     `json:"usage"`
}

// Content is one block of a response. Which fields are set depends on Type.
type Content struct {
	Type ContentType `json:"type"`
	// text
	Text *string `json:"text,omitempty"`
	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

func NewTextContent(text string) Content {
	return Content{Type: ContentTypeText, Text: &text}
}

func NewToolUseContent(id, name string, input json.RawMessage) Content {
	return Content{Type: ContentTypeToolUse, ID: id, Name: name, Input: input}
}

// ToolUses returns the tool_use blocks, in order.
func (r *MessageResponse) ToolUses() []Content {
	ret := []Content{}
	for _, c := range r.Content {
		if c.Type == ContentTypeToolUse {
			ret = append(ret, c)
		}
	}
	return ret
}

// Usage represents the billing and rate-limit usage information.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
