package engine

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// ToolSpec is a vendor-neutral tool declaration.
// Parameters is a JSON Schema object, sent verbatim to the vendor.
type ToolSpec struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Parameters  json.RawMessage `json:"parameters" yaml:"-"`
}

var emptyObject = json.RawMessage(`{}`)

// ParametersOrDefault returns the schema, or an empty object when none was declared.
func (t ToolSpec) ParametersOrDefault() json.RawMessage {
	if len(bytes.TrimSpace(t.Parameters)) == 0 {
		return emptyObject
	}
	return t.Parameters
}

const ToolCallTypeFunction = "function"

// ToolCall is the normalized tool call every engine returns.
//
// ID and Index are only set when the vendor provides them. Arguments is
// whatever JSON the vendor sent: an object for Anthropic and Gemini, a
// JSON-encoded string for the OpenAI family. Use DecodeArguments to read
// either form.
type ToolCall struct {
	Type     string       `json:"type"`
	ID       string       `json:"id,omitempty"`
	Index    *int         `json:"index,omitempty"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// DecodeArguments unmarshals the call arguments into v, unwrapping
// JSON-encoded string arguments first.
func (tc ToolCall) DecodeArguments(v interface{}) error {
	raw, err := tc.ArgumentsJSON()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrapf(err, "could not decode arguments of %s", tc.Function.Name)
	}
	return nil
}

// ArgumentsJSON returns the arguments as a JSON document, unwrapping
// string-encoded arguments. Missing arguments decode as an empty object.
func (tc ToolCall) ArgumentsJSON() (json.RawMessage, error) {
	raw := bytes.TrimSpace(tc.Function.Arguments)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return emptyObject, nil
	}
	if raw[0] != '"' {
		return json.RawMessage(raw), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrapf(err, "could not unquote arguments of %s", tc.Function.Name)
	}
	if s == "" {
		return emptyObject, nil
	}
	return json.RawMessage(s), nil
}

// NewToolCall builds a normalized call with raw JSON arguments.
func NewToolCall(id string, index *int, name string, arguments json.RawMessage) ToolCall {
	return ToolCall{
		Type:  ToolCallTypeFunction,
		ID:    id,
		Index: index,
		Function: FunctionCall{
			Name:      name,
			Arguments: arguments,
		},
	}
}
