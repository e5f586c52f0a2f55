package conversation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Turn is one role-tagged entry of the transcript.
// The role is the abstract one; adapters map it to the vendor vocabulary.
type Turn struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content}
}

func NewSystemTurn(content string) Turn {
	return NewTurn(RoleSystem, content)
}

func NewUserTurn(content string) Turn {
	return NewTurn(RoleUser, content)
}

func NewAssistantTurn(content string) Turn {
	return NewTurn(RoleAssistant, content)
}

func (t Turn) String() string {
	return t.Content
}

// View renders the turn for display in a terminal.
func (t Turn) View() string {
	text := t.Content
	// keep fenced blocks valid markdown when prefixed with the role
	if strings.HasPrefix(text, "```") {
		text = "\n" + text
	}
	return fmt.Sprintf("[%s]: %s", t.Role, strings.TrimRight(text, "\n"))
}

// Stringify converts turn content to the text stored in the transcript.
// Strings are kept verbatim, raw JSON is kept as its text, everything else
// is JSON-encoded.
func Stringify(content interface{}) (string, error) {
	switch v := content.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.RawMessage:
		return string(v), nil
	case []byte:
		return string(v), nil
	}

	b, err := json.Marshal(content)
	if err != nil {
		return "", errors.Wrapf(err, "could not serialize %T turn content", content)
	}
	return string(b), nil
}
