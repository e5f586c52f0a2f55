package conversation

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ConversationState is the ordered transcript replayed to the vendor on every call.
//
// If a non-empty system prompt was configured, the first turn is always the
// seed turn carrying it. Turns are append-only; Clear is the only operation
// removing turns and it restores the seed.
//
// ConversationState does no locking, the owner serializes access.
type ConversationState struct {
	ID string

	systemPrompt string
	seedRole     Role
	turns        []Turn
}

// NewConversationState creates a seeded state. When systemAsUser is true the
// system prompt is stored with the user role, for vendors without a system role.
func NewConversationState(systemPrompt string, systemAsUser bool) *ConversationState {
	cs := &ConversationState{
		ID: uuid.NewString(),
	}
	cs.Seed(systemPrompt, systemAsUser)
	return cs
}

// Seed resets the transcript to the seed turn for systemPrompt (or to nothing
// when systemPrompt is empty).
func (cs *ConversationState) Seed(systemPrompt string, systemAsUser bool) {
	cs.systemPrompt = systemPrompt
	cs.seedRole = RoleSystem
	if systemAsUser {
		cs.seedRole = RoleUser
	}
	cs.reset()
}

func (cs *ConversationState) reset() {
	cs.turns = make([]Turn, 0, 8)
	if cs.systemPrompt != "" {
		cs.turns = append(cs.turns, NewTurn(cs.seedRole, cs.systemPrompt))
	}
}

// SeedTurn returns the seed turn, if a system prompt was configured.
func (cs *ConversationState) SeedTurn() (Turn, bool) {
	if cs.systemPrompt == "" {
		return Turn{}, false
	}
	return NewTurn(cs.seedRole, cs.systemPrompt), true
}

// AppendUser appends a user turn. Non-text content is JSON-serialized.
func (cs *ConversationState) AppendUser(content interface{}) error {
	s, err := Stringify(content)
	if err != nil {
		return err
	}
	cs.turns = append(cs.turns, NewUserTurn(s))
	return nil
}

// AppendAssistant appends an assistant turn and reports whether it did.
// With deduplicate set, the turn is skipped if any existing assistant turn
// has byte-identical content.
func (cs *ConversationState) AppendAssistant(content interface{}, deduplicate bool) (bool, error) {
	s, err := Stringify(content)
	if err != nil {
		return false, err
	}
	if deduplicate && cs.hasAssistantContent(s) {
		log.Debug().Str("conversation_id", cs.ID).Msg("skipping duplicate assistant turn")
		return false, nil
	}
	cs.turns = append(cs.turns, NewAssistantTurn(s))
	return true, nil
}

func (cs *ConversationState) hasAssistantContent(s string) bool {
	for _, t := range cs.turns {
		if t.Role == RoleAssistant && t.Content == s {
			return true
		}
	}
	return false
}

// Clear drops everything but the seed turn.
func (cs *ConversationState) Clear() {
	cs.reset()
}

// Snapshot returns a copy of the transcript in insertion order.
func (cs *ConversationState) Snapshot() []Turn {
	out := make([]Turn, len(cs.turns))
	copy(out, cs.turns)
	return out
}

func (cs *ConversationState) Len() int {
	return len(cs.turns)
}

// Last returns the most recent turn.
func (cs *ConversationState) Last() (Turn, bool) {
	if len(cs.turns) == 0 {
		return Turn{}, false
	}
	return cs.turns[len(cs.turns)-1], true
}
