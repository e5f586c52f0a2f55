package conversation

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type step struct {
	User    bool
	Content string
	Dedup   bool
}

func genStep() gopter.Gen {
	return gopter.CombineGens(
		gen.Bool(),
		gen.OneConstOf("a", "b", "c", "hello", ""),
		gen.Bool(),
	).Map(func(values []interface{}) step {
		return step{
			User:    values[0].(bool),
			Content: values[1].(string),
			Dedup:   values[2].(bool),
		}
	})
}

func applySteps(cs *ConversationState, steps []step) {
	for _, s := range steps {
		if s.User {
			_ = cs.AppendUser(s.Content)
			continue
		}
		_, _ = cs.AppendAssistant(s.Content, s.Dedup)
	}
}

func TestProperty_ClearResetsToSeed(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("clear leaves only the seed turn", prop.ForAll(
		func(systemPrompt string, systemAsUser bool, steps []step) bool {
			cs := NewConversationState(systemPrompt, systemAsUser)
			applySteps(cs, steps)
			cs.Clear()

			history := cs.Snapshot()
			if systemPrompt == "" {
				return len(history) == 0
			}
			if len(history) != 1 {
				return false
			}
			expectedRole := RoleSystem
			if systemAsUser {
				expectedRole = RoleUser
			}
			return history[0].Role == expectedRole && history[0].Content == systemPrompt
		},
		gen.AnyString(),
		gen.Bool(),
		gen.SliceOf(genStep()),
	))

	properties.TestingRun(t)
}

func TestProperty_DeduplicatedAppend(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("dedup appends exactly one turn iff content is new", prop.ForAll(
		func(steps []step, content string) bool {
			cs := NewConversationState("seed", false)
			applySteps(cs, steps)

			seen := cs.hasAssistantContent(content)
			before := cs.Len()
			appended, err := cs.AppendAssistant(content, true)
			if err != nil {
				return false
			}
			if seen {
				return !appended && cs.Len() == before
			}
			return appended && cs.Len() == before+1
		},
		gen.SliceOf(genStep()),
		gen.OneConstOf("a", "b", "c", "hello", "fresh"),
	))

	properties.Property("non-dedup append always adds one turn", prop.ForAll(
		func(steps []step, content string) bool {
			cs := NewConversationState("", false)
			applySteps(cs, steps)
			before := cs.Len()
			appended, err := cs.AppendAssistant(content, false)
			return err == nil && appended && cs.Len() == before+1
		},
		gen.SliceOf(genStep()),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
