package conversation

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
)

func getCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
		if codecErr != nil {
			codecErr = errors.Wrap(codecErr, "could not load cl100k_base encoding")
		}
	})
	return codec, codecErr
}

// CountTokens estimates the prompt size of a transcript with the cl100k_base
// encoding. Vendors tokenize differently, so this is an estimate only.
func CountTokens(turns []Turn) (int, error) {
	c, err := getCodec()
	if err != nil {
		return 0, err
	}

	// every reply is primed with <|start|>assistant<|message|>
	total := 3
	for _, t := range turns {
		// per-turn overhead for role and separators
		total += 4
		for _, s := range []string{string(t.Role), t.Content} {
			ids, _, err := c.Encode(s)
			if err != nil {
				return 0, errors.Wrap(err, "could not encode turn")
			}
			total += len(ids)
		}
	}
	return total, nil
}

// CountTokens estimates the size of the current transcript.
func (cs *ConversationState) CountTokens() (int, error) {
	return CountTokens(cs.turns)
}
