package events

import (
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// PrinterFunc returns a handler printing one line per event to w.
func PrinterFunc(w io.Writer) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Str("message_id", msg.UUID).Msg("skipping undecodable event")
			return nil
		}

		m := e.Metadata
		switch e.Type {
		case EventTypeCallStarted:
			_, err = fmt.Fprintf(w, "[%s] %s:%s %s\n", e.Type, m.Provider, m.Model, m.Operation)
		case EventTypeCallCompleted:
			_, err = fmt.Fprintf(w, "[%s] %s:%s %s in %dms (history %d)\n",
				e.Type, m.Provider, m.Model, m.Operation, durationMs(e), e.HistoryLength)
		case EventTypeCallFailed:
			_, err = fmt.Fprintf(w, "[%s] %s:%s %s after %dms: %s\n",
				e.Type, m.Provider, m.Model, m.Operation, durationMs(e), e.Error)
		}
		return err
	}
}

func durationMs(e *Event) int64 {
	if e.DurationMs == nil {
		return 0
	}
	return *e.DurationMs
}
