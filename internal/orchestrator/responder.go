// internal/orchestrator/responder.go
package orchestrator

import (
	"context"

	"parley/internal/chat"
)

// StopSuffix is appended by responders to partial content when a stop
// request lands between streamed chunks.
const StopSuffix = "[Stopped by user]"

// Update is one streamed progress report from a responder. Each update
// overwrites the live message's content and status.
type Update struct {
	Content string
	Status  chat.MessageStatus
	Err     error
}

// Responder produces an agent's reply. Implemented outside this core by
// an LLM-backed component; the scheduler only sees the stream of updates.
//
// Respond is handed a deep copy of the room, so it may read freely while
// the live timeline keeps moving. onUpdate may be called zero or more
// times at whatever cadence the responder chooses. RequestStop is a
// cooperative cancel: the responder checks it between chunks, appends
// StopSuffix to whatever partial content exists and finalizes.
type Responder interface {
	Respond(ctx context.Context, room *chat.Room, onUpdate func(Update)) error
	RequestStop()
}
