// internal/orchestrator/events.go
package orchestrator

import "parley/internal/chat"

// Events is the observer surface for UI or other listeners. Both calls
// are fire-and-forget: the hub makes no assumption about consumer
// behavior and never blocks on it.
type Events interface {
	StateChanged(snapshot chat.Snapshot)
	RoomUpdated(room *chat.Room)
}

// NopEvents discards all notifications
type NopEvents struct{}

func (NopEvents) StateChanged(chat.Snapshot) {}
func (NopEvents) RoomUpdated(*chat.Room)     {}
