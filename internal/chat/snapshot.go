// internal/chat/snapshot.go
package chat

// Snapshot is the full coordination state handed to persistence and
// event consumers: every room plus which one is active.
type Snapshot struct {
	Rooms        []*Room `json:"rooms"`
	ActiveRoomID string  `json:"active_room_id,omitempty"`
}

// Clone deep-copies the snapshot so consumers cannot mutate live state
func (s Snapshot) Clone() Snapshot {
	c := Snapshot{ActiveRoomID: s.ActiveRoomID}
	c.Rooms = make([]*Room, len(s.Rooms))
	for i, r := range s.Rooms {
		c.Rooms[i] = r.Clone()
	}
	return c
}
