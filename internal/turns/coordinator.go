// internal/turns/coordinator.go

// Package turns keeps the per-room turn bookkeeping between routing and
// execution: the pending queue for the current wave, the deferred list of
// agents named inside other agents' replies, and the round-robin rotation
// used when a message targets nobody in particular.
package turns

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"parley/internal/chat"
	"parley/internal/match"
)

// state is the mutable turn bookkeeping for one room
type state struct {
	pending       []string
	deferred      []string
	lastSpeakerID string
}

// Coordinator is a registry of per-room turn state, created lazily on
// first access and evicted explicitly when a room goes away.
type Coordinator struct {
	mu     sync.Mutex
	rooms  map[string]*state
	logger *zap.Logger
}

// New creates an empty Coordinator
func New(logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		rooms:  make(map[string]*state),
		logger: logger.With(zap.String("component", "turns")),
	}
}

func (c *Coordinator) state(roomID string) *state {
	s, ok := c.rooms[roomID]
	if !ok {
		s = &state{}
		c.rooms[roomID] = s
	}
	return s
}

// HandleUserMessage recomputes the pending queue for a user message using
// a lightweight local mention match (exact, first token or alias at a
// word boundary, no role or exclusivity heuristics). With no target it
// falls back to round-robin from the last speaker.
func (c *Coordinator) HandleUserMessage(room *chat.Room, text string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state(room.ID)
	lower := strings.ToLower(text)

	var targets []string
	for _, a := range room.Roster() {
		for _, alias := range match.AliasSet(a.Name, "") {
			if match.ContainsAlias(lower, alias) {
				targets = append(targets, a.ID)
				break
			}
		}
	}

	if len(targets) == 0 {
		if next, ok := c.rotateLocked(room, s.lastSpeakerID); ok {
			targets = []string{next}
		}
	}

	s.pending = targets
	c.logger.Debug("pending recomputed",
		zap.String("room_id", room.ID),
		zap.Strings("pending", targets),
	)
	return append([]string(nil), targets...)
}

// HandleAgentMessage records the speaker and recomputes the deferred list
// from any other agents the reply mentions by name. Deferred agents are
// surfaced as suggestions later, never auto-invoked.
func (c *Coordinator) HandleAgentMessage(room *chat.Room, speakerID, content string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state(room.ID)
	s.lastSpeakerID = speakerID
	room.LastSpeakerID = speakerID

	lower := strings.ToLower(content)
	var deferred []string
	for _, a := range room.Roster() {
		if a.ID == speakerID {
			continue
		}
		for _, alias := range match.AliasSet(a.Name, "") {
			if match.ContainsAlias(lower, alias) {
				deferred = append(deferred, a.ID)
				break
			}
		}
	}

	s.deferred = deferred
	return append([]string(nil), deferred...)
}

// EnqueueAgent appends an agent to the pending queue. Idempotent: an id
// already queued is not added again.
func (c *Coordinator) EnqueueAgent(roomID, agentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state(roomID)
	for _, id := range s.pending {
		if id == agentID {
			return
		}
	}
	s.pending = append(s.pending, agentID)
}

// ClearPending empties both the pending queue and the deferred list
func (c *Coordinator) ClearPending(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state(roomID)
	s.pending = nil
	s.deferred = nil
}

// ConsumeDeferred atomically drains and returns the deferred list
func (c *Coordinator) ConsumeDeferred(roomID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state(roomID)
	deferred := s.deferred
	s.deferred = nil
	return deferred
}

// NextAgent pops the head of the pending queue. ok is false at the end
// of the current wave.
func (c *Coordinator) NextAgent(roomID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state(roomID)
	if len(s.pending) == 0 {
		return "", false
	}
	next := s.pending[0]
	s.pending = s.pending[1:]
	return next, true
}

// Pending returns a copy of the current pending queue
func (c *Coordinator) Pending(roomID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.state(roomID).pending...)
}

// Evict drops all turn state for a room
func (c *Coordinator) Evict(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, roomID)
}

// rotateLocked picks the agent after lastSpeakerID in the live rotation
// order, wrapping and skipping an immediate repeat when more than one
// agent exists. Falls back to the first agent.
func (c *Coordinator) rotateLocked(room *chat.Room, lastSpeakerID string) (string, bool) {
	roster := room.Roster()
	if len(roster) == 0 {
		return "", false
	}
	if lastSpeakerID == "" {
		return roster[0].ID, true
	}
	for i, a := range roster {
		if a.ID == lastSpeakerID {
			if len(roster) == 1 {
				return a.ID, true
			}
			return roster[(i+1)%len(roster)].ID, true
		}
	}
	return roster[0].ID, true
}
