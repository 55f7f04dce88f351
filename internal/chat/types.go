// internal/chat/types.go
package chat

import (
	"time"

	"github.com/google/uuid"
)

// MessageStatus tracks a message through its streaming lifecycle
type MessageStatus string

const (
	StatusStreaming MessageStatus = "streaming"
	StatusFinal     MessageStatus = "final"
	StatusError     MessageStatus = "error"
)

// ParticipantKind distinguishes the single human from agent participants
type ParticipantKind string

const (
	KindHuman ParticipantKind = "human"
	KindAgent ParticipantKind = "agent"
)

// Agent is an AI participant as seen by the parser and router:
// identity plus the routing hints (role, load, persona summary).
type Agent struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Role    string  `json:"role"`
	Load    float64 `json:"load"` // 0..1 utilization hint
	Persona string  `json:"persona,omitempty"` // optional persona summary, first word is an alias
}

// Persona describes how an agent participant presents itself
type Persona struct {
	Role        string `json:"role"`
	Personality string `json:"personality"`
	BaseMode    string `json:"base_mode,omitempty"` // optional reference to a base mode
}

// Participant is a member of a room: the single human or an agent wrapper
type Participant struct {
	ID      string          `json:"id"`
	Kind    ParticipantKind `json:"kind"`
	Name    string          `json:"name"`
	Color   string          `json:"color,omitempty"` // fixed display color for the human
	Agent   *Agent          `json:"agent,omitempty"`
	Persona *Persona        `json:"persona,omitempty"`
}

// Message is one entry in the room timeline. Content and Status are the
// only fields mutated after creation, and only by the turn owning it.
type Message struct {
	ID            string        `json:"id"`
	ParticipantID string        `json:"participant_id"`
	Content       string        `json:"content"`
	Status        MessageStatus `json:"status"`
	Error         string        `json:"error,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Suggestion is a deferred-mention follow-up surfaced to the user
// instead of silently chaining another agent turn.
type Suggestion struct {
	AgentID     string `json:"agent_id"`
	DisplayName string `json:"display_name"`
	Prompt      string `json:"prompt"`
}

// Settings controls how the turn loop behaves for a room
type Settings struct {
	Autonomous         bool `json:"autonomous"`
	RoundRobin         bool `json:"round_robin"`
	MaxSequentialTurns int  `json:"max_sequential_turns"`
}

// Room is the unit of isolation: one message timeline, one human,
// any number of agents, and all turn state scoped to it.
type Room struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Messages      []*Message     `json:"messages"`
	Participants  []*Participant `json:"participants"` // human first, agents in addition order
	Settings      Settings       `json:"settings"`
	LastSpeakerID string         `json:"last_speaker_id,omitempty"`
	Suggestions   []Suggestion   `json:"suggestions,omitempty"`
}

// NewRoom creates a room with a generated ID and the given human participant
func NewRoom(title string, human *Participant) *Room {
	now := time.Now()
	r := &Room{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if human != nil {
		human.Kind = KindHuman
		r.Participants = append(r.Participants, human)
	}
	return r
}

// NewHuman creates the room's human participant
func NewHuman(name, color string) *Participant {
	return &Participant{
		ID:    uuid.New().String(),
		Kind:  KindHuman,
		Name:  name,
		Color: color,
	}
}

// NewAgentParticipant wraps an agent as a room participant.
// The participant shares the agent's id so routing results map directly
// onto the member list.
func NewAgentParticipant(agent Agent, persona *Persona) *Participant {
	a := agent
	return &Participant{
		ID:      a.ID,
		Kind:    KindAgent,
		Name:    a.Name,
		Agent:   &a,
		Persona: persona,
	}
}

// NewMessage creates a message in streaming status owned by participantID
func NewMessage(participantID string) *Message {
	now := time.Now()
	return &Message{
		ID:            uuid.New().String(),
		ParticipantID: participantID,
		Status:        StatusStreaming,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AddParticipant appends a participant, keeping the human first
func (r *Room) AddParticipant(p *Participant) {
	r.Participants = append(r.Participants, p)
	r.Touch()
}

// RemoveParticipant removes a participant by id. Returns true if found.
func (r *Room) RemoveParticipant(id string) bool {
	for i, p := range r.Participants {
		if p.ID == id {
			r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
			r.Touch()
			return true
		}
	}
	return false
}

// Participant returns the participant with the given id, or nil
func (r *Room) Participant(id string) *Participant {
	for _, p := range r.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Human returns the room's human participant, or nil
func (r *Room) Human() *Participant {
	for _, p := range r.Participants {
		if p.Kind == KindHuman {
			return p
		}
	}
	return nil
}

// Roster returns the agent roster in addition order
func (r *Room) Roster() []Agent {
	roster := make([]Agent, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p.Kind != KindAgent || p.Agent == nil {
			continue
		}
		a := *p.Agent
		if a.Persona == "" && p.Persona != nil {
			a.Persona = p.Persona.Personality
		}
		roster = append(roster, a)
	}
	return roster
}

// AppendMessage adds a message to the timeline
func (r *Room) AppendMessage(m *Message) {
	r.Messages = append(r.Messages, m)
	r.Touch()
}

// Message returns the message with the given id, or nil
func (r *Room) Message(id string) *Message {
	for _, m := range r.Messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// Touch bumps the room's update timestamp
func (r *Room) Touch() {
	r.UpdatedAt = time.Now()
}

// Clone returns a deep copy of the room, isolating responders from
// concurrent mutation of the live timeline.
func (r *Room) Clone() *Room {
	c := *r
	c.Messages = make([]*Message, len(r.Messages))
	for i, m := range r.Messages {
		msg := *m
		c.Messages[i] = &msg
	}
	c.Participants = make([]*Participant, len(r.Participants))
	for i, p := range r.Participants {
		part := *p
		if p.Agent != nil {
			a := *p.Agent
			part.Agent = &a
		}
		if p.Persona != nil {
			ps := *p.Persona
			part.Persona = &ps
		}
		c.Participants[i] = &part
	}
	c.Suggestions = append([]Suggestion(nil), r.Suggestions...)
	return &c
}
