// internal/chat/types_test.go
package chat

import (
	"testing"
)

func TestRoomParticipants(t *testing.T) {
	human := NewHuman("You", "#ffffff")
	room := NewRoom("demo", human)

	if room.Human() != human {
		t.Error("human participant not resolvable")
	}

	room.AddParticipant(NewAgentParticipant(Agent{ID: "a1", Name: "Ava", Role: "support"}, nil))
	if p := room.Participant("a1"); p == nil || p.Kind != KindAgent {
		t.Fatalf("agent participant = %+v", p)
	}

	if !room.RemoveParticipant("a1") {
		t.Error("RemoveParticipant should report success")
	}
	if room.RemoveParticipant("a1") {
		t.Error("second removal should report failure")
	}
	if room.Participant("a1") != nil {
		t.Error("removed participant still resolvable")
	}
}

func TestRosterOrderAndPersonaFallback(t *testing.T) {
	room := NewRoom("demo", NewHuman("You", ""))
	room.AddParticipant(NewAgentParticipant(Agent{ID: "a1", Name: "Ava"}, &Persona{Role: "support", Personality: "Patient helper"}))
	room.AddParticipant(NewAgentParticipant(Agent{ID: "a2", Name: "Ben", Persona: "Skeptic"}, nil))

	roster := room.Roster()
	if len(roster) != 2 {
		t.Fatalf("roster size = %d, want 2 (human excluded)", len(roster))
	}
	if roster[0].ID != "a1" || roster[1].ID != "a2" {
		t.Errorf("roster order = %s, %s", roster[0].ID, roster[1].ID)
	}
	if roster[0].Persona != "Patient helper" {
		t.Errorf("persona fallback = %q, want the participant persona text", roster[0].Persona)
	}
	if roster[1].Persona != "Skeptic" {
		t.Errorf("persona = %q, agent's own summary must win", roster[1].Persona)
	}
}

func TestNewMessageStartsStreaming(t *testing.T) {
	m := NewMessage("a1")
	if m.Status != StatusStreaming {
		t.Errorf("status = %s, want streaming", m.Status)
	}
	if m.ID == "" || m.ParticipantID != "a1" {
		t.Errorf("message = %+v", m)
	}
}

func TestCloneIsolation(t *testing.T) {
	room := NewRoom("demo", NewHuman("You", ""))
	room.AddParticipant(NewAgentParticipant(Agent{ID: "a1", Name: "Ava", Role: "support"}, nil))
	msg := NewMessage("a1")
	msg.Content = "original"
	room.AppendMessage(msg)
	room.Suggestions = []Suggestion{{AgentID: "a1", DisplayName: "Ava", Prompt: "Hear from Ava"}}

	clone := room.Clone()
	clone.Messages[0].Content = "mutated"
	clone.Participants[1].Agent.Role = "sales"
	clone.Suggestions[0].Prompt = "changed"

	if room.Messages[0].Content != "original" {
		t.Error("clone shares message storage with the original")
	}
	if room.Participants[1].Agent.Role != "support" {
		t.Error("clone shares agent storage with the original")
	}
	if room.Suggestions[0].Prompt != "Hear from Ava" {
		t.Error("clone shares suggestion storage with the original")
	}
}

func TestMessageLookup(t *testing.T) {
	room := NewRoom("demo", NewHuman("You", ""))
	msg := NewMessage("h1")
	room.AppendMessage(msg)

	if room.Message(msg.ID) != msg {
		t.Error("message not resolvable by id")
	}
	if room.Message("nope") != nil {
		t.Error("unknown id should resolve to nil")
	}
}
