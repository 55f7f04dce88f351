// internal/turns/coordinator_test.go
package turns

import (
	"reflect"
	"testing"

	"parley/internal/chat"
)

func testRoom() *chat.Room {
	room := chat.NewRoom("standup", chat.NewHuman("You", "#ffffff"))
	room.AddParticipant(chat.NewAgentParticipant(chat.Agent{ID: "a1", Name: "Ava", Role: "billing"}, nil))
	room.AddParticipant(chat.NewAgentParticipant(chat.Agent{ID: "a2", Name: "Ben", Role: "engineer"}, nil))
	room.AddParticipant(chat.NewAgentParticipant(chat.Agent{ID: "a3", Name: "Cleo", Role: "researcher"}, nil))
	return room
}

func TestHandleUserMessageTargets(t *testing.T) {
	c := New(nil)
	room := testRoom()

	got := c.HandleUserMessage(room, "Ava, can you check this?")
	if !reflect.DeepEqual(got, []string{"a1"}) {
		t.Errorf("pending = %v, want [a1]", got)
	}

	// A new message replaces the queue, it does not append.
	got = c.HandleUserMessage(room, "actually Ben and Cleo should look")
	if !reflect.DeepEqual(got, []string{"a2", "a3"}) {
		t.Errorf("pending = %v, want [a2 a3]", got)
	}
	if !reflect.DeepEqual(c.Pending(room.ID), []string{"a2", "a3"}) {
		t.Errorf("Pending = %v", c.Pending(room.ID))
	}
}

func TestHandleUserMessageRotation(t *testing.T) {
	c := New(nil)
	room := testRoom()

	// Nobody named, no last speaker: first agent opens.
	got := c.HandleUserMessage(room, "what do we think?")
	if !reflect.DeepEqual(got, []string{"a1"}) {
		t.Errorf("pending = %v, want [a1]", got)
	}

	// Rotation resumes after the recorded speaker and wraps.
	c.HandleAgentMessage(room, "a1", "here's my take")
	if got := c.HandleUserMessage(room, "anyone else?"); !reflect.DeepEqual(got, []string{"a2"}) {
		t.Errorf("pending = %v, want [a2]", got)
	}
	c.HandleAgentMessage(room, "a3", "closing thought")
	if got := c.HandleUserMessage(room, "one more?"); !reflect.DeepEqual(got, []string{"a1"}) {
		t.Errorf("pending = %v, want [a1] after wrap", got)
	}
}

func TestRotationCoversEveryAgentOnce(t *testing.T) {
	c := New(nil)
	room := testRoom()
	roster := room.Roster()

	seen := make(map[string]int)
	for range roster {
		targets := c.HandleUserMessage(room, "go on")
		if len(targets) != 1 {
			t.Fatalf("targets = %v, want exactly one", targets)
		}
		seen[targets[0]]++
		c.HandleAgentMessage(room, targets[0], "ok")
	}
	for _, a := range roster {
		if seen[a.ID] != 1 {
			t.Errorf("agent %s spoke %d times in one full rotation", a.ID, seen[a.ID])
		}
	}
}

func TestRotationSingleAgentRepeats(t *testing.T) {
	c := New(nil)
	room := chat.NewRoom("solo", chat.NewHuman("You", ""))
	room.AddParticipant(chat.NewAgentParticipant(chat.Agent{ID: "a1", Name: "Ava"}, nil))

	c.HandleAgentMessage(room, "a1", "done")
	if got := c.HandleUserMessage(room, "more?"); !reflect.DeepEqual(got, []string{"a1"}) {
		t.Errorf("pending = %v, lone agent should repeat", got)
	}
}

func TestHandleAgentMessageDeferred(t *testing.T) {
	c := New(nil)
	room := testRoom()

	deferred := c.HandleAgentMessage(room, "a1", "I think Ben should verify the numbers with Cleo")
	if !reflect.DeepEqual(deferred, []string{"a2", "a3"}) {
		t.Errorf("deferred = %v, want [a2 a3]", deferred)
	}
	if room.LastSpeakerID != "a1" {
		t.Errorf("LastSpeakerID = %s, want a1", room.LastSpeakerID)
	}

	// Self references are not deferred.
	deferred = c.HandleAgentMessage(room, "a2", "as Ben I already checked")
	if len(deferred) != 0 {
		t.Errorf("deferred = %v, speaker must not defer itself", deferred)
	}
}

func TestConsumeDeferredDrains(t *testing.T) {
	c := New(nil)
	room := testRoom()

	c.HandleAgentMessage(room, "a1", "Ben can take it from here")
	if got := c.ConsumeDeferred(room.ID); !reflect.DeepEqual(got, []string{"a2"}) {
		t.Errorf("ConsumeDeferred = %v, want [a2]", got)
	}
	if got := c.ConsumeDeferred(room.ID); len(got) != 0 {
		t.Errorf("second drain = %v, want empty", got)
	}
}

func TestEnqueueAgentIdempotent(t *testing.T) {
	c := New(nil)
	c.EnqueueAgent("r1", "a1")
	c.EnqueueAgent("r1", "a1")
	c.EnqueueAgent("r1", "a2")

	if got := c.Pending("r1"); !reflect.DeepEqual(got, []string{"a1", "a2"}) {
		t.Errorf("pending = %v, want [a1 a2]", got)
	}
}

func TestNextAgentPopsInOrder(t *testing.T) {
	c := New(nil)
	c.EnqueueAgent("r1", "a1")
	c.EnqueueAgent("r1", "a2")

	id, ok := c.NextAgent("r1")
	if !ok || id != "a1" {
		t.Errorf("NextAgent = %s, %v", id, ok)
	}
	id, ok = c.NextAgent("r1")
	if !ok || id != "a2" {
		t.Errorf("NextAgent = %s, %v", id, ok)
	}
	if _, ok := c.NextAgent("r1"); ok {
		t.Error("drained queue should report ok=false")
	}
}

func TestClearPending(t *testing.T) {
	c := New(nil)
	room := testRoom()
	c.EnqueueAgent(room.ID, "a1")
	c.HandleAgentMessage(room, "a2", "Cleo should see this")

	c.ClearPending(room.ID)
	if got := c.Pending(room.ID); len(got) != 0 {
		t.Errorf("pending = %v after clear", got)
	}
	if got := c.ConsumeDeferred(room.ID); len(got) != 0 {
		t.Errorf("deferred = %v after clear", got)
	}
	// Clearing an already-empty room is a no-op.
	c.ClearPending(room.ID)
}

func TestEvictDropsState(t *testing.T) {
	c := New(nil)
	room := testRoom()
	c.EnqueueAgent(room.ID, "a1")
	c.HandleAgentMessage(room, "a1", "done")

	c.Evict(room.ID)
	if got := c.Pending(room.ID); len(got) != 0 {
		t.Errorf("pending = %v after evict", got)
	}
	// Rotation restarts from the first agent once state is gone.
	if got := c.HandleUserMessage(room, "again?"); !reflect.DeepEqual(got, []string{"a1"}) {
		t.Errorf("pending = %v, want [a1]", got)
	}
}
