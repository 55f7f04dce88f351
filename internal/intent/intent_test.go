// internal/intent/intent_test.go
package intent

import (
	"reflect"
	"testing"

	"parley/internal/chat"
)

func testRoster() []chat.Agent {
	return []chat.Agent{
		{ID: "a1", Name: "Ava", Role: "billing support"},
		{ID: "a2", Name: "Ben Ortiz", Role: "engineer"},
		{ID: "a3", Name: "Cleo", Role: "researcher", Persona: "Skeptic who questions claims"},
	}
}

func TestParseMentions(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		mentions []string
	}{
		{"full name", "hey @ava can you look", []string{"a1"}},
		{"first name token", "@ben what do you think", []string{"a2"}},
		{"concatenated name", "@benortiz please", []string{"a2"}},
		{"role token", "@billing is this right", []string{"a1"}},
		{"several mentions in order", "@cleo then @ava", []string{"a3", "a1"}},
		{"unknown token ignored", "@nobody around here", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Parse(tt.text, testRoster())
			if !reflect.DeepEqual(in.Mentions, tt.mentions) {
				t.Errorf("Mentions = %v, want %v", in.Mentions, tt.mentions)
			}
		})
	}
}

func TestParseDirectNames(t *testing.T) {
	in := Parse("Ava, can you take this one?", testRoster())
	if !in.Directed("a1") {
		t.Error("expected Ava to be directed by name")
	}
	if in.Directed("a2") || in.Directed("a3") {
		t.Errorf("unexpected directed ids: %v", in.DirectedIDs)
	}
	if len(in.Mentions) != 0 {
		t.Errorf("name reference should not count as a mention, got %v", in.Mentions)
	}
}

func TestParsePersonaAlias(t *testing.T) {
	in := Parse("let's hear from the skeptic", testRoster())
	if !in.Directed("a3") {
		t.Errorf("persona first word should direct the agent, got %v", in.DirectedIDs)
	}
}

func TestParseMentionNotDoubleCounted(t *testing.T) {
	in := Parse("@ava ava ava", testRoster())
	if len(in.DirectedIDs) != 1 || in.DirectedIDs[0] != "a1" {
		t.Errorf("agent should match at most once, got %v", in.DirectedIDs)
	}
}

func TestParseImpliedRoles(t *testing.T) {
	in := Parse("we need an engineer on this billing problem", testRoster())
	want := []string{"billing", "engineer"}
	if !reflect.DeepEqual(in.ImpliedRoles, want) {
		t.Errorf("ImpliedRoles = %v, want %v", in.ImpliedRoles, want)
	}
}

func TestParseExclusivity(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		exclusive []string
	}{
		{"only prefix", "only ava should answer this", []string{"a1"}},
		{"directive verb", "let ben handle it", []string{"a2"}},
		{"trailing alone", "cleo alone please", []string{"a3"}},
		{"no cue", "ava, what do you think", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Parse(tt.text, testRoster())
			if !reflect.DeepEqual(in.ExclusiveIDs, tt.exclusive) {
				t.Errorf("ExclusiveIDs = %v, want %v", in.ExclusiveIDs, tt.exclusive)
			}
		})
	}
}

func TestParseExclusion(t *testing.T) {
	in := Parse("everyone except ben, please weigh in", testRoster())
	if !reflect.DeepEqual(in.ExcludedIDs, []string{"a2"}) {
		t.Errorf("ExcludedIDs = %v, want [a2]", in.ExcludedIDs)
	}
	if !in.MultiSpeaker {
		t.Error("broadcast phrase should set MultiSpeaker")
	}
}

func TestParseExclusivityBeatsExclusion(t *testing.T) {
	// "only ava" marks a1 exclusive; the negation shape alone must not
	// also push the same agent onto the excluded list.
	in := Parse("only ava, ava should not be interrupted", testRoster())
	if !reflect.DeepEqual(in.ExclusiveIDs, []string{"a1"}) {
		t.Fatalf("ExclusiveIDs = %v, want [a1]", in.ExclusiveIDs)
	}
	if len(in.ExcludedIDs) != 0 {
		t.Errorf("exclusive agent must not be excluded, got %v", in.ExcludedIDs)
	}
}

func TestParseMessageCues(t *testing.T) {
	in := Parse("urgent: stop everything and hold", testRoster())
	if in.Urgency != UrgencyHigh {
		t.Errorf("Urgency = %v, want high", in.Urgency)
	}
	if !reflect.DeepEqual(in.StopKeywords, []string{"stop", "hold"}) {
		t.Errorf("StopKeywords = %v", in.StopKeywords)
	}

	in = Parse("respond directly to me, don't write a document", testRoster())
	if !in.RespondDirectly {
		t.Error("expected RespondDirectly")
	}
	if !in.DocumentBanned {
		t.Error("expected DocumentBanned")
	}
	if in.Urgency != UrgencyNone {
		t.Errorf("Urgency = %v, want none", in.Urgency)
	}
}

func TestParseTopicsCapped(t *testing.T) {
	in := Parse("alpha bravo charlie delta echo foxtrot golf hotel", testRoster())
	if len(in.Topics) != MaxTopics {
		t.Errorf("len(Topics) = %d, want %d", len(in.Topics), MaxTopics)
	}
}

func TestParseEmptyRoster(t *testing.T) {
	in := Parse("@ava only ava should answer", nil)
	if len(in.Mentions) != 0 || len(in.DirectedIDs) != 0 || len(in.ExclusiveIDs) != 0 {
		t.Errorf("empty roster should yield no agent matches: %+v", in)
	}
}
