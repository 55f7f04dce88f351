// internal/intent/intent.go

// Package intent turns raw user text into a structured reading of who is
// being addressed and how. Parsing is deterministic heuristics over the
// roster (mentions, roles, exclusivity and exclusion cues, urgency, stop
// words) with no I/O and no failure mode: the result is always best-effort.
package intent

import (
	"strings"

	"parley/internal/chat"
	"parley/internal/match"
)

// Urgency of a parsed message
type Urgency string

const (
	UrgencyNone Urgency = "none"
	UrgencyHigh Urgency = "high"
)

// MentionConfidence is attached to explicit @-mentions downstream
const MentionConfidence = 0.95

// MaxTopics caps the keyword sample taken from a message
const MaxTopics = 5

// Intent is the structured reading of one user message. Recomputed fresh
// per message, never persisted.
type Intent struct {
	Mentions        []string // agent ids explicitly @-addressed
	DirectedIDs     []string // mentions plus direct name references, in order
	ImpliedRoles    []string // role tokens from the roster found in the text
	Urgency         Urgency
	StopKeywords    []string // stop words found, verbatim
	Topics          []string
	ExclusiveIDs    []string // "only X" style restriction
	ExcludedIDs     []string // "except X" style removal
	MultiSpeaker    bool     // broadcast cue: everyone / whole team
	RespondDirectly bool
	DocumentBanned  bool
}

// Directed reports whether the message addresses agentID explicitly or by name
func (in Intent) Directed(agentID string) bool {
	return contains(in.DirectedIDs, agentID)
}

// Parse analyzes text against the roster. Rules apply in a fixed
// precedence: explicit mentions, direct names, roles, exclusivity,
// exclusion, then the message-level cues.
func Parse(text string, roster []chat.Agent) Intent {
	lower := strings.ToLower(text)
	in := Intent{Urgency: UrgencyNone}

	matched := make(map[string]bool)

	// 1. Explicit @-mentions, resolved against the alias and role sets
	tokens := match.MentionTokens(lower)
	for _, tok := range tokens {
		for _, a := range roster {
			if matched[a.ID] {
				continue
			}
			if mentionResolves(tok, a) {
				in.Mentions = append(in.Mentions, a.ID)
				in.DirectedIDs = append(in.DirectedIDs, a.ID)
				matched[a.ID] = true
			}
		}
	}

	// 2. Direct name references for agents not already mentioned. Each
	// agent matches at most once: the first alias hit claims it.
	for _, a := range roster {
		if matched[a.ID] {
			continue
		}
		for _, alias := range match.AliasSet(a.Name, a.Persona) {
			if match.ContainsAlias(lower, alias) {
				in.DirectedIDs = append(in.DirectedIDs, a.ID)
				matched[a.ID] = true
				break
			}
		}
	}

	// 3. Role token containment for agents not yet matched
	roleSeen := make(map[string]bool)
	for _, a := range roster {
		for _, tok := range match.RoleTokens(a.Role) {
			if !roleSeen[tok] && strings.Contains(lower, tok) {
				in.ImpliedRoles = append(in.ImpliedRoles, tok)
				roleSeen[tok] = true
			}
		}
	}

	// 4. Exclusivity cues, tested across each agent's alias set
	exclusive := make(map[string]bool)
	for _, a := range roster {
		for _, alias := range match.AliasSet(a.Name, a.Persona) {
			if match.HasExclusivityCue(lower, alias) {
				in.ExclusiveIDs = append(in.ExclusiveIDs, a.ID)
				exclusive[a.ID] = true
				break
			}
		}
	}

	// 5. Exclusion cues. Exclusivity wins: an exclusive id is never
	// also excluded.
	for _, a := range roster {
		if exclusive[a.ID] {
			continue
		}
		for _, alias := range match.AliasSet(a.Name, a.Persona) {
			if match.HasExclusionCue(lower, alias) {
				in.ExcludedIDs = append(in.ExcludedIDs, a.ID)
				break
			}
		}
	}

	// 6–9. Message-level cues
	if len(match.FoundKeywords(lower, match.UrgencyKeywords)) > 0 {
		in.Urgency = UrgencyHigh
	}
	in.StopKeywords = match.FoundKeywords(lower, match.StopKeywords)
	in.MultiSpeaker = match.HasAnyPhrase(lower, match.BroadcastPhrases)
	in.RespondDirectly = match.HasAnyPhrase(lower, match.DirectSpeechCues)
	in.DocumentBanned = match.HasDocumentBan(lower)

	// 10. Keyword sample
	in.Topics = match.Topics(lower, MaxTopics)

	return in
}

// mentionResolves tests an @-token against an agent's exact alias set:
// full name, first name token, concatenated name, or a role token.
func mentionResolves(token string, a chat.Agent) bool {
	lower := strings.ToLower(a.Name)
	if token == lower {
		return true
	}
	if fields := strings.Fields(lower); len(fields) > 0 && token == fields[0] {
		return true
	}
	if token == strings.ReplaceAll(lower, " ", "") {
		return true
	}
	for _, rt := range match.RoleTokens(a.Role) {
		if token == rt {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
