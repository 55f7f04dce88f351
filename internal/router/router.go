// internal/router/router.go

// Package router decides who speaks next. Given a parsed Intent and the
// room roster it produces a ranked RoutingResult: primary speakers with a
// tier and confidence, background candidates, a hold recommendation and a
// human-readable rationale. Routing never fails; the degenerate answer is
// the first roster agent.
package router

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"parley/internal/chat"
	"parley/internal/intent"
)

// Tier classifies why a speaker was selected
type Tier string

const (
	TierDirected Tier = "directed"
	TierTopic    Tier = "topic"
	TierRotation Tier = "rotation"
	TierMonitor  Tier = "monitor"
)

// Speaker is one ranked routing candidate
type Speaker struct {
	AgentID    string
	Name       string
	Tier       Tier
	Confidence float64
	Reason     string
}

// RoutingResult is produced once per inbound user message
type RoutingResult struct {
	Primary      []Speaker
	Secondary    []Speaker
	Suppressed   []Speaker
	Hold         HoldState
	Rationale    string
	Intent       intent.Intent
	MultiSpeaker bool
	LoadFactor   float64
}

// Router ranks speakers and tracks fairness counters across turns.
// Construct one per room to keep rotation deterministic under test.
type Router struct {
	mu       sync.Mutex
	turns    map[string]int // agent id -> completed turns
	// DisableAutoExclusive turns off the lone-role-match promotion
	// heuristic, which can over-silence agents on an incidental role
	// reference. Tunable, not a guaranteed-correct inference.
	DisableAutoExclusive bool
}

// New creates a Router with empty fairness counters
func New() *Router {
	return &Router{turns: make(map[string]int)}
}

// RegisterResponse records completed turns for the listed agents. Call
// once per agent that actually finished speaking; the counts break ties
// on the next routing call.
func (r *Router) RegisterResponse(agentIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range agentIDs {
		r.turns[id]++
	}
}

// ResetCounters clears all fairness counters (administrative reset)
func (r *Router) ResetCounters() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = make(map[string]int)
}

// TurnCount returns the completed-turn count for an agent
func (r *Router) TurnCount(agentID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turns[agentID]
}

// Route ranks the roster against a parsed intent. prev is the hold state
// from the previous decision (manual holds are sticky); now anchors the
// ingest debounce window.
func (r *Router) Route(in intent.Intent, roster []chat.Agent, prev HoldState, now time.Time) RoutingResult {
	result := RoutingResult{Intent: in}

	index := make(map[string]int, len(roster))
	byID := make(map[string]chat.Agent, len(roster))
	for i, a := range roster {
		index[a.ID] = i
		byID[a.ID] = a
	}

	directed := make(map[string]bool)
	for _, id := range in.DirectedIDs {
		directed[id] = true
	}

	// Role matches, excluding anyone already directly addressed
	roleMatch := make(map[string]bool)
	var roleMatched []string
	for _, a := range roster {
		if directed[a.ID] {
			continue
		}
		for _, tok := range in.ImpliedRoles {
			if containsToken(a.Role, tok) {
				roleMatch[a.ID] = true
				roleMatched = append(roleMatched, a.ID)
				break
			}
		}
	}

	// Exclusive set, with the lone-addressee promotion heuristic: a
	// message that points at exactly one agent, by name or by a single
	// topical reference, reads as "ask only X" unless a broadcast cue
	// widens it.
	exclusiveIDs := append([]string(nil), in.ExclusiveIDs...)
	promoted := false
	if len(exclusiveIDs) == 0 && !in.MultiSpeaker && !r.DisableAutoExclusive {
		candidates := append(append([]string(nil), in.DirectedIDs...), roleMatched...)
		if len(candidates) == 1 {
			exclusiveIDs = candidates
			promoted = true
		}
	}
	exclusive := make(map[string]bool)
	exclusiveRank := make(map[string]int)
	for i, id := range exclusiveIDs {
		exclusive[id] = true
		exclusiveRank[id] = i
	}

	excluded := make(map[string]bool)
	for _, id := range in.ExcludedIDs {
		excluded[id] = true
	}

	// Selection: the exclusive set if any, else everyone; minus
	// exclusions, with fallbacks so routing always answers.
	var selected []string
	if len(exclusiveIDs) > 0 {
		for _, id := range exclusiveIDs {
			if !excluded[id] {
				if _, ok := byID[id]; ok {
					selected = append(selected, id)
				}
			}
		}
	} else {
		for _, a := range roster {
			if !excluded[a.ID] {
				selected = append(selected, a.ID)
			}
		}
	}
	if len(selected) == 0 {
		for _, a := range roster {
			if !excluded[a.ID] {
				selected = append(selected, a.ID)
			}
		}
	}
	if len(selected) == 0 && len(roster) > 0 {
		selected = []string{roster[0].ID}
	}

	// Rank: exclusive order, exclusive flag, directed flag, role match,
	// fewest past turns, lowest load, roster position.
	r.mu.Lock()
	turns := make(map[string]int, len(selected))
	for _, id := range selected {
		turns[id] = r.turns[id]
	}
	r.mu.Unlock()

	sort.SliceStable(selected, func(i, j int) bool {
		a, b := selected[i], selected[j]
		if exclusive[a] != exclusive[b] {
			return exclusive[a]
		}
		if exclusive[a] && exclusiveRank[a] != exclusiveRank[b] {
			return exclusiveRank[a] < exclusiveRank[b]
		}
		if directed[a] != directed[b] {
			return directed[a]
		}
		if roleMatch[a] != roleMatch[b] {
			return roleMatch[a]
		}
		if turns[a] != turns[b] {
			return turns[a] < turns[b]
		}
		if byID[a].Load != byID[b].Load {
			return byID[a].Load < byID[b].Load
		}
		return index[a] < index[b]
	})

	selectedSet := make(map[string]bool, len(selected))
	for _, id := range selected {
		selectedSet[id] = true
		agent := byID[id]
		var sp Speaker
		switch {
		case exclusive[id]:
			reason := "Exclusive request"
			if promoted {
				if directed[id] {
					reason = "Mentioned by user"
				} else {
					reason = "Role relevance"
				}
			}
			sp = Speaker{agent.ID, agent.Name, TierDirected, 0.98, reason}
		case directed[id]:
			sp = Speaker{agent.ID, agent.Name, TierDirected, 0.90, "Mentioned by user"}
		case roleMatch[id]:
			sp = Speaker{agent.ID, agent.Name, TierTopic, 0.75, "Role relevance"}
		default:
			sp = Speaker{agent.ID, agent.Name, TierRotation, 0.55, "Included as default participant"}
		}
		result.Primary = append(result.Primary, sp)
	}
	if len(result.Primary) == 0 && len(roster) > 0 {
		first := roster[0]
		result.Primary = append(result.Primary, Speaker{
			first.ID, first.Name, TierRotation, 0.5, "Fallback to first available participant",
		})
		selectedSet[first.ID] = true
	}

	// Unselected agents stay visible as background monitors and are
	// listed as suppressed for the audit trail.
	for _, a := range roster {
		if selectedSet[a.ID] {
			continue
		}
		conf := a.Load*0.5 + 0.25
		if conf > 0.35 {
			conf = 0.35
		}
		result.Secondary = append(result.Secondary, Speaker{
			a.ID, a.Name, TierMonitor, conf, "Background monitor available",
		})
		result.Suppressed = append(result.Suppressed, Speaker{
			a.ID, a.Name, TierMonitor, conf, "Suppressed to limit overlap",
		})
	}

	result.MultiSpeaker = len(result.Primary) > 1
	if len(roster) > 0 {
		load := float64(len(result.Primary)) / float64(len(roster))
		if len(result.Secondary) > 0 {
			load += 0.15
		}
		if load > 1 {
			load = 1
		}
		result.LoadFactor = load
	}

	result.Hold = r.holdDecision(in, result, prev, now)
	// Promoted exclusives are a heuristic, not a user request; the audit
	// string only reports exclusivity the user actually asked for.
	result.Rationale = rationale(in, in.ExclusiveIDs, roleMatched, byID, result.Hold)

	return result
}

// holdDecision: stop keywords force a manual hold; an existing manual
// hold is sticky until released; otherwise a short ingest debounce.
func (r *Router) holdDecision(in intent.Intent, result RoutingResult, prev HoldState, now time.Time) HoldState {
	eligible := make([]string, 0, len(result.Primary))
	for _, sp := range result.Primary {
		eligible = append(eligible, sp.AgentID)
	}

	if len(in.StopKeywords) > 0 {
		return HoldState{
			Mode:           HoldManual,
			RequestedBy:    "user",
			Reason:         fmt.Sprintf("Stop keyword: %s", in.StopKeywords[0]),
			ActivatedAt:    now,
			ResumeEligible: eligible,
		}
	}
	if prev.Mode == HoldManual {
		prev.ResumeEligible = eligible
		return prev
	}
	return HoldState{
		Mode:           HoldIngest,
		RequestedBy:    "system",
		Reason:         "Debounce window for rapid follow-up messages",
		ActivatedAt:    now,
		HoldUntil:      now.Add(IngestHoldWindow),
		ResumeEligible: eligible,
	}
}

// rationale assembles the audit string from whichever cues applied
func rationale(in intent.Intent, exclusiveIDs, roleMatched []string, byID map[string]chat.Agent, hold HoldState) string {
	var parts []string
	if len(exclusiveIDs) > 0 {
		parts = append(parts, "Exclusive selection: "+joinNames(exclusiveIDs, byID))
	}
	if len(in.ExcludedIDs) > 0 {
		parts = append(parts, "Excluded: "+joinNames(in.ExcludedIDs, byID))
	}
	if len(in.Mentions) > 0 {
		parts = append(parts, "Mentions acknowledged: "+joinNames(in.Mentions, byID))
	}
	if len(roleMatched) > 0 {
		parts = append(parts, "Role relevance: "+joinNames(roleMatched, byID))
	}
	if in.DocumentBanned || in.RespondDirectly {
		parts = append(parts, "Single-speaker directive in effect")
	}
	if hold.Mode == HoldManual {
		parts = append(parts, "Hold: "+hold.Reason)
	}
	if len(parts) == 0 {
		return "Default rotation among available participants"
	}
	return strings.Join(parts, " | ")
}

func joinNames(ids []string, byID map[string]chat.Agent) string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			names = append(names, a.Name)
		} else {
			names = append(names, id)
		}
	}
	return strings.Join(names, ", ")
}

// containsToken reports whether a role string contains the token when
// split the same way the parser splits roles.
func containsToken(role, token string) bool {
	for _, tok := range strings.FieldsFunc(strings.ToLower(role), func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == '/'
	}) {
		if tok == token {
			return true
		}
	}
	return false
}
