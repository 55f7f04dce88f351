// internal/router/hold.go
package router

import "time"

// HoldMode describes why new turns are (or are not) suppressed
type HoldMode string

const (
	HoldIdle       HoldMode = "idle"
	HoldUser       HoldMode = "user_hold"
	HoldIngest     HoldMode = "ingest_hold"
	HoldManual     HoldMode = "manual_hold"
	HoldQueued     HoldMode = "queued"
	HoldResponding HoldMode = "responding"
)

// IngestHoldWindow is the debounce applied after each user message so
// rapid successive messages settle before any agent starts responding.
const IngestHoldWindow = 1800 * time.Millisecond

// HoldState is the current turn-suppression state for a room. It is
// cleared or replaced on each new routing decision.
type HoldState struct {
	Mode           HoldMode
	RequestedBy    string // "user" or "system"
	Reason         string
	ActivatedAt    time.Time
	HoldUntil      time.Time // zero for holds without auto-expiry
	ResumeEligible []string  // agent ids allowed to resume when released
}

// Blocks reports whether the hold suppresses dequeuing at the given time.
// A manual hold blocks until explicitly released; an ingest hold blocks
// only inside its debounce window.
func (h HoldState) Blocks(now time.Time) bool {
	switch h.Mode {
	case HoldManual, HoldUser:
		return true
	case HoldIngest:
		return now.Before(h.HoldUntil)
	default:
		return false
	}
}

// Released returns the state after an explicit release
func (h HoldState) Released() HoldState {
	return HoldState{Mode: HoldIdle, ActivatedAt: h.ActivatedAt}
}
