// internal/orchestrator/hub.go

// Package orchestrator runs the per-room turn loop. Each room gets one
// worker goroutine draining a coalesced trigger channel, which serializes
// turn execution within a room while distinct rooms proceed fully
// concurrently. The loop dequeues agents from the turn coordinator,
// streams responder updates into the live message, and converts deferred
// mentions into follow-up suggestions instead of chaining agent replies.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"parley/internal/chat"
	"parley/internal/intent"
	"parley/internal/router"
	"parley/internal/turns"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrClosed       = errors.New("hub closed")
)

// Config tunes scheduler behavior
type Config struct {
	// ResponderTimeout bounds one responder call. Zero means no
	// deadline; responders may enforce their own.
	ResponderTimeout time.Duration
}

// Hub owns every room session and the shared collaborators
type Hub struct {
	mu           sync.Mutex
	sessions     map[string]*session
	responders   map[string]Responder
	activeRoomID string
	closed       bool

	coord  *turns.Coordinator
	events Events
	cfg    Config
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// session is the per-room scheduling state. The room and hold state are
// mutated only under mu; the trigger channel is the serialized chain.
type session struct {
	mu     sync.Mutex
	room   *chat.Room
	router *router.Router
	hold   router.HoldState

	triggers  chan struct{}
	interrupt chan struct{}
	stopping  atomic.Bool
	running   atomic.Bool

	activeMu sync.Mutex
	active   Responder

	cancel context.CancelFunc
}

// NewHub creates a Hub. A nil events sink and nil logger are both fine.
func NewHub(coord *turns.Coordinator, events Events, cfg Config, logger *zap.Logger) *Hub {
	if events == nil {
		events = NopEvents{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, _ := errgroup.WithContext(ctx)
	return &Hub{
		sessions:   make(map[string]*session),
		responders: make(map[string]Responder),
		coord:      coord,
		events:     events,
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "orchestrator")),
		ctx:        ctx,
		cancel:     cancel,
		group:      group,
	}
}

// RegisterResponder binds an agent id to its responder implementation
func (h *Hub) RegisterResponder(agentID string, r Responder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responders[agentID] = r
}

// CreateRoom registers a room and starts its worker
func (h *Hub) CreateRoom(title string, human *chat.Participant, settings chat.Settings) (*chat.Room, error) {
	room := chat.NewRoom(title, human)
	room.Settings = settings
	if err := h.AddRoom(room); err != nil {
		return nil, err
	}
	return room, nil
}

// AddRoom registers an existing room (hydration path) and starts its worker
func (h *Hub) AddRoom(room *chat.Room) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	if _, ok := h.sessions[room.ID]; ok {
		return nil
	}

	ctx, cancel := context.WithCancel(h.ctx)
	s := &session{
		room:      room,
		router:    router.New(),
		triggers:  make(chan struct{}, 1),
		interrupt: make(chan struct{}, 1),
		cancel:    cancel,
	}
	h.sessions[room.ID] = s
	if h.activeRoomID == "" {
		h.activeRoomID = room.ID
	}
	h.group.Go(func() error {
		h.worker(ctx, s)
		return nil
	})
	return nil
}

// RemoveRoom stops a room's worker and evicts all of its turn state
func (h *Hub) RemoveRoom(roomID string) {
	h.mu.Lock()
	s, ok := h.sessions[roomID]
	if ok {
		delete(h.sessions, roomID)
		if h.activeRoomID == roomID {
			h.activeRoomID = ""
		}
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	h.requestStop(s)
	s.cancel()
	h.coord.Evict(roomID)
}

// Room returns the live room, or nil
func (h *Hub) Room(roomID string) *chat.Room {
	if s := h.session(roomID); s != nil {
		return s.room
	}
	return nil
}

// SetActiveRoom marks the room the consumer is looking at
func (h *Hub) SetActiveRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[roomID]; ok {
		h.activeRoomID = roomID
	}
}

// AddAgent adds an agent participant to a room
func (h *Hub) AddAgent(roomID string, agent chat.Agent, persona *chat.Persona) error {
	s := h.session(roomID)
	if s == nil {
		return ErrRoomNotFound
	}
	s.mu.Lock()
	s.room.AddParticipant(chat.NewAgentParticipant(agent, persona))
	s.mu.Unlock()
	h.events.RoomUpdated(s.room)
	return nil
}

// UserMessage appends the human's message, routes it, records the hold
// recommendation, seeds the pending queue and triggers the turn loop.
func (h *Hub) UserMessage(roomID, text string) (router.RoutingResult, error) {
	s := h.session(roomID)
	if s == nil {
		return router.RoutingResult{}, ErrRoomNotFound
	}

	s.mu.Lock()
	human := s.room.Human()
	msg := chat.NewMessage("")
	if human != nil {
		msg.ParticipantID = human.ID
	}
	msg.Content = text
	msg.Status = chat.StatusFinal
	s.room.AppendMessage(msg)
	s.room.Suggestions = nil // a fresh wave supersedes old follow-ups

	roster := s.room.Roster()
	in := intent.Parse(text, roster)
	res := s.router.Route(in, roster, s.hold, time.Now())
	s.hold = res.Hold
	h.coord.HandleUserMessage(s.room, text)
	s.mu.Unlock()

	h.events.RoomUpdated(s.room)

	h.logger.Info("user message routed",
		zap.String("room_id", roomID),
		zap.Int("primary", len(res.Primary)),
		zap.String("hold", string(res.Hold.Mode)),
		zap.String("rationale", res.Rationale),
	)

	if len(in.StopKeywords) > 0 {
		// The hold parks new turns; an in-flight responder is asked
		// to wind down cooperatively as well.
		h.requestStop(s)
	} else {
		s.trigger()
	}
	return res, nil
}

// Trigger nudges a room's turn loop without a new user message
func (h *Hub) Trigger(roomID string) error {
	s := h.session(roomID)
	if s == nil {
		return ErrRoomNotFound
	}
	s.trigger()
	return nil
}

// RequestStop asks the room's current chain to stop. With nothing
// in flight this is a no-op and the flag clears immediately.
func (h *Hub) RequestStop(roomID string) error {
	s := h.session(roomID)
	if s == nil {
		return ErrRoomNotFound
	}
	h.requestStop(s)
	return nil
}

// ReleaseHold clears a manual hold and resumes any parked wave
func (h *Hub) ReleaseHold(roomID string) error {
	s := h.session(roomID)
	if s == nil {
		return ErrRoomNotFound
	}
	s.mu.Lock()
	s.hold = s.hold.Released()
	s.mu.Unlock()
	s.wake()
	s.trigger()
	return nil
}

// Hold returns the room's current hold state
func (h *Hub) Hold(roomID string) (router.HoldState, error) {
	s := h.session(roomID)
	if s == nil {
		return router.HoldState{}, ErrRoomNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hold, nil
}

// SetAutonomous toggles autonomous mode. Disabling it mid-flight clears
// pending and deferred state and requests a stop if a turn is active.
func (h *Hub) SetAutonomous(roomID string, enabled bool) error {
	s := h.session(roomID)
	if s == nil {
		return ErrRoomNotFound
	}
	s.mu.Lock()
	s.room.Settings.Autonomous = enabled
	s.mu.Unlock()
	if !enabled {
		h.coord.ClearPending(roomID)
		if s.running.Load() {
			h.requestStop(s)
		}
	}
	return nil
}

// UpdateSettings replaces a room's settings and clears its turn state,
// the same as any settings change in the source behavior.
func (h *Hub) UpdateSettings(roomID string, settings chat.Settings) error {
	s := h.session(roomID)
	if s == nil {
		return ErrRoomNotFound
	}
	s.mu.Lock()
	s.room.Settings = settings
	s.mu.Unlock()
	h.coord.ClearPending(roomID)
	return nil
}

// Snapshot deep-copies all rooms for persistence or event consumers
func (h *Hub) Snapshot() chat.Snapshot {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	snap := chat.Snapshot{ActiveRoomID: h.activeRoomID}
	h.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		snap.Rooms = append(snap.Rooms, s.room.Clone())
		s.mu.Unlock()
	}
	return snap
}

// Hydrate loads rooms from a persisted snapshot
func (h *Hub) Hydrate(snap chat.Snapshot) error {
	for _, room := range snap.Rooms {
		if err := h.AddRoom(room); err != nil {
			return err
		}
	}
	if snap.ActiveRoomID != "" {
		h.SetActiveRoom(snap.ActiveRoomID)
	}
	return nil
}

// Close stops all room workers and waits for them to drain
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		h.requestStop(s)
	}
	h.cancel()
	return h.group.Wait()
}

func (h *Hub) session(roomID string) *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[roomID]
}

func (h *Hub) responder(agentID string) Responder {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.responders[agentID]
}

func (h *Hub) requestStop(s *session) {
	s.stopping.Store(true)
	s.activeMu.Lock()
	active := s.active
	s.activeMu.Unlock()
	if active != nil {
		active.RequestStop()
	}
	s.wake()
	if !s.running.Load() {
		// Nothing in flight: clear immediately
		s.stopping.Store(false)
	}
}

// trigger chains a run onto the room's worker. The channel holds one
// pending trigger; extra triggers coalesce into it.
func (s *session) trigger() {
	select {
	case s.triggers <- struct{}{}:
	default:
	}
}

// wake interrupts a hold wait
func (s *session) wake() {
	select {
	case s.interrupt <- struct{}{}:
	default:
	}
}

// worker serializes waves for one room
func (h *Hub) worker(ctx context.Context, s *session) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.triggers:
			h.runWave(ctx, s)
		}
	}
}

// runWave executes one pass through the pending queue, per the loop in
// the scheduler design: dequeue, snapshot, stream, bookkeep, continue
// while autonomous.
func (h *Hub) runWave(ctx context.Context, s *session) {
	s.running.Store(true)
	defer func() {
		s.running.Store(false)
		s.stopping.Store(false) // the flag clears once the loop exits
		s.mu.Lock()
		if s.hold.Mode == router.HoldResponding {
			s.hold.Mode = router.HoldIdle
		}
		s.mu.Unlock()
		h.events.StateChanged(h.Snapshot())
	}()

	roomID := s.room.ID
	turnsTaken := 0

	for {
		if s.stopping.Load() || ctx.Err() != nil {
			return
		}

		// Hold gating: manual holds park the wave with pending
		// preserved; ingest holds wait out the debounce window.
		if !h.waitForHold(ctx, s) {
			return
		}

		agentID, ok := h.coord.NextAgent(roomID)
		if !ok {
			return
		}

		s.mu.Lock()
		participant := s.room.Participant(agentID)
		s.mu.Unlock()
		responder := h.responder(agentID)
		if participant == nil || responder == nil {
			h.logger.Warn("skipping turn, participant or responder missing",
				zap.String("room_id", roomID),
				zap.String("agent_id", agentID),
			)
			continue
		}

		h.runTurn(ctx, s, agentID, responder)
		turnsTaken++

		s.mu.Lock()
		settings := s.room.Settings
		s.mu.Unlock()

		// Deferred mentions become suggestions, never silent
		// auto-continuations: surface them and end the wave.
		if deferred := h.coord.ConsumeDeferred(roomID); len(deferred) > 0 {
			h.attachSuggestions(s, deferred)
			return
		}

		if !settings.Autonomous {
			return
		}
		if settings.MaxSequentialTurns > 0 && turnsTaken >= settings.MaxSequentialTurns {
			h.logger.Info("sequential turn limit reached",
				zap.String("room_id", roomID),
				zap.Int("turns", turnsTaken),
			)
			return
		}
	}
}

// runTurn executes a single agent turn: append a streaming message,
// relay responder updates into it, then finalize and bookkeep.
func (h *Hub) runTurn(ctx context.Context, s *session, agentID string, responder Responder) {
	s.mu.Lock()
	snapshot := s.room.Clone()
	msg := chat.NewMessage(agentID)
	s.room.AppendMessage(msg)
	if s.hold.Mode == router.HoldIdle || s.hold.Mode == router.HoldIngest {
		s.hold.Mode = router.HoldResponding
	}
	s.mu.Unlock()
	h.events.RoomUpdated(s.room)

	onUpdate := func(u Update) {
		s.mu.Lock()
		msg.Content = u.Content
		if u.Status != "" {
			msg.Status = u.Status
		}
		if u.Err != nil {
			msg.Status = chat.StatusError
			msg.Error = u.Err.Error()
		}
		msg.UpdatedAt = time.Now()
		s.room.Touch()
		s.mu.Unlock()
		h.events.RoomUpdated(s.room)
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if h.cfg.ResponderTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, h.cfg.ResponderTimeout)
	}

	s.activeMu.Lock()
	s.active = responder
	s.activeMu.Unlock()
	err := responder.Respond(callCtx, snapshot, onUpdate)
	s.activeMu.Lock()
	s.active = nil
	s.activeMu.Unlock()
	if cancel != nil {
		cancel()
	}

	s.mu.Lock()
	switch {
	case err != nil:
		// Responder failure ends the turn; no automatic retry
		msg.Status = chat.StatusError
		msg.Error = err.Error()
		h.logger.Warn("responder failed",
			zap.String("room_id", s.room.ID),
			zap.String("agent_id", agentID),
			zap.Error(err),
		)
	case msg.Status == chat.StatusStreaming:
		// Responder returned without finalizing
		msg.Status = chat.StatusFinal
	}
	msg.UpdatedAt = time.Now()
	final := msg.Status == chat.StatusFinal
	content := msg.Content
	s.mu.Unlock()
	h.events.RoomUpdated(s.room)

	if final {
		s.mu.Lock()
		h.coord.HandleAgentMessage(s.room, agentID, content)
		s.mu.Unlock()
		s.router.RegisterResponse(agentID)
	}
}

// waitForHold blocks through an ingest debounce and reports whether the
// wave may proceed. Manual holds return false: the wave parks until
// ReleaseHold triggers it again.
func (h *Hub) waitForHold(ctx context.Context, s *session) bool {
	for {
		s.mu.Lock()
		hold := s.hold
		s.mu.Unlock()

		now := time.Now()
		switch hold.Mode {
		case router.HoldManual, router.HoldUser:
			h.logger.Debug("wave parked under manual hold",
				zap.String("room_id", s.room.ID),
			)
			return false
		case router.HoldIngest:
			if !now.Before(hold.HoldUntil) {
				return true
			}
			select {
			case <-time.After(hold.HoldUntil.Sub(now)):
			case <-s.interrupt:
			case <-ctx.Done():
				return false
			}
			if s.stopping.Load() {
				return false
			}
		default:
			return true
		}
	}
}

// attachSuggestions converts deferred agent ids into user-visible
// follow-up prompts on the room.
func (h *Hub) attachSuggestions(s *session, deferred []string) {
	s.mu.Lock()
	for _, id := range deferred {
		p := s.room.Participant(id)
		if p == nil {
			continue
		}
		s.room.Suggestions = append(s.room.Suggestions, chat.Suggestion{
			AgentID:     id,
			DisplayName: p.Name,
			Prompt:      "Hear from " + p.Name,
		})
	}
	s.room.Touch()
	s.mu.Unlock()
	h.events.RoomUpdated(s.room)
}
