// internal/control/server.go

// Package control exposes a small HTTP surface over the hub: a status
// endpoint, a free-text command endpoint and a health check. It is a
// control plane for scripts and operators, not a UI.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"parley/internal/chat"
	"parley/internal/export"
	"parley/internal/orchestrator"
)

// Server wires HTTP handlers to a hub
type Server struct {
	hub        *orchestrator.Hub
	httpServer *http.Server
	logger     *zap.Logger

	// ExportDir is where transcript exports land; empty means the
	// current directory.
	ExportDir string
}

// Command patterns, tried in order
var (
	exportPattern  = regexp.MustCompile(`(?:export|transcript|save)(?:\s+(\S+))?`)
	stopPattern    = regexp.MustCompile(`(?:stop|halt|pause)(?:\s+(?:the\s+)?(?:room|conversation))?`)
	releasePattern = regexp.MustCompile(`(?:release|resume|continue|unhold)(?:\s+(?:the\s+)?hold)?`)
	triggerPattern = regexp.MustCompile(`(?:trigger|kick|run)\s+(\S+)`)
	autoPattern    = regexp.MustCompile(`(?:autonomous|auto)\s+(on|off)`)
)

// NewServer creates a control server for the hub
func NewServer(hub *orchestrator.Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		hub:    hub,
		logger: logger.With(zap.String("component", "control")),
	}
}

// Start begins serving on the given port
func (s *Server) Start(port int) error {
	mux := http.NewServeMux()

	// GET /status - room summaries
	mux.HandleFunc("/status", s.handleStatus)

	// POST /command - free-text control commands
	mux.HandleFunc("/command", s.handleCommand)

	// GET /health - health check
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.logger.Info("control server starting", zap.Int("port", port))

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("control server failed", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// RoomStatus is one room's summary in the status response
type RoomStatus struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Participants []string          `json:"participants"`
	MessageCount int               `json:"message_count"`
	Autonomous   bool              `json:"autonomous"`
	HoldMode     string            `json:"hold_mode"`
	Suggestions  []chat.Suggestion `json:"suggestions,omitempty"`
}

// StatusResponse is returned by GET /status
type StatusResponse struct {
	ActiveRoomID string       `json:"active_room_id,omitempty"`
	Rooms        []RoomStatus `json:"rooms"`
}

// CommandRequest is accepted by POST /command
type CommandRequest struct {
	Text   string `json:"text"`
	RoomID string `json:"room_id,omitempty"`
}

// CommandResponse is returned by POST /command
type CommandResponse struct {
	Success bool   `json:"success"`
	Action  string `json:"action,omitempty"`
	Reply   string `json:"reply"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"service":   "parley",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.hub.Snapshot()
	resp := StatusResponse{ActiveRoomID: snap.ActiveRoomID}
	for _, room := range snap.Rooms {
		names := make([]string, 0, len(room.Participants))
		for _, p := range room.Participants {
			names = append(names, p.Name)
		}
		status := RoomStatus{
			ID:           room.ID,
			Title:        room.Title,
			Participants: names,
			MessageCount: len(room.Messages),
			Autonomous:   room.Settings.Autonomous,
			Suggestions:  room.Suggestions,
		}
		if hold, err := s.hub.Hold(room.ID); err == nil {
			status.HoldMode = string(hold.Mode)
		}
		resp.Rooms = append(resp.Rooms, status)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	var cmd CommandRequest
	if err := json.Unmarshal(body, &cmd); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	resp := s.processCommand(cmd)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// processCommand matches the free-text command against the known
// patterns and applies it to the addressed room.
func (s *Server) processCommand(cmd CommandRequest) CommandResponse {
	text := strings.ToLower(strings.TrimSpace(cmd.Text))
	roomID := s.resolveRoom(cmd.RoomID)
	if roomID == "" {
		return CommandResponse{
			Success: false,
			Reply:   "No room to address.",
			Error:   "no rooms registered",
		}
	}

	switch {
	case exportPattern.MatchString(text):
		if target := exportPattern.FindStringSubmatch(text)[1]; target != "" && s.hub.Room(target) != nil {
			roomID = target
		}
		room := s.hub.Room(roomID)
		if room == nil {
			return commandError("export", orchestrator.ErrRoomNotFound)
		}
		path, err := export.WriteRoom(room, s.exportBase())
		if err != nil {
			return commandError("export", err)
		}
		return CommandResponse{Success: true, Action: "export", Reply: "Transcript written to " + path + "."}

	case triggerPattern.MatchString(text):
		target := triggerPattern.FindStringSubmatch(text)[1]
		if s.hub.Room(target) != nil {
			roomID = target
		}
		if err := s.hub.Trigger(roomID); err != nil {
			return commandError("trigger", err)
		}
		return CommandResponse{Success: true, Action: "trigger", Reply: "Turn loop triggered."}

	case autoPattern.MatchString(text):
		enabled := autoPattern.FindStringSubmatch(text)[1] == "on"
		if err := s.hub.SetAutonomous(roomID, enabled); err != nil {
			return commandError("autonomous", err)
		}
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		return CommandResponse{Success: true, Action: "autonomous", Reply: "Autonomous mode " + state + "."}

	case releasePattern.MatchString(text):
		if err := s.hub.ReleaseHold(roomID); err != nil {
			return commandError("release", err)
		}
		return CommandResponse{Success: true, Action: "release", Reply: "Hold released, turns may resume."}

	case stopPattern.MatchString(text):
		if err := s.hub.RequestStop(roomID); err != nil {
			return commandError("stop", err)
		}
		return CommandResponse{Success: true, Action: "stop", Reply: "Stop requested."}

	default:
		return CommandResponse{
			Success: false,
			Reply:   "I didn't understand that command.",
			Error:   "unrecognized command",
		}
	}
}

// resolveRoom prefers the explicit room id, then the active room, then
// the only registered room.
func (s *Server) resolveRoom(explicit string) string {
	if explicit != "" && s.hub.Room(explicit) != nil {
		return explicit
	}
	snap := s.hub.Snapshot()
	if snap.ActiveRoomID != "" {
		return snap.ActiveRoomID
	}
	if len(snap.Rooms) > 0 {
		return snap.Rooms[0].ID
	}
	return ""
}

func (s *Server) exportBase() string {
	if s.ExportDir != "" {
		return s.ExportDir
	}
	return "."
}

func commandError(action string, err error) CommandResponse {
	return CommandResponse{
		Success: false,
		Action:  action,
		Reply:   "Command failed.",
		Error:   err.Error(),
	}
}
