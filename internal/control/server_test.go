// internal/control/server_test.go
package control

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"parley/internal/chat"
	"parley/internal/orchestrator"
	"parley/internal/turns"
)

func newTestServer(t *testing.T) (*Server, *chat.Room) {
	t.Helper()
	hub := orchestrator.NewHub(turns.New(nil), nil, orchestrator.Config{}, nil)
	t.Cleanup(func() { hub.Close() })

	room, err := hub.CreateRoom("Ops Review", chat.NewHuman("You", "#ffffff"), chat.Settings{Autonomous: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := hub.AddAgent(room.ID, chat.Agent{ID: "a1", Name: "Ava", Role: "support"}, nil); err != nil {
		t.Fatal(err)
	}
	return NewServer(hub, nil), room
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "parley" {
		t.Errorf("body = %v", body)
	}

	w = httptest.NewRecorder()
	srv.handleHealth(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv, room := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.ActiveRoomID != room.ID {
		t.Errorf("active room = %s, want %s", resp.ActiveRoomID, room.ID)
	}
	if len(resp.Rooms) != 1 {
		t.Fatalf("room count = %d, want 1", len(resp.Rooms))
	}
	got := resp.Rooms[0]
	if got.Title != "Ops Review" || !got.Autonomous {
		t.Errorf("room status = %+v", got)
	}
	if len(got.Participants) != 2 || got.Participants[1] != "Ava" {
		t.Errorf("participants = %v", got.Participants)
	}
	if got.HoldMode == "" {
		t.Error("hold mode missing from status")
	}
}

func TestHandleCommand(t *testing.T) {
	srv, room := newTestServer(t)

	tests := []struct {
		name    string
		text    string
		success bool
		action  string
	}{
		{"stop", "stop the conversation", true, "stop"},
		{"pause variant", "pause", true, "stop"},
		{"release", "release the hold", true, "release"},
		{"resume variant", "resume", true, "release"},
		{"trigger", "trigger " + room.ID, true, "trigger"},
		{"autonomous on", "autonomous on", true, "autonomous"},
		{"autonomous off", "auto off", true, "autonomous"},
		{"unknown", "make me a sandwich", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, _ := json.Marshal(CommandRequest{Text: tt.text, RoomID: room.ID})
			req := httptest.NewRequest(http.MethodPost, "/command", strings.NewReader(string(payload)))
			w := httptest.NewRecorder()
			srv.handleCommand(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			var resp CommandResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if resp.Success != tt.success {
				t.Errorf("success = %v, want %v (%s)", resp.Success, tt.success, resp.Error)
			}
			if resp.Action != tt.action {
				t.Errorf("action = %q, want %q", resp.Action, tt.action)
			}
		})
	}
}

func TestCommandExport(t *testing.T) {
	srv, room := newTestServer(t)
	srv.ExportDir = t.TempDir()

	resp := srv.processCommand(CommandRequest{Text: "export " + room.ID})
	if !resp.Success || resp.Action != "export" {
		t.Fatalf("resp = %+v", resp)
	}
	if !strings.Contains(resp.Reply, "ops-review.md") {
		t.Errorf("reply = %q, want transcript path", resp.Reply)
	}

	path := strings.TrimSuffix(strings.TrimPrefix(resp.Reply, "Transcript written to "), ".")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if !strings.Contains(string(data), "# Ops Review") {
		t.Errorf("transcript missing title header:\n%s", data)
	}
}

func TestHandleCommandBadJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/command", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	srv.handleCommand(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCommandWithoutRooms(t *testing.T) {
	hub := orchestrator.NewHub(turns.New(nil), nil, orchestrator.Config{}, nil)
	t.Cleanup(func() { hub.Close() })
	srv := NewServer(hub, nil)

	resp := srv.processCommand(CommandRequest{Text: "stop"})
	if resp.Success {
		t.Error("command with no rooms should fail")
	}
	if resp.Error != "no rooms registered" {
		t.Errorf("error = %q", resp.Error)
	}
}
