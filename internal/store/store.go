// internal/store/store.go

// Package store persists coordination state to sqlite. It is a
// collaborator, not part of the turn core: the hub hands it snapshots
// and asks for one back at startup. A missing, malformed or
// schema-mismatched database always hydrates as empty state.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"parley/internal/chat"
)

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the database at path. An empty path uses the
// default data directory.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		dir, err := dataDir()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "rooms.db")
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, logger: logger.With(zap.String("component", "store"))}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func dataDir() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "parley"), nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		settings TEXT,
		last_speaker_id TEXT
	);

	CREATE TABLE IF NOT EXISTS participants (
		id TEXT NOT NULL,
		room_id TEXT NOT NULL REFERENCES rooms(id),
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		color TEXT,
		agent TEXT,
		persona TEXT,
		PRIMARY KEY (room_id, id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL REFERENCES rooms(id),
		participant_id TEXT,
		content TEXT NOT NULL,
		status TEXT DEFAULT 'final',
		error TEXT,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id);

	CREATE TABLE IF NOT EXISTS suggestions (
		room_id TEXT NOT NULL REFERENCES rooms(id),
		agent_id TEXT NOT NULL,
		display_name TEXT,
		prompt TEXT
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot replaces the persisted state with the given snapshot
func (s *Store) SaveSnapshot(snap chat.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"suggestions", "messages", "participants", "rooms"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, room := range snap.Rooms {
		settings, err := json.Marshal(room.Settings)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO rooms (id, title, created_at, updated_at, settings, last_speaker_id)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			room.ID, room.Title, room.CreatedAt, room.UpdatedAt, string(settings), room.LastSpeakerID,
		); err != nil {
			return fmt.Errorf("save room %s: %w", room.ID, err)
		}

		for _, p := range room.Participants {
			var agent, persona any
			if p.Agent != nil {
				agent = marshalJSON(p.Agent)
			}
			if p.Persona != nil {
				persona = marshalJSON(p.Persona)
			}
			if _, err := tx.Exec(
				`INSERT INTO participants (id, room_id, kind, name, color, agent, persona)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				p.ID, room.ID, string(p.Kind), p.Name, p.Color, agent, persona,
			); err != nil {
				return fmt.Errorf("save participant %s: %w", p.ID, err)
			}
		}

		for _, m := range room.Messages {
			if _, err := tx.Exec(
				`INSERT INTO messages (id, room_id, participant_id, content, status, error, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				m.ID, room.ID, m.ParticipantID, m.Content, string(m.Status), m.Error, m.CreatedAt, m.UpdatedAt,
			); err != nil {
				return fmt.Errorf("save message %s: %w", m.ID, err)
			}
		}

		for _, sg := range room.Suggestions {
			if _, err := tx.Exec(
				`INSERT INTO suggestions (room_id, agent_id, display_name, prompt) VALUES (?, ?, ?, ?)`,
				room.ID, sg.AgentID, sg.DisplayName, sg.Prompt,
			); err != nil {
				return fmt.Errorf("save suggestion: %w", err)
			}
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO meta (key, value) VALUES ('active_room_id', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		snap.ActiveRoomID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// LoadSnapshot reads the persisted state. Errors are logged and degrade
// to empty state; a bad database never blocks startup.
func (s *Store) LoadSnapshot() chat.Snapshot {
	var snap chat.Snapshot

	rows, err := s.db.Query(
		`SELECT id, title, created_at, updated_at, settings, last_speaker_id
		 FROM rooms ORDER BY rowid`,
	)
	if err != nil {
		s.logger.Warn("snapshot load failed, starting empty", zap.Error(err))
		return chat.Snapshot{}
	}
	defer rows.Close()

	for rows.Next() {
		room := &chat.Room{}
		var settings, lastSpeaker sql.NullString
		if err := rows.Scan(&room.ID, &room.Title, &room.CreatedAt, &room.UpdatedAt, &settings, &lastSpeaker); err != nil {
			s.logger.Warn("skipping unreadable room row", zap.Error(err))
			continue
		}
		if settings.Valid {
			if err := json.Unmarshal([]byte(settings.String), &room.Settings); err != nil {
				s.logger.Warn("malformed settings, using defaults",
					zap.String("room_id", room.ID), zap.Error(err))
			}
		}
		room.LastSpeakerID = lastSpeaker.String
		snap.Rooms = append(snap.Rooms, room)
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("snapshot load interrupted, starting empty", zap.Error(err))
		return chat.Snapshot{}
	}

	for _, room := range snap.Rooms {
		room.Participants = s.loadParticipants(room.ID)
		room.Messages = s.loadMessages(room.ID)
		room.Suggestions = s.loadSuggestions(room.ID)
	}

	var active sql.NullString
	err = s.db.QueryRow(`SELECT value FROM meta WHERE key = 'active_room_id'`).Scan(&active)
	if err != nil && err != sql.ErrNoRows {
		s.logger.Warn("active room lookup failed", zap.Error(err))
	}
	snap.ActiveRoomID = active.String

	return snap
}

func (s *Store) loadParticipants(roomID string) []*chat.Participant {
	rows, err := s.db.Query(
		`SELECT id, kind, name, color, agent, persona
		 FROM participants WHERE room_id = ? ORDER BY rowid`, roomID,
	)
	if err != nil {
		s.logger.Warn("participant load failed", zap.String("room_id", roomID), zap.Error(err))
		return nil
	}
	defer rows.Close()

	var participants []*chat.Participant
	for rows.Next() {
		p := &chat.Participant{}
		var kind string
		var color, agent, persona sql.NullString
		if err := rows.Scan(&p.ID, &kind, &p.Name, &color, &agent, &persona); err != nil {
			s.logger.Warn("skipping unreadable participant row", zap.Error(err))
			continue
		}
		p.Kind = chat.ParticipantKind(kind)
		p.Color = color.String
		if agent.Valid && agent.String != "" {
			var a chat.Agent
			if err := json.Unmarshal([]byte(agent.String), &a); err != nil {
				s.logger.Warn("malformed agent blob, dropping participant",
					zap.String("participant_id", p.ID), zap.Error(err))
				continue
			}
			p.Agent = &a
		}
		if persona.Valid && persona.String != "" {
			var ps chat.Persona
			if err := json.Unmarshal([]byte(persona.String), &ps); err == nil {
				p.Persona = &ps
			}
		}
		participants = append(participants, p)
	}
	return participants
}

func (s *Store) loadMessages(roomID string) []*chat.Message {
	rows, err := s.db.Query(
		`SELECT id, participant_id, content, status, error, created_at, updated_at
		 FROM messages WHERE room_id = ? ORDER BY rowid`, roomID,
	)
	if err != nil {
		s.logger.Warn("message load failed", zap.String("room_id", roomID), zap.Error(err))
		return nil
	}
	defer rows.Close()

	var messages []*chat.Message
	for rows.Next() {
		m := &chat.Message{}
		var participantID, status, errText sql.NullString
		var created, updated sql.NullTime
		if err := rows.Scan(&m.ID, &participantID, &m.Content, &status, &errText, &created, &updated); err != nil {
			s.logger.Warn("skipping unreadable message row", zap.Error(err))
			continue
		}
		m.ParticipantID = participantID.String
		m.Status = chat.MessageStatus(status.String)
		if m.Status == "" || m.Status == chat.StatusStreaming {
			// A turn interrupted by shutdown hydrates as final
			m.Status = chat.StatusFinal
		}
		m.Error = errText.String
		m.CreatedAt = created.Time
		m.UpdatedAt = updated.Time
		messages = append(messages, m)
	}
	return messages
}

func (s *Store) loadSuggestions(roomID string) []chat.Suggestion {
	rows, err := s.db.Query(
		`SELECT agent_id, display_name, prompt FROM suggestions WHERE room_id = ? ORDER BY rowid`, roomID,
	)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var suggestions []chat.Suggestion
	for rows.Next() {
		var sg chat.Suggestion
		var display, prompt sql.NullString
		if err := rows.Scan(&sg.AgentID, &display, &prompt); err != nil {
			continue
		}
		sg.DisplayName = display.String
		sg.Prompt = prompt.String
		suggestions = append(suggestions, sg)
	}
	return suggestions
}

func marshalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
