// internal/export/markdown.go
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"parley/internal/chat"
)

// ExportRoom generates a formatted markdown transcript for a room
func ExportRoom(room *chat.Room) string {
	var sb strings.Builder

	// Title header
	sb.WriteString("# ")
	sb.WriteString(room.Title)
	sb.WriteString("\n\n")

	// Metadata section
	sb.WriteString("---\n\n")
	sb.WriteString(fmt.Sprintf("**Room ID:** `%s`\n\n", room.ID))
	sb.WriteString(fmt.Sprintf("**Created:** %s\n\n", room.CreatedAt.Format("2006-01-02 15:04:05")))

	// Participants
	if len(room.Participants) > 0 {
		names := make([]string, 0, len(room.Participants))
		for _, p := range room.Participants {
			if p.Kind == chat.KindAgent && p.Agent != nil && p.Agent.Role != "" {
				names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.Agent.Role))
			} else {
				names = append(names, p.Name)
			}
		}
		sb.WriteString("**Participants:** ")
		sb.WriteString(strings.Join(names, ", "))
		sb.WriteString("\n\n")
	}

	sb.WriteString("---\n\n")

	// Messages section
	sb.WriteString("## Transcript\n\n")

	for i, msg := range room.Messages {
		// Timestamp and speaker header
		ts := msg.CreatedAt.Format("15:04:05")
		sb.WriteString(fmt.Sprintf("### [%s] %s\n\n", ts, speakerName(room, msg)))

		content := strings.TrimSpace(msg.Content)
		if msg.Status == chat.StatusError {
			content = fmt.Sprintf("_Turn failed: %s_", msg.Error)
		}
		if containsCodeBlock(content) {
			// Content already has code blocks, render as-is
			sb.WriteString(content)
			sb.WriteString("\n")
		} else {
			// Wrap in blockquote for visual distinction
			for _, line := range strings.Split(content, "\n") {
				sb.WriteString("> ")
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")

		// Horizontal rule between messages (except after last)
		if i < len(room.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	// Pending follow-up suggestions, if any
	if len(room.Suggestions) > 0 {
		sb.WriteString("\n## Pending Follow-ups\n\n")
		for _, sg := range room.Suggestions {
			sb.WriteString(fmt.Sprintf("- %s\n", sg.Prompt))
		}
	}

	// Footer
	sb.WriteString("\n---\n\n")
	sb.WriteString(fmt.Sprintf("*Exported from Parley on %s*\n", time.Now().Format("2006-01-02 15:04:05")))

	return sb.String()
}

// WriteRoom exports a room transcript to a markdown file under baseDir
func WriteRoom(room *chat.Room, baseDir string) (string, error) {
	// Filename: YYYY-MM-DD-title.md
	datePart := room.CreatedAt.Format("2006-01-02")
	namePart := sanitizeFilename(room.Title)
	filename := fmt.Sprintf("%s-%s.md", datePart, namePart)

	transcriptDir := filepath.Join(baseDir, "transcripts")
	if err := os.MkdirAll(transcriptDir, 0755); err != nil {
		return "", fmt.Errorf("create transcripts directory: %w", err)
	}

	path := filepath.Join(transcriptDir, filename)
	content := ExportRoom(room)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	return path, nil
}

// speakerName resolves a message's participant to its display name
func speakerName(room *chat.Room, msg *chat.Message) string {
	if p := room.Participant(msg.ParticipantID); p != nil {
		return p.Name
	}
	return "Unknown"
}

// sanitizeFilename removes/replaces characters unsuitable for filenames
func sanitizeFilename(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "-")

	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '-' || r == '_':
			sb.WriteRune(r)
		}
	}

	result := sb.String()

	// Collapse multiple hyphens
	for strings.Contains(result, "--") {
		result = strings.ReplaceAll(result, "--", "-")
	}
	result = strings.Trim(result, "-")

	if result == "" {
		result = "room"
	}
	if len(result) > 50 {
		result = result[:50]
	}
	return result
}

// containsCodeBlock checks if content already has markdown code blocks
func containsCodeBlock(content string) bool {
	return strings.Contains(content, "```")
}
