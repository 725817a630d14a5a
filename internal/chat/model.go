// Package chat keeps conversations with the reviewer model and their
// persisted history.
package chat

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tildaslashalef/critiq/internal/ulid"
)

// ErrSessionNotFound is returned when a session id is unknown
var ErrSessionNotFound = errors.New("chat session not found")

// Role of a message author
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

const maxTitleRunes = 60

// Message is one chat turn
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // epoch ms
}

// Session is an ordered conversation. Timestamp is the time of the last
// change and decides eviction order.
type Session struct {
	ID        string    `json:"id"`
	Timestamp int64     `json:"timestamp"` // epoch ms
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
}

// NewSession creates an empty session stamped at now
func NewSession(title string, now time.Time) *Session {
	return &Session{
		ID:        ulid.NewWithTime(now, ulid.PrefixSession).String(),
		Timestamp: now.UnixMilli(),
		Title:     strings.TrimSpace(title),
		Messages:  []Message{},
	}
}

// Append adds a message and bumps the session timestamp
func (s *Session) Append(role Role, content string, now time.Time) Message {
	m := Message{
		ID:        ulid.NewWithTime(now, ulid.PrefixMessage).String(),
		Role:      role,
		Content:   content,
		Timestamp: now.UnixMilli(),
	}
	s.Messages = append(s.Messages, m)
	s.Timestamp = m.Timestamp
	if s.Title == "" && role == RoleUser {
		s.Title = TitleFrom(content)
	}
	return m
}

// Updated returns Timestamp as a time
func (s *Session) Updated() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// TitleFrom derives a one-line title from the first user message
func TitleFrom(text string) string {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if utf8.RuneCountInString(line) <= maxTitleRunes {
		return line
	}
	runes := []rune(line)
	return strings.TrimSpace(string(runes[:maxTitleRunes-3])) + "..."
}
