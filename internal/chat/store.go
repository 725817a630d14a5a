package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/tildaslashalef/critiq/internal/loggy"
	"github.com/tildaslashalef/critiq/internal/storage"
)

const (
	// HistoryKey is the storage key of the chat history document
	HistoryKey = "chat-history.json"
	// DefaultMaxSessions is how many sessions are retained by default
	DefaultMaxSessions = 100
)

// HistoryStore persists chat sessions as one JSON array, evicting the
// oldest sessions beyond a cap. Like the review store it logs I/O failures
// and reports them as false or empty values.
type HistoryStore struct {
	mu          sync.Mutex
	backend     storage.Backend
	maxSessions int
	logger      *loggy.Logger
}

// NewHistoryStore creates a history store on backend; maxSessions <= 0 uses the default
func NewHistoryStore(backend storage.Backend, maxSessions int, logger *loggy.Logger) *HistoryStore {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if logger == nil {
		logger = loggy.GetGlobalLogger()
	}
	return &HistoryStore{backend: backend, maxSessions: maxSessions, logger: logger}
}

func (h *HistoryStore) load(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if _, err := storage.LoadJSON(ctx, h.backend, HistoryKey, &sessions); err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []Session{}
	}
	return sessions, nil
}

// SaveSession replaces the session with the same id, or adds it, then
// evicts the oldest sessions beyond the cap.
func (h *HistoryStore) SaveSession(ctx context.Context, s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, err := h.load(ctx)
	if err != nil {
		h.logger.Warn("failed to load chat history before save", "session_id", s.ID, "error", err)
		return false
	}

	replaced := false
	for i := range sessions {
		if sessions[i].ID == s.ID {
			sessions[i] = *s
			replaced = true
			break
		}
	}
	if !replaced {
		sessions = append(sessions, *s)
	}

	if over := len(sessions) - h.maxSessions; over > 0 {
		sort.SliceStable(sessions, func(i, j int) bool {
			return sessions[i].Timestamp < sessions[j].Timestamp
		})
		h.logger.Debug("evicting chat sessions", "count", over)
		sessions = sessions[over:]
	}

	if err := storage.SaveJSON(ctx, h.backend, HistoryKey, sessions); err != nil {
		h.logger.Warn("failed to save chat history", "session_id", s.ID, "error", err)
		return false
	}
	return true
}

// LoadAll returns every session, most recently updated first
func (h *HistoryStore) LoadAll(ctx context.Context) []Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, err := h.load(ctx)
	if err != nil {
		h.logger.Warn("failed to load chat history", "error", err)
		return []Session{}
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Timestamp > sessions[j].Timestamp
	})
	return sessions
}

// LoadByID returns the session with id, or nil
func (h *HistoryStore) LoadByID(ctx context.Context, id string) *Session {
	for _, s := range h.LoadAll(ctx) {
		if s.ID == id {
			return &s
		}
	}
	return nil
}

// Delete removes the session with id. It reports false when there was none.
func (h *HistoryStore) Delete(ctx context.Context, id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, err := h.load(ctx)
	if err != nil {
		h.logger.Warn("failed to load chat history before delete", "session_id", id, "error", err)
		return false
	}
	kept := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(sessions) {
		return false
	}
	if err := storage.SaveJSON(ctx, h.backend, HistoryKey, kept); err != nil {
		h.logger.Warn("failed to delete chat session", "session_id", id, "error", err)
		return false
	}
	return true
}

// ClearAll removes the whole history
func (h *HistoryStore) ClearAll(ctx context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.backend.Delete(ctx, HistoryKey); err != nil {
		h.logger.Warn("failed to clear chat history", "error", err)
		return false
	}
	return true
}
