package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/tildaslashalef/critiq/internal/config"
	"github.com/tildaslashalef/critiq/internal/llm"
	"github.com/tildaslashalef/critiq/internal/loggy"
)

// DefaultSystemPrompt is used when the config has none
const DefaultSystemPrompt = "You are a helpful senior software engineer. Answer questions about code clearly and concisely, with short code examples where they help."

// Service sends chat turns to the model and keeps the history
type Service struct {
	store  *HistoryStore
	client llm.Client
	config config.ChatConfig
	logger *loggy.Logger
	now    func() time.Time
}

// NewService creates a chat service
func NewService(store *HistoryStore, client llm.Client, cfg config.ChatConfig, logger *loggy.Logger) *Service {
	if logger == nil {
		logger = loggy.GetGlobalLogger()
	}
	return &Service{store: store, client: client, config: cfg, logger: logger, now: time.Now}
}

// History returns the underlying store
func (s *Service) History() *HistoryStore {
	return s.store
}

// NewSession creates and stores an empty session
func (s *Service) NewSession(ctx context.Context, title string) (*Session, error) {
	session := NewSession(title, s.now())
	if !s.store.SaveSession(ctx, session) {
		return nil, fmt.Errorf("saving new chat session")
	}
	return session, nil
}

// Send appends text as a user message, streams the reply through onChunk
// and appends it as an assistant message. The session is saved even when
// the model call fails, so the question is not lost; a partial reply is
// kept only when the caller cancelled.
func (s *Service) Send(ctx context.Context, sessionID, text string, onChunk func(string) error) (*Message, error) {
	session := s.store.LoadByID(ctx, sessionID)
	if session == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	session.Append(RoleUser, text, s.now())
	reply, err := llm.Stream(ctx, s.client, llm.ChatRequest{Messages: s.requestMessages(session)}, onChunk)
	if err != nil {
		if ctx.Err() != nil && reply != "" {
			session.Append(RoleAssistant, reply, s.now())
		}
		if !s.store.SaveSession(context.WithoutCancel(ctx), session) {
			s.logger.Warn("chat session could not be saved", "session_id", session.ID)
		}
		return nil, fmt.Errorf("generating reply: %w", err)
	}

	msg := session.Append(RoleAssistant, reply, s.now())
	if !s.store.SaveSession(ctx, session) {
		s.logger.Warn("chat session could not be saved", "session_id", session.ID)
	}
	return &msg, nil
}

// requestMessages builds the request messages: the system prompt followed by the
// most recent HistoryWindow messages of the session.
func (s *Service) requestMessages(session *Session) []llm.Message {
	system := s.config.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	msgs := session.Messages
	if w := s.config.HistoryWindow; w > 0 && len(msgs) > w {
		msgs = msgs[len(msgs)-w:]
	}

	out := make([]llm.Message, 0, len(msgs)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, m := range msgs {
		role := llm.RoleUser
		switch m.Role {
		case RoleAssistant:
			role = llm.RoleAssistant
		case RoleSystem:
			role = llm.RoleSystem
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}
