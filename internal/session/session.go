package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/lessonforge/lessonforge/internal/llm/provider"
	"github.com/lessonforge/lessonforge/internal/message"
)

const titleMaxRunes = 50

// Session is one persisted, titled conversation thread. Messages is the
// display-oriented history; ProviderHistory mirrors it in the provider wire
// format. The two lists are appended together and stay index-aligned, so
// outside an in-flight turn ProviderHistory always holds complete
// user/model pairs.
type Session struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	Messages        []message.Message  `json:"messages"`
	ProviderHistory []provider.Content `json:"providerHistory"`
	CreatedAt       int64              `json:"timestamp"`

	dirty bool
}

func New() *Session {
	return &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UnixMilli(),
	}
}

// Append adds one message to both histories at the same index.
func (s *Session) Append(msg message.Message, wire provider.Content) {
	s.Messages = append(s.Messages, msg)
	s.ProviderHistory = append(s.ProviderHistory, wire)
	s.dirty = true
}

// Rerun discards the model reply at fromModelIndex together with the user
// message that produced it and everything after, and returns that user
// message's text for resubmission. The resulting history is
// indistinguishable in shape from one where the original reply never
// happened. If no preceding user message exists the call is a no-op.
func (s *Session) Rerun(fromModelIndex int) (string, bool) {
	if fromModelIndex < 0 || fromModelIndex >= len(s.Messages) {
		return "", false
	}
	userIdx := -1
	for i := fromModelIndex; i >= 0; i-- {
		if s.Messages[i].Role == message.User {
			userIdx = i
			break
		}
	}
	if userIdx < 0 {
		return "", false
	}
	text := s.Messages[userIdx].Text()
	s.Messages = s.Messages[:userIdx]
	s.ProviderHistory = s.ProviderHistory[:userIdx]
	s.dirty = true
	return text, true
}

// DeriveTitle recomputes the title from the first user message. It is called
// on every save: rerun truncation cannot remove the very first turn without
// clearing the whole session, so titles never go stale.
func (s *Session) DeriveTitle() string {
	for _, msg := range s.Messages {
		if msg.Role != message.User {
			continue
		}
		title := msg.Text()
		runes := []rune(title)
		if len(runes) > titleMaxRunes {
			title = string(runes[:titleMaxRunes]) + "…"
		}
		return title
	}
	return "New session"
}

func (s *Session) Dirty() bool { return s.dirty }

func (s *Session) MarkClean() { s.dirty = false }

// TurnCount returns the number of complete user/model pairs.
func (s *Session) TurnCount() int {
	return len(s.ProviderHistory) / 2
}
