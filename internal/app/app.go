package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lessonforge/lessonforge/internal/config"
	"github.com/lessonforge/lessonforge/internal/llm/provider"
	"github.com/lessonforge/lessonforge/internal/llm/tokens"
	"github.com/lessonforge/lessonforge/internal/message"
	"github.com/lessonforge/lessonforge/internal/session"
)

type App struct {
	Provider provider.Provider
	Sessions *session.Store
	Tracker  *tokens.Tracker

	cfg *config.Config
}

func New(ctx context.Context, cfg *config.Config, p provider.Provider) (*App, error) {
	store := session.NewStore(cfg.Store())
	if err := store.Load(ctx); err != nil {
		return nil, err
	}
	return &App{
		Provider: p,
		Sessions: store,
		Tracker:  tokens.NewTracker(p),
		cfg:      cfg,
	}, nil
}

func (a *App) Config() *config.Config { return a.cfg }

// NewSession opens a fresh empty session tab and makes it current.
func (a *App) NewSession(ctx context.Context) (*session.Session, error) {
	s := session.New()
	a.Sessions.OpenHandle(s.ID, s.DeriveTitle())
	active, err := a.Sessions.Switch(ctx, nil, s.ID)
	if err != nil {
		return nil, err
	}
	a.Tracker.SetCurrent(active.ID)
	return active, nil
}

// SwitchSession persists the outgoing session if needed and activates the
// target.
func (a *App) SwitchSession(ctx context.Context, outgoing *session.Session, targetID string) (*session.Session, error) {
	s, err := a.Sessions.Switch(ctx, outgoing, targetID)
	if err != nil {
		return nil, err
	}
	a.Tracker.SetCurrent(s.ID)
	return s, nil
}

type ChatResult struct {
	Reply message.Message
	Usage provider.TokenUsage

	// EstimatedReplyTokens is the coarse local estimate for the reply,
	// available immediately; the authoritative session total comes from the
	// tracker's next provider round-trip.
	EstimatedReplyTokens int64
}

// SendChat runs one conversation turn: append the user message, send, append
// the model reply, save. The processing flag serializes turns per session
// and is released on every path.
func (a *App) SendChat(ctx context.Context, s *session.Session, text string, attachments []message.Attachment) (*ChatResult, error) {
	if err := a.Sessions.BeginTurn(s.ID); err != nil {
		return nil, err
	}
	defer a.Sessions.EndTurn(s.ID)

	history := make([]provider.Content, len(s.ProviderHistory))
	copy(history, s.ProviderHistory)

	userParts := []message.Part{message.TextPart{Text: text}}
	for _, att := range attachments {
		userParts = append(userParts, message.BinaryPart{MIMEType: att.MimeType, Data: att.Content})
	}
	s.Append(message.New(message.User, userParts...), provider.BuildUserContent(text, attachments))
	a.Tracker.Invalidate(s.ID)

	resp, err := a.Provider.Send(ctx, provider.SendOptions{
		UserText:    text,
		Attachments: attachments,
		History:     history,
	})
	if err != nil {
		// Roll the user append back so the history keeps complete pairs and
		// the conversation stays usable for the next turn.
		s.Messages = s.Messages[:len(s.Messages)-1]
		s.ProviderHistory = s.ProviderHistory[:len(s.ProviderHistory)-1]
		return nil, err
	}

	reply := message.New(message.Model, message.TextPart{Text: resp.Content})
	s.Append(reply, provider.ModelContent(resp.Content))
	a.Tracker.Invalidate(s.ID)

	if err := a.Sessions.Save(ctx, s); err != nil {
		// The turn itself succeeded; losing the save is worth surfacing but
		// not worth discarding the reply.
		slog.Error("failed to save session after turn", "session", s.ID, "error", err)
	}
	a.Sessions.OpenHandle(s.ID, s.Title)

	return &ChatResult{
		Reply:                reply,
		Usage:                resp.Usage,
		EstimatedReplyTokens: tokens.EstimateText(resp.Content),
	}, nil
}

// Rerun discards the model reply at modelIndex and everything after it, then
// resubmits the originating user text as a new turn. When no preceding user
// message exists the call is a no-op and returns a nil result.
func (a *App) Rerun(ctx context.Context, s *session.Session, modelIndex int) (*ChatResult, error) {
	text, ok := s.Rerun(modelIndex)
	if !ok {
		return nil, nil
	}
	a.Tracker.Invalidate(s.ID)
	return a.SendChat(ctx, s, text, nil)
}

// SessionUsage returns the authoritative token total for the session and the
// displayed usage percentage against the active model's context window.
func (a *App) SessionUsage(ctx context.Context, s *session.Session) (int64, float64, error) {
	total, err := a.Tracker.Count(ctx, s.ID, s.ProviderHistory, "")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count tokens: %w", err)
	}
	limit := a.Provider.Model(ctx).ContextWindow
	return total, tokens.UsagePercent(total, limit), nil
}
