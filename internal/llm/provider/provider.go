package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/lessonforge/lessonforge/internal/config"
	"github.com/lessonforge/lessonforge/internal/message"
)

const maxRetries = 3

// ErrNoCredential is returned before any network call when no API key is
// configured. It disables the send path entirely; there is nothing to retry.
var ErrNoCredential = errors.New("no API key configured")

type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

type Response struct {
	Content string
	Usage   TokenUsage
}

// SendOptions describes one provider turn. History is the already-mirrored
// provider wire history; the new user turn is built from UserText and
// Attachments (text part first, then documents, then images).
type SendOptions struct {
	UserText          string
	Attachments       []message.Attachment
	History           []Content
	SystemInstruction string
}

type Provider interface {
	Send(ctx context.Context, opts SendOptions) (*Response, error)
	CountTokens(ctx context.Context, history []Content, systemInstruction string) (int64, error)
	Model(ctx context.Context) config.Model
}

// overloadMarkers classify transient capacity exhaustion from the error
// message alone, for transports that lose the HTTP status.
var overloadMarkers = []string{
	"overloaded",
	"resource exhausted",
	"quota exceeded",
	"rate limit",
}

// IsOverloaded reports whether the error represents transient capacity
// exhaustion and is therefore eligible for retry. Everything else fails the
// attempt permanently.
func IsOverloaded(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Code == 429 || se.Code == 503 {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range overloadMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
