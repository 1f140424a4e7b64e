// Package tokens tracks each session's authoritative token footprint.
// Session totals always come from a provider round-trip; the local estimate
// exists only to bridge the gap for a just-produced reply until the
// authoritative count lands.
package tokens

import (
	"context"
	"sync"

	"github.com/lessonforge/lessonforge/internal/csync"
	"github.com/lessonforge/lessonforge/internal/llm/provider"
)

type Tracker struct {
	provider provider.Provider

	mu        sync.Mutex
	currentID string
	cache     *csync.Map[string, int64]
}

func NewTracker(p provider.Provider) *Tracker {
	return &Tracker{
		provider: p,
		cache:    csync.NewMap[string, int64](),
	}
}

// Count returns the authoritative token total for the session history,
// issuing a provider round-trip and caching the result. A cached value is
// returned only while the session's history is unchanged (callers invalidate
// on every append/truncate).
func (t *Tracker) Count(ctx context.Context, sessionID string, history []provider.Content, systemInstruction string) (int64, error) {
	if v, ok := t.cache.Get(sessionID); ok {
		return v, nil
	}
	total, err := t.provider.CountTokens(ctx, history, systemInstruction)
	if err != nil {
		return 0, err
	}
	t.cache.Set(sessionID, total)
	return total, nil
}

func (t *Tracker) Cached(sessionID string) (int64, bool) {
	return t.cache.Get(sessionID)
}

// Invalidate drops the cached total; callers do this whenever the session's
// provider history changes.
func (t *Tracker) Invalidate(sessionID string) {
	t.cache.Del(sessionID)
}

// SetCurrent marks the active session. Switching sessions forces a
// recompute of the newly active one.
func (t *Tracker) SetCurrent(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.currentID == sessionID {
		return
	}
	t.currentID = sessionID
	t.cache.Del(sessionID)
}

func (t *Tracker) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentID
}

// EstimateText is the coarse local approximation (~4 characters per token)
// used for a just-produced reply. Never authoritative.
func EstimateText(s string) int64 {
	if s == "" {
		return 0
	}
	return int64((len(s) + 3) / 4)
}

// UsagePercent maps a raw total onto the displayed context usage,
// clamped to [0, 100].
func UsagePercent(total, contextLimit int64) float64 {
	if contextLimit <= 0 {
		return 0
	}
	pct := float64(total) / float64(contextLimit) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
