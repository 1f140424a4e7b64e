package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/lessonforge/lessonforge/internal/pubsub"
	"github.com/lessonforge/lessonforge/internal/storage"
)

// MaxSessions caps the persisted list; the oldest entry is evicted once the
// cap is exceeded.
const MaxSessions = 50

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTurnInFlight    = errors.New("a turn is already in flight for this session")
)

// Handle is a currently open tab: a view onto a session that may or may not
// have a persisted record yet.
type Handle struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Store holds the bounded most-recent-first list of persisted sessions plus
// the open tab handles. Saves go through the storage port as a single keyed
// blob; last writer wins, which is acceptable because saves rewrite whole
// session records keyed by id and never corrupt other entries.
type Store struct {
	*pubsub.Broker[*Session]

	kv storage.KV

	mu         sync.Mutex
	persisted  []*Session
	open       []Handle
	currentID  string
	processing map[string]bool
	loaded     bool
}

func NewStore(kv storage.KV) *Store {
	return &Store{
		Broker:     pubsub.NewBroker[*Session](),
		kv:         kv,
		processing: make(map[string]bool),
	}
}

// Load reads the persisted session blob. A missing key is an empty store,
// never an error.
func (st *Store) Load(ctx context.Context) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.loaded {
		return nil
	}

	raw, err := st.kv.Get(ctx, storage.KeySessions)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			st.loaded = true
			return nil
		}
		return fmt.Errorf("failed to load sessions: %w", err)
	}

	var sessions []*Session
	if err := json.Unmarshal(raw, &sessions); err != nil {
		return fmt.Errorf("failed to decode sessions: %w", err)
	}
	if len(sessions) > MaxSessions {
		sessions = sessions[:MaxSessions]
	}
	st.persisted = sessions
	st.loaded = true
	return nil
}

// Save upserts the session by id: an existing record is replaced in place
// after moving to the front, a new one is inserted at the front, and the
// tail is evicted past the cap. The title is recomputed on every save.
func (st *Store) Save(ctx context.Context, s *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s.Title = s.DeriveTitle()

	evt := pubsub.UpdatedEvent
	idx := st.indexOf(s.ID)
	if idx >= 0 {
		st.persisted = append(st.persisted[:idx], st.persisted[idx+1:]...)
	} else {
		evt = pubsub.CreatedEvent
	}
	st.persisted = append([]*Session{s}, st.persisted...)
	if len(st.persisted) > MaxSessions {
		st.persisted = st.persisted[:MaxSessions]
	}

	if err := st.flushLocked(ctx); err != nil {
		return err
	}
	s.MarkClean()
	st.Publish(evt, s)
	return nil
}

func (st *Store) Delete(ctx context.Context, id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	idx := st.indexOf(id)
	if idx < 0 {
		return ErrSessionNotFound
	}
	s := st.persisted[idx]
	st.persisted = append(st.persisted[:idx], st.persisted[idx+1:]...)
	st.closeHandleLocked(id)

	if err := st.flushLocked(ctx); err != nil {
		return err
	}
	st.Publish(pubsub.DeletedEvent, s)
	return nil
}

func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if idx := st.indexOf(id); idx >= 0 {
		return st.persisted[idx], true
	}
	return nil, false
}

// List returns the persisted sessions most-recent-first.
func (st *Store) List() []*Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]*Session, len(st.persisted))
	copy(out, st.persisted)
	return out
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.persisted)
}

// OpenHandle registers a tab for the session. A session can be open without
// being persisted (nothing sent yet) and persisted without being open.
func (st *Store) OpenHandle(id, title string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i, h := range st.open {
		if h.ID == id {
			st.open[i].Title = title
			return
		}
	}
	st.open = append(st.open, Handle{ID: id, Title: title})
}

func (st *Store) CloseHandle(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.closeHandleLocked(id)
}

func (st *Store) closeHandleLocked(id string) {
	for i, h := range st.open {
		if h.ID == id {
			st.open = append(st.open[:i], st.open[i+1:]...)
			return
		}
	}
}

func (st *Store) Handles() []Handle {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]Handle, len(st.open))
	copy(out, st.open)
	return out
}

func (st *Store) CurrentID() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.currentID
}

// Switch makes target the active session, persisting the outgoing session
// first when it has messages and unsaved changes. When the target has no
// persisted record but is an open tab (a fresh, empty session) it is
// activated directly.
func (st *Store) Switch(ctx context.Context, outgoing *Session, targetID string) (*Session, error) {
	if outgoing != nil && len(outgoing.Messages) > 0 && outgoing.Dirty() {
		if err := st.Save(ctx, outgoing); err != nil {
			return nil, err
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if idx := st.indexOf(targetID); idx >= 0 {
		st.currentID = targetID
		return st.persisted[idx], nil
	}
	for _, h := range st.open {
		if h.ID == targetID {
			st.currentID = targetID
			s := New()
			s.ID = targetID
			return s, nil
		}
	}
	return nil, ErrSessionNotFound
}

// BeginTurn sets the per-session processing flag; a second concurrent turn
// on the same session is rejected. Callers must defer EndTurn so an error
// path can never leave the session locked.
func (st *Store) BeginTurn(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.processing[id] {
		return ErrTurnInFlight
	}
	st.processing[id] = true
	return nil
}

func (st *Store) EndTurn(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.processing, id)
}

func (st *Store) indexOf(id string) int {
	for i, s := range st.persisted {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (st *Store) flushLocked(ctx context.Context) error {
	raw, err := json.Marshal(st.persisted)
	if err != nil {
		return fmt.Errorf("failed to encode sessions: %w", err)
	}
	if err := st.kv.Set(ctx, storage.KeySessions, raw); err != nil {
		return fmt.Errorf("failed to persist sessions: %w", err)
	}
	return nil
}
