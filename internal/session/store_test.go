package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lessonforge/lessonforge/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st := NewStore(storage.NewMemory())
	require.NoError(t, st.Load(context.Background()))
	return st
}

func TestStoreLoadMissingKeyIsEmpty(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	require.Equal(t, 0, st.Len())
	require.Empty(t, st.List())
}

func TestStoreSaveUpsertsToFront(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)

	a := withTurns("first question")
	b := withTurns("second question")
	require.NoError(t, st.Save(ctx, a))
	require.NoError(t, st.Save(ctx, b))

	list := st.List()
	require.Equal(t, []string{b.ID, a.ID}, []string{list[0].ID, list[1].ID})

	// Re-saving a moves it back to the front without duplicating it.
	require.NoError(t, st.Save(ctx, a))
	require.Equal(t, 2, st.Len())
	require.Equal(t, a.ID, st.List()[0].ID)
}

func TestStoreSaveDerivesTitle(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	s := withTurns("Explain recursion", "A function calling itself.")
	require.NoError(t, st.Save(context.Background(), s))
	require.Equal(t, "Explain recursion", s.Title)
	require.False(t, s.Dirty())
}

func TestStoreEvictsOldestPastCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)

	var ids []string
	for i := 0; i < MaxSessions+1; i++ {
		s := withTurns(fmt.Sprintf("question %d", i))
		ids = append(ids, s.ID)
		require.NoError(t, st.Save(ctx, s))
	}

	require.Equal(t, MaxSessions, st.Len())
	_, ok := st.Get(ids[0])
	require.False(t, ok, "oldest session should be evicted")
	_, ok = st.Get(ids[1])
	require.True(t, ok)
	require.Equal(t, ids[len(ids)-1], st.List()[0].ID)
}

func TestStoreRoundTripsThroughKV(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := storage.NewMemory()

	st := NewStore(kv)
	require.NoError(t, st.Load(ctx))
	s := withTurns("persisted question", "persisted answer")
	require.NoError(t, st.Save(ctx, s))

	reloaded := NewStore(kv)
	require.NoError(t, reloaded.Load(ctx))
	got, ok := reloaded.Get(s.ID)
	require.True(t, ok)
	require.Equal(t, s.Title, got.Title)
	require.Len(t, got.Messages, 2)
	require.Len(t, got.ProviderHistory, 2)
	require.Equal(t, "persisted question", got.Messages[0].Text())
}

func TestStoreDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	s := withTurns("doomed")
	require.NoError(t, st.Save(ctx, s))
	st.OpenHandle(s.ID, s.Title)

	require.NoError(t, st.Delete(ctx, s.ID))
	require.Equal(t, 0, st.Len())
	require.Empty(t, st.Handles())
	require.ErrorIs(t, st.Delete(ctx, s.ID), ErrSessionNotFound)
}

func TestStoreHandles(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	st.OpenHandle("s1", "one")
	st.OpenHandle("s2", "two")
	st.OpenHandle("s1", "one renamed")

	handles := st.Handles()
	require.Len(t, handles, 2)
	require.Equal(t, "one renamed", handles[0].Title)

	st.CloseHandle("s1")
	require.Len(t, st.Handles(), 1)
	require.Equal(t, "s2", st.Handles()[0].ID)
}

func TestStoreSwitchSavesDirtyOutgoing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)

	target := withTurns("target question")
	require.NoError(t, st.Save(ctx, target))

	outgoing := withTurns("unsaved question", "unsaved answer")
	got, err := st.Switch(ctx, outgoing, target.ID)
	require.NoError(t, err)
	require.Equal(t, target.ID, got.ID)
	require.Equal(t, target.ID, st.CurrentID())

	// The dirty outgoing session was persisted on the way out.
	saved, ok := st.Get(outgoing.ID)
	require.True(t, ok)
	require.Equal(t, "unsaved question", saved.Title)
}

func TestStoreSwitchSkipsCleanOrEmptyOutgoing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	target := withTurns("target")
	require.NoError(t, st.Save(ctx, target))

	empty := New()
	_, err := st.Switch(ctx, empty, target.ID)
	require.NoError(t, err)
	_, ok := st.Get(empty.ID)
	require.False(t, ok, "empty outgoing session must not be persisted")
}

func TestStoreSwitchToOpenUnpersistedTab(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	st.OpenHandle("fresh-tab", "New session")

	got, err := st.Switch(ctx, nil, "fresh-tab")
	require.NoError(t, err)
	require.Equal(t, "fresh-tab", got.ID)
	require.Empty(t, got.Messages)
}

func TestStoreSwitchUnknownTarget(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	_, err := st.Switch(context.Background(), nil, "nope")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStoreBeginEndTurn(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	require.NoError(t, st.BeginTurn("s1"))
	require.ErrorIs(t, st.BeginTurn("s1"), ErrTurnInFlight)
	require.NoError(t, st.BeginTurn("s2"), "other sessions are unaffected")
	st.EndTurn("s1")
	require.NoError(t, st.BeginTurn("s1"))
}
