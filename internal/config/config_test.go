package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lessonforge/lessonforge/internal/storage"
)

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	return New("key", t.TempDir(), false, storage.NewMemory())
}

func TestModelDefaultsWhenUnset(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t)
	require.Equal(t, DefaultModelID, cfg.Model(context.Background()).ID)
}

func TestSetModelPersists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := newTestConfig(t)
	require.NoError(t, cfg.SetModel(ctx, "gemini-2.5-pro"))
	require.Equal(t, "gemini-2.5-pro", cfg.Model(ctx).ID)
}

func TestSetModelRejectsUnknown(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t)
	require.Error(t, cfg.SetModel(context.Background(), "gpt-17"))
}

func TestModelFallsBackOnUnknownStoredValue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Set(ctx, storage.KeyModel, []byte("retired-model")))

	cfg := New("key", t.TempDir(), false, store)
	require.Equal(t, DefaultModelID, cfg.Model(ctx).ID)
}

func TestGenerationConfigDefaultsWhenUnset(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t)
	require.True(t, cfg.GenerationConfig(context.Background()).IsZero())
}

func TestGenerationConfigDegradesOnCorruption(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Set(ctx, storage.KeyGenerationConfig, []byte("{not json")))

	cfg := New("key", t.TempDir(), false, store)
	require.True(t, cfg.GenerationConfig(ctx).IsZero())
}

func TestGenerationConfigRoundTripClamps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := newTestConfig(t)

	temp := -1.0
	topP := 3.0
	topK := int64(0)
	maxTok := int64(1 << 30)
	require.NoError(t, cfg.SetGenerationConfig(ctx, GenerationConfig{
		Temperature:           &temp,
		TopP:                  &topP,
		TopK:                  &topK,
		MaxOutputTokens:       &maxTok,
		EnableSearchGrounding: true,
	}))

	got := cfg.GenerationConfig(ctx)
	require.Equal(t, 0.0, *got.Temperature)
	require.Equal(t, 1.0, *got.TopP)
	require.EqualValues(t, 1, *got.TopK)
	require.EqualValues(t, 65_536, *got.MaxOutputTokens)
	require.True(t, got.EnableSearchGrounding)
}

func TestClampedLeavesValidValues(t *testing.T) {
	t.Parallel()

	temp := 0.7
	gc := GenerationConfig{Temperature: &temp}.Clamped()
	require.Equal(t, 0.7, *gc.Temperature)
	require.Nil(t, gc.TopP)
	require.Nil(t, gc.TopK)
}

func TestModelAllowList(t *testing.T) {
	t.Parallel()

	m, ok := ModelByID(DefaultModelID)
	require.True(t, ok)
	require.Positive(t, m.ContextWindow)
	require.True(t, m.CanReason)

	img, ok := ModelByID(ImageModelID)
	require.True(t, ok)
	require.True(t, img.CanImageSize)

	_, ok = ModelByID("not-a-model")
	require.False(t, ok)
}

func TestResolveAPIKeyPrecedence(t *testing.T) {
	t.Setenv("LESSONFORGE_API_KEY", "app-key")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("GOOGLE_API_KEY", "google-key")
	require.Equal(t, "app-key", ResolveAPIKey())

	t.Setenv("LESSONFORGE_API_KEY", "")
	require.Equal(t, "gemini-key", ResolveAPIKey())

	t.Setenv("GEMINI_API_KEY", "")
	require.Equal(t, "google-key", ResolveAPIKey())
}
