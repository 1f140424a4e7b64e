// Package storage provides the key-value persistence port used for sessions,
// model selection, and generation config. Everything above this package only
// sees the port, so the cap/eviction policy lives with the callers and the
// backing medium is swappable.
package storage

import (
	"context"
	"errors"

	"github.com/lessonforge/lessonforge/internal/csync"
)

// Well-known keys. Absence of any of them must degrade to defaults upstream,
// never error out of the caller.
const (
	KeySessions         = "sessions"
	KeyModel            = "model"
	KeyGenerationConfig = "generation_config"
)

var ErrNotFound = errors.New("storage: key not found")

type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process KV used by tests and as the default when no data
// directory is configured.
type Memory struct {
	m *csync.Map[string, []byte]
}

func NewMemory() *Memory {
	return &Memory{m: csync.NewMap[string, []byte]()}
}

func (s *Memory) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.m.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *Memory) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	s.m.Set(key, stored)
	return nil
}

func (s *Memory) Delete(_ context.Context, key string) error {
	s.m.Del(key)
	return nil
}
