package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/lessonforge/lessonforge/internal/storage"
)

// Config owns the credential, model selection, and generation config, and
// persists the latter two through the storage port so tests can substitute
// an in-memory backend.
type Config struct {
	apiKey  string
	dataDir string
	debug   bool
	store   storage.KV
}

func New(apiKey, dataDir string, debug bool, store storage.KV) *Config {
	return &Config{
		apiKey:  apiKey,
		dataDir: dataDir,
		debug:   debug,
		store:   store,
	}
}

// ResolveAPIKey reads the provider credential from the environment,
// preferring the app-specific variable.
func ResolveAPIKey() string {
	for _, name := range []string{"LESSONFORGE_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// LoadDotEnv loads KEY=VALUE pairs from a .env file in dir into the process
// environment. Existing variables are not overridden; a missing file is fine.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if fi, err := os.Stat(path); err != nil || fi.IsDir() {
		return nil
	}
	return godotenv.Load(path)
}

func (c *Config) APIKey() string     { return c.apiKey }
func (c *Config) DataDir() string    { return c.dataDir }
func (c *Config) Debug() bool        { return c.debug }
func (c *Config) Store() storage.KV  { return c.store }
func (c *Config) IsConfigured() bool { return c.apiKey != "" }

// Model returns the persisted model selection, falling back to the default
// when nothing is stored or the stored value is not in the allow-list.
func (c *Config) Model(ctx context.Context) Model {
	raw, err := c.store.Get(ctx, storage.KeyModel)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("failed to read model selection, using default", "error", err)
		}
		return MustModel(DefaultModelID)
	}
	id := string(raw)
	if m, ok := ModelByID(id); ok {
		return m
	}
	slog.Warn("stored model not in allow-list, using default", "model", id)
	return MustModel(DefaultModelID)
}

func (c *Config) SetModel(ctx context.Context, id string) error {
	if _, ok := ModelByID(id); !ok {
		return fmt.Errorf("model %q is not supported", id)
	}
	return c.store.Set(ctx, storage.KeyModel, []byte(id))
}

// GenerationConfig returns the persisted process-wide generation overrides.
// Absence or corruption degrades to the empty (all-defaults) config.
func (c *Config) GenerationConfig(ctx context.Context) GenerationConfig {
	raw, err := c.store.Get(ctx, storage.KeyGenerationConfig)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("failed to read generation config, using defaults", "error", err)
		}
		return GenerationConfig{}
	}
	var gc GenerationConfig
	if err := json.Unmarshal(raw, &gc); err != nil {
		slog.Warn("corrupt generation config, using defaults", "error", err)
		return GenerationConfig{}
	}
	return gc.Clamped()
}

func (c *Config) SetGenerationConfig(ctx context.Context, gc GenerationConfig) error {
	raw, err := json.Marshal(gc.Clamped())
	if err != nil {
		return err
	}
	return c.store.Set(ctx, storage.KeyGenerationConfig, raw)
}
