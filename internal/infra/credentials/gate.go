package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNoCredential is returned by APIKey when no key has been selected.
var ErrNoCredential = errors.New("no gemini api key selected")

// KeyStore is the persistence used by Gate. *Store satisfies it.
type KeyStore interface {
	GeminiAPIKey(ctx context.Context) (string, error)
	SetGeminiAPIKey(ctx context.Context, key string) error
	DeleteGeminiAPIKey(ctx context.Context) error
}

// Gate holds the selected API key. The key seeded from the environment takes
// precedence; otherwise it is loaded from the optional store on first use.
type Gate struct {
	store  KeyStore
	logger zerolog.Logger

	mu       sync.RWMutex
	key      string
	loaded   bool
	rejected string
}

// NewGate builds a Gate. store may be nil when no database is configured.
func NewGate(initialKey string, store KeyStore, logger zerolog.Logger) *Gate {
	g := &Gate{
		store:  store,
		logger: logger.With().Str("component", "credentials").Logger(),
		key:    strings.TrimSpace(initialKey),
	}
	g.loaded = g.key != "" || store == nil
	return g
}

// HasSelected reports whether a usable key is available.
func (g *Gate) HasSelected(ctx context.Context) (bool, error) {
	key, err := g.current(ctx)
	if err != nil {
		return false, err
	}
	return key != "", nil
}

// Select makes key the active credential, persisting it when a store exists.
func (g *Gate) Select(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key is required")
	}
	if g.store != nil {
		if err := g.store.SetGeminiAPIKey(ctx, key); err != nil {
			return fmt.Errorf("persist api key: %w", err)
		}
	}

	g.mu.Lock()
	g.key = key
	g.loaded = true
	g.rejected = ""
	g.mu.Unlock()

	g.logger.Info().Bool("persisted", g.store != nil).Msg("api key selected")
	return nil
}

// Clear forgets the active key and removes it from the store.
func (g *Gate) Clear(ctx context.Context) error {
	if g.store != nil {
		if err := g.store.DeleteGeminiAPIKey(ctx); err != nil {
			return fmt.Errorf("delete api key: %w", err)
		}
	}

	g.mu.Lock()
	g.key = ""
	g.loaded = true
	g.rejected = ""
	g.mu.Unlock()

	g.logger.Info().Msg("api key cleared")
	return nil
}

// Invalidate marks the active key as rejected by the provider. HasSelected
// reports false and APIKey fails until another key is selected. The stored
// copy is left alone.
func (g *Gate) Invalidate() {
	g.mu.Lock()
	if g.key != "" {
		g.rejected = g.key
	}
	g.mu.Unlock()
	g.logger.Warn().Msg("api key rejected by provider")
}

// APIKey returns the active key. It satisfies the generation client's key
// source.
func (g *Gate) APIKey(ctx context.Context) (string, error) {
	key, err := g.current(ctx)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", ErrNoCredential
	}
	return key, nil
}

func (g *Gate) current(ctx context.Context) (string, error) {
	g.mu.RLock()
	key, loaded, rejected := g.key, g.loaded, g.rejected
	g.mu.RUnlock()
	if loaded {
		if key == rejected {
			return "", nil
		}
		return key, nil
	}

	stored, err := g.store.GeminiAPIKey(ctx)
	if err != nil {
		return "", fmt.Errorf("load api key: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.loaded {
		g.key = stored
		g.loaded = true
	}
	return g.key, nil
}
