package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/shidinn/pkg/transcriber"
)

// ErrTranscriberNotRegistered is returned by [Registry.CreateTranscriber] when
// no factory has been registered for the requested kind.
var ErrTranscriberNotRegistered = errors.New("config: transcriber not registered")

// TranscriberFactory builds a transcriber from its config block. Factories
// that open connections honour ctx for the dial only.
type TranscriberFactory func(ctx context.Context, cfg TranscriberConfig) (transcriber.Transcriber, error)

// Registry maps transcriber kinds to their constructor functions. It is safe
// for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	transcribers map[TranscriberKind]TranscriberFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		transcribers: make(map[TranscriberKind]TranscriberFactory),
	}
}

// RegisterTranscriber registers a transcriber factory under kind.
// Subsequent calls with the same kind overwrite the previous registration.
func (r *Registry) RegisterTranscriber(kind TranscriberKind, factory TranscriberFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcribers[kind] = factory
}

// CreateTranscriber instantiates the transcriber registered under cfg.Kind.
// Returns [ErrTranscriberNotRegistered] if no factory has been registered for
// that kind.
func (r *Registry) CreateTranscriber(ctx context.Context, cfg TranscriberConfig) (transcriber.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.transcribers[cfg.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTranscriberNotRegistered, cfg.Kind)
	}
	t, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: create %s transcriber: %w", cfg.Kind, err)
	}
	return t, nil
}
