// Package source keeps the set of channel sources the host knows about.
package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voyagen/plutotv/internal/models"
)

// ErrUnknown is returned by Lookup for an id that was never registered.
var ErrUnknown = errors.New("unknown source")

// ChannelSource is a provider of channels and guide data.
type ChannelSource interface {
	Info() models.ProviderInfo
	Channels(ctx context.Context, device string) (*models.Channels, error)
	Guide(ctx context.Context, start time.Time, duration time.Duration, device string) models.Guide
}

// Registry maps provider ids to sources, remembering registration order.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]ChannelSource
	order []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]ChannelSource)}
}

// Register adds src under its Info().ID. Registering the same id twice is an error.
func (r *Registry) Register(src ChannelSource) error {
	id := src.Info().ID
	if id == "" {
		return fmt.Errorf("source: register: empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; ok {
		return fmt.Errorf("source: register %q: already registered", id)
	}
	r.byID[id] = src
	r.order = append(r.order, id)
	return nil
}

// Lookup returns the source registered under id.
func (r *Registry) Lookup(id string) (ChannelSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("source %q: %w", id, ErrUnknown)
	}
	return src, nil
}

// List returns the registered sources in registration order.
func (r *Registry) List() []ChannelSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ChannelSource, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
