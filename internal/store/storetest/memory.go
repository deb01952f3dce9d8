// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/voyagen/plutotv/internal/models"
	"github.com/voyagen/plutotv/internal/store"
)

// Memory is a goroutine-safe in-memory store.Store. Limits follow the
// Postgres store: default 50, max 200.
type Memory struct {
	mu        sync.Mutex
	providers map[string]models.ProviderStatus
	channels  map[[2]string]models.Channel
	airings   map[[2]string]models.Airing

	// FailUpsertAiringAfter makes UpsertAiring fail once this many airings
	// were written. Zero disables it.
	FailUpsertAiringAfter int
	airingWrites          int
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		providers: make(map[string]models.ProviderStatus),
		channels:  make(map[[2]string]models.Channel),
		airings:   make(map[[2]string]models.Airing),
	}
}

// ErrInjected is returned by writes the test asked to fail.
var ErrInjected = errors.New("storetest: injected failure")

func (m *Memory) UpsertProvider(_ context.Context, info models.ProviderInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.providers[info.ID]
	st.ProviderInfo = info
	m.providers[info.ID] = st
	return nil
}

func (m *Memory) MarkSynced(_ context.Context, providerID, kind string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.providers[providerID]
	if !ok {
		return store.ErrNotFound
	}
	switch kind {
	case models.SyncKindChannels:
		st.ChannelsSyncedAt = &at
	case models.SyncKindGuide:
		st.GuideSyncedAt = &at
	}
	m.providers[providerID] = st
	return nil
}

// SetStatus overwrites the stored status of a provider.
func (m *Memory) SetStatus(st models.ProviderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[st.ID] = st
}

func (m *Memory) ListProviders(context.Context) ([]models.ProviderStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ProviderStatus, 0, len(m.providers))
	for _, st := range m.providers {
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b models.ProviderStatus) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *Memory) UpsertChannel(_ context.Context, ch *models.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[[2]string{ch.Provider, ch.ID}] = *ch
	return nil
}

func (m *Memory) RemoveStaleChannels(_ context.Context, providerID string, keepIDs []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.channels {
		if k[0] == providerID && !slices.Contains(keepIDs, k[1]) {
			delete(m.channels, k)
			n++
			for ak, a := range m.airings {
				if ak[0] == providerID && a.ChannelID == k[1] {
					delete(m.airings, ak)
				}
			}
		}
	}
	return n, nil
}

func (m *Memory) GetChannel(_ context.Context, providerID, channelID string) (*models.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[[2]string{providerID, channelID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &ch, nil
}

func (m *Memory) ListChannels(_ context.Context, f store.ChannelFilter) ([]models.Channel, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Channel
	for _, ch := range m.channels {
		if f.Provider != "" && ch.Provider != f.Provider {
			continue
		}
		if f.Category != "" && ch.Category != f.Category {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(ch.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, ch)
	}
	slices.SortFunc(out, func(a, b models.Channel) int {
		return cmp.Or(cmp.Compare(a.Provider, b.Provider), cmp.Compare(a.Number, b.Number), cmp.Compare(a.ID, b.ID))
	})
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (m *Memory) ListCategories(_ context.Context, providerID string) ([]models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[[2]string]int)
	for _, ch := range m.channels {
		if ch.Category == "" || (providerID != "" && ch.Provider != providerID) {
			continue
		}
		counts[[2]string{ch.Provider, ch.Category}]++
	}
	out := make([]models.Category, 0, len(counts))
	for k, n := range counts {
		out = append(out, models.Category{Provider: k[0], Name: k[1], Channels: n})
	}
	slices.SortFunc(out, func(a, b models.Category) int {
		return cmp.Or(cmp.Compare(a.Provider, b.Provider), cmp.Compare(a.Name, b.Name))
	})
	return out, nil
}

func (m *Memory) UpsertAiring(_ context.Context, a *models.Airing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpsertAiringAfter > 0 && m.airingWrites >= m.FailUpsertAiringAfter {
		return ErrInjected
	}
	m.airingWrites++
	m.airings[[2]string{a.Source, a.ID}] = *a
	return nil
}

func (m *Memory) ListAirings(_ context.Context, f store.AiringFilter) ([]models.Airing, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Airing
	for _, a := range m.airings {
		switch {
		case f.Provider != "" && a.Source != f.Provider,
			f.ChannelID != "" && a.ChannelID != f.ChannelID,
			f.Category != "" && !a.HasCategory(f.Category),
			f.From != nil && !a.StopTime.After(*f.From),
			f.To != nil && !a.StartTime.Before(*f.To):
			continue
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b models.Airing) int {
		return cmp.Or(a.StartTime.Compare(b.StartTime), cmp.Compare(a.ChannelID, b.ChannelID))
	})
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (m *Memory) DeleteAiringsBefore(_ context.Context, providerID string, t time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, a := range m.airings {
		if k[0] == providerID && a.StopTime.Before(t) {
			delete(m.airings, k)
			n++
		}
	}
	return n, nil
}

func page[T any](items []T, limit, offset int) []T {
	switch {
	case limit <= 0:
		limit = 50
	case limit > 200:
		limit = 200
	}
	offset = max(offset, 0)
	if offset >= len(items) {
		return nil
	}
	return items[offset:min(offset+limit, len(items))]
}

var _ store.Store = (*Memory)(nil)
