package store

import (
	"context"
	"errors"
	"time"

	"github.com/voyagen/plutotv/internal/models"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines persistence for providers, their channels, and guide airings.
type Store interface {
	// UpsertProvider records the registration metadata of a provider.
	UpsertProvider(ctx context.Context, info models.ProviderInfo) error
	// MarkSynced stamps the last successful sync of kind for the provider.
	MarkSynced(ctx context.Context, providerID, kind string, at time.Time) error
	// ListProviders returns all providers with their last sync times.
	ListProviders(ctx context.Context) ([]models.ProviderStatus, error)

	// UpsertChannel inserts or updates a channel of ch.Provider.
	UpsertChannel(ctx context.Context, ch *models.Channel) error
	// RemoveStaleChannels deletes the provider's channels not in keepIDs.
	RemoveStaleChannels(ctx context.Context, providerID string, keepIDs []string) (int64, error)
	// GetChannel returns one channel or ErrNotFound.
	GetChannel(ctx context.Context, providerID, channelID string) (*models.Channel, error)
	// ListChannels returns channels matching the filter and the total count (before limit/offset).
	ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, int, error)
	// ListCategories returns channel categories with counts, optionally for one provider.
	ListCategories(ctx context.Context, providerID string) ([]models.Category, error)

	// UpsertAiring inserts or updates an airing keyed by source and id.
	UpsertAiring(ctx context.Context, a *models.Airing) error
	// ListAirings returns airings matching the filter ordered by start time,
	// and the total count (before limit/offset).
	ListAirings(ctx context.Context, filter AiringFilter) ([]models.Airing, int, error)
	// DeleteAiringsBefore removes the provider's airings that stopped before t.
	DeleteAiringsBefore(ctx context.Context, providerID string, t time.Time) (int64, error)
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

// ChannelFilter holds optional filters for listing channels.
type ChannelFilter struct {
	Provider string
	Category string // exact match
	Search   string // case-insensitive substring match on channel name
	Limit    int    // default 50, max 200
	Offset   int
}

// AiringFilter holds optional filters for listing airings.
type AiringFilter struct {
	Provider  string
	ChannelID string
	Category  string     // airing carries this category
	From      *time.Time // airing still running at From
	To        *time.Time // airing starts before To
	Limit     int        // default 50, max 200
	Offset    int
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultLimit
	case n > maxLimit:
		return maxLimit
	}
	return n
}
