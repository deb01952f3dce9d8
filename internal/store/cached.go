package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"time"

	"github.com/voyagen/plutotv/internal/cache"
	"github.com/voyagen/plutotv/internal/models"
)

// Cache TTLs for different entity types.
const (
	ttlProviders = 1 * time.Minute
	ttlChannels  = 2 * time.Minute
	ttlChannel   = 5 * time.Minute
	ttlAirings   = 1 * time.Minute
	ttlCategory  = 5 * time.Minute
)

const (
	keyProviders       = "plutotv:providers"
	patternChannelList = "plutotv:channels:*"
	patternAiringList  = "plutotv:airings:*"
	patternCategories  = "plutotv:categories:*"
)

// CachedStore wraps a Store with a Redis caching layer.
// Reads are served from cache when possible. Channel lists are dropped on
// channel writes; airing lists are dropped when a guide sync prunes or
// completes, and otherwise expire after ttlAirings.
type CachedStore struct {
	inner Store
	cache *cache.Redis
}

// NewCachedStore creates a CachedStore that wraps inner with Redis caching.
func NewCachedStore(inner Store, c *cache.Redis) *CachedStore {
	return &CachedStore{inner: inner, cache: c}
}

// Ping checks Redis and, when the wrapped store supports it, the database.
func (c *CachedStore) Ping(ctx context.Context) error {
	if err := c.cache.Ping(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if p, ok := c.inner.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// --- cached read operations ---

func (c *CachedStore) ListProviders(ctx context.Context) ([]models.ProviderStatus, error) {
	return cache.Remember(ctx, c.cache, keyProviders, ttlProviders, c.inner.ListProviders)
}

func (c *CachedStore) GetChannel(ctx context.Context, providerID, channelID string) (*models.Channel, error) {
	return cache.Remember(ctx, c.cache, channelKey(providerID, channelID), ttlChannel,
		func(ctx context.Context) (*models.Channel, error) {
			return c.inner.GetChannel(ctx, providerID, channelID)
		})
}

// listResult caches the (rows, total) pair of the List calls.
type listResult[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func (c *CachedStore) ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, int, error) {
	res, err := cache.Remember(ctx, c.cache, "plutotv:channels:"+filterHash(filter), ttlChannels,
		func(ctx context.Context) (listResult[models.Channel], error) {
			items, total, err := c.inner.ListChannels(ctx, filter)
			return listResult[models.Channel]{Items: items, Total: total}, err
		})
	return res.Items, res.Total, err
}

func (c *CachedStore) ListCategories(ctx context.Context, providerID string) ([]models.Category, error) {
	return cache.Remember(ctx, c.cache, "plutotv:categories:"+providerID, ttlCategory,
		func(ctx context.Context) ([]models.Category, error) {
			return c.inner.ListCategories(ctx, providerID)
		})
}

func (c *CachedStore) ListAirings(ctx context.Context, filter AiringFilter) ([]models.Airing, int, error) {
	res, err := cache.Remember(ctx, c.cache, "plutotv:airings:"+filterHash(filter), ttlAirings,
		func(ctx context.Context) (listResult[models.Airing], error) {
			items, total, err := c.inner.ListAirings(ctx, filter)
			return listResult[models.Airing]{Items: items, Total: total}, err
		})
	return res.Items, res.Total, err
}

// --- write operations with cache invalidation ---

func (c *CachedStore) UpsertProvider(ctx context.Context, info models.ProviderInfo) error {
	if err := c.inner.UpsertProvider(ctx, info); err != nil {
		return err
	}
	c.invalidate(ctx, keyProviders)
	return nil
}

func (c *CachedStore) MarkSynced(ctx context.Context, providerID, kind string, at time.Time) error {
	if err := c.inner.MarkSynced(ctx, providerID, kind, at); err != nil {
		return err
	}
	if kind == models.SyncKindGuide {
		c.invalidate(ctx, keyProviders, patternAiringList)
		return nil
	}
	c.invalidate(ctx, keyProviders)
	return nil
}

func (c *CachedStore) UpsertChannel(ctx context.Context, ch *models.Channel) error {
	if err := c.inner.UpsertChannel(ctx, ch); err != nil {
		return err
	}
	c.invalidate(ctx, channelKey(ch.Provider, ch.ID), patternChannelList, patternCategories)
	return nil
}

func (c *CachedStore) RemoveStaleChannels(ctx context.Context, providerID string, keepIDs []string) (int64, error) {
	n, err := c.inner.RemoveStaleChannels(ctx, providerID, keepIDs)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.invalidate(ctx, patternChannelList, channelKey(providerID, "*"), patternCategories, patternAiringList)
	}
	return n, nil
}

func (c *CachedStore) DeleteAiringsBefore(ctx context.Context, providerID string, t time.Time) (int64, error) {
	n, err := c.inner.DeleteAiringsBefore(ctx, providerID, t)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.invalidate(ctx, patternAiringList)
	}
	return n, nil
}

// --- passthrough (no caching) ---

func (c *CachedStore) UpsertAiring(ctx context.Context, a *models.Airing) error {
	return c.inner.UpsertAiring(ctx, a)
}

// --- helpers ---

// invalidate drops exact keys and glob patterns, logging failures.
func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := cache.Invalidate(ctx, c.cache, keys...); err != nil {
		log.Printf("[cache] invalidate %v: %v", keys, err)
	}
}

func channelKey(providerID, channelID string) string {
	return fmt.Sprintf("plutotv:channel:%s:%s", providerID, channelID)
}

// filterHash produces a short deterministic hash of a filter so it can be
// used as part of a cache key.
func filterHash(f any) string {
	raw := fmt.Sprintf("%T|%+v", f, deref(f))
	h := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", h[:8])
}

// deref expands the time pointers of an AiringFilter so equal windows hash equally.
func deref(f any) any {
	af, ok := f.(AiringFilter)
	if !ok {
		return f
	}
	type flat struct {
		AiringFilter
		From, To string
	}
	out := flat{AiringFilter: af}
	out.AiringFilter.From, out.AiringFilter.To = nil, nil
	if af.From != nil {
		out.From = af.From.UTC().Format(time.RFC3339)
	}
	if af.To != nil {
		out.To = af.To.UTC().Format(time.RFC3339)
	}
	return out
}

var _ Store = (*CachedStore)(nil)
var _ Store = (*Postgres)(nil)
