package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/voyagen/plutotv/internal/cache"
	"github.com/voyagen/plutotv/internal/models"
	"github.com/voyagen/plutotv/internal/store"
	"github.com/voyagen/plutotv/internal/store/storetest"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newCached(t *testing.T) (*store.CachedStore, *storetest.Memory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := cache.New("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	mem := storetest.NewMemory()
	if err := mem.UpsertProvider(context.Background(), models.ProviderInfo{ID: "pluto", Name: "Pluto TV"}); err != nil {
		t.Fatal(err)
	}
	return store.NewCachedStore(mem, r), mem, mr
}

func channel(id string, number int) *models.Channel {
	return &models.Channel{ID: id, Name: id, Number: number, Category: "News", Provider: "pluto"}
}

func airing(id string, start time.Time) *models.Airing {
	return &models.Airing{ID: id, ChannelID: "news1", Source: "pluto", StartTime: start, StopTime: start.Add(30 * time.Minute)}
}

func countKeys(mr *miniredis.Miniredis, prefix string) int {
	n := 0
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

func listChannels(t *testing.T, s store.Store) int {
	t.Helper()
	_, total, err := s.ListChannels(context.Background(), store.ChannelFilter{Provider: "pluto"})
	if err != nil {
		t.Fatalf("ListChannels: %v", err)
	}
	return total
}

func listAirings(t *testing.T, s store.Store) int {
	t.Helper()
	_, total, err := s.ListAirings(context.Background(), store.AiringFilter{Provider: "pluto"})
	if err != nil {
		t.Fatalf("ListAirings: %v", err)
	}
	return total
}

func TestCachedStore_UpsertChannelDropsLists(t *testing.T) {
	cs, mem, mr := newCached(t)
	ctx := context.Background()
	if err := cs.UpsertChannel(ctx, channel("news1", 1)); err != nil {
		t.Fatal(err)
	}

	if got := listChannels(t, cs); got != 1 {
		t.Fatalf("total = %d, want 1", got)
	}
	if _, err := cs.ListCategories(ctx, "pluto"); err != nil {
		t.Fatal(err)
	}
	if countKeys(mr, "plutotv:channels:") != 1 || countKeys(mr, "plutotv:categories:") != 1 {
		t.Fatalf("lists not cached: %v", mr.Keys())
	}

	// A write that bypasses the cache is not visible yet.
	mem.UpsertChannel(ctx, channel("movies", 2))
	if got := listChannels(t, cs); got != 1 {
		t.Fatalf("total = %d, want cached 1", got)
	}

	if err := cs.UpsertChannel(ctx, channel("sports", 3)); err != nil {
		t.Fatal(err)
	}
	if countKeys(mr, "plutotv:channels:") != 0 || countKeys(mr, "plutotv:categories:") != 0 {
		t.Errorf("lists survived UpsertChannel: %v", mr.Keys())
	}
	if got := listChannels(t, cs); got != 3 {
		t.Errorf("total = %d, want 3", got)
	}
}

func TestCachedStore_RemoveStaleChannels(t *testing.T) {
	cs, _, mr := newCached(t)
	ctx := context.Background()
	cs.UpsertChannel(ctx, channel("news1", 1))
	cs.UpsertChannel(ctx, channel("movies", 2))

	if _, err := cs.GetChannel(ctx, "pluto", "movies"); err != nil {
		t.Fatal(err)
	}
	listChannels(t, cs)
	listAirings(t, cs)

	n, err := cs.RemoveStaleChannels(ctx, "pluto", []string{"news1"})
	if err != nil || n != 1 {
		t.Fatalf("RemoveStaleChannels = %d, %v", n, err)
	}
	for _, prefix := range []string{"plutotv:channels:", "plutotv:channel:", "plutotv:airings:"} {
		if c := countKeys(mr, prefix); c != 0 {
			t.Errorf("%d %s* keys survived", c, prefix)
		}
	}
	if _, err := cs.GetChannel(ctx, "pluto", "movies"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetChannel(removed) err = %v, want ErrNotFound", err)
	}
	if countKeys(mr, "plutotv:channel:") != 0 {
		t.Error("a not-found lookup was cached")
	}
}

func TestCachedStore_AiringListsDropOnGuideSyncAndPrune(t *testing.T) {
	cs, _, mr := newCached(t)
	ctx := context.Background()
	cs.UpsertChannel(ctx, channel("news1", 1))
	cs.UpsertAiring(ctx, airing("a", t0))

	if got := listAirings(t, cs); got != 1 {
		t.Fatalf("total = %d, want 1", got)
	}

	// Airing upserts pass through without invalidating.
	if err := cs.UpsertAiring(ctx, airing("b", t0.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	if got := listAirings(t, cs); got != 1 {
		t.Fatalf("total = %d, want cached 1", got)
	}

	// A channels sync leaves airing lists alone.
	if err := cs.MarkSynced(ctx, "pluto", models.SyncKindChannels, t0); err != nil {
		t.Fatal(err)
	}
	if countKeys(mr, "plutotv:airings:") != 1 {
		t.Error("channels sync dropped airing lists")
	}

	if err := cs.MarkSynced(ctx, "pluto", models.SyncKindGuide, t0); err != nil {
		t.Fatal(err)
	}
	if got := listAirings(t, cs); got != 2 {
		t.Fatalf("total after guide sync = %d, want 2", got)
	}

	n, err := cs.DeleteAiringsBefore(ctx, "pluto", t0.Add(45*time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("DeleteAiringsBefore = %d, %v", n, err)
	}
	if got := listAirings(t, cs); got != 1 {
		t.Errorf("total after prune = %d, want 1", got)
	}
}

func TestCachedStore_MarkSyncedRefreshesProviders(t *testing.T) {
	cs, _, _ := newCached(t)
	ctx := context.Background()

	got, err := cs.ListProviders(ctx)
	if err != nil || len(got) != 1 || got[0].GuideSyncedAt != nil {
		t.Fatalf("ListProviders = %+v, %v", got, err)
	}
	if err := cs.MarkSynced(ctx, "pluto", models.SyncKindGuide, t0); err != nil {
		t.Fatal(err)
	}
	got, err = cs.ListProviders(ctx)
	if err != nil || got[0].GuideSyncedAt == nil || !got[0].GuideSyncedAt.Equal(t0) {
		t.Errorf("ListProviders after MarkSynced = %+v, %v", got, err)
	}
}
