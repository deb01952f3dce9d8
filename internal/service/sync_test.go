package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyagen/plutotv/internal/models"
	"github.com/voyagen/plutotv/internal/source/sourcetest"
	"github.com/voyagen/plutotv/internal/store"
	"github.com/voyagen/plutotv/internal/store/storetest"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testInfo() models.ProviderInfo {
	return models.ProviderInfo{
		ID: "pluto", Name: "Pluto TV",
		SupportsChannels: true, SupportsGuide: true,
		ChannelsRefresh: 86400, GuideRefresh: 21600,
	}
}

func airing(ch string, start time.Time) models.Airing {
	return models.Airing{
		ID:        ch + start.Format("1504"),
		ChannelID: ch,
		Source:    "pluto",
		Title:     "Show",
		StartTime: start,
		StopTime:  start.Add(30 * time.Minute),
		Length:    1800,
	}
}

func testSource() *sourcetest.Static {
	return &sourcetest.Static{
		Meta: testInfo(),
		List: []models.Channel{
			{ID: "news1", Name: "News One", Number: 101},
			{ID: "movies", Name: "Movies", Number: 50},
		},
		Airings: map[string][]models.Airing{
			"news1":  {airing("news1", t0), airing("news1", t0.Add(30*time.Minute))},
			"movies": {airing("movies", t0)},
		},
	}
}

func TestSyncChannels(t *testing.T) {
	ctx := context.Background()
	mem := storetest.NewMemory()
	require.NoError(t, mem.UpsertProvider(ctx, testInfo()))
	require.NoError(t, mem.UpsertChannel(ctx, &models.Channel{ID: "gone", Provider: "pluto"}))

	res, err := SyncChannels(ctx, mem, testSource())
	require.NoError(t, err)
	assert.Equal(t, ChannelsResult{Provider: "pluto", Channels: 2, Removed: 1}, res)

	ch, err := mem.GetChannel(ctx, "pluto", "news1")
	require.NoError(t, err)
	assert.Equal(t, "News One", ch.Name)
	assert.Equal(t, "pluto", ch.Provider)

	_, err = mem.GetChannel(ctx, "pluto", "gone")
	assert.ErrorIs(t, err, store.ErrNotFound)

	providers, err := mem.ListProviders(ctx)
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.NotNil(t, providers[0].ChannelsSyncedAt)
	assert.Nil(t, providers[0].GuideSyncedAt)
}

func TestSyncChannels_FetchError(t *testing.T) {
	mem := storetest.NewMemory()
	src := testSource()
	src.Err = errors.New("vendor down")

	_, err := SyncChannels(context.Background(), mem, src)
	require.ErrorIs(t, err, src.Err)

	providers, _ := mem.ListProviders(context.Background())
	require.Len(t, providers, 1)
	assert.Nil(t, providers[0].ChannelsSyncedAt, "failed sync must not be stamped")
}

func TestSyncChannels_Unsupported(t *testing.T) {
	src := testSource()
	src.Meta.SupportsChannels = false
	_, err := SyncChannels(context.Background(), storetest.NewMemory(), src)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSyncGuide(t *testing.T) {
	ctx := context.Background()
	mem := storetest.NewMemory()
	require.NoError(t, mem.UpsertProvider(ctx, testInfo()))
	require.NoError(t, mem.UpsertChannel(ctx, &models.Channel{ID: "news1", Provider: "pluto"}))
	old := airing("news1", t0.Add(-2*time.Hour))
	require.NoError(t, mem.UpsertAiring(ctx, &old))

	src := testSource()
	res, err := SyncGuide(ctx, mem, src, t0, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, GuideResult{
		Provider: "pluto",
		Start:    t0,
		Stop:     t0.Add(time.Hour),
		Channels: 2,
		Airings:  3,
		Pruned:   1,
	}, res)
	assert.Equal(t, []sourcetest.Window{{Start: t0, Duration: time.Hour}}, src.GuideCalls)

	airings, total, err := mem.ListAirings(ctx, store.AiringFilter{Provider: "pluto"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, "movies", airings[0].ChannelID)

	providers, _ := mem.ListProviders(ctx)
	assert.NotNil(t, providers[0].GuideSyncedAt)
}

func TestSyncGuide_ErrorKeepsPrefix(t *testing.T) {
	ctx := context.Background()
	mem := storetest.NewMemory()
	require.NoError(t, mem.UpsertProvider(ctx, testInfo()))
	require.NoError(t, mem.UpsertChannel(ctx, &models.Channel{ID: "news1", Provider: "pluto"}))
	old := airing("news1", t0.Add(-2*time.Hour))
	require.NoError(t, mem.UpsertAiring(ctx, &old))

	src := testSource()
	src.Err = errors.New("truncated document")
	src.ErrAfter = 1

	res, err := SyncGuide(ctx, mem, src, t0, time.Hour)
	require.ErrorIs(t, err, src.Err)
	assert.Equal(t, 1, res.Channels)
	assert.Equal(t, 2, res.Airings)

	_, total, err := mem.ListAirings(ctx, store.AiringFilter{Provider: "pluto"})
	require.NoError(t, err)
	assert.Equal(t, 3, total, "written prefix kept and nothing pruned")

	_, err = mem.GetChannel(ctx, "pluto", "movies")
	assert.ErrorIs(t, err, store.ErrNotFound)

	providers, _ := mem.ListProviders(ctx)
	assert.Nil(t, providers[0].GuideSyncedAt)
}

func TestSyncGuide_StoreError(t *testing.T) {
	mem := storetest.NewMemory()
	mem.FailUpsertAiringAfter = 1

	res, err := SyncGuide(context.Background(), mem, testSource(), t0, time.Hour)
	require.ErrorIs(t, err, storetest.ErrInjected)
	assert.Equal(t, 1, res.Airings)
}

func TestSyncGuide_Defaults(t *testing.T) {
	src := testSource()
	res, err := SyncGuide(context.Background(), storetest.NewMemory(), src, time.Time{}, 0)
	require.NoError(t, err)
	assert.Equal(t, sourcetest.DefaultChunk, res.Stop.Sub(res.Start))
	assert.True(t, src.GuideCalls[0].Start.IsZero())
}

func TestSyncGuide_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SyncGuide(ctx, storetest.NewMemory(), testSource(), t0, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
