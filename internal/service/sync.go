package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/voyagen/plutotv/internal/models"
	"github.com/voyagen/plutotv/internal/source"
	"github.com/voyagen/plutotv/internal/store"
)

// ErrUnsupported is returned when a provider does not offer the requested kind of data.
var ErrUnsupported = errors.New("not supported by provider")

// ChannelsResult summarises a channel sync.
type ChannelsResult struct {
	Provider string `json:"provider"`
	Channels int    `json:"channels"`
	Removed  int64  `json:"removed"`
}

// SyncChannels lists the provider's channels and stores them.
// Existing channels are updated in place, channels that no longer appear
// upstream are removed, and the provider is stamped as synced.
func SyncChannels(ctx context.Context, s store.Store, src source.ChannelSource) (ChannelsResult, error) {
	info := src.Info()
	res := ChannelsResult{Provider: info.ID}
	if !info.SupportsChannels {
		return res, fmt.Errorf("channels: %s: %w", info.ID, ErrUnsupported)
	}
	if err := s.UpsertProvider(ctx, info); err != nil {
		return res, fmt.Errorf("UpsertProvider: %w", err)
	}

	channels, err := src.Channels(ctx, "")
	if err != nil {
		return res, fmt.Errorf("fetch: %w", err)
	}

	keepIDs := make([]string, 0, channels.Len())
	for id, ch := range channels.All() {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("sync cancelled: %w", err)
		}
		ch.Provider = info.ID
		if err := s.UpsertChannel(ctx, &ch); err != nil {
			return res, fmt.Errorf("UpsertChannel: %w", err)
		}
		keepIDs = append(keepIDs, id)
		res.Channels++
	}

	res.Removed, err = s.RemoveStaleChannels(ctx, info.ID, keepIDs)
	if err != nil {
		return res, fmt.Errorf("RemoveStaleChannels: %w", err)
	}
	if err := s.MarkSynced(ctx, info.ID, models.SyncKindChannels, time.Now()); err != nil {
		return res, fmt.Errorf("MarkSynced: %w", err)
	}
	log.Printf("sync[%s]: %d channels, %d removed", info.ID, res.Channels, res.Removed)
	return res, nil
}

// GuideResult summarises a guide sync.
type GuideResult struct {
	Provider string    `json:"provider"`
	Start    time.Time `json:"start"`
	Stop     time.Time `json:"stop"`
	Channels int       `json:"channels"`
	Airings  int       `json:"airings"`
	Pruned   int64     `json:"pruned"`
}

// SyncGuide pulls the provider's guide for [start, start+duration) and
// stores channels and airings as they stream in. A zero start or
// non-positive duration selects the provider defaults.
//
// On the first error the sync stops; everything written before it stays.
// Airings that ended before the window start are pruned only after a
// complete pass.
func SyncGuide(ctx context.Context, s store.Store, src source.ChannelSource, start time.Time, duration time.Duration) (GuideResult, error) {
	info := src.Info()
	res := GuideResult{Provider: info.ID}
	if !info.SupportsGuide {
		return res, fmt.Errorf("guide: %s: %w", info.ID, ErrUnsupported)
	}
	if err := s.UpsertProvider(ctx, info); err != nil {
		return res, fmt.Errorf("UpsertProvider: %w", err)
	}

	guide := src.Guide(ctx, start, duration, "")
	res.Start, res.Stop = guide.Start, guide.Stop

	for entry, err := range guide.Entries {
		if err != nil {
			return res, fmt.Errorf("guide: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("sync cancelled: %w", err)
		}
		ch := entry.Channel
		ch.Provider = info.ID
		if err := s.UpsertChannel(ctx, &ch); err != nil {
			return res, fmt.Errorf("UpsertChannel: %w", err)
		}
		res.Channels++

		for a, err := range entry.Airings {
			if err != nil {
				return res, fmt.Errorf("guide %s: %w", ch.ID, err)
			}
			if err := s.UpsertAiring(ctx, &a); err != nil {
				return res, fmt.Errorf("UpsertAiring: %w", err)
			}
			res.Airings++
		}
	}

	var err error
	res.Pruned, err = s.DeleteAiringsBefore(ctx, info.ID, res.Start)
	if err != nil {
		return res, fmt.Errorf("DeleteAiringsBefore: %w", err)
	}
	if err := s.MarkSynced(ctx, info.ID, models.SyncKindGuide, time.Now()); err != nil {
		return res, fmt.Errorf("MarkSynced: %w", err)
	}
	log.Printf("sync[%s]: guide %s..%s, %d channels, %d airings, %d pruned",
		info.ID, res.Start.Format(time.RFC3339), res.Stop.Format(time.RFC3339),
		res.Channels, res.Airings, res.Pruned)
	return res, nil
}
