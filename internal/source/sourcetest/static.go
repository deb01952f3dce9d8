// Package sourcetest provides a canned source.ChannelSource for tests.
package sourcetest

import (
	"context"
	"time"

	"github.com/voyagen/plutotv/internal/models"
	"github.com/voyagen/plutotv/internal/source"
)

// Static serves fixed channels and airings.
type Static struct {
	Meta     models.ProviderInfo
	List     []models.Channel
	Airings  map[string][]models.Airing // by channel id
	Err      error                       // returned by Channels and yielded by Guide
	ErrAfter int                         // Guide yields Err after this many entries

	// AiringsErr makes a channel's airing sequence fail after its airings.
	AiringsErr map[string]error

	// GuideCalls records the start and duration Guide was asked for.
	GuideCalls []Window
}

// Window is one recorded Guide request.
type Window struct {
	Start    time.Time
	Duration time.Duration
}

// DefaultChunk is the window Static uses when Guide gets no duration.
const DefaultChunk = 6 * time.Hour

func (s *Static) Info() models.ProviderInfo { return s.Meta }

func (s *Static) Channels(context.Context, string) (*models.Channels, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := models.NewChannels()
	for _, ch := range s.List {
		out.Set(ch)
	}
	return out, nil
}

func (s *Static) Guide(ctx context.Context, start time.Time, duration time.Duration, _ string) models.Guide {
	s.GuideCalls = append(s.GuideCalls, Window{Start: start, Duration: duration})
	if start.IsZero() {
		start = time.Now()
	}
	if duration <= 0 {
		duration = DefaultChunk
	}
	start = start.Truncate(time.Millisecond).UTC()

	entries := func(yield func(models.GuideEntry, error) bool) {
		for i, ch := range s.List {
			if s.Err != nil && i == s.ErrAfter {
				yield(models.GuideEntry{}, s.Err)
				return
			}
			if err := ctx.Err(); err != nil {
				yield(models.GuideEntry{}, err)
				return
			}
			airings, airingsErr := s.Airings[ch.ID], s.AiringsErr[ch.ID]
			entry := models.GuideEntry{
				Channel: ch,
				Airings: func(yield func(models.Airing, error) bool) {
					for _, a := range airings {
						if !yield(a, nil) {
							return
						}
					}
					if airingsErr != nil {
						yield(models.Airing{}, airingsErr)
					}
				},
			}
			if !yield(entry, nil) {
				return
			}
		}
		if s.Err != nil && s.ErrAfter >= len(s.List) {
			yield(models.GuideEntry{}, s.Err)
		}
	}
	return models.Guide{Start: start, Stop: start.Add(duration), Entries: entries}
}

var _ source.ChannelSource = (*Static)(nil)
