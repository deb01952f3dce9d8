package pluto

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log"
	"net/url"
	"time"

	"github.com/voyagen/plutotv/internal/fetcher"
	"github.com/voyagen/plutotv/internal/models"
)

const (
	// ProviderID identifies this source to the host and tags every airing.
	ProviderID   = "pluto"
	ProviderName = "Pluto TV"

	// DefaultBaseURL is the vendor API root.
	DefaultBaseURL = "http://api.pluto.tv"
	// DefaultGuideChunkSize is the guide window used when none is requested.
	DefaultGuideChunkSize = 6 * time.Hour

	channelsRefresh = 86400 // seconds
	guideRefresh    = 21600 // seconds

	channelsPath = "/v2/channels"
	windowLayout = "2006-01-02 15:04:05.000-07:00"
)

// Service lists Pluto TV channels and builds their program guide.
// It holds configuration only, so one Service may serve concurrent callers.
type Service struct {
	client    *fetcher.Client
	chunkSize time.Duration
	genres    *Genres
	now       func() time.Time
}

// Option configures a Service.
type Option func(s *Service)

// WithClient sets the vendor HTTP client.
func WithClient(c *fetcher.Client) Option {
	return func(s *Service) {
		s.client = c
	}
}

// WithGuideChunkSize sets the window used by Guide when duration is not given.
func WithGuideChunkSize(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.chunkSize = d
		}
	}
}

// WithGenres replaces the built-in genre buckets.
func WithGenres(g *Genres) Option {
	return func(s *Service) {
		if g != nil {
			s.genres = g
		}
	}
}

// WithClock sets the time source used for the default window start and
// for the new / previously-shown decision.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a Service talking to DefaultBaseURL unless configured otherwise.
func New(opts ...Option) *Service {
	s := &Service{
		chunkSize: DefaultGuideChunkSize,
		now:       time.Now,
	}
	for _, fn := range opts {
		fn(s)
	}
	if s.client == nil {
		s.client = fetcher.NewClient(DefaultBaseURL, "", 30*time.Second)
	}
	if s.genres == nil {
		s.genres = DefaultGenres()
	}
	return s
}

// Info returns the registration metadata of the provider.
func (s *Service) Info() models.ProviderInfo {
	return models.ProviderInfo{
		ID:               ProviderID,
		Name:             ProviderName,
		SupportsChannels: true,
		SupportsGuide:    true,
		ChannelsRefresh:  channelsRefresh,
		GuideRefresh:     guideRefresh,
	}
}

// Channels fetches the channel catalog. device is accepted for interface
// compatibility and ignored.
func (s *Service) Channels(ctx context.Context, device string) (*models.Channels, error) {
	body, err := s.client.Get(ctx, channelsPath)
	if err != nil {
		return nil, fmt.Errorf("pluto channels: %w", err)
	}
	defer body.Close()

	channels := models.NewChannels()
	for rec, err := range records(body) {
		if err != nil {
			return nil, fmt.Errorf("pluto channels: %w", err)
		}
		ch, err := normalizeChannel(&rec)
		if err != nil {
			return nil, fmt.Errorf("pluto channels: %w", err)
		}
		channels.Set(ch)
	}
	return channels, nil
}

// Guide returns the schedule for [start, start+duration). A zero start
// means now; a non-positive duration means the configured chunk size.
// The window is requested at millisecond precision, the finest the vendor
// accepts; anything finer is dropped.
//
// Nothing is requested until Entries is ranged over, and each range
// issues a fresh request. Channel records are decoded one at a time as the
// consumer pulls them, and every entry's airings are normalised on demand.
func (s *Service) Guide(ctx context.Context, start time.Time, duration time.Duration, device string) models.Guide {
	if start.IsZero() {
		start = s.now()
	}
	if duration <= 0 {
		duration = s.chunkSize
	}
	start = start.Truncate(time.Millisecond).UTC()
	stop := start.Add(duration)
	path := GuidePath(start, stop)

	entries := func(yield func(models.GuideEntry, error) bool) {
		log.Printf("pluto: guide %s .. %s", start.Format(time.RFC3339), stop.Format(time.RFC3339))
		body, err := s.client.Get(ctx, path)
		if err != nil {
			yield(models.GuideEntry{}, fmt.Errorf("pluto guide: %w", err))
			return
		}
		defer body.Close()

		for rec, err := range records(body) {
			if err != nil {
				yield(models.GuideEntry{}, fmt.Errorf("pluto guide: %w", err))
				return
			}
			ch, err := normalizeChannel(&rec)
			if err != nil {
				yield(models.GuideEntry{}, fmt.Errorf("pluto guide: %w", err))
				return
			}
			entry := models.GuideEntry{
				Channel: ch,
				Airings: s.airings(rec),
			}
			if !yield(entry, nil) {
				return
			}
		}
	}

	return models.Guide{Start: start, Stop: stop, Entries: entries}
}

// airings normalises rec's timeline entries as they are pulled.
func (s *Service) airings(rec channelRecord) iter.Seq2[models.Airing, error] {
	return func(yield func(models.Airing, error) bool) {
		for i := range rec.Timelines {
			a, err := normalizeAiring(&rec, &rec.Timelines[i], s.genres, s.now())
			if err != nil {
				yield(models.Airing{}, err)
				return
			}
			if !yield(a, nil) {
				return
			}
		}
	}
}

// GuidePath returns the request path for the guide window [start, stop).
func GuidePath(start, stop time.Time) string {
	return fmt.Sprintf("%s?start=%s&stop=%s", channelsPath,
		url.QueryEscape(FormatWindowTime(start)),
		url.QueryEscape(FormatWindowTime(stop)))
}

// FormatWindowTime renders t in UTC with millisecond precision and an
// explicit offset, e.g. "2024-01-01 00:00:00.000+00:00".
func FormatWindowTime(t time.Time) string {
	return t.UTC().Format(windowLayout)
}

// records streams the programming channels of a /v2/channels document.
func records(r io.Reader) iter.Seq2[channelRecord, error] {
	return func(yield func(channelRecord, error) bool) {
		for rec, err := range fetcher.Stream[channelRecord](r) {
			if err != nil {
				yield(channelRecord{}, err)
				return
			}
			if !include(&rec) {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
