package pluto

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/voyagen/plutotv/internal/models"
)

// ErrMalformed marks a vendor record missing a field that has no fallback.
var ErrMalformed = errors.New("malformed vendor record")

var (
	reExcludedSlug = regexp.MustCompile(`^announcement|^privacy-policy`)
	reLineBreak    = regexp.MustCompile(`\r\n|\n|\r`)

	quoteStripper = strings.NewReplacer(`"`, "", "“", "", "”", "")

	channelArtRewriter = strings.NewReplacer("w=1600", "w=1000", "h=900", "h=562")
	tileRewriter       = strings.NewReplacer("w=660", "w=900", "h=660", "h=900")
)

// include reports whether a vendor channel is real programming.
func include(rec *channelRecord) bool {
	return rec.IsStitched && !reExcludedSlug.MatchString(rec.Slug)
}

func normalizeChannel(rec *channelRecord) (models.Channel, error) {
	if rec.Summary == nil {
		return models.Channel{}, fmt.Errorf("channel %q: %w: no summary", rec.Slug, ErrMalformed)
	}
	art := rec.FeaturedImage.path()
	if art == nil {
		return models.Channel{}, fmt.Errorf("channel %q: %w: no featuredImage.path", rec.Slug, ErrMalformed)
	}
	if rec.Stitched == nil || len(rec.Stitched.URLs) == 0 {
		return models.Channel{}, fmt.Errorf("channel %q: %w: no stitched url", rec.Slug, ErrMalformed)
	}
	streamURL, err := buildStreamURL(rec.Stitched.URLs[0].URL)
	if err != nil {
		return models.Channel{}, fmt.Errorf("channel %q: %w", rec.Slug, err)
	}

	return models.Channel{
		ID:          rec.Slug,
		Name:        rec.Name,
		Number:      rec.Number,
		Title:       rec.Name,
		CallSign:    rec.Hash,
		Description: cleanDescription(*rec.Summary),
		Logo:        rec.ColorLogoPNG.path(),
		ChannelArt:  channelArt(*art),
		Category:    rec.Category,
		StreamURL:   streamURL,
	}, nil
}

// cleanDescription folds line breaks into spaces and drops straight and
// curly double quotes.
func cleanDescription(s string) string {
	return quoteStripper.Replace(reLineBreak.ReplaceAllString(s, " "))
}

// channelArt asks the image service for a 1000x562 rendition.
func channelArt(u string) string {
	return channelArtRewriter.Replace(u)
}

// buildStreamURL keeps everything before the query string and appends the
// fixed web-player parameter set with a fresh device id and session id.
func buildStreamURL(raw string) (string, error) {
	deviceID, err := uuid.NewUUID()
	if err != nil {
		return "", fmt.Errorf("device id: %w", err)
	}
	sid, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("session id: %w", err)
	}

	base, _, _ := strings.Cut(raw, "?")
	params := [][2]string{
		{"advertisingId", ""},
		{"appName", "web"},
		{"appVersion", "unknown"},
		{"appStoreUrl", ""},
		{"architecture", ""},
		{"buildVersion", ""},
		{"clientTime", "0"},
		{"deviceDNT", "0"},
		{"deviceId", deviceID.String()},
		{"deviceMake", "Chrome"},
		{"deviceModel", "web"},
		{"deviceType", "web"},
		{"deviceVersion", "unknown"},
		{"includeExtendedEvents", "false"},
		{"sid", sid.String()},
		{"userId", ""},
		{"serverSideAds", "true"},
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteByte('?')
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p[0])
		b.WriteByte('=')
		b.WriteString(p[1])
	}
	return b.String(), nil
}

// airingID is stable for a given channel slot: md5 of slug and unix start.
func airingID(slug string, start time.Time) string {
	sum := md5.Sum([]byte(slug + strconv.FormatInt(start.Unix(), 10)))
	return hex.EncodeToString(sum[:])
}

// normalizeAiring maps one timeline entry of rec. now decides whether the
// episode first aired in the past.
func normalizeAiring(rec *channelRecord, tl *timeline, genres *Genres, now time.Time) (models.Airing, error) {
	ep := tl.Episode
	if ep == nil {
		return models.Airing{}, fmt.Errorf("channel %q timeline %q: %w: no episode", rec.Slug, tl.ID, ErrMalformed)
	}
	if ep.Series == nil {
		return models.Airing{}, fmt.Errorf("channel %q timeline %q: %w: no episode.series", rec.Slug, tl.ID, ErrMalformed)
	}

	start, err := parseTime(tl.Start)
	if err != nil {
		return models.Airing{}, fmt.Errorf("channel %q timeline %q: start: %w", rec.Slug, tl.ID, err)
	}
	stop, err := parseTime(tl.Stop)
	if err != nil {
		return models.Airing{}, fmt.Errorf("channel %q timeline %q: stop: %w", rec.Slug, tl.ID, err)
	}
	originalRelease, err := parseOptionalTime(clipReleaseDate(ep.Clip))
	if err != nil {
		return models.Airing{}, fmt.Errorf("channel %q timeline %q: originalReleaseDate: %w", rec.Slug, tl.ID, err)
	}
	firstAired, err := parseOptionalTime(ep.FirstAired)
	if err != nil {
		return models.Airing{}, fmt.Errorf("channel %q timeline %q: firstAired: %w", rec.Slug, tl.ID, err)
	}

	length := stop.Sub(start)
	if length < 0 {
		length = -length
	}
	isMovie := ep.Series.Type == "film"

	a := models.Airing{
		ID:                  airingID(rec.Slug, start),
		ChannelID:           rec.Slug,
		Source:              ProviderID,
		Title:               tl.Title,
		Description:         ep.Description,
		StartTime:           start,
		StopTime:            stop,
		Length:              int64(length / time.Second),
		ProgramID:           ep.ID,
		IsMovie:             isMovie,
		Image:               airingImage(ep, isMovie),
		OriginalReleaseDate: originalRelease,
		FirstAiredDate:      firstAired,
	}

	if !isMovie && tl.Title != ep.Name {
		a.SubTitle = ep.Name
	}
	if ep.Series.ID != nil {
		a.SeriesID = *ep.Series.ID
	}
	if !isMovie {
		a.EpisodeNumber = ep.Number
		// An unknown first-aired date is never in the past.
		if firstAired != nil && firstAired.Before(now) {
			a.IsPreviouslyShown = true
		} else {
			a.IsNew = true
		}
	}

	if isMovie {
		a.AddCategory(models.CategoryMovie)
	} else {
		a.AddCategory(models.CategorySeries)
	}
	a.AddCategory(ep.Genre)
	a.AddCategory(ep.SubGenre)
	for _, bucket := range genres.Match(ep.Genre, ep.SubGenre, rec.Category) {
		a.AddCategory(bucket)
	}

	a.AddRating(models.Rating{Value: ep.Rating})
	return a, nil
}

func airingImage(ep *episode, isMovie bool) string {
	if isMovie {
		if p := ep.Poster.path(); p != nil {
			return *p
		}
	}
	var tile *imageRef
	if ep.Series != nil {
		tile = ep.Series.Tile
	}
	p := tile.path()
	if p == nil {
		return ""
	}
	return tileRewriter.Replace(*p)
}

func clipReleaseDate(c *clip) *string {
	if c == nil {
		return nil
	}
	return c.OriginalReleaseDate
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseTime accepts the timestamp shapes the vendor emits. Values without
// a zone are taken as UTC.
func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func parseOptionalTime(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
