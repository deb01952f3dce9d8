package pluto

import (
	"crypto/md5"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/voyagen/plutotv/internal/models"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func newsRecord() channelRecord {
	return channelRecord{
		Slug:          "news1",
		IsStitched:    true,
		Number:        101,
		Name:          "News One",
		Hash:          "abc",
		Summary:       strPtr("Line1\nLine2 \"quoted\""),
		Category:      "News",
		FeaturedImage: &imageRef{Path: strPtr("http://x/img?w=1600&h=900")},
		ColorLogoPNG:  &imageRef{Path: strPtr("http://x/logo.png")},
		Stitched:      &stitched{URLs: []stitchedURL{{URL: "http://stream/x?old=1"}}},
	}
}

func TestInclude(t *testing.T) {
	tests := []struct {
		slug     string
		stitched bool
		want     bool
	}{
		{"news1", true, true},
		{"news1", false, false},
		{"announcement", true, false},
		{"announcements-2024", true, false},
		{"privacy-policy", true, false},
		{"privacy-policy-us", true, false},
		{"my-announcement", true, true},
	}
	for _, tt := range tests {
		rec := channelRecord{Slug: tt.slug, IsStitched: tt.stitched}
		if got := include(&rec); got != tt.want {
			t.Errorf("include(%q, stitched=%v) = %v, want %v", tt.slug, tt.stitched, got, tt.want)
		}
	}
}

func TestNormalizeChannel(t *testing.T) {
	rec := newsRecord()
	got, err := normalizeChannel(&rec)
	if err != nil {
		t.Fatalf("normalizeChannel: %v", err)
	}

	base, query, ok := strings.Cut(got.StreamURL, "?")
	if !ok || base != "http://stream/x" {
		t.Errorf("StreamURL = %q, want http://stream/x?...", got.StreamURL)
	}
	if strings.Contains(query, "old=1") {
		t.Errorf("original query kept: %q", query)
	}

	want := models.Channel{
		ID:          "news1",
		Name:        "News One",
		Number:      101,
		Title:       "News One",
		CallSign:    "abc",
		Description: "Line1 Line2 quoted",
		Logo:        strPtr("http://x/logo.png"),
		ChannelArt:  "http://x/img?w=1000&h=562",
		Category:    "News",
		StreamURL:   got.StreamURL,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("channel mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeChannel_NoLogo(t *testing.T) {
	rec := newsRecord()
	rec.ColorLogoPNG = nil
	got, err := normalizeChannel(&rec)
	if err != nil {
		t.Fatalf("normalizeChannel: %v", err)
	}
	if got.Logo != nil {
		t.Errorf("Logo = %q, want nil", *got.Logo)
	}
}

func TestNormalizeChannel_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*channelRecord)
	}{
		{"no summary", func(r *channelRecord) { r.Summary = nil }},
		{"no featured image", func(r *channelRecord) { r.FeaturedImage = nil }},
		{"no featured image path", func(r *channelRecord) { r.FeaturedImage = &imageRef{} }},
		{"no stitched", func(r *channelRecord) { r.Stitched = nil }},
		{"no stitched urls", func(r *channelRecord) { r.Stitched = &stitched{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newsRecord()
			tt.mutate(&rec)
			if _, err := normalizeChannel(&rec); !errors.Is(err, ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestCleanDescription(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"a\r\nb\rc\nd", "a b c d"},
		{"a\n\nb", "a  b"},
		{`say "hi"`, "say hi"},
		{"curly “quotes” here", "curly quotes here"},
		{"it's fine", "it's fine"},
	}
	for _, tt := range tests {
		if got := cleanDescription(tt.in); got != tt.want {
			t.Errorf("cleanDescription(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChannelArt(t *testing.T) {
	in := "http://x/img?w=1600&h=900"
	once := channelArt(in)
	if once != "http://x/img?w=1000&h=562" {
		t.Fatalf("channelArt = %q", once)
	}
	if twice := channelArt(once); twice != once {
		t.Errorf("second rewrite changed %q to %q", once, twice)
	}
	if got := channelArt("http://x/img.png"); got != "http://x/img.png" {
		t.Errorf("URL without size params changed: %q", got)
	}
}

func TestBuildStreamURL(t *testing.T) {
	got, err := buildStreamURL("http://stream/x/master.m3u8?old=1&b=2")
	if err != nil {
		t.Fatalf("buildStreamURL: %v", err)
	}
	base, query, _ := strings.Cut(got, "?")
	if base != "http://stream/x/master.m3u8" {
		t.Errorf("base = %q", base)
	}

	var keys []string
	for _, kv := range strings.Split(query, "&") {
		k, _, _ := strings.Cut(kv, "=")
		keys = append(keys, k)
	}
	wantKeys := []string{
		"advertisingId", "appName", "appVersion", "appStoreUrl", "architecture",
		"buildVersion", "clientTime", "deviceDNT", "deviceId", "deviceMake",
		"deviceModel", "deviceType", "deviceVersion", "includeExtendedEvents",
		"sid", "userId", "serverSideAds",
	}
	if diff := cmp.Diff(wantKeys, keys); diff != "" {
		t.Errorf("parameter order (-want +got):\n%s", diff)
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	fixed := map[string]string{
		"advertisingId": "", "appName": "web", "appVersion": "unknown",
		"appStoreUrl": "", "architecture": "", "buildVersion": "",
		"clientTime": "0", "deviceDNT": "0", "deviceMake": "Chrome",
		"deviceModel": "web", "deviceType": "web", "deviceVersion": "unknown",
		"includeExtendedEvents": "false", "userId": "", "serverSideAds": "true",
	}
	for k, want := range fixed {
		if got := values.Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}

	deviceID, err := uuid.Parse(values.Get("deviceId"))
	if err != nil || deviceID.Version() != 1 {
		t.Errorf("deviceId = %q (err %v), want a version 1 UUID", values.Get("deviceId"), err)
	}
	sid, err := uuid.Parse(values.Get("sid"))
	if err != nil || sid.Version() != 4 {
		t.Errorf("sid = %q (err %v), want a version 4 UUID", values.Get("sid"), err)
	}

	again, _ := buildStreamURL("http://stream/x/master.m3u8")
	if again == got {
		t.Error("expected fresh ids on every call")
	}
}

func TestAiringID(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := airingID("news1", start)
	if a != airingID("news1", start) {
		t.Error("airingID is not deterministic")
	}
	if want := fmt.Sprintf("%x", md5.Sum([]byte("news11704067200"))); a != want {
		t.Errorf("airingID = %q, want %q", a, want)
	}
	if a == airingID("news1", start.Add(time.Second)) {
		t.Error("different start produced the same id")
	}
	if a == airingID("news2", start) {
		t.Error("different channel produced the same id")
	}
	// Same instant in another zone is the same slot.
	if a != airingID("news1", start.In(time.FixedZone("X", 3600))) {
		t.Error("zone changed the id")
	}
}

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func seriesTimeline() timeline {
	return timeline{
		ID:    "t1",
		Start: "2024-01-01T00:00:00Z",
		Stop:  "2024-01-01T00:30:00Z",
		Title: "Morning Report",
		Episode: &episode{
			ID:          "ep1",
			Name:        "January 1st",
			Number:      intPtr(12),
			Description: "Headlines.",
			Genre:       "Kids' TV",
			SubGenre:    "Cartoons",
			Rating:      "TV-Y",
			FirstAired:  strPtr("2023-12-31T00:00:00.000Z"),
			Clip:        &clip{OriginalReleaseDate: strPtr("2023-12-30T00:00:00.000Z")},
			Series: &series{
				ID:   strPtr("s1"),
				Type: "tv",
				Tile: &imageRef{Path: strPtr("http://x/tile.jpg?w=660&h=660")},
			},
		},
	}
}

func movieTimeline() timeline {
	return timeline{
		ID:    "t2",
		Start: "2024-01-01T00:00:00Z",
		Stop:  "2024-01-01T00:30:00Z",
		Title: "Detective Story",
		Episode: &episode{
			ID:         "ep2",
			Name:       "Detective Story (1951)",
			Number:     intPtr(0),
			Genre:      "Crime",
			SubGenre:   "Film Noir",
			Rating:     "PG",
			FirstAired: strPtr("2020-01-01T00:00:00Z"),
			Poster:     &imageRef{Path: strPtr("http://x/poster.jpg")},
			Series: &series{
				Type: "film",
				Tile: &imageRef{Path: strPtr("http://x/tile.jpg?w=660&h=660")},
			},
		},
	}
}

func TestNormalizeAiring_Series(t *testing.T) {
	rec := newsRecord()
	tl := seriesTimeline()
	got, err := normalizeAiring(&rec, &tl, DefaultGenres(), testNow)
	if err != nil {
		t.Fatalf("normalizeAiring: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	firstAired := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	released := time.Date(2023, 12, 30, 0, 0, 0, 0, time.UTC)
	want := models.Airing{
		ID:                  airingID("news1", start),
		ChannelID:           "news1",
		Source:              "pluto",
		Title:               "Morning Report",
		SubTitle:            "January 1st",
		Description:         "Headlines.",
		StartTime:           start,
		StopTime:            start.Add(30 * time.Minute),
		Length:              1800,
		ProgramID:           "ep1",
		SeriesID:            "s1",
		EpisodeNumber:       intPtr(12),
		Image:               "http://x/tile.jpg?w=900&h=900",
		OriginalReleaseDate: &released,
		FirstAiredDate:      &firstAired,
		IsPreviouslyShown:   true,
		Categories:          []string{"Series", "Kids' TV", "Cartoons", "Children"},
		Ratings:             []models.Rating{{Value: "TV-Y"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("airing mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeAiring_Movie(t *testing.T) {
	rec := newsRecord()
	rec.Category = "Movies"
	tl := movieTimeline()
	got, err := normalizeAiring(&rec, &tl, DefaultGenres(), testNow)
	if err != nil {
		t.Fatalf("normalizeAiring: %v", err)
	}
	if !got.IsMovie {
		t.Error("IsMovie = false")
	}
	if got.Length != 1800 {
		t.Errorf("Length = %d, want 1800", got.Length)
	}
	if got.SubTitle != "" || got.EpisodeNumber != nil || got.IsNew || got.IsPreviouslyShown {
		t.Errorf("movie carries series-only fields: %+v", got)
	}
	if got.SeriesID != "" {
		t.Errorf("SeriesID = %q, want empty", got.SeriesID)
	}
	if got.Image != "http://x/poster.jpg" {
		t.Errorf("Image = %q, want poster", got.Image)
	}
	if diff := cmp.Diff([]string{"Movie", "Crime", "Film Noir", "Drama"}, got.Categories); diff != "" {
		t.Errorf("categories (-want +got):\n%s", diff)
	}
}

func TestNormalizeAiring_MovieWithoutPoster(t *testing.T) {
	rec := newsRecord()
	tl := movieTimeline()
	tl.Episode.Poster = nil
	got, err := normalizeAiring(&rec, &tl, DefaultGenres(), testNow)
	if err != nil {
		t.Fatalf("normalizeAiring: %v", err)
	}
	if got.Image != "http://x/tile.jpg?w=900&h=900" {
		t.Errorf("Image = %q, want rewritten tile", got.Image)
	}
}

func TestNormalizeAiring_NoTile(t *testing.T) {
	rec := newsRecord()
	tl := seriesTimeline()
	tl.Episode.Series.Tile = nil
	got, err := normalizeAiring(&rec, &tl, DefaultGenres(), testNow)
	if err != nil {
		t.Fatalf("normalizeAiring: %v", err)
	}
	if got.Image != "" {
		t.Errorf("Image = %q, want empty", got.Image)
	}
}

func TestNormalizeAiring_NewVersusPreviouslyShown(t *testing.T) {
	tests := []struct {
		name       string
		firstAired *string
		wantNew    bool
	}{
		{"aired before now", strPtr("2023-06-01T00:00:00Z"), false},
		{"airs after now", strPtr("2024-06-01T00:00:00Z"), true},
		{"unknown first aired", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newsRecord()
			tl := seriesTimeline()
			tl.Episode.FirstAired = tt.firstAired
			got, err := normalizeAiring(&rec, &tl, DefaultGenres(), testNow)
			if err != nil {
				t.Fatalf("normalizeAiring: %v", err)
			}
			if got.IsNew != tt.wantNew || got.IsPreviouslyShown == tt.wantNew {
				t.Errorf("IsNew=%v IsPreviouslyShown=%v, want IsNew=%v", got.IsNew, got.IsPreviouslyShown, tt.wantNew)
			}
			if tt.firstAired == nil && got.FirstAiredDate != nil {
				t.Errorf("FirstAiredDate = %v, want nil", got.FirstAiredDate)
			}
		})
	}
}

func TestNormalizeAiring_OptionalFields(t *testing.T) {
	rec := newsRecord()
	rec.Category = "Sports"
	tl := seriesTimeline()
	tl.Title = tl.Episode.Name
	tl.Episode.Series.ID = nil
	tl.Episode.Clip = nil
	tl.Episode.Genre = ""
	tl.Episode.SubGenre = ""
	got, err := normalizeAiring(&rec, &tl, DefaultGenres(), testNow)
	if err != nil {
		t.Fatalf("normalizeAiring: %v", err)
	}
	if got.SubTitle != "" {
		t.Errorf("SubTitle = %q, want empty when title equals episode name", got.SubTitle)
	}
	if got.SeriesID != "" {
		t.Errorf("SeriesID = %q, want empty", got.SeriesID)
	}
	if got.OriginalReleaseDate != nil {
		t.Errorf("OriginalReleaseDate = %v, want nil", got.OriginalReleaseDate)
	}
	// Blank genre and sub-genre collapse into one blank category; the
	// channel category still selects a bucket.
	if diff := cmp.Diff([]string{"Series", "", "Sports"}, got.Categories); diff != "" {
		t.Errorf("categories (-want +got):\n%s", diff)
	}
}

func TestNormalizeAiring_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*timeline)
	}{
		{"no episode", func(tl *timeline) { tl.Episode = nil }},
		{"no series", func(tl *timeline) { tl.Episode.Series = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newsRecord()
			tl := seriesTimeline()
			tt.mutate(&tl)
			if _, err := normalizeAiring(&rec, &tl, DefaultGenres(), testNow); !errors.Is(err, ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
		})
	}

	rec := newsRecord()
	tl := seriesTimeline()
	tl.Start = "yesterday"
	if _, err := normalizeAiring(&rec, &tl, DefaultGenres(), testNow); err == nil {
		t.Error("expected error for unparsable start")
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{
		"2024-01-01T00:00:00Z",
		"2024-01-01T00:00:00.000Z",
		"2024-01-01T01:00:00+01:00",
		"2024-01-01T01:00:00.000+0100",
		"2024-01-01 00:00:00",
		"2024-01-01",
	} {
		got, err := parseTime(s)
		if err != nil {
			t.Errorf("parseTime(%q): %v", s, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseTime(%q) = %v, want %v", s, got, want)
		}
	}
}
