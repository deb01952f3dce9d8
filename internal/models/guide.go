package models

import (
	"iter"
	"time"
)

// GuideEntry pairs a channel with its airings for a guide window.
// Airings is produced on demand and may yield an error part way through.
type GuideEntry struct {
	Channel Channel
	Airings iter.Seq2[Airing, error]
}

// Guide is the lazily produced schedule for [Start, Stop).
// Ranging over Entries performs the upstream request; a non-nil error is
// always the last value yielded.
type Guide struct {
	Start   time.Time
	Stop    time.Time
	Entries iter.Seq2[GuideEntry, error]
}
