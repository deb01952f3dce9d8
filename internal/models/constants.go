package models

// Sync kinds.
const (
	SyncKindChannels = "channels"
	SyncKindGuide    = "guide"
)

// Airing categories added to every airing.
const (
	CategoryMovie  = "Movie"
	CategorySeries = "Series"
)
