package models

import (
	"slices"
	"time"
)

// Rating is a content rating such as "TV-14".
type Rating struct {
	Value string `json:"value"`
}

// Airing is one scheduled program instance on a channel.
type Airing struct {
	ID                  string     `json:"id"`
	ChannelID           string     `json:"channel_id"`
	Source              string     `json:"source"`
	Title               string     `json:"title"`
	SubTitle            string     `json:"sub_title,omitempty"`
	Description         string     `json:"description"`
	StartTime           time.Time  `json:"start_time"`
	StopTime            time.Time  `json:"stop_time"`
	Length              int64      `json:"length"` // seconds
	ProgramID           string     `json:"program_id"`
	SeriesID            string     `json:"series_id,omitempty"`
	EpisodeNumber       *int       `json:"episode_number,omitempty"`
	IsMovie             bool       `json:"is_movie"`
	Image               string     `json:"image"`
	OriginalReleaseDate *time.Time `json:"original_release_date,omitempty"`
	FirstAiredDate      *time.Time `json:"first_aired_date,omitempty"`
	IsNew               bool       `json:"is_new"`
	IsPreviouslyShown   bool       `json:"is_previously_shown"`
	Categories          []string   `json:"categories"`
	Ratings             []Rating   `json:"ratings"`
}

// AddCategory appends category unless it is already present.
func (a *Airing) AddCategory(category string) {
	if slices.Contains(a.Categories, category) {
		return
	}
	a.Categories = append(a.Categories, category)
}

// AddRating appends r unless an equal rating is already present.
func (a *Airing) AddRating(r Rating) {
	if slices.Contains(a.Ratings, r) {
		return
	}
	a.Ratings = append(a.Ratings, r)
}

// HasCategory reports whether category was added to the airing.
func (a *Airing) HasCategory(category string) bool {
	return slices.Contains(a.Categories, category)
}
