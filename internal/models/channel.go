package models

import (
	"iter"

	"github.com/goccy/go-json"
)

// Channel is a single live channel exposed by a channel source.
type Channel struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Number      int     `json:"number"`
	Title       string  `json:"title"`
	CallSign    string  `json:"call_sign"`
	Description string  `json:"description"`
	Logo        *string `json:"logo,omitempty"`
	ChannelArt  string  `json:"channel_art"`
	Category    string  `json:"category"`
	StreamURL   string  `json:"stream_url"`
	Provider    string  `json:"provider,omitempty"` // populated by read queries
}

// Channels is an ordered collection of channels keyed by channel id.
// Setting an id that is already present replaces the channel in place.
type Channels struct {
	ids  []string
	byID map[string]Channel
}

// NewChannels returns an empty collection.
func NewChannels() *Channels {
	return &Channels{byID: make(map[string]Channel)}
}

// Set adds ch under ch.ID, replacing any previous channel with that id.
func (c *Channels) Set(ch Channel) {
	if _, ok := c.byID[ch.ID]; !ok {
		c.ids = append(c.ids, ch.ID)
	}
	c.byID[ch.ID] = ch
}

// Get returns the channel stored under id.
func (c *Channels) Get(id string) (Channel, bool) {
	ch, ok := c.byID[id]
	return ch, ok
}

// Len returns the number of channels.
func (c *Channels) Len() int {
	return len(c.ids)
}

// IDs returns channel ids in insertion order.
func (c *Channels) IDs() []string {
	return append([]string(nil), c.ids...)
}

// All iterates channels in insertion order.
func (c *Channels) All() iter.Seq2[string, Channel] {
	return func(yield func(string, Channel) bool) {
		for _, id := range c.ids {
			if !yield(id, c.byID[id]) {
				return
			}
		}
	}
}

// List returns the channels in insertion order.
func (c *Channels) List() []Channel {
	out := make([]Channel, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id])
	}
	return out
}

// MarshalJSON encodes the collection as an ordered array.
func (c *Channels) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.List())
}
