package models

// Category is a channel category of a provider with its channel count.
type Category struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Channels int    `json:"channels"`
}
