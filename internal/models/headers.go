package models

// PlaybackHeaders holds HTTP headers a player should send when opening a
// channel stream. Written to playlists as #EXTVLCOPT lines.
type PlaybackHeaders struct {
	Referrer  string `json:"referrer,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Origin    string `json:"origin,omitempty"`
}

// Empty reports whether no header is set.
func (h PlaybackHeaders) Empty() bool {
	return h == PlaybackHeaders{}
}
