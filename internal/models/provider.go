package models

import "time"

// ProviderInfo is the registration metadata a channel source exposes to the host.
type ProviderInfo struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	SupportsChannels bool   `json:"supports_channels"`
	SupportsGuide    bool   `json:"supports_guide"`
	ChannelsRefresh  int    `json:"channels_refresh"` // seconds
	GuideRefresh     int    `json:"guide_refresh"`    // seconds
}

// ProviderStatus is a registered provider plus its last successful syncs.
type ProviderStatus struct {
	ProviderInfo
	ChannelsSyncedAt *time.Time `json:"channels_synced_at,omitempty"`
	GuideSyncedAt    *time.Time `json:"guide_synced_at,omitempty"`
}
