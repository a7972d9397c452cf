package domain

import "time"

// ChannelType identifies a notification delivery channel.
type ChannelType string

const (
	ChannelDesktop ChannelType = "desktop"
	ChannelEmail   ChannelType = "email"
	ChannelBrowser ChannelType = "browser"
)

// KnownChannel reports whether t is a channel type the dispatcher understands.
func KnownChannel(t ChannelType) bool {
	switch t {
	case ChannelDesktop, ChannelEmail, ChannelBrowser:
		return true
	}
	return false
}

// Account is a monitored Bluesky account.
//
// DID is the durable primary key; Handle is a secondary lookup key and may
// change when the owner renames the account.
type Account struct {
	DID         string               `json:"did"`
	Handle      string               `json:"handle"`
	DisplayName string               `json:"display_name"`
	AvatarURL   string               `json:"avatar_url,omitempty"`
	IsActive    bool                 `json:"is_active"`
	LastCheck   *time.Time           `json:"last_check,omitempty"` // nil = never polled
	Preferences map[ChannelType]bool `json:"notification_preferences"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// Name returns the account's display name, falling back to the handle.
func (a *Account) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Handle
}

// DefaultPreferences are applied when an account is added without
// explicit channel settings.
func DefaultPreferences() map[ChannelType]bool {
	return map[ChannelType]bool{
		ChannelDesktop: true,
		ChannelEmail:   false,
	}
}
