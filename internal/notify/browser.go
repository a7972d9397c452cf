package notify

import (
	"context"
	"fmt"

	"bsky-notifier/internal/domain"
)

// Broadcaster pushes a notification to connected browser clients.
// The SSE hub in transport/http implements it.
type Broadcaster interface {
	Broadcast(n *domain.Notification) int
}

// BrowserChannel delivers notifications to browsers connected to the SSE
// stream endpoint. Delivery counts as attempted even with zero listeners:
// the stream is a live feed, not a mailbox.
type BrowserChannel struct {
	hub Broadcaster
}

// NewBrowserChannel creates the SSE-backed browser channel.
func NewBrowserChannel(hub Broadcaster) *BrowserChannel {
	return &BrowserChannel{hub: hub}
}

func (*BrowserChannel) Type() domain.ChannelType { return domain.ChannelBrowser }

func (b *BrowserChannel) Send(_ context.Context, n *domain.Notification) error {
	if b.hub == nil {
		return fmt.Errorf("browser channel has no hub")
	}
	b.hub.Broadcast(n)
	return nil
}
