// Package notify renders posts into notifications and delivers them through
// the channels enabled per account.
package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"bsky-notifier/internal/domain"
)

// Channel delivers a rendered notification over one transport. Variants are
// selected once at startup by host/config introspection.
type Channel interface {
	Type() domain.ChannelType
	Send(ctx context.Context, n *domain.Notification) error
}

// ConsoleChannel writes notifications to the log. It stands in for the
// desktop channel on headless hosts.
type ConsoleChannel struct{}

// NewConsoleChannel creates the log-backed fallback channel.
func NewConsoleChannel() *ConsoleChannel {
	return &ConsoleChannel{}
}

func (*ConsoleChannel) Type() domain.ChannelType { return domain.ChannelDesktop }

func (*ConsoleChannel) Send(_ context.Context, n *domain.Notification) error {
	log.Info().
		Str("title", n.Title).
		Str("message", n.Message).
		Str("url", n.URL).
		Msg("notification (console)")
	return nil
}
