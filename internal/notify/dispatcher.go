package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"bsky-notifier/internal/domain"
)

// EventSink receives every successfully dispatched notification for
// downstream consumers. Implemented by events.Publisher; may be nil.
type EventSink interface {
	PostDetected(ctx context.Context, n *domain.Notification)
}

// Dispatcher fans a post out to the channels enabled on its account.
type Dispatcher struct {
	channels map[domain.ChannelType]Channel
	events   EventSink
}

// NewDispatcher creates a Dispatcher over the channels constructed at
// startup. A later channel with the same type replaces an earlier one.
func NewDispatcher(channels ...Channel) *Dispatcher {
	m := make(map[domain.ChannelType]Channel, len(channels))
	for _, ch := range channels {
		m[ch.Type()] = ch
	}
	return &Dispatcher{channels: m}
}

// WithEvents attaches an optional event sink notified on successful dispatch.
func (d *Dispatcher) WithEvents(sink EventSink) *Dispatcher {
	d.events = sink
	return d
}

// Dispatch renders the post and tries every enabled channel. It returns true
// when at least one channel succeeded — only then may the caller mark the
// post in the ledger, so fully-failed posts are retried next cycle.
//
// A channel failure never prevents the remaining channels from being tried.
func (d *Dispatcher) Dispatch(ctx context.Context, account *domain.Account, post domain.Post) bool {
	n, err := Render(account, post)
	if err != nil {
		log.Warn().
			Str("did", account.DID).
			Str("uri", post.URI).
			Err(err).
			Msg("skipping post that cannot be rendered")
		return false
	}

	succeeded := 0
	for channelType, enabled := range account.Preferences {
		if !enabled {
			continue
		}
		ch, ok := d.channels[channelType]
		if !ok {
			// Enabled in preferences but not constructed at startup
			// (e.g. email credentials missing). Skipped, not fatal.
			log.Debug().
				Str("did", account.DID).
				Str("channel", string(channelType)).
				Msg("channel enabled but unavailable, skipping")
			continue
		}

		if err := ch.Send(ctx, n); err != nil {
			log.Error().
				Str("did", account.DID).
				Str("channel", string(channelType)).
				Str("uri", post.URI).
				Err(err).
				Msg("channel send failed")
			continue
		}
		succeeded++
	}

	if succeeded == 0 {
		return false
	}

	if d.events != nil {
		d.events.PostDetected(ctx, n)
	}

	log.Info().
		Str("did", account.DID).
		Str("handle", account.Handle).
		Str("uri", post.URI).
		Int("channels", succeeded).
		Msg("notification dispatched")
	return true
}
