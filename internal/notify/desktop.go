package notify

import (
	"context"

	"github.com/gen2brain/beeep"

	"bsky-notifier/internal/domain"
)

// DesktopChannel shows native desktop notifications on the host.
type DesktopChannel struct {
	appName string
}

// NewDesktopChannel creates the native desktop channel.
func NewDesktopChannel(appName string) *DesktopChannel {
	return &DesktopChannel{appName: appName}
}

func (*DesktopChannel) Type() domain.ChannelType { return domain.ChannelDesktop }

func (d *DesktopChannel) Send(_ context.Context, n *domain.Notification) error {
	beeep.AppName = d.appName
	// beeep picks the platform backend (notify-send, NSUserNotification, toast).
	return beeep.Notify(n.Title, n.Message+"\n"+n.URL, "")
}
