package notify

import (
	"fmt"
	"strings"

	"bsky-notifier/internal/domain"
)

// maxMessageLen is the rune budget for the notification body.
const maxMessageLen = 200

// Render builds the title/message/URL triple for a post. It fails only when
// the post URI cannot be mapped to a canonical web URL.
func Render(account *domain.Account, post domain.Post) (*domain.Notification, error) {
	webURL, err := WebURL(post.URI, account.Handle)
	if err != nil {
		return nil, err
	}
	return &domain.Notification{
		Title:      "New post from " + account.Name(),
		Message:    truncate(post.Text, maxMessageLen),
		URL:        webURL,
		AccountDID: account.DID,
		PostURI:    post.URI,
		IndexedAt:  post.IndexedAt,
	}, nil
}

// WebURL converts an AT-URI of the form
// at://<did>/app.bsky.feed.post/<rkey> into the canonical
// https://bsky.app/profile/<handle>/post/<rkey> link.
func WebURL(atURI, handle string) (string, error) {
	rest, ok := strings.CutPrefix(atURI, "at://")
	if !ok {
		return "", fmt.Errorf("malformed post uri %q: missing at:// scheme", atURI)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", fmt.Errorf("malformed post uri %q", atURI)
	}
	if parts[1] != "app.bsky.feed.post" {
		return "", fmt.Errorf("unsupported record collection %q in uri %q", parts[1], atURI)
	}
	return "https://bsky.app/profile/" + handle + "/post/" + parts[2], nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
