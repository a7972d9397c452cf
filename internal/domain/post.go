package domain

import "time"

// Profile is the subset of a Bluesky actor profile the service cares about.
type Profile struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Description string `json:"description,omitempty"`
}

// Post is one entry of an author feed.
type Post struct {
	// URI is the AT-URI of the post
	// (e.g. at://did:plc:abc/app.bsky.feed.post/3l3qo2vuowo2b).
	URI string

	// IndexedAt is when the network indexed the post. The new-post filter
	// compares this against the account's last-check cutoff.
	IndexedAt time.Time

	// AuthorHandle is the handle of the post's author.
	AuthorHandle string

	// Text is the post body. Embedded media is ignored.
	Text string
}

// Notification is the rendered title/message/URL triple handed to channels.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	URL     string `json:"url"`

	AccountDID string    `json:"account_did"`
	PostURI    string    `json:"post_uri"`
	IndexedAt  time.Time `json:"indexed_at"`
}
