// Package bluesky implements the feed client against the public
// (unauthenticated) Bluesky read API.
package bluesky

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/rs/zerolog/log"

	"bsky-notifier/internal/domain"
)

const (
	// maxAttempts bounds the retry loop for transient failures.
	maxAttempts = 5
	// defaultFeedLimit is how many posts to request when no limit is configured.
	defaultFeedLimit = 20
)

// Client calls the app.bsky.* XRPC read endpoints.
type Client struct {
	apiBase    string
	feedLimit  int
	httpClient *http.Client
}

// New creates a Client against the given API base URL
// (e.g. "https://public.api.bsky.app").
func New(apiBase string, feedLimit int) *Client {
	if feedLimit <= 0 {
		feedLimit = defaultFeedLimit
	}
	return &Client{
		apiBase:    strings.TrimSuffix(apiBase, "/"),
		feedLimit:  feedLimit,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// profileResponse mirrors app.bsky.actor.getProfile.
type profileResponse struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
	Description string `json:"description"`
}

// feedResponse mirrors app.bsky.feed.getAuthorFeed.
type feedResponse struct {
	Feed []struct {
		Post struct {
			URI    string `json:"uri"`
			Author struct {
				Handle string `json:"handle"`
			} `json:"author"`
			Record struct {
				Text string `json:"text"`
			} `json:"record"`
			IndexedAt string `json:"indexedAt"`
		} `json:"post"`
	} `json:"feed"`
}

// GetProfile fetches profile data for a handle. An unknown handle surfaces
// as domain.ErrProfileNotFound immediately, without retries.
func (c *Client) GetProfile(ctx context.Context, handle string) (*domain.Profile, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")

	endpoint := c.apiBase + "/xrpc/app.bsky.actor.getProfile?actor=" + url.QueryEscape(handle)

	var resp profileResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("get profile %q: %w", handle, err)
	}

	return &domain.Profile{
		DID:         resp.DID,
		Handle:      resp.Handle,
		DisplayName: resp.DisplayName,
		AvatarURL:   resp.Avatar,
		Description: resp.Description,
	}, nil
}

// RecentPosts fetches the author feed for a handle, most-recent-first as the
// API returns it. Entries with an unparseable indexedAt are skipped.
func (c *Client) RecentPosts(ctx context.Context, handle string) ([]domain.Post, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")

	endpoint := c.apiBase + "/xrpc/app.bsky.feed.getAuthorFeed?actor=" +
		url.QueryEscape(handle) + "&limit=" + strconv.Itoa(c.feedLimit)

	var resp feedResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("get author feed %q: %w", handle, err)
	}

	posts := make([]domain.Post, 0, len(resp.Feed))
	for _, item := range resp.Feed {
		indexedAt, err := time.Parse(time.RFC3339, item.Post.IndexedAt)
		if err != nil {
			log.Warn().
				Str("handle", handle).
				Str("uri", item.Post.URI).
				Str("indexed_at", item.Post.IndexedAt).
				Msg("skipping post with malformed indexedAt")
			continue
		}
		posts = append(posts, domain.Post{
			URI:          item.Post.URI,
			IndexedAt:    indexedAt,
			AuthorHandle: item.Post.Author.Handle,
			Text:         item.Post.Record.Text,
		})
	}
	return posts, nil
}

// getJSON performs a GET with bounded exponential backoff. 400/404 responses
// are permanent (unknown actor) and returned as domain.ErrProfileNotFound.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("Accept", "application/json")

			start := time.Now()
			resp, err := c.httpClient.Do(req)
			if err != nil {
				log.Warn().
					Str("endpoint", endpoint).
					Dur("duration", time.Since(start)).
					Err(err).
					Msg("bluesky request failed, will retry")
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
				// XRPC reports unknown actors as 400 InvalidRequest.
				return retry.Unrecoverable(domain.ErrProfileNotFound)
			case resp.StatusCode != http.StatusOK:
				log.Warn().
					Str("endpoint", endpoint).
					Int("status", resp.StatusCode).
					Msg("bluesky returned non-OK status, will retry")
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
			}
			return nil
		},
		retry.Attempts(maxAttempts),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(2*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Uint("attempt", n).Err(err).Msg("retrying bluesky request")
		}),
	)
}
