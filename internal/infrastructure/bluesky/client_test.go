package bluesky

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"bsky-notifier/internal/domain"
)

func TestGetProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/xrpc/app.bsky.actor.getProfile" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("actor"); got != "alice.example" {
			t.Errorf("actor = %q, want alice.example", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"did":"did:plc:abc","handle":"alice.example","displayName":"Alice","avatar":"https://cdn/a.jpg"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 20)
	// Leading @ must be stripped before the request.
	p, err := c.GetProfile(context.Background(), "@alice.example")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.DID != "did:plc:abc" || p.Handle != "alice.example" || p.DisplayName != "Alice" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestGetProfile_UnknownHandleNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"InvalidRequest"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, 20)
	_, err := c.GetProfile(context.Background(), "nobody.example")
	if !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("err = %v, want ErrProfileNotFound", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("permanent failure was retried: %d calls", n)
	}
}

func TestRecentPosts_RetriesTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"feed":[
			{"post":{"uri":"at://did:plc:abc/app.bsky.feed.post/3k1","author":{"handle":"alice.example"},"record":{"text":"newest"},"indexedAt":"2026-08-23T12:05:00Z"}},
			{"post":{"uri":"at://did:plc:abc/app.bsky.feed.post/3k0","author":{"handle":"alice.example"},"record":{"text":"older"},"indexedAt":"2026-08-23T11:00:00Z"}}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 20)
	posts, err := c.RecentPosts(context.Background(), "alice.example")
	if err != nil {
		t.Fatalf("RecentPosts: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}
	// API order (most-recent-first) must be preserved.
	if posts[0].URI != "at://did:plc:abc/app.bsky.feed.post/3k1" {
		t.Errorf("order not preserved: first post %s", posts[0].URI)
	}
	if posts[0].Text != "newest" || posts[1].Text != "older" {
		t.Errorf("unexpected texts: %q, %q", posts[0].Text, posts[1].Text)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected exactly one retry, got %d calls", calls)
	}
}

func TestRecentPosts_SkipsMalformedTimestamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"feed":[
			{"post":{"uri":"at://did:plc:abc/app.bsky.feed.post/bad","author":{"handle":"a"},"record":{"text":"x"},"indexedAt":"not-a-time"}},
			{"post":{"uri":"at://did:plc:abc/app.bsky.feed.post/ok","author":{"handle":"a"},"record":{"text":"y"},"indexedAt":"2026-08-23T10:00:00Z"}}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 20)
	posts, err := c.RecentPosts(context.Background(), "a.example")
	if err != nil {
		t.Fatalf("RecentPosts: %v", err)
	}
	if len(posts) != 1 || posts[0].URI != "at://did:plc:abc/app.bsky.feed.post/ok" {
		t.Fatalf("malformed entry not skipped: %+v", posts)
	}
}

func TestRecentPosts_FeedLimitInQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q, want 5", got)
		}
		w.Write([]byte(`{"feed":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5)
	posts, err := c.RecentPosts(context.Background(), "a.example")
	if err != nil {
		t.Fatalf("RecentPosts: %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("expected empty feed, got %d", len(posts))
	}
}
