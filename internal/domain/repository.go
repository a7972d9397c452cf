package domain

import (
	"context"
	"time"
)

// AccountStore is the port for the monitored-account registry.
// Implementations live in infrastructure/postgres and infrastructure/memory.
type AccountStore interface {
	// Create stores a new account with its preferences.
	// Returns ErrDuplicateAccount if the did or handle is already registered.
	Create(ctx context.Context, account *Account) error

	// GetByDID fetches an account by its durable key.
	GetByDID(ctx context.Context, did string) (*Account, error)

	// GetByHandle fetches an account by its (mutable) handle.
	GetByHandle(ctx context.Context, handle string) (*Account, error)

	// List returns all accounts with their preferences.
	List(ctx context.Context) ([]*Account, error)

	// ListActive returns only accounts with the active flag set.
	ListActive(ctx context.Context) ([]*Account, error)

	// Delete removes an account, cascading its preferences and ledger rows.
	Delete(ctx context.Context, did string) error

	// SetActive flips the monitoring flag without touching other data.
	SetActive(ctx context.Context, did string, active bool) error

	// UpdateLastCheck advances the poll cutoff for an account.
	UpdateLastCheck(ctx context.Context, did string, t time.Time) error

	// UpsertPreferences merges the given channel settings into the existing
	// preference set, creating rows for previously-absent channels.
	UpsertPreferences(ctx context.Context, did string, prefs map[ChannelType]bool) error
}

// Ledger is the port for the notified-post set that enforces at-most-once
// notification per (account, post).
type Ledger interface {
	// IsNotified reports whether a notification for (did, postURI) was
	// already recorded.
	IsNotified(ctx context.Context, did, postURI string) (bool, error)

	// MarkNotified records (did, postURI). Returns false if the pair was
	// already present; the call is idempotent either way.
	MarkNotified(ctx context.Context, did, postURI string) (bool, error)

	// DeleteForAccount removes all ledger rows for an account
	// (account-removal cascade).
	DeleteForAccount(ctx context.Context, did string) error
}
