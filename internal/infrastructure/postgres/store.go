// Package postgres implements the account store and notified-post ledger
// on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bsky-notifier/internal/domain"
)

// Store is the PostgreSQL implementation of domain.AccountStore and
// domain.Ledger.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a postgres Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS monitored_accounts (
			did          TEXT PRIMARY KEY,
			handle       TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			avatar_url   TEXT NOT NULL DEFAULT '',
			is_active    BOOLEAN NOT NULL DEFAULT TRUE,
			last_check   TIMESTAMPTZ,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS notification_preferences (
			account_did TEXT NOT NULL REFERENCES monitored_accounts(did) ON DELETE CASCADE,
			channel     TEXT NOT NULL,
			enabled     BOOLEAN NOT NULL,
			PRIMARY KEY (account_did, channel)
		);
		CREATE TABLE IF NOT EXISTS notified_posts (
			account_did TEXT NOT NULL,
			post_uri    TEXT NOT NULL,
			notified_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (account_did, post_uri)
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// --- domain.AccountStore ---

// Create inserts the account and its preference rows in one transaction.
func (s *Store) Create(ctx context.Context, account *domain.Account) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO monitored_accounts (did, handle, display_name, avatar_url, is_active, last_check)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, account.DID, account.Handle, account.DisplayName, account.AvatarURL, account.IsActive, account.LastCheck)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateAccount
		}
		return fmt.Errorf("insert account: %w", err)
	}

	for channel, enabled := range account.Preferences {
		if _, err := tx.Exec(ctx, `
			INSERT INTO notification_preferences (account_did, channel, enabled)
			VALUES ($1, $2, $3)
		`, account.DID, string(channel), enabled); err != nil {
			return fmt.Errorf("insert preference %s: %w", channel, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByDID fetches an account by primary key.
func (s *Store) GetByDID(ctx context.Context, did string) (*domain.Account, error) {
	return s.getBy(ctx, "did", did)
}

// GetByHandle fetches an account by handle.
func (s *Store) GetByHandle(ctx context.Context, handle string) (*domain.Account, error) {
	return s.getBy(ctx, "handle", handle)
}

func (s *Store) getBy(ctx context.Context, column, value string) (*domain.Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT did, handle, display_name, avatar_url, is_active, last_check, created_at, updated_at
		FROM monitored_accounts WHERE `+column+` = $1
	`, value)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := s.loadPreferences(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// List returns all accounts with preferences.
func (s *Store) List(ctx context.Context) ([]*domain.Account, error) {
	return s.list(ctx, false)
}

// ListActive returns accounts with the active flag set.
func (s *Store) ListActive(ctx context.Context) ([]*domain.Account, error) {
	return s.list(ctx, true)
}

func (s *Store) list(ctx context.Context, activeOnly bool) ([]*domain.Account, error) {
	query := `
		SELECT did, handle, display_name, avatar_url, is_active, last_check, created_at, updated_at
		FROM monitored_accounts
	`
	if activeOnly {
		query += " WHERE is_active"
	}
	query += " ORDER BY created_at"

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	for _, account := range accounts {
		if err := s.loadPreferences(ctx, account); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

// Delete removes the account, its preferences (FK cascade) and its ledger rows.
func (s *Store) Delete(ctx context.Context, did string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM monitored_accounts WHERE did = $1`, did)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM notified_posts WHERE account_did = $1`, did); err != nil {
		return fmt.Errorf("delete ledger rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SetActive flips the monitoring flag.
func (s *Store) SetActive(ctx context.Context, did string, active bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE monitored_accounts SET is_active = $1, updated_at = now() WHERE did = $2
	`, active, did)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateLastCheck advances the poll cutoff.
func (s *Store) UpdateLastCheck(ctx context.Context, did string, t time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE monitored_accounts SET last_check = $1, updated_at = now() WHERE did = $2
	`, t, did)
	if err != nil {
		return fmt.Errorf("update last check: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpsertPreferences merges the given channels into the preference set.
func (s *Store) UpsertPreferences(ctx context.Context, did string, prefs map[domain.ChannelType]bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for channel, enabled := range prefs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO notification_preferences (account_did, channel, enabled)
			VALUES ($1, $2, $3)
			ON CONFLICT (account_did, channel) DO UPDATE SET enabled = EXCLUDED.enabled
		`, did, string(channel), enabled); err != nil {
			return fmt.Errorf("upsert preference %s: %w", channel, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// --- domain.Ledger ---

// IsNotified reports whether the pair is already recorded.
func (s *Store) IsNotified(ctx context.Context, did, postURI string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM notified_posts WHERE account_did = $1 AND post_uri = $2)
	`, did, postURI).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ledger lookup: %w", err)
	}
	return exists, nil
}

// MarkNotified records the pair. Returns false when it was already present.
func (s *Store) MarkNotified(ctx context.Context, did, postURI string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO notified_posts (account_did, post_uri) VALUES ($1, $2)
		ON CONFLICT (account_did, post_uri) DO NOTHING
	`, did, postURI)
	if err != nil {
		return false, fmt.Errorf("mark notified: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteForAccount removes all ledger rows for an account.
func (s *Store) DeleteForAccount(ctx context.Context, did string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM notified_posts WHERE account_did = $1`, did); err != nil {
		return fmt.Errorf("delete ledger rows: %w", err)
	}
	return nil
}

// --- helpers ---

func (s *Store) loadPreferences(ctx context.Context, account *domain.Account) error {
	rows, err := s.pool.Query(ctx, `
		SELECT channel, enabled FROM notification_preferences WHERE account_did = $1
	`, account.DID)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}
	defer rows.Close()

	account.Preferences = make(map[domain.ChannelType]bool)
	for rows.Next() {
		var channel string
		var enabled bool
		if err := rows.Scan(&channel, &enabled); err != nil {
			return fmt.Errorf("scan preference: %w", err)
		}
		account.Preferences[domain.ChannelType(channel)] = enabled
	}
	return rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAccount(row scannable) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.DID, &a.Handle, &a.DisplayName, &a.AvatarURL,
		&a.IsActive, &a.LastCheck, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}

// isUniqueViolation reports whether err is a 23505 unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
