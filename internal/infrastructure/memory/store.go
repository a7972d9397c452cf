// Package memory provides in-memory implementations of the account store and
// ledger. Used by tests and for running the service without a database
// (state is lost on restart).
package memory

import (
	"context"
	"sync"
	"time"

	"bsky-notifier/internal/domain"
)

// AccountStore is an in-memory domain.AccountStore.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account // keyed by did
}

// NewAccountStore creates an empty in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]*domain.Account)}
}

func (s *AccountStore) Create(_ context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.DID]; ok {
		return domain.ErrDuplicateAccount
	}
	for _, existing := range s.accounts {
		if existing.Handle == account.Handle {
			return domain.ErrDuplicateAccount
		}
	}

	c := clone(account)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = c.CreatedAt
	s.accounts[account.DID] = c
	return nil
}

func (s *AccountStore) GetByDID(_ context.Context, did string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.accounts[did]; ok {
		return clone(a), nil
	}
	return nil, domain.ErrNotFound
}

func (s *AccountStore) GetByHandle(_ context.Context, handle string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Handle == handle {
			return clone(a), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *AccountStore) List(_ context.Context) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, clone(a))
	}
	return out, nil
}

func (s *AccountStore) ListActive(ctx context.Context) ([]*domain.Account, error) {
	all, _ := s.List(ctx)
	active := all[:0]
	for _, a := range all {
		if a.IsActive {
			active = append(active, a)
		}
	}
	return active, nil
}

func (s *AccountStore) Delete(_ context.Context, did string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[did]; !ok {
		return domain.ErrNotFound
	}
	delete(s.accounts, did)
	return nil
}

func (s *AccountStore) SetActive(_ context.Context, did string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[did]
	if !ok {
		return domain.ErrNotFound
	}
	a.IsActive = active
	a.UpdatedAt = time.Now()
	return nil
}

func (s *AccountStore) UpdateLastCheck(_ context.Context, did string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[did]
	if !ok {
		return domain.ErrNotFound
	}
	cutoff := t
	a.LastCheck = &cutoff
	a.UpdatedAt = time.Now()
	return nil
}

func (s *AccountStore) UpsertPreferences(_ context.Context, did string, prefs map[domain.ChannelType]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[did]
	if !ok {
		return domain.ErrNotFound
	}
	if a.Preferences == nil {
		a.Preferences = make(map[domain.ChannelType]bool)
	}
	for channel, enabled := range prefs {
		a.Preferences[channel] = enabled
	}
	a.UpdatedAt = time.Now()
	return nil
}

func clone(a *domain.Account) *domain.Account {
	c := *a
	if a.LastCheck != nil {
		t := *a.LastCheck
		c.LastCheck = &t
	}
	c.Preferences = make(map[domain.ChannelType]bool, len(a.Preferences))
	for k, v := range a.Preferences {
		c.Preferences[k] = v
	}
	return &c
}

// Ledger is an in-memory domain.Ledger.
type Ledger struct {
	mu   sync.Mutex
	seen map[string]map[string]time.Time // did -> post uri -> notified at
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{seen: make(map[string]map[string]time.Time)}
}

func (l *Ledger) IsNotified(_ context.Context, did, postURI string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[did][postURI]
	return ok, nil
}

func (l *Ledger) MarkNotified(_ context.Context, did, postURI string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[did][postURI]; ok {
		return false, nil
	}
	if l.seen[did] == nil {
		l.seen[did] = make(map[string]time.Time)
	}
	l.seen[did][postURI] = time.Now()
	return true, nil
}

func (l *Ledger) DeleteForAccount(_ context.Context, did string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.seen, did)
	return nil
}
