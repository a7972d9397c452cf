// Package application holds the account-management use-cases consumed by the
// HTTP transport.
package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"bsky-notifier/internal/domain"
)

// ProfileLookup resolves a handle against the remote API.
// Implemented by the bluesky feed client.
type ProfileLookup interface {
	GetProfile(ctx context.Context, handle string) (*domain.Profile, error)
}

// Service holds the account registry use-cases.
type Service struct {
	store    domain.AccountStore
	ledger   domain.Ledger
	profiles ProfileLookup
}

// NewService creates the account Service.
func NewService(store domain.AccountStore, ledger domain.Ledger, profiles ProfileLookup) *Service {
	return &Service{store: store, ledger: ledger, profiles: profiles}
}

// List returns all monitored accounts with their preferences.
func (s *Service) List(ctx context.Context) ([]*domain.Account, error) {
	return s.store.List(ctx)
}

// Add verifies the handle against the remote API and registers it for
// monitoring with the supplied (or default) preferences and a nil last-check,
// so the first poll cycle establishes a baseline instead of replaying history.
//
// Returns domain.ErrProfileNotFound for unknown handles and
// domain.ErrDuplicateAccount when the did or handle is already monitored.
func (s *Service) Add(ctx context.Context, handle string, prefs map[domain.ChannelType]bool) (*domain.Account, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return nil, fmt.Errorf("%w: empty handle", domain.ErrInvalidHandle)
	}

	profile, err := s.profiles.GetProfile(ctx, handle)
	if err != nil {
		return nil, err
	}

	if prefs == nil {
		prefs = domain.DefaultPreferences()
	} else {
		if err := validateChannels(prefs); err != nil {
			return nil, err
		}
	}

	account := &domain.Account{
		DID:         profile.DID,
		Handle:      profile.Handle,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
		IsActive:    true,
		LastCheck:   nil,
		Preferences: prefs,
	}
	if err := s.store.Create(ctx, account); err != nil {
		return nil, err
	}

	log.Info().
		Str("did", account.DID).
		Str("handle", account.Handle).
		Msg("account added to monitoring")
	return account, nil
}

// Remove deletes the account, cascading preferences and ledger rows.
func (s *Service) Remove(ctx context.Context, handle string) error {
	account, err := s.byHandle(ctx, handle)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, account.DID); err != nil {
		return err
	}
	if err := s.ledger.DeleteForAccount(ctx, account.DID); err != nil {
		// The account is already gone; orphaned ledger rows are harmless
		// but worth noting.
		log.Warn().Str("did", account.DID).Err(err).Msg("ledger cascade failed")
	}

	log.Info().Str("did", account.DID).Str("handle", account.Handle).Msg("account removed")
	return nil
}

// Toggle flips the active flag and returns the updated account.
func (s *Service) Toggle(ctx context.Context, handle string) (*domain.Account, error) {
	account, err := s.byHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetActive(ctx, account.DID, !account.IsActive); err != nil {
		return nil, err
	}
	return s.store.GetByDID(ctx, account.DID)
}

// UpdatePreferences merges the given channel settings into the account's
// preference set; channels absent from prefs are left untouched.
func (s *Service) UpdatePreferences(ctx context.Context, handle string, prefs map[domain.ChannelType]bool) (*domain.Account, error) {
	if len(prefs) == 0 {
		return nil, fmt.Errorf("%w: no channels given", domain.ErrInvalidChannel)
	}
	if err := validateChannels(prefs); err != nil {
		return nil, err
	}

	account, err := s.byHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpsertPreferences(ctx, account.DID, prefs); err != nil {
		return nil, err
	}
	return s.store.GetByDID(ctx, account.DID)
}

func (s *Service) byHandle(ctx context.Context, handle string) (*domain.Account, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	return s.store.GetByHandle(ctx, handle)
}

func validateChannels(prefs map[domain.ChannelType]bool) error {
	for channel := range prefs {
		if !domain.KnownChannel(channel) {
			return fmt.Errorf("%w: %q", domain.ErrInvalidChannel, channel)
		}
	}
	return nil
}
