package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smukkama/weather-dashboard/internal/settings"
	"github.com/smukkama/weather-dashboard/internal/storage"
)

var ErrNoProfile = errors.New("no profile stored")

// Profile is the signed-in user's record.
type Profile struct {
	ID              string         `json:"id" yaml:"id"`
	Email           string         `json:"email" yaml:"email"`
	FirstName       string         `json:"firstName" yaml:"firstName"`
	LastName        string         `json:"lastName" yaml:"lastName"`
	ProfileImageURL string         `json:"profileImageUrl" yaml:"profileImageUrl"`
	Preferences     settings.Patch `json:"preferences" yaml:"preferences"`
	CreatedAt       time.Time      `json:"createdAt" yaml:"createdAt"`
	LastLogin       *time.Time     `json:"lastLogin,omitempty" yaml:"lastLogin,omitempty"`
	LastActivity    *time.Time     `json:"lastActivity,omitempty" yaml:"lastActivity,omitempty"`
	UpdatedAt       *time.Time     `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// DisplayName returns "First Last", or the email when no name is set.
func (p Profile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	}
	return p.Email
}

// ProfilePatch changes selected profile fields.
type ProfilePatch struct {
	Email           *string `validate:"omitempty,email"`
	FirstName       *string
	LastName        *string
	ProfileImageURL *string `validate:"omitempty,url"`
}

// Profiles owns the profile key.
type Profiles struct {
	store *storage.Store
	mu    sync.Mutex
}

func NewProfiles(store *storage.Store) *Profiles {
	return &Profiles{store: store}
}

// Get returns the stored profile.
func (p *Profiles) Get(ctx context.Context) (Profile, bool) {
	var profile Profile
	ok := p.store.Get(ctx, storage.KeyProfile, &profile)
	return profile, ok
}

// Set stores profile and stamps lastLogin.
func (p *Profiles) Set(ctx context.Context, profile Profile) (Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.store.Now()
	profile.LastLogin = &now
	if err := p.store.Set(ctx, storage.KeyProfile, profile); err != nil {
		return Profile{}, fmt.Errorf("failed to save profile: %w", err)
	}
	return profile, nil
}

// Clear removes the profile entirely.
func (p *Profiles) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.Remove(ctx, storage.KeyProfile); err != nil {
		return fmt.Errorf("failed to clear profile: %w", err)
	}
	return nil
}

// UpdateLastActivity stamps lastActivity on the stored profile.
func (p *Profiles) UpdateLastActivity(ctx context.Context) error {
	return p.modify(ctx, func(profile *Profile, now time.Time) error {
		profile.LastActivity = &now
		return nil
	})
}

// Update applies patch to the stored profile.
func (p *Profiles) Update(ctx context.Context, patch ProfilePatch) (Profile, error) {
	if err := validate.Struct(patch); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	var updated Profile
	err := p.modify(ctx, func(profile *Profile, now time.Time) error {
		if patch.Email != nil {
			profile.Email = *patch.Email
		}
		if patch.FirstName != nil {
			profile.FirstName = *patch.FirstName
		}
		if patch.LastName != nil {
			profile.LastName = *patch.LastName
		}
		if patch.ProfileImageURL != nil {
			profile.ProfileImageURL = *patch.ProfileImageURL
		}
		profile.UpdatedAt = &now
		updated = *profile
		return nil
	})
	return updated, err
}

func (p *Profiles) updatePreferences(ctx context.Context, prefs settings.Patch) (Profile, error) {
	var updated Profile
	err := p.modify(ctx, func(profile *Profile, now time.Time) error {
		profile.Preferences = profile.Preferences.Merge(prefs)
		profile.UpdatedAt = &now
		updated = *profile
		return nil
	})
	return updated, err
}

func (p *Profiles) modify(ctx context.Context, fn func(*Profile, time.Time) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var profile Profile
	if !p.store.Get(ctx, storage.KeyProfile, &profile) {
		return ErrNoProfile
	}
	if err := fn(&profile, p.store.Now()); err != nil {
		return err
	}
	if err := p.store.Set(ctx, storage.KeyProfile, profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}
