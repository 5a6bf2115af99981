// Package session tracks who is signed in and owns the profile and token keys.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/smukkama/weather-dashboard/internal/settings"
	"github.com/smukkama/weather-dashboard/pkg/logging"
)

var validate = validator.New()

var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrInvalidProfile    = errors.New("invalid profile")
)

type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Machine is the session state machine. Authenticating is only reachable
// from Unauthenticated; sign-out clears the profile and token but leaves
// favorites, searches and settings alone.
type Machine struct {
	mu       sync.RWMutex
	state    State
	userID   string
	profiles *Profiles
	tokens   *Tokens
	settings *settings.Manager
	auth     Authenticator
	logger   *zap.Logger
}

// NewMachine creates a machine in the Unauthenticated state. settings may be
// nil, in which case preference changes only touch the profile.
func NewMachine(profiles *Profiles, tokens *Tokens, prefs *settings.Manager, auth Authenticator, logger *zap.Logger) *Machine {
	return &Machine{
		state:    Unauthenticated,
		profiles: profiles,
		tokens:   tokens,
		settings: prefs,
		auth:     auth,
		logger:   logging.OrNop(logger),
	}
}

func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Machine) IsAuthenticated() bool {
	return m.State() == Authenticated
}

// CurrentUserID returns the signed-in user's id, or false.
func (m *Machine) CurrentUserID() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != Authenticated {
		return "", false
	}
	return m.userID, true
}

// RequireIdentity returns the current user id. It fails with
// ErrNotAuthenticated in any state other than Authenticated.
func (m *Machine) RequireIdentity() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != Authenticated {
		return "", fmt.Errorf("%w: session is %s", ErrNotAuthenticated, m.state)
	}
	return m.userID, nil
}

// Restore resumes a previous session when a valid token and a profile are
// both stored. It reports whether the machine is now Authenticated.
func (m *Machine) Restore(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Authenticated {
		return true
	}
	if m.state != Unauthenticated || !m.tokens.Valid(ctx) {
		return false
	}
	profile, ok := m.profiles.Get(ctx)
	if !ok || profile.ID == "" {
		return false
	}

	m.state = Authenticated
	m.userID = profile.ID
	m.logger.Debug("Session restored", zap.String("user_id", profile.ID))
	return true
}

// BeginSignIn moves Unauthenticated to Authenticating.
func (m *Machine) BeginSignIn() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Unauthenticated {
		return fmt.Errorf("%w: cannot sign in while %s", ErrInvalidTransition, m.state)
	}
	m.state = Authenticating
	return nil
}

// CompleteSignIn stores profile, issues a token and moves Authenticating to
// Authenticated. If either write fails the machine returns to Unauthenticated.
func (m *Machine) CompleteSignIn(ctx context.Context, profile Profile) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Authenticating {
		return Profile{}, fmt.Errorf("%w: cannot complete sign-in while %s", ErrInvalidTransition, m.state)
	}
	if profile.ID == "" {
		m.state = Unauthenticated
		return Profile{}, fmt.Errorf("%w: missing id", ErrInvalidProfile)
	}

	saved, err := m.profiles.Set(ctx, profile)
	if err != nil {
		m.state = Unauthenticated
		return Profile{}, err
	}
	if _, err := m.tokens.Issue(ctx); err != nil {
		m.state = Unauthenticated
		if clearErr := m.profiles.Clear(ctx); clearErr != nil {
			m.logger.Warn("Failed to roll back profile", zap.Error(clearErr))
		}
		return Profile{}, err
	}

	m.state = Authenticated
	m.userID = saved.ID
	m.logger.Info("Signed in", zap.String("user_id", saved.ID))
	return saved, nil
}

// FailSignIn moves Authenticating back to Unauthenticated.
func (m *Machine) FailSignIn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Authenticating {
		m.state = Unauthenticated
	}
}

// SignIn runs the whole sign-in flow against the configured authenticator.
func (m *Machine) SignIn(ctx context.Context, email string) (Profile, error) {
	if m.auth == nil {
		return Profile{}, errors.New("no authenticator configured")
	}
	if err := m.BeginSignIn(); err != nil {
		return Profile{}, err
	}

	profile, err := m.auth.Authenticate(ctx, email)
	if err != nil {
		m.FailSignIn()
		return Profile{}, fmt.Errorf("failed to authenticate: %w", err)
	}
	return m.CompleteSignIn(ctx, profile)
}

// SignOut moves Authenticated to Unauthenticated and clears the profile and
// token keys. The state changes even if a key could not be removed.
func (m *Machine) SignOut(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Authenticated {
		return fmt.Errorf("%w: cannot sign out while %s", ErrInvalidTransition, m.state)
	}

	userID := m.userID
	m.state = Unauthenticated
	m.userID = ""

	err := errors.Join(m.tokens.Clear(ctx), m.profiles.Clear(ctx))
	if err != nil {
		m.logger.Warn("Sign-out left stale session data", zap.Error(err))
	}
	m.logger.Info("Signed out", zap.String("user_id", userID))
	return err
}

// CurrentProfile returns the signed-in user's profile.
func (m *Machine) CurrentProfile(ctx context.Context) (Profile, error) {
	if _, err := m.RequireIdentity(); err != nil {
		return Profile{}, err
	}
	profile, ok := m.profiles.Get(ctx)
	if !ok {
		return Profile{}, ErrNoProfile
	}
	return profile, nil
}

// Touch stamps lastActivity on the profile.
func (m *Machine) Touch(ctx context.Context) error {
	if _, err := m.RequireIdentity(); err != nil {
		return err
	}
	return m.profiles.UpdateLastActivity(ctx)
}

// UpdateProfile applies patch to the signed-in user's profile.
func (m *Machine) UpdateProfile(ctx context.Context, patch ProfilePatch) (Profile, error) {
	if _, err := m.RequireIdentity(); err != nil {
		return Profile{}, err
	}
	return m.profiles.Update(ctx, patch)
}

// UpdatePreferences merges prefs into the profile and forwards them to the
// settings manager so the effective settings follow the profile.
func (m *Machine) UpdatePreferences(ctx context.Context, prefs settings.Patch) (Profile, error) {
	if _, err := m.RequireIdentity(); err != nil {
		return Profile{}, err
	}
	if err := prefs.Validate(); err != nil {
		return Profile{}, err
	}

	profile, err := m.profiles.updatePreferences(ctx, prefs)
	if err != nil {
		return Profile{}, err
	}
	if m.settings != nil {
		if err := m.settings.Update(ctx, prefs); err != nil {
			return profile, err
		}
	}
	return profile, nil
}
