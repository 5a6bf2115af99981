package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/weather-dashboard/internal/settings"
)

// DefaultDemoEmail is used when the mock authenticator is given no email.
const DefaultDemoEmail = "student@example.com"

// Authenticator establishes an identity for an email address.
type Authenticator interface {
	Authenticate(ctx context.Context, email string) (Profile, error)
}

// MockAuthenticator signs anyone in with a locally generated demo profile.
type MockAuthenticator struct {
	Now func() time.Time
}

func (a MockAuthenticator) Authenticate(ctx context.Context, email string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	email = strings.TrimSpace(email)
	if email == "" {
		email = DefaultDemoEmail
	}
	if err := validate.Var(email, "email"); err != nil {
		return Profile{}, fmt.Errorf("%w: email %q", ErrInvalidProfile, email)
	}

	now := time.Now
	if a.Now != nil {
		now = a.Now
	}

	unit := settings.Celsius
	theme := settings.ThemeLight
	notifications := true

	return Profile{
		ID:        "user_" + uuid.New().String(),
		Email:     email,
		FirstName: "Student",
		LastName:  "User",
		Preferences: settings.Patch{
			TempUnit:      &unit,
			Theme:         &theme,
			Notifications: &notifications,
		},
		CreatedAt: now().UTC(),
	}, nil
}
