package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/weather-dashboard/internal/storage"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// Token is the stored session token.
type Token struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Tokens owns the authToken key.
type Tokens struct {
	store *storage.Store
	ttl   time.Duration
}

func NewTokens(store *storage.Store, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{store: store, ttl: ttl}
}

// Issue creates and stores a fresh token.
func (t *Tokens) Issue(ctx context.Context) (Token, error) {
	now := t.store.Now()
	token := Token{
		Token:     uuid.New().String(),
		CreatedAt: now,
		ExpiresAt: now.Add(t.ttl),
	}
	if err := t.store.Set(ctx, storage.KeyAuthToken, token); err != nil {
		return Token{}, fmt.Errorf("failed to save token: %w", err)
	}
	return token, nil
}

// Get returns the stored token, expired or not.
func (t *Tokens) Get(ctx context.Context) (Token, bool) {
	var token Token
	ok := t.store.Get(ctx, storage.KeyAuthToken, &token)
	return token, ok
}

// Valid reports whether a token is stored and has not expired.
func (t *Tokens) Valid(ctx context.Context) bool {
	token, ok := t.Get(ctx)
	if !ok || token.Token == "" {
		return false
	}
	return t.store.Now().Before(token.ExpiresAt)
}

// Clear removes the token.
func (t *Tokens) Clear(ctx context.Context) error {
	if err := t.store.Remove(ctx, storage.KeyAuthToken); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}
