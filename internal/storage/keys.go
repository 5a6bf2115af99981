package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Logical keys. Each is written by exactly one manager.
const (
	KeyFavorites      = "favorites"
	KeyRecentSearches = "recentSearches"
	KeyUserSettings   = "userSettings"
	KeyAlerts         = "alerts"
	KeyProfile        = "profile"
	KeyAuthToken      = "authToken"
)

// LegacyKeys maps the un-namespaced keys written by early releases to their
// current logical key.
var LegacyKeys = map[string]string{
	"weather_favorites": KeyFavorites,
	"weather_recent":    KeyRecentSearches,
	"weather_settings":  KeyUserSettings,
}

// MigrateLegacyKeys moves each legacy key into the namespace when the target
// is still empty, then deletes the legacy key. It returns how many keys moved.
func (s *Store) MigrateLegacyKeys(ctx context.Context, legacy map[string]string) (int, error) {
	moved := 0
	for oldKey, newKey := range legacy {
		raw, err := s.backend.Read(ctx, oldKey)
		if errors.Is(err, ErrNotExist) {
			continue
		}
		if err != nil {
			return moved, fmt.Errorf("failed to read legacy key %s: %w", oldKey, err)
		}

		_, err = s.backend.Read(ctx, s.physical(newKey))
		if err == nil {
			// Current data wins; leave the legacy key for manual inspection.
			continue
		}
		if !errors.Is(err, ErrNotExist) {
			return moved, fmt.Errorf("failed to read %s: %w", newKey, err)
		}

		if err := s.backend.Write(ctx, s.physical(newKey), raw); err != nil {
			return moved, fmt.Errorf("%w: failed to migrate %s: %w", ErrWriteFailed, oldKey, err)
		}
		if err := s.backend.Delete(ctx, oldKey); err != nil {
			return moved, fmt.Errorf("failed to delete legacy key %s: %w", oldKey, err)
		}

		s.logger.Info("Migrated legacy key", zap.String("from", oldKey), zap.String("to", newKey))
		moved++
	}
	return moved, nil
}
