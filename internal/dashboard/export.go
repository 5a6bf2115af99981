package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/smukkama/weather-dashboard/internal/alerts"
	"github.com/smukkama/weather-dashboard/internal/favorites"
	"github.com/smukkama/weather-dashboard/internal/searches"
	"github.com/smukkama/weather-dashboard/internal/session"
	"github.com/smukkama/weather-dashboard/internal/settings"
	"github.com/smukkama/weather-dashboard/internal/storage"
)

// Export formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var ErrUnknownFormat = errors.New("unknown export format")

// Export is a snapshot of every collection. Nil slices mean "not present"
// on import, so a partial document only replaces what it carries.
type Export struct {
	Favorites      []favorites.FavoriteLocation `json:"favorites"`
	RecentSearches []searches.RecentSearch      `json:"recentSearches"`
	Settings       *settings.Patch              `json:"settings,omitempty"`
	Alerts         []alerts.Alert               `json:"alerts"`
	Profile        *session.Profile             `json:"profile,omitempty"`
	ExportDate     time.Time                    `json:"exportDate"`
	Version        string                       `json:"version"`
}

// Export collects every collection into one document.
func (s *Service) Export(ctx context.Context) Export {
	overrides := s.settings.Overrides(ctx)
	exp := Export{
		Favorites:      s.favorites.List(ctx),
		RecentSearches: s.searches.List(ctx),
		Settings:       &overrides,
		Alerts:         s.alerts.List(ctx),
		ExportDate:     s.store.Now(),
		Version:        storage.CurrentVersion,
	}
	if s.session != nil {
		if profile, err := s.session.CurrentProfile(ctx); err == nil {
			exp.Profile = &profile
		}
	}
	return exp
}

// Import replaces each collection present in exp. The whole document is
// validated before anything is written, and favorites or alerts are only
// imported into an authenticated session. The profile is only restored into
// the session of the same signed-in user.
func (s *Service) Import(ctx context.Context, exp Export) error {
	if (exp.Favorites != nil || exp.Alerts != nil) && s.session != nil {
		if _, err := s.session.RequireIdentity(); err != nil {
			return fmt.Errorf("failed to import: %w", err)
		}
	}

	var (
		favs     []favorites.FavoriteLocation
		searched []searches.RecentSearch
		err      error
	)
	if exp.Settings != nil {
		if err := exp.Settings.Validate(); err != nil {
			return fmt.Errorf("failed to import settings: %w", err)
		}
	}
	if exp.Favorites != nil {
		if favs, err = s.favorites.Normalize(exp.Favorites); err != nil {
			return fmt.Errorf("failed to import favorites: %w", err)
		}
	}
	if exp.RecentSearches != nil {
		if searched, err = s.searches.Normalize(exp.RecentSearches); err != nil {
			return fmt.Errorf("failed to import recent searches: %w", err)
		}
	}
	if exp.Alerts != nil {
		if err := alerts.Check(exp.Alerts); err != nil {
			return fmt.Errorf("failed to import alerts: %w", err)
		}
	}

	if exp.Favorites != nil {
		if err := s.favorites.Replace(ctx, favs); err != nil {
			return fmt.Errorf("failed to import favorites: %w", err)
		}
	}
	if exp.RecentSearches != nil {
		if err := s.searches.Replace(ctx, searched); err != nil {
			return fmt.Errorf("failed to import recent searches: %w", err)
		}
	}
	if exp.Settings != nil {
		if err := s.settings.Replace(ctx, *exp.Settings); err != nil {
			return fmt.Errorf("failed to import settings: %w", err)
		}
	}
	if exp.Alerts != nil {
		if err := s.alerts.Replace(ctx, exp.Alerts); err != nil {
			return fmt.Errorf("failed to import alerts: %w", err)
		}
	}
	if exp.Profile != nil {
		s.importProfile(ctx, *exp.Profile)
	}
	return nil
}

func (s *Service) importProfile(ctx context.Context, profile session.Profile) {
	if s.session == nil {
		return
	}
	id, ok := s.session.CurrentUserID()
	if !ok || id != profile.ID {
		s.logger.Info("Skipping profile from another session", zap.String("profile_id", profile.ID))
		return
	}
	patch := session.ProfilePatch{
		Email:     &profile.Email,
		FirstName: &profile.FirstName,
		LastName:  &profile.LastName,
	}
	if profile.ProfileImageURL != "" {
		patch.ProfileImageURL = &profile.ProfileImageURL
	}
	if _, err := s.session.UpdateProfile(ctx, patch); err != nil {
		s.logger.Warn("Failed to import profile", zap.Error(err))
	}
}

// EncodeExport renders exp as JSON or YAML. YAML output uses the same field
// names as JSON.
func EncodeExport(exp Export, format string) ([]byte, error) {
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}

	switch format {
	case FormatJSON, "":
		return data, nil
	case FormatYAML:
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to encode export: %w", err)
		}
		out, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode export as yaml: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// DecodeExport parses a document produced by EncodeExport.
func DecodeExport(data []byte, format string) (Export, error) {
	var exp Export

	switch format {
	case FormatJSON, "":
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return exp, fmt.Errorf("failed to decode yaml export: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return exp, fmt.Errorf("failed to decode yaml export: %w", err)
		}
		data = converted
	default:
		return exp, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err := json.Unmarshal(data, &exp); err != nil {
		return exp, fmt.Errorf("failed to decode export: %w", err)
	}
	return exp, nil
}
