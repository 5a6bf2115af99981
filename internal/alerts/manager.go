package alerts

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smukkama/weather-dashboard/internal/storage"
	"github.com/smukkama/weather-dashboard/pkg/logging"
)

var validate = validator.New()

// Gate authorizes identity-bound mutations.
type Gate interface {
	RequireIdentity() (string, error)
}

// Manager owns the alerts key.
type Manager struct {
	store  *storage.Store
	gate   Gate
	logger *zap.Logger
	mu     sync.Mutex
}

// NewManager creates an alerts manager. A nil gate leaves mutations open.
func NewManager(store *storage.Store, gate Gate, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		gate:   gate,
		logger: logging.OrNop(logger),
	}
}

func (m *Manager) authorize() error {
	if m.gate == nil {
		return nil
	}
	_, err := m.gate.RequireIdentity()
	return err
}

func (m *Manager) load(ctx context.Context) []Alert {
	return storage.Load(ctx, m.store, storage.KeyAlerts, []Alert{})
}

// List returns every alert in creation order.
func (m *Manager) List(ctx context.Context) []Alert {
	return m.load(ctx)
}

// Get returns the alert with the given id.
func (m *Manager) Get(ctx context.Context, id string) (Alert, error) {
	for _, a := range m.load(ctx) {
		if a.ID == id {
			return a, nil
		}
	}
	return Alert{}, ErrNotFound
}

// ForLocation returns the alerts attached to one location.
func (m *Manager) ForLocation(ctx context.Context, locationID string) []Alert {
	var result []Alert
	for _, a := range m.load(ctx) {
		if a.LocationID == locationID {
			result = append(result, a)
		}
	}
	return result
}

// ParseThreshold parses s as a finite number.
func ParseThreshold(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidThreshold, s)
	}
	return v, nil
}

// Add validates spec and stores a new active alert.
func (m *Manager) Add(ctx context.Context, spec Spec) (Alert, error) {
	if err := m.authorize(); err != nil {
		return Alert{}, err
	}

	spec.LocationName = strings.TrimSpace(spec.LocationName)
	if err := validate.Struct(spec); err != nil {
		return Alert{}, fmt.Errorf("%w: %v", ErrInvalidAlert, err)
	}
	alertType, err := ParseType(spec.AlertType)
	if err != nil {
		return Alert{}, err
	}
	condition, err := ParseCondition(spec.Condition)
	if err != nil {
		return Alert{}, err
	}
	threshold, err := ParseThreshold(spec.Threshold)
	if err != nil {
		return Alert{}, err
	}

	alert := Alert{
		ID:           uuid.Must(uuid.NewV7()).String(),
		LocationID:   spec.LocationID,
		LocationName: spec.LocationName,
		AlertType:    alertType,
		Condition:    condition,
		Threshold:    threshold,
		IsActive:     true,
		CreatedAt:    m.store.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(ctx, storage.KeyAlerts, append(m.load(ctx), alert)); err != nil {
		return Alert{}, fmt.Errorf("failed to add alert: %w", err)
	}

	m.logger.Info("Alert created",
		zap.String("id", alert.ID),
		zap.String("location", alert.LocationName),
		zap.String("type", string(alert.AlertType)))
	return alert, nil
}

// Remove deletes an alert.
func (m *Manager) Remove(ctx context.Context, id string) error {
	if err := m.authorize(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.load(ctx)
	remaining := make([]Alert, 0, len(existing))
	for _, a := range existing {
		if a.ID != id {
			remaining = append(remaining, a)
		}
	}
	if len(remaining) == len(existing) {
		return ErrNotFound
	}

	if err := m.store.Set(ctx, storage.KeyAlerts, remaining); err != nil {
		return fmt.Errorf("failed to remove alert: %w", err)
	}
	return nil
}

// Toggle flips an alert between active and inactive.
func (m *Manager) Toggle(ctx context.Context, id string) (Alert, error) {
	if err := m.authorize(); err != nil {
		return Alert{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	alerts := m.load(ctx)
	for i := range alerts {
		if alerts[i].ID != id {
			continue
		}
		now := m.store.Now()
		alerts[i].IsActive = !alerts[i].IsActive
		alerts[i].LastUpdated = &now

		if err := m.store.Set(ctx, storage.KeyAlerts, alerts); err != nil {
			return Alert{}, fmt.Errorf("failed to toggle alert: %w", err)
		}
		return alerts[i], nil
	}
	return Alert{}, ErrNotFound
}

// Check validates an imported collection: ids present and unique, a known
// type and condition, a finite threshold and a non-negative trigger count.
func Check(alerts []Alert) error {
	ids := make(map[string]struct{}, len(alerts))
	for _, a := range alerts {
		if a.ID == "" {
			return fmt.Errorf("%w: missing id", ErrInvalidAlert)
		}
		if _, ok := ids[a.ID]; ok {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidAlert, a.ID)
		}
		ids[a.ID] = struct{}{}

		if a.LocationID == "" || strings.TrimSpace(a.LocationName) == "" {
			return fmt.Errorf("%w: alert %s has no location", ErrInvalidAlert, a.ID)
		}
		if math.IsNaN(a.Threshold) || math.IsInf(a.Threshold, 0) {
			return ErrInvalidThreshold
		}
		if _, err := ParseType(string(a.AlertType)); err != nil {
			return err
		}
		if _, err := ParseCondition(string(a.Condition)); err != nil {
			return err
		}
		if a.TriggerCount < 0 {
			return fmt.Errorf("%w: alert %s has a negative trigger count", ErrInvalidAlert, a.ID)
		}
	}
	return nil
}

// Replace overwrites the collection, used by data import.
func (m *Manager) Replace(ctx context.Context, alerts []Alert) error {
	if err := m.authorize(); err != nil {
		return err
	}
	if err := Check(alerts); err != nil {
		return err
	}
	if alerts == nil {
		alerts = []Alert{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(ctx, storage.KeyAlerts, alerts); err != nil {
		return fmt.Errorf("failed to replace alerts: %w", err)
	}
	return nil
}
