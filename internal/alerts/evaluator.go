package alerts

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/smukkama/weather-dashboard/internal/protocol"
	"github.com/smukkama/weather-dashboard/internal/storage"
	"github.com/smukkama/weather-dashboard/internal/weather"
	"github.com/smukkama/weather-dashboard/pkg/logging"
	"github.com/smukkama/weather-dashboard/pkg/metrics"
)

// equalsTolerance is the absolute distance within which "equals" holds.
const equalsTolerance = 1.0

// Publisher receives one journal record per triggered alert.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Evaluator checks active alerts against readings and records triggers
// through the alerts manager.
type Evaluator struct {
	alerts    *Manager
	publisher Publisher
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// NewEvaluator creates an alert evaluator. publisher and collector may be nil.
func NewEvaluator(alerts *Manager, publisher Publisher, logger *zap.Logger, collector *metrics.Collector) *Evaluator {
	return &Evaluator{
		alerts:    alerts,
		publisher: publisher,
		logger:    logging.OrNop(logger),
		metrics:   collector,
	}
}

// Evaluate checks every active alert against reading.
func (e *Evaluator) Evaluate(ctx context.Context, reading weather.Reading) ([]TriggeredAlert, error) {
	return e.evaluate(ctx, reading, func(Alert) bool { return true })
}

// EvaluateLocation checks only the active alerts attached to locationID.
func (e *Evaluator) EvaluateLocation(ctx context.Context, locationID string, reading weather.Reading) ([]TriggeredAlert, error) {
	return e.evaluate(ctx, reading, func(a Alert) bool { return a.LocationID == locationID })
}

// evaluate updates trigger bookkeeping for every match and persists the whole
// collection once, only when something triggered. On a write failure nothing
// is returned and the stored alerts are unchanged.
func (e *Evaluator) evaluate(ctx context.Context, reading weather.Reading, include func(Alert) bool) ([]TriggeredAlert, error) {
	m := e.alerts
	m.mu.Lock()
	defer m.mu.Unlock()

	alerts := m.load(ctx)
	now := m.store.Now()

	var triggered []TriggeredAlert
	evaluated := 0
	for i := range alerts {
		alert := &alerts[i]
		if !alert.IsActive || !include(*alert) {
			continue
		}

		value := e.extractMetricValue(reading, alert.AlertType)
		if value == nil {
			continue
		}
		evaluated++

		if !evaluateCondition(*value, alert.Condition, alert.Threshold) {
			continue
		}

		t := now
		alert.LastTriggered = &t
		alert.TriggerCount++

		triggered = append(triggered, TriggeredAlert{
			Alert:        *alert,
			CurrentValue: *value,
			Unit:         alert.AlertType.Unit(),
			Message:      triggerMessage(*alert, *value),
		})
	}
	e.metrics.RecordAlertsEvaluated(evaluated)

	if len(triggered) == 0 {
		return nil, nil
	}

	if err := m.store.Set(ctx, storage.KeyAlerts, alerts); err != nil {
		return nil, fmt.Errorf("failed to record triggered alerts: %w", err)
	}

	for _, t := range triggered {
		e.metrics.RecordAlertTriggered(string(t.AlertType))
		e.logger.Info("Alert triggered",
			zap.String("id", t.ID),
			zap.String("location", t.LocationName),
			zap.String("type", string(t.AlertType)),
			zap.Float64("value", t.CurrentValue),
			zap.Float64("threshold", t.Threshold))
		e.publish(ctx, t)
	}
	return triggered, nil
}

func (e *Evaluator) publish(ctx context.Context, t TriggeredAlert) {
	if e.publisher == nil {
		return
	}

	event := &protocol.AlertEvent{
		Type:         protocol.EventTypeAlertTriggered,
		AlertID:      t.ID,
		LocationID:   t.LocationID,
		LocationName: t.LocationName,
		AlertType:    string(t.AlertType),
		Condition:    string(t.Condition),
		Threshold:    t.Threshold,
		Value:        t.CurrentValue,
		Unit:         t.Unit,
		Message:      t.Message,
		TriggerCount: t.TriggerCount,
		TriggeredAt:  *t.LastTriggered,
	}

	data, err := protocol.EncodeAlertEvent(event)
	if err != nil {
		e.logger.Warn("Failed to encode alert event", zap.String("id", t.ID), zap.Error(err))
		return
	}
	if err := e.publisher.Publish(ctx, event.Key(), data); err != nil {
		e.logger.Warn("Failed to publish alert event", zap.String("id", t.ID), zap.Error(err))
	}
}

// extractMetricValue returns the reading field watched by alertType, or nil
// when the reading does not carry it. Rain reads as zero when absent.
func (e *Evaluator) extractMetricValue(reading weather.Reading, alertType Type) *float64 {
	switch alertType {
	case TypeTemperature:
		return reading.Temp
	case TypeHumidity:
		return reading.Humidity
	case TypeWind:
		return reading.WindSpeed
	case TypeRain:
		if reading.Precipitation == nil {
			return weather.Float(0)
		}
		return reading.Precipitation
	default:
		e.logger.Warn("Skipping alert with unknown type", zap.String("type", string(alertType)))
		return nil
	}
}

func evaluateCondition(value float64, condition Condition, threshold float64) bool {
	switch condition {
	case ConditionAbove:
		return value > threshold
	case ConditionBelow:
		return value < threshold
	case ConditionEquals:
		return math.Abs(value-threshold) < equalsTolerance
	default:
		return false
	}
}
