package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrMalformedEvent = errors.New("malformed alert event")

// AlertEvent is the journal record published for every triggered alert
type AlertEvent struct {
	Type         string    `json:"type"` // ALERT_TRIGGERED
	AlertID      string    `json:"alert_id"`
	LocationID   string    `json:"location_id"`
	LocationName string    `json:"location_name"`
	AlertType    string    `json:"alert_type"`
	Condition    string    `json:"condition"`
	Threshold    float64   `json:"threshold"`
	Value        float64   `json:"value"`
	Unit         string    `json:"unit"`
	Message      string    `json:"message"`
	TriggerCount int       `json:"trigger_count"`
	TriggeredAt  time.Time `json:"triggered_at"`
}

const (
	EventTypeAlertTriggered = "ALERT_TRIGGERED"
)

// Key returns the partition key: events for one location stay ordered.
func (e *AlertEvent) Key() string {
	return e.LocationID + "-" + e.AlertType
}

// EncodeAlertEvent encodes an AlertEvent to JSON
func EncodeAlertEvent(event *AlertEvent) ([]byte, error) {
	return json.Marshal(event)
}

// DecodeAlertEvent decodes JSON to AlertEvent
func DecodeAlertEvent(data []byte) (*AlertEvent, error) {
	var event AlertEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Type != EventTypeAlertTriggered || event.AlertID == "" {
		return nil, fmt.Errorf("%w: type %q", ErrMalformedEvent, event.Type)
	}
	return &event, nil
}
