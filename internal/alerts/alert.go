// Package alerts stores threshold alerts and evaluates them against weather readings.
package alerts

import (
	"fmt"
	"strconv"
	"time"
)

// Type selects the reading field an alert watches.
type Type string

const (
	TypeTemperature Type = "temperature"
	TypeHumidity    Type = "humidity"
	TypeWind        Type = "wind"
	TypeRain        Type = "rain"
)

// Types lists every alert type.
var Types = []Type{TypeTemperature, TypeHumidity, TypeWind, TypeRain}

// ParseType returns the Type named by s.
func ParseType(s string) (Type, error) {
	t := Type(s)
	switch t {
	case TypeTemperature, TypeHumidity, TypeWind, TypeRain:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

// Unit returns the display suffix for values of this type.
func (t Type) Unit() string {
	switch t {
	case TypeTemperature:
		return "°C"
	case TypeHumidity:
		return "%"
	case TypeWind:
		return " km/h"
	case TypeRain:
		return " mm"
	}
	return ""
}

// Condition compares a reading against the threshold.
type Condition string

const (
	ConditionAbove  Condition = "above"
	ConditionBelow  Condition = "below"
	ConditionEquals Condition = "equals"
)

// Conditions lists every condition.
var Conditions = []Condition{ConditionAbove, ConditionBelow, ConditionEquals}

// ParseCondition returns the Condition named by s.
func ParseCondition(s string) (Condition, error) {
	c := Condition(s)
	switch c {
	case ConditionAbove, ConditionBelow, ConditionEquals:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCondition, s)
}

// Alert is a stored alert.
type Alert struct {
	ID            string     `json:"id"`
	LocationID    string     `json:"locationId"`
	LocationName  string     `json:"locationName"`
	AlertType     Type       `json:"alertType"`
	Condition     Condition  `json:"condition"`
	Threshold     float64    `json:"threshold"`
	IsActive      bool       `json:"isActive"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastUpdated   *time.Time `json:"lastUpdated,omitempty"`
	LastTriggered *time.Time `json:"lastTriggered"`
	TriggerCount  int        `json:"triggerCount"`
}

// Spec is the input to Add. Threshold is kept as text so that parsing and
// the finiteness check happen in one place.
type Spec struct {
	LocationID   string `validate:"required"`
	LocationName string `validate:"required"`
	AlertType    string
	Condition    string
	Threshold    string
}

// TriggeredAlert is produced when a reading satisfies an alert.
type TriggeredAlert struct {
	Alert
	CurrentValue float64 `json:"currentValue"`
	Unit         string  `json:"unit"`
	Message      string  `json:"message"`
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func triggerMessage(a Alert, value float64) string {
	unit := a.AlertType.Unit()
	return fmt.Sprintf("%s: %s is %s %s%s (Current: %s%s)",
		a.LocationName, a.AlertType, a.Condition, formatNumber(a.Threshold), unit, formatNumber(value), unit)
}

var (
	ErrInvalidThreshold = &AlertError{"threshold must be a finite number"}
	ErrInvalidType      = &AlertError{"unknown alert type"}
	ErrInvalidCondition = &AlertError{"unknown alert condition"}
	ErrInvalidAlert     = &AlertError{"invalid alert"}
	ErrNotFound         = &AlertError{"alert not found"}
)

// AlertError represents an alert validation failure
type AlertError struct {
	msg string
}

func (e *AlertError) Error() string {
	return e.msg
}
