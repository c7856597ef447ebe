package domain

import (
	"fmt"
	"time"
)

// Observation is one point of a metric or parameter time series.
type Observation struct {
	Timestamp time.Time `json:"timestamp"`
	Value     Value     `json:"value"`
}

// MetricTarget is the desired band of a metric.
type MetricTarget struct {
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Value *float64 `json:"value,omitempty"`
	Unit  string   `json:"unit,omitempty"`
}

// ThresholdOperator compares a metric value with a threshold.
type ThresholdOperator string

const (
	OpGreater  ThresholdOperator = ">"
	OpLess     ThresholdOperator = "<"
	OpEqual    ThresholdOperator = "="
	OpNotEqual ThresholdOperator = "!="
)

// Threshold is one alert rule.
type Threshold struct {
	Operator ThresholdOperator `json:"operator"`
	Value    Value             `json:"value"`
}

// AlertThresholds holds the optional warning and critical rules.
type AlertThresholds struct {
	Warning  *Threshold `json:"warning,omitempty"`
	Critical *Threshold `json:"critical,omitempty"`
}

// AlertLevel is the result of evaluating a metric against its thresholds.
type AlertLevel string

const (
	AlertNone     AlertLevel = ""
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// SystemMetric is an observed output of a system.
type SystemMetric struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	Description          string           `json:"description,omitempty"`
	CurrentValue         Value            `json:"currentValue"`
	Unit                 string           `json:"unit,omitempty"`
	Target               *MetricTarget    `json:"target,omitempty"`
	History              []Observation    `json:"history"`
	AlertThresholds      *AlertThresholds `json:"alertThresholds,omitempty"`
	IsDerived            bool             `json:"isDerived"`
	DerivationMethod     string           `json:"derivationMethod,omitempty"`
	DataQualityScore     float64          `json:"dataQualityScore"`
	ObservationFrequency string           `json:"observationFrequency,omitempty"`
}

// AppendObservation adds a point to the metric history and makes it the
// current value. History is append-only with non-decreasing timestamps.
func (m *SystemMetric) AppendObservation(o Observation) error {
	if n := len(m.History); n > 0 && o.Timestamp.Before(m.History[n-1].Timestamp) {
		return fmt.Errorf("%w: metric %s observation at %s precedes %s",
			ErrOutOfOrder, m.ID, o.Timestamp.Format(time.RFC3339), m.History[n-1].Timestamp.Format(time.RFC3339))
	}
	m.History = append(m.History, o)
	m.CurrentValue = o.Value
	return nil
}

// Breach evaluates the current value against the alert thresholds.
// Critical wins over warning.
func (m SystemMetric) Breach() AlertLevel {
	if m.AlertThresholds == nil {
		return AlertNone
	}
	if t := m.AlertThresholds.Critical; t != nil && t.matches(m.CurrentValue) {
		return AlertCritical
	}
	if t := m.AlertThresholds.Warning; t != nil && t.matches(m.CurrentValue) {
		return AlertWarning
	}
	return AlertNone
}

func (t Threshold) matches(v Value) bool {
	if a, ok := v.Float(); ok {
		b, ok := t.Value.Float()
		if !ok {
			return false
		}
		switch t.Operator {
		case OpGreater:
			return a > b
		case OpLess:
			return a < b
		case OpEqual:
			return a == b
		case OpNotEqual:
			return a != b
		}
		return false
	}
	switch t.Operator {
	case OpEqual:
		return v.String() == t.Value.String()
	case OpNotEqual:
		return v.String() != t.Value.String()
	}
	return false
}
