// Package domain holds the pure data types of the Chaos Theorist console:
// systems, parameters, metrics, leverage points, simulation runs and chat.
// Nothing here performs I/O.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// SystemStatus is the lifecycle status of a monitored system.
type SystemStatus string

const (
	SystemDraft       SystemStatus = "Draft"
	SystemActive      SystemStatus = "Active"
	SystemUnderReview SystemStatus = "Under Review"
	SystemArchived    SystemStatus = "Archived"
	SystemRetired     SystemStatus = "Retired"
)

// SecurityLevel classifies how sensitive a parameter write is.
type SecurityLevel string

const (
	SecurityLow    SecurityLevel = "low"
	SecurityMedium SecurityLevel = "medium"
	SecurityHigh   SecurityLevel = "high"
)

// ChaoticSystemDefinition is one monitored system.
type ChaoticSystemDefinition struct {
	ID                     string               `json:"id"`
	Name                   string               `json:"name"`
	Description            string               `json:"description"`
	CreatedAt              time.Time            `json:"createdAt"`
	LastModified           time.Time            `json:"lastModified"`
	OwnerID                string               `json:"ownerId"`
	Parameters             []SystemParameter    `json:"parameters"`
	Metrics                []SystemMetric       `json:"metrics"`
	FeedbackLoops          []FeedbackLoop       `json:"feedbackLoops"`
	Status                 SystemStatus         `json:"status"`
	SchemaVersion          string               `json:"schemaVersion"`
	Tags                   []string             `json:"tags,omitempty"`
	Scope                  string               `json:"scope,omitempty"`
	ExternalDataSources    []ExternalDataSource `json:"externalDataSources,omitempty"`
	AccessControl          AccessControl        `json:"accessControl"`
	SimulationModelRef     string               `json:"simulationModelRef,omitempty"`
	ModelVersion           string               `json:"modelVersion"`
	MonitoringAgents       []string             `json:"monitoringAgents,omitempty"`
	MonitoringConfig       MonitoringConfig     `json:"monitoringConfig"`
	SecurityClassification string               `json:"securityClassification,omitempty"`
	ComplianceStandards    []string             `json:"complianceStandards,omitempty"`
	ContentHash            string               `json:"contentHash"`
}

// ExternalDataSource is a feed the system's metrics are synced from.
type ExternalDataSource struct {
	Name     string    `json:"name"`
	URL      string    `json:"url"`
	LastSync time.Time `json:"lastSync"`
	Status   string    `json:"status"` // active | inactive | error
}

// AccessControl describes who may see a system.
type AccessControl struct {
	Public           bool     `json:"public"`
	SharedWithUsers  []string `json:"sharedWithUsers,omitempty"`
	SharedWithGroups []string `json:"sharedWithGroups,omitempty"`
	RBACPolicyID     string   `json:"rbacPolicyId,omitempty"`
}

// MonitoringConfig controls how agents watch the system.
type MonitoringConfig struct {
	IntervalSeconds       int    `json:"intervalSeconds"`
	AlertOnAnomaly        bool   `json:"alertOnAnomaly"`
	AnomalyDetectionModel string `json:"anomalyDetectionModel,omitempty"`
}

// Parameter returns the parameter with the given id.
func (s *ChaoticSystemDefinition) Parameter(id string) (*SystemParameter, bool) {
	for i := range s.Parameters {
		if s.Parameters[i].ID == id {
			return &s.Parameters[i], true
		}
	}
	return nil, false
}

// KeyParameters returns up to four parameters worth surfacing first: those
// marked high security or flagged as leverage candidates, in catalog order.
func (s *ChaoticSystemDefinition) KeyParameters() []SystemParameter {
	var out []SystemParameter
	for _, p := range s.Parameters {
		if p.SecurityLevel == SecurityHigh || p.IsLeverageCandidate {
			out = append(out, p)
			if len(out) == 4 {
				break
			}
		}
	}
	return out
}

// Metric returns the metric with the given id.
func (s *ChaoticSystemDefinition) Metric(id string) (*SystemMetric, bool) {
	for i := range s.Metrics {
		if s.Metrics[i].ID == id {
			return &s.Metrics[i], true
		}
	}
	return nil, false
}

// ValidateSystem checks the identity invariants of a system: a non-empty id,
// unique parameter ids, unique metric ids, and every parameter value
// consistent with its declared data type.
func ValidateSystem(s ChaoticSystemDefinition) error {
	if s.ID == "" {
		return &ValidationError{Reason: "system id is required"}
	}
	seen := make(map[string]bool, len(s.Parameters))
	for _, p := range s.Parameters {
		if seen[p.ID] {
			return &ValidationError{ParameterID: p.ID, Reason: "duplicate parameter id"}
		}
		seen[p.ID] = true
		if _, err := p.ValidateValue(p.CurrentValue); err != nil {
			return err
		}
	}
	seen = make(map[string]bool, len(s.Metrics))
	for _, m := range s.Metrics {
		if seen[m.ID] {
			return &ValidationError{Reason: fmt.Sprintf("duplicate metric id %q", m.ID)}
		}
		seen[m.ID] = true
	}
	return nil
}

// ComputeContentHash digests the ordered parameter values of a system.
// Any change to a parameter's current value yields a different hash.
func ComputeContentHash(s ChaoticSystemDefinition) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", s.ID, s.SchemaVersion)
	for _, p := range s.Parameters {
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00", p.ID, p.DataType, p.CurrentValue.String())
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// Normalize retags decoded parameter values with their declared data type.
// JSON carries enum members as plain strings.
func Normalize(s *ChaoticSystemDefinition) {
	for i := range s.Parameters {
		p := &s.Parameters[i]
		if v, err := p.CurrentValue.As(p.DataType); err == nil {
			p.CurrentValue = v
		}
	}
}

// ─── Parameters ─────────────────────────────────────────────────────────────

// DependencyType is the direction of a parameter dependency edge.
type DependencyType string

const (
	Influences     DependencyType = "influences"
	IsInfluencedBy DependencyType = "is-influenced-by"
)

// ParameterDependency links a parameter to another one.
type ParameterDependency struct {
	ParameterID string         `json:"parameterId"`
	Type        DependencyType `json:"type"`
}

// SystemParameter is a tunable input of a system.
type SystemParameter struct {
	ID                  string                `json:"id"`
	Name                string                `json:"name"`
	Description         string                `json:"description,omitempty"`
	CurrentValue        Value                 `json:"currentValue"`
	Unit                string                `json:"unit,omitempty"`
	MinValue            *float64              `json:"minValue,omitempty"`
	MaxValue            *float64              `json:"maxValue,omitempty"`
	Step                *float64              `json:"step,omitempty"`
	IsLeverageCandidate bool                  `json:"isLeverageCandidate"`
	DataType            DataType              `json:"dataType"`
	EnumValues          []string              `json:"enumValues,omitempty"`
	Dependencies        []ParameterDependency `json:"dependencies,omitempty"`
	SecurityLevel       SecurityLevel         `json:"securityLevel"`
	GovernancePolicyID  string                `json:"governancePolicyId,omitempty"`
}

// ValidateValue checks v against the parameter's data type, range and enum
// members and returns it normalized to the parameter's tag.
func (p SystemParameter) ValidateValue(v Value) (Value, error) {
	if v.IsZero() {
		return Value{}, &ValidationError{ParameterID: p.ID, Reason: "value is required"}
	}
	nv, err := v.As(p.DataType)
	if err != nil {
		return Value{}, &ValidationError{
			ParameterID: p.ID,
			Reason:      fmt.Sprintf("value of kind %q does not match data type %q", v.Kind(), p.DataType),
		}
	}
	switch p.DataType {
	case DataNumber:
		f, _ := nv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, &ValidationError{ParameterID: p.ID, Reason: fmt.Sprintf("%v is not a finite number", f)}
		}
		if p.MinValue != nil && p.MaxValue != nil && (f < *p.MinValue || f > *p.MaxValue) {
			return Value{}, &ValidationError{
				ParameterID: p.ID,
				Reason:      fmt.Sprintf("%v is outside [%v, %v]", f, *p.MinValue, *p.MaxValue),
			}
		}
	case DataEnum:
		if len(p.EnumValues) > 0 {
			s, _ := nv.Text()
			ok := false
			for _, e := range p.EnumValues {
				if e == s {
					ok = true
					break
				}
			}
			if !ok {
				return Value{}, &ValidationError{
					ParameterID: p.ID,
					Reason:      fmt.Sprintf("%q is not one of %v", s, p.EnumValues),
				}
			}
		}
	}
	return nv, nil
}

// ─── Feedback loops ─────────────────────────────────────────────────────────

// Polarity of a feedback loop.
type Polarity string

const (
	PositiveLoop Polarity = "positive"
	NegativeLoop Polarity = "negative"
)

// FeedbackLoop is a directed causal edge between two system variables.
// It is analysis input only.
type FeedbackLoop struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Type        Polarity `json:"type"`
	SourceID    string   `json:"sourceId"`
	TargetID    string   `json:"targetId"`
	Strength    float64  `json:"strength"`
	Delay       string   `json:"delay"`
	Confidence  float64  `json:"confidence"`
	IsDynamic   bool     `json:"isDynamic"`
}
