package domain

import "time"

// Effort is the implementation effort of a leverage point.
type Effort string

const (
	EffortLow      Effort = "Low"
	EffortMedium   Effort = "Medium"
	EffortHigh     Effort = "High"
	EffortVeryHigh Effort = "Very High"
)

// Reversibility says how easily an intervention can be undone.
type Reversibility string

const (
	ReversibilityHigh   Reversibility = "High"
	ReversibilityMedium Reversibility = "Medium"
	ReversibilityLow    Reversibility = "Low"
	Irreversible        Reversibility = "Irreversible"
)

// Severity grades risks.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Risk is one categorized risk entry.
type Risk struct {
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Stakeholder is a party affected by an intervention.
type Stakeholder struct {
	Name      string   `json:"name"`
	Role      string   `json:"role"`
	Influence Severity `json:"influence"`
}

// LeveragePoint is a proposed intervention on a system. It is produced by
// the analysis service and never modified afterwards.
type LeveragePoint struct {
	ID                    string        `json:"id"`
	SystemID              string        `json:"systemId"`
	Action                string        `json:"action"`
	Cost                  string        `json:"cost"`
	OutcomeProbability    float64       `json:"outcomeProbability"`
	TimeToImpact          string        `json:"timeToImpact,omitempty"`
	Description           string        `json:"description"`
	PositiveSideEffects   []string      `json:"positiveSideEffects,omitempty"`
	NegativeSideEffects   []string      `json:"negativeSideEffects,omitempty"`
	ImpactMagnitude       string        `json:"impactMagnitude,omitempty"`
	PredictionConfidence  float64       `json:"predictionConfidence"`
	ImplementationEffort  Effort        `json:"implementationEffort"`
	Reversibility         Reversibility `json:"reversibility"`
	Risks                 []Risk        `json:"risks,omitempty"`
	RequiredResources     []string      `json:"requiredResources,omitempty"`
	Stakeholders          []Stakeholder `json:"stakeholders,omitempty"`
	HistoricalSuccessRate *float64      `json:"historicalSuccessRate,omitempty"`
	LastUpdated           time.Time     `json:"lastUpdated"`
	ProposedByAgentID     string        `json:"proposedByAgentId,omitempty"`
	RequiredSkill         string        `json:"requiredSkill,omitempty"`
	EstimatedKPIImpact    []string      `json:"estimatedKpiImpact,omitempty"`
	RequiredPolicy        string        `json:"requiredPolicy,omitempty"`
}

// InterventionProposal records that an operator proposed acting on a
// leverage point. The leverage point itself is unchanged.
type InterventionProposal struct {
	LeveragePointID string    `json:"leveragePointId"`
	SystemID        string    `json:"systemId"`
	ProposedBy      string    `json:"proposedBy"`
	ProposedAt      time.Time `json:"proposedAt"`
}
