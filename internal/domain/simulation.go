package domain

import "time"

// RunStatus tracks the simulation run lifecycle:
// pending → running → completed | failed | cancelled.
type RunStatus string

const (
	RunPending   RunStatus = "Pending"
	RunRunning   RunStatus = "Running"
	RunCompleted RunStatus = "Completed"
	RunFailed    RunStatus = "Failed"
	RunCancelled RunStatus = "Cancelled"
)

// ApplicationStatus tracks one leverage point applied within a run.
type ApplicationStatus string

const (
	ApplicationPlanned  ApplicationStatus = "planned"
	ApplicationExecuted ApplicationStatus = "executed"
	ApplicationFailed   ApplicationStatus = "failed"
)

// Event types written to a run's log.
const (
	EventStart        = "start"
	EventIntervention = "intervention"
	EventComplete     = "complete"
	EventFailure      = "failure"
	EventCancel       = "cancel"
)

// ParameterSetting pins a parameter to a value.
type ParameterSetting struct {
	ParameterID string `json:"parameterId"`
	Value       Value  `json:"value"`
}

// AppliedLeveragePoint is a leverage point scheduled into a run.
type AppliedLeveragePoint struct {
	LeveragePointID string            `json:"leveragePointId"`
	ApplicationTime time.Time         `json:"applicationTime"`
	AgentID         string            `json:"agentId,omitempty"`
	Status          ApplicationStatus `json:"status"`
}

// RunResults is the summary frozen when a run terminates.
type RunResults struct {
	OverallImpact          string   `json:"overallImpact"`
	RiskAssessment         []Risk   `json:"riskAssessment"`
	AchievedGoals          []string `json:"achievedGoals"`
	UnintendedConsequences []string `json:"unintendedConsequences"`
}

// Series is an append-only time series keyed by metric or parameter id.
type Series struct {
	ID   string        `json:"id"`
	Data []Observation `json:"data"`
}

// RunEvent is one entry of a run's event log.
type RunEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
}

// SimulationRun is one execution of a scenario against a system.
type SimulationRun struct {
	ID                    string                 `json:"id"`
	SystemID              string                 `json:"systemId"`
	InitiatedBy           string                 `json:"initiatedBy"`
	ScenarioID            string                 `json:"scenarioId,omitempty"`
	StartTime             time.Time              `json:"startTime"`
	EndTime               *time.Time             `json:"endTime,omitempty"`
	DurationMs            *int64                 `json:"durationMs,omitempty"`
	Status                RunStatus              `json:"status"`
	InitialState          []ParameterSetting     `json:"initialState"`
	AppliedLeveragePoints []AppliedLeveragePoint `json:"appliedLeveragePoints"`
	Results               RunResults             `json:"results"`
	MetricsHistory        []Series               `json:"metricsHistory"`
	ParametersHistory     []Series               `json:"parametersHistory"`
	Events                []RunEvent             `json:"events"`
	ModelVersion          string                 `json:"modelVersion"`
	Tags                  []string               `json:"tags,omitempty"`
	Notes                 string                 `json:"notes,omitempty"`
}

// IsTerminal returns true if the run has reached a final state.
func (r *SimulationRun) IsTerminal() bool {
	return r.Status == RunCompleted || r.Status == RunFailed || r.Status == RunCancelled
}

// Duration returns how long the run took (0 if not finished).
func (r *SimulationRun) Duration() time.Duration {
	if r.DurationMs == nil {
		return 0
	}
	return time.Duration(*r.DurationMs) * time.Millisecond
}

// HasEvent reports whether the log contains an event of the given type.
func (r *SimulationRun) HasEvent(typ string) bool {
	for _, e := range r.Events {
		if e.Type == typ {
			return true
		}
	}
	return false
}
