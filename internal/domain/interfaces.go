package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the console depends on them.

// StartRequest asks the backend to start a simulation run.
type StartRequest struct {
	SystemID     string             `json:"systemId"`
	ScenarioID   string             `json:"scenarioId,omitempty"`
	InitiatedBy  string             `json:"initiatedBy"`
	InitialState []ParameterSetting `json:"initialState,omitempty"`
}

// ResourceGateway fetches and mutates systems, leverage points and runs.
// Implementations keep no entity copies between calls and never retry.
type ResourceGateway interface {
	// ListSystems returns the full catalog. Fails with ErrTransport.
	ListSystems(ctx context.Context) ([]ChaoticSystemDefinition, error)

	// GetSystem returns one system. Fails with ErrNotFound.
	GetSystem(ctx context.Context, id string) (ChaoticSystemDefinition, error)

	// IdentifyLeveragePoints runs the analysis for a system. Fails with ErrAnalysis.
	IdentifyLeveragePoints(ctx context.Context, systemID string) ([]LeveragePoint, error)

	// UpdateParameter writes a parameter value server-side.
	// Fails with ErrNotFound or ErrValidation.
	UpdateParameter(ctx context.Context, systemID, parameterID string, value Value) (SystemParameter, error)

	// StartSimulation creates a run in the Running state.
	StartSimulation(ctx context.Context, req StartRequest) (SimulationRun, error)

	// GetSimulation returns one run. Fails with ErrNotFound.
	GetSimulation(ctx context.Context, id string) (SimulationRun, error)
}

// ChatProvider completes one analyst turn. Latency is unbounded and output
// is non-deterministic. Fails with ErrAIService.
type ChatProvider interface {
	Complete(ctx context.Context, history []ChatMessage, text, instruction string) (string, error)
}

// ErrorReporter receives every failed orchestrated operation.
type ErrorReporter interface {
	Report(err error)
}

// InterventionReporter observes intervention proposals. It never gates them.
type InterventionReporter interface {
	Notify(leveragePointID, systemID string)
}

// AccessPolicy is the ordered set of system ids the current actor may see.
type AccessPolicy []string

// Allows reports whether id is in the policy.
func (p AccessPolicy) Allows(id string) bool {
	for _, a := range p {
		if a == id {
			return true
		}
	}
	return false
}

// PreferenceStore persists user preferences across restarts.
type PreferenceStore interface {
	LoadPreferences(ctx context.Context) (map[string]string, error)
	SavePreference(ctx context.Context, key, value string) error
}
