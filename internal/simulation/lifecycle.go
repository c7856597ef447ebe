// Package simulation implements the simulation run lifecycle:
//
//	Pending ──Begin──▶ Running ──Complete──▶ Completed
//	                      │ ────Fail──────▶ Failed
//	                      └────Cancel────▶ Cancelled
//
// Terminal states accept no further transition. A rejected transition
// returns an error and leaves the run untouched.
package simulation

import (
	"fmt"
	"time"

	"github.com/chaostheorist/chaos/internal/domain"
)

// Spec describes a run to create.
type Spec struct {
	ID           string
	SystemID     string
	ScenarioID   string
	InitiatedBy  string
	InitialState []domain.ParameterSetting
	ModelVersion string
	Tags         []string
}

// NewPending creates a run that has not started yet, for scheduled or
// approval-gated starts.
func NewPending(s Spec) domain.SimulationRun {
	return domain.SimulationRun{
		ID:                    s.ID,
		SystemID:              s.SystemID,
		ScenarioID:            s.ScenarioID,
		InitiatedBy:           s.InitiatedBy,
		Status:                domain.RunPending,
		InitialState:          append([]domain.ParameterSetting(nil), s.InitialState...),
		AppliedLeveragePoints: []domain.AppliedLeveragePoint{},
		Results:               pendingResults(),
		MetricsHistory:        []domain.Series{},
		ParametersHistory:     []domain.Series{},
		Events:                []domain.RunEvent{},
		ModelVersion:          s.ModelVersion,
		Tags:                  append([]string(nil), s.Tags...),
	}
}

// Start creates a run directly in Running with a single start event.
func Start(s Spec, at time.Time) domain.SimulationRun {
	run := NewPending(s)
	_ = Begin(&run, at)
	return run
}

// Begin moves a pending run to Running and logs the start event.
func Begin(run *domain.SimulationRun, at time.Time) error {
	if run.Status != domain.RunPending {
		return reject(run, "begin")
	}
	run.Status = domain.RunRunning
	run.StartTime = at
	run.Events = append(run.Events, domain.RunEvent{
		Timestamp:   at,
		Type:        domain.EventStart,
		Description: "Simulation started",
	})
	return nil
}

// RecordEvent appends a typed event to a running simulation.
func RecordEvent(run *domain.SimulationRun, at time.Time, typ, description string) error {
	if err := requireRunning(run, "record event"); err != nil {
		return err
	}
	if n := len(run.Events); n > 0 && at.Before(run.Events[n-1].Timestamp) {
		return fmt.Errorf("%w: event at %s", domain.ErrOutOfOrder, at.Format(time.RFC3339))
	}
	run.Events = append(run.Events, domain.RunEvent{Timestamp: at, Type: typ, Description: description})
	return nil
}

// RecordMetric appends an observation to the metric's history.
func RecordMetric(run *domain.SimulationRun, metricID string, o domain.Observation) error {
	if err := requireRunning(run, "record metric"); err != nil {
		return err
	}
	series, err := appendSeries(run.MetricsHistory, metricID, o)
	if err != nil {
		return err
	}
	run.MetricsHistory = series
	return nil
}

// RecordParameter appends an observation to the parameter's history.
func RecordParameter(run *domain.SimulationRun, parameterID string, o domain.Observation) error {
	if err := requireRunning(run, "record parameter"); err != nil {
		return err
	}
	series, err := appendSeries(run.ParametersHistory, parameterID, o)
	if err != nil {
		return err
	}
	run.ParametersHistory = series
	return nil
}

// PlanLeveragePoint schedules a leverage point into the run as planned.
func PlanLeveragePoint(run *domain.SimulationRun, leveragePointID, agentID string, at time.Time) error {
	if err := requireRunning(run, "plan leverage point"); err != nil {
		return err
	}
	for _, a := range run.AppliedLeveragePoints {
		if a.LeveragePointID == leveragePointID {
			return fmt.Errorf("%w: leverage point %s already planned", domain.ErrInvalidTransition, leveragePointID)
		}
	}
	run.AppliedLeveragePoints = append(run.AppliedLeveragePoints, domain.AppliedLeveragePoint{
		LeveragePointID: leveragePointID,
		ApplicationTime: at,
		AgentID:         agentID,
		Status:          domain.ApplicationPlanned,
	})
	return nil
}

// ResolveLeveragePoint moves a planned application to executed or failed.
func ResolveLeveragePoint(run *domain.SimulationRun, leveragePointID string, status domain.ApplicationStatus, at time.Time) error {
	if err := requireRunning(run, "resolve leverage point"); err != nil {
		return err
	}
	if status != domain.ApplicationExecuted && status != domain.ApplicationFailed {
		return fmt.Errorf("%w: cannot resolve leverage point to %q", domain.ErrInvalidTransition, status)
	}
	for i := range run.AppliedLeveragePoints {
		a := &run.AppliedLeveragePoints[i]
		if a.LeveragePointID != leveragePointID {
			continue
		}
		if a.Status != domain.ApplicationPlanned {
			return fmt.Errorf("%w: leverage point %s already %s", domain.ErrInvalidTransition, leveragePointID, a.Status)
		}
		if err := RecordEvent(run, at, domain.EventIntervention,
			fmt.Sprintf("Leverage point %s %s", leveragePointID, status)); err != nil {
			return err
		}
		a.Status = status
		a.ApplicationTime = at
		return nil
	}
	return domain.NotFound("applied leverage point", leveragePointID)
}

// Complete finishes a running simulation successfully.
func Complete(run *domain.SimulationRun, at time.Time, results domain.RunResults) error {
	return finish(run, domain.RunCompleted, at, domain.EventComplete, "Simulation completed", results)
}

// Fail terminates a running simulation with a failure reason.
func Fail(run *domain.SimulationRun, at time.Time, reason string, results domain.RunResults) error {
	return finish(run, domain.RunFailed, at, domain.EventFailure, "Simulation failed: "+reason, results)
}

// Cancel stops a running simulation.
func Cancel(run *domain.SimulationRun, at time.Time, reason string) error {
	results := run.Results
	if results.OverallImpact == pendingImpact {
		results.OverallImpact = "Cancelled before completion"
	}
	return finish(run, domain.RunCancelled, at, domain.EventCancel, "Simulation cancelled: "+reason, results)
}

func finish(run *domain.SimulationRun, status domain.RunStatus, at time.Time, eventType, description string, results domain.RunResults) error {
	if err := requireRunning(run, string(status)); err != nil {
		return err
	}
	if !run.HasEvent(domain.EventStart) {
		return fmt.Errorf("%w: run %s has no start event", domain.ErrInvalidTransition, run.ID)
	}
	if at.Before(run.StartTime) {
		return fmt.Errorf("%w: end %s precedes start", domain.ErrOutOfOrder, at.Format(time.RFC3339))
	}
	if err := RecordEvent(run, at, eventType, description); err != nil {
		return err
	}
	end := at
	ms := end.Sub(run.StartTime).Milliseconds()
	run.Status = status
	run.EndTime = &end
	run.DurationMs = &ms
	run.Results = freeze(results)
	return nil
}

const pendingImpact = "Processing..."

func pendingResults() domain.RunResults {
	return domain.RunResults{
		OverallImpact:          pendingImpact,
		RiskAssessment:         []domain.Risk{},
		AchievedGoals:          []string{},
		UnintendedConsequences: []string{},
	}
}

// freeze copies the result slices so later caller mutation cannot reach
// the terminal run.
func freeze(r domain.RunResults) domain.RunResults {
	return domain.RunResults{
		OverallImpact:          r.OverallImpact,
		RiskAssessment:         append([]domain.Risk{}, r.RiskAssessment...),
		AchievedGoals:          append([]string{}, r.AchievedGoals...),
		UnintendedConsequences: append([]string{}, r.UnintendedConsequences...),
	}
}

func requireRunning(run *domain.SimulationRun, op string) error {
	if run.Status == domain.RunRunning {
		return nil
	}
	return reject(run, op)
}

func reject(run *domain.SimulationRun, op string) error {
	if run.IsTerminal() {
		return fmt.Errorf("%w: cannot %s run %s (%s)", domain.ErrRunTerminal, op, run.ID, run.Status)
	}
	return fmt.Errorf("%w: cannot %s run %s (%s)", domain.ErrInvalidTransition, op, run.ID, run.Status)
}

func appendSeries(series []domain.Series, id string, o domain.Observation) ([]domain.Series, error) {
	for i := range series {
		if series[i].ID != id {
			continue
		}
		data := series[i].Data
		if n := len(data); n > 0 && o.Timestamp.Before(data[n-1].Timestamp) {
			return nil, fmt.Errorf("%w: %s at %s", domain.ErrOutOfOrder, id, o.Timestamp.Format(time.RFC3339))
		}
		series[i].Data = append(data, o)
		return series, nil
	}
	return append(series, domain.Series{ID: id, Data: []domain.Observation{o}}), nil
}
