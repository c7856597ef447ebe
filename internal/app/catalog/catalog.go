// Package catalog is the local backend behind the Resource Gateway. It
// serves the system catalog from SQLite, runs the leverage analysis and
// drives simulation runs through their lifecycle.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chaostheorist/chaos/internal/domain"
	"github.com/chaostheorist/chaos/internal/infra/analysis"
	"github.com/chaostheorist/chaos/internal/infra/metrics"
	"github.com/chaostheorist/chaos/internal/infra/sqlite"
	"github.com/chaostheorist/chaos/internal/simulation"
)

// DefaultModelVersion is stamped on runs of systems that declare none.
const DefaultModelVersion = "1.0"

// Service implements domain.ResourceGateway over local storage.
type Service struct {
	db       *sqlite.DB
	analyzer *analysis.Analyzer
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a catalog service.
func NewService(db *sqlite.DB, analyzer *analysis.Analyzer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, analyzer: analyzer, logger: logger, now: time.Now}
}

var _ domain.ResourceGateway = (*Service)(nil)

// ListSystems returns the full catalog.
func (s *Service) ListSystems(ctx context.Context) ([]domain.ChaoticSystemDefinition, error) {
	systems, err := s.db.ListSystems(ctx)
	if err != nil {
		return nil, transport("list systems", err)
	}
	return systems, nil
}

// GetSystem returns one system.
func (s *Service) GetSystem(ctx context.Context, id string) (domain.ChaoticSystemDefinition, error) {
	sys, err := s.db.GetSystem(ctx, id)
	if err != nil {
		return domain.ChaoticSystemDefinition{}, transport("get system", err)
	}
	return sys, nil
}

// IdentifyLeveragePoints runs the leverage analysis for a system.
func (s *Service) IdentifyLeveragePoints(ctx context.Context, systemID string) ([]domain.LeveragePoint, error) {
	sys, err := s.GetSystem(ctx, systemID)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Identify(ctx, sys)
}

// UpdateParameter validates and writes one parameter value. The stored
// system gets a new content hash and lastModified.
func (s *Service) UpdateParameter(ctx context.Context, systemID, parameterID string, value domain.Value) (domain.SystemParameter, error) {
	p, err := s.db.UpdateParameter(ctx, systemID, parameterID, value, s.now())
	if err != nil {
		return domain.SystemParameter{}, transport("update parameter", err)
	}
	s.logger.Info("parameter updated", "system", systemID, "parameter", parameterID, "value", p.CurrentValue.String())
	return p, nil
}

// ─── Simulations ────────────────────────────────────────────────────────────

// StartSimulation creates a run in Running with one start event. The
// initial state is validated against the system's parameters and recorded
// as the first point of each parameter series.
func (s *Service) StartSimulation(ctx context.Context, req domain.StartRequest) (domain.SimulationRun, error) {
	sys, err := s.GetSystem(ctx, req.SystemID)
	if err != nil {
		return domain.SimulationRun{}, err
	}

	initial := make([]domain.ParameterSetting, 0, len(req.InitialState))
	for _, setting := range req.InitialState {
		p, ok := sys.Parameter(setting.ParameterID)
		if !ok {
			return domain.SimulationRun{}, domain.NotFound("parameter", setting.ParameterID)
		}
		v, err := p.ValidateValue(setting.Value)
		if err != nil {
			return domain.SimulationRun{}, err
		}
		initial = append(initial, domain.ParameterSetting{ParameterID: setting.ParameterID, Value: v})
	}

	modelVersion := sys.ModelVersion
	if modelVersion == "" {
		modelVersion = DefaultModelVersion
	}
	at := s.now()
	run := simulation.Start(simulation.Spec{
		ID:           "sim-" + uuid.NewString(),
		SystemID:     sys.ID,
		ScenarioID:   req.ScenarioID,
		InitiatedBy:  req.InitiatedBy,
		InitialState: initial,
		ModelVersion: modelVersion,
		Tags:         []string{"interactive"},
	}, at)
	for _, setting := range initial {
		if err := simulation.RecordParameter(&run, setting.ParameterID, domain.Observation{Timestamp: at, Value: setting.Value}); err != nil {
			return domain.SimulationRun{}, err
		}
	}

	if err := s.db.SaveRun(ctx, run); err != nil {
		return domain.SimulationRun{}, transport("save run", err)
	}
	metrics.SimulationRuns.WithLabelValues(string(run.Status)).Inc()
	s.logger.Info("simulation started", "run", run.ID, "system", run.SystemID, "initiated_by", run.InitiatedBy)
	return run, nil
}

// GetSimulation returns one run.
func (s *Service) GetSimulation(ctx context.Context, id string) (domain.SimulationRun, error) {
	run, err := s.db.GetRun(ctx, id)
	if err != nil {
		return domain.SimulationRun{}, transport("get run", err)
	}
	return run, nil
}

// ListSimulations returns recent runs of a system, newest first.
func (s *Service) ListSimulations(ctx context.Context, systemID string, limit int) ([]domain.SimulationRun, error) {
	runs, err := s.db.ListRuns(ctx, systemID, limit)
	if err != nil {
		return nil, transport("list runs", err)
	}
	return runs, nil
}

// CompleteSimulation finishes a running run with its results.
func (s *Service) CompleteSimulation(ctx context.Context, id string, results domain.RunResults) (domain.SimulationRun, error) {
	return s.finish(ctx, id, func(run *domain.SimulationRun, at time.Time) error {
		return simulation.Complete(run, at, results)
	})
}

// FailSimulation marks a running run failed.
func (s *Service) FailSimulation(ctx context.Context, id, reason string) (domain.SimulationRun, error) {
	return s.finish(ctx, id, func(run *domain.SimulationRun, at time.Time) error {
		return simulation.Fail(run, at, reason, domain.RunResults{OverallImpact: reason})
	})
}

// CancelSimulation stops a running run.
func (s *Service) CancelSimulation(ctx context.Context, id, reason string) (domain.SimulationRun, error) {
	return s.finish(ctx, id, func(run *domain.SimulationRun, at time.Time) error {
		return simulation.Cancel(run, at, reason)
	})
}

func (s *Service) finish(ctx context.Context, id string, step func(*domain.SimulationRun, time.Time) error) (domain.SimulationRun, error) {
	run, err := s.GetSimulation(ctx, id)
	if err != nil {
		return domain.SimulationRun{}, err
	}
	if err := step(&run, s.now()); err != nil {
		return domain.SimulationRun{}, err
	}
	if err := s.db.SaveRun(ctx, run); err != nil {
		return domain.SimulationRun{}, transport("save run", err)
	}
	metrics.SimulationRuns.WithLabelValues(string(run.Status)).Inc()
	s.logger.Info("simulation finished", "run", run.ID, "status", run.Status, "duration", run.Duration())
	return run, nil
}

// ─── Interventions ──────────────────────────────────────────────────────────

// Proposals returns the intervention proposals recorded for a system.
func (s *Service) Proposals(ctx context.Context, systemID string) ([]domain.InterventionProposal, error) {
	out, err := s.db.ListProposals(ctx, systemID)
	if err != nil {
		return nil, transport("list proposals", err)
	}
	return out, nil
}

// transport classifies storage failures. Domain errors pass through.
func transport(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrAnalysis):
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrTransport, op, err)
}
