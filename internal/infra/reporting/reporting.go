// Package reporting provides the error and intervention reporters the
// console notifies. Both are fire-and-forget.
package reporting

import (
	"context"
	"log/slog"
	"time"

	"github.com/chaostheorist/chaos/internal/domain"
	"github.com/chaostheorist/chaos/internal/infra/metrics"
)

// ErrorLog reports failed operations to the structured log.
type ErrorLog struct {
	logger *slog.Logger
}

// NewErrorLog creates an error reporter.
func NewErrorLog(logger *slog.Logger) *ErrorLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorLog{logger: logger}
}

// Report logs err with its classification.
func (r *ErrorLog) Report(err error) {
	if err == nil {
		return
	}
	kind := domain.Kind(err)
	metrics.ErrorsReported.WithLabelValues(kind).Inc()
	r.logger.Error("operation failed", "kind", kind, "error", err)
}

// ProposalSink stores intervention proposals. *sqlite.DB satisfies it.
type ProposalSink interface {
	InsertProposal(ctx context.Context, p domain.InterventionProposal) (int64, error)
}

// InterventionLog records intervention proposals.
type InterventionLog struct {
	sink    ProposalSink
	actor   string
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewInterventionLog creates an intervention reporter that attributes
// proposals to actor. A nil sink only logs.
func NewInterventionLog(sink ProposalSink, actor string, logger *slog.Logger) *InterventionLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &InterventionLog{
		sink:    sink,
		actor:   actor,
		logger:  logger,
		timeout: 5 * time.Second,
		now:     time.Now,
	}
}

// Notify records one proposal. Storage failures are logged, never returned.
func (r *InterventionLog) Notify(leveragePointID, systemID string) {
	metrics.InterventionsProposed.WithLabelValues(systemID).Inc()
	p := domain.InterventionProposal{
		LeveragePointID: leveragePointID,
		SystemID:        systemID,
		ProposedBy:      r.actor,
		ProposedAt:      r.now(),
	}
	r.logger.Info("intervention proposed", "system", systemID, "leverage_point", leveragePointID, "by", r.actor)
	if r.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if _, err := r.sink.InsertProposal(ctx, p); err != nil {
		r.logger.Warn("intervention proposal not stored", "system", systemID, "leverage_point", leveragePointID, "error", err)
	}
}
