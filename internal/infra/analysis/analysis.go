// Package analysis identifies the leverage points of a system. It ranks the
// leverage points catalogued for the system by expected payoff: outcome
// probability weighted by the historical success rate when one is known.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/chaostheorist/chaos/internal/domain"
)

// Catalog supplies the leverage points recorded for a system.
type Catalog interface {
	ListLeveragePoints(ctx context.Context, systemID string) ([]domain.LeveragePoint, error)
}

// Analyzer ranks leverage points.
type Analyzer struct {
	catalog Catalog
	logger  *slog.Logger
}

// New creates an analyzer over a leverage point catalog.
func New(c Catalog, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{catalog: c, logger: logger}
}

// Score is the expected payoff of a leverage point.
func Score(lp domain.LeveragePoint) float64 {
	rate := 1.0
	if lp.HistoricalSuccessRate != nil {
		rate = *lp.HistoricalSuccessRate
	}
	return lp.OutcomeProbability * rate
}

// Identify returns the leverage points of sys, best first. Entries with an
// outcome probability outside [0,1] are dropped. Every failure matches
// domain.ErrAnalysis.
func (a *Analyzer) Identify(ctx context.Context, sys domain.ChaoticSystemDefinition) ([]domain.LeveragePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAnalysis, err)
	}
	points, err := a.catalog.ListLeveragePoints(ctx, sys.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: list leverage points for %s: %v", domain.ErrAnalysis, sys.ID, err)
	}

	ranked := make([]domain.LeveragePoint, 0, len(points))
	for _, lp := range points {
		if lp.OutcomeProbability < 0 || lp.OutcomeProbability > 1 {
			a.logger.Warn("dropping leverage point with invalid probability",
				"system", sys.ID, "leverage_point", lp.ID, "probability", lp.OutcomeProbability)
			continue
		}
		lp.SystemID = sys.ID
		ranked = append(ranked, lp)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := Score(ranked[i]), Score(ranked[j])
		if si != sj {
			return si > sj
		}
		return ranked[i].PredictionConfidence > ranked[j].PredictionConfidence
	})
	a.logger.Debug("leverage analysis complete", "system", sys.ID, "points", len(ranked))
	return ranked, nil
}
