package blocker

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Evaluator aggregates blockers from independent sources. It is purely
// additive: each source contributes its own blockers, and a source error
// aborts evaluation with that error rather than being read as "no blockers".
type Evaluator struct {
	sources []Source
	logger  *zap.Logger
}

// NewEvaluator builds an evaluator over the default sources.
func NewEvaluator(logger *zap.Logger) *Evaluator {
	return &Evaluator{
		sources: []Source{
			openIssueSource{},
			splitPendingSource{},
			requiredFieldSource{},
		},
		logger: logger,
	}
}

// NewEvaluatorWithSources builds an evaluator over an explicit source list.
func NewEvaluatorWithSources(logger *zap.Logger, sources ...Source) *Evaluator {
	return &Evaluator{sources: sources, logger: logger}
}

// Evaluate runs every source and returns the combined blocker list. The
// result is complete: when N sources are active the caller sees all N
// contributions, not the first.
func (e *Evaluator) Evaluate(ctx context.Context, facts Facts) ([]Blocker, error) {
	var all []Blocker
	for _, source := range e.sources {
		blockers, err := source.Evaluate(ctx, facts)
		if err != nil {
			e.logger.Error("blocker source failed",
				zap.String("source", source.Name()),
				zap.Error(err),
			)
			return nil, fmt.Errorf("blocker source %s: %w", source.Name(), err)
		}
		all = append(all, blockers...)
	}
	return all, nil
}
