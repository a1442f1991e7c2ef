package profit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const AbandonedRunReason = "run abandoned before completion"

// ReconcileStaleRuns closes out runs that have been running longer than the
// configured timeout, which frees the day for a retry.
func (e *Engine) ReconcileStaleRuns(ctx context.Context) ([]uuid.UUID, error) {
	if e.cfg.StaleRunTimeout <= 0 {
		return nil, nil
	}

	cutoff := e.now().Add(-e.cfg.StaleRunTimeout)
	ids, err := e.runs.MarkAbandoned(ctx, cutoff, AbandonedRunReason)
	if err != nil {
		return nil, fmt.Errorf("ReconcileStaleRuns: %w", err)
	}

	for _, id := range ids {
		e.logger.Warn("stale profit run marked partial", "run_id", id, "cutoff", cutoff)
	}
	return ids, nil
}
