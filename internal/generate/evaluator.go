package generate

import (
	"context"

	"github.com/prepforge/mocktest-engine/internal/db"
	"github.com/prepforge/mocktest-engine/internal/mocktest"
	"github.com/prepforge/mocktest-engine/internal/pool"
)

// Evaluator turns one distribution rule into a bounded random sample of
// record ids. It never persists anything; the tab generator owns the links.
type Evaluator struct {
	Registry *pool.Registry
}

// Select returns up to target distinct ids from the rule's pool, applying
// only the scope filters the pool actually exposes and skipping the
// exclusion set. An unknown pool name makes the rule ineffective: nil ids,
// no error. The validator is where unknown pools get reported. Fewer ids
// than target means the eligible pool ran dry; the caller records the
// shortfall.
func (e *Evaluator) Select(ctx context.Context, q db.DBTX, r mocktest.Rule, target int, exclude []int64) ([]int64, error) {
	d, ok := e.Registry.Resolve(r.Pool)
	if !ok {
		return nil, nil
	}
	return pool.Sample(ctx, q, d, r.Filters(), target, exclude)
}
