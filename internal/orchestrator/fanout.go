package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/wikid/internal/metrics"
)

// Tally is the aggregate outcome of one fan-out operation.
type Tally struct {
	Total     int
	Succeeded int
	Failed    int
}

// FullySucceeded reports whether every item succeeded.
func (t Tally) FullySucceeded() bool {
	return t.Failed == 0 && t.Succeeded == t.Total
}

// forEach runs total items under the configured concurrency bound.
//
// Each item gets its own timeout layered on ctx; the item's deadline is the
// single authoritative timeout and never conflicts with the shared
// cancellation signal, which always reaches every item. Item failures
// (including per-item timeouts) are counted and isolated. Cancellation of
// ctx stops scheduling queued items, waits for in-flight items, and is
// returned as the operation error; per-item failure never is.
func (o *Orchestrator) forEach(ctx context.Context, opName string, total int, itemTimeout time.Duration, run func(ctx context.Context, i int) error) (Tally, error) {
	var succeeded, failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.ParallelCount)

	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			itemCtx, cancel := context.WithTimeout(ctx, itemTimeout)
			defer cancel()

			err := run(itemCtx, i)
			switch {
			case err == nil:
				succeeded.Add(1)
				metrics.FanoutTasks.WithLabelValues(opName, "success").Inc()
			case ctx.Err() != nil:
				// The whole batch is being cancelled; not an item failure.
				metrics.FanoutTasks.WithLabelValues(opName, "cancelled").Inc()
			default:
				failed.Add(1)
				metrics.FanoutTasks.WithLabelValues(opName, "failure").Inc()
				o.logger.Warn(ctx, "fan-out item failed",
					zap.Int("item", i),
					zap.Error(err))
			}
			return nil
		})
	}

	_ = g.Wait()

	tally := Tally{
		Total:     total,
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
	}
	if err := ctx.Err(); err != nil {
		return tally, err
	}
	return tally, nil
}
