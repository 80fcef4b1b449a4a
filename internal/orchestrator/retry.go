package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wikid/internal/agent"
	"github.com/fyrsmithlabs/wikid/internal/metrics"
	"github.com/fyrsmithlabs/wikid/internal/store"
)

const (
	// maxBackoff caps every computed retry delay.
	maxBackoff = 60 * time.Second
	// maxJitter is the upper bound of the uniform jitter added per delay.
	maxJitter = time.Second
)

// backoffDelay computes the delay before the retry that follows attempt:
// min(base * 2^(attempt-1) + jitter, 60s). jitter must be in [0, maxJitter).
func backoffDelay(attempt int, base, jitter time.Duration) time.Duration {
	d := base
	// Shift with overflow guard; past the cap the exact value is irrelevant.
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff || d < 0 {
			d = maxBackoff
			break
		}
	}
	d += jitter
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// executeWithRetry runs one agent session with the retry policy:
//
//   - transient failures are retried with exponential backoff up to the
//     configured attempt maximum, then wrapped in ErrRetriesExhausted;
//   - non-transient failures fail immediately;
//   - a fired wall-clock deadline on ctx is a timeout, never retried here;
//   - cancellation of ctx propagates as-is.
//
// Every attempt that produced nonzero tokens appends one usage record
// tagged with opName, success or not.
func (o *Orchestrator) executeWithRetry(ctx context.Context, opCtx OperationContext, sess *agent.Session, opName string) (*agent.Result, error) {
	var lastErr error

	for attempt := 1; attempt <= o.cfg.MaxRetryAttempts; attempt++ {
		start := time.Now()
		res, err := o.runner.Run(ctx, sess)
		metrics.AttemptDuration.WithLabelValues(opName).Observe(time.Since(start).Seconds())

		if res != nil && (res.InputTokens > 0 || res.OutputTokens > 0) {
			o.recordUsage(ctx, opCtx, sess.Model, opName, res)
		}

		if err == nil {
			metrics.Attempts.WithLabelValues(opName, "success").Inc()
			return res, nil
		}

		// The caller's context decides the category: deadline means this
		// call's wall-clock cap fired, cancellation aborts everything.
		if cerr := ctx.Err(); cerr != nil {
			if errors.Is(cerr, context.DeadlineExceeded) {
				metrics.Attempts.WithLabelValues(opName, "timeout").Inc()
				return res, fmt.Errorf("%s attempt %d: %w: %w", opName, attempt, ErrTimedOut, err)
			}
			return res, cerr
		}

		if !isTransient(err) {
			metrics.Attempts.WithLabelValues(opName, "fatal_error").Inc()
			return res, fmt.Errorf("%s attempt %d: %w", opName, attempt, err)
		}

		metrics.Attempts.WithLabelValues(opName, "transient_error").Inc()
		lastErr = err

		if attempt == o.cfg.MaxRetryAttempts {
			break
		}

		jitter := time.Duration(rand.Int64N(int64(maxJitter)))
		delay := backoffDelay(attempt, o.cfg.RetryDelay(), jitter)
		o.logger.Warn(ctx, "transient provider failure, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		if serr := o.sleep(ctx, delay); serr != nil {
			return nil, serr
		}
	}

	return nil, fmt.Errorf("%s: %w after %d attempts: %w",
		opName, ErrRetriesExhausted, o.cfg.MaxRetryAttempts, lastErr)
}

// recordUsage appends one token usage record and bumps counters. Usage
// persistence must never fail the operation; errors are logged only.
func (o *Orchestrator) recordUsage(ctx context.Context, opCtx OperationContext, model, opName string, res *agent.Result) {
	// Usage from a timed-out or cancelled attempt still counts.
	ctx = context.WithoutCancel(ctx)
	rec := &store.UsageRecord{
		RepositoryID: opCtx.RepositoryID,
		Model:        model,
		Operation:    opName,
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
		RecordedAt:   time.Now().UTC(),
	}
	if err := o.store.AppendUsage(ctx, rec); err != nil {
		o.logger.Error(ctx, "failed to append usage record", zap.Error(err))
	}
	metrics.TokensInput.WithLabelValues(model, opName).Add(float64(res.InputTokens))
	metrics.TokensOutput.WithLabelValues(model, opName).Add(float64(res.OutputTokens))
}
