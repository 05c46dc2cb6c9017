// Package poll waits for asynchronous server-side work to settle.
package poll

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog/log"
	"stackerbuild.io/bomsync/errors"
)

const (
	DefaultMaxAttempts = 30
	DefaultInterval    = 10 * time.Second
)

// Target describes one wait: which states end it and how long to keep asking.
type Target struct {
	// Name is used in progress logs and errors, e.g. "scan state".
	Name        string
	Terminal    []string
	Failure     []string
	MaxAttempts int
	Interval    time.Duration
}

// Report is what a single status check observed.
type Report[T any] struct {
	State  string
	Detail string
	Value  T
}

// Budget is the total time the target is allowed to sleep.
func (t Target) Budget() time.Duration {
	return time.Duration(t.MaxAttempts) * t.Interval
}

var errPending = stderrors.New("pending")

// Until calls fetch until it reports a terminal or failure state, or until
// MaxAttempts calls have been made. A failure state stops immediately.
func Until[T any](ctx context.Context, target Target,
	fetch func(ctx context.Context) (Report[T], error),
) (Report[T], error) {
	var last Report[T]

	if target.MaxAttempts < 1 {
		return last, fmt.Errorf("%w: %s: max attempts must be positive", errors.ErrConfig, target.Name)
	}

	attempt := 0

	operation := func() error {
		attempt++

		report, err := fetch(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		last = report

		if contains(target.Failure, report.State) {
			return backoff.Permanent(fmt.Errorf("%w: %s is %s: %s",
				errors.ErrRemoteFailure, target.Name, report.State, report.Detail))
		}

		if contains(target.Terminal, report.State) {
			return nil
		}

		log.Info().Str("wait", target.Name).Str("state", report.State).
			Int("attempt", attempt).Int("max", target.MaxAttempts).Msg("waiting")

		return errPending
	}

	if err := backoff.Retry(operation, newBackOff(ctx, target)); err != nil {
		if stderrors.Is(err, errPending) {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}

			return last, fmt.Errorf("%w: %s still %s after %d attempts (%s)",
				errors.ErrTimeout, target.Name, last.State, attempt, target.Budget())
		}

		return last, err
	}

	return last, nil
}

func newBackOff(ctx context.Context, target Target) backoff.BackOff {
	var bo backoff.BackOff = &backoff.StopBackOff{}

	// WithMaxRetries treats zero as unlimited, so a single attempt needs StopBackOff
	if target.MaxAttempts > 1 {
		bo = backoff.WithMaxRetries(backoff.NewConstantBackOff(target.Interval), uint64(target.MaxAttempts-1))
	}

	return backoff.WithContext(bo, ctx)
}

func contains(states []string, state string) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}

	return false
}
