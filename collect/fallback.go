package collect

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Source is one upstream in a fallback chain.
type Source[T any] struct {
	// Name identifies the upstream in logs, metrics, and breaker state.
	Name string
	// Fetch performs the call. An error or an empty result advances the
	// chain to the next source.
	Fetch func(ctx context.Context) (T, error)
}

// Chain runs sources in order behind the shared breaker set and limiter,
// returning the first non-empty result together with the source name that
// produced it. Empty is consulted on successful fetches; a true result
// advances the chain. When every source fails the joined errors are
// wrapped in an error naming the symbol.
type Chain[T any] struct {
	Breakers *BreakerSet
	Limiter  *Limiter
	Empty    func(T) bool
	Log      *zap.Logger
}

// Fetch walks the chain for symbol.
func (c Chain[T]) Fetch(ctx context.Context, symbol string, sources ...Source[T]) (T, string, error) {
	var zero T
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}

	var errs []error
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}

		var breaker *Breaker
		if c.Breakers != nil {
			breaker = c.Breakers.For(src.Name)
			if err := breaker.Allow(); err != nil {
				log.Debug("source skipped, breaker open",
					zap.String("source", src.Name), zap.String("symbol", symbol))
				errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
				continue
			}
		}

		if c.Limiter != nil {
			if err := c.Limiter.Acquire(ctx); err != nil {
				return zero, "", err
			}
		}
		result, err := src.Fetch(ctx)
		if c.Limiter != nil {
			c.Limiter.Release()
		}

		if err == nil && c.Empty != nil && c.Empty(result) {
			err = ErrEmptyResult
		}
		if breaker != nil {
			// Empty results count against the upstream too: an API that
			// keeps answering with nothing is not healthy for our purposes.
			breaker.Record(err)
		}
		upstreamRequests.WithLabelValues(src.Name, outcomeLabel(err)).Inc()

		if err != nil {
			log.Debug("source failed",
				zap.String("source", src.Name),
				zap.String("symbol", symbol),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			continue
		}
		return result, src.Name, nil
	}

	return zero, "", fmt.Errorf("all sources exhausted for %s: %w", symbol, errors.Join(errs...))
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyResult):
		return "empty"
	case IsRejected(err):
		return "rejected"
	default:
		return "error"
	}
}
