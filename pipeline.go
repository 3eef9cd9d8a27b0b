package noema

import (
	"context"
	"time"

	"github.com/zoobzio/pipz"
)

// -----------------------------------------------------------------------------
// Adapter Functions - wrap functions to create Turn processors
// -----------------------------------------------------------------------------

// Do creates a processor from a custom function that can fail.
// This is the easiest way to add custom logic around a cognitive turn.
//
// Example:
//
//	redact := noema.Do("redact-input", func(ctx context.Context, t *noema.Turn) (*noema.Turn, error) {
//	    t.Input = scrub(t.Input)
//	    return t, nil
//	})
func Do(name string, fn func(context.Context, *Turn) (*Turn, error)) pipz.Processor[*Turn] {
	return pipz.Apply(pipz.NewIdentity(name, ""), fn)
}

// Transform creates a processor from a pure transformation function.
// Use this when your operation cannot fail.
//
// Example:
//
//	tag := noema.Transform("tag-session", func(ctx context.Context, t *noema.Turn) *noema.Turn {
//	    t.Input = "[session] " + t.Input
//	    return t
//	})
func Transform(name string, fn func(context.Context, *Turn) *Turn) pipz.Processor[*Turn] {
	return pipz.Transform(pipz.NewIdentity(name, ""), fn)
}

// Effect creates a processor that performs a side effect without modifying
// the turn. Use this for logging, metrics, or other observational work.
//
// Example:
//
//	audit := noema.Effect("audit-turn", func(ctx context.Context, t *noema.Turn) error {
//	    log.Printf("turn %s for %s", t.ID, t.Identity)
//	    return nil
//	})
func Effect(name string, fn func(context.Context, *Turn) error) pipz.Processor[*Turn] {
	return pipz.Effect(pipz.NewIdentity(name, ""), fn)
}

// Enrich creates a processor that optionally enhances a turn.
// Unlike Do, errors are logged but don't stop the pipeline.
func Enrich(name string, fn func(context.Context, *Turn) (*Turn, error)) pipz.Processor[*Turn] {
	return pipz.Enrich(pipz.NewIdentity(name, ""), fn)
}

// -----------------------------------------------------------------------------
// Connectors - compose turn processors
// -----------------------------------------------------------------------------

// Sequence creates a sequential pipeline of turn processors.
// Each processor receives the output of the previous one.
func Sequence(name string, processors ...pipz.Chainable[*Turn]) *pipz.Sequence[*Turn] {
	return pipz.NewSequence(pipz.NewIdentity(name, ""), processors...)
}

// Filter creates a conditional processor. When the predicate returns true
// the processor runs; otherwise the turn passes through unchanged.
//
// Example:
//
//	degradedOnly := noema.Filter("degraded-only",
//	    func(ctx context.Context, t *noema.Turn) bool { return t.Degraded() },
//	    alertProcessor,
//	)
func Filter(name string, predicate func(context.Context, *Turn) bool, processor pipz.Chainable[*Turn]) *pipz.Filter[*Turn] {
	return pipz.NewFilter(pipz.NewIdentity(name, ""), predicate, processor)
}

// Fallback creates a processor that tries alternatives on failure.
// Each processor is tried in order until one succeeds.
func Fallback(name string, processors ...pipz.Chainable[*Turn]) *pipz.Fallback[*Turn] {
	return pipz.NewFallback(pipz.NewIdentity(name, ""), processors...)
}

// Retry creates a processor that retries on failure up to maxAttempts times.
// Immediate retry without delay - for backoff, use Backoff instead.
func Retry(name string, processor pipz.Chainable[*Turn], maxAttempts int) *pipz.Retry[*Turn] {
	return pipz.NewRetry(pipz.NewIdentity(name, ""), processor, maxAttempts)
}

// Backoff creates a processor that retries with exponential backoff.
func Backoff(name string, processor pipz.Chainable[*Turn], maxAttempts int, baseDelay time.Duration) *pipz.Backoff[*Turn] {
	return pipz.NewBackoff(pipz.NewIdentity(name, ""), processor, maxAttempts, baseDelay)
}

// Timeout creates a processor that enforces a time limit on execution.
// If the timeout expires, the operation is canceled and an error returned.
func Timeout(name string, processor pipz.Chainable[*Turn], duration time.Duration) *pipz.Timeout[*Turn] {
	return pipz.NewTimeout(pipz.NewIdentity(name, ""), processor, duration)
}

// Handle creates a processor that observes errors without stopping the
// pipeline. When the primary processor fails, the error handler is invoked
// with a pipz.Error[*Turn] carrying full context.
func Handle(name string, processor pipz.Chainable[*Turn], errorHandler pipz.Chainable[*pipz.Error[*Turn]]) *pipz.Handle[*Turn] {
	return pipz.NewHandle(pipz.NewIdentity(name, ""), processor, errorHandler)
}

// -----------------------------------------------------------------------------
// Parallel Connectors - these require *Turn's Clone (see turn.go)
// -----------------------------------------------------------------------------

// Concurrent runs all processors in parallel, each on an isolated clone,
// and uses the reducer to fold results back into the original turn.
func Concurrent(name string, reducer func(original *Turn, results map[pipz.Identity]*Turn, errors map[pipz.Identity]error) *Turn, processors ...pipz.Chainable[*Turn]) *pipz.Concurrent[*Turn] {
	return pipz.NewConcurrent(pipz.NewIdentity(name, ""), reducer, processors...)
}

// Race runs all processors in parallel and returns the first successful
// result.
func Race(name string, processors ...pipz.Chainable[*Turn]) *pipz.Race[*Turn] {
	return pipz.NewRace(pipz.NewIdentity(name, ""), processors...)
}
