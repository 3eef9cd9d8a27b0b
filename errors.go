package noema

import "errors"

// Sentinel errors for the cognitive core. Each names a distinct failure mode
// so degrade paths can be tested independently of one another.
var (
	// ErrInvalidSignal indicates a malformed EmotionalSignal (NaN or
	// out-of-range field). The engine never partially applies such a signal.
	ErrInvalidSignal = errors.New("noema: invalid emotional signal")

	// ErrStorageUnavailable indicates the StateStore backend is down.
	// Retrieval degrades to an empty set; persistence is skipped.
	ErrStorageUnavailable = errors.New("noema: storage unavailable")

	// ErrProviderTimeout indicates a reasoning call exceeded its deadline.
	// It affects that candidate only, never the whole turn.
	ErrProviderTimeout = errors.New("noema: provider timed out")

	// ErrProviderError indicates a reasoning call failed for a reason other
	// than its deadline.
	ErrProviderError = errors.New("noema: provider error")

	// ErrEmbedderUnavailable indicates embedding failed; the turn proceeds
	// with empty retrieval context.
	ErrEmbedderUnavailable = errors.New("noema: embedder unavailable")

	// ErrUnknownIdentity is the only error ProcessInput surfaces to callers:
	// the identity argument violated the caller contract.
	ErrUnknownIdentity = errors.New("noema: unknown identity")

	// ErrNotFound indicates a record does not exist in the StateStore.
	ErrNotFound = errors.New("noema: not found")

	// ErrDimensionMismatch indicates an embedding of the wrong length was
	// offered to the index.
	ErrDimensionMismatch = errors.New("noema: vector dimension mismatch")
)
