package noema

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// CognitiveLoop runs one perceive-retrieve-reason-synthesize-persist turn
// per input. Turns for the same identity are serialized; different
// identities run concurrently.
type CognitiveLoop struct {
	store    StateStore
	index    *MemoryIndex
	engine   *EmotionEngine
	embedder Embedder

	reasoners []Reasoner
	pipeline  *pipz.Sequence[*Turn]

	reasoningTimeout time.Duration
	embedTimeout     time.Duration
	retrievalK       int
	arousalBias      float64

	sessions sync.Map // identity -> *sync.Mutex
}

// LoopOption customizes a CognitiveLoop.
type LoopOption func(*CognitiveLoop)

// WithReasoningTimeout bounds each reasoning candidate independently.
func WithReasoningTimeout(d time.Duration) LoopOption {
	return func(l *CognitiveLoop) {
		if d > 0 {
			l.reasoningTimeout = d
		}
	}
}

// WithEmbedTimeout bounds the retrieval embedding call.
func WithEmbedTimeout(d time.Duration) LoopOption {
	return func(l *CognitiveLoop) {
		if d > 0 {
			l.embedTimeout = d
		}
	}
}

// WithRetrievalK sets how many fragments each turn retrieves.
func WithRetrievalK(k int) LoopOption {
	return func(l *CognitiveLoop) {
		if k > 0 {
			l.retrievalK = k
		}
	}
}

// WithArousalBias sets how strongly arousal lowers the retrieval lambda.
func WithArousalBias(b float64) LoopOption {
	return func(l *CognitiveLoop) {
		l.arousalBias = b
	}
}

// WithLoopEmbedder sets an explicit embedder, bypassing the context/global
// resolution hierarchy.
func WithLoopEmbedder(e Embedder) LoopOption {
	return func(l *CognitiveLoop) {
		l.embedder = e
	}
}

// NewCognitiveLoop wires a loop over the given store, index, and emotion
// engine. Reasoners run concurrently each turn and their candidates are
// arbitrated during synthesis; at least one reasoner is required for
// non-degraded turns.
func NewCognitiveLoop(store StateStore, index *MemoryIndex, engine *EmotionEngine, reasoners []Reasoner, opts ...LoopOption) *CognitiveLoop {
	l := &CognitiveLoop{
		store:            store,
		index:            index,
		engine:           engine,
		reasoners:        reasoners,
		reasoningTimeout: DefaultReasoningTimeout,
		embedTimeout:     DefaultEmbedTimeout,
		retrievalK:       DefaultRetrievalK,
		arousalBias:      DefaultArousalLambdaBias,
	}
	for _, opt := range opts {
		opt(l)
	}

	l.pipeline = Sequence("cognitive-turn",
		l.stage("perceive", l.perceive),
		l.stage("retrieve", l.retrieve),
		l.stage("reason", l.reason),
		l.stage("synthesize", l.synthesize),
		l.stage("persist", l.persist),
	)
	return l
}

// stage wraps a turn function with stage-level events.
func (l *CognitiveLoop) stage(name string, fn func(context.Context, *Turn) (*Turn, error)) pipz.Chainable[*Turn] {
	return Do(name, func(ctx context.Context, t *Turn) (*Turn, error) {
		start := time.Now()
		capitan.Emit(ctx, StageStarted,
			FieldIdentity.Field(t.Identity),
			FieldTurnID.Field(t.ID.String()),
			FieldStage.Field(name),
		)

		out, err := fn(ctx, t)
		if err != nil {
			capitan.Error(ctx, StageFailed,
				FieldIdentity.Field(t.Identity),
				FieldTurnID.Field(t.ID.String()),
				FieldStage.Field(name),
				FieldError.Field(err),
			)
			return out, err
		}

		capitan.Emit(ctx, StageCompleted,
			FieldIdentity.Field(t.Identity),
			FieldTurnID.Field(t.ID.String()),
			FieldStage.Field(name),
			FieldStageDuration.Field(time.Since(start)),
		)
		return out, nil
	})
}

// session returns the serialization mutex for an identity.
func (l *CognitiveLoop) session(identity string) *sync.Mutex {
	mu, _ := l.sessions.LoadOrStore(identity, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ProcessInput runs one full cognitive turn for an identity. Turns for the
// same identity never interleave. Storage failures abort the turn; provider
// and embedder failures degrade it instead.
func (l *CognitiveLoop) ProcessInput(ctx context.Context, identity, input string) (*TurnResult, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: empty identity", ErrUnknownIdentity)
	}

	mu := l.session(identity)
	mu.Lock()
	defer mu.Unlock()

	turn := NewTurn(identity, input)
	capitan.Emit(ctx, TurnStarted,
		FieldIdentity.Field(identity),
		FieldTurnID.Field(turn.ID.String()),
	)

	// The pipeline returns its zero value on error; emit from the turn we
	// still hold.
	processed, err := l.pipeline.Process(ctx, turn)
	if err != nil {
		capitan.Error(ctx, TurnFailed,
			FieldIdentity.Field(identity),
			FieldTurnID.Field(turn.ID.String()),
			FieldError.Field(err),
		)
		return nil, err
	}
	turn = processed

	result := &TurnResult{
		TurnID:    turn.ID,
		Identity:  turn.Identity,
		Response:  turn.Response,
		Mode:      turn.Mode,
		Affect:    turn.Affect.Vector.Clone(),
		Retrieved: turn.Retrieved,
		TraceSeq:  turn.traceSeq,
	}

	signal := TurnCompleted
	if turn.Degraded() {
		signal = TurnDegraded
	}
	capitan.Emit(ctx, signal,
		FieldIdentity.Field(identity),
		FieldTurnID.Field(turn.ID.String()),
		FieldMode.Field(turn.Mode),
	)
	return result, nil
}

// ProcessSignal applies an explicit affect signal outside a turn, for
// callers that perceive through their own channel. Invalid signals are
// rejected and leave the stored affect untouched.
func (l *CognitiveLoop) ProcessSignal(ctx context.Context, identity string, sig AffectSignal) (*AffectState, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: empty identity", ErrUnknownIdentity)
	}

	mu := l.session(identity)
	mu.Lock()
	defer mu.Unlock()

	affect, err := l.loadOrCreateAffect(ctx, identity)
	if err != nil {
		return nil, err
	}
	if err := l.engine.Apply(ctx, affect, sig); err != nil {
		return nil, err
	}
	if err := l.store.SaveAffect(ctx, affect); err != nil {
		return nil, err
	}
	return affect, nil
}

// ResetAffect restores an identity's affect to the resting baseline and
// persists it. Affect is never deleted; this is the only way back to rest
// short of letting signals decay it there.
func (l *CognitiveLoop) ResetAffect(ctx context.Context, identity string) (*AffectState, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: empty identity", ErrUnknownIdentity)
	}

	mu := l.session(identity)
	mu.Lock()
	defer mu.Unlock()

	affect, err := l.loadOrCreateAffect(ctx, identity)
	if err != nil {
		return nil, err
	}
	l.engine.Reset(affect)
	if err := l.store.SaveAffect(ctx, affect); err != nil {
		return nil, fmt.Errorf("%w: save affect: %v", ErrStorageUnavailable, err)
	}
	return affect, nil
}

// Affect returns an identity's current affect state, creating the resting
// baseline on first use.
func (l *CognitiveLoop) Affect(ctx context.Context, identity string) (*AffectState, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: empty identity", ErrUnknownIdentity)
	}
	return l.loadOrCreateAffect(ctx, identity)
}

func (l *CognitiveLoop) loadOrCreateAffect(ctx context.Context, identity string) (*AffectState, error) {
	affect, err := l.store.LoadAffect(ctx, identity)
	if errors.Is(err, ErrNotFound) {
		return NewAffectState(identity), nil
	}
	if err != nil {
		return nil, err
	}
	return affect, nil
}
