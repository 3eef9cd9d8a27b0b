// Package noema provides the cognitive core for emotionally-contextualized
// agents: affect tracking, diversity-aware semantic memory, a multi-stage
// reasoning loop, and offline belief consolidation.
//
// # Core Types
//
// The package is built around five cooperating components:
//
//   - [AffectState] / [EmotionEngine] - a bounded vector of emotional
//     variables updated per turn via an intensity-weighted moving average
//   - [MemoryIndex] - fragment storage with embeddings, importance, and
//     MMR-reranked similarity search with a freshness floor
//   - [CognitiveLoop] - the per-turn pipeline: perceive, retrieve, reason,
//     synthesize, persist
//   - [ConsolidationProcessor] - the offline "dream cycle" that mines
//     accumulated traces for durable beliefs
//   - [StateStore] - the persistence boundary behind all of the above
//
// # Processing a Turn
//
// Wire a store, an index, an engine, an embedder, and two reasoners into a
// loop, then feed it utterances:
//
//	store := noema.NewMemoryStore()
//	index := noema.NewMemoryIndex(store)
//	loop := noema.NewCognitiveLoop(store, index,
//	    noema.NewEmotionEngine(),
//	    []noema.Reasoner{
//	        noema.NewSynapseReasoner(noema.AnalyticSpec, provider),
//	        noema.NewSynapseReasoner(noema.WarmSpec, provider),
//	    },
//	)
//	result, err := loop.ProcessInput(ctx, "identity-1", "I had a rough day")
//
// Every turn appends an immutable [ThoughtTrace]; the trace log is the raw
// material for [ConsolidationProcessor.Run].
//
// # Degradation
//
// Provider and embedder failures never abort a turn. A dead embedder skips
// retrieval, a failing fragment listing yields an empty retrieval set, and a
// dead provider pair yields the fixed [FallbackResponse] with a degraded
// trace. Only persistence failures abort, surfacing
// [ErrStorageUnavailable]. The error taxonomy in errors.go names each
// failure mode so collaborators can test them independently.
//
// # Persistence
//
// Three [StateStore] implementations ship with the package: [MemoryStore]
// (in-process reference), [SoyStore] (Postgres via soy/sqlx/pgvector), and
// [BadgerStore] (embedded Badger key/value).
//
// # Observability
//
// Noema emits capitan signals throughout execution. See signals.go for the
// full catalog of turn, memory, and consolidation events.
package noema
