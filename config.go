package noema

import "time"

// Default tunables for the cognitive core. The decay and threshold constants
// are deliberately adjustable: correctness depends on the policies (bounds,
// floors, gates), not on these exact values. Constructors accept WithX
// options to override them per instance.
var (
	// DefaultMomentum is the EMA momentum for affect updates. Higher means
	// slower, more stable affect; lower means more reactive.
	DefaultMomentum = 0.8

	// DefaultCapacity is the per-identity fragment ceiling before eviction.
	DefaultCapacity = 4096

	// DefaultDiversityLambda balances relevance against novelty in MMR
	// re-ranking. 1.0 reduces search to pure top-k similarity.
	DefaultDiversityLambda = 0.75

	// DefaultArousalLambdaBias is how strongly arousal lowers the retrieval
	// lambda, modeling scattered attention under high arousal.
	DefaultArousalLambdaBias = 0.5

	// DefaultPoolMultiplier sizes the MMR candidate pool as a multiple of k.
	DefaultPoolMultiplier = 5

	// DefaultFreshnessWindow is how many insertions back a fragment still
	// counts as recent for the freshness floor.
	DefaultFreshnessWindow = uint64(10)

	// DefaultSimilarityFloor is the minimum similarity a recent fragment
	// needs before the freshness floor will force it into the top k.
	DefaultSimilarityFloor = 0.35

	// DefaultDecayRecovery and DefaultAccessBonus drive importance
	// recomputation on access: importance = clamp(imp*recovery + bonus, 0, 1).
	DefaultDecayRecovery = 0.95
	DefaultAccessBonus   = 0.10

	// DefaultDecayHalfLife controls the time-decay penalty used by eviction
	// scoring; the penalty saturates toward 1 as idle time grows past it.
	DefaultDecayHalfLife = 24 * time.Hour

	// DefaultReasoningTimeout bounds each reasoning candidate independently.
	DefaultReasoningTimeout = 30 * time.Second

	// DefaultEmbedTimeout bounds a single embedding call.
	DefaultEmbedTimeout = 10 * time.Second

	// DefaultRetrievalK is how many fragments a turn retrieves for context.
	DefaultRetrievalK = 6

	// Consolidation gate defaults.
	DefaultAcceptThreshold  = 0.7
	DefaultProposeFloor     = 0.4
	DefaultClusterThreshold = 0.8
	DefaultMinClusterSize   = 3

	// DefaultConsolidationInterval is the background dream-cycle period.
	DefaultConsolidationInterval = 6 * time.Hour
)

// FallbackResponse is the fixed, fully local degraded-mode reply emitted
// when both reasoning candidates fail.
const FallbackResponse = "I'm having trouble putting my thoughts together right now. Give me a moment and ask me again."
