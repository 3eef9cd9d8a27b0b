package noema

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
)

// MemoryIndex keeps an in-memory similarity index per identity, mirrored to
// a StateStore for durability. Retrieval re-ranks a relevance pool with
// maximal marginal relevance (MMR) so results stay diverse, and a freshness
// floor keeps very recent memories reachable even when older ones dominate
// on similarity.
type MemoryIndex struct {
	store StateStore

	mu         sync.Mutex
	byIdentity map[string]*identityIndex

	capacity       int
	lambda         float64
	poolMultiplier int
	freshWindow    uint64
	simFloor       float64
	decayRecovery  float64
	accessBonus    float64
	halfLife       time.Duration
}

// identityIndex is one identity's live fragment set.
type identityIndex struct {
	fragments map[uuid.UUID]*MemoryFragment
	nextSeq   uint64
	loaded    bool
}

// IndexOption customizes a MemoryIndex.
type IndexOption func(*MemoryIndex)

// WithCapacity sets the per-identity fragment ceiling.
func WithCapacity(n int) IndexOption {
	return func(idx *MemoryIndex) {
		if n > 0 {
			idx.capacity = n
		}
	}
}

// WithDiversityLambda sets the default MMR relevance/diversity balance.
func WithDiversityLambda(l float64) IndexOption {
	return func(idx *MemoryIndex) {
		idx.lambda = clamp01(l)
	}
}

// WithFreshnessWindow sets how many insertions back a fragment still counts
// as recent.
func WithFreshnessWindow(n uint64) IndexOption {
	return func(idx *MemoryIndex) {
		idx.freshWindow = n
	}
}

// WithSimilarityFloor sets the minimum similarity a recent fragment needs
// before the freshness floor promotes it.
func WithSimilarityFloor(f float64) IndexOption {
	return func(idx *MemoryIndex) {
		idx.simFloor = clamp01(f)
	}
}

// WithDecayHalfLife sets the idle-time half-life used by eviction scoring.
func WithDecayHalfLife(d time.Duration) IndexOption {
	return func(idx *MemoryIndex) {
		if d > 0 {
			idx.halfLife = d
		}
	}
}

// NewMemoryIndex creates an index backed by the given store. Existing
// fragments are loaded lazily the first time an identity is touched.
func NewMemoryIndex(store StateStore, opts ...IndexOption) *MemoryIndex {
	idx := &MemoryIndex{
		store:          store,
		byIdentity:     make(map[string]*identityIndex),
		capacity:       DefaultCapacity,
		lambda:         DefaultDiversityLambda,
		poolMultiplier: DefaultPoolMultiplier,
		freshWindow:    DefaultFreshnessWindow,
		simFloor:       DefaultSimilarityFloor,
		decayRecovery:  DefaultDecayRecovery,
		accessBonus:    DefaultAccessBonus,
		halfLife:       DefaultDecayHalfLife,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// identity returns the live index for an identity, hydrating it from the
// store on first use. Caller must hold idx.mu.
func (idx *MemoryIndex) identity(ctx context.Context, name string) (*identityIndex, error) {
	ii, ok := idx.byIdentity[name]
	if !ok {
		ii = &identityIndex{fragments: make(map[uuid.UUID]*MemoryFragment)}
		idx.byIdentity[name] = ii
	}
	if !ii.loaded {
		frags, err := idx.store.FragmentsByIdentity(ctx, name)
		if err != nil {
			return nil, err
		}
		for _, f := range frags {
			ii.fragments[f.ID] = f
			if f.Seq > ii.nextSeq {
				ii.nextSeq = f.Seq
			}
		}
		ii.loaded = true
	}
	return ii, nil
}

// Insert indexes a new fragment for an identity. The fragment gets the next
// insertion sequence and an initial importance derived from the seed. The
// store write happens before the mirror update, so an unavailable store
// never leaves a phantom fragment in memory. Capacity eviction runs after a
// successful insert.
func (idx *MemoryIndex) Insert(ctx context.Context, identity string, seed FragmentSeed, embedding Vector) (*MemoryFragment, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: empty identity", ErrUnknownIdentity)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	ii, err := idx.identity(ctx, identity)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	frag := &MemoryFragment{
		ID:         uuid.New(),
		Identity:   identity,
		Content:    seed.Content,
		Embedding:  embedding,
		Tags:       append(Strings(nil), seed.Tags...),
		Importance: initialImportance(seed),
		Seq:        ii.nextSeq + 1,
		CreatedAt:  now,
		LastAccess: now,
	}

	if err := idx.store.PutFragment(ctx, frag); err != nil {
		return nil, err
	}
	ii.nextSeq = frag.Seq
	ii.fragments[frag.ID] = frag

	capitan.Emit(ctx, FragmentInserted,
		FieldIdentity.Field(identity),
		FieldFragmentID.Field(frag.ID.String()),
		FieldImportance.Field(float32(frag.Importance)),
	)

	idx.evictLocked(ctx, identity, ii)
	return frag, nil
}

// scored pairs a fragment with its query similarity and, once ranked, its
// final marginal-relevance score.
type scored struct {
	frag  *MemoryFragment
	sim   float64
	score float64
}

// Search returns up to k fragments re-ranked by MMR. lambda weights
// relevance against diversity; pass values outside (0, 1] to use the index
// default. Every returned fragment is touched, refreshing its importance.
func (idx *MemoryIndex) Search(ctx context.Context, identity string, query Vector, k int, lambda float64) ([]RetrievalResult, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: empty identity", ErrUnknownIdentity)
	}
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}
	if lambda <= 0 || lambda > 1 {
		lambda = idx.lambda
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	ii, err := idx.identity(ctx, identity)
	if err != nil {
		return nil, err
	}

	// Relevance pool: top multiplier*k by cosine similarity. Fragments with
	// missing or mismatched embeddings never match.
	pool := make([]scored, 0, len(ii.fragments))
	for _, f := range ii.fragments {
		if len(f.Embedding) != len(query) {
			continue
		}
		sim, err := Cosine(query, f.Embedding)
		if err != nil {
			continue
		}
		pool = append(pool, scored{frag: f, sim: sim})
	}
	sortScored(pool)

	poolSize := idx.poolMultiplier * k
	if len(pool) > poolSize {
		pool = pool[:poolSize]
	}
	if len(pool) == 0 {
		return nil, nil
	}

	selected := mmrSelect(pool, k, lambda)
	selected = idx.applyFreshnessFloor(pool, selected, ii.nextSeq, lambda)

	results := make([]RetrievalResult, 0, len(selected))
	for _, s := range selected {
		idx.touchLocked(ctx, s.frag)
		results = append(results, RetrievalResult{Fragment: s.frag, Similarity: s.sim, Score: s.score})
	}

	capitan.Emit(ctx, FragmentTouched,
		FieldIdentity.Field(identity),
		FieldResultSize.Field(len(results)),
		FieldPoolSize.Field(len(pool)),
	)
	return results, nil
}

// sortScored orders by similarity descending, breaking ties on lower
// fragment ID so results are deterministic.
func sortScored(s []scored) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].sim != s[j].sim {
			return s[i].sim > s[j].sim
		}
		return s[i].frag.ID.String() < s[j].frag.ID.String()
	})
}

// mmrSelect greedily picks k entries maximizing
// lambda*sim(query, c) - (1-lambda)*max(sim(c, selected)).
func mmrSelect(pool []scored, k int, lambda float64) []scored {
	if k > len(pool) {
		k = len(pool)
	}
	selected := make([]scored, 0, k)
	remaining := append([]scored(nil), pool...)

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := -1
		bestScore := 0.0
		for i, c := range remaining {
			redundancy := 0.0
			for _, s := range selected {
				sim, err := Cosine(c.frag.Embedding, s.frag.Embedding)
				if err != nil {
					continue
				}
				if sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*c.sim - (1-lambda)*redundancy
			if bestIdx == -1 || score > bestScore ||
				(score == bestScore && c.frag.ID.String() < remaining[bestIdx].frag.ID.String()) {
				bestIdx = i
				bestScore = score
			}
		}
		remaining[bestIdx].score = bestScore
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// applyFreshnessFloor guarantees one recent fragment in the result when a
// sufficiently similar one exists: if nothing selected is recent, the best
// recent candidate with similarity at or above the floor replaces the
// lowest-ranked selection.
func (idx *MemoryIndex) applyFreshnessFloor(pool, selected []scored, latestSeq uint64, lambda float64) []scored {
	if len(selected) == 0 || idx.freshWindow == 0 {
		return selected
	}
	recent := func(f *MemoryFragment) bool {
		return latestSeq < idx.freshWindow || f.Seq > latestSeq-idx.freshWindow
	}

	for _, s := range selected {
		if recent(s.frag) {
			return selected
		}
	}

	chosen := make(map[uuid.UUID]bool, len(selected))
	for _, s := range selected {
		chosen[s.frag.ID] = true
	}

	var best *scored
	for i := range pool {
		c := pool[i]
		if chosen[c.frag.ID] || !recent(c.frag) || c.sim < idx.simFloor {
			continue
		}
		if best == nil || c.sim > best.sim ||
			(c.sim == best.sim && c.frag.ID.String() < best.frag.ID.String()) {
			best = &pool[i]
		}
	}
	if best != nil {
		promoted := *best
		promoted.score = lambda * promoted.sim
		selected[len(selected)-1] = promoted
	}
	return selected
}

// Touch records an access: importance recovers toward 1 and the access
// clock resets, protecting the fragment from eviction for a while.
func (idx *MemoryIndex) Touch(ctx context.Context, identity string, id uuid.UUID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ii, err := idx.identity(ctx, identity)
	if err != nil {
		return err
	}
	frag, ok := ii.fragments[id]
	if !ok {
		return fmt.Errorf("%w: fragment %s", ErrNotFound, id)
	}
	idx.touchLocked(ctx, frag)
	return nil
}

// touchLocked applies the access bump. Caller must hold idx.mu. The store
// write is best effort: a flaky backend should not fail retrieval.
func (idx *MemoryIndex) touchLocked(ctx context.Context, frag *MemoryFragment) {
	frag.Importance = clamp01(frag.Importance*idx.decayRecovery + idx.accessBonus)
	frag.AccessCount++
	frag.LastAccess = time.Now()

	if err := idx.store.PutFragment(ctx, frag); err != nil {
		capitan.Error(ctx, StageFailed,
			FieldIdentity.Field(frag.Identity),
			FieldFragmentID.Field(frag.ID.String()),
			FieldError.Field(err),
		)
	}
}

// IndexStats summarizes one identity's live fragment set.
type IndexStats struct {
	Fragments int    // total indexed fragments, beliefs included
	Beliefs   int    // fragments carrying the belief tag
	LatestSeq uint64 // highest insertion sequence handed out
}

// Stats reports the current index shape for an identity.
func (idx *MemoryIndex) Stats(ctx context.Context, identity string) (IndexStats, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ii, err := idx.identity(ctx, identity)
	if err != nil {
		return IndexStats{}, err
	}

	stats := IndexStats{Fragments: len(ii.fragments), LatestSeq: ii.nextSeq}
	for _, f := range ii.fragments {
		if f.IsBelief() {
			stats.Beliefs++
		}
	}
	return stats, nil
}

// Count returns how many fragments an identity currently holds.
func (idx *MemoryIndex) Count(ctx context.Context, identity string) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	ii, err := idx.identity(ctx, identity)
	if err != nil {
		return 0, err
	}
	return len(ii.fragments), nil
}

// Evict enforces the capacity ceiling for an identity immediately.
func (idx *MemoryIndex) Evict(ctx context.Context, identity string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	ii, err := idx.identity(ctx, identity)
	if err != nil {
		return err
	}
	idx.evictLocked(ctx, identity, ii)
	return nil
}

// evictLocked removes lowest-scoring fragments while over capacity. The
// eviction score is importance minus a saturating idle-time decay; belief
// fragments are never evicted. Caller must hold idx.mu.
func (idx *MemoryIndex) evictLocked(ctx context.Context, identity string, ii *identityIndex) {
	for len(ii.fragments) > idx.capacity {
		var victim *MemoryFragment
		victimScore := 0.0
		now := time.Now()

		for _, f := range ii.fragments {
			if f.IsBelief() {
				continue
			}
			age := now.Sub(f.LastAccess)
			decay := float64(age) / float64(age+idx.halfLife)
			score := f.Importance - decay
			if victim == nil || score < victimScore ||
				(score == victimScore && f.ID.String() < victim.ID.String()) {
				victim = f
				victimScore = score
			}
		}
		if victim == nil {
			return
		}

		if err := idx.store.DeleteFragment(ctx, identity, victim.ID); err != nil {
			capitan.Error(ctx, StageFailed,
				FieldIdentity.Field(identity),
				FieldFragmentID.Field(victim.ID.String()),
				FieldError.Field(err),
			)
			return
		}
		delete(ii.fragments, victim.ID)

		capitan.Emit(ctx, FragmentEvicted,
			FieldIdentity.Field(identity),
			FieldFragmentID.Field(victim.ID.String()),
			FieldImportance.Field(float32(victim.Importance)),
		)
	}
}
