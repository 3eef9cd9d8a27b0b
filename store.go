package noema

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// StateStore persists everything the cognitive core owns: affect states,
// memory fragments, thought traces, belief hypotheses, and the consolidation
// watermark. Implementations must be safe for concurrent use.
//
// Backends wrap their own failures in ErrStorageUnavailable and report
// missing rows as ErrNotFound.
type StateStore interface {
	// LoadAffect returns an identity's affect state, or ErrNotFound.
	LoadAffect(ctx context.Context, identity string) (*AffectState, error)
	// SaveAffect inserts or replaces an identity's affect state.
	SaveAffect(ctx context.Context, state *AffectState) error

	// PutFragment inserts or replaces a fragment.
	PutFragment(ctx context.Context, frag *MemoryFragment) error
	// GetFragment returns one fragment, or ErrNotFound.
	GetFragment(ctx context.Context, identity string, id uuid.UUID) (*MemoryFragment, error)
	// DeleteFragment removes a fragment. Deleting an absent fragment is not
	// an error.
	DeleteFragment(ctx context.Context, identity string, id uuid.UUID) error
	// FragmentsByIdentity returns every fragment an identity holds.
	FragmentsByIdentity(ctx context.Context, identity string) ([]*MemoryFragment, error)

	// AppendTrace assigns the trace the identity's next sequence number and
	// persists it. The assigned Seq is written back into the trace.
	AppendTrace(ctx context.Context, trace *ThoughtTrace) error
	// TracesInRange returns traces with from < Seq <= to, in sequence order.
	TracesInRange(ctx context.Context, identity string, from, to uint64) ([]*ThoughtTrace, error)
	// LatestTraceSeq returns the highest assigned sequence, or 0 when the
	// identity has no traces.
	LatestTraceSeq(ctx context.Context, identity string) (uint64, error)

	// SaveHypothesis inserts or replaces a belief hypothesis.
	SaveHypothesis(ctx context.Context, h *BeliefHypothesis) error
	// HypothesesByStatus returns an identity's hypotheses with the given
	// status.
	HypothesesByStatus(ctx context.Context, identity string, status HypothesisStatus) ([]*BeliefHypothesis, error)

	// ConsolidationMark returns the trace sequence the last completed
	// consolidation run processed through, or 0 when never consolidated.
	ConsolidationMark(ctx context.Context, identity string) (uint64, error)
	// SetConsolidationMark advances the watermark. Called only after a run
	// finishes every cluster.
	SetConsolidationMark(ctx context.Context, identity string, seq uint64) error

	// Close releases backend resources.
	Close() error
}

// MemoryStore is an in-memory StateStore for tests and embedded use. Values
// are copied on the way in and out so callers never alias stored state.
type MemoryStore struct {
	mu         sync.RWMutex
	affect     map[string]*AffectState
	fragments  map[string]map[uuid.UUID]*MemoryFragment
	traces     map[string][]*ThoughtTrace
	traceSeq   map[string]uint64
	hypotheses map[string]map[uuid.UUID]*BeliefHypothesis
	marks      map[string]uint64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		affect:     make(map[string]*AffectState),
		fragments:  make(map[string]map[uuid.UUID]*MemoryFragment),
		traces:     make(map[string][]*ThoughtTrace),
		traceSeq:   make(map[string]uint64),
		hypotheses: make(map[string]map[uuid.UUID]*BeliefHypothesis),
		marks:      make(map[string]uint64),
	}
}

func copyAffect(s *AffectState) *AffectState {
	out := *s
	out.Vector = s.Vector.Clone()
	return &out
}

func copyFragment(f *MemoryFragment) *MemoryFragment {
	out := *f
	out.Embedding = append(Vector(nil), f.Embedding...)
	out.Tags = append(Strings(nil), f.Tags...)
	return &out
}

func copyTrace(t *ThoughtTrace) *ThoughtTrace {
	out := *t
	out.Embedding = append(Vector(nil), t.Embedding...)
	out.AffectBefore = t.AffectBefore.Clone()
	out.AffectAfter = t.AffectAfter.Clone()
	out.FragmentIDs = append(Strings(nil), t.FragmentIDs...)
	out.Candidates = append(Strings(nil), t.Candidates...)
	return &out
}

func copyHypothesis(h *BeliefHypothesis) *BeliefHypothesis {
	out := *h
	out.Evidence = append(Strings(nil), h.Evidence...)
	return &out
}

// LoadAffect returns the stored affect state for an identity.
func (m *MemoryStore) LoadAffect(_ context.Context, identity string) (*AffectState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.affect[identity]
	if !ok {
		return nil, fmt.Errorf("%w: affect for %q", ErrNotFound, identity)
	}
	return copyAffect(s), nil
}

// SaveAffect stores a copy of the affect state.
func (m *MemoryStore) SaveAffect(_ context.Context, state *AffectState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.affect[state.Identity] = copyAffect(state)
	return nil
}

// PutFragment stores a copy of the fragment.
func (m *MemoryStore) PutFragment(_ context.Context, frag *MemoryFragment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.fragments[frag.Identity]
	if !ok {
		byID = make(map[uuid.UUID]*MemoryFragment)
		m.fragments[frag.Identity] = byID
	}
	byID[frag.ID] = copyFragment(frag)
	return nil
}

// GetFragment returns one stored fragment.
func (m *MemoryStore) GetFragment(_ context.Context, identity string, id uuid.UUID) (*MemoryFragment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.fragments[identity][id]
	if !ok {
		return nil, fmt.Errorf("%w: fragment %s", ErrNotFound, id)
	}
	return copyFragment(f), nil
}

// DeleteFragment removes a fragment if present.
func (m *MemoryStore) DeleteFragment(_ context.Context, identity string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.fragments[identity], id)
	return nil
}

// FragmentsByIdentity returns copies of every fragment the identity holds.
func (m *MemoryStore) FragmentsByIdentity(_ context.Context, identity string) ([]*MemoryFragment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*MemoryFragment, 0, len(m.fragments[identity]))
	for _, f := range m.fragments[identity] {
		out = append(out, copyFragment(f))
	}
	return out, nil
}

// AppendTrace assigns the next sequence number and stores the trace.
func (m *MemoryStore) AppendTrace(_ context.Context, trace *ThoughtTrace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.traceSeq[trace.Identity]++
	trace.Seq = m.traceSeq[trace.Identity]
	m.traces[trace.Identity] = append(m.traces[trace.Identity], copyTrace(trace))
	return nil
}

// TracesInRange returns traces with from < Seq <= to in sequence order.
func (m *MemoryStore) TracesInRange(_ context.Context, identity string, from, to uint64) ([]*ThoughtTrace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*ThoughtTrace
	for _, t := range m.traces[identity] {
		if t.Seq > from && t.Seq <= to {
			out = append(out, copyTrace(t))
		}
	}
	return out, nil
}

// LatestTraceSeq returns the highest assigned sequence for an identity.
func (m *MemoryStore) LatestTraceSeq(_ context.Context, identity string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.traceSeq[identity], nil
}

// SaveHypothesis stores a copy of the hypothesis.
func (m *MemoryStore) SaveHypothesis(_ context.Context, h *BeliefHypothesis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.hypotheses[h.Identity]
	if !ok {
		byID = make(map[uuid.UUID]*BeliefHypothesis)
		m.hypotheses[h.Identity] = byID
	}
	byID[h.ID] = copyHypothesis(h)
	return nil
}

// HypothesesByStatus returns hypotheses matching the given status.
func (m *MemoryStore) HypothesesByStatus(_ context.Context, identity string, status HypothesisStatus) ([]*BeliefHypothesis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*BeliefHypothesis
	for _, h := range m.hypotheses[identity] {
		if h.Status == status {
			out = append(out, copyHypothesis(h))
		}
	}
	return out, nil
}

// ConsolidationMark returns the identity's current watermark.
func (m *MemoryStore) ConsolidationMark(_ context.Context, identity string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.marks[identity], nil
}

// SetConsolidationMark advances the identity's watermark.
func (m *MemoryStore) SetConsolidationMark(_ context.Context, identity string, seq uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[identity] = seq
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

var _ StateStore = (*MemoryStore)(nil)
