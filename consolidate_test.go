package noema

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func appendTestTrace(t *testing.T, store StateStore, identity, input string, vec []float32) *ThoughtTrace {
	t.Helper()
	trace := &ThoughtTrace{
		ID:        uuid.New(),
		Identity:  identity,
		Input:     input,
		Response:  "noted",
		Embedding: NewVector(vec),
		CreatedAt: time.Now(),
	}
	if err := store.AppendTrace(context.Background(), trace); err != nil {
		t.Fatalf("AppendTrace failed: %v", err)
	}
	return trace
}

func TestConsolidationAcceptsCohesiveCluster(t *testing.T) {
	store := NewMemoryStore()
	index := NewMemoryIndex(store)
	proc := NewConsolidationProcessor(store, index)
	ctx := context.Background()

	// Four tightly clustered traces: cohesion 1, confidence 4/5 = 0.8.
	var traces []*ThoughtTrace
	for i := 0; i < 4; i++ {
		traces = append(traces, appendTestTrace(t, store, "iris", "thinking about the garden", []float32{1, 0, 0}))
	}

	result, err := proc.Run(ctx, "iris")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.TracesProcessed != 4 || result.Clusters != 1 {
		t.Errorf("expected 4 traces in 1 cluster, got %d in %d", result.TracesProcessed, result.Clusters)
	}
	if result.Accepted != 1 {
		t.Fatalf("expected 1 accepted hypothesis, got %+v", result)
	}
	if len(result.AcceptedBeliefs) != 1 || result.AcceptedBeliefs[0].Status != HypothesisAccepted {
		t.Fatalf("expected the accepted hypothesis on the result, got %+v", result.AcceptedBeliefs)
	}
	if result.Watermark != 4 {
		t.Errorf("expected watermark 4, got %d", result.Watermark)
	}

	accepted, err := store.HypothesesByStatus(ctx, "iris", HypothesisAccepted)
	if err != nil {
		t.Fatalf("HypothesesByStatus failed: %v", err)
	}
	if len(accepted) != 1 {
		t.Fatalf("expected 1 stored hypothesis, got %d", len(accepted))
	}
	h := accepted[0]
	if h.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %v", h.Confidence)
	}
	if h.ClusterSize != 4 {
		t.Errorf("expected cluster size 4, got %d", h.ClusterSize)
	}
	for _, tr := range traces {
		if !h.Evidence.Contains(tr.ID.String()) {
			t.Errorf("evidence missing trace %s", tr.ID)
		}
	}

	// The accepted generalization became a retrievable belief fragment.
	frags, err := store.FragmentsByIdentity(ctx, "iris")
	if err != nil {
		t.Fatalf("FragmentsByIdentity failed: %v", err)
	}
	if len(frags) != 1 || !frags[0].IsBelief() {
		t.Fatalf("expected one belief fragment, got %d", len(frags))
	}
}

func TestConsolidationProposesBelowAcceptThreshold(t *testing.T) {
	store := NewMemoryStore()
	proc := NewConsolidationProcessor(store, NewMemoryIndex(store),
		WithAcceptThreshold(0.9))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		appendTestTrace(t, store, "iris", "a middling pattern", []float32{1, 0})
	}

	result, err := proc.Run(ctx, "iris")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Proposed != 1 || result.Accepted != 0 {
		t.Errorf("expected 1 proposed hypothesis, got %+v", result)
	}
	if len(result.ProposedBeliefs) != 1 || len(result.AcceptedBeliefs) != 0 {
		t.Errorf("expected only the proposed hypothesis on the result, got %+v", result)
	}

	// Proposed hypotheses never become belief fragments.
	frags, err := store.FragmentsByIdentity(ctx, "iris")
	if err != nil {
		t.Fatalf("FragmentsByIdentity failed: %v", err)
	}
	if len(frags) != 0 {
		t.Errorf("expected no belief fragments for proposed hypothesis, got %d", len(frags))
	}
}

func TestConsolidationRejectsBelowFloor(t *testing.T) {
	store := NewMemoryStore()
	proc := NewConsolidationProcessor(store, NewMemoryIndex(store),
		WithAcceptThreshold(0.95), WithProposeFloor(0.85))

	for i := 0; i < 4; i++ {
		appendTestTrace(t, store, "iris", "a weak pattern", []float32{1, 0})
	}

	result, err := proc.Run(context.Background(), "iris")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Rejected != 1 {
		t.Errorf("expected 1 rejected hypothesis, got %+v", result)
	}
}

func TestConsolidationSkipsSmallClusters(t *testing.T) {
	store := NewMemoryStore()
	proc := NewConsolidationProcessor(store, NewMemoryIndex(store))

	appendTestTrace(t, store, "iris", "one", []float32{1, 0})
	appendTestTrace(t, store, "iris", "two", []float32{1, 0})

	result, err := proc.Run(context.Background(), "iris")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Skipped != 1 || result.Accepted+result.Proposed+result.Rejected != 0 {
		t.Errorf("expected one skipped cluster and no hypotheses, got %+v", result)
	}
	// Skipped traces are still consumed: the watermark moves past them.
	if result.Watermark != 2 {
		t.Errorf("expected watermark 2, got %d", result.Watermark)
	}
}

func TestConsolidationSeparatesDistinctClusters(t *testing.T) {
	store := NewMemoryStore()
	proc := NewConsolidationProcessor(store, NewMemoryIndex(store))

	for i := 0; i < 3; i++ {
		appendTestTrace(t, store, "iris", "gardening again", []float32{1, 0, 0})
	}
	for i := 0; i < 3; i++ {
		appendTestTrace(t, store, "iris", "worrying about work", []float32{0, 1, 0})
	}

	result, err := proc.Run(context.Background(), "iris")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Clusters != 2 {
		t.Errorf("expected 2 clusters, got %d", result.Clusters)
	}
	// Each cluster: cohesion 1, size 3, confidence 0.75: both accepted.
	if result.Accepted != 2 {
		t.Errorf("expected 2 accepted hypotheses, got %+v", result)
	}
}

func TestConsolidationWatermarkPreventsReprocessing(t *testing.T) {
	store := NewMemoryStore()
	proc := NewConsolidationProcessor(store, NewMemoryIndex(store))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		appendTestTrace(t, store, "iris", "same theme", []float32{1, 0})
	}

	if _, err := proc.Run(ctx, "iris"); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	second, err := proc.Run(ctx, "iris")
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if second.TracesProcessed != 0 {
		t.Errorf("expected no traces reprocessed, got %d", second.TracesProcessed)
	}

	accepted, err := store.HypothesesByStatus(ctx, "iris", HypothesisAccepted)
	if err != nil {
		t.Fatalf("HypothesesByStatus failed: %v", err)
	}
	if len(accepted) != 1 {
		t.Errorf("expected exactly one hypothesis across runs, got %d", len(accepted))
	}
}

// hypothesisFailStore fails SaveHypothesis a limited number of times.
type hypothesisFailStore struct {
	*MemoryStore
	failures int32
}

func (f *hypothesisFailStore) SaveHypothesis(ctx context.Context, h *BeliefHypothesis) error {
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return fmt.Errorf("%w: hypotheses offline", ErrStorageUnavailable)
	}
	return f.MemoryStore.SaveHypothesis(ctx, h)
}

func TestConsolidationHoldsWatermarkOnFailedCommit(t *testing.T) {
	store := &hypothesisFailStore{MemoryStore: NewMemoryStore(), failures: 1}
	proc := NewConsolidationProcessor(store, NewMemoryIndex(store))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		appendTestTrace(t, store, "iris", "same theme", []float32{1, 0})
	}

	first, err := proc.Run(ctx, "iris")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if first.Failed != 1 {
		t.Fatalf("expected 1 failed commit, got %+v", first)
	}
	if first.Watermark != 0 {
		t.Errorf("expected watermark held at 0 after failure, got %d", first.Watermark)
	}

	// The next cycle re-derives the hypothesis from the same traces.
	second, err := proc.Run(ctx, "iris")
	if err != nil {
		t.Fatalf("retry Run failed: %v", err)
	}
	if second.Accepted != 1 {
		t.Errorf("expected retry to accept the hypothesis, got %+v", second)
	}
	if second.Watermark != 4 {
		t.Errorf("expected watermark 4 after clean run, got %d", second.Watermark)
	}
}

func TestConsolidationEmptyIdentity(t *testing.T) {
	proc := NewConsolidationProcessor(NewMemoryStore(), nil)
	if _, err := proc.Run(context.Background(), ""); !errors.Is(err, ErrUnknownIdentity) {
		t.Errorf("expected ErrUnknownIdentity, got %v", err)
	}
}

func TestConsolidationNothingToDo(t *testing.T) {
	proc := NewConsolidationProcessor(NewMemoryStore(), NewMemoryIndex(NewMemoryStore()))

	result, err := proc.Run(context.Background(), "iris")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.TracesProcessed != 0 || result.Clusters != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestGateBoundaries(t *testing.T) {
	cases := []struct {
		confidence float64
		want       HypothesisStatus
	}{
		{0.9, HypothesisAccepted},
		{0.7, HypothesisAccepted},
		{0.69, HypothesisProposed},
		{0.4, HypothesisProposed},
		{0.39, HypothesisRejected},
		{0, HypothesisRejected},
	}
	for _, tc := range cases {
		if got := Gate(tc.confidence, DefaultAcceptThreshold, DefaultProposeFloor); got != tc.want {
			t.Errorf("Gate(%v) = %s, want %s", tc.confidence, got, tc.want)
		}
	}
}

func TestConsolidationBackgroundCycle(t *testing.T) {
	store := NewMemoryStore()
	proc := NewConsolidationProcessor(store, NewMemoryIndex(store),
		WithConsolidationInterval(10*time.Millisecond))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		appendTestTrace(t, store, "iris", "same theme", []float32{1, 0})
	}

	proc.Start(ctx, "iris")
	defer proc.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		accepted, err := store.HypothesesByStatus(ctx, "iris", HypothesisAccepted)
		if err != nil {
			t.Fatalf("HypothesesByStatus failed: %v", err)
		}
		if len(accepted) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("background cycle never committed the hypothesis")
}
