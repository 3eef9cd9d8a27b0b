package noema

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
)

// ConsolidationResult summarizes one dream cycle.
type ConsolidationResult struct {
	Identity        string
	TracesProcessed int
	Clusters        int
	Accepted        int
	Proposed        int
	Rejected        int
	Skipped         int // clusters below the minimum size
	Failed          int // hypotheses whose commit errored
	Watermark       uint64

	// Hypotheses that survived the gate, in commit order.
	AcceptedBeliefs []*BeliefHypothesis
	ProposedBeliefs []*BeliefHypothesis
}

// ConsolidationProcessor clusters unconsolidated thought traces into belief
// hypotheses during idle periods. Each hypothesis commits independently; the
// watermark only advances after a clean run, so failed commits are retried
// by the next cycle.
type ConsolidationProcessor struct {
	store StateStore
	index *MemoryIndex

	accept         float64
	floor          float64
	clusterSim     float64
	minClusterSize int
	interval       time.Duration

	mu     sync.Mutex
	cancel chan struct{}
	done   chan struct{}
}

// ConsolidationOption customizes a ConsolidationProcessor.
type ConsolidationOption func(*ConsolidationProcessor)

// WithAcceptThreshold sets the confidence needed to accept a hypothesis.
func WithAcceptThreshold(t float64) ConsolidationOption {
	return func(p *ConsolidationProcessor) {
		p.accept = clamp01(t)
	}
}

// WithProposeFloor sets the confidence below which hypotheses are rejected.
func WithProposeFloor(f float64) ConsolidationOption {
	return func(p *ConsolidationProcessor) {
		p.floor = clamp01(f)
	}
}

// WithClusterThreshold sets the similarity needed to join a cluster.
func WithClusterThreshold(t float64) ConsolidationOption {
	return func(p *ConsolidationProcessor) {
		p.clusterSim = clamp01(t)
	}
}

// WithMinClusterSize sets the smallest cluster worth generalizing.
func WithMinClusterSize(n int) ConsolidationOption {
	return func(p *ConsolidationProcessor) {
		if n > 0 {
			p.minClusterSize = n
		}
	}
}

// WithConsolidationInterval sets the background cycle period.
func WithConsolidationInterval(d time.Duration) ConsolidationOption {
	return func(p *ConsolidationProcessor) {
		if d > 0 {
			p.interval = d
		}
	}
}

// NewConsolidationProcessor creates a processor over the given store and
// index. Accepted hypotheses are indexed as belief fragments, which eviction
// never removes.
func NewConsolidationProcessor(store StateStore, index *MemoryIndex, opts ...ConsolidationOption) *ConsolidationProcessor {
	p := &ConsolidationProcessor{
		store:          store,
		index:          index,
		accept:         DefaultAcceptThreshold,
		floor:          DefaultProposeFloor,
		clusterSim:     DefaultClusterThreshold,
		minClusterSize: DefaultMinClusterSize,
		interval:       DefaultConsolidationInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// cluster accumulates traces around a running centroid.
type cluster struct {
	centroid Vector
	traces   []*ThoughtTrace
}

func (c *cluster) add(t *ThoughtTrace) {
	c.traces = append(c.traces, t)
	n := float32(len(c.traces))
	for i := range c.centroid {
		c.centroid[i] += (t.Embedding[i] - c.centroid[i]) / n
	}
}

// Run executes one consolidation cycle for an identity, processing every
// trace past the current watermark.
func (p *ConsolidationProcessor) Run(ctx context.Context, identity string) (*ConsolidationResult, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: empty identity", ErrUnknownIdentity)
	}

	mark, err := p.store.ConsolidationMark(ctx, identity)
	if err != nil {
		return nil, err
	}
	latest, err := p.store.LatestTraceSeq(ctx, identity)
	if err != nil {
		return nil, err
	}

	result := &ConsolidationResult{Identity: identity, Watermark: mark}
	if latest <= mark {
		return result, nil
	}

	traces, err := p.store.TracesInRange(ctx, identity, mark, latest)
	if err != nil {
		return nil, err
	}

	capitan.Emit(ctx, ConsolidationStarted,
		FieldIdentity.Field(identity),
		FieldTraceCount.Field(len(traces)),
		FieldWatermark.Field(int(mark)),
	)

	clusters := p.clusterTraces(traces)
	result.TracesProcessed = len(traces)
	result.Clusters = len(clusters)

	for _, c := range clusters {
		if len(c.traces) < p.minClusterSize {
			result.Skipped++
			continue
		}
		if err := p.commitHypothesis(ctx, identity, c, result); err != nil {
			result.Failed++
			capitan.Error(ctx, StageFailed,
				FieldIdentity.Field(identity),
				FieldStage.Field("consolidate"),
				FieldError.Field(err),
			)
		}
	}

	// A failed commit keeps the watermark in place so the next cycle
	// re-derives the lost hypothesis from the same traces.
	if result.Failed == 0 {
		if err := p.store.SetConsolidationMark(ctx, identity, latest); err != nil {
			return result, err
		}
		result.Watermark = latest
	}

	capitan.Emit(ctx, ConsolidationCompleted,
		FieldIdentity.Field(identity),
		FieldTraceCount.Field(result.TracesProcessed),
		FieldClusterSize.Field(result.Clusters),
		FieldWatermark.Field(int(result.Watermark)),
	)
	return result, nil
}

// clusterTraces greedily groups traces by centroid similarity. Traces
// without embeddings cannot be clustered and are excluded.
func (p *ConsolidationProcessor) clusterTraces(traces []*ThoughtTrace) []*cluster {
	var clusters []*cluster
	for _, t := range traces {
		if len(t.Embedding) == 0 {
			continue
		}

		var best *cluster
		bestSim := 0.0
		for _, c := range clusters {
			sim, err := Cosine(t.Embedding, c.centroid)
			if err != nil {
				continue
			}
			if sim > bestSim {
				best = c
				bestSim = sim
			}
		}

		if best != nil && bestSim >= p.clusterSim {
			best.add(t)
			continue
		}
		clusters = append(clusters, &cluster{
			centroid: append(Vector(nil), t.Embedding...),
			traces:   []*ThoughtTrace{t},
		})
	}
	return clusters
}

// commitHypothesis derives, gates, and persists one hypothesis. Accepted
// hypotheses additionally index a belief fragment carrying the cluster
// centroid, making the generalization retrievable.
func (p *ConsolidationProcessor) commitHypothesis(ctx context.Context, identity string, c *cluster, result *ConsolidationResult) error {
	cohesion := p.cohesion(c)
	size := len(c.traces)
	confidence := cohesion * float64(size) / float64(size+1)
	status := Gate(confidence, p.accept, p.floor)

	h := &BeliefHypothesis{
		ID:          uuid.New(),
		Identity:    identity,
		Statement:   p.statement(c),
		Confidence:  confidence,
		Status:      status,
		Evidence:    p.evidence(c),
		ClusterSize: size,
		CreatedAt:   time.Now(),
	}

	if err := p.store.SaveHypothesis(ctx, h); err != nil {
		return err
	}

	switch status {
	case HypothesisAccepted:
		result.Accepted++
		result.AcceptedBeliefs = append(result.AcceptedBeliefs, h)
		seed := FragmentSeed{
			Content:      h.Statement,
			Tags:         Strings{TagBelief},
			Intensity:    confidence,
			Significance: 1.0,
		}
		if _, err := p.index.Insert(ctx, identity, seed, c.centroid); err != nil {
			return err
		}
	case HypothesisProposed:
		result.Proposed++
		result.ProposedBeliefs = append(result.ProposedBeliefs, h)
	case HypothesisRejected:
		result.Rejected++
	}

	capitan.Emit(ctx, HypothesisCommitted,
		FieldIdentity.Field(identity),
		FieldHypothesisID.Field(h.ID.String()),
		FieldConfidence.Field(float32(confidence)),
		FieldClusterSize.Field(size),
	)
	return nil
}

// cohesion is the mean member-to-centroid similarity. For normalized
// embeddings this rises and falls with the average pairwise similarity of
// the cluster, with the centroid form needing one pass instead of n^2.
func (p *ConsolidationProcessor) cohesion(c *cluster) float64 {
	if len(c.traces) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range c.traces {
		sim, err := Cosine(t.Embedding, c.centroid)
		if err != nil {
			continue
		}
		sum += sim
	}
	return clamp01(sum / float64(len(c.traces)))
}

// statement phrases the generalization around the trace nearest the
// centroid. Fully local: consolidation must run without providers.
func (p *ConsolidationProcessor) statement(c *cluster) string {
	var rep *ThoughtTrace
	bestSim := -1.0
	for _, t := range c.traces {
		sim, err := Cosine(t.Embedding, c.centroid)
		if err != nil {
			continue
		}
		if sim > bestSim {
			rep = t
			bestSim = sim
		}
	}
	if rep == nil {
		rep = c.traces[0]
	}
	return fmt.Sprintf("A recurring theme across %d exchanges: %s", len(c.traces), excerpt(rep.Input, 140))
}

// evidence links the hypothesis back to its traces and the fragments those
// turns grounded on.
func (p *ConsolidationProcessor) evidence(c *cluster) Strings {
	seen := make(map[string]bool)
	var out Strings
	for _, t := range c.traces {
		if id := t.ID.String(); !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
		for _, fid := range t.FragmentIDs {
			if !seen[fid] {
				seen[fid] = true
				out = append(out, fid)
			}
		}
	}
	return out
}

// excerpt truncates s to at most n bytes on a rune boundary.
func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	out := ""
	for _, r := range runes {
		if len(out)+len(string(r)) > n-3 {
			break
		}
		out += string(r)
	}
	return out + "..."
}

// Start launches the background dream cycle over the given identities.
// Returns immediately; Stop shuts the loop down. Calling Start on a running
// processor is a no-op.
func (p *ConsolidationProcessor) Start(ctx context.Context, identities ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	p.cancel = make(chan struct{})
	p.done = make(chan struct{})

	go func(cancel, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				for _, id := range identities {
					if _, err := p.Run(ctx, id); err != nil {
						capitan.Error(ctx, StageFailed,
							FieldIdentity.Field(id),
							FieldStage.Field("consolidate"),
							FieldError.Field(err),
						)
					}
				}
			case <-cancel:
				return
			case <-ctx.Done():
				return
			}
		}
	}(p.cancel, p.done)
}

// Stop halts the background cycle and waits for it to exit.
func (p *ConsolidationProcessor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return
	}
	close(p.cancel)
	<-p.done
	p.cancel = nil
	p.done = nil
}
