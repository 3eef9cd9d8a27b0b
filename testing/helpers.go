// Package noematest provides test utilities for noema.
package noematest

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/zoobzio/noema"
	"github.com/zoobzio/zyn"
)

// StaticEmbedder returns the same vector for every input. Useful when a test
// only needs retrieval to succeed, not to discriminate.
type StaticEmbedder struct {
	Vec []float32
}

// Embed returns the fixed vector.
func (e *StaticEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return e.Vec, nil
}

// Dimensions returns the fixed vector's length.
func (e *StaticEmbedder) Dimensions() int {
	return len(e.Vec)
}

var _ noema.Embedder = (*StaticEmbedder)(nil)

// HashEmbedder maps text deterministically onto a unit vector: identical
// inputs always collide, different inputs almost never do. Good enough for
// exercising clustering and retrieval paths without a model.
type HashEmbedder struct {
	Dims int
}

// Embed hashes the text into a normalized vector.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dims := e.Dims
	if dims <= 0 {
		dims = 8
	}

	vec := make([]float32, dims)
	h := fnv.New64a()
	for i := 0; i < dims; i++ {
		h.Reset()
		fmt.Fprintf(h, "%d:%s", i, text)
		// Spread hash bits over [-1, 1].
		vec[i] = float32(int64(h.Sum64()%1000))/500 - 1
	}

	var mag float64
	for _, v := range vec {
		mag += float64(v) * float64(v)
	}
	if mag == 0 {
		vec[0] = 1
		return vec, nil
	}
	norm := float32(math.Sqrt(mag))
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

// Dimensions returns the configured dimension count.
func (e *HashEmbedder) Dimensions() int {
	if e.Dims <= 0 {
		return 8
	}
	return e.Dims
}

var _ noema.Embedder = (*HashEmbedder)(nil)

// ScriptedProvider plays back transform responses in order, wrapping each in
// the synapse JSON envelope. After the script runs out it repeats the last
// entry.
type ScriptedProvider struct {
	Responses []string

	mu    sync.Mutex
	calls int
}

// Call returns the next scripted response.
func (p *ScriptedProvider) Call(_ context.Context, messages []zyn.Message, _ float32) (*zyn.ProviderResponse, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	if len(p.Responses) == 0 {
		return nil, fmt.Errorf("scripted provider has no responses")
	}

	p.mu.Lock()
	i := p.calls
	p.calls++
	p.mu.Unlock()

	if i >= len(p.Responses) {
		i = len(p.Responses) - 1
	}

	payload, err := json.Marshal(map[string]any{
		"output":     p.Responses[i],
		"confidence": 0.9,
		"changes":    []string{},
		"reasoning":  []string{"scripted"},
	})
	if err != nil {
		return nil, err
	}

	return &zyn.ProviderResponse{
		Content: string(payload),
		Usage: zyn.TokenUsage{
			Prompt:     10,
			Completion: 20,
			Total:      30,
		},
	}, nil
}

// Name identifies the scripted provider.
func (p *ScriptedProvider) Name() string {
	return "scripted"
}

// Calls reports how many times the provider was invoked.
func (p *ScriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

var _ noema.Provider = (*ScriptedProvider)(nil)
