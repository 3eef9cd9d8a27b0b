package benchmarks_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/zoobzio/noema"
	noematest "github.com/zoobzio/noema/testing"
)

func BenchmarkEmotionEngineApply(b *testing.B) {
	ctx := context.Background()
	engine := noema.NewEmotionEngine()
	state := noema.NewAffectState("bench")
	sig := noema.AffectSignal{Valence: 0.6, Intensity: 0.7, Source: "bench"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := engine.Apply(ctx, state, sig); err != nil {
			b.Fatalf("Apply failed: %v", err)
		}
	}
}

func BenchmarkPerceiveSignal(b *testing.B) {
	input := "I really love this, it's wonderful but I don't hate the rest either!"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = noema.PerceiveSignal(input)
	}
}

func BenchmarkIndexInsert(b *testing.B) {
	ctx := context.Background()
	store := noema.NewMemoryStore()
	index := noema.NewMemoryIndex(store)
	emb := &noematest.HashEmbedder{Dims: 16}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		vec, _ := emb.Embed(ctx, fmt.Sprintf("fragment %d", i))
		seed := noema.FragmentSeed{
			Content:      fmt.Sprintf("benchmark fragment %d", i),
			Tags:         noema.Strings{"episode"},
			Intensity:    0.5,
			Significance: 0.5,
		}
		if _, err := index.Insert(ctx, "bench", seed, noema.NewVector(vec)); err != nil {
			b.Fatalf("Insert failed: %v", err)
		}
	}
}

func BenchmarkIndexSearch(b *testing.B) {
	ctx := context.Background()
	store := noema.NewMemoryStore()
	index := noema.NewMemoryIndex(store)
	emb := &noematest.HashEmbedder{Dims: 16}

	// Pre-populate with fragments.
	for i := 0; i < 500; i++ {
		vec, _ := emb.Embed(ctx, fmt.Sprintf("fragment %d", i))
		seed := noema.FragmentSeed{
			Content:      fmt.Sprintf("benchmark fragment %d", i),
			Tags:         noema.Strings{"episode"},
			Intensity:    0.5,
			Significance: 0.5,
		}
		if _, err := index.Insert(ctx, "bench", seed, noema.NewVector(vec)); err != nil {
			b.Fatalf("Insert failed: %v", err)
		}
	}

	query, _ := emb.Embed(ctx, "fragment 42")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := index.Search(ctx, "bench", noema.NewVector(query), 6, 0.75); err != nil {
			b.Fatalf("Search failed: %v", err)
		}
	}
}

func BenchmarkTurnClone(b *testing.B) {
	turn := noema.NewTurn("bench", "how are you today")
	turn.Affect = noema.NewAffectState("bench")
	turn.AffectBefore = noema.DefaultBaseline()
	for i := 0; i < 10; i++ {
		turn.Retrieved = append(turn.Retrieved, noema.RetrievalResult{
			Fragment:   &noema.MemoryFragment{Content: "remembered content"},
			Similarity: 0.8,
		})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = turn.Clone()
	}
}

func BenchmarkConsolidationRun(b *testing.B) {
	ctx := context.Background()
	emb := &noematest.HashEmbedder{Dims: 16}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		store := noema.NewMemoryStore()
		index := noema.NewMemoryIndex(store)
		proc := noema.NewConsolidationProcessor(store, index)
		vec, _ := emb.Embed(ctx, "a recurring topic")
		for j := 0; j < 20; j++ {
			trace := &noema.ThoughtTrace{
				ID:        uuid.New(),
				Identity:  "bench",
				Input:     "a recurring topic",
				Response:  "a familiar answer",
				Embedding: noema.NewVector(vec),
			}
			if err := store.AppendTrace(ctx, trace); err != nil {
				b.Fatalf("AppendTrace failed: %v", err)
			}
		}
		b.StartTimer()

		if _, err := proc.Run(ctx, "bench"); err != nil {
			b.Fatalf("Run failed: %v", err)
		}
	}
}
