package noema

import (
	"context"

	"github.com/zoobzio/capitan"
)

// retrieve embeds the input and searches memory for grounding context.
// Failures here degrade the turn instead of aborting it: an unavailable
// embedder skips retrieval entirely, and a failed search continues the turn
// without memory. The retrieval lambda drops with arousal, so an agitated
// state retrieves more scattered, diverse memories.
func (l *CognitiveLoop) retrieve(ctx context.Context, t *Turn) (*Turn, error) {
	embedder, err := ResolveEmbedder(ctx, l.embedder)
	if err != nil {
		t.Degrade(ModeNoEmbedding)
		capitan.Error(ctx, StageFailed,
			FieldIdentity.Field(t.Identity),
			FieldStage.Field("retrieve"),
			FieldError.Field(err),
		)
		return t, nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, l.embedTimeout)
	defer cancel()

	vec, err := embedder.Embed(embedCtx, t.Input)
	if err != nil {
		t.Degrade(ModeNoEmbedding)
		capitan.Error(ctx, StageFailed,
			FieldIdentity.Field(t.Identity),
			FieldStage.Field("retrieve"),
			FieldError.Field(err),
		)
		return t, nil
	}
	t.QueryVector = NewVector(vec)

	lambda := clampRange(l.index.lambda-l.arousalBias*t.Affect.Vector[Arousal], 0.1, 1)

	results, err := l.index.Search(ctx, t.Identity, t.QueryVector, l.retrievalK, lambda)
	if err != nil {
		t.Degrade(ModeNoMemory)
		capitan.Error(ctx, StageFailed,
			FieldIdentity.Field(t.Identity),
			FieldStage.Field("retrieve"),
			FieldError.Field(err),
		)
		return t, nil
	}
	t.Retrieved = results
	return t, nil
}
