package noema

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// persist applies the turn's combined affect update and writes the outcome:
// the moved affect, an episodic fragment for the exchange, and the thought
// trace consolidation will read later. Affect moves here rather than during
// perception so a fallback turn can zero both halves of the signal and hold
// the vector exactly where it started. Unlike retrieval, persistence
// failures abort the turn; the caller must know the turn did not take.
func (l *CognitiveLoop) persist(ctx context.Context, t *Turn) (*Turn, error) {
	perceived := t.Signal
	echo := responseSignal(t)
	if t.Mode == ModeFallback {
		perceived.Intensity = 0
	}
	if err := l.engine.Apply(ctx, t.Affect, perceived); err != nil {
		return t, err
	}
	if err := l.engine.Apply(ctx, t.Affect, echo); err != nil {
		return t, err
	}

	if err := l.store.SaveAffect(ctx, t.Affect); err != nil {
		return t, fmt.Errorf("%w: save affect: %v", ErrStorageUnavailable, err)
	}

	seed := FragmentSeed{
		Content:      t.Input + "\n" + t.Response,
		Tags:         Strings{"episode"},
		Intensity:    t.Signal.Intensity,
		Significance: episodeSignificance(t),
	}
	if _, err := l.index.Insert(ctx, t.Identity, seed, t.QueryVector); err != nil {
		return t, err
	}

	trace := &ThoughtTrace{
		ID:           uuid.New(),
		Identity:     t.Identity,
		Input:        t.Input,
		Response:     t.Response,
		Embedding:    t.QueryVector,
		AffectBefore: t.AffectBefore,
		AffectAfter:  t.Affect.Vector.Clone(),
		FragmentIDs:  t.RetrievedIDs(),
		Candidates:   candidateTexts(t.Candidates),
		Arbiter:      t.Selected,
		Mode:         t.Mode,
		CreatedAt:    t.At,
	}
	if err := l.store.AppendTrace(ctx, trace); err != nil {
		return t, err
	}
	t.traceSeq = trace.Seq
	return t, nil
}

// responseSignal derives the post-hoc affect signal from the response
// itself, at half the perceived weight. A fallback turn yields zero
// intensity so the affect state is untouched.
func responseSignal(t *Turn) AffectSignal {
	sig := PerceiveSignal(t.Response)
	sig.Source = "response"
	sig.Intensity *= 0.5
	if t.Mode == ModeFallback {
		sig.Intensity = 0
	}
	return sig
}

// candidateTexts collects the reasoning outputs that made it to arbitration.
func candidateTexts(candidates []Candidate) Strings {
	out := make(Strings, 0, len(candidates))
	for _, c := range candidates {
		if c.Err == nil {
			out = append(out, c.Text)
		}
	}
	return out
}

// episodeSignificance weights degraded turns down: a fallback exchange says
// little worth remembering, while a fully grounded one says a lot.
func episodeSignificance(t *Turn) float64 {
	switch t.Mode {
	case ModeFallback:
		return 0.1
	case ModeNoMemory, ModeNoEmbedding:
		return 0.3
	default:
		return 0.6
	}
}
