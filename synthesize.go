package noema

import (
	"context"
	"math"
	"strings"

	"github.com/zoobzio/capitan"
)

// toneEpsilon is the margin within which two candidates count as equally
// tone-matched, pushing arbitration down to the grounding criterion.
const toneEpsilon = 0.05

// synthesize arbitrates between candidates. The rubric is deterministic:
// closest lexical tone to the current affect wins; near-ties fall through to
// memory grounding, then brevity, then declaration order. Zero viable
// candidates degrade the turn to the fixed fallback response.
func (l *CognitiveLoop) synthesize(ctx context.Context, t *Turn) (*Turn, error) {
	viable := make([]Candidate, 0, len(t.Candidates))
	for _, c := range t.Candidates {
		if c.Err == nil && strings.TrimSpace(c.Text) != "" {
			viable = append(viable, c)
		}
	}

	if len(viable) == 0 {
		t.Response = FallbackResponse
		t.Selected = "fallback"
		t.Degrade(ModeFallback)
		capitan.Emit(ctx, CandidateSelected,
			FieldIdentity.Field(t.Identity),
			FieldTurnID.Field(t.ID.String()),
			FieldReasoner.Field("fallback"),
			FieldMode.Field(t.Mode),
		)
		return t, nil
	}

	best := viable[0]
	for _, c := range viable[1:] {
		if l.prefer(t, c, best) {
			best = c
		}
	}
	t.Response = best.Text
	t.Selected = best.Reasoner

	capitan.Emit(ctx, CandidateSelected,
		FieldIdentity.Field(t.Identity),
		FieldTurnID.Field(t.ID.String()),
		FieldReasoner.Field(best.Reasoner),
	)
	return t, nil
}

// prefer reports whether challenger beats incumbent under the arbitration
// rubric. Strictly ordered criteria keep the decision reproducible for
// identical candidate sets.
func (l *CognitiveLoop) prefer(t *Turn, challenger, incumbent Candidate) bool {
	cTone := toneDistance(challenger.Text, t.Affect.Vector[Valence])
	iTone := toneDistance(incumbent.Text, t.Affect.Vector[Valence])
	if math.Abs(cTone-iTone) > toneEpsilon {
		return cTone < iTone
	}

	cGround := groundingScore(challenger.Text, t.Retrieved)
	iGround := groundingScore(incumbent.Text, t.Retrieved)
	if math.Abs(cGround-iGround) > toneEpsilon {
		return cGround > iGround
	}

	// Last resort: shorter wins; equal lengths keep the incumbent, which
	// carries declaration order.
	return len(challenger.Text) < len(incumbent.Text)
}

// toneDistance measures how far a candidate's lexical valence sits from the
// current affect valence.
func toneDistance(text string, valence float64) float64 {
	sig := PerceiveSignal(text)
	return math.Abs(sig.Valence - valence)
}

// groundingScore is the fraction of candidate sentences that share at least
// one content word with the retrieved fragments. With nothing retrieved,
// every candidate scores zero and arbitration falls through to brevity.
func groundingScore(text string, retrieved []RetrievalResult) float64 {
	if len(retrieved) == 0 {
		return 0
	}

	memory := make(map[string]bool)
	for _, r := range retrieved {
		for _, w := range tokenize(r.Fragment.Content) {
			if len(w) >= 4 {
				memory[w] = true
			}
		}
	}
	if len(memory) == 0 {
		return 0
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return 0
	}

	grounded := 0
	for _, s := range sentences {
		for _, w := range tokenize(s) {
			if len(w) >= 4 && memory[w] {
				grounded++
				break
			}
		}
	}
	return float64(grounded) / float64(len(sentences))
}

// splitSentences breaks text on terminal punctuation.
func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}
