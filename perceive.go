package noema

import "context"

// perceive derives an affect signal from the raw input and loads the
// identity's affect onto the turn. The engine applies the signal during
// persistence, together with the response's own tone, so a turn that
// degrades to fallback zeroes both and leaves affect at rest.
func (l *CognitiveLoop) perceive(ctx context.Context, t *Turn) (*Turn, error) {
	affect, err := l.loadOrCreateAffect(ctx, t.Identity)
	if err != nil {
		return t, err
	}
	t.AffectBefore = affect.Vector.Clone()
	t.Signal = PerceiveSignal(t.Input)
	t.Affect = affect
	return t, nil
}
