package noema

import (
	"context"
	"math"
	"testing"
)

func TestEmotionEngineMovesTowardSignal(t *testing.T) {
	engine := NewEmotionEngine()
	state := NewAffectState("iris")
	state.Vector[Trust] = 0.5

	sig := AffectSignal{Valence: 1.0, Intensity: 1.0}
	if err := engine.Apply(context.Background(), state, sig); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// momentum 0.8: trust moves a fifth of the way toward 1.0.
	if got := state.Vector[Trust]; math.Abs(got-0.6) > 1e-9 {
		t.Errorf("expected trust 0.6, got %v", got)
	}
	if state.Vector[Valence] <= 0.1 {
		t.Errorf("expected valence to rise above baseline, got %v", state.Vector[Valence])
	}
}

func TestEmotionEngineZeroIntensityIsNoOp(t *testing.T) {
	engine := NewEmotionEngine()
	state := NewAffectState("iris")
	before := state.Vector.Clone()

	sig := AffectSignal{Valence: -1.0, Intensity: 0}
	if err := engine.Apply(context.Background(), state, sig); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	for _, d := range Dimensions {
		if state.Vector[d] != before[d] {
			t.Errorf("dimension %s changed on zero-intensity signal: %v -> %v", d, before[d], state.Vector[d])
		}
	}
}

func TestEmotionEngineRejectsInvalidSignal(t *testing.T) {
	engine := NewEmotionEngine()

	cases := []struct {
		name string
		sig  AffectSignal
	}{
		{"valence too high", AffectSignal{Valence: 1.5, Intensity: 0.5}},
		{"valence too low", AffectSignal{Valence: -2, Intensity: 0.5}},
		{"valence NaN", AffectSignal{Valence: math.NaN(), Intensity: 0.5}},
		{"negative intensity", AffectSignal{Valence: 0.5, Intensity: -0.1}},
		{"intensity above one", AffectSignal{Valence: 0.5, Intensity: 1.1}},
		{"bias out of range", AffectSignal{Valence: 0, Intensity: 0.5, Bias: map[Dimension]float64{Trust: 2}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := NewAffectState("iris")
			before := state.Vector.Clone()

			err := engine.Apply(context.Background(), state, tc.sig)
			if err == nil {
				t.Fatal("expected validation error")
			}
			for _, d := range Dimensions {
				if state.Vector[d] != before[d] {
					t.Errorf("dimension %s changed after rejected signal", d)
				}
			}
		})
	}
}

func TestEmotionEngineStaysBounded(t *testing.T) {
	engine := NewEmotionEngine(WithMomentum(0.1))
	state := NewAffectState("iris")

	// Hammer the state with extreme signals in both directions.
	for i := 0; i < 200; i++ {
		sig := AffectSignal{Valence: 1.0, Intensity: 1.0}
		if i%2 == 1 {
			sig.Valence = -1.0
		}
		if err := engine.Apply(context.Background(), state, sig); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		for _, d := range Dimensions {
			min, max := Bounds(d)
			if v := state.Vector[d]; v < min || v > max {
				t.Fatalf("dimension %s escaped bounds: %v not in [%v, %v]", d, v, min, max)
			}
		}
	}
}

func TestEmotionEngineBiasOverridesTarget(t *testing.T) {
	engine := NewEmotionEngine()
	state := NewAffectState("iris")
	state.Vector[Playfulness] = 0.2

	sig := AffectSignal{
		Valence:   0,
		Intensity: 1.0,
		Bias:      map[Dimension]float64{Playfulness: 1.0},
	}
	if err := engine.Apply(context.Background(), state, sig); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if got := state.Vector[Playfulness]; math.Abs(got-0.36) > 1e-9 {
		t.Errorf("expected playfulness 0.36, got %v", got)
	}
}

func TestEmotionEngineResetRestoresBaseline(t *testing.T) {
	engine := NewEmotionEngine()
	state := NewAffectState("iris")

	sig := AffectSignal{Valence: -1, Intensity: 1}
	if err := engine.Apply(context.Background(), state, sig); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	engine.Reset(state)

	baseline := DefaultBaseline()
	for _, d := range Dimensions {
		if state.Vector[d] != baseline[d] {
			t.Errorf("dimension %s not at baseline after reset: got %v, want %v", d, state.Vector[d], baseline[d])
		}
	}
}

func TestAffectVectorClamp(t *testing.T) {
	v := AffectVector{
		Valence: -3,
		Arousal: 2,
		Trust:   math.NaN(),
		Warmth:  0.5,
	}
	v.Clamp()

	if v[Valence] != -1 {
		t.Errorf("expected valence clamped to -1, got %v", v[Valence])
	}
	if v[Arousal] != 1 {
		t.Errorf("expected arousal clamped to 1, got %v", v[Arousal])
	}
	if v[Trust] != 0 {
		t.Errorf("expected NaN trust collapsed to 0, got %v", v[Trust])
	}
	if v[Warmth] != 0.5 {
		t.Errorf("expected warmth untouched, got %v", v[Warmth])
	}
}
