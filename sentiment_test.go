package noema

import "testing"

func TestPerceiveSignalPositive(t *testing.T) {
	sig := PerceiveSignal("I love this, it's really wonderful")

	if sig.Valence <= 0 {
		t.Errorf("expected positive valence, got %v", sig.Valence)
	}
	if sig.Intensity <= 0 {
		t.Errorf("expected nonzero intensity, got %v", sig.Intensity)
	}
	if err := sig.Validate(); err != nil {
		t.Errorf("perceived signal failed validation: %v", err)
	}
}

func TestPerceiveSignalNegative(t *testing.T) {
	sig := PerceiveSignal("this is terrible and I hate it")

	if sig.Valence >= 0 {
		t.Errorf("expected negative valence, got %v", sig.Valence)
	}
	if sig.Intensity <= 0 {
		t.Errorf("expected nonzero intensity, got %v", sig.Intensity)
	}
}

func TestPerceiveSignalNeutralHasZeroIntensity(t *testing.T) {
	sig := PerceiveSignal("the meeting is at three on tuesday")

	if sig.Valence != 0 {
		t.Errorf("expected zero valence for neutral text, got %v", sig.Valence)
	}
	if sig.Intensity != 0 {
		t.Errorf("expected zero intensity for neutral text, got %v", sig.Intensity)
	}
}

func TestPerceiveSignalNegationFlips(t *testing.T) {
	plain := PerceiveSignal("that was good")
	negated := PerceiveSignal("that was not good")

	if plain.Valence <= 0 {
		t.Fatalf("expected positive valence for plain text, got %v", plain.Valence)
	}
	if negated.Valence >= 0 {
		t.Errorf("expected negation to flip valence, got %v", negated.Valence)
	}
}

func TestPerceiveSignalContractionNegation(t *testing.T) {
	sig := PerceiveSignal("I don't love this")
	if sig.Valence >= 0 {
		t.Errorf("expected contraction negation to flip valence, got %v", sig.Valence)
	}
}

func TestPerceiveSignalEmphasisRaisesIntensity(t *testing.T) {
	calm := PerceiveSignal("this is bad")
	loud := PerceiveSignal("this is BAD!!!")

	if loud.Intensity <= calm.Intensity {
		t.Errorf("expected emphasis to raise intensity: calm %v, loud %v", calm.Intensity, loud.Intensity)
	}
}

func TestPerceiveSignalQuestionBiasesCuriosity(t *testing.T) {
	sig := PerceiveSignal("what do you think about that?")

	if sig.Bias[Curiosity] == 0 {
		t.Error("expected question to bias curiosity")
	}
}

func TestPerceiveSignalAlwaysValid(t *testing.T) {
	inputs := []string{
		"", "!!!", "AAAAH", "I LOVE LOVE LOVE this so so so much!!!!!",
		"never not no dont cant hate hate hate",
	}
	for _, in := range inputs {
		if err := PerceiveSignal(in).Validate(); err != nil {
			t.Errorf("input %q produced invalid signal: %v", in, err)
		}
	}
}
