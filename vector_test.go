package noema

import (
	"errors"
	"math"
	"testing"
)

func TestVectorScanRoundTrip(t *testing.T) {
	original := NewVector([]float32{0.1, -0.5, 3})

	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned Vector
	if err := scanned.Scan(val); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(scanned) != len(original) {
		t.Fatalf("expected %d elements, got %d", len(original), len(scanned))
	}
	for i := range original {
		if scanned[i] != original[i] {
			t.Errorf("element %d: expected %v, got %v", i, original[i], scanned[i])
		}
	}
}

func TestVectorScanNil(t *testing.T) {
	var v Vector
	if err := v.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if v != nil {
		t.Errorf("expected nil vector, got %v", v)
	}
}

func TestVectorScanEmptyBrackets(t *testing.T) {
	var v Vector
	if err := v.Scan("[]"); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if v != nil {
		t.Errorf("expected nil vector for empty brackets, got %v", v)
	}
}

func TestVectorScanRejectsUnknownType(t *testing.T) {
	var v Vector
	if err := v.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}

func TestCosineIdentical(t *testing.T) {
	a := NewVector([]float32{1, 2, 3})
	sim, err := Cosine(a, a)
	if err != nil {
		t.Fatalf("Cosine failed: %v", err)
	}
	if math.Abs(sim-1) > 1e-9 {
		t.Errorf("expected similarity 1, got %v", sim)
	}
}

func TestCosineOrthogonal(t *testing.T) {
	a := NewVector([]float32{1, 0})
	b := NewVector([]float32{0, 1})
	sim, err := Cosine(a, b)
	if err != nil {
		t.Fatalf("Cosine failed: %v", err)
	}
	if math.Abs(sim) > 1e-9 {
		t.Errorf("expected similarity 0, got %v", sim)
	}
}

func TestCosineOpposite(t *testing.T) {
	a := NewVector([]float32{1, 1})
	b := NewVector([]float32{-1, -1})
	sim, err := Cosine(a, b)
	if err != nil {
		t.Fatalf("Cosine failed: %v", err)
	}
	if math.Abs(sim+1) > 1e-9 {
		t.Errorf("expected similarity -1, got %v", sim)
	}
}

func TestCosineDimensionMismatch(t *testing.T) {
	a := NewVector([]float32{1, 2})
	b := NewVector([]float32{1, 2, 3})
	if _, err := Cosine(a, b); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestCosineZeroMagnitude(t *testing.T) {
	a := NewVector([]float32{0, 0})
	b := NewVector([]float32{1, 1})
	sim, err := Cosine(a, b)
	if err != nil {
		t.Fatalf("Cosine failed: %v", err)
	}
	if sim != 0 {
		t.Errorf("expected similarity 0 for zero vector, got %v", sim)
	}
}
