package noema

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
)

// Dimension names one axis of the affect vector.
type Dimension string

// Affect dimensions. Valence is bipolar; every other dimension is unipolar.
const (
	Valence     Dimension = "valence"
	Arousal     Dimension = "arousal"
	Trust       Dimension = "trust"
	Warmth      Dimension = "warmth"
	Empathy     Dimension = "empathy"
	Curiosity   Dimension = "curiosity"
	Playfulness Dimension = "playfulness"
	Confidence  Dimension = "confidence"
)

// Dimensions lists every affect axis in canonical order.
var Dimensions = []Dimension{
	Valence, Arousal, Trust, Warmth,
	Empathy, Curiosity, Playfulness, Confidence,
}

// Bounds returns the valid range for a dimension. Valence spans [-1, 1];
// all other dimensions span [0, 1].
func Bounds(d Dimension) (min, max float64) {
	if d == Valence {
		return -1, 1
	}
	return 0, 1
}

// AffectVector holds one value per dimension. Stored as jsonb.
type AffectVector map[Dimension]float64

// Scan implements sql.Scanner for reading affect vectors from jsonb.
func (a *AffectVector) Scan(src any) error {
	if src == nil {
		*a = nil
		return nil
	}
	var b []byte
	switch val := src.(type) {
	case []byte:
		b = val
	case string:
		b = []byte(val)
	default:
		return fmt.Errorf("cannot scan %T into AffectVector", src)
	}
	return json.Unmarshal(b, a)
}

// Value implements driver.Valuer for writing affect vectors as jsonb.
func (a AffectVector) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Clone returns an independent copy of the vector.
func (a AffectVector) Clone() AffectVector {
	out := make(AffectVector, len(a))
	for d, v := range a {
		out[d] = v
	}
	return out
}

// Clamp forces every dimension back inside its bounds. Non-finite values
// collapse to the dimension's resting point.
func (a AffectVector) Clamp() {
	for _, d := range Dimensions {
		v, ok := a[d]
		if !ok {
			continue
		}
		min, max := Bounds(d)
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			a[d] = 0
			if d != Valence {
				a[d] = min
			}
		case v < min:
			a[d] = min
		case v > max:
			a[d] = max
		}
	}
}

// AffectState is the persistent emotional state of one identity.
type AffectState struct {
	ID        uuid.UUID    `db:"id" type:"uuid" constraints:"primarykey" default:"gen_random_uuid()"`
	Identity  string       `db:"identity" type:"text" constraints:"notnull,unique"`
	Vector    AffectVector `db:"vector" type:"jsonb" default:"'{}'"`
	UpdatedAt time.Time    `db:"updated_at" type:"timestamptz" default:"now()"`
}

// DefaultBaseline is the resting affect vector used when an identity has no
// prior state and as the target for undirected dimensions.
func DefaultBaseline() AffectVector {
	return AffectVector{
		Valence:     0.1,
		Arousal:     0.2,
		Trust:       0.5,
		Warmth:      0.5,
		Empathy:     0.5,
		Curiosity:   0.6,
		Playfulness: 0.4,
		Confidence:  0.5,
	}
}

// NewAffectState creates a resting-baseline state for an identity.
func NewAffectState(identity string) *AffectState {
	return &AffectState{
		ID:        uuid.New(),
		Identity:  identity,
		Vector:    DefaultBaseline(),
		UpdatedAt: time.Now(),
	}
}

// AffectSignal is one perceived emotional stimulus. Valence must lie in
// [-1, 1] and Intensity in [0, 1]; Bias optionally overrides the EMA target
// for specific dimensions.
type AffectSignal struct {
	Valence   float64
	Intensity float64
	Bias      map[Dimension]float64
	Source    string
}

// Validate reports whether the signal is well formed. Invalid signals must
// never reach the engine: callers reject them and leave affect untouched.
func (s AffectSignal) Validate() error {
	if math.IsNaN(s.Valence) || s.Valence < -1 || s.Valence > 1 {
		return fmt.Errorf("%w: valence %v outside [-1, 1]", ErrInvalidSignal, s.Valence)
	}
	if math.IsNaN(s.Intensity) || s.Intensity < 0 || s.Intensity > 1 {
		return fmt.Errorf("%w: intensity %v outside [0, 1]", ErrInvalidSignal, s.Intensity)
	}
	for d, v := range s.Bias {
		min, max := Bounds(d)
		if math.IsNaN(v) || v < min || v > max {
			return fmt.Errorf("%w: bias %s=%v outside [%v, %v]", ErrInvalidSignal, d, v, min, max)
		}
	}
	return nil
}

// EmotionEngine moves affect vectors toward perceived signals using an
// intensity-weighted exponential moving average. Updates are bounded: every
// dimension is clamped back into range after each application.
type EmotionEngine struct {
	momentum float64
	baseline AffectVector
}

// EmotionOption customizes an EmotionEngine.
type EmotionOption func(*EmotionEngine)

// WithMomentum overrides the EMA momentum. Values are clamped to [0, 1).
func WithMomentum(m float64) EmotionOption {
	return func(e *EmotionEngine) {
		if m < 0 {
			m = 0
		}
		if m >= 1 {
			m = 0.99
		}
		e.momentum = m
	}
}

// WithBaseline overrides the resting target for undirected dimensions.
func WithBaseline(b AffectVector) EmotionOption {
	return func(e *EmotionEngine) {
		e.baseline = b.Clone()
		e.baseline.Clamp()
	}
}

// NewEmotionEngine creates an engine with the default momentum and baseline.
func NewEmotionEngine(opts ...EmotionOption) *EmotionEngine {
	e := &EmotionEngine{
		momentum: DefaultMomentum,
		baseline: DefaultBaseline(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Momentum returns the engine's EMA momentum.
func (e *EmotionEngine) Momentum() float64 {
	return e.momentum
}

// target resolves the EMA target for a dimension under a given signal.
// Valence tracks the signal's valence, arousal tracks its intensity, and
// trust tracks the positive half of valence. Everything else relaxes toward
// baseline unless the signal biases it explicitly.
func (e *EmotionEngine) target(d Dimension, current float64, sig AffectSignal) float64 {
	if v, ok := sig.Bias[d]; ok {
		return v
	}
	switch d {
	case Valence:
		return sig.Valence
	case Arousal:
		return math.Abs(sig.Intensity)
	case Trust:
		return math.Max(0, sig.Valence)
	default:
		if v, ok := e.baseline[d]; ok {
			return v
		}
		return current
	}
}

// Apply validates the signal and moves the state toward it. Each dimension
// moves by (1-momentum)*(target-current), scaled by the signal's intensity,
// so a zero-intensity signal leaves the vector unchanged. The state is
// clamped afterwards regardless of the step taken. On ErrInvalidSignal the
// state is untouched.
func (e *EmotionEngine) Apply(ctx context.Context, state *AffectState, sig AffectSignal) error {
	if err := sig.Validate(); err != nil {
		capitan.Error(ctx, SignalRejected,
			FieldIdentity.Field(state.Identity),
			FieldError.Field(err),
		)
		return err
	}

	if state.Vector == nil {
		state.Vector = DefaultBaseline()
	}

	for _, d := range Dimensions {
		current, ok := state.Vector[d]
		if !ok {
			current = e.baseline[d]
		}
		target := e.target(d, current, sig)
		state.Vector[d] = current + (1-e.momentum)*(target-current)*sig.Intensity
	}
	state.Vector.Clamp()
	state.UpdatedAt = time.Now()

	capitan.Emit(ctx, AffectUpdated,
		FieldIdentity.Field(state.Identity),
		FieldValence.Field(float32(state.Vector[Valence])),
		FieldArousal.Field(float32(state.Vector[Arousal])),
		FieldIntensity.Field(float32(sig.Intensity)),
	)
	return nil
}

// Reset returns the state to the engine's resting baseline. This is an
// administrative operation; the cognitive loop never calls it on its own.
func (e *EmotionEngine) Reset(state *AffectState) {
	state.Vector = e.baseline.Clone()
	state.Vector.Clamp()
	state.UpdatedAt = time.Now()
}
