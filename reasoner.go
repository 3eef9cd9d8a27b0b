package noema

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zoobzio/zyn"
)

// Provider defines the interface for LLM providers.
// This matches zyn.Provider interface for compatibility.
type Provider interface {
	Call(ctx context.Context, messages []zyn.Message, temperature float32) (*zyn.ProviderResponse, error)
	Name() string
}

// Context key for provider.
type providerKeyType struct{}

var providerKey = providerKeyType{}

// Global provider fallback.
var (
	globalProvider   Provider
	globalProviderMu sync.RWMutex
)

// SetProvider sets the global fallback provider.
// This provider is used when no context or reasoner-level provider is available.
func SetProvider(p Provider) {
	globalProviderMu.Lock()
	defer globalProviderMu.Unlock()
	globalProvider = p
}

// GetProvider returns the global provider, if set.
func GetProvider() Provider {
	globalProviderMu.RLock()
	defer globalProviderMu.RUnlock()
	return globalProvider
}

// WithProvider adds a provider to the context.
// This is the preferred method for provider management.
func WithProvider(ctx context.Context, p Provider) context.Context {
	return context.WithValue(ctx, providerKey, p)
}

// ProviderFromContext retrieves the provider from context, if present.
func ProviderFromContext(ctx context.Context) (Provider, bool) {
	p, ok := ctx.Value(providerKey).(Provider)
	return p, ok
}

// ResolveProvider determines which provider to use based on resolution order:
// 1. Reasoner-level provider (passed as argument)
// 2. Context provider
// 3. Global provider
// 4. ErrProviderError if none found.
func ResolveProvider(ctx context.Context, explicit Provider) (Provider, error) {
	if explicit != nil {
		return explicit, nil
	}
	if p, ok := ProviderFromContext(ctx); ok {
		return p, nil
	}
	globalProviderMu.RLock()
	p := globalProvider
	globalProviderMu.RUnlock()
	if p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("%w: no provider configured", ErrProviderError)
}

// Reasoner produces a response candidate for a turn. Implementations must
// honor the context deadline; the loop runs each reasoner under its own
// per-candidate timeout.
type Reasoner interface {
	// Respond generates a candidate response from the turn's input, its
	// retrieved memory, and the current affect vector.
	Respond(ctx context.Context, turn *Turn) (string, error)

	// Name identifies this reasoner in candidates and events.
	Name() string
}

// ReasonerSpec configures a SynapseReasoner's stance.
type ReasonerSpec struct {
	// Name identifies the reasoner in candidates and events.
	Name string
	// Framing is the instruction the transform synapse is built from; it
	// sets the reasoner's interpretive stance.
	Framing string
	// Temperature for generation. Zero means zyn's deterministic default.
	Temperature float32
	// PersonaBias nudges the style hint toward a dimension; the dimension's
	// current value is reported in the style line as emphasis.
	PersonaBias Dimension
}

// Two stock stances. A loop wired with both gets one precise candidate and
// one relational candidate to arbitrate between.
var (
	AnalyticSpec = ReasonerSpec{
		Name:        "analytic",
		Framing:     "Respond to the input precisely and literally. Ground every claim in the provided memory context. Prefer accuracy over warmth.",
		Temperature: zyn.DefaultTemperatureAnalytical,
		PersonaBias: Confidence,
	}
	WarmSpec = ReasonerSpec{
		Name:        "warm",
		Framing:     "Respond to the input as a trusted companion. Weave in the provided memory context naturally. Prefer warmth and connection over exhaustive detail.",
		Temperature: zyn.DefaultTemperatureCreative,
		PersonaBias: Warmth,
	}
)

// SynapseReasoner generates candidates through a zyn transform synapse.
type SynapseReasoner struct {
	spec     ReasonerSpec
	provider Provider
}

// NewSynapseReasoner creates a reasoner with the given stance. Provider may
// be nil, in which case the context/global resolution hierarchy applies at
// call time.
func NewSynapseReasoner(spec ReasonerSpec, provider Provider) *SynapseReasoner {
	return &SynapseReasoner{spec: spec, provider: provider}
}

// Name identifies this reasoner.
func (r *SynapseReasoner) Name() string {
	return r.spec.Name
}

// Respond fires the transform synapse with the turn's input, memory context,
// and an affect-derived style hint. Deadline expiry maps to
// ErrProviderTimeout; any other provider failure maps to ErrProviderError.
func (r *SynapseReasoner) Respond(ctx context.Context, turn *Turn) (string, error) {
	provider, err := ResolveProvider(ctx, r.provider)
	if err != nil {
		return "", err
	}

	synapse, err := zyn.Transform(r.spec.Framing, provider)
	if err != nil {
		return "", fmt.Errorf("%w: create transform synapse: %v", ErrProviderError, err)
	}

	out, err := synapse.FireWithInput(ctx, zyn.NewSession(), zyn.TransformInput{
		Text:        turn.Input,
		Context:     memoryContext(turn.Retrieved),
		Style:       styleHint(turn, r.spec.PersonaBias),
		Temperature: r.spec.Temperature,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: %s: %v", ErrProviderTimeout, r.spec.Name, err)
		}
		return "", fmt.Errorf("%w: %s: %v", ErrProviderError, r.spec.Name, err)
	}
	return out, nil
}

// memoryContext flattens retrieved fragments into the synapse context block.
func memoryContext(retrieved []RetrievalResult) string {
	if len(retrieved) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant memories:\n")
	for _, r := range retrieved {
		b.WriteString("- ")
		b.WriteString(r.Fragment.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// styleHint renders the affect vector as a short style directive.
func styleHint(turn *Turn, bias Dimension) string {
	if turn.Affect == nil || turn.Affect.Vector == nil {
		return ""
	}
	v := turn.Affect.Vector
	hint := fmt.Sprintf("Current mood: valence %.2f, arousal %.2f, trust %.2f.",
		v[Valence], v[Arousal], v[Trust])
	if bias != "" {
		hint += fmt.Sprintf(" Emphasize %s (%.2f).", bias, v[bias])
	}
	return hint
}

var _ Reasoner = (*SynapseReasoner)(nil)

// reasonerFunc adapts a plain function into a Reasoner. Used in tests and
// for wiring simple deterministic responders.
type reasonerFunc struct {
	name string
	fn   func(ctx context.Context, turn *Turn) (string, error)
}

// ReasonerFunc wraps fn as a named Reasoner.
func ReasonerFunc(name string, fn func(ctx context.Context, turn *Turn) (string, error)) Reasoner {
	return &reasonerFunc{name: name, fn: fn}
}

func (r *reasonerFunc) Respond(ctx context.Context, turn *Turn) (string, error) {
	return r.fn(ctx, turn)
}

func (r *reasonerFunc) Name() string {
	return r.name
}
