package noema

import (
	"time"

	"github.com/google/uuid"
)

// Turn modes. A turn starts normal and downgrades as stages fail softly.
const (
	ModeNormal      = "normal"
	ModeNoEmbedding = "no-embedding" // embedder unavailable; retrieval skipped
	ModeNoMemory    = "no-memory"    // retrieval failed; reasoning without context
	ModeFallback    = "fallback"     // all reasoning candidates failed
)

// Candidate is one reasoner's attempt at a response for a turn.
type Candidate struct {
	Reasoner string
	Text     string
	Err      error
	Elapsed  time.Duration
}

// Turn is the payload threaded through the cognitive pipeline. Each stage
// reads the fields earlier stages filled and writes its own.
type Turn struct {
	ID       uuid.UUID
	Identity string
	Input    string
	At       time.Time

	// Perceiving.
	Signal       AffectSignal
	AffectBefore AffectVector
	Affect       *AffectState

	// Retrieval.
	QueryVector Vector
	Retrieved   []RetrievalResult

	// Reasoning and synthesis.
	Candidates []Candidate
	Response   string
	Selected   string // name of the reasoner arbitration picked

	Mode string

	// Set by persistence once the trace sequence is assigned.
	traceSeq uint64
}

// NewTurn starts a normal-mode turn for an identity.
func NewTurn(identity, input string) *Turn {
	return &Turn{
		ID:       uuid.New(),
		Identity: identity,
		Input:    input,
		At:       time.Now(),
		Mode:     ModeNormal,
	}
}

// Degrade downgrades the turn's mode. Fallback outranks the memory modes;
// a turn never upgrades back to normal.
func (t *Turn) Degrade(mode string) {
	if t.Mode == ModeFallback {
		return
	}
	if mode == ModeFallback || t.Mode == ModeNormal {
		t.Mode = mode
	}
}

// Degraded reports whether any stage downgraded the turn.
func (t *Turn) Degraded() bool {
	return t.Mode != ModeNormal
}

// Clone returns a deep copy so concurrent pipeline branches can mutate
// their own snapshot.
func (t *Turn) Clone() *Turn {
	out := *t
	if t.Affect != nil {
		affect := *t.Affect
		affect.Vector = t.Affect.Vector.Clone()
		out.Affect = &affect
	}
	out.AffectBefore = t.AffectBefore.Clone()
	out.QueryVector = append(Vector(nil), t.QueryVector...)
	out.Retrieved = append([]RetrievalResult(nil), t.Retrieved...)
	out.Candidates = append([]Candidate(nil), t.Candidates...)
	return &out
}

// RetrievedIDs returns the fragment IDs the turn grounded on.
func (t *Turn) RetrievedIDs() Strings {
	ids := make(Strings, 0, len(t.Retrieved))
	for _, r := range t.Retrieved {
		ids = append(ids, r.Fragment.ID.String())
	}
	return ids
}

// ThoughtTrace is the persisted record of one completed turn. Traces are the
// raw material consolidation clusters into belief hypotheses.
type ThoughtTrace struct {
	ID           uuid.UUID    `db:"id" type:"uuid" constraints:"primarykey" default:"gen_random_uuid()"`
	Identity     string       `db:"identity" type:"text" constraints:"notnull"`
	Seq          uint64       `db:"seq" type:"bigint" constraints:"notnull"`
	Input        string       `db:"input" type:"text" constraints:"notnull"`
	Response     string       `db:"response" type:"text" constraints:"notnull"`
	Embedding    Vector       `db:"embedding" type:"vector(1536)"`
	AffectBefore AffectVector `db:"affect_before" type:"jsonb" default:"'{}'"`
	AffectAfter  AffectVector `db:"affect_after" type:"jsonb" default:"'{}'"`
	FragmentIDs  Strings      `db:"fragment_ids" type:"jsonb" default:"'[]'"`
	Candidates   Strings      `db:"candidates" type:"jsonb" default:"'[]'"`
	Arbiter      string       `db:"arbiter" type:"text" default:"''"`
	Mode         string       `db:"mode" type:"text" default:"'normal'"`
	CreatedAt    time.Time    `db:"created_at" type:"timestamptz" default:"now()"`
}

// TurnResult is what ProcessInput hands back to the caller.
type TurnResult struct {
	TurnID    uuid.UUID
	Identity  string
	Response  string
	Mode      string
	Affect    AffectVector
	Retrieved []RetrievalResult
	TraceSeq  uint64
}
