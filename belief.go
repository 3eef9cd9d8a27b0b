package noema

import (
	"time"

	"github.com/google/uuid"
)

// HypothesisStatus tracks a belief hypothesis through its confidence gate.
type HypothesisStatus string

const (
	// HypothesisAccepted means confidence cleared the accept threshold and
	// a belief fragment was indexed.
	HypothesisAccepted HypothesisStatus = "accepted"
	// HypothesisProposed means confidence landed between the propose floor
	// and the accept threshold; the hypothesis waits for more evidence.
	HypothesisProposed HypothesisStatus = "proposed"
	// HypothesisRejected means confidence fell below the propose floor.
	HypothesisRejected HypothesisStatus = "rejected"
)

// BeliefHypothesis is a generalization distilled from a cluster of thought
// traces. Evidence links back to the trace and fragment IDs that produced it.
type BeliefHypothesis struct {
	ID          uuid.UUID        `db:"id" type:"uuid" constraints:"primarykey" default:"gen_random_uuid()"`
	Identity    string           `db:"identity" type:"text" constraints:"notnull"`
	Statement   string           `db:"statement" type:"text" constraints:"notnull"`
	Confidence  float64          `db:"confidence" type:"float8" constraints:"notnull"`
	Status      HypothesisStatus `db:"status" type:"text" constraints:"notnull"`
	Evidence    Strings          `db:"evidence" type:"jsonb" default:"'[]'"`
	ClusterSize int              `db:"cluster_size" type:"bigint" default:"0"`
	CreatedAt   time.Time        `db:"created_at" type:"timestamptz" default:"now()"`
}

// Gate assigns a status from a confidence score. Thresholds are inclusive at
// the accept boundary and at the propose floor.
func Gate(confidence, accept, floor float64) HypothesisStatus {
	switch {
	case confidence >= accept:
		return HypothesisAccepted
	case confidence >= floor:
		return HypothesisProposed
	default:
		return HypothesisRejected
	}
}
