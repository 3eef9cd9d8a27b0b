package noema

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Strings is a jsonb-backed string slice used for tags and evidence links.
type Strings []string

// Scan implements sql.Scanner for reading jsonb string arrays.
func (s *Strings) Scan(src any) error {
	if src == nil {
		*s = nil
		return nil
	}
	var b []byte
	switch val := src.(type) {
	case []byte:
		b = val
	case string:
		b = []byte(val)
	default:
		return fmt.Errorf("cannot scan %T into Strings", src)
	}
	return json.Unmarshal(b, s)
}

// Value implements driver.Valuer for writing jsonb string arrays.
func (s Strings) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Contains reports whether the slice holds the given value.
func (s Strings) Contains(v string) bool {
	for _, t := range s {
		if t == v {
			return true
		}
	}
	return false
}

// TagBelief marks fragments produced by consolidation. Belief fragments are
// exempt from capacity eviction.
const TagBelief = "belief"

// MemoryFragment is one indexed unit of episodic or semantic memory.
type MemoryFragment struct {
	ID          uuid.UUID `db:"id" type:"uuid" constraints:"primarykey" default:"gen_random_uuid()"`
	Identity    string    `db:"identity" type:"text" constraints:"notnull"`
	Content     string    `db:"content" type:"text" constraints:"notnull"`
	Embedding   Vector    `db:"embedding" type:"vector(1536)"`
	Tags        Strings   `db:"tags" type:"jsonb" default:"'[]'"`
	Importance  float64   `db:"importance" type:"float8" default:"0"`
	Seq         uint64    `db:"seq" type:"bigint" default:"0"`
	AccessCount int       `db:"access_count" type:"bigint" default:"0"`
	CreatedAt   time.Time `db:"created_at" type:"timestamptz" default:"now()"`
	LastAccess  time.Time `db:"last_access" type:"timestamptz" default:"now()"`
}

// IsBelief reports whether the fragment carries the belief tag.
func (f *MemoryFragment) IsBelief() bool {
	return f.Tags.Contains(TagBelief)
}

// FragmentSeed describes a fragment before indexing. Intensity is the affect
// intensity active when the content was perceived; Significance is the
// caller's own weighting, both in [0, 1].
type FragmentSeed struct {
	Content      string
	Tags         Strings
	Intensity    float64
	Significance float64
}

// initialImportance scores a seed in [0, 1]. Length contributes a saturating
// share so long transcripts don't dominate; affect intensity carries the
// largest weight.
func initialImportance(seed FragmentSeed) float64 {
	length := float64(len(seed.Content)) / (float64(len(seed.Content)) + 200)
	score := 0.3*length + 0.5*clamp01(seed.Intensity) + 0.2*clamp01(seed.Significance)
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RetrievalResult pairs a retrieved fragment with its query similarity and
// the marginal-relevance score it was ranked on.
type RetrievalResult struct {
	Fragment   *MemoryFragment
	Similarity float64
	Score      float64
}
