package noema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/zoobzio/astql/postgres"
	"github.com/zoobzio/soy"
)

// markRow persists the per-identity consolidation watermark.
type markRow struct {
	ID        uuid.UUID `db:"id" type:"uuid" constraints:"primarykey" default:"gen_random_uuid()"`
	Identity  string    `db:"identity" type:"text" constraints:"notnull,unique"`
	Seq       uint64    `db:"seq" type:"bigint" constraints:"notnull"`
	UpdatedAt time.Time `db:"updated_at" type:"timestamptz" default:"now()"`
}

// SoyStore implements StateStore using soy over Postgres with pgvector.
// Trace sequence assignment is serialized with a store-level mutex; the
// cognitive loop already serializes turns per identity, so the mutex only
// guards cross-identity interleaving on the max-seq read.
type SoyStore struct {
	affect     *soy.Soy[AffectState]
	fragments  *soy.Soy[MemoryFragment]
	traces     *soy.Soy[ThoughtTrace]
	hypotheses *soy.Soy[BeliefHypothesis]
	marks      *soy.Soy[markRow]
	db         *sqlx.DB

	seqMu sync.Mutex
}

// NewSoyStore creates a Postgres-backed StateStore.
func NewSoyStore(db *sqlx.DB) (*SoyStore, error) {
	renderer := postgres.New()

	affect, err := soy.New[AffectState](db, "affect_states", renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize affect_states table: %w", err)
	}

	fragments, err := soy.New[MemoryFragment](db, "fragments", renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fragments table: %w", err)
	}

	traces, err := soy.New[ThoughtTrace](db, "traces", renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize traces table: %w", err)
	}

	hypotheses, err := soy.New[BeliefHypothesis](db, "hypotheses", renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize hypotheses table: %w", err)
	}

	marks, err := soy.New[markRow](db, "consolidation_marks", renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize consolidation_marks table: %w", err)
	}

	return &SoyStore{
		affect:     affect,
		fragments:  fragments,
		traces:     traces,
		hypotheses: hypotheses,
		marks:      marks,
		db:         db,
	}, nil
}

// storeErr classifies a backend failure into the store error taxonomy.
func storeErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	}
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}

// LoadAffect returns an identity's affect state.
func (s *SoyStore) LoadAffect(ctx context.Context, identity string) (*AffectState, error) {
	state, err := s.affect.Select().
		Where("identity", "=", "identity").
		Exec(ctx, map[string]any{"identity": identity})
	if err != nil {
		return nil, storeErr("load affect", err)
	}
	return state, nil
}

// SaveAffect upserts an identity's affect state.
func (s *SoyStore) SaveAffect(ctx context.Context, state *AffectState) error {
	_, err := s.affect.Select().
		Where("identity", "=", "identity").
		Exec(ctx, map[string]any{"identity": state.Identity})
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.affect.Insert().Exec(ctx, state); err != nil {
			return storeErr("insert affect", err)
		}
		return nil
	}
	if err != nil {
		return storeErr("load affect", err)
	}

	_, err = s.affect.Modify().
		Set("vector", "vector").
		Set("updated_at", "updated_at").
		Where("identity", "=", "identity").
		Exec(ctx, map[string]any{
			"vector":     state.Vector,
			"updated_at": state.UpdatedAt,
			"identity":   state.Identity,
		})
	if err != nil {
		return storeErr("update affect", err)
	}
	return nil
}

// PutFragment upserts a fragment.
func (s *SoyStore) PutFragment(ctx context.Context, frag *MemoryFragment) error {
	_, err := s.fragments.Select().
		Where("id", "=", "id").
		Exec(ctx, map[string]any{"id": frag.ID})
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.fragments.Insert().Exec(ctx, frag); err != nil {
			return storeErr("insert fragment", err)
		}
		return nil
	}
	if err != nil {
		return storeErr("load fragment", err)
	}

	_, err = s.fragments.Modify().
		Set("content", "content").
		Set("embedding", "embedding").
		Set("tags", "tags").
		Set("importance", "importance").
		Set("access_count", "access_count").
		Set("last_access", "last_access").
		Where("id", "=", "id").
		Exec(ctx, map[string]any{
			"content":      frag.Content,
			"embedding":    frag.Embedding,
			"tags":         frag.Tags,
			"importance":   frag.Importance,
			"access_count": frag.AccessCount,
			"last_access":  frag.LastAccess,
			"id":           frag.ID,
		})
	if err != nil {
		return storeErr("update fragment", err)
	}
	return nil
}

// GetFragment returns one fragment.
func (s *SoyStore) GetFragment(ctx context.Context, identity string, id uuid.UUID) (*MemoryFragment, error) {
	frag, err := s.fragments.Select().
		Where("id", "=", "id").
		Exec(ctx, map[string]any{"id": id})
	if err != nil {
		return nil, storeErr("get fragment", err)
	}
	if frag.Identity != identity {
		return nil, fmt.Errorf("%w: fragment %s", ErrNotFound, id)
	}
	return frag, nil
}

// DeleteFragment removes a fragment.
func (s *SoyStore) DeleteFragment(ctx context.Context, identity string, id uuid.UUID) error {
	_, err := s.fragments.Remove().
		Where("id", "=", "id").
		Exec(ctx, map[string]any{"id": id})
	if err != nil {
		return storeErr("delete fragment", err)
	}
	return nil
}

// FragmentsByIdentity returns every fragment an identity holds.
func (s *SoyStore) FragmentsByIdentity(ctx context.Context, identity string) ([]*MemoryFragment, error) {
	frags, err := s.fragments.Query().
		Where("identity", "=", "identity").
		OrderBy("seq", "asc").
		Exec(ctx, map[string]any{"identity": identity})
	if err != nil {
		return nil, storeErr("list fragments", err)
	}
	return frags, nil
}

// AppendTrace assigns the identity's next sequence number and inserts the
// trace.
func (s *SoyStore) AppendTrace(ctx context.Context, trace *ThoughtTrace) error {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	latest, err := s.LatestTraceSeq(ctx, trace.Identity)
	if err != nil {
		return err
	}
	trace.Seq = latest + 1

	if _, err := s.traces.Insert().Exec(ctx, trace); err != nil {
		return storeErr("insert trace", err)
	}
	return nil
}

// TracesInRange returns traces with from < Seq <= to in sequence order.
func (s *SoyStore) TracesInRange(ctx context.Context, identity string, from, to uint64) ([]*ThoughtTrace, error) {
	traces, err := s.traces.Query().
		Where("identity", "=", "identity").
		Where("seq", ">", "from").
		Where("seq", "<=", "to").
		OrderBy("seq", "asc").
		Exec(ctx, map[string]any{
			"identity": identity,
			"from":     from,
			"to":       to,
		})
	if err != nil {
		return nil, storeErr("list traces", err)
	}
	return traces, nil
}

// LatestTraceSeq returns the highest assigned trace sequence.
func (s *SoyStore) LatestTraceSeq(ctx context.Context, identity string) (uint64, error) {
	traces, err := s.traces.Query().
		Where("identity", "=", "identity").
		OrderBy("seq", "desc").
		Limit(1).
		Exec(ctx, map[string]any{"identity": identity})
	if err != nil {
		return 0, storeErr("latest trace seq", err)
	}
	if len(traces) == 0 {
		return 0, nil
	}
	return traces[0].Seq, nil
}

// SaveHypothesis upserts a belief hypothesis.
func (s *SoyStore) SaveHypothesis(ctx context.Context, h *BeliefHypothesis) error {
	_, err := s.hypotheses.Select().
		Where("id", "=", "id").
		Exec(ctx, map[string]any{"id": h.ID})
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.hypotheses.Insert().Exec(ctx, h); err != nil {
			return storeErr("insert hypothesis", err)
		}
		return nil
	}
	if err != nil {
		return storeErr("load hypothesis", err)
	}

	_, err = s.hypotheses.Modify().
		Set("confidence", "confidence").
		Set("status", "status").
		Set("evidence", "evidence").
		Where("id", "=", "id").
		Exec(ctx, map[string]any{
			"confidence": h.Confidence,
			"status":     string(h.Status),
			"evidence":   h.Evidence,
			"id":         h.ID,
		})
	if err != nil {
		return storeErr("update hypothesis", err)
	}
	return nil
}

// HypothesesByStatus returns an identity's hypotheses with the given status.
func (s *SoyStore) HypothesesByStatus(ctx context.Context, identity string, status HypothesisStatus) ([]*BeliefHypothesis, error) {
	hyps, err := s.hypotheses.Query().
		Where("identity", "=", "identity").
		Where("status", "=", "status").
		OrderBy("created_at", "asc").
		Exec(ctx, map[string]any{
			"identity": identity,
			"status":   string(status),
		})
	if err != nil {
		return nil, storeErr("list hypotheses", err)
	}
	return hyps, nil
}

// ConsolidationMark returns the identity's watermark, or 0 when never set.
func (s *SoyStore) ConsolidationMark(ctx context.Context, identity string) (uint64, error) {
	mark, err := s.marks.Select().
		Where("identity", "=", "identity").
		Exec(ctx, map[string]any{"identity": identity})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, storeErr("load mark", err)
	}
	return mark.Seq, nil
}

// SetConsolidationMark upserts the identity's watermark.
func (s *SoyStore) SetConsolidationMark(ctx context.Context, identity string, seq uint64) error {
	_, err := s.marks.Select().
		Where("identity", "=", "identity").
		Exec(ctx, map[string]any{"identity": identity})
	if errors.Is(err, sql.ErrNoRows) {
		row := &markRow{ID: uuid.New(), Identity: identity, Seq: seq, UpdatedAt: time.Now()}
		if _, err := s.marks.Insert().Exec(ctx, row); err != nil {
			return storeErr("insert mark", err)
		}
		return nil
	}
	if err != nil {
		return storeErr("load mark", err)
	}

	_, err = s.marks.Modify().
		Set("seq", "seq").
		Set("updated_at", "updated_at").
		Where("identity", "=", "identity").
		Exec(ctx, map[string]any{
			"seq":        seq,
			"updated_at": time.Now(),
			"identity":   identity,
		})
	if err != nil {
		return storeErr("update mark", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SoyStore) Close() error {
	return s.db.Close()
}

var _ StateStore = (*SoyStore)(nil)
