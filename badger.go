package noema

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Key layout. Trace keys zero-pad the sequence so lexicographic iteration
// matches sequence order.
const (
	keyAffect     = "affect:%s"
	keyFragment   = "fragment:%s:%s"
	keyFragPrefix = "fragment:%s:"
	keyTrace      = "trace:%s:%020d"
	keyTracePre   = "trace:%s:"
	keyHypothesis = "hypothesis:%s:%s"
	keyHypPrefix  = "hypothesis:%s:"
	keyMark       = "mark:%s"
	keyTraceSeq   = "traceseq:%s"
)

// BadgerStore is an embedded StateStore over badger. It suits single-process
// deployments that need durability without a Postgres dependency.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens a badger-backed store at the given directory.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger at %s: %v", ErrStorageUnavailable, dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", ErrStorageUnavailable, key, err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrStorageUnavailable, key, err)
	}
	return nil
}

func (b *BadgerStore) getJSON(key string, v any) error {
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("%w: get %s: %v", ErrStorageUnavailable, key, err)
	}
	return nil
}

// scanPrefix decodes every value under a prefix into fresh T instances.
func scanPrefix[T any](db *badger.DB, prefix string) ([]*T, error) {
	var out []*T
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var v T
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			})
			if err != nil {
				return err
			}
			out = append(out, &v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan %s: %v", ErrStorageUnavailable, prefix, err)
	}
	return out, nil
}

// LoadAffect returns an identity's affect state.
func (b *BadgerStore) LoadAffect(_ context.Context, identity string) (*AffectState, error) {
	var state AffectState
	if err := b.getJSON(fmt.Sprintf(keyAffect, identity), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SaveAffect stores an identity's affect state.
func (b *BadgerStore) SaveAffect(_ context.Context, state *AffectState) error {
	return b.setJSON(fmt.Sprintf(keyAffect, state.Identity), state)
}

// PutFragment stores a fragment.
func (b *BadgerStore) PutFragment(_ context.Context, frag *MemoryFragment) error {
	return b.setJSON(fmt.Sprintf(keyFragment, frag.Identity, frag.ID), frag)
}

// GetFragment returns one fragment.
func (b *BadgerStore) GetFragment(_ context.Context, identity string, id uuid.UUID) (*MemoryFragment, error) {
	var frag MemoryFragment
	if err := b.getJSON(fmt.Sprintf(keyFragment, identity, id), &frag); err != nil {
		return nil, err
	}
	return &frag, nil
}

// DeleteFragment removes a fragment if present.
func (b *BadgerStore) DeleteFragment(_ context.Context, identity string, id uuid.UUID) error {
	key := fmt.Sprintf(keyFragment, identity, id)
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrStorageUnavailable, key, err)
	}
	return nil
}

// FragmentsByIdentity returns every fragment an identity holds.
func (b *BadgerStore) FragmentsByIdentity(_ context.Context, identity string) ([]*MemoryFragment, error) {
	return scanPrefix[MemoryFragment](b.db, fmt.Sprintf(keyFragPrefix, identity))
}

// AppendTrace increments the identity's sequence counter and writes the
// trace in one transaction, so a crash can never leave a gap.
func (b *BadgerStore) AppendTrace(_ context.Context, trace *ThoughtTrace) error {
	seqKey := []byte(fmt.Sprintf(keyTraceSeq, trace.Identity))

	err := b.db.Update(func(txn *badger.Txn) error {
		var seq uint64
		item, err := txn.Get(seqKey)
		switch {
		case err == nil:
			err = item.Value(func(val []byte) error {
				if len(val) == 8 {
					seq = binary.BigEndian.Uint64(val)
				}
				return nil
			})
			if err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		seq++
		trace.Seq = seq

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, seq)
		if err := txn.Set(seqKey, buf); err != nil {
			return err
		}

		data, err := json.Marshal(trace)
		if err != nil {
			return err
		}
		return txn.Set([]byte(fmt.Sprintf(keyTrace, trace.Identity, seq)), data)
	})
	if err != nil {
		return fmt.Errorf("%w: append trace: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// TracesInRange returns traces with from < Seq <= to in sequence order.
// Trace keys sort by sequence, so prefix iteration already yields order.
func (b *BadgerStore) TracesInRange(_ context.Context, identity string, from, to uint64) ([]*ThoughtTrace, error) {
	all, err := scanPrefix[ThoughtTrace](b.db, fmt.Sprintf(keyTracePre, identity))
	if err != nil {
		return nil, err
	}
	var out []*ThoughtTrace
	for _, t := range all {
		if t.Seq > from && t.Seq <= to {
			out = append(out, t)
		}
	}
	return out, nil
}

// LatestTraceSeq returns the identity's sequence counter.
func (b *BadgerStore) LatestTraceSeq(_ context.Context, identity string) (uint64, error) {
	var seq uint64
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(fmt.Sprintf(keyTraceSeq, identity)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 8 {
				seq = binary.BigEndian.Uint64(val)
			}
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("%w: latest trace seq: %v", ErrStorageUnavailable, err)
	}
	return seq, nil
}

// SaveHypothesis stores a belief hypothesis.
func (b *BadgerStore) SaveHypothesis(_ context.Context, h *BeliefHypothesis) error {
	return b.setJSON(fmt.Sprintf(keyHypothesis, h.Identity, h.ID), h)
}

// HypothesesByStatus returns an identity's hypotheses with the given status.
func (b *BadgerStore) HypothesesByStatus(_ context.Context, identity string, status HypothesisStatus) ([]*BeliefHypothesis, error) {
	all, err := scanPrefix[BeliefHypothesis](b.db, fmt.Sprintf(keyHypPrefix, identity))
	if err != nil {
		return nil, err
	}
	var out []*BeliefHypothesis
	for _, h := range all {
		if h.Status == status {
			out = append(out, h)
		}
	}
	return out, nil
}

// ConsolidationMark returns the identity's watermark, or 0 when never set.
func (b *BadgerStore) ConsolidationMark(_ context.Context, identity string) (uint64, error) {
	var mark markRow
	err := b.getJSON(fmt.Sprintf(keyMark, identity), &mark)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return mark.Seq, nil
}

// SetConsolidationMark stores the identity's watermark.
func (b *BadgerStore) SetConsolidationMark(_ context.Context, identity string, seq uint64) error {
	return b.setJSON(fmt.Sprintf(keyMark, identity), markRow{Identity: identity, Seq: seq})
}

// Close closes the underlying badger database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

var _ StateStore = (*BadgerStore)(nil)
