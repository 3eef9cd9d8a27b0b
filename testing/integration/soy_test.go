//go:build integration

package integration_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/zoobzio/noema"
)

func getTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	return db
}

func TestSoyStore_AffectRoundTrip(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := noema.NewSoyStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	identity := "it-" + uuid.NewString()

	state := noema.NewAffectState(identity)
	state.Vector[noema.Valence] = 0.42
	if err := store.SaveAffect(ctx, state); err != nil {
		t.Fatalf("failed to save affect: %v", err)
	}

	loaded, err := store.LoadAffect(ctx, identity)
	if err != nil {
		t.Fatalf("failed to load affect: %v", err)
	}
	if loaded.Vector[noema.Valence] != 0.42 {
		t.Errorf("expected valence 0.42, got %v", loaded.Vector[noema.Valence])
	}

	// Upsert path.
	state.Vector[noema.Valence] = -0.1
	state.UpdatedAt = time.Now()
	if err := store.SaveAffect(ctx, state); err != nil {
		t.Fatalf("failed to upsert affect: %v", err)
	}
	loaded, err = store.LoadAffect(ctx, identity)
	if err != nil {
		t.Fatalf("failed to reload affect: %v", err)
	}
	if loaded.Vector[noema.Valence] != -0.1 {
		t.Errorf("expected upserted valence -0.1, got %v", loaded.Vector[noema.Valence])
	}
}

func TestSoyStore_TraceSequence(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := noema.NewSoyStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	identity := "it-" + uuid.NewString()

	for i := 0; i < 3; i++ {
		trace := &noema.ThoughtTrace{
			ID:       uuid.New(),
			Identity: identity,
			Input:    "in",
			Response: "out",
		}
		if err := store.AppendTrace(ctx, trace); err != nil {
			t.Fatalf("failed to append trace: %v", err)
		}
		if trace.Seq != uint64(i+1) {
			t.Errorf("expected seq %d, got %d", i+1, trace.Seq)
		}
	}

	traces, err := store.TracesInRange(ctx, identity, 0, 3)
	if err != nil {
		t.Fatalf("failed to list traces: %v", err)
	}
	if len(traces) != 3 {
		t.Errorf("expected 3 traces, got %d", len(traces))
	}
}

func TestSoyStore_FragmentVectorSearch(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := noema.NewSoyStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	identity := "it-" + uuid.NewString()

	embedding := make([]float32, 1536)
	embedding[0] = 1

	frag := &noema.MemoryFragment{
		ID:         uuid.New(),
		Identity:   identity,
		Content:    "likes tea",
		Embedding:  noema.NewVector(embedding),
		Tags:       noema.Strings{"episode"},
		Importance: 0.5,
		Seq:        1,
		CreatedAt:  time.Now(),
		LastAccess: time.Now(),
	}
	if err := store.PutFragment(ctx, frag); err != nil {
		t.Fatalf("failed to put fragment: %v", err)
	}
	defer func() { _ = store.DeleteFragment(ctx, identity, frag.ID) }()

	index := noema.NewMemoryIndex(store)
	results, err := index.Search(ctx, identity, noema.NewVector(embedding), 1, 1.0)
	if err != nil {
		t.Fatalf("failed to search: %v", err)
	}
	if len(results) != 1 || results[0].Fragment.ID != frag.ID {
		t.Fatalf("expected the stored fragment back, got %d results", len(results))
	}
}

func TestSoyStore_ConsolidationMark(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := noema.NewSoyStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	identity := "it-" + uuid.NewString()

	mark, err := store.ConsolidationMark(ctx, identity)
	if err != nil {
		t.Fatalf("failed to read mark: %v", err)
	}
	if mark != 0 {
		t.Errorf("expected zero mark, got %d", mark)
	}

	if err := store.SetConsolidationMark(ctx, identity, 7); err != nil {
		t.Fatalf("failed to set mark: %v", err)
	}
	mark, err = store.ConsolidationMark(ctx, identity)
	if err != nil {
		t.Fatalf("failed to reread mark: %v", err)
	}
	if mark != 7 {
		t.Errorf("expected mark 7, got %d", mark)
	}
}
