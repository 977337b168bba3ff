package index

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sonique-audio/sonique/internal/fingerprint"
	"github.com/sonique-audio/sonique/internal/storage"
)

func setupIndex(t *testing.T) *Index {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "test_index.db"))
	if err != nil {
		t.Fatalf("Failed to open storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ix, err := New(db)
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	return ix
}

func sampleFingerprints(n int, seed uint32) []fingerprint.Fingerprint {
	fps := make([]fingerprint.Fingerprint, n)
	for i := range fps {
		fps[i] = fingerprint.Fingerprint{
			Hash:       seed + uint32(i)*17,
			AnchorTime: float64(i) * 0.5,
		}
	}
	return fps
}

func TestInsertBatchAndLookupAll(t *testing.T) {
	ix := setupIndex(t)
	ctx := context.Background()

	fps := sampleFingerprints(25, 1000)
	count, err := ix.InsertBatch(ctx, "track-a", fps)
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	if count != len(fps) {
		t.Errorf("InsertBatch returned %d, want %d", count, len(fps))
	}

	entries, err := ix.LookupAll(ctx)
	if err != nil {
		t.Fatalf("LookupAll failed: %v", err)
	}
	if len(entries) != len(fps) {
		t.Fatalf("LookupAll returned %d entries, want %d", len(entries), len(fps))
	}

	byHash := map[uint32]Entry{}
	for _, e := range entries {
		if e.TrackID != "track-a" {
			t.Errorf("entry has track ID %q, want track-a", e.TrackID)
		}
		byHash[e.Hash] = e
	}
	for _, fp := range fps {
		e, ok := byHash[fp.Hash]
		if !ok {
			t.Errorf("hash %d missing from postings", fp.Hash)
			continue
		}
		if e.AnchorTime != fp.AnchorTime {
			t.Errorf("hash %d has anchor time %v, want %v", fp.Hash, e.AnchorTime, fp.AnchorTime)
		}
	}
}

func TestInsertBatchEmpty(t *testing.T) {
	ix := setupIndex(t)

	count, err := ix.InsertBatch(context.Background(), "track-a", nil)
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	if count != 0 {
		t.Errorf("InsertBatch returned %d for empty batch, want 0", count)
	}
}

func TestInsertBatchNotIdempotent(t *testing.T) {
	ix := setupIndex(t)
	ctx := context.Background()

	fps := sampleFingerprints(10, 2000)
	for i := 0; i < 2; i++ {
		if _, err := ix.InsertBatch(ctx, "track-a", fps); err != nil {
			t.Fatalf("InsertBatch %d failed: %v", i, err)
		}
	}

	// Re-inserting a track duplicates postings; deduplication is the
	// caller's job via the catalog existence check.
	n, err := ix.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != int64(2*len(fps)) {
		t.Errorf("Count = %d after double insert, want %d", n, 2*len(fps))
	}
}

func TestInsertBatchCanceledContext(t *testing.T) {
	ix := setupIndex(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ix.InsertBatch(ctx, "track-a", sampleFingerprints(10, 3000)); err == nil {
		t.Fatal("Expected error for canceled context")
	}

	// Nothing from the aborted batch may be visible.
	n, err := ix.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Count = %d after aborted batch, want 0", n)
	}
}

func TestDeleteTrack(t *testing.T) {
	ix := setupIndex(t)
	ctx := context.Background()

	if _, err := ix.InsertBatch(ctx, "track-a", sampleFingerprints(10, 4000)); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	if _, err := ix.InsertBatch(ctx, "track-b", sampleFingerprints(15, 5000)); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	if err := ix.DeleteTrack(ctx, "track-a"); err != nil {
		t.Fatalf("DeleteTrack failed: %v", err)
	}

	na, err := ix.CountByTrack(ctx, "track-a")
	if err != nil {
		t.Fatalf("CountByTrack failed: %v", err)
	}
	if na != 0 {
		t.Errorf("track-a still has %d postings after delete", na)
	}

	nb, err := ix.CountByTrack(ctx, "track-b")
	if err != nil {
		t.Fatalf("CountByTrack failed: %v", err)
	}
	if nb != 15 {
		t.Errorf("track-b has %d postings, want 15", nb)
	}
}

func TestConcurrentInsertsDistinctTracks(t *testing.T) {
	ix := setupIndex(t)
	ctx := context.Background()

	const tracks = 8
	const perTrack = 50

	var wg sync.WaitGroup
	errs := make(chan error, tracks)
	for i := 0; i < tracks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			trackID := fmt.Sprintf("track-%d", i)
			if _, err := ix.InsertBatch(ctx, trackID, sampleFingerprints(perTrack, uint32(i)*100000)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent InsertBatch failed: %v", err)
	}

	n, err := ix.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != tracks*perTrack {
		t.Errorf("Count = %d, want %d", n, tracks*perTrack)
	}
}
