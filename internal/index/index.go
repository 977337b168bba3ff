// Package index persists the mapping from fingerprint hash to its postings
// list: every (track, anchor time) occurrence of that hash in the catalog.
package index

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/sonique-audio/sonique/internal/fingerprint"
	"github.com/sonique-audio/sonique/internal/storage"
)

// Entry is one postings occurrence: the given track produced Hash at
// AnchorTime seconds into its reference audio.
type Entry struct {
	TrackID    string
	Hash       uint32
	AnchorTime float64
}

type fingerprintRow struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Hash       uint32 `gorm:"index:idx_fingerprints_hash"`
	TrackID    string `gorm:"type:varchar(36);index:idx_fingerprints_track"`
	AnchorTime float64
}

func (fingerprintRow) TableName() string { return "fingerprints" }

// Index stores fingerprint postings in the shared durable store.
type Index struct {
	db *gorm.DB
}

func New(db *storage.DB) (*Index, error) {
	if err := db.Gorm.AutoMigrate(&fingerprintRow{}); err != nil {
		return nil, fmt.Errorf("migrating fingerprints table: %w", err)
	}
	return &Index{db: db.Gorm}, nil
}

// InsertBatch stores all fingerprints of one track in a single transaction:
// either every entry becomes visible or none do. It is NOT idempotent —
// re-inserting a track duplicates its postings, so callers check existence
// first. Batches for distinct tracks may run concurrently.
func (ix *Index) InsertBatch(ctx context.Context, trackID string, fps []fingerprint.Fingerprint) (int, error) {
	if len(fps) == 0 {
		return 0, nil
	}

	rows := make([]fingerprintRow, len(fps))
	for i, fp := range fps {
		rows[i] = fingerprintRow{Hash: fp.Hash, TrackID: trackID, AnchorTime: fp.AnchorTime}
	}

	err := ix.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, 500).Error
	})
	if err != nil {
		return 0, fmt.Errorf("inserting fingerprint batch for track %s: %w", trackID, err)
	}
	return len(rows), nil
}

// LookupAll retrieves every committed posting. The engine is sized for a
// catalog small enough to scan per query; swapping this for per-hash point
// lookups would not change the matcher's scoring contract.
func (ix *Index) LookupAll(ctx context.Context) ([]Entry, error) {
	var rows []fingerprintRow
	if err := ix.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("scanning fingerprint index: %w", err)
	}

	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{TrackID: r.TrackID, Hash: r.Hash, AnchorTime: r.AnchorTime}
	}
	return entries, nil
}

// Count returns the total number of stored postings.
func (ix *Index) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := ix.db.WithContext(ctx).Model(&fingerprintRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting fingerprints: %w", err)
	}
	return n, nil
}

// CountByTrack returns the number of postings stored for one track.
func (ix *Index) CountByTrack(ctx context.Context, trackID string) (int64, error) {
	var n int64
	err := ix.db.WithContext(ctx).Model(&fingerprintRow{}).Where("track_id = ?", trackID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("counting fingerprints for track %s: %w", trackID, err)
	}
	return n, nil
}

// DeleteTrack removes every posting belonging to trackID.
func (ix *Index) DeleteTrack(ctx context.Context, trackID string) error {
	err := ix.db.WithContext(ctx).Where("track_id = ?", trackID).Delete(&fingerprintRow{}).Error
	if err != nil {
		return fmt.Errorf("deleting fingerprints for track %s: %w", trackID, err)
	}
	return nil
}
