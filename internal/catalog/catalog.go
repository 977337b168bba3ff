// Package catalog stores track metadata and resolves track IDs to display
// records for match results.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sonique-audio/sonique/internal/storage"
)

// ErrTrackNotFound is returned by Resolve when no track has the given ID.
var ErrTrackNotFound = errors.New("track not found")

// Track is a catalog record. Title+Artists identify a recording; ID is the
// opaque identifier fingerprints are stored under.
type Track struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title       string    `gorm:"uniqueIndex:idx_track_unique,priority:1" json:"title"`
	Artists     string    `gorm:"uniqueIndex:idx_track_unique,priority:2" json:"artists"`
	Cover       string    `json:"cover,omitempty"`
	Album       string    `json:"album,omitempty"`
	ReleaseDate string    `json:"release_date,omitempty"`
	DurationMs  int       `json:"duration_ms"`
	CreatedAt   time.Time `json:"-"`
}

func (Track) TableName() string { return "tracks" }

// Metadata is the caller-supplied portion of a Track.
type Metadata struct {
	Title       string
	Artists     string
	Cover       string
	Album       string
	ReleaseDate string
	DurationMs  int
}

type Catalog struct {
	db *gorm.DB
}

func New(db *storage.DB) (*Catalog, error) {
	if err := db.Gorm.AutoMigrate(&Track{}); err != nil {
		return nil, fmt.Errorf("migrating tracks table: %w", err)
	}
	return &Catalog{db: db.Gorm}, nil
}

// Register creates a track record and returns its freshly minted ID.
func (c *Catalog) Register(ctx context.Context, meta Metadata) (string, error) {
	track := Track{
		ID:          uuid.NewString(),
		Title:       meta.Title,
		Artists:     meta.Artists,
		Cover:       meta.Cover,
		Album:       meta.Album,
		ReleaseDate: meta.ReleaseDate,
		DurationMs:  meta.DurationMs,
	}
	if err := c.db.WithContext(ctx).Create(&track).Error; err != nil {
		return "", fmt.Errorf("creating track: %w", err)
	}
	return track.ID, nil
}

// Exists reports whether a track with the same title and artists is already
// cataloged. Ingestion checks this before fingerprinting; the index itself
// does not deduplicate.
func (c *Catalog) Exists(ctx context.Context, title, artists string) (bool, error) {
	var n int64
	err := c.db.WithContext(ctx).Model(&Track{}).
		Where("title = ? AND artists = ?", title, artists).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("querying existing track: %w", err)
	}
	return n > 0, nil
}

// Resolve looks up the display record for trackID. Returns ErrTrackNotFound
// when the ID is not cataloged.
func (c *Catalog) Resolve(ctx context.Context, trackID string) (*Track, error) {
	var track Track
	err := c.db.WithContext(ctx).First(&track, "id = ?", trackID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolving track %s: %w", trackID, err)
	}
	return &track, nil
}

// List returns all cataloged tracks, newest first.
func (c *Catalog) List(ctx context.Context) ([]Track, error) {
	var tracks []Track
	if err := c.db.WithContext(ctx).Order("created_at DESC").Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("listing tracks: %w", err)
	}
	return tracks, nil
}

// Delete removes the track record. Fingerprint postings are the index's to
// clean up; callers delete those first.
func (c *Catalog) Delete(ctx context.Context, trackID string) error {
	if err := c.db.WithContext(ctx).Delete(&Track{}, "id = ?", trackID).Error; err != nil {
		return fmt.Errorf("deleting track %s: %w", trackID, err)
	}
	return nil
}
