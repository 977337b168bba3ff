// Package service wires the hasher, index, matcher and catalog into the
// ingestion and recognition pipelines.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sonique-audio/sonique/internal/catalog"
	"github.com/sonique-audio/sonique/internal/fingerprint"
	"github.com/sonique-audio/sonique/internal/index"
	"github.com/sonique-audio/sonique/internal/match"
	"github.com/sonique-audio/sonique/internal/storage"
	"github.com/sonique-audio/sonique/pkg/logger"
)

// ErrTrackExists is returned by IngestTrack when the catalog already holds a
// track with the same title and artists. Re-fingerprinting would duplicate
// postings, so ingestion refuses instead.
var ErrTrackExists = errors.New("track already fingerprinted")

type Service struct {
	db      *storage.DB
	index   *index.Index
	catalog *catalog.Catalog
	matcher *match.Matcher
	hasher  fingerprint.Hasher
	log     *logger.Logger
}

// New opens the durable store and assembles the engine. Options adjust the
// database path and the hashing/matching tunables.
func New(opts ...Option) (*Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	ix, err := index.New(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	cat, err := catalog.New(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	hasher := fingerprint.NewHasher()
	hasher.FanOut = cfg.FanOut
	hasher.MaxTimeDelta = cfg.MaxTimeDelta
	hasher.TimeUnit = cfg.TimeUnit

	matcher := match.New(ix, cat, cfg.Logger)
	if cfg.Workers > 0 {
		matcher.Workers = cfg.Workers
	}

	return &Service{
		db:      db,
		index:   ix,
		catalog: cat,
		matcher: matcher,
		hasher:  hasher,
		log:     cfg.Logger,
	}, nil
}

// IngestTrack registers the track's metadata, fingerprints its landmarks and
// stores the postings atomically. If the fingerprint batch fails, the track
// record is rolled back so the catalog never lists a track with no postings.
func (s *Service) IngestTrack(ctx context.Context, meta catalog.Metadata, landmarks []fingerprint.Landmark) (string, int, error) {
	exists, err := s.catalog.Exists(ctx, meta.Title, meta.Artists)
	if err != nil {
		return "", 0, err
	}
	if exists {
		return "", 0, fmt.Errorf("%w: %q by %q", ErrTrackExists, meta.Title, meta.Artists)
	}

	trackID, err := s.catalog.Register(ctx, meta)
	if err != nil {
		return "", 0, err
	}

	fps := s.hasher.Hash(landmarks)
	s.log.Infof("track %s: %d landmarks -> %d fingerprints", trackID, len(landmarks), len(fps))

	count, err := s.index.InsertBatch(ctx, trackID, fps)
	if err != nil {
		if delErr := s.catalog.Delete(context.WithoutCancel(ctx), trackID); delErr != nil {
			s.log.Errorf("rollback of track %s failed: %v", trackID, delErr)
		}
		return "", 0, err
	}

	s.log.Infof("ingested %q by %q as track %s (%d postings)", meta.Title, meta.Artists, trackID, count)
	return trackID, count, nil
}

// MatchLandmarks fingerprints a query landmark set and ranks catalog tracks
// against it.
func (s *Service) MatchLandmarks(ctx context.Context, landmarks []fingerprint.Landmark) ([]match.Candidate, error) {
	return s.matcher.Match(ctx, s.hasher.Hash(landmarks))
}

// MatchFingerprints ranks catalog tracks against pre-computed fingerprints,
// for callers that hash on their own side of the wire.
func (s *Service) MatchFingerprints(ctx context.Context, fps []fingerprint.Fingerprint) ([]match.Candidate, error) {
	return s.matcher.Match(ctx, fps)
}

// GetTrack resolves a track's metadata. Returns catalog.ErrTrackNotFound for
// unknown IDs.
func (s *Service) GetTrack(ctx context.Context, trackID string) (*catalog.Track, error) {
	return s.catalog.Resolve(ctx, trackID)
}

// ListTracks returns all cataloged tracks.
func (s *Service) ListTracks(ctx context.Context) ([]catalog.Track, error) {
	return s.catalog.List(ctx)
}

// TrackPostings returns how many postings the index holds for one track.
func (s *Service) TrackPostings(ctx context.Context, trackID string) (int64, error) {
	return s.index.CountByTrack(ctx, trackID)
}

// IndexSize returns the total number of stored postings. The boundary layer
// uses a zero size to report "no catalog data" instead of "no match found".
func (s *Service) IndexSize(ctx context.Context) (int64, error) {
	return s.index.Count(ctx)
}

// DeleteTrack removes a track's postings and then its catalog record.
func (s *Service) DeleteTrack(ctx context.Context, trackID string) error {
	if err := s.index.DeleteTrack(ctx, trackID); err != nil {
		return err
	}
	return s.catalog.Delete(ctx, trackID)
}

func (s *Service) Close() error {
	return s.db.Close()
}
