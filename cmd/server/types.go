package main

import (
	"fmt"

	"github.com/sonique-audio/sonique/internal/fingerprint"
)

// Input size limits for pre-computed fingerprint queries.
const (
	// MaxFingerprintsHardLimit is the absolute maximum accepted per request
	// (roughly two minutes of dense audio).
	MaxFingerprintsHardLimit = 50000

	// FingerprintWarningThreshold triggers logging for unusually large queries.
	FingerprintWarningThreshold = 5000
)

// TrackMetadataDTO is the caller-supplied track record for ingestion.
type TrackMetadataDTO struct {
	Title       string `json:"title"`
	Artists     string `json:"artists"`
	Cover       string `json:"cover,omitempty"`
	Album       string `json:"album,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"`
	DurationMs  int    `json:"duration_ms,omitempty"`
}

// IngestRequest is the request body for POST /api/tracks.
type IngestRequest struct {
	Track     TrackMetadataDTO       `json:"track"`
	Landmarks []fingerprint.Landmark `json:"landmarks"`
}

func (r *IngestRequest) Validate() error {
	if r.Track.Title == "" || r.Track.Artists == "" {
		return fmt.Errorf("track.title and track.artists are required")
	}
	if len(r.Landmarks) == 0 {
		return fmt.Errorf("landmarks cannot be empty")
	}
	return nil
}

// MatchRequest is the request body for POST /api/match.
type MatchRequest struct {
	Landmarks []fingerprint.Landmark `json:"landmarks"`
}

func (r *MatchRequest) Validate() error {
	if len(r.Landmarks) == 0 {
		return fmt.Errorf("landmarks cannot be empty")
	}
	return nil
}

// MatchFingerprintsRequest is the request body for POST /api/match/fingerprints,
// for clients that hash landmarks on their own side.
type MatchFingerprintsRequest struct {
	Fingerprints []fingerprint.Fingerprint `json:"fingerprints"`
}

func (r *MatchFingerprintsRequest) Validate() error {
	if len(r.Fingerprints) == 0 {
		return fmt.Errorf("fingerprints cannot be empty")
	}
	if len(r.Fingerprints) > MaxFingerprintsHardLimit {
		return fmt.Errorf("too many fingerprints: %d (maximum: %d)", len(r.Fingerprints), MaxFingerprintsHardLimit)
	}
	for _, fp := range r.Fingerprints {
		if !fingerprint.ValidHash(fp.Hash) {
			return fmt.Errorf("invalid hash format: %d", fp.Hash)
		}
		if fp.AnchorTime < 0 {
			return fmt.Errorf("negative anchor time: %f", fp.AnchorTime)
		}
	}
	return nil
}

// MatchDTO is a single ranked candidate in a match response.
type MatchDTO struct {
	TrackID     string  `json:"track_id"`
	Title       string  `json:"title"`
	Artists     string  `json:"artists"`
	Cover       string  `json:"cover,omitempty"`
	Album       string  `json:"album,omitempty"`
	ReleaseDate string  `json:"release_date,omitempty"`
	DurationMs  int     `json:"duration_ms,omitempty"`
	Offset      int     `json:"offset_seconds"`
	Support     int     `json:"support"`
	Confidence  float64 `json:"confidence"`
}

// MatchResponse is the response for both match endpoints. Message
// distinguishes "no match found" from "no catalog data" when Matches is empty.
type MatchResponse struct {
	Matches []MatchDTO `json:"matches"`
	Count   int        `json:"count"`
	Message string     `json:"message,omitempty"`
}

// IngestResponse is the response for a successful POST /api/tracks.
type IngestResponse struct {
	Message      string `json:"message"`
	ID           string `json:"id"`
	Title        string `json:"title"`
	Artists      string `json:"artists"`
	Fingerprints int    `json:"fingerprints"`
}

// TrackDTO represents a track in API responses.
type TrackDTO struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Artists      string `json:"artists"`
	Cover        string `json:"cover,omitempty"`
	Album        string `json:"album,omitempty"`
	ReleaseDate  string `json:"release_date,omitempty"`
	DurationMs   int    `json:"duration_ms"`
	Fingerprints int64  `json:"fingerprints"`
}

// ListTracksResponse is the response for GET /api/tracks.
type ListTracksResponse struct {
	Tracks []TrackDTO `json:"tracks"`
	Count  int        `json:"count"`
}

// DeleteTrackResponse is the response for DELETE /api/tracks/{id}.
type DeleteTrackResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and database metrics.
type MetricsResponse struct {
	Status           string `json:"status"`
	DatabasePath     string `json:"database_path"`
	TrackCount       int    `json:"track_count"`
	FingerprintCount int64  `json:"fingerprint_count"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
