package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sonique-audio/sonique/internal/catalog"
	"github.com/sonique-audio/sonique/internal/match"
	"github.com/sonique-audio/sonique/internal/service"
	"github.com/sonique-audio/sonique/pkg/logger"
)

// Server encapsulates the HTTP server and its dependencies.
type Server struct {
	service *service.Service
	config  *ServerConfig
	log     *logger.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           int
	DBPath         string
	AllowedOrigins []string
}

func NewServer(svc *service.Service, config *ServerConfig) *Server {
	return &Server{
		service: svc,
		config:  config,
		log:     logger.GetLogger(),
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "Sonique API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":            "GET /health",
			"metrics":           "GET /api/health/metrics",
			"tracks":            "GET /api/tracks",
			"ingestTrack":       "POST /api/tracks",
			"getTrack":          "GET /api/tracks/{id}",
			"deleteTrack":       "DELETE /api/tracks/{id}",
			"match":             "POST /api/match",
			"matchFingerprints": "POST /api/match/fingerprints",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.ListTracks(r.Context())
	if err != nil {
		s.log.Errorf("Failed to get track count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}
	postings, err := s.service.IndexSize(r.Context())
	if err != nil {
		s.log.Errorf("Failed to get index size: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:           "healthy",
		DatabasePath:     s.config.DBPath,
		TrackCount:       len(tracks),
		FingerprintCount: postings,
	})
}

// handleTracks handles GET and POST on /api/tracks
func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTracks(w, r)
	case http.MethodPost:
		s.handleIngestTrack(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleListTracks handles GET /api/tracks
func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.ListTracks(r.Context())
	if err != nil {
		s.log.Errorf("Failed to list tracks: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve tracks")
		return
	}

	trackDTOs := make([]TrackDTO, len(tracks))
	for i, track := range tracks {
		postings, err := s.service.TrackPostings(r.Context(), track.ID)
		if err != nil {
			s.log.Warnf("Failed to count postings for track %s: %v", track.ID, err)
		}
		trackDTOs[i] = trackToDTO(track, postings)
	}

	s.respondJSON(w, http.StatusOK, ListTracksResponse{
		Tracks: trackDTOs,
		Count:  len(trackDTOs),
	})
}

// handleIngestTrack handles POST /api/tracks
func (s *Server) handleIngestTrack(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	meta := catalog.Metadata{
		Title:       req.Track.Title,
		Artists:     req.Track.Artists,
		Cover:       req.Track.Cover,
		Album:       req.Track.Album,
		ReleaseDate: req.Track.ReleaseDate,
		DurationMs:  req.Track.DurationMs,
	}

	trackID, count, err := s.service.IngestTrack(r.Context(), meta, req.Landmarks)
	if err != nil {
		if errors.Is(err, service.ErrTrackExists) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.log.Errorf("Ingestion failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to ingest track")
		return
	}

	s.respondJSON(w, http.StatusCreated, IngestResponse{
		Message:      "Track ingested successfully",
		ID:           trackID,
		Title:        req.Track.Title,
		Artists:      req.Track.Artists,
		Fingerprints: count,
	})
}

// handleTrack handles GET and DELETE on /api/tracks/{id}
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	trackID := strings.TrimPrefix(r.URL.Path, "/api/tracks/")
	if trackID == "" || strings.Contains(trackID, "/") {
		s.respondError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetTrack(w, r, trackID)
	case http.MethodDelete:
		s.handleDeleteTrack(w, r, trackID)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleGetTrack handles GET /api/tracks/{id}
func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request, trackID string) {
	track, err := s.service.GetTrack(r.Context(), trackID)
	if err != nil {
		if errors.Is(err, catalog.ErrTrackNotFound) {
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("Track %s not found", trackID))
			return
		}
		s.log.Errorf("Failed to get track %s: %v", trackID, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve track")
		return
	}

	postings, err := s.service.TrackPostings(r.Context(), trackID)
	if err != nil {
		s.log.Warnf("Failed to count postings for track %s: %v", trackID, err)
	}

	s.respondJSON(w, http.StatusOK, trackToDTO(*track, postings))
}

// handleDeleteTrack handles DELETE /api/tracks/{id}
func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request, trackID string) {
	track, err := s.service.GetTrack(r.Context(), trackID)
	if err != nil {
		if errors.Is(err, catalog.ErrTrackNotFound) {
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("Track %s not found", trackID))
			return
		}
		s.log.Errorf("Failed to get track %s: %v", trackID, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve track")
		return
	}

	if err := s.service.DeleteTrack(r.Context(), trackID); err != nil {
		s.log.Errorf("Failed to delete track %s: %v", trackID, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete track")
		return
	}

	s.log.Infof("Deleted track: %s by %s (ID: %s)", track.Title, track.Artists, trackID)
	s.respondJSON(w, http.StatusOK, DeleteTrackResponse{
		Message: "Track deleted successfully",
		ID:      trackID,
	})
}

// handleMatch handles POST /api/match
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	candidates, err := s.service.MatchLandmarks(r.Context(), req.Landmarks)
	if err != nil {
		s.log.Errorf("Match failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to match audio")
		return
	}

	s.respondMatches(w, r, candidates)
}

// handleMatchFingerprints handles POST /api/match/fingerprints
func (s *Server) handleMatchFingerprints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req MatchFingerprintsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Fingerprints) > FingerprintWarningThreshold {
		s.log.Warnf("Large fingerprint query: %d entries", len(req.Fingerprints))
	}

	candidates, err := s.service.MatchFingerprints(r.Context(), req.Fingerprints)
	if err != nil {
		s.log.Errorf("Fingerprint match failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to match fingerprints")
		return
	}

	s.respondMatches(w, r, candidates)
}

// respondMatches writes the ranked candidate list. When it is empty, the
// message tells an empty catalog apart from a genuine miss.
func (s *Server) respondMatches(w http.ResponseWriter, r *http.Request, candidates []match.Candidate) {
	matches := make([]MatchDTO, len(candidates))
	for i, cand := range candidates {
		matches[i] = MatchDTO{
			TrackID:     cand.TrackID,
			Title:       cand.Track.Title,
			Artists:     cand.Track.Artists,
			Cover:       cand.Track.Cover,
			Album:       cand.Track.Album,
			ReleaseDate: cand.Track.ReleaseDate,
			DurationMs:  cand.Track.DurationMs,
			Offset:      cand.Offset,
			Support:     cand.Support,
			Confidence:  cand.Confidence,
		}
	}

	resp := MatchResponse{Matches: matches, Count: len(matches)}
	if len(matches) == 0 {
		size, err := s.service.IndexSize(r.Context())
		switch {
		case err != nil:
			s.log.Warnf("Failed to check index size: %v", err)
			resp.Message = "no match found"
		case size == 0:
			resp.Message = "no catalog data"
		default:
			resp.Message = "no match found"
		}
	}

	s.respondJSON(w, http.StatusOK, resp)
}

func trackToDTO(track catalog.Track, postings int64) TrackDTO {
	return TrackDTO{
		ID:           track.ID,
		Title:        track.Title,
		Artists:      track.Artists,
		Cover:        track.Cover,
		Album:        track.Album,
		ReleaseDate:  track.ReleaseDate,
		DurationMs:   track.DurationMs,
		Fingerprints: postings,
	}
}
