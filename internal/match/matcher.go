// Package match scores candidate tracks against a query fingerprint set by
// temporal coherence: a true match aligns at one dominant time offset, while
// spurious hash collisions scatter across many offsets.
package match

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/sonique-audio/sonique/internal/catalog"
	"github.com/sonique-audio/sonique/internal/fingerprint"
	"github.com/sonique-audio/sonique/internal/index"
)

// Postings supplies the committed fingerprint postings to score against.
type Postings interface {
	LookupAll(ctx context.Context) ([]index.Entry, error)
}

// Resolver turns a track ID into its display metadata. Candidates whose
// metadata cannot be resolved are dropped from results.
type Resolver interface {
	Resolve(ctx context.Context, trackID string) (*catalog.Track, error)
}

// Logger is the subset of logging the matcher needs.
type Logger interface {
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Candidate is one scored track, decorated with catalog metadata. Support is
// the size of the dominant offset bucket; Confidence normalizes it by the
// query fingerprint count, as a percentage.
type Candidate struct {
	TrackID    string
	Track      *catalog.Track
	Offset     int // dominant (reference − query) offset bucket, seconds
	Support    int
	Confidence float64
}

// Matcher ranks catalog tracks against query fingerprint sets.
type Matcher struct {
	postings Postings
	resolver Resolver
	log      Logger

	// Workers bounds concurrent per-track scoring. Scorers share only the
	// read-only query mapping, so any positive value is safe.
	Workers int
}

func New(postings Postings, resolver Resolver, log Logger) *Matcher {
	return &Matcher{
		postings: postings,
		resolver: resolver,
		log:      log,
		Workers:  runtime.GOMAXPROCS(0),
	}
}

// Match scores every candidate track and returns them in descending
// confidence order. An empty result with a nil error means no match (or an
// empty query/catalog); a non-nil error always means the postings store
// failed, never "not found".
func (m *Matcher) Match(ctx context.Context, query []fingerprint.Fingerprint) ([]Candidate, error) {
	if len(query) == 0 {
		return nil, nil
	}

	// Duplicate hashes within one query keep all their anchor times rather
	// than last-wins: repeated landmark patterns then vote once per
	// occurrence instead of collapsing.
	queryTimes := make(map[uint32][]float64, len(query))
	for _, fp := range query {
		queryTimes[fp.Hash] = append(queryTimes[fp.Hash], fp.AnchorTime)
	}

	entries, err := m.postings.LookupAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieving postings: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	byTrack := make(map[string][]index.Entry)
	for _, e := range entries {
		if _, ok := queryTimes[e.Hash]; ok {
			byTrack[e.TrackID] = append(byTrack[e.TrackID], e)
		}
	}

	scored := m.scoreAll(ctx, queryTimes, len(query), byTrack)

	results := make([]Candidate, 0, len(scored))
	for _, cand := range scored {
		track, err := m.resolver.Resolve(ctx, cand.TrackID)
		if err != nil {
			// A candidate without displayable metadata is not reported.
			m.log.Warnf("dropping candidate %s: %v", cand.TrackID, err)
			continue
		}
		cand.Track = track
		results = append(results, cand)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Confidence > results[j].Confidence })
	return results, nil
}

// scoreAll fans candidate tracks out over a bounded worker pool. Workers only
// read the shared query mapping; a canceled context abandons unscored tracks.
func (m *Matcher) scoreAll(ctx context.Context, queryTimes map[uint32][]float64, querySize int, byTrack map[string][]index.Entry) []Candidate {
	if len(byTrack) == 0 {
		return nil
	}

	workers := m.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(byTrack) {
		workers = len(byTrack)
	}

	jobs := make(chan string)
	results := make(chan Candidate, len(byTrack))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for trackID := range jobs {
				if ctx.Err() != nil {
					continue
				}
				if cand, ok := scoreTrack(queryTimes, querySize, trackID, byTrack[trackID]); ok {
					results <- cand
				}
			}
		}()
	}

	for trackID := range byTrack {
		jobs <- trackID
	}
	close(jobs)
	wg.Wait()
	close(results)

	scored := make([]Candidate, 0, len(byTrack))
	for cand := range results {
		scored = append(scored, cand)
	}
	return scored
}

// scoreTrack builds the offset histogram for one track. Each matching
// (posting, query time) pair votes for round(refTime − queryTime); the
// dominant bucket's size is the track's support. Ties keep the bucket seen
// first — a true match dominates by a wide margin, so near-ties only occur
// between noise buckets.
func scoreTrack(queryTimes map[uint32][]float64, querySize int, trackID string, entries []index.Entry) (Candidate, bool) {
	histogram := make(map[int]int)
	var order []int

	for _, e := range entries {
		for _, qt := range queryTimes[e.Hash] {
			bucket := int(math.Round(e.AnchorTime - qt))
			if _, seen := histogram[bucket]; !seen {
				order = append(order, bucket)
			}
			histogram[bucket]++
		}
	}

	bestBucket, bestCount := 0, 0
	for _, b := range order {
		if histogram[b] > bestCount {
			bestCount = histogram[b]
			bestBucket = b
		}
	}
	if bestCount == 0 {
		return Candidate{}, false
	}

	confidence := float64(bestCount) / float64(querySize) * 100
	if confidence > 100 {
		// Multimap voting can push support past the query size when the
		// reference repeats a pattern; the score is capped, not an error.
		confidence = 100
	}

	return Candidate{
		TrackID:    trackID,
		Offset:     bestBucket,
		Support:    bestCount,
		Confidence: confidence,
	}, true
}
