package fingerprint

import (
	"math"
	"sort"
)

// ------------------------ TUNABLES (change for experiments) ------------------------
const (
	// Bits allocated to each frequency bin in the packed hash.
	FreqBits = 10

	// Bits allocated to the anchor/target time delta (in frame units).
	DeltaBits = 8

	// MaxFreqBin and MaxDeltaUnits are the saturation points of the packed
	// fields. Values past them clamp rather than error: rare high-frequency or
	// long-delay pairs collapse into the boundary code, trading precision for
	// capacity. Catalog and query paths must clamp identically.
	MaxFreqBin    = 1<<FreqBits - 1  // 1023
	MaxDeltaUnits = 1<<DeltaBits - 1 // 255

	// DefaultFanOut is how many target landmarks each anchor pairs with.
	DefaultFanOut = 7

	// DefaultMaxTimeDelta is the pairing window in seconds. Pairs further
	// apart carry too little alignment information to be worth storing.
	DefaultMaxTimeDelta = 5.0

	// DefaultTimeUnit is the duration of one frame unit in seconds. Deltas
	// are rounded to whole frame units before packing.
	DefaultTimeUnit = 0.020
)

// Landmark is a salient time-frequency peak extracted from an audio signal's
// spectral representation. Landmarks arrive pre-pruned from the extraction
// stage; the hasher never inspects Magnitude.
type Landmark struct {
	FreqBin   int     `json:"freq_bin"`
	Time      float64 `json:"time"` // seconds
	Magnitude float64 `json:"magnitude"`
}

// Fingerprint is one (hash, anchor time) pair, the unit stored in the index
// and matched at query time.
type Fingerprint struct {
	Hash       uint32  `json:"hash"`
	AnchorTime float64 `json:"anchor_time"` // seconds
}

// Hasher converts landmark sets into fingerprint sets. Construct with
// NewHasher; all fields may be tuned before first use, but the same settings
// must be used for ingestion and querying.
type Hasher struct {
	FanOut       int
	MaxTimeDelta float64 // seconds
	TimeUnit     float64 // seconds per frame unit
}

func NewHasher() Hasher {
	return Hasher{
		FanOut:       DefaultFanOut,
		MaxTimeDelta: DefaultMaxTimeDelta,
		TimeUnit:     DefaultTimeUnit,
	}
}

// Hash pairs every landmark (anchor) with up to FanOut later landmarks within
// MaxTimeDelta and emits one packed hash per pair, keyed by the anchor's own
// time. The result is a set: duplicate (hash, anchor time) pairs coalesce.
// Output is sorted by (hash, anchor time) so repeated calls over the same
// landmarks return identical slices.
func (h Hasher) Hash(landmarks []Landmark) []Fingerprint {
	if len(landmarks) == 0 {
		return nil
	}

	sorted := make([]Landmark, len(landmarks))
	copy(sorted, landmarks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	seen := make(map[Fingerprint]struct{}, len(sorted)*h.FanOut)
	out := make([]Fingerprint, 0, len(sorted)*h.FanOut)

	for i := range sorted {
		anchor := sorted[i]
		paired := 0
		for j := i + 1; j < len(sorted) && paired < h.FanOut; j++ {
			delta := sorted[j].Time - anchor.Time
			if delta > h.MaxTimeDelta {
				// sorted by time, so no later target can qualify either
				break
			}
			units := int(math.Round(delta / h.TimeUnit))
			fp := Fingerprint{
				Hash:       PackHash(anchor.FreqBin, sorted[j].FreqBin, units),
				AnchorTime: anchor.Time,
			}
			if _, dup := seen[fp]; !dup {
				seen[fp] = struct{}{}
				out = append(out, fp)
			}
			paired++
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Hash != out[j].Hash {
			return out[i].Hash < out[j].Hash
		}
		return out[i].AnchorTime < out[j].AnchorTime
	})
	return out
}

// PackHash packs (anchor bin, target bin, delta in frame units) into a 28-bit
// code: freq1 in the top 10 bits, freq2 in the middle 10, delta in the low 8.
// Out-of-range fields saturate at their maxima instead of failing; the packed
// layout is a binary contract shared by the ingestion and query paths.
func PackHash(freq1, freq2, delta int) uint32 {
	f1 := uint32(clamp(freq1, MaxFreqBin))
	f2 := uint32(clamp(freq2, MaxFreqBin))
	d := uint32(clamp(delta, MaxDeltaUnits))
	return f1<<(FreqBits+DeltaBits) | f2<<DeltaBits | d
}

// UnpackHash recovers the (clamped) triple a hash was packed from.
func UnpackHash(hash uint32) (freq1, freq2, delta int) {
	freq1 = int(hash >> (FreqBits + DeltaBits) & MaxFreqBin)
	freq2 = int(hash >> DeltaBits & MaxFreqBin)
	delta = int(hash & MaxDeltaUnits)
	return freq1, freq2, delta
}

// ValidHash reports whether hash fits the 28-bit packed layout.
func ValidHash(hash uint32) bool {
	return hash>>(2*FreqBits+DeltaBits) == 0
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
