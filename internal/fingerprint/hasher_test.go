package fingerprint

import (
	"reflect"
	"testing"
)

func TestPackHashRoundTrip(t *testing.T) {
	cases := []struct {
		name                string
		f1, f2, delta       int
		wantF1, wantF2, wantD int
	}{
		{"zeros", 0, 0, 0, 0, 0, 0},
		{"typical", 312, 87, 42, 312, 87, 42},
		{"field maxima", 1023, 1023, 255, 1023, 1023, 255},
		{"freq1 over range clamps", 1500, 10, 5, 1023, 10, 5},
		{"freq2 over range clamps", 10, 4096, 5, 10, 1023, 5},
		{"delta over range clamps", 10, 20, 300, 10, 20, 255},
		{"all over range clamp", 9999, 9999, 9999, 1023, 1023, 255},
		{"negative fields clamp to zero", -3, -1, -10, 0, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := PackHash(tc.f1, tc.f2, tc.delta)
			if !ValidHash(h) {
				t.Fatalf("PackHash(%d, %d, %d) = %#x exceeds 28 bits", tc.f1, tc.f2, tc.delta, h)
			}
			f1, f2, d := UnpackHash(h)
			if f1 != tc.wantF1 || f2 != tc.wantF2 || d != tc.wantD {
				t.Errorf("UnpackHash(PackHash(%d, %d, %d)) = (%d, %d, %d), want (%d, %d, %d)",
					tc.f1, tc.f2, tc.delta, f1, f2, d, tc.wantF1, tc.wantF2, tc.wantD)
			}
		})
	}
}

func TestPackHashLayout(t *testing.T) {
	// MSB-first layout: freq1 | freq2 | delta
	h := PackHash(1, 2, 3)
	want := uint32(1<<18 | 2<<8 | 3)
	if h != want {
		t.Errorf("PackHash(1, 2, 3) = %#x, want %#x", h, want)
	}
}

func TestHashEmptyInput(t *testing.T) {
	h := NewHasher()
	if got := h.Hash(nil); len(got) != 0 {
		t.Errorf("Hash(nil) returned %d fingerprints, want 0", len(got))
	}
	if got := h.Hash([]Landmark{}); len(got) != 0 {
		t.Errorf("Hash(empty) returned %d fingerprints, want 0", len(got))
	}
}

func TestHashDeterminism(t *testing.T) {
	h := NewHasher()
	landmarks := testLandmarks()

	first := h.Hash(landmarks)
	for i := 0; i < 5; i++ {
		again := h.Hash(landmarks)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d produced a different fingerprint set", i+1)
		}
	}
	if len(first) == 0 {
		t.Fatal("expected non-empty fingerprint set")
	}
}

func TestHashInputOrderIrrelevant(t *testing.T) {
	h := NewHasher()
	landmarks := testLandmarks()

	reversed := make([]Landmark, len(landmarks))
	for i, lm := range landmarks {
		reversed[len(landmarks)-1-i] = lm
	}

	if !reflect.DeepEqual(h.Hash(landmarks), h.Hash(reversed)) {
		t.Error("fingerprints depend on input landmark order")
	}
}

func TestHashFanOutBound(t *testing.T) {
	h := NewHasher()
	h.FanOut = 3

	// 12 landmarks packed into one second: every anchor has far more
	// candidates in the window than the fan-out allows.
	var landmarks []Landmark
	for i := 0; i < 12; i++ {
		landmarks = append(landmarks, Landmark{FreqBin: 100 + i, Time: float64(i) * 0.08})
	}

	perAnchor := map[float64]int{}
	for _, fp := range h.Hash(landmarks) {
		perAnchor[fp.AnchorTime]++
	}
	for anchor, n := range perAnchor {
		if n > h.FanOut {
			t.Errorf("anchor at %.2fs emitted %d hashes, fan-out limit is %d", anchor, n, h.FanOut)
		}
	}
}

func TestHashTimeWindowBound(t *testing.T) {
	h := NewHasher()
	h.FanOut = 50 // large enough that only the window limits pairing

	// Landmarks spread over 20s; pairs beyond MaxTimeDelta must not appear.
	var landmarks []Landmark
	for i := 0; i < 20; i++ {
		landmarks = append(landmarks, Landmark{FreqBin: 10 + i, Time: float64(i)})
	}

	maxUnits := int(h.MaxTimeDelta/h.TimeUnit + 0.5)
	for _, fp := range h.Hash(landmarks) {
		_, _, delta := UnpackHash(fp.Hash)
		if delta > maxUnits && delta != MaxDeltaUnits {
			t.Errorf("hash %#x has delta %d units, beyond the %d-unit window", fp.Hash, delta, maxUnits)
		}
	}
}

func TestHashCoalescesDuplicatePairs(t *testing.T) {
	h := NewHasher()

	// Two targets in the same frame unit at the same frequency produce the
	// same (hash, anchor time) pair; only one survives.
	landmarks := []Landmark{
		{FreqBin: 100, Time: 0.0},
		{FreqBin: 200, Time: 1.0},
		{FreqBin: 200, Time: 1.001},
	}

	fps := h.Hash(landmarks)
	seen := map[Fingerprint]int{}
	for _, fp := range fps {
		seen[fp]++
		if seen[fp] > 1 {
			t.Fatalf("duplicate fingerprint emitted: %+v", fp)
		}
	}
}

func TestHashAnchorTimeIsAnchors(t *testing.T) {
	h := NewHasher()
	landmarks := []Landmark{
		{FreqBin: 5, Time: 1.5},
		{FreqBin: 6, Time: 2.5},
	}

	fps := h.Hash(landmarks)
	if len(fps) != 1 {
		t.Fatalf("got %d fingerprints, want 1", len(fps))
	}
	if fps[0].AnchorTime != 1.5 {
		t.Errorf("anchor time = %v, want the anchor's own time 1.5", fps[0].AnchorTime)
	}
	f1, f2, delta := UnpackHash(fps[0].Hash)
	if f1 != 5 || f2 != 6 {
		t.Errorf("unpacked bins (%d, %d), want (5, 6)", f1, f2)
	}
	if want := 50; delta != want { // 1.0s at 20ms per unit
		t.Errorf("unpacked delta = %d units, want %d", delta, want)
	}
}

// testLandmarks returns a fixed constellation wide enough to exercise sorting,
// fan-out and the pairing window together.
func testLandmarks() []Landmark {
	var landmarks []Landmark
	for i := 0; i < 30; i++ {
		landmarks = append(landmarks, Landmark{
			FreqBin:   (i*37 + 11) % 900,
			Time:      float64(i) * 0.35,
			Magnitude: 40 + float64(i%7),
		})
	}
	return landmarks
}

func BenchmarkHash(b *testing.B) {
	h := NewHasher()
	var landmarks []Landmark
	for i := 0; i < 2000; i++ {
		landmarks = append(landmarks, Landmark{FreqBin: (i * 13) % 1024, Time: float64(i) * 0.05})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Hash(landmarks)
	}
}
