package series

import (
	"math"
	"time"
)

// DefaultRetention bounds how far back a series keeps samples.
const DefaultRetention = 16 * time.Minute

// Sample is a single observation. Samples are never mutated once appended.
type Sample struct {
	At    time.Time
	Value float64
}

// Series keeps samples in ascending time order and drops the ones that fall
// outside the retention window of the latest append.
type Series struct {
	retention time.Duration
	samples   []Sample
}

// New builds an empty series. A non-positive retention falls back to DefaultRetention.
func New(retention time.Duration) *Series {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Series{retention: retention}
}

// Append adds a sample at the tail and prunes the head. Callers must append in
// non-decreasing time order.
func (s *Series) Append(at time.Time, value float64) {
	s.samples = append(s.samples, Sample{At: at, Value: value})

	cutoff := at.Add(-s.retention)
	for len(s.samples) > 0 && s.samples[0].At.Before(cutoff) {
		s.samples = s.samples[1:]
	}
}

// Len reports the number of retained samples.
func (s *Series) Len() int {
	return len(s.samples)
}

// Latest returns the newest sample.
func (s *Series) Latest() (Sample, bool) {
	if len(s.samples) == 0 {
		return Sample{}, false
	}
	return s.samples[len(s.samples)-1], true
}

// Samples returns a copy of the retained samples, oldest first.
func (s *Series) Samples() []Sample {
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// ChangeOver returns the percentage change between the newest sample and the
// freshest earlier sample taken at or before now-lookback. The boolean is false
// when the history is too short, the reference value is zero or the newest
// value is not a number.
func (s *Series) ChangeOver(now time.Time, lookback time.Duration) (float64, bool) {
	n := len(s.samples)
	if n < 2 {
		return 0, false
	}

	latest := s.samples[n-1].Value
	if math.IsNaN(latest) {
		return 0, false
	}

	target := now.Add(-lookback)
	for i := n - 2; i >= 0; i-- {
		if s.samples[i].At.After(target) {
			continue
		}
		old := s.samples[i].Value
		if old == 0 || math.IsNaN(old) {
			return 0, false
		}
		return (latest - old) / old * 100, true
	}
	return 0, false
}
