package series

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestChangeOverNeedsTwoSamples(t *testing.T) {
	s := New(DefaultRetention)
	_, ok := s.ChangeOver(t0, time.Minute)
	assert.False(t, ok)

	s.Append(t0, 100)
	_, ok = s.ChangeOver(t0.Add(time.Hour), time.Minute)
	assert.False(t, ok)
}

func TestChangeOverOneMinute(t *testing.T) {
	s := New(DefaultRetention)
	s.Append(t0, 100)
	s.Append(t0.Add(time.Minute), 106)

	change, ok := s.ChangeOver(t0.Add(time.Minute), time.Minute)
	require.True(t, ok)
	assert.InDelta(t, 6.0, change, 1e-9)
}

func TestChangeOverOpenInterestFiveMinutes(t *testing.T) {
	s := New(DefaultRetention)
	s.Append(t0, 1000)
	s.Append(t0.Add(5*time.Minute), 1050)

	change, ok := s.ChangeOver(t0.Add(5*time.Minute), 5*time.Minute)
	require.True(t, ok)
	assert.InDelta(t, 5.0, change, 1e-9)
}

func TestChangeOverPicksFreshestQualifyingSample(t *testing.T) {
	s := New(DefaultRetention)
	s.Append(t0, 50)
	s.Append(t0.Add(30*time.Second), 80)
	s.Append(t0.Add(90*time.Second), 90)
	s.Append(t0.Add(2*time.Minute), 100)

	// horizon target is t0+60s, the freshest sample at or before it is t0+30s
	change, ok := s.ChangeOver(t0.Add(2*time.Minute), 90*time.Second)
	require.True(t, ok)
	assert.InDelta(t, 25.0, change, 1e-9)
}

func TestChangeOverInsufficientHistory(t *testing.T) {
	s := New(DefaultRetention)
	s.Append(t0, 100)
	s.Append(t0.Add(2*time.Minute), 110)

	_, ok := s.ChangeOver(t0.Add(2*time.Minute), 5*time.Minute)
	assert.False(t, ok)
}

func TestChangeOverZeroAndNaNGuards(t *testing.T) {
	s := New(DefaultRetention)
	s.Append(t0, 0)
	s.Append(t0.Add(time.Minute), 10)
	_, ok := s.ChangeOver(t0.Add(time.Minute), time.Minute)
	assert.False(t, ok, "zero reference value")

	s = New(DefaultRetention)
	s.Append(t0, 10)
	s.Append(t0.Add(time.Minute), math.NaN())
	_, ok = s.ChangeOver(t0.Add(time.Minute), time.Minute)
	assert.False(t, ok, "NaN latest value")
}

func TestAppendPrunesOutsideRetention(t *testing.T) {
	s := New(DefaultRetention)
	for i := 0; i <= 30; i++ {
		s.Append(t0.Add(time.Duration(i)*time.Minute), float64(i))
	}

	latest, ok := s.Latest()
	require.True(t, ok)
	cutoff := latest.At.Add(-DefaultRetention)

	samples := s.Samples()
	require.Len(t, samples, 17)
	for i, sample := range samples {
		assert.False(t, sample.At.Before(cutoff), "sample %d older than retention", i)
		if i > 0 {
			assert.True(t, samples[i-1].At.Before(sample.At), "samples out of order at %d", i)
		}
	}
}

func TestNewFallsBackToDefaultRetention(t *testing.T) {
	s := New(0)
	s.Append(t0, 1)
	s.Append(t0.Add(DefaultRetention), 2)
	assert.Equal(t, 2, s.Len())

	s.Append(t0.Add(DefaultRetention+time.Second), 3)
	assert.Equal(t, 2, s.Len())
}
