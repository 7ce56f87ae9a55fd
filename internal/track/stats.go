package track

import (
	"sort"
	"time"

	"backend-railjourney/internal/shared/geo"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats is the derived summary of a sample stream.
type Stats struct {
	PointCount      int     `json:"point_count"`
	DistanceM       float64 `json:"distance_m"`
	DurationSec     float64 `json:"duration_sec"`
	AverageSpeedMps float64 `json:"average_speed_mps"`
	MaxSpeedMps     float64 `json:"max_speed_mps"`
	MedianSpeedMps  float64 `json:"median_speed_mps"`
}

// Distance sums the great-circle legs between consecutive timestamp-sorted samples.
func Distance(samples []Sample) float64 {
	if len(samples) < 2 {
		return 0
	}
	sorted := SortByTime(samples)
	total := 0.0
	for i := 1; i < len(sorted); i++ {
		total += geo.DistanceM(sorted[i-1].Coordinate(), sorted[i].Coordinate())
	}
	return total
}

// AverageSpeed reports totalDistance/elapsedSeconds, or 0 when no time elapsed.
func AverageSpeed(totalDistance, elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	return totalDistance / elapsedSeconds
}

// Elapsed is the span between the earliest and latest sample.
func Elapsed(samples []Sample) time.Duration {
	if len(samples) < 2 {
		return 0
	}
	first, last := samples[0].RecordedAt, samples[0].RecordedAt
	for _, s := range samples[1:] {
		if s.RecordedAt.Before(first) {
			first = s.RecordedAt
		}
		if s.RecordedAt.After(last) {
			last = s.RecordedAt
		}
	}
	return last.Sub(first)
}

// Summarize computes every statistic in one pass over an already-filtered stream.
func Summarize(samples []Sample) Stats {
	st := Stats{PointCount: len(samples)}
	if len(samples) == 0 {
		return st
	}

	st.DistanceM = Distance(samples)
	st.DurationSec = Elapsed(samples).Seconds()
	st.AverageSpeedMps = AverageSpeed(st.DistanceM, st.DurationSec)

	speeds := make([]float64, len(samples))
	for i, s := range samples {
		speeds[i] = s.SpeedMps
	}
	sort.Float64s(speeds)
	st.MaxSpeedMps = floats.Max(speeds)
	st.MedianSpeedMps = stat.Quantile(0.5, stat.Empirical, speeds, nil)
	return st
}

// Accumulator maintains running distance as samples arrive in timestamp order.
// Its total matches Distance over the same samples.
type Accumulator struct {
	last     *Sample
	distance float64
	count    int
}

func (a *Accumulator) Add(s Sample) float64 {
	delta := 0.0
	if a.last != nil {
		delta = geo.DistanceM(a.last.Coordinate(), s.Coordinate())
	}
	a.distance += delta
	a.count++
	a.last = &s
	return delta
}

func (a *Accumulator) DistanceM() float64 { return a.distance }

func (a *Accumulator) Count() int { return a.count }
