// Package filter decides which raw fixes are trustworthy enough to keep.
package filter

import (
	"math"

	"backend-railjourney/internal/shared/geo"
	"backend-railjourney/internal/track"
)

const (
	MinThresholdM   = 1.0
	MaxThresholdM   = 200.0
	MinMinDistanceM = 0.0
	MaxMinDistanceM = 100.0

	DefaultThresholdM   = 50.0
	DefaultMinDistanceM = 5.0
)

type Reason string

const (
	ReasonAccepted Reason = "accepted"
	ReasonAccuracy Reason = "accuracy"
	ReasonDistance Reason = "distance"
)

type Decision struct {
	Accepted bool   `json:"accepted"`
	Reason   Reason `json:"reason"`
}

// Accept reports whether fix may be appended after last (nil when nothing was
// accepted yet). Accuracy equal to thresholdM and a distance equal to
// minDistanceM are both accepted. NaN in any input rejects the fix.
func Accept(fix track.Fix, thresholdM, minDistanceM float64, last *track.Sample) Decision {
	acc := fix.HorizontalAccuracyM
	if !(acc >= 0 && acc <= thresholdM) {
		return Decision{Reason: ReasonAccuracy}
	}
	if last != nil {
		if d := geo.DistanceM(last.Coordinate(), fix.Coordinate()); !(d >= minDistanceM) {
			return Decision{Reason: ReasonDistance}
		}
	}
	return Decision{Accepted: true, Reason: ReasonAccepted}
}

// Settings holds the filter configuration. Writes saturate to the supported
// range instead of failing.
type Settings struct {
	thresholdM   float64
	minDistanceM float64
}

func NewSettings(thresholdM, minDistanceM float64) Settings {
	var s Settings
	s.SetThreshold(thresholdM)
	s.SetMinDistance(minDistanceM)
	return s
}

func DefaultSettings() Settings {
	return NewSettings(DefaultThresholdM, DefaultMinDistanceM)
}

func (s *Settings) SetThreshold(m float64) {
	s.thresholdM = clamp(m, MinThresholdM, MaxThresholdM)
}

func (s *Settings) SetMinDistance(m float64) {
	s.minDistanceM = clamp(m, MinMinDistanceM, MaxMinDistanceM)
}

func (s Settings) ThresholdM() float64 { return s.thresholdM }

func (s Settings) MinDistanceM() float64 { return s.minDistanceM }

func (s Settings) Accept(fix track.Fix, last *track.Sample) Decision {
	return Accept(fix, s.thresholdM, s.minDistanceM, last)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
