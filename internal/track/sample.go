package track

import (
	"sort"
	"time"

	"backend-railjourney/internal/shared/geo"
)

// Fix is a raw reading delivered by the location source, before filtering.
type Fix struct {
	RecordedAt          time.Time `json:"recorded_at"`
	Lat                 float64   `json:"lat"`
	Lng                 float64   `json:"lng"`
	AltitudeM           float64   `json:"altitude_m"`
	HorizontalAccuracyM float64   `json:"horizontal_accuracy_m"`
	VerticalAccuracyM   float64   `json:"vertical_accuracy_m"`
	SpeedMps            float64   `json:"speed_mps"`
	CourseDeg           float64   `json:"course_deg"`
}

// Normalize maps the source's "unknown" markers (negative speed or course) to 0.
func (f Fix) Normalize() Fix {
	if f.SpeedMps < 0 {
		f.SpeedMps = 0
	}
	if f.CourseDeg < 0 {
		f.CourseDeg = 0
	}
	return f
}

func (f Fix) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: f.Lat, Lng: f.Lng}
}

// Sample is an accepted fix appended to a session. Samples are immutable once stored.
type Sample struct {
	ID                  int64     `json:"id"`
	SessionID           string    `json:"session_id"`
	RecordedAt          time.Time `json:"recorded_at"`
	Lat                 float64   `json:"lat"`
	Lng                 float64   `json:"lng"`
	AltitudeM           float64   `json:"altitude_m"`
	HorizontalAccuracyM float64   `json:"horizontal_accuracy_m"`
	VerticalAccuracyM   float64   `json:"vertical_accuracy_m"`
	SpeedMps            float64   `json:"speed_mps"`
	CourseDeg           float64   `json:"course_deg"`
	CreatedAt           time.Time `json:"created_at"`
}

// NewSample builds a sample from a normalized copy of fix.
func NewSample(sessionID string, fix Fix) Sample {
	fix = fix.Normalize()
	return Sample{
		SessionID:           sessionID,
		RecordedAt:          fix.RecordedAt,
		Lat:                 fix.Lat,
		Lng:                 fix.Lng,
		AltitudeM:           fix.AltitudeM,
		HorizontalAccuracyM: fix.HorizontalAccuracyM,
		VerticalAccuracyM:   fix.VerticalAccuracyM,
		SpeedMps:            fix.SpeedMps,
		CourseDeg:           fix.CourseDeg,
	}
}

func (s Sample) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: s.Lat, Lng: s.Lng}
}

// SortByTime returns a copy of samples ordered by timestamp. Samples sharing a
// timestamp keep their arrival order.
func SortByTime(samples []Sample) []Sample {
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RecordedAt.Before(sorted[j].RecordedAt)
	})
	return sorted
}

// Coordinates projects samples onto their positions.
func Coordinates(samples []Sample) []geo.Coordinate {
	out := make([]geo.Coordinate, len(samples))
	for i, s := range samples {
		out[i] = s.Coordinate()
	}
	return out
}
