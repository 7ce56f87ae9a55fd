// Package playback maps a virtual animation clock onto a finished session and
// produces interpolated positions. Live animation and video export share it.
package playback

import (
	"errors"
	"sort"
	"time"

	"backend-railjourney/internal/shared/geo"
	"backend-railjourney/internal/track"
)

const DefaultDuration = 30 * time.Second

var ErrNoSamples = errors.New("no samples to play back")

// Position is the state of the replay at one instant of the playback clock.
type Position struct {
	Coordinate geo.Coordinate   `json:"coordinate"`
	Traveled   []geo.Coordinate `json:"traveled"`
	MappedTime time.Time        `json:"mapped_time"`
	Index      int              `json:"index"` // last sample at or before MappedTime
}

// PositionAt maps offset t of a playback clock lasting duration onto the
// sorted samples. duration <= 0 uses DefaultDuration.
func PositionAt(sorted []track.Sample, t, duration time.Duration) (Position, error) {
	if len(sorted) == 0 {
		return Position{}, ErrNoSamples
	}
	if duration <= 0 {
		duration = DefaultDuration
	}

	first := sorted[0]
	last := sorted[len(sorted)-1]

	if t <= 0 {
		return Position{
			Coordinate: first.Coordinate(),
			Traveled:   []geo.Coordinate{},
			MappedTime: first.RecordedAt,
		}, nil
	}
	if t >= duration || len(sorted) == 1 {
		return Position{
			Coordinate: last.Coordinate(),
			Traveled:   track.Coordinates(sorted),
			MappedTime: last.RecordedAt,
			Index:      len(sorted) - 1,
		}, nil
	}

	span := last.RecordedAt.Sub(first.RecordedAt)
	mapped := first.RecordedAt.Add(time.Duration(float64(span) * (float64(t) / float64(duration))))

	// b is the first sample strictly after mapped; a precedes it.
	b := sort.Search(len(sorted), func(i int) bool {
		return sorted[i].RecordedAt.After(mapped)
	})
	if b >= len(sorted) {
		return Position{
			Coordinate: last.Coordinate(),
			Traveled:   track.Coordinates(sorted),
			MappedTime: last.RecordedAt,
			Index:      len(sorted) - 1,
		}, nil
	}
	a := b - 1
	if a < 0 {
		a = 0
	}

	frac := 0.0
	if gap := sorted[b].RecordedAt.Sub(sorted[a].RecordedAt); gap > 0 {
		frac = float64(mapped.Sub(sorted[a].RecordedAt)) / float64(gap)
	}
	point := geo.Lerp(sorted[a].Coordinate(), sorted[b].Coordinate(), frac)

	traveled := make([]geo.Coordinate, 0, a+2)
	traveled = append(traveled, track.Coordinates(sorted[:a+1])...)
	traveled = append(traveled, point)

	return Position{
		Coordinate: point,
		Traveled:   traveled,
		MappedTime: mapped,
		Index:      a,
	}, nil
}
