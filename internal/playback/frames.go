package playback

import (
	"errors"
	"fmt"
	"math"
	"time"

	"backend-railjourney/internal/station"
	"backend-railjourney/internal/track"
)

const (
	DefaultFrameRate = 30.0
	MaxFrameRate     = 120.0
	// MaxFrameCount is one hour of output at MaxFrameRate.
	MaxFrameCount = 432000
)

var (
	ErrFrameOutOfRange = errors.New("frame index out of range")
	ErrInvalidSchedule = errors.New("invalid playback schedule")
)

// Schedule drives the playback clock at a fixed frame rate.
type Schedule struct {
	Duration  time.Duration
	FrameRate float64
}

func NewSchedule(duration time.Duration, frameRate float64) Schedule {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if !(frameRate > 0) {
		frameRate = DefaultFrameRate
	}
	return Schedule{Duration: duration, FrameRate: frameRate}
}

// Validate rejects schedules that cannot be rendered within the frame limits.
func (s Schedule) Validate() error {
	if !(s.FrameRate > 0 && s.FrameRate <= MaxFrameRate) {
		return fmt.Errorf("%w: frame rate %v outside (0, %v]", ErrInvalidSchedule, s.FrameRate, MaxFrameRate)
	}
	if s.Duration <= 0 {
		return fmt.Errorf("%w: duration %s must be positive", ErrInvalidSchedule, s.Duration)
	}
	if n := s.frames(); n > MaxFrameCount {
		return fmt.Errorf("%w: %.0f frames exceeds %d", ErrInvalidSchedule, n, MaxFrameCount)
	}
	return nil
}

func (s Schedule) frames() float64 {
	return math.Round(s.Duration.Seconds() * s.FrameRate)
}

// FrameCount is duration x frame rate, saturated to [0, MaxFrameCount].
func (s Schedule) FrameCount() int {
	n := s.frames()
	switch {
	case !(n > 0):
		return 0
	case n > MaxFrameCount:
		return MaxFrameCount
	}
	return int(n)
}

func (s Schedule) OffsetOf(i int) time.Duration {
	return time.Duration(float64(i) / s.FrameRate * float64(time.Second))
}

// Frame is what the video exporter needs to draw one output frame.
type Frame struct {
	Index    int                 `json:"index"`
	Offset   time.Duration       `json:"offset_ns"`
	Position Position            `json:"position"`
	Active   []station.PassEvent `json:"active_passes"`
}

// Frame computes frame i for sorted samples and their pass events.
func (s Schedule) Frame(sorted []track.Sample, events []station.PassEvent, i int) (Frame, error) {
	if i < 0 || i >= s.FrameCount() {
		return Frame{}, ErrFrameOutOfRange
	}
	offset := s.OffsetOf(i)
	pos, err := PositionAt(sorted, offset, s.Duration)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Index:    i,
		Offset:   offset,
		Position: pos,
		Active:   ActiveEvents(sorted, events, pos.MappedTime),
	}, nil
}

// ActiveEvents filters events whose episode spans at, keeping display order.
func ActiveEvents(sorted []track.Sample, events []station.PassEvent, at time.Time) []station.PassEvent {
	active := []station.PassEvent{}
	for _, ev := range events {
		if ev.ActiveAt(sorted, at) {
			active = append(active, ev)
		}
	}
	return active
}
