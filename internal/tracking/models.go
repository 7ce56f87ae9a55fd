package tracking

import (
	"time"

	"backend-railjourney/internal/filter"
	"backend-railjourney/internal/station"
	"backend-railjourney/internal/track"
)

type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
)

const (
	// ReasonPaused marks fixes dropped because the session is paused.
	ReasonPaused filter.Reason = "paused"
	// ReasonOutOfOrder marks fixes older than the last accepted sample.
	ReasonOutOfOrder filter.Reason = "out_of_order"
)

type Session struct {
	ID                       string     `json:"id"`
	Name                     string     `json:"name"`
	StartedAt                time.Time  `json:"started_at"`
	EndedAt                  *time.Time `json:"ended_at,omitempty"`
	IntervalSec              int        `json:"interval_sec"`
	IsActive                 bool       `json:"is_active"`
	TotalDistanceM           float64    `json:"total_distance_m"`
	AverageSpeedMps          float64    `json:"average_speed_mps"`
	StationAnalysisCompleted bool       `json:"station_analysis_completed"`
	StationAnalysisAt        *time.Time `json:"station_analysis_at,omitempty"`
}

// Finalized reports whether the session has been stopped.
func (s Session) Finalized() bool {
	return !s.IsActive && s.EndedAt != nil
}

// FixResult is the outcome of one submitted fix. Sample is set only when the
// fix was appended.
type FixResult struct {
	Accepted bool          `json:"accepted"`
	Reason   filter.Reason `json:"reason"`
	Sample   *track.Sample `json:"sample,omitempty"`
}

// Status is a snapshot of the session currently held by the controller.
type Status struct {
	State         State    `json:"state"`
	Session       *Session `json:"session,omitempty"`
	AcceptedCount int      `json:"accepted_count"`
	LiveDistanceM float64  `json:"live_distance_m"`
}

type Summary struct {
	Session    Session     `json:"session"`
	Stats      track.Stats `json:"stats"`
	PassEvents int         `json:"pass_events"`
}

type StartInput struct {
	Name        string `json:"name"`
	IntervalSec int    `json:"interval_sec"`
}

// Analysis is the stored result of a detection and statistics pass.
type Analysis struct {
	Session Session             `json:"session"`
	Events  []station.PassEvent `json:"events"`
}
