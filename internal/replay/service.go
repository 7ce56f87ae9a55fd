// Package replay serves animated playback and frame exports of recorded
// sessions.
package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend-railjourney/internal/artifact"
	"backend-railjourney/internal/playback"
	"backend-railjourney/internal/station"
	"backend-railjourney/internal/track"
	"backend-railjourney/internal/tracking"
)

const ExportKind = "video-frames"

var ErrSessionNotFinished = errors.New("session is still recording")

// SessionSource reads recorded sessions; samples come back by timestamp and
// events by display order.
type SessionSource interface {
	Session(ctx context.Context, id string) (tracking.Session, error)
	Samples(ctx context.Context, id string) ([]track.Sample, error)
	PassEvents(ctx context.Context, id string) ([]station.PassEvent, error)
}

type ArtifactStore interface {
	Create(ctx context.Context, sessionID, kind string) (artifact.Artifact, error)
	Get(ctx context.Context, id string) (artifact.Artifact, error)
	ForSession(ctx context.Context, sessionID string) ([]artifact.Artifact, error)
}

type FrameInfo struct {
	SessionID  string  `json:"session_id"`
	DurationMs int64   `json:"duration_ms"`
	FrameRate  float64 `json:"frame_rate"`
	FrameCount int     `json:"frame_count"`
}

type ExportStatus struct {
	Artifact artifact.Artifact   `json:"artifact"`
	Job      *playback.JobStatus `json:"job,omitempty"`
}

type Service struct {
	sessions  SessionSource
	artifacts ArtifactStore
	jobs      *playback.Jobs
	defaults  playback.Schedule
}

func NewService(sessions SessionSource, artifacts ArtifactStore, jobs *playback.Jobs, defaults playback.Schedule) *Service {
	return &Service{sessions: sessions, artifacts: artifacts, jobs: jobs, defaults: defaults}
}

// Schedule fills unset values from the configured defaults.
func (s *Service) Schedule(duration time.Duration, frameRate float64) playback.Schedule {
	if duration <= 0 {
		duration = s.defaults.Duration
	}
	if !(frameRate > 0) {
		frameRate = s.defaults.FrameRate
	}
	return playback.NewSchedule(duration, frameRate)
}

func (s *Service) load(ctx context.Context, id string) ([]track.Sample, []station.PassEvent, error) {
	samples, err := s.sessions.Samples(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	events, err := s.sessions.PassEvents(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return track.SortByTime(samples), events, nil
}

func (s *Service) Position(ctx context.Context, id string, t, duration time.Duration) (playback.Position, error) {
	samples, err := s.sessions.Samples(ctx, id)
	if err != nil {
		return playback.Position{}, err
	}
	return playback.PositionAt(track.SortByTime(samples), t, s.Schedule(duration, 0).Duration)
}

func (s *Service) FrameInfo(ctx context.Context, id string, sched playback.Schedule) (FrameInfo, error) {
	if err := sched.Validate(); err != nil {
		return FrameInfo{}, err
	}
	if _, err := s.sessions.Session(ctx, id); err != nil {
		return FrameInfo{}, err
	}
	return FrameInfo{
		SessionID:  id,
		DurationMs: sched.Duration.Milliseconds(),
		FrameRate:  sched.FrameRate,
		FrameCount: sched.FrameCount(),
	}, nil
}

func (s *Service) Frame(ctx context.Context, id string, sched playback.Schedule, index int) (playback.Frame, error) {
	if err := sched.Validate(); err != nil {
		return playback.Frame{}, err
	}
	samples, events, err := s.load(ctx, id)
	if err != nil {
		return playback.Frame{}, err
	}
	return sched.Frame(samples, events, index)
}

// StartExport registers a pending artifact and renders it in the background.
func (s *Service) StartExport(ctx context.Context, id string, sched playback.Schedule) (ExportStatus, error) {
	if err := sched.Validate(); err != nil {
		return ExportStatus{}, err
	}
	sess, err := s.sessions.Session(ctx, id)
	if err != nil {
		return ExportStatus{}, err
	}
	if !sess.Finalized() {
		return ExportStatus{}, ErrSessionNotFinished
	}
	samples, events, err := s.load(ctx, id)
	if err != nil {
		return ExportStatus{}, err
	}
	if len(samples) == 0 {
		return ExportStatus{}, playback.ErrNoSamples
	}

	art, err := s.artifacts.Create(ctx, id, ExportKind)
	if err != nil {
		return ExportStatus{}, fmt.Errorf("register artifact: %w", err)
	}
	job := s.jobs.Start(playback.Job{
		ID:       art.ID,
		Samples:  samples,
		Events:   events,
		Schedule: sched,
	})
	return ExportStatus{Artifact: art, Job: &job}, nil
}

func (s *Service) CancelExport(id string) error {
	return s.jobs.Cancel(id)
}

// Export reports the stored artifact plus live progress while it renders.
func (s *Service) Export(ctx context.Context, id string) (ExportStatus, error) {
	art, err := s.artifacts.Get(ctx, id)
	if err != nil {
		return ExportStatus{}, err
	}
	out := ExportStatus{Artifact: art}
	if job, ok := s.jobs.Status(id); ok {
		out.Job = &job
	}
	return out, nil
}

func (s *Service) Exports(ctx context.Context, sessionID string) ([]artifact.Artifact, error) {
	if _, err := s.sessions.Session(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.artifacts.ForSession(ctx, sessionID)
}
