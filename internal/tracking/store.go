package tracking

import (
	"context"
	"errors"
	"fmt"

	"backend-railjourney/internal/db"
	"backend-railjourney/internal/station"
	"backend-railjourney/internal/track"

	"github.com/jackc/pgx/v5"
)

// Store persists sessions together with the samples and pass events they own.
type Store interface {
	CreateSession(ctx context.Context, s Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	ActiveSessions(ctx context.Context) ([]Session, error)
	UpdateSession(ctx context.Context, s Session) error
	DeleteSession(ctx context.Context, id string) error

	AppendSample(ctx context.Context, s track.Sample) (track.Sample, error)
	LastSample(ctx context.Context, sessionID string) (*track.Sample, error)
	Samples(ctx context.Context, sessionID string) ([]track.Sample, error)

	ReplacePassEvents(ctx context.Context, sessionID string, events []station.PassEvent) error
	PassEvents(ctx context.Context, sessionID string) ([]station.PassEvent, error)
}

type PGStore struct {
	db db.Querier
}

func NewPGStore(db db.Querier) *PGStore {
	return &PGStore{db: db}
}

const sessionColumns = `id, name, started_at, ended_at, interval_sec, is_active,
		COALESCE(total_distance_m,0), COALESCE(average_speed_mps,0),
		station_analysis_completed, station_analysis_at`

func (s *PGStore) CreateSession(ctx context.Context, in Session) (Session, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO sessions (id, name, started_at, interval_sec, is_active)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING started_at
	`, in.ID, in.Name, in.StartedAt, in.IntervalSec, in.IsActive)
	if err := row.Scan(&in.StartedAt); err != nil {
		return Session{}, err
	}
	return in, nil
}

func (s *PGStore) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id=$1`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	return sess, nil
}

func (s *PGStore) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.Query(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

// ActiveSessions returns sessions still flagged active with no end time,
// most recently started first.
func (s *PGStore) ActiveSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE is_active AND ended_at IS NULL
		ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

func (s *PGStore) UpdateSession(ctx context.Context, in Session) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE sessions
		SET name=$2, ended_at=$3, interval_sec=$4, is_active=$5,
		    total_distance_m=$6, average_speed_mps=$7,
		    station_analysis_completed=$8, station_analysis_at=$9
		WHERE id=$1
	`, in.ID, in.Name, in.EndedAt, in.IntervalSec, in.IsActive,
		in.TotalDistanceM, in.AverageSpeedMps, in.StationAnalysisCompleted, in.StationAnalysisAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteSession removes a session; its samples and pass events cascade.
func (s *PGStore) DeleteSession(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PGStore) AppendSample(ctx context.Context, in track.Sample) (track.Sample, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO samples (session_id, recorded_at, location, altitude_m,
			horizontal_accuracy_m, vertical_accuracy_m, speed_mps, course_deg)
		VALUES ($1,$2, ST_SetSRID(ST_MakePoint($3,$4), 4326)::geography, $5,$6,$7,$8,$9)
		RETURNING id, created_at
	`, in.SessionID, in.RecordedAt, in.Lng, in.Lat, in.AltitudeM,
		in.HorizontalAccuracyM, in.VerticalAccuracyM, in.SpeedMps, in.CourseDeg)
	if err := row.Scan(&in.ID, &in.CreatedAt); err != nil {
		return track.Sample{}, err
	}
	return in, nil
}

const sampleColumns = `id, session_id, recorded_at, ST_Y(location::geometry), ST_X(location::geometry),
		altitude_m, horizontal_accuracy_m, vertical_accuracy_m, speed_mps, course_deg, created_at`

// LastSample returns the most recently accepted sample, or nil when the
// session has none.
func (s *PGStore) LastSample(ctx context.Context, sessionID string) (*track.Sample, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+sampleColumns+`
		FROM samples WHERE session_id=$1
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1
	`, sessionID)
	var smp track.Sample
	if err := scanSample(row, &smp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &smp, nil
}

// Samples returns the session's samples by timestamp; insertion order breaks ties.
func (s *PGStore) Samples(ctx context.Context, sessionID string) ([]track.Sample, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+sampleColumns+`
		FROM samples WHERE session_id=$1
		ORDER BY recorded_at, id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []track.Sample
	for rows.Next() {
		var smp track.Sample
		if err := scanSample(rows, &smp); err != nil {
			return nil, err
		}
		samples = append(samples, smp)
	}
	return samples, rows.Err()
}

// ReplacePassEvents swaps the session's events for a fresh detection result
// in one transaction.
func (s *PGStore) ReplacePassEvents(ctx context.Context, sessionID string, events []station.PassEvent) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	if err := replacePassEvents(ctx, tx, sessionID, events); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func replacePassEvents(ctx context.Context, tx pgx.Tx, sessionID string, events []station.PassEvent) error {
	if _, err := tx.Exec(ctx, `DELETE FROM pass_events WHERE session_id=$1`, sessionID); err != nil {
		return fmt.Errorf("clear pass events: %w", err)
	}
	for _, ev := range events {
		_, err := tx.Exec(ctx, `
			INSERT INTO pass_events (id, session_id, station_id, passed_at, distance_m,
				entry_point_index, closest_point_index, exit_point_index, display_order)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, ev.ID, sessionID, ev.StationID, ev.Timestamp, ev.DistanceM,
			ev.EntryPointIndex, ev.ClosestPointIndex, ev.ExitPointIndex, ev.DisplayOrder)
		if err != nil {
			return fmt.Errorf("insert pass event %s: %w", ev.ID, err)
		}
	}
	return nil
}

// PassEvents returns the session's events by display order.
func (s *PGStore) PassEvents(ctx context.Context, sessionID string) ([]station.PassEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, station_id, passed_at, distance_m,
			entry_point_index, closest_point_index, exit_point_index, display_order
		FROM pass_events WHERE session_id=$1
		ORDER BY display_order, id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []station.PassEvent
	for rows.Next() {
		var ev station.PassEvent
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.StationID, &ev.Timestamp, &ev.DistanceM,
			&ev.EntryPointIndex, &ev.ClosestPointIndex, &ev.ExitPointIndex, &ev.DisplayOrder); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.Name, &s.StartedAt, &s.EndedAt, &s.IntervalSec, &s.IsActive,
		&s.TotalDistanceM, &s.AverageSpeedMps, &s.StationAnalysisCompleted, &s.StationAnalysisAt)
	return s, err
}

func scanSessions(rows pgx.Rows) ([]Session, error) {
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func scanSample(row pgx.Row, s *track.Sample) error {
	return row.Scan(&s.ID, &s.SessionID, &s.RecordedAt, &s.Lat, &s.Lng,
		&s.AltitudeM, &s.HorizontalAccuracyM, &s.VerticalAccuracyM, &s.SpeedMps, &s.CourseDeg, &s.CreatedAt)
}
