package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-railjourney/internal/station"
	"backend-railjourney/internal/track"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

var (
	sessionCols = []string{"id", "name", "started_at", "ended_at", "interval_sec", "is_active",
		"total_distance_m", "average_speed_mps", "station_analysis_completed", "station_analysis_at"}
	sampleCols = []string{"id", "session_id", "recorded_at", "lat", "lng", "altitude_m",
		"horizontal_accuracy_m", "vertical_accuracy_m", "speed_mps", "course_deg", "created_at"}
	passCols = []string{"id", "session_id", "station_id", "passed_at", "distance_m",
		"entry_point_index", "closest_point_index", "exit_point_index", "display_order"}
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestPGStoreSessions(t *testing.T) {
	mock := newMock(t)
	store := NewPGStore(mock)
	ctx := context.Background()
	now := time.Now()
	ended := now.Add(time.Hour)

	mock.ExpectQuery(`INSERT INTO sessions`).
		WithArgs("s-1", "Morning", now, 5, true).
		WillReturnRows(pgxmock.NewRows([]string{"started_at"}).AddRow(now))
	sess, err := store.CreateSession(ctx, Session{ID: "s-1", Name: "Morning", StartedAt: now, IntervalSec: 5, IsActive: true})
	if err != nil || sess.ID != "s-1" {
		t.Fatalf("create: %v", err)
	}

	mock.ExpectQuery(`SELECT id, name, started_at, ended_at.*FROM sessions WHERE id=\$1`).
		WithArgs("s-1").
		WillReturnRows(pgxmock.NewRows(sessionCols).
			AddRow("s-1", "Morning", now, &ended, 5, false, 1200.0, 0.33, true, &ended))
	loaded, err := store.GetSession(ctx, "s-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !loaded.Finalized() || loaded.TotalDistanceM != 1200 || !loaded.StationAnalysisCompleted {
		t.Fatalf("unexpected session %+v", loaded)
	}

	mock.ExpectQuery(`FROM sessions WHERE id=\$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	if _, err := store.GetSession(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectQuery(`WHERE is_active AND ended_at IS NULL\s+ORDER BY started_at DESC`).
		WillReturnRows(pgxmock.NewRows(sessionCols).
			AddRow("s-2", "Orphan", now, (*time.Time)(nil), 5, true, 0.0, 0.0, false, (*time.Time)(nil)))
	active, err := store.ActiveSessions(ctx)
	if err != nil || len(active) != 1 || active[0].ID != "s-2" {
		t.Fatalf("active: %v %+v", err, active)
	}

	mock.ExpectQuery(`FROM sessions ORDER BY started_at DESC`).
		WillReturnError(errors.New("boom"))
	if _, err := store.ListSessions(ctx); err == nil {
		t.Fatalf("expected list error")
	}

	mock.ExpectExec(`UPDATE sessions`).
		WithArgs("s-1", "Renamed", pgxmock.AnyArg(), 5, false, 1200.0, 0.33, true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	loaded.Name = "Renamed"
	if err := store.UpdateSession(ctx, loaded); err != nil {
		t.Fatalf("update: %v", err)
	}

	mock.ExpectExec(`UPDATE sessions`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	if err := store.UpdateSession(ctx, Session{ID: "gone"}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}

	mock.ExpectExec(`DELETE FROM sessions`).WithArgs("s-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	if err := store.DeleteSession(ctx, "s-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	mock.ExpectExec(`DELETE FROM sessions`).WithArgs("s-1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	if err := store.DeleteSession(ctx, "s-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreSamples(t *testing.T) {
	mock := newMock(t)
	store := NewPGStore(mock)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO samples`).
		WithArgs("s-1", now, 11.5, 48.1, 520.0, 4.0, 3.0, 12.0, 90.0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))
	smp, err := store.AppendSample(ctx, track.Sample{
		SessionID: "s-1", RecordedAt: now, Lat: 48.1, Lng: 11.5, AltitudeM: 520,
		HorizontalAccuracyM: 4, VerticalAccuracyM: 3, SpeedMps: 12, CourseDeg: 90,
	})
	if err != nil || smp.ID != 7 {
		t.Fatalf("append: %v", err)
	}

	mock.ExpectQuery(`FROM samples WHERE session_id=\$1\s+ORDER BY recorded_at DESC, id DESC\s+LIMIT 1`).
		WithArgs("s-1").
		WillReturnRows(pgxmock.NewRows(sampleCols).
			AddRow(int64(7), "s-1", now, 48.1, 11.5, 520.0, 4.0, 3.0, 12.0, 90.0, now))
	last, err := store.LastSample(ctx, "s-1")
	if err != nil || last == nil || last.Lat != 48.1 {
		t.Fatalf("last: %v %+v", err, last)
	}

	mock.ExpectQuery(`ORDER BY recorded_at DESC, id DESC`).
		WithArgs("empty").
		WillReturnError(pgx.ErrNoRows)
	last, err = store.LastSample(ctx, "empty")
	if err != nil || last != nil {
		t.Fatalf("expected no last sample, got %v %+v", err, last)
	}

	mock.ExpectQuery(`FROM samples WHERE session_id=\$1\s+ORDER BY recorded_at, id`).
		WithArgs("s-1").
		WillReturnRows(pgxmock.NewRows(sampleCols).
			AddRow(int64(6), "s-1", now.Add(-time.Second), 48.0, 11.4, 520.0, 4.0, 3.0, 12.0, 90.0, now).
			AddRow(int64(7), "s-1", now, 48.1, 11.5, 520.0, 4.0, 3.0, 12.0, 90.0, now))
	samples, err := store.Samples(ctx, "s-1")
	if err != nil || len(samples) != 2 || samples[0].ID != 6 {
		t.Fatalf("samples: %v %+v", err, samples)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStorePassEvents(t *testing.T) {
	mock := newMock(t)
	store := NewPGStore(mock)
	ctx := context.Background()
	now := time.Now()
	stationID := "st-1"
	exit := 4

	events := []station.PassEvent{
		{ID: "ev-1", SessionID: "s-1", StationID: &stationID, Timestamp: now, DistanceM: 12,
			EntryPointIndex: 2, ClosestPointIndex: 3, ExitPointIndex: &exit, DisplayOrder: 0},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM pass_events WHERE session_id=\$1`).
		WithArgs("s-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`INSERT INTO pass_events`).
		WithArgs("ev-1", "s-1", &stationID, now, 12.0, 2, 3, &exit, 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	if err := store.ReplacePassEvents(ctx, "s-1", events); err != nil {
		t.Fatalf("replace: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM pass_events`).
		WithArgs("s-1").
		WillReturnError(errors.New("locked"))
	mock.ExpectRollback()
	if err := store.ReplacePassEvents(ctx, "s-1", events); err == nil {
		t.Fatalf("expected replace error")
	}

	mock.ExpectQuery(`FROM pass_events WHERE session_id=\$1\s+ORDER BY display_order, id`).
		WithArgs("s-1").
		WillReturnRows(pgxmock.NewRows(passCols).
			AddRow("ev-1", "s-1", &stationID, now, 12.0, 2, 3, &exit, 0))
	loaded, err := store.PassEvents(ctx, "s-1")
	if err != nil || len(loaded) != 1 {
		t.Fatalf("pass events: %v", err)
	}
	if loaded[0].StationID == nil || *loaded[0].StationID != "st-1" || *loaded[0].ExitPointIndex != 4 {
		t.Fatalf("unexpected event %+v", loaded[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
