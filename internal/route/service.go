package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"backend-railjourney/internal/db"
	"backend-railjourney/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrRouteNotFound = errors.New("route not found")
	ErrShortPolyline = errors.New("polyline needs at least two points")
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Add(ctx context.Context, r RailwayRoute) (RailwayRoute, error) {
	if len(r.Polyline) < 2 {
		return RailwayRoute{}, ErrShortPolyline
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.LengthM = geo.PathLengthM(r.Polyline)

	polyline, err := json.Marshal(r.Polyline)
	if err != nil {
		return RailwayRoute{}, fmt.Errorf("encode polyline: %w", err)
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO railway_routes (id, from_station_id, to_station_id, name, polyline, length_m)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, r.ID, r.FromStationID, r.ToStationID, r.Name, polyline, r.LengthM)
	if err := row.Scan(&r.CreatedAt); err != nil {
		return RailwayRoute{}, err
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id string) (RailwayRoute, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, from_station_id, to_station_id, name, polyline, length_m, created_at
		FROM railway_routes WHERE id=$1
	`, id)
	r, err := scanRoute(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return RailwayRoute{}, ErrRouteNotFound
	}
	return r, err
}

// Between returns the routes stored for a station pair in either direction.
func (s *Service) Between(ctx context.Context, fromID, toID string) ([]RailwayRoute, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, from_station_id, to_station_id, name, polyline, length_m, created_at
		FROM railway_routes
		WHERE (from_station_id=$1 AND to_station_id=$2) OR (from_station_id=$2 AND to_station_id=$1)
		ORDER BY created_at DESC
	`, fromID, toID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []RailwayRoute
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM railway_routes WHERE id=$1`, id)
	return err
}

func scanRoute(row pgx.Row) (RailwayRoute, error) {
	var (
		r        RailwayRoute
		polyline []byte
	)
	if err := row.Scan(&r.ID, &r.FromStationID, &r.ToStationID, &r.Name, &polyline, &r.LengthM, &r.CreatedAt); err != nil {
		return RailwayRoute{}, err
	}
	if err := json.Unmarshal(polyline, &r.Polyline); err != nil {
		return RailwayRoute{}, fmt.Errorf("decode polyline: %w", err)
	}
	return r, nil
}
