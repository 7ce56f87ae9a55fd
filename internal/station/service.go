package station

import (
	"context"
	"errors"

	"backend-railjourney/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrStationNotFound = errors.New("station not found")
	ErrStationExists   = errors.New("station already imported with different data")
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// Import stores a reference station keyed by its external id. Stations are
// immutable: re-importing identical data returns the stored row, anything
// else fails with ErrStationExists.
func (s *Service) Import(ctx context.Context, input Station) (Station, error) {
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO stations (id, external_id, name, location)
		VALUES ($1,$2,$3, ST_SetSRID(ST_MakePoint($4,$5), 4326)::geography)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING id, created_at
	`, input.ID, input.ExternalID, input.Name, input.Lng, input.Lat)
	err := row.Scan(&input.ID, &input.CreatedAt)
	if err == nil {
		return input, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Station{}, err
	}

	existing, err := s.byExternalID(ctx, input.ExternalID)
	if err != nil {
		return Station{}, err
	}
	if existing.Name != input.Name || existing.Lat != input.Lat || existing.Lng != input.Lng {
		return Station{}, ErrStationExists
	}
	return existing, nil
}

func (s *Service) byExternalID(ctx context.Context, externalID string) (Station, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, external_id, name, ST_Y(location::geometry), ST_X(location::geometry), created_at
		FROM stations WHERE external_id=$1
	`, externalID)
	var st Station
	if err := row.Scan(&st.ID, &st.ExternalID, &st.Name, &st.Lat, &st.Lng, &st.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Station{}, ErrStationNotFound
		}
		return Station{}, err
	}
	return st, nil
}

func (s *Service) Get(ctx context.Context, id string) (Station, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, external_id, name, ST_Y(location::geometry), ST_X(location::geometry), created_at
		FROM stations WHERE id=$1
	`, id)
	var st Station
	if err := row.Scan(&st.ID, &st.ExternalID, &st.Name, &st.Lat, &st.Lng, &st.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Station{}, ErrStationNotFound
		}
		return Station{}, err
	}
	return st, nil
}

// List returns every station in a stable order; detection uses it as the
// tie-break order for coinciding entry indices.
func (s *Service) List(ctx context.Context) ([]Station, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, external_id, name, ST_Y(location::geometry), ST_X(location::geometry), created_at
		FROM stations
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	return scanStations(rows)
}

// Delete removes a station. Pass events referencing it keep their data; the
// foreign key nulls their station link.
func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM stations WHERE id=$1`, id)
	return err
}

func (s *Service) Nearby(ctx context.Context, lat, lng, radiusM float64) ([]Station, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, external_id, name, ST_Y(location::geometry), ST_X(location::geometry), created_at
		FROM stations
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1,$2), 4326)::geography, $3)
		ORDER BY ST_Distance(location, ST_SetSRID(ST_MakePoint($1,$2), 4326)::geography)
	`, lng, lat, radiusM)
	if err != nil {
		return nil, err
	}
	return scanStations(rows)
}

func scanStations(rows pgx.Rows) ([]Station, error) {
	defer rows.Close()

	var stations []Station
	for rows.Next() {
		var st Station
		if err := rows.Scan(&st.ID, &st.ExternalID, &st.Name, &st.Lat, &st.Lng, &st.CreatedAt); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}
