package station

import (
	"time"

	"backend-railjourney/internal/shared/geo"
)

// Station is externally supplied reference data.
type Station struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s Station) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: s.Lat, Lng: s.Lng}
}

// PassEvent is one proximity episode of a session around a station.
// StationID is nil once the referenced station has been deleted.
type PassEvent struct {
	ID                string    `json:"id"`
	SessionID         string    `json:"session_id"`
	StationID         *string   `json:"station_id"`
	Timestamp         time.Time `json:"timestamp"`
	DistanceM         float64   `json:"distance_from_station_m"`
	EntryPointIndex   int       `json:"entry_point_index"`
	ClosestPointIndex int       `json:"closest_point_index"`
	ExitPointIndex    *int      `json:"exit_point_index"`
	DisplayOrder      int       `json:"display_order"`
}
