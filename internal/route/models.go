package route

import (
	"time"

	"backend-railjourney/internal/shared/geo"
)

// RailwayRoute is a display-only polyline between two stations.
type RailwayRoute struct {
	ID            string           `json:"id"`
	FromStationID string           `json:"from_station_id"`
	ToStationID   string           `json:"to_station_id"`
	Name          string           `json:"name"`
	Polyline      []geo.Coordinate `json:"polyline"`
	LengthM       float64          `json:"length_m"`
	CreatedAt     time.Time        `json:"created_at"`
}
