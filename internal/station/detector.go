package station

import (
	"fmt"
	"sort"
	"time"

	"backend-railjourney/internal/shared/geo"
	"backend-railjourney/internal/track"

	"github.com/google/uuid"
)

const DefaultRadiusM = 100.0

var passNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("passes.railjourney"))

// Detector turns a sample stream into station pass events.
type Detector struct {
	RadiusM float64
}

func NewDetector(radiusM float64) Detector {
	if radiusM <= 0 {
		radiusM = DefaultRadiusM
	}
	return Detector{RadiusM: radiusM}
}

// proximity is the per-station state: either outside or inside an episode.
type proximity interface {
	isProximity()
}

type outside struct{}

type inside struct {
	entry        int
	best         int
	bestDistance float64
}

func (outside) isProximity() {}
func (inside) isProximity()  {}

// Detect scans samples in timestamp order once per station. The result is a
// pure function of its inputs: event ids are derived from (session, station,
// entry index) so repeated runs produce identical events.
func (d Detector) Detect(sessionID string, samples []track.Sample, stations []Station) []PassEvent {
	if len(samples) == 0 || len(stations) == 0 {
		return nil
	}
	radius := d.RadiusM
	if radius <= 0 {
		radius = DefaultRadiusM
	}

	sorted := track.SortByTime(samples)
	var events []PassEvent
	for _, st := range stations {
		events = append(events, d.scan(sessionID, sorted, st, radius)...)
	}

	// Ties on entry index keep station input order, then episode order.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].EntryPointIndex < events[j].EntryPointIndex
	})
	for i := range events {
		events[i].DisplayOrder = i
	}
	return events
}

func (d Detector) scan(sessionID string, sorted []track.Sample, st Station, radius float64) []PassEvent {
	var (
		events []PassEvent
		state  proximity = outside{}
	)
	center := st.Coordinate()

	for i, s := range sorted {
		dist := geo.DistanceM(s.Coordinate(), center)

		switch cur := state.(type) {
		case outside:
			if dist <= radius {
				state = inside{entry: i, best: i, bestDistance: dist}
			}
		case inside:
			if dist > radius {
				exit := i
				events = append(events, newPassEvent(sessionID, st, sorted, cur, &exit))
				state = outside{}
				continue
			}
			if dist < cur.bestDistance {
				cur.best = i
				cur.bestDistance = dist
				state = cur
			}
		}
	}

	if cur, ok := state.(inside); ok {
		events = append(events, newPassEvent(sessionID, st, sorted, cur, nil))
	}
	return events
}

func newPassEvent(sessionID string, st Station, sorted []track.Sample, ep inside, exit *int) PassEvent {
	stationID := st.ID
	key := fmt.Sprintf("%s/%s/%d", sessionID, st.ID, ep.entry)
	return PassEvent{
		ID:                uuid.NewSHA1(passNamespace, []byte(key)).String(),
		SessionID:         sessionID,
		StationID:         &stationID,
		Timestamp:         sorted[ep.best].RecordedAt,
		DistanceM:         ep.bestDistance,
		EntryPointIndex:   ep.entry,
		ClosestPointIndex: ep.best,
		ExitPointIndex:    exit,
	}
}

// ActiveAt reports whether the episode spans at. sorted must be the session's
// samples in timestamp order. An episode without exit stays active until the end.
func (e PassEvent) ActiveAt(sorted []track.Sample, at time.Time) bool {
	if e.EntryPointIndex < 0 || e.EntryPointIndex >= len(sorted) {
		return false
	}
	if at.Before(sorted[e.EntryPointIndex].RecordedAt) {
		return false
	}
	if e.ExitPointIndex == nil || *e.ExitPointIndex >= len(sorted) {
		return true
	}
	return at.Before(sorted[*e.ExitPointIndex].RecordedAt)
}
