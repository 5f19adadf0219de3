package geo

import (
	"math"
	"sync"
	"time"

	"github.com/example/fleet-tracking/internal/models"
)

// LastKnown is the minimal interface the engine needs to look up the
// most recent reported position of an actor.
type LastKnown interface {
	Upsert(rec models.PositionRecord)
	Last(actorID string) (models.PositionRecord, bool)
}

// Fence is the result of a geofence evaluation.
type Fence struct {
	InsideZone bool
	DistanceM  float64
}

// Evaluate checks a point against the HQ zone. Pure: no I/O, no side
// effects. The boundary counts as inside.
func Evaluate(lat, lng float64, z models.Zone) Fence {
	d := Haversine(lat, lng, z.Lat, z.Lng)
	return Fence{InsideZone: d <= z.RadiusM, DistanceM: d}
}

// Index is an in-memory LastKnown implementation used when Redis is not
// configured.
type Index struct {
	mu     sync.RWMutex
	latest map[string]models.PositionRecord
}

func NewIndex() *Index {
	return &Index{latest: make(map[string]models.PositionRecord)}
}

func (g *Index) Upsert(rec models.PositionRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	g.latest[rec.ActorID] = rec
}

func (g *Index) Last(actorID string) (models.PositionRecord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.latest[actorID]
	return rec, ok
}

// Haversine distance in meters
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
