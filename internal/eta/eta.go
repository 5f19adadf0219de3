package eta

import (
	"math"

	"github.com/example/fleet-tracking/internal/geo"
)

// AverageSpeedKmPerMin is the fixed fleet-wide average used for arrival
// estimates (30 km/h). No live speed estimation.
const AverageSpeedKmPerMin = 30.0 / 60.0

// Estimate is a derived arrival signal between a driver and the paired
// customer's last known position.
type Estimate struct {
	DistanceM float64
	Minutes   int
}

// Between computes the great-circle distance between two points and the
// rounded minutes to cover it at speedKmPerMin.
func Between(lat1, lng1, lat2, lng2, speedKmPerMin float64) Estimate {
	if speedKmPerMin <= 0 {
		speedKmPerMin = AverageSpeedKmPerMin
	}
	d := geo.Haversine(lat1, lng1, lat2, lng2)
	return Estimate{
		DistanceM: d,
		Minutes:   int(math.Round((d / 1000.0) / speedKmPerMin)),
	}
}
