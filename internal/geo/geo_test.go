package geo

import (
	"math"
	"testing"

	"github.com/example/fleet-tracking/internal/models"
)

func TestHaversineZero(t *testing.T) {
	d := Haversine(0, 0, 0, 0)
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// ~1000m due north of Mumbai
	d := Haversine(19.0000, 72.8500, 19.0090, 72.8500)
	if math.Abs(d-1000) > 10 {
		t.Fatalf("expected ~1000m, got %f", d)
	}
}

func TestEvaluateInsideOutside(t *testing.T) {
	z := models.Zone{Lat: 51.5033, Lng: -0.1196, RadiusM: 5000}
	if f := Evaluate(51.5033, -0.1196, z); !f.InsideZone || f.DistanceM != 0 {
		t.Fatalf("center must be inside at distance 0, got %+v", f)
	}
	if f := Evaluate(52.5, -0.1196, z); f.InsideZone {
		t.Fatalf("point ~110km away must be outside, got %+v", f)
	}
}

func TestEvaluateBoundaryCountsAsInside(t *testing.T) {
	z := models.Zone{Lat: 10, Lng: 10}
	z.RadiusM = Haversine(10, 10, 10.01, 10)
	if f := Evaluate(10.01, 10, z); !f.InsideZone {
		t.Fatalf("exact boundary must count as inside, got %+v", f)
	}
}

func TestIndexLastWins(t *testing.T) {
	idx := NewIndex()
	if _, ok := idx.Last("a"); ok {
		t.Fatal("empty index must miss")
	}
	idx.Upsert(models.PositionRecord{ActorID: "a", Latitude: 1, Longitude: 2})
	idx.Upsert(models.PositionRecord{ActorID: "a", Latitude: 3, Longitude: 4})
	rec, ok := idx.Last("a")
	if !ok || rec.Latitude != 3 || rec.Longitude != 4 {
		t.Fatalf("expected latest record, got %+v ok=%v", rec, ok)
	}
	if rec.Timestamp.IsZero() {
		t.Fatal("upsert must stamp records")
	}
}
