package zone

import (
	"sync"

	"github.com/example/fleet-tracking/internal/models"
)

// State holds the single process-wide HQ zone. Readers get a copy, so a
// handler that reads the zone once per event can never observe a torn
// write; writers go through Set which is admin-gated.
type State struct {
	mu      sync.RWMutex
	zone    models.Zone
	version uint64
}

func New(initial models.Zone) *State {
	if initial.RadiusM < 0 {
		initial.RadiusM = 0
	}
	return &State{zone: initial}
}

// Get returns the current zone value.
func (s *State) Get() models.Zone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zone
}

// Version increments on every successful Set.
func (s *State) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Set moves the zone center. Only admins may move it; any other role is
// a silent no-op, matching the non-privileged no-op policy of the
// update-hq contract. Radius is preserved across moves. Returns the
// resulting zone and whether it changed.
func (s *State) Set(caller models.Actor, lat, lng float64) (models.Zone, bool) {
	if caller.Role != models.RoleAdmin {
		return s.Get(), false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zone.Lat = lat
	s.zone.Lng = lng
	s.version++
	return s.zone, true
}
