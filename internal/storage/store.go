package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/example/fleet-tracking/internal/models"
)

// ErrNotFound reports a lookup that matched nothing.
var ErrNotFound = errors.New("not found")

// PositionStore persists the append-only position history.
type PositionStore interface {
	AppendPosition(ctx context.Context, rec models.PositionRecord) error
	// LastPosition returns the most recent record for an actor; the
	// bool is false when the actor has never reported.
	LastPosition(ctx context.Context, actorID string) (models.PositionRecord, bool, error)
}

// DeliveryStore holds the delivery assignments the engine consumes as
// read-mostly reference data.
type DeliveryStore interface {
	SaveAssignment(ctx context.Context, a *models.DeliveryAssignment) error
	// GetAssignment returns the assignment by id, or ErrNotFound.
	GetAssignment(ctx context.Context, id string) (models.DeliveryAssignment, error)
	UpdateAssignmentStatus(ctx context.Context, id string, status models.DeliveryStatus) error
	// ActiveForActor returns assignments with status assigned or
	// in-transit where the actor is either side of the pairing.
	ActiveForActor(ctx context.Context, actorID string) ([]models.DeliveryAssignment, error)
}

// Store is the full persistence surface of the engine.
type Store interface {
	PositionStore
	DeliveryStore
}

// MemoryStore keeps everything in process. Used for local runs and
// tests when PG_DSN is not set.
type MemoryStore struct {
	mu          sync.RWMutex
	positions   map[string][]models.PositionRecord
	assignments map[string]*models.DeliveryAssignment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		positions:   make(map[string][]models.PositionRecord),
		assignments: make(map[string]*models.DeliveryAssignment),
	}
}

func (m *MemoryStore) AppendPosition(ctx context.Context, rec models.PositionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[rec.ActorID] = append(m.positions[rec.ActorID], rec)
	return nil
}

func (m *MemoryStore) LastPosition(ctx context.Context, actorID string) (models.PositionRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hist := m.positions[actorID]
	if len(hist) == 0 {
		return models.PositionRecord{}, false, nil
	}
	return hist[len(hist)-1], true, nil
}

// PositionCount reports the history length for an actor. Test helper.
func (m *MemoryStore) PositionCount(actorID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.positions[actorID])
}

func (m *MemoryStore) SaveAssignment(ctx context.Context, a *models.DeliveryAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.assignments[a.ID] = &cp
	return nil
}

func (m *MemoryStore) GetAssignment(ctx context.Context, id string) (models.DeliveryAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assignments[id]
	if !ok {
		return models.DeliveryAssignment{}, ErrNotFound
	}
	return *a, nil
}

func (m *MemoryStore) UpdateAssignmentStatus(ctx context.Context, id string, status models.DeliveryStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	return nil
}

func (m *MemoryStore) ActiveForActor(ctx context.Context, actorID string) ([]models.DeliveryAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.DeliveryAssignment
	for _, a := range m.assignments {
		if !a.Status.Active() {
			continue
		}
		if a.DriverID == actorID || a.CustomerID == actorID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
