package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/example/fleet-tracking/internal/eta"
	"github.com/example/fleet-tracking/internal/geo"
	"github.com/example/fleet-tracking/internal/models"
	"github.com/example/fleet-tracking/internal/observability"
	"github.com/example/fleet-tracking/internal/registry"
	"github.com/example/fleet-tracking/internal/storage"
	"github.com/example/fleet-tracking/internal/zone"
)

// PositionPublisher pushes accepted position records onto the event
// stream for downstream consumers. Optional and best-effort.
type PositionPublisher interface {
	PublishPosition(rec models.PositionRecord) error
}

// Engine is the real-time coordination core: it registers connections,
// routes position events through geofence and visibility checks, and
// correlates paired driver/customer streams into ETA updates.
//
// Every handler contains its own failures: no error escapes to the
// transport loop, no retries are scheduled. At-most-once, best-effort
// fan-out while a connection is live.
type Engine struct {
	Registry      *registry.Registry
	Zone          *zone.State
	Store         storage.Store
	Index         geo.LastKnown
	Publisher     PositionPublisher // optional
	Log           *slog.Logger
	SpeedKmPerMin float64 // fixed average speed for ETA; defaults to eta.AverageSpeedKmPerMin
}

// Connect registers an authenticated actor's connection, pushes the
// current zone to it and broadcasts a fresh presence snapshot.
func (e *Engine) Connect(actor models.Actor, sender registry.Sender) *registry.Session {
	sess := e.Registry.Register(actor, sender)
	e.Log.Info("actor connected", "actor_id", actor.ID, "username", actor.Username, "role", actor.Role)
	if err := sess.Send(EventUpdateHQ, e.Zone.Get()); err != nil {
		e.Log.Warn("zone push failed", "actor_id", actor.ID, "error", err)
	}
	e.broadcastPresence()
	return sess
}

// Disconnect removes a connection and tells everyone. No transition
// back: a disconnected session never re-enters the registry.
func (e *Engine) Disconnect(sessionID string) {
	sess := e.Registry.Unregister(sessionID)
	if sess == nil {
		return
	}
	e.Log.Info("actor disconnected", "actor_id", sess.Actor.ID, "username", sess.Actor.Username)
	e.broadcast(EventUserDisconnected, sess.Actor.ID)
	e.broadcastPresence()
}

// Ingest handles one send-location event: persist, geofence, fan out to
// authorized peers, correlate deliveries. A persistence failure logs
// and abandons the remaining steps for this event only.
func (e *Engine) Ingest(ctx context.Context, sess *registry.Session, lat, lng float64) {
	if lat == 0 && lng == 0 {
		// "no fix yet" sentinel; never persisted or broadcast
		observability.PositionsDropped.Inc()
		e.Log.Debug("dropped sentinel position", "actor_id", sess.Actor.ID)
		return
	}

	rec := models.PositionRecord{ActorID: sess.Actor.ID, Latitude: lat, Longitude: lng, Timestamp: time.Now()}
	if err := e.Store.AppendPosition(ctx, rec); err != nil {
		observability.PersistenceErrors.Inc()
		e.Log.Error("position append failed", "actor_id", sess.Actor.ID, "error", err)
		return
	}
	e.Index.Upsert(rec)
	if e.Publisher != nil {
		if err := e.Publisher.PublishPosition(rec); err != nil {
			e.Log.Warn("position publish failed", "actor_id", sess.Actor.ID, "error", err)
		}
	}
	observability.PositionsIngested.Inc()

	// one zone read per event; a concurrent admin move lands on the
	// next event, never mid-evaluation
	z := e.Zone.Get()
	if fence := geo.Evaluate(lat, lng, z); !fence.InsideZone {
		observability.GeofenceAlerts.Inc()
		e.broadcast(EventAlert, models.GeofenceAlert{
			UserID:   sess.Actor.ID,
			Username: sess.Actor.Username,
			Message:  fmt.Sprintf("%s has left the HQ zone (%dm away)", sess.Actor.Username, int(math.Round(fence.DistanceM))),
		})
	}

	event := models.PositionEvent{
		ID:        sess.Actor.ID,
		Username:  sess.Actor.Username,
		Role:      sess.Actor.Role,
		Latitude:  lat,
		Longitude: lng,
	}
	reporter := sess.Actor.Role
	e.Registry.ForEach(func(a models.Actor) bool { return Visible(reporter, a.Role) }, func(s *registry.Session) {
		if err := s.Send(EventReceiveLocation, event); err != nil {
			e.Log.Warn("position send failed", "to", s.Actor.ID, "error", err)
		}
	})

	e.correlate(ctx, sess, lat, lng)
}

// UpdateZone moves the HQ center. Non-admin attempts are a silent
// no-op. On success the new zone is broadcast to every connection.
func (e *Engine) UpdateZone(sess *registry.Session, lat, lng float64) {
	z, ok := e.Zone.Set(sess.Actor, lat, lng)
	if !ok {
		e.Log.Debug("zone update ignored", "actor_id", sess.Actor.ID, "role", sess.Actor.Role)
		return
	}
	observability.ZoneUpdates.Inc()
	e.Log.Info("zone updated", "lat", z.Lat, "lng", z.Lng, "radius_m", z.RadiusM, "by", sess.Actor.ID)
	e.broadcast(EventUpdateHQ, z)
}

// NotifyAssignment fans out a freshly created assignment to the two
// paired actors. Offline actors are skipped.
func (e *Engine) NotifyAssignment(a models.DeliveryAssignment) {
	payload := map[string]any{
		"deliveryId": a.ID,
		"driverId":   a.DriverID,
		"customerId": a.CustomerID,
		"status":     a.Status,
	}
	for _, id := range []string{a.DriverID, a.CustomerID} {
		if s, ok := e.Registry.SessionFor(id); ok {
			if err := s.Send(EventDeliveryAssigned, payload); err != nil {
				e.Log.Warn("assignment notify failed", "to", id, "error", err)
			}
		}
	}
}

// correlate derives ETA updates for every active assignment where the
// reporting actor is the driver. Customer reports never trigger a
// computation; the estimate refreshes on the driver's next report.
func (e *Engine) correlate(ctx context.Context, sess *registry.Session, lat, lng float64) {
	assignments, err := e.Store.ActiveForActor(ctx, sess.Actor.ID)
	if err != nil {
		observability.PersistenceErrors.Inc()
		e.Log.Error("assignment lookup failed", "actor_id", sess.Actor.ID, "error", err)
		return
	}
	for _, a := range assignments {
		if a.DriverID != sess.Actor.ID {
			continue
		}
		last, ok := e.lastPosition(ctx, a.CustomerID)
		if !ok {
			continue
		}
		est := eta.Between(lat, lng, last.Latitude, last.Longitude, e.SpeedKmPerMin)
		observability.ETAUpdates.Inc()

		customer, customerOnline := e.Registry.SessionFor(a.CustomerID)
		customerName := a.CustomerID
		if customerOnline {
			customerName = customer.Actor.Username
		}
		if err := sess.Send(EventETAUpdate, models.ETAUpdate{
			DeliveryID:       a.ID,
			ETAMinutes:       est.Minutes,
			DistanceM:        est.DistanceM,
			CustomerUsername: customerName,
		}); err != nil {
			e.Log.Warn("eta send failed", "to", sess.Actor.ID, "error", err)
		}
		if customerOnline {
			if err := customer.Send(EventETAUpdate, models.ETAUpdate{
				DeliveryID:     a.ID,
				ETAMinutes:     est.Minutes,
				DistanceM:      est.DistanceM,
				DriverUsername: sess.Actor.Username,
			}); err != nil {
				e.Log.Warn("eta send failed", "to", a.CustomerID, "error", err)
			}
		}
	}
}

// lastPosition consults the live index first, then the history store.
func (e *Engine) lastPosition(ctx context.Context, actorID string) (models.PositionRecord, bool) {
	if rec, ok := e.Index.Last(actorID); ok {
		return rec, true
	}
	rec, ok, err := e.Store.LastPosition(ctx, actorID)
	if err != nil {
		observability.PersistenceErrors.Inc()
		e.Log.Error("last position lookup failed", "actor_id", actorID, "error", err)
		return models.PositionRecord{}, false
	}
	return rec, ok
}

func (e *Engine) broadcast(event string, data any) {
	e.Registry.ForEach(nil, func(s *registry.Session) {
		if err := s.Send(event, data); err != nil {
			e.Log.Warn("broadcast send failed", "event", event, "to", s.Actor.ID, "error", err)
		}
	})
}

func (e *Engine) broadcastPresence() {
	observability.ActorsOnline.Set(float64(e.Registry.Len()))
	e.broadcast(EventUsersUpdate, e.Registry.Snapshot())
}
