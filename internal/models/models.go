package models

import "time"

// Role classifies an authenticated actor. Admins manage the HQ zone and
// delivery assignments; drivers and customers only report positions.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleDriver   Role = "driver"
	RoleCustomer Role = "customer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDriver, RoleCustomer:
		return true
	}
	return false
}

// Actor is a resolved identity. Owned by the auth collaborator; the
// engine only references it for the lifetime of a connection.
type Actor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// PositionRecord is one reported coordinate sample. Append-only; the
// engine writes one per accepted position event and reads only the most
// recent record per actor.
type PositionRecord struct {
	ActorID   string    `json:"actor_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Zone is the HQ geofence. Exactly one exists process-wide.
type Zone struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	RadiusM float64 `json:"radius"`
}

// DeliveryStatus follows the assignment lifecycle of the delivery
// collaborator. Only assigned and in-transit pairings drive ETA updates.
type DeliveryStatus string

const (
	DeliveryAssigned  DeliveryStatus = "assigned"
	DeliveryInTransit DeliveryStatus = "in-transit"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryCancelled DeliveryStatus = "cancelled"
)

// Active reports whether the assignment still pairs a driver and a
// customer for live tracking purposes.
func (s DeliveryStatus) Active() bool {
	return s == DeliveryAssigned || s == DeliveryInTransit
}

// DeliveryAssignment pairs one driver with one customer. Owned by the
// delivery collaborator; read-mostly reference data for the engine.
// PaymentIntentID references the hold placed at assignment time; empty
// when payments are not configured or the hold failed. Never exposed
// on the wire.
type DeliveryAssignment struct {
	ID              string         `json:"id"`
	DriverID        string         `json:"driver_id"`
	CustomerID      string         `json:"customer_id"`
	Status          DeliveryStatus `json:"status"`
	AssignedAt      time.Time      `json:"assigned_at"`
	PaymentIntentID string         `json:"-"`
}

// Presence is one entry of the online-actor snapshot broadcast on every
// registry change.
type Presence struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// PositionEvent is the enriched position broadcast to authorized peers
// and published to the event stream.
type PositionEvent struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	Role      Role    `json:"role"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GeofenceAlert is broadcast to every connection when an actor leaves
// the HQ zone.
type GeofenceAlert struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// ETAUpdate is sent individually to the two actors of an active
// assignment. Exactly one of DriverUsername/CustomerUsername is set
// depending on the recipient.
type ETAUpdate struct {
	DeliveryID       string  `json:"deliveryId"`
	ETAMinutes       int     `json:"eta"`
	DistanceM        float64 `json:"distance"`
	DriverUsername   string  `json:"driverUsername,omitempty"`
	CustomerUsername string  `json:"customerUsername,omitempty"`
}
