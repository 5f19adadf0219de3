package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/fleet-tracking/internal/auth"
	"github.com/example/fleet-tracking/internal/config"
	"github.com/example/fleet-tracking/internal/engine"
	"github.com/example/fleet-tracking/internal/models"
	"github.com/example/fleet-tracking/internal/registry"
	"github.com/example/fleet-tracking/internal/storage"
)

// PaymentProcessor drives the delivery payment lifecycle: hold on
// assignment, capture on delivery, release on cancellation. Optional;
// wired only when payments are configured.
type PaymentProcessor interface {
	HoldForDelivery(ctx context.Context, amount int64, currency, customerID string) (string, error)
	Capture(ctx context.Context, paymentIntentID string) error
	Cancel(ctx context.Context, paymentIntentID string) error
}

type Server struct {
	cfg      config.ServerConfig
	logger   *slog.Logger
	Engine   *engine.Engine
	Store    storage.Store
	Resolver *auth.Resolver
	Payments PaymentProcessor
	mux      *mux.Router
}

func NewServer(cfg config.ServerConfig, logger *slog.Logger, eng *engine.Engine, store storage.Store, resolver *auth.Resolver, payments PaymentProcessor) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		Engine:   eng,
		Store:    store,
		Resolver: resolver,
		Payments: payments,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/delivery/assign", s.handleAssignDelivery).Methods("POST")
	s.mux.HandleFunc("/api/delivery/{id}/status", s.handleDeliveryStatus).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

var upgrader = websocket.Upgrader{}

// inboundMessage is the wire frame for connection → engine events.
type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// handleWS authenticates the handshake, registers the connection and
// pumps inbound events into the engine until the connection dies.
// A connection that fails resolution never enters the registry.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	actor, err := s.Resolver.ResolveRequest(r)
	if err != nil {
		http.Error(w, "authentication error", http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", 400)
		return
	}

	sess := s.Engine.Connect(actor, registry.NewWSSender(conn))
	defer s.Engine.Disconnect(sess.ID)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Event {
		case engine.EventSendLocation:
			var p struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			}
			if err := json.Unmarshal(msg.Data, &p); err != nil {
				s.logger.Debug("bad send-location payload", "actor_id", actor.ID, "error", err)
				continue
			}
			s.Engine.Ingest(r.Context(), sess, p.Latitude, p.Longitude)
		case engine.EventUpdateHQ:
			var p struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			}
			if err := json.Unmarshal(msg.Data, &p); err != nil {
				s.logger.Debug("bad update-hq payload", "actor_id", actor.ID, "error", err)
				continue
			}
			s.Engine.UpdateZone(sess, p.Lat, p.Lng)
		default:
			s.logger.Debug("unknown event", "event", msg.Event, "actor_id", actor.ID)
		}
	}
}

// handleAssignDelivery is the external assignment trigger: an admin
// pairs a driver with a customer, the engine fans delivery-assigned out
// to the two live connections, and an optional payment hold is placed.
func (s *Server) handleAssignDelivery(w http.ResponseWriter, r *http.Request) {
	actor, err := s.Resolver.ResolveRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication error")
		return
	}
	if actor.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	var req struct {
		DriverID   string `json:"driverId"`
		CustomerID string `json:"customerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DriverID == "" || req.CustomerID == "" {
		writeError(w, http.StatusBadRequest, "driverId and customerId are required")
		return
	}

	a := models.DeliveryAssignment{
		ID:         newID(),
		DriverID:   req.DriverID,
		CustomerID: req.CustomerID,
		Status:     models.DeliveryAssigned,
		AssignedAt: time.Now(),
	}
	if s.Payments != nil && s.cfg.StripeHoldAmount > 0 {
		pi, err := s.Payments.HoldForDelivery(r.Context(), s.cfg.StripeHoldAmount, s.cfg.StripeHoldCurrency, a.CustomerID)
		if err != nil {
			// delivery proceeds regardless; billing is reconciled offline
			s.logger.Warn("payment hold failed", "delivery_id", a.ID, "error", err)
		} else {
			a.PaymentIntentID = pi
		}
	}
	if err := s.Store.SaveAssignment(r.Context(), &a); err != nil {
		s.logger.Error("assignment save failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not save assignment")
		return
	}
	s.Engine.NotifyAssignment(a)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"success": true, "delivery": a})
}

// handleDeliveryStatus records delivered/cancelled transitions from the
// delivery collaborator. Transition validation is its contract, not ours.
func (s *Server) handleDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := s.Resolver.ResolveRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication error")
		return
	}
	if actor.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	var req struct {
		Status models.DeliveryStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	switch req.Status {
	case models.DeliveryInTransit, models.DeliveryDelivered, models.DeliveryCancelled:
	default:
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	id := mux.Vars(r)["id"]
	a, err := s.Store.GetAssignment(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			writeError(w, http.StatusNotFound, "unknown delivery")
			return
		}
		s.logger.Error("assignment lookup failed", "delivery_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not update status")
		return
	}
	if err := s.Store.UpdateAssignmentStatus(r.Context(), id, req.Status); err != nil {
		s.logger.Error("status update failed", "delivery_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not update status")
		return
	}

	// settle the hold placed at assignment time, if there was one
	if s.Payments != nil && a.PaymentIntentID != "" {
		switch req.Status {
		case models.DeliveryDelivered:
			if err := s.Payments.Capture(r.Context(), a.PaymentIntentID); err != nil {
				s.logger.Warn("payment capture failed", "delivery_id", id, "error", err)
			}
		case models.DeliveryCancelled:
			if err := s.Payments.Cancel(r.Context(), a.PaymentIntentID); err != nil {
				s.logger.Warn("payment release failed", "delivery_id", id, "error", err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
