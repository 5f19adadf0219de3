package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/fleet-tracking/internal/auth"
	"github.com/example/fleet-tracking/internal/config"
	"github.com/example/fleet-tracking/internal/engine"
	"github.com/example/fleet-tracking/internal/geo"
	"github.com/example/fleet-tracking/internal/models"
	"github.com/example/fleet-tracking/internal/registry"
	"github.com/example/fleet-tracking/internal/storage"
	"github.com/example/fleet-tracking/internal/zone"
)

const testSecret = "test-secret"

type fakeSender struct{ events []string }

func (f *fakeSender) Send(event string, data any) error { f.events = append(f.events, event); return nil }
func (f *fakeSender) Close() error                      { return nil }

type fakePayments struct {
	failHold  bool
	holds     int
	captured  []string
	cancelled []string
}

func (f *fakePayments) HoldForDelivery(ctx context.Context, amount int64, currency, customerID string) (string, error) {
	f.holds++
	if f.failHold {
		return "", errors.New("hold fail")
	}
	return "pi_test_1", nil
}

func (f *fakePayments) Capture(ctx context.Context, id string) error {
	f.captured = append(f.captured, id)
	return nil
}

func (f *fakePayments) Cancel(ctx context.Context, id string) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

func newTestServer() (*Server, *storage.MemoryStore, *engine.Engine) {
	return newTestServerWithPayments(nil)
}

func newTestServerWithPayments(p PaymentProcessor) (*Server, *storage.MemoryStore, *engine.Engine) {
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := &engine.Engine{
		Registry:      registry.New(),
		Zone:          zone.New(models.Zone{RadiusM: 5000}),
		Store:         store,
		Index:         geo.NewIndex(),
		Log:           logger,
		SpeedKmPerMin: 0.5,
	}
	cfg := config.ServerConfig{JWTSecret: testSecret}
	if p != nil {
		cfg.StripeHoldAmount = 500
		cfg.StripeHoldCurrency = "usd"
	}
	s := NewServer(cfg, logger, eng, store, auth.NewResolver(testSecret), p)
	return s, store, eng
}

func bearerFor(t *testing.T, id string, role models.Role) string {
	t.Helper()
	claims := auth.Claims{
		Username: id,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + token
}

func TestAssignDelivery(t *testing.T) {
	s, store, eng := newTestServer()

	driverConn := &fakeSender{}
	custConn := &fakeSender{}
	eng.Connect(models.Actor{ID: "d", Username: "dave", Role: models.RoleDriver}, driverConn)
	eng.Connect(models.Actor{ID: "c", Username: "carol", Role: models.RoleCustomer}, custConn)

	body := strings.NewReader(`{"driverId":"d","customerId":"c"}`)
	req := httptest.NewRequest("POST", "/api/delivery/assign", body)
	req.Header.Set("Authorization", bearerFor(t, "admin1", models.RoleAdmin))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success  bool                      `json:"success"`
		Delivery models.DeliveryAssignment `json:"delivery"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || !resp.Success {
		t.Fatalf("bad response: %v %s", err, rec.Body.String())
	}
	if resp.Delivery.Status != models.DeliveryAssigned {
		t.Fatalf("unexpected delivery: %+v", resp.Delivery)
	}

	active, _ := store.ActiveForActor(context.Background(), "d")
	if len(active) != 1 {
		t.Fatalf("assignment must be persisted, got %+v", active)
	}

	found := false
	for _, e := range driverConn.events {
		if e == engine.EventDeliveryAssigned {
			found = true
		}
	}
	if !found {
		t.Fatal("driver connection must be notified")
	}
}

func TestAssignDeliveryAuthorization(t *testing.T) {
	s, _, _ := newTestServer()

	req := httptest.NewRequest("POST", "/api/delivery/assign", strings.NewReader(`{"driverId":"d","customerId":"c"}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credential, got %d", rec.Code)
	}

	req = httptest.NewRequest("POST", "/api/delivery/assign", strings.NewReader(`{"driverId":"d","customerId":"c"}`))
	req.Header.Set("Authorization", bearerFor(t, "d", models.RoleDriver))
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}

	req = httptest.NewRequest("POST", "/api/delivery/assign", strings.NewReader(`{"driverId":"d"}`))
	req.Header.Set("Authorization", bearerFor(t, "a", models.RoleAdmin))
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing customerId, got %d", rec.Code)
	}
}

func TestDeliveryStatusTransition(t *testing.T) {
	s, store, _ := newTestServer()
	store.SaveAssignment(context.Background(), &models.DeliveryAssignment{
		ID: "del1", DriverID: "d", CustomerID: "c", Status: models.DeliveryAssigned,
	})

	req := httptest.NewRequest("POST", "/api/delivery/del1/status", strings.NewReader(`{"status":"delivered"}`))
	req.Header.Set("Authorization", bearerFor(t, "a", models.RoleAdmin))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	active, _ := store.ActiveForActor(context.Background(), "d")
	if len(active) != 0 {
		t.Fatalf("delivered assignment must drop out of the active set, got %+v", active)
	}

	req = httptest.NewRequest("POST", "/api/delivery/missing/status", strings.NewReader(`{"status":"cancelled"}`))
	req.Header.Set("Authorization", bearerFor(t, "a", models.RoleAdmin))
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown delivery, got %d", rec.Code)
	}

	req = httptest.NewRequest("POST", "/api/delivery/del1/status", strings.NewReader(`{"status":"assigned"}`))
	req.Header.Set("Authorization", bearerFor(t, "a", models.RoleAdmin))
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid transition target, got %d", rec.Code)
	}
}

func TestDeliveryPaymentLifecycle(t *testing.T) {
	pay := &fakePayments{}
	s, store, _ := newTestServerWithPayments(pay)

	assign := func() string {
		t.Helper()
		req := httptest.NewRequest("POST", "/api/delivery/assign", strings.NewReader(`{"driverId":"d","customerId":"c"}`))
		req.Header.Set("Authorization", bearerFor(t, "a", models.RoleAdmin))
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Delivery models.DeliveryAssignment `json:"delivery"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		return resp.Delivery.ID
	}
	setStatus := func(id string, status models.DeliveryStatus) {
		t.Helper()
		req := httptest.NewRequest("POST", "/api/delivery/"+id+"/status", strings.NewReader(`{"status":"`+string(status)+`"}`))
		req.Header.Set("Authorization", bearerFor(t, "a", models.RoleAdmin))
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	}

	// hold id must be retained with the assignment
	id := assign()
	if pay.holds != 1 {
		t.Fatalf("expected one hold, got %d", pay.holds)
	}
	saved, err := store.GetAssignment(context.Background(), id)
	if err != nil || saved.PaymentIntentID != "pi_test_1" {
		t.Fatalf("hold id must be persisted, got %+v err=%v", saved, err)
	}

	// delivered captures the hold
	setStatus(id, models.DeliveryDelivered)
	if len(pay.captured) != 1 || pay.captured[0] != "pi_test_1" {
		t.Fatalf("expected capture of pi_test_1, got %v", pay.captured)
	}

	// cancelled releases it
	id2 := assign()
	setStatus(id2, models.DeliveryCancelled)
	if len(pay.cancelled) != 1 || pay.cancelled[0] != "pi_test_1" {
		t.Fatalf("expected release of pi_test_1, got %v", pay.cancelled)
	}

	// in-transit settles nothing
	id3 := assign()
	setStatus(id3, models.DeliveryInTransit)
	if len(pay.captured) != 1 || len(pay.cancelled) != 1 {
		t.Fatalf("in-transit must not settle: captured=%v cancelled=%v", pay.captured, pay.cancelled)
	}
}

func TestDeliveryProceedsWhenHoldFails(t *testing.T) {
	pay := &fakePayments{failHold: true}
	s, store, _ := newTestServerWithPayments(pay)

	req := httptest.NewRequest("POST", "/api/delivery/assign", strings.NewReader(`{"driverId":"d","customerId":"c"}`))
	req.Header.Set("Authorization", bearerFor(t, "a", models.RoleAdmin))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("a failed hold must not block the delivery, got %d", rec.Code)
	}
	var resp struct {
		Delivery models.DeliveryAssignment `json:"delivery"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	saved, _ := store.GetAssignment(context.Background(), resp.Delivery.ID)
	if saved.PaymentIntentID != "" {
		t.Fatalf("failed hold must leave no intent id, got %q", saved.PaymentIntentID)
	}

	// nothing to settle on delivery
	req = httptest.NewRequest("POST", "/api/delivery/"+resp.Delivery.ID+"/status", strings.NewReader(`{"status":"delivered"}`))
	req.Header.Set("Authorization", bearerFor(t, "a", models.RoleAdmin))
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || len(pay.captured) != 0 {
		t.Fatalf("expected 200 and no capture, got %d captured=%v", rec.Code, pay.captured)
	}
}

func TestUnauthenticatedWebsocketRejected(t *testing.T) {
	s, _, _ := newTestServer()
	req := httptest.NewRequest("GET", "/ws", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
