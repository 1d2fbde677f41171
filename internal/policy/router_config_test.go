package policy_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/foodcore/internal/backup"
	"github.com/diewo77/foodcore/internal/config"
	"github.com/diewo77/foodcore/internal/licensing"
	"github.com/diewo77/foodcore/internal/policy"
	"github.com/diewo77/foodcore/internal/state"
	"github.com/diewo77/foodcore/internal/store"
	"github.com/diewo77/foodcore/internal/tenant"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	cfg     *policy.RouterConfig
	st      *state.State
	cookie  *http.Cookie
}

func setupTestServer(t *testing.T) *testServer {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&store.Entry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	st := state.New(store.New(db, zap.NewNop()), zap.NewNop(), func() time.Time { return now })

	cfg := policy.NewRouterConfig(st, backup.NewMemoryStore(), policy.Options{
		Owner:         config.OwnerConfig{Username: "owner", Password: "secret"},
		SessionSecret: "test-secret",
		Backup:        backup.SchedulerConfig{Interval: time.Hour, StaleAfter: 24 * time.Hour},
	}, zap.NewNop())

	mux := http.NewServeMux()
	cfg.Register(mux)
	return &testServer{t: t, handler: cfg.Middleware(mux), cfg: cfg, st: st}
}

// do sends a JSON request with the current session cookie and keeps any
// cookie the server sets.
func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	for _, c := range rr.Result().Cookies() {
		if c.Name == "foodcore_session" {
			if c.Value == "" {
				s.cookie = nil
			} else {
				s.cookie = c
			}
		}
	}
	return rr
}

func (s *testServer) expect(rr *httptest.ResponseRecorder, status int) {
	s.t.Helper()
	if rr.Code != status {
		s.t.Fatalf("status = %d, want %d; body = %s", rr.Code, status, rr.Body.String())
	}
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

// onboard creates and activates restaurant "r1" and logs its admin in.
func onboard(t *testing.T, s *testServer) {
	t.Helper()
	s.expect(s.do(http.MethodPost, "/session/login", map[string]string{"username": "owner", "password": "secret"}), http.StatusOK)
	s.expect(s.do(http.MethodPost, "/owner/restaurants", map[string]string{"id": "r1", "name": "Grill"}), http.StatusCreated)

	rr := s.do(http.MethodPost, "/owner/restaurants/r1/code", nil)
	s.expect(rr, http.StatusOK)
	code := decodeBody[map[string]any](t, rr)["code"].(string)
	s.expect(s.do(http.MethodPost, "/session/logout", nil), http.StatusNoContent)

	rr = s.do(http.MethodPost, "/activation/redeem", map[string]string{"code": code})
	s.expect(rr, http.StatusOK)
	if got := decodeBody[map[string]any](t, rr)["restaurantId"]; got != "r1" {
		t.Fatalf("redeemed restaurant = %v", got)
	}
	s.expect(s.do(http.MethodPost, "/activation/admin", map[string]string{"username": "boss", "password": "pw"}), http.StatusCreated)
	s.expect(s.do(http.MethodPost, "/session/login", map[string]string{"username": "boss", "password": "pw"}), http.StatusOK)
}

func TestRouter_OnboardingAndOrders(t *testing.T) {
	s := setupTestServer(t)

	rr := s.do(http.MethodGet, "/session", nil)
	s.expect(rr, http.StatusOK)
	if phase := decodeBody[map[string]any](t, rr)["phase"]; phase != "NO_RESTAURANTS" {
		t.Fatalf("initial phase = %v", phase)
	}

	onboard(t, s)

	rr = s.do(http.MethodPost, "/menu", map[string]any{"name": "Burger", "price": 10, "cost": 4, "category": "mains"})
	s.expect(rr, http.StatusCreated)
	item := decodeBody[map[string]any](t, rr)
	itemID := int64(item["id"].(float64))

	rr = s.do(http.MethodPost, "/orders", map[string]any{
		"orderType":   "dine-in",
		"tableNumber": 4,
		"items":       []map[string]any{{"menuItemId": itemID, "quantity": 2}},
	})
	s.expect(rr, http.StatusCreated)
	order := decodeBody[map[string]any](t, rr)
	if order["totalAmount"] != 20.0 || order["status"] != "PENDING" {
		t.Fatalf("order = %v", order)
	}
	if order["salespersonId"] == nil {
		t.Error("salesperson should default to the logged-in user")
	}

	// the client cannot supply its own price for a line
	rr = s.do(http.MethodPost, "/orders", map[string]any{
		"orderType":   "dine-in",
		"tableNumber": 5,
		"items": []map[string]any{{
			"menuItemId": itemID, "quantity": 1,
			"item": map[string]any{"id": itemID, "name": "Burger", "price": 0},
		}},
	})
	s.expect(rr, http.StatusBadRequest)

	rr = s.do(http.MethodPost, "/orders", map[string]any{"orderType": "dine-in", "items": []any{}})
	s.expect(rr, http.StatusUnprocessableEntity)
	body := decodeBody[map[string]any](t, rr)
	if body["error"] != "validation_failed" {
		t.Fatalf("error = %v", body["error"])
	}
	details := body["details"].(map[string]any)
	if _, ok := details["items"]; !ok {
		t.Errorf("details = %v, want items", details)
	}

	rr = s.do(http.MethodGet, "/orders/active", nil)
	s.expect(rr, http.StatusOK)
	if active := decodeBody[[]map[string]any](t, rr); len(active) != 1 {
		t.Fatalf("active = %d, want 1", len(active))
	}

	rr = s.do(http.MethodGet, "/reports/financials?window=today", nil)
	s.expect(rr, http.StatusOK)

	s.expect(s.do(http.MethodGet, "/orders/999", nil), http.StatusNotFound)
}

func TestRouter_Authorization(t *testing.T) {
	s := setupTestServer(t)

	s.expect(s.do(http.MethodGet, "/orders", nil), http.StatusUnauthorized)
	s.expect(s.do(http.MethodGet, "/owner/restaurants", nil), http.StatusUnauthorized)
	s.expect(s.do(http.MethodPost, "/session/login", map[string]string{"username": "owner", "password": "nope"}), http.StatusConflict)

	onboard(t, s)
	adminCookie := s.cookie

	s.expect(s.do(http.MethodGet, "/owner/restaurants", nil), http.StatusForbidden)

	rr := s.do(http.MethodPost, "/users", map[string]string{"username": "cash", "password": "pw", "role": "cashier"})
	s.expect(rr, http.StatusCreated)
	if pw := decodeBody[map[string]any](t, rr)["password"]; pw != nil && pw != "" {
		t.Fatalf("password leaked: %v", pw)
	}

	s.expect(s.do(http.MethodPost, "/session/login", map[string]string{"username": "cash", "password": "pw"}), http.StatusOK)
	s.expect(s.do(http.MethodGet, "/orders", nil), http.StatusOK)
	s.expect(s.do(http.MethodGet, "/menu", nil), http.StatusOK)
	s.expect(s.do(http.MethodGet, "/reports/financials", nil), http.StatusForbidden)
	s.expect(s.do(http.MethodPost, "/menu", map[string]any{"name": "X", "price": 1}), http.StatusForbidden)

	// The terminal holds one session; the admin's cookie no longer verifies.
	s.cookie = adminCookie
	s.expect(s.do(http.MethodGet, "/users", nil), http.StatusUnauthorized)
}

func TestRouter_BackupExportAndImport(t *testing.T) {
	s := setupTestServer(t)
	onboard(t, s)

	rr := s.do(http.MethodGet, "/backup/export", nil)
	s.expect(rr, http.StatusOK)
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	exported := rr.Body.Bytes()

	s.expect(s.do(http.MethodPost, "/backup/snapshots", nil), http.StatusCreated)
	rr = s.do(http.MethodGet, "/backup/snapshots", nil)
	s.expect(rr, http.StatusOK)
	if snaps := decodeBody[[]map[string]any](t, rr); len(snaps) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(snaps))
	}

	req := httptest.NewRequest(http.MethodPost, "/backup/import", bytes.NewReader(exported))
	req.AddCookie(s.cookie)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	s.expect(rec, http.StatusNoContent)

	// A restore ends the session.
	s.expect(s.do(http.MethodGet, "/backup/status", nil), http.StatusUnauthorized)

	// A restore also clears the selected restaurant.
	s.expect(s.do(http.MethodPost, "/session/login", map[string]string{"username": "boss", "password": "pw"}), http.StatusConflict)
	s.expect(s.do(http.MethodPost, "/session/select", map[string]string{"restaurantId": "r1"}), http.StatusOK)
	s.expect(s.do(http.MethodPost, "/session/login", map[string]string{"username": "boss", "password": "pw"}), http.StatusOK)
	s.expect(s.do(http.MethodPost, "/backup/import", map[string]string{"not": "a backup"}), http.StatusUnprocessableEntity)

	oversized := append([]byte(`{"orders":[`), bytes.Repeat([]byte(" "), 33<<20)...)
	req = httptest.NewRequest(http.MethodPost, "/backup/import", bytes.NewReader(oversized))
	req.AddCookie(s.cookie)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	s.expect(rec, http.StatusRequestEntityTooLarge)
	if body := decodeBody[map[string]any](t, rec); body["error"] != "payload_too_large" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestRouter_SelectRestaurant(t *testing.T) {
	s := setupTestServer(t)
	onboard(t, s)

	s.expect(s.do(http.MethodPost, "/session/switch", nil), http.StatusNoContent)
	rr := s.do(http.MethodGet, "/session", nil)
	s.expect(rr, http.StatusOK)
	entry := decodeBody[map[string]any](t, rr)
	choices, _ := entry["restaurants"].([]any)
	if entry["phase"] != "READY" || len(choices) != 1 {
		t.Fatalf("entry = %v", entry)
	}

	s.expect(s.do(http.MethodPost, "/session/select", map[string]string{"restaurantId": "missing"}), http.StatusNotFound)
	s.expect(s.do(http.MethodPost, "/session/select", map[string]string{"restaurantId": "r1"}), http.StatusOK)
	s.expect(s.do(http.MethodGet, "/menu", nil), http.StatusUnauthorized)
}

func TestRouter_InactiveRestaurantEndsAccess(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		phase string
		leave func(s *testServer)
	}{
		{"subscription expired", "SUBSCRIPTION_EXPIRED", func(s *testServer) {
			yesterday := time.Date(2024, 5, 9, 12, 0, 0, 0, time.UTC)
			if _, err := tenant.NewDirectory(s.st, zap.NewNop()).UpdateSubscription(ctx, "r1", &yesterday); err != nil {
				t.Fatalf("expire: %v", err)
			}
		}},
		{"activation reset", "AWAITING_FIRST_ACTIVATION", func(s *testServer) {
			if res := licensing.NewService(s.st, zap.NewNop()).ResetActivation(ctx, "r1"); !res.OK() {
				t.Fatalf("reset: %s", res)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServer(t)
			onboard(t, s)
			s.expect(s.do(http.MethodGet, "/orders", nil), http.StatusOK)
			cookie := s.cookie

			tt.leave(s)

			s.expect(s.do(http.MethodGet, "/orders", nil), http.StatusUnauthorized)
			s.cookie = cookie
			s.expect(s.do(http.MethodPost, "/customers", map[string]string{"name": "Ali", "phone": "1"}), http.StatusUnauthorized)

			rr := s.do(http.MethodGet, "/session", nil)
			s.expect(rr, http.StatusOK)
			if phase := decodeBody[map[string]any](t, rr)["phase"]; phase != tt.phase {
				t.Fatalf("phase = %v, want %s", phase, tt.phase)
			}
		})
	}
}
