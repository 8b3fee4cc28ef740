package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/farm-bridge/internal/account"
	"github.com/nerrad567/farm-bridge/internal/auth"
	"github.com/nerrad567/farm-bridge/internal/control"
	"github.com/nerrad567/farm-bridge/internal/correlation"
	"github.com/nerrad567/farm-bridge/internal/device"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/config"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/database"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/farm-bridge/internal/telemetry"
	"github.com/nerrad567/farm-bridge/migrations"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

const (
	alice = "alice@farm.test"
	bob   = "bob@farm.test"
)

// fakePublisher stands in for the bus connection on the publish side.
type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	bodies []map[string]any
	fail   error
	block  bool
}

func (f *fakePublisher) PublishContext(ctx context.Context, topic string, payload []byte, _ byte, _ bool) error {
	if f.block {
		<-ctx.Done()
		return errors.Join(mqtt.ErrTimeout, ctx.Err())
	}
	if f.fail != nil {
		return f.fail
	}
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return err
	}
	f.mu.Lock()
	f.topics = append(f.topics, topic)
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.topics)
}

func (f *fakePublisher) last() (string, map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.topics) == 0 {
		return "", nil
	}
	return f.topics[len(f.topics)-1], f.bodies[len(f.bodies)-1]
}

// testEnv is a server over in-memory SQLite with the bus replaced by a
// fake publisher and an in-process router.
type testEnv struct {
	srv      *Server
	handler  http.Handler
	db       *database.DB
	devices  *device.Registry
	accounts *account.SQLiteRepository
	samples  *telemetry.SQLiteStore
	pub      *fakePublisher
	bus      *mqtt.Router
	waits    *correlation.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	devices := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	accounts := account.NewSQLiteRepository(db.DB)
	samples := telemetry.NewSQLiteStore(db.DB)
	pub := &fakePublisher{}
	bus := mqtt.NewRouter()
	waits := correlation.NewRegistry(bus)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
			CORS: config.CORSConfig{
				AllowedOrigins:   []string{"http://localhost:5173"},
				AllowCredentials: true,
			},
		},
		WS: config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testSecret},
		},
		Bridge:     config.BridgeConfig{CommandTimeoutMS: 200, RealtimeTimeoutMS: 2000},
		Logger:     logging.Discard(),
		Devices:    devices,
		Accounts:   accounts,
		Samples:    samples,
		Commands:   control.NewDispatcher(pub),
		Thresholds: control.NewThresholdPublisher(pub),
		Realtime:   correlation.NewRealtimeQuery(waits, devices),
		DB:         db,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return &testEnv{
		srv:      srv,
		handler:  srv.Handler(),
		db:       db,
		devices:  devices,
		accounts: accounts,
		samples:  samples,
		pub:      pub,
		bus:      bus,
		waits:    waits,
	}
}

func sessionFor(t *testing.T, email string) string {
	t.Helper()
	token, err := auth.GenerateAccessToken(email, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	return token
}

// do sends a request as email; an empty email sends no session cookie.
func (e *testEnv) do(t *testing.T, method, path, body, email string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if email != "" {
		req.AddCookie(&http.Cookie{Name: defaultCookieName, Value: sessionFor(t, email)})
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) addAccount(t *testing.T, email string, active bool) {
	t.Helper()
	ctx := context.Background()
	if err := e.accounts.Create(ctx, &account.Account{Email: email, Name: "Grower", IsActive: true}); err != nil {
		t.Fatalf("Create account: %v", err)
	}
	if !active {
		if err := e.accounts.SetActive(ctx, email, false); err != nil {
			t.Fatalf("SetActive: %v", err)
		}
	}
}

func (e *testEnv) addDevice(t *testing.T, owner, id, name string) *device.Record {
	t.Helper()
	rec := &device.Record{
		OwnerEmail: owner,
		DeviceID:   id,
		DeviceName: name,
		PlantName:  "tomato",
		Thresholds: device.Thresholds{
			MinTemperature: 10, MaxTemperature: 30,
			MinHumidity: 40, MaxHumidity: 80,
			MinSoilMoisture: 20, MaxSoilMoisture: 60,
		},
	}
	if err := e.devices.CreateDevice(context.Background(), rec); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	return rec
}

// decodeEnvelope parses {err, data} and returns data as raw JSON.
func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (*Error, json.RawMessage) {
	t.Helper()
	var env struct {
		Err  *Error          `json:"err"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding envelope %q: %v", rec.Body.String(), err)
	}
	return env.Err, env.Data
}

type staticHealth struct{ err error }

func (h staticHealth) HealthCheck(context.Context) error { return h.err }

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
	apiErr, data := decodeEnvelope(t, rec)
	if apiErr != nil {
		t.Fatalf("err = %+v, want nil", apiErr)
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestHealth_BusDown(t *testing.T) {
	env := newTestEnv(t)
	env.srv.bus = staticHealth{err: mqtt.ErrNotConnected}
	env.handler = env.srv.Handler()

	rec := env.do(t, http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/health", "", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "client-id-1")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-id-1" {
		t.Errorf("X-Request-ID = %q, want client-id-1", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/device/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q, want true", got)
	}
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
		Email:            alice,
	})
	expiredToken, err := expired.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	otherKey, err := auth.GenerateAccessToken(alice, "another-secret-key-at-least-32-characters", time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	tests := []struct {
		name        string
		cookie      string
		wantStatus  int
		wantCleared bool
	}{
		{"no cookie", "", http.StatusForbidden, false},
		{"expired", expiredToken, http.StatusUnauthorized, true},
		{"wrong key", otherKey, http.StatusUnauthorized, true},
		{"garbage", "not-a-token", http.StatusUnauthorized, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/device/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: defaultCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			env.handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			apiErr, _ := decodeEnvelope(t, rec)
			if apiErr == nil || apiErr.Message == "" {
				t.Errorf("err = %+v, want a message", apiErr)
			}

			cleared := false
			for _, c := range rec.Result().Cookies() {
				if c.Name == defaultCookieName && c.MaxAge < 0 {
					cleared = true
				}
			}
			if cleared != tt.wantCleared {
				t.Errorf("cookie cleared = %v, want %v", cleared, tt.wantCleared)
			}
		})
	}
}

func TestAuth_BearerHeader(t *testing.T) {
	env := newTestEnv(t)
	env.addAccount(t, alice, true)

	req := httptest.NewRequest(http.MethodGet, "/api/device/", nil)
	req.Header.Set("Authorization", "Bearer "+sessionFor(t, alice))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/nonexistent", "", alice)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
