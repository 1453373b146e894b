package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"

	"parking-lifecycle-backend/config"
	"parking-lifecycle-backend/internal/db"
	"parking-lifecycle-backend/internal/lifecycle"
	"parking-lifecycle-backend/internal/model"
	"parking-lifecycle-backend/internal/notification"
	"parking-lifecycle-backend/internal/scanner"
	"parking-lifecycle-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSource struct {
	bookings []model.Booking
	err      error
}

func (f *fakeSource) FetchActiveBookings(ctx context.Context, userID string) ([]model.Booking, error) {
	return f.bookings, f.err
}

type fakeScanner struct {
	report scanner.Report
	err    error
	calls  []string
}

func (f *fakeScanner) ScanUser(ctx context.Context, userID string) (scanner.Report, error) {
	f.calls = append(f.calls, userID)
	f.report.UserID = userID
	return f.report, f.err
}

func (f *fakeScanner) Location() *time.Location { return time.UTC }
func (f *fakeScanner) Rates() lifecycle.RateTable { return lifecycle.DefaultRates() }

type testEnv struct {
	router  *gin.Engine
	handler *Handler
	store   store.Store
	source  *fakeSource
	scanner *fakeScanner
	hub     *notification.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gormDB, err := db.Init(&config.DatabaseConfig{DSN: "file::memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	env := &testEnv{
		store:   store.NewGormStore(gormDB),
		source:  &fakeSource{},
		scanner: &fakeScanner{},
		hub:     notification.NewHub(),
	}
	env.handler = NewHandler(env.store, env.source, env.scanner, env.hub, &webpush.Options{VAPIDPublicKey: "test-public-key"})
	env.handler.now = func() time.Time { return time.Date(2024, 3, 15, 15, 40, 0, 0, time.UTC) }
	env.router = NewRouter(config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 30}, env.handler)
	return env
}

func (e *testEnv) do(method, target string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	e.router.ServeHTTP(w, req)
	return w
}

func TestGetBookings(t *testing.T) {
	env := newTestEnv(t)
	env.source.bookings = []model.Booking{
		{
			BookingID:     "b-1",
			StationName:   "City Center",
			VehicleType:   "bus",
			BookingDate:   "2024-03-15",
			StartTime:     "14:00",
			EndTime:       null.StringFrom("15:00"),
			BookingStatus: model.BookingConfirmed,
			ParkingStatus: model.ParkingParked,
		},
		{
			BookingID:     "b-2",
			StationName:   "Airport",
			BookingDate:   "2024-03-15",
			StartTime:     "noon",
			BookingStatus: model.BookingConfirmed,
		},
	}

	w := env.do(http.MethodGet, "/api/users/u1/bookings", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got []struct {
		BookingID string              `json:"bookingId"`
		State     lifecycle.State     `json:"state"`
		Overtime  *lifecycle.Overtime `json:"overtime"`
		Error     string              `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)

	assert.Equal(t, lifecycle.StateOverstayed, got[0].State)
	require.NotNil(t, got[0].Overtime)
	assert.Equal(t, int64(25), got[0].Overtime.Minutes)
	assert.Equal(t, int64(1), got[0].Overtime.Hours)
	assert.Equal(t, 50.0, got[0].Overtime.Amount)

	assert.Empty(t, got[1].State)
	assert.NotEmpty(t, got[1].Error)
}

func TestGetBookings_ReflectsCurrentTime(t *testing.T) {
	env := newTestEnv(t)
	env.source.bookings = []model.Booking{{
		BookingID:     "b-1",
		StationName:   "City Center",
		VehicleType:   "car",
		BookingDate:   "2024-03-15",
		StartTime:     "14:00",
		EndTime:       null.StringFrom("15:00"),
		BookingStatus: model.BookingConfirmed,
		ParkingStatus: model.ParkingParked,
	}}

	stateAt := func(hour, minute int) (lifecycle.State, *lifecycle.Overtime) {
		env.handler.now = func() time.Time { return time.Date(2024, 3, 15, hour, minute, 0, 0, time.UTC) }
		w := env.do(http.MethodGet, "/api/users/u1/bookings", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got []struct {
			State    lifecycle.State     `json:"state"`
			Overtime *lifecycle.Overtime `json:"overtime"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.Len(t, got, 1)
		return got[0].State, got[0].Overtime
	}

	state, overtime := stateAt(15, 10)
	assert.Equal(t, lifecycle.StateInGracePeriod, state)
	assert.Nil(t, overtime)

	state, overtime = stateAt(16, 30)
	assert.Equal(t, lifecycle.StateOverstayed, state)
	require.NotNil(t, overtime)
	assert.Equal(t, int64(75), overtime.Minutes)
	assert.Equal(t, 50.0, overtime.Amount)
}

func TestGetBookings_SourceError(t *testing.T) {
	env := newTestEnv(t)
	env.source.err = errors.New("backend down")

	w := env.do(http.MethodGet, "/api/users/u1/bookings", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"Failed to retrieve bookings"}`, w.Body.String())
}

func TestScanUser(t *testing.T) {
	env := newTestEnv(t)
	env.scanner.report = scanner.Report{Evaluated: 3, Dispatched: 1}

	w := env.do(http.MethodPost, "/api/users/u7/scan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"u7","evaluated":3,"skipped":0,"dispatched":1,"failed":0}`, w.Body.String())
	assert.Equal(t, []string{"u7"}, env.scanner.calls)

	env.scanner.err = errors.New("fetch failed")
	w = env.do(http.MethodPost, "/api/users/u7/scan", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGetNotifications(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)
	for i, kind := range []string{"upcoming", "arrived", "completed"} {
		require.NoError(t, env.store.RecordNotification(ctx, model.NotificationLog{
			ID:        kind,
			UserID:    "u1",
			BookingID: "b-1",
			Kind:      kind,
			SentAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	w := env.do(http.MethodGet, "/api/users/u1/notifications?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []model.NotificationLog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "completed", entries[0].Kind)
	assert.Equal(t, "arrived", entries[1].Kind)

	w = env.do(http.MethodGet, "/api/users/u1/notifications?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscriptions(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPut, "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())

	body := []byte(`{"user_id":"u1","endpoint":"https://push.example.com/abc%3D","p256dh":"key","auth":"secret"}`)
	w = env.do(http.MethodPut, "/api/subscriptions", body)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodGet, "/api/subscriptions?endpoint=https://push.example.com/abc%3D", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u1","endpoint":"https://push.example.com/abc%3D"}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodDelete, "/api/subscriptions", []byte(`{"endpoint":"https://push.example.com/abc%3D"}`))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, "/api/subscriptions?endpoint=https://push.example.com/abc%3D", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/vapid_public_key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"test-public-key"}`, w.Body.String())

	h := NewHandler(nil, nil, nil, nil, nil)
	r := gin.New()
	r.GET("/key", h.GetVAPIDPublicKey)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/key", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStreamAlerts(t *testing.T) {
	env := newTestEnv(t)
	connected := make(chan string, 1)
	env.hub.OnConnect(func(userID string) { connected <- userID })

	server := httptest.NewServer(env.router)
	defer server.Close()

	w := env.do(http.MethodGet, "/api/ws", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws?user_id=u1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case userID := <-connected:
		assert.Equal(t, "u1", userID)
	case <-time.After(2 * time.Second):
		t.Fatal("client was not registered")
	}

	n := notification.New("u1", "b-1", lifecycle.AlertArrived, "City Center", "Booking Started", "Welcome to City Center! Your parking session has started.")
	require.NoError(t, env.hub.Notify(context.Background(), n))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got notification.Notification
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, lifecycle.AlertArrived, got.Kind)
}
