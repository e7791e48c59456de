package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"evactron-service/internal/config"
	"evactron-service/internal/discovery"
	"evactron-service/internal/middleware"
	"evactron-service/internal/model"
	"evactron-service/internal/repository"
	"evactron-service/internal/service"
	"evactron-service/internal/simulator"
	"evactron-service/internal/utils"
	"evactron-service/pkg/evactron"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router     *gin.Engine
	sim        *simulator.Simulator
	evactron   *service.EvactronService
	operations *service.OperationService
	bus        *EventBus
	ws         *WebSocketHandler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	bus := NewEventBus(logger)

	sim := simulator.New()
	operations := service.NewOperationService(repository.NewMemoryOperationRepository(100), bus, logger)
	cfg := &config.Config{
		App: config.AppConfig{Name: "evactron-service", Version: "test"},
		Device: config.DeviceConfig{
			Library:          config.LibrarySimulator,
			CommPort:         3,
			SettleDelay:      time.Millisecond,
			OperationTimeout: time.Second,
		},
	}
	evactronService := service.NewEvactronService(sim, config.LibrarySimulator,
		repository.NewMemoryReadingRepository(100), operations, bus, &cfg.Device, logger)
	scanner := discovery.NewScannerWithLister(func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{{Name: "COM3", IsUSB: true, VID: "0403"}, {Name: "/dev/ttyS0"}}, nil
	}, logger)
	discoveryService := service.NewDiscoveryService(scanner, evactronService, logger)
	ws := NewWebSocketHandler(evactronService, bus, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go bus.Start(ctx)
	go ws.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = evactronService.Close(context.Background())
	})

	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	NewHealthHandler(nil, evactronService, cfg, logger).RegisterRoutes(router)
	api := router.Group("/api/v1")
	NewEvactronHandler(evactronService, logger).RegisterRoutes(api)
	NewOperationHandler(operations, logger).RegisterRoutes(api)
	NewDiscoveryHandler(discoveryService, evactronService, logger).RegisterRoutes(api)
	ws.RegisterRoutes(router.Group("/ws"))

	return &testServer{
		router:     router,
		sim:        sim,
		evactron:   evactronService,
		operations: operations,
		bus:        bus,
		ws:         ws,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, utils.APIResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp utils.APIResponse
	if strings.HasPrefix(path, "/api/") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func decodeData(t *testing.T, resp utils.APIResponse, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestEvactronHandler_SessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodGet, "/api/v1/evactron/config", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", resp.Error.Code)

	w, resp = s.do(t, http.MethodPost, "/api/v1/evactron/connect", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session model.SessionInfo
	decodeData(t, resp, &session)
	assert.True(t, session.Connected)
	assert.Equal(t, 3, session.Port)
	assert.NotEmpty(t, resp.RequestID)

	w, _ = s.do(t, http.MethodPost, "/api/v1/evactron/connect", gin.H{"port": 4})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, resp = s.do(t, http.MethodGet, "/api/v1/evactron/session", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	decodeData(t, resp, &session)
	assert.True(t, session.Connected)

	w, _ = s.do(t, http.MethodPost, "/api/v1/evactron/disconnect", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, s.sim.OpenHandles())
}

func TestEvactronHandler_ConnectFailureIsBadGateway(t *testing.T) {
	s := newTestServer(t)
	s.sim.FailOn("evbConnect", &evactron.CallError{Op: "evbConnect", Code: 5})

	w, resp := s.do(t, http.MethodPost, "/api/v1/evactron/connect", gin.H{"port": 7})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "DEVICE_ERROR", resp.Error.Code)
}

func TestEvactronHandler_Readings(t *testing.T) {
	s := newTestServer(t)
	_, err := s.evactron.Connect(context.Background(), 0)
	require.NoError(t, err)

	w, _ := s.do(t, http.MethodGet, "/api/v1/evactron/readings/latest", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp := s.do(t, http.MethodGet, "/api/v1/evactron/readings", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var reading map[string]interface{}
	decodeData(t, resp, &reading)
	assert.Equal(t, "Ready", reading["state_name"])
	assert.Equal(t, "Pa", reading["units"])

	w, _ = s.do(t, http.MethodGet, "/api/v1/evactron/readings/latest", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	_, err = s.evactron.PollTelemetry(context.Background())
	require.NoError(t, err)
	w, resp = s.do(t, http.MethodGet, "/api/v1/evactron/readings/history?port=3&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Count int `json:"count"`
	}
	decodeData(t, resp, &history)
	assert.Equal(t, 1, history.Count)

	w, _ = s.do(t, http.MethodGet, "/api/v1/evactron/readings/history?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvactronHandler_Config(t *testing.T) {
	s := newTestServer(t)
	_, err := s.evactron.Connect(context.Background(), 0)
	require.NoError(t, err)

	w, resp := s.do(t, http.MethodPut, "/api/v1/evactron/config", gin.H{"cycles": 3, "purge_enabled": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var settings model.Settings
	decodeData(t, resp, &settings)
	assert.Equal(t, 3, settings.Cycles)
	assert.False(t, settings.PurgeEnabled)

	w, _ = s.do(t, http.MethodPut, "/api/v1/evactron/config", gin.H{"cycles": "three"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// range checks are left to the unit
	s.sim.FailOn("evbSetCycleCount", &evactron.CallError{Op: "evbSetCycleCount", Code: 1402})
	w, _ = s.do(t, http.MethodPut, "/api/v1/evactron/config", gin.H{"cycles": 120})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, 2, s.sim.Calls("evbSetCycleCount"))
	s.sim.FailOn("evbSetCycleCount", nil)

	w, _ = s.do(t, http.MethodPut, "/api/v1/evactron/config", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = s.do(t, http.MethodGet, "/api/v1/evactron/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, resp, &settings)
	assert.Equal(t, 3, settings.Cycles)
}

func TestEvactronHandler_ClockFaultsPower(t *testing.T) {
	s := newTestServer(t)
	_, err := s.evactron.Connect(context.Background(), 0)
	require.NoError(t, err)

	when := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	w, _ := s.do(t, http.MethodPut, "/api/v1/evactron/clock", gin.H{"time": when})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, when.Equal(s.sim.Snapshot().Clock))

	w, _ = s.do(t, http.MethodPut, "/api/v1/evactron/clock", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp := s.do(t, http.MethodGet, "/api/v1/evactron/clock", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var clock model.ClockInfo
	decodeData(t, resp, &clock)
	assert.True(t, when.Equal(clock.Time))

	s.sim.Update(func(u *simulator.Unit) { u.LatchedFault = evactron.CableFault.Code })
	w, resp = s.do(t, http.MethodGet, "/api/v1/evactron/faults", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var faults model.FaultStatus
	decodeData(t, resp, &faults)
	assert.True(t, faults.Active)

	w, _ = s.do(t, http.MethodDelete, "/api/v1/evactron/faults", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, s.sim.Snapshot().LatchedFault)

	w, _ = s.do(t, http.MethodPost, "/api/v1/evactron/disable", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, s.sim.Snapshot().Enabled)
	w, _ = s.do(t, http.MethodPost, "/api/v1/evactron/enable", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, s.sim.Snapshot().Enabled)

	w, resp = s.do(t, http.MethodGet, "/api/v1/evactron/versions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var versions model.Versions
	decodeData(t, resp, &versions)
	assert.Equal(t, "3.1", versions.Application)
}

func TestOperationHandler(t *testing.T) {
	s := newTestServer(t)
	_, err := s.evactron.Connect(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, s.evactron.Enable(context.Background()))

	w, resp := s.do(t, http.MethodGet, "/api/v1/evactron/operations?operation_type=ENABLE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Operations []model.Operation        `json:"operations"`
		Pagination service.PaginationResult `json:"pagination"`
	}
	decodeData(t, resp, &list)
	require.Len(t, list.Operations, 1)
	assert.Equal(t, 1, list.Pagination.Total)

	w, resp = s.do(t, http.MethodGet, "/api/v1/evactron/operations/"+list.Operations[0].ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var op model.Operation
	decodeData(t, resp, &op)
	assert.Equal(t, model.OperationTypeEnable, op.OperationType)

	w, _ = s.do(t, http.MethodGet, "/api/v1/evactron/operations/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/evactron/operations/00000000-0000-0000-0000-000000000001", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDiscoveryHandler(t *testing.T) {
	s := newTestServer(t)
	_, err := s.evactron.Connect(context.Background(), 0)
	require.NoError(t, err)

	w, resp := s.do(t, http.MethodGet, "/api/v1/ports", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ports struct {
		PortsFound int              `json:"ports_found"`
		Ports      []model.PortInfo `json:"ports"`
	}
	decodeData(t, resp, &ports)
	assert.Equal(t, 2, ports.PortsFound)
	assert.Equal(t, 3, ports.Ports[0].Number)
	assert.True(t, ports.Ports[0].InUse)

	w, _ = s.do(t, http.MethodPost, "/api/v1/ports/COM3/probe", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, resp = s.do(t, http.MethodPost, "/api/v1/ports/5/probe", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var probe model.ProbeResult
	decodeData(t, resp, &probe)
	assert.True(t, probe.Connected)
	assert.Equal(t, 1, s.sim.OpenHandles(), "only the session handle stays open")

	w, _ = s.do(t, http.MethodPost, "/api/v1/ports/ttyS0/probe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "disabled", health.Checks["database"].Status)
	assert.Equal(t, "disconnected", health.Checks["device"].Status)

	w, _ = s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodGet, "/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

type failingDB struct{}

func (failingDB) HealthCheck(context.Context) error { return assert.AnError }
func (failingDB) GetStats() map[string]interface{}  { return nil }

func TestHealthHandler_DatabaseDown(t *testing.T) {
	s := newTestServer(t)
	router := gin.New()
	NewHealthHandler(failingDB{}, s.evactron, &config.Config{}, zap.NewNop()).RegisterRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func readMessage(t *testing.T, conn *websocket.Conn) WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketHandler_StreamsEvents(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/telemetry"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readMessage(t, conn)
	assert.Equal(t, "initial_status", first.Type)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping", RequestID: "p1"}))
	pong := readMessage(t, conn)
	assert.Equal(t, "pong", pong.Type)
	assert.Equal(t, "p1", pong.RequestID)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{
		Type: "subscribe",
		Data: map[string]interface{}{"topic": string(model.EventTelemetry)},
	}))
	assert.Equal(t, "subscribed", readMessage(t, conn).Type)

	require.Eventually(t, func() bool {
		return s.ws.GetConnectionStats().TotalConnections == 1
	}, time.Second, 10*time.Millisecond)

	_, err = s.evactron.Connect(context.Background(), 0)
	require.NoError(t, err)
	_, err = s.evactron.PollTelemetry(context.Background())
	require.NoError(t, err)

	// only telemetry passes the filter
	msg := readMessage(t, conn)
	assert.Equal(t, "device_event", msg.Type)
	event := msg.Data.(map[string]interface{})
	assert.Equal(t, string(model.EventTelemetry), event["event_type"])
}

func TestEventBus_Subscribe(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Start(ctx)

	errorsOnly := bus.Subscribe(model.EventDeviceError)
	all := bus.Subscribe(AllEvents)

	bus.Publish(model.NewDeviceEvent(model.EventTelemetry, 1, model.SeverityInfo, nil))
	bus.Publish(model.NewDeviceEvent(model.EventDeviceError, 1, model.SeverityError, nil))

	select {
	case e := <-errorsOnly:
		assert.Equal(t, model.EventDeviceError, e.EventType)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	for _, want := range []model.EventType{model.EventTelemetry, model.EventDeviceError} {
		select {
		case e := <-all:
			assert.Equal(t, want, e.EventType)
		case <-time.After(time.Second):
			t.Fatal("no event delivered")
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{evactron.ErrNotConnected, http.StatusConflict},
		{service.ErrPortInUse, http.StatusConflict},
		{service.ErrNothingToUpdate, http.StatusBadRequest},
		{repository.ErrNotFound, http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusRequestTimeout},
		{evactron.CableFault, http.StatusBadGateway},
		{&evactron.ConnectError{Port: 1, Err: assert.AnError}, http.StatusBadGateway},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
