package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-zwave/internal/automation"
	"github.com/nerrad567/gray-logic-zwave/internal/device"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-zwave/internal/schedule"
	"github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// fakeModules is a canned ModuleController.
type fakeModules struct {
	state       automation.State
	modules     []automation.ModuleStatus
	applyErr    error
	applied     []string
	overrideErr error
	overrides   []device.CommandState
}

func (f *fakeModules) State() automation.State { return f.state }

func (f *fakeModules) Modules() []automation.ModuleStatus { return f.modules }

func (f *fakeModules) Module(name string) (automation.ModuleStatus, error) {
	for _, m := range f.modules {
		if m.Name == name {
			return m, nil
		}
	}
	return automation.ModuleStatus{}, fmt.Errorf("%w: %s", automation.ErrModuleNotFound, name)
}

func (f *fakeModules) ApplyConfigChanges(_ context.Context, name string) (*schedule.ModuleConfiguration, error) {
	f.applied = append(f.applied, name)
	m, err := f.Module(name)
	if err != nil {
		return nil, err
	}
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	return m.Config, nil
}

func (f *fakeModules) SetActuatorsNow(_ context.Context, name string, state device.CommandState) (automation.Report, error) {
	if _, err := f.Module(name); err != nil {
		return automation.Report{}, err
	}
	if f.overrideErr != nil {
		return automation.Report{}, f.overrideErr
	}
	f.overrides = append(f.overrides, state)
	return automation.Report{
		Module:  name,
		Command: state,
		Trigger: automation.TriggerManual,
		Issued:  []device.NodeID{5},
		Skipped: []automation.SkippedActuator{{NodeID: 6, Reason: "device: unknown device"}},
	}, nil
}

// fakeNetwork is a canned NetworkController.
type fakeNetwork struct {
	nodes    []device.NodeInfo
	failed   map[device.NodeID]bool
	checkErr map[device.NodeID]error
	err      error
	calls    []string
}

func (f *fakeNetwork) Nodes() []device.NodeInfo { return f.nodes }

func (f *fakeNetwork) call(name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeNetwork) BeginInclusion(context.Context) error { return f.call("begin_inclusion") }
func (f *fakeNetwork) StopInclusion(context.Context) error  { return f.call("stop_inclusion") }
func (f *fakeNetwork) BeginExclusion(context.Context) error { return f.call("begin_exclusion") }
func (f *fakeNetwork) StopExclusion(context.Context) error  { return f.call("stop_exclusion") }

func (f *fakeNetwork) CheckFailedNode(_ context.Context, id device.NodeID) (bool, error) {
	f.calls = append(f.calls, fmt.Sprintf("check_failed_node %d", id))
	if err := f.checkErr[id]; err != nil {
		return false, err
	}
	return f.failed[id], nil
}

// fakeDispatches is a canned DispatchLog.
type fakeDispatches struct {
	records   []automation.DispatchRecord
	gotModule string
	gotLimit  int
}

func (f *fakeDispatches) List(_ context.Context, module string, limit int) ([]automation.DispatchRecord, error) {
	f.gotModule, f.gotLimit = module, limit
	return f.records, nil
}

type fixture struct {
	srv        *Server
	registry   *device.Registry
	modules    *fakeModules
	network    *fakeNetwork
	dispatches *fakeDispatches
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

// testServer creates a Server over fakes, with one module and two nodes.
func testServer(t *testing.T) *fixture {
	t.Helper()

	log := testLogger()
	registry := device.NewRegistry(nil)
	if err := registry.Register(5, device.TagBinarySwitch); err != nil {
		t.Fatalf("Register: %v", err)
	}

	f := &fixture{
		registry: registry,
		modules: &fakeModules{
			state: automation.StateIdle,
			modules: []automation.ModuleStatus{{
				Name:   "OutdoorLightSwitch",
				Source: "modules/OutdoorLightSwitch.json",
				Config: &schedule.ModuleConfiguration{Name: "OutdoorLightSwitch"},
				State:  device.StateOff,
			}},
		},
		network: &fakeNetwork{
			nodes: []device.NodeInfo{
				{ID: 5, Name: "porch", Status: device.NodeStatusAlive, Ready: true},
				{ID: 9, Name: "garden sensor", Status: device.NodeStatusDead},
			},
		},
		dispatches: &fakeDispatches{},
	}

	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS: config.WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testSecret, AccessTokenTTL: 15},
		},
		Logger:     log,
		Registry:   registry,
		Modules:    f.modules,
		Network:    f.network,
		Dispatches: f.dispatches,
		Hub:        NewHub(config.WebSocketConfig{}, log),
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	f.srv = srv
	return f
}

func validToken(t *testing.T) string {
	t.Helper()
	tok, err := IssueToken(testSecret, "installer", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return tok
}

// do runs one request through the full router.
func (f *fixture) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	var e Error
	decode(t, w, &e)
	if e.Code != code || e.Status != status {
		t.Errorf("error envelope = %+v, want code %q status %d", e, code, status)
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	log := testLogger()
	registry := device.NewRegistry(nil)

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Registry: registry, Modules: &fakeModules{}}},
		{"no registry", Deps{Logger: log, Modules: &fakeModules{}}},
		{"no modules", Deps{Logger: log, Registry: registry}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestHealth(t *testing.T) {
	f := testServer(t)
	w := f.do(t, http.MethodGet, "/api/v1/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	decode(t, w, &body)
	if body["status"] != "ok" || body["version"] != "test" || body["router"] != "idle" {
		t.Errorf("health = %v", body)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestRequestID_Propagated(t *testing.T) {
	f := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc123" {
		t.Errorf("X-Request-ID = %q, want abc123", got)
	}
}

func TestListDevices_MergesRegistryAndNodes(t *testing.T) {
	f := testServer(t)
	w := f.do(t, http.MethodGet, "/api/v1/devices", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body struct {
		Devices []device.StatusSnapshot `json:"devices"`
		Count   int                     `json:"count"`
	}
	decode(t, w, &body)
	if body.Count != 2 || len(body.Devices) != 2 {
		t.Fatalf("devices = %+v", body)
	}
	porch, sensor := body.Devices[0], body.Devices[1]
	if porch.ID != 5 || !porch.Registered || porch.Tag != device.TagBinarySwitch || porch.Failed {
		t.Errorf("porch = %+v", porch)
	}
	if sensor.ID != 9 || sensor.Registered || !sensor.Failed {
		t.Errorf("sensor = %+v", sensor)
	}
}

func TestModules_ListAndGet(t *testing.T) {
	f := testServer(t)

	w := f.do(t, http.MethodGet, "/api/v1/modules", "", "")
	var list struct {
		Modules []automation.ModuleStatus `json:"modules"`
		Count   int                       `json:"count"`
	}
	decode(t, w, &list)
	if list.Count != 1 || list.Modules[0].Name != "OutdoorLightSwitch" {
		t.Errorf("modules = %+v", list)
	}

	w = f.do(t, http.MethodGet, "/api/v1/modules/OutdoorLightSwitch", "", "")
	var one automation.ModuleStatus
	decode(t, w, &one)
	if one.State != device.StateOff || one.Source != "modules/OutdoorLightSwitch.json" {
		t.Errorf("module = %+v", one)
	}

	w = f.do(t, http.MethodGet, "/api/v1/modules/Nope", "", "")
	expectError(t, w, http.StatusNotFound, ErrCodeNotFound)
}

func TestApplyConfig(t *testing.T) {
	t.Run("applies", func(t *testing.T) {
		f := testServer(t)
		w := f.do(t, http.MethodPost, "/api/v1/modules/OutdoorLightSwitch/config/apply", "", validToken(t))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
		}
		if len(f.modules.applied) != 1 || f.modules.applied[0] != "OutdoorLightSwitch" {
			t.Errorf("applied = %v", f.modules.applied)
		}
	})

	t.Run("invalid configuration is 422", func(t *testing.T) {
		f := testServer(t)
		f.modules.applyErr = fmt.Errorf("%w: Start time 1: %q is not H:MMam/pm", schedule.ErrConfigInvalid, "25:00")
		w := f.do(t, http.MethodPost, "/api/v1/modules/OutdoorLightSwitch/config/apply", "", validToken(t))
		expectError(t, w, http.StatusUnprocessableEntity, ErrCodeValidation)
	})

	t.Run("unknown module is 404", func(t *testing.T) {
		f := testServer(t)
		w := f.do(t, http.MethodPost, "/api/v1/modules/Nope/config/apply", "", validToken(t))
		expectError(t, w, http.StatusNotFound, ErrCodeNotFound)
	})

	t.Run("stopped router is 503", func(t *testing.T) {
		f := testServer(t)
		f.modules.applyErr = automation.ErrRouterStopped
		w := f.do(t, http.MethodPost, "/api/v1/modules/OutdoorLightSwitch/config/apply", "", validToken(t))
		expectError(t, w, http.StatusServiceUnavailable, ErrCodeUnavailable)
	})
}

func TestSetActuators(t *testing.T) {
	path := "/api/v1/modules/OutdoorLightSwitch/actuators/state"

	t.Run("accepted with report", func(t *testing.T) {
		f := testServer(t)
		w := f.do(t, http.MethodPut, path, `{"state":"ON"}`, validToken(t))
		if w.Code != http.StatusAccepted {
			t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
		}
		var report automation.Report
		decode(t, w, &report)
		if report.Command != device.StateOn || len(report.Issued) != 1 || len(report.Skipped) != 1 {
			t.Errorf("report = %+v", report)
		}
		if len(f.modules.overrides) != 1 || f.modules.overrides[0] != device.StateOn {
			t.Errorf("overrides = %v", f.modules.overrides)
		}
	})

	bad := []struct {
		name string
		body string
	}{
		{"malformed json", `{"state":`},
		{"unknown state", `{"state":"dim"}`},
		{"unknown is not commandable", `{"state":"unknown"}`},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			f := testServer(t)
			w := f.do(t, http.MethodPut, path, tt.body, validToken(t))
			expectError(t, w, http.StatusBadRequest, ErrCodeBadRequest)
			if len(f.modules.overrides) != 0 {
				t.Errorf("override should not run, got %v", f.modules.overrides)
			}
		})
	}

	t.Run("not ready is 409", func(t *testing.T) {
		f := testServer(t)
		f.modules.overrideErr = automation.ErrNotReady
		w := f.do(t, http.MethodPut, path, `{"state":"off"}`, validToken(t))
		expectError(t, w, http.StatusConflict, ErrCodeConflict)
	})
}

func TestMutatingRoutes_RequireToken(t *testing.T) {
	f := testServer(t)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "installer",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "installer",
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	wrongSecret, err := IssueToken("another-secret-that-is-also-long-enough", "installer", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	routes := []struct{ method, path, body string }{
		{http.MethodPost, "/api/v1/modules/OutdoorLightSwitch/config/apply", ""},
		{http.MethodPut, "/api/v1/modules/OutdoorLightSwitch/actuators/state", `{"state":"on"}`},
		{http.MethodPost, "/api/v1/network/inclusion", ""},
		{http.MethodDelete, "/api/v1/network/exclusion", ""},
		{http.MethodGet, "/api/v1/network/audit", ""},
	}
	tokens := map[string]string{
		"missing":      "",
		"garbage":      "not-a-jwt",
		"expired":      expired,
		"no expiry":    noExpiry,
		"wrong secret": wrongSecret,
	}

	for _, rt := range routes {
		for name, tok := range tokens {
			t.Run(rt.method+" "+rt.path+" "+name, func(t *testing.T) {
				w := f.do(t, rt.method, rt.path, rt.body, tok)
				expectError(t, w, http.StatusUnauthorized, ErrCodeUnauthorized)
			})
		}
	}

	if len(f.modules.applied) != 0 || len(f.modules.overrides) != 0 || len(f.network.calls) != 0 {
		t.Error("no handler should have run")
	}
}

func TestIssueToken_Validation(t *testing.T) {
	if _, err := IssueToken(testSecret, "x", 0); err == nil {
		t.Error("zero ttl should fail")
	}
	if _, err := IssueToken("", "x", time.Minute); err == nil {
		t.Error("empty secret should fail")
	}
}

func TestListDispatches(t *testing.T) {
	f := testServer(t)
	f.dispatches.records = []automation.DispatchRecord{{
		ID: "d1", Module: "OutdoorLightSwitch", NodeID: 5, Command: device.StateOn,
		Trigger: automation.TriggerSchedule, Status: automation.DispatchSucceeded,
		DispatchedAt: time.Date(2026, 10, 16, 19, 0, 0, 0, time.UTC),
	}}

	w := f.do(t, http.MethodGet, "/api/v1/modules/OutdoorLightSwitch/dispatches?limit=25", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	var body struct {
		Dispatches []automation.DispatchRecord `json:"dispatches"`
		Count      int                         `json:"count"`
	}
	decode(t, w, &body)
	if body.Count != 1 || body.Dispatches[0].ID != "d1" {
		t.Errorf("dispatches = %+v", body)
	}
	if f.dispatches.gotModule != "OutdoorLightSwitch" || f.dispatches.gotLimit != 25 {
		t.Errorf("List called with (%q, %d)", f.dispatches.gotModule, f.dispatches.gotLimit)
	}

	for _, q := range []string{"limit=0", "limit=-3", "limit=ten"} {
		w := f.do(t, http.MethodGet, "/api/v1/modules/OutdoorLightSwitch/dispatches?"+q, "", "")
		expectError(t, w, http.StatusBadRequest, ErrCodeBadRequest)
	}

	w = f.do(t, http.MethodGet, "/api/v1/modules/Nope/dispatches", "", "")
	expectError(t, w, http.StatusNotFound, ErrCodeNotFound)
}

func TestNetworkRequests(t *testing.T) {
	f := testServer(t)
	tok := validToken(t)

	for _, rt := range []struct{ method, path, call string }{
		{http.MethodPost, "/api/v1/network/inclusion", "begin_inclusion"},
		{http.MethodDelete, "/api/v1/network/inclusion", "stop_inclusion"},
		{http.MethodPost, "/api/v1/network/exclusion", "begin_exclusion"},
		{http.MethodDelete, "/api/v1/network/exclusion", "stop_exclusion"},
	} {
		before := len(f.network.calls)
		w := f.do(t, rt.method, rt.path, "", tok)
		if w.Code != http.StatusOK {
			t.Fatalf("%s %s: status = %d", rt.method, rt.path, w.Code)
		}
		if len(f.network.calls) != before+1 || f.network.calls[before] != rt.call {
			t.Errorf("%s %s: calls = %v", rt.method, rt.path, f.network.calls)
		}
	}
}

func TestNetworkRequests_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: begin_inclusion", zwave.ErrCommandTimeout), http.StatusGatewayTimeout, ErrCodeTimeout},
		{fmt.Errorf("%w: controller busy", zwave.ErrRequestFailed), http.StatusBadGateway, ErrCodeGateway},
		{zwave.ErrStopped, http.StatusServiceUnavailable, ErrCodeUnavailable},
		{errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			f := testServer(t)
			f.network.err = tt.err
			w := f.do(t, http.MethodPost, "/api/v1/network/inclusion", "", validToken(t))
			expectError(t, w, tt.status, tt.code)
		})
	}
}

func TestNetworkAudit(t *testing.T) {
	f := testServer(t)
	f.network.nodes = append(f.network.nodes, device.NodeInfo{ID: 12, Status: device.NodeStatusAsleep})
	f.network.failed = map[device.NodeID]bool{5: true}
	f.network.checkErr = map[device.NodeID]error{12: zwave.ErrCommandTimeout}

	w := f.do(t, http.MethodGet, "/api/v1/network/audit", "", validToken(t))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Nodes []struct {
			ID         int    `json:"node_id"`
			Failed     bool   `json:"failed"`
			CheckError string `json:"check_error"`
		} `json:"nodes"`
		Count  int `json:"count"`
		Failed int `json:"failed"`
	}
	decode(t, w, &body)
	if body.Count != 3 || body.Failed != 2 {
		t.Fatalf("audit = %+v", body)
	}
	// Node 5 is failed per the controller, 9 is dead per the driver,
	// 12 could not be checked.
	if !body.Nodes[0].Failed || !body.Nodes[1].Failed || body.Nodes[2].Failed {
		t.Errorf("failed flags = %+v", body.Nodes)
	}
	if body.Nodes[2].CheckError == "" {
		t.Error("node 12 should carry its check error")
	}
}

func TestNetworkRoutes_WithoutController(t *testing.T) {
	log := testLogger()
	srv, err := New(Deps{
		Security: config.SecurityConfig{JWT: config.JWTConfig{Secret: testSecret}},
		Logger:   log,
		Registry: device.NewRegistry(nil),
		Modules:  &fakeModules{},
	})
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{srv: srv}

	expectError(t, f.do(t, http.MethodGet, "/api/v1/network/audit", "", validToken(t)), http.StatusServiceUnavailable, ErrCodeUnavailable)
	expectError(t, f.do(t, http.MethodPost, "/api/v1/network/inclusion", "", validToken(t)), http.StatusServiceUnavailable, ErrCodeUnavailable)

	w := f.do(t, http.MethodGet, "/api/v1/devices", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("devices without controller: status = %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	f := testServer(t)
	f.srv.cfg.CORS.AllowedOrigins = []string{"http://panel.local"}

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/modules", nil)
	req.Header.Set("Origin", "http://panel.local")
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://panel.local" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Allow-Origin %q", got)
	}
}

func TestBodySizeLimit(t *testing.T) {
	f := testServer(t)
	body := `{"state":"on","pad":"` + strings.Repeat("x", maxRequestBodySize) + `"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/modules/OutdoorLightSwitch/actuators/state", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("oversized body: status = %d", w.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	f := testServer(t)
	h := f.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	expectError(t, w, http.StatusInternalServerError, ErrCodeInternal)
}

func TestWebSocket_SubscribeAndBroadcast(t *testing.T) {
	f := testServer(t)
	hub := f.srv.Hub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	read := func() WSMessage {
		t.Helper()
		//nolint:errcheck // test deadline
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		return msg
	}

	if err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{automation.ChannelTransition}},
	}); err != nil {
		t.Fatal(err)
	}
	if resp := read(); resp.Type != WSTypeResponse || resp.ID != "1" {
		t.Fatalf("subscribe response = %+v", resp)
	}
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount = %d", hub.ClientCount())
	}

	hub.Broadcast(automation.ChannelValue, map[string]any{"node_id": 9})
	hub.Broadcast(automation.ChannelTransition, automation.Transition{Module: "OutdoorLightSwitch", State: device.StateOn})

	ev := read()
	if ev.Type != WSTypeEvent || ev.EventType != automation.ChannelTransition {
		t.Fatalf("event = %+v", ev)
	}
	payload, _ := ev.Payload.(map[string]any)
	if payload["module"] != "OutdoorLightSwitch" || payload["state"] != "on" {
		t.Errorf("payload = %v", ev.Payload)
	}

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "2"}); err != nil {
		t.Fatal(err)
	}
	if pong := read(); pong.Type != WSTypePong || pong.ID != "2" {
		t.Errorf("pong = %+v", pong)
	}

	if err := conn.WriteJSON(WSMessage{Type: "shout", ID: "3"}); err != nil {
		t.Fatal(err)
	}
	if e := read(); e.Type != WSTypeError || e.ID != "3" {
		t.Errorf("error reply = %+v", e)
	}
}

func TestHub_WildcardSubscription(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	client := &WSClient{hub: hub, send: make(chan []byte, 4), subscriptions: map[string]struct{}{WSChannelAll: {}}}
	hub.Register(client)

	hub.Broadcast(automation.ChannelTopology, map[string]any{"node_id": 5})
	hub.Broadcast(automation.ChannelDispatch, map[string]any{"node_id": 5})
	if len(client.send) != 2 {
		t.Errorf("wildcard client got %d messages, want 2", len(client.send))
	}

	hub.Unregister(client)
	hub.Unregister(client) // second call must not double-close
	hub.Broadcast(automation.ChannelTopology, nil)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d", hub.ClientCount())
	}
}

func TestStartAndClose(t *testing.T) {
	f := testServer(t)
	if err := f.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.srv.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
