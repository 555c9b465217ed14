package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plcforge/plcsim/internal/api/websocket"
	"github.com/plcforge/plcsim/internal/bridge/opcua"
	"github.com/plcforge/plcsim/internal/plc"
	"github.com/plcforge/plcsim/internal/tag"
)

func newTestServer(t *testing.T) (*Server, *opcua.Space) {
	t.Helper()

	space := opcua.NewSpace(2)
	heater, err := space.AddObject(space.Root(), "HeaterPLC")
	require.NoError(t, err)

	pv := tag.New("PV", tag.Float64(18.5), false)
	sp := tag.New("SP", tag.Float64(21.0), true)
	_, err = space.AddVariable(heater, "CurrentTemperature", pv, false)
	require.NoError(t, err)
	_, err = space.AddVariable(heater, "Setpoint", sp, true)
	require.NoError(t, err)

	hub := websocket.NewHub(zap.NewNop())
	go hub.Run()

	return NewServer("localhost:0", space, hub, zap.NewNop()), space
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBrowseRoot(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(t, s, http.MethodGet, "/api/v1/nodes", "")
	require.Equal(t, http.StatusOK, w.Code)

	var doc NodeDoc
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "ns=2;s=Objects", doc.ID)
	assert.Equal(t, "Object", doc.NodeClass)
	assert.Equal(t, []string{"ns=2;s=HeaterPLC"}, doc.Children)
}

func TestGetVariableNode(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(t, s, http.MethodGet, "/api/v1/nodes/ns=2;s=HeaterPLC.CurrentTemperature", "")
	require.Equal(t, http.StatusOK, w.Code)

	var doc NodeDoc
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "Variable", doc.NodeClass)
	assert.Equal(t, "Double", doc.VariantType)
	assert.Equal(t, 18.5, doc.Value)
	require.NotNil(t, doc.Writable)
	assert.False(t, *doc.Writable)
}

func TestGetUnknownNode(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(t, s, http.MethodGet, "/api/v1/nodes/ns=2;s=Nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWriteNodeValue(t *testing.T) {
	s, space := newTestServer(t)

	w := doRequest(t, s, http.MethodPut,
		"/api/v1/nodes/ns=2;s=HeaterPLC.Setpoint/value", `{"value": 23.5}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	n, ok := space.Node("ns=2;s=HeaterPLC.Setpoint")
	require.True(t, ok)
	assert.Equal(t, 23.5, n.Variable().Value().Float64())
}

func TestWriteNodeValueRejections(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"unknown node", "/api/v1/nodes/ns=2;s=Nope/value", `{"value": 1}`, http.StatusNotFound},
		{"object node", "/api/v1/nodes/ns=2;s=HeaterPLC/value", `{"value": 1}`, http.StatusBadRequest},
		{"read-only variable", "/api/v1/nodes/ns=2;s=HeaterPLC.CurrentTemperature/value", `{"value": 1}`, http.StatusForbidden},
		{"mistyped value", "/api/v1/nodes/ns=2;s=HeaterPLC.Setpoint/value", `{"value": "warm"}`, http.StatusBadRequest},
		{"malformed body", "/api/v1/nodes/ns=2;s=HeaterPLC.Setpoint/value", `{`, http.StatusBadRequest},
	}

	s, _ := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, s, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

type fakeStatusProvider struct{}

func (fakeStatusProvider) Status() plc.Status {
	return plc.Status{
		Name:       "heater",
		State:      plc.StateRunning,
		ScanCycles: 7,
		LastScan:   time.Unix(1000, 0),
		Modules:    3,
		Tags:       8,
	}
}

func TestControllerStatusEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	// Without a provider the endpoint degrades instead of panicking.
	w := doRequest(t, s, http.MethodGet, "/api/v1/status", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s.SetStatusProvider(fakeStatusProvider{})
	w = doRequest(t, s, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var status plc.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "heater", status.Name)
	assert.Equal(t, uint64(7), status.ScanCycles)
}
