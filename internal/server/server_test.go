package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statusmonitor/internal/models"
)

type staticSource struct {
	mu   sync.Mutex
	snap models.Snapshot
}

func (s *staticSource) Current() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func newTestServer(t *testing.T, snap models.Snapshot) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub(nil)
	srv := New(":0", &staticSource{snap: snap}, hub, io.Discard, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	return ts, hub
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/status"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStatusEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, models.Snapshot{
		Network: models.Network{
			EthernetIP: models.StringPtr("10.0.0.5"),
			WiFiSignal: -61,
			Interface:  "wlan0",
		},
		PanAngle:  45,
		TiltAngle: -10,
		Voltage:   12.2,
		Uptime:    time.Hour,
	})

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]any{
		"wifi_ip":    nil,
		"eth_ip":     "10.0.0.5",
		"wifi_rssi":  float64(-61),
		"pan_angle":  float64(45),
		"tilt_angle": float64(-10),
		"voltage":    12.2,
	}, body)
}

func TestStatusEndpoint_RejectsOtherMethods(t *testing.T) {
	ts, _ := newTestServer(t, models.Snapshot{})

	resp, err := http.Post(ts.URL+"/api/status", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestIndexAndStaticAssets(t *testing.T) {
	ts, _ := newTestServer(t, models.Snapshot{})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(page), "Robot Status Monitor")

	resp, err = http.Get(ts.URL + "/static/app.js")
	require.NoError(t, err)
	script, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(script), "/status")

	resp, err = http.Get(ts.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, models.Snapshot{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestHub_BroadcastsToAllClients(t *testing.T) {
	ts, hub := newTestServer(t, models.Snapshot{})
	first := dial(t, ts)
	second := dial(t, ts)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 5*time.Millisecond)

	snap := models.Snapshot{
		Network:  models.Network{WiFiIP: models.StringPtr("192.168.1.20"), WiFiSignal: -50},
		PanAngle: 15,
		Voltage:  11.9,
		Uptime:   3725 * time.Second,
	}
	require.NoError(t, hub.Publish(snap))

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		var evt map[string]any
		require.NoError(t, conn.ReadJSON(&evt))
		assert.Equal(t, UpdateEvent, evt["event"])

		data, ok := evt["data"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "192.168.1.20", data["wifi_ip"])
		assert.Nil(t, data["eth_ip"])
		assert.Equal(t, float64(-50), data["wifi_rssi"])
		assert.Equal(t, float64(15), data["pan_angle"])
		assert.Equal(t, float64(0), data["tilt_angle"])
		assert.Equal(t, 11.9, data["voltage"])
		assert.Equal(t, "01:02:05", data["uptime"])
	}
}

func TestHub_LateClientGetsOnlyFutureBroadcasts(t *testing.T) {
	ts, hub := newTestServer(t, models.Snapshot{})
	require.NoError(t, hub.Publish(models.Snapshot{PanAngle: 1}))

	conn := dial(t, ts)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, hub.Publish(models.Snapshot{PanAngle: 2}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var evt Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, 2.0, evt.Data.PanAngle)
}

func TestHub_ClosedClientIsRemoved(t *testing.T) {
	ts, hub := newTestServer(t, models.Snapshot{})
	conn := dial(t, ts)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)

	assert.NoError(t, hub.Publish(models.Snapshot{}), "publishing with no clients is a no-op")
}

func TestHub_RejectsCrossOrigin(t *testing.T) {
	ts, _ := newTestServer(t, models.Snapshot{})
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/status"

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
