package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statusmonitor/internal/config"
	"statusmonitor/internal/hardware"
	"statusmonitor/internal/models"
)

type fakeLink struct {
	mu       sync.Mutex
	started  bool
	stopped  bool
	lines    map[int]string
	sent     []int
	failCode int
	last     models.Feedback
}

func (l *fakeLink) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = true
}

func (l *fakeLink) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
}

func (l *fakeLink) Send(cmd hardware.Command) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = append(l.sent, cmd.Code())
	if cmd.Code() == l.failCode {
		return errors.New("controller busy")
	}
	return nil
}

func (l *fakeLink) WriteLine(row int, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lines == nil {
		l.lines = make(map[int]string)
	}
	l.lines[row] = text
	return nil
}

func (l *fakeLink) Feedback() (models.Feedback, bool, error) {
	return models.Feedback{}, false, nil
}

func (l *fakeLink) LastFeedback() (models.Feedback, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last, true
}

func (l *fakeLink) snapshotLines() map[int]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[int]string, len(l.lines))
	for k, v := range l.lines {
		out[k] = v
	}
	return out
}

type fakeProbe struct {
	mu      sync.Mutex
	started bool
	stopped bool
}

func (p *fakeProbe) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = true
}

func (p *fakeProbe) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
}

func (p *fakeProbe) Network() (models.Network, error) {
	return models.Network{EthernetIP: models.StringPtr("10.0.0.5"), Interface: "wlan0", WiFiSignal: -58}, nil
}

func testOptions() Options {
	cfg := config.DefaultConfig()
	cfg.Base = config.BaseConfig{RobotName: "UGV Rover", SBCVersion: "0.93"}
	return Options{
		Config:           cfg,
		FeedbackInterval: 10 * time.Millisecond,
		PublishInterval:  time.Hour,
		AccessLog:        io.Discard,
	}
}

func TestStart_WithoutHardwareDescriptor(t *testing.T) {
	device := hardware.DetectSerialDevice(filepath.Join(t.TempDir(), "cpuinfo"))
	assert.Equal(t, hardware.DeviceDefault, device)

	link := &fakeLink{}
	probe := &fakeProbe{}
	a := New(testOptions(), link, probe)
	a.Start()
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	assert.True(t, link.started)
	assert.True(t, probe.started)
	assert.Equal(t, []int{142, 131, 143}, link.sent)

	ts := httptest.NewServer(a.Handler())
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStart_BootBannerThenFirstPublish(t *testing.T) {
	link := &fakeLink{}
	a := New(testOptions(), link, &fakeProbe{})
	a.Start()
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	// The publish loop's first iteration replaces the banner.
	require.Eventually(t, func() bool {
		return link.snapshotLines()[0] == "E:10.0.0.5"
	}, time.Second, 5*time.Millisecond)

	lines := link.snapshotLines()
	assert.Equal(t, "W: NO wlan0", lines[1])
	assert.Equal(t, "Status Monitor", lines[2])
}

func TestStart_FailedInitCommandDoesNotAbortOthers(t *testing.T) {
	link := &fakeLink{failCode: 142}
	a := New(testOptions(), link, &fakeProbe{})
	a.Start()
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	assert.Equal(t, []int{142, 131, 143}, link.sent)
}

func TestStatusAPIServesLiveSnapshot(t *testing.T) {
	link := &fakeLink{last: models.Feedback{Voltage: func() *float64 { v := 12.5; return &v }()}}
	a := New(testOptions(), link, &fakeProbe{})
	a.Start()
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	ts := httptest.NewServer(a.Handler())
	defer ts.Close()

	require.Eventually(t, func() bool {
		return a.Aggregator().Current().Voltage == 12.5
	}, time.Second, 5*time.Millisecond)

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "10.0.0.5", body["eth_ip"])
	assert.Nil(t, body["wifi_ip"])
	assert.Equal(t, 12.5, body["voltage"])
	assert.Equal(t, float64(-58), body["wifi_rssi"])
}

func TestShutdownStopsCollaborators(t *testing.T) {
	link := &fakeLink{}
	probe := &fakeProbe{}
	a := New(testOptions(), link, probe)
	a.Start()

	require.NoError(t, a.Shutdown(context.Background()))
	assert.True(t, link.stopped)
	assert.True(t, probe.stopped)
}

func TestRun_CancelledDuringStartupShutsDown(t *testing.T) {
	opts := testOptions()
	opts.Config.HTTP.Addr = "127.0.0.1:0"
	opts.CommandDelay = 20 * time.Millisecond

	link := &fakeLink{}
	probe := &fakeProbe{}
	a := New(opts, link, probe)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, time.Second) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assert.Equal(t, []int{142, 131, 143}, link.sent, "startup completes before shutdown")
	assert.True(t, link.stopped)
	assert.True(t, probe.stopped)
}
