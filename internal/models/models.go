package models

import (
	"time"

	"statusmonitor/internal/metrics"
)

// Network is one reading of the host's network state.
type Network struct {
	WiFiIP     *string
	EthernetIP *string
	WiFiSignal int
	Interface  string
}

// Snapshot is the latest known telemetry of the robot.
type Snapshot struct {
	Network
	PanAngle  float64
	TiltAngle float64
	Voltage   float64
	Uptime    time.Duration
}

// StatusResponse is the payload served by GET /api/status.
type StatusResponse struct {
	WiFiIP     *string `json:"wifi_ip"`
	EthernetIP *string `json:"eth_ip"`
	WiFiSignal int     `json:"wifi_rssi"`
	PanAngle   float64 `json:"pan_angle"`
	TiltAngle  float64 `json:"tilt_angle"`
	Voltage    float64 `json:"voltage"`
}

// UpdatePayload is broadcast to dashboard clients every publish cycle.
type UpdatePayload struct {
	StatusResponse
	Uptime string `json:"uptime"`
}

// Status converts the snapshot into its pull representation.
func (s Snapshot) Status() StatusResponse {
	return StatusResponse{
		WiFiIP:     s.WiFiIP,
		EthernetIP: s.EthernetIP,
		WiFiSignal: s.WiFiSignal,
		PanAngle:   s.PanAngle,
		TiltAngle:  s.TiltAngle,
		Voltage:    s.Voltage,
	}
}

// Update converts the snapshot into its push representation.
func (s Snapshot) Update() UpdatePayload {
	return UpdatePayload{
		StatusResponse: s.Status(),
		Uptime:         metrics.FormatUptime(s.Uptime),
	}
}

// StringPtr returns nil for an empty string, otherwise a pointer to a copy.
func StringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
