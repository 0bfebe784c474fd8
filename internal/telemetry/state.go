package telemetry

import (
	"sync"
	"time"

	"statusmonitor/internal/models"
)

// State is the single shared telemetry record. The hardware poller owns the
// gimbal fields and the publish poller owns the rest; readers may observe the
// two groups at different ages.
type State struct {
	mu   sync.RWMutex
	snap models.Snapshot
}

// NewState returns a state with every field at its default.
func NewState() *State {
	return &State{}
}

// ApplyFeedback copies the gimbal angles present in fb and reports whether
// anything changed. Absent keys keep their previous values.
func (s *State) ApplyFeedback(fb models.Feedback) bool {
	if fb.Pan == nil && fb.Tilt == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if fb.Pan != nil {
		s.snap.PanAngle = *fb.Pan
	}
	if fb.Tilt != nil {
		s.snap.TiltAngle = *fb.Tilt
	}
	return true
}

// SetNetwork replaces the network fields.
func (s *State) SetNetwork(n models.Network) {
	s.mu.Lock()
	s.snap.Network = n
	s.mu.Unlock()
}

// SetHousekeeping records the slow-changing fields refreshed once per
// publish cycle.
func (s *State) SetHousekeeping(voltage float64, uptime time.Duration) {
	s.mu.Lock()
	s.snap.Voltage = voltage
	s.snap.Uptime = uptime
	s.mu.Unlock()
}

// Snapshot returns a copy of the current record.
func (s *State) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
