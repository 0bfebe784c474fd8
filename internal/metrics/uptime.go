package metrics

import (
	"fmt"
	"time"
)

// FormatUptime renders an elapsed duration as HH:MM:SS. Hours are not
// wrapped at 24 and grow past two digits once the process has been up long
// enough. Negative durations render as zero.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// Uptime measures elapsed time since a fixed process start.
type Uptime struct {
	start time.Time
	now   func() time.Time
}

// NewUptime starts measuring from start. A nil clock uses time.Now.
func NewUptime(start time.Time, now func() time.Time) *Uptime {
	if now == nil {
		now = time.Now
	}
	return &Uptime{start: start, now: now}
}

// Elapsed returns the time since start. It never goes backwards while the
// clock is monotonic.
func (u *Uptime) Elapsed() time.Duration {
	return u.now().Sub(u.start)
}
