// Package display renders telemetry on the robot's 4-line onboard screen.
package display

import (
	"errors"
	"fmt"

	"statusmonitor/internal/metrics"
	"statusmonitor/internal/models"
)

// Lines is the number of rows on the onboard display.
const Lines = 4

// StatusLabel is the fixed text of the third row.
const StatusLabel = "Status Monitor"

// LineWriter writes one row of text to the display.
type LineWriter interface {
	WriteLine(row int, text string) error
}

// Sink shows each published snapshot on the display.
type Sink struct {
	w LineWriter
}

// New creates a display sink writing through w.
func New(w LineWriter) *Sink {
	return &Sink{w: w}
}

// Name identifies the sink in logs.
func (s *Sink) Name() string { return "display" }

// Publish writes all four rows. Every row is attempted even when an earlier
// one fails.
func (s *Sink) Publish(snap models.Snapshot) error {
	return writeAll(s.w, Render(snap))
}

// Render produces the display rows for a snapshot.
func Render(snap models.Snapshot) [Lines]string {
	var lines [Lines]string

	if snap.EthernetIP != nil {
		lines[0] = "E:" + *snap.EthernetIP
	} else {
		lines[0] = "E: No Ethernet"
	}
	if snap.WiFiIP != nil {
		lines[1] = "W:" + *snap.WiFiIP
	} else {
		lines[1] = "W: NO " + snap.Interface
	}
	lines[2] = StatusLabel
	lines[3] = fmt.Sprintf("%s %ddBm", metrics.FormatUptime(snap.Uptime), snap.WiFiSignal)
	return lines
}

// ShowBoot writes the banner shown while the service starts.
func ShowBoot(w LineWriter, robotName, sbcVersion string) error {
	return writeAll(w, [Lines]string{
		robotName,
		"sbc_version: " + sbcVersion,
		StatusLabel,
		"Starting...",
	})
}

func writeAll(w LineWriter, lines [Lines]string) error {
	var errs []error
	for row, text := range lines {
		if err := w.WriteLine(row, text); err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", row, err))
		}
	}
	return errors.Join(errs...)
}
