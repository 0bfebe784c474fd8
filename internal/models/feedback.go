package models

// Feedback is one decoded record from the motion controller's feedback
// stream. Keys the controller did not send stay nil.
type Feedback struct {
	Type    int      `json:"T"`
	Pan     *float64 `json:"pan,omitempty"`
	Tilt    *float64 `json:"tilt,omitempty"`
	Voltage *float64 `json:"v,omitempty"`
}

// VoltageOrZero returns the reported battery voltage, or 0 when absent.
func (f Feedback) VoltageOrZero() float64 {
	if f.Voltage == nil {
		return 0
	}
	return *f.Voltage
}
