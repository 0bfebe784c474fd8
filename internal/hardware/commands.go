package hardware

import (
	"encoding/json"
	"fmt"
)

// Command codes understood by the motion controller.
const (
	codeOLEDLine         = 3
	codeSerialFeedback   = 131
	codeFeedbackInterval = 142
	codeSerialEcho       = 143

	// FeedbackBase is the type code of the controller's periodic base feedback.
	FeedbackBase = 1001
)

// DefaultFeedbackIntervalMs is the feedback interval requested at startup.
const DefaultFeedbackIntervalMs = 50

// Command is a typed controller command. Build one with the constructors in
// this file; the payload is produced by encoding/json only.
type Command interface {
	Code() int
}

type flagCommand struct {
	T   int `json:"T"`
	Cmd int `json:"cmd"`
}

func (c flagCommand) Code() int { return c.T }

type oledCommand struct {
	T       int    `json:"T"`
	LineNum int    `json:"lineNum"`
	Text    string `json:"Text"`
}

func (c oledCommand) Code() int { return c.T }

// FeedbackInterval sets the extra delay between feedback frames.
func FeedbackInterval(ms int) Command {
	return flagCommand{T: codeFeedbackInterval, Cmd: ms}
}

// SerialFeedback turns the continuous feedback stream on or off.
func SerialFeedback(enabled bool) Command {
	return flagCommand{T: codeSerialFeedback, Cmd: boolFlag(enabled)}
}

// SerialEcho turns command echo on or off.
func SerialEcho(enabled bool) Command {
	return flagCommand{T: codeSerialEcho, Cmd: boolFlag(enabled)}
}

// OLEDLine writes text to one row of the onboard display.
func OLEDLine(row int, text string) Command {
	return oledCommand{T: codeOLEDLine, LineNum: row, Text: text}
}

// InitSequence is sent once at startup: feedback interval, feedback stream
// on, echo off.
func InitSequence() []Command {
	return []Command{
		FeedbackInterval(DefaultFeedbackIntervalMs),
		SerialFeedback(true),
		SerialEcho(false),
	}
}

// Encode renders a command as one newline-terminated JSON frame.
func Encode(cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, fmt.Errorf("encode command: nil command")
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode command %d: %w", cmd.Code(), err)
	}
	return append(payload, '\n'), nil
}

func boolFlag(v bool) int {
	if v {
		return 1
	}
	return 0
}
