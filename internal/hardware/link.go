package hardware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goburrow/serial"

	"statusmonitor/internal/logger"
	"statusmonitor/internal/models"
)

var (
	// ErrNotConnected is returned when the serial port is not open.
	ErrNotConnected = errors.New("hardware: serial port not connected")
	// ErrMalformedFeedback wraps feedback frames that are not valid JSON objects.
	ErrMalformedFeedback = errors.New("hardware: malformed feedback")
)

const (
	reopenInterval = time.Second
	maxFrameBytes  = 4096
	// A readable port that keeps returning no data has been hung up.
	maxEmptyReads = 3
)

// Opener opens the serial port for a device.
type Opener func(cfg Config) (io.ReadWriteCloser, error)

// Config describes the serial port.
type Config struct {
	Device      string
	BaudRate    int
	ReadTimeout time.Duration
}

// OpenSerial opens a real 8N1 serial port.
func OpenSerial(cfg Config) (io.ReadWriteCloser, error) {
	return serial.Open(&serial.Config{
		Address:  cfg.Device,
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  cfg.ReadTimeout,
	})
}

// Link is the JSON-line serial channel to the motion controller. A reader
// goroutine decodes feedback frames as they arrive and reopens the port if it
// drops.
type Link struct {
	cfg         Config
	open        Opener
	log         logger.Logger
	reopenDelay time.Duration

	writeMu sync.Mutex

	mu         sync.Mutex
	port       io.ReadWriteCloser
	pending    *models.Feedback
	pendingErr error
	last       models.Feedback
	hasLast    bool

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewLink creates a link. A nil opener uses OpenSerial.
func NewLink(cfg Config, open Opener, log logger.Logger) *Link {
	if open == nil {
		open = OpenSerial
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Link{
		cfg:         cfg,
		open:        open,
		log:         log,
		reopenDelay: reopenInterval,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start opens the port once and launches the reader. An open failure is
// logged; the reader keeps retrying in the background.
func (l *Link) Start() {
	if err := l.connect(); err != nil {
		l.log.Warn("open %s: %v", l.cfg.Device, err)
	}
	l.started.Store(true)
	go l.run()
}

// Stop closes the port and waits for the reader to exit.
func (l *Link) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		l.mu.Lock()
		if l.port != nil {
			_ = l.port.Close()
		}
		l.mu.Unlock()
	})
	if l.started.Load() {
		<-l.doneCh
	}
}

// Send writes one command frame.
func (l *Link) Send(cmd Command) error {
	frame, err := Encode(cmd)
	if err != nil {
		return err
	}

	l.mu.Lock()
	port := l.port
	l.mu.Unlock()
	if port == nil {
		return ErrNotConnected
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if _, err := port.Write(frame); err != nil {
		return fmt.Errorf("write command %d: %w", cmd.Code(), err)
	}
	return nil
}

// WriteLine shows text on one row of the onboard display.
func (l *Link) WriteLine(row int, text string) error {
	return l.Send(OLEDLine(row, text))
}

// Feedback returns the newest valid frame received since the previous call.
// The boolean is false when no valid frame arrived. A malformed frame is
// reported once as an error, alongside any valid frame still pending.
func (l *Link) Feedback() (models.Feedback, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.pendingErr
	l.pendingErr = nil
	if l.pending == nil {
		return models.Feedback{}, false, err
	}
	fb := *l.pending
	l.pending = nil
	return fb, true, err
}

// LastFeedback returns the most recent base feedback frame, whether or not
// it was consumed by Feedback.
func (l *Link) LastFeedback() (models.Feedback, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last, l.hasLast
}

func (l *Link) connect() error {
	port, err := l.open(l.cfg)
	if err != nil {
		return err
	}
	l.mu.Lock()
	if l.stopped() {
		l.mu.Unlock()
		_ = port.Close()
		return ErrNotConnected
	}
	l.port = port
	l.mu.Unlock()
	l.log.Info("serial link open on %s @ %d", l.cfg.Device, l.cfg.BaudRate)
	return nil
}

func (l *Link) disconnect() {
	l.mu.Lock()
	if l.port != nil {
		_ = l.port.Close()
		l.port = nil
	}
	l.mu.Unlock()
}

func (l *Link) stopped() bool {
	select {
	case <-l.stopCh:
		return true
	default:
		return false
	}
}

func (l *Link) run() {
	defer close(l.doneCh)

	buf := make([]byte, 512)
	var frame []byte
	warned := false
	empty := 0

	for !l.stopped() {
		l.mu.Lock()
		port := l.port
		l.mu.Unlock()

		if port == nil {
			if err := l.connect(); err != nil {
				if !warned {
					l.log.Warn("serial link unavailable, retrying: %v", err)
					warned = true
				}
				select {
				case <-l.stopCh:
					return
				case <-time.After(reopenInterval):
				}
				continue
			}
			warned = false
			empty = 0
			frame = frame[:0]
			continue
		}

		n, err := port.Read(buf)
		if n > 0 {
			empty = 0
			frame = append(frame, buf[:n]...)
			frame = l.consumeFrames(frame)
		} else if err == nil {
			empty++
			if empty < maxEmptyReads {
				continue
			}
			err = io.EOF
		}
		if err == nil {
			continue
		}
		if errors.Is(err, serial.ErrTimeout) {
			empty = 0
			continue
		}
		if l.stopped() {
			return
		}
		l.log.Error("serial read: %v", err)
		l.disconnect()
		select {
		case <-l.stopCh:
			return
		case <-time.After(l.reopenDelay):
		}
	}
}

// consumeFrames handles every complete line in data and returns the
// unterminated remainder.
func (l *Link) consumeFrames(data []byte) []byte {
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		l.handleFrame(data[:idx])
		data = data[idx+1:]
	}
	if len(data) > maxFrameBytes {
		l.log.Warn("dropping %d bytes of unterminated feedback", len(data))
		return nil
	}
	// Copy so the backing array does not grow without bound.
	return append([]byte(nil), data...)
}

func (l *Link) handleFrame(raw []byte) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return
	}

	fb, err := DecodeFeedback(raw)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.pendingErr = err
		return
	}
	l.pending = &fb
	if fb.Type == FeedbackBase || fb.Type == 0 {
		l.last = fb
		l.hasLast = true
	}
}

// DecodeFeedback parses one feedback frame.
func DecodeFeedback(raw []byte) (models.Feedback, error) {
	var fb models.Feedback
	if err := json.Unmarshal(raw, &fb); err != nil {
		return models.Feedback{}, fmt.Errorf("%w: %v", ErrMalformedFeedback, err)
	}
	return fb, nil
}
