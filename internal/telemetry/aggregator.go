package telemetry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"statusmonitor/internal/logger"
	"statusmonitor/internal/metrics"
	"statusmonitor/internal/models"
)

// Default loop cadences.
const (
	DefaultFeedbackInterval = 100 * time.Millisecond
	DefaultPublishInterval  = 5 * time.Second
)

// FeedbackSource is the part of the hardware link the aggregator reads.
type FeedbackSource interface {
	// Feedback returns the newest frame since the previous call; false when
	// nothing new arrived. An error may accompany a valid frame.
	Feedback() (models.Feedback, bool, error)
	// LastFeedback returns the most recent base frame seen on the link.
	LastFeedback() (models.Feedback, bool)
}

// NetworkSource reports the host's network state.
type NetworkSource interface {
	Network() (models.Network, error)
}

// Sink consumes published snapshots.
type Sink interface {
	Name() string
	Publish(snap models.Snapshot) error
}

// Config tunes the aggregator loops.
type Config struct {
	FeedbackInterval time.Duration
	PublishInterval  time.Duration
	// Started is the process start time uptime is measured from.
	Started time.Time
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Aggregator keeps the shared State current and fans published snapshots out
// to sinks. The feedback and publish loops are independent: a failure or a
// stall in one does not affect the other.
type Aggregator struct {
	cfg     Config
	state   *State
	link    FeedbackSource
	network NetworkSource
	sinks   []Sink
	uptime  *metrics.Uptime
	log     logger.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New wires an aggregator around an existing state.
func New(cfg Config, state *State, link FeedbackSource, network NetworkSource, log logger.Logger, sinks ...Sink) *Aggregator {
	if cfg.FeedbackInterval <= 0 {
		cfg.FeedbackInterval = DefaultFeedbackInterval
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = DefaultPublishInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Started.IsZero() {
		cfg.Started = cfg.Now()
	}
	if state == nil {
		state = NewState()
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Aggregator{
		cfg:     cfg,
		state:   state,
		link:    link,
		network: network,
		sinks:   sinks,
		uptime:  metrics.NewUptime(cfg.Started, cfg.Now),
		log:     log,
		stopCh:  make(chan struct{}),
	}
}

// Start launches both polling loops. Each runs one iteration immediately.
func (a *Aggregator) Start() {
	a.wg.Add(2)
	go a.loop("feedback", a.cfg.FeedbackInterval, a.PollHardwareFeedback)
	go a.loop("publish", a.cfg.PublishInterval, func() error {
		_, err := a.PollAndPublish()
		return err
	})
}

// Stop requests both loops to terminate and waits until they are done.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
	a.wg.Wait()
}

// Current returns the live shared snapshot, including gimbal angles newer
// than the last publish.
func (a *Aggregator) Current() models.Snapshot {
	return a.state.Snapshot()
}

// PollHardwareFeedback applies the newest feedback frame, if any, to the
// gimbal fields. A frame delivered together with an error is still applied.
func (a *Aggregator) PollHardwareFeedback() error {
	fb, ok, err := a.link.Feedback()
	if ok && a.state.ApplyFeedback(fb) {
		snap := a.state.Snapshot()
		a.log.Debug("gimbal pan=%v tilt=%v", snap.PanAngle, snap.TiltAngle)
	}
	if err != nil {
		return fmt.Errorf("read feedback: %w", err)
	}
	return nil
}

// PollAndPublish refreshes uptime, network and voltage, then hands a copy of
// the snapshot to every sink. A failing step is reported but does not stop
// the cycle; stale values are published in its place.
func (a *Aggregator) PollAndPublish() (models.Snapshot, error) {
	var errs []error

	if a.network != nil {
		n, err := a.network.Network()
		if err != nil {
			errs = append(errs, fmt.Errorf("read network: %w", err))
		} else {
			a.state.SetNetwork(n)
		}
	}

	voltage := 0.0
	if last, ok := a.link.LastFeedback(); ok {
		voltage = last.VoltageOrZero()
	}
	a.state.SetHousekeeping(voltage, a.uptime.Elapsed())

	snap := a.state.Snapshot()
	if err := a.fanOut(snap); err != nil {
		errs = append(errs, err)
	}
	return snap, errors.Join(errs...)
}

// fanOut publishes to all sinks concurrently and waits for them.
func (a *Aggregator) fanOut(snap models.Snapshot) error {
	if len(a.sinks) == 0 {
		return nil
	}

	errs := make([]error, len(a.sinks))
	var wg sync.WaitGroup
	for i, sink := range a.sinks {
		wg.Add(1)
		go func(i int, sink Sink) {
			defer wg.Done()
			errs[i] = safeCall(func() error { return sink.Publish(snap) })
			if errs[i] != nil {
				errs[i] = fmt.Errorf("sink %s: %w", sink.Name(), errs[i])
			}
		}(i, sink)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (a *Aggregator) loop(name string, interval time.Duration, iteration func() error) {
	defer a.wg.Done()

	if err := safeCall(iteration); err != nil {
		a.log.Warn("%s poll failed: %v", name, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := safeCall(iteration); err != nil {
				a.log.Warn("%s poll failed: %v", name, err)
			}
		case <-a.stopCh:
			return
		}
	}
}

// safeCall runs fn and turns a panic into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
