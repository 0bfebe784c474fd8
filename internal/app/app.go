// Package app wires the status monitor together and runs its startup
// sequence: boot banner, system probe, telemetry loops, controller
// initialisation, then the dashboard server.
package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"statusmonitor/internal/config"
	"statusmonitor/internal/display"
	"statusmonitor/internal/hardware"
	"statusmonitor/internal/logger"
	"statusmonitor/internal/server"
	"statusmonitor/internal/telemetry"
)

const (
	// DefaultCommandDelay separates the controller initialisation commands.
	DefaultCommandDelay = 100 * time.Millisecond
	// DefaultShutdownTimeout bounds the graceful HTTP shutdown.
	DefaultShutdownTimeout = 5 * time.Second
)

// HardwareLink is the controller channel the service needs.
type HardwareLink interface {
	telemetry.FeedbackSource
	display.LineWriter
	Send(cmd hardware.Command) error
	Start()
	Stop()
}

// NetworkProbe is the background network sampler.
type NetworkProbe interface {
	telemetry.NetworkSource
	Start()
	Stop()
}

// Options carries the loaded configuration and loop timings.
type Options struct {
	Config           config.Config
	CommandDelay     time.Duration
	FeedbackInterval time.Duration
	PublishInterval  time.Duration
	Started          time.Time
	AccessLog        io.Writer
}

// App owns every long-running component.
type App struct {
	opts   Options
	link   HardwareLink
	probe  NetworkProbe
	agg    *telemetry.Aggregator
	hub    *server.Hub
	server *server.Server
	log    logger.Logger
}

// New builds the aggregator, the push hub and the HTTP server. extra sinks
// (e.g. MQTT) receive every published snapshot alongside the display and the
// dashboards.
func New(opts Options, link HardwareLink, probe NetworkProbe, extra ...telemetry.Sink) *App {
	debug := opts.Config.Logging.Debug
	hub := server.NewHub(logger.New("[push]", debug))

	sinks := append([]telemetry.Sink{display.New(link), hub}, extra...)
	agg := telemetry.New(telemetry.Config{
		FeedbackInterval: opts.FeedbackInterval,
		PublishInterval:  opts.PublishInterval,
		Started:          opts.Started,
	}, telemetry.NewState(), link, probe, logger.New("[telemetry]", debug), sinks...)

	return &App{
		opts:   opts,
		link:   link,
		probe:  probe,
		agg:    agg,
		hub:    hub,
		server: server.New(opts.Config.HTTP.Addr, agg, hub, opts.AccessLog, logger.New("[http]", debug)),
		log:    logger.New("[app]", debug),
	}
}

// Start runs the startup sequence up to, but not including, serving HTTP.
// Hardware failures along the way are logged and never abort startup.
func (a *App) Start() {
	a.link.Start()

	base := a.opts.Config.Base
	if err := display.ShowBoot(a.link, base.RobotName, base.SBCVersion); err != nil {
		a.log.Warn("boot banner: %v", err)
	}

	a.probe.Start()
	a.agg.Start()
	a.sendInitCommands()
}

// Run starts the service and serves the dashboard until ctx is done, then
// shuts everything down. Cancellation during startup takes effect as soon as
// startup returns.
func (a *App) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	a.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.Serve)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Serve blocks serving the dashboard until Shutdown.
func (a *App) Serve() error {
	a.log.Info("dashboard listening on %s", a.opts.Config.HTTP.Addr)
	if err := a.server.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler exposes the HTTP handler chain.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Aggregator exposes the telemetry aggregator.
func (a *App) Aggregator() *telemetry.Aggregator {
	return a.agg
}

// Shutdown stops the server, the loops and the collaborators.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	a.agg.Stop()
	a.probe.Stop()
	a.link.Stop()
	return err
}

func (a *App) sendInitCommands() {
	for _, cmd := range hardware.InitSequence() {
		if err := a.link.Send(cmd); err != nil {
			a.log.Warn("init command %d: %v", cmd.Code(), err)
		} else {
			a.log.Info("sent init command %d", cmd.Code())
		}
		time.Sleep(a.opts.CommandDelay)
	}
}
