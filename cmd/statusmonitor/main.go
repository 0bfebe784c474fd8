package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"statusmonitor/internal/app"
	"statusmonitor/internal/config"
	"statusmonitor/internal/hardware"
	"statusmonitor/internal/logger"
	"statusmonitor/internal/mqttsink"
	"statusmonitor/internal/sysinfo"
	"statusmonitor/internal/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "config.yaml", "path to configuration file (YAML)")
		addr       = flag.String("addr", "", "address for the web server (overrides http.addr)")
	)
	flag.Parse()

	started := time.Now()
	device := hardware.DetectSerialDevice(hardware.CPUInfoPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if cfg.Serial.Device != "" {
		device = cfg.Serial.Device
	}

	// Signals during startup take effect once Start returns.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := logger.Output(cfg.Logging.File, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)
	log.SetOutput(out)
	debug := cfg.Logging.Debug
	logger.New("[main]", debug).Info("starting status monitor for %q (serial %s)", cfg.Base.RobotName, device)

	link := hardware.NewLink(hardware.Config{
		Device:      device,
		BaudRate:    cfg.Serial.BaudRate,
		ReadTimeout: time.Duration(cfg.Serial.ReadTimeoutMs) * time.Millisecond,
	}, hardware.OpenSerial, logger.New("[serial]", debug))

	probe := sysinfo.New(sysinfo.Config{
		WiFiInterface:     cfg.Network.WiFiInterface,
		EthernetInterface: cfg.Network.EthernetInterface,
		Interval:          time.Duration(cfg.Network.RefreshSeconds) * time.Second,
	}, nil, nil, logger.New("[sysinfo]", debug))

	var extra []telemetry.Sink
	if cfg.MQTT.Enabled() {
		mq := mqttsink.Dial(mqttsink.Config{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
		}, logger.New("[mqtt]", debug))
		defer mq.Close()
		extra = append(extra, mq)
	}

	svc := app.New(app.Options{
		Config:       cfg,
		CommandDelay: app.DefaultCommandDelay,
		Started:      started,
		AccessLog:    out,
	}, link, probe, extra...)

	if err := svc.Run(ctx, app.DefaultShutdownTimeout); err != nil {
		log.Printf("server error: %v", err)
		return 1
	}
	return 0
}
