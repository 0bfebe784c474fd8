// Package mqttsink mirrors published telemetry snapshots to an MQTT broker.
package mqttsink

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"statusmonitor/internal/logger"
	"statusmonitor/internal/models"
)

// ErrNotConnected is returned while the broker connection is down.
var ErrNotConnected = errors.New("mqtt: not connected")

const publishTimeout = 2 * time.Second

// Config selects the broker and topic.
type Config struct {
	Broker   string
	Topic    string
	ClientID string
}

// Sink publishes each snapshot as a retained JSON message with QoS 0.
type Sink struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
}

// Dial creates a client that connects in the background and keeps
// reconnecting; an unreachable broker never blocks startup.
func Dial(cfg Config, log logger.Logger) *Sink {
	if log == nil {
		log = logger.Noop()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Info("connected to %s", cfg.Broker)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn("connection to %s lost: %v", cfg.Broker, err)
		})

	client := mqtt.NewClient(opts)
	client.Connect()
	return New(client, cfg.Topic)
}

// New wraps an existing client.
func New(client mqtt.Client, topic string) *Sink {
	return &Sink{client: client, topic: topic, timeout: publishTimeout}
}

// Name identifies the sink in logs.
func (s *Sink) Name() string { return "mqtt" }

// Publish sends the push payload of snap to the configured topic.
func (s *Sink) Publish(snap models.Snapshot) error {
	if !s.client.IsConnected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(snap.Update())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	token := s.client.Publish(s.topic, 0, true, payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("publish to %s: timed out after %s", s.topic, s.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", s.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (s *Sink) Close() {
	s.client.Disconnect(250)
}
