package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents configuration data for the status monitor.
type Config struct {
	Base    BaseConfig    `yaml:"base_config"`
	Serial  SerialConfig  `yaml:"serial"`
	Network NetworkConfig `yaml:"network"`
	HTTP    HTTPConfig    `yaml:"http"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Logging LoggingConfig `yaml:"logging"`
}

// BaseConfig holds the strings shown on the robot's display at boot.
type BaseConfig struct {
	RobotName  string `yaml:"robot_name"`
	SBCVersion string `yaml:"sbc_version"`
}

// SerialConfig describes the link to the motion controller. An empty Device
// means the path is detected from the board model.
type SerialConfig struct {
	Device        string `yaml:"device"`
	BaudRate      int    `yaml:"baud_rate"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
}

// NetworkConfig names the interfaces the system probe reports on.
type NetworkConfig struct {
	WiFiInterface     string `yaml:"wifi_interface"`
	EthernetInterface string `yaml:"ethernet_interface"`
	RefreshSeconds    int    `yaml:"refresh_seconds"`
}

// HTTPConfig configures the dashboard listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MQTTConfig enables the optional MQTT mirror of published snapshots.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// Enabled reports whether a broker was configured.
func (c MQTTConfig) Enabled() bool {
	return strings.TrimSpace(c.Broker) != ""
}

// LoggingConfig selects where logs go.
type LoggingConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Debug      bool   `yaml:"debug"`
}

// DefaultConfig returns the values used for every field the file leaves out.
func DefaultConfig() Config {
	return Config{
		Serial: SerialConfig{
			BaudRate:      115200,
			ReadTimeoutMs: 500,
		},
		Network: NetworkConfig{
			WiFiInterface:     "wlan0",
			EthernetInterface: "eth0",
			RefreshSeconds:    2,
		},
		HTTP: HTTPConfig{Addr: ":5000"},
		MQTT: MQTTConfig{
			Topic:    "robot/status",
			ClientID: "statusmonitor",
		},
		Logging: LoggingConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load reads configuration from a yaml file. The display name and version
// label are required, so a missing or incomplete file is an error.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is required")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	defaults := DefaultConfig()
	if cfg.Serial.BaudRate <= 0 {
		cfg.Serial.BaudRate = defaults.Serial.BaudRate
	}
	if cfg.Serial.ReadTimeoutMs <= 0 {
		cfg.Serial.ReadTimeoutMs = defaults.Serial.ReadTimeoutMs
	}
	if cfg.Network.WiFiInterface == "" {
		cfg.Network.WiFiInterface = defaults.Network.WiFiInterface
	}
	if cfg.Network.EthernetInterface == "" {
		cfg.Network.EthernetInterface = defaults.Network.EthernetInterface
	}
	if cfg.Network.RefreshSeconds <= 0 {
		cfg.Network.RefreshSeconds = defaults.Network.RefreshSeconds
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = defaults.HTTP.Addr
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = defaults.MQTT.Topic
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = defaults.MQTT.ClientID
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		cfg.Logging.MaxSizeMB = defaults.Logging.MaxSizeMB
	}
	if cfg.Logging.MaxBackups < 0 {
		cfg.Logging.MaxBackups = defaults.Logging.MaxBackups
	}

	if strings.TrimSpace(cfg.Base.RobotName) == "" {
		return Config{}, errors.New("base_config.robot_name is required")
	}
	if strings.TrimSpace(cfg.Base.SBCVersion) == "" {
		return Config{}, errors.New("base_config.sbc_version is required")
	}
	return cfg, nil
}
