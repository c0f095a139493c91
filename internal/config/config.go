// Package config provides configuration management for the LocationAgent.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the root configuration structure (LocationAgent.json).
type Config struct {
	Agent         AgentConfig
	Tracking      TrackingConfig
	Provider      ProviderConfig
	Authorization AuthorizationConfig
	Sources       SourcesConfig
	Display       DisplayConfig
	Commands      CommandsConfig
	Redis         RedisConfig
	SOCKSProxy    SOCKSConfig
}

// AgentConfig identifies this agent.
type AgentConfig struct {
	ID string // defaults to the hostname
}

// TrackingConfig controls the tracking controller.
type TrackingConfig struct {
	Interval    time.Duration
	Title       string
	RetryPolicy string // "never" or "interval"
	RetryEvery  time.Duration
	BufferSize  int
}

// ProviderConfig selects the positioning provider.
type ProviderConfig struct {
	Type string // "gpsd", "nmea" or "demo"
	GPSD GPSDConfig
	NMEA NMEAConfig
	Demo DemoConfig
}

// GPSDConfig holds the gpsd daemon address.
type GPSDConfig struct {
	Address string
}

// NMEAConfig holds the serial receiver settings.
type NMEAConfig struct {
	PortPath string
	BaudRate int
}

// DemoConfig centers the simulated drive.
type DemoConfig struct {
	CenterLat float64
	CenterLon float64
	RadiusDeg float64
}

// AuthorizationConfig selects where location grants come from.
type AuthorizationConfig struct {
	Type       string // "static", "file" or "redis"
	Coarse     bool
	Fine       bool
	GrantsPath string
	RedisKey   string
}

// SourcesConfig describes which positioning sources count as enabled.
type SourcesConfig struct {
	SerialDevices   []string
	DetectSerial    bool
	DaemonProcesses []string
	AssumeSatellite bool
	AssumeNetwork   bool
}

// DisplayConfig selects the status display.
type DisplayConfig struct {
	Type       string // "log", "websocket", "mqtt" or "file"
	ListenAddr string
	MQTT       MQTTConfig
	File       StatusFileConfig
}

// StatusFileConfig holds the file status display settings.
type StatusFileConfig struct {
	FilePath   string
	Format     string // "json" or "text"
	MaxSizeMB  int
	MaxBackups int
}

// MQTTConfig holds the MQTT status display settings.
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	Timeout  time.Duration
}

// CommandsConfig lists the sources of START/STOP commands.
type CommandsConfig struct {
	ControlFile  string
	RedisChannel string
	Signals      bool
	QueueSize    int
}

// RedisConfig contains Redis connection settings shared by the Redis
// authorizer and the Redis command source.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// Enabled reports whether a Redis server is configured.
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// SOCKSConfig contains SOCKS5 proxy settings.
type SOCKSConfig struct {
	Host string
	Port int
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Tracking: TrackingConfig{
			Interval:    10 * time.Second,
			Title:       "Tracking location...",
			RetryPolicy: "never",
			RetryEvery:  30 * time.Second,
			BufferSize:  64,
		},
		Provider: ProviderConfig{
			Type: "gpsd",
			GPSD: GPSDConfig{Address: "localhost:2947"},
			NMEA: NMEAConfig{PortPath: "/dev/ttyACM0", BaudRate: 9600},
			Demo: DemoConfig{CenterLat: 43.6532, CenterLon: -79.3832, RadiusDeg: 0.005},
		},
		Authorization: AuthorizationConfig{
			Type:     "static",
			RedisKey: "LOCATION_GRANTS",
		},
		Sources: SourcesConfig{
			DetectSerial:    true,
			DaemonProcesses: []string{"gpsd"},
		},
		Display: DisplayConfig{
			Type:       "log",
			ListenAddr: ":8080",
			MQTT: MQTTConfig{
				Broker:   "tcp://localhost:1883",
				Topic:    "locationagent/status",
				ClientID: "locationagent",
				Timeout:  5 * time.Second,
			},
			File: StatusFileConfig{
				FilePath:   "log/LocationAgent/status.log",
				Format:     "json",
				MaxSizeMB:  10,
				MaxBackups: 3,
			},
		},
		Commands: CommandsConfig{
			ControlFile:  "conf/LocationAgent/control",
			RedisChannel: "locationagent:commands",
			Signals:      true,
			QueueSize:    16,
		},
		Redis: RedisConfig{
			DB: 0,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Tracking.Interval <= 0 {
		return fmt.Errorf("Tracking.Interval must be positive, got %v", c.Tracking.Interval)
	}
	switch strings.ToLower(c.Tracking.RetryPolicy) {
	case "never", "":
	case "interval":
		if c.Tracking.RetryEvery <= 0 {
			return fmt.Errorf("Tracking.RetryEvery must be positive with retry policy %q", c.Tracking.RetryPolicy)
		}
	default:
		return fmt.Errorf("unknown Tracking.RetryPolicy %q (supported: never, interval)", c.Tracking.RetryPolicy)
	}

	switch strings.ToLower(c.Provider.Type) {
	case "gpsd", "demo":
	case "nmea":
		if c.Provider.NMEA.PortPath == "" {
			return fmt.Errorf("Provider.NMEA.PortPath is required for provider type nmea")
		}
	default:
		return fmt.Errorf("unknown Provider.Type %q (supported: gpsd, nmea, demo)", c.Provider.Type)
	}

	switch strings.ToLower(c.Authorization.Type) {
	case "static":
	case "file":
		if c.Authorization.GrantsPath == "" {
			return fmt.Errorf("Authorization.GrantsPath is required for authorization type file")
		}
	case "redis":
		if !c.Redis.Enabled() {
			return fmt.Errorf("Redis.Address is required for authorization type redis")
		}
	default:
		return fmt.Errorf("unknown Authorization.Type %q (supported: static, file, redis)", c.Authorization.Type)
	}

	switch strings.ToLower(c.Display.Type) {
	case "log", "websocket", "mqtt":
	case "file":
		if c.Display.File.FilePath == "" {
			return fmt.Errorf("Display.File.FilePath is required for display type file")
		}
		switch strings.ToLower(c.Display.File.Format) {
		case "json", "text":
		default:
			return fmt.Errorf("unknown Display.File.Format %q (supported: json, text)", c.Display.File.Format)
		}
	default:
		return fmt.Errorf("unknown Display.Type %q (supported: log, websocket, mqtt, file)", c.Display.Type)
	}

	return nil
}

// Merge applies non-zero values from other to this config. Booleans are
// always taken from other.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Agent.ID != "" {
		c.Agent.ID = other.Agent.ID
	}

	t := other.Tracking
	if t.Interval != 0 {
		c.Tracking.Interval = t.Interval
	}
	if t.Title != "" {
		c.Tracking.Title = t.Title
	}
	if t.RetryPolicy != "" {
		c.Tracking.RetryPolicy = t.RetryPolicy
	}
	if t.RetryEvery != 0 {
		c.Tracking.RetryEvery = t.RetryEvery
	}
	if t.BufferSize != 0 {
		c.Tracking.BufferSize = t.BufferSize
	}

	p := other.Provider
	if p.Type != "" {
		c.Provider.Type = p.Type
	}
	if p.GPSD.Address != "" {
		c.Provider.GPSD.Address = p.GPSD.Address
	}
	if p.NMEA.PortPath != "" {
		c.Provider.NMEA.PortPath = p.NMEA.PortPath
	}
	if p.NMEA.BaudRate != 0 {
		c.Provider.NMEA.BaudRate = p.NMEA.BaudRate
	}
	if p.Demo.CenterLat != 0 || p.Demo.CenterLon != 0 {
		c.Provider.Demo.CenterLat = p.Demo.CenterLat
		c.Provider.Demo.CenterLon = p.Demo.CenterLon
	}
	if p.Demo.RadiusDeg != 0 {
		c.Provider.Demo.RadiusDeg = p.Demo.RadiusDeg
	}

	a := other.Authorization
	if a.Type != "" {
		c.Authorization.Type = a.Type
	}
	c.Authorization.Coarse = a.Coarse
	c.Authorization.Fine = a.Fine
	if a.GrantsPath != "" {
		c.Authorization.GrantsPath = a.GrantsPath
	}
	if a.RedisKey != "" {
		c.Authorization.RedisKey = a.RedisKey
	}

	s := other.Sources
	if len(s.SerialDevices) > 0 {
		c.Sources.SerialDevices = s.SerialDevices
	}
	c.Sources.DetectSerial = s.DetectSerial
	if len(s.DaemonProcesses) > 0 {
		c.Sources.DaemonProcesses = s.DaemonProcesses
	}
	c.Sources.AssumeSatellite = s.AssumeSatellite
	c.Sources.AssumeNetwork = s.AssumeNetwork

	d := other.Display
	if d.Type != "" {
		c.Display.Type = d.Type
	}
	if d.ListenAddr != "" {
		c.Display.ListenAddr = d.ListenAddr
	}
	if d.MQTT.Broker != "" {
		c.Display.MQTT.Broker = d.MQTT.Broker
	}
	if d.MQTT.Topic != "" {
		c.Display.MQTT.Topic = d.MQTT.Topic
	}
	if d.MQTT.ClientID != "" {
		c.Display.MQTT.ClientID = d.MQTT.ClientID
	}
	if d.MQTT.Username != "" {
		c.Display.MQTT.Username = d.MQTT.Username
	}
	if d.MQTT.Password != "" {
		c.Display.MQTT.Password = d.MQTT.Password
	}
	if d.MQTT.Timeout != 0 {
		c.Display.MQTT.Timeout = d.MQTT.Timeout
	}
	if d.File.FilePath != "" {
		c.Display.File.FilePath = d.File.FilePath
	}
	if d.File.Format != "" {
		c.Display.File.Format = d.File.Format
	}
	if d.File.MaxSizeMB != 0 {
		c.Display.File.MaxSizeMB = d.File.MaxSizeMB
	}
	if d.File.MaxBackups != 0 {
		c.Display.File.MaxBackups = d.File.MaxBackups
	}

	cm := other.Commands
	if cm.ControlFile != "" {
		c.Commands.ControlFile = cm.ControlFile
	}
	if cm.RedisChannel != "" {
		c.Commands.RedisChannel = cm.RedisChannel
	}
	c.Commands.Signals = cm.Signals
	if cm.QueueSize != 0 {
		c.Commands.QueueSize = cm.QueueSize
	}

	if other.Redis.Address != "" {
		c.Redis.Address = other.Redis.Address
	}
	if other.Redis.Password != "" {
		c.Redis.Password = other.Redis.Password
	}
	if other.Redis.DB != 0 {
		c.Redis.DB = other.Redis.DB
	}

	if other.SOCKSProxy.Host != "" {
		c.SOCKSProxy.Host = other.SOCKSProxy.Host
	}
	if other.SOCKSProxy.Port != 0 {
		c.SOCKSProxy.Port = other.SOCKSProxy.Port
	}
}

// GetHostname returns the system hostname or "unknown".
func GetHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

// GetAgentID returns Agent.ID, falling back to the hostname.
func GetAgentID(cfg *Config) string {
	if cfg.Agent.ID != "" {
		return cfg.Agent.ID
	}
	return GetHostname()
}
