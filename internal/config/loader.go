package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"locationagent/internal/logger"
)

// rawConfig is used for unmarshaling with duration strings. JSON keys follow
// the PascalCase of LocationAgent.json, YAML keys are snake_case.
type rawConfig struct {
	Agent         AgentConfig       `json:"Agent" yaml:"agent"`
	Tracking      rawTrackingConfig `json:"Tracking" yaml:"tracking"`
	Provider      rawProviderConfig `json:"Provider" yaml:"provider"`
	Authorization rawAuthConfig     `json:"Authorization" yaml:"authorization"`
	Sources       rawSourcesConfig  `json:"Sources" yaml:"sources"`
	Display       rawDisplayConfig  `json:"Display" yaml:"display"`
	Commands      rawCommandsConfig `json:"Commands" yaml:"commands"`
	Redis         rawRedisConfig    `json:"Redis" yaml:"redis"`
	SOCKSProxy    rawSOCKSConfig    `json:"SocksProxy" yaml:"socks_proxy"`
}

type rawTrackingConfig struct {
	Interval    string `json:"Interval" yaml:"interval"`
	Title       string `json:"Title" yaml:"title"`
	RetryPolicy string `json:"RetryPolicy" yaml:"retry_policy"`
	RetryEvery  string `json:"RetryEvery" yaml:"retry_every"`
	BufferSize  int    `json:"BufferSize" yaml:"buffer_size"`
}

type rawProviderConfig struct {
	Type string `json:"Type" yaml:"type"`
	GPSD struct {
		Address string `json:"Address" yaml:"address"`
	} `json:"GPSD" yaml:"gpsd"`
	NMEA struct {
		PortPath string `json:"PortPath" yaml:"port_path"`
		BaudRate int    `json:"BaudRate" yaml:"baud_rate"`
	} `json:"NMEA" yaml:"nmea"`
	Demo struct {
		CenterLat float64 `json:"CenterLat" yaml:"center_lat"`
		CenterLon float64 `json:"CenterLon" yaml:"center_lon"`
		RadiusDeg float64 `json:"RadiusDeg" yaml:"radius_deg"`
	} `json:"Demo" yaml:"demo"`
}

type rawAuthConfig struct {
	Type       string `json:"Type" yaml:"type"`
	Coarse     bool   `json:"Coarse" yaml:"coarse"`
	Fine       bool   `json:"Fine" yaml:"fine"`
	GrantsPath string `json:"GrantsPath" yaml:"grants_path"`
	RedisKey   string `json:"RedisKey" yaml:"redis_key"`
}

type rawSourcesConfig struct {
	SerialDevices   []string `json:"SerialDevices" yaml:"serial_devices"`
	DetectSerial    *bool    `json:"DetectSerial" yaml:"detect_serial"`
	DaemonProcesses []string `json:"DaemonProcesses" yaml:"daemon_processes"`
	AssumeSatellite bool     `json:"AssumeSatellite" yaml:"assume_satellite"`
	AssumeNetwork   bool     `json:"AssumeNetwork" yaml:"assume_network"`
}

type rawDisplayConfig struct {
	Type       string `json:"Type" yaml:"type"`
	ListenAddr string `json:"ListenAddr" yaml:"listen_addr"`
	MQTT       struct {
		Broker   string `json:"Broker" yaml:"broker"`
		Topic    string `json:"Topic" yaml:"topic"`
		ClientID string `json:"ClientID" yaml:"client_id"`
		Username string `json:"Username" yaml:"username"`
		Password string `json:"Password" yaml:"password"`
		Timeout  string `json:"Timeout" yaml:"timeout"`
	} `json:"MQTT" yaml:"mqtt"`
	File struct {
		FilePath   string `json:"FilePath" yaml:"file_path"`
		Format     string `json:"Format" yaml:"format"`
		MaxSizeMB  int    `json:"MaxSizeMB" yaml:"max_size_mb"`
		MaxBackups int    `json:"MaxBackups" yaml:"max_backups"`
	} `json:"File" yaml:"file"`
}

type rawCommandsConfig struct {
	ControlFile  string `json:"ControlFile" yaml:"control_file"`
	RedisChannel string `json:"RedisChannel" yaml:"redis_channel"`
	Signals      *bool  `json:"Signals" yaml:"signals"`
	QueueSize    int    `json:"QueueSize" yaml:"queue_size"`
}

type rawRedisConfig struct {
	Address  string `json:"Address" yaml:"address"`
	Password string `json:"Password" yaml:"password"`
	DB       int    `json:"DB" yaml:"db"`
}

type rawSOCKSConfig struct {
	Host string `json:"Host" yaml:"host"`
	Port int    `json:"Port" yaml:"port"`
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func unmarshal(data []byte, asYAML bool, v interface{}) error {
	if asYAML {
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

// Load reads configuration from the specified file path. Files ending in
// .yaml or .yml are parsed as YAML, anything else as JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if isYAML(path) {
		return ParseYAML(data)
	}
	return Parse(data)
}

// Parse parses configuration from JSON bytes.
func Parse(data []byte) (*Config, error) {
	return parse(data, false)
}

// ParseYAML parses configuration from YAML bytes.
func ParseYAML(data []byte) (*Config, error) {
	return parse(data, true)
}

func parse(data []byte, asYAML bool) (*Config, error) {
	var raw rawConfig
	if err := unmarshal(data, asYAML, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := DefaultConfig()
	parsed, err := convertRawConfig(&raw, cfg)
	if err != nil {
		return nil, err
	}

	cfg.Merge(parsed)
	return cfg, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", field, err)
	}
	return d, nil
}

// boolOr returns *b, or def when the key was absent.
func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func convertRawConfig(raw *rawConfig, def *Config) (*Config, error) {
	cfg := &Config{
		Agent: raw.Agent,
		Tracking: TrackingConfig{
			Title:       raw.Tracking.Title,
			RetryPolicy: raw.Tracking.RetryPolicy,
			BufferSize:  raw.Tracking.BufferSize,
		},
		Provider: ProviderConfig{
			Type: raw.Provider.Type,
			GPSD: GPSDConfig{Address: raw.Provider.GPSD.Address},
			NMEA: NMEAConfig{PortPath: raw.Provider.NMEA.PortPath, BaudRate: raw.Provider.NMEA.BaudRate},
			Demo: DemoConfig{
				CenterLat: raw.Provider.Demo.CenterLat,
				CenterLon: raw.Provider.Demo.CenterLon,
				RadiusDeg: raw.Provider.Demo.RadiusDeg,
			},
		},
		Authorization: AuthorizationConfig(raw.Authorization),
		Sources: SourcesConfig{
			SerialDevices:   raw.Sources.SerialDevices,
			DetectSerial:    boolOr(raw.Sources.DetectSerial, def.Sources.DetectSerial),
			DaemonProcesses: raw.Sources.DaemonProcesses,
			AssumeSatellite: raw.Sources.AssumeSatellite,
			AssumeNetwork:   raw.Sources.AssumeNetwork,
		},
		Display: DisplayConfig{
			Type:       raw.Display.Type,
			ListenAddr: raw.Display.ListenAddr,
			MQTT: MQTTConfig{
				Broker:   raw.Display.MQTT.Broker,
				Topic:    raw.Display.MQTT.Topic,
				ClientID: raw.Display.MQTT.ClientID,
				Username: raw.Display.MQTT.Username,
				Password: raw.Display.MQTT.Password,
			},
			File: StatusFileConfig(raw.Display.File),
		},
		Commands: CommandsConfig{
			ControlFile:  raw.Commands.ControlFile,
			RedisChannel: raw.Commands.RedisChannel,
			Signals:      boolOr(raw.Commands.Signals, def.Commands.Signals),
			QueueSize:    raw.Commands.QueueSize,
		},
		Redis:      RedisConfig(raw.Redis),
		SOCKSProxy: SOCKSConfig(raw.SOCKSProxy),
	}

	var err error
	if cfg.Tracking.Interval, err = parseDuration("Tracking.Interval", raw.Tracking.Interval); err != nil {
		return nil, err
	}
	if cfg.Tracking.RetryEvery, err = parseDuration("Tracking.RetryEvery", raw.Tracking.RetryEvery); err != nil {
		return nil, err
	}
	if cfg.Display.MQTT.Timeout, err = parseDuration("Display.MQTT.Timeout", raw.Display.MQTT.Timeout); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadLogging reads logging configuration from the specified file path.
func LoadLogging(path string) (*logger.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read logging config file: %w", err)
	}
	return parseLogging(data, isYAML(path))
}

// ParseLogging parses logging configuration from JSON bytes.
func ParseLogging(data []byte) (*logger.Config, error) {
	return parseLogging(data, false)
}

func parseLogging(data []byte, asYAML bool) (*logger.Config, error) {
	var parsed logger.Config
	if err := unmarshal(data, asYAML, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse logging config: %w", err)
	}

	def := logger.DefaultConfig()
	if parsed.Level != "" {
		def.Level = parsed.Level
	}
	if parsed.FilePath != "" {
		def.FilePath = parsed.FilePath
	}
	if parsed.Format != "" {
		def.Format = parsed.Format
	}
	if parsed.MaxSizeMB != 0 {
		def.MaxSizeMB = parsed.MaxSizeMB
	}
	if parsed.MaxBackups != 0 {
		def.MaxBackups = parsed.MaxBackups
	}
	if parsed.MaxAgeDays != 0 {
		def.MaxAgeDays = parsed.MaxAgeDays
	}
	def.Compress = parsed.Compress
	def.Console = parsed.Console

	return &def, nil
}

// LoadSplit loads configuration from two separate files:
// configPath (LocationAgent.json) and loggingPath (Logging.json).
// The agent configuration is validated.
func LoadSplit(configPath, loggingPath string) (*Config, *logger.Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	lc, err := LoadLogging(loggingPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load logging config: %w", err)
	}

	return cfg, lc, nil
}
