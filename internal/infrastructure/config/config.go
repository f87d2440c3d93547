package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the valve daemon.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Valve     ValveConfig     `yaml:"valve"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig describes the device shown in Home Assistant.
type DeviceConfig struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	Manufacturer     string `yaml:"manufacturer"`
	Model            string `yaml:"model"`
	SWVersion        string `yaml:"sw_version"`
	ConfigurationURL string `yaml:"configuration_url"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// DiscoveryConfig contains Home Assistant MQTT discovery settings.
type DiscoveryConfig struct {
	// Prefix is the discovery prefix Home Assistant listens on.
	Prefix string `yaml:"prefix"`

	// DataPrefix is the root of the state, command and availability topics.
	DataPrefix string `yaml:"data_prefix"`

	// ExtendedUniqueIDs prefixes unique IDs with the device ID.
	ExtendedUniqueIDs bool `yaml:"extended_unique_ids"`
}

// ValveConfig describes the valve entity.
type ValveConfig struct {
	// UniqueID identifies the entity. Derived from the device ID when empty.
	UniqueID    string `yaml:"unique_id"`
	Name        string `yaml:"name"`
	ObjectID    string `yaml:"object_id"`
	DeviceClass string `yaml:"device_class"`
	Icon        string `yaml:"icon"`
	Retain      bool   `yaml:"retain"`
	Optimistic  bool   `yaml:"optimistic"`

	PositionReporting bool `yaml:"position_reporting"`
	StopSupport       bool `yaml:"stop_support"`
	PositionOpen      int  `yaml:"position_open"`
	PositionClosed    int  `yaml:"position_closed"`

	Actuator ActuatorConfig `yaml:"actuator"`
}

// ActuatorConfig selects what moves the valve.
type ActuatorConfig struct {
	// Type is "echo" (simulated) or "modbus".
	Type   string       `yaml:"type"`
	Modbus ModbusConfig `yaml:"modbus"`
}

// ModbusConfig contains Modbus relay settings.
type ModbusConfig struct {
	// Mode is "tcp" or "rtu".
	Mode      string `yaml:"mode"`
	TCPHost   string `yaml:"tcp_host"`
	TCPPort   int    `yaml:"tcp_port"`
	RTUDevice string `yaml:"rtu_device"`
	RTUBaud   int    `yaml:"rtu_baud"`
	SlaveID   int    `yaml:"slave_id"`
	Timeout   int    `yaml:"timeout"`

	// OpenCoil is the coil driving the valve open when on.
	OpenCoil int `yaml:"open_coil"`

	// StopCoil halts travel when pulsed. Negative disables stop.
	StopCoil int `yaml:"stop_coil"`

	// PositionRegister is the holding register taking a target position.
	// Negative disables positioning.
	PositionRegister int `yaml:"position_register"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryLimit bounds the number of state history rows kept. 0 keeps all.
	HistoryLimit int `yaml:"history_limit"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// JWTSecret enables bearer authentication of state changes when set.
	JWTSecret string `yaml:"jwt_secret"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Actuator types.
const (
	ActuatorEcho   = "echo"
	ActuatorModbus = "modbus"
)

const minJWTSecretLength = 32

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//  4. Derived values (unique ID from the device ID)
//
// Environment variables follow the pattern: VALVE_SECTION_KEY
// For example: VALVE_MQTT_HOST, VALVE_DATABASE_PATH
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:           "valve-001",
			Name:         "Gray Logic Valve",
			Manufacturer: "Gray Logic",
			Model:        "valved",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "gray-logic-valve",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Discovery: DiscoveryConfig{
			Prefix:     "homeassistant",
			DataPrefix: "graylogic",
		},
		Valve: ValveConfig{
			PositionOpen:   100,
			PositionClosed: 0,
			Actuator: ActuatorConfig{
				Type: ActuatorEcho,
				Modbus: ModbusConfig{
					Mode:             "tcp",
					TCPPort:          502,
					RTUBaud:          9600,
					SlaveID:          1,
					Timeout:          3,
					StopCoil:         -1,
					PositionRegister: -1,
				},
			},
		},
		Database: DatabaseConfig{
			Path:         "./data/valve.db",
			WALMode:      true,
			BusyTimeout:  5,
			HistoryLimit: 10000,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VALVE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("VALVE_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// MQTT
	if v := os.Getenv("VALVE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VALVE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("VALVE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VALVE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Valve
	if v := os.Getenv("VALVE_UNIQUE_ID"); v != "" {
		cfg.Valve.UniqueID = v
	}

	// Database
	if v := os.Getenv("VALVE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("VALVE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("VALVE_JWT_SECRET"); v != "" {
		cfg.API.JWTSecret = v
	}

	// InfluxDB
	if v := os.Getenv("VALVE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// applyDerived fills values computed from other settings.
func (c *Config) applyDerived() {
	if c.Valve.UniqueID == "" && c.Device.ID != "" {
		c.Valve.UniqueID = DefaultUniqueID(c.Device.ID)
	}
}

// DefaultUniqueID returns a stable unique ID for the valve of a device.
// The same device ID always yields the same value.
func DefaultUniqueID(deviceID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(deviceID+"/valve")).String()
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Device and discovery
	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}
	for key, v := range map[string]string{
		"device.id":             c.Device.ID,
		"discovery.prefix":      c.Discovery.Prefix,
		"discovery.data_prefix": c.Discovery.DataPrefix,
		"valve.unique_id":       c.Valve.UniqueID,
	} {
		if strings.ContainsAny(v, "+#/") {
			errs = append(errs, key+" must not contain '/', '+' or '#'")
		}
	}
	if c.Discovery.Prefix == "" {
		errs = append(errs, "discovery.prefix is required")
	}
	if c.Discovery.DataPrefix == "" {
		errs = append(errs, "discovery.data_prefix is required")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	// Valve
	if c.Valve.UniqueID == "" {
		errs = append(errs, "valve.unique_id is required")
	}
	if !fitsInt16(c.Valve.PositionOpen) || !fitsInt16(c.Valve.PositionClosed) {
		errs = append(errs, "valve.position_open and valve.position_closed must fit in 16 bits")
	}
	if c.Valve.PositionOpen == c.Valve.PositionClosed {
		errs = append(errs, "valve.position_open must differ from valve.position_closed")
	}
	switch c.Valve.Actuator.Type {
	case ActuatorEcho:
	case ActuatorModbus:
		errs = append(errs, c.Valve.Actuator.Modbus.validate()...)
	default:
		errs = append(errs, fmt.Sprintf("valve.actuator.type %q must be echo or modbus", c.Valve.Actuator.Type))
	}

	// Database
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// InfluxDB
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// API
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.JWTSecret != "" && len(c.API.JWTSecret) < minJWTSecretLength {
		errs = append(errs, "api.jwt_secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (m ModbusConfig) validate() []string {
	var errs []string
	switch m.Mode {
	case "tcp":
		if m.TCPHost == "" {
			errs = append(errs, "valve.actuator.modbus.tcp_host is required in tcp mode")
		}
	case "rtu":
		if m.RTUDevice == "" {
			errs = append(errs, "valve.actuator.modbus.rtu_device is required in rtu mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("valve.actuator.modbus.mode %q must be tcp or rtu", m.Mode))
	}
	if m.SlaveID < 0 || m.SlaveID > 247 {
		errs = append(errs, "valve.actuator.modbus.slave_id must be between 0 and 247")
	}
	if m.OpenCoil < 0 || m.OpenCoil > 0xFFFF {
		errs = append(errs, "valve.actuator.modbus.open_coil must be between 0 and 65535")
	}
	return errs
}

func fitsInt16(v int) bool {
	return v >= -32768 && v <= 32767
}

// GetReadTimeout returns the API read timeout as a Duration.
func (a APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(a.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (a APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(a.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (a APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(a.Timeouts.Idle) * time.Second
}
