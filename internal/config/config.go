package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration values.
// Sampling rate, window size and calibration bounds are build-time constants
// in internal/gesture and deliberately not configurable here.
type Config struct {
	// Logging
	LogLevel string

	// MQTT
	MQTTBroker          string
	MQTTClientIDSensor  string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string

	// Topics
	TopicReading string
	TopicResult  string
	TopicError   string

	// Sensor Hardware (VCNL4040)
	SensorI2CBus  string
	SensorI2CAddr uint16

	// VCNL4040 tuning
	// Proximity integration time: 0=1T, 1=1.5T, 2=2T, 3=2.5T, 4=3T, 5=3.5T, 6=4T, 7=8T
	SensorProxIntegration byte
	// Ambient integration time: 0=80ms, 1=160ms, 2=320ms, 3=640ms
	SensorALSIntegration byte
	// IR LED current: 0=50mA, 1=75mA, 2=100mA, 3=120mA, 4=140mA, 5=160mA, 6=180mA, 7=200mA
	SensorLEDCurrent byte
	// IR LED duty: 0=1/40, 1=1/80, 2=1/160, 3=1/320
	SensorLEDDuty byte

	// Control input
	ButtonPin string

	// Timing
	MonitorInterval time.Duration
	DebouncePoll    time.Duration
	DebounceSettle  time.Duration

	// Display
	// The upstream ssd1306 driver always talks to 0x3C.
	DisplayEnabled bool
	DisplayI2CBus  string

	// Serial console
	SerialConsolePort string
	SerialConsoleBaud int

	// Classifier
	Classifier      string // "remote", "centroid" or "fixed"
	ClassifierURL   string
	ClassifierModel string
	ClassifierChunk int
	ClassifierLabel string // label reported by the fixed classifier

	// Storage
	HistoryDB string

	// Web Server
	WebServerPort int
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access; the web and MQTT goroutines read it.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config with every optional key at its default value.
func Default() *Config {
	return &Config{
		LogLevel:            "info",
		MQTTClientIDSensor:  "gesture-sensor",
		MQTTClientIDConsole: "gesture-console",
		MQTTClientIDWeb:     "gesture-web",
		TopicReading:        "gesture/reading",
		TopicResult:         "gesture/result",
		TopicError:          "gesture/error",

		SensorI2CBus:          "",
		SensorI2CAddr:         0x60,
		SensorProxIntegration: 7, // 8T
		SensorALSIntegration:  0, // 80ms
		SensorLEDCurrent:      3, // 120mA
		SensorLEDDuty:         0, // 1/40

		MonitorInterval: 100 * time.Millisecond,
		DebouncePoll:    5 * time.Millisecond,
		DebounceSettle:  20 * time.Millisecond,

		SerialConsoleBaud: 115200,

		Classifier:      "fixed",
		ClassifierChunk: 64,
		ClassifierLabel: "idle",

		WebServerPort: 8080,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	case "LOG_LEVEL":
		c.LogLevel = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_SENSOR":
		c.MQTTClientIDSensor = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_READING":
		c.TopicReading = value
	case "TOPIC_RESULT":
		c.TopicResult = value
	case "TOPIC_ERROR":
		c.TopicError = value

	// Sensor Hardware
	case "SENSOR_I2C_BUS":
		c.SensorI2CBus = value
	case "SENSOR_I2C_ADDR":
		addr, err := parseI2CAddr(key, value)
		if err != nil {
			return err
		}
		c.SensorI2CAddr = addr
	case "SENSOR_PROX_IT":
		val, err := parseCode(key, value, 7)
		if err != nil {
			return err
		}
		c.SensorProxIntegration = val
	case "SENSOR_ALS_IT":
		val, err := parseCode(key, value, 3)
		if err != nil {
			return err
		}
		c.SensorALSIntegration = val
	case "SENSOR_LED_CURRENT":
		val, err := parseCode(key, value, 7)
		if err != nil {
			return err
		}
		c.SensorLEDCurrent = val
	case "SENSOR_LED_DUTY":
		val, err := parseCode(key, value, 3)
		if err != nil {
			return err
		}
		c.SensorLEDDuty = val

	// Control input
	case "BUTTON_PIN":
		c.ButtonPin = value

	// Timing
	case "MONITOR_INTERVAL":
		d, err := parseMillis(key, value)
		if err != nil {
			return err
		}
		c.MonitorInterval = d
	case "DEBOUNCE_POLL_INTERVAL":
		d, err := parseMillis(key, value)
		if err != nil {
			return err
		}
		c.DebouncePoll = d
	case "DEBOUNCE_SETTLE":
		d, err := parseMillis(key, value)
		if err != nil {
			return err
		}
		c.DebounceSettle = d

	// Display
	case "DISPLAY_ENABLED":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_ENABLED %q: %w", value, err)
		}
		c.DisplayEnabled = enabled
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value

	// Serial console
	case "SERIAL_CONSOLE_PORT":
		c.SerialConsolePort = value
	case "SERIAL_CONSOLE_BAUD":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_CONSOLE_BAUD %q: %w", value, err)
		}
		c.SerialConsoleBaud = rate

	// Classifier
	case "CLASSIFIER":
		switch value {
		case "remote", "centroid", "fixed":
			c.Classifier = value
		default:
			return fmt.Errorf("CLASSIFIER must be remote, centroid or fixed, got %q", value)
		}
	case "CLASSIFIER_URL":
		c.ClassifierURL = value
	case "CLASSIFIER_MODEL":
		c.ClassifierModel = value
	case "CLASSIFIER_CHUNK":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CLASSIFIER_CHUNK %q: %w", value, err)
		}
		if n <= 0 {
			return fmt.Errorf("CLASSIFIER_CHUNK must be positive, got %d", n)
		}
		c.ClassifierChunk = n
	case "CLASSIFIER_LABEL":
		c.ClassifierLabel = value

	// Storage
	case "HISTORY_DB":
		c.HistoryDB = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parseI2CAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if addr > 0x7F {
		return 0, fmt.Errorf("%s must be a 7-bit address, got 0x%X", key, addr)
	}
	return uint16(addr), nil
}

func parseCode(key, value string, max int) (byte, error) {
	val, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if val < 0 || val > max {
		return 0, fmt.Errorf("%s must be 0-%d, got %d", key, max, val)
	}
	return byte(val), nil
}

// parseMillis reads an integer number of milliseconds.
func parseMillis(key, value string) (time.Duration, error) {
	ms, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if ms < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", key, ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.ButtonPin == "" {
		return fmt.Errorf("BUTTON_PIN is required")
	}
	if c.DebouncePoll == 0 {
		return fmt.Errorf("DEBOUNCE_POLL_INTERVAL must be positive")
	}
	if c.SerialConsolePort != "" && c.SerialConsoleBaud <= 0 {
		return fmt.Errorf("SERIAL_CONSOLE_BAUD is required with SERIAL_CONSOLE_PORT")
	}
	switch c.Classifier {
	case "remote":
		if c.ClassifierURL == "" {
			return fmt.Errorf("CLASSIFIER_URL is required for the remote classifier")
		}
	case "centroid":
		if c.ClassifierModel == "" {
			return fmt.Errorf("CLASSIFIER_MODEL is required for the centroid classifier")
		}
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
