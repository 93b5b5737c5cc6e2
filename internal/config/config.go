// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Serial drivers.
const (
	// DriverNative uses go.bug.st/serial, which can purge stale input.
	DriverNative = "native"
	// DriverRS485 uses grid-x/serial with RTS line control.
	DriverRS485 = "rs485"
	// DriverSimulator answers from an in-process simulator; no port is
	// opened.
	DriverSimulator = "simulator"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config defines the global configuration structure
type Config struct {
	Serial    SerialConfig    `mapstructure:"serial"`
	Device    DeviceConfig    `mapstructure:"device"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Output    OutputConfig    `mapstructure:"output"`
	Log       LogConfig       `mapstructure:"log"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// SerialConfig defines RTU settings
type SerialConfig struct {
	Device   string        `mapstructure:"device"`
	Driver   string        `mapstructure:"driver"` // "native", "rs485", "simulator"
	BaudRate int           `mapstructure:"baud_rate"`
	DataBits int           `mapstructure:"data_bits"`
	Parity   string        `mapstructure:"parity"`
	StopBits int           `mapstructure:"stop_bits"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// SettleDelay is the pause between writing a request and reading the
	// response. Zero derives it from the baud rate.
	SettleDelay time.Duration `mapstructure:"settle_delay"`

	// RS485 specific
	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

// DeviceConfig identifies the controller on the line.
type DeviceConfig struct {
	ID int `mapstructure:"id"`
}

// MonitorConfig drives the polling loop.
type MonitorConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	Count           int           `mapstructure:"count"` // 0 = unlimited
	DailyStats      bool          `mapstructure:"daily_stats"`
	HistoricalStats bool          `mapstructure:"historical_stats"`
}

// MetricsConfig enables the Prometheus endpoint when Address is set.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
	Path    string `mapstructure:"path"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// SimulatorConfig defines the emulated controller.
type SimulatorConfig struct {
	Device      string            `mapstructure:"device"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// PersistenceConfig defines data storage settings
type PersistenceConfig struct {
	Type string `mapstructure:"type"` // "memory", "mmap"
	Path string `mapstructure:"path"` // File path for "mmap" type
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"port":             "serial.device",
	"driver":           "serial.driver",
	"baud":             "serial.baud_rate",
	"timeout":          "serial.timeout",
	"settle":           "serial.settle_delay",
	"device-id":        "device.id",
	"interval":         "monitor.interval",
	"count":            "monitor.count",
	"daily":            "monitor.daily_stats",
	"historical":       "monitor.historical_stats",
	"metrics-addr":     "metrics.address",
	"output":           "output.format",
	"log-level":        "log.level",
	"log-file":         "log.file",
	"sim-device":       "simulator.device",
	"persistence":      "simulator.persistence.type",
	"persistence-path": "simulator.persistence.path",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.device", "/dev/ttyUSB0")
	v.SetDefault("serial.driver", DriverNative)
	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.timeout", time.Second)
	v.SetDefault("serial.settle_delay", 50*time.Millisecond)
	v.SetDefault("device.id", 1)
	v.SetDefault("monitor.interval", 5*time.Second)
	v.SetDefault("monitor.count", 0)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("output.format", FormatText)
	v.SetDefault("log.level", "info")
	v.SetDefault("simulator.persistence.type", "memory")
}

// LoadConfig loads configuration from file, environment and flags, in
// increasing order of precedence. A missing default config file is not an
// error.
func LoadConfig(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/renogy-rtu/")
		v.AddConfigPath("$HOME/.renogy-rtu")
		v.AddConfigPath(".")
	}

	setDefaults(v)
	v.SetEnvPrefix("RENOGY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
				bindErr = v.BindPFlag(key, f)
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	fixupSerial(&config.Serial)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	s.Driver = strings.ToLower(s.Driver)
	if s.DataBits == 0 {
		s.DataBits = 8
	}
	if s.StopBits == 0 {
		s.StopBits = 1
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Device.ID < 1 || c.Device.ID > 247 {
		return fmt.Errorf("device.id %d out of range 1-247", c.Device.ID)
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be positive, got %d", c.Serial.BaudRate)
	}
	if c.Serial.Timeout <= 0 {
		return fmt.Errorf("serial.timeout must be positive, got %v", c.Serial.Timeout)
	}
	if c.Serial.SettleDelay < 0 {
		return fmt.Errorf("serial.settle_delay must not be negative, got %v", c.Serial.SettleDelay)
	}
	switch c.Serial.Driver {
	case DriverNative, DriverRS485, DriverSimulator:
	default:
		return fmt.Errorf("unknown serial.driver %q", c.Serial.Driver)
	}
	switch c.Serial.Parity {
	case "N", "E", "O":
	default:
		return fmt.Errorf("unknown serial.parity %q", c.Serial.Parity)
	}
	switch c.Output.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("unknown output.format %q", c.Output.Format)
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive, got %v", c.Monitor.Interval)
	}
	if c.Monitor.Count < 0 {
		return fmt.Errorf("monitor.count must not be negative, got %d", c.Monitor.Count)
	}
	switch c.Simulator.Persistence.Type {
	case "", "memory", "mmap":
	default:
		return fmt.Errorf("unknown simulator.persistence.type %q", c.Simulator.Persistence.Type)
	}
	return nil
}
