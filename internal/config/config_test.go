// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Serial.Device != "/dev/ttyUSB0" || cfg.Serial.Driver != DriverNative {
		t.Errorf("serial = %+v", cfg.Serial)
	}
	if cfg.Serial.BaudRate != 9600 || cfg.Serial.DataBits != 8 || cfg.Serial.Parity != "N" || cfg.Serial.StopBits != 1 {
		t.Errorf("line settings = %d %d%s%d, want 9600 8N1", cfg.Serial.BaudRate, cfg.Serial.DataBits, cfg.Serial.Parity, cfg.Serial.StopBits)
	}
	if cfg.Serial.Timeout != time.Second {
		t.Errorf("timeout = %v, want 1s", cfg.Serial.Timeout)
	}
	if cfg.Serial.SettleDelay != 50*time.Millisecond {
		t.Errorf("settle delay = %v, want 50ms", cfg.Serial.SettleDelay)
	}
	if cfg.Device.ID != 1 {
		t.Errorf("device id = %d, want 1", cfg.Device.ID)
	}
	if cfg.Monitor.Interval != 5*time.Second || cfg.Output.Format != FormatText || cfg.Log.Level != "info" {
		t.Errorf("monitor/output/log defaults = %+v %+v %+v", cfg.Monitor, cfg.Output, cfg.Log)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
serial:
  device: /dev/ttyS3
  driver: RS485
  baud_rate: 19200
  parity: e
  timeout: 2s
  settle_delay: 100ms
  rs485: true
  delay_rts_before_send: 1ms
device:
  id: 16
monitor:
  interval: 30s
  count: 10
  daily_stats: true
log:
  level: debug
`)

	cfg, err := LoadConfig(path, nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Serial.Device != "/dev/ttyS3" || cfg.Serial.Driver != DriverRS485 || cfg.Serial.Parity != "E" {
		t.Errorf("serial = %+v", cfg.Serial)
	}
	if cfg.Serial.BaudRate != 19200 || cfg.Serial.Timeout != 2*time.Second || cfg.Serial.SettleDelay != 100*time.Millisecond {
		t.Errorf("serial timing = %+v", cfg.Serial)
	}
	if !cfg.Serial.RS485 || cfg.Serial.DelayRtsBeforeSend != time.Millisecond {
		t.Errorf("rs485 = %+v", cfg.Serial)
	}
	if cfg.Device.ID != 16 {
		t.Errorf("device id = %d, want 16", cfg.Device.ID)
	}
	if cfg.Monitor.Interval != 30*time.Second || cfg.Monitor.Count != 10 || !cfg.Monitor.DailyStats {
		t.Errorf("monitor = %+v", cfg.Monitor)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "serial:\n  device: /dev/ttyS3\ndevice:\n  id: 16\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringP("port", "p", "/dev/ttyUSB0", "")
	flags.IntP("device-id", "d", 1, "")
	flags.Duration("settle", 50*time.Millisecond, "")
	flags.StringP("output", "o", FormatText, "")
	if err := flags.Parse([]string{"-p", "/dev/ttyACM0", "--settle", "75ms", "-o", "json"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := LoadConfig(path, flags)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Serial.Device != "/dev/ttyACM0" {
		t.Errorf("device = %q, want flag value", cfg.Serial.Device)
	}
	if cfg.Device.ID != 16 {
		t.Errorf("device id = %d, want file value 16 for an unset flag", cfg.Device.ID)
	}
	if cfg.Serial.SettleDelay != 75*time.Millisecond {
		t.Errorf("settle delay = %v, want 75ms", cfg.Serial.SettleDelay)
	}
	if cfg.Output.Format != FormatJSON {
		t.Errorf("output = %q, want json", cfg.Output.Format)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("RENOGY_DEVICE_ID", "42")
	t.Setenv("RENOGY_SERIAL_BAUD_RATE", "4800")

	cfg, err := LoadConfig("", nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Device.ID != 42 || cfg.Serial.BaudRate != 4800 {
		t.Errorf("env overrides not applied: id %d baud %d", cfg.Device.ID, cfg.Serial.BaudRate)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Serial:  SerialConfig{Driver: DriverNative, BaudRate: 9600, Parity: "N", Timeout: time.Second},
			Device:  DeviceConfig{ID: 1},
			Monitor: MonitorConfig{Interval: time.Second},
			Output:  OutputConfig{Format: FormatText},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"Valid", func(*Config) {}, ""},
		{"MaxDeviceID", func(c *Config) { c.Device.ID = 247 }, ""},
		{"ZeroSettle", func(c *Config) { c.Serial.SettleDelay = 0 }, ""},
		{"SimulatorDriver", func(c *Config) { c.Serial.Driver = DriverSimulator }, ""},
		{"DeviceIDZero", func(c *Config) { c.Device.ID = 0 }, "device.id"},
		{"DeviceIDHigh", func(c *Config) { c.Device.ID = 248 }, "device.id"},
		{"Baud", func(c *Config) { c.Serial.BaudRate = 0 }, "baud_rate"},
		{"Timeout", func(c *Config) { c.Serial.Timeout = 0 }, "timeout"},
		{"Settle", func(c *Config) { c.Serial.SettleDelay = -time.Millisecond }, "settle_delay"},
		{"Driver", func(c *Config) { c.Serial.Driver = "usb" }, "driver"},
		{"Parity", func(c *Config) { c.Serial.Parity = "X" }, "parity"},
		{"Format", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
		{"Interval", func(c *Config) { c.Monitor.Interval = 0 }, "interval"},
		{"Count", func(c *Config) { c.Monitor.Count = -1 }, "count"},
		{"Persistence", func(c *Config) { c.Simulator.Persistence.Type = "sql" }, "persistence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errSub == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.errSub)
			}
		})
	}
}
