// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ffutop/renogy-rtu/internal/renogy"
)

func sampleReading() *renogy.Reading {
	return &renogy.Reading{
		Timestamp:  time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
		DeviceInfo: renogy.DeviceInfo{Model: "RNG-CTRL-RVR40", SerialNumber: "RNG0001234"},
		Battery:    renogy.Battery{StateOfCharge: 85, Voltage: 13.2, Current: 0.15, Temperature: 5},
		Solar:      renogy.Solar{Voltage: 12.5, Current: 0.08, Power: 50},
		Load:       renogy.Load{Voltage: 12.5, Current: 0.02, Power: 25, IsOn: true},
		Controller: renogy.Controller{Temperature: 20, ChargingState: 2},
	}
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, "json", sampleReading()); err != nil {
		t.Fatalf("Render: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if got["timestamp"] != "2026-03-01T12:30:00Z" {
		t.Errorf("timestamp = %v", got["timestamp"])
	}
	battery := got["battery"].(map[string]any)
	if battery["soc"] != 85.0 || battery["temperature"] != 5.0 {
		t.Errorf("battery = %v", battery)
	}
	if p := battery["power"].(float64); p < 1.97 || p > 1.99 {
		t.Errorf("battery power = %v", p)
	}
	controller := got["controller"].(map[string]any)
	if controller["charging_status_text"] != "MPPT Charging" {
		t.Errorf("controller = %v", controller)
	}
	if got["load"].(map[string]any)["is_on"] != true {
		t.Errorf("load = %v", got["load"])
	}
	if _, ok := got["daily_stats"]; ok {
		t.Error("daily_stats present without daily stats")
	}
}

func TestRender_YAML(t *testing.T) {
	r := sampleReading()
	r.Historical = &renogy.HistoricalStats{OperatingDays: 365, PowerGenerated: 1.2345}

	var buf bytes.Buffer
	if err := Render(&buf, "yaml", r); err != nil {
		t.Fatalf("Render: %v", err)
	}

	var got Report
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, buf.String())
	}
	if got.Device.Model != "RNG-CTRL-RVR40" || got.Battery.SOC != 85 || got.Solar.Power != 50 {
		t.Errorf("report = %+v", got)
	}
	if got.Historical == nil || got.Historical.OperatingDays != 365 {
		t.Errorf("historical = %+v", got.Historical)
	}
	if !strings.Contains(buf.String(), "charging_status_text: MPPT Charging") {
		t.Errorf("yaml missing status text:\n%s", buf.String())
	}
}

func TestRender_Text(t *testing.T) {
	r := sampleReading()
	r.Daily = &renogy.DailyStats{MinBatteryVoltage: 12.1, MaxBatteryVoltage: 14.4, PowerGeneration: 520}

	var buf bytes.Buffer
	if err := Render(&buf, "text", r); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Device: RNG-CTRL-RVR40 (S/N: RNG0001234)",
		"Battery: 85% @ 13.2V, 0.15A",
		"Load (ON)",
		"Today: battery 12.1-14.4V",
		"520Wh generated",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text missing %q:\n%s", want, out)
		}
	}
}

func TestRender_UnknownFormat(t *testing.T) {
	if err := Render(&bytes.Buffer{}, "xml", sampleReading()); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestDeviceInfoText(t *testing.T) {
	out := DeviceInfoText(renogy.DeviceInfo{Model: "RNG-CTRL-RVR40", HardwareVersion: "V1.2"})
	if !strings.Contains(out, "Serial Number:    Unknown") || !strings.Contains(out, "Hardware Version: V1.2") {
		t.Errorf("DeviceInfoText =\n%s", out)
	}
}

func TestRenderDeviceInfo(t *testing.T) {
	info := renogy.DeviceInfo{Model: "RNG-CTRL-RVR40", SerialNumber: "RNG0001234", SoftwareVersion: "V3.4"}

	var buf bytes.Buffer
	if err := RenderDeviceInfo(&buf, "json", info); err != nil {
		t.Fatalf("RenderDeviceInfo: %v", err)
	}
	var got DeviceReport
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Model != info.Model || got.SerialNumber != info.SerialNumber || got.SoftwareVersion != "V3.4" {
		t.Errorf("report = %+v", got)
	}
	if strings.Contains(buf.String(), "hardware_version") {
		t.Errorf("empty hardware version not omitted:\n%s", buf.String())
	}
}
