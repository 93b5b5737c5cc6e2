// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package output renders readings for the terminal or for other programs.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ffutop/renogy-rtu/internal/config"
	"github.com/ffutop/renogy-rtu/internal/renogy"
)

// Report is the serializable form of a reading.
type Report struct {
	Timestamp  string            `json:"timestamp" yaml:"timestamp"`
	Device     DeviceReport      `json:"device" yaml:"device"`
	Battery    BatteryReport     `json:"battery" yaml:"battery"`
	Solar      SolarReport       `json:"solar" yaml:"solar"`
	Load       LoadReport        `json:"load" yaml:"load"`
	Controller ControllerReport  `json:"controller" yaml:"controller"`
	Daily      *DailyReport      `json:"daily_stats,omitempty" yaml:"daily_stats,omitempty"`
	Historical *HistoricalReport `json:"historical_stats,omitempty" yaml:"historical_stats,omitempty"`
}

type DeviceReport struct {
	Model           string `json:"model" yaml:"model"`
	SerialNumber    string `json:"serial_number" yaml:"serial_number"`
	HardwareVersion string `json:"hardware_version,omitempty" yaml:"hardware_version,omitempty"`
	SoftwareVersion string `json:"software_version,omitempty" yaml:"software_version,omitempty"`
}

type BatteryReport struct {
	SOC         int     `json:"soc" yaml:"soc"`
	Voltage     float64 `json:"voltage" yaml:"voltage"`
	Current     float64 `json:"current" yaml:"current"`
	Temperature int     `json:"temperature" yaml:"temperature"`
	Power       float64 `json:"power" yaml:"power"`
}

type SolarReport struct {
	Voltage float64 `json:"voltage" yaml:"voltage"`
	Current float64 `json:"current" yaml:"current"`
	Power   int     `json:"power" yaml:"power"`
}

type LoadReport struct {
	Voltage float64 `json:"voltage" yaml:"voltage"`
	Current float64 `json:"current" yaml:"current"`
	Power   int     `json:"power" yaml:"power"`
	IsOn    bool    `json:"is_on" yaml:"is_on"`
}

type ControllerReport struct {
	Temperature        int    `json:"temperature" yaml:"temperature"`
	ChargingStatus     int    `json:"charging_status" yaml:"charging_status"`
	ChargingStatusText string `json:"charging_status_text" yaml:"charging_status_text"`
}

type DailyReport struct {
	MinBatteryVoltage     float64 `json:"min_battery_voltage" yaml:"min_battery_voltage"`
	MaxBatteryVoltage     float64 `json:"max_battery_voltage" yaml:"max_battery_voltage"`
	MaxChargingCurrent    float64 `json:"max_charging_current" yaml:"max_charging_current"`
	MaxDischargingCurrent float64 `json:"max_discharging_current" yaml:"max_discharging_current"`
	MaxChargingPower      int     `json:"max_charging_power" yaml:"max_charging_power"`
	MaxDischargingPower   int     `json:"max_discharging_power" yaml:"max_discharging_power"`
	ChargingAmpHours      int     `json:"charging_amp_hours" yaml:"charging_amp_hours"`
	DischargingAmpHours   int     `json:"discharging_amp_hours" yaml:"discharging_amp_hours"`
	PowerGeneration       int     `json:"power_generation" yaml:"power_generation"`
	PowerConsumption      int     `json:"power_consumption" yaml:"power_consumption"`
}

type HistoricalReport struct {
	OperatingDays      int     `json:"total_operating_days" yaml:"total_operating_days"`
	OverDischarges     int     `json:"total_over_discharges" yaml:"total_over_discharges"`
	FullCharges        int     `json:"total_full_charges" yaml:"total_full_charges"`
	AmpHoursCharged    int     `json:"total_amp_hours_charged" yaml:"total_amp_hours_charged"`
	AmpHoursDischarged int     `json:"total_amp_hours_discharged" yaml:"total_amp_hours_discharged"`
	PowerGenerated     float64 `json:"total_power_generated" yaml:"total_power_generated"`
	PowerConsumed      float64 `json:"total_power_consumed" yaml:"total_power_consumed"`
}

// NewReport converts r.
func NewReport(r *renogy.Reading) Report {
	rep := Report{
		Timestamp: r.Timestamp.Format(time.RFC3339),
		Device: DeviceReport{
			Model:           r.DeviceInfo.Model,
			SerialNumber:    r.DeviceInfo.SerialNumber,
			HardwareVersion: r.DeviceInfo.HardwareVersion,
			SoftwareVersion: r.DeviceInfo.SoftwareVersion,
		},
		Battery: BatteryReport{
			SOC:         r.Battery.StateOfCharge,
			Voltage:     r.Battery.Voltage,
			Current:     r.Battery.Current,
			Temperature: r.Battery.Temperature,
			Power:       r.Battery.Power(),
		},
		Solar: SolarReport{
			Voltage: r.Solar.Voltage,
			Current: r.Solar.Current,
			Power:   r.Solar.Power,
		},
		Load: LoadReport{
			Voltage: r.Load.Voltage,
			Current: r.Load.Current,
			Power:   r.Load.Power,
			IsOn:    r.Load.IsOn,
		},
		Controller: ControllerReport{
			Temperature:        r.Controller.Temperature,
			ChargingStatus:     r.Controller.ChargingState,
			ChargingStatusText: r.Controller.ChargingStateText(),
		},
	}
	if d := r.Daily; d != nil {
		rep.Daily = &DailyReport{
			MinBatteryVoltage:     d.MinBatteryVoltage,
			MaxBatteryVoltage:     d.MaxBatteryVoltage,
			MaxChargingCurrent:    d.MaxChargingCurrent,
			MaxDischargingCurrent: d.MaxDischargingCurrent,
			MaxChargingPower:      d.MaxChargingPower,
			MaxDischargingPower:   d.MaxDischargingPower,
			ChargingAmpHours:      d.ChargingAmpHours,
			DischargingAmpHours:   d.DischargingAmpHours,
			PowerGeneration:       d.PowerGeneration,
			PowerConsumption:      d.PowerConsumption,
		}
	}
	if h := r.Historical; h != nil {
		rep.Historical = &HistoricalReport{
			OperatingDays:      h.OperatingDays,
			OverDischarges:     h.OverDischarges,
			FullCharges:        h.FullCharges,
			AmpHoursCharged:    h.AmpHoursCharged,
			AmpHoursDischarged: h.AmpHoursDischarged,
			PowerGenerated:     h.PowerGenerated,
			PowerConsumed:      h.PowerConsumed,
		}
	}
	return rep
}

// Render writes r to w in format.
func Render(w io.Writer, format string, r *renogy.Reading) error {
	switch format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewReport(r))
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(NewReport(r)); err != nil {
			return err
		}
		return enc.Close()
	case config.FormatText, "":
		_, err := io.WriteString(w, Text(r))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// Text is the human readable form of r.
func Text(r *renogy.Reading) string {
	var b strings.Builder
	if r.DeviceInfo != (renogy.DeviceInfo{}) {
		fmt.Fprintf(&b, "Device: %s\n", r.DeviceInfo)
	}
	b.WriteString(r.String())
	b.WriteString("\n")
	if d := r.Daily; d != nil {
		fmt.Fprintf(&b, "  Today: battery %.1f-%.1fV, max %.2fA / %dW charging, %dWh generated, %dWh consumed\n",
			d.MinBatteryVoltage, d.MaxBatteryVoltage, d.MaxChargingCurrent, d.MaxChargingPower, d.PowerGeneration, d.PowerConsumption)
	}
	if h := r.Historical; h != nil {
		fmt.Fprintf(&b, "  Lifetime: %d days, %d full charges, %d over-discharges, %.4fkWh generated, %.4fkWh consumed\n",
			h.OperatingDays, h.FullCharges, h.OverDischarges, h.PowerGenerated, h.PowerConsumed)
	}
	return b.String()
}

// RenderDeviceInfo writes info to w in format.
func RenderDeviceInfo(w io.Writer, format string, info renogy.DeviceInfo) error {
	rep := DeviceReport{
		Model:           info.Model,
		SerialNumber:    info.SerialNumber,
		HardwareVersion: info.HardwareVersion,
		SoftwareVersion: info.SoftwareVersion,
	}
	switch format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case config.FormatYAML:
		return yaml.NewEncoder(w).Encode(rep)
	case config.FormatText, "":
		_, err := io.WriteString(w, DeviceInfoText(info))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// DeviceInfoText is the human readable form of info, with unknown fields
// marked as such.
func DeviceInfoText(info renogy.DeviceInfo) string {
	orUnknown := func(s string) string {
		if s == "" {
			return "Unknown"
		}
		return s
	}
	return fmt.Sprintf("Model:            %s\nSerial Number:    %s\nHardware Version: %s\nSoftware Version: %s\n",
		orUnknown(info.Model), orUnknown(info.SerialNumber), orUnknown(info.HardwareVersion), orUnknown(info.SoftwareVersion))
}
