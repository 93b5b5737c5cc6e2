// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package renogy

import (
	"fmt"
	"strings"
	"time"

	"github.com/ffutop/renogy-rtu/internal/registers"
)

// DeviceInfo identifies a controller. Fields that could not be read are
// left empty.
type DeviceInfo struct {
	Model           string
	SerialNumber    string
	HardwareVersion string
	SoftwareVersion string
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s (S/N: %s)", d.Model, d.SerialNumber)
}

// Battery holds battery measurements.
type Battery struct {
	StateOfCharge int     // percent
	Voltage       float64 // V
	Current       float64 // A, charging
	Temperature   int     // °C
}

// Power is the charging power in watts.
func (b Battery) Power() float64 {
	return b.Voltage * b.Current
}

func (b Battery) String() string {
	return fmt.Sprintf("Battery: %d%% @ %.1fV, %.2fA", b.StateOfCharge, b.Voltage, b.Current)
}

// Solar holds panel measurements.
type Solar struct {
	Voltage float64
	Current float64
	Power   int
}

func (s Solar) String() string {
	return fmt.Sprintf("Solar: %.1fV, %.2fA, %dW", s.Voltage, s.Current, s.Power)
}

// Load holds load output measurements and the switch state.
type Load struct {
	Voltage float64
	Current float64
	Power   int
	IsOn    bool
}

func (l Load) String() string {
	state := "OFF"
	if l.IsOn {
		state = "ON"
	}
	return fmt.Sprintf("Load (%s): %.1fV, %.2fA, %dW", state, l.Voltage, l.Current, l.Power)
}

// Controller holds controller status.
type Controller struct {
	Temperature   int
	ChargingState int
}

// ChargingStateText names the charging state.
func (c Controller) ChargingStateText() string {
	return registers.ChargingStateText(c.ChargingState)
}

func (c Controller) String() string {
	return fmt.Sprintf("Controller: %d°C, %s", c.Temperature, c.ChargingStateText())
}

// DailyStats are the controller's counters for the current day.
type DailyStats struct {
	MinBatteryVoltage     float64
	MaxBatteryVoltage     float64
	MaxChargingCurrent    float64
	MaxDischargingCurrent float64
	MaxChargingPower      int
	MaxDischargingPower   int
	ChargingAmpHours      int
	DischargingAmpHours   int
	PowerGeneration       int // Wh
	PowerConsumption      int // Wh
}

// HistoricalStats are the controller's lifetime counters.
type HistoricalStats struct {
	OperatingDays      int
	OverDischarges     int
	FullCharges        int
	AmpHoursCharged    int
	AmpHoursDischarged int
	PowerGenerated     float64 // kWh
	PowerConsumed      float64 // kWh
}

// Reading is one snapshot of a controller. The client does not keep a
// reference after returning it.
type Reading struct {
	Timestamp  time.Time
	DeviceInfo DeviceInfo
	Battery    Battery
	Solar      Solar
	Load       Load
	Controller Controller

	Daily      *DailyStats
	Historical *HistoricalStats
}

func (r *Reading) String() string {
	lines := []string{
		"Reading at " + r.Timestamp.Format("2006-01-02 15:04:05"),
		"  " + r.Battery.String(),
		"  " + r.Solar.String(),
		"  " + r.Load.String(),
		"  " + r.Controller.String(),
	}
	return strings.Join(lines, "\n")
}

func newRealtime(v registers.Values) *Reading {
	temps := v[registers.Temperatures]
	return &Reading{
		Battery: Battery{
			StateOfCharge: v.Int(registers.BatterySOC),
			Voltage:       v.Number(registers.BatteryVoltage),
			Current:       v.Number(registers.ChargingCurrent),
			Temperature:   temps.Low,
		},
		Solar: Solar{
			Voltage: v.Number(registers.SolarVoltage),
			Current: v.Number(registers.SolarCurrent),
			Power:   v.Int(registers.SolarPower),
		},
		Load: Load{
			Voltage: v.Number(registers.LoadVoltage),
			Current: v.Number(registers.LoadCurrent),
			Power:   v.Int(registers.LoadPower),
			IsOn:    v[registers.LoadSwitch].On,
		},
		Controller: Controller{
			Temperature: temps.High,
		},
	}
}

func newDailyStats(v registers.Values) *DailyStats {
	return &DailyStats{
		MinBatteryVoltage:     v.Number(registers.DailyMinBatteryVoltage),
		MaxBatteryVoltage:     v.Number(registers.DailyMaxBatteryVoltage),
		MaxChargingCurrent:    v.Number(registers.DailyMaxChargingCurrent),
		MaxDischargingCurrent: v.Number(registers.DailyMaxDischargingCurrent),
		MaxChargingPower:      v.Int(registers.DailyMaxChargingPower),
		MaxDischargingPower:   v.Int(registers.DailyMaxDischargingPower),
		ChargingAmpHours:      v.Int(registers.DailyChargingAmpHours),
		DischargingAmpHours:   v.Int(registers.DailyDischargingAmpHours),
		PowerGeneration:       v.Int(registers.DailyPowerGeneration),
		PowerConsumption:      v.Int(registers.DailyPowerConsumption),
	}
}

func newHistoricalStats(v registers.Values) *HistoricalStats {
	return &HistoricalStats{
		OperatingDays:      v.Int(registers.TotalOperatingDays),
		OverDischarges:     v.Int(registers.TotalBatteryOverDischarges),
		FullCharges:        v.Int(registers.TotalBatteryFullCharges),
		AmpHoursCharged:    v.Int(registers.TotalChargingAmpHours),
		AmpHoursDischarged: v.Int(registers.TotalDischargingAmpHours),
		PowerGenerated:     v.Number(registers.TotalPowerGeneration),
		PowerConsumed:      v.Number(registers.TotalPowerConsumption),
	}
}
