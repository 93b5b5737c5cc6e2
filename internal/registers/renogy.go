// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package registers

import "fmt"

// Register names.
const (
	DeviceModel     = "device_model"
	HardwareVersion = "hardware_version"
	SoftwareVersion = "software_version"
	SerialNumber    = "serial_number"

	BatterySOC      = "battery_soc"
	BatteryVoltage  = "battery_voltage"
	ChargingCurrent = "charging_current"
	Temperatures    = "temperatures"
	LoadVoltage     = "load_voltage"
	LoadCurrent     = "load_current"
	LoadPower       = "load_power"
	SolarVoltage    = "solar_voltage"
	SolarCurrent    = "solar_current"
	SolarPower      = "solar_power"

	LoadSwitch = "load_switch"

	DailyMinBatteryVoltage     = "daily_min_battery_voltage"
	DailyMaxBatteryVoltage     = "daily_max_battery_voltage"
	DailyMaxChargingCurrent    = "daily_max_charging_current"
	DailyMaxDischargingCurrent = "daily_max_discharging_current"
	DailyMaxChargingPower      = "daily_max_charging_power"
	DailyMaxDischargingPower   = "daily_max_discharging_power"
	DailyChargingAmpHours      = "daily_charging_amp_hours"
	DailyDischargingAmpHours   = "daily_discharging_amp_hours"
	DailyPowerGeneration       = "daily_power_generation"
	DailyPowerConsumption      = "daily_power_consumption"

	TotalOperatingDays         = "total_operating_days"
	TotalBatteryOverDischarges = "total_battery_over_discharges"
	TotalBatteryFullCharges    = "total_battery_full_charges"
	TotalChargingAmpHours      = "total_charging_amp_hours"
	TotalDischargingAmpHours   = "total_discharging_amp_hours"
	TotalPowerGeneration       = "total_power_generation"
	TotalPowerConsumption      = "total_power_consumption"

	ChargingState = "charging_state"
)

var renogyDefinitions = []Definition{
	{Name: DeviceModel, Address: 0x000C, Length: 8, Kind: ASCII, Group: GroupDeviceInfo, Description: "Product Model"},
	{Name: HardwareVersion, Address: 0x0014, Length: 2, Kind: Version, Group: GroupDeviceInfo, Description: "Hardware Version"},
	{Name: SoftwareVersion, Address: 0x0016, Length: 2, Kind: Version, Group: GroupDeviceInfo, Description: "Software Version"},
	{Name: SerialNumber, Address: 0x0018, Length: 8, Kind: ASCII, Group: GroupDeviceInfo, Description: "Product Serial Number"},

	{Name: BatterySOC, Address: 0x0100, Length: 1, Kind: Scaled, Scale: 1, Unit: "%", Group: GroupRealtime, Description: "Battery State of Charge"},
	{Name: BatteryVoltage, Address: 0x0101, Length: 1, Kind: Scaled, Scale: 0.1, Unit: "V", Group: GroupRealtime, Description: "Battery Voltage"},
	{Name: ChargingCurrent, Address: 0x0102, Length: 1, Kind: Scaled, Scale: 0.01, Unit: "A", Group: GroupRealtime, Description: "Charging Current"},
	{Name: Temperatures, Address: 0x0103, Length: 1, Kind: SignedBytePair, Unit: "°C", Group: GroupRealtime, Description: "Controller (high) and Battery (low) Temperature"},
	{Name: LoadVoltage, Address: 0x0104, Length: 1, Kind: Scaled, Scale: 0.1, Unit: "V", Group: GroupRealtime, Description: "Load Voltage"},
	{Name: LoadCurrent, Address: 0x0105, Length: 1, Kind: Scaled, Scale: 0.01, Unit: "A", Group: GroupRealtime, Description: "Load Current"},
	{Name: LoadPower, Address: 0x0106, Length: 1, Kind: Scaled, Scale: 1, Unit: "W", Group: GroupRealtime, Description: "Load Power"},
	{Name: SolarVoltage, Address: 0x0107, Length: 1, Kind: Scaled, Scale: 0.1, Unit: "V", Group: GroupRealtime, Description: "Solar Panel Voltage"},
	{Name: SolarCurrent, Address: 0x0108, Length: 1, Kind: Scaled, Scale: 0.01, Unit: "A", Group: GroupRealtime, Description: "Solar Panel Current"},
	{Name: SolarPower, Address: 0x0109, Length: 1, Kind: Scaled, Scale: 1, Unit: "W", Group: GroupRealtime, Description: "Solar Charging Power"},

	{Name: LoadSwitch, Address: 0x010A, Length: 1, Kind: Flag, Group: GroupControl, Writable: true, Description: "Load Switch Control"},

	{Name: DailyMinBatteryVoltage, Address: 0x010B, Length: 1, Kind: Scaled, Scale: 0.1, Unit: "V", Group: GroupDaily, Description: "Daily Min Battery Voltage"},
	{Name: DailyMaxBatteryVoltage, Address: 0x010C, Length: 1, Kind: Scaled, Scale: 0.1, Unit: "V", Group: GroupDaily, Description: "Daily Max Battery Voltage"},
	{Name: DailyMaxChargingCurrent, Address: 0x010D, Length: 1, Kind: Scaled, Scale: 0.01, Unit: "A", Group: GroupDaily, Description: "Daily Max Charging Current"},
	{Name: DailyMaxDischargingCurrent, Address: 0x010E, Length: 1, Kind: Scaled, Scale: 0.01, Unit: "A", Group: GroupDaily, Description: "Daily Max Discharging Current"},
	{Name: DailyMaxChargingPower, Address: 0x010F, Length: 1, Kind: Scaled, Scale: 1, Unit: "W", Group: GroupDaily, Description: "Daily Max Charging Power"},
	{Name: DailyMaxDischargingPower, Address: 0x0110, Length: 1, Kind: Scaled, Scale: 1, Unit: "W", Group: GroupDaily, Description: "Daily Max Discharging Power"},
	{Name: DailyChargingAmpHours, Address: 0x0111, Length: 1, Kind: Scaled, Scale: 1, Unit: "Ah", Group: GroupDaily, Description: "Daily Charging Amp-hours"},
	{Name: DailyDischargingAmpHours, Address: 0x0112, Length: 1, Kind: Scaled, Scale: 1, Unit: "Ah", Group: GroupDaily, Description: "Daily Discharging Amp-hours"},
	{Name: DailyPowerGeneration, Address: 0x0113, Length: 1, Kind: Scaled, Scale: 1, Unit: "Wh", Group: GroupDaily, Description: "Daily Power Generation"},
	{Name: DailyPowerConsumption, Address: 0x0114, Length: 1, Kind: Scaled, Scale: 1, Unit: "Wh", Group: GroupDaily, Description: "Daily Power Consumption"},

	{Name: TotalOperatingDays, Address: 0x0115, Length: 1, Kind: Scaled, Scale: 1, Unit: "days", Group: GroupHistorical, Description: "Total Operating Days"},
	{Name: TotalBatteryOverDischarges, Address: 0x0116, Length: 1, Kind: Scaled, Scale: 1, Group: GroupHistorical, Description: "Total Battery Over-discharges"},
	{Name: TotalBatteryFullCharges, Address: 0x0117, Length: 1, Kind: Scaled, Scale: 1, Group: GroupHistorical, Description: "Total Battery Full Charges"},
	{Name: TotalChargingAmpHours, Address: 0x0118, Length: 2, Kind: Scaled, Scale: 1, Unit: "Ah", Group: GroupHistorical, Description: "Total Charging Amp-hours"},
	{Name: TotalDischargingAmpHours, Address: 0x011A, Length: 2, Kind: Scaled, Scale: 1, Unit: "Ah", Group: GroupHistorical, Description: "Total Discharging Amp-hours"},
	{Name: TotalPowerGeneration, Address: 0x011C, Length: 2, Kind: Scaled, Scale: 0.0001, Unit: "kWh", Group: GroupHistorical, Description: "Cumulative Power Generation"},
	{Name: TotalPowerConsumption, Address: 0x011E, Length: 2, Kind: Scaled, Scale: 0.0001, Unit: "kWh", Group: GroupHistorical, Description: "Cumulative Power Consumption"},

	{Name: ChargingState, Address: 0x0120, Length: 1, Kind: LowByte, Scale: 1, Group: GroupStatus, Description: "Charging State"},
}

// Renogy is the register map of Renogy Rover/Wanderer/Adventurer charge
// controllers.
var Renogy = mustMap(renogyDefinitions)

func mustMap(defs []Definition) *Map {
	m, err := NewMap(defs)
	if err != nil {
		panic(err)
	}
	return m
}

var chargingStates = map[int]string{
	0: "Deactivated",
	1: "Activated",
	2: "MPPT Charging",
	3: "Equalizing Charging",
	4: "Boost Charging",
	5: "Float Charging",
	6: "Current Limiting",
}

// ChargingStateText names a charging state code.
func ChargingStateText(code int) string {
	if s, ok := chargingStates[code]; ok {
		return s
	}
	return fmt.Sprintf("Unknown (%d)", code)
}
