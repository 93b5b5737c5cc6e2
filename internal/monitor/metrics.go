// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package monitor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ffutop/renogy-rtu/internal/renogy"
)

// Metrics exports readings as Prometheus gauges on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	gauges     map[string]prometheus.Gauge
	readErrors prometheus.Counter
	info       *prometheus.GaugeVec
}

// NewMetrics creates the gauges for the controller at deviceID.
func NewMetrics(deviceID byte) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		gauges:   make(map[string]prometheus.Gauge),
	}
	labels := prometheus.Labels{"device_id": strconv.Itoa(int(deviceID))}

	add := func(name, help string) {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "renogy",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
		m.gauges[name] = g
		m.registry.MustRegister(g)
	}

	add("battery_soc_percent", "Battery state of charge (%)")
	add("battery_voltage_volts", "Battery voltage (V)")
	add("battery_current_amperes", "Battery charging current (A)")
	add("battery_power_watts", "Battery charging power (W)")
	add("battery_temperature_celsius", "Battery temperature (°C)")
	add("solar_voltage_volts", "Solar panel voltage (V)")
	add("solar_current_amperes", "Solar panel current (A)")
	add("solar_power_watts", "Solar charging power (W)")
	add("load_voltage_volts", "Load voltage (V)")
	add("load_current_amperes", "Load current (A)")
	add("load_power_watts", "Load power (W)")
	add("load_on", "Load switch state (1 = on)")
	add("controller_temperature_celsius", "Controller temperature (°C)")
	add("charging_state", "Charging state code")
	add("daily_power_generation_watt_hours", "Power generated today (Wh)")
	add("daily_power_consumption_watt_hours", "Power consumed today (Wh)")
	add("total_power_generation_kilowatt_hours", "Cumulative power generated (kWh)")
	add("total_power_consumption_kilowatt_hours", "Cumulative power consumed (kWh)")
	add("operating_days", "Total operating days")
	add("last_reading_timestamp_seconds", "Unix time of the last successful reading")

	m.readErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "renogy",
		Name:        "read_errors_total",
		Help:        "Failed polling attempts",
		ConstLabels: labels,
	})
	m.info = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   "renogy",
		Name:        "device_info",
		Help:        "Controller identification, always 1",
		ConstLabels: labels,
	}, []string{"model", "serial_number", "hardware_version", "software_version"})
	m.registry.MustRegister(m.readErrors, m.info)
	return m
}

// Registry is the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetDeviceInfo publishes the identification labels.
func (m *Metrics) SetDeviceInfo(info renogy.DeviceInfo) {
	m.info.Reset()
	m.info.WithLabelValues(info.Model, info.SerialNumber, info.HardwareVersion, info.SoftwareVersion).Set(1)
}

// Observe updates the gauges from r.
func (m *Metrics) Observe(r *renogy.Reading) {
	m.set("battery_soc_percent", float64(r.Battery.StateOfCharge))
	m.set("battery_voltage_volts", r.Battery.Voltage)
	m.set("battery_current_amperes", r.Battery.Current)
	m.set("battery_power_watts", r.Battery.Power())
	m.set("battery_temperature_celsius", float64(r.Battery.Temperature))
	m.set("solar_voltage_volts", r.Solar.Voltage)
	m.set("solar_current_amperes", r.Solar.Current)
	m.set("solar_power_watts", float64(r.Solar.Power))
	m.set("load_voltage_volts", r.Load.Voltage)
	m.set("load_current_amperes", r.Load.Current)
	m.set("load_power_watts", float64(r.Load.Power))
	m.set("load_on", boolToFloat(r.Load.IsOn))
	m.set("controller_temperature_celsius", float64(r.Controller.Temperature))
	m.set("charging_state", float64(r.Controller.ChargingState))
	if r.Daily != nil {
		m.set("daily_power_generation_watt_hours", float64(r.Daily.PowerGeneration))
		m.set("daily_power_consumption_watt_hours", float64(r.Daily.PowerConsumption))
	}
	if r.Historical != nil {
		m.set("total_power_generation_kilowatt_hours", r.Historical.PowerGenerated)
		m.set("total_power_consumption_kilowatt_hours", r.Historical.PowerConsumed)
		m.set("operating_days", float64(r.Historical.OperatingDays))
	}
	m.set("last_reading_timestamp_seconds", float64(r.Timestamp.Unix()))
}

// ObserveError counts a failed poll.
func (m *Metrics) ObserveError() {
	m.readErrors.Inc()
}

func (m *Metrics) set(name string, v float64) {
	if g, ok := m.gauges[name]; ok {
		g.Set(v)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes the metrics on addr at path until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr, path string) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Metrics listening", "address", addr, "path", path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
