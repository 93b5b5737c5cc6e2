// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package monitor

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ffutop/renogy-rtu/internal/config"
	"github.com/ffutop/renogy-rtu/internal/renogy"
	"github.com/ffutop/renogy-rtu/modbus"
)

type result struct {
	reading *renogy.Reading
	err     error
}

// fakeSource replays results, then repeats the last one.
type fakeSource struct {
	mu      sync.Mutex
	results []result
	calls   int
	infos   []renogy.DeviceInfo
	opts    []renogy.ReadOptions
}

func (f *fakeSource) ReadAll(ctx context.Context, info renogy.DeviceInfo, opts renogy.ReadOptions) (*renogy.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos = append(f.infos, info)
	f.opts = append(f.opts, opts)
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	res := f.results[i]
	if res.reading != nil {
		r := *res.reading
		r.DeviceInfo = info
		return &r, nil
	}
	return nil, res.err
}

func sampleReading() *renogy.Reading {
	return &renogy.Reading{
		Timestamp:  time.Unix(1767225600, 0),
		Battery:    renogy.Battery{StateOfCharge: 85, Voltage: 13.2, Current: 0.15, Temperature: 5},
		Solar:      renogy.Solar{Voltage: 12.5, Current: 0.08, Power: 50},
		Load:       renogy.Load{Voltage: 12.5, Current: 0.02, Power: 25, IsOn: true},
		Controller: renogy.Controller{Temperature: 20, ChargingState: 2},
	}
}

var testInfo = renogy.DeviceInfo{Model: "RNG-CTRL-RVR40", SerialNumber: "RNG0001234"}

func TestRun_CountsSuccessfulReadings(t *testing.T) {
	src := &fakeSource{results: []result{
		{err: modbus.ErrTimeout},
		{reading: sampleReading()},
		{err: modbus.ErrCRCMismatch},
		{reading: sampleReading()},
	}}

	var got []*renogy.Reading
	cfg := config.MonitorConfig{Interval: time.Millisecond, Count: 2, DailyStats: true}
	mon := New(src, testInfo, cfg, func(r *renogy.Reading) error {
		got = append(got, r)
		return nil
	})

	if err := mon.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if src.calls != 4 {
		t.Errorf("polled %d times, want 4", src.calls)
	}
	if len(got) != 2 {
		t.Fatalf("handled %d readings, want 2", len(got))
	}
	for i, info := range src.infos {
		if info != testInfo {
			t.Errorf("poll %d got info %+v, want the one read at startup", i, info)
		}
	}
	if !src.opts[0].DailyStats || src.opts[0].HistoricalStats {
		t.Errorf("opts = %+v", src.opts[0])
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	src := &fakeSource{results: []result{{err: modbus.ErrTimeout}}}
	mon := New(src, testInfo, config.MonitorConfig{Interval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- mon.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_HandlerError(t *testing.T) {
	src := &fakeSource{results: []result{{reading: sampleReading()}}}
	stop := errors.New("stop")
	mon := New(src, testInfo, config.MonitorConfig{Interval: time.Millisecond}, func(*renogy.Reading) error { return stop })

	if err := mon.Run(context.Background()); !errors.Is(err, stop) {
		t.Errorf("Run = %v, want handler error", err)
	}
	if src.calls != 1 {
		t.Errorf("polled %d times, want 1", src.calls)
	}
}

func TestRun_InvalidInterval(t *testing.T) {
	mon := New(&fakeSource{}, testInfo, config.MonitorConfig{}, nil)
	if err := mon.Run(context.Background()); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestRun_Metrics(t *testing.T) {
	src := &fakeSource{results: []result{
		{err: modbus.ErrTimeout},
		{reading: sampleReading()},
	}}
	m := NewMetrics(1)
	mon := New(src, testInfo, config.MonitorConfig{Interval: time.Millisecond, Count: 1}, nil).WithMetrics(m)

	if err := mon.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := testutil.ToFloat64(m.readErrors); got != 1 {
		t.Errorf("read errors = %v, want 1", got)
	}
	checks := map[string]float64{
		"battery_soc_percent":            85,
		"battery_voltage_volts":          13.2,
		"solar_power_watts":              50,
		"load_on":                        1,
		"controller_temperature_celsius": 20,
		"charging_state":                 2,
		"last_reading_timestamp_seconds": 1767225600,
	}
	for name, want := range checks {
		if got := testutil.ToFloat64(m.gauges[name]); got != want {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	if got := testutil.ToFloat64(m.info.WithLabelValues(testInfo.Model, testInfo.SerialNumber, "", "")); got != 1 {
		t.Errorf("device_info = %v, want 1", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics(16)
	m.Observe(sampleReading())

	// Daily and lifetime gauges are registered even before they are set.
	if n, err := testutil.GatherAndCount(m.Registry()); err != nil || n != 21 {
		t.Errorf("GatherAndCount = %d, %v; want 21 series", n, err)
	}

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`renogy_battery_soc_percent{device_id="16"} 85`,
		`renogy_load_power_watts{device_id="16"} 25`,
		`renogy_read_errors_total{device_id="16"} 0`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
