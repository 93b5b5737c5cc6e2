// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package monitor polls a controller at a fixed interval.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ffutop/renogy-rtu/internal/config"
	"github.com/ffutop/renogy-rtu/internal/renogy"
)

// Source produces readings. *renogy.Client implements it.
type Source interface {
	ReadAll(ctx context.Context, info renogy.DeviceInfo, opts renogy.ReadOptions) (*renogy.Reading, error)
}

// Monitor issues one reading per interval. A failed reading is logged and
// retried at the next tick. Transactions never overlap.
type Monitor struct {
	source  Source
	info    renogy.DeviceInfo
	cfg     config.MonitorConfig
	handle  func(*renogy.Reading) error
	metrics *Metrics
}

// New creates a monitor. info is attached to every reading; handle receives
// each successful reading and stops the loop by returning an error.
func New(source Source, info renogy.DeviceInfo, cfg config.MonitorConfig, handle func(*renogy.Reading) error) *Monitor {
	return &Monitor{
		source: source,
		info:   info,
		cfg:    cfg,
		handle: handle,
	}
}

// WithMetrics also records every poll in m.
func (mon *Monitor) WithMetrics(m *Metrics) *Monitor {
	mon.metrics = m
	if m != nil {
		m.SetDeviceInfo(mon.info)
	}
	return mon
}

// Run polls until ctx is done or, with a positive count, until that many
// readings succeeded. The first poll is immediate.
func (mon *Monitor) Run(ctx context.Context) error {
	if mon.cfg.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %v", mon.cfg.Interval)
	}
	opts := renogy.ReadOptions{
		DailyStats:      mon.cfg.DailyStats,
		HistoricalStats: mon.cfg.HistoricalStats,
	}

	ticker := time.NewTicker(mon.cfg.Interval)
	defer ticker.Stop()

	taken := 0
	for {
		r, err := mon.source.ReadAll(ctx, mon.info, opts)
		switch {
		case err == nil:
			taken++
			if mon.metrics != nil {
				mon.metrics.Observe(r)
			}
			if mon.handle != nil {
				if err := mon.handle(r); err != nil {
					return err
				}
			}
		case ctx.Err() != nil:
			return nil
		default:
			slog.Error("Read error", "err", err)
			if mon.metrics != nil {
				mon.metrics.ObserveError()
			}
		}

		if mon.cfg.Count > 0 && taken >= mon.cfg.Count {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
