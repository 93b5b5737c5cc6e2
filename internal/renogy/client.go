// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package renogy reads telemetry from and controls Renogy solar charge
// controllers.
package renogy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ffutop/renogy-rtu/internal/registers"
	"github.com/ffutop/renogy-rtu/modbus"
	"github.com/ffutop/renogy-rtu/transport"
)

// Client talks to one controller on a transport it owns.
type Client struct {
	transport transport.Transporter
	deviceID  byte

	now func() time.Time
}

// NewClient returns a client for the controller at deviceID.
func NewClient(t transport.Transporter, deviceID byte) *Client {
	return &Client{
		transport: t,
		deviceID:  deviceID,
		now:       time.Now,
	}
}

// DeviceID is the Modbus id of the controller.
func (c *Client) DeviceID() byte {
	return c.deviceID
}

// Connect opens the transport.
func (c *Client) Connect(ctx context.Context) error {
	return c.transport.Connect(ctx)
}

// Close releases the transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// WithSession connects a client, runs fn and closes the client on every
// exit path. A close error is joined to fn's error.
func WithSession(ctx context.Context, t transport.Transporter, deviceID byte, fn func(*Client) error) (err error) {
	c := NewClient(t, deviceID)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close: %w", cerr))
		}
	}()
	return fn(c)
}

// ReadRegisters reads count holding registers starting at start.
func (c *Client) ReadRegisters(ctx context.Context, start, count uint16) ([]uint16, error) {
	return c.transport.ReadHoldingRegisters(ctx, c.deviceID, start, count)
}

// WriteRegister writes one holding register.
func (c *Client) WriteRegister(ctx context.Context, address, value uint16) error {
	if err := c.transport.WriteSingleRegister(ctx, c.deviceID, address, value); err != nil {
		return err
	}
	slog.Info("Wrote register", "address", fmt.Sprintf("0x%04X", address), "value", value)
	return nil
}

// deviceInfoFields are read one request each so that one unreadable field
// does not hide the others.
var deviceInfoFields = []struct {
	what  string
	names []string
	apply func(*DeviceInfo, registers.Values)
}{
	{"device model", []string{registers.DeviceModel}, func(d *DeviceInfo, v registers.Values) {
		d.Model = v[registers.DeviceModel].Text
	}},
	{"serial number", []string{registers.SerialNumber}, func(d *DeviceInfo, v registers.Values) {
		d.SerialNumber = v[registers.SerialNumber].Text
	}},
	{"versions", []string{registers.HardwareVersion, registers.SoftwareVersion}, func(d *DeviceInfo, v registers.Values) {
		d.HardwareVersion = v[registers.HardwareVersion].Text
		d.SoftwareVersion = v[registers.SoftwareVersion].Text
	}},
}

// ReadDeviceInfo reads the model, serial number and versions. A field that
// fails to read is logged and left empty. Only a missing connection or a
// done context fail the call.
func (c *Client) ReadDeviceInfo(ctx context.Context) (DeviceInfo, error) {
	var info DeviceInfo
	for _, f := range deviceInfoFields {
		values, err := c.readNamed(ctx, f.names...)
		if err != nil {
			if errors.Is(err, modbus.ErrNotConnected) || ctx.Err() != nil {
				return DeviceInfo{}, err
			}
			slog.Warn("Failed to read device info", "field", f.what, "device_id", c.deviceID, "err", err)
			continue
		}
		f.apply(&info, values)
	}
	return info, nil
}

// ReadRealtimeData reads battery, solar, load and controller values in one
// request. info is attached to the reading as is.
func (c *Client) ReadRealtimeData(ctx context.Context, info DeviceInfo) (*Reading, error) {
	values, err := c.readGroups(ctx, registers.GroupRealtime, registers.GroupControl)
	if err != nil {
		return nil, fmt.Errorf("read realtime data: %w", err)
	}
	r := newRealtime(values)
	r.Timestamp = c.now()
	r.DeviceInfo = info
	return r, nil
}

// ReadDailyStats reads today's counters.
func (c *Client) ReadDailyStats(ctx context.Context) (*DailyStats, error) {
	values, err := c.readGroups(ctx, registers.GroupDaily)
	if err != nil {
		return nil, fmt.Errorf("read daily stats: %w", err)
	}
	return newDailyStats(values), nil
}

// ReadHistoricalStats reads the lifetime counters.
func (c *Client) ReadHistoricalStats(ctx context.Context) (*HistoricalStats, error) {
	values, err := c.readGroups(ctx, registers.GroupHistorical)
	if err != nil {
		return nil, fmt.Errorf("read historical stats: %w", err)
	}
	return newHistoricalStats(values), nil
}

// ReadChargingState reads the charging state code.
func (c *Client) ReadChargingState(ctx context.Context) (int, error) {
	values, err := c.readNamed(ctx, registers.ChargingState)
	if err != nil {
		return 0, fmt.Errorf("read charging state: %w", err)
	}
	return values.Int(registers.ChargingState), nil
}

// ReadOptions selects the optional blocks of ReadAll.
type ReadOptions struct {
	DailyStats      bool
	HistoricalStats bool
}

// ReadAll reads real-time data, the charging state and the statistics
// selected by opts. Any failed request fails the call.
func (c *Client) ReadAll(ctx context.Context, info DeviceInfo, opts ReadOptions) (*Reading, error) {
	r, err := c.ReadRealtimeData(ctx, info)
	if err != nil {
		return nil, err
	}
	if r.Controller.ChargingState, err = c.ReadChargingState(ctx); err != nil {
		return nil, err
	}
	if opts.DailyStats {
		if r.Daily, err = c.ReadDailyStats(ctx); err != nil {
			return nil, err
		}
	}
	if opts.HistoricalStats {
		if r.Historical, err = c.ReadHistoricalStats(ctx); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// SetLoad switches the load output. The device echo is verified by the
// transport.
func (c *Client) SetLoad(ctx context.Context, on bool) error {
	d := mustLookup(registers.LoadSwitch)
	var value uint16
	if on {
		value = 1
	}
	if err := c.WriteRegister(ctx, d.Address, value); err != nil {
		return fmt.Errorf("set load: %w", err)
	}
	slog.Info("Load switched", "on", on, "device_id", c.deviceID)
	return nil
}

// GetLoadState reads the load switch.
func (c *Client) GetLoadState(ctx context.Context) (bool, error) {
	values, err := c.readNamed(ctx, registers.LoadSwitch)
	if err != nil {
		return false, fmt.Errorf("get load state: %w", err)
	}
	return values[registers.LoadSwitch].On, nil
}

func (c *Client) readGroups(ctx context.Context, groups ...registers.Group) (registers.Values, error) {
	start, count, err := registers.Renogy.Span(groups...)
	if err != nil {
		return nil, err
	}
	words, err := c.ReadRegisters(ctx, start, count)
	if err != nil {
		return nil, err
	}
	return registers.Renogy.DecodeBlock(start, words, groups...)
}

func (c *Client) readNamed(ctx context.Context, names ...string) (registers.Values, error) {
	defs := make([]registers.Definition, 0, len(names))
	for _, name := range names {
		defs = append(defs, mustLookup(name))
	}
	start, count, err := registers.SpanOf(defs)
	if err != nil {
		return nil, err
	}
	words, err := c.ReadRegisters(ctx, start, count)
	if err != nil {
		return nil, err
	}
	return registers.DecodeAll(start, words, defs)
}

func mustLookup(name string) registers.Definition {
	d, ok := registers.Renogy.Lookup(name)
	if !ok {
		panic("renogy: register " + name + " not defined")
	}
	return d
}
