// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	gridserial "github.com/grid-x/serial"
	"go.bug.st/serial"

	"github.com/ffutop/renogy-rtu/internal/config"
	"github.com/ffutop/renogy-rtu/modbus"
	"github.com/ffutop/renogy-rtu/transport"
)

// OpenPort opens the serial device with the configured driver.
func OpenPort(cfg config.SerialConfig) (transport.Port, error) {
	switch cfg.Driver {
	case "", config.DriverNative:
		return openNative(cfg)
	case config.DriverRS485:
		return openRS485(cfg)
	default:
		return nil, fmt.Errorf("unknown serial driver %q", cfg.Driver)
	}
}

func openNative(cfg config.SerialConfig) (transport.Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	switch strings.ToUpper(cfg.Parity) {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	if cfg.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	port, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(cfg.Timeout); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

// rs485Port adapts a grid-x port, which drives RTS around each write for
// half-duplex transceivers.
type rs485Port struct {
	gridserial.Port
}

func openRS485(cfg config.SerialConfig) (transport.Port, error) {
	port, err := gridserial.Open(&gridserial.Config{
		Address:  cfg.Device,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   strings.ToUpper(cfg.Parity),
		Timeout:  cfg.Timeout,
		RS485: gridserial.RS485Config{
			Enabled:            cfg.RS485,
			DelayRtsBeforeSend: cfg.DelayRtsBeforeSend,
			DelayRtsAfterSend:  cfg.DelayRtsAfterSend,
			RtsHighDuringSend:  cfg.RtsHighDuringSend,
			RtsHighAfterSend:   cfg.RtsHighAfterSend,
			RxDuringTx:         cfg.RxDuringTx,
		},
	})
	if err != nil {
		return nil, err
	}
	return &rs485Port{Port: port}, nil
}

func (p *rs485Port) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if errors.Is(err, gridserial.ErrTimeout) {
		err = modbus.ErrTimeout
	}
	return n, err
}

// ResetInputBuffer is a no-op: grid-x/serial exposes no input purge.
// Stale bytes surface as a CRC or slave id mismatch on the next response.
func (p *rs485Port) ResetInputBuffer() error {
	return nil
}

// serialPort has configuration and owns the open port.
type serialPort struct {
	Config config.SerialConfig

	mu sync.Mutex
	// port is nil while disconnected.
	port transport.Port
	open func(config.SerialConfig) (transport.Port, error)
}

func (sp *serialPort) Connect(ctx context.Context) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if sp.port != nil {
		return nil
	}
	open := sp.open
	if open == nil {
		open = OpenPort
	}
	port, err := open(sp.Config)
	if err != nil {
		return &modbus.ConnectionError{Device: sp.Config.Device, Err: err}
	}
	sp.port = port
	return nil
}

func (sp *serialPort) Close() (err error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.port != nil {
		err = sp.port.Close()
		sp.port = nil
	}
	return
}

// Attach adopts an already open port in place of opening Config.Device.
// A previously attached port is closed.
func (sp *serialPort) Attach(port transport.Port) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.port != nil && sp.port != port {
		sp.port.Close()
	}
	sp.port = port
}

// Connected reports whether the port is open.
func (sp *serialPort) Connected() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.port != nil
}
