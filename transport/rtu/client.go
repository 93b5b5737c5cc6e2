// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/ffutop/renogy-rtu/internal/config"
	"github.com/ffutop/renogy-rtu/modbus"
	rtupacket "github.com/ffutop/renogy-rtu/modbus/rtu"
)

// Client is a Modbus RTU master on a serial line.
type Client struct {
	serialPort
}

// NewClient allocates and initializes a RTU Client. The port is opened by
// Connect.
func NewClient(cfg config.SerialConfig) *Client {
	client := &Client{}
	client.Config = cfg
	return client
}

// ReadHoldingRegisters reads quantity registers starting at address.
func (mb *Client) ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error) {
	if quantity < 1 || quantity > rtupacket.MaxReadQuantity {
		return nil, fmt.Errorf("modbus: quantity '%v' must be between '%v' and '%v'", quantity, 1, rtupacket.MaxReadQuantity)
	}
	req := rtupacket.BuildReadRequest(slaveID, modbus.FuncCodeReadHoldingRegisters, address, quantity)
	payload, err := mb.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(payload) != int(quantity)*2 {
		return nil, fmt.Errorf("%w: got %d data bytes for %d registers", modbus.ErrInvalidResponse, len(payload), quantity)
	}
	return rtupacket.DecodeRegisters(payload)
}

// WriteSingleRegister writes value to the register at address. The device
// echoes the request; the echo is checked and discarded.
func (mb *Client) WriteSingleRegister(ctx context.Context, slaveID byte, address, value uint16) error {
	req := rtupacket.BuildWriteRequest(slaveID, address, value)
	payload, err := mb.Send(ctx, req)
	if err != nil {
		return err
	}
	if !bytes.Equal(payload, req[2:6]) {
		return fmt.Errorf("%w: write echo '%X' does not match request '%X'", modbus.ErrInvalidResponse, payload, req[2:6])
	}
	return nil
}

// Send performs one transaction: discard stale input, write the request,
// wait the settle delay, then read and validate the response. It returns
// the response payload. Transactions on one Client never overlap.
func (mb *Client) Send(ctx context.Context, aduRequest []byte) ([]byte, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.port == nil {
		return nil, modbus.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := mb.port.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("modbus: discard input: %w", err)
	}
	slog.Debug("send to modbus slave", "request", hex.EncodeToString(aduRequest))
	if _, err := mb.port.Write(aduRequest); err != nil {
		return nil, fmt.Errorf("modbus: write request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(mb.settleDelay(aduRequest)):
	}

	var deadline time.Time
	if mb.Config.Timeout > 0 {
		deadline = time.Now().Add(mb.Config.Timeout)
	}
	payload, err := rtupacket.ReadResponse(mb.port, aduRequest[0], aduRequest[1], deadline)
	if err != nil {
		slog.Debug("modbus transaction failed", "request", hex.EncodeToString(aduRequest), "err", err)
		return nil, err
	}
	slog.Debug("recv from modbus slave", "payload", hex.EncodeToString(payload))
	return payload, nil
}

// settleDelay is the configured pause, or one frame time at the current
// baud rate when none is configured.
func (mb *Client) settleDelay(aduRequest []byte) time.Duration {
	if mb.Config.SettleDelay > 0 {
		return mb.Config.SettleDelay
	}
	return mb.calculateDelay(len(aduRequest) + rtupacket.CalculateResponseLength(aduRequest))
}

// calculateDelay calculates the needed delay to separate frames.
func (mb *Client) calculateDelay(chars int) time.Duration {
	var characterDelay, frameDelay int

	if mb.Config.BaudRate <= 0 || mb.Config.BaudRate > 19200 {
		characterDelay = 750
		frameDelay = 1750
	} else {
		characterDelay = 15000000 / mb.Config.BaudRate
		frameDelay = 35000000 / mb.Config.BaudRate
	}
	return time.Duration(characterDelay*chars+frameDelay) * time.Microsecond
}
