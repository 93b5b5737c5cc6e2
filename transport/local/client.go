// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package local runs register transactions against an in-process request
// handler instead of a serial line.
package local

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ffutop/renogy-rtu/modbus"
	rtupacket "github.com/ffutop/renogy-rtu/modbus/rtu"
	"github.com/ffutop/renogy-rtu/transport"
)

// Client implements transport.Transporter for a local slave, such as the
// simulator. Responses are validated as strictly as on the wire.
type Client struct {
	handler transport.RequestHandler

	mu        sync.Mutex
	connected bool
}

// NewClient creates a client that dispatches to handler.
func NewClient(handler transport.RequestHandler) *Client {
	return &Client{handler: handler}
}

// Connect is a no-op for local slave.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	c.connected = true
	return nil
}

// Close disconnects the client. The handler is not closed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

// ReadHoldingRegisters reads quantity registers starting at address.
func (c *Client) ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error) {
	if quantity < 1 || quantity > rtupacket.MaxReadQuantity {
		return nil, fmt.Errorf("modbus: quantity '%v' must be between '%v' and '%v'", quantity, 1, rtupacket.MaxReadQuantity)
	}
	data := binary.BigEndian.AppendUint16(nil, address)
	data = binary.BigEndian.AppendUint16(data, quantity)

	payload, err := c.send(ctx, slaveID, modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeReadHoldingRegisters, Data: data})
	if err != nil {
		return nil, err
	}
	if len(payload) < 1 || int(payload[0]) != len(payload)-1 || len(payload)-1 != int(quantity)*2 {
		return nil, fmt.Errorf("%w: got %d data bytes for %d registers", modbus.ErrInvalidResponse, len(payload), quantity)
	}
	return rtupacket.DecodeRegisters(payload[1:])
}

// WriteSingleRegister writes value to the register at address and checks
// the echo.
func (c *Client) WriteSingleRegister(ctx context.Context, slaveID byte, address, value uint16) error {
	data := binary.BigEndian.AppendUint16(nil, address)
	data = binary.BigEndian.AppendUint16(data, value)

	payload, err := c.send(ctx, slaveID, modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeWriteSingleRegister, Data: data})
	if err != nil {
		return err
	}
	if !bytes.Equal(payload, data) {
		return fmt.Errorf("%w: write echo '%X' does not match request '%X'", modbus.ErrInvalidResponse, payload, data)
	}
	return nil
}

// send runs one transaction and returns the response data.
func (c *Client) send(ctx context.Context, slaveID byte, req modbus.ProtocolDataUnit) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, modbus.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slog.Debug("local request", "slave_id", slaveID, "function", req.FunctionCode, "data", fmt.Sprintf("%X", req.Data))

	resp, err := c.handler(ctx, slaveID, req)
	if err != nil {
		// A slave that does not answer looks like a silent line.
		return nil, fmt.Errorf("%w: %v", modbus.ErrTimeout, err)
	}
	switch resp.FunctionCode {
	case req.FunctionCode:
		return resp.Data, nil
	case req.FunctionCode | modbus.FuncCodeExceptionFlag:
		if len(resp.Data) != 1 {
			return nil, fmt.Errorf("%w: exception response of %d bytes", modbus.ErrInvalidResponse, len(resp.Data))
		}
		return nil, &modbus.ExceptionError{FunctionCode: req.FunctionCode, ExceptionCode: resp.Data[0]}
	default:
		return nil, fmt.Errorf("%w: function code '%v' does not match request '%v'", modbus.ErrInvalidResponse, resp.FunctionCode, req.FunctionCode)
	}
}
