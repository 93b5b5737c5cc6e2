// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"
	"io"

	"github.com/ffutop/renogy-rtu/modbus"
)

// Port is an open, point-to-point serial byte stream.
type Port interface {
	io.ReadWriteCloser
	// ResetInputBuffer discards bytes received but not yet read.
	ResetInputBuffer() error
}

// Transporter performs register transactions on one serial line. At most
// one transaction is in flight at a time.
type Transporter interface {
	Connect(ctx context.Context) error
	Close() error
	ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error)
	WriteSingleRegister(ctx context.Context, slaveID byte, address, value uint16) error
}

// RequestHandler answers one request PDU addressed to slaveID.
type RequestHandler func(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error)

// Upstream represents a source of requests (a Modbus master connected to us).
type Upstream interface {
	// Start serves requests until ctx is done. It blocks.
	Start(ctx context.Context, handler RequestHandler) error
	Close() error
}
