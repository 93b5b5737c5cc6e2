// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package modbus holds the protocol vocabulary shared by the codec,
// the transaction engine and the simulator.
package modbus

import (
	"errors"
	"fmt"
)

const (
	// Bit 7 of the function code marks an exception response.
	FuncCodeExceptionFlag = 0x80

	FuncCodeReadHoldingRegisters = 0x03
	FuncCodeWriteSingleRegister  = 0x06
)

const (
	ExceptionCodeIllegalFunction                    = 0x01
	ExceptionCodeIllegalDataAddress                 = 0x02
	ExceptionCodeIllegalDataValue                   = 0x03
	ExceptionCodeServerDeviceFailure                = 0x04
	ExceptionCodeAcknowledge                        = 0x05
	ExceptionCodeServerDeviceBusy                   = 0x06
	ExceptionCodeMemoryParityError                  = 0x08
	ExceptionCodeGatewayPathUnavailable             = 0x0A
	ExceptionCodeGatewayTargetDeviceFailedToRespond = 0x0B
)

var exceptionMessages = map[byte]string{
	ExceptionCodeIllegalFunction:                    "Illegal Function",
	ExceptionCodeIllegalDataAddress:                 "Illegal Data Address",
	ExceptionCodeIllegalDataValue:                   "Illegal Data Value",
	ExceptionCodeServerDeviceFailure:                "Slave Device Failure",
	ExceptionCodeAcknowledge:                        "Acknowledge",
	ExceptionCodeServerDeviceBusy:                   "Slave Device Busy",
	ExceptionCodeMemoryParityError:                  "Memory Parity Error",
	ExceptionCodeGatewayPathUnavailable:             "Gateway Path Unavailable",
	ExceptionCodeGatewayTargetDeviceFailedToRespond: "Gateway Target Failed to Respond",
}

// ExceptionMessage returns the human readable name of an exception code.
func ExceptionMessage(code byte) string {
	if msg, ok := exceptionMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown Exception (0x%02X)", code)
}

// ProtocolDataUnit (PDU) is independent of underlying communication layers.
type ProtocolDataUnit struct {
	FunctionCode byte
	Data         []byte
}

var (
	// ErrNotConnected is returned when an operation needs an open port.
	ErrNotConnected = errors.New("modbus: not connected")
	// ErrTimeout is returned when a response is not fully received in time.
	ErrTimeout = errors.New("modbus: communication timeout")
	// ErrCRCMismatch is returned when a response checksum does not verify.
	ErrCRCMismatch = errors.New("modbus: crc mismatch")
	// ErrInvalidResponse is returned for well framed responses that do not
	// answer the request that was sent.
	ErrInvalidResponse = errors.New("modbus: invalid response")
)

// ConnectionError reports a serial port that could not be opened.
type ConnectionError struct {
	Device string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("modbus: could not open %s: %v", e.Device, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ExceptionError is a device reported exception.
// FunctionCode is the request function code without the exception flag.
type ExceptionError struct {
	FunctionCode  byte
	ExceptionCode byte
}

// Message returns the table text for the exception code.
func (e *ExceptionError) Message() string {
	return ExceptionMessage(e.ExceptionCode)
}

func (e *ExceptionError) Error() string {
	return fmt.Sprintf("modbus: exception '%v' (%s), function '%v'", e.ExceptionCode, e.Message(), e.FunctionCode)
}
