// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ffutop/renogy-rtu/modbus"
	"github.com/ffutop/renogy-rtu/modbus/crc"
)

type InvalidLengthError struct {
	Length byte
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("invalid length received: %d", e.Length)
}

// Header is the fixed three-byte prefix of every response.
type Header struct {
	SlaveID      byte
	FunctionCode byte
	// Count is the payload byte count, or the exception code when
	// FunctionCode carries the exception flag.
	Count byte
}

// ParseHeader parses the first three bytes of a response. Fewer than three
// bytes means the device stopped talking.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: got %d of %d header bytes", modbus.ErrTimeout, len(b), HeaderSize)
	}
	return Header{SlaveID: b[0], FunctionCode: b[1], Count: b[2]}, nil
}

func (h Header) IsException() bool {
	return h.FunctionCode&modbus.FuncCodeExceptionFlag != 0
}

// CalculateResponseLength returns the expected length of the response to a
// read-holding or write-single request ADU.
func CalculateResponseLength(adu []byte) int {
	length := MinSize
	switch adu[1] {
	case FuncCodeReadHoldingRegister, FuncCodeReadInputRegister:
		count := int(binary.BigEndian.Uint16(adu[4:]))
		length += 1 + count*2
	case FuncCodeWriteSingleCoil, FuncCodeWriteSingleRegister:
		length += 4
	}
	return length
}

// CalculateRequestLength returns the expected total length of the Request RTU ADU based on the header.
func CalculateRequestLength(funcCode byte, header []byte) (int, error) {
	switch funcCode {
	case FuncCodeReadCoils,
		FuncCodeReadDiscreteInputs,
		FuncCodeReadHoldingRegister,
		FuncCodeReadInputRegister,
		FuncCodeWriteSingleCoil,
		FuncCodeWriteSingleRegister:
		// [SlaveID, Func, Addr(2), Val(2), CRC(2)]
		return RequestSize, nil
	case FuncCodeWriteMultipleCoils,
		FuncCodeWriteMultipleRegister:
		// [SlaveID, Func, Addr(2), Quant(2), ByteCount(1), Data(N), CRC(2)]
		if len(header) < 7 {
			return 0, fmt.Errorf("need 7 bytes to determine length for 0x%02X, got %d", funcCode, len(header))
		}
		return 7 + int(header[6]) + 2, nil
	default:
		return 0, fmt.Errorf("unsupported function code: 0x%02X", funcCode)
	}
}

// ReadResponse reads the response to a read-holding or write-single request.
//
// The three header bytes are read first. An exception response has its
// CRC consumed and is returned as *modbus.ExceptionError. Otherwise the rest
// of the frame is read, its CRC checked and the payload returned: the data
// bytes for a read, the echoed address and value for a write.
//
// A zero deadline leaves timing entirely to the reader. Readers with a
// SetReadDeadline method, such as net.Conn, have it applied for the call.
func ReadResponse(r io.Reader, slaveID, functionCode byte, deadline time.Time) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("reader is nil")
	}
	if d, ok := r.(interface{ SetReadDeadline(time.Time) error }); ok && !deadline.IsZero() {
		if err := d.SetReadDeadline(deadline); err == nil {
			defer d.SetReadDeadline(time.Time{})
		}
	}

	frame := make([]byte, HeaderSize, MaxSize)
	n, err := readFull(r, frame, deadline)
	if err != nil && !errors.Is(err, modbus.ErrTimeout) {
		return nil, fmt.Errorf("response header: %w", err)
	}
	h, err := ParseHeader(frame[:n])
	if err != nil {
		return nil, err
	}

	if h.IsException() {
		// Keep the line framed for the next request.
		var tail [2]byte
		_, _ = readFull(r, tail[:], deadline)
		return nil, &modbus.ExceptionError{
			FunctionCode:  h.FunctionCode &^ modbus.FuncCodeExceptionFlag,
			ExceptionCode: h.Count,
		}
	}

	var remaining, payloadStart int
	switch functionCode {
	case FuncCodeWriteSingleRegister, FuncCodeWriteSingleCoil:
		// Echo of the request: address low byte, value, CRC.
		remaining = RequestSize - HeaderSize
		payloadStart = 2
	default:
		if int(h.Count) > MaxSize-ExceptionSize {
			return nil, &InvalidLengthError{Length: h.Count}
		}
		remaining = int(h.Count) + 2
		payloadStart = HeaderSize
	}

	frame = frame[:HeaderSize+remaining]
	if _, err := readFull(r, frame[HeaderSize:], deadline); err != nil {
		return nil, fmt.Errorf("response payload: %w", err)
	}

	if !crc.Verify(frame) {
		length := len(frame)
		return nil, fmt.Errorf("%w: response crc '%v' does not match expected '%v'", modbus.ErrCRCMismatch,
			uint16(frame[length-1])<<8|uint16(frame[length-2]), crc.Checksum(frame[:length-2]))
	}
	if h.SlaveID != slaveID {
		return nil, fmt.Errorf("%w: response slave id '%v' does not match request '%v'", modbus.ErrInvalidResponse, h.SlaveID, slaveID)
	}
	if h.FunctionCode != functionCode {
		return nil, fmt.Errorf("%w: response function '%v' does not match request '%v'", modbus.ErrInvalidResponse, h.FunctionCode, functionCode)
	}
	return frame[payloadStart : len(frame)-2], nil
}

// readFull fills buf and reports how many bytes arrived. A read that makes
// no progress, ends the stream or times out is a communication timeout.
func readFull(r io.Reader, buf []byte, deadline time.Time) (int, error) {
	n := 0
	for n < len(buf) {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return n, modbus.ErrTimeout
		}
		m, err := r.Read(buf[n:])
		n += m
		if n == len(buf) {
			break
		}
		if err != nil {
			if isTimeout(err) {
				return n, modbus.ErrTimeout
			}
			return n, err
		}
		if m == 0 {
			return n, modbus.ErrTimeout
		}
	}
	return n, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, modbus.ErrTimeout) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
