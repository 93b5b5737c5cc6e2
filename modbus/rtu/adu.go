// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/binary"
	"fmt"

	"github.com/ffutop/renogy-rtu/modbus"
	"github.com/ffutop/renogy-rtu/modbus/crc"
)

// ApplicationDataUnit is a PDU addressed to one slave.
type ApplicationDataUnit struct {
	SlaveID byte
	Pdu     modbus.ProtocolDataUnit
}

// Decode parses a complete RTU frame and checks its CRC.
func Decode(raw []byte) (adu *ApplicationDataUnit, err error) {
	length := len(raw)
	// Minimum size (including address, function and CRC)
	if length < MinSize {
		err = fmt.Errorf("modbus: frame length '%v' does not meet minimum '%v'", length, MinSize)
		return
	}
	if !crc.Verify(raw) {
		err = fmt.Errorf("%w: frame crc '%v' does not match expected '%v'", modbus.ErrCRCMismatch,
			uint16(raw[length-1])<<8|uint16(raw[length-2]), crc.Checksum(raw[:length-2]))
		return
	}
	adu = &ApplicationDataUnit{}
	adu.SlaveID = raw[0]
	adu.Pdu.FunctionCode = raw[1]
	adu.Pdu.Data = raw[2 : length-2]
	return
}

// Encode encodes PDU in an RTU frame:
//
//	Slave Address   : 1 byte
//	Function        : 1 byte
//	Data            : 0 up to 252 bytes
//	CRC             : 2 bytes
func (adu *ApplicationDataUnit) Encode() (raw []byte, err error) {
	length := len(adu.Pdu.Data) + 4
	if length > MaxSize {
		err = fmt.Errorf("modbus: length of data '%v' must not be bigger than '%v'", length, MaxSize)
		return
	}
	raw = make([]byte, 2, length)
	raw[0] = adu.SlaveID
	raw[1] = adu.Pdu.FunctionCode
	raw = append(raw, adu.Pdu.Data...)
	return crc.Append(raw), nil
}

// BuildReadRequest returns the 8-byte frame reading count registers
// starting at address.
func BuildReadRequest(slaveID, functionCode byte, address, count uint16) []byte {
	return buildRequest(slaveID, functionCode, address, count)
}

// BuildWriteRequest returns the 8-byte frame writing value to a single
// holding register.
func BuildWriteRequest(slaveID byte, address, value uint16) []byte {
	return buildRequest(slaveID, modbus.FuncCodeWriteSingleRegister, address, value)
}

func buildRequest(slaveID, functionCode byte, address, field uint16) []byte {
	raw := make([]byte, 6, RequestSize)
	raw[0] = slaveID
	raw[1] = functionCode
	binary.BigEndian.PutUint16(raw[2:], address)
	binary.BigEndian.PutUint16(raw[4:], field)
	return crc.Append(raw)
}

// DecodeRegisters splits a read payload into big-endian words.
func DecodeRegisters(payload []byte) ([]uint16, error) {
	if len(payload)%2 != 0 {
		return nil, fmt.Errorf("%w: odd payload length %d", modbus.ErrInvalidResponse, len(payload))
	}
	words := make([]uint16, len(payload)/2)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(payload[i*2:])
	}
	return words, nil
}

// EncodeRegisters is the inverse of DecodeRegisters.
func EncodeRegisters(words []uint16) []byte {
	payload := make([]byte, len(words)*2)
	for i, w := range words {
		binary.BigEndian.PutUint16(payload[i*2:], w)
	}
	return payload
}
