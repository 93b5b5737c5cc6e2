// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package crc implements the Modbus CRC16 (reflected polynomial 0xA001,
// initial value 0xFFFF, transmitted low byte first).
package crc

const polynomial = 0xA001

var table = makeTable()

func makeTable() (t [256]uint16) {
	for i := range t {
		v := uint16(i)
		for bit := 0; bit < 8; bit++ {
			if v&1 != 0 {
				v = v>>1 ^ polynomial
			} else {
				v >>= 1
			}
		}
		t[i] = v
	}
	return
}

// CRC is a running checksum. The zero value must be Reset before use.
type CRC struct {
	value uint16
}

func (crc *CRC) Reset() *CRC {
	crc.value = 0xFFFF
	return crc
}

func (crc *CRC) PushBytes(bs []byte) *CRC {
	v := crc.value
	for _, b := range bs {
		v = v>>8 ^ table[byte(v)^b]
	}
	crc.value = v
	return crc
}

func (crc *CRC) Value() uint16 {
	return crc.value
}

// Checksum returns the CRC16 of bs.
func Checksum(bs []byte) uint16 {
	var crc CRC
	return crc.Reset().PushBytes(bs).Value()
}

// Append appends the checksum of bs to bs, low byte first.
func Append(bs []byte) []byte {
	sum := Checksum(bs)
	return append(bs, byte(sum), byte(sum>>8))
}

// Verify reports whether the last two bytes of buf are the checksum of
// the bytes before them. Buffers shorter than 3 bytes never verify.
func Verify(buf []byte) bool {
	n := len(buf)
	if n < 3 {
		return false
	}
	received := uint16(buf[n-1])<<8 | uint16(buf[n-2])
	return received == Checksum(buf[:n-2])
}
