// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package simulator

import (
	"encoding/binary"
	"fmt"
	"sync"
)

const (
	MaxAddress = 65535
	// BankSize is the byte size of the register table: one big-endian word
	// per address.
	BankSize = (MaxAddress + 1) * 2
)

// Bank holds the holding registers of the simulated controller. The
// backing slice may be a memory-mapped file.
type Bank struct {
	mu      sync.RWMutex
	data    []byte
	onWrite func(address, quantity uint16)
}

// NewBank wraps data, which must be BankSize bytes long. onWrite, if not
// nil, runs after every write with the bank locked.
func NewBank(data []byte, onWrite func(address, quantity uint16)) (*Bank, error) {
	if len(data) != BankSize {
		return nil, fmt.Errorf("register bank is %d bytes, want %d", len(data), BankSize)
	}
	return &Bank{data: data, onWrite: onWrite}, nil
}

// ReadHoldingRegisters returns quantity registers as big-endian bytes.
func (b *Bank) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}
	start := int(address) * 2
	return append([]byte(nil), b.data[start:start+int(quantity)*2]...), nil
}

// Registers returns quantity registers as words.
func (b *Bank) Registers(address, quantity uint16) ([]uint16, error) {
	raw, err := b.ReadHoldingRegisters(address, quantity)
	if err != nil {
		return nil, err
	}
	words := make([]uint16, quantity)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(raw[i*2:])
	}
	return words, nil
}

// WriteSingleRegister writes a single holding register.
func (b *Bank) WriteSingleRegister(address, value uint16) error {
	return b.SetRegisters(address, value)
}

// SetRegisters writes consecutive registers starting at address.
func (b *Bank) SetRegisters(address uint16, words ...uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := validateRange(address, uint16(len(words))); err != nil {
		return err
	}
	for i, w := range words {
		binary.BigEndian.PutUint16(b.data[(int(address)+i)*2:], w)
	}
	if b.onWrite != nil {
		b.onWrite(address, uint16(len(words)))
	}
	return nil
}

func validateRange(address, quantity uint16) error {
	if quantity == 0 {
		return fmt.Errorf("quantity must be greater than 0")
	}
	if int(address)+int(quantity) > MaxAddress+1 {
		return fmt.Errorf("address range out of bounds")
	}
	return nil
}
