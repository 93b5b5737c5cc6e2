// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package simulator emulates a Renogy charge controller for bench testing
// without hardware.
package simulator

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ffutop/renogy-rtu/internal/config"
	"github.com/ffutop/renogy-rtu/internal/registers"
	"github.com/ffutop/renogy-rtu/modbus"
	rtupacket "github.com/ffutop/renogy-rtu/modbus/rtu"
)

// Simulator answers register requests the way a controller does. Only
// registers of the Renogy map can be read and only writable ones written.
type Simulator struct {
	deviceID byte
	bank     *Bank
	storage  Storage
}

// New opens the configured storage and seeds it with a default controller
// profile when it holds no device.
func New(cfg config.SimulatorConfig, deviceID byte) (*Simulator, error) {
	storage, err := NewStorage(cfg.Persistence)
	if err != nil {
		return nil, err
	}
	data, fresh, err := storage.Load()
	if err != nil {
		return nil, err
	}
	bank, err := NewBank(data, storage.OnWrite)
	if err != nil {
		storage.Close()
		return nil, err
	}

	s := &Simulator{deviceID: deviceID, bank: bank, storage: storage}
	if fresh || s.empty() {
		if err := Seed(bank); err != nil {
			storage.Close()
			return nil, fmt.Errorf("seed registers: %w", err)
		}
		slog.Info("Seeded simulated controller", "persistence", cfg.Persistence.Type)
	}
	return s, nil
}

// Bank exposes the registers.
func (s *Simulator) Bank() *Bank {
	return s.bank
}

// DeviceID is the id the simulator answers to.
func (s *Simulator) DeviceID() byte {
	return s.deviceID
}

// Close releases the storage.
func (s *Simulator) Close() error {
	return s.storage.Close()
}

func (s *Simulator) empty() bool {
	model := mustLookup(registers.DeviceModel)
	words, err := s.bank.Registers(model.Address, model.Length)
	if err != nil {
		return true
	}
	for _, w := range words {
		if w != 0 {
			return false
		}
	}
	return true
}

// ErrNotAddressed is returned for requests to another device id.
var ErrNotAddressed = errors.New("simulator: request addressed to another device")

// Handle serves one request. It fits transport.RequestHandler.
func (s *Simulator) Handle(ctx context.Context, slaveID byte, req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if slaveID != s.deviceID {
		return modbus.ProtocolDataUnit{}, ErrNotAddressed
	}
	return s.Process(req), nil
}

// Process executes the Modbus function code against the register bank.
func (s *Simulator) Process(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	switch req.FunctionCode {
	case modbus.FuncCodeReadHoldingRegisters:
		return s.handleReadHoldingRegisters(req)
	case modbus.FuncCodeWriteSingleRegister:
		return s.handleWriteSingleRegister(req)
	default:
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalFunction)
	}
}

func (s *Simulator) handleReadHoldingRegisters(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])

	if quantity < 1 || quantity > rtupacket.MaxReadQuantity {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	if !mapped(address, quantity) {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress)
	}

	data, err := s.bank.ReadHoldingRegisters(address, quantity)
	if err != nil {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress)
	}

	respData := make([]byte, 1+len(data))
	respData[0] = byte(len(data))
	copy(respData[1:], data)

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}
}

func (s *Simulator) handleWriteSingleRegister(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	value := binary.BigEndian.Uint16(req.Data[2:4])

	d, ok := writable(address)
	if !ok {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress)
	}
	if d.Kind == registers.Flag && value > 1 {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}

	if err := s.bank.WriteSingleRegister(address, value); err != nil {
		return exception(req.FunctionCode, modbus.ExceptionCodeServerDeviceFailure)
	}
	if d.Name == registers.LoadSwitch {
		s.switchLoad(value == 1)
	}
	slog.Debug("Simulated register written", "register", d.Name, "value", value)

	// Echo request
	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         append([]byte(nil), req.Data...),
	}
}

// switchLoad zeroes the load readings while the load is off and restores
// the profile values when it is switched on.
func (s *Simulator) switchLoad(on bool) {
	voltage := mustLookup(registers.LoadVoltage)
	readings := make([]uint16, len(profileLoad))
	if on {
		copy(readings, profileLoad)
	}
	if err := s.bank.SetRegisters(voltage.Address, readings...); err != nil {
		slog.Error("Failed to update load readings", "err", err)
	}
}

// mapped reports whether every address in the range belongs to a known
// register.
func mapped(address, quantity uint16) bool {
	defs := registers.Renogy.Definitions()
	end := uint32(address) + uint32(quantity)
	for a := uint32(address); a < end; {
		next := a
		for _, d := range defs {
			if uint32(d.Address) <= a && a < d.End() && d.End() > next {
				next = d.End()
			}
		}
		if next == a {
			return false
		}
		a = next
	}
	return true
}

func writable(address uint16) (registers.Definition, bool) {
	for _, d := range registers.Renogy.Definitions() {
		if d.Address == address && d.Writable && d.Length == 1 {
			return d, true
		}
	}
	return registers.Definition{}, false
}

func mustLookup(name string) registers.Definition {
	d, ok := registers.Renogy.Lookup(name)
	if !ok {
		panic("simulator: register " + name + " not defined")
	}
	return d
}

func exception(funcCode byte, code byte) modbus.ProtocolDataUnit {
	return modbus.ProtocolDataUnit{
		FunctionCode: funcCode | modbus.FuncCodeExceptionFlag,
		Data:         []byte{code},
	}
}
