// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

const (
	MinSize = 4
	MaxSize = 256

	// HeaderSize covers slave id, function code and byte count (or
	// exception code).
	HeaderSize    = 3
	ExceptionSize = 5
	// RequestSize is the length of every read/write-single request, and
	// of the write-single echo.
	RequestSize = 8

	// MaxReadQuantity is the largest register count one read may ask for.
	MaxReadQuantity = 125
)

// Function Codes
const (
	FuncCodeReadCoils           = 0x01
	FuncCodeReadDiscreteInputs  = 0x02
	FuncCodeReadHoldingRegister = 0x03
	FuncCodeReadInputRegister   = 0x04

	FuncCodeWriteSingleCoil       = 0x05
	FuncCodeWriteSingleRegister   = 0x06
	FuncCodeWriteMultipleCoils    = 0x0F
	FuncCodeWriteMultipleRegister = 0x10
)
