// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package registers

import (
	"fmt"
	"strings"
)

// Kind selects how raw words decode.
type Kind int

const (
	// Scaled is an unsigned integer of one or two words, high word first,
	// multiplied by Scale.
	Scaled Kind = iota
	// SignedBytePair splits one word into two signed 8-bit values.
	SignedBytePair
	// Flag is true only when the word equals 1.
	Flag
	// ASCII packs words big-endian into text.
	ASCII
	// Version renders the first word as V<high byte>.<low byte>.
	Version
	// LowByte is the low byte of one word, multiplied by Scale.
	LowByte
)

func (k Kind) String() string {
	switch k {
	case Scaled:
		return "scaled"
	case SignedBytePair:
		return "signed-byte-pair"
	case Flag:
		return "flag"
	case ASCII:
		return "ascii"
	case Version:
		return "version"
	case LowByte:
		return "low-byte"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is a decoded register. Which fields are set depends on the Kind.
type Value struct {
	Number float64 // Scaled, LowByte
	High   int     // SignedBytePair
	Low    int     // SignedBytePair
	On     bool    // Flag
	Text   string  // ASCII, Version
}

// Decode converts the raw words of d.
func (d Definition) Decode(words []uint16) (Value, error) {
	if len(words) != int(d.Length) {
		return Value{}, fmt.Errorf("register %s: got %d words, want %d", d.Name, len(words), d.Length)
	}

	switch d.Kind {
	case Scaled:
		var raw uint64
		for _, w := range words {
			raw = raw<<16 | uint64(w)
		}
		return Value{Number: float64(raw) * d.scale()}, nil
	case SignedBytePair:
		high, low := SplitSigned(words[0])
		return Value{High: high, Low: low}, nil
	case Flag:
		return Value{On: words[0] == 1}, nil
	case ASCII:
		return Value{Text: DecodeASCII(words)}, nil
	case Version:
		return Value{Text: FormatVersion(words[0])}, nil
	case LowByte:
		return Value{Number: float64(words[0]&0xFF) * d.scale()}, nil
	}
	return Value{}, fmt.Errorf("register %s: unknown kind %v", d.Name, d.Kind)
}

func (d Definition) scale() float64 {
	if d.Scale == 0 {
		return 1
	}
	return d.Scale
}

// SplitSigned returns the high and low bytes of w as two's complement
// 8-bit values.
func SplitSigned(w uint16) (high, low int) {
	return int(int8(w >> 8)), int(int8(w))
}

// DecodeASCII packs words big-endian, drops bytes outside 7-bit ASCII and
// trims NUL padding and surrounding whitespace.
func DecodeASCII(words []uint16) string {
	var b strings.Builder
	for _, w := range words {
		for _, c := range [2]byte{byte(w >> 8), byte(w)} {
			if c < 0x80 {
				b.WriteByte(c)
			}
		}
	}
	return strings.TrimSpace(strings.Trim(b.String(), "\x00"))
}

// FormatVersion renders a version word as V<major>.<minor>.
func FormatVersion(w uint16) string {
	return fmt.Sprintf("V%d.%d", w>>8, w&0xFF)
}
