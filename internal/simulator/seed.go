// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package simulator

const (
	profileModel  = "RNG-CTRL-RVR40"
	profileSerial = "RNG0001234"
)

// profileLoad is load voltage, current and power while the load is on.
var profileLoad = []uint16{125, 2, 25}

// profile is a 12V Rover on a sunny afternoon, keyed by start address.
var profile = []struct {
	address uint16
	words   []uint16
}{
	{0x000C, asciiWords(profileModel, 8)},
	{0x0014, []uint16{0x0102, 0x0000, 0x0105, 0x0000}},
	{0x0018, asciiWords(profileSerial, 8)},
	// SOC, battery V, charging A, temperatures, load V/A/W, solar V/A/W, load switch
	{0x0100, append(append([]uint16{85, 132, 15, 0x1405}, profileLoad...), 125, 8, 50, 1)},
	{0x010B, []uint16{121, 144, 1050, 210, 150, 30, 40, 12, 520, 380}},
	// Days, over-discharges, full charges, then two-word totals.
	{0x0115, []uint16{365, 3, 120, 0, 4200, 0, 1800, 0, 12345, 0, 6789}},
	{0x0120, []uint16{0x0002}},
}

// Seed writes the default controller profile.
func Seed(b *Bank) error {
	for _, p := range profile {
		if err := b.SetRegisters(p.address, p.words...); err != nil {
			return err
		}
	}
	return nil
}

// asciiWords packs s big-endian into n words, NUL padded.
func asciiWords(s string, n int) []uint16 {
	buf := make([]byte, 2*n)
	copy(buf, s)
	words := make([]uint16, n)
	for i := range words {
		words[i] = uint16(buf[2*i])<<8 | uint16(buf[2*i+1])
	}
	return words
}
