// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package registers describes the holding registers of a Renogy charge
// controller and how each decodes into a physical quantity.
package registers

import (
	"fmt"
	"sort"
)

// Group is a logical register subset read with a single request.
type Group int

const (
	GroupDeviceInfo Group = iota
	GroupRealtime
	GroupControl
	GroupDaily
	GroupHistorical
	GroupStatus
)

func (g Group) String() string {
	switch g {
	case GroupDeviceInfo:
		return "device-info"
	case GroupRealtime:
		return "realtime"
	case GroupControl:
		return "control"
	case GroupDaily:
		return "daily"
	case GroupHistorical:
		return "historical"
	case GroupStatus:
		return "status"
	}
	return fmt.Sprintf("group(%d)", int(g))
}

// Definition describes one addressable quantity.
type Definition struct {
	Name        string
	Address     uint16
	Length      uint16 // in 16-bit words
	Kind        Kind
	Scale       float64
	Unit        string
	Group       Group
	Writable    bool
	Description string
}

// End is the first address past the register.
func (d Definition) End() uint32 {
	return uint32(d.Address) + uint32(d.Length)
}

// Map is an immutable register table keyed by name. It is safe for
// concurrent use.
type Map struct {
	defs   []Definition
	byName map[string]int
}

// NewMap builds a map, sorted by address. Names must be unique and
// registers of one group must not overlap.
func NewMap(defs []Definition) (*Map, error) {
	m := &Map{
		defs:   append([]Definition(nil), defs...),
		byName: make(map[string]int, len(defs)),
	}
	sort.SliceStable(m.defs, func(i, j int) bool { return m.defs[i].Address < m.defs[j].Address })

	last := make(map[Group]Definition)
	for i, d := range m.defs {
		if d.Length == 0 {
			return nil, fmt.Errorf("register %s has zero length", d.Name)
		}
		if d.End() > 0x10000 {
			return nil, fmt.Errorf("register %s runs past the address space", d.Name)
		}
		if _, dup := m.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate register name %s", d.Name)
		}
		if prev, ok := last[d.Group]; ok && prev.End() > uint32(d.Address) {
			return nil, fmt.Errorf("register %s overlaps %s in group %s", d.Name, prev.Name, d.Group)
		}
		m.byName[d.Name] = i
		last[d.Group] = d
	}
	return m, nil
}

// Lookup returns the register named name.
func (m *Map) Lookup(name string) (Definition, bool) {
	i, ok := m.byName[name]
	if !ok {
		return Definition{}, false
	}
	return m.defs[i], true
}

// Definitions returns every register in address order.
func (m *Map) Definitions() []Definition {
	return append([]Definition(nil), m.defs...)
}

// Group returns the registers of g in address order.
func (m *Map) Group(g Group) []Definition {
	var out []Definition
	for _, d := range m.defs {
		if d.Group == g {
			out = append(out, d)
		}
	}
	return out
}

// Span returns the start address and word count of the smallest block
// covering every register of the given groups.
func (m *Map) Span(groups ...Group) (start, count uint16, err error) {
	return SpanOf(m.groups(groups))
}

// Values are decoded registers keyed by name.
type Values map[string]Value

// DecodeBlock decodes every register of the given groups from words read
// starting at start.
func (m *Map) DecodeBlock(start uint16, words []uint16, groups ...Group) (Values, error) {
	return DecodeAll(start, words, m.groups(groups))
}

func (m *Map) groups(groups []Group) []Definition {
	var out []Definition
	for _, g := range groups {
		out = append(out, m.Group(g)...)
	}
	return out
}

// SpanOf returns the start address and word count of the smallest block
// covering defs.
func SpanOf(defs []Definition) (start, count uint16, err error) {
	if len(defs) == 0 {
		return 0, 0, fmt.Errorf("no registers to span")
	}
	lo, hi := uint32(defs[0].Address), defs[0].End()
	for _, d := range defs[1:] {
		if uint32(d.Address) < lo {
			lo = uint32(d.Address)
		}
		if d.End() > hi {
			hi = d.End()
		}
	}
	return uint16(lo), uint16(hi - lo), nil
}

// DecodeAll decodes defs from words read starting at start.
func DecodeAll(start uint16, words []uint16, defs []Definition) (Values, error) {
	out := make(Values, len(defs))
	for _, d := range defs {
		if d.Address < start || d.End() > uint32(start)+uint32(len(words)) {
			return nil, fmt.Errorf("register %s at 0x%04X outside block 0x%04X+%d", d.Name, d.Address, start, len(words))
		}
		off := d.Address - start
		v, err := d.Decode(words[off : off+d.Length])
		if err != nil {
			return nil, err
		}
		out[d.Name] = v
	}
	return out, nil
}

// Number returns the numeric value of name, zero when absent.
func (v Values) Number(name string) float64 {
	return v[name].Number
}

// Int returns the numeric value of name rounded to an integer.
func (v Values) Int(name string) int {
	n := v[name].Number
	if n < 0 {
		return int(n - 0.5)
	}
	return int(n + 0.5)
}
