// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package variant

import (
	"errors"
	"fmt"
)

// ErrAlphaFuncRange is returned when an alpha function does not fit the
// 8 bits reserved for it in a Key.
var ErrAlphaFuncRange = errors.New("variant: alpha function does not fit in 8 bits")

// Flags is one combination of render-state flags requesting a program.
type Flags struct {
	Texture       TextureChannel
	Program       ProgramFlag
	Scene         SceneFlag
	AlphaFunc     AlphaFunc
	InvertNormals bool
}

// IsBillboard reports whether the flags select the billboard template.
func (f Flags) IsBillboard() bool {
	return Has(f.Program, ProgramBillboards)
}

// Validate checks that every field fits its key range.
func (f Flags) Validate() error {
	if uint64(f.AlphaFunc) > 0xFF {
		return fmt.Errorf("%w: %d", ErrAlphaFuncRange, uint64(f.AlphaFunc))
	}
	return nil
}

// String implements fmt.Stringer.
func (f Flags) String() string {
	return fmt.Sprintf("tex=%s prog=%s scene=%s alpha=%d invert=%t",
		f.Texture, f.Program, f.Scene, uint64(f.AlphaFunc), f.InvertNormals)
}

// Key is a packed variant identifier. Keys are in-memory map keys only and
// are never persisted.
type Key uint64

// String returns the key in hexadecimal.
func (k Key) String() string {
	return fmt.Sprintf("0x%016X", uint64(k))
}

// keyField is one fixed bit range of a Key.
type keyField struct {
	name  string
	shift uint
	width uint
}

func (f keyField) mask() uint64 {
	return (uint64(1) << f.width) - 1
}

// Field indices into keyLayout.
const (
	fieldTexture = iota
	fieldProgram
	fieldScene
	fieldAlpha
	fieldInvertNormals
	fieldCount
)

// keyLayout is the single definition of the packing order. Ranges never
// overlap; bits 1-15 are unused.
var keyLayout = [fieldCount]keyField{
	fieldTexture:       {name: "texture", shift: 48, width: 16},
	fieldProgram:       {name: "program", shift: 32, width: 16},
	fieldScene:         {name: "scene", shift: 24, width: 8},
	fieldAlpha:         {name: "alpha", shift: 16, width: 8},
	fieldInvertNormals: {name: "invertNormals", shift: 0, width: 1},
}

// fields returns the flag values in keyLayout order.
func (f Flags) fields() [fieldCount]uint64 {
	var invert uint64
	if f.InvertNormals {
		invert = 1
	}
	return [fieldCount]uint64{
		fieldTexture:       uint64(f.Texture),
		fieldProgram:       uint64(f.Program),
		fieldScene:         uint64(f.Scene),
		fieldAlpha:         uint64(f.AlphaFunc),
		fieldInvertNormals: invert,
	}
}

// Key packs the flags. An alpha function outside 8 bits is truncated; call
// Validate first when the value comes from outside the package.
func (f Flags) Key() Key {
	vals := f.fields()
	var k uint64
	for i, field := range keyLayout {
		k |= (vals[i] & field.mask()) << field.shift
	}
	return Key(k)
}

// BillboardKey packs the flags for the billboard table. Billboards never
// invert normals, so two configurations that differ only in InvertNormals
// share a billboard key.
func (f Flags) BillboardKey() Key {
	f.InvertNormals = false
	return f.Key()
}

// Unpack returns the flags a key was packed from.
func (k Key) Unpack() Flags {
	var vals [fieldCount]uint64
	for i, field := range keyLayout {
		vals[i] = (uint64(k) >> field.shift) & field.mask()
	}
	return Flags{
		Texture:       TextureChannel(vals[fieldTexture]),
		Program:       ProgramFlag(vals[fieldProgram]),
		Scene:         SceneFlag(vals[fieldScene]),
		AlphaFunc:     AlphaFunc(vals[fieldAlpha]),
		InvertNormals: vals[fieldInvertNormals] != 0,
	}
}
