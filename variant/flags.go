// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package variant defines the render-state flags that select a shader
// variant, and packs them into a stable 64-bit key.
package variant

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// Flag is the set of integer flag types that the helpers below accept.
type Flag interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Has reports whether every bit of want is set in flags.
func Has[F Flag](flags, want F) bool {
	return flags&want == want
}

// With returns flags with the bits of add set.
func With[F Flag](flags, add F) F {
	return flags | add
}

// Without returns flags with the bits of remove cleared.
func Without[F Flag](flags, remove F) F {
	return flags &^ remove
}

// TextureChannel is a bitmask of the texture maps a pass samples.
type TextureChannel uint16

// Texture channels.
const (
	TextureDiffuse          TextureChannel = 0x0001
	TextureNormal           TextureChannel = 0x0002
	TextureOpacity          TextureChannel = 0x0004
	TextureSpecular         TextureChannel = 0x0008
	TextureEmissive         TextureChannel = 0x0010
	TextureHeight           TextureChannel = 0x0020
	TextureGloss            TextureChannel = 0x0040
	TextureAmbientOcclusion TextureChannel = 0x0080
	TextureTransmittance    TextureChannel = 0x0100
	TextureReflection       TextureChannel = 0x0200
	TextureRefraction       TextureChannel = 0x0400

	// PBR names sharing the legacy bits.
	TextureAlbedo     = TextureDiffuse
	TextureMetallic   = TextureSpecular
	TextureRoughness  = TextureGloss
	TextureGlossiness = TextureGloss

	// TextureAll covers every defined channel.
	TextureAll TextureChannel = 0x07FF
)

var textureChannelNames = []struct {
	ch   TextureChannel
	name string
}{
	{TextureDiffuse, "Diffuse"},
	{TextureNormal, "Normal"},
	{TextureOpacity, "Opacity"},
	{TextureSpecular, "Specular"},
	{TextureEmissive, "Emissive"},
	{TextureHeight, "Height"},
	{TextureGloss, "Gloss"},
	{TextureAmbientOcclusion, "AmbientOcclusion"},
	{TextureTransmittance, "Transmittance"},
	{TextureReflection, "Reflection"},
	{TextureRefraction, "Refraction"},
}

// String returns the set channels joined by '|'.
func (c TextureChannel) String() string {
	if c == 0 {
		return "None"
	}
	var parts []string
	rest := c
	for _, n := range textureChannelNames {
		if Has(c, n.ch) {
			parts = append(parts, n.name)
			rest = Without(rest, n.ch)
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%04X", uint16(rest)))
	}
	return strings.Join(parts, "|")
}

// ProgramFlag is a bitmask of program-level features.
type ProgramFlag uint16

// Program flags.
const (
	ProgramInstantiation ProgramFlag = 1 << iota
	ProgramSkinning
	ProgramBillboards
	ProgramSpherical
	ProgramFixedSize
	ProgramMorphing
	ProgramPicking
	ProgramLighting
	ProgramShadowMapDirectional
	ProgramShadowMapSpot
	ProgramShadowMapPoint
	ProgramEnvironmentMapping
	ProgramPbrMetallicRoughness
	ProgramPbrSpecularGlossiness
	ProgramAlphaBlending
	ProgramAlphaTest
)

var programFlagNames = [...]string{
	"Instantiation", "Skinning", "Billboards", "Spherical",
	"FixedSize", "Morphing", "Picking", "Lighting",
	"ShadowMapDirectional", "ShadowMapSpot", "ShadowMapPoint", "EnvironmentMapping",
	"PbrMetallicRoughness", "PbrSpecularGlossiness", "AlphaBlending", "AlphaTest",
}

// String returns the set flags joined by '|'.
func (f ProgramFlag) String() string {
	if f == 0 {
		return "None"
	}
	var parts []string
	for i, name := range programFlagNames {
		if f&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// SceneFlag is a bitmask of scene-wide features (fog mode, shadow filtering).
type SceneFlag uint8

// Scene flags.
const (
	SceneFogLinear SceneFlag = 1 << iota
	SceneFogExponential
	SceneFogSquaredExponential
	SceneShadowFilterRaw
	SceneShadowFilterPoisson
	SceneShadowFilterStratifiedPoisson
	SceneNonShadowed
)

var sceneFlagNames = [...]string{
	"FogLinear", "FogExponential", "FogSquaredExponential",
	"ShadowFilterRaw", "ShadowFilterPoisson", "ShadowFilterStratifiedPoisson",
	"NonShadowed",
}

// String returns the set flags joined by '|'.
func (f SceneFlag) String() string {
	if f == 0 {
		return "None"
	}
	var parts []string
	for i, name := range sceneFlagNames {
		if f&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	if f&0x80 != 0 {
		parts = append(parts, "0x80")
	}
	return strings.Join(parts, "|")
}

// AlphaFunc is the comparison used by the alpha test.
// Only values that fit in 8 bits can take part in a variant key.
type AlphaFunc = gputypes.CompareFunction

// Alpha functions re-exported for callers that only import variant.
const (
	AlphaNever        = gputypes.CompareFunctionNever
	AlphaLess         = gputypes.CompareFunctionLess
	AlphaEqual        = gputypes.CompareFunctionEqual
	AlphaLessEqual    = gputypes.CompareFunctionLessEqual
	AlphaGreater      = gputypes.CompareFunctionGreater
	AlphaNotEqual     = gputypes.CompareFunctionNotEqual
	AlphaGreaterEqual = gputypes.CompareFunctionGreaterEqual
	AlphaAlways       = gputypes.CompareFunctionAlways
)
