// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package variant

// Channel priority order shared by binding registration and source
// generation. Both sides must walk the same list or binding indices drift.
var (
	commonChannels = []TextureChannel{
		TextureNormal,
		TextureEmissive,
		TextureOpacity,
		TextureHeight,
	}

	metallicRoughnessChannels = []TextureChannel{
		TextureAlbedo,
		TextureMetallic,
		TextureRoughness,
		TextureAmbientOcclusion,
	}

	specularGlossinessChannels = []TextureChannel{
		TextureDiffuse,
		TextureSpecular,
		TextureGlossiness,
		TextureAmbientOcclusion,
	}

	legacyChannels = []TextureChannel{
		TextureDiffuse,
		TextureSpecular,
		TextureGloss,
	}
)

// ShadingModel selects which material channel set a program samples.
type ShadingModel uint8

// Shading models.
const (
	ShadingLegacy ShadingModel = iota
	ShadingMetallicRoughness
	ShadingSpecularGlossiness
)

// String implements fmt.Stringer.
func (m ShadingModel) String() string {
	switch m {
	case ShadingMetallicRoughness:
		return "MetallicRoughness"
	case ShadingSpecularGlossiness:
		return "SpecularGlossiness"
	default:
		return "Legacy"
	}
}

// ShadingModelOf returns the shading model selected by program flags.
// Metallic-roughness takes precedence when both PBR flags are set.
func ShadingModelOf(program ProgramFlag) ShadingModel {
	switch {
	case Has(program, ProgramPbrMetallicRoughness):
		return ShadingMetallicRoughness
	case Has(program, ProgramPbrSpecularGlossiness):
		return ShadingSpecularGlossiness
	default:
		return ShadingLegacy
	}
}

// SamplerChannels returns the channels of texture that get a sampler, in
// binding order: normal, emissive, opacity, height, then the set of the
// shading model selected by program.
func SamplerChannels(texture TextureChannel, program ProgramFlag) []TextureChannel {
	var model []TextureChannel
	switch ShadingModelOf(program) {
	case ShadingMetallicRoughness:
		model = metallicRoughnessChannels
	case ShadingSpecularGlossiness:
		model = specularGlossinessChannels
	default:
		model = legacyChannels
	}

	out := make([]TextureChannel, 0, len(commonChannels)+len(model))
	for _, ch := range commonChannels {
		if Has(texture, ch) {
			out = append(out, ch)
		}
	}
	for _, ch := range model {
		if Has(texture, ch) {
			out = append(out, ch)
		}
	}
	return out
}

// SamplerName returns the shader-visible texture name of a channel under
// the given shading model.
func SamplerName(ch TextureChannel, model ShadingModel) string {
	switch ch {
	case TextureNormal:
		return "c3d_mapNormal"
	case TextureEmissive:
		return "c3d_mapEmissive"
	case TextureOpacity:
		return "c3d_mapOpacity"
	case TextureHeight:
		return "c3d_mapHeight"
	case TextureAmbientOcclusion:
		return "c3d_mapAmbientOcclusion"
	case TextureTransmittance:
		return "c3d_mapTransmittance"
	case TextureReflection:
		return "c3d_mapEnvironment"
	case TextureRefraction:
		return "c3d_mapRefraction"
	}

	switch model {
	case ShadingMetallicRoughness:
		switch ch {
		case TextureAlbedo:
			return "c3d_mapAlbedo"
		case TextureMetallic:
			return "c3d_mapMetallic"
		case TextureRoughness:
			return "c3d_mapRoughness"
		}
	case ShadingSpecularGlossiness:
		switch ch {
		case TextureDiffuse:
			return "c3d_mapDiffuse"
		case TextureSpecular:
			return "c3d_mapSpecular"
		case TextureGlossiness:
			return "c3d_mapGlossiness"
		}
	default:
		switch ch {
		case TextureDiffuse:
			return "c3d_mapDiffuse"
		case TextureSpecular:
			return "c3d_mapSpecular"
		case TextureGloss:
			return "c3d_mapGloss"
		}
	}
	return "c3d_map" + ch.String()
}
