// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shadergen generates WGSL for the forward render pass.
//
// Every stage is a self-contained WGSL module: the shared declarations
// (uniform blocks, texture bindings, the vertex output struct) followed by
// one entry point. Textures live in bind group 1 with a shared filtering
// sampler at binding 0 and the i-th channel returned by
// variant.SamplerChannels at binding i+1, matching the registration order of
// shadercache.CreateTextureVariables.
package shadergen

import (
	"sync/atomic"

	"github.com/gogpu/castor/shadercache"
	"github.com/gogpu/castor/variant"
)

// Entry point names.
const (
	VertexEntry    = "vs_main"
	BillboardEntry = "vs_billboard"
	PixelEntry     = "fs_main"
)

// MaxBones is the size of the skinning palette.
const MaxBones = 64

// ForwardPass generates forward-shading programs. The zero value is ready to
// use and safe for concurrent use.
type ForwardPass struct {
	generated atomic.Uint64
}

// Generated returns how many stage sources the pass has produced.
func (p *ForwardPass) Generated() uint64 {
	return p.generated.Load()
}

// VertexShaderSource implements shadercache.SourceGenerator.
func (p *ForwardPass) VertexShaderSource(flags variant.Flags) shadercache.Source {
	p.generated.Add(1)
	w := &writer{}
	writeDeclarations(w, flags)
	writeVertex(w, flags)
	return shadercache.Source{Entry: VertexEntry, Code: w.String()}
}

// BillboardVertexShaderSource implements shadercache.BillboardSourceGenerator.
func (p *ForwardPass) BillboardVertexShaderSource(flags variant.Flags) shadercache.Source {
	p.generated.Add(1)
	w := &writer{}
	writeDeclarations(w, flags)
	writeBillboardVertex(w, flags)
	return shadercache.Source{Entry: BillboardEntry, Code: w.String()}
}

// PixelShaderSource implements shadercache.SourceGenerator.
func (p *ForwardPass) PixelShaderSource(flags variant.Flags) shadercache.Source {
	p.generated.Add(1)
	w := &writer{}
	writeDeclarations(w, flags)
	writePixel(w, flags)
	return shadercache.Source{Entry: PixelEntry, Code: w.String()}
}

// GeometryShaderSource returns an empty source; WGSL has no geometry stage.
func (p *ForwardPass) GeometryShaderSource(variant.Flags) shadercache.Source {
	return shadercache.Source{}
}

var _ shadercache.BillboardSourceGenerator = (*ForwardPass)(nil)

// writeDeclarations emits the uniform blocks, texture bindings and the
// interface struct shared by all stages.
func writeDeclarations(w *writer, flags variant.Flags) {
	w.open("struct Matrices")
	w.line("projection: mat4x4<f32>,")
	w.line("view: mat4x4<f32>,")
	w.line("camera: vec4<f32>,")
	w.close()
	w.line("")

	// params.x is the morph weight.
	w.open("struct Model")
	w.line("transform: mat4x4<f32>,")
	w.line("params: vec4<f32>,")
	w.close()
	w.line("")

	// params: x alpha reference, y reflection, z refraction, w transmission.
	w.open("struct Material")
	w.line("colour: vec4<f32>,")
	w.line("emissive: vec4<f32>,")
	w.line("specular: vec4<f32>,")
	w.line("params: vec4<f32>,")
	w.close()
	w.line("")

	w.line("@group(0) @binding(0) var<uniform> c3d_matrices: Matrices;")
	w.line("@group(0) @binding(1) var<uniform> c3d_model: Model;")
	w.line("@group(0) @binding(2) var<uniform> c3d_material: Material;")

	if fogMode(flags.Scene) != 0 {
		w.line("")
		// params: x start, y end, z density.
		w.open("struct Fog")
		w.line("colour: vec4<f32>,")
		w.line("params: vec4<f32>,")
		w.close()
		w.line("@group(0) @binding(3) var<uniform> c3d_fog: Fog;")
	}
	if flags.IsBillboard() {
		w.line("")
		w.open("struct Billboard")
		w.line("dimensions: vec4<f32>,")
		w.close()
		w.line("@group(0) @binding(4) var<uniform> c3d_billboard: Billboard;")
	}
	if variant.Has(flags.Program, variant.ProgramSkinning) {
		w.line("")
		w.open("struct Skin")
		w.line("bones: array<mat4x4<f32>, %d>,", MaxBones)
		w.close()
		w.line("@group(0) @binding(5) var<uniform> c3d_skin: Skin;")
	}

	model := variant.ShadingModelOf(flags.Program)
	channels := variant.SamplerChannels(flags.Texture, flags.Program)
	if len(channels) > 0 {
		w.line("")
		w.line("@group(1) @binding(0) var c3d_sampler: sampler;")
		for i, ch := range channels {
			w.line("@group(1) @binding(%d) var %s: texture_2d<f32>;", i+1, variant.SamplerName(ch, model))
		}
	}

	w.line("")
	w.open("struct VertexOutput")
	w.line("@builtin(position) clip: vec4<f32>,")
	w.line("@location(0) world: vec3<f32>,")
	w.line("@location(1) normal: vec3<f32>,")
	w.line("@location(2) uv: vec2<f32>,")
	w.close()
}

// writeVertex emits the mesh vertex entry point.
func writeVertex(w *writer, flags variant.Flags) {
	morphing := variant.Has(flags.Program, variant.ProgramMorphing)
	instanced := variant.Has(flags.Program, variant.ProgramInstantiation)
	skinned := variant.Has(flags.Program, variant.ProgramSkinning)

	w.line("")
	w.open("struct VertexInput")
	w.line("@location(0) position: vec3<f32>,")
	w.line("@location(1) normal: vec3<f32>,")
	w.line("@location(2) uv: vec2<f32>,")
	if morphing {
		w.line("@location(3) morph_position: vec3<f32>,")
		w.line("@location(4) morph_normal: vec3<f32>,")
	}
	if instanced {
		for i := range 4 {
			w.line("@location(%d) instance%d: vec4<f32>,", 5+i, i)
		}
	}
	if skinned {
		w.line("@location(9) bone_ids: vec4<u32>,")
		w.line("@location(10) bone_weights: vec4<f32>,")
	}
	w.close()

	w.line("")
	w.line("@vertex")
	w.open("fn %s(in: VertexInput) -> VertexOutput", VertexEntry)
	w.line("var out: VertexOutput;")
	if morphing {
		w.line("var position = vec4<f32>(mix(in.position, in.morph_position, c3d_model.params.x), 1.0);")
		w.line("var normal = vec4<f32>(mix(in.normal, in.morph_normal, c3d_model.params.x), 0.0);")
	} else {
		w.line("var position = vec4<f32>(in.position, 1.0);")
		w.line("var normal = vec4<f32>(in.normal, 0.0);")
	}
	if skinned {
		w.line("let skin = c3d_skin.bones[in.bone_ids.x] * in.bone_weights.x")
		w.line("    + c3d_skin.bones[in.bone_ids.y] * in.bone_weights.y")
		w.line("    + c3d_skin.bones[in.bone_ids.z] * in.bone_weights.z")
		w.line("    + c3d_skin.bones[in.bone_ids.w] * in.bone_weights.w;")
		w.line("position = skin * position;")
		w.line("normal = skin * normal;")
	}
	if instanced {
		w.line("let transform = mat4x4<f32>(in.instance0, in.instance1, in.instance2, in.instance3);")
	} else {
		w.line("let transform = c3d_model.transform;")
	}
	w.line("let world = transform * position;")
	w.line("out.world = world.xyz;")
	w.line("out.normal = %snormalize((transform * normal).xyz);", normalSign(flags))
	w.line("out.uv = in.uv;")
	w.line("out.clip = c3d_matrices.projection * c3d_matrices.view * world;")
	w.line("return out;")
	w.close()
}

// writeBillboardVertex emits a camera-facing quad expanded around a
// per-instance centre. Spherical billboards face the camera on every axis,
// cylindrical ones rotate around world Y only. Fixed-size billboards are
// sized in clip space.
func writeBillboardVertex(w *writer, flags variant.Flags) {
	w.line("")
	w.open("struct BillboardInput")
	w.line("@location(0) corner: vec2<f32>,")
	w.line("@location(1) uv: vec2<f32>,")
	w.line("@location(2) centre: vec3<f32>,")
	w.close()

	w.line("")
	w.line("@vertex")
	w.open("fn %s(in: BillboardInput) -> VertexOutput", BillboardEntry)
	w.line("var out: VertexOutput;")
	w.line("let centre = (c3d_model.transform * vec4<f32>(in.centre, 1.0)).xyz;")
	w.line("let size = c3d_billboard.dimensions.xy;")
	if variant.Has(flags.Program, variant.ProgramFixedSize) {
		w.line("let clip = c3d_matrices.projection * c3d_matrices.view * vec4<f32>(centre, 1.0);")
		w.line("out.clip = clip + vec4<f32>(in.corner * size * clip.w, 0.0, 0.0);")
		w.line("out.world = centre;")
	} else {
		w.line("let right = vec3<f32>(c3d_matrices.view[0][0], c3d_matrices.view[1][0], c3d_matrices.view[2][0]);")
		if variant.Has(flags.Program, variant.ProgramSpherical) {
			w.line("let up = vec3<f32>(c3d_matrices.view[0][1], c3d_matrices.view[1][1], c3d_matrices.view[2][1]);")
		} else {
			w.line("let up = vec3<f32>(0.0, 1.0, 0.0);")
		}
		w.line("let world = centre + right * (in.corner.x * size.x) + up * (in.corner.y * size.y);")
		w.line("out.clip = c3d_matrices.projection * c3d_matrices.view * vec4<f32>(world, 1.0);")
		w.line("out.world = world;")
	}
	w.line("out.normal = %snormalize(c3d_matrices.camera.xyz - centre);", normalSign(flags))
	w.line("out.uv = in.uv;")
	w.line("return out;")
	w.close()
}

func normalSign(flags variant.Flags) string {
	if flags.InvertNormals {
		return "-"
	}
	return ""
}

// writePixel emits the fragment entry point: texture sampling in binding
// order, lighting, emissive and environment terms, alpha test and fog.
func writePixel(w *writer, flags variant.Flags) {
	model := variant.ShadingModelOf(flags.Program)

	w.line("")
	w.line("@fragment")
	w.open("fn %s(in: VertexOutput) -> @location(0) vec4<f32>", PixelEntry)
	w.line("var colour = c3d_material.colour;")
	w.line("var normal = normalize(in.normal);")
	w.line("var emissive = c3d_material.emissive.rgb;")
	w.line("var specular = c3d_material.specular.rgb;")
	w.line("var shininess = c3d_material.specular.a;")
	w.line("var occlusion = 1.0;")
	w.line("var environment = vec3<f32>(0.0);")

	for _, ch := range variant.SamplerChannels(flags.Texture, flags.Program) {
		writeSample(w, ch, model)
	}

	if variant.Has(flags.Program, variant.ProgramLighting) {
		w.line("let light_dir = normalize(vec3<f32>(0.3, 0.8, 0.5));")
		w.line("let view_dir = normalize(c3d_matrices.camera.xyz - in.world);")
		w.line("let half_dir = normalize(light_dir + view_dir);")
		w.line("let diffuse = max(dot(normal, light_dir), 0.0);")
		w.line("let highlight = pow(max(dot(normal, half_dir), 0.0), max(shininess, 1.0));")
		w.line("colour = vec4<f32>(colour.rgb * (0.1 + diffuse) * occlusion + specular * highlight, colour.a);")
	} else {
		w.line("colour = vec4<f32>(colour.rgb * occlusion, colour.a);")
	}
	w.line("colour = vec4<f32>(colour.rgb + emissive + environment, colour.a);")

	writeAlphaTest(w, flags)
	writeFog(w, flags.Scene)

	if variant.Has(flags.Program, variant.ProgramAlphaBlending) {
		w.line("colour = vec4<f32>(colour.rgb * colour.a, colour.a);")
	}
	w.line("return colour;")
	w.close()
}

// writeSample emits the statement folding one texture channel into the
// shading inputs.
func writeSample(w *writer, ch variant.TextureChannel, model variant.ShadingModel) {
	sample := "textureSample(" + variant.SamplerName(ch, model) + ", c3d_sampler, in.uv)"
	switch ch {
	case variant.TextureDiffuse:
		w.line("colour = colour * %s;", sample)
	case variant.TextureNormal:
		w.line("normal = normalize(%s.xyz * 2.0 - vec3<f32>(1.0));", sample)
	case variant.TextureOpacity:
		w.line("colour.a = colour.a * %s.r;", sample)
	case variant.TextureEmissive:
		w.line("emissive = emissive * %s.rgb;", sample)
	case variant.TextureHeight:
		w.line("occlusion = occlusion * mix(0.8, 1.0, %s.r);", sample)
	case variant.TextureAmbientOcclusion:
		w.line("occlusion = occlusion * %s.r;", sample)
	case variant.TextureSpecular:
		if model == variant.ShadingMetallicRoughness {
			w.line("specular = mix(vec3<f32>(0.04), colour.rgb, %s.r);", sample)
		} else {
			w.line("specular = specular * %s.rgb;", sample)
		}
	case variant.TextureGloss:
		if model == variant.ShadingMetallicRoughness {
			w.line("shininess = max(2.0 / max(pow(%s.r, 4.0), 0.0001) - 2.0, 1.0);", sample)
		} else {
			w.line("shininess = shininess * %s.r;", sample)
		}
	case variant.TextureTransmittance:
		w.line("colour.a = colour.a * (1.0 - %s.r * c3d_material.params.w);", sample)
	case variant.TextureReflection:
		w.line("environment = environment + %s.rgb * c3d_material.params.y;", sample)
	case variant.TextureRefraction:
		w.line("environment = mix(environment, %s.rgb, c3d_material.params.z);", sample)
	}
}

// alphaOperators maps comparison functions to WGSL operators. Never and
// Always are handled separately.
var alphaOperators = map[variant.AlphaFunc]string{
	variant.AlphaLess:         "<",
	variant.AlphaEqual:        "==",
	variant.AlphaLessEqual:    "<=",
	variant.AlphaGreater:      ">",
	variant.AlphaNotEqual:     "!=",
	variant.AlphaGreaterEqual: ">=",
}

// writeAlphaTest discards fragments whose alpha fails the comparison against
// the material's alpha reference.
func writeAlphaTest(w *writer, flags variant.Flags) {
	if !variant.Has(flags.Program, variant.ProgramAlphaTest) {
		return
	}
	if flags.AlphaFunc == variant.AlphaNever {
		w.line("discard;")
		return
	}
	op, ok := alphaOperators[flags.AlphaFunc]
	if !ok {
		return
	}
	w.open("if !(colour.a %s c3d_material.params.x)", op)
	w.line("discard;")
	w.close()
}

func fogMode(scene variant.SceneFlag) variant.SceneFlag {
	for _, mode := range []variant.SceneFlag{
		variant.SceneFogLinear,
		variant.SceneFogExponential,
		variant.SceneFogSquaredExponential,
	} {
		if variant.Has(scene, mode) {
			return mode
		}
	}
	return 0
}

// writeFog blends towards the fog colour by camera distance.
func writeFog(w *writer, scene variant.SceneFlag) {
	mode := fogMode(scene)
	if mode == 0 {
		return
	}
	w.line("let fog_distance = length(c3d_matrices.camera.xyz - in.world);")
	switch mode {
	case variant.SceneFogLinear:
		w.line("let fog = clamp((c3d_fog.params.y - fog_distance) / max(c3d_fog.params.y - c3d_fog.params.x, 0.0001), 0.0, 1.0);")
	case variant.SceneFogExponential:
		w.line("let fog = exp(-c3d_fog.params.z * fog_distance);")
	default:
		w.line("let fog = exp(-pow(c3d_fog.params.z * fog_distance, 2.0));")
	}
	w.line("colour = vec4<f32>(mix(c3d_fog.colour.rgb, colour.rgb, fog), colour.a);")
}
