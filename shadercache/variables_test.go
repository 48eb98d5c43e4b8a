// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shadercache

import (
	"slices"
	"testing"

	"github.com/gogpu/castor/variant"
)

func TestCreateTextureVariables_Order(t *testing.T) {
	tests := []struct {
		name    string
		flags   variant.Flags
		samples []string
	}{
		{
			name: "legacy",
			flags: variant.Flags{
				Texture: variant.TextureDiffuse | variant.TextureSpecular | variant.TextureNormal | variant.TextureGloss,
			},
			samples: []string{"c3d_mapNormal", "c3d_mapDiffuse", "c3d_mapSpecular", "c3d_mapGloss"},
		},
		{
			name: "metallic roughness",
			flags: variant.Flags{
				Texture: variant.TextureAll,
				Program: variant.ProgramPbrMetallicRoughness,
			},
			samples: []string{
				"c3d_mapNormal", "c3d_mapEmissive", "c3d_mapOpacity", "c3d_mapHeight",
				"c3d_mapAlbedo", "c3d_mapMetallic", "c3d_mapRoughness", "c3d_mapAmbientOcclusion",
			},
		},
		{
			name: "specular glossiness",
			flags: variant.Flags{
				Texture: variant.TextureDiffuse | variant.TextureGloss | variant.TextureHeight,
				Program: variant.ProgramPbrSpecularGlossiness,
			},
			samples: []string{"c3d_mapHeight", "c3d_mapDiffuse", "c3d_mapGlossiness"},
		},
		{
			name:  "no textures",
			flags: variant.Flags{Program: variant.ProgramLighting},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestCache(t)
			p, err := c.GetAutomaticProgram(&mockPass{}, tt.flags)
			if err != nil {
				t.Fatal(err)
			}

			calls := shaderOf(p).samplers
			var names []string
			for i, call := range calls {
				names = append(names, call.name)
				if call.index != uint32(i) {
					t.Errorf("sampler %s index = %d, want %d", call.name, call.index, i)
				}
				if call.stage != StagePixel {
					t.Errorf("sampler %s stage = %s, want pixel", call.name, call.stage)
				}
			}
			if !slices.Equal(names, tt.samples) {
				t.Errorf("samplers = %v, want %v", names, tt.samples)
			}

			bindings := p.Bindings()
			if len(bindings) != len(tt.samples) {
				t.Fatalf("Bindings() len = %d, want %d", len(bindings), len(tt.samples))
			}
			for i, b := range bindings {
				if b.Name != tt.samples[i] || b.Index != uint32(i) {
					t.Errorf("binding %d = %+v", i, b)
				}
			}
		})
	}
}

func TestCreateTextureVariables_Deterministic(t *testing.T) {
	c, _, _ := newTestCache(t)
	pass := &mockPass{}

	base := variant.Flags{Texture: variant.TextureAll, Program: variant.ProgramPbrSpecularGlossiness}
	var first []TextureBinding
	for scene := variant.SceneFlag(0); scene < 8; scene++ {
		f := base
		f.Scene = scene
		p, err := c.GetAutomaticProgram(pass, f)
		if err != nil {
			t.Fatal(err)
		}
		if first == nil {
			first = p.Bindings()
			continue
		}
		if !slices.Equal(p.Bindings(), first) {
			t.Errorf("scene %s: bindings %v differ from %v", scene, p.Bindings(), first)
		}
	}
}
