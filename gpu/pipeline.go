//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/fnv"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/stage"
)

// pipelineCache creates and reuses render pipelines. Pipelines are
// keyed by an FNV-1a hash of target format, blend state and effect
// identity; shader modules for effects are compiled once per effect
// handle through naga.
type pipelineCache struct {
	device hal.Device

	builtin       hal.ShaderModule
	uniformLayout hal.BindGroupLayout
	pipeLayout    hal.PipelineLayout

	effectModules map[*stage.Effect]hal.ShaderModule
	effectIDs     map[*stage.Effect]uint32
	nextEffectID  uint32

	pipelines map[uint64]hal.RenderPipeline
}

func newPipelineCache(device hal.Device) (*pipelineCache, error) {
	c := &pipelineCache{
		device:        device,
		effectModules: make(map[*stage.Effect]hal.ShaderModule),
		effectIDs:     make(map[*stage.Effect]uint32),
		pipelines:     make(map[uint64]hal.RenderPipeline),
	}

	builtin, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "stage_quad_shader",
		Source: hal.ShaderSource{WGSL: quadShaderSource},
	})
	if err != nil {
		return nil, fmt.Errorf("compile quad shader: %w", err)
	}
	c.builtin = builtin

	uniformLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "stage_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		c.destroy()
		return nil, fmt.Errorf("create uniform layout: %w", err)
	}
	c.uniformLayout = uniformLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "stage_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{c.uniformLayout},
	})
	if err != nil {
		c.destroy()
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}
	c.pipeLayout = pipeLayout

	return c, nil
}

// get returns the pipeline for the given target format, blend state,
// cull mode and effect, building it on first use.
func (c *pipelineCache) get(format gputypes.TextureFormat, blend stage.BlendState, cull gputypes.CullMode, effect *stage.Effect) (hal.RenderPipeline, error) {
	key := c.hashKey(format, blend, cull, effect)
	if p, ok := c.pipelines[key]; ok {
		return p, nil
	}

	module := c.builtin
	label := "stage_quad_pipeline"
	if effect != nil {
		m, err := c.effectModule(effect)
		if err != nil {
			return nil, err
		}
		module = m
		label = "stage_effect_pipeline_" + effect.Label()
	}

	halBlend := gputypes.BlendState{
		Color: gputypes.BlendComponent{
			SrcFactor: blend.Color.SrcFactor,
			DstFactor: blend.Color.DstFactor,
			Operation: blend.Color.Operation,
		},
		Alpha: gputypes.BlendComponent{
			SrcFactor: blend.Alpha.SrcFactor,
			DstFactor: blend.Alpha.DstFactor,
			Operation: blend.Alpha.Operation,
		},
	}

	pipeline, err := c.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: c.pipeLayout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    quadVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
					Blend:     &halBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: cull,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline %s: %w", label, err)
	}
	c.pipelines[key] = pipeline
	return pipeline, nil
}

// effectModule compiles an effect's WGSL through naga to SPIR-V and
// caches the module per effect handle.
func (c *pipelineCache) effectModule(effect *stage.Effect) (hal.ShaderModule, error) {
	if m, ok := c.effectModules[effect]; ok {
		return m, nil
	}
	spirvBytes, err := naga.Compile(effect.Source())
	if err != nil {
		return nil, fmt.Errorf("compile effect %q: %w", effect.Label(), err)
	}
	// SPIR-V is little-endian 32-bit words.
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	module, err := c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "stage_effect_" + effect.Label(),
		Source: hal.ShaderSource{SPIRV: spirvCode},
	})
	if err != nil {
		return nil, fmt.Errorf("create effect module %q: %w", effect.Label(), err)
	}
	c.effectModules[effect] = module
	return module, nil
}

// hashKey folds the pipeline-relevant state into an FNV-1a key.
func (c *pipelineCache) hashKey(format gputypes.TextureFormat, blend stage.BlendState, cull gputypes.CullMode, effect *stage.Effect) uint64 {
	var effectID uint32
	if effect != nil {
		id, ok := c.effectIDs[effect]
		if !ok {
			c.nextEffectID++
			id = c.nextEffectID
			c.effectIDs[effect] = id
		}
		effectID = id
	}
	h := fnv.New64a()
	hashWriteUint32(h, uint32(format))
	hashWriteUint32(h, uint32(blend.Color.SrcFactor))
	hashWriteUint32(h, uint32(blend.Color.DstFactor))
	hashWriteUint32(h, uint32(blend.Color.Operation))
	hashWriteUint32(h, uint32(blend.Alpha.SrcFactor))
	hashWriteUint32(h, uint32(blend.Alpha.DstFactor))
	hashWriteUint32(h, uint32(blend.Alpha.Operation))
	hashWriteUint32(h, uint32(cull))
	hashWriteUint32(h, effectID)
	return h.Sum64()
}

func hashWriteUint32(h hash.Hash64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	h.Write(buf[:])
}

// destroy releases every cached pipeline and module in reverse
// creation order.
func (c *pipelineCache) destroy() {
	if c.device == nil {
		return
	}
	for _, p := range c.pipelines {
		c.device.DestroyRenderPipeline(p)
	}
	c.pipelines = map[uint64]hal.RenderPipeline{}
	for _, m := range c.effectModules {
		c.device.DestroyShaderModule(m)
	}
	c.effectModules = map[*stage.Effect]hal.ShaderModule{}
	if c.pipeLayout != nil {
		c.device.DestroyPipelineLayout(c.pipeLayout)
		c.pipeLayout = nil
	}
	if c.uniformLayout != nil {
		c.device.DestroyBindGroupLayout(c.uniformLayout)
		c.uniformLayout = nil
	}
	if c.builtin != nil {
		c.device.DestroyShaderModule(c.builtin)
		c.builtin = nil
	}
}

// quadVertexLayout returns the vertex buffer layout for the quad
// pipelines: position vec2 + color vec4, interleaved.
func quadVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: quadVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0}, // position
				{Format: gputypes.VertexFormatFloat32x4, Offset: 8, ShaderLocation: 1}, // color
			},
		},
	}
}
