//go:build !nogpu

package gpu

// quadShaderSource is the builtin WGSL program: viewport-space
// positions to clip space in the vertex stage, per-vertex color pass
// through in the fragment stage. Custom effects replace the whole
// module but must keep the same entry points and vertex inputs.
const quadShaderSource = `
struct Uniforms {
    viewport: vec2<f32>,
    _pad: vec2<f32>,
};

@group(0) @binding(0) var<uniform> u: Uniforms;

struct VSOut {
    @builtin(position) pos: vec4<f32>,
    @location(0) color: vec4<f32>,
};

@vertex
fn vs_main(@location(0) pos: vec2<f32>, @location(1) color: vec4<f32>) -> VSOut {
    var out: VSOut;
    let ndc = vec2<f32>(
        pos.x / u.viewport.x * 2.0 - 1.0,
        1.0 - pos.y / u.viewport.y * 2.0,
    );
    out.pos = vec4<f32>(ndc, 0.0, 1.0);
    out.color = color;
    return out;
}

@fragment
fn fs_main(in: VSOut) -> @location(0) vec4<f32> {
    return in.color;
}
`

// quadVertexStride is 2 position + 4 color float32s.
const quadVertexStride = 24

// quadUniformSize is the 16-byte viewport uniform block.
const quadUniformSize = 16
