package wgpu

import "github.com/Carmen-Shannon/oxy-gfx/engine/renderer"

// builtinSources holds the WGSL of the built-in shaders. Both stages live in one module.
var builtinSources = map[string]string{
	renderer.ShaderColor: `struct VertexConstants {
    modelViewProj: mat4x4<f32>,
}

@group(0) @binding(0) var<uniform> vertexConstants: VertexConstants;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) color: vec4<f32>,
}

@vertex
fn vsMain(@location(0) position: vec3<f32>, @location(1) color: vec4<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.position = vertexConstants.modelViewProj * vec4<f32>(position, 1.0);
    out.color = color;
    return out;
}

@fragment
fn psMain(in: VertexOutput) -> @location(0) vec4<f32> {
    return in.color;
}
`,
	renderer.ShaderTexture: `struct VertexConstants {
    modelViewProj: mat4x4<f32>,
}

@group(0) @binding(0) var<uniform> vertexConstants: VertexConstants;
@group(1) @binding(0) var texture0: texture_2d<f32>;
@group(1) @binding(1) var sampler0: sampler;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) color: vec4<f32>,
    @location(1) texCoord: vec2<f32>,
}

@vertex
fn vsMain(@location(0) position: vec3<f32>, @location(1) color: vec4<f32>, @location(3) texCoord: vec2<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.position = vertexConstants.modelViewProj * vec4<f32>(position, 1.0);
    out.color = color;
    out.texCoord = texCoord;
    return out;
}

@fragment
fn psMain(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(texture0, sampler0, in.texCoord) * in.color;
}
`,
}
