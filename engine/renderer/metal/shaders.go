package metal

import "github.com/Carmen-Shannon/oxy-gfx/engine/renderer"

// builtinSources holds the MSL of the built-in shaders. Both stages live in one library.
var builtinSources = map[string]string{
	renderer.ShaderColor: `#include <metal_stdlib>
using namespace metal;

struct VertexConstants
{
    float4x4 modelViewProj;
};

struct VSInput
{
    float3 position [[attribute(0)]];
    float4 color [[attribute(1)]];
};

struct PSInput
{
    float4 position [[position]];
    half4 color;
};

vertex PSInput vsMain(VSInput input [[stage_in]],
                      constant VertexConstants& constants [[buffer(1)]])
{
    PSInput output;
    output.position = constants.modelViewProj * float4(input.position, 1.0f);
    output.color = half4(input.color);
    return output;
}

fragment half4 psMain(PSInput input [[stage_in]])
{
    return input.color;
}
`,
	renderer.ShaderTexture: `#include <metal_stdlib>
using namespace metal;

struct VertexConstants
{
    float4x4 modelViewProj;
};

struct VSInput
{
    float3 position [[attribute(0)]];
    float4 color [[attribute(1)]];
    float2 texCoord [[attribute(3)]];
};

struct PSInput
{
    float4 position [[position]];
    half4 color;
    float2 texCoord;
};

vertex PSInput vsMain(VSInput input [[stage_in]],
                      constant VertexConstants& constants [[buffer(1)]])
{
    PSInput output;
    output.position = constants.modelViewProj * float4(input.position, 1.0f);
    output.color = half4(input.color);
    output.texCoord = input.texCoord;
    return output;
}

fragment half4 psMain(PSInput input [[stage_in]],
                      texture2d<half> texture0 [[texture(0)]],
                      sampler sampler0 [[sampler(0)]])
{
    return texture0.sample(sampler0, input.texCoord) * input.color;
}
`,
}
