package d3d11

import "github.com/Carmen-Shannon/oxy-gfx/engine/renderer"

// builtinSources holds the HLSL of the built-in shaders. Both stages live in one source.
var builtinSources = map[string]string{
	renderer.ShaderColor: `cbuffer Constants : register(b0)
{
    float4x4 modelViewProj;
}

struct VSInput
{
    float3 position : POSITION;
    float4 color : COLOR;
};

struct PSInput
{
    float4 position : SV_POSITION;
    float4 color : COLOR;
};

PSInput vsMain(VSInput input)
{
    PSInput output;
    output.position = mul(modelViewProj, float4(input.position, 1.0));
    output.color = input.color;
    return output;
}

float4 psMain(PSInput input) : SV_TARGET
{
    return input.color;
}
`,
	renderer.ShaderTexture: `cbuffer Constants : register(b0)
{
    float4x4 modelViewProj;
}

Texture2D texture0 : register(t0);
SamplerState sampler0 : register(s0);

struct VSInput
{
    float3 position : POSITION;
    float4 color : COLOR;
    float2 texCoord : TEXCOORD0;
};

struct PSInput
{
    float4 position : SV_POSITION;
    float4 color : COLOR;
    float2 texCoord : TEXCOORD0;
};

PSInput vsMain(VSInput input)
{
    PSInput output;
    output.position = mul(modelViewProj, float4(input.position, 1.0));
    output.color = input.color;
    output.texCoord = input.texCoord;
    return output;
}

float4 psMain(PSInput input) : SV_TARGET
{
    return texture0.Sample(sampler0, input.texCoord) * input.color;
}
`,
}
