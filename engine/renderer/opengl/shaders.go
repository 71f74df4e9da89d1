package opengl

import "github.com/Carmen-Shannon/oxy-gfx/engine/renderer"

const (
	glslHeader   = "#version 330 core\n"
	glslESHeader = "#version 300 es\nprecision highp float;\n"
)

type glslSource struct {
	vertex string
	pixel  string
}

// built-in programs; attribute locations match attributeLocations
var builtinSources = map[string]glslSource{
	renderer.ShaderColor: {
		vertex: `
layout(location = 0) in vec3 inPosition;
layout(location = 1) in vec4 inColor;
uniform mat4 modelViewProj;
out vec4 exColor;
void main() {
	gl_Position = modelViewProj * vec4(inPosition, 1.0);
	exColor = inColor;
}
`,
		pixel: `
in vec4 exColor;
out vec4 outColor;
void main() {
	outColor = exColor;
}
`,
	},
	renderer.ShaderTexture: {
		vertex: `
layout(location = 0) in vec3 inPosition;
layout(location = 1) in vec4 inColor;
layout(location = 3) in vec2 inTexCoord0;
uniform mat4 modelViewProj;
out vec4 exColor;
out vec2 exTexCoord;
void main() {
	gl_Position = modelViewProj * vec4(inPosition, 1.0);
	exColor = inColor;
	exTexCoord = inTexCoord0;
}
`,
		pixel: `
uniform sampler2D texture0;
in vec4 exColor;
in vec2 exTexCoord;
out vec4 outColor;
void main() {
	outColor = texture(texture0, exTexCoord) * exColor;
}
`,
	},
}
