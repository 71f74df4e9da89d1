//go:build cgo && !js

package opengl

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/go-gl/gl/v3.3-core/gl"
)

func init() {
	renderer.RegisterBackend(renderer.BackendOpenGL, func() renderer.Backend {
		return newBackend(&glDevice{})
	})
}

// glDevice drives the current context through the go-gl bindings.
type glDevice struct{}

var _ device = &glDevice{}

func (d *glDevice) Init() error {
	return gl.Init()
}

func (d *glDevice) Version() string {
	return gl.GoStr(gl.GetString(gl.VERSION))
}

func (d *glDevice) Error() uint32 {
	return gl.GetError()
}

func (d *glDevice) CreateTexture() uint32 {
	var texture uint32
	gl.GenTextures(1, &texture)
	gl.BindTexture(gl.TEXTURE_2D, texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	return texture
}

func (d *glDevice) TexImage(texture uint32, level, width, height int32, data []byte) {
	gl.BindTexture(gl.TEXTURE_2D, texture)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, level, gl.RGBA8, width, height, 0, gl.RGBA, gl.UNSIGNED_BYTE, pointer(data))
}

func (d *glDevice) TexFilter(texture uint32, minFilter, magFilter int32, maxLevel int32) {
	gl.BindTexture(gl.TEXTURE_2D, texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, magFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAX_LEVEL, maxLevel)
}

func (d *glDevice) DeleteTexture(texture uint32) {
	gl.DeleteTextures(1, &texture)
}

func (d *glDevice) CreateProgram(vertexSource, fragmentSource string) (uint32, error) {
	vert, err := compileShader(vertexSource, gl.VERTEX_SHADER)
	if err != nil {
		return 0, fmt.Errorf("vertex: %w", err)
	}
	defer gl.DeleteShader(vert)

	frag, err := compileShader(fragmentSource, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, fmt.Errorf("fragment: %w", err)
	}
	defer gl.DeleteShader(frag)

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vert)
	gl.AttachShader(prog, frag)
	gl.LinkProgram(prog)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(log))
		gl.DeleteProgram(prog)
		return 0, fmt.Errorf("link failed: %v", strings.TrimRight(log, "\x00"))
	}

	// samplers are bound to the unit matching their layer
	gl.UseProgram(prog)
	for layer := 0; layer < renderer.TextureLayers; layer++ {
		if loc := gl.GetUniformLocation(prog, gl.Str(fmt.Sprintf("texture%d\x00", layer))); loc >= 0 {
			gl.Uniform1i(loc, int32(layer))
		}
	}
	gl.UseProgram(0)
	return prog, nil
}

func compileShader(src string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csrc, free := gl.Strs(src + "\x00")
	gl.ShaderSource(shader, 1, csrc, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile failed: %v", strings.TrimRight(log, "\x00"))
	}
	return shader, nil
}

func (d *glDevice) UniformLocation(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
}

func (d *glDevice) DeleteProgram(program uint32) {
	gl.DeleteProgram(program)
}

func (d *glDevice) CreateVertexArray() uint32 {
	var vao uint32
	gl.GenVertexArrays(1, &vao)
	return vao
}

func (d *glDevice) BindVertexArray(vao uint32) {
	gl.BindVertexArray(vao)
}

func (d *glDevice) DeleteVertexArray(vao uint32) {
	gl.DeleteVertexArrays(1, &vao)
}

func (d *glDevice) CreateBuffer() uint32 {
	var buffer uint32
	gl.GenBuffers(1, &buffer)
	return buffer
}

func (d *glDevice) BufferData(target, buffer uint32, data []byte, dynamic bool) {
	usage := uint32(gl.STATIC_DRAW)
	if dynamic {
		usage = gl.DYNAMIC_DRAW
	}
	gl.BindBuffer(target, buffer)
	gl.BufferData(target, len(data), pointer(data), usage)
}

func (d *glDevice) DeleteBuffer(buffer uint32) {
	gl.DeleteBuffers(1, &buffer)
}

func (d *glDevice) VertexAttrib(location uint32, components int32, xtype uint32, normalized bool, stride int32, offset int) {
	gl.EnableVertexAttribArray(location)
	gl.VertexAttribPointer(location, components, xtype, normalized, stride, gl.PtrOffset(offset))
}

func (d *glDevice) CreateFramebuffer(texture uint32, width, height int32, depth bool) (uint32, uint32, error) {
	var fbo, rbo uint32
	gl.GenFramebuffers(1, &fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, texture, 0)

	if depth {
		gl.GenRenderbuffers(1, &rbo)
		gl.BindRenderbuffer(gl.RENDERBUFFER, rbo)
		gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT24, width, height)
		gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, rbo)
	}

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		d.DeleteFramebuffer(fbo, rbo)
		return 0, 0, fmt.Errorf("status 0x%x", status)
	}
	return fbo, rbo, nil
}

func (d *glDevice) DeleteFramebuffer(framebuffer, depthBuffer uint32) {
	if depthBuffer != 0 {
		gl.DeleteRenderbuffers(1, &depthBuffer)
	}
	gl.DeleteFramebuffers(1, &framebuffer)
}

func (d *glDevice) BindFramebuffer(framebuffer uint32) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, framebuffer)
}

func (d *glDevice) Viewport(x, y, width, height int32) {
	gl.Viewport(x, y, width, height)
}

func (d *glDevice) Clear(color [4]float32, depth bool) {
	mask := uint32(gl.COLOR_BUFFER_BIT)
	gl.ClearColor(color[0], color[1], color[2], color[3])
	if depth {
		gl.DepthMask(true)
		gl.ClearDepth(1)
		mask |= gl.DEPTH_BUFFER_BIT
	}
	gl.Clear(mask)
}

func (d *glDevice) UseProgram(program uint32) {
	gl.UseProgram(program)
}

func (d *glDevice) Uniform(location int32, values []float32) {
	if len(values) == 0 {
		return
	}
	switch len(values) {
	case 1:
		gl.Uniform1fv(location, 1, &values[0])
	case 2:
		gl.Uniform2fv(location, 1, &values[0])
	case 3:
		gl.Uniform3fv(location, 1, &values[0])
	case 16:
		gl.UniformMatrix4fv(location, 1, false, &values[0])
	default:
		if len(values)%4 == 0 {
			gl.Uniform4fv(location, int32(len(values)/4), &values[0])
		} else {
			gl.Uniform1fv(location, int32(len(values)), &values[0])
		}
	}
}

func (d *glDevice) Blend(enabled bool, srcColor, dstColor, colorOp, srcAlpha, dstAlpha, alphaOp uint32) {
	if !enabled {
		gl.Disable(gl.BLEND)
		return
	}
	gl.Enable(gl.BLEND)
	gl.BlendFuncSeparate(srcColor, dstColor, srcAlpha, dstAlpha)
	gl.BlendEquationSeparate(colorOp, alphaOp)
}

func (d *glDevice) BindTexture(unit uint32, texture uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + unit)
	gl.BindTexture(gl.TEXTURE_2D, texture)
}

func (d *glDevice) Scissor(enabled bool, x, y, width, height int32) {
	if !enabled {
		gl.Disable(gl.SCISSOR_TEST)
		return
	}
	gl.Enable(gl.SCISSOR_TEST)
	gl.Scissor(x, y, width, height)
}

func (d *glDevice) DrawElements(mode uint32, count int32, indexType uint32, offset int) {
	gl.DrawElements(mode, count, indexType, gl.PtrOffset(offset))
}

func (d *glDevice) ReadPixels(width, height int32) []byte {
	data := make([]byte, int(width)*int(height)*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, width, height, gl.RGBA, gl.UNSIGNED_BYTE, pointer(data))
	return data
}

// pointer returns the address of the first byte, or nil for empty data.
func pointer(data []byte) unsafe.Pointer {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Pointer(&data[0])
}
