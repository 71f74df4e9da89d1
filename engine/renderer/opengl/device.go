package opengl

// OpenGL enumerants used by the backend. The values are fixed by the Khronos registry.
const (
	glZero             = 0
	glOne              = 1
	glSrcColor         = 0x0300
	glOneMinusSrcColor = 0x0301
	glSrcAlpha         = 0x0302
	glOneMinusSrcAlpha = 0x0303
	glDstAlpha         = 0x0304
	glOneMinusDstAlpha = 0x0305
	glDstColor         = 0x0306
	glOneMinusDstColor = 0x0307
	glSrcAlphaSaturate = 0x0308
	glConstantColor    = 0x8001
	glOneMinusConstant = 0x8002

	glFuncAdd             = 0x8006
	glMin                 = 0x8007
	glMax                 = 0x8008
	glFuncSubtract        = 0x800A
	glFuncReverseSubtract = 0x800B

	glPoints        = 0x0000
	glLines         = 0x0001
	glLineStrip     = 0x0003
	glTriangles     = 0x0004
	glTriangleStrip = 0x0005

	glUnsignedByte  = 0x1401
	glUnsignedShort = 0x1403
	glUnsignedInt   = 0x1405
	glFloat         = 0x1406

	glNearest              = 0x2600
	glLinear               = 0x2601
	glNearestMipmapNearest = 0x2700
	glLinearMipmapNearest  = 0x2701
	glLinearMipmapLinear   = 0x2703

	glArrayBuffer        = 0x8892
	glElementArrayBuffer = 0x8893

	glNoError = 0
)

// device is the subset of OpenGL the backend drives. Object names are GL names; 0 is the default object.
// Every method runs on the render goroutine with the context current.
type device interface {
	// Init loads the entry points of the current context.
	Init() error
	// Version returns the GL_VERSION string.
	Version() string
	// Error returns and clears the oldest GL error flag.
	Error() uint32

	CreateTexture() uint32
	// TexImage defines one RGBA8 level; nil data allocates storage only.
	TexImage(texture uint32, level, width, height int32, data []byte)
	TexFilter(texture uint32, minFilter, magFilter int32, maxLevel int32)
	DeleteTexture(texture uint32)

	// CreateProgram compiles and links a vertex and fragment shader.
	CreateProgram(vertexSource, fragmentSource string) (uint32, error)
	UniformLocation(program uint32, name string) int32
	DeleteProgram(program uint32)

	CreateVertexArray() uint32
	BindVertexArray(vao uint32)
	DeleteVertexArray(vao uint32)
	CreateBuffer() uint32
	// BufferData binds buffer to target and replaces its content.
	BufferData(target, buffer uint32, data []byte, dynamic bool)
	DeleteBuffer(buffer uint32)
	// VertexAttrib enables and describes an attribute of the bound vertex array.
	VertexAttrib(location uint32, components int32, xtype uint32, normalized bool, stride int32, offset int)

	// CreateFramebuffer attaches texture (and a depth renderbuffer if requested) and checks completeness.
	CreateFramebuffer(texture uint32, width, height int32, depth bool) (framebuffer, depthBuffer uint32, err error)
	DeleteFramebuffer(framebuffer, depthBuffer uint32)
	BindFramebuffer(framebuffer uint32)

	Viewport(x, y, width, height int32)
	Clear(color [4]float32, depth bool)
	UseProgram(program uint32)
	// Uniform uploads values to a uniform of the bound program; 16 floats upload a 4x4 matrix.
	Uniform(location int32, values []float32)
	Blend(enabled bool, srcColor, dstColor, colorOp, srcAlpha, dstAlpha, alphaOp uint32)
	BindTexture(unit uint32, texture uint32)
	Scissor(enabled bool, x, y, width, height int32)
	DrawElements(mode uint32, count int32, indexType uint32, offset int)
	// ReadPixels reads the bound framebuffer as RGBA8 rows bottom to top.
	ReadPixels(width, height int32) []byte
}
