//go:build darwin

package metal

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/ebitengine/purego"
	"github.com/ebitengine/purego/objc"
)

func init() {
	renderer.RegisterBackend(renderer.BackendMetal, func() renderer.Backend {
		if err := loadMetal(); err != nil {
			common.Logger().Debug("Metal is not available", "error", err)
			return nil
		}
		return newBackend(&mtlDevice{})
	})
}

// Metal geometry mirrors.
type (
	mtlClearColor struct {
		R, G, B, A float64
	}
	mtlViewport struct {
		OriginX, OriginY float64
		Width, Height    float64
		ZNear, ZFar      float64
	}
	mtlScissorRect struct {
		X, Y, Width, Height uint
	}
	mtlOrigin struct {
		X, Y, Z uint
	}
	mtlSize struct {
		Width, Height, Depth uint
	}
	mtlRegion struct {
		Origin mtlOrigin
		Size   mtlSize
	}
	cgSize struct {
		Width, Height float64
	}
)

const (
	textureType2DMultisample = 4
	textureUsageShaderRead   = 0x1
	textureUsageRenderTarget = 0x4
	storageModePrivate       = 2
	resourceStorageShared    = 0

	storeActionStore                      = 1
	storeActionStoreAndMultisampleResolve = 3

	samplerAddressClampToEdge   = 0
	vertexStepFunctionPerVertex = 1

	windowStyleMaskFullScreen = 1 << 14
)

var (
	loadOnce sync.Once
	loadErr  error

	mtlCreateSystemDefaultDevice func() uintptr
	dispatchDataCreate           func(ptr unsafe.Pointer, size uint, queue uintptr, destructor uintptr) uintptr
	cgMainDisplayID              func() uint32
	cgDisplayCopyAllDisplayModes func(display uint32, options uintptr) uintptr
	cgDisplayModeGetWidth        func(mode uintptr) uint
	cgDisplayModeGetHeight       func(mode uintptr) uint
	cfArrayGetCount              func(array uintptr) int
	cfArrayGetValueAtIndex       func(array uintptr, index int) uintptr
	cfRelease                    func(obj uintptr)

	selAlloc, selInit, selRetain, selRelease, selDrain                                   objc.SEL
	selLayer, selContentView, selSetWantsLayer, selSetLayer, selStyleMask, selToggleFull objc.SEL
	selSetDevice, selSetPixelFormat, selSetFramebufferOnly, selSetDrawableSize           objc.SEL
	selSetDisplaySyncEnabled, selSetMaximumDrawableCount, selNextDrawable, selTexture    objc.SEL
	selNewCommandQueue, selCommandBuffer, selWaitUntilCompleted, selCommit               objc.SEL
	selPresentDrawable, selRenderCommandEncoder, selBlitCommandEncoder, selEndEncoding   objc.SEL
	selRenderPassDescriptor, selColorAttachments, selDepthAttachment, selObjectAtIndex   objc.SEL
	selSetTexture, selSetResolveTexture, selSetLoadAction, selSetStoreAction             objc.SEL
	selSetClearColor, selSetClearDepth, selStringWithUTF8String, selUTF8String           objc.SEL
	selLocalizedDescription, selNewLibraryWithSource, selNewLibraryWithData              objc.SEL
	selNewFunctionWithName, selSetVertexFunction, selSetFragmentFunction                 objc.SEL
	selVertexDescriptor, selAttributes, selLayouts, selSetFormat, selSetOffset           objc.SEL
	selSetBufferIndex, selSetStride, selSetStepFunction, selSetVertexDescriptor          objc.SEL
	selSetBlendingEnabled, selSetSourceRGBBlendFactor, selSetDestinationRGBBlendFactor   objc.SEL
	selSetRgbBlendOperation, selSetSourceAlphaBlendFactor                                objc.SEL
	selSetDestinationAlphaBlendFactor, selSetAlphaBlendOperation                         objc.SEL
	selSetDepthAttachmentPixelFormat, selSetSampleCount, selNewRenderPipelineState       objc.SEL
	selSetMinFilter, selSetMagFilter, selSetMipFilter, selSetSAddressMode                objc.SEL
	selSetTAddressMode, selNewSamplerState, selTexture2DDescriptor, selSetTextureType    objc.SEL
	selSetMipmapLevelCount, selSetUsage, selSetStorageMode, selNewTextureWithDescriptor  objc.SEL
	selReplaceRegion, selNewBufferWithBytes, selNewBufferWithLength, selContents         objc.SEL
	selWidth, selHeight, selCopyFromTexture                                              objc.SEL
	selSetViewport, selSetScissorRect, selSetRenderPipelineState, selSetVertexBuffer     objc.SEL
	selSetFragmentBuffer, selSetFragmentTexture, selSetFragmentSamplerState              objc.SEL
	selDrawIndexedPrimitives                                                             objc.SEL
)

func loadMetal() error {
	loadOnce.Do(func() {
		if _, err := purego.Dlopen("/usr/lib/libobjc.A.dylib", purego.RTLD_GLOBAL); err != nil {
			loadErr = err
			return
		}
		if _, err := purego.Dlopen("/System/Library/Frameworks/QuartzCore.framework/QuartzCore", purego.RTLD_GLOBAL); err != nil {
			loadErr = err
			return
		}
		mtl, err := purego.Dlopen("/System/Library/Frameworks/Metal.framework/Metal", purego.RTLD_GLOBAL)
		if err != nil {
			loadErr = err
			return
		}
		system, err := purego.Dlopen("/usr/lib/libSystem.B.dylib", purego.RTLD_GLOBAL)
		if err != nil {
			loadErr = err
			return
		}
		cg, err := purego.Dlopen("/System/Library/Frameworks/CoreGraphics.framework/CoreGraphics", purego.RTLD_GLOBAL)
		if err != nil {
			loadErr = err
			return
		}
		cf, err := purego.Dlopen("/System/Library/Frameworks/CoreFoundation.framework/CoreFoundation", purego.RTLD_GLOBAL)
		if err != nil {
			loadErr = err
			return
		}

		purego.RegisterLibFunc(&mtlCreateSystemDefaultDevice, mtl, "MTLCreateSystemDefaultDevice")
		purego.RegisterLibFunc(&dispatchDataCreate, system, "dispatch_data_create")
		purego.RegisterLibFunc(&cgMainDisplayID, cg, "CGMainDisplayID")
		purego.RegisterLibFunc(&cgDisplayCopyAllDisplayModes, cg, "CGDisplayCopyAllDisplayModes")
		purego.RegisterLibFunc(&cgDisplayModeGetWidth, cg, "CGDisplayModeGetWidth")
		purego.RegisterLibFunc(&cgDisplayModeGetHeight, cg, "CGDisplayModeGetHeight")
		purego.RegisterLibFunc(&cfArrayGetCount, cf, "CFArrayGetCount")
		purego.RegisterLibFunc(&cfArrayGetValueAtIndex, cf, "CFArrayGetValueAtIndex")
		purego.RegisterLibFunc(&cfRelease, cf, "CFRelease")
		loadSelectors()
	})
	return loadErr
}

func loadSelectors() {
	selAlloc = objc.RegisterName("alloc")
	selInit = objc.RegisterName("init")
	selRetain = objc.RegisterName("retain")
	selRelease = objc.RegisterName("release")
	selDrain = objc.RegisterName("drain")

	selLayer = objc.RegisterName("layer")
	selContentView = objc.RegisterName("contentView")
	selSetWantsLayer = objc.RegisterName("setWantsLayer:")
	selSetLayer = objc.RegisterName("setLayer:")
	selStyleMask = objc.RegisterName("styleMask")
	selToggleFull = objc.RegisterName("toggleFullScreen:")

	selSetDevice = objc.RegisterName("setDevice:")
	selSetPixelFormat = objc.RegisterName("setPixelFormat:")
	selSetFramebufferOnly = objc.RegisterName("setFramebufferOnly:")
	selSetDrawableSize = objc.RegisterName("setDrawableSize:")
	selSetDisplaySyncEnabled = objc.RegisterName("setDisplaySyncEnabled:")
	selSetMaximumDrawableCount = objc.RegisterName("setMaximumDrawableCount:")
	selNextDrawable = objc.RegisterName("nextDrawable")
	selTexture = objc.RegisterName("texture")

	selNewCommandQueue = objc.RegisterName("newCommandQueue")
	selCommandBuffer = objc.RegisterName("commandBuffer")
	selWaitUntilCompleted = objc.RegisterName("waitUntilCompleted")
	selCommit = objc.RegisterName("commit")
	selPresentDrawable = objc.RegisterName("presentDrawable:")
	selRenderCommandEncoder = objc.RegisterName("renderCommandEncoderWithDescriptor:")
	selBlitCommandEncoder = objc.RegisterName("blitCommandEncoder")
	selEndEncoding = objc.RegisterName("endEncoding")

	selRenderPassDescriptor = objc.RegisterName("renderPassDescriptor")
	selColorAttachments = objc.RegisterName("colorAttachments")
	selDepthAttachment = objc.RegisterName("depthAttachment")
	selObjectAtIndex = objc.RegisterName("objectAtIndexedSubscript:")
	selSetTexture = objc.RegisterName("setTexture:")
	selSetResolveTexture = objc.RegisterName("setResolveTexture:")
	selSetLoadAction = objc.RegisterName("setLoadAction:")
	selSetStoreAction = objc.RegisterName("setStoreAction:")
	selSetClearColor = objc.RegisterName("setClearColor:")
	selSetClearDepth = objc.RegisterName("setClearDepth:")

	selStringWithUTF8String = objc.RegisterName("stringWithUTF8String:")
	selUTF8String = objc.RegisterName("UTF8String")
	selLocalizedDescription = objc.RegisterName("localizedDescription")

	selNewLibraryWithSource = objc.RegisterName("newLibraryWithSource:options:error:")
	selNewLibraryWithData = objc.RegisterName("newLibraryWithData:error:")
	selNewFunctionWithName = objc.RegisterName("newFunctionWithName:")

	selSetVertexFunction = objc.RegisterName("setVertexFunction:")
	selSetFragmentFunction = objc.RegisterName("setFragmentFunction:")
	selVertexDescriptor = objc.RegisterName("vertexDescriptor")
	selAttributes = objc.RegisterName("attributes")
	selLayouts = objc.RegisterName("layouts")
	selSetFormat = objc.RegisterName("setFormat:")
	selSetOffset = objc.RegisterName("setOffset:")
	selSetBufferIndex = objc.RegisterName("setBufferIndex:")
	selSetStride = objc.RegisterName("setStride:")
	selSetStepFunction = objc.RegisterName("setStepFunction:")
	selSetVertexDescriptor = objc.RegisterName("setVertexDescriptor:")
	selSetBlendingEnabled = objc.RegisterName("setBlendingEnabled:")
	selSetSourceRGBBlendFactor = objc.RegisterName("setSourceRGBBlendFactor:")
	selSetDestinationRGBBlendFactor = objc.RegisterName("setDestinationRGBBlendFactor:")
	selSetRgbBlendOperation = objc.RegisterName("setRgbBlendOperation:")
	selSetSourceAlphaBlendFactor = objc.RegisterName("setSourceAlphaBlendFactor:")
	selSetDestinationAlphaBlendFactor = objc.RegisterName("setDestinationAlphaBlendFactor:")
	selSetAlphaBlendOperation = objc.RegisterName("setAlphaBlendOperation:")
	selSetDepthAttachmentPixelFormat = objc.RegisterName("setDepthAttachmentPixelFormat:")
	selSetSampleCount = objc.RegisterName("setSampleCount:")
	selNewRenderPipelineState = objc.RegisterName("newRenderPipelineStateWithDescriptor:error:")

	selSetMinFilter = objc.RegisterName("setMinFilter:")
	selSetMagFilter = objc.RegisterName("setMagFilter:")
	selSetMipFilter = objc.RegisterName("setMipFilter:")
	selSetSAddressMode = objc.RegisterName("setSAddressMode:")
	selSetTAddressMode = objc.RegisterName("setTAddressMode:")
	selNewSamplerState = objc.RegisterName("newSamplerStateWithDescriptor:")

	selTexture2DDescriptor = objc.RegisterName("texture2DDescriptorWithPixelFormat:width:height:mipmapped:")
	selSetTextureType = objc.RegisterName("setTextureType:")
	selSetMipmapLevelCount = objc.RegisterName("setMipmapLevelCount:")
	selSetUsage = objc.RegisterName("setUsage:")
	selSetStorageMode = objc.RegisterName("setStorageMode:")
	selNewTextureWithDescriptor = objc.RegisterName("newTextureWithDescriptor:")
	selReplaceRegion = objc.RegisterName("replaceRegion:mipmapLevel:withBytes:bytesPerRow:")
	selNewBufferWithBytes = objc.RegisterName("newBufferWithBytes:length:options:")
	selNewBufferWithLength = objc.RegisterName("newBufferWithLength:options:")
	selContents = objc.RegisterName("contents")
	selWidth = objc.RegisterName("width")
	selHeight = objc.RegisterName("height")
	selCopyFromTexture = objc.RegisterName("copyFromTexture:sourceSlice:sourceLevel:sourceOrigin:sourceSize:toBuffer:destinationOffset:destinationBytesPerRow:destinationBytesPerImage:")

	selSetViewport = objc.RegisterName("setViewport:")
	selSetScissorRect = objc.RegisterName("setScissorRect:")
	selSetRenderPipelineState = objc.RegisterName("setRenderPipelineState:")
	selSetVertexBuffer = objc.RegisterName("setVertexBuffer:offset:atIndex:")
	selSetFragmentBuffer = objc.RegisterName("setFragmentBuffer:offset:atIndex:")
	selSetFragmentTexture = objc.RegisterName("setFragmentTexture:atIndex:")
	selSetFragmentSamplerState = objc.RegisterName("setFragmentSamplerState:atIndex:")
	selDrawIndexedPrimitives = objc.RegisterName("drawIndexedPrimitives:indexCount:indexType:indexBuffer:indexBufferOffset:")
}

func class(name string) objc.ID {
	return objc.ID(objc.GetClass(name))
}

func nsString(v string) objc.ID {
	return class("NSString").Send(selStringWithUTF8String, v+"\x00")
}

// nsError returns the localized description of an NSError.
func nsError(err objc.ID) error {
	if err == 0 {
		return errors.New("unknown error")
	}
	desc := err.Send(selLocalizedDescription)
	ptr := objc.Send[unsafe.Pointer](desc, selUTF8String)
	if ptr == nil {
		return errors.New("unknown error")
	}
	var n int
	for *(*byte)(unsafe.Add(ptr, n)) != 0 {
		n++
	}
	return errors.New(string(unsafe.Slice((*byte)(ptr), n)))
}

// mtlDevice drives Metal through the Objective-C runtime.
type mtlDevice struct {
	device      objc.ID
	queue       objc.ID
	layer       objc.ID
	window      objc.ID
	sampleCount uint32
	width       uint32
	height      uint32
	msaa        objc.ID

	pool         objc.ID
	drawable     objc.ID
	buffer       objc.ID
	encoder      objc.ID
	inFlight     [uniformFrames]objc.ID
	lastDrawable objc.ID
	lastBuffer   objc.ID
}

var _ device = &mtlDevice{}

func (d *mtlDevice) Init(window uintptr, width, height, sampleCount uint32, vsync bool) error {
	d.device = objc.ID(mtlCreateSystemDefaultDevice())
	if d.device == 0 {
		return errors.New("no Metal device")
	}
	d.queue = d.device.Send(selNewCommandQueue)
	d.window = objc.ID(window)
	d.sampleCount = sampleCount

	d.layer = class("CAMetalLayer").Send(selLayer).Send(selRetain)
	d.layer.Send(selSetDevice, d.device)
	d.layer.Send(selSetPixelFormat, uint(pixelFormatBGRA8Unorm))
	// screenshots read the drawable back
	d.layer.Send(selSetFramebufferOnly, false)
	d.layer.Send(selSetDisplaySyncEnabled, vsync)
	d.layer.Send(selSetMaximumDrawableCount, uint(uniformFrames))

	view := d.window.Send(selContentView)
	view.Send(selSetWantsLayer, true)
	view.Send(selSetLayer, d.layer)

	d.ResizeDrawable(width, height)
	return nil
}

func (d *mtlDevice) Close() {
	d.waitIdle()
	for _, obj := range []objc.ID{d.lastDrawable, d.lastBuffer, d.msaa, d.layer, d.queue, d.device} {
		if obj != 0 {
			obj.Send(selRelease)
		}
	}
	*d = mtlDevice{}
}

func (d *mtlDevice) waitIdle() {
	for i, cb := range d.inFlight {
		if cb != 0 {
			cb.Send(selWaitUntilCompleted)
			cb.Send(selRelease)
			d.inFlight[i] = 0
		}
	}
}

func (d *mtlDevice) ResizeDrawable(width, height uint32) {
	d.width, d.height = max(width, 1), max(height, 1)
	d.layer.Send(selSetDrawableSize, cgSize{Width: float64(d.width), Height: float64(d.height)})

	if d.msaa != 0 {
		d.msaa.Send(selRelease)
		d.msaa = 0
	}
	if d.sampleCount > 1 {
		desc := class("MTLTextureDescriptor").Send(selTexture2DDescriptor, uint(pixelFormatBGRA8Unorm), uint(d.width), uint(d.height), false)
		desc.Send(selSetTextureType, uint(textureType2DMultisample))
		desc.Send(selSetSampleCount, uint(d.sampleCount))
		desc.Send(selSetUsage, uint(textureUsageRenderTarget))
		desc.Send(selSetStorageMode, uint(storageModePrivate))
		d.msaa = d.device.Send(selNewTextureWithDescriptor, desc)
	}
}

func (d *mtlDevice) SetFullscreen(fullscreen bool) error {
	current := objc.Send[uint](d.window, selStyleMask)&windowStyleMaskFullScreen != 0
	if current != fullscreen {
		d.window.Send(selToggleFull, objc.ID(0))
	}
	return nil
}

func (d *mtlDevice) DisplayModes() []common.Size2 {
	modes := cgDisplayCopyAllDisplayModes(cgMainDisplayID(), 0)
	if modes == 0 {
		return nil
	}
	defer cfRelease(modes)

	count := cfArrayGetCount(modes)
	seen := make(map[common.Size2]struct{}, count)
	sizes := make([]common.Size2, 0, count)
	for i := 0; i < count; i++ {
		mode := cfArrayGetValueAtIndex(modes, i)
		size := common.Size2{Width: float32(cgDisplayModeGetWidth(mode)), Height: float32(cgDisplayModeGetHeight(mode))}
		if _, ok := seen[size]; ok {
			continue
		}
		seen[size] = struct{}{}
		sizes = append(sizes, size)
	}
	return sizes
}

func (d *mtlDevice) BeginFrame(slot int) error {
	if cb := d.inFlight[slot]; cb != 0 {
		cb.Send(selWaitUntilCompleted)
		cb.Send(selRelease)
		d.inFlight[slot] = 0
	}

	d.pool = class("NSAutoreleasePool").Send(selAlloc).Send(selInit)
	d.drawable = d.layer.Send(selNextDrawable)
	if d.drawable == 0 {
		d.pool.Send(selDrain)
		d.pool = 0
		return errors.New("no drawable available")
	}
	d.drawable.Send(selRetain)
	d.buffer = d.queue.Send(selCommandBuffer).Send(selRetain)
	d.inFlight[slot] = d.buffer.Send(selRetain)
	return nil
}

func (d *mtlDevice) endEncoder() {
	if d.encoder != 0 {
		d.encoder.Send(selEndEncoding)
		d.encoder.Send(selRelease)
		d.encoder = 0
	}
}

func (d *mtlDevice) BeginPass(color, depth handle, loadAction uint32, clearColor [4]float32) {
	d.endEncoder()

	desc := class("MTLRenderPassDescriptor").Send(selRenderPassDescriptor)
	att := desc.Send(selColorAttachments).Send(selObjectAtIndex, uint(0))
	switch {
	case color != 0:
		att.Send(selSetTexture, objc.ID(color))
		att.Send(selSetStoreAction, uint(storeActionStore))
	case d.msaa != 0:
		att.Send(selSetTexture, d.msaa)
		att.Send(selSetResolveTexture, d.drawable.Send(selTexture))
		att.Send(selSetStoreAction, uint(storeActionStoreAndMultisampleResolve))
	default:
		att.Send(selSetTexture, d.drawable.Send(selTexture))
		att.Send(selSetStoreAction, uint(storeActionStore))
	}
	att.Send(selSetLoadAction, uint(loadAction))
	att.Send(selSetClearColor, mtlClearColor{
		R: float64(clearColor[0]), G: float64(clearColor[1]), B: float64(clearColor[2]), A: float64(clearColor[3]),
	})

	if depth != 0 {
		datt := desc.Send(selDepthAttachment)
		datt.Send(selSetTexture, objc.ID(depth))
		datt.Send(selSetLoadAction, uint(loadAction))
		datt.Send(selSetStoreAction, uint(storeActionStore))
		datt.Send(selSetClearDepth, float64(1))
	}

	d.encoder = d.buffer.Send(selRenderCommandEncoder, desc).Send(selRetain)
}

func (d *mtlDevice) EndFrame() {
	d.endEncoder()
	if d.buffer == 0 {
		return
	}
	d.buffer.Send(selPresentDrawable, d.drawable)
	d.buffer.Send(selCommit)

	if d.lastDrawable != 0 {
		d.lastDrawable.Send(selRelease)
	}
	if d.lastBuffer != 0 {
		d.lastBuffer.Send(selRelease)
	}
	d.lastDrawable, d.lastBuffer = d.drawable, d.buffer
	d.drawable, d.buffer = 0, 0

	d.pool.Send(selDrain)
	d.pool = 0
}

func (d *mtlDevice) ReadDrawable() ([]byte, int, int, error) {
	if d.lastDrawable == 0 {
		return nil, 0, 0, errors.New("no frame has been presented")
	}
	d.lastBuffer.Send(selWaitUntilCompleted)

	pool := class("NSAutoreleasePool").Send(selAlloc).Send(selInit)
	defer pool.Send(selDrain)

	tex := d.lastDrawable.Send(selTexture)
	width := objc.Send[uint](tex, selWidth)
	height := objc.Send[uint](tex, selHeight)
	rowBytes := width * 4

	staging := d.device.Send(selNewBufferWithLength, rowBytes*height, uint(resourceStorageShared))
	if staging == 0 {
		return nil, 0, 0, errors.New("failed to allocate read back buffer")
	}
	defer staging.Send(selRelease)

	cb := d.queue.Send(selCommandBuffer)
	blit := cb.Send(selBlitCommandEncoder)
	blit.Send(selCopyFromTexture, tex, uint(0), uint(0), mtlOrigin{}, mtlSize{Width: width, Height: height, Depth: 1},
		staging, uint(0), rowBytes, rowBytes*height)
	blit.Send(selEndEncoding)
	cb.Send(selCommit)
	cb.Send(selWaitUntilCompleted)

	ptr := objc.Send[unsafe.Pointer](staging, selContents)
	data := append([]byte(nil), unsafe.Slice((*byte)(ptr), rowBytes*height)...)
	return data, int(width), int(height), nil
}

func (d *mtlDevice) CreateLibrary(source []byte, binary bool) (handle, error) {
	var nsErr objc.ID
	var lib objc.ID
	if binary {
		if len(source) == 0 {
			return 0, errors.New("empty library")
		}
		data := dispatchDataCreate(unsafe.Pointer(&source[0]), uint(len(source)), 0, 0)
		defer objc.ID(data).Send(selRelease)
		lib = d.device.Send(selNewLibraryWithData, objc.ID(data), unsafe.Pointer(&nsErr))
	} else {
		lib = d.device.Send(selNewLibraryWithSource, nsString(string(source)), objc.ID(0), unsafe.Pointer(&nsErr))
	}
	if lib == 0 {
		return 0, nsError(nsErr)
	}
	return handle(lib), nil
}

func (d *mtlDevice) CreateFunction(library handle, name string) (handle, error) {
	fn := objc.ID(library).Send(selNewFunctionWithName, nsString(name))
	if fn == 0 {
		return 0, fmt.Errorf("function %q not found in library", name)
	}
	return handle(fn), nil
}

func (d *mtlDevice) CreatePipeline(p pipelineDesc) (handle, error) {
	desc := class("MTLRenderPipelineDescriptor").Send(selAlloc).Send(selInit)
	defer desc.Send(selRelease)

	desc.Send(selSetVertexFunction, objc.ID(p.VertexFunction))
	desc.Send(selSetFragmentFunction, objc.ID(p.FragmentFunction))

	vd := class("MTLVertexDescriptor").Send(selVertexDescriptor)
	for _, attr := range p.Attributes {
		a := vd.Send(selAttributes).Send(selObjectAtIndex, uint(attr.Index))
		a.Send(selSetFormat, uint(attr.Format))
		a.Send(selSetOffset, uint(attr.Offset))
		a.Send(selSetBufferIndex, uint(vertexBufferIndex))
	}
	layout := vd.Send(selLayouts).Send(selObjectAtIndex, uint(vertexBufferIndex))
	layout.Send(selSetStride, uint(p.Stride))
	layout.Send(selSetStepFunction, uint(vertexStepFunctionPerVertex))
	desc.Send(selSetVertexDescriptor, vd)

	att := desc.Send(selColorAttachments).Send(selObjectAtIndex, uint(0))
	att.Send(selSetPixelFormat, uint(p.ColorFormat))
	att.Send(selSetBlendingEnabled, p.Blend.Enabled)
	att.Send(selSetSourceRGBBlendFactor, uint(p.Blend.SrcColor))
	att.Send(selSetDestinationRGBBlendFactor, uint(p.Blend.DestColor))
	att.Send(selSetRgbBlendOperation, uint(p.Blend.ColorOp))
	att.Send(selSetSourceAlphaBlendFactor, uint(p.Blend.SrcAlpha))
	att.Send(selSetDestinationAlphaBlendFactor, uint(p.Blend.DestAlpha))
	att.Send(selSetAlphaBlendOperation, uint(p.Blend.AlphaOp))
	if p.DepthFormat != 0 {
		desc.Send(selSetDepthAttachmentPixelFormat, uint(p.DepthFormat))
	}
	desc.Send(selSetSampleCount, uint(max(p.SampleCount, 1)))

	var nsErr objc.ID
	state := d.device.Send(selNewRenderPipelineState, desc, unsafe.Pointer(&nsErr))
	if state == 0 {
		return 0, nsError(nsErr)
	}
	return handle(state), nil
}

func (d *mtlDevice) CreateSampler(minMagFilter, mipFilter uint32) (handle, error) {
	desc := class("MTLSamplerDescriptor").Send(selAlloc).Send(selInit)
	defer desc.Send(selRelease)
	desc.Send(selSetMinFilter, uint(minMagFilter))
	desc.Send(selSetMagFilter, uint(minMagFilter))
	desc.Send(selSetMipFilter, uint(mipFilter))
	desc.Send(selSetSAddressMode, uint(samplerAddressClampToEdge))
	desc.Send(selSetTAddressMode, uint(samplerAddressClampToEdge))

	sampler := d.device.Send(selNewSamplerState, desc)
	if sampler == 0 {
		return 0, errors.New("newSamplerStateWithDescriptor returned nil")
	}
	return handle(sampler), nil
}

func (d *mtlDevice) CreateTexture(width, height, levels, sampleCount, format uint32, renderTarget bool) (handle, error) {
	desc := class("MTLTextureDescriptor").Send(selTexture2DDescriptor, uint(format), uint(width), uint(height), levels > 1)
	desc.Send(selSetMipmapLevelCount, uint(max(levels, 1)))
	if sampleCount > 1 {
		desc.Send(selSetTextureType, uint(textureType2DMultisample))
		desc.Send(selSetSampleCount, uint(sampleCount))
	}
	usage := uint(textureUsageShaderRead)
	if renderTarget {
		usage |= textureUsageRenderTarget
	}
	if format == pixelFormatDepth32Float {
		usage = textureUsageRenderTarget
		desc.Send(selSetStorageMode, uint(storageModePrivate))
	}
	desc.Send(selSetUsage, usage)

	tex := d.device.Send(selNewTextureWithDescriptor, desc)
	if tex == 0 {
		return 0, errors.New("newTextureWithDescriptor returned nil")
	}
	return handle(tex), nil
}

func (d *mtlDevice) ReplaceRegion(texture handle, level, width, height uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	region := mtlRegion{Size: mtlSize{Width: uint(width), Height: uint(height), Depth: 1}}
	objc.ID(texture).Send(selReplaceRegion, region, uint(level), unsafe.Pointer(&data[0]), uint(width*4))
}

func (d *mtlDevice) CreateBuffer(data []byte, size uint32) (handle, error) {
	var buf objc.ID
	if len(data) > 0 {
		buf = d.device.Send(selNewBufferWithBytes, unsafe.Pointer(&data[0]), uint(len(data)), uint(resourceStorageShared))
	} else {
		buf = d.device.Send(selNewBufferWithLength, uint(size), uint(resourceStorageShared))
	}
	if buf == 0 {
		return 0, fmt.Errorf("failed to allocate %d byte buffer", size)
	}
	return handle(buf), nil
}

func (d *mtlDevice) WriteBuffer(buffer handle, offset uint32, data []byte) {
	ptr := objc.Send[unsafe.Pointer](objc.ID(buffer), selContents)
	copy(unsafe.Slice((*byte)(unsafe.Add(ptr, offset)), len(data)), data)
}

func (d *mtlDevice) Release(h handle) {
	objc.ID(h).Send(selRelease)
}

func (d *mtlDevice) SetViewport(width, height float32) {
	d.encoder.Send(selSetViewport, mtlViewport{Width: float64(width), Height: float64(height), ZFar: 1})
}

func (d *mtlDevice) SetScissor(x, y, width, height uint32) {
	d.encoder.Send(selSetScissorRect, mtlScissorRect{X: uint(x), Y: uint(y), Width: uint(width), Height: uint(height)})
}

func (d *mtlDevice) SetPipeline(pipeline handle) {
	d.encoder.Send(selSetRenderPipelineState, objc.ID(pipeline))
}

func (d *mtlDevice) SetVertexBuffer(buffer handle, offset, index uint32) {
	d.encoder.Send(selSetVertexBuffer, objc.ID(buffer), uint(offset), uint(index))
}

func (d *mtlDevice) SetFragmentBuffer(buffer handle, offset, index uint32) {
	d.encoder.Send(selSetFragmentBuffer, objc.ID(buffer), uint(offset), uint(index))
}

func (d *mtlDevice) SetFragmentTexture(texture, sampler handle, index uint32) {
	d.encoder.Send(selSetFragmentTexture, objc.ID(texture), uint(index))
	d.encoder.Send(selSetFragmentSamplerState, objc.ID(sampler), uint(index))
}

func (d *mtlDevice) DrawIndexed(primitive, count, indexType uint32, indexBuffer handle, offset uint32) {
	d.encoder.Send(selDrawIndexedPrimitives, uint(primitive), uint(count), uint(indexType), objc.ID(indexBuffer), uint(offset))
}
