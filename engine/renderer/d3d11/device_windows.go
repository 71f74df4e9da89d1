//go:build windows

package d3d11

import (
	"fmt"
	"math"
	"runtime"
	"syscall"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"golang.org/x/sys/windows"
)

func init() {
	renderer.RegisterBackend(renderer.BackendDirect3D11, func() renderer.Backend {
		if procCreateDeviceAndSwapChain.Find() != nil {
			return nil
		}
		return newBackend(&comDevice{})
	})
}

var (
	modD3D11                     = windows.NewLazySystemDLL("d3d11.dll")
	procCreateDeviceAndSwapChain = modD3D11.NewProc("D3D11CreateDeviceAndSwapChain")

	modD3DCompiler = windows.NewLazySystemDLL("d3dcompiler_47.dll")
	procD3DCompile = modD3DCompiler.NewProc("D3DCompile")

	iidTexture2D   = windows.GUID{Data1: 0x6f15aaf2, Data2: 0xd208, Data3: 0x4e89, Data4: [8]byte{0x9a, 0xb4, 0x48, 0x95, 0x35, 0xd3, 0x4f, 0x9c}}
	iidDXGIFactory = windows.GUID{Data1: 0x7b7166ec, Data2: 0x21c7, Data3: 0x44ae, Data4: [8]byte{0xb2, 0x1a, 0xc9, 0xae, 0x32, 0x1a, 0xe3, 0x69}}
)

const (
	sdkVersion         = 7
	driverTypeHardware = 1

	usageDefault = 0
	usageDynamic = 2
	usageStaging = 3

	bindShaderResource = 0x08
	bindRenderTarget   = 0x20
	bindDepthStencil   = 0x40

	cpuAccessWrite = 0x10000
	cpuAccessRead  = 0x20000

	mapRead         = 1
	mapWriteDiscard = 4

	formatD24UNormS8UInt = 45

	usageRenderTargetOutput  = 0x20
	swapChainAllowModeSwitch = 0x2
	mwaNoAltEnter            = 0x2

	addressClamp        = 3
	comparisonNever     = 1
	comparisonLess      = 2
	comparisonAlways    = 8
	stencilOpKeep       = 1
	fillSolid           = 3
	cullNone            = 1
	depthWriteMaskAll   = 1
	colorWriteEnableAll = 0xf
	clearDepth          = 0x1
	clearStencil        = 0x2

	compileOptimizationLevel3 = 1 << 15
)

// COM vtable slots.
const (
	unknownRelease = 2

	deviceCreateBuffer             = 3
	deviceCreateTexture2D          = 5
	deviceCreateShaderResourceView = 7
	deviceCreateRenderTargetView   = 9
	deviceCreateDepthStencilView   = 10
	deviceCreateInputLayout        = 11
	deviceCreateVertexShader       = 12
	deviceCreatePixelShader        = 15
	deviceCreateBlendState         = 20
	deviceCreateDepthStencilState  = 21
	deviceCreateRasterizerState    = 22
	deviceCreateSamplerState       = 23

	contextVSSetConstantBuffers   = 7
	contextPSSetShaderResources   = 8
	contextPSSetShader            = 9
	contextPSSetSamplers          = 10
	contextVSSetShader            = 11
	contextDrawIndexed            = 12
	contextMap                    = 14
	contextUnmap                  = 15
	contextPSSetConstantBuffers   = 16
	contextIASetInputLayout       = 17
	contextIASetVertexBuffers     = 18
	contextIASetIndexBuffer       = 19
	contextIASetPrimitiveTopology = 24
	contextOMSetRenderTargets     = 33
	contextOMSetBlendState        = 35
	contextOMSetDepthStencilState = 36
	contextRSSetState             = 43
	contextRSSetViewports         = 44
	contextRSSetScissorRects      = 45
	contextCopyResource           = 47
	contextUpdateSubresource      = 48
	contextClearRenderTargetView  = 50
	contextClearDepthStencilView  = 53
	contextResolveSubresource     = 57

	swapChainGetParent           = 6
	swapChainPresent             = 8
	swapChainGetBuffer           = 9
	swapChainSetFullscreenState  = 10
	swapChainGetFullscreenState  = 11
	swapChainResizeBuffers       = 13
	swapChainResizeTarget        = 14
	swapChainGetContainingOutput = 15

	factoryMakeWindowAssociation = 8

	outputGetDisplayModeList      = 8
	outputFindClosestMatchingMode = 9

	blobGetBufferPointer = 3
	blobGetBufferSize    = 4

	texture2DGetDesc = 10
)

type rational struct {
	Numerator, Denominator uint32
}

type modeDesc struct {
	Width, Height    uint32
	RefreshRate      rational
	Format           uint32
	ScanlineOrdering uint32
	Scaling          uint32
}

type sampleDesc struct {
	Count, Quality uint32
}

type swapChainDesc struct {
	BufferDesc   modeDesc
	SampleDesc   sampleDesc
	BufferUsage  uint32
	BufferCount  uint32
	OutputWindow uintptr
	Windowed     int32
	SwapEffect   uint32
	Flags        uint32
}

type texture2DDesc struct {
	Width, Height  uint32
	MipLevels      uint32
	ArraySize      uint32
	Format         uint32
	SampleDesc     sampleDesc
	Usage          uint32
	BindFlags      uint32
	CPUAccessFlags uint32
	MiscFlags      uint32
}

type bufferDesc struct {
	ByteWidth           uint32
	Usage               uint32
	BindFlags           uint32
	CPUAccessFlags      uint32
	MiscFlags           uint32
	StructureByteStride uint32
}

type subresourceData struct {
	SysMem           uintptr
	SysMemPitch      uint32
	SysMemSlicePitch uint32
}

type mappedSubresource struct {
	Data       uintptr
	RowPitch   uint32
	DepthPitch uint32
}

type inputElementDesc struct {
	SemanticName         *byte
	SemanticIndex        uint32
	Format               uint32
	InputSlot            uint32
	AlignedByteOffset    uint32
	InputSlotClass       uint32
	InstanceDataStepRate uint32
}

type samplerDesc struct {
	Filter         uint32
	AddressU       uint32
	AddressV       uint32
	AddressW       uint32
	MipLODBias     float32
	MaxAnisotropy  uint32
	ComparisonFunc uint32
	BorderColor    [4]float32
	MinLOD, MaxLOD float32
}

type rasterizerDesc struct {
	FillMode              uint32
	CullMode              uint32
	FrontCounterClockwise int32
	DepthBias             int32
	DepthBiasClamp        float32
	SlopeScaledDepthBias  float32
	DepthClipEnable       int32
	ScissorEnable         int32
	MultisampleEnable     int32
	AntialiasedLineEnable int32
}

type stencilOpDesc struct {
	FailOp, DepthFailOp, PassOp, Func uint32
}

type depthStencilDesc struct {
	DepthEnable      int32
	DepthWriteMask   uint32
	DepthFunc        uint32
	StencilEnable    int32
	StencilReadMask  uint8
	StencilWriteMask uint8
	FrontFace        stencilOpDesc
	BackFace         stencilOpDesc
}

type renderTargetBlendDesc struct {
	BlendEnable           int32
	SrcBlend              uint32
	DestBlend             uint32
	BlendOp               uint32
	SrcBlendAlpha         uint32
	DestBlendAlpha        uint32
	BlendOpAlpha          uint32
	RenderTargetWriteMask uint8
}

type blendStateDesc struct {
	AlphaToCoverageEnable  int32
	IndependentBlendEnable int32
	RenderTarget           [8]renderTargetBlendDesc
}

type viewport struct {
	TopLeftX, TopLeftY float32
	Width, Height      float32
	MinDepth, MaxDepth float32
}

type rect struct {
	Left, Top, Right, Bottom int32
}

// comCall invokes the method in slot index of a COM object's vtable.
func comCall(obj uintptr, index int, args ...uintptr) uintptr {
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	fn := *(*uintptr)(unsafe.Pointer(vtbl + uintptr(index)*unsafe.Sizeof(uintptr(0))))
	r, _, _ := syscall.SyscallN(fn, append([]uintptr{obj}, args...)...)
	return r
}

func checkHRESULT(op string, hr uintptr) error {
	if int32(hr) < 0 {
		return fmt.Errorf("%s failed: HRESULT 0x%08x", op, uint32(hr))
	}
	return nil
}

func boolArg(v bool) uintptr {
	if v {
		return 1
	}
	return 0
}

func bytesPtr(data []byte) uintptr {
	if len(data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&data[0]))
}

// comDevice owns the native device, immediate context and swap chain.
type comDevice struct {
	device      uintptr
	context     uintptr
	swapChain   uintptr
	sampleCount uint32
}

var _ device = &comDevice{}

func (d *comDevice) Init(hwnd uintptr, width, height, sampleCount uint32) (handle, error) {
	d.sampleCount = max(sampleCount, 1)
	desc := swapChainDesc{
		BufferDesc: modeDesc{
			Width:  width,
			Height: height,
			Format: formatR8G8B8A8UNorm,
		},
		SampleDesc:   sampleDesc{Count: d.sampleCount},
		BufferUsage:  usageRenderTargetOutput,
		BufferCount:  1,
		OutputWindow: hwnd,
		Windowed:     1,
		Flags:        swapChainAllowModeSwitch,
	}

	hr, _, _ := procCreateDeviceAndSwapChain.Call(
		0,
		driverTypeHardware,
		0,
		0,
		0,
		0,
		sdkVersion,
		uintptr(unsafe.Pointer(&desc)),
		uintptr(unsafe.Pointer(&d.swapChain)),
		uintptr(unsafe.Pointer(&d.device)),
		0,
		uintptr(unsafe.Pointer(&d.context)),
	)
	if err := checkHRESULT("D3D11CreateDeviceAndSwapChain", hr); err != nil {
		return 0, err
	}

	// fullscreen switching is driven by the window layer, not by Alt+Enter
	var factory uintptr
	if comCall(d.swapChain, swapChainGetParent, uintptr(unsafe.Pointer(&iidDXGIFactory)), uintptr(unsafe.Pointer(&factory))) == 0 {
		comCall(factory, factoryMakeWindowAssociation, hwnd, mwaNoAltEnter)
		comCall(factory, unknownRelease)
	}

	return d.backBufferView()
}

func (d *comDevice) backBufferView() (handle, error) {
	var tex uintptr
	if err := checkHRESULT("IDXGISwapChain::GetBuffer", comCall(d.swapChain, swapChainGetBuffer, 0, uintptr(unsafe.Pointer(&iidTexture2D)), uintptr(unsafe.Pointer(&tex)))); err != nil {
		return 0, err
	}
	defer comCall(tex, unknownRelease)
	return d.CreateRenderTargetView(handle(tex))
}

func (d *comDevice) Close() {
	if d.swapChain != 0 {
		// a swap chain must leave fullscreen before it is released
		comCall(d.swapChain, swapChainSetFullscreenState, 0, 0)
		comCall(d.swapChain, unknownRelease)
	}
	if d.context != 0 {
		comCall(d.context, unknownRelease)
	}
	if d.device != 0 {
		comCall(d.device, unknownRelease)
	}
	d.swapChain, d.context, d.device = 0, 0, 0
}

func (d *comDevice) ResizeBuffers(width, height uint32) (handle, error) {
	// every reference to the old back buffer must be gone before resizing
	comCall(d.context, contextOMSetRenderTargets, 0, 0, 0)
	if err := checkHRESULT("IDXGISwapChain::ResizeBuffers", comCall(d.swapChain, swapChainResizeBuffers, 0, uintptr(width), uintptr(height), 0, swapChainAllowModeSwitch)); err != nil {
		return 0, err
	}
	return d.backBufferView()
}

func (d *comDevice) SetFullscreenState(fullscreen bool, mode displayMode) error {
	var current int32
	if err := checkHRESULT("IDXGISwapChain::GetFullscreenState", comCall(d.swapChain, swapChainGetFullscreenState, uintptr(unsafe.Pointer(&current)), 0)); err != nil {
		return err
	}
	if (current != 0) == fullscreen {
		return nil
	}

	if fullscreen {
		var output uintptr
		if err := checkHRESULT("IDXGISwapChain::GetContainingOutput", comCall(d.swapChain, swapChainGetContainingOutput, uintptr(unsafe.Pointer(&output)))); err != nil {
			return err
		}
		desired := modeDesc{Width: mode.Width, Height: mode.Height, Format: formatR8G8B8A8UNorm}
		if mode.RefreshRate > 0 {
			desired.RefreshRate = rational{Numerator: mode.RefreshRate, Denominator: 1}
		}
		var closest modeDesc
		err := checkHRESULT("IDXGIOutput::FindClosestMatchingMode", comCall(output, outputFindClosestMatchingMode, uintptr(unsafe.Pointer(&desired)), uintptr(unsafe.Pointer(&closest)), d.device))
		comCall(output, unknownRelease)
		if err != nil {
			return err
		}
		if err := checkHRESULT("IDXGISwapChain::ResizeTarget", comCall(d.swapChain, swapChainResizeTarget, uintptr(unsafe.Pointer(&closest)))); err != nil {
			return err
		}
	}
	return checkHRESULT("IDXGISwapChain::SetFullscreenState", comCall(d.swapChain, swapChainSetFullscreenState, boolArg(fullscreen), 0))
}

func (d *comDevice) DisplayModes() []common.Size2 {
	var output uintptr
	if comCall(d.swapChain, swapChainGetContainingOutput, uintptr(unsafe.Pointer(&output))) != 0 {
		return nil
	}
	defer comCall(output, unknownRelease)

	var count uint32
	if comCall(output, outputGetDisplayModeList, formatR8G8B8A8UNorm, 0, uintptr(unsafe.Pointer(&count)), 0) != 0 || count == 0 {
		return nil
	}
	modes := make([]modeDesc, count)
	if comCall(output, outputGetDisplayModeList, formatR8G8B8A8UNorm, 0, uintptr(unsafe.Pointer(&count)), uintptr(unsafe.Pointer(&modes[0]))) != 0 {
		return nil
	}

	seen := make(map[common.Size2]struct{}, count)
	sizes := make([]common.Size2, 0, count)
	for _, m := range modes[:count] {
		size := common.Size2{Width: float32(m.Width), Height: float32(m.Height)}
		if _, ok := seen[size]; ok {
			continue
		}
		seen[size] = struct{}{}
		sizes = append(sizes, size)
	}
	return sizes
}

func (d *comDevice) Present(syncInterval int) error {
	return checkHRESULT("IDXGISwapChain::Present", comCall(d.swapChain, swapChainPresent, uintptr(syncInterval), 0))
}

func (d *comDevice) ReadBackBuffer() ([]byte, int, int, int, error) {
	var backBuffer uintptr
	if err := checkHRESULT("IDXGISwapChain::GetBuffer", comCall(d.swapChain, swapChainGetBuffer, 0, uintptr(unsafe.Pointer(&iidTexture2D)), uintptr(unsafe.Pointer(&backBuffer)))); err != nil {
		return nil, 0, 0, 0, err
	}
	defer comCall(backBuffer, unknownRelease)

	var desc texture2DDesc
	comCall(backBuffer, texture2DGetDesc, uintptr(unsafe.Pointer(&desc)))

	source := backBuffer
	if desc.SampleDesc.Count > 1 {
		resolved := desc
		resolved.SampleDesc = sampleDesc{Count: 1}
		resolved.BindFlags = 0
		var resolveTex uintptr
		if err := checkHRESULT("ID3D11Device::CreateTexture2D", comCall(d.device, deviceCreateTexture2D, uintptr(unsafe.Pointer(&resolved)), 0, uintptr(unsafe.Pointer(&resolveTex)))); err != nil {
			return nil, 0, 0, 0, err
		}
		defer comCall(resolveTex, unknownRelease)
		comCall(d.context, contextResolveSubresource, resolveTex, 0, backBuffer, 0, uintptr(desc.Format))
		source = resolveTex
	}

	staging := desc
	staging.SampleDesc = sampleDesc{Count: 1}
	staging.Usage = usageStaging
	staging.BindFlags = 0
	staging.CPUAccessFlags = cpuAccessRead
	var stagingTex uintptr
	if err := checkHRESULT("ID3D11Device::CreateTexture2D", comCall(d.device, deviceCreateTexture2D, uintptr(unsafe.Pointer(&staging)), 0, uintptr(unsafe.Pointer(&stagingTex)))); err != nil {
		return nil, 0, 0, 0, err
	}
	defer comCall(stagingTex, unknownRelease)
	comCall(d.context, contextCopyResource, stagingTex, source)

	var mapped mappedSubresource
	if err := checkHRESULT("ID3D11DeviceContext::Map", comCall(d.context, contextMap, stagingTex, 0, mapRead, 0, uintptr(unsafe.Pointer(&mapped)))); err != nil {
		return nil, 0, 0, 0, err
	}
	defer comCall(d.context, contextUnmap, stagingTex, 0)

	width, height := int(desc.Width), int(desc.Height)
	rowBytes := width * 4
	data := make([]byte, rowBytes*height)
	src := unsafe.Slice((*byte)(unsafe.Pointer(mapped.Data)), int(mapped.RowPitch)*height)
	for y := 0; y < height; y++ {
		copy(data[y*rowBytes:(y+1)*rowBytes], src[y*int(mapped.RowPitch):])
	}
	return data, width, height, rowBytes, nil
}

func (d *comDevice) CreateSampler(filter uint32) (handle, error) {
	desc := samplerDesc{
		Filter:         filter,
		AddressU:       addressClamp,
		AddressV:       addressClamp,
		AddressW:       addressClamp,
		MaxAnisotropy:  1,
		ComparisonFunc: comparisonNever,
		MaxLOD:         math.MaxFloat32,
	}
	var state uintptr
	err := checkHRESULT("ID3D11Device::CreateSamplerState", comCall(d.device, deviceCreateSamplerState, uintptr(unsafe.Pointer(&desc)), uintptr(unsafe.Pointer(&state))))
	return handle(state), err
}

func (d *comDevice) CreateRasterizerState(scissor, multisample bool) (handle, error) {
	desc := rasterizerDesc{
		FillMode:          fillSolid,
		CullMode:          cullNone,
		DepthClipEnable:   1,
		ScissorEnable:     int32(boolArg(scissor)),
		MultisampleEnable: int32(boolArg(multisample)),
	}
	var state uintptr
	err := checkHRESULT("ID3D11Device::CreateRasterizerState", comCall(d.device, deviceCreateRasterizerState, uintptr(unsafe.Pointer(&desc)), uintptr(unsafe.Pointer(&state))))
	return handle(state), err
}

func (d *comDevice) CreateDepthStencilState() (handle, error) {
	op := stencilOpDesc{FailOp: stencilOpKeep, DepthFailOp: stencilOpKeep, PassOp: stencilOpKeep, Func: comparisonAlways}
	desc := depthStencilDesc{
		DepthWriteMask:   depthWriteMaskAll,
		DepthFunc:        comparisonLess,
		StencilReadMask:  0xff,
		StencilWriteMask: 0xff,
		FrontFace:        op,
		BackFace:         op,
	}
	var state uintptr
	err := checkHRESULT("ID3D11Device::CreateDepthStencilState", comCall(d.device, deviceCreateDepthStencilState, uintptr(unsafe.Pointer(&desc)), uintptr(unsafe.Pointer(&state))))
	return handle(state), err
}

func (d *comDevice) CreateTexture(width, height, levels, sampleCount uint32, renderTarget bool) (handle, handle, error) {
	desc := texture2DDesc{
		Width:      width,
		Height:     height,
		MipLevels:  levels,
		ArraySize:  1,
		Format:     formatR8G8B8A8UNorm,
		SampleDesc: sampleDesc{Count: max(sampleCount, 1)},
		Usage:      usageDefault,
		BindFlags:  bindShaderResource,
	}
	if renderTarget {
		desc.BindFlags |= bindRenderTarget
	}

	var tex uintptr
	if err := checkHRESULT("ID3D11Device::CreateTexture2D", comCall(d.device, deviceCreateTexture2D, uintptr(unsafe.Pointer(&desc)), 0, uintptr(unsafe.Pointer(&tex)))); err != nil {
		return 0, 0, err
	}
	var view uintptr
	if err := checkHRESULT("ID3D11Device::CreateShaderResourceView", comCall(d.device, deviceCreateShaderResourceView, tex, 0, uintptr(unsafe.Pointer(&view)))); err != nil {
		comCall(tex, unknownRelease)
		return 0, 0, err
	}
	return handle(tex), handle(view), nil
}

func (d *comDevice) UpdateTexture(texture handle, level, width, height uint32, data []byte) {
	comCall(d.context, contextUpdateSubresource, uintptr(texture), uintptr(level), 0, bytesPtr(data), uintptr(width*4), 0)
	runtime.KeepAlive(data)
}

func (d *comDevice) CreateRenderTargetView(texture handle) (handle, error) {
	var view uintptr
	err := checkHRESULT("ID3D11Device::CreateRenderTargetView", comCall(d.device, deviceCreateRenderTargetView, uintptr(texture), 0, uintptr(unsafe.Pointer(&view))))
	return handle(view), err
}

func (d *comDevice) CreateDepthStencilView(width, height, sampleCount uint32) (handle, error) {
	desc := texture2DDesc{
		Width:      width,
		Height:     height,
		MipLevels:  1,
		ArraySize:  1,
		Format:     formatD24UNormS8UInt,
		SampleDesc: sampleDesc{Count: max(sampleCount, 1)},
		Usage:      usageDefault,
		BindFlags:  bindDepthStencil,
	}
	var tex uintptr
	if err := checkHRESULT("ID3D11Device::CreateTexture2D", comCall(d.device, deviceCreateTexture2D, uintptr(unsafe.Pointer(&desc)), 0, uintptr(unsafe.Pointer(&tex)))); err != nil {
		return 0, err
	}
	// the view keeps its own reference to the texture
	defer comCall(tex, unknownRelease)

	var view uintptr
	err := checkHRESULT("ID3D11Device::CreateDepthStencilView", comCall(d.device, deviceCreateDepthStencilView, tex, 0, uintptr(unsafe.Pointer(&view))))
	return handle(view), err
}

func (d *comDevice) CompileShader(source []byte, entry, target string) ([]byte, error) {
	entryPtr, err := windows.BytePtrFromString(entry)
	if err != nil {
		return nil, err
	}
	targetPtr, err := windows.BytePtrFromString(target)
	if err != nil {
		return nil, err
	}

	var code, errBlob uintptr
	hr, _, _ := procD3DCompile.Call(
		bytesPtr(source),
		uintptr(len(source)),
		0,
		0,
		0,
		uintptr(unsafe.Pointer(entryPtr)),
		uintptr(unsafe.Pointer(targetPtr)),
		compileOptimizationLevel3,
		0,
		uintptr(unsafe.Pointer(&code)),
		uintptr(unsafe.Pointer(&errBlob)),
	)
	runtime.KeepAlive(source)
	if errBlob != 0 {
		defer comCall(errBlob, unknownRelease)
	}
	if int32(hr) < 0 {
		msg := ""
		if errBlob != 0 {
			msg = string(blobBytes(errBlob))
		}
		return nil, fmt.Errorf("D3DCompile %s %s failed: HRESULT 0x%08x: %s", target, entry, uint32(hr), msg)
	}
	defer comCall(code, unknownRelease)
	return blobBytes(code), nil
}

// blobBytes copies the content of an ID3DBlob.
func blobBytes(blob uintptr) []byte {
	ptr := comCall(blob, blobGetBufferPointer)
	size := comCall(blob, blobGetBufferSize)
	if ptr == 0 || size == 0 {
		return nil
	}
	return append([]byte(nil), unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size)...)
}

func (d *comDevice) CreateVertexShader(bytecode []byte) (handle, error) {
	var shader uintptr
	err := checkHRESULT("ID3D11Device::CreateVertexShader", comCall(d.device, deviceCreateVertexShader, bytesPtr(bytecode), uintptr(len(bytecode)), 0, uintptr(unsafe.Pointer(&shader))))
	runtime.KeepAlive(bytecode)
	return handle(shader), err
}

func (d *comDevice) CreatePixelShader(bytecode []byte) (handle, error) {
	var shader uintptr
	err := checkHRESULT("ID3D11Device::CreatePixelShader", comCall(d.device, deviceCreatePixelShader, bytesPtr(bytecode), uintptr(len(bytecode)), 0, uintptr(unsafe.Pointer(&shader))))
	runtime.KeepAlive(bytecode)
	return handle(shader), err
}

func (d *comDevice) CreateInputLayout(elements []inputElement, bytecode []byte) (handle, error) {
	if len(elements) == 0 {
		return 0, nil
	}
	descs := make([]inputElementDesc, len(elements))
	for i, e := range elements {
		name, err := windows.BytePtrFromString(e.Semantic)
		if err != nil {
			return 0, err
		}
		descs[i] = inputElementDesc{
			SemanticName:      name,
			SemanticIndex:     e.SemanticIndex,
			Format:            e.Format,
			AlignedByteOffset: e.Offset,
		}
	}

	var layout uintptr
	err := checkHRESULT("ID3D11Device::CreateInputLayout", comCall(d.device, deviceCreateInputLayout,
		uintptr(unsafe.Pointer(&descs[0])), uintptr(len(descs)), bytesPtr(bytecode), uintptr(len(bytecode)), uintptr(unsafe.Pointer(&layout))))
	runtime.KeepAlive(descs)
	runtime.KeepAlive(bytecode)
	return handle(layout), err
}

func (d *comDevice) CreateBuffer(bind uint32, data []byte, size uint32, dynamic bool) (handle, error) {
	desc := bufferDesc{ByteWidth: size, Usage: usageDefault, BindFlags: bind}
	if dynamic {
		desc.Usage = usageDynamic
		desc.CPUAccessFlags = cpuAccessWrite
	}

	var initial uintptr
	var sub subresourceData
	if len(data) > 0 {
		sub.SysMem = bytesPtr(data)
		initial = uintptr(unsafe.Pointer(&sub))
	}

	var buffer uintptr
	err := checkHRESULT("ID3D11Device::CreateBuffer", comCall(d.device, deviceCreateBuffer, uintptr(unsafe.Pointer(&desc)), initial, uintptr(unsafe.Pointer(&buffer))))
	runtime.KeepAlive(data)
	return handle(buffer), err
}

func (d *comDevice) UploadBuffer(buffer handle, data []byte) error {
	var mapped mappedSubresource
	if err := checkHRESULT("ID3D11DeviceContext::Map", comCall(d.context, contextMap, uintptr(buffer), 0, mapWriteDiscard, 0, uintptr(unsafe.Pointer(&mapped)))); err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(mapped.Data)), len(data)), data)
	comCall(d.context, contextUnmap, uintptr(buffer), 0)
	return nil
}

func (d *comDevice) CreateBlendState(b blendDesc) (handle, error) {
	var desc blendStateDesc
	desc.RenderTarget[0] = renderTargetBlendDesc{
		BlendEnable:           int32(boolArg(b.Enabled)),
		SrcBlend:              b.SrcColor,
		DestBlend:             b.DestColor,
		BlendOp:               b.ColorOp,
		SrcBlendAlpha:         b.SrcAlpha,
		DestBlendAlpha:        b.DestAlpha,
		BlendOpAlpha:          b.AlphaOp,
		RenderTargetWriteMask: colorWriteEnableAll,
	}
	var state uintptr
	err := checkHRESULT("ID3D11Device::CreateBlendState", comCall(d.device, deviceCreateBlendState, uintptr(unsafe.Pointer(&desc)), uintptr(unsafe.Pointer(&state))))
	return handle(state), err
}

func (d *comDevice) Release(h handle) {
	comCall(uintptr(h), unknownRelease)
}

func (d *comDevice) SetRenderTarget(view, depth handle) {
	views := [1]handle{view}
	count := uintptr(1)
	if view == 0 {
		count = 0
	}
	comCall(d.context, contextOMSetRenderTargets, count, uintptr(unsafe.Pointer(&views[0])), uintptr(depth))
}

func (d *comDevice) SetViewport(width, height float32) {
	vp := viewport{Width: width, Height: height, MaxDepth: 1}
	comCall(d.context, contextRSSetViewports, 1, uintptr(unsafe.Pointer(&vp)))
}

func (d *comDevice) ClearRenderTarget(view, depth handle, color [4]float32) {
	comCall(d.context, contextClearRenderTargetView, uintptr(view), uintptr(unsafe.Pointer(&color[0])))
	if depth != 0 {
		// the depth value is the fourth argument and travels in a float register
		comCall(d.context, contextClearDepthStencilView, uintptr(depth), clearDepth|clearStencil, uintptr(math.Float32bits(1)), 0)
	}
}

func (d *comDevice) SetRasterizerState(state handle) {
	comCall(d.context, contextRSSetState, uintptr(state))
}

func (d *comDevice) SetDepthStencilState(state handle) {
	comCall(d.context, contextOMSetDepthStencilState, uintptr(state), 0)
}

func (d *comDevice) SetScissorRect(left, top, right, bottom int32) {
	r := rect{Left: left, Top: top, Right: right, Bottom: bottom}
	comCall(d.context, contextRSSetScissorRects, 1, uintptr(unsafe.Pointer(&r)))
}

func (d *comDevice) SetShaders(vertex, pixel, layout handle) {
	comCall(d.context, contextVSSetShader, uintptr(vertex), 0, 0)
	comCall(d.context, contextPSSetShader, uintptr(pixel), 0, 0)
	comCall(d.context, contextIASetInputLayout, uintptr(layout))
}

func (d *comDevice) SetConstantBuffers(vertex, pixel handle) {
	comCall(d.context, contextVSSetConstantBuffers, 0, 1, uintptr(unsafe.Pointer(&vertex)))
	comCall(d.context, contextPSSetConstantBuffers, 0, 1, uintptr(unsafe.Pointer(&pixel)))
}

func (d *comDevice) SetBlendState(state handle) {
	comCall(d.context, contextOMSetBlendState, uintptr(state), 0, 0xffffffff)
}

func (d *comDevice) SetTextures(views, samplers []handle) {
	if len(views) == 0 {
		return
	}
	comCall(d.context, contextPSSetShaderResources, 0, uintptr(len(views)), uintptr(unsafe.Pointer(&views[0])))
	comCall(d.context, contextPSSetSamplers, 0, uintptr(len(samplers)), uintptr(unsafe.Pointer(&samplers[0])))
}

func (d *comDevice) SetBuffers(vertex handle, stride uint32, index handle, indexFormat uint32) {
	var offset uint32
	comCall(d.context, contextIASetVertexBuffers, 0, 1, uintptr(unsafe.Pointer(&vertex)), uintptr(unsafe.Pointer(&stride)), uintptr(unsafe.Pointer(&offset)))
	comCall(d.context, contextIASetIndexBuffer, uintptr(index), uintptr(indexFormat), 0)
}

func (d *comDevice) DrawIndexed(topology, count, start uint32) {
	comCall(d.context, contextIASetPrimitiveTopology, uintptr(topology))
	comCall(d.context, contextDrawIndexed, uintptr(count), uintptr(start), 0)
}
