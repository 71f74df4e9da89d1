package wgpu

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

func init() {
	renderer.RegisterBackend(renderer.BackendWGPU, func() renderer.Backend {
		return newBackend(&nativeDevice{objects: make(map[handle]any)})
	})
}

var (
	errNoFrame    = errors.New("no frame has been presented")
	errFrameOpen  = errors.New("previous frame not yet presented")
	errMapFailure = errors.New("failed to map readback buffer")
)

// nativeTexture is a texture with its default view.
type nativeTexture struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

func (t *nativeTexture) Release() {
	if t.view != nil {
		t.view.Release()
	}
	if t.texture != nil {
		t.texture.Release()
	}
}

type releaser interface {
	Release()
}

// nativeDevice implements device on cogentcore/webgpu. Handles index the objects map.
type nativeDevice struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface
	config   wgpu.SurfaceConfiguration
	samples  uint32

	uniformLayout  *wgpu.BindGroupLayout
	textureLayout  *wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	msaa           *nativeTexture

	objects map[handle]any
	next    handle

	frameTexture *wgpu.Texture
	frameView    *wgpu.TextureView
	encoder      *wgpu.CommandEncoder
	pass         *wgpu.RenderPassEncoder

	// last holds a copy of the last presented surface texture for ReadFrame
	last *nativeTexture
}

func (d *nativeDevice) add(obj any) handle {
	d.next++
	d.objects[d.next] = obj
	return d.next
}

func (d *nativeDevice) texture(h handle) *nativeTexture {
	t, _ := d.objects[h].(*nativeTexture)
	return t
}

func (d *nativeDevice) buffer(h handle) *wgpu.Buffer {
	b, _ := d.objects[h].(*wgpu.Buffer)
	return b
}

func (d *nativeDevice) Init(desc *wgpu.SurfaceDescriptor, width, height, sampleCount uint32, vsync bool) (wgpu.TextureFormat, error) {
	d.instance = wgpu.CreateInstance(nil)
	d.surface = d.instance.CreateSurface(desc)

	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
		CompatibleSurface: d.surface,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to request adapter: %w", err)
	}
	d.adapter = adapter

	dev, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "Renderer Device"})
	if err != nil {
		return 0, fmt.Errorf("failed to request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()
	d.samples = sampleCount

	capabilities := d.surface.GetCapabilities(adapter)
	if len(capabilities.Formats) == 0 {
		return 0, errors.New("surface reports no formats")
	}
	// prefer a linear 8 bit format so colors are written as given
	format := capabilities.Formats[0]
	for _, f := range capabilities.Formats {
		if f == wgpu.TextureFormatBGRA8Unorm || f == wgpu.TextureFormatRGBA8Unorm {
			format = f
			break
		}
	}
	d.config = wgpu.SurfaceConfiguration{
		Usage:     wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
		Format:    format,
		AlphaMode: capabilities.AlphaModes[0],
	}

	if err := d.createLayouts(); err != nil {
		return 0, err
	}
	if err := d.Configure(width, height, vsync); err != nil {
		return 0, err
	}
	return format, nil
}

// createLayouts builds the bind group and pipeline layouts every pipeline shares.
func (d *nativeDevice) createLayouts() error {
	stages := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	uniform := func(binding uint32) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: stages,
			Buffer: wgpu.BufferBindingLayout{
				Type:             wgpu.BufferBindingTypeUniform,
				HasDynamicOffset: true,
				MinBindingSize:   uniformBindingSize,
			},
		}
	}
	var err error
	d.uniformLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "Constants Layout",
		Entries: []wgpu.BindGroupLayoutEntry{uniform(0), uniform(1)},
	})
	if err != nil {
		return fmt.Errorf("failed to create constants layout: %w", err)
	}

	entries := make([]wgpu.BindGroupLayoutEntry, 0, 2*renderer.TextureLayers)
	for layer := range uint32(renderer.TextureLayers) {
		entries = append(entries,
			wgpu.BindGroupLayoutEntry{
				Binding:    2 * layer,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			wgpu.BindGroupLayoutEntry{
				Binding:    2*layer + 1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
			},
		)
	}
	d.textureLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "Textures Layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("failed to create textures layout: %w", err)
	}

	d.pipelineLayout, err = d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Renderer Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{d.uniformLayout, d.textureLayout},
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline layout: %w", err)
	}
	return nil
}

func (d *nativeDevice) Close() {
	if d.device == nil {
		return
	}
	d.device.Poll(true, nil)
	for h, obj := range d.objects {
		if r, ok := obj.(releaser); ok {
			r.Release()
		}
		delete(d.objects, h)
	}
	for _, t := range []*nativeTexture{d.msaa, d.last} {
		if t != nil {
			t.Release()
		}
	}
	d.msaa, d.last = nil, nil
	d.pipelineLayout.Release()
	d.textureLayout.Release()
	d.uniformLayout.Release()
	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.surface.Release()
	d.instance.Release()
	d.device = nil
}

func (d *nativeDevice) Configure(width, height uint32, vsync bool) error {
	if width == 0 || height == 0 {
		return nil
	}
	d.config.Width, d.config.Height = width, height
	d.config.PresentMode = wgpu.PresentModeImmediate
	if vsync {
		d.config.PresentMode = wgpu.PresentModeFifo
	}
	d.surface.Configure(d.adapter, d.device, &d.config)

	if d.msaa != nil {
		d.msaa.Release()
		d.msaa = nil
	}
	if d.samples > 1 {
		msaa, err := d.newTexture(width, height, 1, d.samples, d.config.Format, wgpu.TextureUsageRenderAttachment, "MSAA Texture")
		if err != nil {
			return err
		}
		d.msaa = msaa
	}
	return nil
}

func (d *nativeDevice) Adapter() string {
	return adapterLabel(d.adapter.GetInfo())
}

// adapterLabel names an adapter and the graphics API it runs on, for logging.
func adapterLabel(info wgpu.AdapterInfo) string {
	return fmt.Sprintf("%s (%s)", info.Name, info.BackendType)
}

func (d *nativeDevice) newTexture(width, height, levels, samples uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage, label string) (*nativeTexture, error) {
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: levels,
		SampleCount:   samples,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &nativeTexture{texture: tex, view: view}, nil
}

func (d *nativeDevice) BeginFrame() error {
	if d.frameTexture != nil {
		return errFrameOpen
	}
	surfaceTexture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}
	d.frameTexture, d.frameView, d.encoder = surfaceTexture, view, encoder
	return nil
}

func (d *nativeDevice) endPass() {
	if d.pass == nil {
		return
	}
	d.pass.End()
	d.pass.Release()
	d.pass = nil
}

func (d *nativeDevice) BeginPass(desc passDesc) {
	d.endPass()

	color := wgpu.RenderPassColorAttachment{
		LoadOp:     desc.LoadOp,
		StoreOp:    wgpu.StoreOpStore,
		ClearValue: desc.ClearColor,
	}
	var depth *wgpu.RenderPassDepthStencilAttachment
	if desc.Color != 0 {
		color.View = d.texture(desc.Color).view
		if desc.Depth != 0 {
			depth = &wgpu.RenderPassDepthStencilAttachment{
				View:            d.texture(desc.Depth).view,
				DepthLoadOp:     desc.LoadOp,
				DepthStoreOp:    wgpu.StoreOpStore,
				DepthClearValue: 1.0,
			}
		}
	} else if d.msaa != nil {
		// the multisample texture is stored so later passes can load it
		color.View, color.ResolveTarget = d.msaa.view, d.frameView
	} else {
		color.View = d.frameView
	}
	d.pass = d.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments:       []wgpu.RenderPassColorAttachment{color},
		DepthStencilAttachment: depth,
	})
}

func (d *nativeDevice) EndFrame() error {
	if d.frameTexture == nil {
		return nil
	}
	d.endPass()
	defer d.releaseFrame()

	width, height := d.frameTexture.GetWidth(), d.frameTexture.GetHeight()
	if d.last == nil || d.last.texture.GetWidth() != width || d.last.texture.GetHeight() != height {
		if d.last != nil {
			d.last.Release()
		}
		last, err := d.newTexture(width, height, 1, 1, d.config.Format, wgpu.TextureUsageCopyDst|wgpu.TextureUsageCopySrc, "Last Frame")
		if err != nil {
			d.last = nil
			return fmt.Errorf("failed to create frame copy: %w", err)
		}
		d.last = last
	}
	d.encoder.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{Texture: d.frameTexture, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyTexture{Texture: d.last.texture, Aspect: wgpu.TextureAspectAll},
		&wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)

	commandBuffer, err := d.encoder.Finish(nil)
	if err != nil {
		return err
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()
	d.surface.Present()
	return nil
}

func (d *nativeDevice) releaseFrame() {
	if d.encoder != nil {
		d.encoder.Release()
	}
	if d.frameView != nil {
		d.frameView.Release()
	}
	if d.frameTexture != nil {
		d.frameTexture.Release()
	}
	d.encoder, d.frameView, d.frameTexture = nil, nil, nil
}

func (d *nativeDevice) ReadFrame() ([]byte, int, int, int, error) {
	if d.last == nil {
		return nil, 0, 0, 0, errNoFrame
	}
	width, height := d.last.texture.GetWidth(), d.last.texture.GetHeight()
	align := uint32(wgpu.CopyBytesPerRowAlignment)
	pitch := (width*4 + align - 1) / align * align
	size := uint64(pitch) * uint64(height)

	readback, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Frame Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, 0, 0, 0, err
	}
	defer readback.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{Texture: d.last.texture, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyBuffer{
			Buffer: readback,
			Layout: wgpu.TextureDataLayout{BytesPerRow: pitch, RowsPerImage: height},
		},
		&wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)
	commandBuffer, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return nil, 0, 0, 0, err
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()

	var status wgpu.BufferMapAsyncStatus
	if err := readback.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, 0, 0, 0, err
	}
	d.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, 0, 0, 0, errMapFailure
	}
	data := make([]byte, size)
	copy(data, readback.GetMappedRange(0, uint(size)))
	readback.Unmap()
	return data, int(width), int(height), int(pitch), nil
}

func (d *nativeDevice) CreateShaderModule(label, code string) (handle, error) {
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return 0, err
	}
	return d.add(module), nil
}

func (d *nativeDevice) CreatePipeline(desc pipelineDesc) (handle, error) {
	vertexModule, _ := d.objects[desc.VertexModule].(*wgpu.ShaderModule)
	fragmentModule, _ := d.objects[desc.FragmentModule].(*wgpu.ShaderModule)
	if vertexModule == nil || fragmentModule == nil {
		return 0, renderer.ErrNotInitialized
	}

	var depth *wgpu.DepthStencilState
	if desc.Depth {
		depth = &wgpu.DepthStencilState{
			Format:       depthFormat,
			DepthCompare: wgpu.CompareFunctionAlways,
			StencilFront: wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:  wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}
	pipeline, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Render Pipeline",
		Layout: d.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vertexModule,
			EntryPoint: desc.VertexEntry,
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: desc.Stride,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes:  desc.Attributes,
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     fragmentModule,
			EntryPoint: desc.FragmentEntry,
			Targets: []wgpu.ColorTargetState{{
				Format:    desc.ColorFormat,
				Blend:     desc.Blend,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:         desc.Topology,
			StripIndexFormat: desc.StripIndexFormat,
			FrontFace:        wgpu.FrontFaceCCW,
			CullMode:         wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: desc.SampleCount,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depth,
	})
	if err != nil {
		return 0, err
	}
	return d.add(pipeline), nil
}

func (d *nativeDevice) CreateSampler(filter wgpu.FilterMode, mipFilter wgpu.MipmapFilterMode) (handle, error) {
	sampler, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Texture Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     filter,
		MinFilter:     filter,
		MipmapFilter:  mipFilter,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return 0, err
	}
	return d.add(sampler), nil
}

func (d *nativeDevice) CreateTexture(width, height, levels uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage) (handle, error) {
	tex, err := d.newTexture(width, height, levels, 1, format, usage, "Texture")
	if err != nil {
		return 0, err
	}
	return d.add(tex), nil
}

func (d *nativeDevice) WriteTexture(h handle, level, width, height uint32, data []byte) {
	t := d.texture(h)
	if t == nil {
		return
	}
	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.texture,
			MipLevel: level,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  width * 4,
			RowsPerImage: height,
		},
		&wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
	)
}

func (d *nativeDevice) CreateBuffer(label string, usage wgpu.BufferUsage, size uint64) (handle, error) {
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return 0, err
	}
	return d.add(buf), nil
}

func (d *nativeDevice) WriteBuffer(h handle, offset uint64, data []byte) {
	if buf := d.buffer(h); buf != nil {
		d.queue.WriteBuffer(buf, offset, data)
	}
}

func (d *nativeDevice) CreateUniformBindGroup(h handle) (handle, error) {
	buf := d.buffer(h)
	if buf == nil {
		return 0, renderer.ErrNotInitialized
	}
	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Constants",
		Layout: d.uniformLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: buf, Size: uniformBindingSize},
			{Binding: 1, Buffer: buf, Size: uniformBindingSize},
		},
	})
	if err != nil {
		return 0, err
	}
	return d.add(group), nil
}

func (d *nativeDevice) CreateTextureBindGroup(textures, samplers []handle) (handle, error) {
	entries := make([]wgpu.BindGroupEntry, 0, 2*len(textures))
	for layer := range textures {
		t := d.texture(textures[layer])
		sampler, _ := d.objects[samplers[layer]].(*wgpu.Sampler)
		if t == nil || sampler == nil {
			return 0, renderer.ErrNotInitialized
		}
		entries = append(entries,
			wgpu.BindGroupEntry{Binding: uint32(2 * layer), TextureView: t.view},
			wgpu.BindGroupEntry{Binding: uint32(2*layer + 1), Sampler: sampler},
		)
	}
	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "Textures",
		Layout:  d.textureLayout,
		Entries: entries,
	})
	if err != nil {
		return 0, err
	}
	return d.add(group), nil
}

func (d *nativeDevice) Release(h handle) {
	obj, ok := d.objects[h]
	if !ok {
		return
	}
	delete(d.objects, h)
	if r, ok := obj.(releaser); ok {
		r.Release()
	}
}

func (d *nativeDevice) SetViewport(width, height float32) {
	d.pass.SetViewport(0, 0, width, height, 0, 1)
}

func (d *nativeDevice) SetScissor(x, y, width, height uint32) {
	d.pass.SetScissorRect(x, y, width, height)
}

func (d *nativeDevice) SetPipeline(h handle) {
	if p, ok := d.objects[h].(*wgpu.RenderPipeline); ok {
		d.pass.SetPipeline(p)
	}
}

func (d *nativeDevice) SetBindGroup(group uint32, h handle, offsets []uint32) {
	if g, ok := d.objects[h].(*wgpu.BindGroup); ok {
		d.pass.SetBindGroup(group, g, offsets)
	}
}

func (d *nativeDevice) SetVertexBuffer(h handle) {
	if buf := d.buffer(h); buf != nil {
		d.pass.SetVertexBuffer(0, buf, 0, wgpu.WholeSize)
	}
}

func (d *nativeDevice) SetIndexBuffer(h handle, format wgpu.IndexFormat) {
	if buf := d.buffer(h); buf != nil {
		d.pass.SetIndexBuffer(buf, format, 0, wgpu.WholeSize)
	}
}

func (d *nativeDevice) DrawIndexed(count, firstIndex uint32) {
	d.pass.DrawIndexed(count, 1, firstIndex, 0, 0)
}
