package renderer

import (
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/cache"
)

// rendererBuilder collects configuration before the backend is created.
type rendererBuilder struct {
	backendName string
	backend     Backend
	cfg         Config
	assets      cache.Cache
	pool        worker.DynamicWorkerPool
}

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*rendererBuilder)

// WithBackend selects the backend by registry name. BackendDefault picks the best backend for the platform.
//
// Parameters:
//   - name: a registered backend name or BackendDefault
//
// Returns:
//   - RendererBuilderOption: a function that applies the backend option to a renderer
func WithBackend(name string) RendererBuilderOption {
	return func(b *rendererBuilder) {
		b.backendName = name
	}
}

// WithBackendInstance uses an already constructed backend instead of looking one up in the registry.
//
// Parameters:
//   - backend: the backend to drive
//
// Returns:
//   - RendererBuilderOption: a function that applies the backend option to a renderer
func WithBackendInstance(backend Backend) RendererBuilderOption {
	return func(b *rendererBuilder) {
		b.backend = backend
	}
}

// WithSampleCount sets the multisample count. Values below 1 are treated as 1.
//
// Parameters:
//   - count: the MSAA sample count
//
// Returns:
//   - RendererBuilderOption: a function that applies the sample count option to a renderer
func WithSampleCount(count uint32) RendererBuilderOption {
	return func(b *rendererBuilder) {
		b.cfg.SampleCount = max(count, 1)
	}
}

// WithTextureFiltering sets the default texture filter.
//
// Parameters:
//   - filtering: the filter mode
//
// Returns:
//   - RendererBuilderOption: a function that applies the filtering option to a renderer
func WithTextureFiltering(filtering TextureFiltering) RendererBuilderOption {
	return func(b *rendererBuilder) {
		b.cfg.TextureFiltering = filtering
	}
}

// WithTargetFPS sets the frame rate used to pick a fullscreen refresh rate.
//
// Parameters:
//   - fps: the target frame rate; 0 leaves it unspecified
//
// Returns:
//   - RendererBuilderOption: a function that applies the target FPS option to a renderer
func WithTargetFPS(fps float32) RendererBuilderOption {
	return func(b *rendererBuilder) {
		b.cfg.TargetFPS = fps
	}
}

// WithVerticalSync enables or disables waiting for vertical blank on present. It is enabled by default.
//
// Parameters:
//   - enabled: true to synchronize presents with the display
//
// Returns:
//   - RendererBuilderOption: a function that applies the vertical sync option to a renderer
func WithVerticalSync(enabled bool) RendererBuilderOption {
	return func(b *rendererBuilder) {
		b.cfg.VerticalSync = enabled
	}
}

// WithClearColor sets the back buffer clear color.
//
// Parameters:
//   - color: the clear color
//
// Returns:
//   - RendererBuilderOption: a function that applies the clear color option to a renderer
func WithClearColor(color common.Color) RendererBuilderOption {
	return func(b *rendererBuilder) {
		b.cfg.ClearColor = color
	}
}

// WithSize sets the back buffer size used until Init reads the surface size.
//
// Parameters:
//   - size: the size in pixels
//
// Returns:
//   - RendererBuilderOption: a function that applies the size option to a renderer
func WithSize(size common.Size2) RendererBuilderOption {
	return func(b *rendererBuilder) {
		b.cfg.Size = size
	}
}

// WithAssetCache shares an existing asset cache with the renderer instead of creating a new one.
//
// Parameters:
//   - c: the cache that receives the built-in resources
//
// Returns:
//   - RendererBuilderOption: a function that applies the cache option to a renderer
func WithAssetCache(c cache.Cache) RendererBuilderOption {
	return func(b *rendererBuilder) {
		b.assets = c
	}
}

// WithMipmapWorkers spreads mipmap generation of large textures over a pool of the given size.
// Without this option mip levels are generated on the uploading goroutine.
//
// Parameters:
//   - workers: the maximum number of pool workers; values below 2 keep generation on the caller
//
// Returns:
//   - RendererBuilderOption: a function that applies the worker option to a renderer
func WithMipmapWorkers(workers int) RendererBuilderOption {
	return func(b *rendererBuilder) {
		if workers < 2 {
			b.pool = nil
			return
		}
		b.pool = worker.NewDynamicWorkerPool(workers, 64, 1*time.Second)
	}
}
