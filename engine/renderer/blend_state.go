package renderer

import "fmt"

// BlendState describes how pixel shader output is combined with the render target.
type BlendState struct {
	resource

	desc BlendStateDesc

	// render goroutine only
	object BlendStateObject
	synced bool
}

var _ Resource = &BlendState{}

func newBlendState(owner *renderer, desc BlendStateDesc) *BlendState {
	b := &BlendState{desc: desc}
	b.owner = owner
	return b
}

// Desc returns the blend state description.
func (b *BlendState) Desc() BlendStateDesc { return b.desc }

// Object returns the backend object. Render goroutine only.
func (b *BlendState) Object() BlendStateObject { return b.object }

func (b *BlendState) Free() {
	b.mu.Lock()
	b.freeRequested = true
	b.mu.Unlock()
	b.ready.Store(false)
	b.owner.markDirty(b)
}

func (b *BlendState) update() error {
	b.mu.Lock()
	freeRequested := b.freeRequested
	b.freeRequested = false
	b.mu.Unlock()

	if freeRequested {
		b.release()
		return nil
	}
	if b.synced {
		return nil
	}
	if b.object == nil {
		b.object = b.owner.backend.NewBlendState()
	}
	if err := b.object.Init(b.desc); err != nil {
		return fmt.Errorf("failed to initialize blend state: %w", err)
	}
	b.synced = true
	b.ready.Store(true)
	return nil
}

func (b *BlendState) release() {
	if b.object != nil {
		b.object.Free()
		b.object = nil
	}
	b.synced = false
	b.ready.Store(false)
}
