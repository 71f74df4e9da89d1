package renderer

import (
	"sync"
	"sync/atomic"
)

// Resource is a GPU object created by a Renderer.
//
// Resources are shared between the goroutine that creates and fills them and the render goroutine.
// CPU-side data is staged under a per-resource lock and handed over through the renderer's update
// queue; the backend object is only created, written and released on the render goroutine during
// Present, so it is never accessed concurrently.
type Resource interface {
	// Ready reports whether the backend object has been constructed.
	Ready() bool

	// Free schedules the backend object for release on the render goroutine and resets Ready.
	// Textures and mesh buffers may be filled again afterwards, which re-creates the backend object.
	// Shaders, render targets and blend states are fixed at creation and stay unusable once freed.
	Free()
}

// updatable is a resource whose backend object can be synchronized with its staged data.
type updatable interface {
	// update runs on the render goroutine.
	update() error
	// release frees the backend object immediately; render goroutine only.
	release()
}

// resource holds the state shared by every resource type.
type resource struct {
	owner *renderer

	// mu guards the staged CPU-side data of the concrete resource.
	mu sync.Mutex

	ready atomic.Bool

	// freeRequested is set by Free and consumed by the next update.
	freeRequested bool
}

func (r *resource) Ready() bool {
	return r.ready.Load()
}

// updateQueue is the set of resources whose backend objects are stale.
// A resource is queued at most once until the next drain.
type updateQueue struct {
	mu      sync.Mutex
	pending []updatable
	set     map[updatable]struct{}
}

func newUpdateQueue() *updateQueue {
	return &updateQueue{set: make(map[updatable]struct{})}
}

// mark queues r for synchronization before the next frame.
func (q *updateQueue) mark(r updatable) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.set[r]; ok {
		return
	}
	q.set[r] = struct{}{}
	q.pending = append(q.pending, r)
}

// drain removes and returns every queued resource in the order they were marked.
// No device work happens under the lock.
func (q *updateQueue) drain() []updatable {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	clear(q.set)
	return out
}

// len returns the number of queued resources.
func (q *updateQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
