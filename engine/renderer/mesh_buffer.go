package renderer

import (
	"fmt"
)

// MeshBuffer holds an index buffer and an interleaved vertex buffer.
type MeshBuffer struct {
	resource

	desc MeshBufferDesc

	// render goroutine only
	object MeshBufferObject
}

var _ Resource = &MeshBuffer{}

func newMeshBuffer(owner *renderer) *MeshBuffer {
	m := &MeshBuffer{desc: MeshBufferDesc{IndexSize: 2, DynamicIndices: true, DynamicVertices: true}}
	m.owner = owner
	return m
}

// IndexSize returns the size of one index in bytes, 2 or 4.
func (m *MeshBuffer) IndexSize() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.desc.IndexSize
}

// IndexCount returns the number of indices.
func (m *MeshBuffer) IndexCount() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.desc.IndexCount
}

// VertexAttributes returns the layout of the vertices.
func (m *MeshBuffer) VertexAttributes() VertexAttributes {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.desc.VertexAttributes
}

// VertexCount returns the number of vertices.
func (m *MeshBuffer) VertexCount() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.desc.VertexCount
}

// Object returns the backend object. Render goroutine only.
func (m *MeshBuffer) Object() MeshBufferObject { return m.object }

func (m *MeshBuffer) setData(desc MeshBufferDesc) error {
	if desc.IndexSize != 2 && desc.IndexSize != 4 {
		return fmt.Errorf("index size %d: %w", desc.IndexSize, ErrInvalidIndexSize)
	}
	if len(desc.Indices) < desc.IndexBytes() {
		return fmt.Errorf("index data holds %d bytes, need %d: %w", len(desc.Indices), desc.IndexBytes(), ErrInvalidData)
	}
	if len(desc.Vertices) < desc.VertexBytes() {
		return fmt.Errorf("vertex data holds %d bytes, need %d: %w", len(desc.Vertices), desc.VertexBytes(), ErrInvalidData)
	}
	desc.Indices = append([]byte(nil), desc.Indices[:desc.IndexBytes()]...)
	desc.Vertices = append([]byte(nil), desc.Vertices[:desc.VertexBytes()]...)

	m.mu.Lock()
	m.desc = desc
	m.freeRequested = false
	m.mu.Unlock()

	m.owner.markDirty(m)
	return nil
}

// UploadIndices replaces the index data.
//
// Parameters:
//   - indices: little-endian index data, at least indexSize*indexCount bytes
//   - indexSize: 2 or 4
//   - indexCount: the number of indices
//
// Returns:
//   - error: ErrNotDynamic for static index data, ErrInvalidIndexSize or ErrInvalidData for bad input
func (m *MeshBuffer) UploadIndices(indices []byte, indexSize, indexCount uint32) error {
	m.mu.Lock()
	desc := m.desc
	m.mu.Unlock()

	if !desc.DynamicIndices {
		return ErrNotDynamic
	}
	desc.Indices = indices
	desc.IndexSize = indexSize
	desc.IndexCount = indexCount
	return m.setData(desc)
}

// UploadVertices replaces the vertex data.
//
// Parameters:
//   - vertices: interleaved vertex data laid out by attrs
//   - attrs: the vertex attributes present in the data
//   - vertexCount: the number of vertices
//
// Returns:
//   - error: ErrNotDynamic for static vertex data, ErrInvalidData for short data
func (m *MeshBuffer) UploadVertices(vertices []byte, attrs VertexAttributes, vertexCount uint32) error {
	m.mu.Lock()
	desc := m.desc
	m.mu.Unlock()

	if !desc.DynamicVertices {
		return ErrNotDynamic
	}
	desc.Vertices = vertices
	desc.VertexAttributes = attrs
	desc.VertexCount = vertexCount
	return m.setData(desc)
}

func (m *MeshBuffer) Free() {
	m.mu.Lock()
	m.freeRequested = true
	m.mu.Unlock()
	m.ready.Store(false)
	m.owner.markDirty(m)
}

func (m *MeshBuffer) update() error {
	m.mu.Lock()
	freeRequested := m.freeRequested
	m.freeRequested = false
	desc := m.desc
	m.mu.Unlock()

	if freeRequested {
		m.release()
		return nil
	}
	if m.object == nil {
		m.object = m.owner.backend.NewMeshBuffer()
	}
	if err := m.object.Init(desc); err != nil {
		return fmt.Errorf("failed to initialize mesh buffer: %w", err)
	}
	m.ready.Store(true)
	return nil
}

func (m *MeshBuffer) release() {
	if m.object != nil {
		m.object.Free()
		m.object = nil
	}
	m.ready.Store(false)
}
