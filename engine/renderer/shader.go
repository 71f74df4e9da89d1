package renderer

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Shader is a vertex + pixel program pair together with the layout of its per-draw constants.
// Its description is fixed at creation.
type Shader struct {
	resource

	desc ShaderDesc

	// render goroutine only
	object ShaderObject
	synced bool
}

var _ Resource = &Shader{}

func newShader(owner *renderer, desc ShaderDesc) *Shader {
	s := &Shader{desc: desc}
	s.owner = owner
	return s
}

// VertexAttributes returns the vertex layout the shader expects.
func (s *Shader) VertexAttributes() VertexAttributes { return s.desc.VertexAttributes }

// PixelShaderConstantInfo returns the pixel stage constant slots.
func (s *Shader) PixelShaderConstantInfo() []ConstantInfo { return s.desc.PixelShaderConstants }

// VertexShaderConstantInfo returns the vertex stage constant slots.
func (s *Shader) VertexShaderConstantInfo() []ConstantInfo { return s.desc.VertexShaderConstants }

// Desc returns the shader description.
func (s *Shader) Desc() ShaderDesc { return s.desc }

// Object returns the backend object. Render goroutine only.
func (s *Shader) Object() ShaderObject { return s.object }

func (s *Shader) Free() {
	s.mu.Lock()
	s.freeRequested = true
	s.mu.Unlock()
	s.ready.Store(false)
	s.owner.markDirty(s)
}

func (s *Shader) update() error {
	s.mu.Lock()
	freeRequested := s.freeRequested
	s.freeRequested = false
	s.mu.Unlock()

	if freeRequested {
		s.release()
		return nil
	}
	if s.synced {
		return nil
	}
	if s.object == nil {
		s.object = s.owner.backend.NewShader()
	}
	if err := s.object.Init(s.desc); err != nil {
		return fmt.Errorf("failed to initialize shader: %w", err)
	}
	s.synced = true
	s.ready.Store(true)
	return nil
}

func (s *Shader) release() {
	if s.object != nil {
		s.object.Free()
		s.object = nil
	}
	s.synced = false
	s.ready.Store(false)
}

// ValidateConstants checks that no more constants are supplied than declared
// and that each supplied constant fits its declared size.
//
// Parameters:
//   - infos: the declared constant slots of one stage
//   - values: the constants supplied by a draw command for that stage
//
// Returns:
//   - error: an ErrInvalidConstants wrapped error on mismatch
func ValidateConstants(infos []ConstantInfo, values [][]float32) error {
	if len(values) > len(infos) {
		return fmt.Errorf("%d constants supplied, %d declared: %w", len(values), len(infos), ErrInvalidConstants)
	}
	for i, v := range values {
		if size := uint32(len(v) * 4); size > infos[i].Size {
			return fmt.Errorf("constant %q is %d bytes, declared %d: %w", infos[i].Name, size, infos[i].Size, ErrInvalidConstants)
		}
	}
	return nil
}

// ConstantOffsets returns the byte offset of every declared constant and the total buffer size,
// with each slot starting on the given alignment (0 or 1 packs tightly).
func ConstantOffsets(infos []ConstantInfo, alignment uint32) ([]uint32, uint32) {
	offsets := make([]uint32, len(infos))
	offset := uint32(0)
	for i, info := range infos {
		offset = alignUp(offset, alignment)
		offsets[i] = offset
		offset += info.Size
	}
	return offsets, alignUp(offset, alignment)
}

// PackConstants validates the supplied constants and writes them little-endian into a buffer laid out by ConstantOffsets.
// Slots without a supplied value, and the tail of short values, are zero.
//
// Parameters:
//   - infos: the declared constant slots of one stage
//   - values: the supplied constants
//   - alignment: the per-slot alignment in bytes
//
// Returns:
//   - []byte: the packed constant buffer
//   - error: an ErrInvalidConstants wrapped error on mismatch
func PackConstants(infos []ConstantInfo, values [][]float32, alignment uint32) ([]byte, error) {
	if err := ValidateConstants(infos, values); err != nil {
		return nil, err
	}
	offsets, total := ConstantOffsets(infos, alignment)
	buf := make([]byte, total)
	for i, v := range values {
		at := offsets[i]
		for j, f := range v {
			binary.LittleEndian.PutUint32(buf[at+uint32(j)*4:], math.Float32bits(f))
		}
	}
	return buf, nil
}

func alignUp(v, alignment uint32) uint32 {
	if alignment <= 1 {
		return v
	}
	return (v + alignment - 1) / alignment * alignment
}
