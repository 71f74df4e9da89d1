package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-gfx/common"
)

// DrawCommand is one indexed draw together with the full pipeline state it needs.
type DrawCommand struct {
	MeshBuffer *MeshBuffer
	// IndexCount is the number of indices drawn; 0 draws from StartIndex to the end of the buffer.
	IndexCount uint32
	DrawMode   DrawMode
	StartIndex uint32

	Shader                *Shader
	PixelShaderConstants  [][]float32
	VertexShaderConstants [][]float32

	// BlendState may be nil, which disables blending.
	BlendState *BlendState
	Textures   [TextureLayers]*Texture
	// RenderTarget may be nil, which targets the back buffer.
	RenderTarget *RenderTarget

	ScissorTest      bool
	ScissorRectangle common.Rectangle
}

// validateDrawCommand checks cmd against its shader and mesh buffer and resolves a zero IndexCount.
// The constants are copied so later changes by the caller do not reach the queued command.
func validateDrawCommand(cmd DrawCommand) (DrawCommand, error) {
	if cmd.MeshBuffer == nil {
		return cmd, ErrNoMeshBuffer
	}
	if cmd.Shader == nil {
		return cmd, ErrNoShader
	}
	if cmd.DrawMode < DrawModePointList || cmd.DrawMode > DrawModeTriangleStrip {
		return cmd, fmt.Errorf("draw mode %d: %w", cmd.DrawMode, ErrInvalidDrawMode)
	}

	shaderAttrs := cmd.Shader.VertexAttributes()
	meshAttrs := cmd.MeshBuffer.VertexAttributes()
	if shaderAttrs != meshAttrs {
		return cmd, fmt.Errorf("shader 0x%x, mesh buffer 0x%x: %w", uint32(shaderAttrs), uint32(meshAttrs), ErrAttributeMismatch)
	}

	total := cmd.MeshBuffer.IndexCount()
	if cmd.StartIndex > total {
		return cmd, fmt.Errorf("start index %d of %d: %w", cmd.StartIndex, total, ErrIndexCountExceeded)
	}
	if cmd.IndexCount == 0 {
		cmd.IndexCount = total - cmd.StartIndex
	}
	if uint64(cmd.StartIndex)+uint64(cmd.IndexCount) > uint64(total) {
		return cmd, fmt.Errorf("indices %d+%d of %d: %w", cmd.StartIndex, cmd.IndexCount, total, ErrIndexCountExceeded)
	}

	if err := ValidateConstants(cmd.Shader.PixelShaderConstantInfo(), cmd.PixelShaderConstants); err != nil {
		return cmd, fmt.Errorf("pixel shader: %w", err)
	}
	if err := ValidateConstants(cmd.Shader.VertexShaderConstantInfo(), cmd.VertexShaderConstants); err != nil {
		return cmd, fmt.Errorf("vertex shader: %w", err)
	}

	cmd.PixelShaderConstants = copyConstants(cmd.PixelShaderConstants)
	cmd.VertexShaderConstants = copyConstants(cmd.VertexShaderConstants)
	return cmd, nil
}

func copyConstants(values [][]float32) [][]float32 {
	if values == nil {
		return nil
	}
	out := make([][]float32, len(values))
	for i, v := range values {
		out[i] = append([]float32(nil), v...)
	}
	return out
}

// drawQueue collects the commands of the frame being built.
// Producers append under the lock; the render goroutine takes the whole slice in one swap.
type drawQueue struct {
	mu       sync.Mutex
	commands []DrawCommand
}

func (q *drawQueue) push(cmd DrawCommand) {
	q.mu.Lock()
	q.commands = append(q.commands, cmd)
	q.mu.Unlock()
}

// swap moves the pending commands out and installs recycled, emptied, as the new pending slice.
func (q *drawQueue) swap(recycled []DrawCommand) []DrawCommand {
	clear(recycled)
	recycled = recycled[:0]

	q.mu.Lock()
	out := q.commands
	q.commands = recycled
	q.mu.Unlock()
	return out
}

// discard drops every pending command.
func (q *drawQueue) discard() {
	q.mu.Lock()
	clear(q.commands)
	q.commands = q.commands[:0]
	q.mu.Unlock()
}

func (q *drawQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}
