package renderer

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
)

func (r *renderer) SaveScreenshot(path string) error {
	r.frameMu.Lock()
	if !r.initialized {
		r.frameMu.Unlock()
		return ErrNotInitialized
	}
	pixels, err := r.backend.ReadPixels()
	r.frameMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to read back buffer: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create screenshot file: %w", err)
	}
	if err := EncodePixels(f, pixels); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodePixels writes a back buffer copy as PNG, honoring its row pitch.
//
// Parameters:
//   - w: the destination
//   - pixels: RGBA8 rows top to bottom
//
// Returns:
//   - error: ErrInvalidData if the buffer is smaller than its dimensions require, or an encoding error
func EncodePixels(w io.Writer, pixels Pixels) error {
	pitch := pixels.Pitch
	if pitch == 0 {
		pitch = pixels.Width * 4
	}
	if pixels.Width <= 0 || pixels.Height <= 0 || pitch < pixels.Width*4 ||
		len(pixels.Data) < pitch*(pixels.Height-1)+pixels.Width*4 {
		return fmt.Errorf("%dx%d pixels with pitch %d in %d bytes: %w", pixels.Width, pixels.Height, pitch, len(pixels.Data), ErrInvalidData)
	}

	img := &image.RGBA{
		Pix:    pixels.Data,
		Stride: pitch,
		Rect:   image.Rect(0, 0, pixels.Width, pixels.Height),
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode screenshot: %w", err)
	}
	return nil
}
