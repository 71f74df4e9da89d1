// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Color is an 8-bit per channel RGBA color.
type Color struct {
	R, G, B, A uint8
}

// Predefined colors.
var (
	ColorBlack = Color{R: 0, G: 0, B: 0, A: 255}
	ColorWhite = Color{R: 255, G: 255, B: 255, A: 255}
	ColorRed   = Color{R: 255, G: 0, B: 0, A: 255}
	ColorGreen = Color{R: 0, G: 255, B: 0, A: 255}
	ColorBlue  = Color{R: 0, G: 0, B: 255, A: 255}
)

// NewColor unpacks a 0xRRGGBBAA value into a Color.
func NewColor(rgba uint32) Color {
	return Color{
		R: uint8(rgba >> 24),
		G: uint8(rgba >> 16),
		B: uint8(rgba >> 8),
		A: uint8(rgba),
	}
}

// NormR returns the red channel in the [0, 1] range.
func (c Color) NormR() float32 { return float32(c.R) / 255 }

// NormG returns the green channel in the [0, 1] range.
func (c Color) NormG() float32 { return float32(c.G) / 255 }

// NormB returns the blue channel in the [0, 1] range.
func (c Color) NormB() float32 { return float32(c.B) / 255 }

// NormA returns the alpha channel in the [0, 1] range.
func (c Color) NormA() float32 { return float32(c.A) / 255 }

// Float4 returns the color as four normalized floats, the layout graphics APIs expect for clear colors.
func (c Color) Float4() [4]float32 {
	return [4]float32{c.NormR(), c.NormG(), c.NormB(), c.NormA()}
}

// ImageData holds tightly packed RGBA8 pixel data decoded from an image file.
type ImageData struct {
	// Pixels is the RGBA pixel data, 4 bytes per pixel, rows top to bottom.
	Pixels []byte
	// Width is the image width in pixels.
	Width uint32
	// Height is the image height in pixels.
	Height uint32
}

// Size returns the image dimensions as a Size2.
func (d ImageData) Size() Size2 {
	return Size2{Width: float32(d.Width), Height: float32(d.Height)}
}

// DecodeImage decodes a PNG, JPEG, BMP or WebP stream to RGBA pixel data.
// Reference: https://pkg.go.dev/image
//
// Parameters:
//   - r: the encoded image stream
//
// Returns:
//   - ImageData: the decoded pixels and dimensions
//   - error: error if decoding fails
func DecodeImage(r io.Reader) (ImageData, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return ImageData{}, fmt.Errorf("failed to decode image: %w", err)
	}
	return ToRGBA(img), nil
}

// LoadImage reads and decodes an image file from disk.
//
// Parameters:
//   - path: the image file path
//
// Returns:
//   - ImageData: the decoded pixels and dimensions
//   - error: error if the file cannot be read or decoded
func LoadImage(path string) (ImageData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageData{}, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	img, err := DecodeImage(bytes.NewReader(data))
	if err != nil {
		return ImageData{}, fmt.Errorf("failed to decode image file %s: %w", path, err)
	}
	return img, nil
}

// ToRGBA converts any image to tightly packed RGBA data with the origin at (0, 0).
func ToRGBA(img image.Image) ImageData {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return ImageData{
		Pixels: rgba.Pix,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
	}
}
