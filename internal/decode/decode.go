// Package decode turns wallpaper files into renderable pixel buffers on a
// bounded worker pool, off the render thread.
package decode

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
)

// Decoder is the single image decoding capability. Format specific logic
// stays behind it; new formats are added by registering them with the image
// package, not by touching consumers.
type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

// StdDecoder decodes via the registered image formats (png/jpeg/gif plus the
// x/image formats registered in main).
type StdDecoder struct{}

func (StdDecoder) Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// toRGBA returns img as *image.RGBA, copying only when necessary. GL texture
// upload wants tightly packed RGBA bytes.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	tmp := image.NewRGBA(img.Bounds())
	draw.Draw(tmp, tmp.Bounds(), img, img.Bounds().Min, draw.Src)
	return tmp
}
