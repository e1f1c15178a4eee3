package decode

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/layerpaper/layerpaper/internal/config"
)

// scaleForMode resizes a decoded image toward the output's buffer size so
// texture upload and the draw quad stay cheap. Tile keeps the source size;
// the surface repeats it. Center only crops when the source is larger than
// the output, the letterboxing itself happens at draw time.
func scaleForMode(img image.Image, mode config.Mode, width, height int) image.Image {
	if width <= 0 || height <= 0 {
		return img
	}

	switch mode {
	case config.ModeStretch:
		return imaging.Resize(img, width, height, imaging.Lanczos)
	case config.ModeFit:
		return imaging.Fit(img, width, height, imaging.Lanczos)
	case config.ModeCenter:
		b := img.Bounds()
		if b.Dx() > width || b.Dy() > height {
			return imaging.CropCenter(img, min(b.Dx(), width), min(b.Dy(), height))
		}
		return img
	case config.ModeTile:
		return img
	default: // fill
		return imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
	}
}
