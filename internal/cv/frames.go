package cv

import (
	"image"

	"github.com/nfnt/resize"
)

const (
	// PreprocessSize is the edge length of the canonical diff grid
	PreprocessSize = 96
	// PixelDeltaThreshold is the minimum per-pixel luminance delta counted as changed
	PixelDeltaThreshold = 20
)

// Grayscale converts an image to single-channel luminance using the
// standard ITU-R 601 weights. Returns nil for nil or empty input.
func Grayscale(img image.Image) *image.Gray {
	if img == nil {
		return nil
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil
	}

	gray := image.NewGray(image.Rect(0, 0, width, height))

	// Fast path: RGBA source, direct pixel access
	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < height; y++ {
			srcRow := (bounds.Min.Y+y-rgba.Rect.Min.Y)*rgba.Stride - rgba.Rect.Min.X*4
			dstRow := y * gray.Stride
			for x := 0; x < width; x++ {
				idx := srcRow + (bounds.Min.X+x)*4
				r := int(rgba.Pix[idx])
				g := int(rgba.Pix[idx+1])
				b := int(rgba.Pix[idx+2])
				gray.Pix[dstRow+x] = uint8((r*299 + g*587 + b*114) / 1000)
			}
		}
		return gray
	}

	if src, ok := img.(*image.Gray); ok {
		for y := 0; y < height; y++ {
			srcOff := (bounds.Min.Y+y-src.Rect.Min.Y)*src.Stride + (bounds.Min.X - src.Rect.Min.X)
			copy(gray.Pix[y*gray.Stride:y*gray.Stride+width], src.Pix[srcOff:srcOff+width])
		}
		return gray
	}

	// Generic path for other image types
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			lum := (int(r>>8)*299 + int(g>>8)*587 + int(b>>8)*114) / 1000
			gray.Pix[y*gray.Stride+x] = uint8(lum)
		}
	}
	return gray
}

// PreprocessForDiff normalizes a captured frame to the canonical diff grid:
// single-channel luminance resized to PreprocessSize x PreprocessSize with
// nearest-neighbor sampling, aspect ratio deliberately ignored so differently
// sized captures of the same region stay comparable. Returns nil for nil or
// empty input.
func PreprocessForDiff(img image.Image) *image.Gray {
	gray := Grayscale(img)
	if gray == nil {
		return nil
	}

	resized := resize.Resize(PreprocessSize, PreprocessSize, gray, resize.NearestNeighbor)
	if g, ok := resized.(*image.Gray); ok {
		return g
	}

	// resize should hand back *image.Gray for gray input; convert if it didn't
	return Grayscale(resized)
}

// Crop returns a copy of the region r of img as a standalone image. The
// rectangle is intersected with the image bounds first; an empty result
// returns nil.
func Crop(img *image.RGBA, r image.Rectangle) *image.RGBA {
	if img == nil {
		return nil
	}

	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}

	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		srcOff := (r.Min.Y+y-img.Rect.Min.Y)*img.Stride + (r.Min.X-img.Rect.Min.X)*4
		dstOff := y * out.Stride
		copy(out.Pix[dstOff:dstOff+r.Dx()*4], img.Pix[srcOff:srcOff+r.Dx()*4])
	}
	return out
}
