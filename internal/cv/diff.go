package cv

import "image"

// ChangedPercent returns the percentage of pixels whose luminance moved by at
// least PixelDeltaThreshold between two canonical frames. A nil frame on
// either side, or mismatched dimensions, returns 100 so callers reseed their
// baseline instead of silently under-reporting a change.
func ChangedPercent(prev, curr *image.Gray) float64 {
	if prev == nil || curr == nil {
		return 100.0
	}
	if prev.Rect.Dx() != curr.Rect.Dx() || prev.Rect.Dy() != curr.Rect.Dy() {
		return 100.0
	}

	width := curr.Rect.Dx()
	height := curr.Rect.Dy()
	if width <= 0 || height <= 0 {
		return 0.0
	}

	var changed int64
	for y := 0; y < height; y++ {
		prevRow := prev.Pix[y*prev.Stride : y*prev.Stride+width]
		currRow := curr.Pix[y*curr.Stride : y*curr.Stride+width]
		for x := 0; x < width; x++ {
			delta := int(currRow[x]) - int(prevRow[x])
			if delta < 0 {
				delta = -delta
			}
			if delta >= PixelDeltaThreshold {
				changed++
			}
		}
	}

	total := int64(width) * int64(height)
	return float64(changed) * 100.0 / float64(total)
}
