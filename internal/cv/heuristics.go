package cv

import "image"

// Frame validation heuristics. Capture techniques can succeed at the API
// level while the source surface has not actually rendered yet; these
// classifiers reject such frames so a fallback technique gets a chance.

const (
	lumaSampleTarget = 2500
	nearBlackMaxLuma = 2
)

type lumaStats struct {
	samples   int
	nearBlack int
	minLuma   int
	maxLuma   int
	sum       int64
}

// sampleLuma walks a roughly uniform grid of about lumaSampleTarget points
// across the frame and accumulates luminance statistics.
func sampleLuma(gray *image.Gray) lumaStats {
	stats := lumaStats{minLuma: 255, maxLuma: 0}
	if gray == nil {
		return stats
	}

	width := gray.Rect.Dx()
	height := gray.Rect.Dy()
	if width <= 0 || height <= 0 {
		return stats
	}

	axisSamples := 1
	for axisSamples*axisSamples < lumaSampleTarget {
		axisSamples++
	}

	stepX := width / axisSamples
	if stepX < 1 {
		stepX = 1
	}
	stepY := height / axisSamples
	if stepY < 1 {
		stepY = 1
	}

	for y := 0; y < height; y += stepY {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+width]
		for x := 0; x < width; x += stepX {
			v := int(row[x])
			stats.samples++
			stats.sum += int64(v)
			if v <= nearBlackMaxLuma {
				stats.nearBlack++
			}
			if v < stats.minLuma {
				stats.minLuma = v
			}
			if v > stats.maxLuma {
				stats.maxLuma = v
			}
		}
	}
	return stats
}

// AlmostSolidBlack reports whether a frame looks like an unrendered surface:
// at least 99.5% of sampled pixels are near-black and the sampled luminance
// range is at most 4. Nil and empty frames count as black.
func AlmostSolidBlack(img image.Image) bool {
	gray := Grayscale(img)
	if gray == nil {
		return true
	}

	stats := sampleLuma(gray)
	if stats.samples == 0 {
		return true
	}

	blackRatio := float64(stats.nearBlack) / float64(stats.samples)
	lumaRange := stats.maxLuma - stats.minLuma
	return blackRatio >= 0.995 && lumaRange <= 4
}

// LowContrastDark reports whether a frame is dark and nearly uniform, which
// usually means the source window is mid-transition rather than showing real
// content: mean sampled luminance at most 40 and range at most 18. Nil and
// empty frames count as low contrast.
func LowContrastDark(img image.Image) bool {
	gray := Grayscale(img)
	if gray == nil {
		return true
	}

	stats := sampleLuma(gray)
	if stats.samples == 0 {
		return true
	}

	mean := float64(stats.sum) / float64(stats.samples)
	lumaRange := stats.maxLuma - stats.minLuma
	return mean <= 40.0 && lumaRange <= 18
}
