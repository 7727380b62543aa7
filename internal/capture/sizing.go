package capture

import (
	"image"
	"math"
)

// InternalCaptureSize derives the pixel size of the hidden capture surface
// for a cropped region: the longer edge is fixed at 192 and the shorter edge
// scales to preserve the region's aspect ratio, floored at 48 so very thin
// regions still carry enough rows or columns to diff.
func InternalCaptureSize(regionSize image.Point) image.Point {
	sourceWidth := maxInt(1, regionSize.X)
	sourceHeight := maxInt(1, regionSize.Y)

	if sourceWidth >= sourceHeight {
		targetHeight := int(math.Round(float64(internalCaptureLongestEdgePx) *
			float64(sourceHeight) / float64(sourceWidth)))
		targetHeight = maxInt(1, targetHeight)
		targetHeight = maxInt(internalCaptureMinShortEdgePx, targetHeight)
		return image.Point{X: internalCaptureLongestEdgePx, Y: targetHeight}
	}

	targetWidth := int(math.Round(float64(internalCaptureLongestEdgePx) *
		float64(sourceWidth) / float64(sourceHeight)))
	targetWidth = maxInt(1, targetWidth)
	targetWidth = maxInt(internalCaptureMinShortEdgePx, targetWidth)
	return image.Point{X: targetWidth, Y: internalCaptureLongestEdgePx}
}
