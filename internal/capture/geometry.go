package capture

import (
	"image"
	"math"
)

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RegionToPixels converts a normalized region to pixel coordinates within a
// surface of the given size. Edges are clamped to [0,1] before conversion and
// the result is guaranteed non-empty (right > left, bottom > top) whenever
// the surface itself is non-empty; a region that rounds away still occupies
// at least one pixel.
func RegionToPixels(region Region, size image.Point) image.Rectangle {
	if size.X <= 0 || size.Y <= 0 {
		return image.Rectangle{}
	}

	norm := region.Normalized()
	left := clampFloat(norm.X, 0.0, 1.0)
	top := clampFloat(norm.Y, 0.0, 1.0)
	right := clampFloat(norm.X+norm.W, 0.0, 1.0)
	bottom := clampFloat(norm.Y+norm.H, 0.0, 1.0)

	leftPx := clampInt(int(math.Floor(left*float64(size.X))), 0, size.X-1)
	topPx := clampInt(int(math.Floor(top*float64(size.Y))), 0, size.Y-1)
	rightPx := clampInt(int(math.Ceil(right*float64(size.X))), leftPx+1, size.X)
	bottomPx := clampInt(int(math.Ceil(bottom*float64(size.Y))), topPx+1, size.Y)

	return image.Rect(leftPx, topPx, rightPx, bottomPx)
}

// MapSourceRegionToThumbnail remaps a region expressed against the source
// window's full client area into the normalized coordinate space of a preview
// thumbnail that shows only a crop of that client area. The thumbnail trims
// its crop symmetrically when the crop's aspect ratio differs from its own,
// so the mapping first reproduces that trim, then intersects the region with
// the effectively visible crop. Returns false when the region does not
// overlap the visible part at all.
func MapSourceRegionToThumbnail(sourceRegion, thumbCrop Region, sourceClient, thumbSize image.Point) (Region, bool) {
	if sourceClient.X <= 0 || sourceClient.Y <= 0 || thumbSize.X <= 0 || thumbSize.Y <= 0 {
		return Region{}, false
	}

	sourcePixels := RegionToPixels(sourceRegion, sourceClient)
	if sourcePixels.Dx() <= 0 || sourcePixels.Dy() <= 0 {
		return Region{}, false
	}

	crop := thumbCrop.Normalized()
	cropLeftNorm := clampFloat(crop.X, 0.0, 1.0)
	cropTopNorm := clampFloat(crop.Y, 0.0, 1.0)
	cropRightNorm := clampFloat(crop.X+crop.W, 0.0, 1.0)
	cropBottomNorm := clampFloat(crop.Y+crop.H, 0.0, 1.0)

	cropLeft := clampInt(int(math.Floor(cropLeftNorm*float64(sourceClient.X))), 0, sourceClient.X-1)
	cropTop := clampInt(int(math.Floor(cropTopNorm*float64(sourceClient.Y))), 0, sourceClient.Y-1)
	cropRight := clampInt(int(math.Ceil(cropRightNorm*float64(sourceClient.X))), cropLeft+1, sourceClient.X)
	cropBottom := clampInt(int(math.Ceil(cropBottomNorm*float64(sourceClient.Y))), cropTop+1, sourceClient.Y)

	cropWidth := cropRight - cropLeft
	if cropWidth < 1 {
		cropWidth = 1
	}
	cropHeight := cropBottom - cropTop
	if cropHeight < 1 {
		cropHeight = 1
	}

	cropAspect := float64(cropWidth) / float64(cropHeight)
	destAspect := float64(thumbSize.X) / float64(thumbSize.Y)

	// The thumbnail trims the crop from the center to match its own aspect,
	// it never letterboxes. Reproduce the trim before intersecting.
	if cropAspect > destAspect {
		targetWidth := int(math.Round(float64(cropHeight) * destAspect))
		if targetWidth < 1 {
			targetWidth = 1
		}
		if targetWidth > cropWidth {
			targetWidth = cropWidth
		}
		cropLeft += (cropWidth - targetWidth) / 2
		cropRight = cropLeft + targetWidth
	} else if cropAspect < destAspect {
		targetHeight := int(math.Round(float64(cropWidth) / destAspect))
		if targetHeight < 1 {
			targetHeight = 1
		}
		if targetHeight > cropHeight {
			targetHeight = cropHeight
		}
		cropTop += (cropHeight - targetHeight) / 2
		cropBottom = cropTop + targetHeight
	}

	effectiveWidth := cropRight - cropLeft
	if effectiveWidth < 1 {
		effectiveWidth = 1
	}
	effectiveHeight := cropBottom - cropTop
	if effectiveHeight < 1 {
		effectiveHeight = 1
	}

	overlapLeft := maxInt(sourcePixels.Min.X, cropLeft)
	overlapTop := maxInt(sourcePixels.Min.Y, cropTop)
	overlapRight := minInt(sourcePixels.Max.X, cropRight)
	overlapBottom := minInt(sourcePixels.Max.Y, cropBottom)

	if overlapRight <= overlapLeft || overlapBottom <= overlapTop {
		return Region{}, false
	}

	mappedLeft := clampFloat(float64(overlapLeft-cropLeft)/float64(effectiveWidth), 0.0, 1.0)
	mappedTop := clampFloat(float64(overlapTop-cropTop)/float64(effectiveHeight), 0.0, 1.0)
	mappedRight := clampFloat(float64(overlapRight-cropLeft)/float64(effectiveWidth), 0.0, 1.0)
	mappedBottom := clampFloat(float64(overlapBottom-cropTop)/float64(effectiveHeight), 0.0, 1.0)

	mapped := Region{
		X: mappedLeft,
		Y: mappedTop,
		W: mappedRight - mappedLeft,
		H: mappedBottom - mappedTop,
	}
	if mapped.W <= 0.0 || mapped.H <= 0.0 {
		return Region{}, false
	}
	return mapped, true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
