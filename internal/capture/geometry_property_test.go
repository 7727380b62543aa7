package capture

import (
	"image"
	"testing"

	"pgregory.net/rapid"
)

func TestRegionToPixelsAlwaysNonEmpty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		region := Region{
			X: rapid.Float64Range(-0.25, 1.25).Draw(rt, "x"),
			Y: rapid.Float64Range(-0.25, 1.25).Draw(rt, "y"),
			W: rapid.Float64Range(1e-6, 1.5).Draw(rt, "w"),
			H: rapid.Float64Range(1e-6, 1.5).Draw(rt, "h"),
		}
		size := image.Point{
			X: rapid.IntRange(1, 4000).Draw(rt, "width"),
			Y: rapid.IntRange(1, 4000).Draw(rt, "height"),
		}

		got := RegionToPixels(region, size)
		if got.Max.X <= got.Min.X || got.Max.Y <= got.Min.Y {
			rt.Fatalf("empty rect %v for region %+v size %v", got, region, size)
		}
		if got.Min.X < 0 || got.Min.Y < 0 || got.Max.X > size.X || got.Max.Y > size.Y {
			rt.Fatalf("rect %v outside bounds %v", got, size)
		}
	})
}

func TestMapSourceRegionToThumbnailStaysNormalized(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		region := Region{
			X: rapid.Float64Range(0, 0.9).Draw(rt, "rx"),
			Y: rapid.Float64Range(0, 0.9).Draw(rt, "ry"),
			W: rapid.Float64Range(0.05, 1).Draw(rt, "rw"),
			H: rapid.Float64Range(0.05, 1).Draw(rt, "rh"),
		}
		crop := Region{
			X: rapid.Float64Range(0, 0.5).Draw(rt, "cx"),
			Y: rapid.Float64Range(0, 0.5).Draw(rt, "cy"),
			W: rapid.Float64Range(0.1, 1).Draw(rt, "cw"),
			H: rapid.Float64Range(0.1, 1).Draw(rt, "ch"),
		}
		sourceClient := image.Point{
			X: rapid.IntRange(50, 3840).Draw(rt, "clientW"),
			Y: rapid.IntRange(50, 2160).Draw(rt, "clientH"),
		}
		thumbSize := image.Point{
			X: rapid.IntRange(16, 512).Draw(rt, "thumbW"),
			Y: rapid.IntRange(16, 512).Draw(rt, "thumbH"),
		}

		mapped, ok := MapSourceRegionToThumbnail(region, crop, sourceClient, thumbSize)
		if !ok {
			return
		}
		if mapped.X < 0 || mapped.Y < 0 || mapped.X+mapped.W > 1.0000001 || mapped.Y+mapped.H > 1.0000001 {
			rt.Fatalf("mapped region %+v escapes [0,1]", mapped)
		}
		if mapped.W <= 0 || mapped.H <= 0 {
			rt.Fatalf("mapped region %+v has no area", mapped)
		}
		// A successful mapping must survive pixel conversion on the thumbnail.
		px := RegionToPixels(mapped, thumbSize)
		if px.Dx() <= 0 || px.Dy() <= 0 {
			rt.Fatalf("mapped region %+v converts to empty rect %v on %v", mapped, px, thumbSize)
		}
	})
}
