package capture

import (
	"image"
	"testing"
)

func TestRegionToPixels(t *testing.T) {
	tests := []struct {
		name   string
		region Region
		size   image.Point
		want   image.Rectangle
	}{
		{
			name:   "centered half region",
			region: Region{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
			size:   image.Point{X: 400, Y: 400},
			want:   image.Rect(100, 100, 300, 300),
		},
		{
			name:   "full region",
			region: Region{X: 0, Y: 0, W: 1, H: 1},
			size:   image.Point{X: 640, Y: 480},
			want:   image.Rect(0, 0, 640, 480),
		},
		{
			name:   "out of range clamps to full",
			region: Region{X: -0.5, Y: -0.5, W: 2, H: 2},
			size:   image.Point{X: 100, Y: 100},
			want:   image.Rect(0, 0, 100, 100),
		},
		{
			name:   "tiny region at far corner keeps one pixel",
			region: Region{X: 0.999, Y: 0.999, W: 0.001, H: 0.001},
			size:   image.Point{X: 100, Y: 100},
			want:   image.Rect(99, 99, 100, 100),
		},
		{
			name:   "negative extent is folded",
			region: Region{X: 0.75, Y: 0.75, W: -0.5, H: -0.5},
			size:   image.Point{X: 400, Y: 400},
			want:   image.Rect(100, 100, 300, 300),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RegionToPixels(tt.region, tt.size); got != tt.want {
				t.Errorf("RegionToPixels() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegionToPixelsEmptySource(t *testing.T) {
	got := RegionToPixels(Region{X: 0, Y: 0, W: 1, H: 1}, image.Point{})
	if !got.Empty() {
		t.Errorf("RegionToPixels() on empty source = %v, want empty", got)
	}
}

func TestMapSourceRegionToThumbnail(t *testing.T) {
	tests := []struct {
		name         string
		sourceRegion Region
		thumbCrop    Region
		sourceClient image.Point
		thumbSize    image.Point
		want         Region
		wantOK       bool
	}{
		{
			name:         "identity through full matching crop",
			sourceRegion: Region{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
			thumbCrop:    Region{X: 0, Y: 0, W: 1, H: 1},
			sourceClient: image.Point{X: 400, Y: 400},
			thumbSize:    image.Point{X: 100, Y: 100},
			want:         Region{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
			wantOK:       true,
		},
		{
			name:         "wide thumbnail trims crop vertically",
			sourceRegion: Region{X: 0, Y: 0, W: 1, H: 1},
			thumbCrop:    Region{X: 0, Y: 0, W: 1, H: 1},
			sourceClient: image.Point{X: 400, Y: 400},
			thumbSize:    image.Point{X: 200, Y: 100},
			want:         Region{X: 0, Y: 0, W: 1, H: 1},
			wantOK:       true,
		},
		{
			name:         "region outside trimmed band",
			sourceRegion: Region{X: 0, Y: 0, W: 1, H: 0.1},
			thumbCrop:    Region{X: 0, Y: 0, W: 1, H: 1},
			sourceClient: image.Point{X: 400, Y: 400},
			thumbSize:    image.Point{X: 200, Y: 100},
			wantOK:       false,
		},
		{
			name:         "region outside crop",
			sourceRegion: Region{X: 0.75, Y: 0.75, W: 0.2, H: 0.2},
			thumbCrop:    Region{X: 0, Y: 0, W: 0.5, H: 0.5},
			sourceClient: image.Point{X: 400, Y: 400},
			thumbSize:    image.Point{X: 100, Y: 100},
			wantOK:       false,
		},
		{
			name:         "partial overlap clamps to visible part",
			sourceRegion: Region{X: 0.4, Y: 0.4, W: 0.2, H: 0.2},
			thumbCrop:    Region{X: 0, Y: 0, W: 0.5, H: 0.5},
			sourceClient: image.Point{X: 400, Y: 400},
			thumbSize:    image.Point{X: 100, Y: 100},
			want:         Region{X: 0.8, Y: 0.8, W: 0.2, H: 0.2},
			wantOK:       true,
		},
	}

	const eps = 1e-9

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MapSourceRegionToThumbnail(tt.sourceRegion, tt.thumbCrop, tt.sourceClient, tt.thumbSize)
			if ok != tt.wantOK {
				t.Fatalf("MapSourceRegionToThumbnail() ok = %v, want %v", ok, tt.wantOK)
			}
			if !tt.wantOK {
				return
			}
			if diffAbs(got.X, tt.want.X) > eps || diffAbs(got.Y, tt.want.Y) > eps ||
				diffAbs(got.W, tt.want.W) > eps || diffAbs(got.H, tt.want.H) > eps {
				t.Errorf("MapSourceRegionToThumbnail() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMapSourceRegionToThumbnailInvalidInputs(t *testing.T) {
	region := Region{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}
	crop := Region{X: 0, Y: 0, W: 1, H: 1}

	if _, ok := MapSourceRegionToThumbnail(region, crop, image.Point{}, image.Point{X: 100, Y: 100}); ok {
		t.Error("empty source client should not map")
	}
	if _, ok := MapSourceRegionToThumbnail(region, crop, image.Point{X: 400, Y: 400}, image.Point{}); ok {
		t.Error("empty thumbnail size should not map")
	}
}

func diffAbs(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
