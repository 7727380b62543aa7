package capture

import (
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"github.com/eveapm/regionwatch/internal/cv"
)

// Orchestrator produces a frame for a rule's region. It drives the internal
// cropped-surface path first and falls back to capturing the character's
// shared preview thumbnail with geometric remapping. The method tag on a
// successful result identifies the full acquisition pipeline; frames from
// different tags must never be diffed against each other.
type Orchestrator struct {
	resolver WindowResolver
	surfaces SurfaceManager
	grabber  Grabber
	previews ThumbnailProvider
	logger   zerolog.Logger
	debugf   DebugSink
}

// NewOrchestrator wires the capture pipeline. The preview provider is
// optional and set with WithPreviews.
func NewOrchestrator(resolver WindowResolver, surfaces SurfaceManager, grabber Grabber, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		surfaces: surfaces,
		grabber:  grabber,
		logger:   logger,
	}
}

// WithPreviews sets the shared preview-thumbnail provider used by the
// fallback path.
func (o *Orchestrator) WithPreviews(previews ThumbnailProvider) *Orchestrator {
	o.previews = previews
	return o
}

// WithDebugSink routes capture traces into the diagnostic log.
func (o *Orchestrator) WithDebugSink(sink DebugSink) *Orchestrator {
	o.debugf = sink
	return o
}

func (o *Orchestrator) trace(format string, args ...interface{}) {
	if o.debugf != nil {
		o.debugf(format, args...)
	}
}

// CaptureForRule acquires the rule's region. On failure the result carries
// the fallback path's status; the internal path's status is only traced.
func (o *Orchestrator) CaptureForRule(ruleKey, character string, region Region) Result {
	var handle uintptr
	if h, err := o.resolver.Resolve(character); err == nil {
		handle = h
	}

	var clientSize image.Point
	if handle != 0 {
		clientSize = o.resolver.ClientSize(handle)
	}

	primary := o.captureInternal(ruleKey, handle, character, region, clientSize)
	if primary.OK {
		return primary
	}
	o.trace("Rule %s internal cropped thumbnail capture failed: %s", ruleKey, primary.Method)
	o.logger.Debug().Str("rule", ruleKey).Str("status", primary.Method).
		Msg("internal capture path failed")

	fallback := o.captureFromPreview(ruleKey, character, region, clientSize)
	if fallback.OK {
		return fallback
	}
	o.trace("Rule %s fallback visible thumbnail capture failed: %s", ruleKey, fallback.Method)
	o.logger.Debug().Str("rule", ruleKey).Str("status", fallback.Method).
		Msg("fallback capture path failed")
	return fallback
}

// captureInternal reads the rule's region from the character's hidden
// compositor-linked surface. The surface shows only the cropped region
// scaled to the internal capture size, so the grab is cheap.
func (o *Orchestrator) captureInternal(ruleKey string, handle uintptr, character string, region Region, clientSize image.Point) Result {
	if handle == 0 {
		return Result{Method: "source_window_unavailable"}
	}
	if clientSize.X <= 0 || clientSize.Y <= 0 {
		return Result{Method: "source_client_size_unavailable"}
	}

	sourcePixels := RegionToPixels(region, clientSize)
	if sourcePixels.Dx() < MinRegionPixelSize || sourcePixels.Dy() < MinRegionPixelSize {
		return Result{Method: "source_region_too_small"}
	}

	captureSize := InternalCaptureSize(image.Point{X: sourcePixels.Dx(), Y: sourcePixels.Dy()})
	surface := o.surfaces.Ensure(character)
	if surface == nil {
		return Result{Method: "surface_init_failed"}
	}

	if status := surface.Prepare(handle, sourcePixels, captureSize); status != "ok" {
		return Result{Method: "surface_prepare_failed:" + status}
	}

	grab := o.grabber.Grab(surface.Handle(), GrabOptions{AllowClientDC: true})
	if !grab.OK {
		return Result{Method: "surface_capture_failed:" + grab.Method}
	}

	bounds := grab.Image.Bounds()
	if bounds.Dx() < MinRegionPixelSize || bounds.Dy() < MinRegionPixelSize {
		return Result{Method: "captured_frame_too_small"}
	}

	o.trace("Rule %s internal capture prepared: src=%dx%d region=[%d,%d,%d,%d] target=%dx%d",
		ruleKey, clientSize.X, clientSize.Y,
		sourcePixels.Min.X, sourcePixels.Min.Y, sourcePixels.Dx(), sourcePixels.Dy(),
		captureSize.X, captureSize.Y)

	return Result{
		Image:  grab.Image,
		Method: fmt.Sprintf("internal_cropped_thumbnail:%s:%dx%d", grab.Method, bounds.Dx(), bounds.Dy()),
		OK:     true,
	}
}

// captureFromPreview captures the character's shared preview thumbnail and
// crops out the part of it that shows the rule's region. The preview shows a
// center-trimmed crop of the source client area, so the region has to be
// remapped through that crop before cropping the captured pixels.
func (o *Orchestrator) captureFromPreview(ruleKey, character string, region Region, clientSize image.Point) Result {
	if o.previews == nil {
		return Result{Method: "no_thumbnail_widget"}
	}
	thumb, ok := o.previews.Find(character)
	if !ok || thumb == nil {
		return Result{Method: "no_thumbnail_widget"}
	}

	thumb.ForceRefresh()
	thumbSize := thumb.Size()
	o.trace("Rule %s fallback thumbnail state: size=%dx%d", ruleKey, thumbSize.X, thumbSize.Y)

	grab := o.grabber.Grab(thumb.Handle(), GrabOptions{PreferScreenCapture: true})
	if !grab.OK {
		return Result{Method: "thumbnail_capture_failed:" + grab.Method}
	}

	capturedSize := image.Point{X: grab.Image.Bounds().Dx(), Y: grab.Image.Bounds().Dy()}
	mappingSource := clientSize
	if mappingSource.X <= 0 || mappingSource.Y <= 0 {
		mappingSource = capturedSize
		o.trace("Rule %s fallback source client size unavailable; using thumbnail size for mapping (%dx%d)",
			ruleKey, mappingSource.X, mappingSource.Y)
	}

	crop := thumb.CropRect()
	mapped, valid := MapSourceRegionToThumbnail(region, crop, mappingSource, capturedSize)
	if !valid {
		o.trace("Rule %s fallback mapping produced empty region: sourceClient=%dx%d thumb=%dx%d srcRegion=[%.4f,%.4f,%.4f,%.4f] thumbCrop=[%.4f,%.4f,%.4f,%.4f]",
			ruleKey, mappingSource.X, mappingSource.Y, capturedSize.X, capturedSize.Y,
			region.X, region.Y, region.W, region.H,
			crop.X, crop.Y, crop.W, crop.H)
		return Result{Method: "thumbnail_mapping_empty"}
	}

	mappedPixels := RegionToPixels(mapped, capturedSize)
	if mappedPixels.Dx() < MinRegionPixelSize || mappedPixels.Dy() < MinRegionPixelSize {
		o.trace("Rule %s fallback mapped region too small: x=%d y=%d w=%d h=%d",
			ruleKey, mappedPixels.Min.X, mappedPixels.Min.Y, mappedPixels.Dx(), mappedPixels.Dy())
		return Result{Method: "thumbnail_mapped_region_too_small"}
	}

	cropped := cv.Crop(grab.Image, mappedPixels)
	if cropped == nil {
		return Result{Method: "thumbnail_mapping_empty"}
	}

	o.trace("Rule %s fallback mapped region: sourceClient=%dx%d thumb=%dx%d nx=%.4f ny=%.4f nw=%.4f nh=%.4f px=%d py=%d pw=%d ph=%d",
		ruleKey, mappingSource.X, mappingSource.Y, capturedSize.X, capturedSize.Y,
		mapped.X, mapped.Y, mapped.W, mapped.H,
		mappedPixels.Min.X, mappedPixels.Min.Y, mappedPixels.Dx(), mappedPixels.Dy())

	return Result{
		Image:  cropped,
		Method: "thumbnail_hwnd_capture:" + grab.Method,
		OK:     true,
	}
}
