package capture

import (
	"errors"
	"image"
	"strings"
)

// Capture statuses and method tags are plain strings rather than error
// values: they travel into capture-method identity tags and the diagnostic
// log, and the poll loop only ever branches on success or failure.

const (
	// MinRegionPixelSize is the smallest region edge worth capturing. Regions
	// that round below this are a transient geometry issue, not an error.
	MinRegionPixelSize = 8

	// Internal capture surfaces keep the long edge fixed and floor the short
	// edge so per-poll readback cost stays bounded.
	internalCaptureLongestEdgePx  = 192
	internalCaptureMinShortEdgePx = 48
)

// Technique names double as capture-method tags.
const (
	methodScreenRect  = "BitBlt(screenDC_clientRect)"
	methodClientDC    = "BitBlt(clientDC)"
	methodPrintWindow = "PrintWindow(PW_CLIENTONLY)"
)

var (
	// ErrWindowNotFound means no window matched a character name.
	ErrWindowNotFound = errors.New("window not found")
	// ErrWindowUnavailable means a window matched but is destroyed or minimized.
	ErrWindowUnavailable = errors.New("window unavailable")
)

// Region is a rectangle expressed as fractions (0-1) of a window's client
// area, independent of pixel resolution.
type Region struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	W float64 `yaml:"w"`
	H float64 `yaml:"h"`
}

// Normalized returns the region with negative extents folded so W and H are
// non-negative.
func (r Region) Normalized() Region {
	out := r
	if out.W < 0 {
		out.X += out.W
		out.W = -out.W
	}
	if out.H < 0 {
		out.Y += out.H
		out.H = -out.H
	}
	return out
}

// Empty reports whether the region has no usable area.
func (r Region) Empty() bool {
	n := r.Normalized()
	return n.W <= 0 || n.H <= 0
}

// NormalizeCharacter canonicalizes a character name for keying and matching.
// Every lookup site (surface keys, window resolution, preview lookup) must go
// through this one function so identities never drift between components.
func NormalizeCharacter(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// GrabOptions selects and orders the techniques a grab may use.
type GrabOptions struct {
	AllowSolidBlack     bool
	PreferScreenCapture bool
	AllowPrintWindow    bool
	RejectLowContrast   bool
	AllowClientDC       bool
}

// DefaultGrabOptions is the general-purpose configuration: client DC first,
// print fallback allowed, dark transition frames rejected.
func DefaultGrabOptions() GrabOptions {
	return GrabOptions{
		AllowPrintWindow:  true,
		RejectLowContrast: true,
		AllowClientDC:     true,
	}
}

// GrabResult is the outcome of one client-area capture.
type GrabResult struct {
	Image  *image.RGBA
	Method string // technique tag on success, last failure status otherwise
	OK     bool
}

// Result is the outcome of a full region capture for a rule.
type Result struct {
	Image  *image.RGBA
	Method string // pipeline tag on success, failure status otherwise
	OK     bool
}

// Grabber captures the client area of a window using the ordered fallback
// techniques selected by the options.
type Grabber interface {
	Grab(handle uintptr, opts GrabOptions) GrabResult
}

// WindowResolver maps character names to live window handles.
type WindowResolver interface {
	// Resolve looks a character up exactly, then case-insensitively. It
	// returns ErrWindowNotFound when nothing matches and ErrWindowUnavailable
	// when a match exists but is destroyed or minimized.
	Resolve(character string) (uintptr, error)
	// ClientSize returns the current client-area size of a window, or the
	// zero point when it cannot be read.
	ClientSize(handle uintptr) image.Point
}

// PreviewThumbnail is a shared, externally rendered live preview of a source
// window, usable as a fallback capture source.
type PreviewThumbnail interface {
	Handle() uintptr
	// ForceRefresh makes the preview repaint before it is captured.
	ForceRefresh()
	// CropRect is the preview's own normalized source crop.
	CropRect() Region
	// Size is the preview's current pixel size.
	Size() image.Point
}

// ThumbnailProvider finds the preview thumbnail for a character, exact match
// first, then case-insensitive.
type ThumbnailProvider interface {
	Find(character string) (PreviewThumbnail, bool)
}

// Surface is a hidden destination window with a live compositor link to a
// source window, cropped and scaled to a rule's region.
type Surface interface {
	// Prepare validates inputs, sizes the hidden window, links the thumbnail
	// and flushes the compositor. Returns "ok" or a descriptive status.
	Prepare(source uintptr, crop image.Rectangle, target image.Point) string
	// Handle is the hidden window the Grabber reads pixels from.
	Handle() uintptr
	// Release tears the thumbnail link and hidden window down. Idempotent.
	Release()
}

// SurfaceManager owns one Surface per character, created on first use and
// pruned when no enabled rule references the character anymore.
type SurfaceManager interface {
	// Ensure returns the surface for a character, creating it on first use.
	// Returns nil for a blank character name.
	Ensure(character string) Surface
	// Prune releases surfaces whose normalized character key is not active.
	Prune(active map[string]struct{})
	// Clear releases every surface.
	Clear()
}

// DebugSink receives formatted capture traces for the diagnostic log. A nil
// sink disables tracing.
type DebugSink func(format string, args ...interface{})
