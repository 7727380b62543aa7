//go:build !windows
// +build !windows

package winapi

import (
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"github.com/eveapm/regionwatch/internal/capture"
)

// Window enumeration needs the Windows shell. On other platforms the
// registry is inert: it lists nothing and every character resolves to not
// found, so the poll loop degrades into capture failures.

// Registry is the non-Windows stand-in for the window registry.
type Registry struct {
	logger zerolog.Logger
}

// NewRegistry returns a registry that never finds windows on this platform.
func NewRegistry(processNames []string, logger zerolog.Logger) *Registry {
	return &Registry{logger: logger}
}

// SetProcessNames is a no-op on this platform.
func (r *Registry) SetProcessNames(processNames []string) {}

// Refresh returns no windows.
func (r *Registry) Refresh() []CharacterWindow { return nil }

// Windows returns no windows.
func (r *Registry) Windows() []CharacterWindow { return nil }

// Resolve reports every character as not found.
func (r *Registry) Resolve(character string) (uintptr, error) {
	return 0, capture.ErrWindowNotFound
}

// ClientSize returns the zero point.
func (r *Registry) ClientSize(handle uintptr) image.Point {
	return image.Point{}
}

// Activate fails on this platform.
func (r *Registry) Activate(handle uintptr) error {
	return fmt.Errorf("window activation is not supported on this platform")
}

// CaptureWindowRect fails on this platform.
func (r *Registry) CaptureWindowRect(handle uintptr) (*image.RGBA, error) {
	return nil, fmt.Errorf("window capture is not supported on this platform")
}

var _ capture.WindowResolver = (*Registry)(nil)
