//go:build !windows
// +build !windows

package capture

import (
	"github.com/rs/zerolog"
)

// Window capture needs the Windows compositor and GDI. On other platforms
// the constructors return inert implementations so the rest of the engine
// still builds and the poll loop degrades into capture failures.

type stubGrabber struct{}

// NewGDIGrabber returns a grabber that always fails on this platform.
func NewGDIGrabber(logger zerolog.Logger) Grabber {
	return stubGrabber{}
}

func (stubGrabber) Grab(handle uintptr, opts GrabOptions) GrabResult {
	return GrabResult{Method: "unsupported_platform"}
}

type stubSurfaceManager struct{}

// NewSurfaceManager returns a surface table that cannot create surfaces on
// this platform.
func NewSurfaceManager(logger zerolog.Logger) SurfaceManager {
	return stubSurfaceManager{}
}

func (stubSurfaceManager) Ensure(character string) Surface { return nil }

func (stubSurfaceManager) Prune(active map[string]struct{}) {}

func (stubSurfaceManager) Clear() {}
