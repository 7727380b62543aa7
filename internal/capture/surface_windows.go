//go:build windows
// +build windows

package capture

import (
	"fmt"
	"image"
	"sync"
	"syscall"
	"unsafe"

	"github.com/rs/zerolog"
)

var (
	procRegisterClassExW = user32.NewProc("RegisterClassExW")
	procCreateWindowExW  = user32.NewProc("CreateWindowExW")
	procDestroyWindow    = user32.NewProc("DestroyWindow")
	procDefWindowProcW   = user32.NewProc("DefWindowProcW")
	procShowWindow       = user32.NewProc("ShowWindow")
	procSetWindowPos     = user32.NewProc("SetWindowPos")
	procGetModuleHandleW = syscall.NewLazyDLL("kernel32.dll").NewProc("GetModuleHandleW")

	procDwmRegisterThumbnail         = dwmapi.NewProc("DwmRegisterThumbnail")
	procDwmUnregisterThumbnail       = dwmapi.NewProc("DwmUnregisterThumbnail")
	procDwmUpdateThumbnailProperties = dwmapi.NewProc("DwmUpdateThumbnailProperties")
	procDwmFlush                     = dwmapi.NewProc("DwmFlush")
)

const (
	wsPopup        = 0x80000000
	wsExToolWindow = 0x00000080
	wsExNoActivate = 0x08000000

	swShowNoActivate = 4

	swpNoZOrder   = 0x0004
	swpNoActivate = 0x0010

	dwmTNPRectDestination      = 0x00000001
	dwmTNPRectSource           = 0x00000002
	dwmTNPOpacity              = 0x00000004
	dwmTNPVisible              = 0x00000008
	dwmTNPSourceClientAreaOnly = 0x00000010

	// Hidden host windows are parked far off-screen so they never flash into
	// view while still counting as visible for the compositor.
	hostParkX = -32000
	hostParkY = -32000
)

// WNDCLASSEX structure for window class registration
type WNDCLASSEX struct {
	Size       uint32
	Style      uint32
	WndProc    uintptr
	ClsExtra   int32
	WndExtra   int32
	Instance   uintptr
	Icon       uintptr
	Cursor     uintptr
	Background uintptr
	MenuName   *uint16
	ClassName  *uint16
	IconSm     uintptr
}

// DWM_THUMBNAIL_PROPERTIES structure
type DWMThumbnailProperties struct {
	Flags                uint32
	Destination          RECT
	Source               RECT
	Opacity              byte
	Visible              int32
	SourceClientAreaOnly int32
}

var (
	hostClassOnce sync.Once
	hostClassAtom uintptr
)

const hostClassName = "RegionWatchCaptureHost"

func registerHostClass() uintptr {
	hostClassOnce.Do(func() {
		instance, _, _ := procGetModuleHandleW.Call(0)
		className, err := syscall.UTF16PtrFromString(hostClassName)
		if err != nil {
			return
		}

		wndProc := syscall.NewCallback(func(hwnd, msg, wparam, lparam uintptr) uintptr {
			ret, _, _ := procDefWindowProcW.Call(hwnd, msg, wparam, lparam)
			return ret
		})

		var wc WNDCLASSEX
		wc.Size = uint32(unsafe.Sizeof(wc))
		wc.WndProc = wndProc
		wc.Instance = instance
		wc.ClassName = className

		hostClassAtom, _, _ = procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc)))
	})
	return hostClassAtom
}

func createHostWindow(size image.Point) uintptr {
	if registerHostClass() == 0 {
		return 0
	}

	className, err := syscall.UTF16PtrFromString(hostClassName)
	if err != nil {
		return 0
	}
	instance, _, _ := procGetModuleHandleW.Call(0)

	parkX, parkY := hostParkX, hostParkY
	hwnd, _, _ := procCreateWindowExW.Call(
		wsExToolWindow|wsExNoActivate,
		uintptr(unsafe.Pointer(className)),
		0,
		wsPopup,
		uintptr(parkX), uintptr(parkY),
		uintptr(size.X), uintptr(size.Y),
		0, 0, instance, 0,
	)
	if hwnd == 0 {
		return 0
	}

	procShowWindow.Call(hwnd, swShowNoActivate)
	return hwnd
}

func moveHostWindow(hwnd uintptr, size image.Point) {
	parkX, parkY := hostParkX, hostParkY
	procSetWindowPos.Call(hwnd, 0,
		uintptr(parkX), uintptr(parkY),
		uintptr(size.X), uintptr(size.Y),
		swpNoZOrder|swpNoActivate)
	procShowWindow.Call(hwnd, swShowNoActivate)
}

// dwmSurface is a hidden host window with a live DWM thumbnail of the source
// window, cropped and scaled so the Frame Grabber reads a small buffer
// containing exactly the rule's region.
type dwmSurface struct {
	host             uintptr
	hostSize         image.Point
	thumbnail        uintptr
	registeredSource uintptr
}

// Prepare validates inputs, sizes the host window, links (or relinks) the
// thumbnail and synchronously flushes the compositor so a fresh frame exists
// before pixels are read.
func (s *dwmSurface) Prepare(source uintptr, crop image.Rectangle, target image.Point) string {
	if source == 0 || !isWindow(source) {
		return "source_window_invalid"
	}
	if crop.Dx() <= 0 || crop.Dy() <= 0 {
		return "source_region_invalid"
	}
	if target.X <= 0 || target.Y <= 0 {
		return "capture_size_invalid"
	}

	if s.host == 0 {
		s.host = createHostWindow(image.Point{X: 64, Y: 64})
		if s.host == 0 || !isWindow(s.host) {
			s.Release()
			return "host_window_create_failed"
		}
		s.hostSize = image.Point{X: 64, Y: 64}
	}

	if s.hostSize != target {
		moveHostWindow(s.host, target)
		s.hostSize = target
	}

	if status := s.ensureThumbnail(source); status != "" {
		return status
	}

	var props DWMThumbnailProperties
	props.Flags = dwmTNPRectSource | dwmTNPRectDestination | dwmTNPVisible |
		dwmTNPOpacity | dwmTNPSourceClientAreaOnly
	props.Visible = 1
	props.Opacity = 255
	props.SourceClientAreaOnly = 1
	props.Source = RECT{
		Left:   int32(crop.Min.X),
		Top:    int32(crop.Min.Y),
		Right:  int32(crop.Max.X),
		Bottom: int32(crop.Max.Y),
	}
	props.Destination = RECT{
		Left:   0,
		Top:    0,
		Right:  int32(target.X),
		Bottom: int32(target.Y),
	}

	hr, _, _ := procDwmUpdateThumbnailProperties.Call(s.thumbnail, uintptr(unsafe.Pointer(&props)))
	if int32(hr) < 0 {
		return fmt.Sprintf("DwmUpdateThumbnailProperties:%d", int32(hr))
	}

	procDwmFlush.Call()
	return "ok"
}

// ensureThumbnail reuses the existing registration when it already points at
// the same source window.
func (s *dwmSurface) ensureThumbnail(source uintptr) string {
	if s.thumbnail != 0 && s.registeredSource == source {
		return ""
	}

	s.releaseThumbnail()

	if s.host == 0 || !isWindow(s.host) {
		return "destination_window_invalid"
	}

	var thumb uintptr
	hr, _, _ := procDwmRegisterThumbnail.Call(s.host, source, uintptr(unsafe.Pointer(&thumb)))
	if int32(hr) < 0 || thumb == 0 {
		s.thumbnail = 0
		s.registeredSource = 0
		return fmt.Sprintf("DwmRegisterThumbnail:%d", int32(hr))
	}

	s.thumbnail = thumb
	s.registeredSource = source
	return ""
}

func (s *dwmSurface) releaseThumbnail() {
	if s.thumbnail != 0 {
		procDwmUnregisterThumbnail.Call(s.thumbnail)
		s.thumbnail = 0
	}
	s.registeredSource = 0
}

// Handle is the hidden host window the grabber captures.
func (s *dwmSurface) Handle() uintptr {
	return s.host
}

// Release tears down the thumbnail link and the host window. Safe to call
// repeatedly.
func (s *dwmSurface) Release() {
	s.releaseThumbnail()
	if s.host != 0 {
		procDestroyWindow.Call(s.host)
		s.host = 0
	}
	s.hostSize = image.Point{}
}

// dwmSurfaceManager owns one surface per normalized character key.
type dwmSurfaceManager struct {
	mu       sync.Mutex
	surfaces map[string]*dwmSurface
	logger   zerolog.Logger
}

// NewSurfaceManager creates the DWM-backed capture surface table.
func NewSurfaceManager(logger zerolog.Logger) SurfaceManager {
	return &dwmSurfaceManager{
		surfaces: make(map[string]*dwmSurface),
		logger:   logger,
	}
}

// Ensure returns the surface for a character, creating it lazily. The host
// window itself is only created on first Prepare.
func (m *dwmSurfaceManager) Ensure(character string) Surface {
	key := NormalizeCharacter(character)
	if key == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if surface, ok := m.surfaces[key]; ok {
		return surface
	}

	surface := &dwmSurface{}
	m.surfaces[key] = surface
	m.logger.Debug().Str("character", key).Msg("capture surface created")
	return surface
}

// Prune releases surfaces for characters no longer referenced by any
// enabled rule.
func (m *dwmSurfaceManager) Prune(active map[string]struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, surface := range m.surfaces {
		if _, ok := active[key]; ok {
			continue
		}
		surface.Release()
		delete(m.surfaces, key)
		m.logger.Debug().Str("character", key).Msg("capture surface released")
	}
}

// Clear releases every surface.
func (m *dwmSurfaceManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, surface := range m.surfaces {
		surface.Release()
		delete(m.surfaces, key)
	}
}
