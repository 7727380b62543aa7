//go:build windows
// +build windows

package capture

import (
	"image"
	"syscall"
	"unsafe"

	"github.com/rs/zerolog"

	"github.com/eveapm/regionwatch/internal/cv"
)

var (
	user32 = syscall.NewLazyDLL("user32.dll")
	gdi32  = syscall.NewLazyDLL("gdi32.dll")
	dwmapi = syscall.NewLazyDLL("dwmapi.dll")

	procGetDC              = user32.NewProc("GetDC")
	procReleaseDC          = user32.NewProc("ReleaseDC")
	procGetClientRect      = user32.NewProc("GetClientRect")
	procClientToScreen     = user32.NewProc("ClientToScreen")
	procIsWindow           = user32.NewProc("IsWindow")
	procIsIconic           = user32.NewProc("IsIconic")
	procPrintWindow        = user32.NewProc("PrintWindow")
	procCreateCompatibleDC = gdi32.NewProc("CreateCompatibleDC")
	procCreateDIBSection   = gdi32.NewProc("CreateDIBSection")
	procSelectObject       = gdi32.NewProc("SelectObject")
	procBitBlt             = gdi32.NewProc("BitBlt")
	procDeleteDC           = gdi32.NewProc("DeleteDC")
	procDeleteObject       = gdi32.NewProc("DeleteObject")
	procGdiFlush           = gdi32.NewProc("GdiFlush")
)

const (
	SRCCOPY        = 0x00CC0020
	CAPTUREBLT     = 0x40000000
	PW_CLIENTONLY  = 0x00000001
	BI_RGB         = 0
	DIB_RGB_COLORS = 0
)

// RECT structure for Windows API
type RECT struct {
	Left   int32
	Top    int32
	Right  int32
	Bottom int32
}

// POINT structure for Windows API
type POINT struct {
	X int32
	Y int32
}

// BITMAPINFOHEADER structure
type BITMAPINFOHEADER struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

// BITMAPINFO structure
type BITMAPINFO struct {
	BmiHeader BITMAPINFOHEADER
	BmiColors [1]uint32
}

func isWindow(hwnd uintptr) bool {
	ret, _, _ := procIsWindow.Call(hwnd)
	return ret != 0
}

func isIconic(hwnd uintptr) bool {
	ret, _, _ := procIsIconic.Call(hwnd)
	return ret != 0
}

func clientRect(hwnd uintptr) (image.Point, bool) {
	var rect RECT
	ret, _, _ := procGetClientRect.Call(hwnd, uintptr(unsafe.Pointer(&rect)))
	if ret == 0 {
		return image.Point{}, false
	}
	return image.Point{X: int(rect.Right - rect.Left), Y: int(rect.Bottom - rect.Top)}, true
}

// GDIGrabber captures window client areas through GDI. One 32-bpp top-down
// DIB section sized to the client rect is shared across all technique
// attempts of a grab, so a failed technique costs no extra allocation.
type GDIGrabber struct {
	logger zerolog.Logger
}

// NewGDIGrabber creates the GDI-backed frame grabber.
func NewGDIGrabber(logger zerolog.Logger) *GDIGrabber {
	return &GDIGrabber{logger: logger}
}

// Grab captures the client area of a window, trying each allowed technique
// in the order selected by the options and validating every candidate frame
// before accepting it.
func (g *GDIGrabber) Grab(handle uintptr, opts GrabOptions) GrabResult {
	if handle == 0 || !isWindow(handle) || isIconic(handle) {
		return GrabResult{}
	}

	status := "none"

	size, ok := clientRect(handle)
	if !ok || size.X <= 0 || size.Y <= 0 {
		return GrabResult{Method: status}
	}

	session := newGrabSession(handle, size.X, size.Y)
	if session == nil {
		return GrabResult{Method: status}
	}
	defer session.release()

	for _, tech := range techniqueOrder(opts) {
		img, techStatus := session.attempt(tech, opts)
		if img != nil {
			return GrabResult{Image: img, Method: tech.name, OK: true}
		}
		status = techStatus
		g.logger.Trace().Uint64("hwnd", uint64(handle)).Str("status", status).
			Msg("capture technique rejected")
	}

	return GrabResult{Method: status}
}

// technique is one capture strategy blitting into the session buffer.
type technique struct {
	name string
	blit func(*grabSession) string
}

// techniqueOrder builds the fallback chain for the given options. The screen
// copy is never disabled outright; it is the one technique that works across
// compositor layers.
func techniqueOrder(opts GrabOptions) []technique {
	screen := technique{name: methodScreenRect, blit: (*grabSession).blitScreenRect}
	client := technique{name: methodClientDC, blit: (*grabSession).blitClientDC}
	print := technique{name: methodPrintWindow, blit: (*grabSession).blitPrintWindow}

	var order []technique
	if opts.PreferScreenCapture {
		order = append(order, screen)
		if opts.AllowClientDC {
			order = append(order, client)
		}
	} else {
		if opts.AllowClientDC {
			order = append(order, client)
		}
		order = append(order, screen)
	}
	if opts.AllowPrintWindow {
		order = append(order, print)
	}
	return order
}

// grabSession owns the device contexts and the shared DIB buffer for one
// grab.
type grabSession struct {
	hwnd      uintptr
	width     int
	height    int
	screenDC  uintptr
	memDC     uintptr
	dib       uintptr
	oldBitmap uintptr
	bits      unsafe.Pointer
}

func newGrabSession(hwnd uintptr, width, height int) *grabSession {
	screenDC, _, _ := procGetDC.Call(0)
	if screenDC == 0 {
		return nil
	}

	memDC, _, _ := procCreateCompatibleDC.Call(screenDC)
	if memDC == 0 {
		procReleaseDC.Call(0, screenDC)
		return nil
	}

	var bmi BITMAPINFO
	bmi.BmiHeader.Size = uint32(unsafe.Sizeof(bmi.BmiHeader))
	bmi.BmiHeader.Width = int32(width)
	bmi.BmiHeader.Height = -int32(height) // Negative for top-down bitmap
	bmi.BmiHeader.Planes = 1
	bmi.BmiHeader.BitCount = 32
	bmi.BmiHeader.Compression = BI_RGB

	var bits unsafe.Pointer
	dib, _, _ := procCreateDIBSection.Call(
		memDC,
		uintptr(unsafe.Pointer(&bmi)),
		DIB_RGB_COLORS,
		uintptr(unsafe.Pointer(&bits)),
		0, 0,
	)
	if dib == 0 || bits == nil {
		if dib != 0 {
			procDeleteObject.Call(dib)
		}
		procDeleteDC.Call(memDC)
		procReleaseDC.Call(0, screenDC)
		return nil
	}

	oldBitmap, _, _ := procSelectObject.Call(memDC, dib)

	return &grabSession{
		hwnd:      hwnd,
		width:     width,
		height:    height,
		screenDC:  screenDC,
		memDC:     memDC,
		dib:       dib,
		oldBitmap: oldBitmap,
		bits:      bits,
	}
}

func (s *grabSession) release() {
	procSelectObject.Call(s.memDC, s.oldBitmap)
	procDeleteObject.Call(s.dib)
	procDeleteDC.Call(s.memDC)
	procReleaseDC.Call(0, s.screenDC)
}

// attempt runs one technique and validates its frame.
func (s *grabSession) attempt(tech technique, opts GrabOptions) (*image.RGBA, string) {
	if status := tech.blit(s); status != "" {
		return nil, status
	}
	return s.consume(tech.name, opts)
}

func (s *grabSession) blitScreenRect() string {
	var origin POINT
	ret, _, _ := procClientToScreen.Call(s.hwnd, uintptr(unsafe.Pointer(&origin)))
	if ret == 0 {
		return "ClientToScreen:api_fail"
	}

	ret, _, _ = procBitBlt.Call(
		s.memDC,
		0, 0,
		uintptr(s.width), uintptr(s.height),
		s.screenDC,
		uintptr(origin.X), uintptr(origin.Y),
		SRCCOPY|CAPTUREBLT,
	)
	if ret == 0 {
		return methodScreenRect + ":api_fail"
	}
	return ""
}

func (s *grabSession) blitClientDC() string {
	clientDC, _, _ := procGetDC.Call(s.hwnd)
	if clientDC == 0 {
		return "GetDC(hwnd):api_fail"
	}
	defer procReleaseDC.Call(s.hwnd, clientDC)

	ret, _, _ := procBitBlt.Call(
		s.memDC,
		0, 0,
		uintptr(s.width), uintptr(s.height),
		clientDC,
		0, 0,
		SRCCOPY|CAPTUREBLT,
	)
	if ret == 0 {
		return methodClientDC + ":api_fail"
	}
	return ""
}

func (s *grabSession) blitPrintWindow() string {
	ret, _, _ := procPrintWindow.Call(s.hwnd, s.memDC, PW_CLIENTONLY)
	if ret == 0 {
		return methodPrintWindow + ":api_fail"
	}
	return ""
}

// consume copies the DIB buffer into an RGBA image and runs the frame
// validators. Returns the failure status when the frame is rejected.
func (s *grabSession) consume(methodName string, opts GrabOptions) (*image.RGBA, string) {
	procGdiFlush.Call()

	img := s.snapshot()
	if img == nil {
		return nil, methodName + ":null_frame"
	}
	if !opts.AllowSolidBlack && cv.AlmostSolidBlack(img) {
		return nil, methodName + ":black_frame"
	}
	if opts.RejectLowContrast && cv.LowContrastDark(img) {
		return nil, methodName + ":low_contrast_dark_frame"
	}
	return img, ""
}

// snapshot converts the BGRA DIB buffer into a standalone RGBA image.
func (s *grabSession) snapshot() *image.RGBA {
	if s.bits == nil || s.width <= 0 || s.height <= 0 {
		return nil
	}

	buffer := unsafe.Slice((*byte)(s.bits), s.width*s.height*4)
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	for i := 0; i < len(buffer); i += 4 {
		// Windows uses BGRA, Go uses RGBA
		img.Pix[i] = buffer[i+2]
		img.Pix[i+1] = buffer[i+1]
		img.Pix[i+2] = buffer[i]
		img.Pix[i+3] = buffer[i+3]
	}
	return img
}
