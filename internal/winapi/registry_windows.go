//go:build windows
// +build windows

package winapi

import (
	"fmt"
	"image"
	"strings"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/kbinani/screenshot"
	"github.com/rs/zerolog"

	"github.com/eveapm/regionwatch/internal/capture"
)

var (
	user32   = syscall.NewLazyDLL("user32.dll")
	kernel32 = syscall.NewLazyDLL("kernel32.dll")
	psapi    = syscall.NewLazyDLL("psapi.dll")

	procEnumWindows              = user32.NewProc("EnumWindows")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procIsWindow                 = user32.NewProc("IsWindow")
	procIsIconic                 = user32.NewProc("IsIconic")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procGetClientRect            = user32.NewProc("GetClientRect")
	procGetWindowRect            = user32.NewProc("GetWindowRect")
	procGetWindowPlacement       = user32.NewProc("GetWindowPlacement")
	procSetForegroundWindow      = user32.NewProc("SetForegroundWindow")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procSetFocus                 = user32.NewProc("SetFocus")
	procBringWindowToTop         = user32.NewProc("BringWindowToTop")
	procShowWindow               = user32.NewProc("ShowWindow")
	procShowWindowAsync          = user32.NewProc("ShowWindowAsync")
	procAttachThreadInput        = user32.NewProc("AttachThreadInput")

	procOpenProcess         = kernel32.NewProc("OpenProcess")
	procCloseHandle         = kernel32.NewProc("CloseHandle")
	procGetProcessTimes     = kernel32.NewProc("GetProcessTimes")
	procGetCurrentProcessId = kernel32.NewProc("GetCurrentProcessId")
	procGetCurrentThreadId  = kernel32.NewProc("GetCurrentThreadId")

	procGetModuleBaseNameW = psapi.NewProc("GetModuleBaseNameW")
)

const (
	processQueryInformation = 0x0400
	processVMRead           = 0x0010

	swShowMinimized  = 2
	swShowMaximized  = 3
	swShowNoActivate = 4
	swRestore        = 9
	swMaximize       = 3

	windowTitleMax = 256
	maxPath        = 260

	// The process-name cache is swept for dead windows every N refreshes.
	cacheSweepEvery = 10

	// How long an enumeration snapshot stays fresh. All rules of one poll
	// pass share a snapshot; the next pass triggers a new enumeration.
	refreshEvery = 500 * time.Millisecond
)

type rect struct {
	Left   int32
	Top    int32
	Right  int32
	Bottom int32
}

type point struct {
	X int32
	Y int32
}

type windowPlacement struct {
	Length         uint32
	Flags          uint32
	ShowCmd        uint32
	MinPosition    point
	MaxPosition    point
	NormalPosition rect
}

type filetime struct {
	LowDateTime  uint32
	HighDateTime uint32
}

// Registry enumerates top-level client windows and resolves character names
// to window handles. It implements capture.WindowResolver.
type Registry struct {
	mu           sync.Mutex
	allowed      map[string]struct{}
	nameCache    map[uintptr]string
	windows      []CharacterWindow
	lastRefresh  time.Time
	refreshCount int
	ownPID       uint32
	enumCallback uintptr
	logger       zerolog.Logger
}

// NewRegistry creates a registry watching windows owned by the given process
// base names (case-insensitive). The registry's own process is never listed.
func NewRegistry(processNames []string, logger zerolog.Logger) *Registry {
	ownPID, _, _ := procGetCurrentProcessId.Call()
	r := &Registry{
		allowed:   normalizeProcessNames(processNames),
		nameCache: make(map[uintptr]string),
		ownPID:    uint32(ownPID),
		logger:    logger,
	}
	// One callback for the registry's lifetime; NewCallback allocations are
	// never released.
	r.enumCallback = syscall.NewCallback(func(hwnd, _ uintptr) uintptr {
		r.visit(hwnd)
		return 1
	})
	return r
}

// SetProcessNames replaces the allowed process list, for settings reloads.
func (r *Registry) SetProcessNames(processNames []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allowed = normalizeProcessNames(processNames)
	r.lastRefresh = time.Time{}
}

// Refresh enumerates windows now and returns the new snapshot.
func (r *Registry) Refresh() []CharacterWindow {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked()
	return r.snapshotLocked()
}

// Windows returns the current snapshot, refreshing it when stale.
func (r *Registry) Windows() []CharacterWindow {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureFreshLocked()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() []CharacterWindow {
	out := make([]CharacterWindow, len(r.windows))
	copy(out, r.windows)
	return out
}

func (r *Registry) ensureFreshLocked() {
	if time.Since(r.lastRefresh) < refreshEvery {
		return
	}
	r.refreshLocked()
}

func (r *Registry) refreshLocked() {
	r.refreshCount++
	if r.refreshCount%cacheSweepEvery == 0 {
		for hwnd := range r.nameCache {
			if !isWindow(hwnd) {
				delete(r.nameCache, hwnd)
			}
		}
	}

	r.windows = r.windows[:0]
	// EnumWindows is synchronous; visit runs on this goroutine before Call
	// returns, under the mutex already held here.
	procEnumWindows.Call(r.enumCallback, 0)
	SortWindows(r.windows)
	r.lastRefresh = time.Now()
}

// visit filters one enumerated window. Called only from refreshLocked via the
// enumeration callback, so the registry mutex is already held.
func (r *Registry) visit(hwnd uintptr) {
	visible, _, _ := procIsWindowVisible.Call(hwnd)
	if visible == 0 {
		return
	}

	title := windowTitle(hwnd)
	if title == "" {
		return
	}

	var pid uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if pid == 0 || pid == r.ownPID {
		return
	}

	name, ok := r.nameCache[hwnd]
	if !ok {
		name = processBaseName(pid)
		r.nameCache[hwnd] = name
	}
	if _, allowed := r.allowed[strings.ToLower(name)]; !allowed {
		return
	}

	r.windows = append(r.windows, CharacterWindow{
		Title:     title,
		Character: CharacterFromTitle(title),
		Handle:    hwnd,
		PID:       pid,
		Launched:  processStartTime(pid),
	})
}

// Resolve maps a character name to a live window handle, exact match first,
// then case-insensitive, against extracted character names and full titles.
func (r *Registry) Resolve(character string) (uintptr, error) {
	character = strings.TrimSpace(character)
	if character == "" {
		return 0, capture.ErrWindowNotFound
	}

	r.mu.Lock()
	r.ensureFreshLocked()
	var handle uintptr
	for i := range r.windows {
		w := &r.windows[i]
		if w.Character == character || w.Title == character {
			handle = w.Handle
			break
		}
	}
	if handle == 0 {
		for i := range r.windows {
			w := &r.windows[i]
			if strings.EqualFold(w.Character, character) || strings.EqualFold(w.Title, character) {
				handle = w.Handle
				break
			}
		}
	}
	r.mu.Unlock()

	if handle == 0 {
		return 0, capture.ErrWindowNotFound
	}
	if !isWindow(handle) || isIconic(handle) {
		return 0, capture.ErrWindowUnavailable
	}
	return handle, nil
}

// ClientSize returns the window's client-area size, or the zero point when
// it cannot be read.
func (r *Registry) ClientSize(handle uintptr) image.Point {
	var rc rect
	ret, _, _ := procGetClientRect.Call(handle, uintptr(unsafe.Pointer(&rc)))
	if ret == 0 {
		return image.Point{}
	}
	return image.Point{
		X: int(rc.Right - rc.Left),
		Y: int(rc.Bottom - rc.Top),
	}
}

// Activate restores and foregrounds a window. Focus-stealing prevention can
// reject the first attempt, so a failed attempt retries with the input queue
// of the current foreground thread attached.
func (r *Registry) Activate(handle uintptr) error {
	if handle == 0 || !isWindow(handle) {
		return fmt.Errorf("window %#x is gone", handle)
	}

	var placement windowPlacement
	placement.Length = uint32(unsafe.Sizeof(placement))
	ret, _, _ := procGetWindowPlacement.Call(handle, uintptr(unsafe.Pointer(&placement)))
	if ret == 0 {
		return fmt.Errorf("failed to read window placement for %#x", handle)
	}

	wasMinimized := placement.ShowCmd == swShowMinimized
	wasMaximized := placement.ShowCmd == swShowMaximized

	// Restore without activating first so the taskbar does not flash, then
	// give the window a moment before it takes focus.
	if wasMinimized {
		procShowWindowAsync.Call(handle, swShowNoActivate)
		time.Sleep(30 * time.Millisecond)
	}

	procSetForegroundWindow.Call(handle)
	procSetFocus.Call(handle)

	if foreground, _, _ := procGetForegroundWindow.Call(); foreground != handle {
		r.logger.Debug().
			Uint64("handle", uint64(handle)).
			Msg("first activation attempt rejected, retrying with thread attachment")

		var foregroundThread uintptr
		if foreground != 0 {
			foregroundThread, _, _ = procGetWindowThreadProcessId.Call(foreground, 0)
		}
		thisThread, _, _ := procGetCurrentThreadId.Call()

		attached := false
		if foregroundThread != 0 && foregroundThread != thisThread {
			ret, _, _ := procAttachThreadInput.Call(foregroundThread, thisThread, 1)
			attached = ret != 0
		}

		procBringWindowToTop.Call(handle)
		procSetForegroundWindow.Call(handle)
		procSetFocus.Call(handle)

		if attached {
			procAttachThreadInput.Call(foregroundThread, thisThread, 0)
		}

		if foreground, _, _ := procGetForegroundWindow.Call(); foreground != handle {
			return fmt.Errorf("window %#x refused activation", handle)
		}
	}

	if wasMinimized {
		cmd := uintptr(swRestore)
		if wasMaximized {
			cmd = swShowMaximized
		}
		procShowWindowAsync.Call(handle, cmd)
	} else if wasMaximized {
		// Activation can drop the maximized state; put it back.
		var current windowPlacement
		current.Length = uint32(unsafe.Sizeof(current))
		if ret, _, _ := procGetWindowPlacement.Call(handle, uintptr(unsafe.Pointer(&current))); ret != 0 {
			if current.ShowCmd != swShowMaximized {
				procShowWindow.Call(handle, swMaximize)
			}
		}
	}
	return nil
}

// CaptureWindowRect grabs the window's screen rectangle from the desktop,
// for setup verification. The window must be unoccluded to produce a
// faithful image.
func (r *Registry) CaptureWindowRect(handle uintptr) (*image.RGBA, error) {
	if !isWindow(handle) {
		return nil, capture.ErrWindowUnavailable
	}
	var rc rect
	ret, _, _ := procGetWindowRect.Call(handle, uintptr(unsafe.Pointer(&rc)))
	if ret == 0 {
		return nil, fmt.Errorf("failed to read window rect for %#x", handle)
	}
	bounds := image.Rect(int(rc.Left), int(rc.Top), int(rc.Right), int(rc.Bottom))
	if bounds.Empty() {
		return nil, fmt.Errorf("window %#x has an empty rect", handle)
	}
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screen rect %v: %w", bounds, err)
	}
	return img, nil
}

func isWindow(hwnd uintptr) bool {
	ret, _, _ := procIsWindow.Call(hwnd)
	return ret != 0
}

func isIconic(hwnd uintptr) bool {
	ret, _, _ := procIsIconic.Call(hwnd)
	return ret != 0
}

func windowTitle(hwnd uintptr) string {
	var buf [windowTitleMax]uint16
	length, _, _ := procGetWindowTextW.Call(hwnd,
		uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if length == 0 {
		return ""
	}
	return syscall.UTF16ToString(buf[:length])
}

// processBaseName resolves the executable base name of a process, e.g.
// "exefile.exe". Returns an empty string when the process cannot be opened.
func processBaseName(pid uint32) string {
	handle, _, _ := procOpenProcess.Call(processQueryInformation|processVMRead, 0, uintptr(pid))
	if handle == 0 {
		return ""
	}
	defer procCloseHandle.Call(handle)

	var buf [maxPath]uint16
	length, _, _ := procGetModuleBaseNameW.Call(handle, 0,
		uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if length == 0 {
		return ""
	}
	return syscall.UTF16ToString(buf[:length])
}

var _ capture.WindowResolver = (*Registry)(nil)

// processStartTime reads the process creation time, zero when unavailable.
func processStartTime(pid uint32) time.Time {
	handle, _, _ := procOpenProcess.Call(processQueryInformation, 0, uintptr(pid))
	if handle == 0 {
		return time.Time{}
	}
	defer procCloseHandle.Call(handle)

	var creation, exit, kernel, user filetime
	ret, _, _ := procGetProcessTimes.Call(handle,
		uintptr(unsafe.Pointer(&creation)),
		uintptr(unsafe.Pointer(&exit)),
		uintptr(unsafe.Pointer(&kernel)),
		uintptr(unsafe.Pointer(&user)))
	if ret == 0 {
		return time.Time{}
	}

	// FILETIME is 100ns ticks since 1601-01-01 UTC.
	ticks := uint64(creation.HighDateTime)<<32 | uint64(creation.LowDateTime)
	const epochDelta = 116444736000000000
	if ticks < epochDelta {
		return time.Time{}
	}
	return time.Unix(0, int64(ticks-epochDelta)*100)
}
