package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugLogMaxBytes caps the diagnostic log before it is truncated in place.
const DebugLogMaxBytes = 2 * 1024 * 1024

const debugLogName = "region_alert_debug.log"

// DebugLog appends timestamped capture traces to a single file in the debug
// directory. When the file outgrows the cap it is truncated and restarted
// with a rotation marker, so the log never needs external cleanup. Write
// failures are swallowed: diagnostics must never take the monitor down.
type DebugLog struct {
	mu       sync.Mutex
	dir      string
	maxBytes int64
}

// NewDebugLog creates a log writing into dir.
func NewDebugLog(dir string) *DebugLog {
	return &DebugLog{dir: dir, maxBytes: DebugLogMaxBytes}
}

// Path returns the log file's location.
func (l *DebugLog) Path() string {
	return filepath.Join(l.dir, debugLogName)
}

// Printf formats and appends one line. Safe for concurrent use.
func (l *DebugLog) Printf(format string, args ...interface{}) {
	l.write(fmt.Sprintf(format, args...))
}

func (l *DebugLog) write(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return
	}

	path := l.Path()
	if info, err := os.Stat(path); err == nil && info.Size() > l.maxBytes {
		marker := fmt.Sprintf("[%s] log rotated (exceeded %d bytes)\n",
			timestampUTC(), l.maxBytes)
		if err := os.WriteFile(path, []byte(marker), 0644); err != nil {
			return
		}
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	defer file.Close()

	fmt.Fprintf(file, "[%s] %s\n", timestampUTC(), message)
}

func timestampUTC() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
