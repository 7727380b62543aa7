package diagnostics

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nfnt/resize"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	snapshotScale      = 4
	snapshotPadding    = 10
	snapshotTextHeight = 54
)

var fileNameUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeRuleKey makes a rule key usable as a file name fragment: trimmed,
// unsafe runs collapsed to underscores, length capped, never empty.
func SanitizeRuleKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "unnamed"
	}
	key = fileNameUnsafe.ReplaceAllString(key, "_")
	if len(key) > 80 {
		key = key[:80]
	}
	return key
}

// SnapshotWriter saves side-by-side baseline/current comparison images for
// polls worth inspecting. Frames are magnified with nearest-neighbor so the
// coarse diff grid stays visible instead of smearing.
type SnapshotWriter struct {
	mu        sync.Mutex
	dir       string
	retention int
	sequence  uint64
	debugLog  *DebugLog
}

// NewSnapshotWriter creates a writer saving into dir, keeping at most
// retention images. The debug log receives save failures; it may be nil.
func NewSnapshotWriter(dir string, retention int, debugLog *DebugLog) *SnapshotWriter {
	if retention < 1 {
		retention = 1
	}
	return &SnapshotWriter{dir: dir, retention: retention, debugLog: debugLog}
}

// Reset restarts the sequence counter.
func (w *SnapshotWriter) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sequence = 0
}

// PurgeExisting deletes every PNG left over in the snapshot directory and
// restarts the sequence. Called when debug output is switched on so a session
// starts clean.
func (w *SnapshotWriter) PurgeExisting() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sequence = 0

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".png") {
			continue
		}
		os.Remove(filepath.Join(w.dir, entry.Name()))
	}
	return nil
}

// WriteComparison saves baseline and current side by side with a caption
// describing the poll. Returns the written path, or "" when nothing was
// written. Nil frames are skipped silently.
func (w *SnapshotWriter) WriteComparison(ruleKey, character string, baseline, current *image.Gray,
	score float64, threshold int, above, cooling, triggered bool) string {
	if baseline == nil || current == nil {
		return ""
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return ""
	}

	baselineScaled := scaleNearest(baseline)
	currentScaled := scaleNearest(current)

	bw := baselineScaled.Bounds().Dx()
	bh := baselineScaled.Bounds().Dy()
	cw := currentScaled.Bounds().Dx()
	ch := currentScaled.Bounds().Dy()

	width := bw + cw + snapshotPadding*3
	height := maxInt(bh, ch) + snapshotPadding*2 + snapshotTextHeight

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.RGBA{R: 20, G: 20, B: 20, A: 255}), image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(snapshotPadding, snapshotPadding, snapshotPadding+bw, snapshotPadding+bh),
		baselineScaled, baselineScaled.Bounds().Min, draw.Src)
	draw.Draw(canvas, image.Rect(snapshotPadding*2+bw, snapshotPadding, snapshotPadding*2+bw+cw, snapshotPadding+ch),
		currentScaled, currentScaled.Bounds().Min, draw.Src)

	caption := fmt.Sprintf("rule=%s character=%s score=%.3f threshold=%d above=%t cooldown=%t",
		ruleKey, character, score, threshold, above, cooling)
	drawText(canvas, snapshotPadding, bh+snapshotPadding+4, color.RGBA{R: 230, G: 230, B: 230, A: 255}, caption)
	drawText(canvas, snapshotPadding, bh+snapshotPadding+26, color.RGBA{R: 180, G: 180, B: 180, A: 255},
		"Left=baseline, Right=current (preprocessed frames)")

	w.sequence++
	now := time.Now().UTC()
	prefix := ""
	if triggered {
		prefix = "triggered_"
	}
	fileName := fmt.Sprintf("%s%s_%03d_%d_%s.png",
		prefix, now.Format("20060102_150405"), now.Nanosecond()/1e6,
		w.sequence, SanitizeRuleKey(ruleKey))
	fullPath := filepath.Join(w.dir, fileName)

	if err := savePNG(fullPath, canvas); err != nil {
		if w.debugLog != nil {
			w.debugLog.Printf("Failed to save debug image: %s", fullPath)
		}
		return ""
	}

	w.enforceRetention()
	return fullPath
}

func savePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// enforceRetention removes the oldest snapshots beyond the retention bound.
// Caller holds the mutex.
func (w *SnapshotWriter) enforceRetention() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}

	type snapshot struct {
		name    string
		modTime time.Time
	}
	var snapshots []snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".png") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snapshots = append(snapshots, snapshot{name: entry.Name(), modTime: info.ModTime()})
	}

	if len(snapshots) <= w.retention {
		return
	}

	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].modTime.Equal(snapshots[j].modTime) {
			return snapshots[i].name < snapshots[j].name
		}
		return snapshots[i].modTime.Before(snapshots[j].modTime)
	})

	for _, old := range snapshots[:len(snapshots)-w.retention] {
		os.Remove(filepath.Join(w.dir, old.name))
	}
}

func scaleNearest(img *image.Gray) image.Image {
	b := img.Bounds()
	return resize.Resize(uint(b.Dx()*snapshotScale), uint(b.Dy()*snapshotScale), img, resize.NearestNeighbor)
}

func drawText(dst *image.RGBA, x, y int, c color.Color, text string) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y+basicfont.Face7x13.Ascent),
	}
	d.DrawString(text)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
