package capture

import (
	"fmt"
	"image"
	"strings"
	"testing"

	"github.com/eveapm/regionwatch/internal/logging"
)

type fakeResolver struct {
	handles map[string]uintptr
	sizes   map[uintptr]image.Point
}

func (f *fakeResolver) Resolve(character string) (uintptr, error) {
	if h, ok := f.handles[NormalizeCharacter(character)]; ok {
		return h, nil
	}
	return 0, ErrWindowNotFound
}

func (f *fakeResolver) ClientSize(handle uintptr) image.Point {
	return f.sizes[handle]
}

type prepareCall struct {
	source uintptr
	crop   image.Rectangle
	target image.Point
}

type fakeSurface struct {
	handle   uintptr
	status   string
	prepared []prepareCall
}

func (s *fakeSurface) Prepare(source uintptr, crop image.Rectangle, target image.Point) string {
	s.prepared = append(s.prepared, prepareCall{source: source, crop: crop, target: target})
	return s.status
}

func (s *fakeSurface) Handle() uintptr { return s.handle }

func (s *fakeSurface) Release() {}

type fakeSurfaceManager struct {
	surfaces map[string]*fakeSurface
}

func (m *fakeSurfaceManager) Ensure(character string) Surface {
	s, ok := m.surfaces[NormalizeCharacter(character)]
	if !ok {
		return nil
	}
	return s
}

func (m *fakeSurfaceManager) Prune(active map[string]struct{}) {}

func (m *fakeSurfaceManager) Clear() {}

type grabCall struct {
	handle uintptr
	opts   GrabOptions
}

type fakeGrabber struct {
	frames map[uintptr]*image.RGBA
	fail   map[uintptr]string
	method string
	calls  []grabCall
}

func (g *fakeGrabber) Grab(handle uintptr, opts GrabOptions) GrabResult {
	g.calls = append(g.calls, grabCall{handle: handle, opts: opts})
	if status, ok := g.fail[handle]; ok {
		return GrabResult{Method: status}
	}
	if img, ok := g.frames[handle]; ok {
		return GrabResult{Image: img, Method: g.method, OK: true}
	}
	return GrabResult{Method: "null_frame"}
}

type fakeThumbnail struct {
	handle    uintptr
	crop      Region
	size      image.Point
	refreshes int
}

func (t *fakeThumbnail) Handle() uintptr { return t.handle }

func (t *fakeThumbnail) ForceRefresh() { t.refreshes++ }

func (t *fakeThumbnail) CropRect() Region { return t.crop }

func (t *fakeThumbnail) Size() image.Point { return t.size }

type fakeThumbnailProvider struct {
	thumbs map[string]*fakeThumbnail
}

func (p *fakeThumbnailProvider) Find(character string) (PreviewThumbnail, bool) {
	t, ok := p.thumbs[NormalizeCharacter(character)]
	if !ok {
		return nil, false
	}
	return t, true
}

type traceRecorder struct {
	lines []string
}

func (r *traceRecorder) sink(format string, args ...interface{}) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *traceRecorder) contains(sub string) bool {
	for _, line := range r.lines {
		if strings.Contains(line, sub) {
			return true
		}
	}
	return false
}

func TestCaptureForRuleInternalPath(t *testing.T) {
	resolver := &fakeResolver{
		handles: map[string]uintptr{"pilot alpha": 100},
		sizes:   map[uintptr]image.Point{100: {X: 400, Y: 400}},
	}
	surface := &fakeSurface{handle: 900, status: "ok"}
	surfaces := &fakeSurfaceManager{surfaces: map[string]*fakeSurface{"pilot alpha": surface}}
	grabber := &fakeGrabber{
		frames: map[uintptr]*image.RGBA{900: image.NewRGBA(image.Rect(0, 0, 192, 192))},
		method: methodClientDC,
	}

	orch := NewOrchestrator(resolver, surfaces, grabber, logging.Nop())
	res := orch.CaptureForRule("rule-1", "Pilot Alpha", Region{X: 0.25, Y: 0.25, W: 0.5, H: 0.5})

	if !res.OK {
		t.Fatalf("capture failed with status %q", res.Method)
	}
	want := "internal_cropped_thumbnail:BitBlt(clientDC):192x192"
	if res.Method != want {
		t.Errorf("method tag = %q, want %q", res.Method, want)
	}
	if len(surface.prepared) != 1 {
		t.Fatalf("surface prepared %d times, want 1", len(surface.prepared))
	}
	prep := surface.prepared[0]
	if prep.source != 100 {
		t.Errorf("prepared with source handle %d, want 100", prep.source)
	}
	if want := image.Rect(100, 100, 300, 300); prep.crop != want {
		t.Errorf("prepared with crop %v, want %v", prep.crop, want)
	}
	if want := (image.Point{X: 192, Y: 192}); prep.target != want {
		t.Errorf("prepared with target %v, want %v", prep.target, want)
	}
	if len(grabber.calls) != 1 {
		t.Fatalf("grabber called %d times, want 1", len(grabber.calls))
	}
	call := grabber.calls[0]
	if call.handle != 900 {
		t.Errorf("grabbed handle %d, want surface handle 900", call.handle)
	}
	if !call.opts.AllowClientDC || call.opts.PreferScreenCapture || call.opts.AllowPrintWindow {
		t.Errorf("internal grab options = %+v, want client DC only", call.opts)
	}
}

func TestCaptureForRuleFallbackPath(t *testing.T) {
	resolver := &fakeResolver{
		handles: map[string]uintptr{"pilot alpha": 100},
		sizes:   map[uintptr]image.Point{100: {X: 400, Y: 400}},
	}
	surface := &fakeSurface{handle: 900, status: "DwmRegisterThumbnail:-2147024809"}
	surfaces := &fakeSurfaceManager{surfaces: map[string]*fakeSurface{"pilot alpha": surface}}
	thumb := &fakeThumbnail{
		handle: 901,
		crop:   Region{X: 0, Y: 0, W: 1, H: 1},
		size:   image.Point{X: 200, Y: 200},
	}
	previews := &fakeThumbnailProvider{thumbs: map[string]*fakeThumbnail{"pilot alpha": thumb}}
	grabber := &fakeGrabber{
		frames: map[uintptr]*image.RGBA{901: image.NewRGBA(image.Rect(0, 0, 200, 200))},
		method: methodScreenRect,
	}
	traces := &traceRecorder{}

	orch := NewOrchestrator(resolver, surfaces, grabber, logging.Nop()).
		WithPreviews(previews).
		WithDebugSink(traces.sink)
	res := orch.CaptureForRule("rule-1", "Pilot Alpha", Region{X: 0.25, Y: 0.25, W: 0.5, H: 0.5})

	if !res.OK {
		t.Fatalf("capture failed with status %q", res.Method)
	}
	want := "thumbnail_hwnd_capture:BitBlt(screenDC_clientRect)"
	if res.Method != want {
		t.Errorf("method tag = %q, want %q", res.Method, want)
	}
	if res.Image == nil {
		t.Fatal("result has no image")
	}
	if b := res.Image.Bounds(); b.Dx() != 100 || b.Dy() != 100 {
		t.Errorf("cropped image is %dx%d, want 100x100", b.Dx(), b.Dy())
	}
	if thumb.refreshes != 1 {
		t.Errorf("thumbnail refreshed %d times, want 1", thumb.refreshes)
	}
	if len(grabber.calls) != 1 {
		t.Fatalf("grabber called %d times, want 1", len(grabber.calls))
	}
	call := grabber.calls[0]
	if call.handle != 901 {
		t.Errorf("grabbed handle %d, want thumbnail handle 901", call.handle)
	}
	if !call.opts.PreferScreenCapture || call.opts.AllowClientDC {
		t.Errorf("fallback grab options = %+v, want screen capture preferred", call.opts)
	}
	if !traces.contains("internal cropped thumbnail capture failed: surface_prepare_failed:DwmRegisterThumbnail:-2147024809") {
		t.Errorf("primary failure not traced; traces: %v", traces.lines)
	}
}

func TestCaptureForRuleFailureStatuses(t *testing.T) {
	tests := []struct {
		name       string
		resolver   *fakeResolver
		surfaces   *fakeSurfaceManager
		grabber    *fakeGrabber
		region     Region
		wantTraced string
		wantFinal  string
	}{
		{
			name:       "window unavailable",
			resolver:   &fakeResolver{},
			surfaces:   &fakeSurfaceManager{},
			grabber:    &fakeGrabber{},
			region:     Region{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
			wantTraced: "source_window_unavailable",
			wantFinal:  "no_thumbnail_widget",
		},
		{
			name: "client size unavailable",
			resolver: &fakeResolver{
				handles: map[string]uintptr{"pilot alpha": 100},
			},
			surfaces:   &fakeSurfaceManager{},
			grabber:    &fakeGrabber{},
			region:     Region{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
			wantTraced: "source_client_size_unavailable",
			wantFinal:  "no_thumbnail_widget",
		},
		{
			name: "region too small",
			resolver: &fakeResolver{
				handles: map[string]uintptr{"pilot alpha": 100},
				sizes:   map[uintptr]image.Point{100: {X: 400, Y: 400}},
			},
			surfaces:   &fakeSurfaceManager{},
			grabber:    &fakeGrabber{},
			region:     Region{X: 0, Y: 0, W: 0.01, H: 0.01},
			wantTraced: "source_region_too_small",
			wantFinal:  "no_thumbnail_widget",
		},
		{
			name: "surface missing",
			resolver: &fakeResolver{
				handles: map[string]uintptr{"pilot alpha": 100},
				sizes:   map[uintptr]image.Point{100: {X: 400, Y: 400}},
			},
			surfaces:   &fakeSurfaceManager{},
			grabber:    &fakeGrabber{},
			region:     Region{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
			wantTraced: "surface_init_failed",
			wantFinal:  "no_thumbnail_widget",
		},
		{
			name: "surface grab rejected",
			resolver: &fakeResolver{
				handles: map[string]uintptr{"pilot alpha": 100},
				sizes:   map[uintptr]image.Point{100: {X: 400, Y: 400}},
			},
			surfaces: &fakeSurfaceManager{surfaces: map[string]*fakeSurface{
				"pilot alpha": {handle: 900, status: "ok"},
			}},
			grabber:    &fakeGrabber{fail: map[uintptr]string{900: "black_frame"}},
			region:     Region{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
			wantTraced: "surface_capture_failed:black_frame",
			wantFinal:  "no_thumbnail_widget",
		},
		{
			name: "captured frame too small",
			resolver: &fakeResolver{
				handles: map[string]uintptr{"pilot alpha": 100},
				sizes:   map[uintptr]image.Point{100: {X: 400, Y: 400}},
			},
			surfaces: &fakeSurfaceManager{surfaces: map[string]*fakeSurface{
				"pilot alpha": {handle: 900, status: "ok"},
			}},
			grabber: &fakeGrabber{
				frames: map[uintptr]*image.RGBA{900: image.NewRGBA(image.Rect(0, 0, 4, 4))},
				method: methodClientDC,
			},
			region:     Region{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
			wantTraced: "captured_frame_too_small",
			wantFinal:  "no_thumbnail_widget",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			traces := &traceRecorder{}
			orch := NewOrchestrator(tt.resolver, tt.surfaces, tt.grabber, logging.Nop()).
				WithDebugSink(traces.sink)

			res := orch.CaptureForRule("rule-1", "Pilot Alpha", tt.region)
			if res.OK {
				t.Fatalf("capture unexpectedly succeeded with tag %q", res.Method)
			}
			if res.Method != tt.wantFinal {
				t.Errorf("final status = %q, want %q", res.Method, tt.wantFinal)
			}
			if !traces.contains(tt.wantTraced) {
				t.Errorf("trace missing %q; traces: %v", tt.wantTraced, traces.lines)
			}
		})
	}
}

func TestCaptureForRuleFallbackMappingEmpty(t *testing.T) {
	resolver := &fakeResolver{
		handles: map[string]uintptr{"pilot alpha": 100},
		sizes:   map[uintptr]image.Point{100: {X: 400, Y: 400}},
	}
	thumb := &fakeThumbnail{
		handle: 901,
		crop:   Region{X: 0, Y: 0, W: 0.25, H: 0.25},
		size:   image.Point{X: 100, Y: 100},
	}
	previews := &fakeThumbnailProvider{thumbs: map[string]*fakeThumbnail{"pilot alpha": thumb}}
	grabber := &fakeGrabber{
		frames: map[uintptr]*image.RGBA{901: image.NewRGBA(image.Rect(0, 0, 100, 100))},
		method: methodScreenRect,
	}

	orch := NewOrchestrator(resolver, &fakeSurfaceManager{}, grabber, logging.Nop()).
		WithPreviews(previews)
	res := orch.CaptureForRule("rule-1", "Pilot Alpha", Region{X: 0.75, Y: 0.75, W: 0.2, H: 0.2})

	if res.OK {
		t.Fatalf("capture unexpectedly succeeded with tag %q", res.Method)
	}
	if res.Method != "thumbnail_mapping_empty" {
		t.Errorf("status = %q, want thumbnail_mapping_empty", res.Method)
	}
}

func TestCaptureForRuleFallbackGrabFailure(t *testing.T) {
	resolver := &fakeResolver{
		handles: map[string]uintptr{"pilot alpha": 100},
		sizes:   map[uintptr]image.Point{100: {X: 400, Y: 400}},
	}
	thumb := &fakeThumbnail{
		handle: 901,
		crop:   Region{X: 0, Y: 0, W: 1, H: 1},
		size:   image.Point{X: 200, Y: 200},
	}
	previews := &fakeThumbnailProvider{thumbs: map[string]*fakeThumbnail{"pilot alpha": thumb}}
	grabber := &fakeGrabber{fail: map[uintptr]string{901: "black_frame"}}

	orch := NewOrchestrator(resolver, &fakeSurfaceManager{}, grabber, logging.Nop()).
		WithPreviews(previews)
	res := orch.CaptureForRule("rule-1", "Pilot Alpha", Region{X: 0.25, Y: 0.25, W: 0.5, H: 0.5})

	if res.OK {
		t.Fatal("capture unexpectedly succeeded")
	}
	if res.Method != "thumbnail_capture_failed:black_frame" {
		t.Errorf("status = %q, want thumbnail_capture_failed:black_frame", res.Method)
	}
}

func TestCaptureForRuleFallbackWithoutClientSize(t *testing.T) {
	// The source window is gone entirely, so the mapping falls back to the
	// captured thumbnail size as the source space.
	resolver := &fakeResolver{}
	thumb := &fakeThumbnail{
		handle: 901,
		crop:   Region{X: 0, Y: 0, W: 1, H: 1},
		size:   image.Point{X: 200, Y: 200},
	}
	previews := &fakeThumbnailProvider{thumbs: map[string]*fakeThumbnail{"pilot alpha": thumb}}
	grabber := &fakeGrabber{
		frames: map[uintptr]*image.RGBA{901: image.NewRGBA(image.Rect(0, 0, 200, 200))},
		method: methodPrintWindow,
	}
	traces := &traceRecorder{}

	orch := NewOrchestrator(resolver, &fakeSurfaceManager{}, grabber, logging.Nop()).
		WithPreviews(previews).
		WithDebugSink(traces.sink)
	res := orch.CaptureForRule("rule-1", "Pilot Alpha", Region{X: 0.25, Y: 0.25, W: 0.5, H: 0.5})

	if !res.OK {
		t.Fatalf("capture failed with status %q", res.Method)
	}
	if want := "thumbnail_hwnd_capture:PrintWindow(PW_CLIENTONLY)"; res.Method != want {
		t.Errorf("method tag = %q, want %q", res.Method, want)
	}
	if b := res.Image.Bounds(); b.Dx() != 100 || b.Dy() != 100 {
		t.Errorf("cropped image is %dx%d, want 100x100", b.Dx(), b.Dy())
	}
	if !traces.contains("using thumbnail size for mapping") {
		t.Errorf("mapping-source fallback not traced; traces: %v", traces.lines)
	}
}
