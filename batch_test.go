package stage

import (
	"errors"
	"image/color"
	"testing"
)

// fakeDevice records device calls for session and pass tests.
type fakeDevice struct {
	target     Surface
	targetSets []Surface
	clears     []color.RGBA
	begins     []BatchState
	ends       int
	open       bool
	quads      []Quad

	setTargetErr error
	beginErr     error
	endErr       error
}

func (d *fakeDevice) SetTarget(s Surface) error {
	if d.setTargetErr != nil {
		return d.setTargetErr
	}
	d.targetSets = append(d.targetSets, s)
	d.target = s
	return nil
}

func (d *fakeDevice) Target() Surface { return d.target }

func (d *fakeDevice) Clear(c color.RGBA) { d.clears = append(d.clears, c) }

func (d *fakeDevice) BeginBatch(state BatchState) error {
	if d.beginErr != nil {
		return d.beginErr
	}
	if d.open {
		return ErrBatchOpen
	}
	d.begins = append(d.begins, state)
	d.open = true
	return nil
}

func (d *fakeDevice) Enqueue(q Quad) { d.quads = append(d.quads, q) }

func (d *fakeDevice) EndBatch() error {
	if !d.open {
		return ErrBatchNotOpen
	}
	d.open = false
	if d.endErr != nil {
		return d.endErr
	}
	d.ends++
	return nil
}

func (d *fakeDevice) Resize(int, int) {}
func (d *fakeDevice) Close()          {}

// stubDrawable submits one quad under a fixed config.
type stubDrawable struct {
	cfg   *RenderConfig
	layer int
	drawn int
}

func (s *stubDrawable) RenderConfig() *RenderConfig { return s.cfg }
func (s *stubDrawable) RenderLayer() int            { return s.layer }
func (s *stubDrawable) Draw(b *Batch) {
	s.drawn++
	b.FillRect(0, 0, 1, 1, color.RGBA{A: 255})
}

func TestBatchSessionCoalescesSharedConfig(t *testing.T) {
	dev := &fakeDevice{}
	sess := NewBatchSession(dev)
	cam := NewCamera(100, 100)
	cfg := NewRenderConfig()

	if err := sess.Begin(cam, nil); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := sess.Submit(&stubDrawable{cfg: cfg}); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	if err := sess.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	if got, want := sess.Flushes(), 1; got != want {
		t.Errorf("Flushes() = %d, want %d", got, want)
	}
	if got, want := dev.ends, 1; got != want {
		t.Errorf("device EndBatch count = %d, want %d", got, want)
	}
	if got, want := sess.Submitted(), 10; got != want {
		t.Errorf("Submitted() = %d, want %d", got, want)
	}
}

func TestBatchSessionFlushesPerConfigSwitch(t *testing.T) {
	dev := &fakeDevice{}
	sess := NewBatchSession(dev)
	cam := NewCamera(100, 100)
	cfgA := NewRenderConfig(WithLabel("a"))
	cfgB := NewRenderConfig(WithLabel("b"))

	if err := sess.Begin(cam, nil); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	const n = 4
	for i := 0; i < n; i++ {
		if err := sess.Submit(&stubDrawable{cfg: cfgA}); err != nil {
			t.Fatalf("Submit A: %v", err)
		}
		if err := sess.Submit(&stubDrawable{cfg: cfgB}); err != nil {
			t.Fatalf("Submit B: %v", err)
		}
	}
	if err := sess.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	// 2n submissions alternating between two configs: every submission
	// switches, including the first (the initial bind).
	if got, want := sess.Flushes(), 2*n; got != want {
		t.Errorf("Flushes() = %d, want %d", got, want)
	}
}

func TestBatchSessionIdenticalValuesStillFlush(t *testing.T) {
	// Two configs built from the same options are distinct identities.
	dev := &fakeDevice{}
	sess := NewBatchSession(dev)
	cam := NewCamera(100, 100)
	cfgA := NewRenderConfig(WithBlend(BlendAdditive()))
	cfgB := NewRenderConfig(WithBlend(BlendAdditive()))

	if err := sess.Begin(cam, nil); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for _, cfg := range []*RenderConfig{cfgA, cfgB, cfgA, cfgB} {
		if err := sess.Submit(&stubDrawable{cfg: cfg}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if err := sess.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if got, want := sess.Flushes(), 4; got != want {
		t.Errorf("Flushes() = %d, want %d", got, want)
	}
}

func TestBatchSessionNilConfigKeepsCurrent(t *testing.T) {
	dev := &fakeDevice{}
	sess := NewBatchSession(dev)
	cam := NewCamera(100, 100)
	cfg := NewRenderConfig(WithLabel("explicit"))

	if err := sess.Begin(cam, nil); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := sess.Submit(&stubDrawable{cfg: cfg}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := sess.Submit(&stubDrawable{cfg: nil}); err != nil {
		t.Fatalf("Submit nil config: %v", err)
	}
	if got := sess.ActiveConfig(); got != cfg {
		t.Errorf("ActiveConfig() = %v, want the explicit config, not the default", got.Label())
	}
	if err := sess.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if got, want := sess.Flushes(), 1; got != want {
		t.Errorf("Flushes() = %d, want %d", got, want)
	}
}

func TestBatchSessionLifecycleErrors(t *testing.T) {
	dev := &fakeDevice{}
	sess := NewBatchSession(dev)
	cam := NewCamera(100, 100)

	if err := sess.Submit(&stubDrawable{}); !errors.Is(err, ErrSessionNotOpen) {
		t.Errorf("Submit before Begin: err = %v, want ErrSessionNotOpen", err)
	}
	if err := sess.Begin(cam, nil); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := sess.Begin(cam, nil); !errors.Is(err, ErrSessionOpen) {
		t.Errorf("second Begin: err = %v, want ErrSessionOpen", err)
	}
	if err := sess.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := sess.End(); err != nil {
		t.Errorf("second End: err = %v, want nil (idempotent)", err)
	}
	if err := sess.Submit(&stubDrawable{}); !errors.Is(err, ErrSessionNotOpen) {
		t.Errorf("Submit after End: err = %v, want ErrSessionNotOpen", err)
	}
}

func TestBatchSessionNilCameraLeavesDeviceUntouched(t *testing.T) {
	dev := &fakeDevice{}
	sess := NewBatchSession(dev)
	sess.Target = NewPixmapSurface(8, 8)

	if err := sess.Begin(nil, nil); !errors.Is(err, ErrNoCamera) {
		t.Fatalf("Begin with nil camera: err = %v, want ErrNoCamera", err)
	}
	if len(dev.targetSets) != 0 || len(dev.clears) != 0 {
		t.Errorf("device touched on failed Begin: %d target sets, %d clears",
			len(dev.targetSets), len(dev.clears))
	}
}

func TestBatchSessionUnloadedTarget(t *testing.T) {
	dev := &fakeDevice{}
	sess := NewBatchSession(dev)
	surf := NewPixmapSurface(8, 8)
	surf.Unload()
	sess.Target = surf

	if err := sess.Begin(NewCamera(8, 8), nil); !errors.Is(err, ErrSurfaceUnloaded) {
		t.Fatalf("Begin with unloaded target: err = %v, want ErrSurfaceUnloaded", err)
	}
	if len(dev.targetSets) != 0 {
		t.Errorf("SetTarget called %d times, want 0", len(dev.targetSets))
	}
}

func TestBatchSessionEmptySpanDoesNotFlush(t *testing.T) {
	dev := &fakeDevice{}
	sess := NewBatchSession(dev)

	if err := sess.Begin(NewCamera(8, 8), nil); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := sess.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if got, want := sess.Flushes(), 0; got != want {
		t.Errorf("Flushes() = %d, want %d", got, want)
	}
	if got, want := len(dev.begins), 0; got != want {
		t.Errorf("device BeginBatch count = %d, want %d", got, want)
	}
}

func TestBatchSessionEndRestoresTarget(t *testing.T) {
	surf := NewPixmapSurface(8, 8)

	tests := []struct {
		name    string
		restore bool
		endErr  error
		want    []Surface
	}{
		{"restore enabled", true, nil, []Surface{surf, nil}},
		{"restore disabled", false, nil, []Surface{surf}},
		{"restore survives flush error", true, errors.New("boom"), []Surface{surf, nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeDevice{}
			sess := NewBatchSession(dev)
			sess.Target = surf
			sess.RestoreTarget = tt.restore

			if err := sess.Begin(NewCamera(8, 8), nil); err != nil {
				t.Fatalf("Begin: %v", err)
			}
			if err := sess.Submit(&stubDrawable{}); err != nil {
				t.Fatalf("Submit: %v", err)
			}
			dev.endErr = tt.endErr
			err := sess.End()
			if tt.endErr != nil && err == nil {
				t.Error("End: err = nil, want flush error surfaced")
			}
			if tt.endErr == nil && err != nil {
				t.Errorf("End: %v", err)
			}
			if len(dev.targetSets) != len(tt.want) {
				t.Fatalf("SetTarget calls = %d, want %d", len(dev.targetSets), len(tt.want))
			}
			for i, want := range tt.want {
				if dev.targetSets[i] != want {
					t.Errorf("SetTarget call %d = %v, want %v", i, dev.targetSets[i], want)
				}
			}
		})
	}
}

func TestBatchSessionActivatesOnSwitch(t *testing.T) {
	dev := &fakeDevice{}
	sess := NewBatchSession(dev)
	cam := NewCamera(100, 100)

	var activations []*Camera
	effect := NewEffect("tint", "// wgsl")
	cfg := NewRenderConfig(
		WithEffect(effect),
		WithPrepare(func(c *Camera) { activations = append(activations, c) }))

	if err := sess.Begin(cam, nil); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := sess.Submit(&stubDrawable{cfg: cfg}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if err := sess.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	// The hook fires once on the switch, not per drawable.
	if got, want := len(activations), 1; got != want {
		t.Fatalf("prepare hook ran %d times, want %d", got, want)
	}
	if activations[0] != cam {
		t.Error("prepare hook received wrong camera")
	}
}

func TestBatchSessionReuse(t *testing.T) {
	dev := &fakeDevice{}
	sess := NewBatchSession(dev)
	cam := NewCamera(100, 100)

	for span := 0; span < 3; span++ {
		if err := sess.Begin(cam, nil); err != nil {
			t.Fatalf("Begin span %d: %v", span, err)
		}
		if err := sess.Submit(&stubDrawable{}); err != nil {
			t.Fatalf("Submit span %d: %v", span, err)
		}
		if err := sess.End(); err != nil {
			t.Fatalf("End span %d: %v", span, err)
		}
		if got, want := sess.Flushes(), 1; got != want {
			t.Errorf("span %d: Flushes() = %d, want %d", span, got, want)
		}
	}
}
