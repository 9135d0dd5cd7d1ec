package stage

import (
	"errors"
	"testing"
)

// stubScene serves fixed drawable and entity slices.
type stubScene struct {
	drawables []Drawable
	entities  []Entity
}

func (s *stubScene) Drawables() []Drawable { return s.drawables }
func (s *stubScene) Entities() []Entity    { return s.entities }

// stubEntity records debug-draw calls.
type stubEntity struct {
	enabled bool
	drawn   int
}

func (e *stubEntity) DebugDrawEnabled() bool { return e.enabled }
func (e *stubEntity) DebugDraw(b *Batch)     { e.drawn++ }

// boundedDrawable is a stubDrawable with a world-space extent.
type boundedDrawable struct {
	stubDrawable
	bounds RectF
}

func (d *boundedDrawable) Bounds() RectF { return d.bounds }

func TestScenePassNilCameraLeavesTargetUntouched(t *testing.T) {
	dev := &fakeDevice{}
	surf := NewPixmapSurface(8, 8)
	if err := dev.SetTarget(surf); err != nil {
		t.Fatalf("SetTarget: %v", err)
	}
	dev.targetSets = nil

	pass := NewScenePass(dev, 0, nil)
	err := pass.Execute(&stubScene{drawables: []Drawable{&stubDrawable{}}}, false)
	if !errors.Is(err, ErrNoCamera) {
		t.Fatalf("Execute: err = %v, want ErrNoCamera", err)
	}
	if len(dev.targetSets) != 0 {
		t.Errorf("SetTarget called %d times, want 0", len(dev.targetSets))
	}
	if dev.Target() != surf {
		t.Error("target binding changed by failed pass")
	}
}

func TestScenePassOffscreenRestoresBackbuffer(t *testing.T) {
	dev := &fakeDevice{}
	surf := NewPixmapSurface(16, 16)
	pass := NewScenePass(dev, 0, NewCamera(16, 16), WithSurface(surf))

	scene := &stubScene{drawables: []Drawable{&stubDrawable{}, &stubDrawable{}}}
	if err := pass.Execute(scene, false); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if got, want := len(dev.targetSets), 2; got != want {
		t.Fatalf("SetTarget calls = %d, want %d", got, want)
	}
	if dev.targetSets[0] != surf || dev.targetSets[1] != nil {
		t.Errorf("SetTarget sequence = %v, want [surface, nil]", dev.targetSets)
	}
}

func TestScenePassRestoresOnSubmitError(t *testing.T) {
	dev := &fakeDevice{}
	surf := NewPixmapSurface(16, 16)
	pass := NewScenePass(dev, 0, NewCamera(16, 16), WithSurface(surf))

	// Fail the batch open so the first Submit errors.
	dev.beginErr = errors.New("boom")
	scene := &stubScene{drawables: []Drawable{&stubDrawable{}}}
	if err := pass.Execute(scene, false); err == nil {
		t.Fatal("Execute: err = nil, want submit failure")
	}

	last := dev.targetSets[len(dev.targetSets)-1]
	if last != nil {
		t.Errorf("last SetTarget = %v, want nil (backbuffer restored)", last)
	}
}

func TestScenePassCullsBoundedDrawables(t *testing.T) {
	dev := &fakeDevice{}
	cam := NewCamera(100, 100)
	cam.X, cam.Y = 50, 50
	pass := NewScenePass(dev, 0, cam)

	visible := &boundedDrawable{bounds: RectF{MinX: 40, MinY: 40, MaxX: 60, MaxY: 60}}
	offscreen := &boundedDrawable{bounds: RectF{MinX: 900, MinY: 900, MaxX: 950, MaxY: 950}}
	unbounded := &stubDrawable{}

	scene := &stubScene{drawables: []Drawable{visible, offscreen, unbounded}}
	if err := pass.Execute(scene, false); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if visible.drawn != 1 {
		t.Errorf("visible drawable drawn %d times, want 1", visible.drawn)
	}
	if offscreen.drawn != 0 {
		t.Errorf("offscreen drawable drawn %d times, want 0", offscreen.drawn)
	}
	if unbounded.drawn != 1 {
		t.Errorf("unbounded drawable drawn %d times, want 1", unbounded.drawn)
	}
}

func TestScenePassDebugOverlayGating(t *testing.T) {
	tests := []struct {
		name        string
		passOverlay bool
		execOverlay bool
		wantDrawn   int
	}{
		{"both enabled", true, true, 1},
		{"pass only", true, false, 0},
		{"frame only", false, true, 0},
		{"neither", false, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeDevice{}
			var opts []PassOption
			if tt.passOverlay {
				opts = append(opts, WithDebugOverlay())
			}
			pass := NewScenePass(dev, 0, NewCamera(32, 32), opts...)

			entity := &stubEntity{enabled: true}
			disabled := &stubEntity{enabled: false}
			scene := &stubScene{
				drawables: []Drawable{&stubDrawable{}},
				entities:  []Entity{entity, disabled},
			}
			if err := pass.Execute(scene, tt.execOverlay); err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if entity.drawn != tt.wantDrawn {
				t.Errorf("entity drawn %d times, want %d", entity.drawn, tt.wantDrawn)
			}
			if disabled.drawn != 0 {
				t.Errorf("disabled entity drawn %d times, want 0", disabled.drawn)
			}
		})
	}
}

func TestScenePassOverlayUsesImmediateBatch(t *testing.T) {
	dev := &fakeDevice{}
	pass := NewScenePass(dev, 0, NewCamera(32, 32), WithDebugOverlay())
	scene := &stubScene{
		drawables: []Drawable{&stubDrawable{cfg: NewRenderConfig()}},
		entities:  []Entity{&stubEntity{enabled: true}},
	}
	if err := pass.Execute(scene, true); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// One scene batch plus one overlay batch; the overlay batch is
	// immediate and does not count as a session flush.
	if got, want := len(dev.begins), 2; got != want {
		t.Fatalf("device BeginBatch count = %d, want %d", got, want)
	}
	if got, want := dev.begins[1].Sort, SortImmediate; got != want {
		t.Errorf("overlay batch sort = %v, want %v", got, want)
	}
	if got, want := pass.LastFlushes(), 1; got != want {
		t.Errorf("LastFlushes() = %d, want %d", got, want)
	}
}

func TestLayerPassFiltersAndPreservesOrder(t *testing.T) {
	dev := &fakeDevice{}
	pass := NewLayerPass(dev, 0, NewCamera(32, 32), []int{0, 2})

	var order []int
	mk := func(layer int) Drawable {
		return &orderedDrawable{layer: layer, order: &order}
	}
	scene := &stubScene{drawables: []Drawable{mk(0), mk(1), mk(2), mk(0), mk(3)}}
	if err := pass.Execute(scene, false); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []int{0, 2, 0}
	if len(order) != len(want) {
		t.Fatalf("drew layers %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("drew layers %v, want %v", order, want)
		}
	}
}

// orderedDrawable records its layer into a shared draw log.
type orderedDrawable struct {
	layer int
	order *[]int
}

func (d *orderedDrawable) RenderConfig() *RenderConfig { return nil }
func (d *orderedDrawable) RenderLayer() int            { return d.layer }
func (d *orderedDrawable) Draw(*Batch)                 { *d.order = append(*d.order, d.layer) }

func TestPassUnloadIdempotent(t *testing.T) {
	t.Run("owned surface", func(t *testing.T) {
		surf := NewPixmapSurface(8, 8)
		pass := NewScenePass(&fakeDevice{}, 0, NewCamera(8, 8), WithOwnedSurface(surf))
		pass.Unload()
		if !surf.Unloaded() {
			t.Error("owned surface not unloaded")
		}
		pass.Unload() // second call is a no-op
		if pass.Surface() != nil {
			t.Error("Surface() != nil after Unload")
		}
	})
	t.Run("shared surface", func(t *testing.T) {
		surf := NewPixmapSurface(8, 8)
		pass := NewScenePass(&fakeDevice{}, 0, NewCamera(8, 8), WithSurface(surf))
		pass.Unload()
		if surf.Unloaded() {
			t.Error("shared surface unloaded by pass")
		}
		if pass.Surface() != nil {
			t.Error("Surface() != nil after Unload")
		}
	})
}

func TestPassExecuteWithUnloadedSurface(t *testing.T) {
	dev := &fakeDevice{}
	surf := NewPixmapSurface(8, 8)
	pass := NewScenePass(dev, 0, NewCamera(8, 8), WithSurface(surf))
	surf.Unload()

	err := pass.Execute(&stubScene{drawables: []Drawable{&stubDrawable{}}}, false)
	if !errors.Is(err, ErrSurfaceUnloaded) {
		t.Fatalf("Execute: err = %v, want ErrSurfaceUnloaded", err)
	}
}

func TestBackbufferResized(t *testing.T) {
	t.Run("backbuffer pass follows size", func(t *testing.T) {
		cam := NewCamera(100, 100)
		pass := NewScenePass(&fakeDevice{}, 0, cam)
		pass.BackbufferResized(320, 200)
		w, h := cam.Viewport()
		if w != 320 || h != 200 {
			t.Errorf("viewport = %dx%d, want 320x200", w, h)
		}
	})
	t.Run("fixed surface keeps size", func(t *testing.T) {
		cam := NewCamera(64, 64)
		surf := NewPixmapSurface(64, 64)
		pass := NewScenePass(&fakeDevice{}, 0, cam, WithSurface(surf))
		pass.BackbufferResized(320, 200)
		if got := surf.Width(); got != 64 {
			t.Errorf("surface width = %d, want 64", got)
		}
		if w, _ := cam.Viewport(); w != 64 {
			t.Errorf("camera viewport width = %d, want 64", w)
		}
	})
	t.Run("tracking surface resizes", func(t *testing.T) {
		cam := NewCamera(64, 64)
		surf := NewPixmapSurface(64, 64)
		pass := NewScenePass(&fakeDevice{}, 0, cam,
			WithSurface(surf), WithBackbufferSizedSurface())
		pass.BackbufferResized(320, 200)
		if got := surf.Width(); got != 320 {
			t.Errorf("surface width = %d, want 320", got)
		}
	})
}
