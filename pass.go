// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package stage

import (
	"fmt"
	"image/color"
	"log/slog"

	"github.com/gogpu/gputypes"
)

// Pass is one step of a frame. The scheduler executes passes by
// ascending Priority, ties broken by registration order.
type Pass interface {
	// Priority orders the pass within a frame; lower runs first.
	// Negative priorities conventionally mean "before the main scene
	// pass" (offscreen preparation).
	Priority() int

	// Execute renders the scene. overlay enables entity debug drawing
	// for passes constructed with WithDebugOverlay.
	Execute(scene Scene, overlay bool) error

	// BackbufferResized is broadcast to every pass when the default
	// target changes size.
	BackbufferResized(width, height int)

	// Unload releases pass-owned resources. Idempotent.
	Unload()
}

// BasePass carries the state and session plumbing shared by concrete
// passes. Embed it and implement Execute, typically by delegating to
// RenderScene with a filtered drawable slice.
type BasePass struct {
	device   Device
	priority int
	camera   *Camera

	surface         Surface
	ownsSurface     bool
	trackBackbuffer bool

	clearColor    color.RGBA
	clearTarget   bool
	restoreTarget bool
	overlay       bool
	defaultConfig *RenderConfig
	sort          SortMode
	filter        gputypes.FilterMode
	cull          gputypes.CullMode

	session  *BatchSession
	unloaded bool
}

// NewBasePass builds the shared pass core. Most callers want
// NewScenePass or NewLayerPass instead.
func NewBasePass(dev Device, priority int, cam *Camera, opts ...PassOption) *BasePass {
	p := &BasePass{
		device:        dev,
		priority:      priority,
		camera:        cam,
		clearTarget:   true,
		restoreTarget: true,
		filter:        gputypes.FilterModeLinear,
		cull:          gputypes.CullModeNone,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Priority returns the pass priority.
func (p *BasePass) Priority() int { return p.priority }

// Camera returns the pass camera.
func (p *BasePass) Camera() *Camera { return p.camera }

// SetCamera replaces the pass camera.
func (p *BasePass) SetCamera(cam *Camera) { p.camera = cam }

// Surface returns the pass's render target surface, nil when the pass
// renders to the backbuffer.
func (p *BasePass) Surface() Surface { return p.surface }

// BackbufferResized updates the camera viewport and, for passes
// tracking the backbuffer, resizes the surface. Passes bound to a
// fixed-size surface keep their size.
func (p *BasePass) BackbufferResized(width, height int) {
	if p.camera != nil && p.surface == nil {
		p.camera.SetViewport(width, height)
	}
	if p.trackBackbuffer && p.surface != nil {
		if r, ok := p.surface.(Resizable); ok {
			r.Resize(width, height)
			if p.camera != nil {
				p.camera.SetViewport(width, height)
			}
		} else {
			Logger().Warn("pass surface is not resizable",
				slog.Int("priority", p.priority))
		}
	}
}

// Unload releases the owned surface (if any) and drops all surface
// references. Idempotent: a second call is a no-op.
func (p *BasePass) Unload() {
	if p.unloaded {
		return
	}
	p.unloaded = true
	if p.surface != nil && p.ownsSurface {
		p.surface.Unload()
	}
	p.surface = nil
	p.session = nil
}

// RenderScene is the canonical pass body: validate, bind, clear, feed
// the given drawables through a batch session, then optionally run the
// debug overlay.
//
// A nil camera fails with ErrNoCamera before any target binding is
// touched. Target restoration is guaranteed on every exit path,
// including submit errors, via the deferred End.
func (p *BasePass) RenderScene(scene Scene, drawables []Drawable, overlay bool) error {
	if p.device == nil {
		return ErrNoDevice
	}
	if p.camera == nil {
		return ErrNoCamera
	}
	sess := p.session
	if sess == nil {
		sess = NewBatchSession(p.device)
		p.session = sess
	}
	sess.Target = p.surface
	sess.ClearTarget = p.clearTarget
	sess.ClearColor = p.clearColor
	sess.RestoreTarget = p.restoreTarget
	sess.Sort = p.sort
	sess.Filter = p.filter
	sess.Cull = p.cull

	if err := sess.Begin(p.camera, p.defaultConfig); err != nil {
		return err
	}
	// End is idempotent: the defer guarantees target restoration on
	// early returns, the explicit call below surfaces flush errors.
	defer sess.End() //nolint:errcheck

	view := p.camera.Bounds()
	for _, d := range drawables {
		if b, ok := d.(Bounded); ok && !view.Intersects(b.Bounds()) {
			continue
		}
		if err := sess.Submit(d); err != nil {
			return fmt.Errorf("submit drawable: %w", err)
		}
	}
	if err := sess.End(); err != nil {
		return err
	}

	if p.overlay && overlay && scene != nil {
		return p.renderOverlay(scene)
	}
	return nil
}

// renderOverlay runs entity debug hooks in an independent immediate
// batch on whatever target is currently bound. Overlay draws do not
// participate in config coalescing and never count as session flushes.
func (p *BasePass) renderOverlay(scene Scene) error {
	entities := scene.Entities()
	if len(entities) == 0 {
		return nil
	}
	state := BatchState{
		View:         p.camera.ViewMatrix(),
		Sort:         SortImmediate,
		Blend:        BlendAlpha(),
		DepthCompare: gputypes.CompareFunctionAlways,
		Filter:       p.filter,
		Cull:         p.cull,
	}
	if err := p.device.BeginBatch(state); err != nil {
		return fmt.Errorf("open overlay batch: %w", err)
	}
	b := Batch{device: p.device}
	for _, e := range entities {
		if e.DebugDrawEnabled() {
			e.DebugDraw(&b)
		}
	}
	if err := p.device.EndBatch(); err != nil {
		return fmt.Errorf("end overlay batch: %w", err)
	}
	return nil
}

// LastFlushes returns the flush count of the pass's most recent
// session span, 0 before the first execution.
func (p *BasePass) LastFlushes() int {
	if p.session == nil {
		return 0
	}
	return p.session.Flushes()
}

// LastSubmitted returns the drawable count of the most recent span.
func (p *BasePass) LastSubmitted() int {
	if p.session == nil {
		return 0
	}
	return p.session.Submitted()
}

// ScenePass renders every drawable the scene provides, in scene order.
type ScenePass struct {
	BasePass
}

// NewScenePass creates a pass over all scene drawables.
func NewScenePass(dev Device, priority int, cam *Camera, opts ...PassOption) *ScenePass {
	return &ScenePass{BasePass: *NewBasePass(dev, priority, cam, opts...)}
}

// Execute renders scene.Drawables through the pass session.
func (p *ScenePass) Execute(scene Scene, overlay bool) error {
	var drawables []Drawable
	if scene != nil {
		drawables = scene.Drawables()
	}
	return p.RenderScene(scene, drawables, overlay)
}

// LayerPass renders only drawables on a set of render layers,
// preserving scene order within the selection.
type LayerPass struct {
	BasePass
	layers map[int]struct{}
}

// NewLayerPass creates a pass over the given render layers.
func NewLayerPass(dev Device, priority int, cam *Camera, layers []int, opts ...PassOption) *LayerPass {
	set := make(map[int]struct{}, len(layers))
	for _, l := range layers {
		set[l] = struct{}{}
	}
	return &LayerPass{
		BasePass: *NewBasePass(dev, priority, cam, opts...),
		layers:   set,
	}
}

// Execute renders the scene drawables whose layer is in the pass set.
func (p *LayerPass) Execute(scene Scene, overlay bool) error {
	var selected []Drawable
	if scene != nil {
		for _, d := range scene.Drawables() {
			if _, ok := p.layers[d.RenderLayer()]; ok {
				selected = append(selected, d)
			}
		}
	}
	return p.RenderScene(scene, selected, overlay)
}

var (
	_ Pass = (*ScenePass)(nil)
	_ Pass = (*LayerPass)(nil)
)
