// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package stage

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"slices"

	"github.com/gogpu/gputypes"
	xdraw "golang.org/x/image/draw"
)

// SoftwareDevice is the CPU rendering backend: an image.RGBA
// backbuffer, PixmapSurface offscreen targets, and quad composition
// through x/image/draw. It supports the alpha, premultiplied, additive
// and opaque blend presets; other blend states fall back to alpha.
// Effects are ignored (logged once per batch at debug level).
//
// The software device backs tests, headless rendering and the demo
// binary. It registers itself under BackendSoftware.
type SoftwareDevice struct {
	backbuffer *image.RGBA
	target     *PixmapSurface

	state   BatchState
	quads   []Quad
	open    bool
	batches int
	closed  bool
}

// NewSoftwareDevice creates a software device with a w x h backbuffer.
func NewSoftwareDevice(width, height int) *SoftwareDevice {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &SoftwareDevice{
		backbuffer: image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

func init() {
	RegisterBackend(BackendSoftware, func(width, height int) (Device, error) {
		return NewSoftwareDevice(width, height), nil
	})
}

// Backbuffer returns the default target's live pixels.
func (d *SoftwareDevice) Backbuffer() *image.RGBA { return d.backbuffer }

// SetTarget binds a PixmapSurface, or the backbuffer when s is nil.
// Surfaces of other device families are rejected, and an unloaded
// surface leaves the previous binding untouched.
func (d *SoftwareDevice) SetTarget(s Surface) error {
	if s == nil {
		d.target = nil
		return nil
	}
	ps, ok := s.(*PixmapSurface)
	if !ok {
		return fmt.Errorf("%w: %T", ErrIncompatibleSurface, s)
	}
	if ps.Unloaded() {
		return ErrSurfaceUnloaded
	}
	d.target = ps
	return nil
}

// Target returns the bound surface, nil for the backbuffer.
func (d *SoftwareDevice) Target() Surface {
	if d.target == nil {
		return nil
	}
	return d.target
}

// dst returns the pixels of the bound target.
func (d *SoftwareDevice) dst() *image.RGBA {
	if d.target != nil && d.target.Image() != nil {
		return d.target.Image()
	}
	return d.backbuffer
}

// Clear fills the bound target with c.
func (d *SoftwareDevice) Clear(c color.RGBA) {
	dst := d.dst()
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, xdraw.Src)
}

// BeginBatch opens the accumulator under state.
func (d *SoftwareDevice) BeginBatch(state BatchState) error {
	if d.open {
		return ErrBatchOpen
	}
	if state.Effect != nil {
		Logger().Debug("software device ignores effect",
			slog.String("effect", state.Effect.Label()))
	}
	d.state = state
	d.quads = d.quads[:0]
	d.open = true
	return nil
}

// Enqueue adds a quad, or draws it immediately under SortImmediate.
// Quads enqueued outside a batch are dropped.
func (d *SoftwareDevice) Enqueue(q Quad) {
	if !d.open {
		Logger().Warn("quad enqueued outside batch, dropped")
		return
	}
	if d.state.Sort == SortImmediate {
		d.drawQuad(q)
		return
	}
	d.quads = append(d.quads, q)
}

// EndBatch sorts (per the batch sort mode) and composites the
// accumulated quads, then closes the batch.
func (d *SoftwareDevice) EndBatch() error {
	if !d.open {
		return ErrBatchNotOpen
	}
	switch d.state.Sort {
	case SortBackToFront:
		slices.SortStableFunc(d.quads, func(a, b Quad) int {
			switch {
			case a.Depth > b.Depth:
				return -1
			case a.Depth < b.Depth:
				return 1
			}
			return 0
		})
	case SortFrontToBack:
		slices.SortStableFunc(d.quads, func(a, b Quad) int {
			switch {
			case a.Depth < b.Depth:
				return -1
			case a.Depth > b.Depth:
				return 1
			}
			return 0
		})
	}
	for _, q := range d.quads {
		d.drawQuad(q)
	}
	d.quads = d.quads[:0]
	d.open = false
	d.batches++
	return nil
}

// Batches returns the total number of completed batches. Exposed for
// diagnostics and tests.
func (d *SoftwareDevice) Batches() int { return d.batches }

// drawQuad maps the quad through the batch view matrix and composites
// it into the destination. Rotated views rasterize as the transformed
// quad's AABB.
func (d *SoftwareDevice) drawQuad(q Quad) {
	dst := d.dst()
	rect := d.destRect(q)
	if rect.Empty() {
		return
	}
	if q.Image != nil {
		scaler := xdraw.Scaler(xdraw.ApproxBiLinear)
		if d.state.Filter == gputypes.FilterModeNearest {
			scaler = xdraw.NearestNeighbor
		}
		scaler.Scale(dst, rect, q.Image, q.Image.Bounds(), xdraw.Over, nil)
		return
	}
	switch classifyBlend(d.state.Blend) {
	case blendKindOpaque:
		xdraw.Draw(dst, rect, image.NewUniform(q.Color), image.Point{}, xdraw.Src)
	case blendKindAdditive:
		addFill(dst, rect, q.Color)
	default:
		xdraw.Draw(dst, rect, image.NewUniform(q.Color), image.Point{}, xdraw.Over)
	}
}

// destRect returns the device-space AABB of the transformed quad.
func (d *SoftwareDevice) destRect(q Quad) image.Rectangle {
	m := d.state.View
	x0, y0 := m.TransformPoint(q.X, q.Y)
	x1, y1 := m.TransformPoint(q.X+q.W, q.Y)
	x2, y2 := m.TransformPoint(q.X, q.Y+q.H)
	x3, y3 := m.TransformPoint(q.X+q.W, q.Y+q.H)

	minX := min(min(x0, x1), min(x2, x3))
	maxX := max(max(x0, x1), max(x2, x3))
	minY := min(min(y0, y1), min(y2, y3))
	maxY := max(max(y0, y1), max(y2, y3))

	return image.Rect(
		int(minX+0.5), int(minY+0.5),
		int(maxX+0.5), int(maxY+0.5),
	).Intersect(d.dst().Bounds())
}

type blendKind uint8

const (
	blendKindAlpha blendKind = iota
	blendKindOpaque
	blendKindAdditive
)

// classifyBlend maps a blend state onto the software compositing
// modes. Alpha and premultiplied both composite with Over; the
// distinction only matters on the GPU path.
func classifyBlend(b BlendState) blendKind {
	switch b {
	case BlendOpaque():
		return blendKindOpaque
	case BlendAdditive():
		return blendKindAdditive
	default:
		return blendKindAlpha
	}
}

// addFill composites c additively with channel saturation.
func addFill(dst *image.RGBA, rect image.Rectangle, c color.RGBA) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			p := dst.RGBAAt(x, y)
			p.R = satAdd8(p.R, c.R)
			p.G = satAdd8(p.G, c.G)
			p.B = satAdd8(p.B, c.B)
			p.A = satAdd8(p.A, c.A)
			dst.SetRGBA(x, y, p)
		}
	}
}

func satAdd8(a, b uint8) uint8 {
	s := uint16(a) + uint16(b)
	if s > 255 {
		return 255
	}
	return uint8(s)
}

// Resize reallocates the backbuffer. Contents are discarded; bound
// offscreen surfaces are unaffected.
func (d *SoftwareDevice) Resize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	d.backbuffer = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Close releases the backbuffer. The device is unusable after.
func (d *SoftwareDevice) Close() {
	d.backbuffer = nil
	d.quads = nil
	d.target = nil
	d.closed = true
}

var _ Device = (*SoftwareDevice)(nil)
