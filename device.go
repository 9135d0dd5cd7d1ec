// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package stage

import (
	"image"
	"image/color"

	"github.com/gogpu/gputypes"
)

// SortMode controls how a device orders the quads of one batch before
// issuing them.
type SortMode uint8

const (
	// SortDeferred keeps submission order and issues everything at
	// EndBatch. The default.
	SortDeferred SortMode = iota

	// SortBackToFront sorts by descending Depth at EndBatch.
	SortBackToFront

	// SortFrontToBack sorts by ascending Depth at EndBatch.
	SortFrontToBack

	// SortImmediate issues each quad as it is enqueued. Used by the
	// debug overlay.
	SortImmediate
)

// String returns the sort mode name.
func (m SortMode) String() string {
	switch m {
	case SortDeferred:
		return "deferred"
	case SortBackToFront:
		return "back-to-front"
	case SortFrontToBack:
		return "front-to-back"
	case SortImmediate:
		return "immediate"
	default:
		return "unknown"
	}
}

// Quad is the unit of batched drawing: a world-space rectangle with a
// tint color, an optional image payload, and a depth used only by the
// depth-sorting modes.
type Quad struct {
	X, Y  float32
	W, H  float32
	Depth float32
	Color color.RGBA

	// Image, when non-nil, is blitted into the quad. Nil draws a
	// solid fill with Color.
	Image *image.RGBA
}

// BatchState is the full render-context state a device batch runs
// under, fixed at BeginBatch. The state travels with the batch rather
// than living as device globals, so sessions know exactly when device
// state changes.
type BatchState struct {
	View         Affine
	Sort         SortMode
	Blend        BlendState
	DepthCompare gputypes.CompareFunction
	DepthWrite   bool
	Effect       *Effect
	Filter       gputypes.FilterMode
	Cull         gputypes.CullMode
}

// Device is the rendering backend boundary: a current-target binding
// plus a single batch accumulator. Devices are not safe for concurrent
// use; the scheduler runs passes strictly sequentially.
//
// Target binding is sticky. SetTarget(nil) restores the default
// backbuffer. Binding an unloaded surface fails with
// ErrSurfaceUnloaded and leaves the previous binding in place.
type Device interface {
	// SetTarget binds s as the render target, or the default
	// backbuffer when s is nil.
	SetTarget(s Surface) error

	// Target returns the bound surface, or nil for the backbuffer.
	Target() Surface

	// Clear fills the bound target with c. GPU devices may fold the
	// clear into the next batch's load op.
	Clear(c color.RGBA)

	// BeginBatch opens the batch accumulator under the given state.
	BeginBatch(state BatchState) error

	// Enqueue adds a quad to the open batch. Outside a batch the quad
	// is dropped with a warning; sessions guard against this.
	Enqueue(q Quad)

	// EndBatch issues the accumulated quads and closes the batch.
	EndBatch() error

	// Resize resizes the default backbuffer. Bound offscreen surfaces
	// are unaffected.
	Resize(width, height int)

	// Close releases device resources. The device is unusable after.
	Close()
}
