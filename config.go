// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package stage

import (
	"sync"

	"github.com/gogpu/gputypes"
)

// RenderConfig bundles the pipeline state a batch is issued under:
// blend state, depth compare/write, and an optional effect with a
// pre-draw hook. Configs are immutable after construction and are
// meant to be shared: drawables that point at the same config are
// coalesced into one batch.
//
// Identity is pointer identity. Two configs built from identical
// options are still distinct and submitting them alternately forces a
// flush per switch. Reuse one pointer when you mean one state.
type RenderConfig struct {
	label        string
	blend        BlendState
	depthCompare gputypes.CompareFunction
	depthWrite   bool
	effect       *Effect
	prepare      func(*Camera)
}

// ConfigOption customizes a RenderConfig under construction.
type ConfigOption func(*RenderConfig)

// WithBlend sets the blend state.
func WithBlend(b BlendState) ConfigOption {
	return func(c *RenderConfig) { c.blend = b }
}

// WithDepth sets the depth comparison function and write flag.
func WithDepth(compare gputypes.CompareFunction, write bool) ConfigOption {
	return func(c *RenderConfig) {
		c.depthCompare = compare
		c.depthWrite = write
	}
}

// WithEffect attaches a custom shader effect.
func WithEffect(e *Effect) ConfigOption {
	return func(c *RenderConfig) { c.effect = e }
}

// WithPrepare sets a hook invoked each time the config becomes active
// during a session, before any of its drawables issue draws. The hook
// only fires when the config carries an effect; it is the place to
// push camera-derived uniforms.
func WithPrepare(fn func(*Camera)) ConfigOption {
	return func(c *RenderConfig) { c.prepare = fn }
}

// WithLabel sets a debug label, surfaced in logs and GPU captures.
func WithLabel(label string) ConfigOption {
	return func(c *RenderConfig) { c.label = label }
}

// NewRenderConfig builds an immutable config. Defaults: alpha
// blending, depth compare Always with writes disabled, no effect.
func NewRenderConfig(opts ...ConfigOption) *RenderConfig {
	c := &RenderConfig{
		blend:        BlendAlpha(),
		depthCompare: gputypes.CompareFunctionAlways,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Label returns the debug label.
func (c *RenderConfig) Label() string { return c.label }

// Blend returns the blend state.
func (c *RenderConfig) Blend() BlendState { return c.blend }

// DepthCompare returns the depth comparison function.
func (c *RenderConfig) DepthCompare() gputypes.CompareFunction { return c.depthCompare }

// DepthWrite reports whether depth writes are enabled.
func (c *RenderConfig) DepthWrite() bool { return c.depthWrite }

// Effect returns the attached effect, or nil.
func (c *RenderConfig) Effect() *Effect { return c.effect }

// DiffersFrom reports whether switching from other to c requires a
// flush. The comparison is strictly by pointer: structural equality is
// never consulted.
func (c *RenderConfig) DiffersFrom(other *RenderConfig) bool {
	return c != other
}

// Activate runs the config's pre-draw hook with the given camera.
// Sessions call this each time c becomes the active config. Without an
// effect there is nothing to prepare and the hook is skipped.
func (c *RenderConfig) Activate(cam *Camera) {
	if c.effect != nil && c.prepare != nil {
		c.prepare(cam)
	}
}

var defaultConfig = sync.OnceValue(func() *RenderConfig {
	return NewRenderConfig(WithLabel("stage.default"))
})

// DefaultRenderConfig returns the process-wide default config used by
// sessions whose begin call passes nil. It is a single shared pointer,
// so drawables returning nil all coalesce under it.
func DefaultRenderConfig() *RenderConfig {
	return defaultConfig()
}
