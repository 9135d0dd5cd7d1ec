package stage

import (
	"image/color"

	"github.com/gogpu/gputypes"
)

// PassOption customizes pass construction. Options apply to the
// embedded BasePass, so ScenePass and LayerPass share one option set.
type PassOption func(*BasePass)

// WithSurface renders the pass into s instead of the backbuffer. The
// surface is shared: the pass will not unload it.
func WithSurface(s Surface) PassOption {
	return func(p *BasePass) {
		p.surface = s
		p.ownsSurface = false
	}
}

// WithOwnedSurface renders the pass into s and unloads it when the
// pass is unloaded.
func WithOwnedSurface(s Surface) PassOption {
	return func(p *BasePass) {
		p.surface = s
		p.ownsSurface = true
	}
}

// WithBackbufferSizedSurface makes the pass resize its surface to
// follow backbuffer resizes. The surface must implement Resizable.
func WithBackbufferSizedSurface() PassOption {
	return func(p *BasePass) { p.trackBackbuffer = true }
}

// WithClearColor sets the color the target is cleared to at the start
// of each execution. Default is transparent black.
func WithClearColor(c color.RGBA) PassOption {
	return func(p *BasePass) { p.clearColor = c }
}

// WithPreserveContents disables the per-execution clear, compositing
// over whatever the target already holds.
func WithPreserveContents() PassOption {
	return func(p *BasePass) { p.clearTarget = false }
}

// WithRestoreTarget controls whether the backbuffer is rebound after
// an offscreen execution. Enabled by default; disable it when a later
// pass chains on the same surface.
func WithRestoreTarget(restore bool) PassOption {
	return func(p *BasePass) { p.restoreTarget = restore }
}

// WithDebugOverlay lets the pass run entity debug-draw hooks after its
// drawables, in an independent immediate batch.
func WithDebugOverlay() PassOption {
	return func(p *BasePass) { p.overlay = true }
}

// WithDefaultConfig sets the config the pass's session starts under.
func WithDefaultConfig(cfg *RenderConfig) PassOption {
	return func(p *BasePass) { p.defaultConfig = cfg }
}

// WithSortMode sets the batch sort mode.
func WithSortMode(m SortMode) PassOption {
	return func(p *BasePass) { p.sort = m }
}

// WithSamplerFilter sets the texture sampling filter.
func WithSamplerFilter(f gputypes.FilterMode) PassOption {
	return func(p *BasePass) { p.filter = f }
}

// WithCullMode sets the face cull mode.
func WithCullMode(m gputypes.CullMode) PassOption {
	return func(p *BasePass) { p.cull = m }
}
