package stage

// Drawable is anything a pass can submit to a batch session. The
// pipeline never owns drawables; scenes hand them over already ordered
// (ascending render layer, then insertion order) and the pipeline
// preserves that order.
type Drawable interface {
	// RenderConfig returns the config this drawable renders under.
	// Nil means "whatever is currently active"; it never resets the
	// session to the default config.
	RenderConfig() *RenderConfig

	// RenderLayer returns the drawable's layer. Layer filtering
	// happens in LayerPass; lower layers are expected earlier in the
	// scene's Drawables order.
	RenderLayer() int

	// Draw issues the drawable's quads into the open batch.
	Draw(b *Batch)
}

// Bounded is optionally implemented by drawables with a known
// world-space extent. Passes skip bounded drawables wholly outside the
// camera. Drawables without bounds are always submitted.
type Bounded interface {
	Bounds() RectF
}

// Entity is a scene object that can contribute to the debug overlay.
// The overlay runs as its own immediate batch after the normal
// drawable pass, so debug geometry never perturbs flush coalescing.
type Entity interface {
	DebugDrawEnabled() bool
	DebugDraw(b *Batch)
}

// Scene is the external world representation the pipeline renders.
// Ordering of Drawables is the scene's contract; the pipeline submits
// in the order given.
type Scene interface {
	Drawables() []Drawable
	Entities() []Entity
}
