package stage

// Effect is an opaque handle to a custom fragment/vertex program,
// carried as WGSL source. The root package never interprets the
// source; devices that support effects (the gpu backend) compile and
// cache it, keyed by the handle's pointer identity. The software
// device ignores effects.
type Effect struct {
	label  string
	source string
}

// NewEffect creates an effect from WGSL source. The shader must
// export vs_main and fs_main entry points compatible with the quad
// vertex layout (position vec2, color vec4 at locations 0 and 1).
func NewEffect(label, wgslSource string) *Effect {
	return &Effect{label: label, source: wgslSource}
}

// Label returns the effect's debug label.
func (e *Effect) Label() string { return e.label }

// Source returns the WGSL source text.
func (e *Effect) Source() string { return e.source }
