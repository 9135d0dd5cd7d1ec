package stage

// Camera maps world coordinates onto a render target. X and Y are the
// world-space point the view is centered on; Zoom scales world units
// to pixels; Rotation is in radians, counter-clockwise.
//
// The viewport dimensions normally follow the target the camera's pass
// renders into. Passes update them through BackbufferResized.
type Camera struct {
	X, Y     float32
	Zoom     float32
	Rotation float32

	viewportW int
	viewportH int
}

// NewCamera creates a camera centered on the origin with Zoom 1 and
// the given viewport dimensions.
func NewCamera(viewportWidth, viewportHeight int) *Camera {
	return &Camera{
		Zoom:      1,
		viewportW: viewportWidth,
		viewportH: viewportHeight,
	}
}

// SetViewport updates the viewport dimensions. Non-positive values
// are clamped to 1.
func (c *Camera) SetViewport(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	c.viewportW = width
	c.viewportH = height
}

// Viewport returns the current viewport dimensions.
func (c *Camera) Viewport() (width, height int) {
	return c.viewportW, c.viewportH
}

// ViewMatrix returns the world-to-target transform: translate the
// camera position to the origin, rotate, zoom, then recenter on the
// viewport.
func (c *Camera) ViewMatrix() Affine {
	zoom := c.Zoom
	if zoom == 0 {
		zoom = 1
	}
	m := TranslateAffine(-c.X, -c.Y)
	m = RotateAffine(-c.Rotation).Mul(m)
	m = ScaleAffine(zoom, zoom).Mul(m)
	m = TranslateAffine(float32(c.viewportW)/2, float32(c.viewportH)/2).Mul(m)
	return m
}

// Bounds returns the axis-aligned world-space rectangle visible
// through the camera. With rotation the result is the AABB of the
// rotated viewport, so it may over-approximate.
func (c *Camera) Bounds() RectF {
	inv, ok := c.ViewMatrix().Invert()
	if !ok {
		return RectF{}
	}
	w := float32(c.viewportW)
	h := float32(c.viewportH)

	x0, y0 := inv.TransformPoint(0, 0)
	r := RectF{MinX: x0, MinY: y0, MaxX: x0, MaxY: y0}
	for _, p := range [3][2]float32{{w, 0}, {0, h}, {w, h}} {
		x, y := inv.TransformPoint(p[0], p[1])
		if x < r.MinX {
			r.MinX = x
		}
		if x > r.MaxX {
			r.MaxX = x
		}
		if y < r.MinY {
			r.MinY = y
		}
		if y > r.MaxY {
			r.MaxY = y
		}
	}
	return r
}
