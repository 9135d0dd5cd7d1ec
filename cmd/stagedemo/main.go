// Command stagedemo renders a layered scene through the stage
// pipeline and saves the result as a PNG.
//
// Two passes run each frame: a minimap pass into an offscreen surface,
// and a main pass that draws the scene plus the minimap composited in
// a corner. The device backend is picked from the registry (wgpu when
// a GPU is available, software otherwise) unless forced with -backend.
package main

import (
	"flag"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"os"

	"github.com/gogpu/stage"
	"github.com/gogpu/stage/gpu"
)

func main() {
	var (
		width   = flag.Int("width", 800, "image width")
		height  = flag.Int("height", 600, "image height")
		output  = flag.String("output", "demo.png", "output file")
		frames  = flag.Int("frames", 60, "frames to simulate")
		backend = flag.String("backend", "", "device backend (empty = best available)")
		overlay = flag.Bool("overlay", false, "enable debug overlay")
	)
	flag.Parse()

	dev, err := newDevice(*backend, *width, *height)
	if err != nil {
		log.Fatalf("Failed to create device: %v", err)
	}
	defer dev.Close()

	scene := buildScene(*width, *height)

	mainCam := stage.NewCamera(*width, *height)
	mainCam.X = float32(*width) / 2
	mainCam.Y = float32(*height) / 2

	sched := stage.NewScheduler()

	// The minimap is a CPU surface, so the offscreen pass only runs on
	// the software device. It sees the sprite layers only, not the
	// composited minimap itself.
	if _, ok := dev.(*stage.SoftwareDevice); ok {
		minimapCam := stage.NewCamera(*width/5, *height/5)
		minimapCam.X = mainCam.X
		minimapCam.Y = mainCam.Y
		minimapCam.Zoom = 0.2

		minimap := stage.NewPixmapSurface(*width/5, *height/5)
		scene.minimap = minimap
		sched.Register(stage.NewLayerPass(dev, -5, minimapCam, []int{0, 1},
			stage.WithOwnedSurface(minimap),
			stage.WithClearColor(color.RGBA{R: 16, G: 16, B: 24, A: 255})))
	}

	sched.Register(stage.NewScenePass(dev, 0, mainCam,
		stage.WithClearColor(color.RGBA{R: 24, G: 32, B: 48, A: 255}),
		stage.WithDebugOverlay()))
	defer sched.UnloadAll()

	for i := 0; i < *frames; i++ {
		scene.step(float32(i) / 60)
		if err := sched.RunFrame(scene, *overlay); err != nil {
			log.Fatalf("Frame %d failed: %v", i, err)
		}
	}

	img, err := snapshot(dev)
	if err != nil {
		log.Fatalf("Failed to read pixels: %v", err)
	}
	if err := savePNG(*output, img); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}

	st := sched.Stats()
	log.Printf("Demo saved to %s (%dx%d, %d drawables, %d flushes, %v/frame)",
		*output, *width, *height, st.Submitted, st.Flushes, st.FrameTime)
}

func newDevice(backend string, w, h int) (stage.Device, error) {
	if backend != "" {
		return stage.NewNamedDevice(backend, w, h)
	}
	return stage.NewDevice(w, h)
}

// snapshot reads the final backbuffer from whichever device family is
// in use.
func snapshot(dev stage.Device) (*image.RGBA, error) {
	switch d := dev.(type) {
	case *stage.SoftwareDevice:
		return d.Backbuffer(), nil
	case *gpu.Device:
		return d.ReadPixels()
	default:
		return nil, stage.ErrBackendNotAvailable
	}
}

func savePNG(path string, img *image.RGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// sprite is a moving colored square.
type sprite struct {
	x, y, size float32
	orbit      float32
	phase      float32
	depth      float32
	layer      int
	color      color.RGBA
	config     *stage.RenderConfig
}

func (s *sprite) RenderConfig() *stage.RenderConfig { return s.config }
func (s *sprite) RenderLayer() int                  { return s.layer }

func (s *sprite) Draw(b *stage.Batch) {
	b.Quad(stage.Quad{
		X: s.x - s.size/2, Y: s.y - s.size/2,
		W: s.size, H: s.size,
		Depth: s.depth,
		Color: s.color,
	})
}

func (s *sprite) Bounds() stage.RectF {
	return stage.RectF{
		MinX: s.x - s.size/2, MinY: s.y - s.size/2,
		MaxX: s.x + s.size/2, MaxY: s.y + s.size/2,
	}
}

func (s *sprite) DebugDrawEnabled() bool { return true }

func (s *sprite) DebugDraw(b *stage.Batch) {
	r := s.Bounds()
	m := color.RGBA{R: 255, A: 255}
	b.FillRect(r.MinX, r.MinY, r.Width(), 1, m)
	b.FillRect(r.MinX, r.MaxY-1, r.Width(), 1, m)
	b.FillRect(r.MinX, r.MinY, 1, r.Height(), m)
	b.FillRect(r.MaxX-1, r.MinY, 1, r.Height(), m)
}

// minimapView composites the offscreen minimap into the main pass.
type minimapView struct {
	surface *stage.PixmapSurface
	x, y    float32
}

func (v *minimapView) RenderConfig() *stage.RenderConfig { return nil }
func (v *minimapView) RenderLayer() int                  { return 100 }

func (v *minimapView) Draw(b *stage.Batch) {
	img := v.surface.Image()
	if img == nil {
		return
	}
	w := float32(v.surface.Width())
	h := float32(v.surface.Height())
	b.FillRect(v.x-2, v.y-2, w+4, h+4, color.RGBA{R: 255, G: 255, B: 255, A: 64})
	b.DrawImage(img, v.x, v.y, w, h)
}

// demoScene implements stage.Scene over a fixed sprite set.
type demoScene struct {
	w, h     float32
	sprites  []*sprite
	minimap  *stage.PixmapSurface
	glowCfg  *stage.RenderConfig
	solidCfg *stage.RenderConfig
}

func buildScene(w, h int) *demoScene {
	s := &demoScene{
		w: float32(w), h: float32(h),
		solidCfg: stage.NewRenderConfig(stage.WithLabel("solid")),
		glowCfg: stage.NewRenderConfig(
			stage.WithLabel("glow"),
			stage.WithBlend(stage.BlendAdditive())),
	}
	palette := []color.RGBA{
		{R: 230, G: 90, B: 80, A: 255},
		{R: 90, G: 200, B: 120, A: 255},
		{R: 100, G: 140, B: 240, A: 255},
		{R: 240, G: 200, B: 90, A: 255},
	}
	for i := 0; i < 24; i++ {
		cfg := s.solidCfg
		layer := 0
		if i%3 == 0 {
			cfg = s.glowCfg
			layer = 1
		}
		s.sprites = append(s.sprites, &sprite{
			size:   16 + float32(i%5)*8,
			orbit:  60 + float32(i)*10,
			phase:  float32(i) * math.Pi / 12,
			depth:  float32(i % 5),
			layer:  layer,
			color:  palette[i%len(palette)],
			config: cfg,
		})
	}
	return s
}

// step advances sprite orbits to time t (seconds).
func (s *demoScene) step(t float32) {
	cx, cy := s.w/2, s.h/2
	for _, sp := range s.sprites {
		a := float64(sp.phase + t)
		sp.x = cx + sp.orbit*float32(math.Cos(a))
		sp.y = cy + sp.orbit*float32(math.Sin(a))
	}
}

func (s *demoScene) Drawables() []stage.Drawable {
	out := make([]stage.Drawable, 0, len(s.sprites)+1)
	for _, sp := range s.sprites {
		if sp.layer == 0 {
			out = append(out, sp)
		}
	}
	for _, sp := range s.sprites {
		if sp.layer != 0 {
			out = append(out, sp)
		}
	}
	if s.minimap != nil && !s.minimap.Unloaded() {
		out = append(out, &minimapView{surface: s.minimap, x: s.w - float32(s.minimap.Width()) - 12, y: 12})
	}
	return out
}

func (s *demoScene) Entities() []stage.Entity {
	out := make([]stage.Entity, len(s.sprites))
	for i, sp := range s.sprites {
		out[i] = sp
	}
	return out
}
