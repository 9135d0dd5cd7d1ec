// Package stage provides render-pass scheduling and batched draw
// submission for 2D scenes in the GoGPU ecosystem.
//
// # Overview
//
// stage sits between a game's scene representation and a rendering
// device. A Scheduler owns an ordered list of passes; each frame it
// executes them by ascending priority. A pass binds its render target,
// opens a BatchSession, and feeds the scene's drawables through it.
// The session coalesces consecutive drawables that share a
// RenderConfig into a single device batch, flushing only when the
// configuration actually changes.
//
// # Quick Start
//
//	import "github.com/gogpu/stage"
//
//	dev, _ := stage.NewDevice(800, 600)
//	cam := stage.NewCamera(800, 600)
//
//	sched := stage.NewScheduler()
//	sched.Register(stage.NewScenePass(dev, 0, cam))
//
//	// Each frame:
//	sched.RunFrame(scene, false)
//
// # Architecture
//
// The library is organized into:
//   - Public API: Scheduler, Pass, BatchSession, RenderConfig, Camera
//   - Targets: Surface interface, PixmapSurface (CPU), gpu.TextureSurface
//   - Devices: SoftwareDevice (image.RGBA), gpu.Device (wgpu/hal)
//
// Device backends register themselves in a named registry; NewDevice
// picks the best available one (wgpu > software).
//
// # Coordinate System
//
// World coordinates follow standard computer graphics conventions:
// origin at top-left, X right, Y down, angles in radians. The Camera
// maps world space to the target through its view matrix.
package stage

// Version information
const (
	// Version is the current version of the library
	Version = "0.2.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 2

	// VersionPatch is the patch version
	VersionPatch = 0
)
