// Package gpu implements the wgpu-backed rendering device for stage.
//
// The device encodes each batch as one hal render pass: quads are
// transformed on the CPU, uploaded as a per-frame vertex buffer, and
// drawn through a pipeline selected from a cache keyed by target
// format, blend state and effect. Offscreen surfaces are plain color
// textures (TextureSurface).
//
// Importing this package registers the "wgpu" backend:
//
//	import _ "github.com/gogpu/stage/gpu"
//
//	dev, err := stage.NewDevice(800, 600) // picks wgpu when a GPU is up
//
// Hosts that already own a GPU device (gogpu applications) hand it in
// through NewDeviceFromProvider instead of letting the package open
// its own adapter.
//
// Build with the nogpu tag to compile the package out entirely.
package gpu
