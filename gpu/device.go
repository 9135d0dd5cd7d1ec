//go:build !nogpu

package gpu

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/stage"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// DeviceHandle provides GPU device access from the host application.
//
// Hosts that own a GPU context (gogpu applications) implement
// DeviceHandle and pass it to NewDeviceFromProvider so stage shares
// their device instead of opening its own adapter.
//
// DeviceHandle is an alias for gpucontext.DeviceProvider, providing a
// stage-specific name for the interface while maintaining full
// compatibility with the gpucontext ecosystem.
type DeviceHandle = gpucontext.DeviceProvider

const fenceTimeout = 5 * time.Second

// Device is the wgpu-backed stage.Device: one hal render pass per
// batch, a per-frame vertex upload, and a pipeline cache keyed by
// target format, blend and effect.
//
// Quad image payloads are not uploaded yet; image quads draw their
// tint color.
// TODO: pack quad images into a texture atlas and add a sampled
// pipeline variant.
type Device struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	owns     bool

	width  uint32
	height uint32
	format gputypes.TextureFormat

	backTex  hal.Texture
	backView hal.TextureView

	pipelines *pipelineCache

	target       *TextureSurface
	state        stage.BatchState
	open         bool
	quads        []stage.Quad
	pendingClear *gputypes.Color
	batches      int
}

func init() {
	stage.RegisterBackend(stage.BackendWGPU, func(width, height int) (stage.Device, error) {
		return NewDevice(width, height)
	})
}

// NewDevice opens a GPU adapter and creates a device with a w x h
// backbuffer texture. Prefers discrete over integrated GPUs.
func NewDevice(width, height int) (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	d := &Device{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		owns:     true,
		format:   gputypes.TextureFormatBGRA8Unorm,
	}
	if err := d.initResources(width, height); err != nil {
		d.Close()
		return nil, err
	}
	stage.Logger().Info("wgpu device opened", slog.String("adapter", selected.Info.Name))
	return d, nil
}

// NewDeviceFromProvider creates a device over a host-owned GPU device.
// The provider must expose HAL types (HalDevice() any and HalQueue()
// any returning hal.Device and hal.Queue); host resources are never
// destroyed on Close.
func NewDeviceFromProvider(provider DeviceHandle, width, height int) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("provider HalQueue is not hal.Queue")
	}

	d := &Device{
		device: device,
		queue:  queue,
		format: provider.SurfaceFormat(),
	}
	if d.format == gputypes.TextureFormatUndefined {
		d.format = gputypes.TextureFormatBGRA8Unorm
	}
	if err := d.initResources(width, height); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// initResources creates the backbuffer texture and pipeline cache.
func (d *Device) initResources(width, height int) error {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if err := d.createBackbuffer(uint32(width), uint32(height)); err != nil {
		return err
	}
	cache, err := newPipelineCache(d.device)
	if err != nil {
		return fmt.Errorf("init pipeline cache: %w", err)
	}
	d.pipelines = cache
	return nil
}

func (d *Device) createBackbuffer(w, h uint32) error {
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "stage_backbuffer",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        d.format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create backbuffer texture: %w", err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "stage_backbuffer_view",
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return fmt.Errorf("create backbuffer view: %w", err)
	}
	d.backTex = tex
	d.backView = view
	d.width = w
	d.height = h
	return nil
}

func (d *Device) destroyBackbuffer() {
	if d.backView != nil {
		d.device.DestroyTextureView(d.backView)
		d.backView = nil
	}
	if d.backTex != nil {
		d.device.DestroyTexture(d.backTex)
		d.backTex = nil
	}
}

// SetTarget binds a TextureSurface, or the backbuffer when s is nil.
func (d *Device) SetTarget(s stage.Surface) error {
	if s == nil {
		d.target = nil
		return nil
	}
	ts, ok := s.(*TextureSurface)
	if !ok {
		return fmt.Errorf("%w: %T", stage.ErrIncompatibleSurface, s)
	}
	if ts.Unloaded() {
		return stage.ErrSurfaceUnloaded
	}
	d.target = ts
	return nil
}

// Target returns the bound surface, nil for the backbuffer.
func (d *Device) Target() stage.Surface {
	if d.target == nil {
		return nil
	}
	return d.target
}

// Clear schedules a clear of the bound target. The clear is folded
// into the next batch's render pass load op; with no following batch
// it is applied by an attachment-only pass at EndBatch time.
func (d *Device) Clear(c color.RGBA) {
	d.pendingClear = &gputypes.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
		A: float64(c.A) / 255,
	}
}

// BeginBatch opens the batch accumulator under state.
func (d *Device) BeginBatch(state stage.BatchState) error {
	if d.open {
		return stage.ErrBatchOpen
	}
	d.state = state
	d.quads = d.quads[:0]
	d.open = true
	return nil
}

// Enqueue adds a quad to the open batch. Immediate mode still encodes
// at EndBatch; one render pass per batch is the whole point here, so
// immediate sorting degenerates to submission order.
func (d *Device) Enqueue(q stage.Quad) {
	if !d.open {
		stage.Logger().Warn("quad enqueued outside batch, dropped")
		return
	}
	if q.Image != nil {
		stage.Logger().Debug("image quad drawn as tint, atlas upload not implemented")
	}
	d.quads = append(d.quads, q)
}

// EndBatch sorts, uploads and draws the accumulated quads as a single
// render pass, then waits for the GPU.
func (d *Device) EndBatch() error {
	if !d.open {
		return stage.ErrBatchNotOpen
	}
	d.open = false
	d.batches++

	switch d.state.Sort {
	case stage.SortBackToFront:
		slices.SortStableFunc(d.quads, func(a, b stage.Quad) int {
			switch {
			case a.Depth > b.Depth:
				return -1
			case a.Depth < b.Depth:
				return 1
			}
			return 0
		})
	case stage.SortFrontToBack:
		slices.SortStableFunc(d.quads, func(a, b stage.Quad) int {
			switch {
			case a.Depth < b.Depth:
				return -1
			case a.Depth > b.Depth:
				return 1
			}
			return 0
		})
	}

	if len(d.quads) == 0 && d.pendingClear == nil {
		return nil
	}
	return d.encodeBatch()
}

// Batches returns the total number of completed batches.
func (d *Device) Batches() int { return d.batches }

// targetView returns the color attachment view and format for the
// current binding.
func (d *Device) targetView() (hal.TextureView, gputypes.TextureFormat, uint32, uint32) {
	if d.target != nil {
		return d.target.view, d.target.format, d.target.width, d.target.height
	}
	return d.backView, d.format, d.width, d.height
}

// encodeBatch encodes one render pass for the pending quads and
// submits it with a fence wait.
func (d *Device) encodeBatch() error {
	view, format, w, h := d.targetView()

	loadOp := gputypes.LoadOpLoad
	clearValue := gputypes.Color{}
	if d.pendingClear != nil {
		loadOp = gputypes.LoadOpClear
		clearValue = *d.pendingClear
		d.pendingClear = nil
	}

	vertexData := buildQuadVertices(d.quads, d.state.View)
	vertexCount := uint32(len(d.quads) * 6)

	var (
		vertBuf    hal.Buffer
		uniformBuf hal.Buffer
		bindGroup  hal.BindGroup
		pipeline   hal.RenderPipeline
		err        error
	)
	if vertexCount > 0 {
		pipeline, err = d.pipelines.get(format, d.state.Blend, d.state.Cull, d.state.Effect)
		if err != nil {
			return err
		}
		vertBuf, err = d.createAndUploadBuffer("stage_batch_verts", vertexData,
			gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
		if err != nil {
			return fmt.Errorf("create vertex buffer: %w", err)
		}
		defer d.device.DestroyBuffer(vertBuf)

		uniformBuf, err = d.createAndUploadBuffer("stage_batch_uniform", viewportUniform(w, h),
			gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
		if err != nil {
			return fmt.Errorf("create uniform buffer: %w", err)
		}
		defer d.device.DestroyBuffer(uniformBuf)

		bindGroup, err = d.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  "stage_batch_bind",
			Layout: d.pipelines.uniformLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{
					Buffer: uniformBuf.NativeHandle(), Offset: 0, Size: quadUniformSize,
				}},
			},
		})
		if err != nil {
			return fmt.Errorf("create bind group: %w", err)
		}
		defer d.device.DestroyBindGroup(bindGroup)
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "stage_batch_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("stage_batch"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "stage_batch_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     loadOp,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: clearValue,
		}},
	})
	if vertexCount > 0 {
		rp.SetPipeline(pipeline)
		rp.SetBindGroup(0, bindGroup, nil)
		rp.SetVertexBuffer(0, vertBuf, 0)
		rp.Draw(vertexCount, 1, 0, 0)
	}
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := d.device.Wait(fence, 1, fenceTimeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}
	return nil
}

// createAndUploadBuffer creates a GPU buffer and uploads data.
func (d *Device) createAndUploadBuffer(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	d.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// ReadPixels copies the backbuffer into a CPU image: staging-buffer
// copy with 256-byte row alignment, fence wait, then BGRA conversion
// when the backbuffer format calls for it.
func (d *Device) ReadPixels() (*image.RGBA, error) {
	w, h := d.width, d.height
	bytesPerRow := w * 4
	const copyPitchAlignment = 256
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	stagingBuf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "stage_readback",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(stagingBuf)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "stage_readback_encoder",
	})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("stage_readback"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: d.backTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(d.backTex, stagingBuf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: d.backTex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: d.backTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)
	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := d.device.Wait(fence, 1, fenceTimeout)
	if err != nil || !fenceOK {
		return nil, fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}

	readback := make([]byte, stagingSize)
	if err := d.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	swap := d.format == gputypes.TextureFormatBGRA8Unorm
	for row := uint32(0); row < h; row++ {
		src := readback[row*alignedBytesPerRow : row*alignedBytesPerRow+bytesPerRow]
		dst := img.Pix[int(row)*img.Stride : int(row)*img.Stride+int(bytesPerRow)]
		copy(dst, src)
		if swap {
			for i := 0; i < len(dst); i += 4 {
				dst[i], dst[i+2] = dst[i+2], dst[i]
			}
		}
	}
	return img, nil
}

// Resize recreates the backbuffer texture. Contents are discarded.
func (d *Device) Resize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	d.destroyBackbuffer()
	if err := d.createBackbuffer(uint32(width), uint32(height)); err != nil {
		stage.Logger().Warn("backbuffer resize failed", slog.String("error", err.Error()))
	}
}

// Close releases device resources. Host-provided devices are left
// alive; only resources this package created are destroyed.
func (d *Device) Close() {
	if d.pipelines != nil {
		d.pipelines.destroy()
		d.pipelines = nil
	}
	d.destroyBackbuffer()
	if d.owns && d.device != nil {
		d.device.Destroy()
	}
	d.device = nil
	d.queue = nil
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}

// buildQuadVertices expands quads into two CPU-transformed triangles
// each: interleaved position vec2 + color vec4.
func buildQuadVertices(quads []stage.Quad, view stage.Affine) []byte {
	if len(quads) == 0 {
		return nil
	}
	data := make([]byte, 0, len(quads)*6*quadVertexStride)
	put := func(x, y float32, c [4]float32) {
		var buf [quadVertexStride]byte
		packFloat32(buf[0:], x)
		packFloat32(buf[4:], y)
		packFloat32(buf[8:], c[0])
		packFloat32(buf[12:], c[1])
		packFloat32(buf[16:], c[2])
		packFloat32(buf[20:], c[3])
		data = append(data, buf[:]...)
	}
	for _, q := range quads {
		c := [4]float32{
			float32(q.Color.R) / 255,
			float32(q.Color.G) / 255,
			float32(q.Color.B) / 255,
			float32(q.Color.A) / 255,
		}
		x0, y0 := view.TransformPoint(q.X, q.Y)
		x1, y1 := view.TransformPoint(q.X+q.W, q.Y)
		x2, y2 := view.TransformPoint(q.X, q.Y+q.H)
		x3, y3 := view.TransformPoint(q.X+q.W, q.Y+q.H)

		put(x0, y0, c)
		put(x1, y1, c)
		put(x2, y2, c)
		put(x1, y1, c)
		put(x3, y3, c)
		put(x2, y2, c)
	}
	return data
}

func packFloat32(dst []byte, v float32) {
	bits := math.Float32bits(v)
	dst[0] = byte(bits)
	dst[1] = byte(bits >> 8)
	dst[2] = byte(bits >> 16)
	dst[3] = byte(bits >> 24)
}

// viewportUniform packs the 16-byte viewport uniform block.
func viewportUniform(w, h uint32) []byte {
	buf := make([]byte, quadUniformSize)
	packFloat32(buf[0:], float32(w))
	packFloat32(buf[4:], float32(h))
	return buf
}

var _ stage.Device = (*Device)(nil)
