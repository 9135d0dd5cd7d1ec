//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/stage"
)

// TextureSurface is a GPU offscreen render target: a color texture
// plus its render-attachment view. It satisfies stage.Surface and is
// the only surface type Device binds.
type TextureSurface struct {
	device hal.Device

	tex    hal.Texture
	view   hal.TextureView
	width  uint32
	height uint32
	format gputypes.TextureFormat

	unloaded bool
}

// NewTextureSurface allocates a w x h RGBA8 render target on d's GPU
// device.
func NewTextureSurface(d *Device, width, height int) (*TextureSurface, error) {
	if d == nil || d.device == nil {
		return nil, stage.ErrNoDevice
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	w, h := uint32(width), uint32(height)
	format := gputypes.TextureFormatRGBA8Unorm

	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "stage_surface",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage: gputypes.TextureUsageRenderAttachment |
			gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create surface texture: %w", err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "stage_surface_view",
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("create surface view: %w", err)
	}
	return &TextureSurface{
		device: d.device,
		tex:    tex,
		view:   view,
		width:  w,
		height: h,
		format: format,
	}, nil
}

// Width returns the surface width in pixels, 0 once unloaded.
func (s *TextureSurface) Width() int {
	if s.unloaded {
		return 0
	}
	return int(s.width)
}

// Height returns the surface height in pixels, 0 once unloaded.
func (s *TextureSurface) Height() int {
	if s.unloaded {
		return 0
	}
	return int(s.height)
}

// Format returns the texture format.
func (s *TextureSurface) Format() gputypes.TextureFormat { return s.format }

// Texture returns the underlying hal texture for hosts that sample
// the surface in their own passes. Nil once unloaded.
func (s *TextureSurface) Texture() hal.Texture {
	if s.unloaded {
		return nil
	}
	return s.tex
}

// Resize reallocates the texture. Contents are discarded; a resize on
// an unloaded surface is ignored.
func (s *TextureSurface) Resize(width, height int) {
	if s.unloaded {
		return
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	w, h := uint32(width), uint32(height)
	if w == s.width && h == s.height {
		return
	}
	tex, err := s.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "stage_surface",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        s.format,
		Usage: gputypes.TextureUsageRenderAttachment |
			gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		stage.Logger().Warn("surface resize failed")
		return
	}
	view, err := s.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "stage_surface_view",
	})
	if err != nil {
		s.device.DestroyTexture(tex)
		stage.Logger().Warn("surface resize failed")
		return
	}
	s.releaseTexture()
	s.tex = tex
	s.view = view
	s.width = w
	s.height = h
}

func (s *TextureSurface) releaseTexture() {
	if s.view != nil {
		s.device.DestroyTextureView(s.view)
		s.view = nil
	}
	if s.tex != nil {
		s.device.DestroyTexture(s.tex)
		s.tex = nil
	}
}

// Unload destroys the texture and view. Idempotent.
func (s *TextureSurface) Unload() {
	if s.unloaded {
		return
	}
	s.releaseTexture()
	s.unloaded = true
}

// Unloaded reports whether the surface has been unloaded.
func (s *TextureSurface) Unloaded() bool { return s.unloaded }

var (
	_ stage.Surface   = (*TextureSurface)(nil)
	_ stage.Resizable = (*TextureSurface)(nil)
)
