// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package stage

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/gogpu/gputypes"
)

// Surface is an offscreen render target a pass can bind instead of the
// backbuffer. Surfaces own GPU or pixel memory; Unload releases it.
// After Unload every bind attempt fails with ErrSurfaceUnloaded;
// surfaces are never resurrected implicitly.
type Surface interface {
	Width() int
	Height() int
	Format() gputypes.TextureFormat

	// Unload releases the backing storage. Idempotent.
	Unload()

	// Unloaded reports whether Unload has been called.
	Unloaded() bool
}

// Resizable is optionally implemented by surfaces that can follow
// backbuffer resizes. PixmapSurface and gpu.TextureSurface implement
// it; passes created with WithBackbufferSizedSurface use it.
type Resizable interface {
	Resize(width, height int)
}

// PixmapSurface is a CPU surface backed by an image.RGBA. It is the
// surface type the SoftwareDevice binds, and its Image is directly
// readable, which makes it the natural target for tests and capture.
type PixmapSurface struct {
	img      *image.RGBA
	unloaded bool
}

// NewPixmapSurface allocates a w x h pixmap surface. Dimensions are
// clamped to at least 1.
func NewPixmapSurface(width, height int) *PixmapSurface {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &PixmapSurface{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Width returns the surface width in pixels, 0 once unloaded.
func (s *PixmapSurface) Width() int {
	if s.img == nil {
		return 0
	}
	return s.img.Bounds().Dx()
}

// Height returns the surface height in pixels, 0 once unloaded.
func (s *PixmapSurface) Height() int {
	if s.img == nil {
		return 0
	}
	return s.img.Bounds().Dy()
}

// Format returns the pixel format (always RGBA8).
func (s *PixmapSurface) Format() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// Image returns the backing image, nil once unloaded. The pixels are
// live: drawing through a bound device mutates them.
func (s *PixmapSurface) Image() *image.RGBA { return s.img }

// Fill sets every pixel to c.
func (s *PixmapSurface) Fill(c color.Color) {
	if s.img == nil {
		return
	}
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// Resize reallocates the backing image. Contents are discarded. A
// resize on an unloaded surface is ignored.
func (s *PixmapSurface) Resize(width, height int) {
	if s.unloaded {
		return
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Unload releases the backing image. Idempotent.
func (s *PixmapSurface) Unload() {
	s.img = nil
	s.unloaded = true
}

// Unloaded reports whether the surface has been unloaded.
func (s *PixmapSurface) Unloaded() bool { return s.unloaded }

var (
	_ Surface   = (*PixmapSurface)(nil)
	_ Resizable = (*PixmapSurface)(nil)
)
