// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package stage

import (
	"fmt"
	"image"
	"image/color"

	"github.com/gogpu/gputypes"
)

// Batch is the handle drawables draw through while a batch is open on
// the device. It is only valid inside the Draw call it is passed to.
type Batch struct {
	device Device
}

// Quad enqueues q.
func (b *Batch) Quad(q Quad) {
	b.device.Enqueue(q)
}

// FillRect enqueues a solid rectangle at depth 0.
func (b *Batch) FillRect(x, y, w, h float32, c color.RGBA) {
	b.device.Enqueue(Quad{X: x, Y: y, W: w, H: h, Color: c})
}

// DrawImage enqueues img stretched over the given rectangle.
func (b *Batch) DrawImage(img *image.RGBA, x, y, w, h float32) {
	b.device.Enqueue(Quad{
		X: x, Y: y, W: w, H: h,
		Color: color.RGBA{R: 255, G: 255, B: 255, A: 255},
		Image: img,
	})
}

type sessionState uint8

const (
	sessionIdle sessionState = iota
	sessionOpen
)

// BatchSession drives one begin/submit/end span over a device,
// coalescing consecutive drawables that share a RenderConfig into a
// single device batch.
//
// The accumulator opens lazily: Begin binds the target but starts no
// batch; the first Submit opens one under the effective config. A
// submit whose drawable carries a config differing by pointer from the
// active one activates the new config and flushes (close + reopen on
// next draw). A drawable returning a nil config draws under whatever
// is active; nil never means "back to default".
//
// Sessions are single-goroutine, matching the strictly sequential
// pass order the scheduler guarantees.
type BatchSession struct {
	// Device is the backend the session issues to. Required.
	Device Device

	// Target is the surface Begin binds, nil for the backbuffer.
	Target Surface

	// ClearTarget clears the bound target to ClearColor at Begin.
	ClearTarget bool
	ClearColor  color.RGBA

	// RestoreTarget rebinds the backbuffer at End when Target is an
	// offscreen surface. On by default via NewBatchSession.
	RestoreTarget bool

	// Sort, Filter and Cull are fixed for the whole span.
	Sort   SortMode
	Filter gputypes.FilterMode
	Cull   gputypes.CullMode

	state     sessionState
	camera    *Camera
	active    *RenderConfig
	batchOpen bool
	flushes   int
	submitted int
	batch     Batch
}

// NewBatchSession creates a session over dev with clearing and target
// restoration enabled.
func NewBatchSession(dev Device) *BatchSession {
	return &BatchSession{
		Device:        dev,
		ClearTarget:   true,
		RestoreTarget: true,
		Filter:        gputypes.FilterModeLinear,
		Cull:          gputypes.CullModeNone,
	}
}

// Begin starts a span: validates the camera, binds the target, clears
// it if configured, and arms the first flush. def is the config the
// session starts under; nil selects DefaultRenderConfig. No device
// batch is opened until the first Submit.
//
// A nil camera fails with ErrNoCamera before any device state is
// touched, so the previous target binding survives intact.
func (s *BatchSession) Begin(cam *Camera, def *RenderConfig) error {
	if s.Device == nil {
		return ErrNoDevice
	}
	if s.state == sessionOpen {
		return ErrSessionOpen
	}
	if cam == nil {
		return ErrNoCamera
	}
	if s.Target != nil {
		if s.Target.Unloaded() {
			return fmt.Errorf("begin session: %w", ErrSurfaceUnloaded)
		}
		if err := s.Device.SetTarget(s.Target); err != nil {
			return fmt.Errorf("begin session: %w", err)
		}
	}
	if s.ClearTarget {
		s.Device.Clear(s.ClearColor)
	}
	if def == nil {
		def = DefaultRenderConfig()
	}
	s.camera = cam
	s.active = def
	s.state = sessionOpen
	s.batchOpen = false
	s.flushes = 0
	s.submitted = 0
	s.batch = Batch{device: s.Device}
	return nil
}

// Submit feeds one drawable through the session. The first submit
// opens the accumulator (flush one); a config change by pointer
// activates the new config and reopens it (one more flush). Submit
// outside a span fails with ErrSessionNotOpen.
func (s *BatchSession) Submit(d Drawable) error {
	if s.state != sessionOpen {
		return ErrSessionNotOpen
	}
	if cfg := d.RenderConfig(); cfg != nil && cfg.DiffersFrom(s.active) {
		cfg.Activate(s.camera)
		if s.batchOpen {
			if err := s.Device.EndBatch(); err != nil {
				return fmt.Errorf("flush batch: %w", err)
			}
			s.batchOpen = false
		}
		s.active = cfg
	}
	if !s.batchOpen {
		if err := s.Device.BeginBatch(s.batchState()); err != nil {
			return fmt.Errorf("open batch: %w", err)
		}
		s.batchOpen = true
		s.flushes++
	}
	d.Draw(&s.batch)
	s.submitted++
	return nil
}

func (s *BatchSession) batchState() BatchState {
	return BatchState{
		View:         s.camera.ViewMatrix(),
		Sort:         s.Sort,
		Blend:        s.active.Blend(),
		DepthCompare: s.active.DepthCompare(),
		DepthWrite:   s.active.DepthWrite(),
		Effect:       s.active.Effect(),
		Filter:       s.Filter,
		Cull:         s.Cull,
	}
}

// End closes the span: ends any open batch and, when RestoreTarget is
// set and an offscreen target was bound, rebinds the backbuffer.
// Restoration runs even when the final batch fails. End on an already
// closed session is a no-op, which lets callers defer it as a release
// guarantee and still call it explicitly on the happy path.
func (s *BatchSession) End() error {
	if s.state != sessionOpen {
		return nil
	}
	s.state = sessionIdle

	var endErr error
	if s.batchOpen {
		endErr = s.Device.EndBatch()
		s.batchOpen = false
	}
	if s.Target != nil && s.RestoreTarget {
		if err := s.Device.SetTarget(nil); err != nil && endErr == nil {
			endErr = fmt.Errorf("restore target: %w", err)
		}
	}
	s.camera = nil
	s.active = nil
	if endErr != nil {
		return fmt.Errorf("end session: %w", endErr)
	}
	return nil
}

// Flushes returns how many device batches the last (or current) span
// opened. A span whose drawables all share one config reports exactly
// one flush regardless of drawable count.
func (s *BatchSession) Flushes() int { return s.flushes }

// Submitted returns how many drawables the last (or current) span
// accepted.
func (s *BatchSession) Submitted() int { return s.submitted }

// ActiveConfig returns the config currently in effect, nil outside a
// span.
func (s *BatchSession) ActiveConfig() *RenderConfig { return s.active }
