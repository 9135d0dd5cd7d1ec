// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package stage

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// FrameStats summarizes the most recent RunFrame.
type FrameStats struct {
	Frame     uint64
	Passes    int
	Submitted int
	Flushes   int
	FrameTime time.Duration
}

// passStats is implemented by passes that track session counters
// (anything embedding BasePass).
type passStats interface {
	LastFlushes() int
	LastSubmitted() int
}

type scheduledPass struct {
	pass Pass
	seq  uint64
}

type deferredTask struct {
	framesLeft int
	fn         func()
}

// Scheduler owns the ordered pass list and drives frames. Passes run
// strictly sequentially by ascending priority; equal priorities run in
// registration order. Not safe for concurrent use: one goroutine owns
// the frame loop.
type Scheduler struct {
	passes   []scheduledPass
	nextSeq  uint64
	deferred []deferredTask
	frame    uint64
	stats    FrameStats
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Register inserts p into the pass list, keeping it sorted by
// priority with registration order breaking ties.
func (s *Scheduler) Register(p Pass) {
	entry := scheduledPass{pass: p, seq: s.nextSeq}
	s.nextSeq++
	idx, _ := slices.BinarySearchFunc(s.passes, entry, func(a, b scheduledPass) int {
		if c := cmp.Compare(a.pass.Priority(), b.pass.Priority()); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	s.passes = slices.Insert(s.passes, idx, entry)
}

// Unregister removes p from the pass list without unloading it.
// Reports whether the pass was present.
func (s *Scheduler) Unregister(p Pass) bool {
	for i, e := range s.passes {
		if e.pass == p {
			s.passes = slices.Delete(s.passes, i, i+1)
			return true
		}
	}
	return false
}

// Passes returns the registered passes in execution order.
func (s *Scheduler) Passes() []Pass {
	out := make([]Pass, len(s.passes))
	for i, e := range s.passes {
		out[i] = e.pass
	}
	return out
}

// Len returns the number of registered passes.
func (s *Scheduler) Len() int { return len(s.passes) }

// Defer schedules fn to run once at the start of a future RunFrame:
// frames=1 means the next frame. Values below 1 are clamped to 1.
// Typical use is retrying work that must wait for the current frame's
// resources to settle.
func (s *Scheduler) Defer(frames int, fn func()) {
	if fn == nil {
		return
	}
	if frames < 1 {
		frames = 1
	}
	s.deferred = append(s.deferred, deferredTask{framesLeft: frames, fn: fn})
}

// runDeferred ticks the deferred queue, firing tasks that have reached
// their frame and keeping the rest. The queue is detached first so a
// task may call Defer to reschedule itself.
func (s *Scheduler) runDeferred() {
	if len(s.deferred) == 0 {
		return
	}
	pending := s.deferred
	s.deferred = nil
	for _, t := range pending {
		t.framesLeft--
		if t.framesLeft <= 0 {
			t.fn()
			continue
		}
		s.deferred = append(s.deferred, t)
	}
}

// RunFrame drains due deferred tasks, then executes every pass in
// order. The first pass error aborts the frame; later passes do not
// run that frame.
func (s *Scheduler) RunFrame(scene Scene, overlay bool) error {
	start := time.Now()
	s.frame++
	s.runDeferred()

	stats := FrameStats{Frame: s.frame}
	for _, e := range s.passes {
		if err := e.pass.Execute(scene, overlay); err != nil {
			s.stats = stats
			return fmt.Errorf("run pass (priority %d): %w", e.pass.Priority(), err)
		}
		stats.Passes++
		if ps, ok := e.pass.(passStats); ok {
			stats.Submitted += ps.LastSubmitted()
			stats.Flushes += ps.LastFlushes()
		}
	}
	stats.FrameTime = time.Since(start)
	s.stats = stats
	Logger().Debug("frame complete",
		slog.Uint64("frame", s.frame),
		slog.Int("passes", stats.Passes),
		slog.Int("flushes", stats.Flushes))
	return nil
}

// BroadcastResize notifies every pass, in execution order, exactly
// once of a backbuffer size change.
func (s *Scheduler) BroadcastResize(width, height int) {
	for _, e := range s.passes {
		e.pass.BackbufferResized(width, height)
	}
}

// UnloadAll unloads every pass and empties the scheduler. Deferred
// tasks are dropped.
func (s *Scheduler) UnloadAll() {
	for _, e := range s.passes {
		e.pass.Unload()
	}
	s.passes = nil
	s.deferred = nil
}

// Stats returns the statistics of the most recent frame.
func (s *Scheduler) Stats() FrameStats { return s.stats }
