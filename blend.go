// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package stage

import "github.com/gogpu/gputypes"

// BlendComponent describes blending for one channel group.
type BlendComponent struct {
	SrcFactor gputypes.BlendFactor
	DstFactor gputypes.BlendFactor
	Operation gputypes.BlendOperation
}

// BlendState describes color and alpha blending for a batch.
// States are compared by value when hashed into pipeline keys; the
// coalescing logic in BatchSession never inspects them directly.
type BlendState struct {
	Color BlendComponent
	Alpha BlendComponent
}

// BlendAlpha returns standard non-premultiplied alpha blending
// (src-alpha, one-minus-src-alpha).
func BlendAlpha() BlendState {
	return BlendState{
		Color: BlendComponent{
			SrcFactor: gputypes.BlendFactorSrcAlpha,
			DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
			Operation: gputypes.BlendOperationAdd,
		},
		Alpha: BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
			Operation: gputypes.BlendOperationAdd,
		},
	}
}

// BlendPremultiplied returns premultiplied-alpha blending
// (one, one-minus-src-alpha).
func BlendPremultiplied() BlendState {
	return BlendState{
		Color: BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
			Operation: gputypes.BlendOperationAdd,
		},
		Alpha: BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
			Operation: gputypes.BlendOperationAdd,
		},
	}
}

// BlendAdditive returns additive blending (src-alpha, one).
func BlendAdditive() BlendState {
	return BlendState{
		Color: BlendComponent{
			SrcFactor: gputypes.BlendFactorSrcAlpha,
			DstFactor: gputypes.BlendFactorOne,
			Operation: gputypes.BlendOperationAdd,
		},
		Alpha: BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOne,
			Operation: gputypes.BlendOperationAdd,
		},
	}
}

// BlendOpaque returns blending disabled (one, zero): source replaces
// destination.
func BlendOpaque() BlendState {
	return BlendState{
		Color: BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorZero,
			Operation: gputypes.BlendOperationAdd,
		},
		Alpha: BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorZero,
			Operation: gputypes.BlendOperationAdd,
		},
	}
}
