package stage

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func TestRenderConfigDefaults(t *testing.T) {
	cfg := NewRenderConfig()

	if got, want := cfg.Blend(), BlendAlpha(); got != want {
		t.Errorf("Blend() = %+v, want alpha preset", got)
	}
	if got, want := cfg.DepthCompare(), gputypes.CompareFunctionAlways; got != want {
		t.Errorf("DepthCompare() = %v, want %v", got, want)
	}
	if cfg.DepthWrite() {
		t.Error("DepthWrite() = true, want false")
	}
	if cfg.Effect() != nil {
		t.Error("Effect() != nil, want nil")
	}
}

func TestRenderConfigIdentity(t *testing.T) {
	a := NewRenderConfig(WithBlend(BlendAdditive()))
	b := NewRenderConfig(WithBlend(BlendAdditive()))

	tests := []struct {
		name string
		c, o *RenderConfig
		want bool
	}{
		{"same pointer", a, a, false},
		{"equal values, distinct pointers", a, b, true},
		{"against nil", a, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.DiffersFrom(tt.o); got != tt.want {
				t.Errorf("DiffersFrom() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRenderConfigActivateRequiresEffect(t *testing.T) {
	cam := NewCamera(10, 10)

	hookRuns := 0
	hook := func(*Camera) { hookRuns++ }

	// Without an effect the hook must not fire.
	NewRenderConfig(WithPrepare(hook)).Activate(cam)
	if hookRuns != 0 {
		t.Errorf("prepare ran %d times without effect, want 0", hookRuns)
	}

	NewRenderConfig(WithEffect(NewEffect("fx", "// wgsl")), WithPrepare(hook)).Activate(cam)
	if hookRuns != 1 {
		t.Errorf("prepare ran %d times with effect, want 1", hookRuns)
	}
}

func TestDefaultRenderConfigIsShared(t *testing.T) {
	if DefaultRenderConfig() != DefaultRenderConfig() {
		t.Error("DefaultRenderConfig() returned distinct pointers")
	}
}

func TestBlendPresets(t *testing.T) {
	tests := []struct {
		name    string
		state   BlendState
		wantSrc gputypes.BlendFactor
		wantDst gputypes.BlendFactor
	}{
		{"alpha", BlendAlpha(), gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorOneMinusSrcAlpha},
		{"premultiplied", BlendPremultiplied(), gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha},
		{"additive", BlendAdditive(), gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorOne},
		{"opaque", BlendOpaque(), gputypes.BlendFactorOne, gputypes.BlendFactorZero},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Color.SrcFactor; got != tt.wantSrc {
				t.Errorf("Color.SrcFactor = %v, want %v", got, tt.wantSrc)
			}
			if got := tt.state.Color.DstFactor; got != tt.wantDst {
				t.Errorf("Color.DstFactor = %v, want %v", got, tt.wantDst)
			}
			if got, want := tt.state.Color.Operation, gputypes.BlendOperationAdd; got != want {
				t.Errorf("Color.Operation = %v, want %v", got, want)
			}
		})
	}
}
