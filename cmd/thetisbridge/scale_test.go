package main

import (
	"strconv"
	"testing"
)

func TestScalePercent_RangeAndMonotonic(t *testing.T) {
	prev := -1
	for raw := 0; raw <= 127; raw++ {
		got, ok := ScalePercent(raw)
		if !ok {
			t.Fatalf("ScalePercent(%d) returned ok=false", raw)
		}
		if len(got) != 3 {
			t.Fatalf("ScalePercent(%d) = %q, want 3 digits", raw, got)
		}
		v, err := strconv.Atoi(got)
		if err != nil {
			t.Fatalf("ScalePercent(%d) = %q is not numeric: %v", raw, got, err)
		}
		if v < 0 || v > 99 {
			t.Fatalf("ScalePercent(%d) = %d, want within [0,99]", raw, v)
		}
		if v < prev {
			t.Fatalf("ScalePercent not monotonic at raw=%d: %d < %d", raw, v, prev)
		}
		prev = v
	}
}

func TestScalePercent_Values(t *testing.T) {
	tests := []struct {
		raw  int
		want string
	}{
		{0, "000"},
		{4, "003"},
		{64, "050"},
		{124, "097"},
		{127, "099"},
	}
	for _, tt := range tests {
		got, ok := ScalePercent(tt.raw)
		if !ok || got != tt.want {
			t.Errorf("ScalePercent(%d) = %q, %v; want %q", tt.raw, got, ok, tt.want)
		}
	}

	if _, ok := ScalePercent(128); ok {
		t.Errorf("ScalePercent(128) should be out of range")
	}
	if _, ok := ScalePercent(-1); ok {
		t.Errorf("ScalePercent(-1) should be out of range")
	}
}

func TestScaleBipolar_Boundaries(t *testing.T) {
	tests := []struct {
		raw    int
		scale  int
		want   string
		wantOK bool
	}{
		{0, 9999, "-9999", true},
		{0, 1000, "-1000", true},
		{32, 1000, "-0500", true},
		{64, 9999, "-0000", true},
		{65, 9999, "", false},
		{66, 9999, "00000", true},
		{96, 1000, "00500", true},
		{124, 9999, "09665", true},
		{126, 9999, "09999", true},
		{126, 1000, "01000", true},
		{127, 1000, "", false},
		{-1, 1000, "", false},
	}
	for _, tt := range tests {
		got, ok := ScaleBipolar(tt.raw, tt.scale)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ScaleBipolar(%d, %d) = %q, %v; want %q, %v", tt.raw, tt.scale, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestScaleValue_SelectsPolicy(t *testing.T) {
	if got, _ := ScaleValue(64, 100); got != "050" {
		t.Errorf("ScaleValue(64, 100) = %q, want percent policy 050", got)
	}
	if got, _ := ScaleValue(64, 1000); got != "-0000" {
		t.Errorf("ScaleValue(64, 1000) = %q, want bipolar policy -0000", got)
	}
}

func TestKnobCommand_SamplingGate(t *testing.T) {
	spec := CommandSpec{Code: "ZZLA", Scale: 100}
	for v := 0; v <= 127; v++ {
		cmd, ok := knobCommand(spec, v)
		if v%4 != 0 {
			if ok {
				t.Fatalf("value %d passed the gate and produced %q", v, cmd)
			}
			continue
		}
		if !ok {
			t.Fatalf("value %d should produce a command", v)
		}
	}

	if cmd, _ := knobCommand(spec, 64); cmd != "ZZLA050;" {
		t.Errorf("knobCommand(ZZLA, 64) = %q, want ZZLA050;", cmd)
	}
	if cmd, _ := knobCommand(CommandSpec{Code: "ZZFL", Scale: 9999}, 0); cmd != "ZZFL-9999;" {
		t.Errorf("knobCommand(ZZFL, 0) = %q, want ZZFL-9999;", cmd)
	}
}
