package main

import "fmt"

// ScaleValue converts a raw 0-127 MIDI value into the CAT parameter string
// for a control with the given scale. ok is false when the value produces no
// command (the bipolar dead zone, or out-of-range input).
func ScaleValue(raw, scale int) (string, bool) {
	if scale == percentScale {
		return ScalePercent(raw)
	}
	return ScaleBipolar(raw, scale)
}

// ScalePercent maps [0,127] linearly onto [0,99], zero-padded to 3 digits.
// floor(127*100/127) would be 100; the top of the range is held at 99.
func ScalePercent(raw int) (string, bool) {
	if raw < 0 || raw > midiValueMax {
		return "", false
	}
	return fmt.Sprintf("%03d", min(raw*100/midiValueMax, percentMax)), true
}

// ScaleBipolar maps a knob centred at 65 onto [-scale, +scale].
//
//	[0,64]   -> "-DDDD", scale - floor(raw/64*scale)
//	65       -> no value (dead zone)
//	[66,126] -> "DDDDD", floor((raw-66)/60*scale)
//
// Products are computed in integers before dividing so the floor is exact.
func ScaleBipolar(raw, scale int) (string, bool) {
	switch {
	case raw >= 0 && raw <= bipolarNegMax:
		v := scale - raw*scale/bipolarNegMax
		return fmt.Sprintf("-%04d", v), true
	case raw >= bipolarPosMin && raw <= bipolarPosMax:
		v := (raw - bipolarPosMin) * scale / (bipolarPosMax - bipolarPosMin)
		return fmt.Sprintf("%05d", v), true
	default:
		return "", false
	}
}

// knobCommand builds the full CAT command for a continuous-control event,
// applying the sampling gate. ok is false when nothing should be sent.
func knobCommand(spec CommandSpec, value int) (string, bool) {
	if value%knobSampleModulo != 0 {
		return "", false
	}
	scaled, ok := ScaleValue(value, spec.Scale)
	if !ok {
		return "", false
	}
	return spec.Code + scaled + catTerminator, true
}
