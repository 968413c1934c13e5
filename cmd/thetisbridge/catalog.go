package main

import (
	"fmt"
	"sort"
)

// ============================================================================
// Command Table
// ============================================================================
// Static mapping from logical controls to Thetis CAT commands. Everything in
// this file is data: tables are built once at startup (defaults below, then
// optionally replaced from the YAML config) and never mutated afterwards.
// ============================================================================

// Thetis CAT commands used directly by the dispatch engine.
const (
	catVFOAControl  = "ZZSW0;" // VFO A TX buttons
	catVFOBControl  = "ZZSW1;" // VFO B TX buttons
	catStepSize     = "ZZAC"   // tune step index prefix (ZZACnn)
	catReadStepSize = "ZZAC;"  // reads the tune step index
	catVFOAFreq     = "ZZFA"   // sets or reads VFO A frequency (11 digits, Hz)
	catVFOAUp       = "ZZSB;"  // VFO A up one tune step
	catVFOADown     = "ZZSA;"  // VFO A down one tune step
)

// catTerminator ends every CAT command.
const catTerminator = ";"

// CommandSpec describes a continuous control: the CAT prefix and the scale
// passed to the value scaler.
type CommandSpec struct {
	Code  string `yaml:"code"`
	Scale int    `yaml:"scale"`
}

// StepEntry is one row of the Thetis tune-step table (ZZAC00..ZZAC25).
type StepEntry struct {
	StepHz int    `yaml:"step_hz"`
	Code   string `yaml:"code"`
	Active bool   `yaml:"active"`
	Label  string `yaml:"label"`
}

// MenuEntry is one option of the overlay selection menu.
// Command may be empty for entries that only change local behavior.
type MenuEntry struct {
	Label   string `yaml:"label"`
	Command string `yaml:"command"`
}

// Edge is the press/release edge of a note event.
type Edge string

const (
	EdgePress   Edge = "press"
	EdgeRelease Edge = "release"
)

// MomentaryKey identifies a note edge.
type MomentaryKey struct {
	Note int
	Edge Edge
}

func (k MomentaryKey) String() string { return fmt.Sprintf("%d-%s", k.Note, k.Edge) }

// KeyKind is the semantic type of a suppressed key.
type KeyKind string

const (
	KeyKindStepTune KeyKind = "stepTune"
	KeyKindVolume   KeyKind = "volume"
	KeyKindMute     KeyKind = "mute"
)

// Direction of a key action.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionNone Direction = "none"
)

// KeyBinding is what a suppressed key code stands for.
type KeyBinding struct {
	Kind      KeyKind   `yaml:"kind"`
	Direction Direction `yaml:"direction"`
}

// Tables groups every lookup table the reducer consults.
type Tables struct {
	Knobs     map[int]CommandSpec
	Momentary map[MomentaryKey]string
	Programs  map[int]string
	Keys      map[int]KeyBinding
	TuneSteps []StepEntry
	Menu      []MenuEntry
}

// Knob looks up the CommandSpec for a MIDI control number.
func (t *Tables) Knob(control int) (CommandSpec, bool) {
	spec, ok := t.Knobs[control]
	return spec, ok
}

// MomentaryCommand looks up the literal command bound to a note edge.
func (t *Tables) MomentaryCommand(note int, edge Edge) (string, bool) {
	cmd, ok := t.Momentary[MomentaryKey{Note: note, Edge: edge}]
	return cmd, ok
}

// ProgramCommand looks up the literal command bound to a program change.
func (t *Tables) ProgramCommand(program int) (string, bool) {
	cmd, ok := t.Programs[program]
	return cmd, ok
}

// Key looks up the binding of a suppressed key code.
func (t *Tables) Key(code int) (KeyBinding, bool) {
	b, ok := t.Keys[code]
	return b, ok
}

// KeyCodes returns the bound key codes in ascending order.
func (t *Tables) KeyCodes() []int {
	codes := make([]int, 0, len(t.Keys))
	for c := range t.Keys {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}

// MenuLabels returns the menu option labels in table order.
func (t *Tables) MenuLabels() []string {
	labels := make([]string, len(t.Menu))
	for i, m := range t.Menu {
		labels[i] = m.Label
	}
	return labels
}

// DefaultTables returns the built-in mapping for an Akai LPD8 and a media-key
// knob, matching Thetis' CAT command set.
func DefaultTables() Tables {
	return Tables{
		Knobs: map[int]CommandSpec{
			101: {Code: "ZZLA", Scale: 100},  // RX1 volume
			102: {Code: "ZZLB", Scale: 100},  // RX0 stereo balance
			103: {Code: "ZZLD", Scale: 100},  // RX1 stereo balance
			104: {Code: "ZZLC", Scale: 100},  // RX2 stereo balance
			105: {Code: "ZZTO", Scale: 100},  // TUN power
			106: {Code: "ZZFL", Scale: 9999}, // RX1 DSP filter low
			107: {Code: "ZZFH", Scale: 9999}, // RX1 DSP filter high
			108: {Code: "ZZIT", Scale: 1000}, // variable filter shift
		},
		Momentary: map[MomentaryKey]string{
			{Note: 25, Edge: EdgePress}:   "ZZTX1;", // MOX on
			{Note: 25, Edge: EdgeRelease}: "ZZTX0;", // MOX off
			{Note: 29, Edge: EdgePress}:   "ZZTX1;",
			{Note: 29, Edge: EdgeRelease}: "ZZTX0;",
			{Note: 26, Edge: EdgePress}:   "ZZTU1;", // TUN on
			{Note: 26, Edge: EdgeRelease}: "ZZTU0;", // TUN off
			{Note: 32, Edge: EdgePress}:   "ZZIU;",  // reset filter shift
		},
		Programs: map[int]string{
			0: "ZZBS160;",
			1: "ZZBS080;",
			2: "ZZBS040;",
			3: "ZZBS020;",
			4: "ZZBS017;",
			5: "ZZBS015;",
			6: "ZZBS012;",
			7: "ZZBS010;",
		},
		Keys: map[int]KeyBinding{
			KEY_NEXTSONG:     {Kind: KeyKindStepTune, Direction: DirectionUp},
			KEY_PREVIOUSSONG: {Kind: KeyKindStepTune, Direction: DirectionDown},
			KEY_VOLUMEUP:     {Kind: KeyKindVolume, Direction: DirectionUp},
			KEY_VOLUMEDOWN:   {Kind: KeyKindVolume, Direction: DirectionDown},
			KEY_MUTE:         {Kind: KeyKindMute, Direction: DirectionNone},
		},
		TuneSteps: defaultTuneSteps(),
		Menu: []MenuEntry{
			{Label: "VFO A Control", Command: catVFOAControl},
			{Label: "VFO B Control", Command: catVFOBControl},
			{Label: "VFO A Volume"},
			{Label: "VFO B Volume"},
		},
	}
}

func defaultTuneSteps() []StepEntry {
	rows := []struct {
		hz     int
		label  string
		active bool
	}{
		{1, "1Hz", true},
		{2, "2Hz", false},
		{10, "10Hz", true},
		{25, "25Hz", false},
		{50, "50Hz", true},
		{100, "100Hz", true},
		{250, "250Hz", false},
		{500, "500Hz", true},
		{1000, "1KHz", true},
		{2000, "2KHz", false},
		{2500, "2.5KHz", false},
		{5000, "5KHz", true},
		{6250, "6.25KHz", false},
		{9000, "9KHz", false},
		{10000, "10KHz", false},
		{12500, "12.5KHz", false},
		{15000, "15KHz", false},
		{20000, "20KHz", false},
		{25000, "25KHz", false},
		{30000, "30KHz", false},
		{50000, "50KHz", false},
		{100000, "100KHz", false},
		{250000, "250KHz", false},
		{500000, "500KHz", false},
		{1000000, "1MHz", false},
		{10000000, "10MHz", false},
	}

	steps := make([]StepEntry, len(rows))
	for i, r := range rows {
		steps[i] = StepEntry{
			StepHz: r.hz,
			Code:   fmt.Sprintf("ZZAC%02d;", i),
			Active: r.active,
			Label:  r.label,
		}
	}
	return steps
}
