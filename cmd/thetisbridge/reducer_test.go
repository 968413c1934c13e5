package main

import (
	"errors"
	"reflect"
	"testing"
)

func newTestEngine(t *testing.T) (*BridgeState, *Tables) {
	t.Helper()
	tables := DefaultTables()
	state, err := NewBridgeState(tables)
	if err != nil {
		t.Fatalf("NewBridgeState: %v", err)
	}
	return state, &tables
}

func catCommands(cmds []Command) []string {
	var out []string
	for _, c := range cmds {
		if s, ok := c.(CmdSendCAT); ok {
			out = append(out, s.Command)
		}
	}
	return out
}

func TestReduce_StepTuneDown_EndToEnd(t *testing.T) {
	state, tables := newTestEngine(t)

	rr := Reduce(state, KeyPressed{Code: KEY_PREVIOUSSONG}, tables)
	if len(rr.Commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(rr.Commands))
	}
	q, ok := rr.Commands[0].(CmdQueryStepSize)
	if !ok || q.Direction != DirectionDown {
		t.Fatalf("expected CmdQueryStepSize(down), got %v", rr.Commands[0])
	}
	if rr.State.StepPending {
		t.Fatalf("StepPending must not be set before the reply arrives")
	}

	// Thetis reports step 5 (100Hz); the next active step below is 50Hz.
	rr = Reduce(rr.State, StepSizeObserved{Reply: "ZZAC05", Direction: q.Direction}, tables)
	want := []Command{
		CmdSendCAT{Command: "ZZAC04;"},
		CmdNotify{Message: "Step tune 50Hz"},
	}
	if !reflect.DeepEqual(rr.Commands, want) {
		t.Fatalf("commands = %v, want %v", rr.Commands, want)
	}
	if !rr.State.StepPending {
		t.Errorf("expected StepPending after a step change")
	}
	if rr.Abandoned != nil {
		t.Errorf("unexpected abandon: %v", rr.Abandoned)
	}
}

func TestReduce_StepTuneScan(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		dir   Direction
		want  string
		label string
	}{
		{"up skips inactive", "ZZAC05", DirectionUp, "ZZAC07;", "Step tune 500Hz"},
		{"up wraps to smallest", "ZZAC11", DirectionUp, "ZZAC00;", "Step tune 1Hz"},
		{"down wraps to largest active", "ZZAC00", DirectionDown, "ZZAC11;", "Step tune 5KHz"},
		{"from inactive step", "ZZAC03", DirectionUp, "ZZAC04;", "Step tune 50Hz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, tables := newTestEngine(t)
			rr := Reduce(state, StepSizeObserved{Reply: tt.reply, Direction: tt.dir}, tables)
			if got := catCommands(rr.Commands); len(got) != 1 || got[0] != tt.want {
				t.Fatalf("cat commands = %v, want [%s]", got, tt.want)
			}
			n, ok := rr.Commands[1].(CmdNotify)
			if !ok || n.Message != tt.label {
				t.Errorf("notify = %v, want %q", rr.Commands[1], tt.label)
			}
		})
	}
}

func TestReduce_StepTuneAbandoned(t *testing.T) {
	tests := []struct {
		name    string
		ev      Event
		wantErr error
	}{
		{"index out of table", StepSizeObserved{Reply: "ZZAC30", Direction: DirectionUp}, ErrInvalidKey},
		{"unparseable reply", StepSizeObserved{Reply: "ZZAC?!", Direction: DirectionUp}, nil},
		{"query failed", QueryFailed{Command: CmdQueryStepSize{Direction: DirectionUp}, Err: errors.New("boom")}, errStepQueryFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, tables := newTestEngine(t)
			rr := Reduce(state, tt.ev, tables)
			if len(rr.Commands) != 0 {
				t.Fatalf("expected no commands, got %v", rr.Commands)
			}
			if rr.Abandoned == nil {
				t.Fatalf("expected the action to be abandoned")
			}
			if tt.wantErr != nil && !errors.Is(rr.Abandoned, tt.wantErr) {
				t.Errorf("Abandoned = %v, want %v", rr.Abandoned, tt.wantErr)
			}
			if rr.State.StepPending {
				t.Errorf("StepPending must stay clear")
			}
			if k, _ := rr.State.TuneSteps.Current(); k != 0 {
				t.Errorf("step cursor moved to %d", k)
			}
		})
	}
}

func TestReduce_VolumeIdle_Nudges(t *testing.T) {
	state, tables := newTestEngine(t)

	rr := Reduce(state, KeyPressed{Code: KEY_VOLUMEUP}, tables)
	if got := catCommands(rr.Commands); !reflect.DeepEqual(got, []string{"ZZSB;"}) {
		t.Errorf("volume up = %v, want [ZZSB;]", got)
	}
	rr = Reduce(rr.State, KeyPressed{Code: KEY_VOLUMEDOWN}, tables)
	if got := catCommands(rr.Commands); !reflect.DeepEqual(got, []string{"ZZSA;"}) {
		t.Errorf("volume down = %v, want [ZZSA;]", got)
	}
}

func TestReduce_SnapThenAdjust(t *testing.T) {
	state, tables := newTestEngine(t)
	state.StepPending = true

	rr := Reduce(state, KeyPressed{Code: KEY_VOLUMEUP}, tables)
	if len(rr.Commands) != 1 {
		t.Fatalf("expected 1 command, got %v", rr.Commands)
	}
	q, ok := rr.Commands[0].(CmdQueryFrequency)
	if !ok || q.Direction != DirectionUp {
		t.Fatalf("expected CmdQueryFrequency(up), got %v", rr.Commands[0])
	}

	rr = Reduce(rr.State, FrequencyObserved{Reply: "ZZFA00014250123", Direction: q.Direction}, tables)
	got := catCommands(rr.Commands)
	if !reflect.DeepEqual(got, []string{"ZZFA00014251000;"}) {
		t.Fatalf("commands = %v, want [ZZFA00014251000;]", got)
	}
	for _, c := range got {
		if c == "ZZSB;" {
			t.Fatalf("ZZSB; must not be sent after a snap")
		}
	}
	if rr.State.StepPending {
		t.Errorf("StepPending must be cleared after the adjustment")
	}

	// Next press is a plain nudge.
	rr = Reduce(rr.State, KeyPressed{Code: KEY_VOLUMEUP}, tables)
	if got := catCommands(rr.Commands); !reflect.DeepEqual(got, []string{"ZZSB;"}) {
		t.Errorf("after snap volume up = %v, want [ZZSB;]", got)
	}
}

func TestReduce_SnapNotApplied_Nudges(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"on boundary", FrequencyObserved{Reply: "ZZFA00014250000", Direction: DirectionDown}, "ZZSA;"},
		{"bad reply", FrequencyObserved{Reply: "garbage", Direction: DirectionUp}, "ZZSB;"},
		{"query failed", QueryFailed{Command: CmdQueryFrequency{Direction: DirectionDown}, Err: errors.New("timeout")}, "ZZSA;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, tables := newTestEngine(t)
			state.StepPending = true

			rr := Reduce(state, tt.ev, tables)
			if got := catCommands(rr.Commands); !reflect.DeepEqual(got, []string{tt.want}) {
				t.Fatalf("commands = %v, want [%s]", got, tt.want)
			}
			if rr.State.StepPending {
				t.Errorf("StepPending must be cleared")
			}
		})
	}
}

func TestReduce_MuteTogglesMenu(t *testing.T) {
	state, tables := newTestEngine(t)

	rr := Reduce(state, KeyPressed{Code: KEY_MUTE}, tables)
	if rr.State.MenuToggle != MenuOn {
		t.Fatalf("MenuToggle = %s, want on", rr.State.MenuToggle)
	}
	want := CmdShowMenu{Options: tables.MenuLabels(), Selected: 0}
	if len(rr.Commands) != 1 || !reflect.DeepEqual(rr.Commands[0], want) {
		t.Fatalf("commands = %v, want [%v]", rr.Commands, want)
	}
	if len(catCommands(rr.Commands)) != 0 {
		t.Errorf("mute must not send CAT commands")
	}

	rr = Reduce(rr.State, KeyPressed{Code: KEY_MUTE}, tables)
	if rr.State.MenuToggle != MenuOff {
		t.Fatalf("MenuToggle = %s, want off", rr.State.MenuToggle)
	}
	if len(rr.Commands) != 1 || !reflect.DeepEqual(rr.Commands[0], CmdNotify{Message: "Menu closed"}) {
		t.Errorf("commands = %v, want menu closed notification", rr.Commands)
	}
}

func TestReduce_MenuSelected(t *testing.T) {
	state, tables := newTestEngine(t)
	state.MenuToggle = MenuOn

	rr := Reduce(state, MenuSelected{Index: 1}, tables)
	want := []Command{
		CmdSendCAT{Command: "ZZSW1;"},
		CmdNotify{Message: "VFO B Control"},
	}
	if !reflect.DeepEqual(rr.Commands, want) {
		t.Fatalf("commands = %v, want %v", rr.Commands, want)
	}
	if rr.State.MenuToggle != MenuOff {
		t.Errorf("menu should close after a selection")
	}

	// The menu reopens at the last selection.
	rr = Reduce(rr.State, KeyPressed{Code: KEY_MUTE}, tables)
	if m, ok := rr.Commands[0].(CmdShowMenu); !ok || m.Selected != 1 {
		t.Errorf("reopened menu = %v, want selected 1", rr.Commands[0])
	}

	// Entries without a command only notify.
	rr = Reduce(rr.State, MenuSelected{Index: 2}, tables)
	if got := catCommands(rr.Commands); len(got) != 0 {
		t.Errorf("VFO A Volume sent %v, want nothing", got)
	}

	rr.State.MenuToggle = MenuOn
	rr = Reduce(rr.State, MenuSelected{Index: 9}, tables)
	if !errors.Is(rr.Abandoned, ErrInvalidKey) || len(rr.Commands) != 0 {
		t.Errorf("out of range selection: abandoned=%v commands=%v", rr.Abandoned, rr.Commands)
	}
}

func TestReduce_LiteralBindings(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want []string
	}{
		{"mox press", NoteEvent{Note: 25, Edge: EdgePress}, []string{"ZZTX1;"}},
		{"mox release", NoteEvent{Note: 29, Edge: EdgeRelease}, []string{"ZZTX0;"}},
		{"tune press", NoteEvent{Note: 26, Edge: EdgePress}, []string{"ZZTU1;"}},
		{"shift reset press", NoteEvent{Note: 32, Edge: EdgePress}, []string{"ZZIU;"}},
		{"shift reset release unbound", NoteEvent{Note: 32, Edge: EdgeRelease}, nil},
		{"unbound note", NoteEvent{Note: 99, Edge: EdgePress}, nil},
		{"band 20m", ProgramChange{Program: 3}, []string{"ZZBS020;"}},
		{"unbound program", ProgramChange{Program: 8}, nil},
		{"knob volume", ControlChange{Control: 101, Value: 64}, []string{"ZZLA050;"}},
		{"knob filter low", ControlChange{Control: 106, Value: 124}, []string{"ZZFL09665;"}},
		{"knob shift negative", ControlChange{Control: 108, Value: 32}, []string{"ZZIT-0500;"}},
		{"knob gated", ControlChange{Control: 101, Value: 63}, nil},
		{"knob unbound", ControlChange{Control: 1, Value: 64}, nil},
		{"unbound key", KeyPressed{Code: 1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, tables := newTestEngine(t)
			rr := Reduce(state, tt.ev, tables)
			if got := catCommands(rr.Commands); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("commands = %v, want %v", got, tt.want)
			}
			if len(rr.Commands) != len(tt.want) {
				t.Errorf("unexpected non-CAT commands: %v", rr.Commands)
			}
		})
	}
}

func TestReduce_MenuSelectedWhileClosedIsIgnored(t *testing.T) {
	state, tables := newTestEngine(t)

	// Open, then close the menu with the mute key.
	rr := Reduce(state, KeyPressed{Code: KEY_MUTE}, tables)
	rr = Reduce(rr.State, KeyPressed{Code: KEY_MUTE}, tables)

	rr = Reduce(rr.State, MenuSelected{Index: 1}, tables)
	if len(rr.Commands) != 0 {
		t.Fatalf("stale selection produced %v", rr.Commands)
	}
	if !errors.Is(rr.Abandoned, errMenuClosed) {
		t.Errorf("abandoned = %v, want errMenuClosed", rr.Abandoned)
	}
	if k, _ := rr.State.Menu.Current(); k != 0 {
		t.Errorf("stale selection moved the menu cursor to %d", k)
	}
}

func TestReduce_SnapAcceptsBareFrequency(t *testing.T) {
	state, tables := newTestEngine(t)
	state.StepPending = true

	rr := Reduce(state, FrequencyObserved{Reply: "14250123", Direction: DirectionUp}, tables)
	if got := catCommands(rr.Commands); !reflect.DeepEqual(got, []string{"ZZFA00014251000;"}) {
		t.Errorf("commands = %v, want [ZZFA00014251000;]", got)
	}
	if rr.Abandoned != nil {
		t.Errorf("unexpected abandon: %v", rr.Abandoned)
	}
}
