package main

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// Events
// ============================================================================
// Events are the only input to the reducer. Input sources (evdev keyboard,
// MIDI, IPC, overlay menu) produce input events; CAT workers produce
// observation events carrying query replies back to the daemon goroutine.
// ============================================================================

// Event is the reducer input marker.
type Event interface {
	eventMarker()
}

// KeyPressed is a suppressed media key press (or auto-repeat).
type KeyPressed struct {
	Code int `json:"code"`
}

func (KeyPressed) eventMarker() {}

// ControlChange is a MIDI continuous-control event.
type ControlChange struct {
	Control int `json:"control"`
	Value   int `json:"value"`
}

func (ControlChange) eventMarker() {}

// NoteEvent is a MIDI note press or release.
type NoteEvent struct {
	Note int  `json:"note"`
	Edge Edge `json:"edge"`
}

func (NoteEvent) eventMarker() {}

// ProgramChange is a MIDI program-change event.
type ProgramChange struct {
	Program int `json:"program"`
}

func (ProgramChange) eventMarker() {}

// MenuSelected is reported by the overlay when the user picks a menu option.
type MenuSelected struct {
	Index int `json:"index"`
}

func (MenuSelected) eventMarker() {}

// StepSizeObserved carries the reply to a ZZAC; query issued for a step change.
type StepSizeObserved struct {
	Reply     string
	Direction Direction
}

func (StepSizeObserved) eventMarker() {}

// FrequencyObserved carries the reply to a ZZFA; query issued for a snap.
type FrequencyObserved struct {
	Reply     string
	Direction Direction
}

func (FrequencyObserved) eventMarker() {}

// QueryFailed is emitted when a CAT query could not complete.
type QueryFailed struct {
	Command Command
	Err     error
}

func (QueryFailed) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================
// Input events cross the IPC socket as {"type": "...", "data": {...}}.
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete input Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	var ev Event
	switch env.Type {
	case "key_pressed":
		var e KeyPressed
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal KeyPressed: %w", err)
		}
		ev = e

	case "control_change":
		var e ControlChange
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal ControlChange: %w", err)
		}
		ev = e

	case "note":
		var e NoteEvent
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal NoteEvent: %w", err)
		}
		if e.Edge != EdgePress && e.Edge != EdgeRelease {
			return nil, fmt.Errorf("unmarshal NoteEvent: invalid edge %q", e.Edge)
		}
		ev = e

	case "program_change":
		var e ProgramChange
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal ProgramChange: %w", err)
		}
		ev = e

	case "menu_selected":
		var e MenuSelected
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal MenuSelected: %w", err)
		}
		ev = e

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}

	return ev, nil
}

// MarshalEvent serializes an input Event into a JSON envelope
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e.(type) {
	case KeyPressed:
		env.Type = "key_pressed"
	case ControlChange:
		env.Type = "control_change"
	case NoteEvent:
		env.Type = "note"
	case ProgramChange:
		env.Type = "program_change"
	case MenuSelected:
		env.Type = "menu_selected"
	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", env.Type, err)
	}
	env.Data = data

	return json.Marshal(env)
}
