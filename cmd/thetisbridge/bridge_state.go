package main

import "fmt"

// MenuToggle is the menu shown/hidden flip-flop driven by the mute key.
type MenuToggle bool

const (
	MenuOff MenuToggle = false
	MenuOn  MenuToggle = true
)

// Switch returns the opposite state.
func (m MenuToggle) Switch() MenuToggle { return !m }

func (m MenuToggle) String() string {
	if m {
		return "on"
	}
	return "off"
}

// BridgeState is the daemon-owned state of the dispatch engine.
//
// All fields are mutated only by Reduce, which runs on the daemon goroutine.
// Workers never see this struct; they receive already-computed commands.
// If event decoding is ever parallelised these fields need a mutex.
type BridgeState struct {
	// TuneSteps resumes from the step index reported by Thetis on every
	// step change.
	TuneSteps *CircularCursor[StepEntry]

	// Menu tracks the last selected overlay menu option.
	Menu *CircularCursor[MenuEntry]

	// MenuToggle is flipped by the mute key.
	MenuToggle MenuToggle

	// StepPending is set when the tune step changed and cleared by the next
	// volume-key adjustment, which first snaps VFO A to a 1 kHz boundary.
	StepPending bool
}

// NewBridgeState builds the engine state from the lookup tables.
func NewBridgeState(t Tables) (*BridgeState, error) {
	steps, err := NewCircularCursor(t.TuneSteps)
	if err != nil {
		return nil, fmt.Errorf("tune steps: %w", err)
	}
	menu, err := NewCircularCursor(t.Menu)
	if err != nil {
		return nil, fmt.Errorf("menu: %w", err)
	}
	return &BridgeState{
		TuneSteps:  steps,
		Menu:       menu,
		MenuToggle: MenuOff,
	}, nil
}

// StateLabel names the dispatch state for logs.
func (s *BridgeState) StateLabel() string {
	if s.StepPending {
		return "step_pending"
	}
	return "idle"
}
