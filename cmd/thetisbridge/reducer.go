package main

import (
	"errors"
	"fmt"
)

// This file implements the dispatch engine's pure half:
//
//   - Events: raw input (keys, MIDI, menu picks) and CAT query observations
//   - Commands: CAT writes/queries and overlay notifications
//   - Reduce(): computes next state + commands, without performing I/O
//
// Queries never block the reducer. A step-tune key emits CmdQueryStepSize and
// the daemon feeds the reply back as StepSizeObserved, so the cursor is only
// ever touched from the daemon goroutine.

// ==============================
// Reducer input/output
// ==============================

// ReduceResult is the output of Reduce(): next state plus the Commands to execute.
//
// Commands of one result are executed in order. Abandoned is set when the event
// was understood but the action, or the snap part of it, had to be dropped
// (bad reply, unknown step). The daemon logs it.
type ReduceResult struct {
	State     *BridgeState
	Commands  []Command
	Abandoned error
}

// errStepQueryFailed marks a step change abandoned because ZZAC; could not be read.
var errStepQueryFailed = errors.New("step size query failed")

// errMenuClosed marks a menu selection that arrived while the menu was hidden.
var errMenuClosed = errors.New("menu is closed")

// Reduce is the pure reducer:
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Lookup misses are silently ignored (no commands, no error)
func Reduce(s *BridgeState, e Event, t *Tables) ReduceResult {
	var cmds []Command
	var abandoned error

	switch ev := e.(type) {
	case KeyPressed:
		b, ok := t.Key(ev.Code)
		if !ok {
			break
		}
		switch b.Kind {
		case KeyKindStepTune:
			cmds = append(cmds, CmdQueryStepSize{Direction: b.Direction})

		case KeyKindVolume:
			if s.StepPending {
				cmds = append(cmds, CmdQueryFrequency{Direction: b.Direction})
			} else {
				cmds = append(cmds, nudge(b.Direction))
			}

		case KeyKindMute:
			s.MenuToggle = s.MenuToggle.Switch()
			if s.MenuToggle == MenuOn {
				selected, _ := s.Menu.Current()
				cmds = append(cmds, CmdShowMenu{Options: t.MenuLabels(), Selected: selected})
			} else {
				cmds = append(cmds, CmdNotify{Message: "Menu closed"})
			}
		}

	case ControlChange:
		spec, ok := t.Knob(ev.Control)
		if !ok {
			break
		}
		if cmd, ok := knobCommand(spec, ev.Value); ok {
			cmds = append(cmds, CmdSendCAT{Command: cmd})
		}

	case NoteEvent:
		if cmd, ok := t.MomentaryCommand(ev.Note, ev.Edge); ok {
			cmds = append(cmds, CmdSendCAT{Command: cmd})
		}

	case ProgramChange:
		if cmd, ok := t.ProgramCommand(ev.Program); ok {
			cmds = append(cmds, CmdSendCAT{Command: cmd})
		}

	case MenuSelected:
		// A click that lands after the mute key closed the menu is stale.
		if s.MenuToggle == MenuOff {
			abandoned = fmt.Errorf("menu selection %d: %w", ev.Index, errMenuClosed)
			break
		}
		if err := s.Menu.StartFrom(ev.Index); err != nil {
			abandoned = fmt.Errorf("menu selection: %w", err)
			break
		}
		_, entry := s.Menu.Current()
		if entry.Command != "" {
			cmds = append(cmds, CmdSendCAT{Command: entry.Command})
		}
		cmds = append(cmds, CmdNotify{Message: entry.Label})
		s.MenuToggle = MenuOff

	case StepSizeObserved:
		idx, err := parseStepIndex(ev.Reply)
		if err != nil {
			abandoned = fmt.Errorf("step change: %w", err)
			break
		}
		if err := s.TuneSteps.StartFrom(idx); err != nil {
			abandoned = fmt.Errorf("step change: %w", err)
			break
		}
		// Up walks towards larger steps, down towards smaller ones.
		_, entry, ok := s.TuneSteps.Seek(ev.Direction, func(se StepEntry) bool { return se.Active })
		if !ok {
			abandoned = errors.New("step change: no active tune step")
			break
		}
		cmds = append(cmds,
			CmdSendCAT{Command: entry.Code},
			CmdNotify{Message: "Step tune " + entry.Label},
		)
		s.StepPending = true

	case FrequencyObserved:
		target, applied, err := Snap(ev.Reply, ev.Direction)
		if err != nil {
			abandoned = fmt.Errorf("frequency snap: %w", err)
		}
		if applied {
			cmds = append(cmds, CmdSendCAT{Command: freqCommand(target)})
		} else {
			cmds = append(cmds, nudge(ev.Direction))
		}
		s.StepPending = false

	case QueryFailed:
		switch q := ev.Command.(type) {
		case CmdQueryStepSize:
			abandoned = fmt.Errorf("%w: %v", errStepQueryFailed, ev.Err)
		case CmdQueryFrequency:
			// Unknown frequency: behave as if it were already on a boundary.
			cmds = append(cmds, nudge(q.Direction))
			s.StepPending = false
		}

	default:
		// Unknown event type: no-op.
	}

	return ReduceResult{
		State:     s,
		Commands:  cmds,
		Abandoned: abandoned,
	}
}

// nudge moves VFO A one tune step in dir.
func nudge(dir Direction) Command {
	if dir == DirectionDown {
		return CmdSendCAT{Command: catVFOADown}
	}
	return CmdSendCAT{Command: catVFOAUp}
}
