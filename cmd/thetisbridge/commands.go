package main

import (
	"fmt"
	"strings"
)

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect requested by the reducer: a CAT
// write or query, or an overlay notification.
type Command interface {
	commandMarker()
	String() string
}

// CmdSendCAT writes a literal CAT command, fire-and-forget.
type CmdSendCAT struct {
	Command string
}

func (CmdSendCAT) commandMarker()   {}
func (c CmdSendCAT) String() string { return fmt.Sprintf("CmdSendCAT(%s)", c.Command) }

// CmdQueryStepSize reads the current tune-step index; the reply comes back as
// StepSizeObserved carrying Direction.
type CmdQueryStepSize struct {
	Direction Direction
}

func (CmdQueryStepSize) commandMarker() {}
func (c CmdQueryStepSize) String() string {
	return fmt.Sprintf("CmdQueryStepSize(direction=%s)", c.Direction)
}

// CmdQueryFrequency reads VFO A; the reply comes back as FrequencyObserved.
type CmdQueryFrequency struct {
	Direction Direction
}

func (CmdQueryFrequency) commandMarker() {}
func (c CmdQueryFrequency) String() string {
	return fmt.Sprintf("CmdQueryFrequency(direction=%s)", c.Direction)
}

// CmdNotify shows transient overlay text.
type CmdNotify struct {
	Message string
}

func (CmdNotify) commandMarker()   {}
func (c CmdNotify) String() string { return fmt.Sprintf("CmdNotify(%q)", c.Message) }

// CmdShowMenu opens the overlay selection menu.
type CmdShowMenu struct {
	Options  []string
	Selected int
}

func (CmdShowMenu) commandMarker() {}
func (c CmdShowMenu) String() string {
	return fmt.Sprintf("CmdShowMenu(options=[%s], selected=%d)", strings.Join(c.Options, ", "), c.Selected)
}
