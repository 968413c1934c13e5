package main

import (
	"context"
	"fmt"
	"log/slog"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver
)

// translateMIDI maps a MIDI message onto an input Event. The channel is
// ignored; the controller is expected to be the only device on the port.
// A note-on with velocity 0 is a release, as running-status controllers send it.
func translateMIDI(msg midi.Message) (Event, bool) {
	var ch, a, b uint8
	switch {
	case msg.GetControlChange(&ch, &a, &b):
		return ControlChange{Control: int(a), Value: int(b)}, true
	case msg.GetNoteStart(&ch, &a, &b):
		return NoteEvent{Note: int(a), Edge: EdgePress}, true
	case msg.GetNoteEnd(&ch, &a):
		return NoteEvent{Note: int(a), Edge: EdgeRelease}, true
	case msg.GetProgramChange(&ch, &a):
		return ProgramChange{Program: int(a)}, true
	default:
		return nil, false
	}
}

// MIDIInput listens on one MIDI in port.
type MIDIInput struct {
	port   drivers.In
	logger *slog.Logger
}

// OpenMIDIInput finds the input port whose name contains name.
func OpenMIDIInput(name string, logger *slog.Logger) (*MIDIInput, error) {
	in, err := midi.FindInPort(name)
	if err != nil {
		return nil, fmt.Errorf("midi input %q not found (available: %s): %w", name, midi.GetInPorts().String(), err)
	}
	return &MIDIInput{port: in, logger: logger}, nil
}

// Name returns the driver's port name.
func (m *MIDIInput) Name() string { return m.port.String() }

// Run forwards translated messages to out until ctx is canceled or the
// driver reports an error.
func (m *MIDIInput) Run(ctx context.Context, out chan<- Event) error {
	listenErr := make(chan error, 1)

	stop, err := midi.ListenTo(m.port, func(msg midi.Message, timestampms int32) {
		ev, ok := translateMIDI(msg)
		if !ok {
			m.logger.Debug("unhandled midi message", "msg", msg.String())
			return
		}
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}, midi.HandleError(func(e error) {
		select {
		case listenErr <- e:
		default:
		}
	}))
	if err != nil {
		return fmt.Errorf("midi listen %s: %w", m.Name(), err)
	}
	defer stop()

	m.logger.Info("midi input listening", "port", m.Name())

	select {
	case <-ctx.Done():
		return nil
	case err := <-listenErr:
		return fmt.Errorf("midi listener %s: %w", m.Name(), err)
	}
}

// closeMIDIDriver releases the registered driver.
func closeMIDIDriver() { midi.CloseDriver() }
