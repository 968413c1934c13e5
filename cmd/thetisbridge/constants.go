package main

import "time"

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01

	KEY_MUTE         = 113
	KEY_VOLUMEDOWN   = 114
	KEY_VOLUMEUP     = 115
	KEY_NEXTSONG     = 163
	KEY_PREVIOUSSONG = 165
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// evdev ioctl: _IOW('E', 0x90, int). Grabbing a device keeps its events
// away from every other reader (X11, Wayland, consoles).
const eviocgrab = 0x40044590

// CAT transport defaults
const (
	defaultCATHost      = "127.0.0.1"
	defaultCATPort      = 13013 // Thetis CAT TCP/IP server
	defaultCATTimeoutMS = 2000
	defaultSerialBaud   = 57600

	// catReadBufSize bounds a single query reply read.
	catReadBufSize = 1024
)

// Dispatch defaults
const (
	defaultMaxInflight = 16  // concurrent CAT workers
	defaultEventBuffer = 64  // events channel capacity
	knobSampleModulo   = 4   // only every 4th knob tick produces a command
	percentScale       = 100 // CommandSpec.Scale selecting the percent policy
	percentMax         = 99
	midiValueMax       = 127
	bipolarNegMax      = 64  // last raw value of the negative half
	bipolarPosMin      = 66  // first raw value of the positive half
	bipolarPosMax      = 126 // last raw value of the positive half
	snapBoundaryHz     = 1000
	freqDigits         = 11
	stepCodeDigits     = 2
)

// Overlay defaults
const (
	defaultOverlayListen = "127.0.0.1:13080"
	defaultOverlayPath   = "/overlay"
	overlayNotifyTime    = 4 * time.Second
)
