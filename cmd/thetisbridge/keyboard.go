package main

import (
	"bytes"
	"encoding/binary"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// inputEventSize is the wire size of inputEvent on 64-bit Linux.
var inputEventSize = binary.Size(inputEvent{})

// decodeInputEvent parses one raw input_event record.
func decodeInputEvent(buf []byte) (inputEvent, error) {
	var ev inputEvent
	err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &ev)
	return ev, err
}

// translateKeyEvent turns a raw evdev record into a KeyPressed event.
//
// Only bound keys produce events. Step-tune and volume keys fire on press and
// auto-repeat; mute fires on press only so holding it does not flicker the menu.
func translateKeyEvent(ev inputEvent, t *Tables) (KeyPressed, bool) {
	if ev.Type != EV_KEY {
		return KeyPressed{}, false
	}
	code := int(ev.Code)
	b, ok := t.Key(code)
	if !ok {
		return KeyPressed{}, false
	}
	switch ev.Value {
	case evValuePress:
		return KeyPressed{Code: code}, true
	case evValueRepeat:
		if b.Kind == KeyKindMute {
			return KeyPressed{}, false
		}
		return KeyPressed{Code: code}, true
	default:
		return KeyPressed{}, false
	}
}
