package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire format, mirrored from the daemon's overlay websocket.
type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type notifyData struct {
	Message    string `json:"message"`
	DurationMS int64  `json:"duration_ms"`
}

type showMenuData struct {
	Options  []string `json:"options"`
	Selected int      `json:"selected"`
}

type menuSelectedData struct {
	Index int `json:"index"`
}

// model is what the overlay currently shows. It is only touched from the
// UI goroutine.
type model struct {
	message string
	until   time.Time

	menuOpen bool
	options  []string
	selected int
}

// apply folds one daemon message into the model.
func (m *model) apply(raw []byte, now time.Time) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "notify":
		var d notifyData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return fmt.Errorf("unmarshal notify: %w", err)
		}
		m.message = d.Message
		m.until = now.Add(time.Duration(d.DurationMS) * time.Millisecond)
		// A notification replaces whatever menu was showing.
		m.menuOpen = false

	case "show_menu":
		var d showMenuData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return fmt.Errorf("unmarshal show_menu: %w", err)
		}
		if len(d.Options) == 0 {
			return fmt.Errorf("show_menu without options")
		}
		m.options = d.Options
		m.selected = d.Selected
		if m.selected < 0 || m.selected >= len(m.options) {
			m.selected = 0
		}
		m.menuOpen = true
		m.message = ""

	default:
		return fmt.Errorf("unknown message type %q", env.Type)
	}
	return nil
}

// notification returns the message to display at now, if any.
func (m *model) notification(now time.Time) (string, bool) {
	if m.message == "" || now.After(m.until) {
		return "", false
	}
	return m.message, true
}

// move shifts the menu highlight by delta with wraparound.
func (m *model) move(delta int) {
	if !m.menuOpen || len(m.options) == 0 {
		return
	}
	n := len(m.options)
	m.selected = ((m.selected+delta)%n + n) % n
}

// choose closes the menu and returns the selection message for the daemon.
func (m *model) choose() ([]byte, bool) {
	if !m.menuOpen {
		return nil, false
	}
	m.menuOpen = false
	data, err := json.Marshal(menuSelectedData{Index: m.selected})
	if err != nil {
		return nil, false
	}
	msg, err := json.Marshal(envelope{Type: "menu_selected", Data: data})
	if err != nil {
		return nil, false
	}
	return msg, true
}

// dismiss hides the menu without selecting.
func (m *model) dismiss() {
	m.menuOpen = false
}
