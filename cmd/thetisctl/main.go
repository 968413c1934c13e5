package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
)

// ============================================================================
// thetisctl - Command-line IPC Client
// ============================================================================
// Injects input events into the thetisbridge daemon as if they came from the
// keyboard, the MIDI controller or the overlay.
//
// Usage:
//   thetisctl step-up
//   thetisctl volume-down
//   thetisctl cc 101 64
//   thetisctl note 25 press
//   thetisctl program 3
//   thetisctl menu 1
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/thetisbridge.sock)
// ============================================================================

// Linux evdev key codes bound by the daemon's default key table.
const (
	keyMute         = 113
	keyVolumeDown   = 114
	keyVolumeUp     = 115
	keyNextSong     = 163
	keyPreviousSong = 165
)

// Event payloads (duplicated from the daemon for a standalone binary).
type keyPressed struct {
	Code int `json:"code"`
}

type controlChange struct {
	Control int `json:"control"`
	Value   int `json:"value"`
}

type noteEvent struct {
	Note int    `json:"note"`
	Edge string `json:"edge"`
}

type programChange struct {
	Program int `json:"program"`
}

type menuSelected struct {
	Index int `json:"index"`
}

// eventEnvelope wraps events for JSON
type eventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ipcResponse represents the daemon's response
type ipcResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func main() {
	socketPath := "/tmp/thetisbridge.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fatalf("-socket requires an argument")
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	typ, payload, err := parseCommand(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}
	if typ == "" {
		printUsage()
		os.Exit(0)
	}

	if err := sendEvent(socketPath, typ, payload); err != nil {
		fatalf("%v", err)
	}

	fmt.Println("ok")
}

// parseCommand maps command-line arguments to an event type and payload.
// An empty type means help was requested.
func parseCommand(args []string) (string, any, error) {
	switch args[0] {
	case "step-up":
		return "key_pressed", keyPressed{Code: keyNextSong}, nil
	case "step-down":
		return "key_pressed", keyPressed{Code: keyPreviousSong}, nil
	case "volume-up", "up":
		return "key_pressed", keyPressed{Code: keyVolumeUp}, nil
	case "volume-down", "down":
		return "key_pressed", keyPressed{Code: keyVolumeDown}, nil
	case "mute", "menu-toggle":
		return "key_pressed", keyPressed{Code: keyMute}, nil

	case "key":
		n, err := intArgs(args, 1)
		if err != nil {
			return "", nil, err
		}
		return "key_pressed", keyPressed{Code: n[0]}, nil

	case "cc":
		n, err := intArgs(args, 2)
		if err != nil {
			return "", nil, err
		}
		return "control_change", controlChange{Control: n[0], Value: n[1]}, nil

	case "note":
		if len(args) != 3 {
			return "", nil, fmt.Errorf("note requires <note> press|release")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return "", nil, fmt.Errorf("invalid note %q: %w", args[1], err)
		}
		if args[2] != "press" && args[2] != "release" {
			return "", nil, fmt.Errorf("edge must be press or release, got %q", args[2])
		}
		return "note", noteEvent{Note: n, Edge: args[2]}, nil

	case "program":
		n, err := intArgs(args, 1)
		if err != nil {
			return "", nil, err
		}
		return "program_change", programChange{Program: n[0]}, nil

	case "menu":
		n, err := intArgs(args, 1)
		if err != nil {
			return "", nil, err
		}
		return "menu_selected", menuSelected{Index: n[0]}, nil

	case "help", "-h", "--help":
		return "", nil, nil

	default:
		return "", nil, fmt.Errorf("unknown command: %s", args[0])
	}
}

// intArgs parses exactly want integer arguments after the command name.
func intArgs(args []string, want int) ([]int, error) {
	if len(args)-1 != want {
		return nil, fmt.Errorf("%s requires %d numeric argument(s)", args[0], want)
	}
	out := make([]int, want)
	for i, a := range args[1:] {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid number %q", args[0], a)
		}
		out[i] = n
	}
	return out, nil
}

func marshalEvent(typ string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", typ, err)
	}
	return json.Marshal(eventEnvelope{Type: typ, Data: data})
}

func sendEvent(socketPath, typ string, payload any) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := marshalEvent(typ, payload)
	if err != nil {
		return err
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send event: %w", err)
	}

	var response ipcResponse
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if response.Status == "error" {
		return fmt.Errorf("daemon error: %s", response.Error)
	}
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `thetisctl - Inject input events into the thetisbridge daemon via IPC

Usage:
  thetisctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/thetisbridge.sock)

Commands:
  step-up, step-down          Next / previous tune step (media next / previous)
  volume-up, up               Nudge VFO A up (or snap after a step change)
  volume-down, down           Nudge VFO A down (or snap after a step change)
  mute, menu-toggle           Open or close the overlay menu
  key <code>                  Press an arbitrary evdev key code
  cc <control> <value>        MIDI control change
  note <note> press|release   MIDI note edge
  program <n>                 MIDI program change
  menu <index>                Select an overlay menu entry
  help, -h, --help            Show this help message

Examples:
  thetisctl step-down
  thetisctl cc 100 64
  thetisctl -socket /run/thetisbridge.sock menu 1
`)
}
