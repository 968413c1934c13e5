package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the thetisbridge daemon.
//
// Keep defaults and validation centralized so the rest of the code can assume
// a well-formed config. Every section is optional in the file; missing keys
// keep their defaults.
type Config struct {
	CAT      CATConfig      `yaml:"cat"`
	MIDI     MIDIConfig     `yaml:"midi"`
	Keyboard KeyboardConfig `yaml:"keyboard"`
	IPC      IPCConfig      `yaml:"ipc"`
	Overlay  OverlayConfig  `yaml:"overlay"`
	Workers  WorkersConfig  `yaml:"workers"`
	Logging  LoggingConfig  `yaml:"logging"`
	Mapping  MappingConfig  `yaml:"mapping"`
}

// Transport names accepted by cat.transport.
const (
	transportTCP    = "tcp"
	transportSerial = "serial"
)

type CATConfig struct {
	Transport    string `yaml:"transport"` // tcp | serial
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	TimeoutMS    int    `yaml:"timeout_ms"`
	SerialDevice string `yaml:"serial_device,omitempty"`
	SerialBaud   int    `yaml:"serial_baud,omitempty"`
}

// Timeout returns the per-call bound as a duration.
func (c CATConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

type MIDIConfig struct {
	Enabled bool `yaml:"enabled"`
	// Port is matched against the driver's input port names.
	Port string `yaml:"port"`
}

type KeyboardConfig struct {
	Enabled bool     `yaml:"enabled"`
	Devices []string `yaml:"devices"`
	// Grab takes exclusive access to the devices; their other keys are lost.
	Grab bool `yaml:"grab"`
}

type IPCConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SocketPath string `yaml:"socket_path"`
}

type OverlayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

type WorkersConfig struct {
	MaxInflight int `yaml:"max_inflight"`
	EventBuffer int `yaml:"event_buffer"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// MappingConfig is the YAML form of the command tables. Lists keep the file
// readable and let Validate report duplicates.
type MappingConfig struct {
	Knobs     []KnobMapping      `yaml:"knobs"`
	Momentary []MomentaryMapping `yaml:"momentary"`
	Programs  []ProgramMapping   `yaml:"programs"`
	Keys      []KeyMapping       `yaml:"keys"`
	TuneSteps []StepEntry        `yaml:"tune_steps"`
	Menu      []MenuEntry        `yaml:"menu"`
}

type KnobMapping struct {
	Control     int `yaml:"control"`
	CommandSpec `yaml:",inline"`
}

type MomentaryMapping struct {
	Note    int    `yaml:"note"`
	Edge    Edge   `yaml:"edge"`
	Command string `yaml:"command"`
}

type ProgramMapping struct {
	Program int    `yaml:"program"`
	Command string `yaml:"command"`
}

type KeyMapping struct {
	Code       int `yaml:"code"`
	KeyBinding `yaml:",inline"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		CAT: CATConfig{
			Transport:  transportTCP,
			Host:       defaultCATHost,
			Port:       defaultCATPort,
			TimeoutMS:  defaultCATTimeoutMS,
			SerialBaud: defaultSerialBaud,
		},
		MIDI: MIDIConfig{
			Enabled: true,
			Port:    "LPD8",
		},
		Keyboard: KeyboardConfig{
			Enabled: true,
			Devices: []string{"/dev/input/event0"},
			Grab:    false,
		},
		IPC: IPCConfig{
			Enabled:    true,
			SocketPath: "/tmp/thetisbridge.sock",
		},
		Overlay: OverlayConfig{
			Enabled: true,
			Listen:  defaultOverlayListen,
			Path:    defaultOverlayPath,
		},
		Workers: WorkersConfig{
			MaxInflight: defaultMaxInflight,
			EventBuffer: defaultEventBuffer,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Mapping: MappingFromTables(DefaultTables()),
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
// A mapping list present in the file replaces the default list entirely.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty file: defaults only.
			return cfg, nil
		}
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds flag values that take precedence over the file.
// Each override is only applied if its pointer is non-nil.
type FlagOverrides struct {
	CATTransport *string
	CATHost      *string
	CATPort      *int
	CATTimeoutMS *int
	SerialDevice *string

	MIDIPort        *string
	KeyboardDevices []string
	KeyboardGrab    *bool

	IPCSocketPath *string
	OverlayListen *string

	LogLevel *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.CATTransport != nil {
		cfg.CAT.Transport = *o.CATTransport
	}
	if o.CATHost != nil {
		cfg.CAT.Host = *o.CATHost
	}
	if o.CATPort != nil {
		cfg.CAT.Port = *o.CATPort
	}
	if o.CATTimeoutMS != nil {
		cfg.CAT.TimeoutMS = *o.CATTimeoutMS
	}
	if o.SerialDevice != nil {
		cfg.CAT.SerialDevice = *o.SerialDevice
	}
	if o.MIDIPort != nil {
		cfg.MIDI.Port = *o.MIDIPort
	}
	if len(o.KeyboardDevices) > 0 {
		cfg.Keyboard.Devices = o.KeyboardDevices
	}
	if o.KeyboardGrab != nil {
		cfg.Keyboard.Grab = *o.KeyboardGrab
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.OverlayListen != nil {
		cfg.Overlay.Listen = *o.OverlayListen
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// CAT
	switch c.CAT.Transport {
	case transportTCP:
		if c.CAT.Host == "" {
			return errors.New("cat.host must not be empty")
		}
		if c.CAT.Port <= 0 || c.CAT.Port > 65535 {
			return errors.New("cat.port must be between 1 and 65535")
		}
	case transportSerial:
		if c.CAT.SerialDevice == "" {
			return errors.New("cat.serial_device must not be empty when cat.transport is serial")
		}
		if c.CAT.SerialBaud <= 0 {
			return errors.New("cat.serial_baud must be > 0")
		}
	default:
		return fmt.Errorf("cat.transport must be %q or %q", transportTCP, transportSerial)
	}
	if c.CAT.TimeoutMS <= 0 {
		return errors.New("cat.timeout_ms must be > 0")
	}

	// Inputs
	if c.MIDI.Enabled && c.MIDI.Port == "" {
		return errors.New("midi.port must not be empty when midi is enabled")
	}
	if c.Keyboard.Enabled {
		if len(c.Keyboard.Devices) == 0 {
			return errors.New("keyboard.devices must not be empty when keyboard is enabled")
		}
		for i, dev := range c.Keyboard.Devices {
			if dev == "" {
				return fmt.Errorf("keyboard.devices[%d] is empty", i)
			}
		}
	}
	if c.IPC.Enabled && c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty when ipc is enabled")
	}

	// Overlay
	if c.Overlay.Enabled {
		if _, _, err := net.SplitHostPort(c.Overlay.Listen); err != nil {
			return fmt.Errorf("overlay.listen: %w", err)
		}
		if c.Overlay.Path == "" || c.Overlay.Path[0] != '/' {
			return errors.New("overlay.path must start with /")
		}
	}

	// Workers
	if c.Workers.MaxInflight <= 0 {
		return errors.New("workers.max_inflight must be > 0")
	}
	if c.Workers.EventBuffer <= 0 {
		return errors.New("workers.event_buffer must be > 0")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return errors.New(`logging.format must be "text" or "json"`)
	}

	// Mapping
	if _, err := c.Mapping.Tables(); err != nil {
		return fmt.Errorf("mapping: %w", err)
	}

	return nil
}

// MappingFromTables converts lookup tables into their YAML form, in a stable order.
func MappingFromTables(t Tables) MappingConfig {
	var m MappingConfig

	for _, control := range sortedKeys(t.Knobs) {
		m.Knobs = append(m.Knobs, KnobMapping{Control: control, CommandSpec: t.Knobs[control]})
	}
	for _, note := range sortedNotes(t.Momentary) {
		for _, edge := range []Edge{EdgePress, EdgeRelease} {
			if cmd, ok := t.Momentary[MomentaryKey{Note: note, Edge: edge}]; ok {
				m.Momentary = append(m.Momentary, MomentaryMapping{Note: note, Edge: edge, Command: cmd})
			}
		}
	}
	for _, program := range sortedKeys(t.Programs) {
		m.Programs = append(m.Programs, ProgramMapping{Program: program, Command: t.Programs[program]})
	}
	for _, code := range t.KeyCodes() {
		m.Keys = append(m.Keys, KeyMapping{Code: code, KeyBinding: t.Keys[code]})
	}
	m.TuneSteps = append(m.TuneSteps, t.TuneSteps...)
	m.Menu = append(m.Menu, t.Menu...)
	return m
}

// Tables builds the lookup tables, rejecting duplicates and malformed rows.
func (m MappingConfig) Tables() (Tables, error) {
	t := Tables{
		Knobs:     make(map[int]CommandSpec, len(m.Knobs)),
		Momentary: make(map[MomentaryKey]string, len(m.Momentary)),
		Programs:  make(map[int]string, len(m.Programs)),
		Keys:      make(map[int]KeyBinding, len(m.Keys)),
	}

	for i, k := range m.Knobs {
		if k.Code == "" {
			return Tables{}, fmt.Errorf("knobs[%d]: code must not be empty", i)
		}
		if k.Scale <= 0 {
			return Tables{}, fmt.Errorf("knobs[%d]: scale must be > 0", i)
		}
		if _, dup := t.Knobs[k.Control]; dup {
			return Tables{}, fmt.Errorf("knobs[%d]: duplicate control %d", i, k.Control)
		}
		t.Knobs[k.Control] = k.CommandSpec
	}

	for i, mm := range m.Momentary {
		if mm.Edge != EdgePress && mm.Edge != EdgeRelease {
			return Tables{}, fmt.Errorf("momentary[%d]: edge must be %q or %q", i, EdgePress, EdgeRelease)
		}
		if mm.Command == "" {
			return Tables{}, fmt.Errorf("momentary[%d]: command must not be empty", i)
		}
		key := MomentaryKey{Note: mm.Note, Edge: mm.Edge}
		if _, dup := t.Momentary[key]; dup {
			return Tables{}, fmt.Errorf("momentary[%d]: duplicate binding %s", i, key)
		}
		t.Momentary[key] = mm.Command
	}

	for i, p := range m.Programs {
		if p.Command == "" {
			return Tables{}, fmt.Errorf("programs[%d]: command must not be empty", i)
		}
		if _, dup := t.Programs[p.Program]; dup {
			return Tables{}, fmt.Errorf("programs[%d]: duplicate program %d", i, p.Program)
		}
		t.Programs[p.Program] = p.Command
	}

	for i, k := range m.Keys {
		switch k.Kind {
		case KeyKindStepTune, KeyKindVolume:
			if k.Direction != DirectionUp && k.Direction != DirectionDown {
				return Tables{}, fmt.Errorf("keys[%d]: %s needs direction up or down", i, k.Kind)
			}
		case KeyKindMute:
			if k.Direction == "" {
				k.Direction = DirectionNone
			}
		default:
			return Tables{}, fmt.Errorf("keys[%d]: unknown kind %q", i, k.Kind)
		}
		if _, dup := t.Keys[k.Code]; dup {
			return Tables{}, fmt.Errorf("keys[%d]: duplicate key code %d", i, k.Code)
		}
		t.Keys[k.Code] = k.KeyBinding
	}

	if len(m.TuneSteps) == 0 {
		return Tables{}, errors.New("tune_steps must not be empty")
	}
	active := 0
	for i, s := range m.TuneSteps {
		if s.Code == "" || s.Label == "" {
			return Tables{}, fmt.Errorf("tune_steps[%d]: code and label must not be empty", i)
		}
		if s.Active {
			active++
		}
	}
	if active == 0 {
		return Tables{}, errors.New("tune_steps must have at least one active step")
	}
	t.TuneSteps = append([]StepEntry(nil), m.TuneSteps...)

	if len(m.Menu) == 0 {
		return Tables{}, errors.New("menu must not be empty")
	}
	for i, e := range m.Menu {
		if e.Label == "" {
			return Tables{}, fmt.Errorf("menu[%d]: label must not be empty", i)
		}
	}
	t.Menu = append([]MenuEntry(nil), m.Menu...)

	return t, nil
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func sortedNotes(m map[MomentaryKey]string) []int {
	seen := make(map[int]struct{})
	var notes []int
	for k := range m {
		if _, ok := seen[k.Note]; ok {
			continue
		}
		seen[k.Note] = struct{}{}
		notes = append(notes, k.Note)
	}
	sort.Ints(notes)
	return notes
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
