package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const version = "0.1.0"

func printVersion() {
	fmt.Printf("thetisbridge v%s\n", version)
	fmt.Println("MIDI controller and media key bridge for Thetis SDR CAT control")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  thetisbridge [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Translates MIDI knobs, pads and program changes, plus media keys read")
	fmt.Println("  from Linux input devices, into Thetis CAT commands sent over TCP (or a")
	fmt.Println("  serial port). Feedback is broadcast to overlay clients over a websocket.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  thetisbridge -config ~/.config/thetisbridge.yaml")
	fmt.Println("  thetisbridge -cat-host 192.168.1.20 -keyboard-device /dev/input/event5 -grab")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to input devices (run as root or add user to 'input' group)")
	fmt.Println("  - -grab gives the daemon exclusive use of the devices; use it only for a dedicated knob")
	fmt.Println()
}

func main() {
	var (
		configPath     = flag.String("config", "", "Path to YAML config file")
		catTransport   = flag.String("cat-transport", transportTCP, "CAT transport: tcp|serial")
		catHost        = flag.String("cat-host", defaultCATHost, "Thetis CAT server host")
		catPort        = flag.Int("cat-port", defaultCATPort, "Thetis CAT server port")
		catTimeoutMS   = flag.Int("cat-timeout-ms", defaultCATTimeoutMS, "Per-command CAT timeout in milliseconds")
		serialDevice   = flag.String("serial-device", "", "Serial device for -cat-transport serial")
		midiPort       = flag.String("midi-port", "", "MIDI input port name")
		keyboardDevice = flag.String("keyboard-device", "", "Comma-separated Linux input devices for media keys")
		grab           = flag.Bool("grab", false, "Grab keyboard devices exclusively")
		ipcSocketPath  = flag.String("ipc-socket", "", "Unix domain socket path for IPC")
		overlayListen  = flag.String("overlay-listen", defaultOverlayListen, "Overlay websocket listen address")
		logLevelStr    = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion    = flag.Bool("version", false, "Print version and exit")
		showHelp       = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the file.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var o FlagOverrides
	if set["cat-transport"] {
		o.CATTransport = catTransport
	}
	if set["cat-host"] {
		o.CATHost = catHost
	}
	if set["cat-port"] {
		o.CATPort = catPort
	}
	if set["cat-timeout-ms"] {
		o.CATTimeoutMS = catTimeoutMS
	}
	if set["serial-device"] {
		o.SerialDevice = serialDevice
	}
	if set["midi-port"] {
		o.MIDIPort = midiPort
	}
	if set["keyboard-device"] {
		o.KeyboardDevices = splitList(*keyboardDevice)
	}
	if set["grab"] {
		o.KeyboardGrab = grab
	}
	if set["ipc-socket"] {
		o.IPCSocketPath = ipcSocketPath
	}
	if set["overlay-listen"] {
		o.OverlayListen = overlayListen
	}
	if set["log-level"] {
		o.LogLevel = logLevelStr
	}
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid configuration:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(os.Stdout, logLevel, cfg.Logging.Format)

	if err := run(cfg, logger); err != nil {
		logger.Error("thetisbridge stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	tables, err := cfg.Mapping.Tables()
	if err != nil {
		return fmt.Errorf("mapping: %w", err)
	}
	state, err := NewBridgeState(tables)
	if err != nil {
		return err
	}

	var client CATClient
	switch cfg.CAT.Transport {
	case transportSerial:
		sc, err := NewSerialCATClient(cfg.CAT.SerialDevice, cfg.CAT.SerialBaud, cfg.CAT.Timeout())
		if err != nil {
			return err
		}
		defer sc.Close()
		client = sc
		logger.Info("cat transport", "transport", transportSerial, "device", cfg.CAT.SerialDevice, "baud", cfg.CAT.SerialBaud)
	default:
		tc := NewTCPCATClient(cfg.CAT.Host, cfg.CAT.Port, cfg.CAT.Timeout())
		client = tc
		logger.Info("cat transport", "transport", transportTCP, "addr", tc.Addr())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events := make(chan Event, cfg.Workers.EventBuffer)
	g, gctx := errgroup.WithContext(ctx)

	// Feedback sink
	var sink FeedbackSink = logSink{logger: logger}
	if cfg.Overlay.Enabled {
		overlay := NewOverlayServer(logger, HubConfig{}, func(index int) {
			select {
			case events <- MenuSelected{Index: index}:
			default:
				logger.Warn("events channel full; dropping menu selection", "index", index)
			}
		})
		sink = overlay

		mux := http.NewServeMux()
		overlay.Register(mux, cfg.Overlay.Path)
		srv := &http.Server{
			Addr:              cfg.Overlay.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			overlay.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			logger.Info("overlay listening", "addr", cfg.Overlay.Listen, "path", cfg.Overlay.Path)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("overlay server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// Input sources
	if cfg.Keyboard.Enabled {
		kb, err := OpenKeyboard(cfg.Keyboard.Devices, cfg.Keyboard.Grab, &tables, logger)
		if err != nil {
			return fmt.Errorf("keyboard: %w (tip: run as root or add user to 'input' group)", err)
		}
		defer kb.Close()
		g.Go(func() error { return kb.Run(gctx, events) })
	}

	if cfg.MIDI.Enabled {
		in, err := OpenMIDIInput(cfg.MIDI.Port, logger)
		if err != nil {
			closeMIDIDriver()
			return err
		}
		defer closeMIDIDriver()
		g.Go(func() error { return in.Run(gctx, events) })
	}

	if cfg.IPC.Enabled {
		g.Go(func() error { return runIPCServer(gctx, cfg.IPC.SocketPath, events, logger) })
	}

	// Daemon brain
	sem := semaphore.NewWeighted(int64(cfg.Workers.MaxInflight))
	g.Go(func() error {
		runDaemon(gctx, events, client, sink, state, &tables, sem, logger)
		return nil
	})

	logger.Info("thetisbridge started",
		"version", version,
		"midi", cfg.MIDI.Enabled,
		"keyboard", cfg.Keyboard.Enabled,
		"ipc", cfg.IPC.Enabled,
		"overlay", cfg.Overlay.Enabled,
		"max_inflight", cfg.Workers.MaxInflight)

	err = g.Wait()
	logger.Info("shutting down")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// logSink is the feedback sink used when the overlay is disabled.
type logSink struct {
	logger *slog.Logger
}

func (s logSink) Notify(message string) {
	s.logger.Info("notify", "message", message)
}

func (s logSink) ShowMenu(options []string, selected int) {
	s.logger.Info("menu", "options", strings.Join(options, ", "), "selected", selected)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
