package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"
)

// thetis-overlay is a terminal feedback display for the thetisbridge daemon.
// It shows notifications for their duration and lets the operator pick an
// entry from the selection menu with Up/Down/Enter. Escape hides the menu,
// q or Ctrl+C quits.

const redrawInterval = 250 * time.Millisecond

func main() {
	var (
		wsURL   = flag.String("ws", "ws://127.0.0.1:13080/overlay", "thetisbridge overlay websocket URL")
		logFile = flag.String("log-file", "", "Write logs to this file (the terminal is taken by the UI)")
	)
	flag.Parse()

	logger, closeLog, err := newLogger(*logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	u, err := url.Parse(*wsURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid websocket URL: %v\n", err)
		os.Exit(1)
	}

	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to connect to %s: %v\n", u, err)
		os.Exit(1)
	}
	defer conn.Close()
	logger.Info("connected", "url", u.String())

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ui := &overlayUI{screen: screen, conn: conn, logger: logger}
	reason := ui.run()
	screen.Fini()

	if reason != nil {
		fmt.Fprintf(os.Stderr, "overlay closed: %v\n", reason)
		os.Exit(1)
	}
}

func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, nil)), func() { _ = f.Close() }, nil
}

type overlayUI struct {
	screen tcell.Screen
	conn   *websocket.Conn
	logger *slog.Logger
	model  model
}

// run owns the screen and the model until the user quits or the connection
// drops. Only this goroutine writes to the websocket.
func (ui *overlayUI) run() error {
	done := make(chan struct{})
	defer close(done)

	// Reader: every frame is handed to the UI loop as an interrupt.
	go func() {
		for {
			_, msg, err := ui.conn.ReadMessage()
			if err != nil {
				_ = ui.screen.PostEvent(tcell.NewEventInterrupt(err))
				return
			}
			_ = ui.screen.PostEvent(tcell.NewEventInterrupt(msg))
		}
	}()

	// Ticker: expires notifications without input.
	go func() {
		t := time.NewTicker(redrawInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				_ = ui.screen.PostEvent(tcell.NewEventInterrupt(nil))
			}
		}
	}()

	ui.draw()
	for {
		ev := ui.screen.PollEvent()
		if ev == nil {
			return nil
		}

		switch ev := ev.(type) {
		case *tcell.EventInterrupt:
			switch d := ev.Data().(type) {
			case []byte:
				if err := ui.model.apply(d, time.Now()); err != nil {
					ui.logger.Warn("overlay message ignored", "error", err)
				}
			case error:
				if websocket.IsCloseError(d, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				return d
			}

		case *tcell.EventKey:
			if !ui.handleKey(ev) {
				ui.close()
				return nil
			}

		case *tcell.EventResize:
			ui.screen.Sync()
		}

		ui.draw()
	}
}

// handleKey applies a key press and reports whether the UI keeps running.
func (ui *overlayUI) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyCtrlC:
		return false
	case tcell.KeyUp:
		ui.model.move(-1)
	case tcell.KeyDown:
		ui.model.move(1)
	case tcell.KeyEnter:
		if msg, ok := ui.model.choose(); ok {
			_ = ui.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := ui.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				ui.logger.Error("send menu selection failed", "error", err)
			}
		}
	case tcell.KeyEscape:
		ui.model.dismiss()
	case tcell.KeyRune:
		if ev.Rune() == 'q' {
			return false
		}
	}
	return true
}

func (ui *overlayUI) close() {
	_ = ui.conn.SetWriteDeadline(time.Now().Add(time.Second))
	err := ui.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		ui.logger.Warn("error closing connection", "error", err)
	}
}

func (ui *overlayUI) draw() {
	s := ui.screen
	s.Clear()
	w, h := s.Size()

	if msg, ok := ui.model.notification(time.Now()); ok {
		style := tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
		drawText(s, (w-len(msg))/2, h/2, msg, style)
	}

	if ui.model.menuOpen {
		top := (h - len(ui.model.options)) / 2
		for i, opt := range ui.model.options {
			style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
			label := "  " + opt + "  "
			if i == ui.model.selected {
				style = style.Foreground(tcell.ColorGreen).Reverse(true)
			}
			drawText(s, (w-len(label))/2, top+i, label, style)
		}
	}

	drawText(s, 0, h-1, "Up/Down select  Enter choose  Esc hide  q quit", tcell.StyleDefault.Dim(true))
	s.Show()
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style) {
	if x < 0 {
		x = 0
	}
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}
