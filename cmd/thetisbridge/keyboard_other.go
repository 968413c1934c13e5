//go:build !linux

package main

import (
	"context"
	"errors"
	"log/slog"
)

var errNoEvdev = errors.New("evdev keyboard input requires linux")

type Keyboard struct{}

func OpenKeyboard(paths []string, grab bool, tables *Tables, logger *slog.Logger) (*Keyboard, error) {
	return nil, errNoEvdev
}

func (k *Keyboard) Close() {}

func (k *Keyboard) Run(ctx context.Context, out chan<- Event) error { return errNoEvdev }
