//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

// epollWaitMS bounds each epoll_wait so cancellation is noticed promptly.
const epollWaitMS = 250

// Keyboard reads media keys from one or more evdev devices with a single
// epoll loop. When grab is set every device is opened with EVIOCGRAB so the
// bound keys never reach the desktop; unbound keys on a grabbed device are lost.
type Keyboard struct {
	files   []*os.File
	grabbed bool
	tables  *Tables
	logger  *slog.Logger
}

// OpenKeyboard opens (and optionally grabs) the given device paths.
func OpenKeyboard(paths []string, grab bool, tables *Tables, logger *slog.Logger) (*Keyboard, error) {
	if len(paths) == 0 {
		return nil, errors.New("no input devices provided")
	}
	k := &Keyboard{grabbed: grab, tables: tables, logger: logger}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			k.Close()
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
		if grab {
			if err := unix.IoctlSetInt(int(f.Fd()), eviocgrab, 1); err != nil {
				f.Close()
				k.Close()
				return nil, fmt.Errorf("grab %s: %w", p, err)
			}
		}
		k.files = append(k.files, f)
	}
	return k, nil
}

// Close releases grabs and closes every device.
func (k *Keyboard) Close() {
	for _, f := range k.files {
		if k.grabbed {
			_ = unix.IoctlSetInt(int(f.Fd()), eviocgrab, 0)
		}
		_ = f.Close()
	}
	k.files = nil
}

// Run reads until ctx is canceled or a device fails, pushing KeyPressed
// events into out.
func (k *Keyboard) Run(ctx context.Context, out chan<- Event) error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	fdToFile := make(map[int]*os.File, len(k.files))
	for _, f := range k.files {
		fd := int(f.Fd())
		fdToFile[fd] = f
		event := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			return fmt.Errorf("epoll_ctl_add %s: %w", f.Name(), err)
		}
		k.logger.Info("keyboard device opened", "device", f.Name(), "grab", k.grabbed)
	}

	const maxEvents = 32
	epollEvents := make([]unix.EpollEvent, maxEvents)
	buf := make([]byte, inputEventSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := unix.EpollWait(epfd, epollEvents, epollWaitMS)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(epollEvents[i].Fd)
			f := fdToFile[fd]

			if epollEvents[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				return fmt.Errorf("device error/hangup: %s", f.Name())
			}

			if _, err := f.Read(buf); err != nil {
				return fmt.Errorf("read from %s: %w", f.Name(), err)
			}

			raw, err := decodeInputEvent(buf)
			if err != nil {
				// Skip malformed events
				continue
			}
			ev, ok := translateKeyEvent(raw, k.tables)
			if !ok {
				continue
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
