package main

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// Design rules enforced here:
//   - The reducer performs no I/O and computes: next state + commands.
//   - The daemon goroutine is the only writer of BridgeState.
//   - Commands are executed by bounded fire-and-forget workers; query replies
//     come back as Events and are reduced here.
//
// Ordering: the commands of one Reduce call run in order inside one worker.
// Commands produced by different events may reach Thetis in any order.
//
// ============================================================================

// runDaemon is the main daemon loop that:
//   - Receives Events from every input source, and observations from CAT workers
//   - Reduces events into (state, commands)
//   - Hands commands to a worker without ever blocking on I/O
//
// Shutdown semantics:
//   - Exits when ctx is canceled
//   - Exits cleanly when the events channel is closed
//   - Waits for in-flight workers before returning
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	client CATClient,
	sink FeedbackSink,
	state *BridgeState,
	tables *Tables,
	sem *semaphore.Weighted,
	logger *slog.Logger,
) {
	if state == nil || tables == nil {
		logger.Error("daemon state or tables are nil")
		return
	}

	var workers sync.WaitGroup
	observations := make(chan Event, defaultEventBuffer)
	done := make(chan struct{})
	defer func() {
		close(done)
		workers.Wait()
	}()

	// post feeds an observation back to the daemon goroutine. Workers may
	// block here, the daemon goroutine never does.
	post := func(ev Event) {
		select {
		case observations <- ev:
		case <-ctx.Done():
		case <-done:
		}
	}

	dispatch := func(cmds []Command) {
		if len(cmds) == 0 {
			return
		}
		if !sem.TryAcquire(1) {
			logger.Warn("workers saturated; dropping commands", "count", len(cmds), "first", cmds[0].String())
			return
		}
		workers.Add(1)
		go func() {
			defer workers.Done()
			defer sem.Release(1)
			for _, cmd := range cmds {
				runEffect(ctx, client, sink, cmd, logger, post)
			}
		}()
	}

	reduce := func(ev Event) {
		rr := Reduce(state, ev, tables)
		if rr.State != nil {
			state = rr.State
		}
		if rr.Abandoned != nil {
			logger.Warn("action abandoned", "error", rr.Abandoned, "state", state.StateLabel())
		}
		if len(rr.Commands) > 0 {
			logger.Debug("reduced", "event", eventName(ev), "commands", len(rr.Commands), "state", state.StateLabel())
		}
		dispatch(rr.Commands)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			reduce(ev)

		case ev := <-observations:
			reduce(ev)
		}
	}
}

// eventName is a short log label for an event.
func eventName(ev Event) string {
	switch ev.(type) {
	case KeyPressed:
		return "key_pressed"
	case ControlChange:
		return "control_change"
	case NoteEvent:
		return "note"
	case ProgramChange:
		return "program_change"
	case MenuSelected:
		return "menu_selected"
	case StepSizeObserved:
		return "step_size_observed"
	case FrequencyObserved:
		return "frequency_observed"
	case QueryFailed:
		return "query_failed"
	default:
		return "unknown"
	}
}
