package main

import (
	"context"
	"errors"
	"log/slog"
)

// FeedbackSink displays transient feedback to the operator.
type FeedbackSink interface {
	Notify(message string)
	ShowMenu(options []string, selected int)
}

// errNoClient indicates the daemon was asked to execute a command without a CAT client.
var errNoClient = errors.New("no CAT client")

// runEffect executes a single reducer-emitted Command and reports query
// replies (or failures) through onEvent.
//
// Design rules:
// - This function is allowed to perform I/O.
// - It must never call Reduce() directly; it only emits Events to be reduced by the daemon loop.
// - Fire-and-forget writes are logged on failure and never retried.
func runEffect(
	ctx context.Context,
	client CATClient,
	sink FeedbackSink,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	switch c := cmd.(type) {
	case CmdSendCAT:
		if client == nil {
			logger.Error("cat send failed", "error", errNoClient, "command", c.Command)
			return
		}
		if err := client.Send(ctx, c.Command); err != nil {
			logger.Error("cat send failed", "error", err, "command", c.Command)
			return
		}
		logger.Debug("cat sent", "command", c.Command)

	case CmdQueryStepSize:
		reply, err := query(ctx, client, catReadStepSize)
		if err != nil {
			logger.Error("cat query failed", "error", err, "command", catReadStepSize)
			emit(onEvent, QueryFailed{Command: cmd, Err: err})
			return
		}
		emit(onEvent, StepSizeObserved{Reply: reply, Direction: c.Direction})

	case CmdQueryFrequency:
		q := catVFOAFreq + catTerminator
		reply, err := query(ctx, client, q)
		if err != nil {
			logger.Error("cat query failed", "error", err, "command", q)
			emit(onEvent, QueryFailed{Command: cmd, Err: err})
			return
		}
		emit(onEvent, FrequencyObserved{Reply: reply, Direction: c.Direction})

	case CmdNotify:
		if sink == nil {
			return
		}
		sink.Notify(c.Message)

	case CmdShowMenu:
		if sink == nil {
			return
		}
		sink.ShowMenu(c.Options, c.Selected)

	default:
		logger.Warn("unknown command type", "command", cmd.String())
	}
}

func query(ctx context.Context, client CATClient, command string) (string, error) {
	if client == nil {
		return "", errNoClient
	}
	return client.Query(ctx, command)
}

func emit(onEvent func(Event), ev Event) {
	if onEvent != nil {
		onEvent(ev)
	}
}
