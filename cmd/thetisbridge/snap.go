package main

import (
	"fmt"
	"strconv"
	"strings"
)

// Snap computes the 1 kHz boundary VFO A should move to after a tune-step
// change. reply is a ZZFA read or a bare decimal (terminator optional); its
// last 11 characters, or all of them if shorter, are the frequency in Hz.
//
// applied is false when the frequency already sits on a boundary or the reply
// cannot be parsed (err is set in that case).
func Snap(reply string, dir Direction) (target int64, applied bool, err error) {
	digits := replyDigits(reply, catVFOAFreq, freqDigits)
	if digits == "" {
		return 0, false, fmt.Errorf("snap: empty frequency reply %q", reply)
	}
	hz, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("snap: parse frequency %q: %w", digits, err)
	}
	if hz < 0 {
		return 0, false, fmt.Errorf("snap: negative frequency %d", hz)
	}

	rem := hz % snapBoundaryHz
	if rem == 0 {
		return hz, false, nil
	}
	if dir == DirectionUp {
		return hz - rem + snapBoundaryHz, true, nil
	}
	return hz - rem, true, nil
}

// freqCommand formats a ZZFA set command for hz.
func freqCommand(hz int64) string {
	return fmt.Sprintf("%s%0*d%s", catVFOAFreq, freqDigits, hz, catTerminator)
}

// parseStepIndex extracts the tune-step index from a ZZAC read: the last two
// characters before the terminator, or the single digit of a bare reply.
func parseStepIndex(reply string) (int, error) {
	digits := replyDigits(reply, catStepSize, stepCodeDigits)
	if digits == "" {
		return 0, fmt.Errorf("empty step reply %q", reply)
	}
	idx, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("parse step index %q: %w", digits, err)
	}
	return idx, nil
}

// replyDigits strips the terminator and an echoed command prefix from reply
// and returns at most its last n characters.
func replyDigits(reply, prefix string, n int) string {
	reply = strings.TrimRight(reply, catTerminator)
	reply = strings.TrimPrefix(reply, prefix)
	return reply[len(reply)-min(len(reply), n):]
}
