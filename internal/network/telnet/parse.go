package telnet

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrMalformedFrame means a frame header did not match the grammar it was
	// dispatched to. The stream can no longer be interpreted reliably.
	ErrMalformedFrame = errors.New("malformed telnet frame")

	// errMoreData means the buffer holds an incomplete frame. Nothing has
	// been consumed; call again once more bytes have arrived.
	errMoreData = errors.New("more data required")
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedFrame, fmt.Sprintf(format, args...))
}

// tokenizer extracts one frame at a time from the head of a Buffer. The
// head must be positioned at an IAC byte.
type tokenizer struct {
	logger *slog.Logger
}

func (t *tokenizer) next(b *Buffer) (*Event, error) {
	if b.Len() < 2 {
		return nil, errMoreData
	}
	if b.At(0) != iac {
		return nil, malformed("frame does not start with IAC (0x%02x)", b.At(0))
	}

	cmd := Command(b.At(1))
	ev := &Event{Command: cmd}

	if cmd.takesOption() {
		if b.Len() < 3 {
			return nil, errMoreData
		}
		ev.Option = Option(b.At(2))
		ev.HasOption = true

		parse, ok := optionParsers[ev.Option]
		if !ok {
			parse = parseUnhandled
		}
		if err := parse(b, ev); err != nil {
			return nil, err
		}
		if !ok {
			t.logger.Warn("Telnet option has no handler", "cmd", cmd, "opt", ev.Option)
		}
		return ev, nil
	}

	if !cmd.Known() {
		if b.Len() != 2 {
			t.logger.Warn("Unknown telnet command, expected 2 bytes", "cmd", cmd, "buffered", b.Len())
		} else {
			t.logger.Warn("Unknown telnet command", "cmd", cmd)
		}
	}
	ev.Raw = b.Next(2)
	return ev, nil
}
