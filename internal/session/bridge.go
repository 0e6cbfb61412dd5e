package session

import (
	"io"
	"log/slog"
	"slices"
	"sync"

	"bbsgate/internal/network/telnet"
)

// Bridge receives a telnet connection's notifications and turns them into
// something a Session can consume: a ready signal, an input stream and the
// set of options the client has talked about.
type Bridge struct {
	logger *slog.Logger
	in     *inbox

	ready chan telnet.ReadyEvent
	ended chan struct{}

	mu           sync.Mutex
	capabilities []string
	lastCR       bool
}

func NewBridge(logger *slog.Logger) *Bridge {
	return &Bridge{
		logger: logger,
		in:     newInbox(),
		ready:  make(chan telnet.ReadyEvent, 1),
		ended:  make(chan struct{}),
	}
}

func (b *Bridge) Ready(ev telnet.ReadyEvent) {
	select {
	case b.ready <- ev:
	default:
	}
}

func (b *Bridge) Capability(name string, ev *telnet.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !slices.Contains(b.capabilities, name) {
		b.capabilities = append(b.capabilities, name)
	}
	b.logger.Debug("Capability", "name", name, "evt", ev)
}

// Data queues input, folding CR LF and CR NUL into a single CR.
func (b *Bridge) Data(p []byte) {
	b.mu.Lock()
	out := make([]byte, 0, len(p))
	for _, c := range p {
		if b.lastCR && (c == '\n' || c == 0) {
			b.lastCR = false
			continue
		}
		b.lastCR = c == '\r'
		out = append(out, c)
	}
	b.mu.Unlock()
	b.in.push(out)
}

func (b *Bridge) End() {
	b.in.Close()
	close(b.ended)
}

// WaitReady blocks until the terminal is ready or the connection ends. It
// returns false in the latter case.
func (b *Bridge) WaitReady() (telnet.ReadyEvent, bool) {
	select {
	case ev := <-b.ready:
		return ev, true
	case <-b.ended:
		// Ready may have raced with the end of the connection.
		select {
		case ev := <-b.ready:
			return ev, true
		default:
			return telnet.ReadyEvent{}, false
		}
	}
}

// Done is closed once the connection has ended.
func (b *Bridge) Done() <-chan struct{} {
	return b.ended
}

// Input is the user data stream. It reports io.EOF after the connection ends.
func (b *Bridge) Input() io.Reader {
	return b.in
}

// Capabilities lists option names in the order the client first used them.
func (b *Bridge) Capabilities() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.capabilities)
}
