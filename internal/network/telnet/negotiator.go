package telnet

import (
	"log/slog"
	"slices"
	"strconv"

	"bbsgate/internal/terminal"
)

// ReadyEvent is delivered once per connection, when enough has been learned
// about the terminal for the session to start.
type ReadyEvent struct {
	FirstMenu string
}

// Handler is the session layer as seen from a connection. Calls are made
// from the connection's read goroutine, one at a time.
type Handler interface {
	// Ready fires exactly once.
	Ready(ev ReadyEvent)
	// Capability fires for every classified frame that names an option.
	// name is the option's lowercase name, e.g. "window size".
	Capability(name string, ev *Event)
	// Data receives bytes that are not part of any frame.
	Data(p []byte)
	// End fires once the transport has closed or failed.
	End()
}

// ignoredCommands are informational and need no reaction.
var ignoredCommands = []Command{EL, GA, NOP, DM, BRK}

// negotiatorHandlers maps each command category to its reaction.
var negotiatorHandlers = [...]func(*Negotiator, *Event){
	CategoryMisc: (*Negotiator).handleMisc,
	CategoryDo:   (*Negotiator).handleDo,
	CategoryDont: (*Negotiator).handleDont,
	CategoryWill: (*Negotiator).handleWill,
	CategoryWont: (*Negotiator).handleWont,
	CategorySub:  (*Negotiator).handleSub,
}

// Negotiator reacts to classified events for a single connection. Its flags
// only ever go from false to true.
type Negotiator struct {
	writer    *Writer
	term      *terminal.State
	handler   Handler
	logger    *slog.Logger
	metrics   *Metrics
	firstMenu string
	trace     bool
	closeRead func() error

	negotiationComplete bool
	readyEmitted        bool
	newEnvironRequested bool
}

func (n *Negotiator) NegotiationComplete() bool { return n.negotiationComplete }
func (n *Negotiator) ReadyEmitted() bool { return n.readyEmitted }
func (n *Negotiator) NewEnvironRequested() bool { return n.newEnvironRequested }

// Handle reacts to one event.
func (n *Negotiator) Handle(ev *Event) {
	negotiatorHandlers[ev.Command.Category()](n, ev)
}

func (n *Negotiator) handleWill(ev *Event) {
	switch ev.Option {
	case TType:
		// RFC 1091: the client agreed, ask for its type.
		n.send(n.writer.RequestTerminalType(), ev)
	case NewEnviron:
		n.requestNewEnvironment()
	default:
		n.traceEvent("WILL", ev)
	}
}

func (n *Negotiator) handleWont(ev *Event) {
	switch ev.Option {
	case NewEnviron:
		n.send(n.writer.WriteCommand(DONT, NewEnviron), ev)
	default:
		n.traceEvent("WONT", ev)
	}
}

func (n *Negotiator) handleDo(ev *Event) {
	switch ev.Option {
	case Linemode, Encrypt:
		// Never honoured by this server.
		n.send(n.writer.WriteCommand(WONT, ev.Option), ev)
	default:
		n.traceEvent("DO", ev)
	}
}

func (n *Negotiator) handleDont(ev *Event) {
	n.traceEvent("DONT", ev)
}

func (n *Negotiator) handleSub(ev *Event) {
	switch ev.Option {
	case TType:
		n.applyTerminalType(ev)
	case NewEnviron, NewEnvironOld:
		if ev.Option == NewEnvironOld {
			n.logger.Warn("Handling deprecated RFC 1408 NEW-ENVIRON")
		}
		n.applyEnvironment(ev)
	case NAWS:
		n.applyWindowSize(ev)
	default:
		n.logger.Debug("Telnet sub-negotiation ignored", "evt", ev)
	}
}

func (n *Negotiator) handleMisc(ev *Event) {
	switch {
	case ev.Command == IP:
		n.logger.Debug("Interrupt Process (IP) - Ending")
		if n.closeRead != nil {
			if err := n.closeRead(); err != nil {
				n.logger.Debug("Failed to close read side", "err", err)
			}
		}
	case ev.Command == AYT:
		_, err := n.writer.Write([]byte{'\b'})
		n.send(err, ev)
		n.logger.Debug(`Are You There (AYT) - Replied "\b"`)
	case slices.Contains(ignoredCommands, ev.Command):
		n.logger.Debug("Ignoring telnet command", "evt", ev)
	default:
		n.logger.Warn("Unknown telnet command", "evt", ev)
	}
}

// RFC 1091 suggests asking again until the list repeats; the first answer
// is used and no further requests are made.
func (n *Negotiator) applyTerminalType(ev *Event) {
	n.term.SetType(ev.TermType)
	n.logger.Debug("Terminal type updated", "ttype", ev.TermType)

	n.negotiationComplete = true
	if !n.readyEmitted {
		n.readyEmitted = true
		n.metrics.negotiated()
		n.handler.Ready(ReadyEvent{FirstMenu: n.firstMenu})
	}
}

// applyEnvironment maps TERM, COLUMNS and ROWS onto the terminal only when
// the terminal does not know them yet. Anything else is added when absent.
func (n *Negotiator) applyEnvironment(ev *Event) {
	for _, v := range ev.Env {
		switch {
		case v.Name == "TERM" && !n.term.HasType():
			n.term.SetType(v.Value)
			n.logger.Debug("Terminal type updated", "ttype", v.Value, "source", "NEW-ENVIRON")
		case v.Name == "COLUMNS" && n.width() == 0:
			if width, ok := n.atoi(v); ok {
				n.term.SetWidth(width)
				n.logger.Debug("Window width updated", "termWidth", width, "source", "NEW-ENVIRON")
			}
		case v.Name == "ROWS" && n.height() == 0:
			if height, ok := n.atoi(v); ok {
				n.term.SetHeight(height)
				n.logger.Debug("Window height updated", "termHeight", height, "source", "NEW-ENVIRON")
			}
		default:
			if n.term.AddEnv(v.Name, v.Value) {
				n.logger.Debug("New environment variable", "varName", v.Name, "value", v.Value)
				continue
			}
			existing, _ := n.term.Getenv(v.Name)
			n.logger.Warn("Environment variable already exists",
				"varName", v.Name,
				"value", v.Value,
				"existingValue", existing,
				"exchange", ev.Exchange,
			)
		}
	}
}

func (n *Negotiator) applyWindowSize(ev *Event) {
	n.term.SetSize(ev.Width, ev.Height)
	if ev.Width > 0 {
		n.term.Setenv("COLUMNS", strconv.Itoa(ev.Width))
	}
	if ev.Height > 0 {
		n.term.Setenv("ROWS", strconv.Itoa(ev.Height))
	}
	n.logger.Debug("Window size updated", "termWidth", ev.Width, "termHeight", ev.Height, "source", "NAWS")
}

func (n *Negotiator) requestNewEnvironment() {
	if n.newEnvironRequested {
		n.logger.Debug("New environment already requested")
		return
	}
	if err := n.writer.RequestNewEnvironment(); err != nil {
		n.logger.Debug("Failed to request new environment", "err", err)
	}
	n.newEnvironRequested = true
}

func (n *Negotiator) width() int {
	w, _ := n.term.Size()
	return w
}

func (n *Negotiator) height() int {
	_, h := n.term.Size()
	return h
}

func (n *Negotiator) atoi(v EnvVar) (int, bool) {
	i, err := strconv.Atoi(v.Value)
	if err != nil || i < 0 {
		n.logger.Warn("Ignoring non-numeric environment size", "varName", v.Name, "value", v.Value)
		return 0, false
	}
	return i, true
}

// send logs a failed reply. Replies are fire-and-forget; a broken transport
// shows up on the next read.
func (n *Negotiator) send(err error, ev *Event) {
	if err != nil {
		n.logger.Debug("Failed to send telnet reply", "evt", ev, "err", err)
	}
}

func (n *Negotiator) traceEvent(what string, ev *Event) {
	if n.trace {
		n.logger.Debug("Telnet: "+what, "evt", ev)
	}
}
