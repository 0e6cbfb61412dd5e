package telnet

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"bbsgate/internal/terminal"
)

const readSize = 4096

// ConnectionOptions configures a Connection. Terminal and Handler may be
// left nil.
type ConnectionOptions struct {
	FirstMenu string
	Trace     bool
	Terminal  *terminal.State
	Handler   Handler
	Metrics   *Metrics
}

// Connection is the per-socket shim binding the reassembly buffer, the
// negotiator and the terminal state to a session Handler.
type Connection struct {
	conn    net.Conn
	logger  *slog.Logger
	handler Handler
	metrics *Metrics

	buf        Buffer
	tokenizer  tokenizer
	writer     *Writer
	negotiator *Negotiator
	term       *terminal.State

	bytesRead atomic.Int64
	endOnce   sync.Once
}

func NewConnection(conn net.Conn, logger *slog.Logger, opts ConnectionOptions) *Connection {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	term := opts.Terminal
	if term == nil {
		term = terminal.New()
	}
	handler := opts.Handler
	if handler == nil {
		handler = nopHandler{}
	}

	c := &Connection{
		conn:      conn,
		logger:    logger,
		handler:   handler,
		metrics:   opts.Metrics,
		tokenizer: tokenizer{logger: logger},
		writer:    NewWriter(conn),
		term:      term,
	}
	c.negotiator = &Negotiator{
		writer:    c.writer,
		term:      term,
		handler:   handler,
		logger:    logger,
		metrics:   opts.Metrics,
		firstMenu: opts.FirstMenu,
		trace:     opts.Trace,
		closeRead: c.CloseRead,
	}
	return c
}

// Banner opens negotiation. Everything after this is reactive.
func (c *Connection) Banner() error {
	frames := [][2]byte{
		{byte(WILL), byte(Echo)},
		{byte(WILL), byte(SGA)},
		{byte(DO), byte(SGA)},
		{byte(DO), byte(TransmitBinary)},
		{byte(WILL), byte(TransmitBinary)},
		{byte(DO), byte(TType)},
		{byte(DO), byte(NAWS)},
		{byte(DO), byte(NewEnviron)},
	}
	for _, f := range frames {
		if err := c.writer.WriteCommand(Command(f[0]), Option(f[1])); err != nil {
			return err
		}
	}
	return nil
}

// Process feeds one chunk read from the transport through the buffer. Data
// between frames goes to the handler in arrival order, each complete frame is
// reported and then handled, and an incomplete trailing frame stays buffered
// for the next call. Only ErrMalformedFrame is returned; the connection must
// not be used after that.
func (c *Connection) Process(chunk []byte) error {
	c.buf.Write(chunk)

	for c.buf.Len() > 0 {
		i := c.buf.IndexByte(iac)
		switch {
		case i < 0:
			c.handler.Data(c.buf.Next(c.buf.Len()))
			return nil
		case i > 0:
			c.handler.Data(c.buf.Next(i))
			continue
		}

		// IAC IAC is an escaped data byte.
		if c.buf.Len() >= 2 && Command(c.buf.At(1)) == IAC {
			c.buf.Skip(2)
			c.handler.Data([]byte{iac})
			continue
		}

		ev, err := c.tokenizer.next(&c.buf)
		if errors.Is(err, errMoreData) {
			return nil
		}
		if err != nil {
			c.metrics.malformedFrame()
			c.buf.Reset()
			return err
		}

		c.metrics.frame(ev.Command)
		if ev.HasOption {
			c.handler.Capability(ev.Option.Name(), ev)
		}
		c.negotiator.Handle(ev)
	}
	return nil
}

// Serve reads until the peer goes away, the read side is closed or the
// stream becomes unreadable, then ends the session.
func (c *Connection) Serve() {
	defer c.end()

	buf := make([]byte, readSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.bytesRead.Add(int64(n))
			if perr := c.Process(buf[:n]); perr != nil {
				c.logger.Error("Closing telnet connection", "err", perr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
				c.logger.Debug("Telnet read failed", "err", err)
			}
			return
		}
	}
}

func (c *Connection) end() {
	c.endOnce.Do(c.handler.End)
}

// Write sends user data with IAC escaped.
func (c *Connection) Write(p []byte) (int, error) {
	return c.writer.Write(p)
}

// Send writes msg followed by CRLF.
func (c *Connection) Send(msg string) error {
	_, err := c.writer.Write([]byte(msg + "\r\n"))
	return err
}

func (c *Connection) Close() error {
	return c.conn.Close()
}

// CloseRead stops further reads while leaving writes possible where the
// transport allows it.
func (c *Connection) CloseRead() error {
	if tcp, ok := c.conn.(*net.TCPConn); ok {
		return tcp.CloseRead()
	}
	return c.conn.Close()
}

func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Connection) Terminal() *terminal.State {
	return c.term
}

// TerminalInfo is a snapshot of the terminal state.
func (c *Connection) TerminalInfo() terminal.Info {
	return c.term.Info()
}

func (c *Connection) Negotiator() *Negotiator {
	return c.negotiator
}

func (c *Connection) BytesRead() int64 {
	return c.bytesRead.Load()
}

func (c *Connection) BytesWritten() int64 {
	return c.writer.BytesWritten()
}

type nopHandler struct{}

func (nopHandler) Ready(ReadyEvent) {}
func (nopHandler) Capability(string, *Event) {}
func (nopHandler) Data([]byte) {}
func (nopHandler) End() {}
