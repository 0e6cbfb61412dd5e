package telnet

import (
	"bytes"
	"io"
	"sync"
)

// WantedEnvironment is the list of variables requested from clients that
// agree to NEW-ENVIRON.
var WantedEnvironment = []string{"LINES", "COLUMNS", "TERM", "TERM_PROGRAM"}

// EncodeCommand builds IAC <cmd> <option>.
func EncodeCommand(cmd Command, opt Option) []byte {
	return []byte{iac, byte(cmd), byte(opt)}
}

// EncodeTerminalTypeRequest builds IAC SB TTYPE SEND IAC SE.
func EncodeTerminalTypeRequest() []byte {
	return []byte{iac, byte(SB), byte(TType), SEND, iac, byte(SE)}
}

// EncodeNewEnvironRequest builds IAC SB NEW-ENVIRON SEND, one VAR per name,
// a bare USERVAR (all user variables) and IAC SE.
func EncodeNewEnvironRequest(names ...string) []byte {
	buf := []byte{iac, byte(SB), byte(NewEnviron), SEND}
	for _, name := range names {
		buf = append(buf, VAR)
		buf = append(buf, name...)
	}
	return append(buf, USERVAR, iac, byte(SE))
}

// Writer sends data and negotiation frames to the peer. The mutex only keeps
// a frame from being split by a concurrent data write; nothing is buffered.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
	n  int64
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write sends user data, doubling any IAC bytes.
func (w *Writer) Write(p []byte) (n int, err error) {
	// If there are no IAC bytes, just write directly
	if bytes.IndexByte(p, iac) == -1 {
		return w.writeRaw(p)
	}

	var buf bytes.Buffer
	buf.Grow(len(p) + len(p)/10)
	for _, b := range p {
		buf.WriteByte(b)
		if b == iac {
			buf.WriteByte(iac)
		}
	}

	if _, err = w.writeRaw(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteCommand sends IAC <cmd> <option>.
func (w *Writer) WriteCommand(cmd Command, opt Option) error {
	_, err := w.writeRaw(EncodeCommand(cmd, opt))
	return err
}

func (w *Writer) RequestTerminalType() error {
	_, err := w.writeRaw(EncodeTerminalTypeRequest())
	return err
}

func (w *Writer) RequestNewEnvironment() error {
	_, err := w.writeRaw(EncodeNewEnvironRequest(WantedEnvironment...))
	return err
}

// BytesWritten is the number of bytes sent to the peer, framing included.
func (w *Writer) BytesWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

func (w *Writer) writeRaw(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.w.Write(p)
	w.n += int64(n)
	return n, err
}
