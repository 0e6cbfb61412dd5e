package network

import (
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"bbsgate/internal/nodes"
	"bbsgate/internal/store"
	"bbsgate/internal/terminal"
)

// visit is what gets written to the audit log when a caller leaves. store
// is the one in use when the caller arrived; a reload may replace
// app.Store in the meantime.
type visit struct {
	store        *store.Store
	id           string
	node         *nodes.Node
	remoteAddr   string
	info         terminal.Info
	bytesRead    int64
	bytesWritten int64
}

func (v visit) record(logger *slog.Logger) {
	duration := time.Since(v.node.ConnectedAt)

	logger.Info("Connection closed",
		"transport", v.node.Transport,
		"addr", v.remoteAddr,
		"online", duration.Round(time.Second).String(),
		"in", humanize.Bytes(uint64(v.bytesRead)),
		"out", humanize.Bytes(uint64(v.bytesWritten)),
	)

	if v.store == nil {
		return
	}

	rec := &store.ConnectionRecord{
		ConnID:       v.id,
		Transport:    v.node.Transport,
		Node:         v.node.ID,
		RemoteAddr:   v.remoteAddr,
		TerminalType: v.info.Type,
		Width:        v.info.Width,
		Height:       v.info.Height,
		BytesRead:    v.bytesRead,
		BytesWritten: v.bytesWritten,
		ConnectedAt:  v.node.ConnectedAt,
		Duration:     duration,
	}
	for _, e := range v.info.Env {
		rec.Environment = append(rec.Environment, store.EnvVar{Name: e.Name, Value: e.Value})
	}
	if err := v.store.RecordConnection(rec); err != nil {
		logger.Error("Failed to record connection", "err", err)
	}
}

// readWriter joins a session's input stream to the connection it writes to.
type readWriter struct {
	io.Reader
	io.Writer
}

// counter tallies bytes passing through a transport that does not count them
// itself.
type counter struct {
	rw            io.ReadWriter
	read, written atomic.Int64
}

func (c *counter) Read(p []byte) (int, error) {
	n, err := c.rw.Read(p)
	c.read.Add(int64(n))
	return n, err
}

func (c *counter) Write(p []byte) (int, error) {
	n, err := c.rw.Write(p)
	c.written.Add(int64(n))
	return n, err
}
