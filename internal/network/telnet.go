package network

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"bbsgate/internal/app"
	"bbsgate/internal/config"
	"bbsgate/internal/network/telnet"
	"bbsgate/internal/session"
	"bbsgate/internal/terminal"
)

type Telnet struct {
	config  config.TelnetConfig
	metrics *telnet.Metrics
	limiter *rate.Limiter

	mu      sync.Mutex
	ln      net.Listener
	stopped bool
}

func NewTelnet() *Telnet {
	cfg := app.Config.Listeners.Telnet
	t := &Telnet{
		config:  cfg,
		metrics: app.TelnetMetrics,
	}
	if cfg.AcceptRate > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), cfg.AcceptBurst)
	}
	return t
}

func (t *Telnet) ListenAndServe() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", t.config.Port))
	if err != nil {
		return err
	}
	return t.Serve(ln)
}

// Serve accepts connections on ln until Stop is called.
func (t *Telnet) Serve(ln net.Listener) error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return ln.Close()
	}
	t.ln = ln
	t.mu.Unlock()
	defer ln.Close()

	app.Logger.Info("Telnet server listening", "addr", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			app.Logger.Error("Telnet accept error", "err", err)
			continue
		}

		if t.limiter != nil && !t.limiter.Allow() {
			app.Logger.Warn("Connection rejected: accept rate exceeded", "addr", conn.RemoteAddr())
			conn.Close()
			continue
		}

		go t.handleConnection(conn)
	}
}

func (t *Telnet) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.ln != nil {
		return t.ln.Close()
	}
	return nil
}

func (t *Telnet) handleConnection(conn net.Conn) {
	defer conn.Close()

	node, err := app.Nodes.Acquire("telnet")
	if err != nil {
		app.Logger.Warn("Connection rejected: system full", "addr", conn.RemoteAddr())
		fmt.Fprint(conn, "All nodes are busy, please call back later.\r\n")
		return
	}
	defer app.Nodes.Release(node.ID)

	id := uuid.New().String()
	db := app.Store
	logger := app.Logger.With("node", node.ID, "conn", id)

	state := terminal.New()
	bridge := session.NewBridge(logger)
	tc := telnet.NewConnection(conn, logger, telnet.ConnectionOptions{
		FirstMenu: t.config.FirstMenu,
		Trace:     t.config.TraceConnections,
		Terminal:  state,
		Handler:   bridge,
		Metrics:   t.metrics,
	})
	node.Conn = tc

	t.metrics.Connected()
	defer t.metrics.Disconnected()

	logger.Debug("Telnet connection from", "addr", conn.RemoteAddr())

	served := make(chan struct{})
	go func() {
		defer close(served)
		tc.Serve()
	}()

	if err := tc.Banner(); err != nil {
		logger.Debug("Failed to send banner", "err", err)
	}

	// The session starts once the client has told us its terminal type.
	if ev, ok := bridge.WaitReady(); ok {
		info := state.Info()
		logger.Info("Telnet connection established",
			"addr", conn.RemoteAddr(),
			"terminal", info.Type,
			"width", info.Width,
			"height", info.Height,
		)
		session.New(readWriter{bridge.Input(), tc}, session.Options{
			Node:         node,
			Terminal:     state,
			Logger:       logger,
			Capabilities: bridge.Capabilities,
		}).Run(ev.FirstMenu)
	}

	tc.Close()
	<-served

	visit{
		store:        db,
		id:           id,
		node:         node,
		remoteAddr:   conn.RemoteAddr().String(),
		info:         state.Info(),
		bytesRead:    tc.BytesRead(),
		bytesWritten: tc.BytesWritten(),
	}.record(logger)
}
