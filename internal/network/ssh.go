package network

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/gliderlabs/ssh"
	"github.com/google/uuid"

	"bbsgate/internal/app"
	"bbsgate/internal/config"
	"bbsgate/internal/session"
	"bbsgate/internal/terminal"
)

// SSH serves callers over SSH. There is no Telnet negotiation here: the
// terminal is described by the pty request and window-change messages.
type SSH struct {
	config config.SSHConfig

	mu      sync.Mutex
	server  *ssh.Server
	ln      net.Listener
	stopped bool
}

// sshConnection adapts ssh.Session to nodes.Connection.
type sshConnection struct {
	sess  ssh.Session
	state *terminal.State
}

func (c *sshConnection) Send(msg string) error {
	_, err := io.WriteString(c.sess, msg+"\r\n")
	return err
}

func (c *sshConnection) RemoteAddr() net.Addr {
	return c.sess.RemoteAddr()
}

func (c *sshConnection) TerminalInfo() terminal.Info {
	return c.state.Info()
}

func NewSSH() *SSH {
	return &SSH{
		config: app.Config.Listeners.SSH,
	}
}

func (s *SSH) ListenAndServe() error {
	server := &ssh.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.HandleSession,
	}

	generated, err := ensureHostKey(s.config.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to prepare host key %s: %w", s.config.KeyFile, err)
	}
	if fingerprint, err := hostKeyFingerprint(s.config.KeyFile); err == nil {
		app.Logger.Info("SSH host key", "file", s.config.KeyFile, "fingerprint", fingerprint, "generated", generated)
	}

	if err := server.SetOption(ssh.HostKeyFile(s.config.KeyFile)); err != nil {
		return fmt.Errorf("failed to load host key %s: %w", s.config.KeyFile, err)
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return err
	}
	return s.serve(server, ln)
}

// serve runs server on ln until Stop is called. A Stop that came first
// closes ln straight away.
func (s *SSH) serve(server *ssh.Server, ln net.Listener) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ln.Close()
	}
	s.server = server
	s.ln = ln
	s.mu.Unlock()

	app.Logger.Info("SSH server listening", "addr", ln.Addr())
	if err := server.Serve(ln); err != nil && !errors.Is(err, ssh.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *SSH) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.server == nil {
		return nil
	}
	err := s.server.Close()
	// Serve may not have taken the listener over yet.
	if cerr := s.ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
		err = cerr
	}
	return err
}

func (s *SSH) HandleSession(sess ssh.Session) {
	node, err := app.Nodes.Acquire("ssh")
	if err != nil {
		app.Logger.Warn("SSH Connection rejected: system full", "addr", sess.RemoteAddr())
		io.WriteString(sess, "All nodes are busy, please call back later.\r\n")
		sess.Close()
		return
	}
	defer app.Nodes.Release(node.ID)

	id := uuid.New().String()
	db := app.Store
	logger := app.Logger.With("node", node.ID, "conn", id)

	state := terminal.New()
	applyEnviron(state, sess.Environ())

	if pty, winCh, isPty := sess.Pty(); isPty {
		state.SetType(pty.Term)
		state.SetSize(pty.Window.Width, pty.Window.Height)

		go func() {
			for win := range winCh {
				state.SetSize(win.Width, win.Height)
			}
		}()
	}

	node.Conn = &sshConnection{sess: sess, state: state}
	rw := &counter{rw: sess}

	info := state.Info()
	logger.Info("SSH connection established",
		"user", sess.User(),
		"terminal", info.Type,
		"width", info.Width,
		"height", info.Height,
	)

	session.New(rw, session.Options{
		Node:     node,
		Terminal: state,
		Logger:   logger,
	}).Run(s.config.FirstMenu)

	visit{
		store:        db,
		id:           id,
		node:         node,
		remoteAddr:   sess.RemoteAddr().String(),
		info:         state.Info(),
		bytesRead:    rw.read.Load(),
		bytesWritten: rw.written.Load(),
	}.record(logger)
}

// applyEnviron copies NAME=value pairs from the SSH env requests.
func applyEnviron(state *terminal.State, environ []string) {
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		state.AddEnv(name, value)
	}
}
