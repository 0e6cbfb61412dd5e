package session

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"bbsgate/internal/app"
	"bbsgate/internal/config"
	"bbsgate/internal/network/telnet"
	"bbsgate/internal/nodes"
	"bbsgate/internal/terminal"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type readWriter struct {
	io.Reader
	io.Writer
}

type stubConn struct{ info terminal.Info }

func (stubConn) Send(string) error { return nil }
func (stubConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 23}
}
func (c stubConn) TerminalInfo() terminal.Info { return c.info }

var discard = slog.New(slog.DiscardHandler)

var _ = Describe("Bridge", func() {
	var b *Bridge

	BeforeEach(func() {
		b = NewBridge(discard)
	})

	It("folds CR LF and CR NUL into CR across calls", func() {
		b.Data([]byte("ab\r"))
		b.Data([]byte("\ncd\r\x00e"))
		b.End()

		data, err := io.ReadAll(b.Input())
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("ab\rcd\re"))
	})

	It("reports ready once the first Ready arrives", func() {
		b.Ready(telnet.ReadyEvent{FirstMenu: "matrix"})
		b.Ready(telnet.ReadyEvent{FirstMenu: "ignored"})

		ev, ok := b.WaitReady()
		Expect(ok).To(BeTrue())
		Expect(ev.FirstMenu).To(Equal("matrix"))
	})

	It("stops waiting when the connection ends first", func() {
		done := make(chan bool)
		go func() {
			_, ok := b.WaitReady()
			done <- ok
		}()
		b.End()
		Eventually(done).Should(Receive(BeFalse()))
		Expect(b.Done()).To(BeClosed())
	})

	It("remembers each capability once, in order", func() {
		ev := &telnet.Event{Command: telnet.WILL, Option: telnet.NAWS, HasOption: true}
		b.Capability("window size", ev)
		b.Capability("terminal type", ev)
		b.Capability("window size", ev)
		Expect(b.Capabilities()).To(Equal([]string{"window size", "terminal type"}))
	})

	It("drops data after the end", func() {
		b.End()
		b.Data([]byte("late"))
		n, err := b.Input().Read(make([]byte, 8))
		Expect(n).To(BeZero())
		Expect(err).To(Equal(io.EOF))
	})
})

var _ = Describe("Session", func() {
	var (
		state  *terminal.State
		bridge *Bridge
		out    *syncBuffer
		node   *nodes.Node
	)

	BeforeEach(func() {
		app.Config = &config.Config{
			General: config.GeneralConfig{BoardName: "Test Board"},
			Session: config.SessionConfig{
				Welcome: `Hello {{ .Board }} node {{ .Node }} on {{ .Terminal.Type | upper }} via {{ .FirstMenu }}`,
			},
		}
		app.Nodes = nodes.NewManager(4)
		var err error
		node, err = app.Nodes.Acquire("telnet")
		Expect(err).NotTo(HaveOccurred())
		node.Conn = stubConn{info: terminal.Info{Type: "ansi"}}

		state = terminal.New()
		state.SetType("ansi")
		state.SetSize(80, 24)
		bridge = NewBridge(discard)
		out = &syncBuffer{}
	})

	AfterEach(func() {
		app.Config = nil
		app.Nodes = nil
	})

	run := func(input string) {
		bridge.Data([]byte(input))
		bridge.End()
		s := New(readWriter{bridge.Input(), out}, Options{
			Node:         node,
			Terminal:     state,
			Logger:       discard,
			Capabilities: bridge.Capabilities,
		})
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.Run("matrix")
		}()
		Eventually(done, 2*time.Second).Should(BeClosed())
	}

	It("renders the welcome template", func() {
		run("")
		Expect(out.String()).To(ContainSubstring("Hello Test Board node 1 on ANSI via matrix"))
	})

	It("shows the terminal box", func() {
		bridge.Capability("window size", &telnet.Event{})
		run("info\r\n")
		Expect(out.String()).To(ContainSubstring("Terminal:   ansi"))
		Expect(out.String()).To(ContainSubstring("Size:       80x24"))
		Expect(out.String()).To(ContainSubstring("window size"))
	})

	It("lists negotiated variables", func() {
		state.Setenv("COLUMNS", "80")
		run("env\r")
		Expect(out.String()).To(ContainSubstring("COLUMNS=80"))
	})

	It("lists who is online", func() {
		run("who\r")
		Expect(out.String()).To(ContainSubstring("telnet"))
		Expect(out.String()).To(ContainSubstring("1 *"))
	})

	It("says goodbye on quit and ignores what follows", func() {
		run("quit\rinfo\r")
		Expect(out.String()).To(ContainSubstring("Goodbye!"))
		Expect(out.String()).NotTo(ContainSubstring("Terminal:"))
	})

	It("leaves the monitor when the caller goes away", func() {
		run("monitor\r")
		Expect(out.String()).To(ContainSubstring("Nodes online: 1"))
	})

	It("reports unknown commands", func() {
		run("dance\r")
		Expect(out.String()).To(ContainSubstring("Unknown command: dance"))
	})
})

var _ = Describe("monitorModel", func() {
	var state *terminal.State

	BeforeEach(func() {
		app.Nodes = nodes.NewManager(4)
		for _, transport := range []string{"telnet", "ssh"} {
			n, err := app.Nodes.Acquire(transport)
			Expect(err).NotTo(HaveOccurred())
			n.Conn = stubConn{info: terminal.Info{Type: "vt100", Width: 80, Height: 24}}
		}
		state = terminal.New()
	})

	AfterEach(func() {
		app.Nodes = nil
	})

	It("lists every occupied node", func() {
		view := newMonitor(2, state, lipgloss.NewRenderer(io.Discard)).View()
		Expect(view).To(ContainSubstring("Nodes online: 2"))
		Expect(view).To(ContainSubstring("telnet"))
		Expect(view).To(ContainSubstring("ssh"))
		Expect(view).To(ContainSubstring("80x24"))
	})

	It("moves the cursor within the list", func() {
		var m tea.Model = newMonitor(1, state, lipgloss.NewRenderer(io.Discard))
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
		Expect(m.(monitorModel).cursor).To(Equal(1))
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
		Expect(m.(monitorModel).cursor).To(Equal(0))
	})

	It("picks up nodes that leave on the next tick", func() {
		var m tea.Model = newMonitor(1, state, lipgloss.NewRenderer(io.Discard))
		app.Nodes.Release(2)
		m, cmd := m.Update(tickMsg(time.Now()))
		Expect(cmd).NotTo(BeNil())
		Expect(m.View()).To(ContainSubstring("Nodes online: 1"))
	})

	It("quits on q", func() {
		m := newMonitor(1, state, lipgloss.NewRenderer(io.Discard))
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
		Expect(cmd).NotTo(BeNil())
		Expect(cmd()).To(Equal(tea.QuitMsg{}))
	})
})

var _ = Describe("feed", func() {
	It("keeps input for the next reader when a reader stops", func() {
		src, w := io.Pipe()
		f := newFeed(src)

		stop := make(chan struct{})
		close(stop)
		n, err := f.reader(stop).Read(make([]byte, 8))
		Expect(n).To(BeZero())
		Expect(err).To(Equal(io.EOF))

		go func() {
			defer GinkgoRecover()
			_, err := w.Write([]byte("hello"))
			Expect(err).NotTo(HaveOccurred())
			w.Close()
		}()

		data, err := io.ReadAll(f.reader(nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("hello"))
		Eventually(f.done()).Should(BeClosed())
	})
})

var _ = Describe("display", func() {
	It("reuses the box until the terminal is resized", func() {
		state := terminal.New()
		d := newDisplay(io.Discard)
		state.OnResize(d.invalidate)

		state.SetSize(80, 24)
		first := d.infoBox(state.Info(), nil)
		Expect(d.cached()).To(BeTrue())
		Expect(d.infoBox(state.Info(), nil)).To(Equal(first))

		state.SetSize(40, 24)
		Expect(d.cached()).To(BeFalse())
		Expect(d.infoBox(state.Info(), nil)).To(ContainSubstring("40x24"))
	})

	It("uses ASCII borders unless the terminal looks unicode capable", func() {
		d := newDisplay(io.Discard)
		Expect(d.infoBox(terminal.Info{Type: "ansi"}, nil)).To(HavePrefix("+"))

		d.invalidate()
		box := d.infoBox(terminal.Info{Type: "xterm-256color"}, nil)
		Expect(box).To(HavePrefix("╭"))
	})
})
