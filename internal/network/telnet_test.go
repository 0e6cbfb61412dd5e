package network

import (
	"bytes"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"bbsgate/internal/app"
	"bbsgate/internal/config"
	"bbsgate/internal/network/telnet"
	"bbsgate/internal/nodes"
	"bbsgate/internal/store"
	"bbsgate/internal/terminal"
)

// readUntil reads from conn until want has been seen or the deadline passes.
func readUntil(conn net.Conn, want []byte) []byte {
	GinkgoHelper()
	Expect(conn.SetReadDeadline(time.Now().Add(2 * time.Second))).To(Succeed())

	var got []byte
	buf := make([]byte, 512)
	for !bytes.Contains(got, want) {
		n, err := conn.Read(buf)
		got = append(got, buf[:n]...)
		Expect(err).NotTo(HaveOccurred(), "waiting for %q, got %q", want, got)
	}
	return got
}

var _ = Describe("Telnet listener", func() {
	var (
		server *Telnet
		addr   string
		db     *store.Store
		conns  []net.Conn
	)

	start := func(cfg config.TelnetConfig, maxNodes int) {
		app.Config = &config.Config{
			Listeners: config.ListenersConfig{Telnet: cfg},
			Session:   config.SessionConfig{Welcome: "Welcome, {{ .Terminal.Type }} caller"},
		}
		app.Nodes = nodes.NewManager(maxNodes)

		var err error
		db, err = store.New(":memory:", true)
		Expect(err).NotTo(HaveOccurred())
		app.Store = db

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr = ln.Addr().String()

		server = NewTelnet()
		go func() {
			defer GinkgoRecover()
			Expect(server.Serve(ln)).To(Succeed())
		}()
	}

	AfterEach(func() {
		for _, c := range conns {
			c.Close()
		}
		conns = nil
		Expect(server.Stop()).To(Succeed())
		Eventually(func() []*nodes.Node { return app.Nodes.Active() }).Should(BeEmpty())
		Expect(db.Close()).To(Succeed())
		app.Store = nil
		app.Config = nil
		app.Nodes = nil
	})

	dial := func() net.Conn {
		conn, err := net.Dial("tcp", addr)
		Expect(err).NotTo(HaveOccurred())
		conns = append(conns, conn)
		return conn
	}

	It("negotiates, runs a session and records the visit", func() {
		start(config.TelnetConfig{FirstMenu: "matrix"}, 2)
		conn := dial()

		readUntil(conn, telnet.EncodeCommand(telnet.DO, telnet.NewEnviron))

		_, err := conn.Write(telnet.EncodeCommand(telnet.WILL, telnet.TType))
		Expect(err).NotTo(HaveOccurred())
		readUntil(conn, telnet.EncodeTerminalTypeRequest())

		_, err = conn.Write([]byte{255, 250, 31, 0, 80, 0, 24, 255, 240})
		Expect(err).NotTo(HaveOccurred())
		_, err = conn.Write(append([]byte{255, 250, 24, 0}, append([]byte("xterm"), 255, 240)...))
		Expect(err).NotTo(HaveOccurred())
		readUntil(conn, []byte("Welcome, xterm caller"))

		_, err = conn.Write([]byte("quit\r\n"))
		Expect(err).NotTo(HaveOccurred())
		readUntil(conn, []byte("Goodbye!"))

		Eventually(func() ([]store.ConnectionRecord, error) {
			return db.RecentConnections(10)
		}, 2*time.Second).Should(ConsistOf(And(
			HaveField("Transport", "telnet"),
			HaveField("TerminalType", "xterm"),
			HaveField("Width", 80),
			HaveField("Height", 24),
			HaveField("Environment", ContainElement(store.EnvVar{Name: "COLUMNS", Value: "80"})),
		)))
	})

	It("turns callers away when every node is busy", func() {
		start(config.TelnetConfig{}, 1)
		first := dial()
		readUntil(first, telnet.EncodeCommand(telnet.DO, telnet.NewEnviron))

		second := dial()
		readUntil(second, []byte("All nodes are busy"))
	})

	It("drops connections beyond the accept rate", func() {
		start(config.TelnetConfig{AcceptRate: 0.001, AcceptBurst: 1}, 4)
		first := dial()
		readUntil(first, telnet.EncodeCommand(telnet.DO, telnet.NewEnviron))

		second := dial()
		Expect(second.SetReadDeadline(time.Now().Add(2 * time.Second))).To(Succeed())
		_, err := second.Read(make([]byte, 16))
		Expect(err).To(HaveOccurred())
		Expect(err).NotTo(MatchError(ContainSubstring("timeout")))
	})
})

var _ = Describe("visit", func() {
	It("writes to the store that was current when the caller arrived", func() {
		db, err := store.New(":memory:", true)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)

		app.Store = nil
		state := terminal.New()
		state.SetType("ansi")
		state.Setenv("LANG", "C")

		visit{
			store:        db,
			id:           "visit-1",
			node:         &nodes.Node{ID: 3, Transport: "ssh", ConnectedAt: time.Now().Add(-time.Minute)},
			remoteAddr:   "10.0.0.1:22",
			info:         state.Info(),
			bytesRead:    10,
			bytesWritten: 2048,
		}.record(app.Logger)

		records, err := db.RecentConnections(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(ConsistOf(And(
			HaveField("ConnID", "visit-1"),
			HaveField("Node", 3),
			HaveField("TerminalType", "ansi"),
			HaveField("BytesWritten", int64(2048)),
			HaveField("Environment", Equal([]store.EnvVar{{Name: "LANG", Value: "C"}})),
		)))
	})
})

var _ = Describe("applyEnviron", func() {
	It("adds well formed pairs and keeps the first of duplicates", func() {
		state := terminal.New()
		applyEnviron(state, []string{"LANG=C.UTF-8", "broken", "=x", "LANG=POSIX", "EMPTY="})
		Expect(state.Environ()).To(Equal([]terminal.Var{
			{Name: "LANG", Value: "C.UTF-8"},
			{Name: "EMPTY", Value: ""},
		}))
	})
})
