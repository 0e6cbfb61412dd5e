package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"golang.org/x/term"

	"bbsgate/internal/app"
	"bbsgate/internal/nodes"
	"bbsgate/internal/terminal"
)

const defaultWelcome = `Welcome to {{ .Board | default "bbsgate" }}.`

// Options describes the caller a Session serves.
type Options struct {
	Node     *nodes.Node
	Terminal *terminal.State
	Logger   *slog.Logger

	// Capabilities reports the options the client negotiated. Optional.
	Capabilities func() []string
}

// Session represents an active user session.
type Session struct {
	rw     io.ReadWriter
	input  *feed
	node   *nodes.Node
	state  *terminal.State
	logger *slog.Logger
	caps   func() []string

	term    *term.Terminal
	display *display
}

func New(rw io.ReadWriter, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	state := opts.Terminal
	if state == nil {
		state = terminal.New()
	}
	caps := opts.Capabilities
	if caps == nil {
		caps = func() []string { return nil }
	}

	s := &Session{
		rw:      rw,
		input:   newFeed(rw),
		node:    opts.Node,
		state:   state,
		logger:  logger,
		caps:    caps,
		display: newDisplay(rw),
	}
	s.term = term.NewTerminal(terminalIO{s.input.reader(nil), rw}, s.prompt())
	s.syncSize()

	state.OnResize(func() {
		s.display.invalidate()
		s.syncSize()
	})
	return s
}

// Run greets the caller and reads commands until they leave or the
// connection ends.
func (s *Session) Run(firstMenu string) {
	defer s.state.OnResize(nil)
	defer s.input.close()

	s.logger.Info("Session started",
		"menu", firstMenu,
		"ttype", s.state.Type(),
		"capabilities", strings.Join(s.caps(), ", "),
	)

	if err := s.welcome(firstMenu); err != nil {
		s.logger.Error("Failed to render welcome", "err", err)
	}

	for {
		line, err := s.term.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Error("Error reading line", "err", err)
			}
			return
		}

		cmd, args, _ := strings.Cut(strings.TrimSpace(line), " ")
		if cmd == "" {
			continue
		}
		c, ok := commands[strings.ToLower(cmd)]
		if !ok {
			fmt.Fprintf(s.term, "Unknown command: %s\n", cmd)
			continue
		}
		if done := c.run(s, strings.TrimSpace(args)); done {
			return
		}
	}
}

// welcomeData is what the welcome template sees.
type welcomeData struct {
	Board     string
	Node      int
	FirstMenu string
	Version   string
	Terminal  terminal.Info
	Env       map[string]string
}

func (s *Session) welcome(firstMenu string) error {
	text := defaultWelcome
	board := ""
	if app.Config != nil {
		if app.Config.Session.Welcome != "" {
			text = app.Config.Session.Welcome
		}
		board = app.Config.General.PrettyBoardName
		if board == "" {
			board = app.Config.General.BoardName
		}
	}

	tmpl, err := template.New("welcome").Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return fmt.Errorf("parse welcome template: %w", err)
	}

	info := s.state.Info()
	env := make(map[string]string, len(info.Env))
	for _, v := range info.Env {
		env[v.Name] = v.Value
	}

	data := welcomeData{
		Board:     board,
		FirstMenu: firstMenu,
		Version:   app.Version,
		Terminal:  info,
		Env:       env,
	}
	if s.node != nil {
		data.Node = s.node.ID
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render welcome template: %w", err)
	}
	_, err = s.term.Write(lines(buf.String()))
	return err
}

func (s *Session) prompt() string {
	if s.node == nil {
		return "> "
	}
	return fmt.Sprintf("[node %d] > ", s.node.ID)
}

func (s *Session) syncSize() {
	w, h := s.state.Size()
	if w > 0 && h > 0 {
		_ = s.term.SetSize(w, h)
	}
}

// lines ends text with exactly one newline. The terminal turns each
// newline into CR LF.
func lines(text string) []byte {
	return []byte(strings.TrimRight(text, "\n") + "\n")
}

type terminalIO struct {
	io.Reader
	io.Writer
}
