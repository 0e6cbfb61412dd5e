package session

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"bbsgate/internal/app"
)

type command struct {
	help string
	// run returns true to end the session.
	run func(s *Session, args string) bool
}

var commands map[string]command

func init() {
	quit := command{help: "Disconnect", run: (*Session).quit}
	commands = map[string]command{
		"help":    {help: "List commands", run: (*Session).help},
		"info":    {help: "Show what is known about your terminal", run: (*Session).info},
		"env":     {help: "List negotiated environment variables", run: (*Session).env},
		"who":     {help: "List connected callers", run: (*Session).who},
		"monitor": {help: "Watch connected callers live", run: (*Session).monitor},
		"quit":    quit,
		"exit":    quit,
		"logoff":  quit,
	}
}

func (s *Session) help(string) bool {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%s\n", name, commands[name].help)
	}
	tw.Flush()
	s.term.Write(lines(b.String()))
	return false
}

func (s *Session) info(string) bool {
	box := s.display.infoBox(s.state.Info(), s.caps())
	s.term.Write(lines(box))
	return false
}

func (s *Session) env(string) bool {
	vars := s.state.Environ()
	if len(vars) == 0 {
		s.term.Write([]byte("No environment variables were negotiated.\n"))
		return false
	}

	var b strings.Builder
	for _, v := range vars {
		fmt.Fprintf(&b, "%s=%s\n", v.Name, v.Value)
	}
	s.term.Write(lines(b.String()))
	return false
}

func (s *Session) who(string) bool {
	if app.Nodes == nil {
		return false
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Node\tVia\tTerminal\tOnline")
	for _, n := range app.Nodes.Active() {
		ttype := "-"
		if n.Conn != nil {
			ttype = n.Conn.TerminalInfo().Type
		}
		marker := ""
		if s.node != nil && n.ID == s.node.ID {
			marker = " *"
		}
		fmt.Fprintf(tw, "%d%s\t%s\t%s\t%s\n", n.ID, marker, n.Transport, ttype, humanize.Time(n.ConnectedAt))
	}
	tw.Flush()
	s.term.Write(lines(b.String()))
	return false
}

func (s *Session) quit(string) bool {
	s.term.Write([]byte("Goodbye!\n"))
	return true
}
