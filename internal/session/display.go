package session

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"bbsgate/internal/terminal"
)

const maxBoxWidth = 72

var asciiBorder = lipgloss.Border{
	Top:         "-",
	Bottom:      "-",
	Left:        "|",
	Right:       "|",
	TopLeft:     "+",
	TopRight:    "+",
	BottomLeft:  "+",
	BottomRight: "+",
}

// display caches the rendered terminal box. Anything laid out for one size
// is dropped when the terminal is resized.
type display struct {
	renderer *lipgloss.Renderer

	mu    sync.Mutex
	box   string
	valid bool
}

func newDisplay(w io.Writer) *display {
	return &display{renderer: lipgloss.NewRenderer(w)}
}

func (d *display) invalidate() {
	d.mu.Lock()
	d.valid = false
	d.box = ""
	d.mu.Unlock()
}

// cached reports whether the next infoBox call would reuse a rendering.
func (d *display) cached() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.valid
}

func (d *display) infoBox(info terminal.Info, caps []string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.valid {
		return d.box
	}

	border := asciiBorder
	if unicodeCapable(info) {
		border = lipgloss.RoundedBorder()
	}

	style := d.renderer.NewStyle().
		Border(border).
		Padding(0, 1)
	if w := boxWidth(info.Width); w > 0 {
		style = style.Width(w)
	}

	size := "unknown"
	if info.Width > 0 || info.Height > 0 {
		size = fmt.Sprintf("%dx%d", info.Width, info.Height)
	}
	negotiated := "none"
	if len(caps) > 0 {
		negotiated = strings.Join(caps, ", ")
	}

	rows := []string{
		"Terminal:   " + info.Type,
		"Size:       " + size,
		fmt.Sprintf("Variables:  %d", len(info.Env)),
		"Negotiated: " + negotiated,
	}

	d.box = style.Render(strings.Join(rows, "\n"))
	d.valid = true
	return d.box
}

// boxWidth leaves room for the border. Zero means unconstrained.
func boxWidth(termWidth int) int {
	if termWidth <= 0 {
		return 0
	}
	w := termWidth - 2
	if w > maxBoxWidth {
		w = maxBoxWidth
	}
	if w < 10 {
		return 0
	}
	return w
}

func unicodeCapable(info terminal.Info) bool {
	for _, v := range info.Env {
		if v.Name == "LANG" || v.Name == "LC_ALL" {
			lang := strings.ToUpper(v.Value)
			if strings.Contains(lang, "UTF-8") || strings.Contains(lang, "UTF8") {
				return true
			}
		}
	}
	t := strings.ToLower(info.Type)
	return strings.HasPrefix(t, "xterm") || strings.Contains(t, "256color")
}
