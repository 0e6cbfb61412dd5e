// Package terminal holds what is known about a connected user's terminal.
package terminal

import (
	"sync"
)

// UnknownType is the terminal type before anything has been learned.
const UnknownType = "unknown"

// Var is a single environment variable.
type Var struct {
	Name  string
	Value string
}

// Info is a point-in-time copy of a State.
type Info struct {
	Type   string
	Width  int
	Height int
	Env    []Var
}

// State is the terminal record for one connection. It is written by the
// connection that owns it and may be read by the session layer, hence the
// lock.
type State struct {
	mu       sync.RWMutex
	termType string
	width    int
	height   int
	env      []Var

	onResize func()
}

func New() *State {
	return &State{termType: UnknownType}
}

// OnResize registers the callback run whenever width or height is set. The
// session layer uses it to drop anything it rendered for the old size.
func (s *State) OnResize(fn func()) {
	s.mu.Lock()
	s.onResize = fn
	s.mu.Unlock()
}

func (s *State) Type() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.termType
}

// HasType reports whether a terminal type has been learned.
func (s *State) HasType() bool {
	return s.Type() != UnknownType
}

func (s *State) SetType(t string) {
	s.mu.Lock()
	s.termType = t
	s.mu.Unlock()
}

func (s *State) Size() (width, height int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}

// SetSize sets both dimensions and invalidates once.
func (s *State) SetSize(width, height int) {
	s.mu.Lock()
	s.width, s.height = width, height
	fn := s.onResize
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *State) SetWidth(width int) {
	_, h := s.Size()
	s.SetSize(width, h)
}

func (s *State) SetHeight(height int) {
	w, _ := s.Size()
	s.SetSize(w, height)
}

// Getenv returns the value of name and whether it is present.
func (s *State) Getenv(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.env {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

// Setenv adds or overwrites name, keeping its original position.
func (s *State) Setenv(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.env {
		if s.env[i].Name == name {
			s.env[i].Value = value
			return
		}
	}
	s.env = append(s.env, Var{Name: name, Value: value})
}

// AddEnv adds name only if it is absent. It returns false and leaves the
// existing value alone otherwise.
func (s *State) AddEnv(name, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.env {
		if v.Name == name {
			return false
		}
	}
	s.env = append(s.env, Var{Name: name, Value: value})
	return true
}

// Environ returns the environment in insertion order.
func (s *State) Environ() []Var {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Var, len(s.env))
	copy(out, s.env)
	return out
}

func (s *State) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	env := make([]Var, len(s.env))
	copy(env, s.env)
	return Info{
		Type:   s.termType,
		Width:  s.width,
		Height: s.height,
		Env:    env,
	}
}
