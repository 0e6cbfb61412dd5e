package nodes

import (
	"errors"
	"sync"
	"time"
)

var ErrSystemFull = errors.New("system full")

type Manager struct {
	mu       sync.RWMutex
	maxNodes int
	nodes    []*Node
}

func NewManager(maxNodes int) *Manager {
	if maxNodes <= 0 {
		maxNodes = 10
	}
	return &Manager{
		maxNodes: maxNodes,
		nodes:    make([]*Node, maxNodes),
	}
}

// Acquire takes the lowest free slot.
func (m *Manager) Acquire(transport string) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, n := range m.nodes {
		if n == nil {
			node := &Node{
				ID:          i + 1,
				Transport:   transport,
				ConnectedAt: time.Now(),
			}
			m.nodes[i] = node
			return node, nil
		}
	}
	return nil, ErrSystemFull
}

func (m *Manager) Release(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id < 1 || id > m.maxNodes {
		return
	}
	m.nodes[id-1] = nil
}

func (m *Manager) Get(id int) *Node {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id < 1 || id > m.maxNodes {
		return nil
	}
	return m.nodes[id-1]
}

// Active returns the occupied nodes in slot order.
func (m *Manager) Active() []*Node {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []*Node
	for _, n := range m.nodes {
		if n != nil {
			active = append(active, n)
		}
	}
	return active
}

func (m *Manager) Broadcast(msg string) {
	m.BroadcastExcept(msg, -1)
}

func (m *Manager) BroadcastExcept(msg string, exceptID int) {
	for _, n := range m.Active() {
		if n.Conn != nil && n.ID != exceptID {
			// Ignore errors for broadcast
			_ = n.Conn.Send(msg)
		}
	}
}
