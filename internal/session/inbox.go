package session

import (
	"io"
	"sync"
)

// inbox queues user data from the connection's read goroutine for the
// session goroutine. Writes never block, so negotiation keeps flowing while
// the session is busy or not yet started.
type inbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []byte
	closed bool
}

func newInbox() *inbox {
	in := &inbox{}
	in.cond = sync.NewCond(&in.mu)
	return in
}

func (in *inbox) push(p []byte) {
	if len(p) == 0 {
		return
	}
	in.mu.Lock()
	if !in.closed {
		in.queue = append(in.queue, p...)
		in.cond.Signal()
	}
	in.mu.Unlock()
}

// Read blocks until data is queued or the inbox is closed. Queued data is
// still delivered after close; io.EOF follows.
func (in *inbox) Read(p []byte) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	for len(in.queue) == 0 && !in.closed {
		in.cond.Wait()
	}
	if len(in.queue) == 0 {
		return 0, io.EOF
	}
	n := copy(p, in.queue)
	in.queue = in.queue[n:]
	if len(in.queue) == 0 {
		in.queue = nil
	}
	return n, nil
}

func (in *inbox) Close() error {
	in.mu.Lock()
	in.closed = true
	in.cond.Broadcast()
	in.mu.Unlock()
	return nil
}
