package session

import (
	"io"
	"sync"
)

const feedChunk = 1024

// feed pumps the transport's input onto a channel so that a reader can stop
// waiting without losing the bytes it would have read. Only one reader is
// served at a time; the next one picks up whatever is left over.
type feed struct {
	src   io.Reader
	start sync.Once
	ch    chan []byte
	gone  chan struct{}
	quit  chan struct{}
	once  sync.Once
	err   error

	mu   sync.Mutex
	rest []byte
}

func newFeed(src io.Reader) *feed {
	return &feed{
		src:  src,
		ch:   make(chan []byte),
		gone: make(chan struct{}),
		quit: make(chan struct{}),
	}
}

func (f *feed) pump() {
	defer close(f.gone)
	for {
		buf := make([]byte, feedChunk)
		n, err := f.src.Read(buf)
		if n > 0 {
			select {
			case f.ch <- buf[:n]:
			case <-f.quit:
				return
			}
		}
		if err != nil {
			f.err = err
			close(f.ch)
			return
		}
	}
}

// reader returns a view of the feed that reports io.EOF once stop is closed.
// A nil stop never fires.
func (f *feed) reader(stop <-chan struct{}) io.Reader {
	return feedReader{f: f, stop: stop}
}

// done is closed when the transport has no more input.
func (f *feed) done() <-chan struct{} {
	f.start.Do(func() { go f.pump() })
	return f.gone
}

// close releases the pump once nobody reads any more. A pump blocked in the
// transport's Read exits when that read returns.
func (f *feed) close() {
	f.once.Do(func() { close(f.quit) })
}

func (f *feed) read(p []byte, stop <-chan struct{}) (int, error) {
	f.start.Do(func() { go f.pump() })

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.rest) == 0 {
		select {
		case chunk, ok := <-f.ch:
			if !ok {
				return 0, f.err
			}
			f.rest = chunk
		case <-stop:
			return 0, io.EOF
		}
	}
	n := copy(p, f.rest)
	f.rest = f.rest[n:]
	return n, nil
}

type feedReader struct {
	f    *feed
	stop <-chan struct{}
}

func (r feedReader) Read(p []byte) (int, error) {
	return r.f.read(p, r.stop)
}
