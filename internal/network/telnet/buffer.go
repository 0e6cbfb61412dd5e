package telnet

import "bytes"

// Buffer accumulates bytes that have arrived from the peer but have not yet
// been classified. Bytes are appended at the tail and consumed from the head;
// once consumed they are never looked at again.
type Buffer struct {
	data []byte
	head int
}

func (b *Buffer) Write(p []byte) (int, error) {
	if b.head > 0 && b.head >= cap(b.data)/2 {
		n := copy(b.data, b.data[b.head:])
		b.data = b.data[:n]
		b.head = 0
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

// Len is the number of unconsumed bytes.
func (b *Buffer) Len() int {
	return len(b.data) - b.head
}

// At returns the unconsumed byte at offset i. i must be less than Len.
func (b *Buffer) At(i int) byte {
	return b.data[b.head+i]
}

// Peek returns the first n unconsumed bytes without consuming them. The slice
// is only valid until the next Write.
func (b *Buffer) Peek(n int) []byte {
	if n > b.Len() {
		n = b.Len()
	}
	return b.data[b.head : b.head+n]
}

// Next consumes n bytes and returns a copy of them.
func (b *Buffer) Next(n int) []byte {
	if n > b.Len() {
		n = b.Len()
	}
	out := make([]byte, n)
	copy(out, b.data[b.head:b.head+n])
	b.head += n
	if b.head == len(b.data) {
		b.data = b.data[:0]
		b.head = 0
	}
	return out
}

// Skip consumes n bytes without copying them.
func (b *Buffer) Skip(n int) {
	if n > b.Len() {
		n = b.Len()
	}
	b.head += n
	if b.head == len(b.data) {
		b.data = b.data[:0]
		b.head = 0
	}
}

// IndexByte returns the offset of the first c, or -1.
func (b *Buffer) IndexByte(c byte) int {
	return bytes.IndexByte(b.data[b.head:], c)
}

// Index returns the offset of sep searching from offset from, or -1.
func (b *Buffer) Index(sep []byte, from int) int {
	if from >= b.Len() {
		return -1
	}
	i := bytes.Index(b.data[b.head+from:], sep)
	if i < 0 {
		return -1
	}
	return from + i
}

// IndexTrailer returns the offset of the IAC of the first IAC SE pair at or
// after from. Escaped IAC IAC pairs are skipped over.
func (b *Buffer) IndexTrailer(from int) int {
	data := b.data[b.head:]
	for i := from; i+1 < len(data); i++ {
		if data[i] != iac {
			continue
		}
		switch Command(data[i+1]) {
		case SE:
			return i
		case IAC:
			i++
		}
	}
	return -1
}

// Reset discards everything.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.head = 0
}
