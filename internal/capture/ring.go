package capture

import (
	"sync"
	"sync/atomic"
)

// DefaultRingSize bounds the hardware-accelerated backend's frame history.
const DefaultRingSize = 512

// frameStore holds produced frames for a duplication backend.
type frameStore interface {
	Put(f *Frame)
	Latest() (*Frame, bool)
	Reset()
}

// ringBuffer keeps the last n frames. Put overwrites the oldest slot once
// full; Latest always returns the newest.
type ringBuffer struct {
	mu      sync.Mutex
	slots   []*Frame
	head    int // index of the newest frame
	count   int
	dropped uint64
}

func newRingBuffer(size int) *ringBuffer {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &ringBuffer{slots: make([]*Frame, size), head: -1}
}

func (r *ringBuffer) Put(f *Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.head = (r.head + 1) % len(r.slots)
	if r.count == len(r.slots) {
		r.dropped++
	} else {
		r.count++
	}
	r.slots[r.head] = f
}

func (r *ringBuffer) Latest() (*Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return nil, false
	}
	return r.slots[r.head], true
}

func (r *ringBuffer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.slots)
	r.head = -1
	r.count = 0
}

// Len returns the number of buffered frames.
func (r *ringBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Dropped returns how many frames were overwritten before being superseded.
func (r *ringBuffer) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// singleSlot keeps only the newest frame.
type singleSlot struct {
	latest atomic.Pointer[Frame]
}

func (s *singleSlot) Put(f *Frame) { s.latest.Store(f) }

func (s *singleSlot) Latest() (*Frame, bool) {
	f := s.latest.Load()
	return f, f != nil
}

func (s *singleSlot) Reset() { s.latest.Store(nil) }
