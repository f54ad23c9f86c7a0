package server

import (
	"sync"
)

// outbox is an ordered, growable frame queue with a hard limit.
// Pushes never block; a full outbox means the peer is not keeping up.
type outbox struct {
	mu       sync.Mutex
	buf      [][]byte
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	limit    int
	closed   bool

	// Signalled when frames are pushed onto an empty queue
	ready chan struct{}
}

// newOutbox creates an outbox. A limit <= 0 means unbounded.
func newOutbox(initialCapacity, limit int) *outbox {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &outbox{
		buf:      make([][]byte, initialCapacity),
		capacity: initialCapacity,
		limit:    limit,
		ready:    make(chan struct{}, 1),
	}
}

// Push appends a frame.
func (o *outbox) Push(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrConnClosed
	}
	if o.limit > 0 && o.count >= o.limit {
		return ErrSlowConsumer
	}

	// Grow at 70% full
	threshold := (o.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if o.count+1 >= threshold {
		o.grow()
	}

	o.buf[o.tail] = frame
	o.tail = (o.tail + 1) % o.capacity
	o.count++

	select {
	case o.ready <- struct{}{}:
	default:
	}
	return nil
}

// Ready returns a channel that receives after frames are pushed.
func (o *outbox) Ready() <-chan struct{} {
	return o.ready
}

// DrainTo removes up to max frames in order (all if max <= 0).
func (o *outbox) DrainTo(max int) [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.count == 0 {
		return nil
	}

	n := o.count
	if max > 0 && max < n {
		n = max
	}

	result := make([][]byte, n)
	for i := 0; i < n; i++ {
		result[i] = o.buf[o.head]
		o.buf[o.head] = nil
		o.head = (o.head + 1) % o.capacity
		o.count--
	}

	// Wake the writer again if frames remain.
	if o.count > 0 {
		select {
		case o.ready <- struct{}{}:
		default:
		}
	}

	return result
}

// Close rejects further pushes. Queued frames can still be drained.
func (o *outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
}

// Len returns the number of queued frames.
func (o *outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

// grow doubles the capacity. Must be called with lock held.
func (o *outbox) grow() {
	newCapacity := o.capacity * 2
	newBuf := make([][]byte, newCapacity)

	if o.count > 0 {
		if o.head < o.tail {
			copy(newBuf, o.buf[o.head:o.tail])
		} else {
			n := copy(newBuf, o.buf[o.head:])
			copy(newBuf[n:], o.buf[:o.tail])
		}
	}

	o.buf = newBuf
	o.head = 0
	o.tail = o.count
	o.capacity = newCapacity
}
