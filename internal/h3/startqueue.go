package h3

import "sync/atomic"

// startQueueNode is one link in the lock-free MPSC FIFO. next is only ever
// written by enqueue (via CompareAndSwap on the previous tail) and read by
// the single tick consumer, which is what makes this safe without a lock.
type startQueueNode struct {
	stream startingStream
	next   atomic.Pointer[startQueueNode]
}

// startingStreamQueue is spec.md §4.2's StartingStreamQueue: multi-producer
// (accept path enqueues), single-consumer (the heartbeat's tick), bounding
// how long a stream may linger before delivering its first frame.
//
// Implemented as a Michael-Scott-style lock-free queue: head is only ever
// touched by the consumer, tail is contended by producers via
// CompareAndSwap. Matches spec.md §5's "lock-free multi-producer/
// single-consumer FIFO" requirement and §9's guidance on the sentinel
// re-queue trick for bounding per-tick work.
type startingStreamQueue struct {
	head atomic.Pointer[startQueueNode]
	tail atomic.Pointer[startQueueNode]
}

func newStartingStreamQueue() *startingStreamQueue {
	q := &startingStreamQueue{}
	sentinel := &startQueueNode{}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

// enqueue appends stream to the tail. Called exactly once per stream, at
// creation time (spec.md §4.2).
func (q *startingStreamQueue) enqueue(stream startingStream) {
	node := &startQueueNode{stream: stream}
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if next != nil {
			// Another producer linked a node but hasn't swung tail yet;
			// help it along before retrying our own link.
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		if tail.next.CompareAndSwap(nil, node) {
			q.tail.CompareAndSwap(tail, node)
			return
		}
	}
}

// dequeue pops and returns the front stream, or nil if the queue is empty.
// Single-consumer only.
func (q *startingStreamQueue) dequeue() startingStream {
	head := q.head.Load()
	next := head.next.Load()
	if next == nil {
		return nil
	}
	q.head.Store(next)
	s := next.stream
	next.stream = nil // drop the reference now that it's dequeued
	return s
}

// tick runs spec.md §4.2's per-tick algorithm: drain the queue one element
// at a time, stopping (and re-enqueueing) once the first re-queued stream
// of this tick is seen again. The sentinel trick bounds per-tick work in
// an MPSC queue without tracking its length.
func (q *startingStreamQueue) tick(now int64, requestHeadersTimeout int64, abortStream func(startingStream)) {
	var sentinel startingStream

	for {
		s := q.dequeue()
		if s == nil {
			return
		}

		if sentinel != nil && s == sentinel {
			// We've gone all the way around; stop examining this tick.
			q.enqueue(s)
			return
		}

		if s.HasStarted() {
			continue // dropped: spec.md §4.2 "if has_started, drop it"
		}

		exp := s.StartExpiration()
		if exp == 0 {
			newExp := saturatingAdd(now, requestHeadersTimeout)
			s.SetStartExpiration(newExp)
			if sentinel == nil {
				sentinel = s
			}
			q.enqueue(s)
			continue
		}

		if exp < now {
			abortStream(s)
			continue // expired streams are not re-enqueued
		}

		if sentinel == nil {
			sentinel = s
		}
		q.enqueue(s)
	}
}

// saturatingAdd adds b to a, clamping to math.MaxInt64 on overflow, per
// spec.md §4.2 ("saturating at the maximum positive value on overflow").
func saturatingAdd(a, b int64) int64 {
	const maxInt64 = int64(1<<63 - 1)
	if a > 0 && b > maxInt64-a {
		return maxInt64
	}
	sum := a + b
	if sum <= 0 {
		// Either operand was negative in a way that wrapped, or the sum
		// itself rolled over into negative territory; both indicate
		// overflow for the non-negative tick counters this is used with.
		return maxInt64
	}
	return sum
}
