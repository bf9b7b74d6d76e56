package h3

import "sync"

// requestStreamHandle is the subset of a request stream's state the
// registry and shutdown path need: its ID for GOAWAY bookkeeping and an
// abort capability for connection-wide teardown.
type requestStreamHandle interface {
	startingStream
}

// streamRegistry is spec.md §4.5's StreamRegistry: the mapping from
// request-stream ID to stream handle, the active-request counter, and the
// completion signal, all guarded by one mutex (spec.md §5: "guarded by a
// dedicated mutex covering active_request_count and the map together;
// held only for O(1) operations"). Grounded on internal/http2/conn.go's
// streams map[uint32]*Stream + streamsMu + concurrentStreamsInbound triad.
type streamRegistry struct {
	mu      sync.Mutex
	streams map[uint64]requestStreamHandle
	active  int

	completed *completionSignal
}

func newStreamRegistry() *streamRegistry {
	return &streamRegistry{
		streams:   make(map[uint64]requestStreamHandle),
		completed: newCompletionSignal(),
	}
}

// register inserts stream under streamID and increments the active count.
// Spec.md invariant: a stream registered here has already had its ID
// observed by highest_opened_request_stream_id; callers must update that
// counter first.
func (r *streamRegistry) register(streamID uint64, stream requestStreamHandle) {
	r.mu.Lock()
	r.streams[streamID] = stream
	r.active++
	r.mu.Unlock()
}

// onStreamCompleted removes streamID, decrements the active count, and
// wakes the completion signal. A streamID not present (e.g. double
// completion) is a no-op beyond the signal, so callers need not guard
// against redundant calls.
func (r *streamRegistry) onStreamCompleted(streamID uint64) {
	r.mu.Lock()
	if _, ok := r.streams[streamID]; ok {
		delete(r.streams, streamID)
		r.active--
	}
	r.mu.Unlock()
	r.completed.signal()
}

// activeCount returns the current active_request_count.
func (r *streamRegistry) activeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// size returns len(streams); spec.md §8 requires this to equal
// activeCount() at every quiescent point.
func (r *streamRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

// abortAll aborts every currently-registered stream with reason/code. It
// does not remove them from the map; each aborted stream is expected to
// call onStreamCompleted itself as part of its teardown.
func (r *streamRegistry) abortAll(reason string, code ErrorCode) {
	r.mu.Lock()
	handles := make([]requestStreamHandle, 0, len(r.streams))
	for _, s := range r.streams {
		handles = append(handles, s)
	}
	r.mu.Unlock()

	for _, s := range handles {
		s.Abort(reason, code)
	}
}

// waitUntilDrained blocks until activeCount() reaches zero.
func (r *streamRegistry) waitUntilDrained() {
	r.completed.wait(func() bool { return r.activeCount() == 0 })
}
