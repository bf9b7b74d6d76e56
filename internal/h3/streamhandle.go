package h3

import (
	"sync/atomic"

	"example.com/h3dispatch/internal/transport"
)

// startingStream is spec.md §3's polymorphic stream handle (over
// {request, control}): the common surface the StartingStreamQueue and the
// StreamRegistry need, independent of which role the stream ends up
// playing.
type startingStream interface {
	// StreamID returns the QUIC stream ID.
	StreamID() uint64
	// IsRequestStream reports whether this is a bidirectional request
	// stream (true) or a unidirectional control/encoder/decoder stream
	// (false).
	IsRequestStream() bool
	// HasStarted reports whether the stream has delivered the minimum
	// bytes to be classified: HEADERS for a request stream, the
	// stream-type varint for a control stream.
	HasStarted() bool
	// MarkStarted records that the stream has started. Idempotent.
	MarkStarted()
	// StartExpiration returns the tick at which this stream must have
	// started, or 0 if unset.
	StartExpiration() int64
	// SetStartExpiration sets the expiration tick; only the first caller
	// (per spec.md §4.2: "if start_expiration_ticks is unset, set it") has
	// any effect.
	SetStartExpiration(ticks int64)
	// Abort aborts the stream with reason and an HTTP/3 error code.
	Abort(reason string, code ErrorCode)
}

// startMeta is the bookkeeping shared by requestStream and controlStream:
// spec.md §3's has_started and start_expiration_ticks fields, realized as
// atomics so the StartingStreamQueue's single consumer and the
// accept-loop producer never need a lock to touch them.
type startMeta struct {
	hasStarted      atomic.Bool
	startExpiration atomic.Int64
}

func (m *startMeta) HasStarted() bool       { return m.hasStarted.Load() }
func (m *startMeta) MarkStarted()           { m.hasStarted.Store(true) }
func (m *startMeta) StartExpiration() int64 { return m.startExpiration.Load() }

// SetStartExpiration only takes effect if no expiration has been set yet,
// matching spec.md §4.2's "else, if start_expiration_ticks is unset, set
// it" rule. A no-op CompareAndSwap keeps this lock-free and idempotent
// under concurrent tick/enqueue races.
func (m *startMeta) SetStartExpiration(ticks int64) {
	m.startExpiration.CompareAndSwap(0, ticks)
}

// requestStream is a bidirectional HTTP/3 request stream handle. It
// embeds the transport.Stream so request-stream workers can read/write it
// directly while the dispatcher tracks it via the startingStream surface.
type requestStream struct {
	transport.Stream
	startMeta
	id uint64
}

func newRequestStream(id uint64, ts transport.Stream) *requestStream {
	return &requestStream{Stream: ts, id: id}
}

func (r *requestStream) StreamID() uint64     { return r.id }
func (r *requestStream) IsRequestStream() bool { return true }

func (r *requestStream) Abort(reason string, code ErrorCode) {
	r.Stream.CancelRead(transport.ErrorCode(code))
	r.Stream.CancelWrite(transport.ErrorCode(code))
}

// controlStream is a unidirectional stream whose role (control, QPACK
// encoder, QPACK decoder) is not yet known until its leading varint is
// read. Unidirectional and peer-initiated, so only the read side is ours
// to cancel.
type controlStream struct {
	transport.ReceiveStream
	startMeta
	id uint64
}

func newControlStream(id uint64, ts transport.ReceiveStream) *controlStream {
	return &controlStream{ReceiveStream: ts, id: id}
}

func (c *controlStream) StreamID() uint64     { return c.id }
func (c *controlStream) IsRequestStream() bool { return false }

func (c *controlStream) Abort(reason string, code ErrorCode) {
	c.ReceiveStream.CancelRead(transport.ErrorCode(code))
}
