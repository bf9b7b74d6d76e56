// Package transporttest provides an in-memory fake of internal/transport's
// contract so internal/h3 can be exercised without a real QUIC dependency
// in tests, and so a test can drive the peer side of the connection
// directly.
//
// Grounded on internal/http2/conn_test_helpers.go's mockNetConn (buffered
// read/write pipes, controlled blocking via channels), generalized from a
// single net.Conn to a multiplexed stream acceptor.
package transporttest

import (
	"context"
	"errors"
	"io"
	"sync"

	"example.com/h3dispatch/internal/transport"
)

// ErrConnectionClosed is returned by Accept calls once CloseWithError has
// been called on the fake connection.
var ErrConnectionClosed = errors.New("transporttest: connection closed")

// FakeConnection is an in-memory transport.Connection. Test code drives
// the peer side through OfferStream/OfferUniStream and inspects what the
// dispatcher wrote via the streams returned from those calls.
type FakeConnection struct {
	mu             sync.Mutex
	closed         bool
	closeErr       error
	ctx            context.Context
	cancel         context.CancelFunc
	bidi           chan *FakeStream
	uni            chan *FakeReceiveStream
	openedUni      []*FakeSendStream
	nextStreamID   uint64
	closeCode      transport.ErrorCode
	closeReason    string
}

// NewFakeConnection constructs a fake connection with no streams queued.
func NewFakeConnection() *FakeConnection {
	ctx, cancel := context.WithCancel(context.Background())
	return &FakeConnection{
		ctx:    ctx,
		cancel: cancel,
		bidi:   make(chan *FakeStream, 64),
		uni:    make(chan *FakeReceiveStream, 64),
	}
}

func (c *FakeConnection) Context() context.Context { return c.ctx }

// OfferStream simulates the peer opening bidirectional stream id and makes
// it available to the next AcceptStream call.
func (c *FakeConnection) OfferStream(id uint64) *FakeStream {
	s := newFakeStream(id)
	c.bidi <- s
	return s
}

// OfferUniStream simulates the peer opening unidirectional stream id and
// makes it available to the next AcceptUniStream call.
func (c *FakeConnection) OfferUniStream(id uint64) *FakeReceiveStream {
	s := newFakeReceiveStream(id)
	c.uni <- s
	return s
}

func (c *FakeConnection) AcceptStream(ctx context.Context) (transport.Stream, error) {
	select {
	case s := <-c.bidi:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, ErrConnectionClosed
	}
}

func (c *FakeConnection) AcceptUniStream(ctx context.Context) (transport.ReceiveStream, error) {
	select {
	case s := <-c.uni:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, ErrConnectionClosed
	}
}

func (c *FakeConnection) OpenUniStream() (transport.SendStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrConnectionClosed
	}
	c.nextStreamID++
	s := newFakeSendStream(c.nextStreamID)
	c.openedUni = append(c.openedUni, s)
	return s, nil
}

// OutboundControlStream returns the one unidirectional stream the
// dispatcher is expected to have opened for itself, once it has. Test
// code polls this after Run starts.
func (c *FakeConnection) OutboundControlStream() *FakeSendStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.openedUni) == 0 {
		return nil
	}
	return c.openedUni[0]
}

func (c *FakeConnection) CloseWithError(code transport.ErrorCode, reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	c.mu.Unlock()
	c.cancel()
	return nil
}

// CloseCode reports the code of the CloseWithError call that closed this
// fake, if any.
func (c *FakeConnection) CloseCode() transport.ErrorCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

// FakeStream is a bidirectional in-memory stream.
type FakeStream struct {
	id uint64
	*pipe
	*sink
	mu         sync.Mutex
	canceledRead, canceledWrite bool
	readCode, writeCode         transport.ErrorCode
}

func newFakeStream(id uint64) *FakeStream {
	return &FakeStream{id: id, pipe: newPipe(), sink: newSink()}
}

func (s *FakeStream) StreamID() uint64 { return s.id }

func (s *FakeStream) Read(p []byte) (int, error)  { return s.pipe.Read(p) }
func (s *FakeStream) Write(p []byte) (int, error) { return s.sink.Write(p) }

func (s *FakeStream) CancelRead(code transport.ErrorCode) {
	s.mu.Lock()
	s.canceledRead, s.readCode = true, code
	s.mu.Unlock()
	s.pipe.closeWithError(io.ErrClosedPipe)
}

func (s *FakeStream) CancelWrite(code transport.ErrorCode) {
	s.mu.Lock()
	s.canceledWrite, s.writeCode = true, code
	s.mu.Unlock()
}

// FeedHeaders simulates the peer sending initial request bytes, waking
// anything blocked reading this stream.
func (s *FakeStream) FeedHeaders(b []byte) { s.pipe.feed(b) }

// WrittenByDispatcher returns everything the dispatcher has written to
// this stream so far.
func (s *FakeStream) WrittenByDispatcher() []byte { return s.sink.bytes() }

// FakeReceiveStream is a read-only in-memory unidirectional stream (the
// peer's control/encoder/decoder candidate).
type FakeReceiveStream struct {
	id uint64
	*pipe
	mu           sync.Mutex
	canceledRead bool
	readCode     transport.ErrorCode
}

func newFakeReceiveStream(id uint64) *FakeReceiveStream {
	return &FakeReceiveStream{id: id, pipe: newPipe()}
}

func (s *FakeReceiveStream) StreamID() uint64 { return s.id }
func (s *FakeReceiveStream) Read(p []byte) (int, error) { return s.pipe.Read(p) }

func (s *FakeReceiveStream) CancelRead(code transport.ErrorCode) {
	s.mu.Lock()
	s.canceledRead, s.readCode = true, code
	s.mu.Unlock()
	s.pipe.closeWithError(io.ErrClosedPipe)
}

// Feed simulates the peer writing b onto this stream, e.g. the leading
// stream-type varint and a SETTINGS frame.
func (s *FakeReceiveStream) Feed(b []byte) { s.pipe.feed(b) }

// FakeSendStream is a write-only in-memory unidirectional stream — what
// the dispatcher gets back from OpenUniStream.
type FakeSendStream struct {
	id uint64
	*sink
	mu          sync.Mutex
	canceled    bool
	cancelCode  transport.ErrorCode
}

func newFakeSendStream(id uint64) *FakeSendStream {
	return &FakeSendStream{id: id, sink: newSink()}
}

func (s *FakeSendStream) StreamID() uint64 { return s.id }
func (s *FakeSendStream) Write(p []byte) (int, error) { return s.sink.Write(p) }

func (s *FakeSendStream) CancelWrite(code transport.ErrorCode) {
	s.mu.Lock()
	s.canceled, s.cancelCode = true, code
	s.mu.Unlock()
}

// Written returns every byte written to this stream so far — used by
// tests to assert on the control-stream-type varint and SETTINGS/GOAWAY
// frames the dispatcher sends.
func (s *FakeSendStream) Written() []byte { return s.bytes() }
