// Package quicx adapts github.com/quic-go/quic-go's quic.Connection to
// the internal/transport contract. It is the only package in this repo
// that wraps quic-go's connection and stream types; elsewhere quic-go is
// imported only by cmd/h3dispatch (for the listener) and by internal/h3
// (for the quicvarint encoding helpers). internal/h3 reaches the transport
// solely through internal/transport's interfaces, never through this
// package directly.
//
// Grounded on Liangxia6-Wrapper's direct use of quic-go's
// Accept/AcceptStream/OpenStream/Close surface, and on
// other_examples/quic-go-quic-go__server.go's AcceptStream/AcceptUniStream/
// OpenUniStream/CloseWithError call shapes.
package quicx

import (
	"context"

	"github.com/quic-go/quic-go"

	"example.com/h3dispatch/internal/transport"
)

// Connection adapts a quic.Connection.
type Connection struct {
	conn quic.Connection
}

// New wraps an established quic.Connection (post-handshake) for use by
// the dispatcher. TLS handshake mechanics are entirely quic-go's concern
// and never revisited here (spec.md §1 Non-goals).
func New(conn quic.Connection) *Connection {
	return &Connection{conn: conn}
}

func (c *Connection) Context() context.Context { return c.conn.Context() }

func (c *Connection) AcceptStream(ctx context.Context) (transport.Stream, error) {
	s, err := c.conn.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}
	return &stream{Stream: s}, nil
}

func (c *Connection) AcceptUniStream(ctx context.Context) (transport.ReceiveStream, error) {
	s, err := c.conn.AcceptUniStream(ctx)
	if err != nil {
		return nil, err
	}
	return &receiveStream{ReceiveStream: s}, nil
}

func (c *Connection) OpenUniStream() (transport.SendStream, error) {
	s, err := c.conn.OpenUniStream()
	if err != nil {
		return nil, err
	}
	return &sendStream{SendStream: s}, nil
}

func (c *Connection) CloseWithError(code transport.ErrorCode, reason string) error {
	return c.conn.CloseWithError(quic.ApplicationErrorCode(code), reason)
}

type sendStream struct {
	quic.SendStream
}

func (s *sendStream) CancelWrite(code transport.ErrorCode) {
	s.SendStream.CancelWrite(quic.StreamErrorCode(code))
}

func (s *sendStream) StreamID() uint64 { return uint64(s.SendStream.StreamID()) }

type receiveStream struct {
	quic.ReceiveStream
}

func (s *receiveStream) CancelRead(code transport.ErrorCode) {
	s.ReceiveStream.CancelRead(quic.StreamErrorCode(code))
}

func (s *receiveStream) StreamID() uint64 { return uint64(s.ReceiveStream.StreamID()) }

type stream struct {
	quic.Stream
}

func (s *stream) CancelWrite(code transport.ErrorCode) {
	s.Stream.CancelWrite(quic.StreamErrorCode(code))
}

func (s *stream) CancelRead(code transport.ErrorCode) {
	s.Stream.CancelRead(quic.StreamErrorCode(code))
}

func (s *stream) StreamID() uint64 { return uint64(s.Stream.StreamID()) }
