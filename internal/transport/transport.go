// Package transport defines the QUIC transport collaborator contract that
// the HTTP/3 connection dispatcher in internal/h3 consumes (spec.md §6).
// It is pure interfaces: nothing here imports a QUIC library, so
// internal/h3 stays free of any transport-specific dependency exactly as
// the specification's "only their contracts specified in §6" framing
// requires. internal/transport/quicx adapts a real QUIC stack to this
// contract; internal/transport/transporttest provides an in-memory fake
// for tests.
//
// Grounded on other_examples/quic-go-quic-go__connection.go's internal
// streamManager interface (OpenStream, AcceptStream, AcceptUniStream,
// CloseWithError), trimmed to the subset the dispatcher actually calls.
package transport

import "context"

// ErrorCode is a transport-level application error code (HTTP/3 error
// codes are carried as these when aborting streams or the connection).
type ErrorCode uint64

// Connection is one QUIC connection, already past the TLS handshake.
// Scope explicitly excludes TLS handshake mechanics, UDP socket
// management, 0-RTT, connection migration, and datagrams (spec.md §1
// Non-goals) — none of those appear here.
type Connection interface {
	// Context returns a context that is done once the connection has
	// closed for any reason — the "transport-closed callback" spec.md
	// §4.1 step 1 registers. Grounded on quic.Connection.Context() in the
	// real quic-go API.
	Context() context.Context

	// AcceptStream waits for and returns the next peer-initiated
	// bidirectional (request) stream. Returns an error wrapping
	// context.Canceled or an equivalent transport-closed error when the
	// peer has closed the connection or ctx is done.
	AcceptStream(ctx context.Context) (Stream, error)

	// AcceptUniStream waits for and returns the next peer-initiated
	// unidirectional stream (control, QPACK encoder, or QPACK decoder
	// candidate).
	AcceptUniStream(ctx context.Context) (ReceiveStream, error)

	// OpenUniStream opens a new unidirectional stream for this side to
	// write on — used exactly once, for the outbound control stream.
	OpenUniStream() (SendStream, error)

	// CloseWithError forcibly closes the connection, carrying code and a
	// human-readable reason in the resulting CONNECTION_CLOSE.
	CloseWithError(code ErrorCode, reason string) error
}

// SendStream is the write half of a stream.
type SendStream interface {
	Write(p []byte) (int, error)
	// CancelWrite abandons the write side with a transport error code.
	CancelWrite(code ErrorCode)
	StreamID() uint64
}

// ReceiveStream is the read half of a stream.
type ReceiveStream interface {
	Read(p []byte) (int, error)
	// CancelRead abandons the read side with a transport error code.
	CancelRead(code ErrorCode)
	StreamID() uint64
}

// Stream is a full bidirectional stream (request streams are always
// this; control/encoder/decoder streams are ReceiveStream-only from this
// side, since they are peer-initiated and unidirectional).
type Stream interface {
	SendStream
	ReceiveStream
}
