package h3

import (
	"context"

	"example.com/h3dispatch/internal/transport"
)

// RequestStream is what an Application is handed for one accepted request
// stream: the raw transport byte pipe plus its ID, per spec.md §6's
// "stream worker collaborator" contract. Parsing HTTP/3 frames and QPACK
// off of it is entirely the application's job, both are out of scope
// here (spec.md §1).
//
// MarkStarted must be called by the application once it has read enough
// of the stream to know HEADERS has arrived. spec.md §3 defines
// has_started in terms of HEADERS receipt, which only the (out-of-scope)
// frame parser can observe; the application is this core's stand-in for
// that parser. Until MarkStarted is called, the StartingStreamQueue may
// abort the stream for missing its startup deadline (spec.md §4.2).
type RequestStream interface {
	transport.Stream
	MarkStarted()
}

// Application is the out-of-scope "application entry point that services
// a single request" (spec.md §1, §6), named here as a Go interface so
// internal/h3 has something concrete to hand work to. Adapted from the
// shape of internal/server/handler.go's Handler.ServeHTTP2(resp, req):
// one method, taking the stream and the transport connection's context,
// which is done once the QUIC connection closes (Connection.Abort closes
// it). A graceful close (StopProcessingNextRequest) does not cancel it, so
// in-flight requests can run to completion while the connection drains.
type Application interface {
	// ServeRequest is invoked once per accepted request stream, on its own
	// goroutine (internal/h3/worker.go). It must return (possibly after
	// the stream has been fully read and responded to) for the stream to
	// be considered complete; the dispatcher calls
	// StreamRegistry.onStreamCompleted after ServeRequest returns.
	ServeRequest(ctx context.Context, stream RequestStream)
}
