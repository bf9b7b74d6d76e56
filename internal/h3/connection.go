// Package h3 implements the core of an HTTP/3 connection dispatcher: it
// owns one QUIC connection for its lifetime, accepts and classifies
// inbound streams, drives the control-stream SETTINGS exchange, enforces
// per-stream startup deadlines, tracks active requests, and orchestrates
// graceful and abortive shutdown with correctly-ordered GOAWAY emission.
//
// Parsing HTTP/3 frames beyond the control stream, QPACK, request
// routing, and the QUIC wire protocol itself are all out of scope.
// internal/transport and the Application interface in application.go are
// the seams where those collaborators plug in.
package h3

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"example.com/h3dispatch/internal/transport"
)

// ConnectionLogger is the Observability Surface of spec.md §6, realized as
// an interface so internal/h3 never imports a logging library directly.
// internal/logger's ConnectionLogger implements this.
type ConnectionLogger interface {
	Http3ConnectionClosing(connectionID string)
	Http3ConnectionClosed(connectionID string, highestStreamID uint64)
	Http3ConnectionError(connectionID string, err error)
	RequestProcessingError(connectionID string, err error)
	RequestQueuedStart(connectionID string, streamID uint64)
}

type noopLogger struct{}

func (noopLogger) Http3ConnectionClosing(string)                  {}
func (noopLogger) Http3ConnectionClosed(string, uint64)           {}
func (noopLogger) Http3ConnectionError(string, error)             {}
func (noopLogger) RequestProcessingError(string, error)           {}
func (noopLogger) RequestQueuedStart(string, uint64)              {}

// Config bundles the values spec.md §3 says are "fixed at construction
// from server limits": the SETTINGS to advertise, the starting-stream
// deadline, and the heartbeat's tick interval (internal/config's
// ConnectionConfig loads these from TOML/JSON).
type Config struct {
	HeaderTableSize           uint64
	MaxRequestHeaderFieldSize uint64
	RequestHeadersTimeout     time.Duration
	HeartbeatInterval         time.Duration
}

// Connection is spec.md §3's Connection entity and §4.1's
// ConnectionDispatcher combined: the singleton owned by one QUIC
// connection, and the loop that drives it.
//
// Grounded on internal/http2/conn.go's Connection struct (streams map,
// settings, stream-id bookkeeping, mutex discipline), generalized from
// HTTP/2 framing to HTTP/3/QUIC's.
type Connection struct {
	id   string
	conn transport.Connection
	log  ConnectionLogger
	cfg  Config

	highestStreamID atomic.Uint64
	errorCode       atomic.Uint64

	registry *streamRegistry
	control  *controlChannels
	starting *startingStreamQueue
	shutdown *shutdownCoordinator
	aborted  abortLatch

	acceptCtx    context.Context
	cancelAccept context.CancelFunc

	// clock abstracts time.Now for the starting-stream tick deadline so
	// tests can drive it without real sleeps. Defaults to wall-clock
	// nanoseconds.
	clock func() int64

	app Application

	onConnectionClosedOnce sync.Once
	wg                     sync.WaitGroup
}

// NewConnection constructs a dispatcher for one already-handshaked QUIC
// connection. id is an opaque identifier used only for logging.
func NewConnection(id string, conn transport.Connection, cfg Config, log ConnectionLogger) *Connection {
	if log == nil {
		log = noopLogger{}
	}
	c := &Connection{
		id:       id,
		conn:     conn,
		log:      log,
		cfg:      cfg,
		registry: newStreamRegistry(),
		control:  newControlChannels(),
		starting: newStartingStreamQueue(),
		clock:    func() int64 { return time.Now().UnixNano() },
	}
	c.shutdown = newShutdownCoordinator(c.registry, c.control, &c.highestStreamID)
	c.shutdown.onClosing = func(closeInitiator) {
		c.log.Http3ConnectionClosing(c.id)
	}
	c.shutdown.onClosed = func(highestStreamID uint64) {
		c.log.Http3ConnectionClosed(c.id, highestStreamID)
	}
	c.acceptCtx, c.cancelAccept = context.WithCancel(context.Background())
	return c
}

// bumpHighestStreamID performs the monotonic, dispatcher-loop-only update
// of highest_opened_request_stream_id (spec.md §3, §5). Out-of-order
// updates (should never happen from a single accept loop, but the field
// is read elsewhere via atomic load) are dropped rather than applied.
func (c *Connection) bumpHighestStreamID(id uint64) {
	for {
		cur := c.highestStreamID.Load()
		if id <= cur {
			return
		}
		if c.highestStreamID.CompareAndSwap(cur, id) {
			return
		}
	}
}

// Run drives the connection from start to full shutdown: opens the
// outbound control stream, runs the accept loops and heartbeat, and
// returns only once every active stream has completed (spec.md §4.1).
func (c *Connection) Run(app Application) error {
	c.app = app

	outStream, err := c.conn.OpenUniStream()
	if err != nil {
		c.Abort("failed to open outbound control stream", ErrCodeInternalError)
		return err
	}
	c.control.setOutbound(outStream)

	// Open Question #1 (DESIGN.md): we do not await this send before
	// entering the accept loop, matching the source's behavior per
	// spec.md §9.
	go func() {
		payload := append(encodeControlStreamHeader(), encodeSettingsFrame(serverSettings{
			HeaderTableSize:           c.cfg.HeaderTableSize,
			MaxRequestHeaderFieldSize: c.cfg.MaxRequestHeaderFieldSize,
		})...)
		if _, err := outStream.Write(payload); err != nil {
			c.Abort("failed to send initial SETTINGS", ErrCodeInternalError)
		}
	}()

	c.wg.Add(3)
	go func() { defer c.wg.Done(); c.runHeartbeat() }()
	go func() { defer c.wg.Done(); c.runUniStreamAcceptLoop() }()
	go func() { defer c.wg.Done(); c.watchTransportClosed() }()

	c.runRequestAcceptLoop()
	c.runShutdownDrain()

	c.wg.Wait()
	return nil
}

// runRequestAcceptLoop is spec.md §4.1 step 2's bidirectional branch:
// accept request streams until the transport stops handing them out
// (peer close, abort, or graceful-close-initiated accept cancellation).
func (c *Connection) runRequestAcceptLoop() {
	for {
		stream, err := c.conn.AcceptStream(c.acceptCtx)
		if err != nil {
			// spec.md §9 Open Question #3: a benign end-of-accepts (the
			// accept context canceled or past its deadline) while requests
			// may still be active is not a fault. Anything else, including
			// an error caused by the transport closing, is treated as a
			// TransportReset/IoFailure per spec.md §7 and logged as a
			// request-processing error when a request was in flight. Every
			// error falls through to the shared shutdown/drain path.
			if !isBenignAcceptClose(err) && c.ActiveRequestCount() > 0 {
				c.log.RequestProcessingError(c.id, err)
			}
			return
		}

		id := stream.StreamID()
		c.bumpHighestStreamID(id)

		rs := newRequestStream(id, stream)
		c.starting.enqueue(rs)
		c.registry.register(id, rs)
		c.log.RequestQueuedStart(c.id, id)

		runRequestStreamWorker(c.conn.Context(), c.app, rs, func() {
			c.registry.onStreamCompleted(id)
			c.shutdown.updateConnectionState()
		})

		c.shutdown.updateConnectionState()
	}
}

// runUniStreamAcceptLoop is spec.md §4.1 step 2's unidirectional branch.
func (c *Connection) runUniStreamAcceptLoop() {
	for {
		stream, err := c.conn.AcceptUniStream(c.acceptCtx)
		if err != nil {
			if !isBenignAcceptClose(err) && c.ActiveRequestCount() > 0 {
				c.log.RequestProcessingError(c.id, err)
			}
			return
		}

		cs := newControlStream(stream.StreamID(), stream)
		c.starting.enqueue(cs)

		runControlRoleWorker(c.acceptCtx, stream, cs, c.control, func(err error) {
			if ce, ok := asConnectionError(err); ok {
				c.Abort(ce.Msg, ce.Code)
			}
		}, func() {})
	}
}

// isBenignAcceptClose reports whether err from AcceptStream/AcceptUniStream
// is the expected end-of-accepts signal (context cancellation or deadline)
// rather than a TransportReset/IoFailure (spec.md §7). An error returned
// because the transport itself closed is not told apart from a reset and
// is not considered benign.
func isBenignAcceptClose(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// watchTransportClosed is the "transport-closed callback" registration
// of spec.md §4.1 step 1: once the QUIC connection itself closes, for any
// reason (peer CONNECTION_CLOSE, idle timeout, local close), drive
// on_connection_closed.
func (c *Connection) watchTransportClosed() {
	select {
	case <-c.conn.Context().Done():
		c.OnConnectionClosed()
	case <-c.acceptCtx.Done():
		// Already tearing down via another path; nothing more to watch.
	}
}

// runHeartbeat is the "heartbeat tick callback" of spec.md §4.1 step 1,
// polling the StartingStreamQueue on a fixed interval until the accept
// loops are torn down.
func (c *Connection) runHeartbeat() {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	timeoutTicks := c.cfg.RequestHeadersTimeout.Nanoseconds()

	for {
		select {
		case <-c.acceptCtx.Done():
			return
		case <-ticker.C:
			c.starting.tick(c.clock(), timeoutTicks, c.abortStartingStream)
		}
	}
}

// abortStartingStream implements spec.md §4.2's per-role abort pairing:
// request streams get RequestRejected, control-role streams get
// StreamCreationError.
func (c *Connection) abortStartingStream(s startingStream) {
	if s.IsRequestStream() {
		s.Abort("request headers timeout", ErrCodeRequestRejected)
	} else {
		s.Abort("control stream header timeout", ErrCodeStreamCreationError)
	}
}

// runShutdownDrain is spec.md §4.1 step 3, reached after the accept loop
// exits for any reason. Two paths already drive the terminal GOAWAY by
// the time control reaches here:
//
//   - a graceful close (StopProcessingNextRequest) drains naturally,
//     each stream's completion calls shutdownCoordinator.updateConnectionState,
//     which fires the terminal GOAWAY itself once active_request_count
//     reaches zero and graceful_close_started is set (spec.md §4.3);
//   - an abort (Abort, triggered by a protocol/transport error or
//     on_connection_closed) has already force-aborted every stream and
//     attempted the terminal GOAWAY itself.
//
// This just waits for the registry to empty, then, covering spec.md §9's
// Open Question #3 (a bare accept-loop exit with no graceful request and
// no abort, e.g. the transport simply ran out of streams to offer),
// makes one more attempt at the terminal GOAWAY so the connection still
// reaches Closed even though nothing else asked for it.
func (c *Connection) runShutdownDrain() {
	defer func() {
		if r := recover(); r != nil {
			c.Abort("panic during shutdown drain", ErrCodeInternalError)
		}
	}()

	c.registry.waitUntilDrained()

	if _, won := c.shutdown.tryTerminalClose(); won {
		finalID := c.highestStreamID.Load()
		c.control.sendGoAway(finalID)
		c.log.Http3ConnectionClosed(c.id, finalID)
	}
}

// StopProcessingNextRequest is spec.md §4.1's stop_processing_next_request:
// idempotent, safe from any context, marks graceful-close intent and
// wakes the accept loop. serverInitiated distinguishes a server-side drain
// from an observed client-initiated one.
func (c *Connection) StopProcessingNextRequest(serverInitiated bool) {
	who := closeInitiatorClient
	if serverInitiated {
		who = closeInitiatorServer
	}
	c.shutdown.requestClose(who)
	c.shutdown.updateConnectionState()
	c.cancelAccept()
}

// OnConnectionClosed is spec.md §4.1's on_connection_closed: the QUIC
// transport signalled close. Idempotent after the first invocation
// (spec.md §8) via sync.Once.
func (c *Connection) OnConnectionClosed() {
	c.onConnectionClosedOnce.Do(func() {
		c.Abort("transport closed", ErrCodeNoError)
	})
}

// Abort is spec.md §4.1's abort: mark aborted, record the error code,
// attempt the single terminal GOAWAY, then abort the transport. Only the
// first caller drives the sequence; later callers are no-ops, matching
// the aborted single-shot transition of spec.md §3.
func (c *Connection) Abort(reason string, code ErrorCode) {
	if _, won := c.aborted.tryAbort(); !won {
		return
	}

	c.errorCode.Store(uint64(code))
	c.log.Http3ConnectionError(c.id, NewConnectionError(code, reason))

	if _, won := c.shutdown.tryTerminalClose(); won {
		finalID := c.highestStreamID.Load()
		c.control.sendGoAway(finalID)
		c.log.Http3ConnectionClosed(c.id, finalID)
	}

	c.registry.abortAll(reason, code)
	c.conn.CloseWithError(transport.ErrorCode(code), reason)
	c.cancelAccept()
}

// IsClosed reports spec.md §3's is_closed flag.
func (c *Connection) IsClosed() bool { return c.shutdown.isClosed() }

// ActiveRequestCount reports the current active_request_count.
func (c *Connection) ActiveRequestCount() int { return c.registry.activeCount() }

// HighestOpenedRequestStreamID reports the current high-water stream ID.
func (c *Connection) HighestOpenedRequestStreamID() uint64 { return c.highestStreamID.Load() }
