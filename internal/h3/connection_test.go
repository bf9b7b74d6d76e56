package h3

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/quic-go/quic-go/quicvarint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHappyPath_RequestAcceptedAndServed covers spec.md §8's first
// scenario: a request stream arrives, gets classified, started, and
// served without any shutdown involved.
func TestHappyPath_RequestAcceptedAndServed(t *testing.T) {
	app := newEchoApplication()
	conn, fc, _ := newRunningConnection(t, app)

	s := fc.OfferStream(4)
	require.Eventually(t, func() bool { return conn.ActiveRequestCount() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(4), conn.HighestOpenedRequestStreamID())

	app.finish()
	require.Eventually(t, func() bool { return conn.ActiveRequestCount() == 0 }, time.Second, time.Millisecond)
	assert.False(t, conn.IsClosed())
	_ = s
}

// TestServerGracefulClose_ActiveRequest covers spec.md §8's second
// scenario: StopProcessingNextRequest(true) with one active request sends
// GOAWAY(max) once, then GOAWAY(finalID) exactly once after that request
// completes, never before.
func TestServerGracefulClose_ActiveRequest(t *testing.T) {
	app := newEchoApplication()
	conn, fc, done := newRunningConnection(t, app)

	fc.OfferStream(4)
	require.Eventually(t, func() bool { return conn.ActiveRequestCount() == 1 }, time.Second, time.Millisecond)

	conn.StopProcessingNextRequest(true)

	require.Eventually(t, func() bool {
		return len(decodeGoAways(t, fc.OutboundControlStream().Written())) >= 1
	}, time.Second, time.Millisecond)
	assert.False(t, conn.IsClosed(), "must not close while the request is still active")

	app.finish()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after draining")
	}

	goAways := decodeGoAways(t, fc.OutboundControlStream().Written())
	require.Len(t, goAways, 2)
	assert.Equal(t, goAwayMaxStreamID, goAways[0])
	assert.Equal(t, uint64(4), goAways[1])
	assert.True(t, conn.IsClosed())
}

// TestClientGracefulClose_NoActiveRequests covers spec.md §8's third
// scenario: a client-initiated graceful close with nothing active closes
// immediately, with a single terminal GOAWAY and no preparatory one.
func TestClientGracefulClose_NoActiveRequests(t *testing.T) {
	app := newEchoApplication()
	conn, fc, done := newRunningConnection(t, app)

	conn.StopProcessingNextRequest(false)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}

	goAways := decodeGoAways(t, fc.OutboundControlStream().Written())
	require.Len(t, goAways, 1)
	assert.Equal(t, uint64(0), goAways[0])
	assert.True(t, conn.IsClosed())
}

// TestStartupTimeout_AbortsUnstartedStream covers spec.md §8's fourth
// scenario: a request stream that never delivers enough to be classified
// gets aborted by the heartbeat with RequestRejected once its deadline
// passes, and does not count as an active request forever.
func TestStartupTimeout_AbortsUnstartedStream(t *testing.T) {
	app := newEchoApplicationThatNeverStarts()
	conn, fc, _ := newRunningConnection(t, app)

	s := fc.OfferStream(4)

	require.Eventually(t, func() bool {
		return conn.ActiveRequestCount() == 0
	}, time.Second, time.Millisecond, "stream should be aborted and drained after its startup deadline")

	_ = s
	assert.False(t, conn.IsClosed())
}

func newEchoApplicationThatNeverStarts() Application {
	return neverStartsApplication{}
}

type neverStartsApplication struct{}

// ServeRequest deliberately never calls MarkStarted and blocks on a read
// that only the startup-timeout's CancelRead can unblock, matching how a
// real application would observe an aborted stream it never got around to
// classifying.
func (neverStartsApplication) ServeRequest(_ context.Context, stream RequestStream) {
	var buf [1]byte
	stream.Read(buf[:])
}

// TestDuplicateInboundControlStream covers spec.md §8's fifth scenario: a
// second inbound unidirectional stream claiming the control role is
// rejected and the connection aborts with StreamCreationError.
func TestDuplicateInboundControlStream(t *testing.T) {
	app := newEchoApplication()
	conn, fc, done := newRunningConnection(t, app)

	first := fc.OfferUniStream(2)
	first.Feed([]byte{streamTypeControl})

	second := fc.OfferUniStream(6)
	second.Feed([]byte{streamTypeControl})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after duplicate control stream abort")
	}

	assert.True(t, conn.IsClosed())
	assert.Equal(t, ErrCodeStreamCreationError, ErrorCode(fc.CloseCode()))
}

// TestUnknownSettingsIdentifier covers spec.md §8's sixth scenario: a
// SETTINGS frame on the peer's control stream carrying an unrecognized
// identifier (0xFF) triggers a connection-wide abort with SettingsError.
func TestUnknownSettingsIdentifier(t *testing.T) {
	app := newEchoApplication()
	conn, fc, done := newRunningConnection(t, app)

	control := fc.OfferUniStream(2)
	control.Feed([]byte{streamTypeControl})
	control.Feed(encodeSettingsFrameWithIdentifiers(map[uint64]uint64{0xFF: 1}))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after unknown SETTINGS abort")
	}

	assert.True(t, conn.IsClosed())
	assert.Equal(t, ErrCodeSettingsError, ErrorCode(fc.CloseCode()))
}

// encodeSettingsFrameWithIdentifiers builds a raw SETTINGS frame carrying
// arbitrary identifiers, for exercising rejection paths the normal
// serverSettings encoder can't produce.
func encodeSettingsFrameWithIdentifiers(pairs map[uint64]uint64) []byte {
	payload := &bytes.Buffer{}
	for id, val := range pairs {
		payload.Write(quicvarint.Append(nil, id))
		payload.Write(quicvarint.Append(nil, val))
	}

	frame := &bytes.Buffer{}
	frame.Write(quicvarint.Append(nil, frameTypeSettings))
	frame.Write(quicvarint.Append(nil, uint64(payload.Len())))
	frame.Write(payload.Bytes())
	return frame.Bytes()
}

// TestRegistrySizeMatchesActiveCount exercises the size()==activeCount()
// invariant (spec.md §8) across a register/complete cycle.
func TestRegistrySizeMatchesActiveCount(t *testing.T) {
	reg := newStreamRegistry()
	s := newRequestStream(1, nil)
	reg.register(1, s)
	assert.Equal(t, reg.size(), reg.activeCount())
	reg.onStreamCompleted(1)
	assert.Equal(t, reg.size(), reg.activeCount())
	assert.Equal(t, 0, reg.activeCount())
}

// TestAbortAndStopProcessingAreIdempotent exercises spec.md §8's
// idempotence properties directly against the latches, without going
// through a full Connection.
func TestAbortAndStopProcessingAreIdempotent(t *testing.T) {
	var latch closeLatch
	_, won1 := latch.tryClose()
	_, won2 := latch.tryClose()
	assert.True(t, won1)
	assert.False(t, won2)

	var abort abortLatch
	_, aw1 := abort.tryAbort()
	_, aw2 := abort.tryAbort()
	assert.True(t, aw1)
	assert.False(t, aw2)

	var init initiatorLatch
	who1, set1 := init.trySet(closeInitiatorServer)
	who2, set2 := init.trySet(closeInitiatorClient)
	assert.True(t, set1)
	assert.False(t, set2)
	assert.Equal(t, closeInitiatorServer, who1)
	assert.Equal(t, closeInitiatorServer, who2)
}
