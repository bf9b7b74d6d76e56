package h3

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/quic-go/quic-go/quicvarint"
	"github.com/stretchr/testify/require"

	"example.com/h3dispatch/internal/transport/transporttest"
)

// echoApplication is a minimal Application stand-in: it marks the stream
// started immediately, optionally blocks until released, then returns.
// Grounded on internal/http2/conn_test_helpers.go's pattern of small
// scripted handler stand-ins for conn-level tests.
type echoApplication struct {
	release chan struct{}
}

func newEchoApplication() *echoApplication {
	return &echoApplication{release: make(chan struct{})}
}

func (a *echoApplication) ServeRequest(ctx context.Context, stream RequestStream) {
	stream.MarkStarted()
	select {
	case <-a.release:
	case <-ctx.Done():
	}
}

func (a *echoApplication) finish() { close(a.release) }

func testConfig() Config {
	return Config{
		HeaderTableSize:           4096,
		MaxRequestHeaderFieldSize: 16384,
		RequestHeadersTimeout:     50 * time.Millisecond,
		HeartbeatInterval:         5 * time.Millisecond,
	}
}

// newRunningConnection wires a Connection to a FakeConnection and starts
// Run on its own goroutine, returning both plus the app and a channel that
// receives Run's error.
func newRunningConnection(t *testing.T, app Application) (*Connection, *transporttest.FakeConnection, chan error) {
	t.Helper()
	fc := transporttest.NewFakeConnection()
	conn := NewConnection("test-conn", fc, testConfig(), nil)
	done := make(chan error, 1)
	go func() { done <- conn.Run(app) }()

	require.Eventually(t, func() bool {
		return fc.OutboundControlStream() != nil
	}, time.Second, time.Millisecond)

	// Wait for the initial stream-type-varint + SETTINGS write to land
	// before handing control back, so a test's own GOAWAY-triggering call
	// can't race ahead of it and corrupt the frame stream a test later
	// parses with decodeGoAways.
	require.Eventually(t, func() bool {
		return len(fc.OutboundControlStream().Written()) > 0
	}, time.Second, time.Millisecond)

	return conn, fc, done
}

func readVarint(t *testing.T, b []byte) (uint64, []byte) {
	t.Helper()
	r := quicvarint.NewReader(bytes.NewReader(b))
	v, err := quicvarint.Read(r)
	require.NoError(t, err)
	n := quicvarint.Len(v)
	return v, b[n:]
}

// decodeGoAways extracts every GOAWAY frame's stream-id payload from the
// bytes written to the outbound control stream, in order. The stream
// begins with the leading stream-type varint (written once, ahead of the
// initial SETTINGS frame); everything after that is a sequence of
// (type, length, payload) frames.
func decodeGoAways(t *testing.T, written []byte) []uint64 {
	t.Helper()
	if len(written) == 0 {
		return nil
	}
	r := bytes.NewReader(written)
	if _, err := quicvarint.Read(quicvarint.NewReader(r)); err != nil {
		return nil
	}

	var ids []uint64
	for r.Len() > 0 {
		hdr, err := readControlFrameHeader(r)
		if err != nil {
			break
		}
		payload := make([]byte, hdr.Length)
		if _, err := io.ReadFull(r, payload); err != nil {
			break
		}
		if hdr.Type == frameTypeGoAway {
			id, _ := readVarint(t, payload)
			ids = append(ids, id)
		}
	}
	return ids
}
