package h3

import "sync/atomic"

// shutdownCoordinator is spec.md §4.3's ShutdownCoordinator: the state
// machine spanning Open → Draining → Closed, owning the single-GOAWAY
// guarantee. It holds no business data of its own beyond the latches:
// active_request_count lives in streamRegistry, the GOAWAY send path in
// controlChannels; it only sequences them per the transition table.
//
// Grounded on internal/http2/conn.go's goAwaySent-bool-guarded shutdown
// bookkeeping and gorox's web_http2.go goawayCloseConn/activeStreams
// drain-to-zero pattern.
type shutdownCoordinator struct {
	initiator       initiatorLatch
	gracefulStarted atomic.Bool
	closed          closeLatch

	registry        *streamRegistry
	control         *controlChannels
	highestStreamID *atomic.Uint64
	onClosing       func(initiator closeInitiator)
	onClosed        func(highestStreamID uint64)
}

func newShutdownCoordinator(registry *streamRegistry, control *controlChannels, highestStreamID *atomic.Uint64) *shutdownCoordinator {
	return &shutdownCoordinator{
		registry:        registry,
		control:         control,
		highestStreamID: highestStreamID,
	}
}

// requestClose records server- or client-initiated graceful close intent.
// Idempotent: spec.md §8 requires N calls to have the same observable
// effect as one, which the underlying initiatorLatch's single CAS already
// guarantees.
func (s *shutdownCoordinator) requestClose(who closeInitiator) {
	s.initiator.trySet(who)
}

// isGracefulCloseRequested reports whether requestClose has taken effect,
// i.e. spec.md §3's graceful_close_initiator is no longer None.
// graceful_close_started is tracked separately, in gracefulStarted.
func (s *shutdownCoordinator) isGracefulCloseRequested() bool {
	return s.initiator.get() != closeInitiatorNone
}

// isClosed reports the terminal is_closed flag.
func (s *shutdownCoordinator) isClosed() bool {
	return s.closed.isClosed()
}

// updateConnectionState runs spec.md §4.3's transition table. It is
// called from the request accept loop after every accept, from each
// request stream's completion callback right after
// streamRegistry.onStreamCompleted, and from StopProcessingNextRequest.
// The shutdown drain loop does not call it.
func (s *shutdownCoordinator) updateConnectionState() {
	initiator := s.initiator.get()

	if initiator != closeInitiatorNone && s.gracefulStarted.CompareAndSwap(false, true) {
		if s.onClosing != nil {
			s.onClosing(initiator)
		}
		if initiator == closeInitiatorServer && s.registry.activeCount() > 0 {
			s.control.sendGoAway(goAwayMaxStreamID)
		}
	}

	if s.registry.activeCount() == 0 && s.gracefulStarted.Load() {
		if _, won := s.closed.tryClose(); won {
			finalID := s.highestStreamID.Load()
			s.control.sendGoAway(finalID)
			if s.onClosed != nil {
				s.onClosed(finalID)
			}
		}
	}
}

// tryTerminalClose attempts the is_closed 0→1 transition directly,
// bypassing the graceful-drain gating in updateConnectionState. Used by
// the abort path, which must be able to emit the terminal GOAWAY (or
// suppress it if someone already has) regardless of active_request_count.
func (s *shutdownCoordinator) tryTerminalClose() (closeToken, bool) {
	return s.closed.tryClose()
}
