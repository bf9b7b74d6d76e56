package h3

import "sync/atomic"

// closeToken is the witness returned by closeLatch.tryClose for the
// is_closed 0→1 transition (spec.md §4.3, §9). It carries no data and is
// returned to every caller; what grants the right to emit the terminal
// GOAWAY and log final closure is tryClose's boolean result, which is true
// for exactly one caller. The type system does not stop code without a
// winning result from sending a GOAWAY; callers check the boolean.
type closeToken struct{}

// closeLatch guards the is_closed single-shot transition.
type closeLatch struct {
	done atomic.Bool
}

// tryClose attempts the 0→1 transition. The second return value is true
// only for the caller that performed it.
func (l *closeLatch) tryClose() (closeToken, bool) {
	if l.done.CompareAndSwap(false, true) {
		return closeToken{}, true
	}
	return closeToken{}, false
}

func (l *closeLatch) isClosed() bool { return l.done.Load() }

// abortToken is the witness returned by abortLatch.tryAbort for the
// aborted 0→1 transition. Like closeToken it is returned to every caller;
// the boolean result, true for exactly one caller, is what grants the
// right to drive the abort path (record the error code, attempt the
// terminal GOAWAY, abort the transport).
type abortToken struct{}

type abortLatch struct {
	done atomic.Bool
}

func (l *abortLatch) tryAbort() (abortToken, bool) {
	if l.done.CompareAndSwap(false, true) {
		return abortToken{}, true
	}
	return abortToken{}, false
}

func (l *abortLatch) isAborted() bool { return l.done.Load() }

// closeInitiator identifies who asked for a graceful close: spec.md §3's
// graceful_close_initiator, one of {None, Server, Client}.
type closeInitiator uint32

const (
	closeInitiatorNone closeInitiator = iota
	closeInitiatorServer
	closeInitiatorClient
)

func (i closeInitiator) String() string {
	switch i {
	case closeInitiatorServer:
		return "server"
	case closeInitiatorClient:
		return "client"
	default:
		return "none"
	}
}

// initiatorLatch guards the graceful_close_initiator None→{Server,Client}
// single-shot transition (spec.md §3, §8: "transitions None→X at most
// once").
type initiatorLatch struct {
	v atomic.Uint32
}

// trySet performs the transition if one has not already happened. It
// returns the initiator that ends up recorded (whichever one won the
// race, not necessarily the caller's) and whether the caller's own call
// was the one that won.
func (l *initiatorLatch) trySet(who closeInitiator) (closeInitiator, bool) {
	if l.v.CompareAndSwap(uint32(closeInitiatorNone), uint32(who)) {
		return who, true
	}
	return closeInitiator(l.v.Load()), false
}

func (l *initiatorLatch) get() closeInitiator {
	return closeInitiator(l.v.Load())
}
