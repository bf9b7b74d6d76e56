package h3

import "sync"

// controlStreamSender is the capability ControlChannels needs to emit a
// GOAWAY on the outbound control stream: a raw byte sink. Satisfied by
// transport.Stream.
type controlStreamSender interface {
	Write(p []byte) (int, error)
}

// controlChannels is spec.md §4.4's ControlChannels: the single outbound
// control stream slot plus the three peer-originated unidirectional
// stream-role slots (control, QPACK encoder, QPACK decoder), all guarded
// by one mutex so "claim a slot" and "send on the outbound slot" can never
// race with each other (spec.md §5: "never held across a send await on
// other connections"; it may be held across the GOAWAY send because the
// outbound control stream is owned solely by this connection).
//
// Grounded on internal/http2/conn.go's settingsMu-guarded
// ourSettings/peerSettings pair, generalized to four role slots.
type controlChannels struct {
	mu sync.Mutex

	outbound controlStreamSender

	inboundControl startingStream
	inboundEncoder startingStream
	inboundDecoder startingStream
}

func newControlChannels() *controlChannels {
	return &controlChannels{}
}

// setOutbound installs the outbound control stream. Called once, eagerly,
// during connection startup (spec.md §3: "created once, eagerly, before
// the accept loop makes progress").
func (c *controlChannels) setOutbound(s controlStreamSender) {
	c.mu.Lock()
	c.outbound = s
	c.mu.Unlock()
}

// onInboundControlStream claims the control-stream role for s. Returns
// true on first successful claim, false if the slot is already occupied
// (spec.md §4.4, §8: "first wins; subsequent ones are rejected and do not
// mutate the slot").
func (c *controlChannels) onInboundControlStream(s startingStream) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inboundControl != nil {
		return false
	}
	c.inboundControl = s
	return true
}

// onInboundEncoderStream claims the QPACK encoder-stream role for s.
func (c *controlChannels) onInboundEncoderStream(s startingStream) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inboundEncoder != nil {
		return false
	}
	c.inboundEncoder = s
	return true
}

// onInboundDecoderStream claims the QPACK decoder-stream role for s.
func (c *controlChannels) onInboundDecoderStream(s startingStream) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inboundDecoder != nil {
		return false
	}
	c.inboundDecoder = s
	return true
}

// sendGoAway forwards a GOAWAY frame carrying id to the outbound control
// stream if one has been opened yet; otherwise it is a no-op, per spec.md
// §4.4 ("the connection has not yet progressed far enough for the peer to
// expect one").
func (c *controlChannels) sendGoAway(id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outbound == nil {
		return nil
	}
	frame := encodeGoAwayFrame(id)
	_, err := c.outbound.Write(frame)
	return err
}

// inboundControlStreamSetting is one SETTINGS (identifier, value) pair as
// read off an inbound control stream.
type inboundControlStreamSetting uint64

// Recognized SETTINGS identifiers (spec.md §4.4). QPackBlockedStreams's
// effect is deferred entirely to the out-of-scope QPACK collaborator;
// this core only validates that the identifier is recognized.
const (
	SettingQPackMaxTableCapacity inboundControlStreamSetting = 0x1
	SettingMaxFieldSectionSize   inboundControlStreamSetting = 0x6
	SettingQPackBlockedStreams   inboundControlStreamSetting = 0x7
)

// onInboundControlStreamSetting validates a SETTINGS identifier/value pair
// received on the peer's control stream. Any identifier outside the
// recognized set is a protocol violation (spec.md §4.4, §7:
// "UnexpectedSetting").
func (c *controlChannels) onInboundControlStreamSetting(identifier uint64, value uint64) error {
	switch inboundControlStreamSetting(identifier) {
	case SettingQPackMaxTableCapacity, SettingMaxFieldSectionSize, SettingQPackBlockedStreams:
		return nil
	default:
		return NewConnectionError(ErrCodeSettingsError,
			"unrecognized SETTINGS identifier")
	}
}
