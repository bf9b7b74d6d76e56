package h3

import (
	"bytes"
	"fmt"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

// Stream-type varints for unidirectional HTTP/3 streams (spec.md §6,
// GLOSSARY). Grounded on other_examples/quic-go-quic-go__stream.go's
// StreamType constants.
const (
	streamTypeControl      = 0x00
	streamTypePush         = 0x01
	streamTypeQPACKEncoder = 0x02
	streamTypeQPACKDecoder = 0x03
)

// HTTP/3 frame types this core produces or parses off the control stream.
// Adapted from internal/http2/frame.go's FrameType constant block,
// renumbered to the HTTP/3 values.
const (
	frameTypeSettings = 0x04
	frameTypeGoAway   = 0x07
)

// goAwayMaxStreamID is the 62-bit reserved value meaning "no commitment
// yet" (spec.md §6): 2^62 - 1.
const goAwayMaxStreamID uint64 = (1 << 62) - 1

// settingsPair is one (identifier, value) entry of an outbound SETTINGS
// frame.
type settingsPair struct {
	Identifier uint64
	Value      uint64
}

// serverSettings is the SETTINGS payload this core sends on the outbound
// control stream at connection start (spec.md §3, §6: "at minimum
// HeaderTableSize, MaxRequestHeaderFieldSize").
type serverSettings struct {
	HeaderTableSize           uint64
	MaxRequestHeaderFieldSize uint64
}

func (s serverSettings) pairs() []settingsPair {
	return []settingsPair{
		{Identifier: uint64(SettingQPackMaxTableCapacity), Value: s.HeaderTableSize},
		{Identifier: uint64(SettingMaxFieldSectionSize), Value: s.MaxRequestHeaderFieldSize},
	}
}

// encodeControlStreamHeader returns the leading stream-type varint that
// must be the first bytes written to a newly opened outbound control
// stream (spec.md §6, §4.1 step 1).
func encodeControlStreamHeader() []byte {
	buf := &bytes.Buffer{}
	buf.Write(quicvarint.Append(nil, streamTypeControl))
	return buf.Bytes()
}

// encodeSettingsFrame marshals a SETTINGS frame: varint type, varint
// length, then (identifier, value) varint pairs (spec.md §6). Grounded on
// internal/http2/frame.go's SettingsFrame.WritePayload, generalized from
// HTTP/2's fixed 2+4 byte entries to HTTP/3's varint-encoded ones.
func encodeSettingsFrame(s serverSettings) []byte {
	payload := &bytes.Buffer{}
	for _, p := range s.pairs() {
		payload.Write(quicvarint.Append(nil, p.Identifier))
		payload.Write(quicvarint.Append(nil, p.Value))
	}

	frame := &bytes.Buffer{}
	frame.Write(quicvarint.Append(nil, frameTypeSettings))
	frame.Write(quicvarint.Append(nil, uint64(payload.Len())))
	frame.Write(payload.Bytes())
	return frame.Bytes()
}

// encodeGoAwayFrame marshals a GOAWAY frame: varint type, varint length,
// then a single varint payload carrying id (spec.md §6). Grounded on
// internal/http2/errors.go's GenerateGoAwayFrame, generalized to HTTP/3's
// single-varint-payload GOAWAY (no debug data field on the wire).
func encodeGoAwayFrame(id uint64) []byte {
	payload := &bytes.Buffer{}
	payload.Write(quicvarint.Append(nil, id))

	frame := &bytes.Buffer{}
	frame.Write(quicvarint.Append(nil, frameTypeGoAway))
	frame.Write(quicvarint.Append(nil, uint64(payload.Len())))
	frame.Write(payload.Bytes())
	return frame.Bytes()
}

// readStreamType reads the leading stream-type varint a newly accepted
// unidirectional stream must deliver before it can be classified as
// control, encoder, or decoder (spec.md §4.1: "the worker reads the
// leading varint to classify").
func readStreamType(r io.Reader) (uint64, error) {
	v, err := quicvarint.Read(quicvarint.NewReader(r))
	if err != nil {
		return 0, fmt.Errorf("reading stream type varint: %w", err)
	}
	return v, nil
}

// controlFrameHeader is a parsed (type, length) pair read off the control
// stream.
type controlFrameHeader struct {
	Type   uint64
	Length uint64
}

// readControlFrameHeader reads one frame's type and length varints.
func readControlFrameHeader(r io.Reader) (controlFrameHeader, error) {
	rdr := quicvarint.NewReader(r)
	typ, err := quicvarint.Read(rdr)
	if err != nil {
		return controlFrameHeader{}, fmt.Errorf("reading frame type: %w", err)
	}
	length, err := quicvarint.Read(rdr)
	if err != nil {
		return controlFrameHeader{}, fmt.Errorf("reading frame length: %w", err)
	}
	return controlFrameHeader{Type: typ, Length: length}, nil
}

// parseSettingsPayload decodes a SETTINGS frame's (identifier, value)
// varint pairs from an already-length-delimited payload reader.
func parseSettingsPayload(r io.Reader) ([]settingsPair, error) {
	rdr := quicvarint.NewReader(r)
	var pairs []settingsPair
	for {
		id, err := quicvarint.Read(rdr)
		if err == io.EOF {
			return pairs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading setting identifier: %w", err)
		}
		val, err := quicvarint.Read(rdr)
		if err != nil {
			return nil, fmt.Errorf("reading setting value: %w", err)
		}
		pairs = append(pairs, settingsPair{Identifier: id, Value: val})
	}
}
