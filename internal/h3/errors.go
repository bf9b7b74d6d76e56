package h3

import (
	"errors"
	"fmt"
)

// ErrorCode represents an HTTP/3 error code, as carried on RESET_STREAM,
// STOP_SENDING, and CONNECTION_CLOSE (application-level).
type ErrorCode uint64

// HTTP/3 error codes this core emits or reasons about directly. Codes
// surfaced verbatim from stream-reported protocol errors are passed
// through untouched (see ConnectionError.Code).
const (
	// ErrCodeNoError (0x100): graceful shutdown, no error occurred.
	ErrCodeNoError ErrorCode = 0x100
	// ErrCodeGeneralProtocolError (0x101): peer violated the protocol
	// without a more specific error code applying.
	ErrCodeGeneralProtocolError ErrorCode = 0x101
	// ErrCodeInternalError (0x102): internal implementation fault.
	ErrCodeInternalError ErrorCode = 0x102
	// ErrCodeStreamCreationError (0x103): peer created a stream this
	// implementation will not accept, or a role-slot was already claimed.
	ErrCodeStreamCreationError ErrorCode = 0x103
	// ErrCodeClosedCriticalStream (0x104): a control, encoder, or decoder
	// stream was closed.
	ErrCodeClosedCriticalStream ErrorCode = 0x104
	// ErrCodeFrameUnexpected (0x105): a frame was received on a stream
	// where it is not permitted.
	ErrCodeFrameUnexpected ErrorCode = 0x105
	// ErrCodeFrameError (0x106): a frame was malformed.
	ErrCodeFrameError ErrorCode = 0x106
	// ErrCodeExcessiveLoad (0x107): peer exceeded a locally-enforced
	// limit, e.g. too many starting streams.
	ErrCodeExcessiveLoad ErrorCode = 0x107
	// ErrCodeIDError (0x108): a stream ID or push ID was used incorrectly.
	ErrCodeIDError ErrorCode = 0x108
	// ErrCodeSettingsError (0x109): a SETTINGS value was invalid.
	ErrCodeSettingsError ErrorCode = 0x109
	// ErrCodeMissingSettings (0x10a): no SETTINGS frame was received at
	// the start of the control stream.
	ErrCodeMissingSettings ErrorCode = 0x10a
	// ErrCodeRequestRejected (0x10b): the request was rejected before any
	// processing occurred; safe for the client to retry.
	ErrCodeRequestRejected ErrorCode = 0x10b
	// ErrCodeRequestCanceled (0x10c): the request or its response was
	// abandoned before completion.
	ErrCodeRequestCanceled ErrorCode = 0x10c
	// ErrCodeRequestIncomplete (0x10d): the connection closed before the
	// request finished, with the response possibly complete.
	ErrCodeRequestIncomplete ErrorCode = 0x10d
)

// String returns the wire-name of the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrCodeNoError:
		return "H3_NO_ERROR"
	case ErrCodeGeneralProtocolError:
		return "H3_GENERAL_PROTOCOL_ERROR"
	case ErrCodeInternalError:
		return "H3_INTERNAL_ERROR"
	case ErrCodeStreamCreationError:
		return "H3_STREAM_CREATION_ERROR"
	case ErrCodeClosedCriticalStream:
		return "H3_CLOSED_CRITICAL_STREAM"
	case ErrCodeFrameUnexpected:
		return "H3_FRAME_UNEXPECTED"
	case ErrCodeFrameError:
		return "H3_FRAME_ERROR"
	case ErrCodeExcessiveLoad:
		return "H3_EXCESSIVE_LOAD"
	case ErrCodeIDError:
		return "H3_ID_ERROR"
	case ErrCodeSettingsError:
		return "H3_SETTINGS_ERROR"
	case ErrCodeMissingSettings:
		return "H3_MISSING_SETTINGS"
	case ErrCodeRequestRejected:
		return "H3_REQUEST_REJECTED"
	case ErrCodeRequestCanceled:
		return "H3_REQUEST_CANCELLED"
	case ErrCodeRequestIncomplete:
		return "H3_REQUEST_INCOMPLETE"
	default:
		return fmt.Sprintf("H3_UNKNOWN_ERROR_CODE_0x%x", uint64(e))
	}
}

// StreamError is an error confined to a single stream; it does not affect
// the rest of the connection.
type StreamError struct {
	StreamID uint64
	Code     ErrorCode
	Msg      string
	Cause    error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("stream %d error: %s (%s): %s", e.StreamID, e.Msg, e.Code, e.Cause)
	}
	return fmt.Sprintf("stream %d error: %s (%s)", e.StreamID, e.Msg, e.Code)
}

func (e *StreamError) Unwrap() error { return e.Cause }

// NewStreamError builds a StreamError with no underlying cause.
func NewStreamError(streamID uint64, code ErrorCode, msg string) *StreamError {
	return &StreamError{StreamID: streamID, Code: code, Msg: msg}
}

// NewStreamErrorWithCause builds a StreamError wrapping cause.
func NewStreamErrorWithCause(streamID uint64, code ErrorCode, msg string, cause error) *StreamError {
	return &StreamError{StreamID: streamID, Code: code, Msg: msg, Cause: cause}
}

// ConnectionError affects the whole connection: any stream collaborator
// that raises one triggers connection-wide abort with Code (spec.md §7,
// "Http3ConnectionError"). LastStreamID is reported by Error(); the
// constructors below leave it zero, and the abort path takes the terminal
// GOAWAY's stream ID from the connection's own high-water mark, not from
// this field.
type ConnectionError struct {
	LastStreamID uint64
	Code         ErrorCode
	Msg          string
	Cause        error
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection error: %s (last_stream_id=%d, %s): %s", e.Msg, e.LastStreamID, e.Code, e.Cause)
	}
	return fmt.Sprintf("connection error: %s (last_stream_id=%d, %s)", e.Msg, e.LastStreamID, e.Code)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// NewConnectionError builds a ConnectionError with no underlying cause.
func NewConnectionError(code ErrorCode, msg string) *ConnectionError {
	return &ConnectionError{Code: code, Msg: msg}
}

// NewConnectionErrorWithCause builds a ConnectionError wrapping cause.
func NewConnectionErrorWithCause(code ErrorCode, msg string, cause error) *ConnectionError {
	return &ConnectionError{Code: code, Msg: msg, Cause: cause}
}

// asConnectionError extracts a *ConnectionError from err if it (or
// something it wraps) is one.
func asConnectionError(err error) (*ConnectionError, bool) {
	var ce *ConnectionError
	ok := errors.As(err, &ce)
	return ce, ok
}
