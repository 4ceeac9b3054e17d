package transport

import "fmt"

// TransportErrorCode is a QUIC transport error code carried in a
// CONNECTION_CLOSE frame of the transport variant.
// https://quicwg.org/base-drafts/draft-ietf-quic-transport.html#name-transport-error-codes
type TransportErrorCode uint64

// Defined transport error codes.
const (
	NoError                  TransportErrorCode = 0x0
	InternalError            TransportErrorCode = 0x1
	ConnectionRefused        TransportErrorCode = 0x2
	FlowControlError         TransportErrorCode = 0x3
	StreamLimitError         TransportErrorCode = 0x4
	StreamStateError         TransportErrorCode = 0x5
	FinalSizeError           TransportErrorCode = 0x6
	FrameEncodingError       TransportErrorCode = 0x7
	TransportParameterError  TransportErrorCode = 0x8
	ConnectionIDLimitError   TransportErrorCode = 0x9
	ProtocolViolation        TransportErrorCode = 0xa
	InvalidToken             TransportErrorCode = 0xb
	ApplicationError         TransportErrorCode = 0xc
	CryptoBufferExceeded     TransportErrorCode = 0xd
	KeyUpdateError           TransportErrorCode = 0xe
	AEADLimitReached         TransportErrorCode = 0xf
	NoViablePath             TransportErrorCode = 0x10
	cryptoErrorFirst         TransportErrorCode = 0x100
	cryptoErrorLast          TransportErrorCode = 0x1ff
)

// errorCodeString returns the human-readable name of a transport error code,
// matching names used in CONNECTION_CLOSE qlog output.
func errorCodeString(code uint64) string {
	switch TransportErrorCode(code) {
	case NoError:
		return "no_error"
	case InternalError:
		return "internal_error"
	case ConnectionRefused:
		return "connection_refused"
	case FlowControlError:
		return "flow_control_error"
	case StreamLimitError:
		return "stream_limit_error"
	case StreamStateError:
		return "stream_state_error"
	case FinalSizeError:
		return "final_size_error"
	case FrameEncodingError:
		return "frame_encoding_error"
	case TransportParameterError:
		return "transport_parameter_error"
	case ConnectionIDLimitError:
		return "connection_id_limit_error"
	case ProtocolViolation:
		return "protocol_violation"
	case InvalidToken:
		return "invalid_token"
	case ApplicationError:
		return "application_error"
	case CryptoBufferExceeded:
		return "crypto_buffer_exceeded"
	case KeyUpdateError:
		return "key_update_error"
	case AEADLimitReached:
		return "aead_limit_reached"
	case NoViablePath:
		return "no_viable_path"
	}
	if code >= uint64(cryptoErrorFirst) && code <= uint64(cryptoErrorLast) {
		return fmt.Sprintf("crypto_error_%d", code-uint64(cryptoErrorFirst))
	}
	return fmt.Sprintf("unknown_error_%d", code)
}

// Error is a connection or stream level error produced by this package.
// It always carries a TransportErrorCode, even for application-level
// closes where the code is opaque to the transport.
type Error struct {
	Code        uint64
	Message     string
	Application bool // Error originated from the application (RESET_STREAM/CONNECTION_CLOSE app variant)
}

func newError(code TransportErrorCode, msg string) *Error {
	return &Error{Code: uint64(code), Message: msg}
}

func newAppError(code uint64, msg string) *Error {
	return &Error{Code: code, Message: msg, Application: true}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return errorCodeString(e.Code)
	}
	return errorCodeString(e.Code) + ": " + e.Message
}

// Sentinel errors returned from the hot path where no contextual message is useful.
var (
	errInvalidToken = newError(InvalidToken, "")
	errFlowControl  = newError(FlowControlError, "")
	errShortBuffer  = newError(InternalError, "short buffer")
	errFinalSize    = newError(FinalSizeError, "")
	errStreamLimit  = newError(StreamLimitError, "")
)

func sprint(args ...interface{}) string {
	return fmt.Sprint(args...)
}
