package transport

import "fmt"

// TransportError is the set of QUIC transport error codes from RFC 9000
// section 20.1 that this core can originate.
type TransportError uint64

// Transport error codes.
const (
	NoError                  TransportError = 0x0
	InternalError            TransportError = 0x1
	ConnectionRefused        TransportError = 0x2
	FlowControlError         TransportError = 0x3
	StreamLimitError         TransportError = 0x4
	StreamStateError         TransportError = 0x5
	FinalSizeError           TransportError = 0x6
	FrameEncodingError       TransportError = 0x7
	TransportParameterError TransportError = 0x8
	ConnectionIDLimitError   TransportError = 0x9
	ProtocolViolation        TransportError = 0xa
	InvalidToken             TransportError = 0xb
	ApplicationError         TransportError = 0xc
	CryptoBufferExceeded     TransportError = 0xd
	KeyUpdateError           TransportError = 0xe
	AEADLimitReached         TransportError = 0xf
	NoViablePath             TransportError = 0x10
	CryptoErrorBase          TransportError = 0x100
)

// errorCodeString renders a transport (or crypto, 0x100-0x1ff) error code
// for logging, mirroring the naming in RFC 9000 section 20.1.
func errorCodeString(code uint64) string {
	switch TransportError(code) {
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
	if code >= uint64(CryptoErrorBase) && code < uint64(CryptoErrorBase)+0x100 {
		return fmt.Sprintf("crypto_error_%d", code-uint64(CryptoErrorBase))
	}
	return fmt.Sprintf("unknown_error_0x%x", code)
}

// transportError is an internal error carrying the QUIC error code that
// should close the connection, distinguishing protocol violations from
// plain Go errors returned by collaborators (handshake, datapath).
type transportError struct {
	code TransportError
	msg  string
}

func newError(code TransportError, msg string) error {
	return &transportError{code: code, msg: msg}
}

func (e *transportError) Error() string {
	if e.msg == "" {
		return errorCodeString(uint64(e.code))
	}
	return errorCodeString(uint64(e.code)) + ": " + e.msg
}

// Code returns the QUIC transport error code to place in a
// CONNECTION_CLOSE frame when closing because of this error.
func (e *transportError) Code() uint64 {
	return uint64(e.code)
}

var (
	errShortBuffer  = newError(InternalError, "short buffer")
	errInvalidToken = newError(InvalidToken, "invalid retry token")
	errFlowControl  = newError(FlowControlError, "flow control violation")
)

// sprint concatenates its arguments with fmt.Sprint, used by debug/error
// call sites that build a message from mixed types without format verbs.
func sprint(a ...interface{}) string {
	return fmt.Sprint(a...)
}
