// Package wireproto defines the opcode set and fixed byte layout of the
// river channel protocol: one byte opcode, a big-endian u16 invocation id
// for every framed opcode except the handshake greeting, and an opaque body
// whose shape is opcode- and version-dependent.
package wireproto

// Opcode identifies the kind of frame on the wire. Request opcodes are sent
// by the client; response opcodes are read by the dispatcher.
type Opcode byte

// Request opcodes (client -> server).
const (
	OpenSessionRequest   Opcode = 0x01
	InvocationRequest    Opcode = 0x02
	CancelRequestMessage Opcode = 0x03 // recognised on the wire, never emitted: no per-invocation cancel in this protocol version
)

// Response opcodes (server -> client).
const (
	OpenSessionResponse         Opcode = 0x10
	InvocationResponse          Opcode = 0x11
	CompressedInvocationMessage Opcode = 0x12
	ApplicationException        Opcode = 0x13
	NoSuchEJB                   Opcode = 0x14
	NoSuchMethod                Opcode = 0x15
	SessionNotActive            Opcode = 0x16
	EJBNotStateful              Opcode = 0x17
	ProceedAsyncResponse        Opcode = 0x18
)

// String renders an opcode for logging; unknown opcodes render as their
// numeric value so protocol-error logs stay readable.
func (o Opcode) String() string {
	switch o {
	case OpenSessionRequest:
		return "OPEN_SESSION_REQUEST"
	case InvocationRequest:
		return "INVOCATION_REQUEST"
	case CancelRequestMessage:
		return "CANCEL_REQUEST_MESSAGE"
	case OpenSessionResponse:
		return "OPEN_SESSION_RESPONSE"
	case InvocationResponse:
		return "INVOCATION_RESPONSE"
	case CompressedInvocationMessage:
		return "COMPRESSED_INVOCATION_MESSAGE"
	case ApplicationException:
		return "APPLICATION_EXCEPTION"
	case NoSuchEJB:
		return "NO_SUCH_EJB"
	case NoSuchMethod:
		return "NO_SUCH_METHOD"
	case SessionNotActive:
		return "SESSION_NOT_ACTIVE"
	case EJBNotStateful:
		return "EJB_NOT_STATEFUL"
	case ProceedAsyncResponse:
		return "PROCEED_ASYNC_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// HasInvocationID reports whether a frame with this opcode carries a u16
// invocation id immediately after the opcode byte. Every recognised opcode
// in the current set does; this stays a function (not a blanket assumption)
// because the handshake greeting does not, and future opcodes may not either.
func (o Opcode) HasInvocationID() bool {
	switch o {
	case OpenSessionRequest, InvocationRequest, CancelRequestMessage,
		OpenSessionResponse, InvocationResponse, CompressedInvocationMessage,
		ApplicationException, NoSuchEJB, NoSuchMethod, SessionNotActive,
		EJBNotStateful, ProceedAsyncResponse:
		return true
	default:
		return false
	}
}

// ChannelName is the fixed named channel opened on the transport for the
// handshake and all subsequent request/response traffic.
const ChannelName = "ejb"

// CodecTag is the fixed wire tag the client sends after its chosen version
// byte during the handshake: a length-prefixed codec name, "river".
var CodecTag = []byte{0x05, 'r', 'i', 'v', 'e', 'r'}

// MaxSupportedVersion is the highest protocol version this client speaks.
const MaxSupportedVersion = 3

// AttachmentKey identifies an entry in the wire attachment block.
type AttachmentKey string

// WeakAffinityKey is the response attachment key whose value updates the
// caller's client context with routing affinity.
const WeakAffinityKey AttachmentKey = "jboss.weak-affinity"

// PrivateAttachmentsKey is the reserved key under which the private typed
// attachment map is written as a single composite entry.
const PrivateAttachmentsKey AttachmentKey = "private-attachments"

// TransactionIDKey is the private-map key whose presence triggers the v<3
// back-reference duplication quirk.
const TransactionIDKey = "txn-id"

// TransactionIDDuplicateKey is the second reserved key the v<3 writer uses
// to re-emit the transaction id object for backward compatibility.
const TransactionIDDuplicateKey AttachmentKey = "jboss.txn-id"
