package river

import (
	"context"
	"fmt"
	"io"

	"github.com/riverproto/channel/internal/codecadapter"
	"github.com/riverproto/channel/internal/invreg"
	"github.com/riverproto/channel/internal/riverapi"
	"github.com/riverproto/channel/internal/wireproto"
)

// outcome is what a pending invocation or open-session call eventually
// resolves to: either a decoded value or an error, never both.
type outcome struct {
	value any
	err   error
}

// invocationRecord is the invreg.Record for one in-flight method
// invocation. It decodes whichever response opcode eventually arrives for
// its id and delivers the outcome to the caller blocked in GetResult.
type invocationRecord struct {
	version int
	adapter *codecadapter.Adapter
	done    chan outcome

	// weakAffinity is set from the response attachments, if the server
	// sent one, once this record's single response has been processed.
	weakAffinity    any
	hasWeakAffinity bool
}

func newInvocationRecord(version int, adapter *codecadapter.Adapter) *invocationRecord {
	return &invocationRecord{version: version, adapter: adapter, done: make(chan outcome, 1)}
}

var _ invreg.Record = (*invocationRecord)(nil)

// HandleResponse implements invreg.Record.
func (r *invocationRecord) HandleResponse(opcode wireproto.Opcode, payload io.Reader) bool {
	switch opcode {
	case wireproto.InvocationResponse:
		r.resolveInvocationResponse(payload)
		return false

	case wireproto.CompressedInvocationMessage:
		inflated, err := codecadapter.InflateInvocationResponse(payload)
		if err != nil {
			r.fail(errProtocolError("inflate compressed invocation response", err))
			return false
		}
		defer inflated.Close()
		return r.handleCompressedBody(inflated)

	case wireproto.ApplicationException:
		r.resolveApplicationException(payload)
		return false

	case wireproto.NoSuchEJB:
		r.fail(errTargetMissing(readErrorMessage(payload, "no such EJB")))
		return false

	case wireproto.NoSuchMethod:
		r.fail(errMethodMissing(readErrorMessage(payload, "no such method")))
		return false

	case wireproto.EJBNotStateful:
		r.fail(errNotStateful(readErrorMessage(payload, "EJB is not stateful")))
		return false

	case wireproto.SessionNotActive:
		r.fail(errSessionInactive(readErrorMessage(payload, "session is not active")))
		return false

	case wireproto.ProceedAsyncResponse:
		// Acknowledges that the server accepted the call for asynchronous
		// processing; the real answer arrives later under the same id.
		// Stay registered.
		return true

	default:
		r.fail(errProtocolError(fmt.Sprintf("unexpected response opcode %s for invocation", opcode), nil))
		return false
	}
}

// handleCompressedBody re-runs the response switch against the opcode
// embedded at the front of a decompressed COMPRESSED_INVOCATION_MESSAGE
// body. It never itself nests a second compressed message.
func (r *invocationRecord) handleCompressedBody(body io.Reader) bool {
	var opByte [1]byte
	if _, err := io.ReadFull(body, opByte[:]); err != nil {
		r.fail(errProtocolError("read compressed invocation opcode", err))
		return false
	}
	switch wireproto.Opcode(opByte[0]) {
	case wireproto.InvocationResponse:
		r.resolveInvocationResponse(body)
	case wireproto.ApplicationException:
		r.resolveApplicationException(body)
	default:
		r.fail(errProtocolError("unsupported opcode inside compressed invocation message", nil))
	}
	return false
}

func (r *invocationRecord) resolveInvocationResponse(payload io.Reader) {
	dec, err := r.adapter.StartDecoder(payload)
	if err != nil {
		r.fail(errProtocolError("start invocation response decoder", err))
		return
	}
	value, err := dec.ReadObject()
	if err != nil {
		r.fail(errProtocolError("decode invocation response", err))
		return
	}

	attachments, err := decodeResponseAttachments(payload, dec)
	if err != nil {
		r.fail(errProtocolError("decode invocation response attachments", err))
		return
	}
	if affinity, ok := attachments[string(wireproto.WeakAffinityKey)]; ok {
		r.weakAffinity, r.hasWeakAffinity = affinity, true
	}

	r.succeed(value)
}

func (r *invocationRecord) resolveApplicationException(payload io.Reader) {
	dec, err := r.adapter.StartDecoder(payload)
	if err != nil {
		r.fail(errProtocolError("start application exception decoder", err))
		return
	}
	cause, err := dec.ReadObject()
	if err != nil {
		r.fail(errProtocolError("decode application exception", err))
		return
	}
	if r.version < 3 {
		// v<3 appends the same attachment block as a successful response;
		// this record has no use for it, but must still drain it so the
		// frame boundary lines up for the dispatcher.
		if _, err := decodeResponseAttachments(payload, dec); err != nil {
			r.fail(errProtocolError("drain v<3 application exception attachments", err))
			return
		}
	}
	causeErr, _ := cause.(error)
	r.fail(errApplicationException(causeErr))
}

// decodeResponseAttachments reads the one-byte attachment count and that
// many (string key, object value) pairs a response body carries after its
// primary payload. Keys and
// values are codec objects read through dec, continuing the same stream
// the primary payload was decoded from; the count itself is a raw byte
// outside the codec stream, matching the writer's own raw/codec split.
func decodeResponseAttachments(payload io.Reader, dec riverapi.Decoder) (map[string]any, error) {
	var countByte [1]byte
	if _, err := io.ReadFull(payload, countByte[:]); err != nil {
		return nil, fmt.Errorf("read attachment count: %w", err)
	}
	count := int(countByte[0])
	if count == 0 {
		return nil, nil
	}

	out := make(map[string]any, count)
	for i := 0; i < count; i++ {
		key, err := dec.ReadObject()
		if err != nil {
			return nil, fmt.Errorf("read attachment key %d: %w", i, err)
		}
		value, err := dec.ReadObject()
		if err != nil {
			return nil, fmt.Errorf("read attachment value %d: %w", i, err)
		}
		keyStr, _ := key.(string)
		out[keyStr] = value
	}
	return out, nil
}

// readErrorMessage decodes the UTF-8 message body an error response opcode
// carries; fallback is used if the body is absent or
// malformed so a protocol-level hiccup never masks the error code itself.
func readErrorMessage(payload io.Reader, fallback string) string {
	msg, err := codecadapter.ReadUTF(payload)
	if err != nil || msg == "" {
		return fallback
	}
	return msg
}

// HandleClosed implements invreg.Record.
func (r *invocationRecord) HandleClosed() {
	r.fail(errChannelClosed("channel closed while invocation was pending"))
}

func (r *invocationRecord) succeed(value any) {
	select {
	case r.done <- outcome{value: value}:
	default:
	}
}

func (r *invocationRecord) fail(err error) {
	select {
	case r.done <- outcome{err: err}:
	default:
	}
}

// GetResult blocks until the invocation resolves, the channel closes, or ctx
// is cancelled.
func (r *invocationRecord) GetResult(ctx context.Context) (any, error) {
	select {
	case o := <-r.done:
		return o.value, o.err
	case <-ctx.Done():
		return nil, errInterrupted(ctx.Err())
	}
}

// Discard abandons interest in the result without blocking by resolving the
// record with an Interrupted error. It does not remove the record from the
// registry; a response that arrives afterwards finds the outcome slot
// already filled and is dropped.
func (r *invocationRecord) Discard() {
	r.fail(errInterrupted(nil))
}

// openSessionRecord is the invreg.Record for a pending open-session call.
type openSessionRecord struct {
	locator riverapi.Locator
	adapter *codecadapter.Adapter
	version int
	done    chan outcome
}

func newOpenSessionRecord(locator riverapi.Locator, version int, adapter *codecadapter.Adapter) *openSessionRecord {
	return &openSessionRecord{locator: locator, version: version, adapter: adapter, done: make(chan outcome, 1)}
}

var _ invreg.Record = (*openSessionRecord)(nil)

// HandleResponse implements invreg.Record. OPEN_SESSION_RESPONSE carries a
// packed-uint session-id length, that many raw session bytes, then an
// encoded Affinity object.
func (r *openSessionRecord) HandleResponse(opcode wireproto.Opcode, payload io.Reader) bool {
	switch opcode {
	case wireproto.OpenSessionResponse:
		n, err := codecadapter.ReadPackedUint(payload)
		if err != nil {
			r.fail(errProtocolError("decode open-session response session length", err))
			return false
		}
		sessionID := make([]byte, n)
		if _, err := io.ReadFull(payload, sessionID); err != nil {
			r.fail(errProtocolError("decode open-session response session bytes", err))
			return false
		}
		dec, err := r.adapter.StartDecoder(payload)
		if err != nil {
			r.fail(errProtocolError("start open-session affinity decoder", err))
			return false
		}
		affinity, err := dec.ReadObject()
		if err != nil {
			r.fail(errProtocolError("decode open-session affinity", err))
			return false
		}
		r.succeed(riverapi.StatefulLocator{Stateless: r.locator, SessionID: sessionID, Affinity: affinity})
		return false

	case wireproto.ApplicationException:
		dec, err := r.adapter.StartDecoder(payload)
		if err != nil {
			r.fail(errProtocolError("start open-session exception decoder", err))
			return false
		}
		cause, err := dec.ReadObject()
		if err != nil {
			r.fail(errProtocolError("decode open-session exception", err))
			return false
		}
		if r.version < 3 {
			if _, err := decodeResponseAttachments(payload, dec); err != nil {
				r.fail(errProtocolError("drain v<3 open-session exception attachments", err))
				return false
			}
		}
		causeErr, _ := cause.(error)
		r.fail(errApplicationException(causeErr))
		return false

	case wireproto.EJBNotStateful:
		r.fail(errNotStateful(readErrorMessage(payload, "EJB is not stateful")))
		return false

	case wireproto.NoSuchEJB:
		r.fail(errTargetMissing(readErrorMessage(payload, "no such EJB")))
		return false

	default:
		r.fail(errProtocolError(fmt.Sprintf("unexpected response opcode %s for open-session", opcode), nil))
		return false
	}
}

// HandleClosed implements invreg.Record.
func (r *openSessionRecord) HandleClosed() {
	r.fail(errChannelClosed("channel closed while open-session was pending"))
}

func (r *openSessionRecord) succeed(value any) {
	select {
	case r.done <- outcome{value: value}:
	default:
	}
}

func (r *openSessionRecord) fail(err error) {
	select {
	case r.done <- outcome{err: err}:
	default:
	}
}

func (r *openSessionRecord) GetResult(ctx context.Context) (riverapi.StatefulLocator, error) {
	select {
	case o := <-r.done:
		if o.err != nil {
			return riverapi.StatefulLocator{}, o.err
		}
		return o.value.(riverapi.StatefulLocator), nil
	case <-ctx.Done():
		return riverapi.StatefulLocator{}, errInterrupted(ctx.Err())
	}
}
