// Package dispatcher implements the single-reader response dispatcher:
// read one byte opcode, then (for every opcode in the current set) a
// big-endian u16 invocation id, then hand the remaining payload to the
// matching registry entry.
package dispatcher

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/riverproto/channel/internal/invreg"
	"github.com/riverproto/channel/internal/riverapi"
	"github.com/riverproto/channel/internal/riverlog"
	"github.com/riverproto/channel/internal/wireproto"
)

// Metrics is the narrow interface the dispatcher reports outcomes through,
// satisfied by *river.Metrics (pkg/river/metrics.go). Kept as an interface here so
// dispatcher never imports the metrics implementation or Prometheus types
// directly.
type Metrics interface {
	ObserveDispatch(opcode wireproto.Opcode, found bool)
	ObserveProtocolError()
}

// Dispatcher reads inbound frames and routes them to the invocation
// registry. It holds no decoder state of its own: decoding
// is entirely the registered record's responsibility.
type Dispatcher struct {
	registry *invreg.Registry
	metrics  Metrics
}

// New returns a Dispatcher routing into registry.
func New(registry *invreg.Registry, metrics Metrics) *Dispatcher {
	return &Dispatcher{registry: registry, metrics: metrics}
}

// Handle is installed as the channel's permanent message receiver via
// Channel.ReceiveMessage once the handshake completes.
func (d *Dispatcher) Handle(stream riverapi.MessageInputStream) {
	defer stream.Close()

	var opByte [1]byte
	if _, err := io.ReadFull(stream, opByte[:]); err != nil {
		d.protocolError(fmt.Errorf("read opcode: %w", err))
		return
	}
	opcode := wireproto.Opcode(opByte[0])

	if !opcode.HasInvocationID() {
		// No opcode in the current set lacks an id; a byte this dispatcher
		// does not recognise at all is a protocol error, not a valid
		// id-less opcode.
		d.protocolError(fmt.Errorf("opcode %s carries no invocation id", opcode))
		return
	}

	var idBuf [2]byte
	if _, err := io.ReadFull(stream, idBuf[:]); err != nil {
		d.protocolError(fmt.Errorf("read invocation id for opcode %s: %w", opcode, err))
		return
	}
	id := binary.BigEndian.Uint16(idBuf[:])

	// Any opcode that carries an id, known or not, is routed to the
	// registered record rather than filtered here: an opcode this
	// dispatcher doesn't recognise as a valid response still has to reach
	// the pending record's own default branch so it can terminate that
	// invocation with a protocol error instead of being silently dropped
	// and left hanging until the channel eventually closes.
	found := d.registry.Dispatch(id, opcode, stream)
	if d.metrics != nil {
		d.metrics.ObserveDispatch(opcode, found)
	}
	if !found {
		riverlog.L().Debug("dispatcher: no pending invocation for id, discarding payload",
			riverlog.KeyInvocation, id, riverlog.KeyOpcode, opcode.String())
	}
}

func (d *Dispatcher) protocolError(err error) {
	riverlog.L().Warn("dispatcher: protocol error", "error", err)
	if d.metrics != nil {
		d.metrics.ObserveProtocolError()
	}
}
