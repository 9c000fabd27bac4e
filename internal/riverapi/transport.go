package riverapi

import (
	"context"
	"io"
)

// Transport is the underlying bidirectional message channel this core
// consumes. A concrete implementation is supplied by the
// embedding application; this module ships none beyond an in-memory test
// double (see internal/testtransport), since transport implementation is
// explicitly out of scope.
type Transport interface {
	// OpenChannel opens a named, framed, bidirectional message channel over
	// this transport connection. The river core always opens
	// wireproto.ChannelName ("ejb").
	OpenChannel(ctx context.Context, name string) (Channel, error)

	// ConnectionKey returns a value stable for the lifetime of this
	// transport connection, used to key the per-connection handshake
	// memoization. Two calls on the same
	// underlying connection must return the same key.
	ConnectionKey() string
}

// Channel is one logical framed byte-message stream opened on a Transport.
type Channel interface {
	// WriteMessage reserves an outbound frame slot. It may block until the
	// transport is willing to accept another outbound message.
	WriteMessage(ctx context.Context) (OutFrame, error)

	// ReceiveMessage sets (or replaces) the single active receiver for
	// inbound frames on this channel. The handshake installs a receiver to
	// read the greeting; once negotiation completes, the channel core
	// replaces it with the permanent response dispatcher. Only one
	// receiver is ever active at a time.
	ReceiveMessage(recv func(MessageInputStream))

	// AddCloseHandler registers a callback invoked exactly once when the
	// channel closes, whatever the cause.
	AddCloseHandler(cb func(cause error))

	// CloseAsync requests the channel close; it does not block for the
	// close to complete.
	CloseAsync()
}

// OutFrame is a single outbound message slot. Exactly one of Close or
// Cancel must be called. An OutFrame does not touch write credit itself:
// ClientChannel releases the credit unit it acquired for a request frame
// once Close or Cancel has returned.
type OutFrame interface {
	io.Writer

	// Close finalizes and sends the frame.
	Close() error

	// Cancel discards the partially written frame, signalling the peer
	// that it is invalid.
	Cancel() error
}

// MessageInputStream is one inbound frame's payload, readable until EOF at
// the frame boundary.
type MessageInputStream interface {
	io.Reader

	// Close releases the stream without reading to EOF. Safe to call after
	// EOF has already been observed.
	Close() error
}
