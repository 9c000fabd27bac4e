package river

import "github.com/riverproto/channel/internal/riverapi"

// Transport is the underlying bidirectional message channel this core
// consumes. A concrete implementation is supplied by the
// embedding application; this module ships none beyond an in-memory test
// double (see internal/testtransport), since transport implementation is
// explicitly out of scope.
type Transport = riverapi.Transport

// Channel is one logical framed byte-message stream opened on a Transport.
type Channel = riverapi.Channel

// OutFrame is a single outbound message slot. Exactly one of Close or
// Cancel must be called. An OutFrame does not touch write credit itself:
// ClientChannel releases the credit unit it acquired for a request frame
// once Close or Cancel has returned.
type OutFrame = riverapi.OutFrame

// MessageInputStream is one inbound frame's payload, readable until EOF at
// the frame boundary.
type MessageInputStream = riverapi.MessageInputStream
