package river

import "github.com/riverproto/channel/internal/riverapi"

// CodecConfig carries the per-version tuning the codec adapter selects:
// which class/object reference tables to use and which codec stream
// version to declare.
type CodecConfig = riverapi.CodecConfig

// CodecFactory is the pluggable object-graph marshaller this core
// consumes. A concrete implementation is identified on the wire by a
// short name, e.g. "river".
type CodecFactory = riverapi.CodecFactory

// Encoder is a single-use object-graph serializer bound to one sink for its
// entire lifetime: Start, any number of WriteObject calls, then Finish.
type Encoder = riverapi.Encoder

// Decoder is a single-use object-graph deserializer bound to one source for
// its entire lifetime: Start, any number of ReadObject calls, then Finish.
type Decoder = riverapi.Decoder
