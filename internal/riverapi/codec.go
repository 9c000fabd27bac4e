package riverapi

import "io"

// CodecConfig carries the per-version tuning the codec adapter selects:
// which class/object reference tables to use and which codec stream
// version to declare.
type CodecConfig struct {
	// StreamVersion is the codec's own internal stream version (2 for
	// protocol versions 1-2, 4 for version 3+).
	StreamVersion int

	// ClassTableVersion and ObjectTableVersion select the opaque
	// out-of-band reference tables the codec uses to shorten common
	// references. The river core treats these as configuration handles it
	// passes through, never as data it interprets.
	ClassTableVersion  int
	ObjectTableVersion int
}

// CodecFactory is the pluggable object-graph marshaller this core
// consumes. A concrete implementation is identified on the wire by a
// short name, e.g. "river".
type CodecFactory interface {
	// Name is the codec identifier sent during the handshake.
	Name() string

	// NewEncoder returns an Encoder configured for the given per-version
	// settings.
	NewEncoder(cfg CodecConfig) Encoder

	// NewDecoder returns a Decoder configured for the given per-version
	// settings.
	NewDecoder(cfg CodecConfig) Decoder
}

// Encoder is a single-use object-graph serializer bound to one sink for its
// entire lifetime: Start, any number of WriteObject calls, then Finish.
type Encoder interface {
	Start(sink io.Writer) error
	WriteObject(value any) error
	Finish() error
}

// Decoder is a single-use object-graph deserializer bound to one source for
// its entire lifetime: Start, any number of ReadObject calls, then Finish.
type Decoder interface {
	Start(source io.Reader) error
	ReadObject() (any, error)
	Finish() error
}
