package codecadapter

import (
	"fmt"
	"io"

	"github.com/riverproto/channel/internal/riverapi"
)

// versionTable holds the per-version codec configuration.
// Versions 1 and 2 share the "V1" table; version 3 (and any higher version
// this client would negotiate, capped at 3 by the handshake) uses "V3".
var versionTable = map[int]riverapi.CodecConfig{
	1: {StreamVersion: 2, ClassTableVersion: 1, ObjectTableVersion: 1},
	2: {StreamVersion: 2, ClassTableVersion: 1, ObjectTableVersion: 1},
	3: {StreamVersion: 4, ClassTableVersion: 3, ObjectTableVersion: 3},
}

// ConfigForVersion returns the codec configuration for a negotiated
// protocol version.
func ConfigForVersion(version int) (riverapi.CodecConfig, error) {
	cfg, ok := versionTable[version]
	if !ok {
		return riverapi.CodecConfig{}, fmt.Errorf("no codec configuration for protocol version %d", version)
	}
	return cfg, nil
}

// Adapter wraps a riverapi.CodecFactory configured for one negotiated protocol
// version. Each call to NewEncoder/NewDecoder returns a fresh single-use
// stream: codec encoder/decoder instances are single-use and not shared
// across requests.
type Adapter struct {
	factory riverapi.CodecFactory
	cfg     riverapi.CodecConfig
}

// NewAdapter builds an Adapter for the given negotiated version.
func NewAdapter(factory riverapi.CodecFactory, version int) (*Adapter, error) {
	cfg, err := ConfigForVersion(version)
	if err != nil {
		return nil, err
	}
	return &Adapter{factory: factory, cfg: cfg}, nil
}

// StartEncoder begins a fresh codec stream writing into sink.
func (a *Adapter) StartEncoder(sink io.Writer) (riverapi.Encoder, error) {
	enc := a.factory.NewEncoder(a.cfg)
	if err := enc.Start(sink); err != nil {
		return nil, fmt.Errorf("start encoder: %w", err)
	}
	return enc, nil
}

// StartDecoder begins a fresh codec stream reading from source.
func (a *Adapter) StartDecoder(source io.Reader) (riverapi.Decoder, error) {
	dec := a.factory.NewDecoder(a.cfg)
	if err := dec.Start(source); err != nil {
		return nil, fmt.Errorf("start decoder: %w", err)
	}
	return dec, nil
}

// CodecName returns the wire-visible codec identifier, e.g. "river".
func (a *Adapter) CodecName() string {
	return a.factory.Name()
}
