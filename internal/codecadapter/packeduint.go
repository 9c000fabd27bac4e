// Package codecadapter wraps a pluggable river.CodecFactory with the
// per-version configuration tables a negotiated protocol version implies,
// and provides the packed-uint variable-length integer encoding the wire
// format uses outside the object-graph stream.
package codecadapter

import (
	"fmt"
	"io"
)

// WritePackedUint writes v as a variable-length unsigned integer: 7 payload
// bits per byte, MSB set on every byte but the last.
func WritePackedUint(w io.Writer, v uint64) error {
	var buf [10]byte
	n := 0
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf[n] = b
		n++
		if v == 0 {
			break
		}
	}
	if _, err := w.Write(buf[:n]); err != nil {
		return fmt.Errorf("write packed-uint: %w", err)
	}
	return nil
}

// ReadPackedUint reads a packed-uint written by WritePackedUint.
func ReadPackedUint(r io.Reader) (uint64, error) {
	var result uint64
	var shift uint
	var b [1]byte
	for {
		if shift >= 70 {
			return 0, fmt.Errorf("read packed-uint: value too long")
		}
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, fmt.Errorf("read packed-uint: %w", err)
		}
		result |= uint64(b[0]&0x7f) << shift
		if b[0]&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}
