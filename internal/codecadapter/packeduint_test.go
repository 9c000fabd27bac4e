package codecadapter

import (
	"bytes"
	"testing"
)

func TestPackedUintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 20, 1<<63 - 1}
	for _, v := range values {
		var buf bytes.Buffer
		if err := WritePackedUint(&buf, v); err != nil {
			t.Fatalf("WritePackedUint(%d): %v", v, err)
		}
		got, err := ReadPackedUint(&buf)
		if err != nil {
			t.Fatalf("ReadPackedUint after writing %d: %v", v, err)
		}
		if got != v {
			t.Errorf("round-trip(%d) = %d", v, got)
		}
	}
}

func TestPackedUintSingleByteForSmallValues(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePackedUint(&buf, 42); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 1 {
		t.Errorf("expected a single byte for value 42, got %d bytes", buf.Len())
	}
}
