package codecadapter

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// InflateInvocationResponse wraps a COMPRESSED_INVOCATION_MESSAGE body in a
// DEFLATE reader so the caller can decode it exactly like an
// INVOCATION_RESPONSE body. Uses klauspost/compress, the
// faster drop-in for the standard library's compress/flate.
func InflateInvocationResponse(compressed io.Reader) (io.ReadCloser, error) {
	fr := flate.NewReader(compressed)
	if fr == nil {
		return nil, fmt.Errorf("inflate invocation response: nil flate reader")
	}
	return fr, nil
}
