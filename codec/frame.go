// Package codec implements spec.md §4.1's Framing & Codec: length-prefixed
// binary framing, the 16-byte [fingerprint|op_id] message header, and the
// GENOME_REQUEST magic-payload check. Grounded on the length-prefix idiom
// already sketched for this project's own SDK
// (other_examples/.../cell.go.go: 4-byte little-endian length, then
// payload) and on aistore's PDU header handling (transport/pdu.go) for the
// truncated/malformed error shapes.
package codec

import (
	"encoding/binary"
	"io"

	"github.com/cellmesh/cell/cmn/cos"
)

// DefaultMaxFrameBytes is the default frame-size ceiling from spec.md §3
// ("N ≤ configurable maximum (default 64 MiB)"), overridden by
// CELL_MAX_FRAME_BYTES (spec.md §6).
const DefaultMaxFrameBytes = 64 << 20

// WriteFrame writes payload as a single length-prefixed frame: a 4-byte
// little-endian length N followed by N bytes.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame, rejecting declared lengths
// above maxFrameBytes before attempting to allocate or read the body (so a
// malicious or buggy peer cannot force an unbounded allocation).
func ReadFrame(r io.Reader, maxFrameBytes int) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if maxFrameBytes > 0 && int(n) > maxFrameBytes {
		return nil, &cos.ErrTruncated{Want: maxFrameBytes, Got: int(n)}
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, &cos.ErrTruncated{Want: int(n), Got: 0}
		}
		return nil, err
	}
	return buf, nil
}
