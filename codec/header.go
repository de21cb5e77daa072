package codec

import (
	"encoding/binary"

	"github.com/cellmesh/cell/cmn/cos"
	"github.com/cellmesh/cell/genome"
)

// HeaderSize is the 16-byte [fingerprint(8)|op_id(8)] prefix of spec.md §3.
const HeaderSize = 16

// Header is the parsed form of a message payload's first 16 bytes.
type Header struct {
	Fingerprint uint64
	OpID        uint64
}

// IsGenomeRequest reports whether a raw frame payload is the reserved
// GENOME_REQUEST magic payload rather than a framed [header|body] message
// (spec.md §3/§4.4).
func IsGenomeRequest(payload []byte) bool {
	return string(payload) == genome.GenomeRequest
}

// EncodeGenomeRequest returns the raw GENOME_REQUEST payload.
func EncodeGenomeRequest() []byte { return []byte(genome.GenomeRequest) }

// Encode writes [fingerprint|op_id] followed by body into a single
// payload, ready for WriteFrame.
func Encode(h Header, body []byte) []byte {
	out := make([]byte, HeaderSize+len(body))
	binary.LittleEndian.PutUint64(out[0:8], h.Fingerprint)
	binary.LittleEndian.PutUint64(out[8:16], h.OpID)
	copy(out[HeaderSize:], body)
	return out
}

// DecodeHeader parses the 16-byte prefix of a framed payload, returning the
// Header and the remaining body slice (which aliases payload — no copy).
func DecodeHeader(payload []byte) (Header, []byte, error) {
	if len(payload) < HeaderSize {
		return Header{}, nil, &cos.ErrMalformedArchive{Reason: "payload shorter than header"}
	}
	h := Header{
		Fingerprint: binary.LittleEndian.Uint64(payload[0:8]),
		OpID:        binary.LittleEndian.Uint64(payload[8:16]),
	}
	return h, payload[HeaderSize:], nil
}

// CheckFingerprint implements spec.md invariant 4: a message whose fingerprint
// does not match the server's fingerprint for that op is rejected without
// invoking any handler.
func CheckFingerprint(h Header, serverFingerprint uint64) error {
	if h.Fingerprint != serverFingerprint {
		return &cos.ErrSchemaMismatch{Want: serverFingerprint, Got: h.Fingerprint}
	}
	return nil
}
