package codec

import (
	"github.com/tinylib/msgp/msgp"

	"github.com/cellmesh/cell/cmn/cos"
)

// Value is what every message type generated from a //cell:schema struct
// implements (via `go generate` + msgp, a direct teacher dependency). This
// is the idiomatic-Go rendering of spec.md §4.1's "archival representation
// that permits read-without-copy": msgp's generated UnmarshalMsg reads
// fields directly out of the received []byte, advancing a cursor rather
// than allocating a new value per field — the closest a memory-safe Go
// program can get to pointer-arithmetic field access into an untrusted
// buffer, which is why the substrate standardizes on it instead of reaching
// for gob/json on the hot path.
type Value interface {
	msgp.Marshaler
	msgp.Unmarshaler
}

// EncodeValue serializes v and wraps it in the [fingerprint|op_id] header,
// producing the payload a Frame carries (spec.md §4.1's Encode operation).
func EncodeValue(h Header, v Value) ([]byte, error) {
	body, err := v.MarshalMsg(nil)
	if err != nil {
		return nil, &cos.ErrMalformedArchive{Reason: err.Error()}
	}
	return Encode(h, body), nil
}

// DecodeValue parses a framed payload into v, enforcing the fingerprint
// check of spec.md invariant 4 before touching the body at all.
func DecodeValue(payload []byte, expectFingerprint uint64, v Value) (Header, error) {
	h, body, err := DecodeHeader(payload)
	if err != nil {
		return h, err
	}
	if err := CheckFingerprint(h, expectFingerprint); err != nil {
		return h, err
	}
	leftover, err := v.UnmarshalMsg(body)
	if err != nil {
		return h, &cos.ErrMalformedArchive{Reason: err.Error()}
	}
	if len(leftover) != 0 {
		return h, &cos.ErrMalformedArchive{Reason: "trailing bytes after archive root"}
	}
	return h, nil
}
