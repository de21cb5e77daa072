package codec_test

import (
	"testing"

	"github.com/cellmesh/cell/cmn/cos"
	"github.com/cellmesh/cell/codec"
)

// echoMsg is a hand-written stand-in for a //cell:schema struct's
// msgp-generated MarshalMsg/UnmarshalMsg — in the real build these methods
// come from `go generate` (github.com/tinylib/msgp), not from hand-written
// code; this test only exercises codec's header/fingerprint plumbing.
type echoMsg struct{ Payload string }

func (m *echoMsg) MarshalMsg(b []byte) ([]byte, error) {
	return append(b, []byte(m.Payload)...), nil
}

func (m *echoMsg) UnmarshalMsg(bts []byte) ([]byte, error) {
	m.Payload = string(bts)
	return nil, nil
}

func TestEncodeDecodeValueRoundTrip(t *testing.T) {
	const fp = 0xAABBCCDD
	h := codec.Header{Fingerprint: fp, OpID: 42}
	in := &echoMsg{Payload: "hi"}

	payload, err := codec.EncodeValue(h, in)
	if err != nil {
		t.Fatal(err)
	}

	out := &echoMsg{}
	gotHdr, err := codec.DecodeValue(payload, fp, out)
	if err != nil {
		t.Fatal(err)
	}
	if gotHdr.OpID != 42 || out.Payload != "hi" {
		t.Fatalf("round trip mismatch: %+v %q", gotHdr, out.Payload)
	}
}

func TestDecodeValueSchemaMismatch(t *testing.T) {
	h := codec.Header{Fingerprint: 0x1111, OpID: 1}
	payload, err := codec.EncodeValue(h, &echoMsg{Payload: "x"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = codec.DecodeValue(payload, 0x2222, &echoMsg{})
	if !cos.IsErrSchemaMismatch(err) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
