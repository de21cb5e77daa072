package codec_test

import (
	"bytes"
	"testing"

	"github.com/cellmesh/cell/codec"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := []byte("hello cell")
	if err := codec.WriteFrame(&buf, want); err != nil {
		t.Fatal(err)
	}
	got, err := codec.ReadFrame(&buf, codec.DefaultMaxFrameBytes)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	if err := codec.WriteFrame(&buf, make([]byte, 128)); err != nil {
		t.Fatal(err)
	}
	if _, err := codec.ReadFrame(&buf, 64); err == nil {
		t.Fatal("expected truncation error for oversized frame")
	}
}

func TestFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := codec.WriteFrame(&buf, []byte("short body")); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:6] // length prefix + partial body
	if _, err := codec.ReadFrame(bytes.NewReader(truncated), codec.DefaultMaxFrameBytes); err == nil {
		t.Fatal("expected truncation error")
	}
}

func TestGenomeRequestMagic(t *testing.T) {
	payload := codec.EncodeGenomeRequest()
	if !codec.IsGenomeRequest(payload) {
		t.Fatal("expected magic payload to be recognized")
	}
	if codec.IsGenomeRequest([]byte("not it")) {
		t.Fatal("unexpected recognition of non-magic payload")
	}
}
