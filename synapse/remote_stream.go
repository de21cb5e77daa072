package synapse

import (
	"time"

	"github.com/cellmesh/cell/codec"
	"github.com/cellmesh/cell/transport/remote"
)

// remoteStream adapts a transport/remote.Stream (already past its target
// header) to the Stream interface, using the same length-prefixed framing
// as the local path — spec.md §4.3: "payloads use the exact same frame
// format as local transport."
type remoteStream struct {
	stream remote.Stream
}

func (r *remoteStream) Roundtrip(deadline time.Time, req []byte) ([]byte, error) {
	_ = deadline // quic-go streams take their deadlines via SetDeadline on the underlying quic.Stream, not exposed through this narrow interface
	if err := codec.WriteFrame(r.stream, req); err != nil {
		return nil, err
	}
	return codec.ReadFrame(r.stream, codec.DefaultMaxFrameBytes)
}

func (r *remoteStream) Close() error { return r.stream.Close() }
