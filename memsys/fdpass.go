//go:build !windows

package memsys

import (
	"encoding/binary"
	"fmt"
	"net"
	"syscall"
)

// Send passes a shared-ring's file descriptor to a peer over an already-
// connected Unix stream socket, using SCM_RIGHTS ancillary data (spec.md
// §4.2: "returns the file descriptor to the peer over the stream socket
// (SCM_RIGHTS or platform equivalent)"). A small fixed header (slot size,
// total size) precedes the control message so the peer knows how to map
// the fd before it arrives.
func Send(conn *net.UnixConn, d Descriptor) error {
	var hdr [16]byte
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(d.Size))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(d.SlotSize))
	rights := syscall.UnixRights(d.FD)
	_, _, err := conn.WriteMsgUnix(hdr[:], rights, nil)
	if err != nil {
		return fmt.Errorf("memsys: send fd: %w", err)
	}
	return nil
}

// Recv receives a Descriptor and its accompanying file descriptor sent by
// Send, duplicating the fd into this process' descriptor table.
func Recv(conn *net.UnixConn) (Descriptor, error) {
	buf := make([]byte, 16)
	oob := make([]byte, syscall.CmsgSpace(4))
	n, oobn, _, _, err := conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return Descriptor{}, fmt.Errorf("memsys: recv fd: %w", err)
	}
	if n < 16 {
		return Descriptor{}, fmt.Errorf("memsys: recv fd: short header (%d bytes)", n)
	}
	msgs, err := syscall.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return Descriptor{}, fmt.Errorf("memsys: parse control message: %w", err)
	}
	if len(msgs) == 0 {
		return Descriptor{}, fmt.Errorf("memsys: recv fd: no control message")
	}
	fds, err := syscall.ParseUnixRights(&msgs[0])
	if err != nil {
		return Descriptor{}, fmt.Errorf("memsys: parse rights: %w", err)
	}
	if len(fds) == 0 {
		return Descriptor{}, fmt.Errorf("memsys: recv fd: no rights attached")
	}
	size := int64(binary.LittleEndian.Uint64(buf[0:8]))
	slotSize := int(binary.LittleEndian.Uint32(buf[8:12]))
	return Descriptor{FD: fds[0], Size: size, SlotSize: slotSize}, nil
}
