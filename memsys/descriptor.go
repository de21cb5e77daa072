package memsys

// Descriptor is the triple {file descriptor, byte size, header offset} of
// spec.md §3's "Shared buffer descriptor" — what a producer advertises to
// a peer over the control stream before passing the fd itself via
// Send (fdpass.go).
type Descriptor struct {
	FD           int
	Size         int64
	HeaderOffset int64
	SlotSize     int
}

// DescriptorOf returns the Descriptor describing r, suitable for handing
// to Send for a transfer to a peer.
func (r *Ring) DescriptorOf() Descriptor {
	return Descriptor{FD: r.fd, Size: r.Size(), HeaderOffset: 0, SlotSize: r.slotSize}
}
