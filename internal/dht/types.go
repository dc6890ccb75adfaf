package dht

import "chordring/internal/ring"

// NodeRef identifies a node on the ring: its wire address and its
// identifier, in both representations (§3) — always carried together,
// reconstructed from a bare address only at the point a peer is first
// learned (HashNodeRef below).
type NodeRef struct {
	Addr    string
	ID      string
	Numeric uint64
}

// HashNodeRef derives a NodeRef from a raw "host:port" address. This is
// the one place a NodeRef is built from an address alone.
func HashNodeRef(addr string, bits int) NodeRef {
	id := ring.HashID(addr, bits)
	return NodeRef{Addr: addr, ID: id.Hex, Numeric: id.Numeric}
}

func (n NodeRef) isZero() bool {
	return n.Addr == ""
}
