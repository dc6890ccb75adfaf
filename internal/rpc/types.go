// Package rpc implements the peer-to-peer RPC surface of §4.3: an
// mTLS-secured HTTP transport carrying JSON bodies between ring nodes,
// grounded on retorded-inf-3200's internal/transport package.
package rpc

import "chordring/internal/dht"

// nodeRefWire is the wire form of dht.NodeRef.
type nodeRefWire struct {
	Addr    string `json:"addr"`
	ID      string `json:"id"`
	Numeric uint64 `json:"numeric"`
}

func toWire(n dht.NodeRef) nodeRefWire {
	return nodeRefWire{Addr: n.Addr, ID: n.ID, Numeric: n.Numeric}
}

func fromWire(w nodeRefWire) dht.NodeRef {
	return dht.NodeRef{Addr: w.Addr, ID: w.ID, Numeric: w.Numeric}
}

type findSuccessorRequest struct {
	NumericID uint64 `json:"numeric_id"`
}

type findSuccessorResponse struct {
	Found bool        `json:"found"`
	Node  nodeRefWire `json:"node"`
}

type getPredAndSuccListResponse struct {
	Pred     *nodeRefWire  `json:"pred,omitempty"`
	SuccList []nodeRefWire `json:"succ_list"`
}

type notifyRequest struct {
	Self nodeRefWire `json:"self"`
}

type saveKeyRequest struct {
	Key        string `json:"key"`
	Value      []byte `json:"value"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type findKeyRequest struct {
	Key       string `json:"key"`
	TTL       int    `json:"ttl"`
	IsReplica bool   `json:"is_replica"`
}

type findKeyResponse struct {
	Value []byte `json:"value,omitempty"`
	Found bool   `json:"found"`
}

type getAllRequest struct {
	NodeNumericID uint64 `json:"node_numeric_id"`
}

type getAllResponse struct {
	Keys   []string `json:"keys"`
	Values [][]byte `json:"values"`
}

type confirmHandoffRequest struct {
	Keys []string `json:"keys"`
}

// errorResponse is the body written alongside any non-2xx status.
type errorResponse struct {
	Error string `json:"error"`
}
