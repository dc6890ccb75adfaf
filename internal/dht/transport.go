package dht

import (
	"context"
	"time"
)

// Transport is the peer RPC surface a Node uses to talk to other nodes
// (§4.3). Every method may fail with "peer unreachable", reported as an
// error value — never a panic — leaving timeout/retry policy to the
// caller. Grounded on retorded-inf-3200's internal/dht.Transport
// interface, extended from 4 to the spec's 7 methods plus the two-phase
// join-handoff confirmation.
type Transport interface {
	FindSuccessor(ctx context.Context, target NodeRef, numericID uint64) (found bool, node NodeRef, err error)
	GetPredAndSuccList(ctx context.Context, target NodeRef) (pred *NodeRef, succList []NodeRef, err error)
	Ping(ctx context.Context, target NodeRef) error
	Notify(ctx context.Context, target NodeRef, self NodeRef) error
	SaveKey(ctx context.Context, target NodeRef, key string, value []byte, ttl time.Duration) error
	FindKey(ctx context.Context, target NodeRef, key string, ttl int, isReplica bool) (value []byte, found bool, err error)
	GetAll(ctx context.Context, target NodeRef, nodeNumericID uint64) (keys []string, values [][]byte, err error)
	ConfirmHandoff(ctx context.Context, target NodeRef, keys []string) error
}

// RPCHandler is what an RPC server dispatches incoming peer requests to.
// *Node implements it. Mirrors retorded-inf-3200's dht.INode, extended
// to the spec's full data-plane and join-handoff surface.
type RPCHandler interface {
	FindSuccessor(numericID uint64) (found bool, node NodeRef)
	GetPredAndSuccList() (pred *NodeRef, succList []NodeRef)
	Notify(candidate NodeRef)
	SaveKey(key string, value []byte, ttl time.Duration) bool
	FindKey(key string, ttl int, isReplica bool) ([]byte, bool)
	GetAll(nodeNumericID uint64) (keys []string, values [][]byte)
	ConfirmHandoff(keys []string) error
	Self() NodeRef
}
