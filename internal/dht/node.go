// Package dht implements the Chord ring node: identifier-space lookup,
// the three maintenance loops, replicated key placement, and the
// data-plane handlers that sit on top of the local store.
package dht

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"chordring/internal/ring"
	"chordring/internal/store"
)

// Config carries the node-wide constants read from configuration at
// startup (§6).
type Config struct {
	Bits         int // finger_table_sz (m)
	MaxSteps     int
	MaxSucc      int
	FixInterval  time.Duration
	ReplicaCount int // total copies written per key (REPLICATION_COUNT+1); not the wire-advised byte, see dataplane.go
	DefaultTTL   time.Duration
}

type fingerEntry struct {
	start uint64
	node  NodeRef
}

// Node is a single participant in the ring. All mutable ring state is
// serialized behind mu; RPCs never hold it across a network call —
// grounded on retorded-inf-3200's internal/dht.Node, generalized with an
// explicit successorList (teacher only tracked one successor).
type Node struct {
	cfg Config

	mu            sync.RWMutex
	self          NodeRef
	predecessor   *NodeRef
	successor     NodeRef
	successorList []NodeRef
	fingers       []fingerEntry
	nextFinger    int
	joined        bool

	store     *store.Store
	transport Transport
	logger    *log.Logger
}

// New constructs a fresh node at addr in the "fresh" lifecycle state
// (§4.5's state machine) — not yet part of any ring.
func New(addr string, cfg Config, st *store.Store, transport Transport, logger *log.Logger) *Node {
	if cfg.Bits%4 != 0 {
		// finger_table_sz not a multiple of 4 is a programmer-invariant
		// violation: fatal at startup per §7.
		panic(fmt.Sprintf("dht: finger_table_sz must be a multiple of 4, got %d", cfg.Bits))
	}
	if logger == nil {
		logger = log.Default()
	}
	self := HashNodeRef(addr, cfg.Bits)
	n := &Node{
		cfg:       cfg,
		self:      self,
		fingers:   make([]fingerEntry, cfg.Bits),
		store:     st,
		transport: transport,
		logger:    logger,
	}
	for i := range n.fingers {
		n.fingers[i].start = (self.Numeric + (uint64(1) << uint(i))) % n.modulus()
	}
	return n
}

func (n *Node) modulus() uint64 {
	return ring.Modulus(n.cfg.Bits)
}

// Self returns this node's own reference.
func (n *Node) Self() NodeRef {
	return n.self
}

// Create seeds a fresh ring of one: successor and every finger point at
// self, predecessor is empty (§4's "solo" state).
func (n *Node) Create() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.predecessor = nil
	n.successor = n.self
	n.successorList = make([]NodeRef, n.cfg.MaxSucc)
	for i := range n.successorList {
		n.successorList[i] = n.self
	}
	for i := range n.fingers {
		n.fingers[i].node = n.self
	}
	n.joined = true
	n.logger.Printf("dht: created solo ring, id=%s numeric=%d", n.self.ID, n.self.Numeric)
}

// Join asks bootstrapAddr's node for our successor, seeds the finger
// table with it, and transfers the keys in our new range from that
// successor via the two-phase join-handoff (§4.5, §9 open question).
// Joining twice is refused, per §7(e).
func (n *Node) Join(ctx context.Context, bootstrapAddr string) error {
	n.mu.Lock()
	if n.joined {
		n.mu.Unlock()
		return fmt.Errorf("dht: node already joined")
	}
	n.mu.Unlock()

	bootstrap := HashNodeRef(bootstrapAddr, n.cfg.Bits)
	found, succ, err := n.transport.FindSuccessor(ctx, bootstrap, n.self.Numeric)
	if err != nil {
		return fmt.Errorf("dht: join: contacting bootstrap %s: %w", bootstrapAddr, err)
	}
	if !found {
		return fmt.Errorf("dht: join: bootstrap %s could not locate our successor", bootstrapAddr)
	}

	n.mu.Lock()
	n.successor = succ
	n.successorList = make([]NodeRef, n.cfg.MaxSucc)
	for i := range n.successorList {
		n.successorList[i] = succ
	}
	for i := range n.fingers {
		n.fingers[i].node = succ
	}
	n.predecessor = nil
	n.joined = true
	n.mu.Unlock()

	n.logger.Printf("dht: joined via %s, successor=%s", bootstrapAddr, succ.Addr)

	return n.handoffFromSuccessor(ctx, succ)
}

// handoffFromSuccessor implements the join-handoff of §4.5: fetch the
// keys in (predecessor, self] from the successor, persist them locally,
// then confirm so the donor deletes its copies — the two-phase variant
// the spec's open question invites, instead of the original's
// delete-then-hope-the-transfer-landed ordering.
func (n *Node) handoffFromSuccessor(ctx context.Context, succ NodeRef) error {
	keys, values, err := n.transport.GetAll(ctx, succ, n.self.Numeric)
	if err != nil {
		n.logger.Printf("dht: join-handoff: GetAll from %s failed: %v", succ.Addr, err)
		return nil // the range is still reachable through the donor; not fatal to joining
	}
	if len(keys) == 0 {
		return nil
	}
	for i, k := range keys {
		if err := n.store.Put(k, values[i], n.cfg.DefaultTTL); err != nil {
			n.logger.Printf("dht: join-handoff: failed to persist key %s: %v", k, err)
		}
	}
	if err := n.transport.ConfirmHandoff(ctx, succ, keys); err != nil {
		n.logger.Printf("dht: join-handoff: donor %s did not acknowledge handoff confirmation: %v", succ.Addr, err)
	}
	n.logger.Printf("dht: join-handoff: absorbed %d keys from %s", len(keys), succ.Addr)
	return nil
}

// FindSuccessor is the local decision step of the iterative lookup of
// §4.4: if numericID falls in (self, successor], return the successor
// directly; otherwise return the closest preceding finger (or, absent
// one, fall back to the successor — preserved per §9).
func (n *Node) FindSuccessor(numericID uint64) (found bool, node NodeRef) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	mod := n.modulus()
	if ring.Between(numericID, n.self.Numeric, n.successor.Numeric, mod, false, true) {
		return true, n.successor
	}
	return false, n.closestPrecedingNodeLocked(numericID)
}

func (n *Node) closestPrecedingNodeLocked(numericID uint64) NodeRef {
	mod := n.modulus()
	for i := len(n.fingers) - 1; i >= 0; i-- {
		f := n.fingers[i].node
		if f.isZero() {
			continue
		}
		if ring.Between(f.Numeric, n.self.Numeric, numericID, mod, false, false) {
			return f
		}
	}
	// No finger qualifies: preserved fallback to successor (§9).
	return n.successor
}

// Lookup runs the full iterative find_successor procedure of §4.4,
// bouncing off peers via Transport until a node reports the answer or
// MAX_STEPS is exceeded. Callers must treat (false, ...) as a transient
// failure to locate, not "no such key".
func (n *Node) Lookup(ctx context.Context, numericID uint64) (found bool, node NodeRef, err error) {
	found, next := n.FindSuccessor(numericID)
	if found {
		return true, next, nil
	}

	self := n.Self()
	for step := 0; step < n.cfg.MaxSteps; step++ {
		if next.Addr == self.Addr {
			// closestPrecedingNode bottomed out at ourselves: nothing
			// more to bounce off.
			return false, NodeRef{}, nil
		}
		var rpcFound bool
		var rpcNode NodeRef
		rpcFound, rpcNode, err = n.transport.FindSuccessor(ctx, next, numericID)
		if err != nil {
			return false, NodeRef{}, err
		}
		if rpcFound {
			return true, rpcNode, nil
		}
		next = rpcNode
	}
	return false, NodeRef{}, nil
}

// Successor returns the current successor.
func (n *Node) Successor() NodeRef {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.successor
}

// Predecessor returns the current predecessor, if any.
func (n *Node) Predecessor() *NodeRef {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.predecessor == nil {
		return nil
	}
	cp := *n.predecessor
	return &cp
}

// SuccessorList returns a copy of the current successor list.
func (n *Node) SuccessorList() []NodeRef {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]NodeRef, len(n.successorList))
	copy(out, n.successorList)
	return out
}

// FingerTable returns a copy of the current finger table's node refs,
// for diagnostics.
func (n *Node) FingerTable() []NodeRef {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]NodeRef, len(n.fingers))
	for i, f := range n.fingers {
		out[i] = f.node
	}
	return out
}

// GetPredAndSuccList answers the get_pred_and_succlist RPC (§4.3).
func (n *Node) GetPredAndSuccList() (pred *NodeRef, succList []NodeRef) {
	return n.Predecessor(), n.SuccessorList()
}

// Dump renders a human-readable snapshot of this node's state, used for
// startup diagnostics (colored, per §7's ambient-logging allowance).
func (n *Node) Dump() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := fmt.Sprintf("node %s (id=%s numeric=%d)\n", n.self.Addr, n.self.ID, n.self.Numeric)
	if n.predecessor != nil {
		out += fmt.Sprintf("  predecessor: %s (%d)\n", n.predecessor.Addr, n.predecessor.Numeric)
	} else {
		out += "  predecessor: <none>\n"
	}
	out += fmt.Sprintf("  successor:   %s (%d)\n", n.successor.Addr, n.successor.Numeric)
	out += "  fingers:\n"
	for i, f := range n.fingers {
		out += fmt.Sprintf("    [%2d] start=%-8d -> %s (%d)\n", i, f.start, f.node.Addr, f.node.Numeric)
	}
	return out
}
