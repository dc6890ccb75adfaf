package dht

import (
	"context"
	"math/rand"
	"time"

	"chordring/internal/ring"
)

// RunMaintenance runs stabilize, fix-fingers, and check-predecessor at
// the configured interval (jittered, as retorded-inf-3200 does) until
// ctx is canceled. None of the three ever terminates the loop on a peer
// error — per §7 they log and continue.
func (n *Node) RunMaintenance(ctx context.Context) {
	jitter := time.Duration(rand.Intn(int(n.cfg.FixInterval) / 4 + 1))
	ticker := time.NewTicker(n.cfg.FixInterval + jitter)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.CheckPredecessor(ctx)
			n.Stabilize(ctx)
			n.FixFinger(ctx)
		}
	}
}

// Stabilize is run on every tick (§4.5): ask the successor for its
// (predecessor, successor_list), possibly adopt a closer successor,
// shift our own successor list, and notify the successor of ourselves.
// An unreachable successor triggers failover by dropping the head of
// the successor list.
func (n *Node) Stabilize(ctx context.Context) {
	n.mu.RLock()
	succ := n.successor
	self := n.self
	mod := n.modulus()
	n.mu.RUnlock()

	var pred *NodeRef
	var succList []NodeRef

	if succ.Addr == self.Addr {
		// Ring of one: asking ourselves over the network is pointless
		// (and Between(x, self, self, ...) is degenerate), so consult our
		// own predecessor directly — this is how a lone node first picks
		// up a node that joined and notified it.
		pred = n.Predecessor()
		succList = n.SuccessorList()
	} else {
		var err error
		pred, succList, err = n.transport.GetPredAndSuccList(ctx, succ)
		if err != nil {
			n.logger.Printf("dht: stabilize: successor %s unreachable: %v", succ.Addr, err)
			n.failoverSuccessor(succ)
			return
		}
	}

	newSucc := succ
	if pred != nil && pred.Addr != self.Addr {
		if succ.Addr == self.Addr {
			// Any other node is a better successor than ourselves.
			newSucc = *pred
		} else if ring.Between(pred.Numeric, self.Numeric, succ.Numeric, mod, false, false) {
			newSucc = *pred
		}
	}

	n.mu.Lock()
	n.successor = newSucc
	n.fingers[0].node = newSucc
	shifted := append([]NodeRef{newSucc}, trimLast(succList)...)
	for len(shifted) < n.cfg.MaxSucc {
		shifted = append(shifted, newSucc)
	}
	n.successorList = shifted[:n.cfg.MaxSucc]
	n.mu.Unlock()

	if newSucc.Addr == self.Addr {
		// Still a ring of one; nothing to notify.
		return
	}
	if err := n.transport.Notify(ctx, newSucc, self); err != nil {
		n.logger.Printf("dht: stabilize: notify of %s failed: %v", newSucc.Addr, err)
	}
}

func trimLast(list []NodeRef) []NodeRef {
	if len(list) == 0 {
		return list
	}
	return list[:len(list)-1]
}

// failoverSuccessor drops the unreachable head of the successor list and
// promotes the next candidate, resetting to a ring-of-one if the list is
// exhausted (§4.5's "degraded" / "solo fallback" transitions).
func (n *Node) failoverSuccessor(dead NodeRef) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.successor.Addr != dead.Addr {
		// Someone already replaced it (e.g. a concurrent notify); nothing to do.
		return
	}

	if len(n.successorList) > 1 {
		n.successorList = n.successorList[1:]
	} else {
		n.successorList = nil
	}

	if len(n.successorList) == 0 {
		n.successor = n.self
		n.successorList = make([]NodeRef, n.cfg.MaxSucc)
		for i := range n.successorList {
			n.successorList[i] = n.self
		}
		n.logger.Printf("dht: successor list exhausted, falling back to ring of one")
	} else {
		n.successor = n.successorList[0]
		n.logger.Printf("dht: failed over to next successor %s", n.successor.Addr)
	}
	n.fingers[0].node = n.successor
}

// Notify handles an incoming notify(candidate) RPC (§4.5): accept
// candidate as our predecessor if we have none, or if it lies strictly
// between our current predecessor and ourselves.
func (n *Node) Notify(candidate NodeRef) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.predecessor == nil {
		n.predecessor = &candidate
		return
	}
	if ring.Between(candidate.Numeric, n.predecessor.Numeric, n.self.Numeric, n.modulus(), false, false) {
		n.predecessor = &candidate
	}
}

// FixFinger advances the round-robin cursor and resolves one finger-
// table slot per tick (§4.5). A successful resolution also propagates to
// higher slots whose target still lies within (self, succ] — an
// opportunistic optimization that never creates a slot violating
// invariant 3, since it only overwrites slots the new successor itself
// already covers.
func (n *Node) FixFinger(ctx context.Context) {
	n.mu.Lock()
	n.nextFinger = (n.nextFinger + 1) % len(n.fingers)
	cursor := n.nextFinger
	target := n.fingers[cursor].start
	current := n.fingers[cursor].node
	n.mu.Unlock()

	found, succ := n.FindSuccessor(target)
	if !found {
		var err error
		found, succ, err = n.Lookup(ctx, target)
		if err != nil || !found {
			return
		}
	}
	if succ.Addr == current.Addr {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.fingers[cursor].node = succ
	mod := n.modulus()
	for i := cursor + 1; i < len(n.fingers); i++ {
		t := n.fingers[i].start
		if ring.Between(t, n.self.Numeric, n.successor.Numeric, mod, false, true) {
			n.fingers[i].node = succ
		} else {
			break
		}
	}
}

// CheckPredecessor pings the predecessor, clearing it on failure so a
// future Notify can accept a replacement (§4.5).
func (n *Node) CheckPredecessor(ctx context.Context) {
	n.mu.RLock()
	pred := n.predecessor
	n.mu.RUnlock()
	if pred == nil {
		return
	}
	if err := n.transport.Ping(ctx, *pred); err != nil {
		n.mu.Lock()
		if n.predecessor != nil && n.predecessor.Addr == pred.Addr {
			n.predecessor = nil
		}
		n.mu.Unlock()
		n.logger.Printf("dht: check-predecessor: %s unreachable, cleared: %v", pred.Addr, err)
	}
}
