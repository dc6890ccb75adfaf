package dht

import (
	"context"
	"fmt"
	"time"

	"chordring/internal/ring"
)

// nextInChain applies id_{i+1} = hash(id_i): re-hashing the hex string of
// the current identifier, per §4.4's replica chain.
func (n *Node) nextInChain(hexID string) ring.ID {
	return ring.HashID(hexID, n.cfg.Bits)
}

// replicaChain computes the cfg.ReplicaCount (REPLICATION_COUNT+1)
// successive identifiers id_0 = hash(key), id_{i+1} = hash(id_i) of
// §4.4's replica chain. The wire "replication" byte a client may send is
// advisory only — the configured ReplicaCount always governs how many
// links are written, per the open question this repo resolves in favor
// of server-side trust.
func (n *Node) replicaChain(key string) []ring.ID {
	chain := make([]ring.ID, n.cfg.ReplicaCount)
	cur := ring.HashID(key, n.cfg.Bits)
	for i := 0; i < n.cfg.ReplicaCount; i++ {
		chain[i] = cur
		cur = n.nextInChain(cur.Hex)
	}
	return chain
}

// PutKey is the client-facing entry point of §4.4: place value at the
// owner of hash(key), then walk the replica chain placing it at each
// successive owner too. Every replica link is looked up independently —
// a lookup failure on one link does not abort the others.
func (n *Node) PutKey(ctx context.Context, key string, value []byte) error {
	var firstErr error
	for _, id := range n.replicaChain(key) {
		if err := n.placeAt(ctx, id.Numeric, id.Hex, value); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (n *Node) placeAt(ctx context.Context, numericID uint64, key string, value []byte) error {
	found, owner := n.FindSuccessor(numericID)
	if !found {
		var err error
		found, owner, err = n.Lookup(ctx, numericID)
		if err != nil {
			return fmt.Errorf("dht: put %s: lookup failed: %w", key, err)
		}
	}
	if !found {
		return fmt.Errorf("dht: put %s: no owner located within the hop bound", key)
	}
	if owner.Addr == n.self.Addr {
		n.SaveKey(key, value, n.cfg.DefaultTTL)
		return nil
	}
	return n.transport.SaveKey(ctx, owner, key, value, n.cfg.DefaultTTL)
}

// SaveKey is the RPCHandler method a peer's PutKey eventually lands on:
// persist value under key in the local store.
func (n *Node) SaveKey(key string, value []byte, ttl time.Duration) bool {
	if err := n.store.Put(key, value, ttl); err != nil {
		n.logger.Printf("dht: save-key %s: %v", key, err)
		return false
	}
	return true
}

// GetKey is the client-facing read of §4.4: locate the owner of
// hash(key) and start a bounded probe down the replica chain, beginning
// at the primary (is_replica=false, ttl=ReplicaCount-1 remaining hops).
func (n *Node) GetKey(ctx context.Context, key string) ([]byte, bool, error) {
	id := ring.HashID(key, n.cfg.Bits)

	found, owner := n.FindSuccessor(id.Numeric)
	if !found {
		var err error
		found, owner, err = n.Lookup(ctx, id.Numeric)
		if err != nil {
			return nil, false, fmt.Errorf("dht: get %s: lookup failed: %w", key, err)
		}
	}
	if !found {
		return nil, false, nil
	}

	remaining := n.cfg.ReplicaCount - 1
	if owner.Addr == n.self.Addr {
		value, ok := n.FindKey(id.Hex, remaining, false)
		return value, ok, nil
	}
	value, ok, err := n.transport.FindKey(ctx, owner, id.Hex, remaining, false)
	if err != nil {
		return nil, false, fmt.Errorf("dht: get %s: %w", key, err)
	}
	return value, ok, nil
}

// FindKey is the RPCHandler method of §4.6: check the local store first;
// on a miss, and only when this call is the primary probe (not itself a
// replica hop), walk the rest of the replica chain across its own full
// ttl budget, one id at a time, regardless of whether the previous hop
// was resolved locally or delegated to a peer. is_replica callers never
// walk further themselves — delegating a single link downstream only
// asks that peer to check its own store, never to continue the chain on
// our behalf, per the spec's hop-TTL rule.
func (n *Node) FindKey(key string, ttl int, isReplica bool) ([]byte, bool) {
	if value, ok := n.store.Get(key); ok {
		return value, true
	}
	if isReplica {
		return nil, false
	}

	current := key
	for remaining := ttl; remaining > 0; remaining-- {
		next := n.nextInChain(current)

		found, owner := n.FindSuccessor(next.Numeric)
		if !found {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			var err error
			found, owner, err = n.Lookup(ctx, next.Numeric)
			cancel()
			if err != nil {
				return nil, false
			}
		}
		if !found {
			return nil, false
		}

		if owner.Addr == n.self.Addr {
			if value, ok := n.store.Get(next.Hex); ok {
				return value, true
			}
			current = next.Hex
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		value, ok, err := n.transport.FindKey(ctx, owner, next.Hex, 0, true)
		cancel()
		if err != nil {
			return nil, false
		}
		if ok {
			return value, true
		}
		current = next.Hex
	}
	return nil, false
}

// GetAll answers the join-handoff range request of §4.5: every local key
// whose numeric id falls in (predecessor, nodeNumericID], i.e. the slice
// of our range the joining node at nodeNumericID now owns. Keys are not
// deleted here — that only happens once the joiner calls ConfirmHandoff,
// so a joiner that never confirms leaves the donor's copy intact.
func (n *Node) GetAll(nodeNumericID uint64) (keys []string, values [][]byte) {
	n.mu.RLock()
	var left uint64
	if n.predecessor != nil {
		left = n.predecessor.Numeric
	} else {
		left = n.self.Numeric
	}
	n.mu.RUnlock()
	return n.store.Range(left, nodeNumericID)
}

// ConfirmHandoff completes the two-phase join-handoff: the joiner has
// durably persisted keys, so the donor may now delete its copies.
func (n *Node) ConfirmHandoff(keys []string) error {
	n.store.Delete(keys)
	n.logger.Printf("dht: join-handoff: confirmed, released %d keys", len(keys))
	return nil
}
