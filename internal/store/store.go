// Package store implements the authenticated, expiring local key-value
// map each ring node keeps for the keys it is responsible for.
package store

import (
	"crypto/hmac"
	"crypto/sha256"
	"io"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"

	"chordring/internal/ring"
)

// Backend is the seam a real on-disk storage engine would satisfy; the
// store's authentication and expiry logic is backend-agnostic. Only an
// in-memory backend ships with this module — the on-disk engine is an
// external collaborator per the specification.
type Backend interface {
	Put(key string, entry Entry)
	Get(key string) (Entry, bool)
	Delete(keys []string)
	Range(match func(numericID uint64) bool) (keys []string, entries []Entry)
}

// Entry is what a Backend stores: the raw value, its expiry time, and
// the authentication tag computed over the raw bytes.
type Entry struct {
	Value     []byte
	NumericID uint64
	ExpiresAt time.Time
	Tag       []byte
}

// Store is the authenticated, expiring key-value map of §4.2. Keys are
// hex identifier strings; the tag is verified on every read.
type Store struct {
	backend Backend
	secret  []byte
	bits    int
}

// New builds a Store over backend, deriving a per-node HMAC subkey from
// masterSecret (SEC_KEY, or the node's own id when unset) via HKDF with
// the node's hex id as salt, so the same master secret produces a
// different tag key on every node in the ring.
func New(backend Backend, masterSecret string, nodeID string, bits int) (*Store, error) {
	kdf := hkdf.New(sha256.New, []byte(masterSecret), []byte(nodeID), []byte("chordring-store-tag"))
	subkey := make([]byte, sha256.Size)
	if _, err := io.ReadFull(kdf, subkey); err != nil {
		return nil, err
	}
	return &Store{backend: backend, secret: subkey, bits: bits}, nil
}

func (s *Store) tag(value []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(value)
	return mac.Sum(nil)
}

// Put stores value under key, stamping an expiry at now+ttl and attaching
// a fresh authentication tag.
func (s *Store) Put(key string, value []byte, ttl time.Duration) error {
	numericID := hexToNumeric(key, s.bits)
	s.backend.Put(key, Entry{
		Value:     append([]byte(nil), value...),
		NumericID: numericID,
		ExpiresAt: time.Now().Add(ttl),
		Tag:       s.tag(value),
	})
	return nil
}

// PutRaw stores a pre-built entry verbatim, without recomputing its tag.
// Nothing in this module calls it; join-handoff re-stores values with Put.
func (s *Store) PutRaw(key string, entry Entry) {
	s.backend.Put(key, entry)
}

// Get fetches value, returning (nil, false) if the key is absent,
// expired, or its stored tag doesn't match a freshly computed one.
func (s *Store) Get(key string) ([]byte, bool) {
	entry, ok := s.backend.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		return nil, false
	}
	if !hmac.Equal(entry.Tag, s.tag(entry.Value)) {
		return nil, false
	}
	return entry.Value, true
}

// GetEntry returns the raw entry (including its tag) of an unexpired key
// without verifying the tag. Nothing in this module calls it; join-handoff
// reads values through Range.
func (s *Store) GetEntry(key string) (Entry, bool) {
	entry, ok := s.backend.Get(key)
	if !ok || time.Now().After(entry.ExpiresAt) {
		return Entry{}, false
	}
	return entry, true
}

// Delete removes a batch of keys.
func (s *Store) Delete(keys []string) {
	s.backend.Delete(keys)
}

// Range returns all entries whose numeric id lies on the left-exclusive,
// right-inclusive arc (left, right], per §4.1/§4.5's join-handoff contract.
func (s *Store) Range(left, right uint64) (keys []string, values [][]byte) {
	mod := ring.Modulus(s.bits)
	matched, entries := s.backend.Range(func(numericID uint64) bool {
		return ring.Between(numericID, left, right, mod, false, true)
	})
	for _, e := range entries {
		values = append(values, e.Value)
	}
	return matched, values
}

func hexToNumeric(hexKey string, bits int) uint64 {
	id, err := strconv.ParseUint(hexKey, 16, 64)
	if err != nil {
		return 0
	}
	return id % ring.Modulus(bits)
}

// memoryBackend is the default in-process Backend implementation.
type memoryBackend struct {
	mu   sync.RWMutex
	data map[string]Entry
}

// NewMemoryBackend returns a Backend that keeps everything in a
// mutex-guarded map; suitable for a single process, not for durability.
func NewMemoryBackend() Backend {
	return &memoryBackend{data: make(map[string]Entry)}
}

func (m *memoryBackend) Put(key string, entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = entry
}

func (m *memoryBackend) Get(key string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[key]
	return e, ok
}

func (m *memoryBackend) Delete(keys []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
}

func (m *memoryBackend) Range(match func(numericID uint64) bool) ([]string, []Entry) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	var entries []Entry
	for k, e := range m.data {
		if match(e.NumericID) {
			keys = append(keys, k)
			entries = append(entries, e)
		}
	}
	return keys, entries
}
