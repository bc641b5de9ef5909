// Package storage provides the durable key-value store backing the
// offline queue and the gamification state. Writes are crash-consistent:
// a Set that returns nil is durable before callers change logical state.
package storage

// Record is one stored key-value pair.
type Record struct {
	Key   string
	Value []byte
}

// Store is the persistent key-value store contract.
type Store interface {
	// Get returns the stored value and whether the key exists.
	Get(key string) ([]byte, bool, error)
	// Set durably stores value under key, replacing any previous value.
	Set(key string, value []byte) error
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(key string) error
	// List returns all records whose key starts with prefix, ordered by key.
	List(prefix string) ([]Record, error)
	Close() error
}
