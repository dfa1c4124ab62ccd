package interfaces

import "errors"

// ErrKeyNotFound is returned when a key does not exist in storage
var ErrKeyNotFound = errors.New("key not found")

// KeyValuePair represents a key-value entry
type KeyValuePair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// KeyValueStorage defines operations for persistent key-value settings.
// Used for runtime-updatable values such as API keys.
type KeyValueStorage interface {
	// Get retrieves a value by key, returning ErrKeyNotFound if missing
	Get(key string) (string, error)

	// Set stores a key-value pair, overwriting any existing value
	Set(key, value string) error

	// Delete removes a key, returning ErrKeyNotFound if missing
	Delete(key string) error

	// List returns all pairs whose key starts with prefix, sorted by key
	List(prefix string) ([]KeyValuePair, error)
}
