package interfaces

// KeyValueStore is the durable storage the engine keeps its session in.
type KeyValueStore interface {
	// Get returns the value for key and whether it was present.
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	// Delete removes key; a missing key is not an error.
	Delete(key string) error
}
