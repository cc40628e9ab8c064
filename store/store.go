package store

import "errors"

// Collection names a namespace of keys. The set is closed at this layer;
// implementations may lazily create collections on first write.
type Collection string

const (
	// CollectionGDD holds game design documents.
	CollectionGDD Collection = "gdd"
	// CollectionAssets holds asset specifications.
	CollectionAssets Collection = "assets"
	// CollectionCode holds generated code artifacts.
	CollectionCode Collection = "code"
	// CollectionWorkflows holds workflow definitions.
	CollectionWorkflows Collection = "workflows"
	// CollectionConfigs holds agent configurations.
	CollectionConfigs Collection = "configs"
)

// ErrNotFound is returned when a collection/key pair does not exist in the
// underlying store.
var ErrNotFound = errors.New("store: key not found")

// Store is the durable key/value capability consumed by the orchestration
// engine. Implementations must be safe for concurrent use; writes to the
// same key follow last-write-wins.
type Store interface {
	// Put stores (or overwrites) the value under collection/key.
	Put(collection Collection, key string, value []byte) error

	// Get returns the stored value or ErrNotFound.
	Get(collection Collection, key string) ([]byte, error)

	// List returns all keys present in the collection. The slice is a
	// snapshot safe for caller mutation.
	List(collection Collection) ([]string, error)
}
