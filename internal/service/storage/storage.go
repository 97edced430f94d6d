package storage

// Storage keeps converted models in memory between persistence runs. Set
// marks an entry dirty until the Redis cache has seen it; GetDirty and
// ClearDirty drive that hand-off.
type Storage[K comparable, V any] interface {
	Set(key K, value V)
	Get(key K) (V, bool)
	// Delete drops the entry along with its dirty flag
	Delete(key K) bool
	GetAll() map[K]V
	GetAllValues() []V
	// GetDirty returns the entries written since their last ClearDirty
	GetDirty() map[K]V
	ClearDirty(keys []K)
	// ForEach stops when fn returns false
	ForEach(fn func(key K, value V) bool)
	Count() int
}
