package index

import "sync"

// ExportCache holds the full text of the most recent export.
type ExportCache struct {
	mutex   sync.RWMutex
	content string
	present bool
}

// Store replaces the cached export.
func (cache *ExportCache) Store(content string) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	cache.content = content
	cache.present = true
}

// Load returns the cached export and whether one exists.
func (cache *ExportCache) Load() (string, bool) {
	cache.mutex.RLock()
	defer cache.mutex.RUnlock()
	return cache.content, cache.present
}
