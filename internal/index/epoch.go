package index

import "sync"

// Epoch is the scan generation counter. Background work tagged with an older
// value must stop producing effects once a newer scan has started.
type Epoch struct {
	mutex   sync.RWMutex
	current uint64
}

// Next starts a new generation and returns it. It waits for running Guard calls to finish.
func (epoch *Epoch) Next() uint64 {
	epoch.mutex.Lock()
	defer epoch.mutex.Unlock()
	epoch.current++
	return epoch.current
}

// Current returns the active generation.
func (epoch *Epoch) Current() uint64 {
	epoch.mutex.RLock()
	defer epoch.mutex.RUnlock()
	return epoch.current
}

// IsCurrent reports whether value is the active generation.
func (epoch *Epoch) IsCurrent(value uint64) bool {
	return epoch.Current() == value
}

// Guard runs effect only while value is the active generation and keeps the
// generation from advancing until effect returns. effect must not call Next.
func (epoch *Epoch) Guard(value uint64, effect func()) bool {
	epoch.mutex.RLock()
	defer epoch.mutex.RUnlock()
	if epoch.current != value {
		return false
	}
	effect()
	return true
}
