package goldrec

import (
	"sync"

	"github.com/agentstation/goldrec/pkg/record"
)

// RecordAddedHook fires after a new key is inserted into the store.
type RecordAddedHook func(key record.Key, rec *record.Record)

// RecordUpdatedHook fires after a merge replaces the entry for a key.
type RecordUpdatedHook func(key record.Key, old, updated *record.Record)

// RecordRemovedHook fires after an entry is removed.
type RecordRemovedHook func(key record.Key, old *record.Record)

// hookSet fans store change notifications out to registered callbacks.
// It satisfies the store's Hook interface.
type hookSet struct {
	mu      sync.RWMutex
	added   []RecordAddedHook
	updated []RecordUpdatedHook
	removed []RecordRemovedHook
}

func (h *hookSet) addAdded(fn RecordAddedHook) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.added = append(h.added, fn)
}

func (h *hookSet) addUpdated(fn RecordUpdatedHook) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updated = append(h.updated, fn)
}

func (h *hookSet) addRemoved(fn RecordRemovedHook) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = append(h.removed, fn)
}

// OnAdd implements the store hook.
func (h *hookSet) OnAdd(key record.Key, rec *record.Record) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.added {
		fn(key, rec)
	}
}

// OnUpdate implements the store hook.
func (h *hookSet) OnUpdate(key record.Key, old, updated *record.Record) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.updated {
		fn(key, old, updated)
	}
}

// OnRemove implements the store hook.
func (h *hookSet) OnRemove(key record.Key, old *record.Record) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.removed {
		fn(key, old)
	}
}

// OnClear implements the store hook.
func (h *hookSet) OnClear() {}
