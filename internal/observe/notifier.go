// Package observe provides the change-notification hook shared by the
// catalog, job tracker, and roster stores.
package observe

import (
	"slices"
	"sync"
)

// Notifier fans a change signal out to subscribers. Callbacks run
// synchronously on the goroutine that calls Notify and must not block.
type Notifier struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]func()
}

// Subscribe registers fn and returns a function that removes it. Calling the
// returned function more than once is safe.
func (n *Notifier) Subscribe(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	n.mu.Lock()
	if n.subs == nil {
		n.subs = make(map[uint64]func())
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// Notify invokes every subscriber. Stores call it after releasing their own
// lock so subscribers may read a fresh snapshot.
func (n *Notifier) Notify() {
	n.mu.Lock()
	if len(n.subs) == 0 {
		n.mu.Unlock()
		return
	}
	ids := make([]uint64, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	fns := make([]func(), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, n.subs[id])
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
