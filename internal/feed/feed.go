// Package feed holds the client-side state of a message list: rows ordered
// by creation time, appended on insert notifications, patched on update
// notifications, and rendered without hidden rows.
package feed

import (
	"sync"

	"github.com/samber/lo"
)

type Entry interface {
	Key() string
	Hidden() bool
}

type Feed[T Entry] struct {
	mu      sync.RWMutex
	entries []T
}

func New[T Entry](initial ...T) *Feed[T] {
	return &Feed[T]{entries: append([]T(nil), initial...)}
}

// Reset replaces the whole state, as after a full fetch.
func (f *Feed[T]) Reset(entries []T) {
	f.mu.Lock()
	f.entries = append([]T(nil), entries...)
	f.mu.Unlock()
}

// Append adds e at the end. Entries whose key is already present are
// ignored so a row seen by both the initial fetch and the subscription
// shows up once.
func (f *Feed[T]) Append(e T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lo.ContainsBy(f.entries, func(x T) bool { return x.Key() == e.Key() }) {
		return false
	}
	f.entries = append(f.entries, e)
	return true
}

// Patch replaces the entry with the same key and leaves every other entry
// untouched. It reports whether a row matched.
func (f *Feed[T]) Patch(e T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, i, ok := lo.FindIndexOf(f.entries, func(x T) bool { return x.Key() == e.Key() })
	if !ok {
		return false
	}
	f.entries[i] = e
	return true
}

func (f *Feed[T]) All() []T {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]T(nil), f.entries...)
}

// Visible is what gets rendered.
func (f *Feed[T]) Visible() []T {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return lo.Filter(f.entries, func(x T, _ int) bool { return !x.Hidden() })
}

func (f *Feed[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}
