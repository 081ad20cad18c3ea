// Package dedupe tracks identity keys so that only the first occurrence of
// a key is kept.
package dedupe

import "sync"

// Deduper records seen identity keys. The first SeenAndRecord for a key
// returns false; every later call for the same key returns true.
type Deduper interface {
	// SeenAndRecord checks whether key was seen and records it if not.
	SeenAndRecord(key string) bool

	// Dropped reports how many duplicate keys were rejected.
	Dropped() int

	Size() int
}

type keyDeduper struct {
	mu        sync.Mutex
	seen      map[string]struct{}
	normalize func(string) string
	dropped   int
}

// New creates an empty deduper.
func New(opts ...Option) Deduper {
	d := &keyDeduper{}
	capacity := 0
	for _, opt := range opts {
		opt(d, &capacity)
	}
	d.seen = make(map[string]struct{}, capacity)
	return d
}

func (d *keyDeduper) SeenAndRecord(key string) bool {
	if d.normalize != nil {
		key = d.normalize(key)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		d.dropped++
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

func (d *keyDeduper) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *keyDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// FirstWins returns items with later duplicates removed, keeping input order.
// The second return value is the number of dropped items.
func FirstWins[T any](items []T, key func(T) string, opts ...Option) ([]T, int) {
	d := New(append([]Option{WithCapacity(len(items))}, opts...)...)
	out := make([]T, 0, len(items))
	for _, it := range items {
		if d.SeenAndRecord(key(it)) {
			continue
		}
		out = append(out, it)
	}
	return out, d.Dropped()
}
