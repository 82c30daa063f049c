// Package hashtable implements the chained hash table used to hold
// in-memory aggregation nodes, including the swap-out (spill) protocol
// that lets the engine bound memory usage while never evicting a node
// that is still referenced.
package hashtable

import "hash/fnv"

// Size tiers for small, medium and large aggregation tables.
const (
	Small  = 1024
	Medium = 16384
	Large  = 1048576
)

// Node is the minimal contract a value must satisfy to live in a Table: a
// stable string key used for hashing and equality.
type Node interface {
	Key() string
}

// Evictor decides whether a node may be swapped out and persists it when
// it can. Evaluate is called first; Write is only called if Evaluate
// returned true. If Write returns false, SwapOut stops scanning further
// buckets — a recoverable, non-fatal condition.
type Evictor[N Node] interface {
	Evaluate(n N) bool
	Write(n N) bool
}

type entry[N Node] struct {
	key  string
	hash uint64
	node N
	next *entry[N]
}

// Table is a fixed-bucket-count chained hash table over nodes of type N.
type Table[N Node] struct {
	buckets    []*entry[N]
	count      int
	emptyCnt   int
	evictor    Evictor[N]
	cleared    bool
	swappedOut bool
}

// New returns a Table with numBuckets buckets (pick one of Small, Medium,
// Large per the kind's expected cardinality).
func New[N Node](numBuckets int) *Table[N] {
	return &Table[N]{
		buckets:  make([]*entry[N], numBuckets),
		emptyCnt: numBuckets,
		cleared:  true,
	}
}

// Size returns the number of nodes currently held in memory.
func (t *Table[N]) Size() int { return t.count }

// Buckets returns the bucket count.
func (t *Table[N]) Buckets() int { return len(t.buckets) }

// EmptyBuckets returns the number of buckets with no chain.
func (t *Table[N]) EmptyBuckets() int { return t.emptyCnt }

// Cleared reports whether this table has never held any entries, or was
// last reset by Clear — distinct from merely being empty because
// everything swapped out (see SwappedOut).
func (t *Table[N]) Cleared() bool { return t.cleared }

// SwappedOut reports whether some rows were written out and evicted since
// the last Clear; when true, callers must consult the storage engine
// before concluding a key is absent from memory.
func (t *Table[N]) SwappedOut() bool { return t.swappedOut }

// SetSwappedOut overrides the flag directly (used by restore when
// attaching a table in memory-mode-off without populating it).
func (t *Table[N]) SetSwappedOut(v bool) { t.swappedOut = v }

// SetEvictor installs the swap-out callback pair.
func (t *Table[N]) SetEvictor(e Evictor[N]) { t.evictor = e }

func hashKey(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

func (t *Table[N]) bucketIndex(hash uint64) int {
	return int(hash % uint64(len(t.buckets)))
}

// Find returns the node stored under key, and whether it was found.
func (t *Table[N]) Find(key string) (N, bool) {
	hash := hashKey(key)
	idx := t.bucketIndex(hash)
	for e := t.buckets[idx]; e != nil; e = e.next {
		if e.hash == hash && e.key == key {
			return e.node, true
		}
	}
	var zero N
	return zero, false
}

// Put inserts node at the head of its bucket's chain. Put does not check
// for an existing entry under the same key; callers that want
// find-or-create semantics should Find first.
func (t *Table[N]) Put(node N) {
	key := node.Key()
	hash := hashKey(key)
	idx := t.bucketIndex(hash)
	if t.buckets[idx] == nil {
		t.emptyCnt--
	}
	t.buckets[idx] = &entry[N]{key: key, hash: hash, node: node, next: t.buckets[idx]}
	t.count++
	t.cleared = false
}

// Remove deletes the entry stored under key, if present, and reports
// whether anything was removed.
func (t *Table[N]) Remove(key string) bool {
	hash := hashKey(key)
	idx := t.bucketIndex(hash)
	var prev *entry[N]
	for e := t.buckets[idx]; e != nil; e = e.next {
		if e.hash == hash && e.key == key {
			if prev == nil {
				t.buckets[idx] = e.next
			} else {
				prev.next = e.next
			}
			if t.buckets[idx] == nil {
				t.emptyCnt++
			}
			t.count--
			return true
		}
		prev = e
	}
	return false
}

// Clear empties every bucket and resets the Cleared/SwappedOut flags to
// their "freshly initialized" state.
func (t *Table[N]) Clear() {
	for i := range t.buckets {
		t.buckets[i] = nil
	}
	t.count = 0
	t.emptyCnt = len(t.buckets)
	t.cleared = true
	t.swappedOut = false
}

// Iterator walks every node in bucket-then-chain order. It tolerates the
// current node being removed mid-walk, since it captures the next pointer
// before calling back into caller code.
type Iterator[N Node] struct {
	t     *Table[N]
	idx   int
	next  *entry[N]
	item  N
	valid bool
}

// Iterate returns a fresh Iterator positioned before the first entry.
func (t *Table[N]) Iterate() *Iterator[N] {
	return &Iterator[N]{t: t}
}

// Next advances to the next node and returns whether one was found.
func (it *Iterator[N]) Next() bool {
	if it.next != nil {
		it.item = it.next.node
		it.next = it.next.next
		it.valid = true
		return true
	}
	for it.idx < len(it.t.buckets) {
		e := it.t.buckets[it.idx]
		it.idx++
		if e != nil {
			it.item = e.node
			it.next = e.next
			it.valid = true
			return true
		}
	}
	it.valid = false
	return false
}

// Item returns the node at the iterator's current position. Valid only
// after a call to Next that returned true.
func (it *Iterator[N]) Item() N { return it.item }

// SwapOut scans every bucket; for each node the evictor's Evaluate is
// called, and if it returns true, Write is called and, on success, the
// node is unlinked from memory. If Write returns false the scan stops
// early and SwapOut returns the count written so far. SwapOut is a no-op
// if no evictor has been installed.
func (t *Table[N]) SwapOut() int {
	if t.evictor == nil {
		return 0
	}
	written := 0
	for i := range t.buckets {
		var prev *entry[N]
		e := t.buckets[i]
		for e != nil {
			next := e.next
			if t.evictor.Evaluate(e.node) {
				if !t.evictor.Write(e.node) {
					return written
				}
				if prev == nil {
					t.buckets[i] = next
				} else {
					prev.next = next
				}
				if t.buckets[i] == nil {
					t.emptyCnt++
				}
				t.count--
				written++
				t.swappedOut = true
			} else {
				prev = e
			}
			e = next
		}
	}
	return written
}
