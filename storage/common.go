// Package storage defines the embedded key-value store contract the engine
// persists node kinds through: one table per node kind, plus named
// secondary indexes, plus a per-table sequence counter. storage/boltstore
// is the concrete implementation on top of bbolt.
package storage

import (
	"context"

	"github.com/zeebo/errs"
)

// Error is the error class for the storage package.
var Error = errs.Class("storage")

var (
	// ErrKeyNotFound is returned by Get when the key does not exist in the
	// requested table.
	ErrKeyNotFound = errs.Class("key not found")
	// ErrEmptyKey is returned by Put/PutIndex when called with a zero-length key.
	ErrEmptyKey = errs.Class("empty key")
	// ErrNoIndex names the "index not attached" condition. The boltstore
	// implementation never returns it: PutIndex creates a missing index,
	// ScanIndex over one yields nothing, and DeleteIndex on one is a no-op.
	ErrNoIndex = errs.Class("index not attached")
)

// Key and Value are the raw byte types moved across the Store boundary;
// the storage package itself never interprets them, leaving encoding to
// node.Pack/Unpack.
type Key []byte
type Value []byte

// IsZero reports whether k is the empty key.
func (k Key) IsZero() bool { return len(k) == 0 }

// Item is one key/value pair yielded by a Cursor.
type Item struct {
	Key   Key
	Value Value
}

// Cursor streams Items in the order the underlying index or primary table
// maintains them (ascending node id for primary tables, ascending or
// descending index-key order for secondary indexes). Callers must call
// Close when done, even after exhausting Next, to release the transaction
// the cursor holds open.
type Cursor interface {
	// Next advances to the next item and reports whether one was found.
	Next() bool
	// Item returns the item at the cursor's current position. Valid only
	// after a call to Next that returned true.
	Item() Item
	// Err returns the first error encountered during iteration, if any.
	Err() error
	// Close releases the cursor's underlying transaction.
	Close() error
}

// Store is the storage engine contract. One primary table exists per node
// kind, named by convention (see boltstore.AllTables); named secondary
// indexes are attached separately and keyed by their own composite byte
// key, mapping to the primary table's node id as their value.
type Store interface {
	// Put writes value under key in the named primary table.
	Put(ctx context.Context, table string, key Key, value Value) error
	// Get reads the value stored under key in the named primary table.
	// Returns ErrKeyNotFound if absent.
	Get(ctx context.Context, table string, key Key) (Value, error)
	// Delete removes key from the named primary table. Deleting an absent
	// key is not an error.
	Delete(ctx context.Context, table string, key Key) error
	// NextSequence allocates and returns the next monotonically increasing
	// id for the named table.
	NextSequence(ctx context.Context, table string) (uint64, error)
	// SetSequence forces the named table's sequence counter to at least seq,
	// used by migrate to reconcile a counter against ids already present in
	// the table.
	SetSequence(ctx context.Context, table string, seq uint64) error
	// Scan returns a Cursor over every row of the named primary table, in
	// ascending key order (reverse=true for descending).
	Scan(ctx context.Context, table string, reverse bool) (Cursor, error)

	// PutIndex writes an index entry (indexKey -> nodeID) into the named
	// secondary index.
	PutIndex(ctx context.Context, index string, indexKey Key, nodeID uint64) error
	// DeleteIndex removes the index entry indexKey from the named
	// secondary index.
	DeleteIndex(ctx context.Context, index string, indexKey Key) error
	// ScanIndex returns a Cursor over the named secondary index's entries,
	// whose Item.Value is the 8-byte big-endian node id, in index-key
	// order (reverse=true for descending — used by hits/xfer/visits-
	// descending report indexes).
	ScanIndex(ctx context.Context, index string, reverse bool) (Cursor, error)
	// GetByValue looks up a single index entry by its exact key, returning
	// the node id it maps to. Unlike ScanIndex this is a point lookup, used
	// to resolve a swapped-out node's id from its lookup value without
	// walking a cursor. ok is false if indexKey has no entry.
	GetByValue(ctx context.Context, index string, indexKey Key) (nodeID uint64, ok bool, err error)
	// IndexSize reports how many entries the named index currently holds,
	// used by Attach to decide whether an empty index needs rebuilding.
	IndexSize(ctx context.Context, index string) (int, error)

	// Attach ensures the named index exists; if rebuild is true, or the
	// index is empty, it is rebuilt from scratch by scanning primaryTable
	// through rebuildFn.
	Attach(ctx context.Context, index, primaryTable string, rebuild bool, rebuildFn func(key, value []byte) (indexKey Key, nodeID uint64, ok bool)) error
	// Detach drops a named index entirely.
	Detach(ctx context.Context, index string) error

	// Truncate empties every primary table, every index and resets every
	// sequence counter.
	Truncate(ctx context.Context) error
	// Rollover closes the current file, renames it with the given suffix,
	// and reopens an empty store at the original path.
	Rollover(ctx context.Context, suffix string) error

	// Sync flushes dirty pages to disk; used by trickle mode.
	Sync() error
	// Close releases the underlying file handle.
	Close() error

	// Compact rewrites the store file to reclaim space freed by deleted
	// keys and index churn, swapping it in atomically. Every bucket and
	// its keys survive; sequence counters and index attachments are
	// unaffected.
	Compact(ctx context.Context) error
}
