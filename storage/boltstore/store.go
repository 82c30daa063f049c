// Package boltstore implements storage.Store on go.etcd.io/bbolt, the
// maintained fork of github.com/boltdb/bolt — a B-tree-backed,
// transactional, process-local, single-file store. One bolt bucket per
// node kind acts as the primary table, keyed by big-endian node id; named
// secondary indexes live in their own "idx:"-prefixed buckets, keyed by a
// caller-supplied composite byte key mapping to an 8-byte big-endian node
// id.
package boltstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/IzzySoft/StoneStepsWebalizer/storage"
)

var mon = monkit.Package()

const defaultOpenTimeout = 1 * time.Second

// DB is a storage.Store backed by a single bbolt file.
type DB struct {
	db   *bbolt.DB
	path string
}

// Open opens (creating if necessary) the bolt file at path with owner-only
// permissions and a bounded open timeout.
func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: defaultOpenTimeout})
	if err != nil {
		return nil, storage.Error.Wrap(err)
	}
	return &DB{db: db, path: path}, nil
}

// Path returns the file path this store was opened from.
func (d *DB) Path() string { return d.path }

func encodeID(id uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}

func (d *DB) Put(ctx context.Context, table string, key storage.Key, value storage.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return storage.ErrEmptyKey.New("table %s", table)
	}
	return storage.Error.Wrap(d.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(table))
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", table, err)
		}
		return b.Put(key, value)
	}))
}

func (d *DB) Get(ctx context.Context, table string, key storage.Key) (val storage.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	err = d.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return storage.ErrKeyNotFound.New("table %s not found", table)
		}
		v := b.Get(key)
		if v == nil {
			return storage.ErrKeyNotFound.New("key not found in %s", table)
		}
		val = append(storage.Value(nil), v...)
		return nil
	})
	return val, err
}

func (d *DB) Delete(ctx context.Context, table string, key storage.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	return storage.Error.Wrap(d.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nil
		}
		return b.Delete(key)
	}))
}

func (d *DB) NextSequence(ctx context.Context, table string) (seq uint64, err error) {
	defer mon.Task()(&ctx)(&err)
	err = d.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(table))
		if err != nil {
			return err
		}
		seq, err = b.NextSequence()
		return err
	})
	if err != nil {
		return 0, storage.Error.Wrap(err)
	}
	return seq, nil
}

func (d *DB) SetSequence(ctx context.Context, table string, seq uint64) (err error) {
	defer mon.Task()(&ctx)(&err)
	return storage.Error.Wrap(d.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(table))
		if err != nil {
			return err
		}
		if b.Sequence() >= seq {
			return nil
		}
		return b.SetSequence(seq)
	}))
}

type boltCursor struct {
	tx      *bbolt.Tx
	cur     *bbolt.Cursor
	reverse bool
	started bool
	item    storage.Item
	valid   bool
}

func (c *boltCursor) Next() bool {
	if c.cur == nil {
		c.valid = false
		return false
	}
	var k, v []byte
	if !c.started {
		c.started = true
		if c.reverse {
			k, v = c.cur.Last()
		} else {
			k, v = c.cur.First()
		}
	} else if c.reverse {
		k, v = c.cur.Prev()
	} else {
		k, v = c.cur.Next()
	}
	if k == nil {
		c.valid = false
		return false
	}
	c.item = storage.Item{
		Key:   append(storage.Key(nil), k...),
		Value: append(storage.Value(nil), v...),
	}
	c.valid = true
	return true
}

func (c *boltCursor) Item() storage.Item { return c.item }
func (c *boltCursor) Err() error         { return nil }
func (c *boltCursor) Close() error {
	if c.tx == nil {
		return nil
	}
	return c.tx.Rollback()
}

func newCursor(db *bbolt.DB, bucket string, reverse bool) (storage.Cursor, error) {
	tx, err := db.Begin(false)
	if err != nil {
		return nil, storage.Error.Wrap(err)
	}
	b := tx.Bucket([]byte(bucket))
	if b == nil {
		_ = tx.Rollback()
		return &boltCursor{valid: false, started: true}, nil
	}
	return &boltCursor{tx: tx, cur: b.Cursor(), reverse: reverse}, nil
}

func (d *DB) Scan(ctx context.Context, table string, reverse bool) (c storage.Cursor, err error) {
	defer mon.Task()(&ctx)(&err)
	return newCursor(d.db, table, reverse)
}

func (d *DB) PutIndex(ctx context.Context, index string, indexKey storage.Key, nodeID uint64) (err error) {
	defer mon.Task()(&ctx)(&err)
	if indexKey.IsZero() {
		return storage.ErrEmptyKey.New("index %s", index)
	}
	return storage.Error.Wrap(d.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(indexBucket(index)))
		if err != nil {
			return err
		}
		return b.Put(indexKey, encodeID(nodeID))
	}))
}

func (d *DB) DeleteIndex(ctx context.Context, index string, indexKey storage.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	return storage.Error.Wrap(d.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(indexBucket(index)))
		if b == nil {
			return nil
		}
		return b.Delete(indexKey)
	}))
}

func (d *DB) ScanIndex(ctx context.Context, index string, reverse bool) (c storage.Cursor, err error) {
	defer mon.Task()(&ctx)(&err)
	return newCursor(d.db, indexBucket(index), reverse)
}

func (d *DB) GetByValue(ctx context.Context, index string, indexKey storage.Key) (nodeID uint64, ok bool, err error) {
	defer mon.Task()(&ctx)(&err)
	err = d.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(indexBucket(index)))
		if b == nil {
			return nil
		}
		v := b.Get(indexKey)
		if v == nil {
			return nil
		}
		nodeID = binary.BigEndian.Uint64(v)
		ok = true
		return nil
	})
	return nodeID, ok, storage.Error.Wrap(err)
}

func (d *DB) IndexSize(ctx context.Context, index string) (n int, err error) {
	defer mon.Task()(&ctx)(&err)
	err = d.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(indexBucket(index)))
		if b == nil {
			n = 0
			return nil
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, storage.Error.Wrap(err)
}

// Attach ensures the named index bucket exists. If rebuild is true, or the
// index is empty while its primary table is not, the index is rebuilt from
// scratch by scanning primaryTable and calling rebuildFn on every row —
// the case after a run in batch mode.
func (d *DB) Attach(ctx context.Context, index, primaryTable string, rebuild bool, rebuildFn func(key, value []byte) (storage.Key, uint64, bool)) (err error) {
	defer mon.Task()(&ctx)(&err)
	if !rebuild {
		size, err := d.IndexSize(ctx, index)
		if err != nil {
			return err
		}
		if size > 0 {
			return nil
		}
		// Fall through to rebuild: an empty index next to a non-empty
		// primary table means live maintenance was never populated (a
		// fresh attach), not that the index is legitimately empty.
	}
	return storage.Error.Wrap(d.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(indexBucket(index))); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		ib, err := tx.CreateBucket([]byte(indexBucket(index)))
		if err != nil {
			return err
		}
		pb := tx.Bucket([]byte(primaryTable))
		if pb == nil {
			return nil
		}
		return pb.ForEach(func(k, v []byte) error {
			indexKey, nodeID, ok := rebuildFn(k, v)
			if !ok {
				return nil
			}
			return ib.Put(indexKey, encodeID(nodeID))
		})
	}))
}

func (d *DB) Detach(ctx context.Context, index string) (err error) {
	defer mon.Task()(&ctx)(&err)
	return storage.Error.Wrap(d.db.Update(func(tx *bbolt.Tx) error {
		err := tx.DeleteBucket([]byte(indexBucket(index)))
		if err == bbolt.ErrBucketNotFound {
			return nil
		}
		return err
	}))
}

// Truncate empties every table and index bucket and resets every sequence
// counter, by deleting and recreating each bucket — bolt has no
// per-bucket "clear", so drop-and-recreate is the idiomatic substitute.
func (d *DB) Truncate(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)
	return storage.Error.Wrap(d.db.Update(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			_, err := tx.CreateBucket(name)
			return err
		})
	}))
}

// Rollover closes the current file, renames it to include suffix, and
// reopens an empty store at the original path.
func (d *DB) Rollover(ctx context.Context, suffix string) (err error) {
	defer mon.Task()(&ctx)(&err)
	path := d.path
	if err := d.db.Close(); err != nil {
		return storage.Error.Wrap(err)
	}
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	archived := fmt.Sprintf("%s-%s%s", base, suffix, ext)
	if err := os.Rename(path, archived); err != nil {
		return storage.Error.Wrap(err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: defaultOpenTimeout})
	if err != nil {
		return storage.Error.Wrap(err)
	}
	d.db = db
	return nil
}

// Compact rewrites the store into a fresh file via bbolt's own page-by-page
// copy (reclaiming space left behind by deleted keys and index churn), then
// swaps it in at the original path — the same approach the bbolt CLI's own
// "compact" subcommand takes.
func (d *DB) Compact(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	tmpPath := d.path + ".compact"
	dst, err := bbolt.Open(tmpPath, 0600, &bbolt.Options{Timeout: defaultOpenTimeout})
	if err != nil {
		return storage.Error.Wrap(err)
	}
	if err := bbolt.Compact(dst, d.db, 0); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmpPath)
		return storage.Error.Wrap(err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return storage.Error.Wrap(err)
	}
	if err := d.db.Close(); err != nil {
		return storage.Error.Wrap(err)
	}
	if err := os.Rename(tmpPath, d.path); err != nil {
		return storage.Error.Wrap(err)
	}
	db, err := bbolt.Open(d.path, 0600, &bbolt.Options{Timeout: defaultOpenTimeout})
	if err != nil {
		return storage.Error.Wrap(err)
	}
	d.db = db
	return nil
}

func (d *DB) Sync() error  { return storage.Error.Wrap(d.db.Sync()) }
func (d *DB) Close() error { return storage.Error.Wrap(d.db.Close()) }

var _ storage.Store = (*DB)(nil)
