package boltstore

import (
	"context"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/IzzySoft/StoneStepsWebalizer/storage"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPutGetDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	key := storage.Key(encodeID(1))
	if err := db.Put(ctx, TableHosts, key, storage.Value("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := db.Get(ctx, TableHosts, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("got %q, want %q", got, "payload")
	}
	if err := db.Delete(ctx, TableHosts, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := db.Get(ctx, TableHosts, key); !storage.ErrKeyNotFound.Has(err) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestNextSequenceMonotonic(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var last uint64
	for i := 0; i < 5; i++ {
		seq, err := db.NextSequence(ctx, TableURLs)
		if err != nil {
			t.Fatalf("NextSequence: %v", err)
		}
		if seq <= last {
			t.Fatalf("sequence not increasing: %d after %d", seq, last)
		}
		last = seq
	}
}

func TestScanOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := uint64(1); i <= 3; i++ {
		if err := db.Put(ctx, TableHosts, storage.Key(encodeID(i)), storage.Value("v")); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	cur, err := db.Scan(ctx, TableHosts, false)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	defer cur.Close()
	var ids []uint64
	for cur.Next() {
		ids = append(ids, binary.BigEndian.Uint64(cur.Item().Key))
	}
	want := []uint64{1, 2, 3}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestScanReverse(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := uint64(1); i <= 3; i++ {
		if err := db.Put(ctx, TableHosts, storage.Key(encodeID(i)), storage.Value("v")); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	cur, err := db.Scan(ctx, TableHosts, true)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	defer cur.Close()
	var ids []uint64
	for cur.Next() {
		ids = append(ids, binary.BigEndian.Uint64(cur.Item().Key))
	}
	want := []uint64{3, 2, 1}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestIndexPutScanDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.PutIndex(ctx, IndexHostsHits, storage.Key("hits:0000000005"), 42); err != nil {
		t.Fatalf("PutIndex: %v", err)
	}
	size, err := db.IndexSize(ctx, IndexHostsHits)
	if err != nil {
		t.Fatalf("IndexSize: %v", err)
	}
	if size != 1 {
		t.Fatalf("IndexSize = %d, want 1", size)
	}
	cur, err := db.ScanIndex(ctx, IndexHostsHits, false)
	if err != nil {
		t.Fatalf("ScanIndex: %v", err)
	}
	if !cur.Next() {
		_ = cur.Close()
		t.Fatal("expected one entry")
	}
	got := binary.BigEndian.Uint64(cur.Item().Value)
	_ = cur.Close()
	if got != 42 {
		t.Fatalf("got nodeID %d, want 42", got)
	}
	if err := db.DeleteIndex(ctx, IndexHostsHits, storage.Key("hits:0000000005")); err != nil {
		t.Fatalf("DeleteIndex: %v", err)
	}
	size, _ = db.IndexSize(ctx, IndexHostsHits)
	if size != 0 {
		t.Fatalf("IndexSize after delete = %d, want 0", size)
	}
}

func TestAttachRebuild(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := uint64(1); i <= 3; i++ {
		var v [8]byte
		binary.BigEndian.PutUint64(v[:], i*10)
		if err := db.Put(ctx, TableHosts, storage.Key(encodeID(i)), storage.Value(v[:])); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	rebuildFn := func(key, value []byte) (storage.Key, uint64, bool) {
		return storage.Key(append([]byte(nil), value...)), binary.BigEndian.Uint64(key), true
	}
	if err := db.Attach(ctx, IndexHostsHits, TableHosts, true, rebuildFn); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	size, err := db.IndexSize(ctx, IndexHostsHits)
	if err != nil {
		t.Fatalf("IndexSize: %v", err)
	}
	if size != 3 {
		t.Fatalf("IndexSize = %d, want 3", size)
	}
}

func TestTruncateResetsSequenceAndData(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.NextSequence(ctx, TableHosts); err != nil {
		t.Fatalf("NextSequence: %v", err)
	}
	if err := db.Put(ctx, TableHosts, storage.Key(encodeID(1)), storage.Value("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Truncate(ctx); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if _, err := db.Get(ctx, TableHosts, storage.Key(encodeID(1))); !storage.ErrKeyNotFound.Has(err) {
		t.Fatalf("expected ErrKeyNotFound after truncate, got %v", err)
	}
	seq, err := db.NextSequence(ctx, TableHosts)
	if err != nil {
		t.Fatalf("NextSequence: %v", err)
	}
	if seq != 1 {
		t.Fatalf("sequence after truncate = %d, want 1", seq)
	}
}

func TestRolloverArchivesAndReopens(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Put(ctx, TableHosts, storage.Key(encodeID(1)), storage.Value("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Rollover(ctx, "202006"); err != nil {
		t.Fatalf("Rollover: %v", err)
	}
	if _, err := db.Get(ctx, TableHosts, storage.Key(encodeID(1))); !storage.ErrKeyNotFound.Has(err) {
		t.Fatalf("expected fresh empty store after rollover, got %v", err)
	}
}

func TestCompactPreservesDataAndSequence(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := uint64(1); i <= 5; i++ {
		if err := db.Put(ctx, TableHosts, storage.Key(encodeID(i)), storage.Value("v")); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	for i := uint64(1); i <= 3; i++ {
		if err := db.Delete(ctx, TableHosts, storage.Key(encodeID(i))); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	}
	if _, err := db.NextSequence(ctx, TableHosts); err != nil {
		t.Fatalf("NextSequence: %v", err)
	}
	seqBefore, err := db.NextSequence(ctx, TableHosts)
	if err != nil {
		t.Fatalf("NextSequence: %v", err)
	}

	if err := db.Compact(ctx); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	for i := uint64(1); i <= 3; i++ {
		if _, err := db.Get(ctx, TableHosts, storage.Key(encodeID(i))); !storage.ErrKeyNotFound.Has(err) {
			t.Fatalf("expected deleted key %d to stay gone after compact, got %v", i, err)
		}
	}
	for i := uint64(4); i <= 5; i++ {
		if _, err := db.Get(ctx, TableHosts, storage.Key(encodeID(i))); err != nil {
			t.Fatalf("Get %d after compact: %v", i, err)
		}
	}
	seqAfter, err := db.NextSequence(ctx, TableHosts)
	if err != nil {
		t.Fatalf("NextSequence after compact: %v", err)
	}
	if seqAfter <= seqBefore {
		t.Fatalf("sequence not preserved across compact: before=%d after=%d", seqBefore, seqAfter)
	}
}
