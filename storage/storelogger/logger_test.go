package storelogger

import (
	"context"
	"encoding/binary"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/IzzySoft/StoneStepsWebalizer/storage"
	"github.com/IzzySoft/StoneStepsWebalizer/storage/boltstore"
)

func openLoggedTestDB(t *testing.T) (*Logger, *boltstore.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := boltstore.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(zap.NewNop(), db), db
}

func encodeID(id uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}

func TestLoggerPutGetDelete(t *testing.T) {
	logged, _ := openLoggedTestDB(t)
	ctx := context.Background()

	key := storage.Key(encodeID(1))
	if err := logged.Put(ctx, boltstore.TableHosts, key, storage.Value("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := logged.Get(ctx, boltstore.TableHosts, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("got %q, want %q", got, "payload")
	}
	if err := logged.Delete(ctx, boltstore.TableHosts, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := logged.Get(ctx, boltstore.TableHosts, key); !storage.ErrKeyNotFound.Has(err) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestLoggerSequenceAndIndex(t *testing.T) {
	logged, _ := openLoggedTestDB(t)
	ctx := context.Background()

	seq, err := logged.NextSequence(ctx, boltstore.TableURLs)
	if err != nil {
		t.Fatalf("NextSequence: %v", err)
	}
	if err := logged.SetSequence(ctx, boltstore.TableURLs, seq+10); err != nil {
		t.Fatalf("SetSequence: %v", err)
	}
	next, err := logged.NextSequence(ctx, boltstore.TableURLs)
	if err != nil {
		t.Fatalf("NextSequence: %v", err)
	}
	if next <= seq+10 {
		t.Fatalf("sequence not advanced past SetSequence: got %d, want > %d", next, seq+10)
	}

	if err := logged.PutIndex(ctx, boltstore.IndexHostsHits, storage.Key("hits:0000000005"), 42); err != nil {
		t.Fatalf("PutIndex: %v", err)
	}
	size, err := logged.IndexSize(ctx, boltstore.IndexHostsHits)
	if err != nil {
		t.Fatalf("IndexSize: %v", err)
	}
	if size != 1 {
		t.Fatalf("IndexSize = %d, want 1", size)
	}
	if err := logged.DeleteIndex(ctx, boltstore.IndexHostsHits, storage.Key("hits:0000000005")); err != nil {
		t.Fatalf("DeleteIndex: %v", err)
	}
}

func TestLoggerCompactDelegates(t *testing.T) {
	logged, db := openLoggedTestDB(t)
	ctx := context.Background()

	if err := logged.Put(ctx, boltstore.TableHosts, storage.Key(encodeID(1)), storage.Value("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := logged.Compact(ctx); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if _, err := db.Get(ctx, boltstore.TableHosts, storage.Key(encodeID(1))); err != nil {
		t.Fatalf("Get after Compact: %v", err)
	}
}

func TestLoggerRolloverAndTruncate(t *testing.T) {
	logged, _ := openLoggedTestDB(t)
	ctx := context.Background()

	if err := logged.Put(ctx, boltstore.TableHosts, storage.Key(encodeID(1)), storage.Value("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := logged.Rollover(ctx, "202006"); err != nil {
		t.Fatalf("Rollover: %v", err)
	}
	if _, err := logged.Get(ctx, boltstore.TableHosts, storage.Key(encodeID(1))); !storage.ErrKeyNotFound.Has(err) {
		t.Fatalf("expected fresh empty store after rollover, got %v", err)
	}
	if err := logged.Put(ctx, boltstore.TableHosts, storage.Key(encodeID(2)), storage.Value("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := logged.Truncate(ctx); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if _, err := logged.Get(ctx, boltstore.TableHosts, storage.Key(encodeID(2))); !storage.ErrKeyNotFound.Has(err) {
		t.Fatalf("expected empty store after truncate, got %v", err)
	}
}
