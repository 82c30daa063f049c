// Package storelogger wraps a storage.Store with zap debug logging of
// every call.
package storelogger

import (
	"context"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/IzzySoft/StoneStepsWebalizer/storage"
)

var mon = monkit.Package()

var id int64

// Logger implements storage.Store by delegating to an inner Store and
// logging every call at Debug.
type Logger struct {
	log   *zap.Logger
	store storage.Store
}

// New wraps store with a named logger, one atomically-assigned name per
// Logger instance, disambiguating multiple stores sharing one process.
func New(log *zap.Logger, store storage.Store) *Logger {
	n := atomic.AddInt64(&id, 1)
	return &Logger{log: log.Named(strconv.FormatInt(n, 10)), store: store}
}

func (l *Logger) Put(ctx context.Context, table string, key storage.Key, value storage.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	l.log.Debug("Put", zap.String("table", table), zap.ByteString("key", key), zap.Int("value length", len(value)))
	return l.store.Put(ctx, table, key, value)
}

func (l *Logger) Get(ctx context.Context, table string, key storage.Key) (v storage.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	l.log.Debug("Get", zap.String("table", table), zap.ByteString("key", key))
	return l.store.Get(ctx, table, key)
}

func (l *Logger) Delete(ctx context.Context, table string, key storage.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	l.log.Debug("Delete", zap.String("table", table), zap.ByteString("key", key))
	return l.store.Delete(ctx, table, key)
}

func (l *Logger) NextSequence(ctx context.Context, table string) (seq uint64, err error) {
	defer mon.Task()(&ctx)(&err)
	seq, err = l.store.NextSequence(ctx, table)
	l.log.Debug("NextSequence", zap.String("table", table), zap.Uint64("seq", seq))
	return seq, err
}

func (l *Logger) SetSequence(ctx context.Context, table string, seq uint64) (err error) {
	defer mon.Task()(&ctx)(&err)
	l.log.Debug("SetSequence", zap.String("table", table), zap.Uint64("seq", seq))
	return l.store.SetSequence(ctx, table, seq)
}

func (l *Logger) Scan(ctx context.Context, table string, reverse bool) (c storage.Cursor, err error) {
	defer mon.Task()(&ctx)(&err)
	l.log.Debug("Scan", zap.String("table", table), zap.Bool("reverse", reverse))
	return l.store.Scan(ctx, table, reverse)
}

func (l *Logger) PutIndex(ctx context.Context, index string, indexKey storage.Key, nodeID uint64) (err error) {
	defer mon.Task()(&ctx)(&err)
	l.log.Debug("PutIndex", zap.String("index", index), zap.ByteString("key", indexKey), zap.Uint64("nodeID", nodeID))
	return l.store.PutIndex(ctx, index, indexKey, nodeID)
}

func (l *Logger) DeleteIndex(ctx context.Context, index string, indexKey storage.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	l.log.Debug("DeleteIndex", zap.String("index", index), zap.ByteString("key", indexKey))
	return l.store.DeleteIndex(ctx, index, indexKey)
}

func (l *Logger) ScanIndex(ctx context.Context, index string, reverse bool) (c storage.Cursor, err error) {
	defer mon.Task()(&ctx)(&err)
	l.log.Debug("ScanIndex", zap.String("index", index), zap.Bool("reverse", reverse))
	return l.store.ScanIndex(ctx, index, reverse)
}

func (l *Logger) GetByValue(ctx context.Context, index string, indexKey storage.Key) (nodeID uint64, ok bool, err error) {
	defer mon.Task()(&ctx)(&err)
	nodeID, ok, err = l.store.GetByValue(ctx, index, indexKey)
	l.log.Debug("GetByValue", zap.String("index", index), zap.ByteString("key", indexKey), zap.Bool("ok", ok))
	return nodeID, ok, err
}

func (l *Logger) IndexSize(ctx context.Context, index string) (n int, err error) {
	defer mon.Task()(&ctx)(&err)
	l.log.Debug("IndexSize", zap.String("index", index))
	return l.store.IndexSize(ctx, index)
}

func (l *Logger) Attach(ctx context.Context, index, primaryTable string, rebuild bool, rebuildFn func(key, value []byte) (storage.Key, uint64, bool)) (err error) {
	defer mon.Task()(&ctx)(&err)
	l.log.Debug("Attach", zap.String("index", index), zap.String("table", primaryTable), zap.Bool("rebuild", rebuild))
	return l.store.Attach(ctx, index, primaryTable, rebuild, rebuildFn)
}

func (l *Logger) Detach(ctx context.Context, index string) (err error) {
	defer mon.Task()(&ctx)(&err)
	l.log.Debug("Detach", zap.String("index", index))
	return l.store.Detach(ctx, index)
}

func (l *Logger) Truncate(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)
	l.log.Debug("Truncate")
	return l.store.Truncate(ctx)
}

func (l *Logger) Rollover(ctx context.Context, suffix string) (err error) {
	defer mon.Task()(&ctx)(&err)
	l.log.Debug("Rollover", zap.String("suffix", suffix))
	return l.store.Rollover(ctx, suffix)
}

func (l *Logger) Sync() error {
	l.log.Debug("Sync")
	return l.store.Sync()
}

func (l *Logger) Close() error {
	l.log.Debug("Close")
	return l.store.Close()
}

func (l *Logger) Compact(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)
	l.log.Debug("Compact")
	return l.store.Compact(ctx)
}

var _ storage.Store = (*Logger)(nil)
